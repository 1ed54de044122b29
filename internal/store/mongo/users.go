package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// AuthRecord is a user verified against the game ranking.
type AuthRecord struct {
	GuildID    string    `bson:"guild_id"`
	UserID     string    `bson:"user_id"`
	Nickname   string    `bson:"nickname"`
	Server     string    `bson:"server"`
	Class      string    `bson:"class"`
	VerifiedAt time.Time `bson:"verified_at"`
}

// UserAuth stores verified users, one record per guild and user.
type UserAuth struct {
	coll *mongo.Collection
}

func NewUserAuth(db *mongo.Database) *UserAuth {
	return &UserAuth{coll: db.Collection("user_auth")}
}

// Upsert creates or replaces the record of rec.GuildID/rec.UserID.
func (u *UserAuth) Upsert(ctx context.Context, rec AuthRecord) error {
	filter := bson.D{{Key: "guild_id", Value: rec.GuildID}, {Key: "user_id", Value: rec.UserID}}
	_, err := u.coll.ReplaceOne(ctx, filter, rec, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to save auth of user %s: %w", rec.UserID, err)
	}
	return nil
}

// Get returns the record of a user or ErrNotFound.
func (u *UserAuth) Get(ctx context.Context, guildID, userID string) (*AuthRecord, error) {
	filter := bson.D{{Key: "guild_id", Value: guildID}, {Key: "user_id", Value: userID}}

	var rec AuthRecord
	if err := u.coll.FindOne(ctx, filter).Decode(&rec); err != nil {
		return nil, fmt.Errorf("failed to get auth of user %s: %w", userID, notFound(err))
	}
	return &rec, nil
}

// FindByNickname returns the user that verified nickname in a guild, if any.
func (u *UserAuth) FindByNickname(ctx context.Context, guildID, nickname string) (*AuthRecord, error) {
	filter := bson.D{{Key: "guild_id", Value: guildID}, {Key: "nickname", Value: nickname}}

	var rec AuthRecord
	if err := u.coll.FindOne(ctx, filter).Decode(&rec); err != nil {
		return nil, fmt.Errorf("failed to find nickname %s: %w", nickname, notFound(err))
	}
	return &rec, nil
}

// EnsureIndexes creates the unique guild/user index.
func (u *UserAuth) EnsureIndexes(ctx context.Context) error {
	_, err := u.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "guild_id", Value: 1}, {Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "guild_id", Value: 1}, {Key: "nickname", Value: 1}},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create user_auth indexes: %w", err)
	}
	return nil
}
