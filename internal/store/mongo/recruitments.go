package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

var (
	ErrRecruitmentFull   = errors.New("recruitment is full")
	ErrAlreadyMember     = errors.New("already a member")
	ErrNotMember         = errors.New("not a member")
	ErrLeaderCannotLeave = errors.New("leader cannot leave")
)

// RecruitmentDoc is the live member list of a recruitment.
type RecruitmentDoc struct {
	ID        string    `bson:"_id"`
	GuildID   string    `bson:"guild_id"`
	LeaderID  string    `bson:"leader_id"`
	Slots     int       `bson:"slots"`
	Members   []string  `bson:"members"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// Full reports whether every slot is taken.
func (d *RecruitmentDoc) Full() bool {
	return len(d.Members) >= d.Slots
}

// RecruitmentDocs stores member lists. Capacity is enforced by the update
// filter, so concurrent joins never overfill a party.
type RecruitmentDocs struct {
	coll *mongo.Collection
}

func NewRecruitmentDocs(db *mongo.Database) *RecruitmentDocs {
	return &RecruitmentDocs{coll: db.Collection("recruitment_members")}
}

// Create inserts the member list with the leader as the first member.
func (r *RecruitmentDocs) Create(ctx context.Context, id, guildID, leaderID string, slots int) (*RecruitmentDoc, error) {
	doc := &RecruitmentDoc{
		ID:        id,
		GuildID:   guildID,
		LeaderID:  leaderID,
		Slots:     slots,
		Members:   []string{leaderID},
		UpdatedAt: time.Now().UTC(),
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to create recruitment members %s: %w", id, err)
	}
	return doc, nil
}

// Get returns the member list or ErrNotFound.
func (r *RecruitmentDocs) Get(ctx context.Context, id string) (*RecruitmentDoc, error) {
	var doc RecruitmentDoc
	if err := r.coll.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to get recruitment members %s: %w", id, notFound(err))
	}
	return &doc, nil
}

// Join adds userID when there is a free slot and returns the updated list.
func (r *RecruitmentDocs) Join(ctx context.Context, id, userID string) (*RecruitmentDoc, error) {
	filter := joinFilter(id, userID)
	update := bson.D{
		{Key: "$push", Value: bson.D{{Key: "members", Value: userID}}},
		{Key: "$set", Value: bson.D{{Key: "updated_at", Value: time.Now().UTC()}}},
	}

	var doc RecruitmentDoc
	err := r.coll.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err == nil {
		return &doc, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("failed to join recruitment %s: %w", id, err)
	}

	// Фильтр не совпал: выясняем причину
	current, getErr := r.Get(ctx, id)
	if getErr != nil {
		return nil, getErr
	}
	return current, joinRejection(current, userID)
}

// Leave removes userID. The leader cannot leave their own recruitment.
func (r *RecruitmentDocs) Leave(ctx context.Context, id, userID string) (*RecruitmentDoc, error) {
	filter := bson.D{
		{Key: "_id", Value: id},
		{Key: "members", Value: userID},
		{Key: "leader_id", Value: bson.D{{Key: "$ne", Value: userID}}},
	}
	update := bson.D{
		{Key: "$pull", Value: bson.D{{Key: "members", Value: userID}}},
		{Key: "$set", Value: bson.D{{Key: "updated_at", Value: time.Now().UTC()}}},
	}

	var doc RecruitmentDoc
	err := r.coll.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err == nil {
		return &doc, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("failed to leave recruitment %s: %w", id, err)
	}

	current, getErr := r.Get(ctx, id)
	if getErr != nil {
		return nil, getErr
	}
	if current.LeaderID == userID {
		return current, ErrLeaderCannotLeave
	}
	return current, ErrNotMember
}

// Delete removes the member list.
func (r *RecruitmentDocs) Delete(ctx context.Context, id string) error {
	if _, err := r.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}}); err != nil {
		return fmt.Errorf("failed to delete recruitment members %s: %w", id, err)
	}
	return nil
}

// joinFilter matches the recruitment only when userID is not a member yet and
// a slot is free.
func joinFilter(id, userID string) bson.D {
	return bson.D{
		{Key: "_id", Value: id},
		{Key: "members", Value: bson.D{{Key: "$ne", Value: userID}}},
		{Key: "$expr", Value: bson.D{{Key: "$lt", Value: bson.A{
			bson.D{{Key: "$size", Value: "$members"}},
			"$slots",
		}}}},
	}
}

func joinRejection(doc *RecruitmentDoc, userID string) error {
	for _, m := range doc.Members {
		if m == userID {
			return ErrAlreadyMember
		}
	}
	if doc.Full() {
		return ErrRecruitmentFull
	}
	// Список изменился между обновлением и чтением; вызывающий может повторить
	return fmt.Errorf("join of recruitment %s rejected", doc.ID)
}
