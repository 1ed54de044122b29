package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
)

// Report is a link submitted by a member together with its converted text
// and summary.
type Report struct {
	ID        string    `bson:"_id"`
	GuildID   string    `bson:"guild_id"`
	AuthorID  string    `bson:"author_id"`
	URL       string    `bson:"url"`
	Title     string    `bson:"title"`
	Note      string    `bson:"note"`
	Markdown  string    `bson:"markdown"`
	Summary   string    `bson:"summary"`
	CreatedAt time.Time `bson:"created_at"`
}

// Reports stores submitted reports.
type Reports struct {
	coll *mongo.Collection
}

func NewReports(db *mongo.Database) *Reports {
	return &Reports{coll: db.Collection("reports")}
}

func (r *Reports) Insert(ctx context.Context, rep *Report) error {
	if _, err := r.coll.InsertOne(ctx, rep); err != nil {
		return fmt.Errorf("failed to insert report %s: %w", rep.ID, err)
	}
	return nil
}
