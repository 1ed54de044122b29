package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Recruitments stores party recruitments.
type Recruitments struct {
	db *sqlx.DB
}

func NewRecruitments(db *sqlx.DB) *Recruitments {
	return &Recruitments{db: db}
}

// Create inserts rec and fills CreatedAt.
func (r *Recruitments) Create(ctx context.Context, rec *Recruitment) error {
	query := `
	INSERT INTO recruitments (id, guild_id, channel_id, message_id, leader_id, title, slots, status)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	RETURNING created_at
	`

	if rec.Status == "" {
		rec.Status = RecruitmentOpen
	}
	err := r.db.QueryRowxContext(ctx, query,
		rec.ID, rec.GuildID, rec.ChannelID, rec.MessageID, rec.LeaderID, rec.Title, rec.Slots, rec.Status,
	).Scan(&rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create recruitment: %w", err)
	}
	return nil
}

// Get returns a recruitment by ID or ErrNotFound.
func (r *Recruitments) Get(ctx context.Context, id string) (*Recruitment, error) {
	query := `
	SELECT id, guild_id, channel_id, message_id, leader_id, title, slots, status, created_at, closed_at
	FROM recruitments
	WHERE id = $1
	`

	var rec Recruitment
	if err := r.db.GetContext(ctx, &rec, query, id); err != nil {
		return nil, fmt.Errorf("failed to get recruitment %s: %w", id, notFound(err))
	}
	return &rec, nil
}

// SetMessage stores the ID of the message that shows the recruitment.
func (r *Recruitments) SetMessage(ctx context.Context, id, messageID string) error {
	return r.exec(ctx, `UPDATE recruitments SET message_id = $2 WHERE id = $1`, id, messageID)
}

// SetStatus moves a recruitment to status; closing stamps closed_at.
func (r *Recruitments) SetStatus(ctx context.Context, id, status string) error {
	query := `
	UPDATE recruitments
	SET status = $2,
		closed_at = CASE WHEN $2::text = 'closed' THEN NOW() ELSE closed_at END
	WHERE id = $1
	`
	return r.exec(ctx, query, id, status)
}

// ListOpen returns the open and full recruitments of a guild, newest first.
func (r *Recruitments) ListOpen(ctx context.Context, guildID string) ([]Recruitment, error) {
	query := `
	SELECT id, guild_id, channel_id, message_id, leader_id, title, slots, status, created_at, closed_at
	FROM recruitments
	WHERE guild_id = $1 AND status <> 'closed'
	ORDER BY created_at DESC
	`

	var recs []Recruitment
	if err := r.db.SelectContext(ctx, &recs, query, guildID); err != nil {
		return nil, fmt.Errorf("failed to list recruitments of guild %s: %w", guildID, err)
	}
	return recs, nil
}

func (r *Recruitments) exec(ctx context.Context, query string, id string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, append([]any{id}, args...)...)
	if err != nil {
		return fmt.Errorf("failed to update recruitment %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update recruitment %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("failed to update recruitment %s: %w", id, ErrNotFound)
	}
	return nil
}
