package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Alerts stores scheduled alerts.
type Alerts struct {
	db *sqlx.DB
}

func NewAlerts(db *sqlx.DB) *Alerts {
	return &Alerts{db: db}
}

// Create inserts a and fills its ID and CreatedAt.
func (r *Alerts) Create(ctx context.Context, a *Alert) error {
	query := `
	INSERT INTO alerts (guild_id, channel_id, spec, message, enabled, created_by)
	VALUES ($1, $2, $3, $4, $5, $6)
	RETURNING id, created_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		a.GuildID, a.ChannelID, a.Spec, a.Message, a.Enabled, a.CreatedBy,
	).Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create alert: %w", err)
	}
	return nil
}

// Delete removes an alert of a guild. Alerts of other guilds are untouched.
func (r *Alerts) Delete(ctx context.Context, guildID string, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM alerts WHERE id = $1 AND guild_id = $2`, id, guildID)
	if err != nil {
		return fmt.Errorf("failed to delete alert %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("failed to delete alert %d: %w", id, ErrNotFound)
	}
	return nil
}

// ListEnabled returns every enabled alert across guilds.
func (r *Alerts) ListEnabled(ctx context.Context) ([]Alert, error) {
	query := `
	SELECT id, guild_id, channel_id, spec, message, enabled, created_by, created_at
	FROM alerts
	WHERE enabled = true
	ORDER BY id
	`

	var alerts []Alert
	if err := r.db.SelectContext(ctx, &alerts, query); err != nil {
		return nil, fmt.Errorf("failed to list enabled alerts: %w", err)
	}
	return alerts, nil
}

// ListByGuild returns every alert of a guild.
func (r *Alerts) ListByGuild(ctx context.Context, guildID string) ([]Alert, error) {
	query := `
	SELECT id, guild_id, channel_id, spec, message, enabled, created_by, created_at
	FROM alerts
	WHERE guild_id = $1
	ORDER BY id
	`

	var alerts []Alert
	if err := r.db.SelectContext(ctx, &alerts, query, guildID); err != nil {
		return nil, fmt.Errorf("failed to list alerts of guild %s: %w", guildID, err)
	}
	return alerts, nil
}
