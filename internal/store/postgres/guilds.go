package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Guilds stores GuildSettings.
type Guilds struct {
	db *sqlx.DB
}

func NewGuilds(db *sqlx.DB) *Guilds {
	return &Guilds{db: db}
}

// Get returns the settings of a guild or ErrNotFound.
func (r *Guilds) Get(ctx context.Context, guildID string) (*GuildSettings, error) {
	query := `
	SELECT guild_id, report_channel_id, alert_channel_id, lobby_channel_id, auth_role_id, updated_at
	FROM guild_settings
	WHERE guild_id = $1
	`

	var s GuildSettings
	if err := r.db.GetContext(ctx, &s, query, guildID); err != nil {
		return nil, fmt.Errorf("failed to get settings of guild %s: %w", guildID, notFound(err))
	}
	return &s, nil
}

// Upsert creates or replaces the settings of a guild.
func (r *Guilds) Upsert(ctx context.Context, s *GuildSettings) error {
	query := `
	INSERT INTO guild_settings (guild_id, report_channel_id, alert_channel_id, lobby_channel_id, auth_role_id, updated_at)
	VALUES (:guild_id, :report_channel_id, :alert_channel_id, :lobby_channel_id, :auth_role_id, NOW())
	ON CONFLICT (guild_id) DO UPDATE SET
		report_channel_id = EXCLUDED.report_channel_id,
		alert_channel_id = EXCLUDED.alert_channel_id,
		lobby_channel_id = EXCLUDED.lobby_channel_id,
		auth_role_id = EXCLUDED.auth_role_id,
		updated_at = NOW()
	`

	if _, err := r.db.NamedExecContext(ctx, query, s); err != nil {
		return fmt.Errorf("failed to save settings of guild %s: %w", s.GuildID, err)
	}
	return nil
}
