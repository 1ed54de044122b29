package postgres

import (
	"database/sql"
	"time"
)

// GuildSettings are the per-guild channels and roles the bot writes to.
type GuildSettings struct {
	GuildID         string    `db:"guild_id"`
	ReportChannelID string    `db:"report_channel_id"`
	AlertChannelID  string    `db:"alert_channel_id"`
	LobbyChannelID  string    `db:"lobby_channel_id"`
	AuthRoleID      string    `db:"auth_role_id"`
	UpdatedAt       time.Time `db:"updated_at"`
}

// Recruitment statuses.
const (
	RecruitmentOpen   = "open"
	RecruitmentFull   = "full"
	RecruitmentClosed = "closed"
)

// Recruitment is a party call posted in a channel.
type Recruitment struct {
	ID        string       `db:"id"`
	GuildID   string       `db:"guild_id"`
	ChannelID string       `db:"channel_id"`
	MessageID string       `db:"message_id"`
	LeaderID  string       `db:"leader_id"`
	Title     string       `db:"title"`
	Slots     int          `db:"slots"`
	Status    string       `db:"status"`
	CreatedAt time.Time    `db:"created_at"`
	ClosedAt  sql.NullTime `db:"closed_at"`
}

// Alert is a cron-scheduled message for a guild channel.
type Alert struct {
	ID        int64     `db:"id"`
	GuildID   string    `db:"guild_id"`
	ChannelID string    `db:"channel_id"`
	Spec      string    `db:"spec"`
	Message   string    `db:"message"`
	Enabled   bool      `db:"enabled"`
	CreatedBy string    `db:"created_by"`
	CreatedAt time.Time `db:"created_at"`
}
