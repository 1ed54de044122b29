package builders

import (
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/Hongsc0125/donggle-bot/internal/commands"
	"github.com/Hongsc0125/donggle-bot/internal/config"
	"github.com/Hongsc0125/donggle-bot/internal/gateway"
	"github.com/Hongsc0125/donggle-bot/internal/logger"
	"github.com/Hongsc0125/donggle-bot/internal/retry"
)

// Intents the bot needs: guild metadata and voice states for the lobby rooms.
const Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildVoiceStates

type DiscordBuilder struct {
	config config.DiscordConfig
	logger *logger.Logger
}

func NewDiscordBuilder(cfg config.DiscordConfig, log *logger.Logger) *DiscordBuilder {
	return &DiscordBuilder{config: cfg, logger: log.Component("discordgo")}
}

// Build creates a session that is not yet connected. discordgo's own log
// output is routed into the application logger.
func (b *DiscordBuilder) Build() (*discordgo.Session, error) {
	s, err := discordgo.New("Bot " + b.config.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	s.Identify.Intents = Intents
	s.StateEnabled = true
	s.State.TrackVoice = true

	log := b.logger
	discordgo.Logger = func(level, _ int, format string, a ...any) {
		msg := fmt.Sprintf(format, a...)
		switch level {
		case discordgo.LogError:
			log.Error("discordgo", nil, logger.Field{Key: "detail", Value: msg})
		case discordgo.LogWarning:
			log.Warn("discordgo", logger.Field{Key: "detail", Value: msg})
		default:
			log.Debug("discordgo", logger.Field{Key: "detail", Value: msg})
		}
	}
	return s, nil
}

// RegisterCommands overwrites the application commands from the catalog, in
// every configured guild or globally when none is configured.
func (b *DiscordBuilder) RegisterCommands(s *discordgo.Session, catalog *commands.Catalog) error {
	cmds := catalog.ApplicationCommands()
	guilds := b.config.GuildIDs
	if len(guilds) == 0 {
		guilds = []string{""}
	}

	for _, guildID := range guilds {
		if _, err := s.ApplicationCommandBulkOverwrite(b.config.AppID, guildID, cmds); err != nil {
			return fmt.Errorf("failed to register commands in guild %q: %w", guildID, err)
		}
		b.logger.Info("commands registered",
			logger.Field{Key: "guild_id", Value: guildID},
			logger.Field{Key: "count", Value: len(cmds)})
	}
	return nil
}

// MonitorConfig maps the [monitor] section onto the connection monitor.
func MonitorConfig(c config.MonitorConfig) gateway.MonitorConfig {
	return gateway.MonitorConfig{
		Interval:         c.Interval(),
		HeartbeatTimeout: c.HeartbeatTimeout(),
		LatencyWarn:      c.LatencyWarn(),
		Backoff: retry.Backoff{
			Initial:    c.BackoffInitial(),
			Max:        c.BackoffMax(),
			Multiplier: c.BackoffMultiplier,
		},
		MaxAttempts: c.MaxAttempts,
	}
}
