// Package bot implements the guild features on top of the Discord gateway:
// party recruitment, member verification, alerts, link reports, channel
// cleanup and temporary voice rooms. Slow work is handed to the task
// scheduler; per-channel message edits and deletes go through the batcher.
package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/Hongsc0125/donggle-bot/internal/alerts"
	"github.com/Hongsc0125/donggle-bot/internal/cache"
	"github.com/Hongsc0125/donggle-bot/internal/commands"
	"github.com/Hongsc0125/donggle-bot/internal/gateway"
	"github.com/Hongsc0125/donggle-bot/internal/logger"
	"github.com/Hongsc0125/donggle-bot/internal/ranking"
	"github.com/Hongsc0125/donggle-bot/internal/reports"
	"github.com/Hongsc0125/donggle-bot/internal/scheduler"
	mongostore "github.com/Hongsc0125/donggle-bot/internal/store/mongo"
	"github.com/Hongsc0125/donggle-bot/internal/store/postgres"
)

const interactionTimeout = 10 * time.Second

// Batcher queues side effects per channel.
type Batcher interface {
	Add(channelID string, fn scheduler.BatchFunc)
	Flush(ctx context.Context, channelID string) scheduler.FlushStats
}

type GuildStore interface {
	Get(ctx context.Context, guildID string) (*postgres.GuildSettings, error)
}

type RecruitmentStore interface {
	Create(ctx context.Context, rec *postgres.Recruitment) error
	Get(ctx context.Context, id string) (*postgres.Recruitment, error)
	SetMessage(ctx context.Context, id, messageID string) error
	SetStatus(ctx context.Context, id, status string) error
}

type MemberStore interface {
	Create(ctx context.Context, id, guildID, leaderID string, slots int) (*mongostore.RecruitmentDoc, error)
	Get(ctx context.Context, id string) (*mongostore.RecruitmentDoc, error)
	Join(ctx context.Context, id, userID string) (*mongostore.RecruitmentDoc, error)
	Leave(ctx context.Context, id, userID string) (*mongostore.RecruitmentDoc, error)
	Delete(ctx context.Context, id string) error
}

type AuthStore interface {
	Upsert(ctx context.Context, rec mongostore.AuthRecord) error
	Get(ctx context.Context, guildID, userID string) (*mongostore.AuthRecord, error)
	FindByNickname(ctx context.Context, guildID, nickname string) (*mongostore.AuthRecord, error)
}

type CooldownStore interface {
	Acquire(ctx context.Context, scope, userID string, ttl time.Duration) (bool, error)
	Remaining(ctx context.Context, scope, userID string) (time.Duration, error)
	Release(ctx context.Context, scope, userID string) error
}

type TempChannelStore interface {
	Add(ctx context.Context, guildID, channelID string) error
	Remove(ctx context.Context, guildID, channelID string) (bool, error)
	Contains(ctx context.Context, guildID, channelID string) (bool, error)
	List(ctx context.Context, guildID string) ([]string, error)
}

type RankingLookup interface {
	Lookup(ctx context.Context, nickname string) (*ranking.Character, error)
}

type AlertManager interface {
	Add(ctx context.Context, guildID, channelID, spec, message, createdBy string) (*postgres.Alert, error)
	Remove(ctx context.Context, guildID string, id int64) error
	List(ctx context.Context, guildID string) ([]alerts.Entry, error)
}

type ReportSubmitter interface {
	Submit(sub reports.Submission) error
}

// Status is what /status shows.
type Status struct {
	Gateway    gateway.Snapshot
	QueueDepth map[scheduler.Priority]int
	Pool       scheduler.PoolMetrics
	Alerts     int
	Uptime     time.Duration
}

// Deps are the bot's collaborators.
type Deps struct {
	Session      Session
	Roster       VoiceRoster
	Dispatcher   scheduler.Dispatcher
	Batcher      Batcher
	Guilds       GuildStore
	Recruitments RecruitmentStore
	Members      MemberStore
	Auth         AuthStore
	Cooldowns    CooldownStore
	TempChannels TempChannelStore
	Ranking      RankingLookup
	Alerts       AlertManager
	Reports      ReportSubmitter
	Status       func() Status
	Cooldown     time.Duration
}

// Bot handles interactions and voice events.
type Bot struct {
	Deps
	router *commands.Router
	logger *logger.Logger
	ctx    context.Context
}

// New builds the bot and registers a handler for every catalog command.
func New(ctx context.Context, deps Deps, catalog *commands.Catalog, log *logger.Logger) (*Bot, error) {
	b := &Bot{
		Deps:   deps,
		router: commands.NewRouter(log),
		logger: log.Component("bot"),
		ctx:    ctx,
	}

	b.router.Command("recruit", b.handleRecruit)
	b.router.Component("recruit", b.handleRecruitButton)
	b.router.Command("auth", b.handleAuth)
	b.router.Command("alert", b.handleAlert)
	b.router.Command("report", b.handleReport)
	b.router.Modal("report", b.handleReportModal)
	b.router.Command("cleanup", b.handleCleanup)
	b.router.Command("status", b.handleStatus)

	if catalog != nil {
		if missing := b.router.Missing(catalog); len(missing) > 0 {
			return nil, fmt.Errorf("commands without handler: %v", missing)
		}
	}
	return b, nil
}

// Attach registers the bot's gateway handlers. The returned function removes
// them.
func (b *Bot) Attach(s *discordgo.Session) func() {
	removers := []func(){
		s.AddHandler(func(_ *discordgo.Session, i *discordgo.InteractionCreate) {
			b.HandleInteraction(i)
		}),
		s.AddHandler(func(_ *discordgo.Session, v *discordgo.VoiceStateUpdate) {
			b.HandleVoiceState(v)
		}),
		// GuildCreate приходит для каждой гильдии после подключения, состояние
		// голосовых каналов к этому моменту уже в кеше
		s.AddHandler(func(_ *discordgo.Session, g *discordgo.GuildCreate) {
			if g.Guild != nil && !g.Unavailable {
				b.SweepRooms(g.ID)
			}
		}),
	}
	return func() {
		for _, remove := range removers {
			remove()
		}
	}
}

// HandleInteraction routes one interaction. Unexpected handler errors are
// logged and answered with a generic message.
func (b *Bot) HandleInteraction(i *discordgo.InteractionCreate) {
	ctx, cancel := context.WithTimeout(b.ctx, interactionTimeout)
	defer cancel()

	if i.GuildID == "" {
		b.replyEphemeral(i, msgGuildOnly)
		return
	}

	if err := b.router.Handle(ctx, i); err != nil {
		b.logger.ErrorCtx(ctx, "interaction failed", err,
			logger.Field{Key: "guild_id", Value: i.GuildID},
			logger.Field{Key: "user_id", Value: userID(i)})
		if !errors.Is(err, commands.ErrUnknownInteraction) {
			b.replyEphemeral(i, msgInternalError)
		}
	}
}

func (b *Bot) respond(i *discordgo.InteractionCreate, resp *discordgo.InteractionResponse) error {
	if err := b.Session.InteractionRespond(i.Interaction, resp); err != nil {
		return fmt.Errorf("failed to respond to interaction: %w", err)
	}
	return nil
}

func (b *Bot) replyEphemeral(i *discordgo.InteractionCreate, content string) {
	err := b.respond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		b.logger.Warn("failed to send reply", logger.Field{Key: "error", Value: err})
	}
}

// deferEphemeral acknowledges the interaction; the answer comes later via
// editReply.
func (b *Bot) deferEphemeral(i *discordgo.InteractionCreate) error {
	return b.respond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	})
}

func (b *Bot) editReply(i *discordgo.InteractionCreate, content string) error {
	if _, err := b.Session.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{Content: &content}); err != nil {
		return fmt.Errorf("failed to edit interaction reply: %w", err)
	}
	return nil
}

func userID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

func displayName(i *discordgo.InteractionCreate) string {
	if i.Member != nil {
		if i.Member.Nick != "" {
			return i.Member.Nick
		}
		if i.Member.User != nil {
			return i.Member.User.Username
		}
	}
	return ""
}

// guildSettings returns the settings or empty ones when the guild has none.
func (b *Bot) guildSettings(ctx context.Context, guildID string) (*postgres.GuildSettings, error) {
	s, err := b.Guilds.Get(ctx, guildID)
	if errors.Is(err, postgres.ErrNotFound) {
		return &postgres.GuildSettings{GuildID: guildID}, nil
	}
	return s, err
}

var (
	_ Batcher          = (*scheduler.Batcher)(nil)
	_ TempChannelStore = (*cache.TempChannels)(nil)
	_ CooldownStore    = (*cache.Cooldowns)(nil)
	_ MemberStore      = (*mongostore.RecruitmentDocs)(nil)
	_ AuthStore        = (*mongostore.UserAuth)(nil)
	_ RecruitmentStore = (*postgres.Recruitments)(nil)
	_ GuildStore       = (*postgres.Guilds)(nil)
	_ AlertManager     = (*alerts.Scheduler)(nil)
	_ ReportSubmitter  = (*reports.Service)(nil)
	_ RankingLookup    = (*ranking.Client)(nil)
	_ Session          = (*discordgo.Session)(nil)
)
