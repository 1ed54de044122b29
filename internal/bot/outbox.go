package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/Hongsc0125/donggle-bot/internal/logger"
	"github.com/Hongsc0125/donggle-bot/internal/reports"
	mongostore "github.com/Hongsc0125/donggle-bot/internal/store/mongo"
)

var ErrNoReportChannel = errors.New("guild has no report channel")

// Outbox posts messages produced outside interactions: alert messages,
// finished reports and report failures. It implements alerts.Sender,
// reports.Publisher and reports.FailureNotifier.
type Outbox struct {
	session Session
	guilds  GuildStore
	logger  *logger.Logger
}

func NewOutbox(s Session, guilds GuildStore, log *logger.Logger) *Outbox {
	return &Outbox{session: s, guilds: guilds, logger: log.Component("outbox")}
}

func (o *Outbox) SendAlert(_ context.Context, channelID, message string) error {
	if _, err := o.session.ChannelMessageSend(channelID, message); err != nil {
		return fmt.Errorf("failed to send alert to %s: %w", channelID, err)
	}
	return nil
}

// PublishReport posts the summary embed with the full markdown attached.
func (o *Outbox) PublishReport(ctx context.Context, rep *mongostore.Report) error {
	settings, err := o.guilds.Get(ctx, rep.GuildID)
	if err != nil {
		return err
	}
	if settings.ReportChannelID == "" {
		return ErrNoReportChannel
	}

	embed := &discordgo.MessageEmbed{
		Title:       truncateRunes(rep.Title, 256),
		URL:         rep.URL,
		Description: truncateRunes(rep.Summary, 4000),
		Color:       colorInfo,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "작성자", Value: mention(rep.AuthorID), Inline: true},
		},
		Timestamp: rep.CreatedAt.Format(time.RFC3339),
	}
	if rep.Note != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "메모", Value: truncateRunes(rep.Note, 1000)})
	}

	_, err = o.session.ChannelMessageSendComplex(settings.ReportChannelID, &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{embed},
		Files: []*discordgo.File{{
			Name:        "report-" + rep.ID[:min(8, len(rep.ID))] + ".md",
			ContentType: "text/markdown",
			Reader:      strings.NewReader(rep.Markdown),
		}},
	})
	if err != nil {
		return fmt.Errorf("failed to post report to %s: %w", settings.ReportChannelID, err)
	}
	return nil
}

// ReportFailed tells the author by DM. Delivery errors are only logged.
func (o *Outbox) ReportFailed(ctx context.Context, guildID, authorID, rawURL string, cause error) {
	text := fmt.Sprintf("보고서를 만들지 못했습니다: %s\n사유: %s", rawURL, failureReason(cause))

	ch, err := o.session.UserChannelCreate(authorID)
	if err == nil {
		_, err = o.session.ChannelMessageSend(ch.ID, text)
	}
	if err != nil {
		o.logger.WarnCtx(ctx, "failed to notify report author",
			logger.Field{Key: "guild_id", Value: guildID},
			logger.Field{Key: "user_id", Value: authorID},
			logger.Field{Key: "error", Value: err})
	}
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, reports.ErrPageTooLarge):
		return "페이지가 너무 큽니다."
	case errors.Is(err, reports.ErrNotHTML):
		return "웹 페이지가 아닙니다."
	case errors.Is(err, reports.ErrForbiddenAddress):
		return "내부 주소는 가져올 수 없습니다."
	case errors.Is(err, reports.ErrEmptyPage):
		return "페이지에 본문이 없습니다."
	case errors.Is(err, ErrNoReportChannel):
		return "보고서 채널이 설정되지 않았습니다."
	default:
		return "페이지를 가져오지 못했습니다."
	}
}
