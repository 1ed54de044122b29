package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/Hongsc0125/donggle-bot/internal/alerts"
	"github.com/Hongsc0125/donggle-bot/internal/commands"
	"github.com/Hongsc0125/donggle-bot/internal/store/postgres"
)

// handleAlert serves /alert add|remove|list. Alerts go to the guild's alert
// channel, or to the channel the command was used in.
func (b *Bot) handleAlert(ctx context.Context, i *discordgo.InteractionCreate) error {
	sub, opts := commands.Options(i.ApplicationCommandData())

	switch sub {
	case "add":
		settings, err := b.guildSettings(ctx, i.GuildID)
		if err != nil {
			return err
		}
		channelID := settings.AlertChannelID
		if channelID == "" {
			channelID = i.ChannelID
		}

		a, err := b.Alerts.Add(ctx, i.GuildID, channelID, opts["schedule"].StringValue(), opts["message"].StringValue(), userID(i))
		switch {
		case errors.Is(err, alerts.ErrInvalidSpec):
			b.replyEphemeral(i, "cron 형식이 올바르지 않습니다. 예: `0 21 * * *` (매일 21시)")
			return nil
		case errors.Is(err, alerts.ErrEmptyMessage):
			b.replyEphemeral(i, "알림 메시지를 입력해 주세요.")
			return nil
		case errors.Is(err, alerts.ErrTooManyAlerts):
			b.replyEphemeral(i, "이 서버에 등록할 수 있는 알림 수를 초과했습니다.")
			return nil
		case err != nil:
			return err
		}
		b.replyEphemeral(i, fmt.Sprintf("알림 #%d 을(를) 등록했습니다: `%s` → <#%s>", a.ID, a.Spec, a.ChannelID))
		return nil

	case "remove":
		id := opts["id"].IntValue()
		err := b.Alerts.Remove(ctx, i.GuildID, id)
		if errors.Is(err, postgres.ErrNotFound) {
			b.replyEphemeral(i, fmt.Sprintf("알림 #%d 을(를) 찾을 수 없습니다.", id))
			return nil
		}
		if err != nil {
			return err
		}
		b.replyEphemeral(i, fmt.Sprintf("알림 #%d 을(를) 삭제했습니다.", id))
		return nil

	case "list":
		entries, err := b.Alerts.List(ctx, i.GuildID)
		if err != nil {
			return err
		}
		b.replyEphemeral(i, formatAlerts(entries))
		return nil
	}
	return fmt.Errorf("%w: alert %q", commands.ErrUnknownInteraction, sub)
}

func formatAlerts(entries []alerts.Entry) string {
	if len(entries) == 0 {
		return "등록된 알림이 없습니다."
	}
	var sb strings.Builder
	sb.WriteString("**등록된 알림**\n")
	for _, e := range entries {
		next := "-"
		if !e.Next.IsZero() {
			next = fmt.Sprintf("<t:%d:R>", e.Next.Unix())
		}
		fmt.Fprintf(&sb, "#%d `%s` <#%s> 다음: %s\n> %s\n", e.ID, e.Spec, e.ChannelID, next, truncateRunes(e.Message, 80))
	}
	return truncateRunes(sb.String(), 2000)
}
