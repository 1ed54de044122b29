package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/Hongsc0125/donggle-bot/internal/scheduler"
	"github.com/Hongsc0125/donggle-bot/internal/version"
)

func (b *Bot) handleStatus(_ context.Context, i *discordgo.InteractionCreate) error {
	if b.Status == nil {
		b.replyEphemeral(i, "상태 정보를 사용할 수 없습니다.")
		return nil
	}
	return b.respond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{statusEmbed(b.Status())},
			Flags:  discordgo.MessageFlagsEphemeral,
		},
	})
}

func statusEmbed(s Status) *discordgo.MessageEmbed {
	heartbeat := "-"
	if !s.Gateway.LastHeartbeat.IsZero() {
		heartbeat = fmt.Sprintf("<t:%d:R>", s.Gateway.LastHeartbeat.Unix())
	}
	queues := fmt.Sprintf("HIGH %d · MEDIUM %d · LOW %d",
		s.QueueDepth[scheduler.PriorityHigh],
		s.QueueDepth[scheduler.PriorityMedium],
		s.QueueDepth[scheduler.PriorityLow])
	tasks := fmt.Sprintf("완료 %d · 실패 %d · 시간 초과 %d",
		s.Pool.TasksCompleted, s.Pool.TasksFailed, s.Pool.TasksTimedOut)

	return &discordgo.MessageEmbed{
		Title: "동글봇 상태",
		Color: colorInfo,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "게이트웨이", Value: s.Gateway.State.String(), Inline: true},
			{Name: "하트비트", Value: heartbeat, Inline: true},
			{Name: "재연결 시도", Value: fmt.Sprint(s.Gateway.ReconnectAttempts), Inline: true},
			{Name: "대기 작업", Value: queues},
			{Name: "작업", Value: tasks},
			{Name: "알림", Value: fmt.Sprint(s.Alerts), Inline: true},
			{Name: "가동 시간", Value: s.Uptime.Round(time.Second).String(), Inline: true},
		},
		Footer: &discordgo.MessageEmbedFooter{Text: version.Short()},
	}
}
