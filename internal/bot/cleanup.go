package bot

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/Hongsc0125/donggle-bot/internal/commands"
	"github.com/Hongsc0125/donggle-bot/internal/scheduler"
)

const maxCleanup = 100

// handleCleanup fetches the last messages of the channel in a LOW task and
// queues one delete per message on the channel batcher.
func (b *Bot) handleCleanup(_ context.Context, i *discordgo.InteractionCreate) error {
	_, opts := commands.Options(i.ApplicationCommandData())
	count := min(max(int(opts["count"].IntValue()), 1), maxCleanup)

	if err := b.deferEphemeral(i); err != nil {
		return err
	}

	channelID := i.ChannelID
	b.Dispatcher.Schedule(scheduler.PriorityLow, "cleanup.fetch", func(context.Context) error {
		msgs, err := b.Session.ChannelMessages(channelID, count, "", "", "")
		if err != nil {
			_ = b.editReply(i, msgInternalError)
			return fmt.Errorf("failed to list messages of %s: %w", channelID, err)
		}
		for _, m := range msgs {
			b.Batcher.Add(channelID, func(context.Context) error {
				if err := b.Session.ChannelMessageDelete(channelID, m.ID); err != nil {
					return fmt.Errorf("failed to delete message %s: %w", m.ID, err)
				}
				return nil
			})
		}
		return b.editReply(i, fmt.Sprintf("메시지 %d개 삭제를 예약했습니다.", len(msgs)))
	})
	return nil
}
