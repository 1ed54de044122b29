package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/bwmarrin/discordgo"

	"github.com/Hongsc0125/donggle-bot/internal/logger"
	"github.com/Hongsc0125/donggle-bot/internal/scheduler"
)

// HandleVoiceState creates a room when a member enters the lobby (HIGH) and
// schedules deletion of a room the member left empty (LOW).
func (b *Bot) HandleVoiceState(v *discordgo.VoiceStateUpdate) {
	if v.VoiceState == nil || v.GuildID == "" {
		return
	}
	ctx := b.ctx

	var before string
	if v.BeforeUpdate != nil {
		before = v.BeforeUpdate.ChannelID
	}
	after := v.ChannelID
	if before == after {
		return
	}

	if before != "" {
		b.checkEmptyRoom(ctx, v.GuildID, before)
	}
	if after == "" {
		return
	}

	settings, err := b.guildSettings(ctx, v.GuildID)
	if err != nil {
		b.logger.ErrorCtx(ctx, "failed to load guild settings", err, logger.Field{Key: "guild_id", Value: v.GuildID})
		return
	}
	if settings.LobbyChannelID == "" || after != settings.LobbyChannelID {
		return
	}

	guildID, uid := v.GuildID, v.UserID
	name := "🔊 음성 채널"
	if v.Member != nil && v.Member.User != nil {
		name = "🔊 " + firstNonEmpty(v.Member.Nick, v.Member.User.GlobalName, v.Member.User.Username) + "의 방"
	}
	b.Dispatcher.Schedule(scheduler.PriorityHigh, "voice.create", func(ctx context.Context) error {
		return b.createRoom(ctx, guildID, uid, name)
	})
}

func (b *Bot) createRoom(ctx context.Context, guildID, uid, name string) error {
	ch, err := b.Session.GuildChannelCreateComplex(guildID, discordgo.GuildChannelCreateData{
		Name: truncateRunes(name, 100),
		Type: discordgo.ChannelTypeGuildVoice,
	})
	if err != nil {
		return fmt.Errorf("failed to create voice room: %w", err)
	}
	if err := b.TempChannels.Add(ctx, guildID, ch.ID); err != nil {
		return err
	}
	if err := b.Session.GuildMemberMove(guildID, uid, &ch.ID); err != nil {
		return fmt.Errorf("failed to move member into %s: %w", ch.ID, err)
	}
	b.logger.InfoCtx(ctx, "voice room created",
		logger.Field{Key: "guild_id", Value: guildID},
		logger.Field{Key: "channel_id", Value: ch.ID},
		logger.Field{Key: "owner_id", Value: uid})
	return nil
}

func (b *Bot) checkEmptyRoom(ctx context.Context, guildID, channelID string) {
	if b.Roster.Occupants(guildID, channelID) > 0 {
		return
	}
	temp, err := b.TempChannels.Contains(ctx, guildID, channelID)
	if err != nil {
		b.logger.ErrorCtx(ctx, "failed to check voice room", err, logger.Field{Key: "channel_id", Value: channelID})
		return
	}
	if !temp {
		return
	}

	b.Dispatcher.Schedule(scheduler.PriorityLow, "voice.cleanup", func(ctx context.Context) error {
		// Кто-то мог зайти, пока задача ждала в очереди
		if b.Roster.Occupants(guildID, channelID) > 0 {
			return nil
		}
		return b.deleteRoom(ctx, guildID, channelID)
	})
}

// SweepRooms deletes the guild's registered rooms that are empty, for
// example rooms left behind while the bot was offline. It runs as a LOW task.
func (b *Bot) SweepRooms(guildID string) {
	b.Dispatcher.Schedule(scheduler.PriorityLow, "voice.sweep", func(ctx context.Context) error {
		ids, err := b.TempChannels.List(ctx, guildID)
		if err != nil {
			return err
		}

		var errs []error
		for _, id := range ids {
			if b.Roster.Occupants(guildID, id) > 0 {
				continue
			}
			if err := b.deleteRoom(ctx, guildID, id); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
}

// deleteRoom deletes the channel and unregisters it. A channel already
// deleted by someone else is only unregistered.
func (b *Bot) deleteRoom(ctx context.Context, guildID, channelID string) error {
	if _, err := b.Session.ChannelDelete(channelID); err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to delete voice room %s: %w", channelID, err)
	}
	if _, err := b.TempChannels.Remove(ctx, guildID, channelID); err != nil {
		return err
	}
	b.logger.InfoCtx(ctx, "voice room deleted",
		logger.Field{Key: "guild_id", Value: guildID},
		logger.Field{Key: "channel_id", Value: channelID})
	return nil
}

func isNotFound(err error) bool {
	var restErr *discordgo.RESTError
	return errors.As(err, &restErr) && restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
