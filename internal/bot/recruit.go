package bot

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"

	"github.com/Hongsc0125/donggle-bot/internal/commands"
	"github.com/Hongsc0125/donggle-bot/internal/logger"
	"github.com/Hongsc0125/donggle-bot/internal/scheduler"
	mongostore "github.com/Hongsc0125/donggle-bot/internal/store/mongo"
	"github.com/Hongsc0125/donggle-bot/internal/store/postgres"
)

const maxTitleRunes = 100

// handleRecruit acknowledges /recruit and creates the recruitment in a
// MEDIUM task.
func (b *Bot) handleRecruit(_ context.Context, i *discordgo.InteractionCreate) error {
	_, opts := commands.Options(i.ApplicationCommandData())
	title := truncateRunes(opts["title"].StringValue(), maxTitleRunes)
	slots := int(opts["slots"].IntValue())
	if slots < 2 {
		b.replyEphemeral(i, "인원 수는 2명 이상이어야 합니다.")
		return nil
	}

	if err := b.deferEphemeral(i); err != nil {
		return err
	}

	rec := &postgres.Recruitment{
		ID:        uuid.NewString(),
		GuildID:   i.GuildID,
		ChannelID: i.ChannelID,
		LeaderID:  userID(i),
		Title:     title,
		Slots:     slots,
		Status:    postgres.RecruitmentOpen,
	}
	b.Dispatcher.Schedule(scheduler.PriorityMedium, "recruit.create", func(ctx context.Context) error {
		if err := b.createRecruitment(ctx, rec); err != nil {
			_ = b.editReply(i, msgInternalError)
			return err
		}
		return b.editReply(i, "모집글을 올렸습니다.")
	})
	return nil
}

func (b *Bot) createRecruitment(ctx context.Context, rec *postgres.Recruitment) error {
	if err := b.Recruitments.Create(ctx, rec); err != nil {
		return err
	}
	doc, err := b.Members.Create(ctx, rec.ID, rec.GuildID, rec.LeaderID, rec.Slots)
	if err != nil {
		return err
	}

	embed, buttons := recruitmentMessage(rec, doc)
	msg, err := b.Session.ChannelMessageSendComplex(rec.ChannelID, &discordgo.MessageSend{
		Content:    mention(rec.LeaderID) + " 님의 파티 모집",
		Embeds:     []*discordgo.MessageEmbed{embed},
		Components: buttons,
	})
	if err != nil {
		return fmt.Errorf("failed to post recruitment: %w", err)
	}
	rec.MessageID = msg.ID
	return b.Recruitments.SetMessage(ctx, rec.ID, msg.ID)
}

// handleRecruitButton handles recruit:<action>:<id>.
func (b *Bot) handleRecruitButton(ctx context.Context, i *discordgo.InteractionCreate) error {
	parts := commands.ParseCustomID(i.MessageComponentData().CustomID)
	if len(parts) != 3 {
		return fmt.Errorf("%w: %q", commands.ErrUnknownInteraction, i.MessageComponentData().CustomID)
	}
	action, id := parts[1], parts[2]

	rec, err := b.Recruitments.Get(ctx, id)
	if errors.Is(err, postgres.ErrNotFound) {
		b.replyEphemeral(i, "이미 삭제된 모집글입니다.")
		return nil
	}
	if err != nil {
		return err
	}
	if rec.Status == postgres.RecruitmentClosed {
		b.replyEphemeral(i, "마감된 모집입니다.")
		return nil
	}

	switch action {
	case "join":
		return b.joinRecruitment(ctx, i, rec)
	case "leave":
		return b.leaveRecruitment(ctx, i, rec)
	case "close":
		return b.closeRecruitment(ctx, i, rec)
	default:
		return fmt.Errorf("%w: recruit action %q", commands.ErrUnknownInteraction, action)
	}
}

func (b *Bot) joinRecruitment(ctx context.Context, i *discordgo.InteractionCreate, rec *postgres.Recruitment) error {
	doc, err := b.Members.Join(ctx, rec.ID, userID(i))
	switch {
	case errors.Is(err, mongostore.ErrAlreadyMember):
		b.replyEphemeral(i, "이미 참가한 모집입니다.")
		return nil
	case errors.Is(err, mongostore.ErrRecruitmentFull):
		b.replyEphemeral(i, "인원이 모두 찼습니다.")
		return nil
	case errors.Is(err, mongostore.ErrNotFound):
		b.replyEphemeral(i, "마감된 모집입니다.")
		return nil
	case err != nil:
		return err
	}

	b.replyEphemeral(i, "참가했습니다.")

	if doc.Full() {
		if err := b.Recruitments.SetStatus(ctx, rec.ID, postgres.RecruitmentFull); err != nil {
			return err
		}
		rec.Status = postgres.RecruitmentFull
		b.notifyFullParty(rec, doc.Members)
		b.queueRecruitmentEdit(rec)
		b.flushChannel(rec.ChannelID)
		return nil
	}
	b.queueRecruitmentEdit(rec)
	return nil
}

func (b *Bot) leaveRecruitment(ctx context.Context, i *discordgo.InteractionCreate, rec *postgres.Recruitment) error {
	_, err := b.Members.Leave(ctx, rec.ID, userID(i))
	switch {
	case errors.Is(err, mongostore.ErrLeaderCannotLeave):
		b.replyEphemeral(i, "모집자는 나갈 수 없습니다. 마감 버튼을 사용해 주세요.")
		return nil
	case errors.Is(err, mongostore.ErrNotMember):
		b.replyEphemeral(i, "참가하지 않은 모집입니다.")
		return nil
	case err != nil:
		return err
	}

	b.replyEphemeral(i, "모집에서 나갔습니다.")

	if rec.Status == postgres.RecruitmentFull {
		if err := b.Recruitments.SetStatus(ctx, rec.ID, postgres.RecruitmentOpen); err != nil {
			return err
		}
		rec.Status = postgres.RecruitmentOpen
		b.queueRecruitmentEdit(rec)
		b.flushChannel(rec.ChannelID)
		return nil
	}
	b.queueRecruitmentEdit(rec)
	return nil
}

func (b *Bot) closeRecruitment(ctx context.Context, i *discordgo.InteractionCreate, rec *postgres.Recruitment) error {
	if userID(i) != rec.LeaderID {
		b.replyEphemeral(i, "모집자만 마감할 수 있습니다.")
		return nil
	}

	doc, err := b.Members.Get(ctx, rec.ID)
	if err != nil && !errors.Is(err, mongostore.ErrNotFound) {
		return err
	}
	if err := b.Recruitments.SetStatus(ctx, rec.ID, postgres.RecruitmentClosed); err != nil {
		return err
	}
	rec.Status = postgres.RecruitmentClosed

	b.replyEphemeral(i, "모집을 마감했습니다.")

	b.Batcher.Add(rec.ChannelID, func(ctx context.Context) error {
		if err := b.editRecruitment(rec, doc); err != nil {
			return err
		}
		return b.Members.Delete(ctx, rec.ID)
	})
	b.flushChannel(rec.ChannelID)
	return nil
}

// flushChannel runs the channel's pending edits now instead of waiting for
// the sweep. Used when the recruitment status changes. Item failures are
// reported by the batcher.
func (b *Bot) flushChannel(channelID string) {
	b.Dispatcher.Schedule(scheduler.PriorityMedium, "recruit.flush", func(ctx context.Context) error {
		b.Batcher.Flush(ctx, channelID)
		return nil
	})
}

// queueRecruitmentEdit re-renders the post from the stored state as it is
// when the batch runs, so coalesced edits converge on the latest state.
func (b *Bot) queueRecruitmentEdit(rec *postgres.Recruitment) {
	id := rec.ID
	b.Batcher.Add(rec.ChannelID, func(ctx context.Context) error {
		current, err := b.Recruitments.Get(ctx, id)
		if err != nil {
			return err
		}
		doc, err := b.Members.Get(ctx, id)
		if errors.Is(err, mongostore.ErrNotFound) && current.Status == postgres.RecruitmentClosed {
			// Закрытие уже отрисовало итоговый список
			return nil
		}
		if err != nil {
			return err
		}
		return b.editRecruitment(current, doc)
	})
}

func (b *Bot) editRecruitment(rec *postgres.Recruitment, doc *mongostore.RecruitmentDoc) error {
	if rec.MessageID == "" {
		return nil
	}
	embed, buttons := recruitmentMessage(rec, doc)
	embeds := []*discordgo.MessageEmbed{embed}
	_, err := b.Session.ChannelMessageEditComplex(&discordgo.MessageEdit{
		ID:         rec.MessageID,
		Channel:    rec.ChannelID,
		Embeds:     &embeds,
		Components: &buttons,
	})
	if err != nil {
		return fmt.Errorf("failed to edit recruitment %s: %w", rec.ID, err)
	}
	return nil
}

// notifyFullParty DMs every member as one HIGH task; a member with closed DMs
// does not stop the others.
func (b *Bot) notifyFullParty(rec *postgres.Recruitment, members []string) {
	text := fmt.Sprintf("🎉 **%s** 파티 인원이 모두 모였습니다! <#%s> 채널을 확인해 주세요.", rec.Title, rec.ChannelID)
	b.Dispatcher.Schedule(scheduler.PriorityHigh, "recruit.notify", func(ctx context.Context) error {
		fns := make([]func(context.Context) (string, error), 0, len(members))
		for _, m := range members {
			fns = append(fns, func(context.Context) (string, error) {
				return m, b.sendDM(m, text)
			})
		}
		sent := scheduler.RunAll(ctx, b.logger, fns)
		b.logger.InfoCtx(ctx, "party full notifications sent",
			logger.Field{Key: "recruitment_id", Value: rec.ID},
			logger.Field{Key: "sent", Value: len(sent)},
			logger.Field{Key: "members", Value: len(members)})
		return nil
	})
}

func (b *Bot) sendDM(userID, text string) error {
	ch, err := b.Session.UserChannelCreate(userID)
	if err != nil {
		return fmt.Errorf("failed to open DM with %s: %w", userID, err)
	}
	if _, err := b.Session.ChannelMessageSend(ch.ID, text); err != nil {
		return fmt.Errorf("failed to send DM to %s: %w", userID, err)
	}
	return nil
}
