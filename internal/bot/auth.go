package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/Hongsc0125/donggle-bot/internal/commands"
	"github.com/Hongsc0125/donggle-bot/internal/logger"
	"github.com/Hongsc0125/donggle-bot/internal/nickname"
	"github.com/Hongsc0125/donggle-bot/internal/ranking"
	"github.com/Hongsc0125/donggle-bot/internal/scheduler"
	mongostore "github.com/Hongsc0125/donggle-bot/internal/store/mongo"
)

const authScope = "auth"

// handleAuth checks the nickname and cooldown, defers the reply and verifies
// the member in a MEDIUM task.
func (b *Bot) handleAuth(ctx context.Context, i *discordgo.InteractionCreate) error {
	_, opts := commands.Options(i.ApplicationCommandData())
	nick, err := nickname.Clean(opts["nickname"].StringValue())
	if err != nil {
		b.replyEphemeral(i, nickname.Message(err))
		return nil
	}

	uid := userID(i)
	ok, err := b.Cooldowns.Acquire(ctx, authScope, uid, b.Cooldown)
	if err != nil {
		return err
	}
	if !ok {
		left, err := b.Cooldowns.Remaining(ctx, authScope, uid)
		if err != nil {
			return err
		}
		b.replyEphemeral(i, fmt.Sprintf("%d초 후에 다시 시도해 주세요.", int(left.Round(time.Second).Seconds())))
		return nil
	}

	if err := b.deferEphemeral(i); err != nil {
		return err
	}

	b.Dispatcher.Schedule(scheduler.PriorityMedium, "auth.verify", func(ctx context.Context) error {
		reply, err := b.verify(ctx, i.GuildID, uid, nick)
		if err != nil {
			// Сбой не по вине пользователя: снимаем кулдаун
			if relErr := b.Cooldowns.Release(ctx, authScope, uid); relErr != nil {
				b.logger.WarnCtx(ctx, "failed to release cooldown", logger.Field{Key: "error", Value: relErr})
			}
			_ = b.editReply(i, msgTryLater)
			return err
		}
		return b.editReply(i, reply)
	})
	return nil
}

// verify returns the reply for the member. Rejections are replies, not errors.
func (b *Bot) verify(ctx context.Context, guildID, uid, nick string) (string, error) {
	owner, err := b.Auth.FindByNickname(ctx, guildID, nick)
	switch {
	case err == nil && owner.UserID != uid:
		return "이미 다른 멤버가 인증한 닉네임입니다.", nil
	case err != nil && !errors.Is(err, mongostore.ErrNotFound):
		return "", err
	}

	char, err := b.Ranking.Lookup(ctx, nick)
	if errors.Is(err, ranking.ErrNotFound) {
		return fmt.Sprintf("랭킹에서 **%s** 캐릭터를 찾을 수 없습니다.", nick), nil
	}
	if err != nil {
		return "", err
	}

	if err := b.Session.GuildMemberNickname(guildID, uid, char.Nickname); err != nil {
		return "", fmt.Errorf("failed to set nickname: %w", err)
	}
	settings, err := b.guildSettings(ctx, guildID)
	if err != nil {
		return "", err
	}
	if settings.AuthRoleID != "" {
		if err := b.Session.GuildMemberRoleAdd(guildID, uid, settings.AuthRoleID); err != nil {
			return "", fmt.Errorf("failed to add auth role: %w", err)
		}
	}

	prev, err := b.Auth.Get(ctx, guildID, uid)
	if err != nil && !errors.Is(err, mongostore.ErrNotFound) {
		return "", err
	}

	err = b.Auth.Upsert(ctx, mongostore.AuthRecord{
		GuildID:    guildID,
		UserID:     uid,
		Nickname:   char.Nickname,
		Server:     char.Server,
		Class:      char.Class,
		VerifiedAt: time.Now().UTC(),
	})
	if err != nil {
		return "", err
	}

	fields := []logger.Field{
		{Key: "guild_id", Value: guildID},
		{Key: "user_id", Value: uid},
		{Key: "nickname", Value: char.Nickname},
	}
	reply := fmt.Sprintf("✅ 인증 완료: **%s** (%s · %s · %d위)", char.Nickname, char.Server, char.Class, char.Rank)
	if prev != nil && prev.Nickname != char.Nickname {
		fields = append(fields, logger.Field{Key: "previous_nickname", Value: prev.Nickname})
		reply += fmt.Sprintf("\n이전 닉네임: %s", prev.Nickname)
	}
	b.logger.InfoCtx(ctx, "member verified", fields...)
	return reply, nil
}
