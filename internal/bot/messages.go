package bot

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/Hongsc0125/donggle-bot/internal/commands"
	mongostore "github.com/Hongsc0125/donggle-bot/internal/store/mongo"
	"github.com/Hongsc0125/donggle-bot/internal/store/postgres"
)

const (
	msgGuildOnly     = "서버 채널에서만 사용할 수 있는 명령어입니다."
	msgInternalError = "처리 중 오류가 발생했습니다. 잠시 후 다시 시도해 주세요."
	msgTryLater      = "잠시 후 다시 시도해 주세요."
)

const (
	colorOpen   = 0x57F287
	colorFull   = 0xFEE75C
	colorClosed = 0x99AAB5
	colorInfo   = 0x5865F2
)

// recruitmentMessage renders the recruitment post with its buttons.
func recruitmentMessage(rec *postgres.Recruitment, doc *mongostore.RecruitmentDoc) (*discordgo.MessageEmbed, []discordgo.MessageComponent) {
	members := []string{}
	if doc != nil {
		members = doc.Members
	}

	mentions := make([]string, 0, len(members))
	for i, m := range members {
		line := fmt.Sprintf("%d. <@%s>", i+1, m)
		if m == rec.LeaderID {
			line += " 👑"
		}
		mentions = append(mentions, line)
	}
	if len(mentions) == 0 {
		mentions = append(mentions, "-")
	}

	color, state := colorOpen, "모집 중"
	switch rec.Status {
	case postgres.RecruitmentFull:
		color, state = colorFull, "모집 완료"
	case postgres.RecruitmentClosed:
		color, state = colorClosed, "마감"
	}

	embed := &discordgo.MessageEmbed{
		Title:       rec.Title,
		Description: fmt.Sprintf("**%s** · %d/%d명", state, len(members), rec.Slots),
		Color:       color,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "참가자", Value: strings.Join(mentions, "\n")},
		},
		Footer: &discordgo.MessageEmbedFooter{Text: "모집 번호 " + rec.ID[:min(8, len(rec.ID))]},
	}

	closed := rec.Status == postgres.RecruitmentClosed
	full := rec.Status == postgres.RecruitmentFull
	buttons := []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{
				Label:    "참가",
				Style:    discordgo.SuccessButton,
				CustomID: commands.CustomID("recruit", "join", rec.ID),
				Disabled: closed || full,
			},
			discordgo.Button{
				Label:    "나가기",
				Style:    discordgo.SecondaryButton,
				CustomID: commands.CustomID("recruit", "leave", rec.ID),
				Disabled: closed,
			},
			discordgo.Button{
				Label:    "마감",
				Style:    discordgo.DangerButton,
				CustomID: commands.CustomID("recruit", "close", rec.ID),
				Disabled: closed,
			},
		}},
	}
	return embed, buttons
}

func mention(userID string) string {
	return "<@" + userID + ">"
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
