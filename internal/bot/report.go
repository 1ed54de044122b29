package bot

import (
	"context"
	"errors"

	"github.com/bwmarrin/discordgo"

	"github.com/Hongsc0125/donggle-bot/internal/reports"
)

const (
	reportModalID = "report:submit"
	fieldURL      = "url"
	fieldNote     = "note"
)

// handleReport opens the report form.
func (b *Bot) handleReport(_ context.Context, i *discordgo.InteractionCreate) error {
	return b.respond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: &discordgo.InteractionResponseData{
			CustomID: reportModalID,
			Title:    "링크 보고서",
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{Components: []discordgo.MessageComponent{
					discordgo.TextInput{
						CustomID:    fieldURL,
						Label:       "링크",
						Style:       discordgo.TextInputShort,
						Placeholder: "https://",
						Required:    true,
						MaxLength:   2000,
					},
				}},
				discordgo.ActionsRow{Components: []discordgo.MessageComponent{
					discordgo.TextInput{
						CustomID:  fieldNote,
						Label:     "메모",
						Style:     discordgo.TextInputParagraph,
						Required:  false,
						MaxLength: 500,
					},
				}},
			},
		},
	})
}

// handleReportModal submits the form to the report service.
func (b *Bot) handleReportModal(_ context.Context, i *discordgo.InteractionCreate) error {
	values := modalValues(i.ModalSubmitData())

	err := b.Reports.Submit(reports.Submission{
		GuildID:  i.GuildID,
		AuthorID: userID(i),
		URL:      values[fieldURL],
		Note:     values[fieldNote],
	})
	if errors.Is(err, reports.ErrInvalidURL) {
		b.replyEphemeral(i, "http(s) 링크를 입력해 주세요.")
		return nil
	}
	if err != nil {
		return err
	}
	b.replyEphemeral(i, "보고서를 만드는 중입니다. 완료되면 보고서 채널에 올라갑니다.")
	return nil
}

func modalValues(data discordgo.ModalSubmitInteractionData) map[string]string {
	values := make(map[string]string)
	for _, c := range data.Components {
		row, ok := c.(*discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, inner := range row.Components {
			if input, ok := inner.(*discordgo.TextInput); ok {
				values[input.CustomID] = input.Value
			}
		}
	}
	return values
}
