package bot

import (
	"github.com/bwmarrin/discordgo"
)

// Session is the part of *discordgo.Session the bot calls. Tests use a fake.
type Session interface {
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	InteractionResponseEdit(interaction *discordgo.Interaction, newresp *discordgo.WebhookEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)

	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageEditComplex(m *discordgo.MessageEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessages(channelID string, limit int, beforeID, afterID, aroundID string, options ...discordgo.RequestOption) ([]*discordgo.Message, error)
	ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error
	UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)

	GuildMemberNickname(guildID, userID, nickname string, options ...discordgo.RequestOption) error
	GuildMemberRoleAdd(guildID, userID, roleID string, options ...discordgo.RequestOption) error
	GuildMemberMove(guildID string, userID string, channelID *string, options ...discordgo.RequestOption) error
	GuildChannelCreateComplex(guildID string, data discordgo.GuildChannelCreateData, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelDelete(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
}

// VoiceRoster answers how many members sit in a voice channel.
type VoiceRoster interface {
	Occupants(guildID, channelID string) int
}

// StateRoster reads voice occupancy from the discordgo state cache.
type StateRoster struct {
	State *discordgo.State
}

func (r StateRoster) Occupants(guildID, channelID string) int {
	if r.State == nil {
		return 0
	}
	g, err := r.State.Guild(guildID)
	if err != nil {
		return 0
	}

	r.State.RLock()
	defer r.State.RUnlock()
	n := 0
	for _, vs := range g.VoiceStates {
		if vs.ChannelID == channelID {
			n++
		}
	}
	return n
}
