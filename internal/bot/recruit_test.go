package bot

import (
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hongsc0125/donggle-bot/internal/commands"
	"github.com/Hongsc0125/donggle-bot/internal/scheduler"
	"github.com/Hongsc0125/donggle-bot/internal/store/postgres"
)

// startRecruitment runs /recruit as u1 and returns the new recruitment.
func startRecruitment(t *testing.T, h *harness, slots int) *postgres.Recruitment {
	t.Helper()
	h.bot.HandleInteraction(commandInteraction("u1", "recruit",
		strOpt("title", "글라스기브넨 어려움"), intOpt("slots", slots)))

	require.Len(t, h.recruitments.recs, 1)
	for _, rec := range h.recruitments.recs {
		return rec
	}
	return nil
}

func press(h *harness, userID, action, id string) {
	h.bot.HandleInteraction(buttonInteraction(userID, commands.CustomID("recruit", action, id)))
}

func lastEdit(t *testing.T, h *harness) (*discordgo.MessageEmbed, discordgo.ActionsRow) {
	t.Helper()
	require.NotEmpty(t, h.session.edits)
	e := h.session.edits[len(h.session.edits)-1]
	require.NotNil(t, e.Embeds)
	require.NotNil(t, e.Components)
	return (*e.Embeds)[0], (*e.Components)[0].(discordgo.ActionsRow)
}

func TestRecruit_Create(t *testing.T) {
	h := newHarness(t)
	rec := startRecruitment(t, h, 3)

	first := h.session.responses[0]
	assert.Equal(t, discordgo.InteractionResponseDeferredChannelMessageWithSource, first.Type)
	assert.Equal(t, discordgo.MessageFlagsEphemeral, first.Data.Flags)
	assert.Equal(t, scheduler.PriorityMedium, h.dispatcher.prios["recruit.create"])
	assert.NoError(t, h.dispatcher.errs["recruit.create"])

	assert.Equal(t, "u1", rec.LeaderID)
	assert.Equal(t, 3, rec.Slots)
	assert.Equal(t, postgres.RecruitmentOpen, rec.Status)
	assert.NotEmpty(t, rec.MessageID)

	posts := h.session.complex["c1"]
	require.Len(t, posts, 1)
	assert.Equal(t, "글라스기브넨 어려움", posts[0].Embeds[0].Title)
	assert.Contains(t, posts[0].Embeds[0].Description, "1/3")
	row := posts[0].Components[0].(discordgo.ActionsRow)
	require.Len(t, row.Components, 3)
	assert.Equal(t, "recruit:join:"+rec.ID, row.Components[0].(discordgo.Button).CustomID)

	assert.Equal(t, "모집글을 올렸습니다.", h.session.lastReplyEdit())
	assert.Equal(t, []string{"u1"}, h.members.docs[rec.ID].Members)
}

func TestRecruit_SlotsTooSmall(t *testing.T) {
	h := newHarness(t)
	h.bot.HandleInteraction(commandInteraction("u1", "recruit", strOpt("title", "x"), intOpt("slots", 1)))

	assert.Empty(t, h.recruitments.recs)
	assert.Contains(t, h.session.lastReplyContent(), "2명 이상")
}

func TestRecruit_JoinFillsParty(t *testing.T) {
	h := newHarness(t)
	rec := startRecruitment(t, h, 3)

	press(h, "u2", "join", rec.ID)
	assert.Equal(t, "참가했습니다.", h.session.lastReplyContent())
	assert.NotContains(t, h.dispatcher.tasks, "recruit.notify")

	press(h, "u3", "join", rec.ID)
	assert.Equal(t, postgres.RecruitmentFull, h.recruitments.recs[rec.ID].Status)
	assert.Equal(t, scheduler.PriorityHigh, h.dispatcher.prios["recruit.notify"])
	for _, u := range []string{"u1", "u2", "u3"} {
		require.Len(t, h.session.sent["dm-"+u], 1, u)
		assert.Contains(t, h.session.sent["dm-"+u][0], "글라스기브넨 어려움")
	}

	// Смена статуса сразу сбрасывает батч канала, обе правки рисуют последнее состояние
	assert.Equal(t, scheduler.PriorityMedium, h.dispatcher.prios["recruit.flush"])
	assert.Zero(t, h.batcher.Pending("c1"))
	require.Len(t, h.session.edits, 2)
	assert.Equal(t, scheduler.FlushStats{}, h.flush("c1"))

	embed, row := lastEdit(t, h)
	assert.Contains(t, embed.Description, "3/3")
	assert.Contains(t, embed.Description, "모집 완료")
	assert.True(t, row.Components[0].(discordgo.Button).Disabled, "join disabled when full")
	assert.False(t, row.Components[1].(discordgo.Button).Disabled)
}

func TestRecruit_DMFailureDoesNotStopOthers(t *testing.T) {
	h := newHarness(t)
	h.session.dmErr["u2"] = errBoom
	rec := startRecruitment(t, h, 2)

	press(h, "u2", "join", rec.ID)

	assert.NoError(t, h.dispatcher.errs["recruit.notify"])
	assert.Len(t, h.session.sent["dm-u1"], 1)
	assert.Empty(t, h.session.sent["dm-u2"])
}

func TestRecruit_ButtonRejections(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(h *harness, id string)
		user   string
		action string
		want   string
	}{
		{name: "already member", user: "u1", action: "join", want: "이미 참가한 모집입니다."},
		{
			name:   "party full",
			setup:  func(h *harness, id string) { press(h, "u2", "join", id); press(h, "u3", "join", id) },
			user:   "u4",
			action: "join",
			want:   "인원이 모두 찼습니다.",
		},
		{name: "leader leaves", user: "u1", action: "leave", want: "모집자는 나갈 수 없습니다. 마감 버튼을 사용해 주세요."},
		{name: "not a member", user: "u9", action: "leave", want: "참가하지 않은 모집입니다."},
		{name: "close by member", user: "u9", action: "close", want: "모집자만 마감할 수 있습니다."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			rec := startRecruitment(t, h, 3)
			if tt.setup != nil {
				tt.setup(h, rec.ID)
			}

			press(h, tt.user, tt.action, rec.ID)
			assert.Equal(t, tt.want, h.session.lastReplyContent())
		})
	}
}

func TestRecruit_UnknownRecruitment(t *testing.T) {
	h := newHarness(t)
	press(h, "u1", "join", "missing")
	assert.Equal(t, "이미 삭제된 모집글입니다.", h.session.lastReplyContent())
}

func TestRecruit_LeaveReopens(t *testing.T) {
	h := newHarness(t)
	rec := startRecruitment(t, h, 2)

	press(h, "u2", "join", rec.ID)
	require.Equal(t, postgres.RecruitmentFull, h.recruitments.recs[rec.ID].Status)

	press(h, "u2", "leave", rec.ID)
	assert.Equal(t, "모집에서 나갔습니다.", h.session.lastReplyContent())
	assert.Equal(t, postgres.RecruitmentOpen, h.recruitments.recs[rec.ID].Status)

	h.flush("c1")
	embed, row := lastEdit(t, h)
	assert.Contains(t, embed.Description, "1/2")
	assert.False(t, row.Components[0].(discordgo.Button).Disabled)
}

func TestRecruit_Close(t *testing.T) {
	h := newHarness(t)
	rec := startRecruitment(t, h, 3)
	press(h, "u2", "join", rec.ID)

	press(h, "u1", "close", rec.ID)
	assert.Equal(t, "모집을 마감했습니다.", h.session.lastReplyContent())
	assert.Equal(t, postgres.RecruitmentClosed, h.recruitments.recs[rec.ID].Status)

	h.flush("c1")
	embed, row := lastEdit(t, h)
	assert.Contains(t, embed.Description, "마감")
	assert.Contains(t, embed.Fields[0].Value, "<@u2>")
	for _, c := range row.Components {
		assert.True(t, c.(discordgo.Button).Disabled)
	}
	assert.NotContains(t, h.members.docs, rec.ID)

	press(h, "u3", "join", rec.ID)
	assert.Equal(t, "마감된 모집입니다.", h.session.lastReplyContent())
}

func TestRecruit_FlushOnlyOnStatusChange(t *testing.T) {
	tests := []struct {
		name      string
		slots     int
		actions   [][2]string
		wantFlush bool
	}{
		{name: "join below slots", slots: 3, actions: [][2]string{{"u2", "join"}}},
		{name: "leave open party", slots: 3, actions: [][2]string{{"u2", "join"}, {"u2", "leave"}}},
		{name: "join fills party", slots: 2, actions: [][2]string{{"u2", "join"}}, wantFlush: true},
		{name: "leave reopens party", slots: 2, actions: [][2]string{{"u2", "join"}, {"u2", "leave"}}, wantFlush: true},
		{name: "close", slots: 3, actions: [][2]string{{"u1", "close"}}, wantFlush: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			rec := startRecruitment(t, h, tt.slots)
			for _, a := range tt.actions {
				press(h, a[0], a[1], rec.ID)
			}

			_, flushed := h.dispatcher.prios["recruit.flush"]
			assert.Equal(t, tt.wantFlush, flushed)
			if tt.wantFlush {
				assert.Zero(t, h.batcher.Pending("c1"))
				assert.NotEmpty(t, h.session.edits)
			} else {
				assert.Equal(t, len(tt.actions), h.batcher.Pending("c1"))
				assert.Empty(t, h.session.edits)
			}
		})
	}
}

func TestHandleInteraction_GuildOnly(t *testing.T) {
	h := newHarness(t)
	i := commandInteraction("u1", "status")
	i.GuildID = ""

	h.bot.HandleInteraction(i)
	assert.Equal(t, msgGuildOnly, h.session.lastReplyContent())
}
