package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bwmarrin/discordgo"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Hongsc0125/donggle-bot/internal/alerts"
	"github.com/Hongsc0125/donggle-bot/internal/cache"
	"github.com/Hongsc0125/donggle-bot/internal/commands"
	"github.com/Hongsc0125/donggle-bot/internal/logger"
	"github.com/Hongsc0125/donggle-bot/internal/ranking"
	"github.com/Hongsc0125/donggle-bot/internal/reports"
	"github.com/Hongsc0125/donggle-bot/internal/scheduler"
	mongostore "github.com/Hongsc0125/donggle-bot/internal/store/mongo"
	"github.com/Hongsc0125/donggle-bot/internal/store/postgres"
)

// fakeSession records every REST call.
type fakeSession struct {
	mu sync.Mutex

	responses   []*discordgo.InteractionResponse
	replyEdits  []string
	sent        map[string][]string
	complex     map[string][]*discordgo.MessageSend
	edits       []*discordgo.MessageEdit
	deleted     []string
	dmChannels  map[string]string
	nicknames   map[string]string
	roles       map[string][]string
	moves       map[string]string
	created     []discordgo.GuildChannelCreateData
	closedRooms []string
	history     []*discordgo.Message

	dmErr     map[string]error
	deleteErr map[string]error
	nickErr   error
	editErr   error
	nextID    int
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		sent:       map[string][]string{},
		complex:    map[string][]*discordgo.MessageSend{},
		dmChannels: map[string]string{},
		nicknames:  map[string]string{},
		roles:      map[string][]string{},
		moves:      map[string]string{},
		dmErr:      map[string]error{},
	}
}

func (f *fakeSession) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s%d", prefix, f.nextID)
}

func (f *fakeSession) InteractionRespond(_ *discordgo.Interaction, resp *discordgo.InteractionResponse, _ ...discordgo.RequestOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses = append(f.responses, resp)
	return nil
}

func (f *fakeSession) InteractionResponseEdit(_ *discordgo.Interaction, edit *discordgo.WebhookEdit, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if edit.Content != nil {
		f.replyEdits = append(f.replyEdits, *edit.Content)
	}
	return &discordgo.Message{}, nil
}

func (f *fakeSession) ChannelMessageSend(channelID, content string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent[channelID] = append(f.sent[channelID], content)
	return &discordgo.Message{ID: f.id("m"), ChannelID: channelID, Content: content}, nil
}

func (f *fakeSession) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, file := range data.Files {
		// Reader одноразовый; сохраняем содержимое для проверок
		body, _ := io.ReadAll(file.Reader)
		file.Reader = nil
		file.Name += "|" + string(body)
	}
	f.complex[channelID] = append(f.complex[channelID], data)
	return &discordgo.Message{ID: f.id("m"), ChannelID: channelID}, nil
}

func (f *fakeSession) ChannelMessageEditComplex(m *discordgo.MessageEdit, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.editErr != nil {
		return nil, f.editErr
	}
	f.edits = append(f.edits, m)
	return &discordgo.Message{ID: m.ID, ChannelID: m.Channel}, nil
}

func (f *fakeSession) ChannelMessages(_ string, limit int, _, _, _ string, _ ...discordgo.RequestOption) ([]*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.history[:min(limit, len(f.history))], nil
}

func (f *fakeSession) ChannelMessageDelete(_, messageID string, _ ...discordgo.RequestOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, messageID)
	return nil
}

func (f *fakeSession) UserChannelCreate(recipientID string, _ ...discordgo.RequestOption) (*discordgo.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.dmErr[recipientID]; err != nil {
		return nil, err
	}
	id := "dm-" + recipientID
	f.dmChannels[recipientID] = id
	return &discordgo.Channel{ID: id}, nil
}

func (f *fakeSession) GuildMemberNickname(_, userID, nickname string, _ ...discordgo.RequestOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.nickErr != nil {
		return f.nickErr
	}
	f.nicknames[userID] = nickname
	return nil
}

func (f *fakeSession) GuildMemberRoleAdd(_, userID, roleID string, _ ...discordgo.RequestOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.roles[userID] = append(f.roles[userID], roleID)
	return nil
}

func (f *fakeSession) GuildMemberMove(_ string, userID string, channelID *string, _ ...discordgo.RequestOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.moves[userID] = *channelID
	return nil
}

func (f *fakeSession) GuildChannelCreateComplex(_ string, data discordgo.GuildChannelCreateData, _ ...discordgo.RequestOption) (*discordgo.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, data)
	return &discordgo.Channel{ID: f.id("vc"), Name: data.Name, Type: data.Type}, nil
}

func (f *fakeSession) ChannelDelete(channelID string, _ ...discordgo.RequestOption) (*discordgo.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.deleteErr[channelID]; err != nil {
		return nil, err
	}
	f.closedRooms = append(f.closedRooms, channelID)
	return &discordgo.Channel{ID: channelID}, nil
}

func (f *fakeSession) lastResponse() *discordgo.InteractionResponse {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.responses) == 0 {
		return nil
	}
	return f.responses[len(f.responses)-1]
}

func (f *fakeSession) lastReplyContent() string {
	r := f.lastResponse()
	if r == nil || r.Data == nil {
		return ""
	}
	return r.Data.Content
}

func (f *fakeSession) lastReplyEdit() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.replyEdits) == 0 {
		return ""
	}
	return f.replyEdits[len(f.replyEdits)-1]
}

// recordingDispatcher runs tasks inline and remembers their priorities.
type recordingDispatcher struct {
	mu    sync.Mutex
	tasks []string
	prios map[string]scheduler.Priority
	errs  map[string]error
}

func newRecordingDispatcher() *recordingDispatcher {
	return &recordingDispatcher{prios: map[string]scheduler.Priority{}, errs: map[string]error{}}
}

func (d *recordingDispatcher) Schedule(p scheduler.Priority, name string, fn scheduler.TaskFunc) {
	d.mu.Lock()
	d.tasks = append(d.tasks, name)
	d.prios[name] = p
	d.mu.Unlock()

	err := fn(context.Background())

	d.mu.Lock()
	d.errs[name] = err
	d.mu.Unlock()
}

type fakeGuilds struct {
	settings map[string]*postgres.GuildSettings
}

func (f *fakeGuilds) Get(_ context.Context, guildID string) (*postgres.GuildSettings, error) {
	s, ok := f.settings[guildID]
	if !ok {
		return nil, fmt.Errorf("failed to get guild %s: %w", guildID, postgres.ErrNotFound)
	}
	return s, nil
}

type fakeRecruitments struct {
	mu   sync.Mutex
	recs map[string]*postgres.Recruitment
}

func (f *fakeRecruitments) Create(_ context.Context, rec *postgres.Recruitment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec.CreatedAt = time.Now()
	cp := *rec
	f.recs[rec.ID] = &cp
	return nil
}

func (f *fakeRecruitments) Get(_ context.Context, id string) (*postgres.Recruitment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.recs[id]
	if !ok {
		return nil, postgres.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (f *fakeRecruitments) SetMessage(_ context.Context, id, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recs[id].MessageID = messageID
	return nil
}

func (f *fakeRecruitments) SetStatus(_ context.Context, id, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recs[id].Status = status
	return nil
}

// fakeMembers follows the member rules of the mongo store.
type fakeMembers struct {
	mu   sync.Mutex
	docs map[string]*mongostore.RecruitmentDoc
}

func (f *fakeMembers) Create(_ context.Context, id, guildID, leaderID string, slots int) (*mongostore.RecruitmentDoc, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc := &mongostore.RecruitmentDoc{ID: id, GuildID: guildID, LeaderID: leaderID, Slots: slots, Members: []string{leaderID}}
	f.docs[id] = doc
	return f.copy(doc), nil
}

func (f *fakeMembers) Get(_ context.Context, id string) (*mongostore.RecruitmentDoc, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok {
		return nil, mongostore.ErrNotFound
	}
	return f.copy(doc), nil
}

func (f *fakeMembers) Join(_ context.Context, id, userID string) (*mongostore.RecruitmentDoc, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok {
		return nil, mongostore.ErrNotFound
	}
	for _, m := range doc.Members {
		if m == userID {
			return f.copy(doc), mongostore.ErrAlreadyMember
		}
	}
	if doc.Full() {
		return f.copy(doc), mongostore.ErrRecruitmentFull
	}
	doc.Members = append(doc.Members, userID)
	return f.copy(doc), nil
}

func (f *fakeMembers) Leave(_ context.Context, id, userID string) (*mongostore.RecruitmentDoc, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok {
		return nil, mongostore.ErrNotFound
	}
	if doc.LeaderID == userID {
		return f.copy(doc), mongostore.ErrLeaderCannotLeave
	}
	for i, m := range doc.Members {
		if m == userID {
			doc.Members = append(doc.Members[:i], doc.Members[i+1:]...)
			return f.copy(doc), nil
		}
	}
	return f.copy(doc), mongostore.ErrNotMember
}

func (f *fakeMembers) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.docs, id)
	return nil
}

func (f *fakeMembers) copy(doc *mongostore.RecruitmentDoc) *mongostore.RecruitmentDoc {
	cp := *doc
	cp.Members = append([]string(nil), doc.Members...)
	return &cp
}

type fakeAuth struct {
	mu      sync.Mutex
	records map[string]mongostore.AuthRecord
}

func (f *fakeAuth) Upsert(_ context.Context, rec mongostore.AuthRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[rec.GuildID+"/"+rec.UserID] = rec
	return nil
}

func (f *fakeAuth) Get(_ context.Context, guildID, userID string) (*mongostore.AuthRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[guildID+"/"+userID]
	if !ok {
		return nil, mongostore.ErrNotFound
	}
	return &rec, nil
}

func (f *fakeAuth) FindByNickname(_ context.Context, guildID, nickname string) (*mongostore.AuthRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rec := range f.records {
		if rec.GuildID == guildID && rec.Nickname == nickname {
			return &rec, nil
		}
	}
	return nil, mongostore.ErrNotFound
}

type fakeRanking struct {
	chars map[string]*ranking.Character
	err   error
	calls int
}

func (f *fakeRanking) Lookup(_ context.Context, nickname string) (*ranking.Character, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	c, ok := f.chars[nickname]
	if !ok {
		return nil, ranking.ErrNotFound
	}
	return c, nil
}

type mockAlerts struct{ mock.Mock }

func (m *mockAlerts) Add(ctx context.Context, guildID, channelID, spec, message, createdBy string) (*postgres.Alert, error) {
	args := m.Called(ctx, guildID, channelID, spec, message, createdBy)
	a, _ := args.Get(0).(*postgres.Alert)
	return a, args.Error(1)
}

func (m *mockAlerts) Remove(ctx context.Context, guildID string, id int64) error {
	return m.Called(ctx, guildID, id).Error(0)
}

func (m *mockAlerts) List(ctx context.Context, guildID string) ([]alerts.Entry, error) {
	args := m.Called(ctx, guildID)
	e, _ := args.Get(0).([]alerts.Entry)
	return e, args.Error(1)
}

type mockReports struct{ mock.Mock }

func (m *mockReports) Submit(sub reports.Submission) error {
	return m.Called(sub).Error(0)
}

type fakeRoster struct {
	mu        sync.Mutex
	occupants map[string]int
}

func (f *fakeRoster) Occupants(_, channelID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.occupants[channelID]
}

type harness struct {
	bot          *Bot
	session      *fakeSession
	dispatcher   *recordingDispatcher
	batcher      *scheduler.Batcher
	guilds       *fakeGuilds
	recruitments *fakeRecruitments
	members      *fakeMembers
	auth         *fakeAuth
	ranking      *fakeRanking
	alerts       *mockAlerts
	reports      *mockReports
	roster       *fakeRoster
	temp         *cache.TempChannels
	redis        *miniredis.Miniredis
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	h := &harness{
		session:      newFakeSession(),
		dispatcher:   newRecordingDispatcher(),
		batcher:      scheduler.NewBatcher(scheduler.BatcherConfig{Threshold: 100, SweepInterval: time.Hour}, scheduler.NopObserver{}, logger.Nop()),
		guilds:       &fakeGuilds{settings: map[string]*postgres.GuildSettings{}},
		recruitments: &fakeRecruitments{recs: map[string]*postgres.Recruitment{}},
		members:      &fakeMembers{docs: map[string]*mongostore.RecruitmentDoc{}},
		auth:         &fakeAuth{records: map[string]mongostore.AuthRecord{}},
		ranking:      &fakeRanking{chars: map[string]*ranking.Character{}},
		alerts:       &mockAlerts{},
		reports:      &mockReports{},
		roster:       &fakeRoster{occupants: map[string]int{}},
		temp:         cache.NewTempChannels(client, "test:"),
		redis:        mr,
	}

	catalog, err := commands.Load()
	require.NoError(t, err)

	h.bot, err = New(context.Background(), Deps{
		Session:      h.session,
		Roster:       h.roster,
		Dispatcher:   h.dispatcher,
		Batcher:      h.batcher,
		Guilds:       h.guilds,
		Recruitments: h.recruitments,
		Members:      h.members,
		Auth:         h.auth,
		Cooldowns:    cache.NewCooldowns(client, "test:"),
		TempChannels: h.temp,
		Ranking:      h.ranking,
		Alerts:       h.alerts,
		Reports:      h.reports,
		Cooldown:     time.Minute,
	}, catalog, logger.Nop())
	require.NoError(t, err)
	return h
}

func (h *harness) flush(channelID string) scheduler.FlushStats {
	return h.batcher.Flush(context.Background(), channelID)
}

func member(id string) *discordgo.Member {
	return &discordgo.Member{User: &discordgo.User{ID: id, Username: "user-" + id}}
}

func commandInteraction(userID, name string, opts ...*discordgo.ApplicationCommandInteractionDataOption) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		ID:        "i-" + name,
		Type:      discordgo.InteractionApplicationCommand,
		GuildID:   "g1",
		ChannelID: "c1",
		Member:    member(userID),
		Data:      discordgo.ApplicationCommandInteractionData{Name: name, Options: opts},
	}}
}

func buttonInteraction(userID, customID string) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		ID:        "i-" + customID,
		Type:      discordgo.InteractionMessageComponent,
		GuildID:   "g1",
		ChannelID: "c1",
		Member:    member(userID),
		Data:      discordgo.MessageComponentInteractionData{CustomID: customID, ComponentType: discordgo.ButtonComponent},
	}}
}

func strOpt(name, value string) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{Name: name, Type: discordgo.ApplicationCommandOptionString, Value: value}
}

func intOpt(name string, value int) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{Name: name, Type: discordgo.ApplicationCommandOptionInteger, Value: float64(value)}
}

func subOpt(name string, opts ...*discordgo.ApplicationCommandInteractionDataOption) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{Name: name, Type: discordgo.ApplicationCommandOptionSubCommand, Options: opts}
}

var errBoom = errors.New("boom")
