package alerts

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Hongsc0125/donggle-bot/internal/config"
	"github.com/Hongsc0125/donggle-bot/internal/logger"
	"github.com/Hongsc0125/donggle-bot/internal/scheduler"
	"github.com/Hongsc0125/donggle-bot/internal/store/postgres"
)

type mockStore struct{ mock.Mock }

func (m *mockStore) Create(ctx context.Context, a *postgres.Alert) error {
	args := m.Called(ctx, a)
	if args.Error(0) == nil {
		a.ID = int64(len(m.Calls))
	}
	return args.Error(0)
}

func (m *mockStore) Delete(ctx context.Context, guildID string, id int64) error {
	return m.Called(ctx, guildID, id).Error(0)
}

func (m *mockStore) ListEnabled(ctx context.Context) ([]postgres.Alert, error) {
	args := m.Called(ctx)
	return args.Get(0).([]postgres.Alert), args.Error(1)
}

func (m *mockStore) ListByGuild(ctx context.Context, guildID string) ([]postgres.Alert, error) {
	args := m.Called(ctx, guildID)
	return args.Get(0).([]postgres.Alert), args.Error(1)
}

type recordingSender struct {
	mu   sync.Mutex
	sent []string
}

func (r *recordingSender) SendAlert(_ context.Context, channelID, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, channelID+"|"+message)
	return nil
}

type inlineDispatcher struct {
	mu         sync.Mutex
	priorities []scheduler.Priority
}

func (d *inlineDispatcher) Schedule(p scheduler.Priority, _ string, fn scheduler.TaskFunc) {
	d.mu.Lock()
	d.priorities = append(d.priorities, p)
	d.mu.Unlock()
	_ = fn(context.Background())
}

func newTestScheduler(t *testing.T, store Store) (*Scheduler, *recordingSender, *inlineDispatcher) {
	t.Helper()
	sender := &recordingSender{}
	d := &inlineDispatcher{}
	s, err := New(config.AlertsConfig{Timezone: "UTC"}, store, sender, d, logger.Nop())
	require.NoError(t, err)
	return s, sender, d
}

func TestValidateSpec(t *testing.T) {
	tests := []struct {
		spec  string
		valid bool
	}{
		{"0 21 * * *", true},
		{"*/15 * * * *", true},
		{"@daily", true},
		{"@every 1h", true},
		{"0 0 21 * * *", false},
		{"61 * * * *", false},
		{"", false},
		{"매일 9시", false},
	}
	for _, tt := range tests {
		err := ValidateSpec(tt.spec)
		if tt.valid {
			assert.NoError(t, err, tt.spec)
		} else {
			assert.ErrorIs(t, err, ErrInvalidSpec, tt.spec)
		}
	}
}

func TestNew_BadTimezone(t *testing.T) {
	_, err := New(config.AlertsConfig{Timezone: "Mars/Olympus"}, &mockStore{}, &recordingSender{}, &inlineDispatcher{}, logger.Nop())
	assert.Error(t, err)
}

func TestLoad_SkipsBrokenSpecs(t *testing.T) {
	store := &mockStore{}
	store.On("ListEnabled", mock.Anything).Return([]postgres.Alert{
		{ID: 1, Spec: "0 21 * * *", ChannelID: "c1", Message: "보스"},
		{ID: 2, Spec: "not cron", ChannelID: "c1", Message: "broken"},
		{ID: 3, Spec: "@hourly", ChannelID: "c2", Message: "출석"},
	}, nil)

	s, _, _ := newTestScheduler(t, store)
	require.NoError(t, s.Load(context.Background()))
	assert.Equal(t, 2, s.Registered())
}

func TestLoad_StoreError(t *testing.T) {
	store := &mockStore{}
	store.On("ListEnabled", mock.Anything).Return([]postgres.Alert(nil), errors.New("db down"))

	s, _, _ := newTestScheduler(t, store)
	assert.Error(t, s.Load(context.Background()))
}

func TestAdd(t *testing.T) {
	store := &mockStore{}
	store.On("ListByGuild", mock.Anything, "g1").Return([]postgres.Alert{}, nil)
	store.On("Create", mock.Anything, mock.MatchedBy(func(a *postgres.Alert) bool {
		return a.GuildID == "g1" && a.Spec == "0 21 * * *" && a.Message == "필드 보스!" && a.Enabled
	})).Return(nil)

	s, _, _ := newTestScheduler(t, store)
	a, err := s.Add(context.Background(), "g1", "c1", " 0 21 * * * ", " 필드 보스! ", "u1")
	require.NoError(t, err)
	assert.NotZero(t, a.ID)
	assert.Equal(t, 1, s.Registered())
	store.AssertExpectations(t)
}

func TestAdd_Rejected(t *testing.T) {
	full := make([]postgres.Alert, maxAlertsPerGuild)

	tests := []struct {
		name    string
		spec    string
		message string
		wantErr error
	}{
		{name: "bad spec", spec: "every day", message: "x", wantErr: ErrInvalidSpec},
		{name: "empty message", spec: "@daily", message: "  ", wantErr: ErrEmptyMessage},
		{name: "guild full", spec: "@daily", message: "x", wantErr: ErrTooManyAlerts},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &mockStore{}
			store.On("ListByGuild", mock.Anything, "g1").Return(full, nil)

			s, _, _ := newTestScheduler(t, store)
			_, err := s.Add(context.Background(), "g1", "c1", tt.spec, tt.message, "u1")
			assert.ErrorIs(t, err, tt.wantErr)
			store.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
			assert.Zero(t, s.Registered())
		})
	}
}

func TestRemove(t *testing.T) {
	store := &mockStore{}
	store.On("ListEnabled", mock.Anything).Return([]postgres.Alert{{ID: 7, Spec: "@daily"}}, nil)
	store.On("Delete", mock.Anything, "g1", int64(7)).Return(nil)
	store.On("Delete", mock.Anything, "g2", int64(7)).Return(postgres.ErrNotFound)

	s, _, _ := newTestScheduler(t, store)
	require.NoError(t, s.Load(context.Background()))

	assert.ErrorIs(t, s.Remove(context.Background(), "g2", 7), postgres.ErrNotFound)
	assert.Equal(t, 1, s.Registered(), "other guild cannot remove it")

	require.NoError(t, s.Remove(context.Background(), "g1", 7))
	assert.Zero(t, s.Registered())
}

func TestList_NextRun(t *testing.T) {
	store := &mockStore{}
	alerts := []postgres.Alert{{ID: 5, GuildID: "g1", Spec: "@hourly"}, {ID: 2, GuildID: "g1", Spec: "@daily", Enabled: false}}
	store.On("ListEnabled", mock.Anything).Return(alerts[:1], nil)
	store.On("ListByGuild", mock.Anything, "g1").Return(alerts, nil)

	s, _, _ := newTestScheduler(t, store)
	require.NoError(t, s.Load(context.Background()))
	require.NoError(t, s.Start())
	defer s.Stop(context.Background())

	entries, err := s.List(context.Background(), "g1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(2), entries[0].ID)
	assert.True(t, entries[0].Next.IsZero(), "disabled alert has no next run")
	assert.WithinDuration(t, time.Now().Truncate(time.Hour).Add(time.Hour), entries[1].Next, time.Second)
}

func TestFire_SchedulesHighPriority(t *testing.T) {
	s, sender, d := newTestScheduler(t, &mockStore{})

	s.fire(postgres.Alert{ID: 1, ChannelID: "c9", Message: "레이드 10분 전"})

	assert.Equal(t, []scheduler.Priority{scheduler.PriorityHigh}, d.priorities)
	assert.Equal(t, []string{"c9|레이드 10분 전"}, sender.sent)
}

func TestStart_Twice(t *testing.T) {
	s, _, _ := newTestScheduler(t, &mockStore{})
	require.NoError(t, s.Start())
	defer s.Stop(context.Background())
	assert.ErrorIs(t, s.Start(), ErrAlreadyStarted)
}
