// Package alerts runs guild alerts on cron schedules. Each firing is handed to
// the task scheduler as a HIGH priority send.
package alerts

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Hongsc0125/donggle-bot/internal/config"
	"github.com/Hongsc0125/donggle-bot/internal/logger"
	"github.com/Hongsc0125/donggle-bot/internal/scheduler"
	"github.com/Hongsc0125/donggle-bot/internal/store/postgres"
)

var (
	ErrInvalidSpec    = errors.New("invalid cron expression")
	ErrEmptyMessage   = errors.New("alert message is empty")
	ErrTooManyAlerts  = errors.New("too many alerts in guild")
	ErrAlreadyStarted = errors.New("alert scheduler already started")
)

const (
	maxAlertsPerGuild = 25
	maxMessageRunes   = 1000
)

// Store is the persistent alert list.
type Store interface {
	Create(ctx context.Context, a *postgres.Alert) error
	Delete(ctx context.Context, guildID string, id int64) error
	ListEnabled(ctx context.Context) ([]postgres.Alert, error)
	ListByGuild(ctx context.Context, guildID string) ([]postgres.Alert, error)
}

// Sender delivers an alert message to a channel.
type Sender interface {
	SendAlert(ctx context.Context, channelID, message string) error
}

// Entry is a registered alert with its next run.
type Entry struct {
	postgres.Alert
	Next time.Time
}

// Scheduler keeps the cron entries in sync with the store.
type Scheduler struct {
	cron       *cron.Cron
	parser     cron.Parser
	store      Store
	sender     Sender
	dispatcher scheduler.Dispatcher
	logger     *logger.Logger

	mu      sync.Mutex
	entries map[int64]cron.EntryID
	started bool
}

// New creates the scheduler in the configured timezone.
func New(cfg config.AlertsConfig, store Store, sender Sender, d scheduler.Dispatcher, log *logger.Logger) (*Scheduler, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %q: %w", cfg.Timezone, err)
	}

	parser := newParser()
	return &Scheduler{
		cron:       cron.New(cron.WithLocation(loc), cron.WithParser(parser)),
		parser:     parser,
		store:      store,
		sender:     sender,
		dispatcher: d,
		logger:     log.Component("alerts"),
		entries:    make(map[int64]cron.EntryID),
	}, nil
}

// минуты, часы, день, месяц, день недели и дескрипторы вида @daily
func newParser() cron.Parser {
	return cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
}

// ValidateSpec checks a cron expression without registering it.
func ValidateSpec(spec string) error {
	if _, err := newParser().Parse(strings.TrimSpace(spec)); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSpec, err)
	}
	return nil
}

// Load registers every enabled alert from the store. Alerts with a broken
// expression are skipped and logged.
func (s *Scheduler) Load(ctx context.Context) error {
	alerts, err := s.store.ListEnabled(ctx)
	if err != nil {
		return fmt.Errorf("failed to load alerts: %w", err)
	}

	loaded := 0
	for _, a := range alerts {
		if err := s.register(a); err != nil {
			s.logger.WarnCtx(ctx, "skipping alert",
				logger.Field{Key: "alert_id", Value: a.ID},
				logger.Field{Key: "spec", Value: a.Spec},
				logger.Field{Key: "error", Value: err})
			continue
		}
		loaded++
	}

	s.logger.InfoCtx(ctx, "alerts loaded", logger.Field{Key: "count", Value: loaded})
	return nil
}

func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrAlreadyStarted
	}
	s.started = true
	s.cron.Start()
	s.logger.Info("alert scheduler started")
	return nil
}

// Stop stops firing and waits for running callbacks. Sends already handed to
// the task scheduler are not affected.
func (s *Scheduler) Stop(ctx context.Context) {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.mu.Unlock()

	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
	s.logger.Info("alert scheduler stopped")
}

// Add stores a new alert and registers it.
func (s *Scheduler) Add(ctx context.Context, guildID, channelID, spec, message, createdBy string) (*postgres.Alert, error) {
	spec = strings.TrimSpace(spec)
	message = strings.TrimSpace(message)
	if err := ValidateSpec(spec); err != nil {
		return nil, err
	}
	if message == "" {
		return nil, ErrEmptyMessage
	}
	if n := len([]rune(message)); n > maxMessageRunes {
		message = string([]rune(message)[:maxMessageRunes])
	}

	existing, err := s.store.ListByGuild(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("failed to count alerts: %w", err)
	}
	if len(existing) >= maxAlertsPerGuild {
		return nil, ErrTooManyAlerts
	}

	a := &postgres.Alert{
		GuildID:   guildID,
		ChannelID: channelID,
		Spec:      spec,
		Message:   message,
		Enabled:   true,
		CreatedBy: createdBy,
	}
	if err := s.store.Create(ctx, a); err != nil {
		return nil, err
	}
	if err := s.register(*a); err != nil {
		return nil, err
	}

	s.logger.InfoCtx(ctx, "alert added",
		logger.Field{Key: "alert_id", Value: a.ID},
		logger.Field{Key: "guild_id", Value: guildID},
		logger.Field{Key: "spec", Value: spec})
	return a, nil
}

// Remove deletes an alert of the guild and unregisters it.
func (s *Scheduler) Remove(ctx context.Context, guildID string, id int64) error {
	if err := s.store.Delete(ctx, guildID, id); err != nil {
		return err
	}
	s.unregister(id)
	s.logger.InfoCtx(ctx, "alert removed",
		logger.Field{Key: "alert_id", Value: id},
		logger.Field{Key: "guild_id", Value: guildID})
	return nil
}

// List returns the alerts of a guild ordered by id, with their next run
// when registered.
func (s *Scheduler) List(ctx context.Context, guildID string) ([]Entry, error) {
	alerts, err := s.store.ListByGuild(ctx, guildID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Entry, 0, len(alerts))
	for _, a := range alerts {
		e := Entry{Alert: a}
		if id, ok := s.entries[a.ID]; ok {
			e.Next = s.cron.Entry(id).Next
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Registered returns the number of active cron entries.
func (s *Scheduler) Registered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Scheduler) register(a postgres.Alert) error {
	sched, err := s.parser.Parse(a.Spec)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSpec, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.entries[a.ID]; ok {
		s.cron.Remove(old)
	}
	s.entries[a.ID] = s.cron.Schedule(sched, cron.FuncJob(func() { s.fire(a) }))
	return nil
}

func (s *Scheduler) unregister(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entryID, ok := s.entries[id]; ok {
		s.cron.Remove(entryID)
		delete(s.entries, id)
	}
}

// fire hands the send to the task scheduler; the cron goroutine never blocks
// on Discord.
func (s *Scheduler) fire(a postgres.Alert) {
	s.dispatcher.Schedule(scheduler.PriorityHigh, "alerts.send", func(ctx context.Context) error {
		if err := s.sender.SendAlert(ctx, a.ChannelID, a.Message); err != nil {
			return fmt.Errorf("alert %d: %w", a.ID, err)
		}
		return nil
	})
}
