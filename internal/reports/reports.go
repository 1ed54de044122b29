// Package reports turns links submitted by members into stored reports: the
// page is fetched, converted to markdown and summarized in the background,
// then posted to the guild's report channel.
package reports

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/google/uuid"

	"github.com/Hongsc0125/donggle-bot/internal/config"
	"github.com/Hongsc0125/donggle-bot/internal/logger"
	"github.com/Hongsc0125/donggle-bot/internal/scheduler"
	mongostore "github.com/Hongsc0125/donggle-bot/internal/store/mongo"
	"github.com/Hongsc0125/donggle-bot/internal/summarizer"
)

// ErrEmptyPage is returned when the page has no readable content.
var ErrEmptyPage = errors.New("page has no content")

const excerptRunes = 400

// Builder fetches and condenses a page.
type Builder struct {
	fetcher    *fetcher
	converter  *md.Converter
	summarizer summarizer.Summarizer
	logger     *logger.Logger
	now        func() time.Time
}

func NewBuilder(cfg config.ReportsConfig, sum summarizer.Summarizer, log *logger.Logger) *Builder {
	return &Builder{
		fetcher:    newFetcher(cfg),
		converter:  newConverter(),
		summarizer: sum,
		logger:     log.Component("reports"),
		now:        time.Now,
	}
}

// Build fetches rawURL and returns a report. A failing summarizer does not
// fail the report; the summary falls back to an excerpt.
func (b *Builder) Build(ctx context.Context, rawURL, note string) (*mongostore.Report, error) {
	p, err := b.fetcher.fetch(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", rawURL, err)
	}

	title, markdown, err := toMarkdown(b.converter, p.HTML)
	if err != nil {
		return nil, err
	}
	if markdown == "" {
		return nil, ErrEmptyPage
	}

	summary, err := b.summarizer.Summarize(ctx, markdown)
	if err != nil {
		if !errors.Is(err, summarizer.ErrDisabled) {
			b.logger.WarnCtx(ctx, "summary unavailable, using excerpt",
				logger.Field{Key: "url", Value: p.URL},
				logger.Field{Key: "error", Value: err})
		}
		summary = excerpt(markdown, excerptRunes)
	}

	if title == "" {
		title = p.URL
	}
	return &mongostore.Report{
		ID:        uuid.NewString(),
		URL:       p.URL,
		Title:     title,
		Note:      strings.TrimSpace(note),
		Markdown:  markdown,
		Summary:   summary,
		CreatedAt: b.now().UTC(),
	}, nil
}

func excerpt(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "…"
}

// Store persists reports.
type Store interface {
	Insert(ctx context.Context, rep *mongostore.Report) error
}

// Publisher posts a finished report to the guild.
type Publisher interface {
	PublishReport(ctx context.Context, rep *mongostore.Report) error
}

// FailureNotifier tells the author that the report could not be built.
type FailureNotifier interface {
	ReportFailed(ctx context.Context, guildID, authorID, rawURL string, err error)
}

// Submission is a report request from a member.
type Submission struct {
	GuildID  string
	AuthorID string
	URL      string
	Note     string
}

// Service submits report builds to the scheduler.
type Service struct {
	builder    *Builder
	store      Store
	publisher  Publisher
	notifier   FailureNotifier
	dispatcher scheduler.Dispatcher
	logger     *logger.Logger
}

func NewService(b *Builder, store Store, pub Publisher, notifier FailureNotifier, d scheduler.Dispatcher, log *logger.Logger) *Service {
	return &Service{
		builder:    b,
		store:      store,
		publisher:  pub,
		notifier:   notifier,
		dispatcher: d,
		logger:     log.Component("reports"),
	}
}

// Submit validates the URL and schedules the build as a LOW priority task.
func (s *Service) Submit(sub Submission) error {
	if err := ValidateURL(sub.URL); err != nil {
		return err
	}

	s.dispatcher.Schedule(scheduler.PriorityLow, "reports.build", func(ctx context.Context) error {
		err := s.process(ctx, sub)
		if err != nil && s.notifier != nil {
			s.notifier.ReportFailed(ctx, sub.GuildID, sub.AuthorID, sub.URL, err)
		}
		return err
	})

	s.logger.Info("report submitted",
		logger.Field{Key: "guild_id", Value: sub.GuildID},
		logger.Field{Key: "author_id", Value: sub.AuthorID},
		logger.Field{Key: "url", Value: sub.URL})
	return nil
}

func (s *Service) process(ctx context.Context, sub Submission) error {
	rep, err := s.builder.Build(ctx, sub.URL, sub.Note)
	if err != nil {
		return err
	}
	rep.GuildID = sub.GuildID
	rep.AuthorID = sub.AuthorID

	if err := s.store.Insert(ctx, rep); err != nil {
		return err
	}
	if err := s.publisher.PublishReport(ctx, rep); err != nil {
		return fmt.Errorf("failed to publish report %s: %w", rep.ID, err)
	}
	return nil
}
