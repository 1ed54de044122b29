// Package opsnotify forwards operational failures (task errors, dropped work,
// gateway reconnects) to a Telegram chat of the bot operators.
package opsnotify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mymmrac/telego"

	"github.com/Hongsc0125/donggle-bot/internal/config"
	"github.com/Hongsc0125/donggle-bot/internal/logger"
	"github.com/Hongsc0125/donggle-bot/internal/scheduler"
)

// TaskPrefix names the notifier's own tasks. Events about them are ignored so
// a failing delivery never reports itself.
const TaskPrefix = "opsnotify."

const maxTextRunes = 3500

// BotAPI is the part of telego.Bot the notifier uses.
type BotAPI interface {
	SendMessage(ctx context.Context, params *telego.SendMessageParams) (*telego.Message, error)
}

// NewBot creates a Telegram client from config.
func NewBot(cfg config.TelegramConfig) (*telego.Bot, error) {
	bot, err := telego.NewBot(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return bot, nil
}

// Notifier implements scheduler.Observer and gateway.ReconnectObserver. Each
// event key is sent at most once per window; repeats inside the window are
// counted and reported with the next message.
type Notifier struct {
	bot        BotAPI
	chatID     int64
	window     time.Duration
	dispatcher scheduler.Dispatcher
	logger     *logger.Logger
	now        func() time.Time

	mu         sync.Mutex
	last       map[string]time.Time
	suppressed map[string]int
}

func New(bot BotAPI, chatID int64, window time.Duration, d scheduler.Dispatcher, log *logger.Logger) *Notifier {
	return &Notifier{
		bot:        bot,
		chatID:     chatID,
		window:     window,
		dispatcher: d,
		logger:     log.Component("opsnotify"),
		now:        time.Now,
		last:       make(map[string]time.Time),
		suppressed: make(map[string]int),
	}
}

func (n *Notifier) TaskSucceeded(scheduler.Task, time.Duration) {}

func (n *Notifier) TaskFailed(t scheduler.Task, err error, d time.Duration) {
	if isOwn(t) {
		return
	}
	kind := "failed"
	if errors.Is(err, scheduler.ErrTaskTimeout) {
		kind = "timed out"
	}
	n.Notify("task:"+t.Name, fmt.Sprintf("⚠️ task %s %s after %s (%s)\n%v",
		t.Name, kind, d.Round(time.Millisecond), t.Priority, err))
}

func (n *Notifier) TaskDropped(t scheduler.Task, err error) {
	if isOwn(t) {
		return
	}
	n.Notify("dropped:"+t.Priority.String(), fmt.Sprintf("🗑 task %s dropped (%s): %v", t.Name, t.Priority, err))
}

func (n *Notifier) BatchItemFailed(channelID string, err error) {
	n.Notify("batch:"+channelID, fmt.Sprintf("⚠️ batch item failed in channel %s: %v", channelID, err))
}

func (n *Notifier) ReconnectSucceeded(attempt int, reason string) {
	n.Notify("gateway:reconnected", fmt.Sprintf("✅ gateway reconnected (attempt %d, reason: %s)", attempt, reason))
}

func (n *Notifier) ReconnectFailed(attempt int, reason string, err error) {
	n.Notify("gateway:reconnect_failed", fmt.Sprintf("❌ gateway reconnect attempt %d failed (reason: %s): %v", attempt, reason, err))
}

// Notify schedules a message unless key was sent within the window.
func (n *Notifier) Notify(key, text string) {
	n.mu.Lock()
	now := n.now()
	if last, ok := n.last[key]; ok && now.Sub(last) < n.window {
		n.suppressed[key]++
		n.mu.Unlock()
		return
	}
	n.last[key] = now
	if skipped := n.suppressed[key]; skipped > 0 {
		text += fmt.Sprintf("\n(+%d similar suppressed)", skipped)
		delete(n.suppressed, key)
	}
	n.mu.Unlock()

	text = truncate(text, maxTextRunes)
	n.dispatcher.Schedule(scheduler.PriorityLow, TaskPrefix+"send", func(ctx context.Context) error {
		return n.send(ctx, text)
	})
}

func (n *Notifier) send(ctx context.Context, text string) error {
	_, err := n.bot.SendMessage(ctx, &telego.SendMessageParams{
		ChatID: telego.ChatID{ID: n.chatID},
		Text:   text,
	})
	if err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	return nil
}

func isOwn(t scheduler.Task) bool {
	return strings.HasPrefix(t.Name, TaskPrefix)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
