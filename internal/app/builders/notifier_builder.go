package builders

import (
	"github.com/Hongsc0125/donggle-bot/internal/config"
	"github.com/Hongsc0125/donggle-bot/internal/logger"
	"github.com/Hongsc0125/donggle-bot/internal/opsnotify"
	"github.com/Hongsc0125/donggle-bot/internal/scheduler"
)

type NotifierBuilder struct {
	config config.TelegramConfig
	logger *logger.Logger
}

func NewNotifierBuilder(cfg config.TelegramConfig, log *logger.Logger) *NotifierBuilder {
	return &NotifierBuilder{config: cfg, logger: log}
}

// Build returns nil when Telegram notifications are disabled or have no token.
func (b *NotifierBuilder) Build(d scheduler.Dispatcher) (*opsnotify.Notifier, error) {
	if !b.config.Enabled || b.config.Token == "" {
		b.logger.Info("ops notifications disabled")
		return nil, nil
	}

	bot, err := opsnotify.NewBot(b.config)
	if err != nil {
		return nil, err
	}
	return opsnotify.New(bot, b.config.ChatID, b.config.RateLimit(), d, b.logger), nil
}
