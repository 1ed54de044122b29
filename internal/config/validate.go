package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Validate проверяет валидность конфигурации и возвращает все найденные ошибки
func (c *Config) Validate() []error {
	var errs []error
	add := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	// Discord
	if c.Discord.Token == "" {
		add(fieldError("discord.token", "is required", ""))
	} else {
		add(validateDiscordToken(c.Discord.Token))
	}
	if c.Discord.RegisterCommands && c.Discord.AppID == "" {
		add(fieldError("discord.app_id", "is required when register_commands is enabled", ""))
	}
	if c.Discord.CooldownSeconds < 0 {
		add(fieldError("discord.cooldown_seconds", "must be >= 0", ""))
	}

	// Планировщик: у каждого уровня должен быть хотя бы один воркер
	for _, w := range []struct {
		field string
		n     int
	}{
		{"scheduler.high_workers", c.Scheduler.HighWorkers},
		{"scheduler.medium_workers", c.Scheduler.MediumWorkers},
		{"scheduler.low_workers", c.Scheduler.LowWorkers},
	} {
		if w.n < 1 {
			add(fieldError(w.field, fmt.Sprintf("must be >= 1 (got %d)", w.n), ""))
		}
	}
	if c.Scheduler.TaskTimeoutSeconds < 0 {
		add(fieldError("scheduler.task_timeout_seconds", "must be >= 0", ""))
	}

	if c.Batcher.Threshold < 1 {
		add(fieldError("batcher.threshold", "must be >= 1", ""))
	}
	if c.Batcher.SweepIntervalSeconds < 1 {
		add(fieldError("batcher.sweep_interval_seconds", "must be >= 1", ""))
	}

	// Монитор соединения
	if c.Monitor.IntervalSeconds < 1 {
		add(fieldError("monitor.interval_seconds", "must be >= 1", ""))
	}
	if c.Monitor.HeartbeatTimeoutSeconds <= c.Monitor.IntervalSeconds {
		add(fieldError("monitor.heartbeat_timeout_seconds",
			fmt.Sprintf("must be greater than monitor.interval_seconds (%d)", c.Monitor.IntervalSeconds), ""))
	}
	if c.Monitor.BackoffMultiplier < 1 {
		add(fieldError("monitor.backoff_multiplier", "must be >= 1", ""))
	}
	if c.Monitor.BackoffMaxSeconds < c.Monitor.BackoffInitialSeconds {
		add(fieldError("monitor.backoff_max_seconds", "must be >= monitor.backoff_initial_seconds", ""))
	}
	if c.Monitor.MaxAttempts < 0 {
		add(fieldError("monitor.max_attempts", "must be >= 0", ""))
	}

	// Хранилища
	add(validateURL("database.dsn", c.Database.DSN, "postgres", "postgresql"))
	add(validateURL("mongo.uri", c.Mongo.URI, "mongodb", "mongodb+srv"))
	if c.Redis.Addr == "" {
		add(fieldError("redis.addr", "is required", ""))
	}

	if c.Ranking.BaseURL != "" {
		add(validateURL("ranking.base_url", c.Ranking.BaseURL, "http", "https"))
	}

	if c.Summarizer.Enabled {
		if len(c.Summarizer.APIKey) < 10 {
			add(fieldError("summarizer.api_key", "is required (minimum 10 characters) when summarizer is enabled", c.Summarizer.APIKey))
		}
		add(validateURL("summarizer.base_url", c.Summarizer.BaseURL, "http", "https"))
	}

	if c.Alerts.Enabled {
		if _, err := time.LoadLocation(c.Alerts.Timezone); err != nil {
			add(fieldError("alerts.timezone", err.Error(), ""))
		}
	}

	if c.Ops.Telegram.Enabled {
		add(validateTelegramToken(c.Ops.Telegram.Token))
		if c.Ops.Telegram.ChatID == 0 {
			add(fieldError("ops.telegram.chat_id", "is required when telegram notifications are enabled", ""))
		}
	}

	add(validateLogging(c.Logging))
	return errs
}

func validateDiscordToken(token string) error {
	parts := strings.Split(strings.TrimPrefix(token, "Bot "), ".")
	if len(parts) != 3 {
		return fieldError("discord.token", "has invalid format (expected three dot-separated parts)", token)
	}
	for _, p := range parts {
		if p == "" {
			return fieldError("discord.token", "has an empty part", token)
		}
	}
	return nil
}

func validateTelegramToken(token string) error {
	if token == "" {
		return fieldError("ops.telegram.token", "is required when telegram notifications are enabled", "")
	}

	botID, secret, ok := strings.Cut(token, ":")
	if !ok {
		return fieldError("ops.telegram.token", "has invalid format (expected <bot_id>:<token>)", token)
	}
	if len(botID) < 3 || len(botID) > 15 {
		return fieldError("ops.telegram.token", fmt.Sprintf("has invalid bot ID length (expected 3-15 digits, got %d)", len(botID)), "")
	}
	for _, r := range botID {
		if r < '0' || r > '9' {
			return fieldError("ops.telegram.token", "has invalid bot ID (expected digits only)", "")
		}
	}
	if len(secret) < 10 || len(secret) > 50 {
		return fieldError("ops.telegram.token", fmt.Sprintf("has invalid token length (expected 10-50 characters, got %d)", len(secret)), "")
	}
	return nil
}

func validateURL(field, raw string, schemes ...string) error {
	if raw == "" {
		return fieldError(field, "is required", "")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fieldError(field, "is not a valid URL", "")
	}
	for _, s := range schemes {
		if u.Scheme == s {
			return nil
		}
	}
	return fieldError(field, fmt.Sprintf("has unsupported scheme %q (expected: %s)", u.Scheme, strings.Join(schemes, ", ")), "")
}

func validateLogging(c LoggingConfig) error {
	switch strings.ToLower(c.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fieldError("logging.level", fmt.Sprintf("invalid value %q (expected: debug, info, warn, error)", c.Level), "")
	}
	switch strings.ToLower(c.Format) {
	case "json", "text":
	default:
		return fieldError("logging.format", fmt.Sprintf("invalid value %q (expected: json, text)", c.Format), "")
	}
	if c.Output == "" {
		return fieldError("logging.output", "is required", "")
	}
	return nil
}
