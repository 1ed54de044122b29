// Package config provides configuration loading and validation for donggle-bot.
// It supports TOML configuration files with environment variable expansion,
// default values, and validation.
//
// Configuration structure:
//   - [discord]: Bot token, application ID and command registration
//   - [scheduler]: Workers per priority tier and per-task timeout
//   - [batcher]: Per-channel batch threshold and sweep interval
//   - [monitor]: Gateway health checks and reconnect backoff
//   - [database], [mongo], [redis]: Storage backends
//   - [ranking], [summarizer], [reports], [alerts]: Bot features
//   - [ops]: Metrics endpoint and Telegram notifications
//   - [logging]: Logging level, format, and output
//
// Environment variables:
// Secrets can be referenced using ${VAR} or ${VAR:default} syntax.
// For example: token = "${DISCORD_TOKEN}"
package config

import "time"

// Config represents the main application configuration.
type Config struct {
	Discord    DiscordConfig    `toml:"discord"`
	Scheduler  SchedulerConfig  `toml:"scheduler"`
	Batcher    BatcherConfig    `toml:"batcher"`
	Monitor    MonitorConfig    `toml:"monitor"`
	Database   DatabaseConfig   `toml:"database"`
	Mongo      MongoConfig      `toml:"mongo"`
	Redis      RedisConfig      `toml:"redis"`
	Ranking    RankingConfig    `toml:"ranking"`
	Summarizer SummarizerConfig `toml:"summarizer"`
	Reports    ReportsConfig    `toml:"reports"`
	Alerts     AlertsConfig     `toml:"alerts"`
	Ops        OpsConfig        `toml:"ops"`
	Logging    LoggingConfig    `toml:"logging"`
}

// DiscordConfig представляет конфигурацию Discord бота
type DiscordConfig struct {
	Token            string   `toml:"token"`
	AppID            string   `toml:"app_id"`
	GuildIDs         []string `toml:"guild_ids"` // пусто = глобальные команды
	RegisterCommands bool     `toml:"register_commands"`
	CooldownSeconds  int      `toml:"cooldown_seconds"`
}

func (c DiscordConfig) Cooldown() time.Duration {
	return time.Duration(c.CooldownSeconds) * time.Second
}

// SchedulerConfig представляет конфигурацию планировщика задач
type SchedulerConfig struct {
	HighWorkers        int `toml:"high_workers"`
	MediumWorkers      int `toml:"medium_workers"`
	LowWorkers         int `toml:"low_workers"`
	TaskTimeoutSeconds int `toml:"task_timeout_seconds"` // 0 = без ограничения
}

func (c SchedulerConfig) TaskTimeout() time.Duration {
	return time.Duration(c.TaskTimeoutSeconds) * time.Second
}

// BatcherConfig представляет конфигурацию батчера каналов
type BatcherConfig struct {
	Threshold            int `toml:"threshold"`
	SweepIntervalSeconds int `toml:"sweep_interval_seconds"`
}

func (c BatcherConfig) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}

// MonitorConfig представляет конфигурацию монитора соединения
type MonitorConfig struct {
	IntervalSeconds         int     `toml:"interval_seconds"`
	HeartbeatTimeoutSeconds int     `toml:"heartbeat_timeout_seconds"`
	LatencyWarnMillis       int     `toml:"latency_warn_ms"`
	BackoffInitialSeconds   int     `toml:"backoff_initial_seconds"`
	BackoffMaxSeconds       int     `toml:"backoff_max_seconds"`
	BackoffMultiplier       float64 `toml:"backoff_multiplier"` // 1 = постоянная задержка
	MaxAttempts             int     `toml:"max_attempts"`       // 0 = без ограничения
}

func (c MonitorConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

func (c MonitorConfig) HeartbeatTimeout() time.Duration {
	return time.Duration(c.HeartbeatTimeoutSeconds) * time.Second
}

func (c MonitorConfig) LatencyWarn() time.Duration {
	return time.Duration(c.LatencyWarnMillis) * time.Millisecond
}

func (c MonitorConfig) BackoffInitial() time.Duration {
	return time.Duration(c.BackoffInitialSeconds) * time.Second
}

func (c MonitorConfig) BackoffMax() time.Duration {
	return time.Duration(c.BackoffMaxSeconds) * time.Second
}

// DatabaseConfig представляет конфигурацию PostgreSQL
type DatabaseConfig struct {
	DSN                    string `toml:"dsn"`
	MaxOpenConns           int    `toml:"max_open_conns"`
	MaxIdleConns           int    `toml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `toml:"conn_max_lifetime_minutes"`
	AutoMigrate            bool   `toml:"auto_migrate"`
}

func (c DatabaseConfig) ConnMaxLifetime() time.Duration {
	return time.Duration(c.ConnMaxLifetimeMinutes) * time.Minute
}

// MongoConfig представляет конфигурацию MongoDB
type MongoConfig struct {
	URI                   string `toml:"uri"`
	Database              string `toml:"database"`
	ConnectTimeoutSeconds int    `toml:"connect_timeout_seconds"`
}

func (c MongoConfig) ConnectTimeout() time.Duration {
	return time.Duration(c.ConnectTimeoutSeconds) * time.Second
}

// RedisConfig представляет конфигурацию Redis
type RedisConfig struct {
	Addr      string `toml:"addr"`
	Password  string `toml:"password"`
	DB        int    `toml:"db"`
	KeyPrefix string `toml:"key_prefix"`
}

// RankingConfig представляет конфигурацию сервиса рейтинга персонажей
type RankingConfig struct {
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	UserAgent      string `toml:"user_agent"`
}

func (c RankingConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// SummarizerConfig представляет конфигурацию LLM для кратких отчётов
type SummarizerConfig struct {
	Enabled           bool   `toml:"enabled"`
	APIKey            string `toml:"api_key"`
	BaseURL           string `toml:"base_url"`
	Model             string `toml:"model"`
	MaxTokens         int    `toml:"max_tokens"`
	TimeoutSeconds    int    `toml:"timeout_seconds"`
	RequestsPerMinute int    `toml:"requests_per_minute"`
}

func (c SummarizerConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ReportsConfig представляет конфигурацию отчётов по ссылкам
type ReportsConfig struct {
	MaxPageBytes        int64  `toml:"max_page_bytes"`
	FetchTimeoutSeconds int    `toml:"fetch_timeout_seconds"`
	UserAgent           string `toml:"user_agent"`
	AllowPrivateHosts   bool   `toml:"allow_private_hosts"` // loopback и внутренние адреса, только для разработки
}

func (c ReportsConfig) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutSeconds) * time.Second
}

// AlertsConfig представляет конфигурацию расписания оповещений
type AlertsConfig struct {
	Enabled  bool   `toml:"enabled"`
	Timezone string `toml:"timezone"`
}

// OpsConfig представляет конфигурацию эксплуатационных интерфейсов
type OpsConfig struct {
	MetricsAddr string         `toml:"metrics_addr"` // пусто = HTTP сервер отключён
	Namespace   string         `toml:"namespace"`
	Telegram    TelegramConfig `toml:"telegram"`
}

// TelegramConfig представляет конфигурацию уведомлений в Telegram
type TelegramConfig struct {
	Enabled          bool   `toml:"enabled"`
	Token            string `toml:"token"`
	ChatID           int64  `toml:"chat_id"`
	RateLimitSeconds int    `toml:"rate_limit_seconds"`
}

func (c TelegramConfig) RateLimit() time.Duration {
	return time.Duration(c.RateLimitSeconds) * time.Second
}

// LoggingConfig представляет конфигурацию логирования
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	Output string `toml:"output"`
}
