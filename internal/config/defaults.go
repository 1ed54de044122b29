package config

// applyDefaults применяет значения по умолчанию
func applyDefaults(c *Config) {
	if c.Discord.CooldownSeconds == 0 {
		c.Discord.CooldownSeconds = 10
	}

	if c.Scheduler.HighWorkers == 0 {
		c.Scheduler.HighWorkers = 4
	}
	if c.Scheduler.MediumWorkers == 0 {
		c.Scheduler.MediumWorkers = 2
	}
	if c.Scheduler.LowWorkers == 0 {
		c.Scheduler.LowWorkers = 1
	}
	if c.Scheduler.TaskTimeoutSeconds == 0 {
		c.Scheduler.TaskTimeoutSeconds = 120
	}

	if c.Batcher.Threshold == 0 {
		c.Batcher.Threshold = 10
	}
	if c.Batcher.SweepIntervalSeconds == 0 {
		c.Batcher.SweepIntervalSeconds = 60
	}

	if c.Monitor.IntervalSeconds == 0 {
		c.Monitor.IntervalSeconds = 30
	}
	if c.Monitor.HeartbeatTimeoutSeconds == 0 {
		c.Monitor.HeartbeatTimeoutSeconds = 90
	}
	if c.Monitor.LatencyWarnMillis == 0 {
		c.Monitor.LatencyWarnMillis = 500
	}
	if c.Monitor.BackoffInitialSeconds == 0 {
		c.Monitor.BackoffInitialSeconds = 5
	}
	if c.Monitor.BackoffMaxSeconds == 0 {
		c.Monitor.BackoffMaxSeconds = 300
	}
	if c.Monitor.BackoffMultiplier == 0 {
		c.Monitor.BackoffMultiplier = 2
	}

	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 10
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.Database.ConnMaxLifetimeMinutes == 0 {
		c.Database.ConnMaxLifetimeMinutes = 30
	}

	if c.Mongo.Database == "" {
		c.Mongo.Database = "donggle"
	}
	if c.Mongo.ConnectTimeoutSeconds == 0 {
		c.Mongo.ConnectTimeoutSeconds = 10
	}

	if c.Redis.KeyPrefix == "" {
		c.Redis.KeyPrefix = "donggle:"
	}

	if c.Ranking.TimeoutSeconds == 0 {
		c.Ranking.TimeoutSeconds = 30
	}
	if c.Ranking.UserAgent == "" {
		c.Ranking.UserAgent = "donggle-bot/1.0"
	}

	if c.Summarizer.Model == "" {
		c.Summarizer.Model = "gpt-4o-mini"
	}
	if c.Summarizer.BaseURL == "" {
		c.Summarizer.BaseURL = "https://api.openai.com/v1"
	}
	if c.Summarizer.MaxTokens == 0 {
		c.Summarizer.MaxTokens = 1024
	}
	if c.Summarizer.TimeoutSeconds == 0 {
		c.Summarizer.TimeoutSeconds = 30
	}
	if c.Summarizer.RequestsPerMinute == 0 {
		c.Summarizer.RequestsPerMinute = 20
	}

	if c.Reports.MaxPageBytes == 0 {
		c.Reports.MaxPageBytes = 2 << 20
	}
	if c.Reports.FetchTimeoutSeconds == 0 {
		c.Reports.FetchTimeoutSeconds = 30
	}
	if c.Reports.UserAgent == "" {
		c.Reports.UserAgent = c.Ranking.UserAgent
	}

	if c.Alerts.Timezone == "" {
		c.Alerts.Timezone = "Asia/Seoul"
	}

	if c.Ops.Namespace == "" {
		c.Ops.Namespace = "donggle"
	}
	if c.Ops.Telegram.RateLimitSeconds == 0 {
		c.Ops.Telegram.RateLimitSeconds = 300
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stdout"
	}
}
