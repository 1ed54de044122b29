package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// Load загружает конфигурацию из TOML файла
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse разбирает TOML, применяет значения по умолчанию и переменные окружения
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)
	expandEnvVars(&cfg)

	return &cfg, nil
}

// expandEnvVars расширяет переменные окружения в секретах и адресах
func expandEnvVars(c *Config) {
	for _, field := range []*string{
		&c.Discord.Token,
		&c.Discord.AppID,
		&c.Database.DSN,
		&c.Mongo.URI,
		&c.Redis.Addr,
		&c.Redis.Password,
		&c.Ranking.BaseURL,
		&c.Summarizer.APIKey,
		&c.Summarizer.BaseURL,
		&c.Ops.Telegram.Token,
		&c.Ops.MetricsAddr,
	} {
		*field = expandEnv(*field)
	}

	for i, id := range c.Discord.GuildIDs {
		c.Discord.GuildIDs[i] = expandEnv(id)
	}
}

// expandEnv расширяет переменную окружения формата ${VAR} или ${VAR:default}.
// Значение без ${ возвращается как есть.
func expandEnv(s string) string {
	if !strings.HasPrefix(s, "${") {
		return s
	}

	end := strings.Index(s, "}")
	if end == -1 {
		return s
	}

	content := s[2:end]
	if key, defaultVal, ok := strings.Cut(content, ":"); ok {
		if val := os.Getenv(key); val != "" {
			return val
		}
		return defaultVal
	}

	// Без значения по умолчанию
	return os.Getenv(content)
}
