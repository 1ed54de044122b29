package config

import (
	"net/url"
	"strings"
)

// maskSecret маскирует секрет, оставляя только первые 4 и последние 4 символа
func maskSecret(secret string) string {
	if secret == "" {
		return ""
	}

	// Если секрет слишком короткий, маскируем полностью
	if len(secret) < 12 {
		return "***"
	}

	return secret[:4] + strings.Repeat("*", len(secret)-8) + secret[len(secret)-4:]
}

// maskTelegramToken оставляет bot_id видимым для диагностики
func maskTelegramToken(token string) string {
	botID, secret, ok := strings.Cut(token, ":")
	if !ok {
		return maskSecret(token)
	}
	return botID + ":" + maskSecret(secret)
}

// maskURLPassword скрывает пароль в DSN или URI подключения
func maskURLPassword(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	if _, has := u.User.Password(); !has {
		return raw
	}
	u.User = url.UserPassword(u.User.Username(), "***")
	return u.String()
}

// Masked возвращает копию конфигурации со скрытыми секретами, для вывода в CLI.
func (c Config) Masked() Config {
	out := c
	out.Discord.GuildIDs = append([]string(nil), c.Discord.GuildIDs...)
	out.Discord.Token = maskSecret(c.Discord.Token)
	out.Database.DSN = maskURLPassword(c.Database.DSN)
	out.Mongo.URI = maskURLPassword(c.Mongo.URI)
	out.Redis.Password = maskSecret(c.Redis.Password)
	out.Summarizer.APIKey = maskSecret(c.Summarizer.APIKey)
	out.Ops.Telegram.Token = maskTelegramToken(c.Ops.Telegram.Token)
	return out
}

// ValidationError представляет ошибку валидации с дополнительной информацией
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// fieldError создаёт ошибку валидации; секрет в сообщении маскируется
func fieldError(field, message, secret string) error {
	if secret != "" {
		message += " (value: " + maskSecret(secret) + ")"
	}
	return &ValidationError{Field: field, Message: message}
}
