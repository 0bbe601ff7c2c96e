package app

import (
	"fmt"
	"time"
)

// Режимы приёма обновлений Telegram.
const (
	IngestionModePush = "push"
	IngestionModePull = "pull"
)

// Config описывает настройки запуска приложения.
type Config struct {
	HTTPAddr    string
	MetricsAddr string

	TelegramToken  string
	AdminChatID    string
	AllowedChatIDs []string
	// WebhookBaseURL — публичный адрес сервиса; в push-режиме по нему
	// регистрируется webhook.
	WebhookBaseURL string

	// IngestionMode выбирает путь доставки обновлений: push (webhook) или
	// pull (getUpdates). В одном процессе активен ровно один.
	IngestionMode string
	PollInterval  time.Duration

	HeartbeatInterval time.Duration

	// PostgresDSN включает постоянное хранилище; пустое значение оставляет
	// in-memory заказы и файловый курсор.
	PostgresDSN string
	// CursorPath — файл курсора pull-режима при работе без PostgreSQL.
	CursorPath string

	KafkaBrokers []string
}

// DefaultConfig возвращает конфигурацию для локального запуска.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:          ":8080",
		MetricsAddr:       ":9090",
		IngestionMode:     IngestionModePull,
		PollInterval:      3 * time.Second,
		HeartbeatInterval: 25 * time.Second,
		CursorPath:        "telegram_offset.txt",
	}
}

// Validate проверяет согласованность конфигурации перед запуском.
func (c Config) Validate() error {
	if c.HTTPAddr == "" {
		return fmt.Errorf("http listen address is required")
	}
	if c.MetricsAddr == "" {
		return fmt.Errorf("metrics listen address is required")
	}
	if c.IngestionMode != IngestionModePush && c.IngestionMode != IngestionModePull {
		return fmt.Errorf("ingestion mode must be %q or %q, got %q", IngestionModePush, IngestionModePull, c.IngestionMode)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}
	if c.HeartbeatInterval <= 0 {
		return fmt.Errorf("heartbeat interval must be positive")
	}
	if c.TelegramToken != "" && c.AdminChatID == "" {
		return fmt.Errorf("admin chat id is required when telegram token is set")
	}
	if c.IngestionMode == IngestionModePull && c.PostgresDSN == "" && c.CursorPath == "" {
		return fmt.Errorf("cursor path is required for pull mode without postgres")
	}
	return nil
}
