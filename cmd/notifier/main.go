package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/order-notifier/internal/app"
)

const (
	envHTTPAddr          = "NOTIFIER_HTTP_ADDR"
	envMetricsAddr       = "NOTIFIER_METRICS_ADDR"
	envTelegramToken     = "NOTIFIER_TELEGRAM_TOKEN"
	envAdminChatID       = "NOTIFIER_ADMIN_CHAT_ID"
	envAllowedChatIDs    = "NOTIFIER_ALLOWED_CHAT_IDS"
	envWebhookBaseURL    = "NOTIFIER_WEBHOOK_BASE_URL"
	envIngestionMode     = "NOTIFIER_INGESTION_MODE"
	envPollInterval      = "NOTIFIER_POLL_INTERVAL"
	envHeartbeatInterval = "NOTIFIER_HEARTBEAT_INTERVAL"
	envPostgresDSN       = "NOTIFIER_POSTGRES_DSN"
	envCursorPath        = "NOTIFIER_CURSOR_PATH"
	envKafkaBrokers      = "NOTIFIER_KAFKA_BROKERS"
	envLogLevel          = "NOTIFIER_LOG_LEVEL"
)

type lookupFunc func(key string) (string, bool)

func mapLookup(values map[string]string) lookupFunc {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

// setupLogger настраивает формат и уровень логирования для сервиса.
func setupLogger() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(log.InfoLevel)
	if v := os.Getenv(envLogLevel); v != "" {
		if level, err := log.ParseLevel(v); err == nil {
			log.SetLevel(level)
		}
	}
}

// readConfigFromEnv формирует конфигурацию приложения из переменных
// окружения. Непарсящиеся значения не прерывают запуск, а попадают в
// warnings, дефолт при этом сохраняется.
func readConfigFromEnv(lookup lookupFunc) (app.Config, []string) {
	cfg := app.DefaultConfig()
	var warnings []string

	if v, ok := lookup(envHTTPAddr); ok && strings.TrimSpace(v) != "" {
		cfg.HTTPAddr = strings.TrimSpace(v)
	}
	if v, ok := lookup(envMetricsAddr); ok && strings.TrimSpace(v) != "" {
		cfg.MetricsAddr = strings.TrimSpace(v)
	}
	if v, ok := lookup(envTelegramToken); ok {
		cfg.TelegramToken = strings.TrimSpace(v)
	}
	if v, ok := lookup(envAdminChatID); ok {
		cfg.AdminChatID = strings.TrimSpace(v)
	}
	if v, ok := lookup(envAllowedChatIDs); ok {
		cfg.AllowedChatIDs = splitList(v)
	}
	if v, ok := lookup(envWebhookBaseURL); ok {
		cfg.WebhookBaseURL = strings.TrimRight(strings.TrimSpace(v), "/")
	}
	if v, ok := lookup(envIngestionMode); ok && strings.TrimSpace(v) != "" {
		cfg.IngestionMode = strings.ToLower(strings.TrimSpace(v))
	}
	if v, ok := lookup(envPollInterval); ok && strings.TrimSpace(v) != "" {
		if d, err := time.ParseDuration(strings.TrimSpace(v)); err == nil && d > 0 {
			cfg.PollInterval = d
		} else {
			warnings = append(warnings, fmt.Sprintf("%s: invalid duration %q, using %s", envPollInterval, v, cfg.PollInterval))
		}
	}
	if v, ok := lookup(envHeartbeatInterval); ok && strings.TrimSpace(v) != "" {
		if d, err := time.ParseDuration(strings.TrimSpace(v)); err == nil && d > 0 {
			cfg.HeartbeatInterval = d
		} else {
			warnings = append(warnings, fmt.Sprintf("%s: invalid duration %q, using %s", envHeartbeatInterval, v, cfg.HeartbeatInterval))
		}
	}
	if v, ok := lookup(envPostgresDSN); ok {
		cfg.PostgresDSN = strings.TrimSpace(v)
	}
	if v, ok := lookup(envCursorPath); ok && strings.TrimSpace(v) != "" {
		cfg.CursorPath = strings.TrimSpace(v)
	}
	if v, ok := lookup(envKafkaBrokers); ok {
		cfg.KafkaBrokers = splitList(v)
	}

	return cfg, warnings
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func main() {
	setupLogger()
	cfg, warnings := readConfigFromEnv(os.LookupEnv)
	for _, warning := range warnings {
		log.Warn(warning)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(log.Fields{
		"http_addr":      cfg.HTTPAddr,
		"metrics_addr":   cfg.MetricsAddr,
		"ingestion_mode": cfg.IngestionMode,
	}).Info("запускаем сервис уведомлений о заказах")

	if err := app.Run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("приложение завершилось с ошибкой")
	}

	log.Info("сервис уведомлений остановлен")
}
