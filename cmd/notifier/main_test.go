package main

import (
	"reflect"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/order-notifier/internal/app"
)

func TestReadConfigFromEnv_Defaults(t *testing.T) {
	cfg, warnings := readConfigFromEnv(mapLookup(nil))

	if len(warnings) != 0 {
		t.Fatalf("expected no warnings, got %d", len(warnings))
	}

	if !reflect.DeepEqual(cfg, app.DefaultConfig()) {
		t.Fatalf("expected default config, got %#v", cfg)
	}
}

func TestReadConfigFromEnv_ValidOverrides(t *testing.T) {
	cfg, warnings := readConfigFromEnv(mapLookup(map[string]string{
		envHTTPAddr:          "localhost:8081",
		envMetricsAddr:       "localhost:9091",
		envTelegramToken:     " 123:abc ",
		envAdminChatID:       "100",
		envAllowedChatIDs:    "100, 200,  ,300",
		envWebhookBaseURL:    "https://notifier.example.com/",
		envIngestionMode:     " PuSh ",
		envPollInterval:      "5s",
		envHeartbeatInterval: "40s",
		envPostgresDSN:       " postgres://notifier@localhost:5432/notifier?sslmode=disable ",
		envCursorPath:        "/var/lib/notifier/cursor",
		envKafkaBrokers:      "kafka-1:9092,kafka-2:9092",
	}))

	if len(warnings) != 0 {
		t.Fatalf("expected no warnings, got %d", len(warnings))
	}

	if cfg.HTTPAddr != "localhost:8081" {
		t.Fatalf("unexpected http addr: %s", cfg.HTTPAddr)
	}
	if cfg.MetricsAddr != "localhost:9091" {
		t.Fatalf("unexpected metrics addr: %s", cfg.MetricsAddr)
	}
	if cfg.TelegramToken != "123:abc" {
		t.Fatalf("unexpected token: %s", cfg.TelegramToken)
	}
	if cfg.AdminChatID != "100" {
		t.Fatalf("unexpected admin chat: %s", cfg.AdminChatID)
	}
	if !reflect.DeepEqual(cfg.AllowedChatIDs, []string{"100", "200", "300"}) {
		t.Fatalf("unexpected allow-list: %v", cfg.AllowedChatIDs)
	}
	if cfg.WebhookBaseURL != "https://notifier.example.com" {
		t.Fatalf("unexpected webhook base url: %s", cfg.WebhookBaseURL)
	}
	if cfg.IngestionMode != app.IngestionModePush {
		t.Fatalf("unexpected ingestion mode: %s", cfg.IngestionMode)
	}
	if cfg.PollInterval != 5*time.Second {
		t.Fatalf("unexpected poll interval: %s", cfg.PollInterval)
	}
	if cfg.HeartbeatInterval != 40*time.Second {
		t.Fatalf("unexpected heartbeat interval: %s", cfg.HeartbeatInterval)
	}
	if cfg.PostgresDSN != "postgres://notifier@localhost:5432/notifier?sslmode=disable" {
		t.Fatalf("unexpected postgres dsn: %s", cfg.PostgresDSN)
	}
	if cfg.CursorPath != "/var/lib/notifier/cursor" {
		t.Fatalf("unexpected cursor path: %s", cfg.CursorPath)
	}
	if !reflect.DeepEqual(cfg.KafkaBrokers, []string{"kafka-1:9092", "kafka-2:9092"}) {
		t.Fatalf("unexpected kafka brokers: %v", cfg.KafkaBrokers)
	}
}

func TestReadConfigFromEnv_InvalidDurationsKeepDefaults(t *testing.T) {
	cfg, warnings := readConfigFromEnv(mapLookup(map[string]string{
		envPollInterval:      "soon",
		envHeartbeatInterval: "-3s",
	}))

	if len(warnings) != 2 {
		t.Fatalf("expected 2 warnings, got %d: %v", len(warnings), warnings)
	}

	defaults := app.DefaultConfig()
	if cfg.PollInterval != defaults.PollInterval {
		t.Fatalf("poll interval must keep default, got %s", cfg.PollInterval)
	}
	if cfg.HeartbeatInterval != defaults.HeartbeatInterval {
		t.Fatalf("heartbeat must keep default, got %s", cfg.HeartbeatInterval)
	}
}

func TestSplitList(t *testing.T) {
	got := splitList(" a, ,b,,c ")
	if !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Fatalf("unexpected split result: %v", got)
	}
	if splitList("  ") != nil {
		t.Fatal("blank input must yield nil")
	}
}
