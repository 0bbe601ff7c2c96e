// Package app собирает сервис уведомлений из компонентов и управляет его
// жизненным циклом.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/order-notifier/internal/api"
	"github.com/vladislavdragonenkov/order-notifier/internal/domain"
	"github.com/vladislavdragonenkov/order-notifier/internal/gateway"
	healthcheck "github.com/vladislavdragonenkov/order-notifier/internal/health"
	"github.com/vladislavdragonenkov/order-notifier/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/order-notifier/internal/messaging/telegram"
	"github.com/vladislavdragonenkov/order-notifier/internal/metrics"
	"github.com/vladislavdragonenkov/order-notifier/internal/notify"
	"github.com/vladislavdragonenkov/order-notifier/internal/service/dispatch"
	filestorage "github.com/vladislavdragonenkov/order-notifier/internal/storage/file"
	"github.com/vladislavdragonenkov/order-notifier/internal/storage/memory"
	"github.com/vladislavdragonenkov/order-notifier/internal/storage/postgres"
	"github.com/vladislavdragonenkov/order-notifier/internal/stream"
	"github.com/vladislavdragonenkov/order-notifier/internal/version"
)

const shutdownTimeout = 5 * time.Second

func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	healthHandler := healthcheck.NewHandler(version.GetVersion())

	// Хранилище: PostgreSQL при заданном DSN, иначе in-memory заказы и
	// файловый курсор.
	var (
		orders domain.OrderRepository
		cursor domain.CursorRepository
		store  *postgres.Store
	)
	if cfg.PostgresDSN != "" {
		var err error
		store, err = postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return fmt.Errorf("open postgres: %w", err)
		}
		defer func() {
			if err := store.Close(); err != nil {
				logger.WithError(err).Warn("failed to close postgres store")
			}
		}()
		if err := store.Migrate(ctx); err != nil {
			return fmt.Errorf("apply postgres schema: %w", err)
		}
		orders = postgres.NewOrderRepository(store)
		cursor = postgres.NewCursorRepository(store)
		healthHandler.RegisterChecker("postgres", healthcheck.NewSimpleChecker("postgres", store.Ping))
		logger.Info("postgres storage initialized")
	} else {
		orders = memory.NewOrderRepository()
		cursor = filestorage.NewCursorRepository(cfg.CursorPath)
		logger.Info("in-memory storage initialized")
	}

	notifierMetrics := metrics.NewNotifierMetrics()
	registry := notify.NewRegistry(
		logger.WithField("component", "registry"),
		notify.WithMetrics(notifierMetrics),
	)

	// Kafka-зеркало опционально: без брокеров события остаются локальными.
	broadcasterOptions := []notify.BroadcasterOption{notify.WithBroadcastMetrics(notifierMetrics)}
	var kafkaProducer *kafka.Producer
	if len(cfg.KafkaBrokers) > 0 {
		producer, err := kafka.NewProducer(cfg.KafkaBrokers)
		if err != nil {
			logger.WithError(err).Warn("failed to create kafka producer, continuing without kafka")
		} else {
			kafkaProducer = producer
			broadcasterOptions = append(broadcasterOptions, notify.WithMirror(producer))
			logger.WithField("brokers", cfg.KafkaBrokers).Info("kafka producer initialized")
		}
	}
	if kafkaProducer == nil {
		healthHandler.RegisterChecker("kafka", healthcheck.NewDisabledChecker("kafka", "brokers are not configured"))
	}
	defer func() {
		if kafkaProducer == nil {
			return
		}
		if err := kafkaProducer.Close(); err != nil {
			logger.WithError(err).Warn("failed to close kafka producer")
		} else {
			logger.Info("kafka producer closed")
		}
	}()

	broadcaster := notify.NewBroadcaster(registry, logger.WithField("component", "broadcaster"), broadcasterOptions...)

	// Чат-интерфейс: без токена остаётся рабочая заглушка, SSE и REST живут
	// своей жизнью.
	tgLogger := logger.WithField("component", "telegram")
	var (
		chat     domain.ChatSurface
		notifier api.OrderNotifier
		fetcher  gateway.UpdateFetcher
		tgClient *telegram.Client
	)
	if cfg.TelegramToken != "" {
		client, err := telegram.NewClient(cfg.TelegramToken, cfg.AdminChatID, telegram.RenderOrder, tgLogger)
		if err != nil {
			return fmt.Errorf("create telegram client: %w", err)
		}
		tgClient = client
		chat = client
		notifier = client
		fetcher = client
		healthHandler.RegisterChecker("telegram", healthcheck.NewSimpleChecker("telegram", client.Healthy))
	} else {
		disabled := telegram.NewDisabled(tgLogger)
		chat = disabled
		notifier = disabled
		fetcher = disabled
		healthHandler.RegisterChecker("telegram", healthcheck.NewDisabledChecker("telegram", "token is not configured"))
		logger.Warn("telegram token is empty, chat interface is disabled")
	}

	dispatcher, err := dispatch.NewDispatcher(
		orders,
		chat,
		broadcaster,
		dispatch.WithLogger(logger.WithField("component", "dispatcher")),
		dispatch.WithMetrics(notifierMetrics),
	)
	if err != nil {
		return fmt.Errorf("create dispatcher: %w", err)
	}

	allowed := cfg.AllowedChatIDs
	if cfg.AdminChatID != "" && !contains(allowed, cfg.AdminChatID) {
		allowed = append(allowed, cfg.AdminChatID)
	}
	normalizer := gateway.NewNormalizer(allowed, logger.WithField("component", "gateway"))

	mux := http.NewServeMux()
	mux.Handle("GET /sse/orders/{key}", stream.NewHandler(registry, cfg.HeartbeatInterval, logger.WithField("component", "sse")))

	orderHandler := api.NewOrderHandler(orders, notifier, logger.WithField("component", "orders-api"))
	mux.HandleFunc("GET /orders/{key}/status", orderHandler.Status)
	mux.HandleFunc("POST /orders/{key}/notify", orderHandler.Notify)

	switch cfg.IngestionMode {
	case IngestionModePush:
		mux.Handle("POST /telegram/webhook", gateway.NewWebhookHandler(normalizer, dispatcher, logger.WithField("component", "webhook")))
		if tgClient != nil && cfg.WebhookBaseURL != "" {
			if err := tgClient.RegisterWebhook(ctx, cfg.WebhookBaseURL); err != nil {
				logger.WithError(err).Warn("failed to register telegram webhook")
			}
		}
	case IngestionModePull:
		poller := gateway.NewPoller(
			fetcher,
			cursor,
			normalizer,
			dispatcher,
			gateway.WithPollInterval(cfg.PollInterval),
			gateway.WithPollerLogger(logger.WithField("component", "telegram-poller")),
		)
		mux.Handle("POST /telegram/poll", poller.TriggerHandler())
		go poller.Run(ctx)
	}

	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, healthHandler)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: mux}
	errCh := make(chan error, 1)
	go func() {
		logger.Infof("HTTP сервер слушает %s", cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем HTTP сервер")
		shutdownHTTP(srv, logger)
		shutdownHTTP(metricsSrv, logger)
		return ctx.Err()
	case err := <-errCh:
		shutdownHTTP(metricsSrv, logger)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func contains(values []string, target string) bool {
	for _, value := range values {
		if value == target {
			return true
		}
	}
	return false
}

// startMetricsServer запускает HTTP-обработчик /metrics для Prometheus.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler *healthcheck.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		logger.Infof("health checks: %s/healthz, %s/livez, %s/readyz", addr, addr, addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http shutdown with error")
	}
}
