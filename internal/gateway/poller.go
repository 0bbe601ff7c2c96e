package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/mymmrac/telego"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/order-notifier/internal/domain"
)

const defaultPollInterval = 3 * time.Second

var (
	pollCycles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notifier_poll_cycles_total",
		Help: "Total number of telegram poll cycles grouped by result.",
	}, []string{"result"})
	pollUpdatesFetched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notifier_poll_updates_fetched_total",
		Help: "Total number of telegram updates fetched by the poller.",
	})
	pollCursorPosition = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "notifier_poll_cursor_update_id",
		Help: "Last telegram update id confirmed by the poll cursor.",
	})
)

// UpdateFetcher абстрагирует getUpdates; реализуется telegram-клиентом.
// offset — минимальный update_id, который нужно вернуть.
type UpdateFetcher interface {
	FetchUpdates(ctx context.Context, offset int64) ([]telego.Update, error)
}

// PollerOptions задаёт параметры poller'а.
type PollerOptions struct {
	Logger       *log.Entry
	PollInterval time.Duration
}

// PollerOption настраивает Poller.
type PollerOption func(*PollerOptions)

// WithPollerLogger задаёт logger для poller'а.
func WithPollerLogger(logger *log.Entry) PollerOption {
	return func(opts *PollerOptions) {
		opts.Logger = logger
	}
}

// WithPollInterval задаёт частоту опроса Bot API.
func WithPollInterval(interval time.Duration) PollerOption {
	return func(opts *PollerOptions) {
		opts.PollInterval = interval
	}
}

// Poller — pull-режим приёма обновлений. Единственный владелец курсора:
// читает его перед запросом и подвигает вперёд после обработки батча, поэтому
// после рестарта обработка продолжается с последнего подтверждённого
// обновления.
type Poller struct {
	mu           sync.Mutex
	fetcher      UpdateFetcher
	cursor       domain.CursorRepository
	normalizer   *Normalizer
	handler      EventHandler
	logger       *log.Entry
	pollInterval time.Duration
}

// NewPoller создаёт poller.
func NewPoller(fetcher UpdateFetcher, cursor domain.CursorRepository, normalizer *Normalizer, handler EventHandler, options ...PollerOption) *Poller {
	opts := PollerOptions{
		PollInterval: defaultPollInterval,
	}
	for _, option := range options {
		option(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "telegram-poller")
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}

	return &Poller{
		fetcher:      fetcher,
		cursor:       cursor,
		normalizer:   normalizer,
		handler:      handler,
		logger:       logger,
		pollInterval: opts.PollInterval,
	}
}

// Run запускает периодический опрос до отмены ctx.
func (p *Poller) Run(ctx context.Context) {
	if p.fetcher == nil {
		p.logger.Warn("poller is disabled: update fetcher is nil")
		return
	}

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	if _, err := p.ProcessOnce(ctx); err != nil {
		p.logger.WithError(err).Warn("poll cycle failed")
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := p.ProcessOnce(ctx); err != nil {
				p.logger.WithError(err).Warn("poll cycle failed")
			}
		}
	}
}

// ProcessOnce выполняет один polling-цикл и возвращает число полученных
// обновлений. Курсор продвигается один раз после батча, на максимальный
// update_id; ошибка обработки отдельного события курсор не откатывает.
// Циклы взаимоисключающие: ручной запуск через TriggerHandler ждёт, пока
// фоновая итерация подтвердит курсор, иначе оба прочитали бы один и тот же
// батч и продиспатчили каждое обновление дважды.
func (p *Poller) ProcessOnce(ctx context.Context) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if ctx.Err() != nil {
		return 0, ctx.Err()
	}

	last, err := p.cursor.Load()
	if err != nil {
		pollCycles.WithLabelValues("cursor_error").Inc()
		return 0, fmt.Errorf("load poll cursor: %w", err)
	}

	var offset int64
	if last > 0 {
		offset = last + 1
	}

	updates, err := p.fetcher.FetchUpdates(ctx, offset)
	if err != nil {
		pollCycles.WithLabelValues("fetch_error").Inc()
		return 0, fmt.Errorf("fetch updates: %w", err)
	}
	pollCycles.WithLabelValues("ok").Inc()
	pollUpdatesFetched.Add(float64(len(updates)))
	if len(updates) == 0 {
		return 0, nil
	}

	maxID := last
	for _, update := range updates {
		if ctx.Err() != nil {
			break
		}
		if id := int64(update.UpdateID); id > maxID {
			maxID = id
		}

		event, ok := p.normalizer.Normalize(update)
		if !ok {
			continue
		}
		if err := p.handler.HandleInbound(ctx, event); err != nil {
			p.logger.WithError(err).WithField("update_id", event.UpdateID).Error("failed to handle polled update")
		}
	}

	if maxID > last {
		if err := p.cursor.Store(maxID); err != nil {
			p.logger.WithError(err).WithField("update_id", maxID).Warn("failed to advance poll cursor")
		} else {
			pollCursorPosition.Set(float64(maxID))
		}
	}

	return len(updates), nil
}

// TriggerHandler возвращает HTTP-обработчик ручного запуска цикла опроса.
func (p *Poller) TriggerHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		newCount, err := p.ProcessOnce(r.Context())
		w.Header().Set("Content-Type", "application/json")
		if err != nil {
			p.logger.WithError(err).Warn("manual poll failed")
			w.WriteHeader(http.StatusBadGateway)
			_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "error": err.Error()})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "newCount": newCount})
	}
}
