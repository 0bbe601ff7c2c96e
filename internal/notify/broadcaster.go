package notify

import (
	"encoding/json"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/order-notifier/internal/domain"
	"github.com/vladislavdragonenkov/order-notifier/internal/metrics"
)

// Broadcaster — единственный путь записи в каналы подписчиков. Он не хранит
// и не выводит состояние: транслирует ровно то, что Dispatcher уже закоммитил.
type Broadcaster struct {
	registry *Registry
	mirror   domain.StatusMirror
	logger   *log.Entry
	metrics  *metrics.NotifierMetrics
}

// BroadcasterOption настраивает Broadcaster.
type BroadcasterOption func(*Broadcaster)

// WithMirror подключает внешнее зеркало событий (kafka).
func WithMirror(mirror domain.StatusMirror) BroadcasterOption {
	return func(b *Broadcaster) {
		b.mirror = mirror
	}
}

// WithBroadcastMetrics подключает учёт зеркалированных событий.
func WithBroadcastMetrics(m *metrics.NotifierMetrics) BroadcasterOption {
	return func(b *Broadcaster) {
		b.metrics = m
	}
}

// NewBroadcaster создаёт broadcaster поверх реестра подписок.
func NewBroadcaster(registry *Registry, logger *log.Entry, options ...BroadcasterOption) *Broadcaster {
	if logger == nil {
		logger = log.WithField("component", "broadcaster")
	}
	b := &Broadcaster{
		registry: registry,
		logger:   logger,
	}
	for _, option := range options {
		option(b)
	}
	return b
}

// AnnounceStatus сериализует событие смены статуса и публикует его всем
// подписчикам ключа. Дополнительные поля extra попадают в тот же JSON-объект;
// ключи orderKey и status перекрыть нельзя.
func (b *Broadcaster) AnnounceStatus(orderKey string, status domain.OrderStatus, extra map[string]any) {
	payload := make(map[string]any, len(extra)+2)
	for k, v := range extra {
		payload[k] = v
	}
	payload["orderKey"] = orderKey
	payload["status"] = string(status)

	data, err := json.Marshal(payload)
	if err != nil {
		b.logger.WithError(err).WithField("order_key", orderKey).Error("failed to marshal status event")
		return
	}

	delivered := b.registry.Publish(orderKey, data)
	b.logger.WithFields(log.Fields{
		"order_key": orderKey,
		"status":    status,
		"delivered": delivered,
	}).Info("status announced")

	if b.mirror != nil {
		event := domain.StatusEvent{
			OrderKey:   orderKey,
			Status:     string(status),
			OccurredAt: time.Now().UTC(),
		}
		// Ошибка зеркала не влияет на уже состоявшийся commit и доставку.
		if err := b.mirror.MirrorStatus(event); err != nil {
			b.logger.WithError(err).WithField("order_key", orderKey).Warn("failed to mirror status event")
		} else {
			b.metrics.EventMirrored()
		}
	}
}

var _ domain.StatusAnnouncer = (*Broadcaster)(nil)
