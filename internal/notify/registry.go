// Package notify реализует fan-out зафиксированных смен статуса: реестр
// подписок по ключу заказа и broadcaster поверх него.
package notify

import (
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/order-notifier/internal/metrics"
)

// defaultSubscriberBuffer — ёмкость канала подписчика. Медленный потребитель
// теряет события после заполнения буфера, но никогда не тормозит публикацию.
const defaultSubscriberBuffer = 16

// Subscription — хэндл одной подписки: по нему читают события и отписываются.
type Subscription struct {
	// ID идентифицирует подписку внутри набора ключа.
	ID string
	// C отдаёт сериализованные события в порядке публикации для этого ключа.
	C <-chan []byte

	ch chan []byte
}

// Registry — потокобезопасная multi-map «ключ заказа → подписки».
// Лок защищает только мутации map; отправка в каналы неблокирующая.
type Registry struct {
	mu     sync.RWMutex
	subs   map[string][]*Subscription
	buffer int

	logger  *log.Entry
	metrics *metrics.NotifierMetrics
}

// RegistryOption настраивает Registry.
type RegistryOption func(*Registry)

// WithBuffer задаёт ёмкость канала подписчика.
func WithBuffer(size int) RegistryOption {
	return func(r *Registry) {
		if size > 0 {
			r.buffer = size
		}
	}
}

// WithMetrics подключает учёт подписчиков и публикаций.
func WithMetrics(m *metrics.NotifierMetrics) RegistryOption {
	return func(r *Registry) {
		r.metrics = m
	}
}

// NewRegistry создаёт пустой реестр подписок.
func NewRegistry(logger *log.Entry, options ...RegistryOption) *Registry {
	if logger == nil {
		logger = log.WithField("component", "registry")
	}
	r := &Registry{
		subs:   make(map[string][]*Subscription),
		buffer: defaultSubscriberBuffer,
		logger: logger,
	}
	for _, option := range options {
		option(r)
	}
	return r
}

// Subscribe создаёт подписку на события ключа и возвращает её хэндл.
func (r *Registry) Subscribe(key string) *Subscription {
	ch := make(chan []byte, r.buffer)
	sub := &Subscription{
		ID: uuid.NewString(),
		C:  ch,
		ch: ch,
	}

	r.mu.Lock()
	r.subs[key] = append(r.subs[key], sub)
	total := len(r.subs[key])
	r.mu.Unlock()

	r.metrics.SubscriberAdded()
	r.logger.WithFields(log.Fields{"order_key": key, "subscribers": total}).Debug("subscriber added")
	return sub
}

// Unsubscribe удаляет подписку; опустевший набор ключа выбрасывается из map,
// чтобы реестр не рос на заказах без наблюдателей.
func (r *Registry) Unsubscribe(key string, sub *Subscription) {
	if sub == nil {
		return
	}

	r.mu.Lock()
	list := r.subs[key]
	for i, existing := range list {
		if existing.ID == sub.ID {
			list = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(r.subs, key)
	} else {
		r.subs[key] = list
	}
	r.mu.Unlock()

	r.metrics.SubscriberRemoved()
	r.logger.WithField("order_key", key).Debug("subscriber removed")
}

// Publish рассылает payload всем текущим подпискам ключа неблокирующей
// отправкой: переполненный канал пропускается, остальные получают событие.
// Возвращает число фактических доставок; ноль подписчиков — тихий no-op.
func (r *Registry) Publish(key string, payload []byte) int {
	r.mu.RLock()
	snapshot := make([]*Subscription, len(r.subs[key]))
	copy(snapshot, r.subs[key])
	r.mu.RUnlock()

	delivered := 0
	for _, sub := range snapshot {
		select {
		case sub.ch <- payload:
			delivered++
			r.metrics.EventPublished()
		default:
			// Канал полон: подписчик отстаёт, событие для него теряется.
			r.metrics.EventDropped()
			r.logger.WithFields(log.Fields{
				"order_key":    key,
				"subscription": sub.ID,
			}).Warn("subscriber channel full, event dropped")
		}
	}
	return delivered
}

// Subscribers возвращает текущее число подписок ключа.
func (r *Registry) Subscribers(key string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs[key])
}
