package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// NotifierMetrics содержит метрики ядра нотификаций.
type NotifierMetrics struct {
	// Подписчики SSE-потока.
	streamSubscribers prometheus.Gauge

	// Счётчики публикаций статусов.
	eventsPublished prometheus.Counter
	eventsDropped   prometheus.Counter
	eventsMirrored  prometheus.Counter

	// Результаты обработки запросов на переход.
	transitions *prometheus.CounterVec
}

// Результаты переходов для лейбла result.
const (
	TransitionApplied  = "applied"
	TransitionRejected = "rejected"
	TransitionNoop     = "noop"
	TransitionNotFound = "not_found"
	TransitionFailed   = "failed"
)

// NewNotifierMetrics создаёт метрики на default-регистраторе.
func NewNotifierMetrics() *NotifierMetrics {
	return newNotifierMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func newNotifierMetricsWithRegisterer(registerer prometheus.Registerer) *NotifierMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &NotifierMetrics{
		streamSubscribers: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "notifier_stream_subscribers",
			Help: "Number of currently connected status stream subscribers",
		}),
		eventsPublished: registerCounter(registerer, prometheus.CounterOpts{
			Name: "notifier_status_events_published_total",
			Help: "Total number of status events published to subscribers",
		}),
		eventsDropped: registerCounter(registerer, prometheus.CounterOpts{
			Name: "notifier_status_events_dropped_total",
			Help: "Total number of status events dropped due to full subscriber channels",
		}),
		eventsMirrored: registerCounter(registerer, prometheus.CounterOpts{
			Name: "notifier_status_events_mirrored_total",
			Help: "Total number of status events mirrored to the external bus",
		}),
		transitions: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "notifier_transitions_total",
			Help: "Total number of status transition requests grouped by result",
		}, []string{"result"}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerGauge(registerer prometheus.Registerer, opts prometheus.GaugeOpts) prometheus.Gauge {
	collector := prometheus.NewGauge(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Gauge)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register gauge %q: %v", opts.Name, err))
	}
	return collector
}

// SubscriberAdded учитывает новое подключение к потоку статусов.
func (m *NotifierMetrics) SubscriberAdded() {
	if m == nil {
		return
	}
	m.streamSubscribers.Inc()
}

// SubscriberRemoved учитывает отключение подписчика.
func (m *NotifierMetrics) SubscriberRemoved() {
	if m == nil {
		return
	}
	m.streamSubscribers.Dec()
}

// EventPublished учитывает доставленное подписчику событие.
func (m *NotifierMetrics) EventPublished() {
	if m == nil {
		return
	}
	m.eventsPublished.Inc()
}

// EventDropped учитывает событие, отброшенное из-за переполненного канала.
func (m *NotifierMetrics) EventDropped() {
	if m == nil {
		return
	}
	m.eventsDropped.Inc()
}

// EventMirrored учитывает событие, продублированное во внешнюю шину.
func (m *NotifierMetrics) EventMirrored() {
	if m == nil {
		return
	}
	m.eventsMirrored.Inc()
}

// TransitionResult учитывает результат обработки запроса на переход.
func (m *NotifierMetrics) TransitionResult(result string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(result).Inc()
}
