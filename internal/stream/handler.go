// Package stream отдаёт события статуса заказа браузерным клиентам по SSE.
package stream

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/order-notifier/internal/notify"
)

// DefaultHeartbeatInterval — период keep-alive комментария, когда по заказу
// нет событий. Подобран под типичные прокси-таймауты.
const DefaultHeartbeatInterval = 25 * time.Second

// Handler обслуживает GET /sse/orders/{key}: подписывает клиента на события
// заказа и держит соединение до отключения клиента.
type Handler struct {
	registry  *notify.Registry
	heartbeat time.Duration
	logger    *log.Entry
}

// NewHandler создаёт SSE-обработчик. heartbeat <= 0 заменяется значением по
// умолчанию.
func NewHandler(registry *notify.Registry, heartbeat time.Duration, logger *log.Entry) *Handler {
	if logger == nil {
		logger = log.WithField("component", "sse")
	}
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeatInterval
	}
	return &Handler{
		registry:  registry,
		heartbeat: heartbeat,
		logger:    logger,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	orderKey := strings.ToUpper(strings.TrimSpace(r.PathValue("key")))
	if orderKey == "" {
		http.Error(w, "order key is required", http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sub := h.registry.Subscribe(orderKey)
	defer h.registry.Unsubscribe(orderKey, sub)

	logger := h.logger.WithFields(log.Fields{
		"order_key":       orderKey,
		"subscription_id": sub.ID,
	})
	logger.Info("sse client connected")
	defer logger.Info("sse client disconnected")

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case payload, ok := <-sub.C:
			if !ok {
				return
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
				logger.WithError(err).Debug("sse write failed")
				return
			}
			flusher.Flush()
			ticker.Reset(h.heartbeat)
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				logger.WithError(err).Debug("sse heartbeat write failed")
				return
			}
			flusher.Flush()
		}
	}
}
