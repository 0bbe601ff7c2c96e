package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/mymmrac/telego"
	log "github.com/sirupsen/logrus"
)

// WebhookHandler принимает push-доставку обновлений Telegram.
// Ответ всегда 200 {"ok":true}: иначе Telegram начинает ретраить доставку и
// один и тот же update приходит снова и снова.
type WebhookHandler struct {
	normalizer *Normalizer
	handler    EventHandler
	logger     *log.Entry
}

// NewWebhookHandler создаёт HTTP-обработчик webhook'а.
func NewWebhookHandler(normalizer *Normalizer, handler EventHandler, logger *log.Entry) *WebhookHandler {
	if logger == nil {
		logger = log.WithField("component", "gateway")
	}
	return &WebhookHandler{
		normalizer: normalizer,
		handler:    handler,
		logger:     logger,
	}
}

func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	defer writeOK(w)

	var update telego.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		h.logger.WithError(err).Warn("webhook body is not a valid update")
		return
	}

	event, ok := h.normalizer.Normalize(update)
	if !ok {
		return
	}

	if err := h.handler.HandleInbound(r.Context(), event); err != nil {
		h.logger.WithError(err).WithField("update_id", event.UpdateID).Error("failed to handle webhook update")
	}
}

func writeOK(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"ok":true}`))
}
