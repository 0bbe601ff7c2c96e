// Package gateway принимает обновления Telegram (webhook или polling),
// фильтрует их по allow-list и приводит к нормализованным входящим событиям.
package gateway

import (
	"context"
	"strconv"
	"strings"

	"github.com/mymmrac/telego"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/order-notifier/internal/domain"
)

// EventHandler потребляет нормализованные события; реализуется диспетчером.
type EventHandler interface {
	HandleInbound(ctx context.Context, event domain.InboundEvent) error
}

// Normalizer превращает сырые обновления Telegram в domain.InboundEvent.
// Чаты вне allow-list отбрасываются до какой-либо обработки.
type Normalizer struct {
	allowed map[string]struct{}
	logger  *log.Entry
}

// NewNormalizer создаёт нормализатор. Пустой allow-list запрещает все чаты.
func NewNormalizer(allowedChatIDs []string, logger *log.Entry) *Normalizer {
	if logger == nil {
		logger = log.WithField("component", "gateway")
	}

	allowed := make(map[string]struct{}, len(allowedChatIDs))
	for _, id := range allowedChatIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		allowed[id] = struct{}{}
	}
	if len(allowed) == 0 {
		logger.Warn("chat allow-list is empty, all inbound chats will be rejected")
	}

	return &Normalizer{allowed: allowed, logger: logger}
}

// Normalize возвращает событие и true, если обновление относится к делу и
// пришло из разрешённого чата. Обычные сообщения без ведущего "/" и служебные
// обновления молча пропускаются.
func (n *Normalizer) Normalize(update telego.Update) (domain.InboundEvent, bool) {
	switch {
	case update.Message != nil:
		return n.normalizeMessage(update)
	case update.CallbackQuery != nil:
		return n.normalizeCallback(update)
	default:
		return domain.InboundEvent{}, false
	}
}

func (n *Normalizer) normalizeMessage(update telego.Update) (domain.InboundEvent, bool) {
	msg := update.Message
	text := strings.TrimSpace(msg.Text)
	if !strings.HasPrefix(text, "/") {
		return domain.InboundEvent{}, false
	}

	chatID := strconv.FormatInt(msg.Chat.ID, 10)
	if !n.chatAllowed(chatID) {
		n.logger.WithFields(log.Fields{
			"chat_id":   chatID,
			"update_id": update.UpdateID,
		}).Warn("command from chat outside allow-list rejected")
		return domain.InboundEvent{}, false
	}

	fields := strings.Fields(text)
	// Команда в группе может приходить как "/status@MyBot".
	command, _, _ := strings.Cut(fields[0], "@")

	return domain.InboundEvent{
		UpdateID: int64(update.UpdateID),
		ChatID:   chatID,
		Kind:     domain.EventKindCommand,
		Command:  command,
		Args:     fields[1:],
	}, true
}

func (n *Normalizer) normalizeCallback(update telego.Update) (domain.InboundEvent, bool) {
	cq := update.CallbackQuery
	if cq.Message == nil {
		// Карточка недоступна (слишком старое сообщение), переход применить
		// не к чему.
		n.logger.WithField("update_id", update.UpdateID).Warn("callback without accessible message skipped")
		return domain.InboundEvent{}, false
	}

	chatID := strconv.FormatInt(cq.Message.GetChat().ID, 10)
	if !n.chatAllowed(chatID) {
		n.logger.WithFields(log.Fields{
			"chat_id":   chatID,
			"update_id": update.UpdateID,
		}).Warn("callback from chat outside allow-list rejected")
		return domain.InboundEvent{}, false
	}

	event := domain.InboundEvent{
		UpdateID:   int64(update.UpdateID),
		ChatID:     chatID,
		Kind:       domain.EventKindCallback,
		MessageID:  cq.Message.GetMessageID(),
		CallbackID: cq.ID,
	}
	event.Action, event.OrderKey, event.StatusCode = parseCallbackData(cq.Data)
	return event, true
}

func (n *Normalizer) chatAllowed(chatID string) bool {
	_, ok := n.allowed[chatID]
	return ok
}

// parseCallbackData разбирает строку кнопки формата
// "update_status|<key>|<code>" или "noop|<key>". Недостающие части остаются
// пустыми, валидацию выполняет диспетчер.
func parseCallbackData(data string) (action, orderKey, statusCode string) {
	parts := strings.Split(data, "|")
	if len(parts) > 0 {
		action = parts[0]
	}
	if len(parts) > 1 {
		orderKey = parts[1]
	}
	if len(parts) > 2 {
		statusCode = parts[2]
	}
	return action, orderKey, statusCode
}
