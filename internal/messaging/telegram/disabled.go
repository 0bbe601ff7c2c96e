package telegram

import (
	"context"

	"github.com/mymmrac/telego"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/order-notifier/internal/domain"
)

// Disabled — заглушка чат-интерфейса на случай пустого токена. Все операции
// логируются на уровне Debug и завершаются успехом, чтобы остальной пайплайн
// работал без Telegram.
type Disabled struct {
	logger *log.Entry
}

// NewDisabled создаёт отключённый чат-интерфейс.
func NewDisabled(logger *log.Entry) *Disabled {
	if logger == nil {
		logger = log.WithField("component", "telegram")
	}
	return &Disabled{logger: logger}
}

func (d *Disabled) SendText(_ context.Context, chatID, text string) error {
	d.logger.WithField("chat_id", chatID).Debug("telegram disabled, message dropped")
	return nil
}

func (d *Disabled) EditOrderView(_ context.Context, chatID string, _ int, order domain.Order) error {
	d.logger.WithFields(log.Fields{
		"chat_id":   chatID,
		"order_key": order.Key,
	}).Debug("telegram disabled, edit dropped")
	return nil
}

func (d *Disabled) AnswerCallback(_ context.Context, callbackID, _ string) error {
	d.logger.WithField("callback_id", callbackID).Debug("telegram disabled, callback answer dropped")
	return nil
}

func (d *Disabled) NotifyNewOrder(_ context.Context, order domain.Order) error {
	d.logger.WithField("order_key", order.Key).Debug("telegram disabled, new order card dropped")
	return nil
}

func (d *Disabled) FetchUpdates(_ context.Context, _ int64) ([]telego.Update, error) {
	return nil, nil
}

var _ domain.ChatSurface = (*Disabled)(nil)
