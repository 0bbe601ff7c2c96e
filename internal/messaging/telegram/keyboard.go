package telegram

import (
	"fmt"

	"github.com/mymmrac/telego"

	"github.com/vladislavdragonenkov/order-notifier/internal/domain"
)

// statusKeyboard строит инлайн-клавиатуру карточки заказа: по кнопке на
// каждый статус в порядке жизненного цикла. Кнопка текущего статуса
// помечается галочкой и шлёт noop-callback, остальные — update_status с
// каноническим кодом целевого статуса.
func statusKeyboard(orderKey string, current domain.OrderStatus) *telego.InlineKeyboardMarkup {
	row := make([]telego.InlineKeyboardButton, 0, len(domain.Statuses()))
	for _, status := range domain.Statuses() {
		if status == current {
			row = append(row, telego.InlineKeyboardButton{
				Text:         fmt.Sprintf("✅ %s", status),
				CallbackData: fmt.Sprintf("%s|%s", domain.ActionNoop, orderKey),
			})
			continue
		}
		row = append(row, telego.InlineKeyboardButton{
			Text:         string(status),
			CallbackData: fmt.Sprintf("%s|%s|%s", domain.ActionUpdateStatus, orderKey, status.Code()),
		})
	}
	return &telego.InlineKeyboardMarkup{InlineKeyboard: [][]telego.InlineKeyboardButton{row}}
}
