package domain

import "context"

// ChatSurface описывает исходящую сторону чат-интерфейса оператора.
// Dispatcher отвечает через неё, не зная о Telegram API.
type ChatSurface interface {
	// SendText отправляет обычное текстовое сообщение в чат.
	SendText(ctx context.Context, chatID, text string) error
	// EditOrderView перерисовывает карточку заказа на месте: текст и набор
	// инлайн-кнопок приводятся к текущему статусу заказа. Повторная
	// перерисовка безопасна.
	EditOrderView(ctx context.Context, chatID string, messageID int, order Order) error
	// AnswerCallback подтверждает нажатие инлайн-кнопки всплывающим toast'ом.
	AnswerCallback(ctx context.Context, callbackID, text string) error
}

// StatusAnnouncer — единственный путь доставки зафиксированных смен статуса
// подписчикам. Dispatcher обязан проводить каждый commit через него.
type StatusAnnouncer interface {
	AnnounceStatus(orderKey string, status OrderStatus, extra map[string]any)
}

// StatusMirror дублирует зафиксированные события статуса во внешнюю шину
// (kafka) для остальных сервисов. Зеркало никогда не влияет на корректность
// перехода: ошибка публикации только логируется.
type StatusMirror interface {
	MirrorStatus(event StatusEvent) error
}

// RenderOrderFunc — контракт слоя форматирования: чистая функция, собирающая
// человекочитаемую сводку заказа. statusOverride подменяет статус в тексте,
// не трогая сам заказ.
type RenderOrderFunc func(order Order, statusOverride OrderStatus) string
