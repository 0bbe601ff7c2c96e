package domain

import "time"

// EventKind различает два вида входящих событий чат-интерфейса.
type EventKind string

const (
	// EventKindCommand — текстовая команда вида "/status AB123456 en_camino".
	EventKindCommand EventKind = "command"
	// EventKindCallback — нажатие инлайн-кнопки на карточке заказа.
	EventKindCallback EventKind = "callback"
)

// InboundEvent — нормализованное входящее событие. Gateway приводит к этому
// виду и webhook-, и polling-доставку; Dispatcher потребляет событие ровно
// один раз и не знает, каким путём оно пришло.
type InboundEvent struct {
	// UpdateID — внешний монотонный номер обновления; нужен для курсора pull-режима.
	UpdateID int64
	// ChatID — чат-источник события (уже прошедший allow-list).
	ChatID string
	Kind   EventKind

	// Поля команды.
	Command string
	Args    []string

	// Поля callback'а.
	Action     string
	OrderKey   string
	StatusCode string
	// MessageID — id исходного сообщения с карточкой заказа; по нему карточка
	// перерисовывается после перехода.
	MessageID int
	// CallbackID нужен для answerCallbackQuery (всплывающий toast).
	CallbackID string
}

// Действия структурированных callback'ов.
const (
	// ActionUpdateStatus — запрос перевода заказа в новый статус.
	ActionUpdateStatus = "update_status"
	// ActionNoop — нажатие кнопки текущего статуса; подтверждается без мутаций.
	ActionNoop = "noop"
)

// StatusEvent — зафиксированная смена статуса, публикуемая наружу
// (kafka-зеркало и каналы подписчиков получают одно и то же событие).
type StatusEvent struct {
	OrderKey   string    `json:"orderKey"`
	Status     string    `json:"status"`
	OccurredAt time.Time `json:"occurredAt"`
}
