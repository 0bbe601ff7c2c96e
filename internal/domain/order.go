package domain

import "time"

// OrderStatus описывает жизненный цикл заказа на стороне нотификаций.
type OrderStatus string

const (
	// StatusPending — заказ принят, но кухня ещё не приступила.
	StatusPending OrderStatus = "Pending"
	// StatusPreparing — заказ готовится.
	StatusPreparing OrderStatus = "Preparing"
	// StatusOutForDelivery — заказ передан курьеру.
	StatusOutForDelivery OrderStatus = "OutForDelivery"
	// StatusDelivered — заказ доставлен клиенту (терминальный статус).
	StatusDelivered OrderStatus = "Delivered"
	// StatusCancelled — заказ отменён (терминальный статус).
	StatusCancelled OrderStatus = "Cancelled"
)

// statusLifecycle задаёт порядок статусов для клавиатуры и рендеринга.
var statusLifecycle = []OrderStatus{
	StatusPending,
	StatusPreparing,
	StatusOutForDelivery,
	StatusDelivered,
	StatusCancelled,
}

// Statuses возвращает все канонические статусы в порядке жизненного цикла.
func Statuses() []OrderStatus {
	out := make([]OrderStatus, len(statusLifecycle))
	copy(out, statusLifecycle)
	return out
}

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s OrderStatus) Valid() bool {
	switch s {
	case StatusPending, StatusPreparing, StatusOutForDelivery, StatusDelivered, StatusCancelled:
		return true
	default:
		return false
	}
}

// Terminal сообщает, является ли статус конечным: из него переходы запрещены.
func (s OrderStatus) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// OrderItem представляет одну позицию заказа; используется только для рендеринга.
type OrderItem struct {
	// Name — название блюда.
	Name string
	// Qty — количество единиц.
	Qty int
	// Options — выбранные опции/добавки в свободной форме.
	Options []string
	// PriceMinor — итоговая цена позиции в минимальных денежных единицах.
	PriceMinor int64
}

// Order агрегирует заказ так, как его видит ядро нотификаций: единственное
// изменяемое поле — Status, остальные нужны для человекочитаемой сводки.
type Order struct {
	// Key — короткий публичный номер заказа (например AB123456),
	// отличается от внутреннего id строки в БД.
	Key           string
	Customer      string
	Phone         string
	Address       string
	Branch        string
	PaymentMethod string
	Items         []OrderItem
	TotalMinor    int64
	Status        OrderStatus
	// Version используется для optimistic locking при сохранении.
	Version   int64
	PlacedAt  time.Time
	UpdatedAt time.Time
}

// CanTransition проверяет допустимость перевода заказа в target.
// Возвращает ErrTerminalStatus для заказов в конечном статусе, ErrSameStatus
// при повторном применении текущего статуса (идемпотентный no-op) и
// ErrUnknownStatusCode для значений вне перечисления. Переходы между любыми
// нетерминальными статусами разрешены: оператор может вернуть заказ на шаг
// назад, ошибившись кнопкой.
func (o *Order) CanTransition(target OrderStatus) error {
	if !target.Valid() {
		return ErrUnknownStatusCode
	}
	if o.Status.Terminal() {
		return ErrTerminalStatus
	}
	if o.Status == target {
		return ErrSameStatus
	}
	return nil
}
