package domain

import "errors"

var (
	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderVersionConflict сигнализирует о конфликте версий при сохранении.
	ErrOrderVersionConflict = errors.New("order version conflict")
	// ErrTerminalStatus — попытка перехода из конечного статуса (Delivered/Cancelled).
	ErrTerminalStatus = errors.New("order status is terminal")
	// ErrSameStatus — целевой статус совпадает с текущим; повтор безопасен и не применяется.
	ErrSameStatus = errors.New("order already has target status")
	// ErrUnknownStatusCode — канонический код статуса не распознан.
	ErrUnknownStatusCode = errors.New("unknown status code")
	// ErrUnknownAlias — алиас статуса из текстовой команды не распознан.
	ErrUnknownAlias = errors.New("unknown status alias")
	// ErrAliasCollision — один алиас указывает на два разных статуса; это ошибка конфигурации.
	ErrAliasCollision = errors.New("status alias maps to multiple statuses")
)

// IsRejectedTransition проверяет, относится ли ошибка к отклонённым переходам
// (конечный статус либо повтор текущего): состояние не меняется, broadcast не выполняется.
func IsRejectedTransition(err error) bool {
	return errors.Is(err, ErrTerminalStatus) || errors.Is(err, ErrSameStatus)
}
