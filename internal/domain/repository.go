package domain

// OrderRepository описывает требования к хранилищу заказов. Хранилище —
// единственный источник истины по статусу заказа; ядро нотификаций меняет
// только поле Status и делает это через валидированные переходы.
type OrderRepository interface {
	// Create сохраняет новый заказ. Возвращает ошибку, если ключ уже занят.
	Create(order Order) error
	// Get возвращает заказ по публичному ключу или ErrOrderNotFound.
	Get(key string) (Order, error)
	// Save применяет обновления к заказу с учётом optimistic locking:
	// при рассинхронизации версий возвращает ErrOrderVersionConflict.
	Save(order Order) error
}

// CursorRepository хранит lastProcessedUpdateId pull-режима. Курсор должен
// переживать рестарт процесса; единоличный владелец записи — poller.
type CursorRepository interface {
	// Load возвращает сохранённый курсор либо 0, если записи ещё нет.
	Load() (int64, error)
	// Store записывает новое значение курсора.
	Store(updateID int64) error
}
