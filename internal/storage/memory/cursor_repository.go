package memory

import (
	"sync"

	"github.com/vladislavdragonenkov/order-notifier/internal/domain"
)

// cursorRepositoryInMemory хранит курсор pull-режима в памяти процесса.
// Не переживает рестарт; годится только для тестов и локальных прогонов.
type cursorRepositoryInMemory struct {
	mu     sync.Mutex
	cursor int64
}

// NewCursorRepository возвращает in-memory реализацию CursorRepository.
func NewCursorRepository() domain.CursorRepository {
	return &cursorRepositoryInMemory{}
}

func (r *cursorRepositoryInMemory) Load() (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cursor, nil
}

func (r *cursorRepositoryInMemory) Store(updateID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cursor = updateID
	return nil
}

var _ domain.CursorRepository = (*cursorRepositoryInMemory)(nil)
