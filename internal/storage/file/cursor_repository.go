// Package file хранит курсор pull-режима в обычном файле рядом с процессом.
// Формат — десятичное число в одну строку; его удобно смотреть и править руками.
package file

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/vladislavdragonenkov/order-notifier/internal/domain"
)

type cursorRepositoryFile struct {
	path string
}

// NewCursorRepository возвращает файловую реализацию CursorRepository.
func NewCursorRepository(path string) domain.CursorRepository {
	return &cursorRepositoryFile{path: path}
}

// Load читает курсор из файла; отсутствующий или пустой файл означает 0.
func (r *cursorRepositoryFile) Load() (int64, error) {
	raw, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("read cursor file: %w", err)
	}

	text := strings.TrimSpace(string(raw))
	if text == "" {
		return 0, nil
	}
	cursor, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse cursor file %q: %w", r.path, err)
	}
	return cursor, nil
}

// Store записывает курсор атомарно: во временный файл с последующим rename,
// чтобы падение процесса посреди записи не оставило обрезанное значение.
func (r *cursorRepositoryFile) Store(updateID int64) error {
	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(strconv.FormatInt(updateID, 10)), 0o644); err != nil {
		return fmt.Errorf("write cursor file: %w", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("replace cursor file: %w", err)
	}
	return nil
}

var _ domain.CursorRepository = (*cursorRepositoryFile)(nil)
