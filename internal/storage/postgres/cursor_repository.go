package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/order-notifier/internal/domain"
)

// cursorName — имя единственной записи курсора; poller в процессе один.
const cursorName = "telegram"

type cursorRepository struct {
	db *sql.DB
}

// NewCursorRepository создаёт PostgreSQL-реализацию CursorRepository.
// Курсор в той же базе, что и заказы, держит персистентность и обработку
// в одном домене отказа.
func NewCursorRepository(store *Store) domain.CursorRepository {
	return &cursorRepository{db: store.DB()}
}

func (r *cursorRepository) Load() (int64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var updateID int64
	err := r.db.QueryRowContext(ctx,
		`SELECT update_id FROM poll_cursor WHERE name = $1`, cursorName,
	).Scan(&updateID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("select poll cursor: %w", err)
	}
	return updateID, nil
}

func (r *cursorRepository) Store(updateID int64) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO poll_cursor (name, update_id, stored_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE SET update_id = EXCLUDED.update_id, stored_at = now()
	`, cursorName, updateID)
	if err != nil {
		return fmt.Errorf("upsert poll cursor: %w", err)
	}
	return nil
}

var _ domain.CursorRepository = (*cursorRepository)(nil)
