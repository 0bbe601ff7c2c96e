package postgres

import (
	"context"
	"fmt"
)

// schema — минимальная схема ядра нотификаций. Таблица заказов принадлежит
// общему приложению, но здесь дублируется как bootstrap для пустой базы;
// poll_cursor целиком наш.
const schema = `
CREATE TABLE IF NOT EXISTS orders (
	key            TEXT PRIMARY KEY,
	customer       TEXT NOT NULL DEFAULT '',
	phone          TEXT NOT NULL DEFAULT '',
	address        TEXT NOT NULL DEFAULT '',
	branch         TEXT NOT NULL DEFAULT '',
	payment_method TEXT NOT NULL DEFAULT '',
	items          JSONB NOT NULL DEFAULT '[]',
	total_minor    BIGINT NOT NULL DEFAULT 0,
	status         TEXT NOT NULL,
	version        BIGINT NOT NULL DEFAULT 0,
	placed_at      TIMESTAMPTZ NOT NULL,
	updated_at     TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS poll_cursor (
	name      TEXT PRIMARY KEY,
	update_id BIGINT NOT NULL,
	stored_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Migrate накатывает схему идемпотентно; безопасно вызывать на каждом старте.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
