package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/order-notifier/internal/domain"
)

const opTimeout = 5 * time.Second

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository создаёт PostgreSQL-реализацию OrderRepository.
func NewOrderRepository(store *Store) domain.OrderRepository {
	return &orderRepository{db: store.DB()}
}

func (r *orderRepository) Create(order domain.Order) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	items, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("marshal order items: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO orders (
			key, customer, phone, address, branch, payment_method,
			items, total_minor, status, version, placed_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`,
		normalizeKey(order.Key), order.Customer, order.Phone, order.Address,
		order.Branch, order.PaymentMethod, items, order.TotalMinor,
		string(order.Status), order.Version, order.PlacedAt, order.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrOrderVersionConflict
		}
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (r *orderRepository) Get(key string) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var (
		order  domain.Order
		status string
		items  []byte
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT key, customer, phone, address, branch, payment_method,
		       items, total_minor, status, version, placed_at, updated_at
		FROM orders
		WHERE key = $1
	`, normalizeKey(key)).Scan(
		&order.Key, &order.Customer, &order.Phone, &order.Address,
		&order.Branch, &order.PaymentMethod, &items, &order.TotalMinor,
		&status, &order.Version, &order.PlacedAt, &order.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("select order: %w", err)
	}

	if len(items) > 0 {
		if err := json.Unmarshal(items, &order.Items); err != nil {
			return domain.Order{}, fmt.Errorf("unmarshal order items: %w", err)
		}
	}
	order.Status = domain.OrderStatus(status)
	return order, nil
}

// Save обновляет заказ с проверкой версии: WHERE по ключу и версии, при
// нулевом числе затронутых строк различаем "нет заказа" и "версия устарела".
func (r *orderRepository) Save(order domain.Order) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET status = $1, version = version + 1, updated_at = now()
		WHERE key = $2 AND version = $3
	`, string(order.Status), normalizeKey(order.Key), order.Version)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		var exists bool
		if err := r.db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM orders WHERE key = $1)`, normalizeKey(order.Key),
		).Scan(&exists); err != nil {
			return fmt.Errorf("check order existence: %w", err)
		}
		if !exists {
			return domain.ErrOrderNotFound
		}
		return domain.ErrOrderVersionConflict
	}
	return nil
}

func normalizeKey(key string) string {
	return strings.ToUpper(strings.TrimSpace(key))
}

var _ domain.OrderRepository = (*orderRepository)(nil)
