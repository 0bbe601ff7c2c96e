package memory

import (
	"strings"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/order-notifier/internal/domain"
)

// orderRepositoryInMemory — простая in-memory реализация OrderRepository.
type orderRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[string]domain.Order
}

// NewOrderRepository возвращает in-memory репозиторий для локальной разработки и тестов.
func NewOrderRepository() domain.OrderRepository {
	return &orderRepositoryInMemory{
		items: make(map[string]domain.Order),
	}
}

func normalizeKey(key string) string {
	return strings.ToUpper(strings.TrimSpace(key))
}

// Create сохраняет новый заказ, если ключ ещё не занят.
func (r *orderRepositoryInMemory) Create(order domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := normalizeKey(order.Key)
	if _, exists := r.items[key]; exists {
		return domain.ErrOrderVersionConflict
	}
	order.Key = key
	// Сохраняем копию, чтобы избежать непредсказуемых мутаций извне.
	r.items[key] = order
	return nil
}

// Get возвращает заказ или ErrOrderNotFound, если его нет.
func (r *orderRepositoryInMemory) Get(key string) (domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.items[normalizeKey(key)]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return order, nil
}

// Save перезаписывает заказ, проверяя версию (optimistic locking).
func (r *orderRepositoryInMemory) Save(order domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := normalizeKey(order.Key)
	current, ok := r.items[key]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if current.Version != order.Version {
		return domain.ErrOrderVersionConflict
	}
	// Инкрементируем версию перед сохранением.
	order.Key = key
	order.Version++
	order.UpdatedAt = time.Now().UTC()
	r.items[key] = order
	return nil
}

var _ domain.OrderRepository = (*orderRepositoryInMemory)(nil)
