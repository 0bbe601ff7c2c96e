// Package api содержит HTTP-ручки заказов для внешнего флоу оформления.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/order-notifier/internal/domain"
)

// OrderNotifier отправляет операторам карточку нового заказа.
type OrderNotifier interface {
	NotifyNewOrder(ctx context.Context, order domain.Order) error
}

// OrderHandler обслуживает просмотр статуса и регистрацию новых заказов.
type OrderHandler struct {
	orders   domain.OrderRepository
	notifier OrderNotifier
	logger   *log.Entry
}

// NewOrderHandler создаёт обработчик заказов.
func NewOrderHandler(orders domain.OrderRepository, notifier OrderNotifier, logger *log.Entry) *OrderHandler {
	if logger == nil {
		logger = log.WithField("component", "orders-api")
	}
	return &OrderHandler{
		orders:   orders,
		notifier: notifier,
		logger:   logger,
	}
}

type statusResponse struct {
	OrderKey string `json:"orderKey"`
	Status   string `json:"status"`
}

// Status обслуживает GET /orders/{key}/status.
func (h *OrderHandler) Status(w http.ResponseWriter, r *http.Request) {
	orderKey := strings.ToUpper(strings.TrimSpace(r.PathValue("key")))

	order, err := h.orders.Get(orderKey)
	if errors.Is(err, domain.ErrOrderNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
		return
	}
	if err != nil {
		h.logger.WithError(err).WithField("order_key", orderKey).Error("failed to read order status")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{OrderKey: order.Key, Status: string(order.Status)})
}

type notifyRequest struct {
	Customer      string `json:"customer"`
	Phone         string `json:"phone"`
	Address       string `json:"address"`
	Branch        string `json:"branch"`
	PaymentMethod string `json:"paymentMethod"`
	Items         []struct {
		Name       string   `json:"name"`
		Qty        int      `json:"qty"`
		Options    []string `json:"options"`
		PriceMinor int64    `json:"priceMinor"`
	} `json:"items"`
	TotalMinor int64 `json:"totalMinor"`
}

// Notify обслуживает POST /orders/{key}/notify: флоу оформления передаёт сюда
// снимок нового заказа; он регистрируется в статусе Pending, операторы
// получают карточку с клавиатурой.
func (h *OrderHandler) Notify(w http.ResponseWriter, r *http.Request) {
	orderKey := strings.ToUpper(strings.TrimSpace(r.PathValue("key")))
	if orderKey == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "order key is required"})
		return
	}

	var req notifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order payload"})
		return
	}

	order := domain.Order{
		Key:           orderKey,
		Customer:      req.Customer,
		Phone:         req.Phone,
		Address:       req.Address,
		Branch:        req.Branch,
		PaymentMethod: req.PaymentMethod,
		TotalMinor:    req.TotalMinor,
		Status:        domain.StatusPending,
		Version:       1,
		PlacedAt:      time.Now().UTC(),
	}
	for _, item := range req.Items {
		order.Items = append(order.Items, domain.OrderItem{
			Name:       item.Name,
			Qty:        item.Qty,
			Options:    item.Options,
			PriceMinor: item.PriceMinor,
		})
	}

	if err := h.orders.Create(order); err != nil {
		if errors.Is(err, domain.ErrOrderVersionConflict) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "order already exists"})
			return
		}
		h.logger.WithError(err).WithField("order_key", orderKey).Error("failed to register order")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	if err := h.notifier.NotifyNewOrder(r.Context(), order); err != nil {
		// Заказ уже зарегистрирован, недоставленная карточка не повод для 5xx.
		h.logger.WithError(err).WithField("order_key", orderKey).Warn("failed to notify operators about new order")
	}

	writeJSON(w, http.StatusCreated, map[string]any{"ok": true, "orderKey": orderKey})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
