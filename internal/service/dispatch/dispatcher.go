// Package dispatch обрабатывает нормализованные события операторского чата:
// команды и нажатия инлайн-кнопок превращаются в переходы статуса заказа.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/order-notifier/internal/domain"
	"github.com/vladislavdragonenkov/order-notifier/internal/metrics"
)

const greeting = "Hola! Soy el bot de pedidos.\n" +
	"/status <orderKey> <estado> — cambiar el estado de un pedido.\n" +
	"Tambien puedes usar los botones de la tarjeta del pedido."

// Options задаёт параметры диспетчера.
type Options struct {
	Logger  *log.Entry
	Metrics *metrics.NotifierMetrics
	Aliases *domain.AliasTable
}

// Option настраивает Dispatcher.
type Option func(*Options)

// WithLogger задаёт logger диспетчера.
func WithLogger(logger *log.Entry) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

// WithMetrics задаёт метрики переходов.
func WithMetrics(m *metrics.NotifierMetrics) Option {
	return func(opts *Options) {
		opts.Metrics = m
	}
}

// WithAliases задаёт таблицу алиасов статусов вместо DefaultAliases.
func WithAliases(table *domain.AliasTable) Option {
	return func(opts *Options) {
		opts.Aliases = table
	}
}

// Dispatcher применяет переходы статуса по событиям чат-интерфейса.
// Каждый зафиксированный переход проходит через StatusAnnouncer ровно один
// раз; отклонённые и пустые переходы не публикуются.
type Dispatcher struct {
	orders    domain.OrderRepository
	chat      domain.ChatSurface
	announcer domain.StatusAnnouncer
	aliases   *domain.AliasTable
	metrics   *metrics.NotifierMetrics
	logger    *log.Entry
}

// NewDispatcher создаёт диспетчер. Ошибка возможна только из-за невалидной
// таблицы алиасов.
func NewDispatcher(orders domain.OrderRepository, chat domain.ChatSurface, announcer domain.StatusAnnouncer, options ...Option) (*Dispatcher, error) {
	opts := Options{}
	for _, option := range options {
		option(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "dispatcher")
	}

	aliases := opts.Aliases
	if aliases == nil {
		table, err := domain.NewAliasTable(domain.DefaultAliases())
		if err != nil {
			return nil, fmt.Errorf("build default alias table: %w", err)
		}
		aliases = table
	}

	return &Dispatcher{
		orders:    orders,
		chat:      chat,
		announcer: announcer,
		aliases:   aliases,
		metrics:   opts.Metrics,
		logger:    logger,
	}, nil
}

// HandleInbound обрабатывает одно входящее событие. Ошибки пользовательского
// уровня (неизвестный заказ, неверный алиас) отвечаются в чат и не
// возвращаются наружу; наружу уходят только сбои самого чат-интерфейса.
func (d *Dispatcher) HandleInbound(ctx context.Context, event domain.InboundEvent) error {
	switch event.Kind {
	case domain.EventKindCommand:
		return d.handleCommand(ctx, event)
	case domain.EventKindCallback:
		return d.handleCallback(ctx, event)
	default:
		d.logger.WithField("kind", string(event.Kind)).Warn("inbound event of unknown kind skipped")
		return nil
	}
}

func (d *Dispatcher) handleCommand(ctx context.Context, event domain.InboundEvent) error {
	switch event.Command {
	case "/start":
		return d.chat.SendText(ctx, event.ChatID, greeting)
	case "/status":
		return d.handleStatusCommand(ctx, event)
	default:
		return d.chat.SendText(ctx, event.ChatID, fmt.Sprintf("Unknown command %s. Try /start.", event.Command))
	}
}

func (d *Dispatcher) handleStatusCommand(ctx context.Context, event domain.InboundEvent) error {
	if len(event.Args) < 1 {
		return d.chat.SendText(ctx, event.ChatID, "Usage: /status <orderKey> <estado>")
	}

	orderKey := strings.ToUpper(strings.TrimSpace(event.Args[0]))

	// Без целевого статуса команда только показывает текущий.
	if len(event.Args) == 1 {
		order, err := d.orders.Get(orderKey)
		if errors.Is(err, domain.ErrOrderNotFound) {
			return d.chat.SendText(ctx, event.ChatID, fmt.Sprintf("ORDER %s NOT FOUND", orderKey))
		}
		if err != nil {
			return fmt.Errorf("get order %s: %w", orderKey, err)
		}
		return d.chat.SendText(ctx, event.ChatID, fmt.Sprintf("ORDER %s: %s", order.Key, order.Status))
	}

	target, err := d.aliases.Resolve(event.Args[1])
	if errors.Is(err, domain.ErrUnknownAlias) {
		d.transitionResult(metrics.TransitionRejected)
		return d.chat.SendText(ctx, event.ChatID, fmt.Sprintf("Unknown status %q. Try: pendiente, en_preparacion, en_camino, entregado, cancelado.", event.Args[1]))
	}
	if err != nil {
		return fmt.Errorf("resolve status alias: %w", err)
	}

	outcome := d.applyTransition(orderKey, target)
	return d.chat.SendText(ctx, event.ChatID, d.outcomeText(orderKey, outcome))
}

func (d *Dispatcher) handleCallback(ctx context.Context, event domain.InboundEvent) error {
	switch event.Action {
	case domain.ActionNoop:
		return d.chat.AnswerCallback(ctx, event.CallbackID, "Current status")
	case domain.ActionUpdateStatus:
		return d.handleUpdateCallback(ctx, event)
	default:
		d.logger.WithField("action", event.Action).Warn("callback with unknown action")
		return d.chat.AnswerCallback(ctx, event.CallbackID, "Unsupported action")
	}
}

func (d *Dispatcher) handleUpdateCallback(ctx context.Context, event domain.InboundEvent) error {
	orderKey := strings.ToUpper(strings.TrimSpace(event.OrderKey))

	target, err := domain.StatusFromCode(event.StatusCode)
	if errors.Is(err, domain.ErrUnknownStatusCode) {
		d.transitionResult(metrics.TransitionRejected)
		return d.chat.AnswerCallback(ctx, event.CallbackID, fmt.Sprintf("Unknown status code %q", event.StatusCode))
	}
	if err != nil {
		return fmt.Errorf("decode status code: %w", err)
	}

	outcome := d.applyTransition(orderKey, target)

	if outcome.applied {
		// Перерисовка карточки и подтверждение идут после фиксации; их сбой
		// не отменяет уже состоявшийся переход, поэтому только логируется.
		if err := d.chat.EditOrderView(ctx, event.ChatID, event.MessageID, outcome.order); err != nil {
			d.logger.WithError(err).WithField("order_key", orderKey).Warn("failed to re-render order card")
		}
		if err := d.chat.SendText(ctx, event.ChatID, d.outcomeText(orderKey, outcome)); err != nil {
			d.logger.WithError(err).WithField("order_key", orderKey).Warn("failed to send confirmation")
		}
		return d.chat.AnswerCallback(ctx, event.CallbackID, fmt.Sprintf("Status -> %s", outcome.order.Status))
	}

	// Неуспех: карточка не трогается, оператор получает только toast.
	return d.chat.AnswerCallback(ctx, event.CallbackID, d.outcomeText(orderKey, outcome))
}

// transitionOutcome — результат применения перехода для формирования ответа.
type transitionOutcome struct {
	applied bool
	order   domain.Order
	err     error
}

// applyTransition выполняет переход: чтение, проверка машины состояний,
// оптимистичная запись, публикация. Публикация происходит только после
// успешной записи.
func (d *Dispatcher) applyTransition(orderKey string, target domain.OrderStatus) transitionOutcome {
	order, err := d.orders.Get(orderKey)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			d.transitionResult(metrics.TransitionNotFound)
		} else {
			d.transitionResult(metrics.TransitionFailed)
		}
		return transitionOutcome{err: err}
	}

	if err := order.CanTransition(target); err != nil {
		if errors.Is(err, domain.ErrSameStatus) {
			d.transitionResult(metrics.TransitionNoop)
		} else {
			d.transitionResult(metrics.TransitionRejected)
		}
		return transitionOutcome{order: order, err: err}
	}

	order.Status = target
	order.UpdatedAt = time.Now().UTC()
	if err := d.orders.Save(order); err != nil {
		d.transitionResult(metrics.TransitionFailed)
		d.logger.WithError(err).WithFields(log.Fields{
			"order_key": orderKey,
			"target":    string(target),
		}).Error("failed to commit status transition")
		// Для ответа оператору перечитываем актуальное состояние.
		if current, getErr := d.orders.Get(orderKey); getErr == nil {
			order = current
		}
		return transitionOutcome{order: order, err: err}
	}
	order.Version++

	d.transitionResult(metrics.TransitionApplied)
	d.logger.WithFields(log.Fields{
		"order_key": order.Key,
		"status":    string(order.Status),
	}).Info("order status transition applied")

	d.announcer.AnnounceStatus(order.Key, order.Status, nil)
	return transitionOutcome{applied: true, order: order}
}

// outcomeText формирует единый пользовательский ответ для обоих путей.
func (d *Dispatcher) outcomeText(orderKey string, outcome transitionOutcome) string {
	switch {
	case outcome.applied:
		return fmt.Sprintf("ORDER %s UPDATED TO: %s", outcome.order.Key, outcome.order.Status)
	case errors.Is(outcome.err, domain.ErrOrderNotFound):
		return fmt.Sprintf("ORDER %s NOT FOUND", orderKey)
	case errors.Is(outcome.err, domain.ErrSameStatus):
		return fmt.Sprintf("ORDER %s ALREADY %s", outcome.order.Key, outcome.order.Status)
	case errors.Is(outcome.err, domain.ErrTerminalStatus):
		return fmt.Sprintf("ORDER %s IS %s AND CAN NOT BE CHANGED", outcome.order.Key, outcome.order.Status)
	default:
		// Если заказ не удалось даже перечитать, статус неизвестен.
		status := string(outcome.order.Status)
		if status == "" {
			status = "unavailable"
		}
		return fmt.Sprintf("FAILED TO UPDATE ORDER %s, CURRENT STATUS: %s", orderKey, status)
	}
}

func (d *Dispatcher) transitionResult(result string) {
	d.metrics.TransitionResult(result)
}
