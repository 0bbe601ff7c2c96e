// Package telegram реализует операторский чат-интерфейс поверх Telegram Bot API.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/mymmrac/telego"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/order-notifier/internal/domain"
)

const (
	apiTimeout = 10 * time.Second
	// webhookMaxConnections ограничивает параллелизм доставки на стороне Telegram.
	webhookMaxConnections = 40
)

// Client оборачивает telego и реализует domain.ChatSurface.
type Client struct {
	bot         *telego.Bot
	adminChatID int64
	render      domain.RenderOrderFunc
	logger      *log.Entry
}

// NewClient создаёт клиента Telegram. adminChatID — чат, куда отправляются
// карточки новых заказов.
func NewClient(token, adminChatID string, render domain.RenderOrderFunc, logger *log.Entry) (*Client, error) {
	if logger == nil {
		logger = log.WithField("component", "telegram")
	}
	if render == nil {
		render = RenderOrder
	}

	admin, err := strconv.ParseInt(adminChatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse admin chat id %q: %w", adminChatID, err)
	}

	bot, err := telego.NewBot(token, telego.WithDiscardLogger())
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	return &Client{
		bot:         bot,
		adminChatID: admin,
		render:      render,
		logger:      logger,
	}, nil
}

func parseChatID(chatID string) (telego.ChatID, error) {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return telego.ChatID{}, fmt.Errorf("parse chat id %q: %w", chatID, err)
	}
	return telego.ChatID{ID: id}, nil
}

// SendText отправляет обычное текстовое сообщение.
func (c *Client) SendText(ctx context.Context, chatID, text string) error {
	target, err := parseChatID(chatID)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, apiTimeout)
	defer cancel()
	if _, err := c.bot.SendMessage(ctx, &telego.SendMessageParams{
		ChatID: target,
		Text:   text,
	}); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// EditOrderView перерисовывает карточку заказа: полный текст и клавиатура
// приводятся к текущему статусу. Повторная перерисовка того же состояния
// безопасна.
func (c *Client) EditOrderView(ctx context.Context, chatID string, messageID int, order domain.Order) error {
	target, err := parseChatID(chatID)
	if err != nil {
		return err
	}

	keyboard := statusKeyboard(order.Key, order.Status)

	ctx, cancel := context.WithTimeout(ctx, apiTimeout)
	defer cancel()
	if _, err := c.bot.EditMessageText(ctx, &telego.EditMessageTextParams{
		ChatID:    target,
		MessageID: messageID,
		Text:      c.render(order, order.Status),
		ParseMode: telego.ModeMarkdown,
	}); err != nil {
		return fmt.Errorf("edit message text: %w", err)
	}
	if _, err := c.bot.EditMessageReplyMarkup(ctx, &telego.EditMessageReplyMarkupParams{
		ChatID:      target,
		MessageID:   messageID,
		ReplyMarkup: keyboard,
	}); err != nil {
		return fmt.Errorf("edit message reply markup: %w", err)
	}
	return nil
}

// AnswerCallback подтверждает нажатие кнопки всплывающим toast'ом.
func (c *Client) AnswerCallback(ctx context.Context, callbackID, text string) error {
	ctx, cancel := context.WithTimeout(ctx, apiTimeout)
	defer cancel()
	if err := c.bot.AnswerCallbackQuery(ctx, &telego.AnswerCallbackQueryParams{
		CallbackQueryID: callbackID,
		Text:            text,
		ShowAlert:       false,
	}); err != nil {
		return fmt.Errorf("answer callback query: %w", err)
	}
	return nil
}

// NotifyNewOrder отправляет в админский чат карточку нового заказа с
// клавиатурой статусов; вызывается внешним флоу оформления заказа.
func (c *Client) NotifyNewOrder(ctx context.Context, order domain.Order) error {
	ctx, cancel := context.WithTimeout(ctx, apiTimeout)
	defer cancel()
	if _, err := c.bot.SendMessage(ctx, &telego.SendMessageParams{
		ChatID:      telego.ChatID{ID: c.adminChatID},
		Text:        c.render(order, order.Status),
		ParseMode:   telego.ModeMarkdown,
		ReplyMarkup: statusKeyboard(order.Key, order.Status),
	}); err != nil {
		return fmt.Errorf("send new order card: %w", err)
	}
	c.logger.WithField("order_key", order.Key).Info("new order card sent")
	return nil
}

// FetchUpdates возвращает обновления с id строго больше offset-1...
// то есть начиная с offset; используется poller'ом pull-режима.
func (c *Client) FetchUpdates(ctx context.Context, offset int64) ([]telego.Update, error) {
	ctx, cancel := context.WithTimeout(ctx, apiTimeout)
	defer cancel()
	updates, err := c.bot.GetUpdates(ctx, &telego.GetUpdatesParams{
		Offset: int(offset),
	})
	if err != nil {
		return nil, fmt.Errorf("get updates: %w", err)
	}
	return updates, nil
}

// RegisterWebhook регистрирует push-доставку обновлений на публичный адрес.
func (c *Client) RegisterWebhook(ctx context.Context, baseURL string) error {
	ctx, cancel := context.WithTimeout(ctx, apiTimeout)
	defer cancel()
	url := baseURL + "/telegram/webhook"
	if err := c.bot.SetWebhook(ctx, &telego.SetWebhookParams{
		URL:            url,
		MaxConnections: webhookMaxConnections,
	}); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}
	c.logger.WithField("url", url).Info("telegram webhook registered")
	return nil
}

// Healthy проверяет доступность Bot API; используется health-чекером.
func (c *Client) Healthy(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, apiTimeout)
	defer cancel()
	if _, err := c.bot.GetMe(ctx); err != nil {
		return fmt.Errorf("telegram getMe: %w", err)
	}
	return nil
}

var _ domain.ChatSurface = (*Client)(nil)
