package telegram

import (
	"fmt"
	"strings"

	"github.com/vladislavdragonenkov/order-notifier/internal/domain"
)

// RenderOrder собирает человекочитаемую Markdown-сводку заказа для карточки
// в операторском чате. Чистая функция: никаких обращений к хранилищу или
// сети, statusOverride подменяет статус только в тексте.
func RenderOrder(order domain.Order, statusOverride domain.OrderStatus) string {
	status := order.Status
	if statusOverride != "" {
		status = statusOverride
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🍲 *ORDER* `%s`\n\n", order.Key)
	fmt.Fprintf(&b, "🟢 *Status:* %s\n", status)
	if order.Customer != "" {
		fmt.Fprintf(&b, "👤 *Customer:* %s\n", order.Customer)
	}
	if order.Phone != "" {
		fmt.Fprintf(&b, "📞 *Phone:* %s\n", order.Phone)
	}
	if order.Address != "" {
		fmt.Fprintf(&b, "📍 *Address:* %s\n", order.Address)
	}

	totalItems := 0
	for _, item := range order.Items {
		totalItems += item.Qty
	}
	fmt.Fprintf(&b, "\n🛒 *Items (%d):*\n", totalItems)
	if len(order.Items) == 0 {
		b.WriteString("no items recorded\n")
	}
	for i, item := range order.Items {
		fmt.Fprintf(&b, "%d) %s x%d - $%s\n", i+1, item.Name, item.Qty, formatMinor(item.PriceMinor))
		for _, option := range item.Options {
			fmt.Fprintf(&b, "   • ➕ %s\n", option)
		}
	}

	fmt.Fprintf(&b, "💰 *TOTAL:* $%s\n", formatMinor(order.TotalMinor))
	if order.PaymentMethod != "" {
		fmt.Fprintf(&b, "💳 *Payment:* %s\n", order.PaymentMethod)
	}
	if !order.PlacedAt.IsZero() {
		fmt.Fprintf(&b, "🕐 *Placed:* %s\n", order.PlacedAt.Format("02/01/2006 15:04"))
	}
	if order.Branch != "" {
		fmt.Fprintf(&b, "🏪 *Branch:* %s\n", order.Branch)
	}
	return b.String()
}

// formatMinor печатает сумму в минимальных единицах как десятичную строку.
func formatMinor(minor int64) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s%d.%02d", sign, minor/100, minor%100)
}

var _ domain.RenderOrderFunc = RenderOrder
