package services

import (
	"fmt"
	"strings"

	"food-whatsapp/lang"
	"food-whatsapp/models"
)

// FormatMoney renders an amount with the configured currency symbol.
func FormatMoney(currency string, amount int64) string {
	return fmt.Sprintf("%s%d", currency, amount)
}

// AddressFromLocation is the best-effort address used when the customer only shared coordinates.
func AddressFromLocation(p models.GeoPoint) string {
	return fmt.Sprintf("📍 https://www.google.com/maps?q=%f,%f", p.Lat, p.Lon)
}

// CustomerMessageForOrderStatus is the status line sent when an order reaches status.
// It is empty for statuses the customer is not told about.
func CustomerMessageForOrderStatus(o *models.Order, status, langCode, currency string) string {
	switch status {
	case models.OrderStatusConfirmed:
		return lang.T(langCode, "status_confirmed", o.ShortID(), FormatMoney(currency, o.Total))
	case models.OrderStatusPreparing:
		return lang.T(langCode, "status_preparing", o.ShortID())
	case models.OrderStatusReady:
		return lang.T(langCode, "status_ready", o.ShortID())
	case models.OrderStatusOutForDelivery:
		return lang.T(langCode, "status_out_for_delivery", o.ShortID())
	case models.OrderStatusDelivered:
		return lang.T(langCode, "status_delivered", o.ShortID())
	case models.OrderStatusCancelled:
		return lang.T(langCode, "status_cancelled", o.ShortID())
	}
	return ""
}

// PaymentLabel is the customer-facing name of a payment method.
func PaymentLabel(langCode, method string) string {
	if method == models.PaymentUPI {
		return lang.T(langCode, "payment_upi")
	}
	return lang.T(langCode, "payment_cod")
}

// BuildOrderSummary renders the reply sent after an order message was parsed.
func BuildOrderSummary(o *models.Order, unresolved []string, q Quote, langCode, currency string) string {
	var b strings.Builder
	b.WriteString(lang.T(langCode, "summary_header", o.ShortID()))
	b.WriteString("\n")
	for _, it := range o.Items {
		b.WriteString(lang.T(langCode, "summary_line", it.Name, it.Quantity, FormatMoney(currency, it.LineTotal())))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(lang.T(langCode, "summary_subtotal", FormatMoney(currency, o.Subtotal)))
	b.WriteString("\n")
	if q.Known {
		b.WriteString(lang.T(langCode, "summary_fee", q.DistanceKm, FormatMoney(currency, o.DeliveryFee)))
	} else {
		b.WriteString(lang.T(langCode, "summary_fee_tbc"))
	}
	b.WriteString("\n")
	b.WriteString(lang.T(langCode, "summary_total", FormatMoney(currency, o.Total)))
	if o.DeliveryAddress != "" {
		b.WriteString("\n")
		b.WriteString(lang.T(langCode, "summary_address", o.DeliveryAddress))
	}
	if len(unresolved) > 0 {
		b.WriteString("\n\n")
		b.WriteString(lang.T(langCode, "summary_unresolved", strings.Join(unresolved, ", ")))
	}
	b.WriteString("\n\n")
	b.WriteString(lang.T(langCode, "summary_confirm"))
	return b.String()
}

// BuildMenuText renders available items grouped by category.
func BuildMenuText(items []models.MenuItem, langCode, currency string) string {
	if len(items) == 0 {
		return lang.T(langCode, "menu_empty")
	}
	var b strings.Builder
	b.WriteString(lang.T(langCode, "menu_header"))
	category := ""
	for _, it := range items {
		if it.Category != category {
			category = it.Category
			b.WriteString("\n")
			b.WriteString(lang.T(langCode, "menu_category", strings.ToUpper(category[:1])+category[1:]))
		}
		flags := ""
		if it.Trending {
			flags += lang.T(langCode, "menu_trending")
		}
		if it.IsNew {
			flags += lang.T(langCode, "menu_new")
		}
		b.WriteString("\n")
		b.WriteString(lang.T(langCode, "menu_line", it.Name, FormatMoney(currency, it.Price), flags))
		if it.Description != "" {
			b.WriteString("\n  _" + it.Description + "_")
		}
	}
	b.WriteString("\n\n")
	b.WriteString(lang.T(langCode, "order_howto"))
	return b.String()
}

// BuildOrdersList renders the "my orders" reply.
func BuildOrdersList(orders []models.Order, langCode, currency string) string {
	if len(orders) == 0 {
		return lang.T(langCode, "my_orders_empty")
	}
	var b strings.Builder
	b.WriteString(lang.T(langCode, "my_orders_header"))
	for i := range orders {
		o := &orders[i]
		b.WriteString("\n")
		b.WriteString(lang.T(langCode, "my_orders_line", o.ShortID(), o.Status, FormatMoney(currency, o.Total), o.CreatedAt.Format("2006-01-02")))
	}
	return b.String()
}
