// Package lang holds the reply templates sent to customers.
package lang

import "fmt"

const (
	En = "en"
	Hi = "hi"
)

// Supported reports whether code has its own template table.
func Supported(code string) bool {
	_, ok := messages[code]
	return ok
}

// T formats the template key for langCode, falling back to English and then to the key itself.
func T(langCode, key string, args ...interface{}) string {
	tmpl, ok := messages[langCode][key]
	if !ok {
		tmpl, ok = messages[En][key]
	}
	if !ok {
		tmpl = key
	}
	if len(args) == 0 {
		return tmpl
	}
	return fmt.Sprintf(tmpl, args...)
}

var messages = map[string]map[string]string{
	En: {
		"welcome":            "👋 Welcome to %s!\nSend *menu* to see what's cooking, or *help* for all commands.",
		"help":               "ℹ️ Here's what I understand:\n• *menu* – today's menu\n• *Burger x2, Pizza x1* – place an order\n• *confirm* – confirm your latest order\n• *cancel* – discard an unconfirmed order\n• *cart* – what you're about to order\n• *my orders* – your recent orders\n• *profile* – your saved details\n• *update profile* – change name and address",
		"order_howto":        "🛒 To order, send item names with quantities, e.g.\n*Burger x2, Pizza x1*",
		"ask_name":           "Before we take your order, what's your name?",
		"ask_name_retry":     "Please type your name.",
		"ask_address":        "Thanks, %s! Please send your delivery address.",
		"ask_address_retry":  "Please type your delivery address.",
		"profile_saved":      "✅ Profile saved. Send *menu* to browse, or order straight away, e.g. *Burger x2*.",
		"profile":            "👤 %s\n🏠 %s\n📍 %s",
		"profile_no_address": "not set yet",
		"profile_no_loc":     "no location shared",
		"menu_header":        "📋 *Menu*",
		"menu_empty":         "The menu is empty right now. Please check back later.",
		"menu_category":      "\n*%s*",
		"menu_line":          "• %s – %s%s",
		"menu_trending":      " 🔥",
		"menu_new":           " 🆕",
		"not_understood":     "🤔 Sorry, I couldn't understand that. Send *help* to see what I can do.",
		"items_not_found":    "❌ Not on the menu or unavailable right now: %s\nSend *menu* to see what's available.",
		"summary_header":     "🧾 *Order #%s*",
		"summary_line":       "• %s x%d – %s",
		"summary_subtotal":   "Subtotal: %s",
		"summary_fee":        "Delivery (%.1f km): %s",
		"summary_fee_tbc":    "Delivery: to be calculated",
		"summary_total":      "*Total: %s*",
		"summary_unresolved": "⚠️ Skipped (not found): %s",
		"summary_address":    "🏠 Deliver to: %s",
		"summary_confirm":    "Reply *confirm* to place this order or *cancel* to discard it.",
		"nothing_to_confirm": "There's no order waiting for confirmation. Send your order, e.g. *Burger x2*.",
		"nothing_to_cancel":  "There's no unconfirmed order to cancel.",
		"order_cancelled":    "🗑 Order #%s cancelled.",
		"choose_payment":     "💳 How would you like to pay for order #%s (%s)?\nReply *cod* for cash on delivery or *upi* to pay now.",
		"upi_instructions":   "📲 Pay %s to UPI ID *%s*, then send the 12-digit UTR number or a screenshot of the payment.",
		"proof_retry":        "Please send the 12-digit UTR number or a screenshot of your payment for order #%s.",
		"proof_received":     "🧾 Payment proof received for order #%s. We'll verify it and confirm shortly.",
		"order_placed":       "✅ Order #%s placed! Total %s, payment: %s. We'll keep you posted.",
		"payment_cod":        "cash on delivery",
		"payment_upi":        "UPI",
		"my_orders_empty":    "You haven't ordered yet.",
		"my_orders_header":   "📦 *Your recent orders*",
		"my_orders_line":     "#%s – %s – %s – %s",
		"cart_empty":         "🛒 Your cart is empty.",
		"cart_header":        "🛒 *Cart*",
		"location_saved":     "📍 Location saved. We'll use it to calculate delivery.",
		"something_wrong":    "😔 Something went wrong. Please try again in a moment.",

		// order status notifications
		"status_confirmed":        "✅ Order #%s is confirmed. Total %s.",
		"status_preparing":        "👨‍🍳 Order #%s is being prepared.",
		"status_ready":            "🍱 Order #%s is ready.",
		"status_out_for_delivery": "🛵 Order #%s is out for delivery.",
		"status_delivered":        "🎉 Order #%s has been delivered. Enjoy your meal!",
		"status_cancelled":        "❌ Order #%s has been cancelled.",
	},
	Hi: {
		"welcome":            "👋 %s mein aapka swagat hai!\nMenu dekhne ke liye *menu* bhejiye, ya sab commands ke liye *help*.",
		"order_howto":        "🛒 Order karne ke liye item ka naam aur quantity bhejiye, jaise\n*Burger x2, Pizza x1*",
		"ask_name":           "Order lene se pehle, aapka naam kya hai?",
		"ask_name_retry":     "Kripya apna naam likhiye.",
		"ask_address":        "Dhanyavaad, %s! Kripya apna delivery address bhejiye.",
		"ask_address_retry":  "Kripya apna delivery address likhiye.",
		"not_understood":     "🤔 Maaf kijiye, samajh nahi aaya. *help* bhejiye.",
		"nothing_to_confirm": "Confirm karne ke liye koi order nahi hai. Apna order bhejiye, jaise *Burger x2*.",
		"something_wrong":    "😔 Kuch gadbad ho gayi. Thodi der baad phir koshish kijiye.",
		"status_delivered":   "🎉 Order #%s deliver ho gaya hai. Khaane ka anand lijiye!",
	},
}
