package conversation

import (
	"fmt"
	"regexp"
	"strings"

	"food-whatsapp/lang"
	"food-whatsapp/models"
	"food-whatsapp/services"
)

// Inbound is one customer message as delivered by a transport.
type Inbound struct {
	From      string
	Text      string
	HasMedia  bool
	MediaType string // MIME type, e.g. "image/jpeg"
	MediaID   string
	Location  *models.GeoPoint
}

func (in Inbound) hasImage() bool {
	return in.HasMedia && (in.MediaType == "" || strings.HasPrefix(in.MediaType, "image/") || in.MediaType == "image")
}

// Facts is what the transition reads from storage before running.
type Facts struct {
	Customer *models.Customer
	// Pending is the newest pending_confirmation order of the customer, or nil.
	Pending *models.Order
}

// Flow selects the bot variant and carries the shop constants used in replies.
type Flow struct {
	PaymentProof  bool
	AdminApproval bool
	ShopName      string
	Currency      string
	UPIID         string
	DefaultLang   string
}

// Effect is an instruction returned by Transition and executed by the Engine.
type Effect interface {
	effect()
}

type (
	Reply struct {
		Text string
	}
	SaveName struct {
		Name string
	}
	// SaveAddress completes the profile.
	SaveAddress struct {
		Address  string
		Location *models.GeoPoint
	}
	SaveLocation struct {
		Location models.GeoPoint
	}
	// IntakeOrder resolves, prices and stores the candidates as a pending_confirmation order,
	// replacing the session cart with the resolved lines.
	IntakeOrder struct {
		Candidates []services.Candidate
		Location   *models.GeoPoint
	}
	ConfirmOrder struct {
		OrderID       string
		PaymentMethod string
		PaymentStatus string
	}
	RecordPaymentProof struct {
		OrderID     string
		UTR         string
		MediaID     string
		ContentType string
	}
	ShowMenu   struct{}
	ShowOrders struct {
		Limit int
	}
	CancelOrder struct {
		OrderID string
	}
	ClearCart struct{}
)

func (Reply) effect()              {}
func (SaveName) effect()           {}
func (SaveAddress) effect()        {}
func (SaveLocation) effect()       {}
func (IntakeOrder) effect()        {}
func (ConfirmOrder) effect()       {}
func (RecordPaymentProof) effect() {}
func (ShowMenu) effect()           {}
func (ShowOrders) effect()         {}
func (CancelOrder) effect()        {}
func (ClearCart) effect()          {}

// bareCommands skip profile gating so a new customer can always get help.
var bareCommands = map[string]bool{
	"hi": true, "hello": true, "start": true, "help": true, "profile": true, "order": true,
}

var utrPattern = regexp.MustCompile(`^\d{12}$`)

const recentOrdersLimit = 5

func normalizeCommand(text string) string {
	return strings.ToLower(strings.Join(strings.Fields(text), " "))
}

// Transition computes the next session and the effects of handling in. It performs no I/O.
func Transition(s Session, f Facts, in Inbound, flow Flow) (Session, []Effect) {
	c := f.Customer
	lc := flow.DefaultLang
	if c != nil && c.Language != "" {
		lc = c.Language
	}
	reply := func(key string, args ...interface{}) Effect {
		return Reply{Text: lang.T(lc, key, args...)}
	}
	text := strings.TrimSpace(in.Text)
	cmd := normalizeCommand(text)

	switch s.State {
	case StateCollectingName:
		if text == "" {
			return s, []Effect{reply("ask_name_retry")}
		}
		s.State = StateCollectingAddress
		return s, []Effect{SaveName{Name: text}, reply("ask_address", text)}

	case StateCollectingAddress:
		if text == "" {
			if in.Location != nil {
				return s, []Effect{SaveLocation{Location: *in.Location}, reply("ask_address_retry")}
			}
			return s, []Effect{reply("ask_address_retry")}
		}
		s.State = StateDefault
		return s, []Effect{SaveAddress{Address: text, Location: in.Location}, reply("profile_saved")}

	case StateAwaitingPaymentProof:
		return awaitingProof(s, f, in, cmd, flow, reply)
	}

	s.State = StateDefault
	switch cmd {
	case "hi", "hello", "start":
		return s, []Effect{reply("welcome", flow.ShopName)}
	case "help":
		return s, []Effect{reply("help")}
	case "order":
		return s, []Effect{reply("order_howto")}
	case "profile":
		return s, []Effect{profileReply(c, lc)}
	}

	if c == nil || !c.ProfileComplete {
		if c == nil || !c.HasName() {
			s.State = StateCollectingName
			return s, []Effect{reply("ask_name")}
		}
		s.State = StateCollectingAddress
		return s, []Effect{reply("ask_address", c.Name)}
	}

	switch cmd {
	case "update profile":
		s.State = StateCollectingName
		return s, []Effect{reply("ask_name")}
	case "menu":
		return s, []Effect{ShowMenu{}}
	case "my orders", "orders":
		return s, []Effect{ShowOrders{Limit: recentOrdersLimit}}
	case "cart":
		return s, []Effect{cartReply(s.Cart, lc, flow.Currency)}
	case "confirm", "confirm order":
		if f.Pending == nil {
			return s, []Effect{reply("nothing_to_confirm")}
		}
		if flow.PaymentProof {
			s.PendingOrderID = f.Pending.ID
			return s, []Effect{reply("choose_payment", f.Pending.ShortID(), services.FormatMoney(flow.Currency, f.Pending.Total))}
		}
		s.PendingOrderID = ""
		return s, []Effect{
			ConfirmOrder{OrderID: f.Pending.ID, PaymentMethod: models.PaymentCOD, PaymentStatus: models.PaymentStatusUnpaid},
			ClearCart{},
		}
	case "cod":
		if f.Pending == nil {
			return s, []Effect{reply("nothing_to_confirm")}
		}
		s.PendingOrderID = ""
		return s, []Effect{
			ConfirmOrder{OrderID: f.Pending.ID, PaymentMethod: models.PaymentCOD, PaymentStatus: models.PaymentStatusUnpaid},
			ClearCart{},
		}
	case "upi":
		if !flow.PaymentProof {
			return s, []Effect{reply("not_understood")}
		}
		if f.Pending == nil {
			return s, []Effect{reply("nothing_to_confirm")}
		}
		s.State = StateAwaitingPaymentProof
		s.PendingOrderID = f.Pending.ID
		return s, []Effect{reply("upi_instructions", services.FormatMoney(flow.Currency, f.Pending.Total), flow.UPIID)}
	case "cancel":
		if f.Pending == nil {
			return s, []Effect{reply("nothing_to_cancel")}
		}
		s.PendingOrderID = ""
		return s, []Effect{CancelOrder{OrderID: f.Pending.ID}, ClearCart{}}
	}

	if text == "" && in.Location != nil {
		return s, []Effect{SaveLocation{Location: *in.Location}, reply("location_saved")}
	}
	if candidates := services.ParseOrderText(text); len(candidates) > 0 {
		return s, []Effect{IntakeOrder{Candidates: candidates, Location: in.Location}}
	}
	return s, []Effect{reply("not_understood")}
}

func awaitingProof(s Session, f Facts, in Inbound, cmd string, flow Flow, reply func(string, ...interface{}) Effect) (Session, []Effect) {
	if f.Pending == nil || (s.PendingOrderID != "" && f.Pending.ID != s.PendingOrderID) {
		s.State = StateDefault
		s.PendingOrderID = ""
		return s, []Effect{reply("nothing_to_confirm")}
	}
	orderID := f.Pending.ID
	// Only a screenshot or a UTR moves on; every other input, commands included, re-prompts.
	switch {
	case in.hasImage():
		s.State = StateDefault
		s.PendingOrderID = ""
		return s, []Effect{
			RecordPaymentProof{OrderID: orderID, MediaID: in.MediaID, ContentType: in.MediaType},
			reply("proof_received", f.Pending.ShortID()),
			ConfirmOrder{OrderID: orderID, PaymentMethod: models.PaymentUPI, PaymentStatus: models.PaymentStatusVerificationPending},
			ClearCart{},
		}
	case utrPattern.MatchString(cmd):
		s.State = StateDefault
		s.PendingOrderID = ""
		return s, []Effect{
			RecordPaymentProof{OrderID: orderID, UTR: cmd},
			reply("proof_received", f.Pending.ShortID()),
			ConfirmOrder{OrderID: orderID, PaymentMethod: models.PaymentUPI, PaymentStatus: models.PaymentStatusVerificationPending},
			ClearCart{},
		}
	}
	return s, []Effect{reply("proof_retry", f.Pending.ShortID())}
}

func profileReply(c *models.Customer, lc string) Effect {
	if c == nil {
		return Reply{Text: lang.T(lc, "ask_name")}
	}
	addr := c.Address
	if addr == "" {
		addr = lang.T(lc, "profile_no_address")
	}
	loc := lang.T(lc, "profile_no_loc")
	if c.Location != nil {
		loc = fmt.Sprintf("%.5f, %.5f", c.Location.Lat, c.Location.Lon)
	}
	return Reply{Text: lang.T(lc, "profile", c.Name, addr, loc)}
}

func cartReply(cart []models.OrderItem, lc, currency string) Effect {
	if len(cart) == 0 {
		return Reply{Text: lang.T(lc, "cart_empty")}
	}
	var b strings.Builder
	b.WriteString(lang.T(lc, "cart_header"))
	var subtotal int64
	for _, it := range cart {
		b.WriteString("\n")
		b.WriteString(lang.T(lc, "summary_line", it.Name, it.Quantity, services.FormatMoney(currency, it.LineTotal())))
		subtotal += it.LineTotal()
	}
	b.WriteString("\n")
	b.WriteString(lang.T(lc, "summary_subtotal", services.FormatMoney(currency, subtotal)))
	return Reply{Text: b.String()}
}
