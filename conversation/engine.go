package conversation

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"food-whatsapp/lang"
	"food-whatsapp/models"
	"food-whatsapp/services"
)

// MediaSource downloads an attachment referenced by an inbound message.
type MediaSource interface {
	FetchMedia(ctx context.Context, mediaID string) (data []byte, contentType string, err error)
}

// ProofSaver stores a payment screenshot and returns its storage key.
type ProofSaver interface {
	SaveProof(ctx context.Context, orderID string, data []byte, contentType string) (key string, err error)
}

type Deps struct {
	Customers *services.CustomerDirectory
	Catalog   *services.MenuCatalog
	Pricing   *services.Pricing
	Orders    *services.OrderStore
	Sessions  SessionStore
}

// Engine runs Transition for each inbound message and executes the returned effects.
// Messages of one customer are handled one at a time.
type Engine struct {
	deps  Deps
	flow  Flow
	log   *zap.Logger
	out   services.Notifier
	media MediaSource
	proof ProofSaver
	locks [lockStripes]sync.Mutex
	now   func() time.Time
}

func NewEngine(deps Deps, flow Flow, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	if flow.DefaultLang == "" {
		flow.DefaultLang = lang.En
	}
	return &Engine{deps: deps, flow: flow, log: log, now: time.Now}
}

// SetMessenger wires the transport used for replies.
func (e *Engine) SetMessenger(n services.Notifier) { e.out = n }

func (e *Engine) SetMediaSource(m MediaSource) { e.media = m }

func (e *Engine) SetProofStore(p ProofSaver) { e.proof = p }

// lockStripes bounds the lock table; customers hashing to the same stripe wait for each other.
const lockStripes = 256

func stripeFor(phone string) int {
	h := fnv.New32a()
	h.Write([]byte(phone))
	return int(h.Sum32() % lockStripes)
}

func (e *Engine) lockPhone(phone string) func() {
	mu := &e.locks[stripeFor(phone)]
	mu.Lock()
	return mu.Unlock
}

// Handle processes one inbound message and sends the replies. Failures never escape: they are
// logged, the customer gets a generic apology and the session stays where it was.
func (e *Engine) Handle(ctx context.Context, in Inbound) {
	if in.From == "" {
		return
	}
	unlock := e.lockPhone(in.From)
	defer unlock()

	log := e.log.With(zap.String("phone", in.From))
	replies, langCode, err := e.handle(ctx, in)
	if err != nil {
		log.Error("handle message", zap.Error(err))
		replies = []string{lang.T(langCode, "something_wrong")}
	}
	for _, text := range replies {
		e.send(ctx, in.From, text)
	}
}

func (e *Engine) send(ctx context.Context, to, text string) {
	if e.out == nil || text == "" {
		return
	}
	if err := e.out.SendText(ctx, to, text); err != nil {
		e.log.Warn("send reply", zap.String("phone", to), zap.Error(err))
	}
}

func (e *Engine) handle(ctx context.Context, in Inbound) (replies []string, langCode string, err error) {
	langCode = e.flow.DefaultLang
	defer func() {
		if r := recover(); r != nil {
			replies = nil
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	customer, err := e.deps.Customers.FindOrCreate(ctx, in.From)
	if err != nil {
		return nil, langCode, fmt.Errorf("find customer: %w", err)
	}
	if customer.Language != "" {
		langCode = customer.Language
	}
	sess, err := e.deps.Sessions.Get(ctx, in.From)
	if errors.Is(err, models.ErrNotFound) {
		sess = newSession(in.From)
	} else if err != nil {
		return nil, langCode, fmt.Errorf("load session: %w", err)
	}
	pending, err := e.deps.Orders.LatestPending(ctx, in.From)
	if errors.Is(err, models.ErrNotFound) {
		pending = nil
	} else if err != nil {
		return nil, langCode, fmt.Errorf("load pending order: %w", err)
	}

	next, effects := Transition(sess, Facts{Customer: customer, Pending: pending}, in, e.flow)
	x := &execution{e: e, customer: customer, session: &next, lang: langCode}
	for _, eff := range effects {
		if err := x.run(ctx, eff); err != nil {
			return nil, langCode, fmt.Errorf("%T: %w", eff, err)
		}
	}
	next.Phone = in.From
	next.UpdatedAt = e.now()
	if err := e.deps.Sessions.Set(ctx, next); err != nil {
		return nil, langCode, fmt.Errorf("save session: %w", err)
	}
	return x.replies, langCode, nil
}

// OnOrderStatus clears the customer's cart once an order is confirmed, whoever confirmed it.
// It runs inside OrderStore calls, possibly while Handle holds the phone lock, so it does not lock.
func (e *Engine) OnOrderStatus(ctx context.Context, o *models.Order) {
	if o.Status != models.OrderStatusConfirmed || o.CustomerPhone == "" {
		return
	}
	sess, err := e.deps.Sessions.Get(ctx, o.CustomerPhone)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			e.log.Warn("load session for cart clear", zap.String("phone", o.CustomerPhone), zap.Error(err))
		}
		return
	}
	if len(sess.Cart) == 0 {
		return
	}
	sess.Cart = nil
	sess.UpdatedAt = e.now()
	if err := e.deps.Sessions.Set(ctx, sess); err != nil {
		e.log.Warn("clear cart", zap.String("phone", o.CustomerPhone), zap.Error(err))
	}
}

// execution holds the mutable state of one Handle call.
type execution struct {
	e        *Engine
	customer *models.Customer
	session  *Session
	lang     string
	replies  []string
}

func (x *execution) reply(key string, args ...interface{}) {
	x.replies = append(x.replies, lang.T(x.lang, key, args...))
}

func (x *execution) run(ctx context.Context, eff Effect) error {
	d := x.e.deps
	phone := x.customer.Phone
	switch eff := eff.(type) {
	case Reply:
		x.replies = append(x.replies, eff.Text)

	case SaveName:
		c, err := d.Customers.UpdateProfile(ctx, phone, models.ProfileUpdate{Name: &eff.Name})
		if err != nil {
			return err
		}
		x.customer = c

	case SaveAddress:
		complete := true
		c, err := d.Customers.UpdateProfile(ctx, phone, models.ProfileUpdate{
			Address:  &eff.Address,
			Location: eff.Location,
			Complete: &complete,
		})
		if err != nil {
			return err
		}
		x.customer = c

	case SaveLocation:
		loc := eff.Location
		c, err := d.Customers.UpdateProfile(ctx, phone, models.ProfileUpdate{Location: &loc})
		if err != nil {
			return err
		}
		x.customer = c

	case IntakeOrder:
		return x.intake(ctx, eff)

	case ConfirmOrder:
		o, err := d.Orders.Confirm(ctx, eff.OrderID, services.ConfirmInput{
			PaymentMethod: eff.PaymentMethod,
			PaymentStatus: eff.PaymentStatus,
		})
		if err != nil {
			return err
		}
		x.reply("order_placed", o.ShortID(), services.FormatMoney(x.e.flow.Currency, o.Total), services.PaymentLabel(x.lang, o.PaymentMethod))

	case RecordPaymentProof:
		return x.recordProof(ctx, eff)

	case ShowMenu:
		items, err := d.Catalog.ListAvailable(ctx)
		if err != nil {
			return err
		}
		x.replies = append(x.replies, services.BuildMenuText(items, x.lang, x.e.flow.Currency))

	case ShowOrders:
		orders, err := d.Orders.ListRecent(ctx, phone, eff.Limit)
		if err != nil {
			return err
		}
		x.replies = append(x.replies, services.BuildOrdersList(orders, x.lang, x.e.flow.Currency))

	case CancelOrder:
		o, err := d.Orders.Cancel(ctx, eff.OrderID)
		if err != nil {
			return err
		}
		x.reply("order_cancelled", o.ShortID())

	case ClearCart:
		x.session.Cart = nil

	default:
		return fmt.Errorf("unknown effect %T", eff)
	}
	return nil
}

func (x *execution) intake(ctx context.Context, eff IntakeOrder) error {
	d := x.e.deps
	res, err := services.ResolveCandidates(ctx, d.Catalog, eff.Candidates)
	if err != nil {
		return err
	}
	if len(res.Lines) == 0 {
		x.reply("items_not_found", strings.Join(res.Unresolved, ", "))
		return nil
	}

	loc := eff.Location
	if loc != nil && x.customer.Location == nil {
		c, err := d.Customers.UpdateProfile(ctx, x.customer.Phone, models.ProfileUpdate{Location: loc})
		if err != nil {
			return err
		}
		x.customer = c
	}
	if loc == nil {
		loc = x.customer.Location
	}
	quote, err := d.Pricing.Quote(ctx, loc)
	if err != nil {
		return fmt.Errorf("quote delivery: %w", err)
	}
	o, err := d.Orders.CreatePending(ctx, services.PendingInput{
		Customer: x.customer,
		Items:    res.Lines,
		Quote:    quote,
		Address:  x.customer.Address,
		Location: loc,
	})
	if err != nil {
		return err
	}
	x.session.Cart = res.Lines
	x.session.PendingOrderID = o.ID
	x.replies = append(x.replies, services.BuildOrderSummary(o, res.Unresolved, quote, x.lang, x.e.flow.Currency))
	return nil
}

func (x *execution) recordProof(ctx context.Context, eff RecordPaymentProof) error {
	proof := &models.PaymentProof{
		OrderID:     eff.OrderID,
		Phone:       x.customer.Phone,
		UTR:         eff.UTR,
		ContentType: eff.ContentType,
	}
	if eff.MediaID != "" {
		proof.MediaKey = "media:" + eff.MediaID
		if x.e.media != nil && x.e.proof != nil {
			key, ct, err := x.storeMedia(ctx, eff)
			if err != nil {
				x.e.log.Warn("store payment screenshot", zap.String("order_id", eff.OrderID), zap.Error(err))
			} else {
				proof.MediaKey, proof.ContentType = key, ct
			}
		}
	}
	return x.e.deps.Orders.AttachPaymentProof(ctx, proof)
}

func (x *execution) storeMedia(ctx context.Context, eff RecordPaymentProof) (string, string, error) {
	data, ct, err := x.e.media.FetchMedia(ctx, eff.MediaID)
	if err != nil {
		return "", "", fmt.Errorf("fetch media: %w", err)
	}
	key, err := x.e.proof.SaveProof(ctx, eff.OrderID, data, ct)
	if err != nil {
		return "", "", err
	}
	return key, ct, nil
}
