package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jlassimohamed-99/les-rois-des-bois-2-sub001/internal/cart"
	"github.com/jlassimohamed-99/les-rois-des-bois-2-sub001/internal/catalog"
	"github.com/jlassimohamed-99/les-rois-des-bois-2-sub001/internal/clients"
	"github.com/jlassimohamed-99/les-rois-des-bois-2-sub001/internal/events"
	"github.com/jlassimohamed-99/les-rois-des-bois-2-sub001/internal/lock"
	"github.com/jlassimohamed-99/les-rois-des-bois-2-sub001/internal/obs"
	"github.com/jlassimohamed-99/les-rois-des-bois-2-sub001/internal/orders"
	"github.com/jlassimohamed-99/les-rois-des-bois-2-sub001/internal/pricing"
)

// State is the coordinator's position in the checkout state machine.
type State string

const (
	StateIdle       State = "IDLE"
	StateValidating State = "VALIDATING"
	StateSubmitting State = "SUBMITTING"
	StateCommitted  State = "COMMITTED"
	StateFailed     State = "FAILED"
)

// CartStore is the cart surface checkout needs.
type CartStore interface {
	Get(ctx context.Context, sessionID string) (cart.Cart, error)
	Mutate(ctx context.Context, sessionID string, fn func(*cart.Cart) error) (cart.Cart, error)
}

// StockSource reports live stock, bypassing any cache.
type StockSource interface {
	LiveStock(ctx context.Context, ref catalog.StockRef) (int, error)
}

// ClientDirectory looks up the client attached to an order.
type ClientDirectory interface {
	Get(ctx context.Context, id string) (clients.Client, error)
}

// OrderCreator submits drafts to the order service.
type OrderCreator interface {
	CreateOrder(ctx context.Context, d orders.Draft) (orders.Created, error)
}

// SessionLocker takes a non-blocking cross-replica lock.
type SessionLocker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// Publisher emits domain events.
type Publisher interface {
	Emit(ctx context.Context, topic, sessionID, aggregate string, payload any) (events.Event, error)
}

// Deps are shared by every coordinator of a Registry.
type Deps struct {
	Carts   CartStore
	Stock   StockSource
	Clients ClientDirectory
	Orders  OrderCreator
	Locker  SessionLocker
	Events  Publisher

	Currency      pricing.Currency
	RequireClient bool
	SubmitTimeout time.Duration
	LockTTL       time.Duration

	Now          func() time.Time
	NewReference func() string
	Logger       zerolog.Logger
}

func (d *Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now().UTC()
}

func (d *Deps) reference() string {
	if d.NewReference != nil {
		return d.NewReference()
	}
	return uuid.NewString()
}

func (d *Deps) submitTimeout() time.Duration {
	if d.SubmitTimeout <= 0 {
		return 10 * time.Second
	}
	return d.SubmitTimeout
}

// lockTTL outlives the submission so a slow order service cannot let a
// second replica in.
func (d *Deps) lockTTL() time.Duration {
	ttl := d.LockTTL
	if floor := d.submitTimeout() + 5*time.Second; ttl < floor {
		ttl = floor
	}
	return ttl
}

// Request carries the caller's checkout choices.
type Request struct {
	ClientID      string
	PaymentMethod orders.PaymentMethod
}

// Result is returned once the order service accepted the draft.
type Result struct {
	OrderID   string        `json:"orderId"`
	Reference string        `json:"reference"`
	Total     pricing.Money `json:"total"`
	Draft     orders.Draft  `json:"-"`
}

// Status is a point-in-time view of a coordinator.
type Status struct {
	State       State     `json:"state"`
	LastOutcome State     `json:"lastOutcome,omitempty"`
	OrderID     string    `json:"orderId,omitempty"`
	Reference   string    `json:"reference,omitempty"`
	Error       string    `json:"error,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Coordinator converts one session's cart into an order at most once at a time.
type Coordinator struct {
	sessionID string
	deps      *Deps
	inFlight  atomic.Bool
	onSettle  func(*Coordinator)

	mu     sync.Mutex
	status Status
}

func newCoordinator(sessionID string, deps *Deps) *Coordinator {
	c := &Coordinator{sessionID: sessionID, deps: deps}
	c.status = Status{State: StateIdle, UpdatedAt: deps.now()}
	return c
}

// Status returns the current state and the last outcome.
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// InFlight reports whether a checkout is validating or submitting.
func (c *Coordinator) InFlight() bool {
	return c.inFlight.Load()
}

// finish clears the in-flight flag and tells the owner the coordinator is idle.
func (c *Coordinator) finish() {
	c.inFlight.Store(false)
	if c.onSettle != nil {
		c.onSettle(c)
	}
}

func (c *Coordinator) transition(next State, mutate func(*Status)) {
	c.mu.Lock()
	prev := c.status.State
	c.status.State = next
	c.status.UpdatedAt = c.deps.now()
	if mutate != nil {
		mutate(&c.status)
	}
	c.mu.Unlock()
	c.deps.Logger.Info().
		Str("session_id", c.sessionID).
		Str("from_state", string(prev)).
		Str("to_state", string(next)).
		Msg("checkout_state")
}

// Submit runs the checkout protocol. A second call while one is in flight
// returns ErrAlreadyInProgress immediately. If ctx is cancelled during
// submission Submit returns ctx.Err() but the order request still settles:
// the ordered lines leave the cart on success and the in-flight flag always
// clears.
func (c *Coordinator) Submit(ctx context.Context, req Request) (Result, error) {
	started := time.Now()
	if !c.inFlight.CompareAndSwap(false, true) {
		obs.RecordCheckout("in_progress", 0)
		return Result{}, ErrAlreadyInProgress
	}
	method, clientID, err := c.checkRequest(req)
	if err != nil {
		c.finish()
		obs.RecordCheckout(resultLabel(err), obs.DurationMillis(time.Since(started)))
		return Result{}, err
	}
	unlock, err := c.acquire(ctx)
	if err != nil {
		c.finish()
		obs.RecordCheckout(resultLabel(err), obs.DurationMillis(time.Since(started)))
		return Result{}, err
	}
	release := func() {
		unlock()
		c.finish()
	}

	c.transition(StateValidating, func(s *Status) { s.Error = "" })
	ordered, draft, err := c.prepare(ctx, method, clientID)
	if err != nil {
		c.transition(StateIdle, func(s *Status) { s.Error = err.Error() })
		release()
		obs.RecordCheckout(resultLabel(err), obs.DurationMillis(time.Since(started)))
		return Result{}, err
	}

	c.transition(StateSubmitting, func(s *Status) { s.Reference = draft.Reference })
	done := make(chan submission, 1)
	subCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.deps.submitTimeout())
	go func() {
		out := c.submit(subCtx, ordered, draft)
		cancel()
		release()
		obs.RecordCheckout(resultLabel(out.err), obs.DurationMillis(time.Since(started)))
		done <- out
	}()

	select {
	case out := <-done:
		if out.err != nil {
			return Result{}, out.err
		}
		return Result{OrderID: out.created.OrderID, Reference: out.created.Reference, Total: draft.Total, Draft: draft}, nil
	case <-ctx.Done():
		c.deps.Logger.Warn().Str("session_id", c.sessionID).Str("reference", draft.Reference).Msg("checkout_abandoned")
		return Result{}, ctx.Err()
	}
}

type submission struct {
	created orders.Created
	err     error
}

func (c *Coordinator) submit(ctx context.Context, ordered cart.Cart, draft orders.Draft) submission {
	d := c.deps
	created, err := d.Orders.CreateOrder(ctx, draft)
	if err != nil {
		c.transition(StateFailed, func(s *Status) {
			s.LastOutcome = StateFailed
			s.Error = err.Error()
		})
		c.emit(ctx, events.TopicCheckoutFailed, draft.Reference, failurePayload(draft, err))
		c.transition(StateIdle, nil)
		return submission{err: fmt.Errorf("checkout: submit order: %w", err)}
	}
	if created.Reference == "" {
		created.Reference = draft.Reference
	}
	after, err := d.Carts.Mutate(ctx, c.sessionID, func(cc *cart.Cart) error {
		cc.Deduct(ordered)
		return nil
	})
	switch {
	case err != nil:
		d.Logger.Error().Err(err).Str("session_id", c.sessionID).Str("order_id", created.OrderID).Msg("checkout_cart_deduct_failed")
	case len(after.Lines) > 0:
		d.Logger.Info().Str("session_id", c.sessionID).Str("order_id", created.OrderID).Int("lines_kept", len(after.Lines)).Msg("checkout_cart_changed_during_submit")
	}
	c.transition(StateCommitted, func(s *Status) {
		s.LastOutcome = StateCommitted
		s.OrderID = created.OrderID
		s.Error = ""
	})
	c.emit(ctx, events.TopicCheckoutCommitted, created.OrderID, map[string]any{
		"orderId":       created.OrderID,
		"reference":     draft.Reference,
		"clientId":      draft.ClientID,
		"total":         draft.Total,
		"items":         len(draft.Items),
		"paymentMethod": draft.PaymentMethod,
	})
	c.transition(StateIdle, nil)
	return submission{created: created}
}

func (c *Coordinator) acquire(ctx context.Context) (func(), error) {
	if c.deps.Locker == nil {
		return func() {}, nil
	}
	unlock, err := c.deps.Locker.TryLock(ctx, lock.SessionKey(c.sessionID, "checkout"), c.deps.lockTTL())
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			return nil, ErrAlreadyInProgress
		}
		return nil, fmt.Errorf("checkout: acquire lock: %w", err)
	}
	return unlock, nil
}

// checkRequest runs the checks that need neither the cart nor the network.
func (c *Coordinator) checkRequest(req Request) (orders.PaymentMethod, string, error) {
	method, ok := orders.ParsePaymentMethod(string(req.PaymentMethod))
	if !ok {
		return "", "", ErrInvalidPaymentMethod
	}
	clientID := strings.TrimSpace(req.ClientID)
	if c.deps.RequireClient && clientID == "" {
		return "", "", ErrMissingClient
	}
	return method, clientID, nil
}

// prepare runs the read-only checks and builds the immutable draft together
// with the cart snapshot it was built from.
func (c *Coordinator) prepare(ctx context.Context, method orders.PaymentMethod, clientID string) (cart.Cart, orders.Draft, error) {
	d := c.deps
	if d.Carts == nil || d.Stock == nil || d.Orders == nil {
		return cart.Cart{}, orders.Draft{}, errors.New("checkout: coordinator not configured")
	}
	current, err := d.Carts.Get(ctx, c.sessionID)
	if err != nil {
		return cart.Cart{}, orders.Draft{}, err
	}
	if len(current.Lines) == 0 {
		return cart.Cart{}, orders.Draft{}, ErrEmptyCart
	}

	changes, err := c.revalidate(ctx, current)
	if err != nil {
		return cart.Cart{}, orders.Draft{}, err
	}
	if len(changes) > 0 {
		if _, err := d.Carts.Mutate(ctx, c.sessionID, func(cc *cart.Cart) error {
			for _, ch := range changes {
				cc.ApplyLiveStock(ch.LineID, ch.Current)
			}
			return nil
		}); err != nil {
			return cart.Cart{}, orders.Draft{}, fmt.Errorf("checkout: persist clamped cart: %w", err)
		}
		c.emit(ctx, events.TopicCheckoutStockChanged, c.sessionID, map[string]any{"changes": changes})
		return cart.Cart{}, orders.Draft{}, &StockChangedError{Changes: changes}
	}

	if clientID != "" {
		if d.Clients == nil {
			return cart.Cart{}, orders.Draft{}, errors.New("checkout: client directory not configured")
		}
		if _, err := d.Clients.Get(ctx, clientID); err != nil {
			if errors.Is(err, clients.ErrNotFound) {
				return cart.Cart{}, orders.Draft{}, ErrClientNotFound
			}
			return cart.Cart{}, orders.Draft{}, fmt.Errorf("checkout: lookup client: %w", err)
		}
	}
	return current, c.buildDraft(current, clientID, method), nil
}

// revalidate compares every line against live stock. Unknown stock buckets
// count as zero.
func (c *Coordinator) revalidate(ctx context.Context, current cart.Cart) ([]LineChange, error) {
	var changes []LineChange
	for _, line := range current.Lines {
		live, err := c.deps.Stock.LiveStock(ctx, line.StockRef())
		if err != nil {
			if !errors.Is(err, catalog.ErrNotFound) {
				return nil, fmt.Errorf("checkout: live stock for %s: %w", line.ProductID, err)
			}
			live = 0
		}
		if live < 0 {
			live = 0
		}
		if live >= line.Quantity {
			continue
		}
		changes = append(changes, LineChange{
			LineID:    line.ID,
			ProductID: line.ProductID,
			Name:      line.Name,
			Previous:  line.Quantity,
			Current:   live,
			Removed:   live == 0,
		})
	}
	return changes, nil
}

func (c *Coordinator) buildDraft(current cart.Cart, clientID string, method orders.PaymentMethod) orders.Draft {
	totals := current.Totals()
	items := make([]orders.Item, 0, len(current.Lines))
	for _, line := range current.Lines {
		item := orders.Item{
			ProductID:   line.ProductID,
			ProductType: line.ProductType,
			Name:        line.Name,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
		}
		if line.Variant != nil {
			item.VariantValue = line.Variant.Value
		}
		if line.CombinationID != nil {
			item.CombinationID = *line.CombinationID
		}
		items = append(items, item)
	}
	return orders.Draft{
		Reference:     c.deps.reference(),
		SessionID:     c.sessionID,
		ClientID:      clientID,
		Items:         items,
		Subtotal:      totals.Subtotal,
		Discount:      totals.Discount,
		Total:         totals.Total,
		Currency:      c.deps.Currency.Code,
		Notes:         current.Notes,
		PaymentMethod: method,
		CreatedAt:     c.deps.now(),
	}
}

func (c *Coordinator) emit(ctx context.Context, topic, aggregate string, payload any) {
	if c.deps.Events == nil {
		return
	}
	if _, err := c.deps.Events.Emit(ctx, topic, c.sessionID, aggregate, payload); err != nil {
		c.deps.Logger.Warn().Err(err).Str("topic", topic).Str("session_id", c.sessionID).Msg("checkout_event_failed")
	}
}

func failurePayload(draft orders.Draft, err error) map[string]any {
	payload := map[string]any{"reference": draft.Reference, "total": draft.Total}
	var oerr *orders.Error
	if errors.As(err, &oerr) {
		payload["status"] = oerr.Status
		payload["code"] = oerr.Code
		payload["message"] = oerr.Message
		return payload
	}
	payload["message"] = err.Error()
	return payload
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "committed"
	case errors.Is(err, ErrAlreadyInProgress):
		return "in_progress"
	case errors.Is(err, ErrEmptyCart):
		return "empty_cart"
	case errors.Is(err, ErrMissingClient):
		return "missing_client"
	case errors.Is(err, ErrClientNotFound):
		return "client_not_found"
	case errors.Is(err, ErrStockChanged):
		return "stock_changed"
	case errors.Is(err, ErrInvalidPaymentMethod):
		return "invalid_payment"
	default:
		return "failed"
	}
}
