package order

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Jss-on/fasttrade/internal/clock"
	"github.com/Jss-on/fasttrade/internal/decimal"
)

// defaultClock is the fallback time source used when an Order is
// constructed without WithClock, mirroring the original's LimitOrder
// constructor stamping creation_time_ from GlobalClock::now().
func defaultClock() Clock {
	return clock.Default()
}

// fillTolerance is the rounding tolerance the invariant
// |Σ executions.quantity − filled_quantity| ≤ 1e-8 is checked against.
var fillTolerance = decimal.MustNew("0.00000001")

// Clock is the minimal time source Order needs to stamp creation and
// mutation times; satisfied by *internal/clock.Clock.
type Clock interface {
	Now() time.Time
}

// Execution is one (possibly partial) fill applied to an Order.
type Execution struct {
	ExecutionID string          `json:"execution_id"`
	Quantity    decimal.Decimal `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	FeeAmount   decimal.Decimal `json:"fee_amount"`
	FeeCurrency string          `json:"fee_currency"`
	Timestamp   time.Time       `json:"timestamp"`
}

// Order is a client-originated order and its state machine.
//
// client_order_id is the identity: two Orders are considered the same
// order iff their ClientOrderID matches.
type Order struct {
	ClientOrderID   string
	TradingPair     string
	Side            Side
	Type            Type
	BaseCurrency    string
	QuoteCurrency   string
	Price           decimal.Decimal
	Quantity        decimal.Decimal
	FilledQuantity  decimal.Decimal
	CreationTime    time.Time
	LastUpdateTime  time.Time
	Status          Status
	PositionTag     string
	ExchangeOrderID string
	Executions      []Execution
	RejectionReason string
	ExpiryTime      time.Time // zero value means unset

	clk Clock
}

// Option configures an Order at construction time.
type Option func(*Order)

// WithClock overrides the clock used to stamp creation_time and every
// subsequent last_update_time. Defaults to clock.Default() if omitted.
func WithClock(c Clock) Option {
	return func(o *Order) { o.clk = c }
}

// WithPositionTag sets the order's position tag.
func WithPositionTag(tag string) Option {
	return func(o *Order) { o.PositionTag = tag }
}

// WithExpiryTime sets the order's expiry time.
func WithExpiryTime(t time.Time) Option {
	return func(o *Order) { o.ExpiryTime = t }
}

// New constructs a PENDING order. trading_pair of the form "BASE-QUOTE"
// derives base/quote currency; if no dash is present, base=trading_pair
// and quote defaults to "USDT".
func New(clientOrderID, tradingPair string, side Side, typ Type, price, quantity decimal.Decimal, opts ...Option) *Order {
	base, quote := splitPair(tradingPair)
	o := &Order{
		ClientOrderID: clientOrderID,
		TradingPair:   tradingPair,
		Side:          side,
		Type:          typ,
		BaseCurrency:  base,
		QuoteCurrency: quote,
		Price:         price,
		Quantity:      quantity,
		Status:        Pending,
	}
	for _, opt := range opts {
		opt(o)
	}
	now := o.now()
	o.CreationTime = now
	o.LastUpdateTime = now
	return o
}

func splitPair(pair string) (base, quote string) {
	if idx := strings.IndexByte(pair, '-'); idx >= 0 {
		return pair[:idx], pair[idx+1:]
	}
	return pair, "USDT"
}

func (o *Order) now() time.Time {
	if o.clk != nil {
		return o.clk.Now()
	}
	return defaultClock().Now()
}

func (o *Order) touch() {
	o.LastUpdateTime = o.now()
}

// Validate checks the invariants submit_order enforces before
// risk-gating: id non-empty, pair non-empty, qty>0, price>0 for LIMIT
// orders, and filled<=quantity.
func (o *Order) Validate() error {
	if o.ClientOrderID == "" {
		return fmt.Errorf("order: client_order_id must not be empty")
	}
	if o.TradingPair == "" {
		return fmt.Errorf("order: trading_pair must not be empty")
	}
	if !o.Quantity.IsPositive() {
		return fmt.Errorf("order: quantity must be positive, got %s", o.Quantity.String())
	}
	if o.Type == Limit && !o.Price.IsPositive() {
		return fmt.Errorf("order: limit order price must be positive, got %s", o.Price.String())
	}
	if o.FilledQuantity.GreaterThan(o.Quantity) {
		return fmt.Errorf("order: filled_quantity %s exceeds quantity %s", o.FilledQuantity.String(), o.Quantity.String())
	}
	return nil
}

// --- State machine ------------------------------------------------------

func (o *Order) transition(to Status) error {
	if !allowedTransition(o.Status, to) {
		return fmt.Errorf("order: illegal transition %s -> %s", o.Status, to)
	}
	o.Status = to
	o.touch()
	return nil
}

func allowedTransition(from, to Status) bool {
	switch from {
	case Pending:
		return to == Open || to == Rejected
	case Open:
		switch to {
		case Partial, Filled, Cancelled, Expired:
			return true
		}
	case Partial:
		switch to {
		case Partial, Filled, Cancelled, Expired:
			return true
		}
	}
	return false
}

// Accept transitions PENDING -> OPEN.
func (o *Order) Accept() error { return o.transition(Open) }

// Reject transitions PENDING -> REJECTED, recording reason.
func (o *Order) Reject(reason string) error {
	if err := o.transition(Rejected); err != nil {
		return err
	}
	o.RejectionReason = reason
	return nil
}

// Cancel transitions OPEN/PARTIAL -> CANCELLED.
func (o *Order) Cancel() error { return o.transition(Cancelled) }

// SetPrice updates the order's price and stamps last_update_time,
// matching the original's set_price setter.
func (o *Order) SetPrice(price decimal.Decimal) {
	o.Price = price
	o.touch()
}

// Expire transitions OPEN/PARTIAL -> EXPIRED.
func (o *Order) Expire() error { return o.transition(Expired) }

// --- Fill accounting -----------------------------------------------------

// ApplyFill appends a synthetic execution (a generated execution id,
// zero fee in the order's quote currency) for qty at price, then runs
// the same accounting as AddExecution.
func (o *Order) ApplyFill(qty, price decimal.Decimal) error {
	return o.AddExecution(Execution{
		Quantity:    qty,
		Price:       price,
		FeeAmount:   decimal.Zero,
		FeeCurrency: o.QuoteCurrency,
	})
}

// AddExecution records exec against the order, incrementing
// filled_quantity and transitioning status to PARTIAL or FILLED. A fill
// that would push filled_quantity past quantity is clamped to the
// remaining quantity; the excess is reported as an error, but the
// order's own state is never corrupted. AddExecution is a no-op error
// (no mutation) if the order is not OPEN or PARTIAL.
func (o *Order) AddExecution(exec Execution) error {
	if !o.Status.IsActive() {
		return fmt.Errorf("order: cannot add execution to order in status %s", o.Status)
	}

	if exec.ExecutionID == "" {
		exec.ExecutionID = uuid.New().String()
	}
	if exec.Timestamp.IsZero() {
		exec.Timestamp = o.now()
	}

	remaining := o.Quantity.Sub(o.FilledQuantity)
	var clampErr error
	qty := exec.Quantity
	if qty.GreaterThan(remaining) {
		clampErr = fmt.Errorf("order: fill quantity %s exceeds remaining %s, clamped to remaining", qty.String(), remaining.String())
		qty = remaining
		exec.Quantity = qty
	}

	o.Executions = append(o.Executions, exec)
	o.FilledQuantity = o.FilledQuantity.Add(qty)

	if o.FilledQuantity.GreaterThanOrEqual(o.Quantity) {
		o.Status = Filled
	} else if o.FilledQuantity.IsPositive() {
		o.Status = Partial
	}
	o.touch()

	return clampErr
}

// --- Derived fields -------------------------------------------------------

// RemainingQuantity returns quantity-filled_quantity.
func (o *Order) RemainingQuantity() decimal.Decimal {
	return o.Quantity.Sub(o.FilledQuantity)
}

// FillPercentage returns filled_quantity/quantity, or zero if quantity
// is zero.
func (o *Order) FillPercentage() decimal.Decimal {
	if o.Quantity.IsZero() {
		return decimal.Zero
	}
	return o.FilledQuantity.Div(o.Quantity)
}

// AverageExecutionPrice returns Σ(qty*price)/filled_quantity across
// executions, or zero if nothing has been filled.
func (o *Order) AverageExecutionPrice() decimal.Decimal {
	if o.FilledQuantity.IsZero() {
		return decimal.Zero
	}
	notional := decimal.Zero
	for _, exec := range o.Executions {
		notional = notional.Add(exec.Quantity.Mul(exec.Price))
	}
	return notional.Div(o.FilledQuantity)
}

// TotalFees sums fee_amount across executions, grouped by fee_currency;
// fees are never converted between currencies.
func (o *Order) TotalFees() map[string]decimal.Decimal {
	totals := make(map[string]decimal.Decimal)
	for _, exec := range o.Executions {
		totals[exec.FeeCurrency] = totals[exec.FeeCurrency].Add(exec.FeeAmount)
	}
	return totals
}

// AgeMillis returns the time elapsed since creation_time, in
// milliseconds, as of now.
func (o *Order) AgeMillis(now time.Time) int64 {
	return now.Sub(o.CreationTime).Milliseconds()
}

// IsActive reports whether the order is OPEN or PARTIAL.
func (o *Order) IsActive() bool { return o.Status.IsActive() }

// CheckFillInvariant verifies |Σ executions.quantity − filled_quantity| ≤
// the rounding tolerance.
func (o *Order) CheckFillInvariant() error {
	sum := decimal.Zero
	for _, exec := range o.Executions {
		sum = sum.Add(exec.Quantity)
	}
	diff := sum.Sub(o.FilledQuantity).Abs()
	if diff.GreaterThan(fillTolerance) {
		return fmt.Errorf("order: execution ledger sum %s diverges from filled_quantity %s", sum.String(), o.FilledQuantity.String())
	}
	return nil
}

// --- Ordering comparator --------------------------------------------------

// Less orders a before b for sorted containers: primary by price (BUY:
// higher first, SELL: lower first), tie-broken by creation_time
// ascending.
func Less(a, b *Order) bool {
	if !a.Price.Equal(b.Price) {
		if a.Side == Buy {
			return a.Price.GreaterThan(b.Price)
		}
		return a.Price.LessThan(b.Price)
	}
	return a.CreationTime.Before(b.CreationTime)
}

// --- Serialization ---------------------------------------------------------

type wireOrder struct {
	ClientOrderID   string          `json:"client_order_id"`
	TradingPair     string          `json:"trading_pair"`
	Side            string          `json:"side"`
	Type            string          `json:"type"`
	BaseCurrency    string          `json:"base_currency"`
	QuoteCurrency   string          `json:"quote_currency"`
	Price           decimal.Decimal `json:"price"`
	Quantity        decimal.Decimal `json:"quantity"`
	FilledQuantity  decimal.Decimal `json:"filled_quantity"`
	CreationTime    time.Time       `json:"creation_time"`
	LastUpdateTime  time.Time       `json:"last_update_time"`
	Status          string          `json:"status"`
	PositionTag     string          `json:"position_tag,omitempty"`
	ExchangeOrderID string          `json:"exchange_order_id,omitempty"`
	Executions      []Execution     `json:"executions"`
	RejectionReason string          `json:"rejection_reason,omitempty"`
	ExpiryTime      *time.Time      `json:"expiry_time,omitempty"`

	// Derived, recomputed on unmarshal — never trusted from the wire.
	RemainingQuantity     decimal.Decimal            `json:"remaining_quantity"`
	FillPercentage        decimal.Decimal            `json:"fill_percentage"`
	AgeMs                 int64                      `json:"age_ms"`
	IsActive              bool                       `json:"is_active"`
	AverageExecutionPrice decimal.Decimal            `json:"average_execution_price"`
	TotalFees             map[string]decimal.Decimal `json:"total_fees"`
}

// MarshalJSON renders the stable JSON shape: stored fields plus the
// derived fields {remaining_quantity, fill_percentage, age_ms,
// is_active, average_execution_price, total_fees}.
func (o *Order) MarshalJSON() ([]byte, error) {
	w := wireOrder{
		ClientOrderID:         o.ClientOrderID,
		TradingPair:           o.TradingPair,
		Side:                  o.Side.String(),
		Type:                  o.Type.String(),
		BaseCurrency:          o.BaseCurrency,
		QuoteCurrency:         o.QuoteCurrency,
		Price:                 o.Price,
		Quantity:              o.Quantity,
		FilledQuantity:        o.FilledQuantity,
		CreationTime:          o.CreationTime,
		LastUpdateTime:        o.LastUpdateTime,
		Status:                o.Status.String(),
		PositionTag:           o.PositionTag,
		ExchangeOrderID:       o.ExchangeOrderID,
		Executions:            o.Executions,
		RejectionReason:       o.RejectionReason,
		RemainingQuantity:     o.RemainingQuantity(),
		FillPercentage:        o.FillPercentage(),
		AgeMs:                 o.AgeMillis(o.now()),
		IsActive:              o.IsActive(),
		AverageExecutionPrice: o.AverageExecutionPrice(),
		TotalFees:             o.TotalFees(),
	}
	if !o.ExpiryTime.IsZero() {
		w.ExpiryTime = &o.ExpiryTime
	}
	return json.Marshal(w)
}

// UnmarshalJSON restores every stored field exactly; derived fields in
// the payload are ignored and recomputed from the stored fields on
// demand by the accessor methods.
func (o *Order) UnmarshalJSON(data []byte) error {
	var w wireOrder
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	side, err := ParseSide(w.Side)
	if err != nil {
		return err
	}
	typ, err := ParseType(w.Type)
	if err != nil {
		return err
	}
	status, err := ParseStatus(w.Status)
	if err != nil {
		return err
	}
	*o = Order{
		ClientOrderID:   w.ClientOrderID,
		TradingPair:     w.TradingPair,
		Side:            side,
		Type:            typ,
		BaseCurrency:    w.BaseCurrency,
		QuoteCurrency:   w.QuoteCurrency,
		Price:           w.Price,
		Quantity:        w.Quantity,
		FilledQuantity:  w.FilledQuantity,
		CreationTime:    w.CreationTime,
		LastUpdateTime:  w.LastUpdateTime,
		Status:          status,
		PositionTag:     w.PositionTag,
		ExchangeOrderID: w.ExchangeOrderID,
		Executions:      w.Executions,
		RejectionReason: w.RejectionReason,
	}
	if w.ExpiryTime != nil {
		o.ExpiryTime = *w.ExpiryTime
	}
	return nil
}
