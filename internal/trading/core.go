// Package trading implements TradingCore: the orchestrator owning the
// order book registry, the clock, order/position/balance state, pre-trade
// risk gating, and the fill-accounting pipeline that turns external fill
// reports into position, balance, and P&L updates.
//
// Grounded in full on original_source/src/core/trading_core.cpp; lock
// discipline and the capability-bundle Callbacks type follow spec.md §9's
// redesign notes rather than the original's per-event std::function
// members and implicit global clock.
package trading

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"github.com/Jss-on/fasttrade/internal/clock"
	"github.com/Jss-on/fasttrade/internal/decimal"
	"github.com/Jss-on/fasttrade/internal/order"
	"github.com/Jss-on/fasttrade/internal/orderbook"
	"github.com/Jss-on/fasttrade/internal/portfolio"
)

// eventPollInterval matches the Clock dispatcher's discretization, per
// spec.md §5.
const eventPollInterval = 100 * time.Microsecond

// Core is TradingCore: it exclusively owns the OrderBookRegistry, the
// Clock, active_orders/positions/balances/trade_history, the event
// queue, and the current RiskLimits.
//
// Lock order when a caller must hold more than one: registry < this
// struct's state lock < event queue lock. Core never holds its own state
// lock while calling into the registry, and it never enqueues an event
// while holding the state lock.
type Core struct {
	registry *orderbook.Registry
	clk      *clock.Clock

	stateMu      sync.RWMutex
	activeOrders map[string]*order.Order
	positions    map[string]portfolio.Position
	balances     map[string]portfolio.Balance
	tradeHistory []Trade
	riskLimits   portfolio.RiskLimits
	callbacks    Callbacks
	dailyPnl     decimal.Decimal
	totalPnl     decimal.Decimal

	eventMu    sync.Mutex
	eventQueue []func()

	runningMu sync.Mutex
	running   bool
	t         *tomb.Tomb
}

// NewCore constructs an uninitialized Core; call Initialize before Start.
func NewCore() *Core {
	return &Core{
		activeOrders: make(map[string]*order.Order),
		positions:    make(map[string]portfolio.Position),
		balances:     make(map[string]portfolio.Balance),
		dailyPnl:     decimal.Zero,
		totalPnl:     decimal.Zero,
	}
}

// Initialize installs a fresh Clock in the given mode and a fresh
// Registry reading "now" from that same Clock — so order-book timestamps
// and order/position/trade timestamps agree in every mode, including
// BACKTEST — and seeds default risk limits if none have been set yet.
func (c *Core) Initialize(mode clock.Mode) {
	c.clk = clock.New(mode)
	c.registry = orderbook.NewRegistry(c.clk)

	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	if c.riskLimits.MaxPositionSize.IsZero() {
		c.riskLimits = portfolio.DefaultRiskLimits()
	}
}

// Registry returns the OrderBookRegistry, so a MarketDataRouter can push
// ticks into the same books TradingCore risk-checks against.
func (c *Core) Registry() *orderbook.Registry { return c.registry }

// Clock returns the Clock driving now().
func (c *Core) Clock() *clock.Clock { return c.clk }

// Now returns the current timestamp, per spec.md §4.6's now().
func (c *Core) Now() time.Time {
	if c.clk != nil {
		return c.clk.Now()
	}
	return time.Now()
}

// SetRiskLimits replaces the active RiskLimits.
func (c *Core) SetRiskLimits(limits portfolio.RiskLimits) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	c.riskLimits = limits
}

// SetCallbacks replaces the active Callbacks bundle.
func (c *Core) SetCallbacks(cb Callbacks) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	c.callbacks = cb
}

// NotifyMarketData enqueues OnMarketData for a book-level price update, a
// no-op if no listener is registered. A MarketDataRouter calls this
// alongside applying a MarketTick to the OrderBookRegistry, so strategies
// wired only through Callbacks (spec.md §6) still see book-level ticks.
func (c *Core) NotifyMarketData(symbol string, price, quantity decimal.Decimal, isBid bool) {
	c.stateMu.RLock()
	cb := c.callbacks.OnMarketData
	c.stateMu.RUnlock()
	if cb == nil {
		return
	}
	c.enqueue(func() { cb(symbol, price, quantity, isBid) })
}

// NotifyTrade enqueues OnTrade for a venue trade tick, a no-op if no
// listener is registered, matching spec.md §4.7's "enqueue on_trade(...)"
// requirement.
func (c *Core) NotifyTrade(symbol string, price, quantity decimal.Decimal, isBuy bool) {
	c.stateMu.RLock()
	cb := c.callbacks.OnTrade
	c.stateMu.RUnlock()
	if cb == nil {
		return
	}
	c.enqueue(func() { cb(symbol, price, quantity, isBuy) })
}

// IsRunning reports whether Start has been called without a matching Stop.
func (c *Core) IsRunning() bool {
	c.runningMu.Lock()
	defer c.runningMu.Unlock()
	return c.running
}

// Start is idempotent: it starts the Clock and spawns the event-dispatch
// goroutine that drains the event queue.
func (c *Core) Start() {
	c.runningMu.Lock()
	if c.running {
		c.runningMu.Unlock()
		return
	}
	c.running = true
	c.runningMu.Unlock()

	if c.clk != nil {
		c.clk.Start()
	}

	c.t = new(tomb.Tomb)
	c.t.Go(c.processEvents)
}

// Stop is idempotent: it stops the Clock and joins the event-dispatch
// goroutine. Events already dequeued MAY still run to completion.
func (c *Core) Stop() {
	c.runningMu.Lock()
	if !c.running {
		c.runningMu.Unlock()
		return
	}
	c.running = false
	t := c.t
	c.runningMu.Unlock()

	if c.clk != nil {
		c.clk.Stop()
	}
	if t != nil {
		t.Kill(nil)
		_ = t.Wait()
	}
}

func (c *Core) processEvents() error {
	ticker := time.NewTicker(eventPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.t.Dying():
			return nil
		case <-ticker.C:
			for {
				event := c.dequeueEvent()
				if event == nil {
					break
				}
				c.runEvent(event)
			}
		}
	}
}

func (c *Core) runEvent(event func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("trading: listener callback panicked, dropping")
		}
	}()
	event()
}

// enqueue pushes an event onto the event queue, taking only the event
// queue's own lock — never the state lock — to avoid lock inversion.
func (c *Core) enqueue(event func()) {
	c.eventMu.Lock()
	c.eventQueue = append(c.eventQueue, event)
	c.eventMu.Unlock()
}

func (c *Core) dequeueEvent() func() {
	c.eventMu.Lock()
	defer c.eventMu.Unlock()
	if len(c.eventQueue) == 0 {
		return nil
	}
	event := c.eventQueue[0]
	c.eventQueue = c.eventQueue[1:]
	return event
}

// --- Order lifecycle -------------------------------------------------------

// SubmitOrder validates, risk-checks, and — on success — accepts order
// into the active-orders map under its client_order_id. A duplicate
// client_order_id is rejected as a validation failure, matching
// spec.md §4.6 step 3.
func (c *Core) SubmitOrder(o *order.Order) bool {
	if err := o.Validate(); err != nil {
		return false
	}

	c.stateMu.RLock()
	_, duplicate := c.activeOrders[o.ClientOrderID]
	c.stateMu.RUnlock()
	if duplicate {
		return false
	}

	if !c.checkRiskLimits(o) {
		c.enqueue(func() {
			c.stateMu.RLock()
			cb := c.callbacks.OnOrderRejected
			c.stateMu.RUnlock()
			if cb != nil {
				cb(o)
			}
		})
		return false
	}

	_ = o.Accept()
	c.stateMu.Lock()
	c.activeOrders[o.ClientOrderID] = o
	c.stateMu.Unlock()
	return true
}

// CancelOrder marks the order CANCELLED and removes it from the active
// map, enqueuing on_order_cancelled. Returns false silently if id is not
// an active order's id.
func (c *Core) CancelOrder(clientOrderID string) bool {
	c.stateMu.Lock()
	o, ok := c.activeOrders[clientOrderID]
	if !ok {
		c.stateMu.Unlock()
		return false
	}
	_ = o.Cancel()
	delete(c.activeOrders, clientOrderID)
	cb := c.callbacks.OnOrderCancelled
	c.stateMu.Unlock()

	if cb != nil {
		c.enqueue(func() { cb(o) })
	}
	return true
}

// ModifyOrder applies a non-zero new price to the order and stamps
// last_update_time. newQuantity is accepted for signature compatibility
// with the original but is never applied — quantity changes require
// cancel-and-resubmit (spec.md Open Question #2).
func (c *Core) ModifyOrder(clientOrderID string, newPrice, newQuantity decimal.Decimal) bool {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	o, ok := c.activeOrders[clientOrderID]
	if !ok {
		return false
	}
	if !newPrice.IsZero() {
		o.SetPrice(newPrice)
	}
	return true
}

func (c *Core) checkRiskLimits(o *order.Order) bool {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()

	if c.riskLimits.EnableOrderLimits && o.Quantity.GreaterThan(c.riskLimits.MaxOrderSize) {
		return false
	}

	if c.riskLimits.EnablePositionLimits {
		current := c.positions[o.TradingPair].Quantity
		newPosition := current
		if o.Side == order.Buy {
			newPosition = current.Add(o.Quantity)
		} else {
			newPosition = current.Sub(o.Quantity)
		}
		if newPosition.Abs().GreaterThan(c.riskLimits.MaxPositionSize) {
			return false
		}
	}

	if c.riskLimits.EnableLossLimits {
		if c.dailyPnl.LessThan(c.riskLimits.MaxDailyLoss.Neg()) {
			return false
		}
	}

	return true
}

// GetActiveOrders returns every active order, optionally filtered to one
// trading pair.
func (c *Core) GetActiveOrders(symbol string) []*order.Order {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	out := make([]*order.Order, 0, len(c.activeOrders))
	for _, o := range c.activeOrders {
		if symbol != "" && o.TradingPair != symbol {
			continue
		}
		out = append(out, o)
	}
	return out
}

// --- Fill application -------------------------------------------------------

// OnExchangeFill applies an externally-reported fill: it updates the
// matching active order, the symbol's position, the affected balances,
// and the trade history, per spec.md §4.6's "Fill application" steps
// 1-4. Returns false (and raises on_error) if no active order matches
// report.ClientOrderID.
func (c *Core) OnExchangeFill(report FillReport) bool {
	c.stateMu.Lock()
	o, ok := c.activeOrders[report.ClientOrderID]
	if !ok {
		c.stateMu.Unlock()
		c.enqueue(func() {
			c.stateMu.RLock()
			cb := c.callbacks.OnError
			c.stateMu.RUnlock()
			if cb != nil {
				cb("trading_core", "fill report for unknown order "+report.ClientOrderID)
			}
		})
		return false
	}

	fillErr := o.AddExecution(order.Execution{
		Quantity:    report.Quantity,
		Price:       report.Price,
		FeeAmount:   report.FeeAmount,
		FeeCurrency: report.FeeCurrency,
		Timestamp:   report.Timestamp,
	})
	if fillErr != nil {
		log.Warn().Err(fillErr).Str("client_order_id", report.ClientOrderID).Msg("trading: fill exceeded remaining quantity, clamped")
	}

	filled := o.Status == order.Filled
	if filled {
		delete(c.activeOrders, report.ClientOrderID)
	}

	signedQty := report.Quantity
	if o.Side == order.Sell {
		signedQty = signedQty.Neg()
	}
	position := c.positions[report.Symbol]
	if position.Symbol == "" {
		position = portfolio.NewPosition(report.Symbol)
	}
	prevRealized := position.RealizedPnl
	position.ApplyFill(signedQty, report.Price)
	realizedDelta := position.RealizedPnl.Sub(prevRealized)
	position.LastUpdate = c.now()
	c.positions[report.Symbol] = position

	c.totalPnl = c.totalPnl.Add(realizedDelta)
	c.dailyPnl = c.dailyPnl.Add(realizedDelta)

	baseCurrency, quoteCurrency := o.BaseCurrency, o.QuoteCurrency
	baseDelta := report.Quantity
	if o.Side == order.Sell {
		baseDelta = baseDelta.Neg()
	}
	c.applyBalanceDeltaLocked(baseCurrency, baseDelta)
	c.applyBalanceDeltaLocked(quoteCurrency, c.withFeeAdjustedQuoteDelta(o.Side, report))

	trade := Trade{
		TradeID:         uuid.New().String(),
		ClientOrderID:   report.ClientOrderID,
		ExchangeOrderID: report.ExchangeOrderID,
		Symbol:          report.Symbol,
		Side:            report.Side,
		Price:           report.Price,
		Quantity:        report.Quantity,
		Fee:             report.FeeAmount,
		FeeCurrency:     report.FeeCurrency,
		Timestamp:       report.Timestamp,
	}
	c.tradeHistory = append([]Trade{trade}, c.tradeHistory...)

	cbFilled := c.callbacks.OnOrderFilled
	cbTrade := c.callbacks.OnTradeExecuted
	cbPosition := c.callbacks.OnPositionUpdate
	cbBalance := c.callbacks.OnBalanceUpdate
	baseBalance := c.balances[baseCurrency]
	quoteBalance := c.balances[quoteCurrency]
	c.stateMu.Unlock()

	if filled && cbFilled != nil {
		c.enqueue(func() { cbFilled(o) })
	}
	if cbTrade != nil {
		c.enqueue(func() { cbTrade(trade) })
	}
	if cbPosition != nil {
		c.enqueue(func() { cbPosition(position) })
	}
	if cbBalance != nil {
		c.enqueue(func() { cbBalance(baseBalance) })
		c.enqueue(func() { cbBalance(quoteBalance) })
	}

	return true
}

func (c *Core) now() time.Time { return c.Now() }

// withFeeAdjustedQuoteDelta computes the quote-currency balance delta
// for a fill: a BUY spends quantity*price plus the fee; a SELL receives
// quantity*price minus the fee — fees are always paid out of the quote
// leg here and never converted, per spec.md Open Question #4.
func (c *Core) withFeeAdjustedQuoteDelta(side order.Side, report FillReport) decimal.Decimal {
	notional := report.Quantity.Mul(report.Price)
	if side == order.Buy {
		return notional.Add(report.FeeAmount).Neg()
	}
	return notional.Sub(report.FeeAmount)
}

// applyBalanceDeltaLocked applies delta to currency's balance. Caller
// must hold stateMu.
func (c *Core) applyBalanceDeltaLocked(currency string, delta decimal.Decimal) {
	balance := c.balances[currency]
	if balance.Currency == "" {
		balance = portfolio.NewBalance(currency)
	}
	balance.Total = balance.Total.Add(delta)
	balance.Available = balance.Available.Add(delta)
	balance.LastUpdate = c.now()
	c.balances[currency] = balance
}

// --- Queries ----------------------------------------------------------------

// GetPosition returns the position for symbol, or an empty Position if
// none exists.
func (c *Core) GetPosition(symbol string) portfolio.Position {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	if p, ok := c.positions[symbol]; ok {
		return p
	}
	return portfolio.NewPosition(symbol)
}

// GetAllPositions returns a copy of every tracked position, keyed by symbol.
func (c *Core) GetAllPositions() map[string]portfolio.Position {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	out := make(map[string]portfolio.Position, len(c.positions))
	for k, v := range c.positions {
		out[k] = v
	}
	return out
}

// GetBalance returns the balance for currency, or an empty Balance if
// none exists.
func (c *Core) GetBalance(currency string) portfolio.Balance {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	if b, ok := c.balances[currency]; ok {
		return b
	}
	return portfolio.NewBalance(currency)
}

// GetAllBalances returns a copy of every tracked balance, keyed by
// currency.
func (c *Core) GetAllBalances() map[string]portfolio.Balance {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	out := make(map[string]portfolio.Balance, len(c.balances))
	for k, v := range c.balances {
		out[k] = v
	}
	return out
}

// GetPortfolioValue sums cash balances (assumed 1:1 with base_currency,
// no FX conversion) and position notional (quantity*average_price, no
// mark-to-market). Fees are ignored entirely, per spec.md Open Question
// #4.
func (c *Core) GetPortfolioValue(baseCurrency string) decimal.Decimal {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	total := decimal.Zero
	for _, balance := range c.balances {
		total = total.Add(balance.Total)
	}
	for _, position := range c.positions {
		total = total.Add(position.Quantity.Mul(position.AveragePrice))
	}
	return total
}

// GetRealizedPnl returns total_pnl.
func (c *Core) GetRealizedPnl() decimal.Decimal {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.totalPnl
}

// GetUnrealizedPnl sums every tracked position's stored unrealized_pnl.
// A position's unrealized_pnl is only current if MarkToMarket has been
// called for it since the last price move.
func (c *Core) GetUnrealizedPnl() decimal.Decimal {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	total := decimal.Zero
	for _, position := range c.positions {
		total = total.Add(position.UnrealizedPnl)
	}
	return total
}

// GetDailyPnl returns daily_pnl.
func (c *Core) GetDailyPnl() decimal.Decimal {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.dailyPnl
}

// MarkToMarket recomputes a position's unrealized_pnl against markPrice.
// This completes the original's calculate_pnl(), left as an explicit
// placeholder there ("this would be implemented... for now it's a
// placeholder"); callers typically pass a book's MidPrice.
func (c *Core) MarkToMarket(symbol string, markPrice decimal.Decimal) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	position, ok := c.positions[symbol]
	if !ok {
		return
	}
	position.MarkUnrealized(markPrice)
	c.positions[symbol] = position
}

// GetTradeHistory returns up to limit trades, most recent first,
// optionally filtered to one symbol. A zero limit returns every
// matching trade.
func (c *Core) GetTradeHistory(symbol string, limit int) []Trade {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	var out []Trade
	for _, trade := range c.tradeHistory {
		if symbol != "" && trade.Symbol != symbol {
			continue
		}
		out = append(out, trade)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// GetStatistics returns the counts/flags/P&L blob get_statistics()
// reports.
func (c *Core) GetStatistics() Statistics {
	c.stateMu.RLock()
	stats := Statistics{
		ActiveOrders: len(c.activeOrders),
		Positions:    len(c.positions),
		TotalTrades:  len(c.tradeHistory),
		RealizedPnl:  c.totalPnl,
		DailyPnl:     c.dailyPnl,
	}
	for _, position := range c.positions {
		stats.UnrealizedPnl = stats.UnrealizedPnl.Add(position.UnrealizedPnl)
	}
	c.stateMu.RUnlock()

	stats.Running = c.IsRunning()
	return stats
}

// --- Reset / snapshot --------------------------------------------------------

// ResetDaily zeroes daily_pnl. No automatic midnight boundary triggers
// this; a caller (a scheduled job, or a backtest harness between
// simulated days) must invoke it explicitly, per spec.md Open Question #3.
func (c *Core) ResetDaily() {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	c.dailyPnl = decimal.Zero
}

// Reset clears active orders, positions, balances, history, P&L totals,
// and every order book. Intended for BACKTEST harnesses between runs.
func (c *Core) Reset() {
	c.stateMu.Lock()
	c.activeOrders = make(map[string]*order.Order)
	c.positions = make(map[string]portfolio.Position)
	c.balances = make(map[string]portfolio.Balance)
	c.tradeHistory = nil
	c.dailyPnl = decimal.Zero
	c.totalPnl = decimal.Zero
	c.stateMu.Unlock()

	if c.registry != nil {
		c.registry.ClearAll()
	}
}

// ExportState returns a JSON snapshot of positions, balances, and P&L
// totals. Orders and order books are never persisted, by design.
func (c *Core) ExportState() Snapshot {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()

	snap := Snapshot{
		TotalPnl: c.totalPnl,
		DailyPnl: c.dailyPnl,
	}
	for _, p := range c.positions {
		snap.Positions = append(snap.Positions, exportedPosition{
			Symbol:       p.Symbol,
			Quantity:     p.Quantity,
			AveragePrice: p.AveragePrice,
			RealizedPnl:  p.RealizedPnl,
		})
	}
	for _, b := range c.balances {
		snap.Balances = append(snap.Balances, exportedBalance{
			Currency:  b.Currency,
			Total:     b.Total,
			Available: b.Available,
		})
	}
	return snap
}

// ImportState restores positions, balances, and P&L totals from a
// Snapshot produced by ExportState. Unlike the original (which never
// implemented import_state's JSON parsing), this restores the snapshot
// fully, since Snapshot is already a typed value here rather than a raw
// JSON string the caller must parse.
func (c *Core) ImportState(snap Snapshot) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()

	c.positions = make(map[string]portfolio.Position, len(snap.Positions))
	for _, p := range snap.Positions {
		c.positions[p.Symbol] = portfolio.Position{
			Symbol:       p.Symbol,
			Quantity:     p.Quantity,
			AveragePrice: p.AveragePrice,
			RealizedPnl:  p.RealizedPnl,
		}
	}

	c.balances = make(map[string]portfolio.Balance, len(snap.Balances))
	for _, b := range snap.Balances {
		c.balances[b.Currency] = portfolio.Balance{
			Currency:  b.Currency,
			Total:     b.Total,
			Available: b.Available,
		}
	}

	c.totalPnl = snap.TotalPnl
	c.dailyPnl = snap.DailyPnl
}
