package marketdata

import (
	"sync"

	"github.com/Jss-on/fasttrade/internal/decimal"
	"github.com/Jss-on/fasttrade/internal/orderbook"
)

// defaultSubscriptionBuffer sizes a listener's channel; once full,
// Broadcast drops further ticks for that listener rather than block.
const defaultSubscriptionBuffer = 256

// CoreNotifier is the subset of trading.Core's surface a Router needs to
// satisfy spec.md §6's OnMarketData/OnTrade callbacks and §4.7's "enqueue
// on_trade(...)" requirement — a strategy wired only through
// trading.Callbacks, never touching the hub subscription API below,
// still sees every tick. Kept as a narrow interface rather than an
// *trading.Core field so this package doesn't need to import trading.
type CoreNotifier interface {
	NotifyMarketData(symbol string, price, quantity decimal.Decimal, isBid bool)
	NotifyTrade(symbol string, price, quantity decimal.Decimal, isBuy bool)
}

// Router is MarketDataRouter: it applies MarketTicks to the shared
// OrderBookRegistry and fans TradeTicks out to subscribers, never
// blocking its caller for more than the O(1) book mutation spec.md §4.7
// requires.
type Router struct {
	registry *orderbook.Registry
	core     CoreNotifier

	marketHub *hub[MarketTick]
	tradeHub  *hub[TradeTick]

	nextIDMu sync.Mutex
	nextID   uint64
}

// NewRouter constructs a Router writing into registry and, if core is
// non-nil, also notifying core of every tick via CoreNotifier. core may
// be nil for callers that only need the hub-based subscription API.
func NewRouter(registry *orderbook.Registry, core CoreNotifier) *Router {
	return &Router{
		registry:  registry,
		core:      core,
		marketHub: newHub[MarketTick](),
		tradeHub:  newHub[TradeTick](),
	}
}

// SubmitMarketTick looks up or creates the OrderBook for tick.Symbol and
// applies it as a bid or ask update, using tick.Timestamp as the
// monotonic update id when the adapter provides no sequence number of
// its own. It then fans the raw tick out to MarketTick subscribers,
// best-effort, and notifies core.OnMarketData if a core is wired.
func (r *Router) SubmitMarketTick(tick MarketTick) {
	book := r.registry.GetOrCreate(tick.Symbol)
	updateID := r.updateID(tick.Timestamp)
	if tick.IsBid {
		book.UpdateBid(tick.Price, tick.Quantity, updateID)
	} else {
		book.UpdateAsk(tick.Price, tick.Quantity, updateID)
	}
	r.marketHub.Broadcast(tick)
	if r.core != nil {
		r.core.NotifyMarketData(tick.Symbol, tick.Price, tick.Quantity, tick.IsBid)
	}
}

// SubmitTradeTick fans a trade print out to TradeTick subscribers and
// notifies core.OnTrade if a core is wired. It never mutates an
// OrderBook — book state comes only from MarketTicks.
func (r *Router) SubmitTradeTick(tick TradeTick) {
	r.tradeHub.Broadcast(tick)
	if r.core != nil {
		r.core.NotifyTrade(tick.Symbol, tick.Price, tick.Quantity, tick.IsBuy)
	}
}

// updateID falls back to a router-local monotonic counter when the
// adapter-supplied timestamp can't be trusted as an id (e.g. two ticks
// sharing one millisecond), guaranteeing update ids seen by one Router
// are non-decreasing.
func (r *Router) updateID(timestamp int64) uint64 {
	r.nextIDMu.Lock()
	defer r.nextIDMu.Unlock()
	candidate := uint64(timestamp)
	if candidate <= r.nextID {
		candidate = r.nextID + 1
	}
	r.nextID = candidate
	return candidate
}

// MarketTickSubscription is a live MarketTick feed; the caller drains
// Ticks() and calls Close when done.
type MarketTickSubscription struct {
	hub *hub[MarketTick]
	sub *subscription[MarketTick]
}

// Ticks returns the channel of delivered market ticks.
func (s *MarketTickSubscription) Ticks() <-chan MarketTick { return s.sub.ch }

// Close unsubscribes and releases the channel.
func (s *MarketTickSubscription) Close() { s.hub.Unsubscribe(s.sub) }

// SubscribeMarketTicks registers a best-effort MarketTick listener.
func (r *Router) SubscribeMarketTicks() *MarketTickSubscription {
	return &MarketTickSubscription{hub: r.marketHub, sub: r.marketHub.Subscribe(defaultSubscriptionBuffer)}
}

// TradeTickSubscription is a live TradeTick feed; the caller drains
// Ticks() and calls Close when done.
type TradeTickSubscription struct {
	hub *hub[TradeTick]
	sub *subscription[TradeTick]
}

// Ticks returns the channel of delivered trade ticks.
func (s *TradeTickSubscription) Ticks() <-chan TradeTick { return s.sub.ch }

// Close unsubscribes and releases the channel.
func (s *TradeTickSubscription) Close() { s.hub.Unsubscribe(s.sub) }

// SubscribeTradeTicks registers a best-effort TradeTick listener.
func (r *Router) SubscribeTradeTicks() *TradeTickSubscription {
	return &TradeTickSubscription{hub: r.tradeHub, sub: r.tradeHub.Subscribe(defaultSubscriptionBuffer)}
}

// Registry returns the OrderBookRegistry ticks are applied to.
func (r *Router) Registry() *orderbook.Registry { return r.registry }

// ConnectorBridge wires a Connector's raw callbacks into the Router,
// translating connector-reported ticks into SubmitMarketTick /
// SubmitTradeTick calls. Exported so cmd-level wiring code doesn't need
// to know the Connector interface's callback shape.
type ConnectorBridge struct {
	Router    *Router
	Connector Connector
}

// OnMarketTick satisfies a Connector's tick-delivery callback shape.
func (b *ConnectorBridge) OnMarketTick(symbol string, price, quantity decimal.Decimal, timestamp int64, isBid bool) {
	b.Router.SubmitMarketTick(MarketTick{Symbol: symbol, Price: price, Quantity: quantity, Timestamp: timestamp, IsBid: isBid})
}

// OnTradeTick satisfies a Connector's trade-delivery callback shape.
func (b *ConnectorBridge) OnTradeTick(symbol string, price, quantity decimal.Decimal, timestamp int64, isBuy bool) {
	b.Router.SubmitTradeTick(TradeTick{Symbol: symbol, Price: price, Quantity: quantity, Timestamp: timestamp, IsBuy: isBuy})
}
