package orderbook

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Jss-on/fasttrade/internal/clock"
	"github.com/Jss-on/fasttrade/internal/decimal"
)

// UpdateCallback is notified after every applied book update.
type UpdateCallback func(symbol string, lastUpdateID uint64)

// Book is a two-sided order book for one trading pair, maintained from
// venue update events — it never matches orders against each other.
//
// Semantics (best/mid/spread/impact-price zero sentinels, the
// at-or-better liquidity walk, and the JSON snapshot shape) are grounded
// on original_source/include/fasttrade/core/order_book.hpp and
// src/core/order_book.cpp.
type Book struct {
	Symbol string

	clk *clock.Clock

	mu           sync.RWMutex
	bids         *Side
	asks         *Side
	lastUpdateID uint64
	updatedAt    time.Time

	callbacksMu sync.RWMutex
	callbacks   []UpdateCallback
}

// NewBook constructs an empty Book for symbol, using clk as the "now"
// both price-level Arrival stamps and noteUpdate's updatedAt read from —
// the same virtual clock TradingCore runs on, so book and portfolio state
// agree on "now" in every clock mode (spec.md §1, §4.3).
func NewBook(symbol string, clk *clock.Clock) *Book {
	return &Book{
		Symbol: symbol,
		clk:    clk,
		bids:   NewSide(Bid, clk),
		asks:   NewSide(Ask, clk),
	}
}

// UpdateBid applies a single bid-side price level update.
func (b *Book) UpdateBid(price, amount decimal.Decimal, updateID uint64) {
	b.bids.Update(price, amount, updateID)
	b.noteUpdate(updateID)
}

// UpdateAsk applies a single ask-side price level update.
func (b *Book) UpdateAsk(price, amount decimal.Decimal, updateID uint64) {
	b.asks.Update(price, amount, updateID)
	b.noteUpdate(updateID)
}

// BookUpdate is one price level delta from a venue diff or snapshot
// message.
type BookUpdate struct {
	Side     Kind
	Price    decimal.Decimal
	Amount   decimal.Decimal
	UpdateID uint64
}

// ApplyUpdates applies a batch of updates atomically with respect to
// readers, then fires update callbacks once. finalID is assigned to
// last_update_id even for an empty batch — it is the batch's own id,
// independent of (and not derived from) the per-level UpdateIDs carried
// on each BookUpdate. last_update_id never decreases: a finalID below
// the current last_update_id leaves it unchanged.
func (b *Book) ApplyUpdates(updates []BookUpdate, finalID uint64) {
	for _, u := range updates {
		switch u.Side {
		case Bid:
			b.bids.Update(u.Price, u.Amount, u.UpdateID)
		case Ask:
			b.asks.Update(u.Price, u.Amount, u.UpdateID)
		}
	}
	b.noteUpdate(finalID)
}

func (b *Book) noteUpdate(updateID uint64) {
	b.mu.Lock()
	if updateID > b.lastUpdateID {
		b.lastUpdateID = updateID
	}
	b.updatedAt = b.clk.Now()
	b.mu.Unlock()

	b.callbacksMu.RLock()
	cbs := append([]UpdateCallback(nil), b.callbacks...)
	b.callbacksMu.RUnlock()
	for _, cb := range cbs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Error().Interface("panic", r).Str("symbol", b.Symbol).Msg("orderbook: update callback panicked, dropping")
				}
			}()
			cb(b.Symbol, updateID)
		}()
	}
}

// RegisterUpdateCallback adds a callback invoked after every applied
// update. Callbacks are invoked synchronously on the updating goroutine;
// a panicking callback is recovered and logged, never propagated.
func (b *Book) RegisterUpdateCallback(cb UpdateCallback) {
	b.callbacksMu.Lock()
	defer b.callbacksMu.Unlock()
	b.callbacks = append(b.callbacks, cb)
}

// BestBid returns the highest resting bid price level. See Side.Best for
// the zero-as-empty caveat.
func (b *Book) BestBid() (PriceLevel, bool) { return b.bids.Best() }

// BestAsk returns the lowest resting ask price level. See Side.Best for
// the zero-as-empty caveat.
func (b *Book) BestAsk() (PriceLevel, bool) { return b.asks.Best() }

// Bids returns up to limit bid levels, best first.
func (b *Book) Bids(limit int) []PriceLevel { return b.bids.Levels(limit) }

// Asks returns up to limit ask levels, best first.
func (b *Book) Asks(limit int) []PriceLevel { return b.asks.Levels(limit) }

// MidPrice returns (best_bid+best_ask)/2, or Zero if either side is
// empty.
func (b *Book) MidPrice() decimal.Decimal {
	bid, ok := b.BestBid()
	if !ok {
		return decimal.Zero
	}
	ask, okAsk := b.BestAsk()
	if !okAsk {
		return decimal.Zero
	}
	two := decimal.FromInt64(2)
	return bid.Price.Add(ask.Price).Div(two)
}

// Spread returns best_ask-best_bid, or Zero if either side is empty.
func (b *Book) Spread() decimal.Decimal {
	bid, ok := b.BestBid()
	if !ok {
		return decimal.Zero
	}
	ask, okAsk := b.BestAsk()
	if !okAsk {
		return decimal.Zero
	}
	return ask.Price.Sub(bid.Price)
}

// ImpactPrice walks levels on the given side, from best to worst,
// accumulating amount-weighted price until quantity is filled, and
// returns the resulting volume-weighted average price. Returns Zero if
// the side does not have enough resting liquidity to fill quantity.
func (b *Book) ImpactPrice(side Kind, quantity decimal.Decimal) decimal.Decimal {
	var levels []PriceLevel
	switch side {
	case Bid:
		levels = b.bids.Levels(0)
	case Ask:
		levels = b.asks.Levels(0)
	}

	remaining := quantity
	notional := decimal.Zero
	for _, lvl := range levels {
		if remaining.IsZero() || remaining.IsNegative() {
			break
		}
		take := decimal.Min(remaining, lvl.Amount)
		notional = notional.Add(take.Mul(lvl.Price))
		remaining = remaining.Sub(take)
	}
	if remaining.IsPositive() {
		return decimal.Zero
	}
	if quantity.IsZero() {
		return decimal.Zero
	}
	return notional.Div(quantity)
}

// VolumeAtPrice reports how much resting volume on side is available at
// a price at least as good as price.
func (b *Book) VolumeAtPrice(side Kind, price decimal.Decimal) decimal.Decimal {
	switch side {
	case Bid:
		return b.bids.VolumeAtOrBetter(price)
	case Ask:
		return b.asks.VolumeAtOrBetter(price)
	}
	return decimal.Zero
}

// IsValid reports whether the book is internally consistent: crossed
// books (best_bid >= best_ask) are invalid. An empty book, or a book
// with only one side populated, is considered valid — there is nothing
// to be crossed against.
func (b *Book) IsValid() bool {
	bid, ok := b.BestBid()
	if !ok {
		return true
	}
	ask, okAsk := b.BestAsk()
	if !okAsk {
		return true
	}
	return bid.Price.LessThan(ask.Price)
}

// LastUpdateID returns the highest update_id applied so far.
func (b *Book) LastUpdateID() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastUpdateID
}

// Clear removes every resting level on both sides.
func (b *Book) Clear() {
	b.bids.Clear()
	b.asks.Clear()
}

// snapshotLevel is the wire shape of one price level in ToJSON.
type snapshotLevel struct {
	Price  string `json:"price"`
	Amount string `json:"amount"`
}

// Snapshot is the JSON-serializable book shape: {symbol, timestamp,
// lastUpdateId, bids, asks}, matching original_source's to_json output.
type Snapshot struct {
	Symbol       string          `json:"symbol"`
	Timestamp    int64           `json:"timestamp"`
	LastUpdateID uint64          `json:"lastUpdateId"`
	Bids         []snapshotLevel `json:"bids"`
	Asks         []snapshotLevel `json:"asks"`
}

// ToJSON renders a depth-limited snapshot of the book. A non-positive
// depth returns every level on each side.
func (b *Book) ToJSON(depth int) Snapshot {
	b.mu.RLock()
	ts := b.updatedAt
	lastID := b.lastUpdateID
	b.mu.RUnlock()

	toLevels := func(levels []PriceLevel) []snapshotLevel {
		out := make([]snapshotLevel, 0, len(levels))
		for _, lvl := range levels {
			out = append(out, snapshotLevel{Price: lvl.Price.String(), Amount: lvl.Amount.String()})
		}
		return out
	}

	return Snapshot{
		Symbol:       b.Symbol,
		Timestamp:    ts.UnixMilli(),
		LastUpdateID: lastID,
		Bids:         toLevels(b.Bids(depth)),
		Asks:         toLevels(b.Asks(depth)),
	}
}
