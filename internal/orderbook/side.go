// Package orderbook maintains per-symbol order books built from venue
// market data: one BookSide per side of the market, a Book pairing bid
// and ask sides with best/mid/spread/impact-price queries, and a
// Registry of books keyed by trading pair.
//
// The price-level storage is grounded on the teacher's
// internal/engine/orderbook.go, which keeps a *btree.BTreeG[*PriceLevel]
// per side with a side-specific comparator; the matching algorithm built
// on top of that storage in the teacher (Match/handleLimit/handleMarket)
// is not carried over, since order matching is out of scope here — this
// package only maintains book state from update events, it never crosses
// orders against each other.
package orderbook

import (
	"sync"
	"time"

	"github.com/tidwall/btree"

	"github.com/Jss-on/fasttrade/internal/clock"
	"github.com/Jss-on/fasttrade/internal/decimal"
)

// Kind identifies which side of the market a BookSide represents.
type Kind int

const (
	Bid Kind = iota
	Ask
)

func (k Kind) String() string {
	if k == Bid {
		return "bid"
	}
	return "ask"
}

// PriceLevel is one resting price level: the aggregate amount available
// at Price, the update_id of the event that last touched it, and Arrival,
// the time this level was last touched. Arrival policy (spec.md §4.2,
// resolved against original_source's OrderBookSide::update, which always
// erases the old entry and constructs a fresh one stamped at
// GlobalClock::now()): every update with a non-zero amount — replace or
// genuine insertion alike — stamps Arrival at that update's time. A price
// level's Arrival is never carried forward from before the update.
type PriceLevel struct {
	Price    decimal.Decimal
	Amount   decimal.Decimal
	UpdateID uint64
	Arrival  time.Time
}

type priceLevels = btree.BTreeG[*PriceLevel]

// Side is one side (bid or ask) of an order book: a set of price levels
// ordered so that the best price is always the btree's Min.
type Side struct {
	kind Kind
	clk  *clock.Clock

	mu     sync.RWMutex
	levels *priceLevels
}

// NewSide constructs an empty BookSide for the given Kind, stamping
// Arrival on every applied update from clk. Bids are ordered with the
// highest price first; asks with the lowest price first — both exposed
// identically via Best()/levels.Min().
func NewSide(kind Kind, clk *clock.Clock) *Side {
	var less func(a, b *PriceLevel) bool
	switch kind {
	case Bid:
		less = func(a, b *PriceLevel) bool { return a.Price.GreaterThan(b.Price) }
	case Ask:
		less = func(a, b *PriceLevel) bool { return a.Price.LessThan(b.Price) }
	}
	return &Side{
		kind:   kind,
		clk:    clk,
		levels: btree.NewBTreeG(less),
	}
}

// Update applies a venue update_id'd price level event: a zero amount
// deletes the level (the venue has no liquidity left at that price); a
// non-zero amount replaces whatever amount was previously recorded at
// that price, since venue order book diffs describe absolute level size,
// not incremental deltas. Every non-zero update, replace or genuine
// insertion alike, stamps Arrival at clk.Now() — the old entry, Arrival
// included, is always discarded.
func (s *Side) Update(price, amount decimal.Decimal, updateID uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if amount.IsZero() {
		s.levels.Delete(&PriceLevel{Price: price})
		return
	}
	s.levels.Set(&PriceLevel{Price: price, Amount: amount, UpdateID: updateID, Arrival: s.clk.Now()})
}

// Best returns the best (first, by the side's comparator) price level.
// ok is false when the side is empty; a caller cannot distinguish "no
// such level" from "level exists with Decimal.IsZero() price" from the
// PriceLevel alone, by design — call Empty() first if that distinction
// matters (spec Open Question #1).
func (s *Side) Best() (PriceLevel, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lvl, ok := s.levels.Min()
	if !ok {
		return PriceLevel{}, false
	}
	return *lvl, true
}

// Levels returns up to limit price levels in best-to-worst order. A
// non-positive limit returns every level.
func (s *Side) Levels(limit int) []PriceLevel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []PriceLevel
	s.levels.Scan(func(lvl *PriceLevel) bool {
		out = append(out, *lvl)
		return limit <= 0 || len(out) < limit
	})
	return out
}

// VolumeAtOrBetter sums the amount resting at prices at least as good as
// price: for bids, at or above price; for asks, at or below price.
func (s *Side) VolumeAtOrBetter(price decimal.Decimal) decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := decimal.Zero
	s.levels.Scan(func(lvl *PriceLevel) bool {
		betterOrEqual := true
		switch s.kind {
		case Bid:
			betterOrEqual = lvl.Price.GreaterThanOrEqual(price)
		case Ask:
			betterOrEqual = lvl.Price.LessThanOrEqual(price)
		}
		if !betterOrEqual {
			return false
		}
		total = total.Add(lvl.Amount)
		return true
	})
	return total
}

// Size returns the number of resting price levels.
func (s *Side) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.levels.Len()
}

// Empty reports whether the side has no resting price levels.
func (s *Side) Empty() bool {
	return s.Size() == 0
}

// Clear removes every price level.
func (s *Side) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.levels.Clear()
}

// Kind reports which side of the market this BookSide represents.
func (s *Side) Kind() Kind { return s.kind }
