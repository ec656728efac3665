package orderbook

import (
	"sync"

	"github.com/Jss-on/fasttrade/internal/clock"
)

// Registry owns one Book per trading pair, created lazily on first
// access. Lock order for callers that also touch other domain locks:
// Registry < TradingCore core-state < TradingCore event-queue.
type Registry struct {
	clk *clock.Clock

	mu    sync.RWMutex
	books map[string]*Book
}

// NewRegistry constructs an empty Registry whose Books all read "now"
// from clk — the same Clock instance TradingCore runs on, so order-book
// timestamps and order/position/trade timestamps agree in every mode,
// including BACKTEST.
func NewRegistry(clk *clock.Clock) *Registry {
	return &Registry{clk: clk, books: make(map[string]*Book)}
}

// GetOrCreate returns the Book for symbol, creating it if it doesn't
// exist yet.
func (r *Registry) GetOrCreate(symbol string) *Book {
	r.mu.RLock()
	book, ok := r.books[symbol]
	r.mu.RUnlock()
	if ok {
		return book
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if book, ok = r.books[symbol]; ok {
		return book
	}
	book = NewBook(symbol, r.clk)
	r.books[symbol] = book
	return book
}

// Has reports whether a Book for symbol has been created.
func (r *Registry) Has(symbol string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.books[symbol]
	return ok
}

// Get returns the Book for symbol without creating it.
func (r *Registry) Get(symbol string) (*Book, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	book, ok := r.books[symbol]
	return book, ok
}

// Remove deletes the Book for symbol, if any.
func (r *Registry) Remove(symbol string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.books, symbol)
}

// Symbols returns every symbol with a registered Book.
func (r *Registry) Symbols() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.books))
	for sym := range r.books {
		out = append(out, sym)
	}
	return out
}

// ClearAll removes every registered Book.
func (r *Registry) ClearAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.books = make(map[string]*Book)
}
