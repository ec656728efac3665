package marketdata

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Jss-on/fasttrade/internal/clock"
	"github.com/Jss-on/fasttrade/internal/decimal"
	"github.com/Jss-on/fasttrade/internal/orderbook"
)

func d(s string) decimal.Decimal { return decimal.MustNew(s) }

func newTestRegistry() *orderbook.Registry { return orderbook.NewRegistry(clock.New(clock.Backtest)) }

func TestSubmitMarketTick_AppliesToBook(t *testing.T) {
	registry := newTestRegistry()
	router := NewRouter(registry, nil)

	router.SubmitMarketTick(MarketTick{Symbol: "BTC-USDT", Price: d("50000"), Quantity: d("1.2"), Timestamp: 1, IsBid: false})
	router.SubmitMarketTick(MarketTick{Symbol: "BTC-USDT", Price: d("49900"), Quantity: d("1.5"), Timestamp: 2, IsBid: true})

	book, ok := registry.Get("BTC-USDT")
	assert.True(t, ok)

	bestBid, _ := book.BestBid()
	bestAsk, _ := book.BestAsk()
	assert.True(t, bestBid.Price.Equal(d("49900")))
	assert.True(t, bestAsk.Price.Equal(d("50000")))
}

func TestSubmitMarketTick_TimestampCollisionStillMonotonic(t *testing.T) {
	registry := newTestRegistry()
	router := NewRouter(registry, nil)

	router.SubmitMarketTick(MarketTick{Symbol: "BTC-USDT", Price: d("50000"), Quantity: d("1"), Timestamp: 5, IsBid: false})
	router.SubmitMarketTick(MarketTick{Symbol: "BTC-USDT", Price: d("50001"), Quantity: d("1"), Timestamp: 5, IsBid: false})

	book, _ := registry.Get("BTC-USDT")
	assert.Equal(t, 2, len(book.Asks(10)))
}

func TestSubscribeMarketTicks_DeliversTicks(t *testing.T) {
	registry := newTestRegistry()
	router := NewRouter(registry, nil)

	sub := router.SubscribeMarketTicks()
	defer sub.Close()

	router.SubmitMarketTick(MarketTick{Symbol: "BTC-USDT", Price: d("50000"), Quantity: d("1"), Timestamp: 1, IsBid: false})

	select {
	case tick := <-sub.Ticks():
		assert.Equal(t, "BTC-USDT", tick.Symbol)
	case <-time.After(time.Second):
		t.Fatal("expected a delivered market tick")
	}
}

func TestSubmitTradeTick_NeverMutatesBook(t *testing.T) {
	registry := newTestRegistry()
	router := NewRouter(registry, nil)

	sub := router.SubscribeTradeTicks()
	defer sub.Close()

	router.SubmitTradeTick(TradeTick{Symbol: "BTC-USDT", Price: d("50000"), Quantity: d("1"), Timestamp: 1, IsBuy: true})

	assert.False(t, registry.Has("BTC-USDT"), "a trade tick alone never creates a book")

	select {
	case tick := <-sub.Ticks():
		assert.True(t, tick.IsBuy)
	case <-time.After(time.Second):
		t.Fatal("expected a delivered trade tick")
	}
}

func TestBroadcast_DropsForSlowSubscriberInsteadOfBlocking(t *testing.T) {
	registry := newTestRegistry()
	router := NewRouter(registry, nil)

	sub := router.SubscribeMarketTicks()
	defer sub.Close()

	for i := 0; i < defaultSubscriptionBuffer+10; i++ {
		router.SubmitMarketTick(MarketTick{Symbol: "BTC-USDT", Price: d("50000"), Quantity: d("1"), Timestamp: int64(i + 1), IsBid: false})
	}

	assert.LessOrEqual(t, len(sub.Ticks()), defaultSubscriptionBuffer, "excess ticks are dropped, never queued unbounded")
}

type fakeCoreNotifier struct {
	marketCalls int
	tradeCalls  int
	lastSymbol  string
}

func (f *fakeCoreNotifier) NotifyMarketData(symbol string, price, quantity decimal.Decimal, isBid bool) {
	f.marketCalls++
	f.lastSymbol = symbol
}

func (f *fakeCoreNotifier) NotifyTrade(symbol string, price, quantity decimal.Decimal, isBuy bool) {
	f.tradeCalls++
	f.lastSymbol = symbol
}

func TestSubmitMarketTick_NotifiesWiredCore(t *testing.T) {
	registry := newTestRegistry()
	core := &fakeCoreNotifier{}
	router := NewRouter(registry, core)

	router.SubmitMarketTick(MarketTick{Symbol: "BTC-USDT", Price: d("50000"), Quantity: d("1"), Timestamp: 1, IsBid: false})

	assert.Equal(t, 1, core.marketCalls)
	assert.Equal(t, "BTC-USDT", core.lastSymbol)
}

func TestSubmitTradeTick_NotifiesWiredCore(t *testing.T) {
	registry := newTestRegistry()
	core := &fakeCoreNotifier{}
	router := NewRouter(registry, core)

	router.SubmitTradeTick(TradeTick{Symbol: "ETH-USDT", Price: d("3000"), Quantity: d("2"), Timestamp: 1, IsBuy: true})

	assert.Equal(t, 1, core.tradeCalls)
	assert.Equal(t, "ETH-USDT", core.lastSymbol)
}
