// Package marketdata implements MarketDataRouter: the fan-in/fan-out
// point between exchange connectors and the rest of the system. It
// normalizes ticks into OrderBook mutations and forwards trade prints to
// listeners without ever blocking on a slow one.
//
// Grounded on original_source/include/fasttrade/core/market_data_manager.hpp
// (MarketTick, TradeTick, MarketDataConnector, the per-exchange Exchange
// tag) and, for the fan-out mechanism, the teacher's server/hub.go.
package marketdata

import (
	"context"

	"github.com/Jss-on/fasttrade/internal/decimal"
)

// MarketTick is a normalized book-level update from an upstream adapter.
type MarketTick struct {
	Symbol    string
	Price     decimal.Decimal
	Quantity  decimal.Decimal
	Timestamp int64
	IsBid     bool
}

// TradeTick is a normalized executed-trade print from an upstream
// adapter. Trades are informational only: they never mutate an
// OrderBook.
type TradeTick struct {
	Symbol    string
	Price     decimal.Decimal
	Quantity  decimal.Decimal
	Timestamp int64
	IsBuy     bool
}

// Exchange tags which venue a Connector or tick originated from,
// replacing the original's one-class-per-venue hierarchy
// (BinanceConnector/BybitConnector/OkxConnector) with a single tagged
// enum plus one shared Connector interface, per spec.md §9's redesign
// note.
type Exchange int

const (
	Binance Exchange = iota
	Bybit
	OKX
	Synthetic // the generic WebSocketConnector demo, not a real venue
)

var exchangeNames = map[Exchange]string{
	Binance:   "binance",
	Bybit:     "bybit",
	OKX:       "okx",
	Synthetic: "synthetic",
}

func (e Exchange) String() string {
	if name, ok := exchangeNames[e]; ok {
		return name
	}
	return "unknown"
}

// Connector is the external-collaborator interface a venue adapter
// implements; Router only ever talks to this interface, never to a
// concrete venue type.
type Connector interface {
	Exchange() Exchange
	Connect(ctx context.Context) error
	Disconnect() error
	SubscribeOrderBook(symbol string) error
	SubscribeTrades(symbol string) error
	UnsubscribeOrderBook(symbol string) error
	UnsubscribeTrades(symbol string) error
	IsConnected() bool
}
