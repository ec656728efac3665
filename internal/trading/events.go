package trading

import (
	"time"

	"github.com/Jss-on/fasttrade/internal/decimal"
	"github.com/Jss-on/fasttrade/internal/order"
	"github.com/Jss-on/fasttrade/internal/portfolio"
)

// Trade is one executed fill recorded in trade_history, grounded on
// spec.md §4.1's Trade value.
type Trade struct {
	TradeID         string
	ClientOrderID   string
	ExchangeOrderID string
	Symbol          string
	Side            order.Side
	Price           decimal.Decimal
	Quantity        decimal.Decimal
	Fee             decimal.Decimal
	FeeCurrency     string
	Timestamp       time.Time
}

// FillReport is an external fill notification driving OnExchangeFill,
// matching submit_fill_report's payload in spec.md §6.
type FillReport struct {
	ClientOrderID   string
	ExchangeOrderID string
	Symbol          string
	Side            order.Side
	Price           decimal.Decimal
	Quantity        decimal.Decimal
	FeeAmount       decimal.Decimal
	FeeCurrency     string
	Timestamp       time.Time
}

// Callbacks is the capability-bundle of strategy-facing listener hooks,
// replacing the original's individual std::function members with one
// struct per spec.md §9's redesign note.
type Callbacks struct {
	OnOrderFilled    func(*order.Order)
	OnOrderCancelled func(*order.Order)
	OnOrderRejected  func(*order.Order)
	OnTradeExecuted  func(Trade)
	OnPositionUpdate func(portfolio.Position)
	OnBalanceUpdate  func(portfolio.Balance)
	OnMarketData     func(symbol string, price, qty decimal.Decimal, isBid bool)
	OnTrade          func(symbol string, price, qty decimal.Decimal, isBuy bool)
	OnError          func(source, message string)
}

// Statistics is the JSON-serializable blob get_statistics() returns.
type Statistics struct {
	ActiveOrders  int             `json:"active_orders"`
	Positions     int             `json:"positions"`
	TotalTrades   int             `json:"total_trades"`
	RealizedPnl   decimal.Decimal `json:"realized_pnl"`
	UnrealizedPnl decimal.Decimal `json:"unrealized_pnl"`
	DailyPnl      decimal.Decimal `json:"daily_pnl"`
	Running       bool            `json:"running"`
}

// exportedPosition/exportedBalance are the snapshot shapes export_state
// emits — deliberately narrower than the live types (no last_update,
// no unrealized_pnl), matching the original's export_state field list.
type exportedPosition struct {
	Symbol       string          `json:"symbol"`
	Quantity     decimal.Decimal `json:"quantity"`
	AveragePrice decimal.Decimal `json:"average_price"`
	RealizedPnl  decimal.Decimal `json:"realized_pnl"`
}

type exportedBalance struct {
	Currency  string          `json:"currency"`
	Total     decimal.Decimal `json:"total"`
	Available decimal.Decimal `json:"available"`
}

// Snapshot is the export_state()/import_state() persistence surface:
// positions, balances, and P&L totals only — orders and order books are
// never persisted, by design.
type Snapshot struct {
	Positions []exportedPosition `json:"positions"`
	Balances  []exportedBalance  `json:"balances"`
	TotalPnl  decimal.Decimal    `json:"total_pnl"`
	DailyPnl  decimal.Decimal    `json:"daily_pnl"`
}
