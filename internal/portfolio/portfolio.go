// Package portfolio holds the value types TradingCore uses to track
// positions, balances, and pre-trade risk limits. These are grounded on
// the bookkeeping trading_core.cpp performs inline (position/balance
// maps keyed by symbol/currency, and the hardcoded default risk limits
// seeded on initialize()); here they are pulled out into named types so
// TradingCore's state maps can be typed without anonymous structs.
package portfolio

import (
	"time"

	"github.com/Jss-on/fasttrade/internal/decimal"
)

// Position is the running position in one symbol. Quantity is signed:
// positive is long, negative is short.
type Position struct {
	Symbol        string
	Quantity      decimal.Decimal
	AveragePrice  decimal.Decimal
	RealizedPnl   decimal.Decimal
	UnrealizedPnl decimal.Decimal
	LastUpdate    time.Time
}

// NewPosition constructs a flat (zero) position for symbol.
func NewPosition(symbol string) Position {
	return Position{
		Symbol:        symbol,
		Quantity:      decimal.Zero,
		AveragePrice:  decimal.Zero,
		RealizedPnl:   decimal.Zero,
		UnrealizedPnl: decimal.Zero,
	}
}

// ApplyFill updates the position for a fill at price, where signedQty is
// the fill quantity signed by order side (positive for a buy, negative for
// a sell). This mirrors update_position in the original trading core
// unconditionally, branching only on side, never on the position's
// current quantity or sign: a buy rolls the fill into a new
// weighted-average price over quantity+=signedQty; a sell realizes
// trade_qty·(price−average_price) into RealizedPnl and decrements
// quantity, leaving AveragePrice untouched even if the position flips
// through flat or reverses sign. This is deliberately naive — it does not
// clamp a sell to the closing portion of the position, so shorting from
// flat or selling through to a reversed position realizes P&L against
// whatever AveragePrice happened to be set to beforehand.
func (p *Position) ApplyFill(signedQty, price decimal.Decimal) {
	if signedQty.IsPositive() {
		totalCost := p.Quantity.Mul(p.AveragePrice).Add(signedQty.Mul(price))
		p.Quantity = p.Quantity.Add(signedQty)
		if !p.Quantity.IsZero() {
			p.AveragePrice = totalCost.Div(p.Quantity)
		}
		return
	}

	tradeQty := signedQty.Neg()
	realized := tradeQty.Mul(price.Sub(p.AveragePrice))
	p.RealizedPnl = p.RealizedPnl.Add(realized)
	p.Quantity = p.Quantity.Add(signedQty)
}

// MarkUnrealized recomputes unrealized_pnl against the given mark price.
func (p *Position) MarkUnrealized(markPrice decimal.Decimal) {
	if p.Quantity.IsZero() {
		p.UnrealizedPnl = decimal.Zero
		return
	}
	if p.Quantity.IsPositive() {
		p.UnrealizedPnl = p.Quantity.Mul(markPrice.Sub(p.AveragePrice))
	} else {
		p.UnrealizedPnl = p.Quantity.Abs().Mul(p.AveragePrice.Sub(markPrice))
	}
}

// Balance is the available/locked/total funds in one currency.
type Balance struct {
	Currency   string
	Total      decimal.Decimal
	Available  decimal.Decimal
	LastUpdate time.Time
}

// Locked returns total-available.
func (b Balance) Locked() decimal.Decimal {
	return b.Total.Sub(b.Available)
}

// NewBalance constructs a zero Balance for currency.
func NewBalance(currency string) Balance {
	return Balance{Currency: currency, Total: decimal.Zero, Available: decimal.Zero}
}

// RiskLimits are the pre-trade checks submit_order runs before an order
// is accepted.
type RiskLimits struct {
	MaxPositionSize    decimal.Decimal
	MaxOrderSize       decimal.Decimal
	MaxDailyLoss       decimal.Decimal
	MaxDrawdown        decimal.Decimal
	MaxOrdersPerSecond int

	EnablePositionLimits bool
	EnableOrderLimits    bool
	EnableLossLimits     bool
}

// DefaultRiskLimits returns the limits TradingCore.Initialize seeds when
// the caller hasn't set any, matching the original's hardcoded defaults.
func DefaultRiskLimits() RiskLimits {
	return RiskLimits{
		MaxPositionSize:      decimal.FromInt64(1000),
		MaxOrderSize:         decimal.FromInt64(100),
		MaxDailyLoss:         decimal.FromInt64(10000),
		MaxDrawdown:          decimal.Zero,
		MaxOrdersPerSecond:   100,
		EnablePositionLimits: true,
		EnableOrderLimits:    true,
		EnableLossLimits:     true,
	}
}
