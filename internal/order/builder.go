package order

import "github.com/Jss-on/fasttrade/internal/decimal"

// Builder is a fluent constructor for Order, grounded on
// original_source's OrderBuilder (limit_order.hpp).
type Builder struct {
	clientOrderID string
	tradingPair   string
	side          Side
	typ           Type
	price         decimal.Decimal
	quantity      decimal.Decimal
	position      string
	clk           Clock
}

// NewBuilder starts a fresh Builder; defaults to a LIMIT order.
func NewBuilder() *Builder {
	return &Builder{typ: Limit}
}

func (b *Builder) ID(clientOrderID string) *Builder {
	b.clientOrderID = clientOrderID
	return b
}

func (b *Builder) Pair(tradingPair string) *Builder {
	b.tradingPair = tradingPair
	return b
}

func (b *Builder) Buy(quantity decimal.Decimal) *Builder {
	b.side = Buy
	b.quantity = quantity
	return b
}

func (b *Builder) Sell(quantity decimal.Decimal) *Builder {
	b.side = Sell
	b.quantity = quantity
	return b
}

func (b *Builder) AtPrice(price decimal.Decimal) *Builder {
	b.price = price
	return b
}

func (b *Builder) MarketOrder() *Builder {
	b.typ = Market
	return b
}

func (b *Builder) LimitOrder() *Builder {
	b.typ = Limit
	return b
}

func (b *Builder) Position(position string) *Builder {
	b.position = position
	return b
}

func (b *Builder) Clock(c Clock) *Builder {
	b.clk = c
	return b
}

// Build constructs the Order.
func (b *Builder) Build() *Order {
	var opts []Option
	if b.position != "" {
		opts = append(opts, WithPositionTag(b.position))
	}
	if b.clk != nil {
		opts = append(opts, WithClock(b.clk))
	}
	return New(b.clientOrderID, b.tradingPair, b.side, b.typ, b.price, b.quantity, opts...)
}
