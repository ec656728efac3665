package trading

import (
	"github.com/Jss-on/fasttrade/internal/clock"
	"github.com/Jss-on/fasttrade/internal/portfolio"
)

// Builder assembles a Core with an explicit clock mode, risk limits, and
// callbacks, mirroring the fluent builder already used by
// internal/order.Builder.
type Builder struct {
	mode       clock.Mode
	limits     portfolio.RiskLimits
	callbacks  Callbacks
	haveLimits bool
}

// NewBuilder returns a Builder defaulted to a BACKTEST clock, since most
// callers assembling a Core by hand are tests or backtest harnesses.
func NewBuilder() *Builder {
	return &Builder{mode: clock.Backtest}
}

// WithClockMode sets the clock mode the built Core will run under.
func (b *Builder) WithClockMode(mode clock.Mode) *Builder {
	b.mode = mode
	return b
}

// WithRiskLimits sets the risk limits the built Core will enforce.
func (b *Builder) WithRiskLimits(limits portfolio.RiskLimits) *Builder {
	b.limits = limits
	b.haveLimits = true
	return b
}

// WithCallbacks sets the listener callbacks the built Core will invoke.
func (b *Builder) WithCallbacks(callbacks Callbacks) *Builder {
	b.callbacks = callbacks
	return b
}

// Build constructs, initializes, and configures a Core but does not
// Start it.
func (b *Builder) Build() *Core {
	core := NewCore()
	core.Initialize(b.mode)
	if b.haveLimits {
		core.SetRiskLimits(b.limits)
	}
	core.SetCallbacks(b.callbacks)
	return core
}
