package orderbook

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Jss-on/fasttrade/internal/clock"
	"github.com/Jss-on/fasttrade/internal/decimal"
)

func d(s string) decimal.Decimal { return decimal.MustNew(s) }

func TestSide_BestOrdering(t *testing.T) {
	bids := NewSide(Bid, clock.New(clock.Backtest))
	bids.Update(d("100"), d("1"), 1)
	bids.Update(d("101"), d("2"), 2)
	bids.Update(d("99"), d("3"), 3)

	best, ok := bids.Best()
	assert.True(t, ok)
	assert.True(t, best.Price.Equal(d("101")))

	asks := NewSide(Ask, clock.New(clock.Backtest))
	asks.Update(d("100"), d("1"), 1)
	asks.Update(d("101"), d("2"), 2)
	asks.Update(d("99"), d("3"), 3)

	bestAsk, ok := asks.Best()
	assert.True(t, ok)
	assert.True(t, bestAsk.Price.Equal(d("99")))
}

func TestSide_ZeroAmountDeletesLevel(t *testing.T) {
	s := NewSide(Bid, clock.New(clock.Backtest))
	s.Update(d("100"), d("5"), 1)
	assert.Equal(t, 1, s.Size())

	s.Update(d("100"), d("0"), 2)
	assert.Equal(t, 0, s.Size())
	assert.True(t, s.Empty())
}

func TestSide_UpdateReplacesNotAccumulates(t *testing.T) {
	s := NewSide(Ask, clock.New(clock.Backtest))
	s.Update(d("100"), d("5"), 1)
	s.Update(d("100"), d("3"), 2)

	best, ok := s.Best()
	assert.True(t, ok)
	assert.True(t, best.Amount.Equal(d("3")), "update must replace the level's amount, not add to it")
}

func TestSide_LevelsRespectsLimit(t *testing.T) {
	s := NewSide(Bid, clock.New(clock.Backtest))
	s.Update(d("100"), d("1"), 1)
	s.Update(d("101"), d("1"), 2)
	s.Update(d("102"), d("1"), 3)

	levels := s.Levels(2)
	assert.Len(t, levels, 2)
	assert.True(t, levels[0].Price.Equal(d("102")))
	assert.True(t, levels[1].Price.Equal(d("101")))

	all := s.Levels(0)
	assert.Len(t, all, 3)
}

func TestSide_VolumeAtOrBetter(t *testing.T) {
	bids := NewSide(Bid, clock.New(clock.Backtest))
	bids.Update(d("100"), d("1"), 1)
	bids.Update(d("99"), d("2"), 2)
	bids.Update(d("98"), d("3"), 3)

	assert.True(t, bids.VolumeAtOrBetter(d("99")).Equal(d("3")))
	assert.True(t, bids.VolumeAtOrBetter(d("100")).Equal(d("1")))
	assert.True(t, bids.VolumeAtOrBetter(d("0")).Equal(d("6")))

	asks := NewSide(Ask, clock.New(clock.Backtest))
	asks.Update(d("100"), d("1"), 1)
	asks.Update(d("101"), d("2"), 2)
	asks.Update(d("102"), d("3"), 3)

	assert.True(t, asks.VolumeAtOrBetter(d("101")).Equal(d("3")))
}

func TestSide_Clear(t *testing.T) {
	s := NewSide(Bid, clock.New(clock.Backtest))
	s.Update(d("100"), d("1"), 1)
	s.Clear()
	assert.True(t, s.Empty())
}

func TestSide_ArrivalStampedOnEveryNonZeroUpdate(t *testing.T) {
	clk := clock.New(clock.Backtest)
	s := NewSide(Bid, clk)

	firstArrival := clk.Now()
	s.Update(d("100"), d("1"), 1)
	inserted, ok := s.Best()
	assert.True(t, ok)
	assert.True(t, inserted.Arrival.Equal(firstArrival))

	clk.AdvanceTime(time.Minute)
	secondArrival := clk.Now()
	s.Update(d("100"), d("5"), 2)
	replaced, ok := s.Best()
	assert.True(t, ok)
	assert.True(t, replaced.Amount.Equal(d("5")))
	assert.True(t, replaced.Arrival.Equal(secondArrival), "replacing an existing price resets Arrival, exactly like a genuine insertion")

	clk.AdvanceTime(time.Minute)
	s.Update(d("100"), d("0"), 3)
	assert.True(t, s.Empty())

	thirdArrival := clk.Now()
	s.Update(d("100"), d("2"), 4)
	reinserted, ok := s.Best()
	assert.True(t, ok)
	assert.True(t, reinserted.Arrival.Equal(thirdArrival))
}
