package order

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Jss-on/fasttrade/internal/clock"
	"github.com/Jss-on/fasttrade/internal/decimal"
)

func d(s string) decimal.Decimal { return decimal.MustNew(s) }

func newTestOrder(t *testing.T) *Order {
	t.Helper()
	c := clock.New(clock.Backtest)
	c.SetTime(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	return New("order-1", "BTC-USDT", Buy, Limit, d("100"), d("10"), WithClock(c))
}

func TestNew_DerivesCurrenciesFromPair(t *testing.T) {
	o := New("id", "BTC-USDT", Buy, Limit, d("100"), d("1"))
	assert.Equal(t, "BTC", o.BaseCurrency)
	assert.Equal(t, "USDT", o.QuoteCurrency)

	noDash := New("id2", "BTC", Buy, Limit, d("100"), d("1"))
	assert.Equal(t, "BTC", noDash.BaseCurrency)
	assert.Equal(t, "USDT", noDash.QuoteCurrency)
}

func TestNew_InitialStatusIsPending(t *testing.T) {
	o := newTestOrder(t)
	assert.Equal(t, Pending, o.Status)
	assert.Equal(t, o.CreationTime, o.LastUpdateTime)
}

func TestValidate(t *testing.T) {
	o := newTestOrder(t)
	assert.NoError(t, o.Validate())

	bad := New("", "BTC-USDT", Buy, Limit, d("100"), d("1"))
	assert.Error(t, bad.Validate())

	zeroQty := New("id", "BTC-USDT", Buy, Limit, d("100"), d("0"))
	assert.Error(t, zeroQty.Validate())

	zeroPriceLimit := New("id", "BTC-USDT", Buy, Limit, d("0"), d("1"))
	assert.Error(t, zeroPriceLimit.Validate())

	zeroPriceMarket := New("id", "BTC-USDT", Buy, Market, d("0"), d("1"))
	assert.NoError(t, zeroPriceMarket.Validate())
}

func TestStateMachine_AllowedTransitions(t *testing.T) {
	o := newTestOrder(t)
	assert.NoError(t, o.Accept())
	assert.Equal(t, Open, o.Status)

	assert.NoError(t, o.Cancel())
	assert.Equal(t, Cancelled, o.Status)
}

func TestStateMachine_RejectFromPending(t *testing.T) {
	o := newTestOrder(t)
	assert.NoError(t, o.Reject("risk limit exceeded"))
	assert.Equal(t, Rejected, o.Status)
	assert.Equal(t, "risk limit exceeded", o.RejectionReason)
}

func TestStateMachine_IllegalTransitionReturnsError(t *testing.T) {
	o := newTestOrder(t)
	assert.Error(t, o.Cancel(), "cannot cancel a PENDING order directly")

	assert.NoError(t, o.Accept())
	assert.NoError(t, o.Cancel())
	assert.Error(t, o.Accept(), "terminal states admit no further transitions")
}

func TestApplyFill_PartialThenFull(t *testing.T) {
	o := newTestOrder(t)
	assert.NoError(t, o.Accept())

	assert.NoError(t, o.ApplyFill(d("4"), d("100")))
	assert.Equal(t, Partial, o.Status)
	assert.True(t, o.FilledQuantity.Equal(d("4")))

	assert.NoError(t, o.ApplyFill(d("6"), d("101")))
	assert.Equal(t, Filled, o.Status)
	assert.True(t, o.FilledQuantity.Equal(d("10")))
}

func TestApplyFill_ExcessIsClampedAndReported(t *testing.T) {
	o := newTestOrder(t)
	assert.NoError(t, o.Accept())

	err := o.ApplyFill(d("15"), d("100"))
	assert.Error(t, err)
	assert.Equal(t, Filled, o.Status)
	assert.True(t, o.FilledQuantity.Equal(d("10")), "excess fill must be clamped to quantity")
}

func TestAddExecution_RejectedWhenNotActive(t *testing.T) {
	o := newTestOrder(t)
	err := o.AddExecution(Execution{Quantity: d("1"), Price: d("100")})
	assert.Error(t, err, "order is still PENDING, not OPEN/PARTIAL")
}

func TestDerivedFields(t *testing.T) {
	o := newTestOrder(t)
	assert.NoError(t, o.Accept())
	assert.NoError(t, o.ApplyFill(d("4"), d("100")))
	assert.NoError(t, o.ApplyFill(d("6"), d("102")))

	assert.True(t, o.RemainingQuantity().IsZero())
	assert.True(t, o.FillPercentage().Equal(d("1")))

	// avg = (4*100 + 6*102) / 10 = (400+612)/10 = 101.2
	assert.True(t, o.AverageExecutionPrice().Equal(d("101.2")), o.AverageExecutionPrice().String())
	assert.NoError(t, o.CheckFillInvariant())
}

func TestTotalFees_GroupedByCurrencyNeverConverted(t *testing.T) {
	o := newTestOrder(t)
	assert.NoError(t, o.Accept())
	assert.NoError(t, o.AddExecution(Execution{Quantity: d("5"), Price: d("100"), FeeAmount: d("0.1"), FeeCurrency: "USDT"}))
	assert.NoError(t, o.AddExecution(Execution{Quantity: d("5"), Price: d("100"), FeeAmount: d("0.0001"), FeeCurrency: "BTC"}))

	fees := o.TotalFees()
	assert.True(t, fees["USDT"].Equal(d("0.1")))
	assert.True(t, fees["BTC"].Equal(d("0.0001")))
}

func TestLess_ComparatorOrdering(t *testing.T) {
	buyHigh := New("a", "BTC-USDT", Buy, Limit, d("101"), d("1"))
	buyLow := New("b", "BTC-USDT", Buy, Limit, d("100"), d("1"))
	assert.True(t, Less(buyHigh, buyLow), "BUY side: higher price sorts first")

	sellLow := New("c", "BTC-USDT", Sell, Limit, d("100"), d("1"))
	sellHigh := New("d", "BTC-USDT", Sell, Limit, d("101"), d("1"))
	assert.True(t, Less(sellLow, sellHigh), "SELL side: lower price sorts first")
}

func TestJSON_RoundTripRestoresStoredFieldsAndRecomputesDerived(t *testing.T) {
	o := newTestOrder(t)
	assert.NoError(t, o.Accept())
	assert.NoError(t, o.ApplyFill(d("4"), d("100")))

	data, err := json.Marshal(o)
	assert.NoError(t, err)

	var restored Order
	assert.NoError(t, json.Unmarshal(data, &restored))

	assert.Equal(t, o.ClientOrderID, restored.ClientOrderID)
	assert.Equal(t, o.TradingPair, restored.TradingPair)
	assert.Equal(t, o.Side, restored.Side)
	assert.Equal(t, o.Status, restored.Status)
	assert.True(t, o.FilledQuantity.Equal(restored.FilledQuantity))
	assert.Equal(t, len(o.Executions), len(restored.Executions))
	assert.True(t, restored.FillPercentage().Equal(d("0.4")))
}

func TestSideTypeStatus_StringAndParseRoundTrip(t *testing.T) {
	for _, s := range []Side{Buy, Sell} {
		got, err := ParseSide(s.String())
		assert.NoError(t, err)
		assert.Equal(t, s, got)
	}
	for _, ty := range []Type{Limit, Market, StopLimit, StopMarket} {
		got, err := ParseType(ty.String())
		assert.NoError(t, err)
		assert.Equal(t, ty, got)
	}
	for _, st := range []Status{Pending, Open, Partial, Filled, Cancelled, Rejected, Expired} {
		got, err := ParseStatus(st.String())
		assert.NoError(t, err)
		assert.Equal(t, st, got)
	}
}

func TestBuilder(t *testing.T) {
	o := NewBuilder().ID("b1").Pair("ETH-USDT").Buy(d("2")).AtPrice(d("3000")).LimitOrder().Position("swing").Build()
	assert.Equal(t, "b1", o.ClientOrderID)
	assert.Equal(t, Buy, o.Side)
	assert.True(t, o.Quantity.Equal(d("2")))
	assert.True(t, o.Price.Equal(d("3000")))
	assert.Equal(t, "swing", o.PositionTag)
}
