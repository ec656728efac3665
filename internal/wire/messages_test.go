package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jss-on/fasttrade/internal/decimal"
	"github.com/Jss-on/fasttrade/internal/order"
)

func d(s string) decimal.Decimal { return decimal.MustNew(s) }

func TestNewOrderMessage_RoundTrip(t *testing.T) {
	original := NewOrderMessage{
		ClientOrderID: "client-1",
		TradingPair:   "BTC-USDT",
		Side:          order.Buy,
		OrderType:     order.Limit,
		Price:         d("50000.5"),
		Quantity:      d("1.25"),
	}

	parsed, err := ParseMessage(original.Serialize())
	require.NoError(t, err)

	got, ok := parsed.(NewOrderMessage)
	require.True(t, ok)
	assert.Equal(t, original.ClientOrderID, got.ClientOrderID)
	assert.Equal(t, original.TradingPair, got.TradingPair)
	assert.Equal(t, original.Side, got.Side)
	assert.Equal(t, original.OrderType, got.OrderType)
	assert.True(t, got.Price.Equal(original.Price))
	assert.True(t, got.Quantity.Equal(original.Quantity))
}

func TestCancelOrderMessage_RoundTrip(t *testing.T) {
	original := CancelOrderMessage{ClientOrderID: "cancel-me"}
	parsed, err := ParseMessage(original.Serialize())
	require.NoError(t, err)

	got, ok := parsed.(CancelOrderMessage)
	require.True(t, ok)
	assert.Equal(t, original.ClientOrderID, got.ClientOrderID)
}

func TestParseMessage_RejectsUnknownType(t *testing.T) {
	_, err := ParseMessage([]byte{0xff, 0xff})
	assert.ErrorIs(t, err, ErrInvalidMessageType)
}

func TestParseMessage_RejectsShortHeader(t *testing.T) {
	_, err := ParseMessage([]byte{0x00})
	assert.ErrorIs(t, err, ErrMessageTooShort)
}

func TestReport_RoundTrip(t *testing.T) {
	original := Report{Type: ExecutionReport, ClientOrderID: "client-1", Accepted: true}
	got, err := ParseReport(original.Serialize())
	require.NoError(t, err)
	assert.Equal(t, original, got)
}

func TestReport_RoundTripWithError(t *testing.T) {
	original := Report{Type: ErrorReport, ClientOrderID: "client-1", Err: "risk limit exceeded"}
	got, err := ParseReport(original.Serialize())
	require.NoError(t, err)
	assert.Equal(t, original, got)
}

func TestNewOrderMessage_Order_DerivesFields(t *testing.T) {
	msg := NewOrderMessage{
		ClientOrderID: "client-1",
		TradingPair:   "BTC-USDT",
		Side:          order.Buy,
		OrderType:     order.Limit,
		Price:         d("50000"),
		Quantity:      d("1"),
	}
	o := msg.Order()
	assert.Equal(t, "BTC", o.BaseCurrency)
	assert.Equal(t, "USDT", o.QuoteCurrency)
}
