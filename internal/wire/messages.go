// Package wire implements the binary NewOrder/CancelOrder/Report
// protocol clients use to talk to a running TradingCore over TCP, plus
// the TCP server and worker pool that terminate it.
//
// Grounded on internal/net/messages.go's header-plus-variable-length
// framing idiom (binary.BigEndian field packing, explicit length
// prefixes ahead of each variable field, one TypeOf discriminant byte
// pair). Price and quantity are carried as length-prefixed decimal
// strings rather than the original's float64 fields: spec.md's Decimal
// invariants (exact parse/round-trip, no binary floating-point) rule out
// wire float64 for anything that becomes an Order's price or quantity.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/Jss-on/fasttrade/internal/decimal"
	"github.com/Jss-on/fasttrade/internal/order"
)

var (
	ErrInvalidMessageType = errors.New("wire: invalid message type")
	ErrMessageTooShort     = errors.New("wire: message too short")
)

// MessageType discriminates an inbound client frame.
type MessageType uint16

const (
	Heartbeat MessageType = iota
	NewOrder
	CancelOrder
)

// ReportType discriminates an outbound server frame.
type ReportType uint8

const (
	ExecutionReport ReportType = iota
	ErrorReport
)

const baseHeaderLen = 2

// Message is any parsed inbound frame.
type Message interface {
	Type() MessageType
}

// ParseMessage reads the 2-byte type header and dispatches to the
// matching decoder.
func ParseMessage(buf []byte) (Message, error) {
	if len(buf) < baseHeaderLen {
		return nil, ErrMessageTooShort
	}
	typeOf := MessageType(binary.BigEndian.Uint16(buf[0:2]))
	body := buf[baseHeaderLen:]
	switch typeOf {
	case NewOrder:
		return parseNewOrderMessage(body)
	case CancelOrder:
		return parseCancelOrderMessage(body)
	default:
		return nil, ErrInvalidMessageType
	}
}

// NewOrderMessage requests a new order be submitted to TradingCore.
type NewOrderMessage struct {
	ClientOrderID string
	TradingPair   string
	Side          order.Side
	OrderType     order.Type
	Price         decimal.Decimal
	Quantity      decimal.Decimal
}

func (m NewOrderMessage) Type() MessageType { return NewOrder }

// Order builds the order.Order this message describes.
func (m NewOrderMessage) Order() *order.Order {
	return order.New(m.ClientOrderID, m.TradingPair, m.Side, m.OrderType, m.Price, m.Quantity)
}

func parseNewOrderMessage(buf []byte) (NewOrderMessage, error) {
	var m NewOrderMessage
	r := newFieldReader(buf)

	var err error
	m.ClientOrderID, err = r.lenPrefixedString()
	if err != nil {
		return m, err
	}
	m.TradingPair, err = r.lenPrefixedString()
	if err != nil {
		return m, err
	}
	sideByte, err := r.byte()
	if err != nil {
		return m, err
	}
	m.Side = order.Side(sideByte)
	typeByte, err := r.byte()
	if err != nil {
		return m, err
	}
	m.OrderType = order.Type(typeByte)

	priceStr, err := r.lenPrefixedString()
	if err != nil {
		return m, err
	}
	m.Price, err = decimal.New(priceStr)
	if err != nil {
		return m, fmt.Errorf("wire: invalid price %q: %w", priceStr, err)
	}

	quantityStr, err := r.lenPrefixedString()
	if err != nil {
		return m, err
	}
	m.Quantity, err = decimal.New(quantityStr)
	if err != nil {
		return m, fmt.Errorf("wire: invalid quantity %q: %w", quantityStr, err)
	}

	return m, nil
}

// Serialize encodes the message back onto the wire, for tests and for
// clients sending requests.
func (m NewOrderMessage) Serialize() []byte {
	w := newFieldWriter()
	w.uint16(uint16(NewOrder))
	w.lenPrefixedString(m.ClientOrderID)
	w.lenPrefixedString(m.TradingPair)
	w.byte(byte(m.Side))
	w.byte(byte(m.OrderType))
	w.lenPrefixedString(m.Price.String())
	w.lenPrefixedString(m.Quantity.String())
	return w.bytes()
}

// CancelOrderMessage requests an order be cancelled.
type CancelOrderMessage struct {
	ClientOrderID string
}

func (m CancelOrderMessage) Type() MessageType { return CancelOrder }

func parseCancelOrderMessage(buf []byte) (CancelOrderMessage, error) {
	var m CancelOrderMessage
	r := newFieldReader(buf)
	id, err := r.lenPrefixedString()
	if err != nil {
		return m, err
	}
	m.ClientOrderID = id
	return m, nil
}

// Serialize encodes the message back onto the wire.
func (m CancelOrderMessage) Serialize() []byte {
	w := newFieldWriter()
	w.uint16(uint16(CancelOrder))
	w.lenPrefixedString(m.ClientOrderID)
	return w.bytes()
}

// Report is the server's response frame to a NewOrder/CancelOrder
// request: either an ExecutionReport (accepted==true/false) or an
// ErrorReport carrying a message.
type Report struct {
	Type          ReportType
	ClientOrderID string
	Accepted      bool
	Err           string
}

// Serialize packs a Report onto the wire.
func (r Report) Serialize() []byte {
	w := newFieldWriter()
	w.byte(byte(r.Type))
	w.lenPrefixedString(r.ClientOrderID)
	if r.Accepted {
		w.byte(1)
	} else {
		w.byte(0)
	}
	w.lenPrefixedString(r.Err)
	return w.bytes()
}

// ParseReport decodes a Report frame, for the client side.
func ParseReport(buf []byte) (Report, error) {
	var r Report
	if len(buf) < 1 {
		return r, ErrMessageTooShort
	}
	r.Type = ReportType(buf[0])
	fr := newFieldReader(buf[1:])

	id, err := fr.lenPrefixedString()
	if err != nil {
		return r, err
	}
	r.ClientOrderID = id

	accepted, err := fr.byte()
	if err != nil {
		return r, err
	}
	r.Accepted = accepted != 0

	errStr, err := fr.lenPrefixedString()
	if err != nil {
		return r, err
	}
	r.Err = errStr
	return r, nil
}
