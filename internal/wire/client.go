package wire

import (
	"fmt"
	"net"
	"time"
)

// Client is a short-lived connection to a Server: it sends exactly one
// request and reads back exactly one Report, matching the protocol's
// request/response shape.
type Client struct {
	address string
	timeout time.Duration
}

// NewClient constructs a Client dialing address with the given
// per-request timeout.
func NewClient(address string, timeout time.Duration) *Client {
	return &Client{address: address, timeout: timeout}
}

// SubmitNewOrder sends a NewOrderMessage and returns the server's Report.
func (c *Client) SubmitNewOrder(msg NewOrderMessage) (Report, error) {
	return c.roundTrip(msg.Serialize())
}

// CancelOrder sends a CancelOrderMessage and returns the server's Report.
func (c *Client) CancelOrder(msg CancelOrderMessage) (Report, error) {
	return c.roundTrip(msg.Serialize())
}

func (c *Client) roundTrip(request []byte) (Report, error) {
	conn, err := net.DialTimeout("tcp", c.address, c.timeout)
	if err != nil {
		return Report{}, fmt.Errorf("wire: dial %s: %w", c.address, err)
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
		return Report{}, fmt.Errorf("wire: set deadline: %w", err)
	}

	if _, err := conn.Write(request); err != nil {
		return Report{}, fmt.Errorf("wire: write request: %w", err)
	}

	buffer := make([]byte, maxRecvSize)
	n, err := conn.Read(buffer)
	if err != nil {
		return Report{}, fmt.Errorf("wire: read report: %w", err)
	}

	return ParseReport(buffer[:n])
}
