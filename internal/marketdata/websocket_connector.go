package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	tomb "gopkg.in/tomb.v2"

	"github.com/Jss-on/fasttrade/internal/decimal"
)

// tickFrame is the wire shape WebSocketConnector reads from its peer: a
// generic JSON tick frame, not any real venue's protocol — venue wire
// formats are explicitly out of scope.
type tickFrame struct {
	Kind      string `json:"kind"` // "book" or "trade"
	Symbol    string `json:"symbol"`
	Price     string `json:"price"`
	Quantity  string `json:"quantity"`
	Timestamp int64  `json:"timestamp"`
	IsBid     bool   `json:"is_bid,omitempty"`
	IsBuy     bool   `json:"is_buy,omitempty"`
}

// WebSocketConnector is the one concrete Connector implementation
// shipped here, demonstrating the connect/disconnect/subscribe
// capability the original's BinanceConnector/BybitConnector/OkxConnector
// each implemented against a real venue. It speaks the generic
// tickFrame protocol above against any peer willing to emit it.
type WebSocketConnector struct {
	url    string
	router *Router

	mu            sync.Mutex
	conn          *websocket.Conn
	connected     bool
	subscriptions map[string]bool

	t *tomb.Tomb
}

// NewWebSocketConnector constructs a connector that will dial url and
// forward decoded ticks into router.
func NewWebSocketConnector(url string, router *Router) *WebSocketConnector {
	return &WebSocketConnector{
		url:           url,
		router:        router,
		subscriptions: make(map[string]bool),
	}
}

func (c *WebSocketConnector) Exchange() Exchange { return Synthetic }

// Connect dials the peer and starts the read loop; it is idempotent.
func (c *WebSocketConnector) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.connected {
		c.mu.Unlock()
		return nil
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		c.mu.Unlock()
		return fmt.Errorf("marketdata: dial %s: %w", c.url, err)
	}
	c.conn = conn
	c.connected = true
	c.t = new(tomb.Tomb)
	c.mu.Unlock()

	c.t.Go(c.readLoop)
	return nil
}

// Disconnect is idempotent: it closes the connection and joins the read
// loop.
func (c *WebSocketConnector) Disconnect() error {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return nil
	}
	c.connected = false
	conn := c.conn
	t := c.t
	c.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	if t != nil {
		t.Kill(nil)
		_ = t.Wait()
	}
	return nil
}

func (c *WebSocketConnector) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *WebSocketConnector) SubscribeOrderBook(symbol string) error {
	return c.subscribe("book:" + symbol)
}

func (c *WebSocketConnector) SubscribeTrades(symbol string) error {
	return c.subscribe("trade:" + symbol)
}

func (c *WebSocketConnector) UnsubscribeOrderBook(symbol string) error {
	return c.unsubscribe("book:" + symbol)
}

func (c *WebSocketConnector) UnsubscribeTrades(symbol string) error {
	return c.unsubscribe("trade:" + symbol)
}

func (c *WebSocketConnector) subscribe(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return fmt.Errorf("marketdata: not connected")
	}
	c.subscriptions[key] = true
	return c.conn.WriteJSON(map[string]string{"op": "subscribe", "channel": key})
}

func (c *WebSocketConnector) unsubscribe(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.subscriptions, key)
	if !c.connected {
		return nil
	}
	return c.conn.WriteJSON(map[string]string{"op": "unsubscribe", "channel": key})
}

func (c *WebSocketConnector) readLoop() error {
	for {
		select {
		case <-c.t.Dying():
			return nil
		default:
		}

		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn == nil {
			return nil
		}

		_ = conn.SetReadDeadline(time.Now().Add(30 * time.Second))
		_, payload, err := conn.ReadMessage()
		if err != nil {
			log.Warn().Err(err).Str("exchange", Synthetic.String()).Msg("marketdata: websocket read failed, disconnecting")
			c.mu.Lock()
			c.connected = false
			c.mu.Unlock()
			return nil
		}

		var frame tickFrame
		if err := json.Unmarshal(payload, &frame); err != nil {
			log.Warn().Err(err).Msg("marketdata: malformed tick frame, dropping")
			continue
		}
		c.dispatch(frame)
	}
}

func (c *WebSocketConnector) dispatch(frame tickFrame) {
	price, err := decimal.New(frame.Price)
	if err != nil {
		return
	}
	quantity, err := decimal.New(frame.Quantity)
	if err != nil {
		return
	}

	switch frame.Kind {
	case "book":
		c.router.SubmitMarketTick(MarketTick{
			Symbol:    frame.Symbol,
			Price:     price,
			Quantity:  quantity,
			Timestamp: frame.Timestamp,
			IsBid:     frame.IsBid,
		})
	case "trade":
		c.router.SubmitTradeTick(TradeTick{
			Symbol:    frame.Symbol,
			Price:     price,
			Quantity:  quantity,
			Timestamp: frame.Timestamp,
			IsBuy:     frame.IsBuy,
		})
	}
}
