package marketdata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPeer(t *testing.T, frame string) (*httptest.Server, string) {
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()
		_ = conn.WriteMessage(websocket.TextMessage, []byte(frame))
		time.Sleep(50 * time.Millisecond)
	}))
	url := "ws" + strings.TrimPrefix(server.URL, "http")
	return server, url
}

func TestWebSocketConnector_DispatchesBookFrame(t *testing.T) {
	server, url := newTestPeer(t, `{"kind":"book","symbol":"BTC-USDT","price":"50000","quantity":"1.2","timestamp":1,"is_bid":false}`)
	defer server.Close()

	registry := newTestRegistry()
	router := NewRouter(registry, nil)
	connector := NewWebSocketConnector(url, router)

	require.NoError(t, connector.Connect(context.Background()))
	defer connector.Disconnect()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if registry.Has("BTC-USDT") {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	book, ok := registry.Get("BTC-USDT")
	require.True(t, ok)
	bestAsk, _ := book.BestAsk()
	assert.True(t, bestAsk.Price.Equal(d("50000")))
}

func TestWebSocketConnector_SubscribeRequiresConnection(t *testing.T) {
	registry := newTestRegistry()
	router := NewRouter(registry, nil)
	connector := NewWebSocketConnector("ws://unused", router)

	err := connector.SubscribeOrderBook("BTC-USDT")
	assert.Error(t, err)
}

func TestWebSocketConnector_ExchangeIsSynthetic(t *testing.T) {
	connector := NewWebSocketConnector("ws://unused", nil)
	assert.Equal(t, Synthetic, connector.Exchange())
	assert.Equal(t, "synthetic", connector.Exchange().String())
}
