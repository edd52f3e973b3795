package websocket

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/mselser95/bangr-engine/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func nextEvent(t *testing.T, c *Client) *StreamEvent {
	t.Helper()
	select {
	case ev, ok := <-c.Events():
		require.True(t, ok, "events channel closed")
		return ev
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestClientReceivesEvents(t *testing.T) {
	bus := newBus(t)
	_, srv := serveHub(t, bus, time.Second)

	c := NewClient(ClientConfig{
		URL:               wsURL(srv, "types=TradeExecuted"),
		MessageBufferSize: 8,
		Logger:            zaptest.NewLogger(t),
	})
	require.NoError(t, c.Start())
	t.Cleanup(func() { _ = c.Close() })

	require.Eventually(t, func() bool { return bus.Subscribers() == 1 }, 2*time.Second, 5*time.Millisecond)
	bus.Publish([]types.Event{
		{Sequence: 4, MarketID: 1, Type: types.EventOrderPlaced},
		{Sequence: 5, MarketID: 1, Type: types.EventTradeExecuted, Payload: types.Trade{FillID: 9}},
	})

	ev := nextEvent(t, c)
	assert.Equal(t, types.EventTradeExecuted, ev.Type)
	assert.Equal(t, uint64(5), ev.Sequence)

	var trade types.Trade
	require.NoError(t, json.Unmarshal(ev.Payload, &trade))
	assert.Equal(t, uint64(9), trade.FillID)
	assert.Equal(t, uint64(5), c.LastSequence())
}

func TestClientReconnectsAfterDrop(t *testing.T) {
	var connections atomic.Uint64
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		seq := connections.Add(1)
		data, _ := json.Marshal(types.Event{Sequence: seq, Type: types.EventOrderPlaced})
		_ = conn.WriteMessage(websocket.TextMessage, data)
	}))
	t.Cleanup(srv.Close)

	c := NewClient(ClientConfig{
		URL:                   wsURL(srv, ""),
		ReconnectInitialDelay: 10 * time.Millisecond,
		ReconnectMaxDelay:     50 * time.Millisecond,
		MessageBufferSize:     8,
		Logger:                zaptest.NewLogger(t),
	})
	require.NoError(t, c.Start())
	t.Cleanup(func() { _ = c.Close() })

	assert.Equal(t, uint64(1), nextEvent(t, c).Sequence)
	assert.Equal(t, uint64(2), nextEvent(t, c).Sequence)
}

func TestClientStartFailsWithoutServer(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := wsURL(srv, "")
	srv.Close()

	c := NewClient(ClientConfig{URL: url, DialTimeout: time.Second, Logger: zaptest.NewLogger(t)})
	err := c.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "initial connection")
}

func TestClientCloseClosesEvents(t *testing.T) {
	_, srv := serveHub(t, newBus(t), time.Second)

	c := NewClient(ClientConfig{URL: wsURL(srv, ""), Logger: zaptest.NewLogger(t)})
	require.NoError(t, c.Start())
	require.NoError(t, c.Close())

	_, ok := <-c.Events()
	assert.False(t, ok)
}
