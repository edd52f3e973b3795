package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/mselser95/bangr-engine/internal/events"
	"github.com/mselser95/bangr-engine/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func newBus(t *testing.T) *events.Bus {
	t.Helper()
	bus, err := events.New(&events.Config{Logger: zaptest.NewLogger(t), BufferSize: 16})
	require.NoError(t, err)
	t.Cleanup(bus.Close)
	return bus
}

func serveHub(t *testing.T, bus *events.Bus, ping time.Duration) (*Hub, *httptest.Server) {
	t.Helper()
	hub, err := NewHub(&HubConfig{Bus: bus, Logger: zaptest.NewLogger(t), PingInterval: ping})
	require.NoError(t, err)
	srv := httptest.NewServer(hub)
	t.Cleanup(srv.Close)
	return hub, srv
}

func wsURL(srv *httptest.Server, query string) string {
	u := "ws" + strings.TrimPrefix(srv.URL, "http")
	if query != "" {
		u += "?" + query
	}
	return u
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) StreamEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var ev StreamEvent
	require.NoError(t, json.Unmarshal(data, &ev))
	return ev
}

func TestNewHub(t *testing.T) {
	bus := newBus(t)

	tests := []struct {
		name    string
		cfg     *HubConfig
		wantErr string
	}{
		{name: "nil-config", wantErr: "config cannot be nil"},
		{name: "missing-logger", cfg: &HubConfig{Bus: bus}, wantErr: "logger cannot be nil"},
		{name: "missing-bus", cfg: &HubConfig{Logger: zap.NewNop()}, wantErr: "bus cannot be nil"},
		{name: "defaults", cfg: &HubConfig{Bus: bus, Logger: zap.NewNop()}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hub, err := NewHub(tt.cfg)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 10*time.Second, hub.pingInterval)
			assert.Equal(t, 5*time.Second, hub.writeTimeout)
		})
	}
}

func TestParseFilter(t *testing.T) {
	evs := []types.Event{
		{MarketID: 1, Type: types.EventOrderPlaced},
		{MarketID: 2, Type: types.EventTradeExecuted},
		{MarketID: 2, Type: types.EventOrderPlaced},
	}

	tests := []struct {
		name    string
		query   string
		want    []int
		wantErr bool
	}{
		{name: "no-filter", query: "", want: []int{0, 1, 2}},
		{name: "market", query: "market=2", want: []int{1, 2}},
		{name: "types", query: "types=OrderPlaced", want: []int{0, 2}},
		{name: "market-and-types", query: "market=2&types=TradeExecuted,%20MarketResolved", want: []int{1}},
		{name: "bad-market", query: "market=two", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/ws/events?"+tt.query, nil)
			filter, err := ParseFilter(r)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, types.KindValidation, types.KindOf(err))
				return
			}
			require.NoError(t, err)

			got := make([]int, 0)
			for i := range evs {
				if filter == nil || filter(&evs[i]) {
					got = append(got, i)
				}
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHubStreamsFilteredEvents(t *testing.T) {
	bus := newBus(t)
	hub, srv := serveHub(t, bus, time.Second)

	conn := dial(t, wsURL(srv, "market=2"))
	require.Eventually(t, func() bool { return bus.Subscribers() == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, hub.Connections())

	bus.Publish([]types.Event{
		{Sequence: 1, MarketID: 1, Type: types.EventOrderPlaced, Payload: types.OrderPlacedPayload{}},
		{Sequence: 2, MarketID: 2, Type: types.EventMarketResolved, Payload: types.MarketResolvedPayload{
			MarketID: 2, Status: types.StatusResolvedNo, FinalValue: 7,
		}},
	})

	ev := readEvent(t, conn)
	assert.Equal(t, uint64(2), ev.Sequence)
	assert.Equal(t, types.EventMarketResolved, ev.Type)

	var payload types.MarketResolvedPayload
	require.NoError(t, json.Unmarshal(ev.Payload, &payload))
	assert.Equal(t, types.StatusResolvedNo, payload.Status)
	assert.Equal(t, uint64(7), payload.FinalValue)
}

func TestHubSubscriptionsShareOneMetricLabel(t *testing.T) {
	bus := newBus(t)
	hub, srv := serveHub(t, bus, time.Second)

	dial(t, wsURL(srv, ""))
	dial(t, wsURL(srv, "market=3"))
	require.Eventually(t, func() bool { return hub.Connections() == 2 }, 2*time.Second, 5*time.Millisecond)

	hub.mu.Lock()
	defer hub.mu.Unlock()
	for c := range hub.conns {
		assert.Equal(t, SubscriberName, c.sub.Name())
	}
}

func TestHubRejectsBadFilter(t *testing.T) {
	_, srv := serveHub(t, newBus(t), time.Second)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, "market=abc"), nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHubSendsPings(t *testing.T) {
	_, srv := serveHub(t, newBus(t), 20*time.Millisecond)
	conn := dial(t, wsURL(srv, ""))

	pinged := make(chan struct{}, 1)
	conn.SetPingHandler(func(string) error {
		select {
		case pinged <- struct{}{}:
		default:
		}
		return nil
	})
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	select {
	case <-pinged:
	case <-time.After(2 * time.Second):
		t.Fatal("no ping received")
	}
}

func TestHubCloseDisconnectsClients(t *testing.T) {
	bus := newBus(t)
	hub, srv := serveHub(t, bus, time.Second)

	conn := dial(t, wsURL(srv, ""))
	require.Eventually(t, func() bool { return hub.Connections() == 1 }, 2*time.Second, 5*time.Millisecond)

	hub.Close()
	assert.Equal(t, 0, hub.Connections())
	assert.Equal(t, 0, bus.Subscribers())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, ""), nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestHubEndsStreamWhenBusCloses(t *testing.T) {
	bus, err := events.New(&events.Config{Logger: zap.NewNop()})
	require.NoError(t, err)
	hub, srv := serveHub(t, bus, time.Second)

	conn := dial(t, wsURL(srv, ""))
	require.Eventually(t, func() bool { return bus.Subscribers() == 1 }, 2*time.Second, 5*time.Millisecond)

	bus.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
	require.Eventually(t, func() bool { return hub.Connections() == 0 }, 2*time.Second, 5*time.Millisecond)
}
