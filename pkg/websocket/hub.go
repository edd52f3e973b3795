package websocket

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/mselser95/bangr-engine/internal/events"
	"github.com/mselser95/bangr-engine/pkg/types"
	"go.uber.org/zap"
)

// SubscriberName labels every stream client's bus subscription. Clients are
// told apart in logs by remote address, never in metric labels.
const SubscriberName = "ws"

// Subscriber hands out event subscriptions.
type Subscriber interface {
	Subscribe(name string, filter events.Filter) *events.Subscription
}

// Hub streams engine events to WebSocket clients. Each connection holds its
// own bus subscription, optionally narrowed with ?market=<id> and
// ?types=<EventType,...>.
type Hub struct {
	bus          Subscriber
	logger       *zap.Logger
	upgrader     websocket.Upgrader
	pingInterval time.Duration
	writeTimeout time.Duration

	mu     sync.Mutex
	conns  map[*hubConn]struct{}
	closed bool
	wg     sync.WaitGroup
}

// HubConfig holds hub configuration.
type HubConfig struct {
	Bus          Subscriber
	Logger       *zap.Logger
	PingInterval time.Duration // default 10s; clients must answer within two intervals
	WriteTimeout time.Duration // default 5s
}

type hubConn struct {
	hub    *Hub
	ws     *websocket.Conn
	sub    *events.Subscription
	remote string
	done   chan struct{}
	once   sync.Once
	start  time.Time
}

// NewHub creates an event stream hub.
func NewHub(cfg *HubConfig) (*Hub, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if cfg.Bus == nil {
		return nil, fmt.Errorf("bus cannot be nil")
	}

	ping := cfg.PingInterval
	if ping <= 0 {
		ping = 10 * time.Second
	}
	write := cfg.WriteTimeout
	if write <= 0 {
		write = 5 * time.Second
	}

	return &Hub{
		bus:    cfg.Bus,
		logger: cfg.Logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		pingInterval: ping,
		writeTimeout: write,
		conns:        make(map[*hubConn]struct{}),
	}, nil
}

// ParseFilter builds a subscription filter from the stream query parameters.
func ParseFilter(r *http.Request) (events.Filter, error) {
	q := r.URL.Query()
	var filters []events.Filter

	if raw := q.Get("market"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return nil, types.Errorf(types.ErrInvalidArgument, "invalid market %q", raw)
		}
		filters = append(filters, events.ForMarket(id))
	}
	if raw := q.Get("types"); raw != "" {
		var eventTypes []types.EventType
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				eventTypes = append(eventTypes, types.EventType(t))
			}
		}
		filters = append(filters, events.OfTypes(eventTypes...))
	}

	if len(filters) == 0 {
		return nil, nil
	}
	return events.And(filters...), nil
}

// ServeHTTP upgrades the request and starts streaming.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	filter, err := ParseFilter(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()
	if closed {
		http.Error(w, "event stream closed", http.StatusServiceUnavailable)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket-upgrade-failed", zap.Error(err))
		return
	}

	c := &hubConn{
		hub:    h,
		ws:     ws,
		sub:    h.bus.Subscribe(SubscriberName, filter),
		remote: r.RemoteAddr,
		done:   make(chan struct{}),
		start:  time.Now(),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		c.sub.Close()
		_ = ws.Close()
		return
	}
	h.conns[c] = struct{}{}
	h.wg.Add(2)
	h.mu.Unlock()
	HubConnections.Inc()

	h.logger.Info("stream-client-connected",
		zap.String("remote", c.remote),
		zap.String("query", r.URL.RawQuery))

	go c.readPump()
	go c.writePump()
}

// Connections returns the number of connected clients.
func (h *Hub) Connections() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// Close disconnects every client and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	conns := make([]*hubConn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		c.stop()
	}
	h.wg.Wait()
	h.logger.Info("stream-hub-closed")
}

func (c *hubConn) stop() {
	c.once.Do(func() { close(c.done) })
}

// readPump drains client frames so pong and close frames are processed.
func (c *hubConn) readPump() {
	defer c.hub.wg.Done()
	defer c.stop()

	pongWait := 2 * c.hub.pingInterval
	c.ws.SetReadLimit(512)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Debug("stream-client-read-error",
					zap.String("remote", c.remote),
					zap.Error(err))
			}
			return
		}
	}
}

func (c *hubConn) writePump() {
	ticker := time.NewTicker(c.hub.pingInterval)
	defer func() {
		ticker.Stop()
		c.sub.Close()
		_ = c.ws.Close()

		c.hub.mu.Lock()
		delete(c.hub.conns, c)
		c.hub.mu.Unlock()
		HubConnections.Dec()
		ConnectionDuration.Observe(time.Since(c.start).Seconds())

		c.hub.logger.Info("stream-client-disconnected", zap.String("remote", c.remote))
		c.hub.wg.Done()
	}()

	for {
		select {
		case <-c.done:
			c.closeFrame(websocket.CloseGoingAway, "server shutting down")
			return

		case ev, ok := <-c.sub.Events():
			if !ok {
				c.closeFrame(websocket.CloseGoingAway, "event bus closed")
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				c.hub.logger.Error("event-encode-failed",
					zap.Uint64("sequence", ev.Sequence),
					zap.Error(err))
				continue
			}
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.hub.writeTimeout))
			if err = c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				c.hub.logger.Debug("stream-client-write-error",
					zap.String("remote", c.remote),
					zap.Error(err))
				return
			}
			MessagesSentTotal.WithLabelValues(string(ev.Type)).Inc()

		case <-ticker.C:
			deadline := time.Now().Add(c.hub.writeTimeout)
			if err := c.ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}

func (c *hubConn) closeFrame(code int, text string) {
	msg := websocket.FormatCloseMessage(code, text)
	_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.hub.writeTimeout))
}
