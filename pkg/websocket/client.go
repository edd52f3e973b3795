package websocket

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/mselser95/bangr-engine/pkg/types"
	"go.uber.org/zap"
)

// StreamEvent is an event as received from the stream. The payload is left
// encoded since its shape depends on Type.
type StreamEvent struct {
	ID       string          `json:"id"`
	Version  int             `json:"version"`
	Sequence uint64          `json:"sequence"`
	Type     types.EventType `json:"type"`
	MarketID uint64          `json:"market_id"`
	Time     time.Time       `json:"time"`
	Payload  json.RawMessage `json:"payload"`
}

// Client consumes an engine event stream and reconnects when it drops.
type Client struct {
	url          string
	conn         *websocket.Conn
	logger       *zap.Logger
	reconnectMgr *ReconnectManager
	config       ClientConfig
	eventChan    chan *StreamEvent
	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	mu           sync.RWMutex

	connected       atomic.Bool
	connectionStart atomic.Int64
	lastSequence    atomic.Uint64
}

// ClientConfig holds stream client configuration.
type ClientConfig struct {
	URL                   string
	DialTimeout           time.Duration
	PingInterval          time.Duration
	ReconnectInitialDelay time.Duration
	ReconnectMaxDelay     time.Duration
	ReconnectBackoffMult  float64
	MessageBufferSize     int
	Logger                *zap.Logger
}

// NewClient creates a stream client. Call Start to connect.
func NewClient(cfg ClientConfig) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 10 * time.Second
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 10 * time.Second
	}

	return &Client{
		url:    cfg.URL,
		logger: cfg.Logger,
		reconnectMgr: NewReconnectManager(ReconnectConfig{
			InitialDelay:      cfg.ReconnectInitialDelay,
			MaxDelay:          cfg.ReconnectMaxDelay,
			BackoffMultiplier: cfg.ReconnectBackoffMult,
			JitterPercent:     0.2,
		}, cfg.Logger),
		config:    cfg,
		eventChan: make(chan *StreamEvent, cfg.MessageBufferSize),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start connects and begins delivering events.
func (c *Client) Start() error {
	c.logger.Info("stream-client-starting", zap.String("url", c.url))

	err := c.connect(c.ctx)
	if err != nil {
		return fmt.Errorf("initial connection: %w", err)
	}

	c.wg.Add(3)
	go c.readLoop()
	go c.pingLoop()
	go c.reconnectLoop()

	return nil
}

func (c *Client) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: c.config.DialTimeout}

	conn, _, err := dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	c.connected.Store(true)
	c.connectionStart.Store(time.Now().UnixNano())
	ClientConnected.Set(1)

	c.logger.Info("stream-connected", zap.String("url", c.url))
	return nil
}

// readLoop runs until the current connection fails.
func (c *Client) readLoop() {
	defer c.wg.Done()

	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if c.ctx.Err() == nil {
				c.logger.Warn("stream-read-error", zap.Error(err))
			}
			if start := c.connectionStart.Load(); start > 0 {
				ConnectionDuration.Observe(time.Since(time.Unix(0, start)).Seconds())
			}
			c.connected.Store(false)
			ClientConnected.Set(0)
			return
		}

		var ev StreamEvent
		if err = json.Unmarshal(message, &ev); err != nil {
			c.logger.Debug("stream-unparseable-message",
				zap.Error(err),
				zap.Int("bytes", len(message)))
			continue
		}

		MessagesReceivedTotal.WithLabelValues(string(ev.Type)).Inc()
		c.lastSequence.Store(ev.Sequence)

		select {
		case c.eventChan <- &ev:
		default:
			c.logger.Warn("event-channel-full",
				zap.String("event-type", string(ev.Type)),
				zap.Uint64("sequence", ev.Sequence))
			MessagesDroppedTotal.WithLabelValues("channel_full").Inc()
		}
	}
}

func (c *Client) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			if !c.connected.Load() {
				continue
			}

			c.mu.RLock()
			conn := c.conn
			c.mu.RUnlock()

			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(time.Second))
			if err != nil {
				c.logger.Warn("ping-error", zap.Error(err))
			}
		}
	}
}

// reconnectLoop watches the connection and redials with backoff after it drops.
func (c *Client) reconnectLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
		}

		if c.connected.Load() {
			continue
		}

		c.logger.Warn("stream-lost-initiating-reconnect",
			zap.Uint64("last-sequence", c.lastSequence.Load()))

		err := c.reconnectMgr.Reconnect(c.ctx, c.connect)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			c.logger.Error("reconnection-failed", zap.Error(err))
			continue
		}
		if c.ctx.Err() != nil {
			c.mu.RLock()
			_ = c.conn.Close()
			c.mu.RUnlock()
			return
		}

		c.wg.Add(1)
		go c.readLoop()
	}
}

// Events returns the channel of received events. It is closed by Close.
func (c *Client) Events() <-chan *StreamEvent {
	return c.eventChan
}

// LastSequence returns the sequence of the last received event.
func (c *Client) LastSequence() uint64 {
	return c.lastSequence.Load()
}

// Close stops the client and closes the events channel.
func (c *Client) Close() error {
	c.logger.Info("closing-stream-client")

	c.cancel()

	c.mu.RLock()
	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.mu.RUnlock()

	c.wg.Wait()
	close(c.eventChan)
	ClientConnected.Set(0)

	c.logger.Info("stream-client-closed")
	return nil
}
