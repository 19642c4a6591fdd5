package signal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"vico_home/callcore/internal/domain"
)

const (
	writeWait      = 5 * time.Second
	maxReconnect   = 30 * time.Second
	firstReconnect = time.Second
)

// Client is the WebSocket event channel adapter. It implements
// domain.EventChannel: one read loop delivers events to subscribers one at a
// time, and a dropped connection is re-dialed with backoff.
type Client struct {
	url          string
	token        string
	pingInterval time.Duration
	dialer       *websocket.Dialer
	log          zerolog.Logger

	registry *Registry
	connect  singleflight.Group

	mu        sync.Mutex // guards conn writes
	conn      *websocket.Conn
	connected atomic.Bool

	closeOnce sync.Once
	closed    chan struct{}
}

// NewClient creates a relay client for url. token is sent as a bearer
// credential during the handshake.
func NewClient(url, token string, pingInterval time.Duration, logger zerolog.Logger) *Client {
	return &Client{
		url:          url,
		token:        token,
		pingInterval: pingInterval,
		dialer:       websocket.DefaultDialer,
		log:          logger.With().Str("component", "signal").Logger(),
		registry:     NewRegistry(),
		closed:       make(chan struct{}),
	}
}

// Connect dials the relay and starts the read and ping loops. Concurrent
// callers share a single dial; the first caller's context bounds it.
func (c *Client) Connect(ctx context.Context) error {
	if c.IsConnected() {
		return nil
	}
	_, err, _ := c.connect.Do("connect", func() (any, error) {
		if c.IsConnected() {
			return nil, nil
		}
		return nil, c.dial(ctx)
	})
	return err
}

func (c *Client) dial(ctx context.Context) error {
	select {
	case <-c.closed:
		return fmt.Errorf("signal client closed")
	default:
	}

	c.log.Info().Str("url", c.url).Msg("connecting")

	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}
	conn, _, err := c.dialer.DialContext(ctx, c.url, header)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	c.connected.Store(true)

	go c.readLoop(conn)
	go c.pingLoop(conn)

	c.log.Info().Msg("connected")
	return nil
}

// IsConnected reports whether the relay connection is up.
func (c *Client) IsConnected() bool {
	return c.connected.Load()
}

// Subscribe registers handler for event.
func (c *Client) Subscribe(event string, handler domain.EventHandler) func() {
	return c.registry.Subscribe(event, handler)
}

// Emit sends one event. It is best effort: a nil error only means the frame
// was written to the socket.
func (c *Client) Emit(event string, payload any) error {
	data, err := encode(event, payload)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", event, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil || !c.connected.Load() {
		return domain.ErrNotConnected
	}
	c.log.Debug().Str("event", event).RawJSON("data", json.RawMessage(data)).Msg(">>>")
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write %s: %w", event, err)
	}
	return nil
}

// Close shuts down the connection and stops reconnecting.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.connected.Store(false)
		c.mu.Lock()
		if c.conn != nil {
			c.conn.Close()
		}
		c.mu.Unlock()
	})
}

func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.closed:
				return
			default:
			}
			c.log.Warn().Err(err).Msg("read error")
			c.dropped(conn)
			return
		}

		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.log.Warn().Err(err).Msg("unmarshal error")
			continue
		}
		if !c.registry.Dispatch(env.Event, env.Data) {
			c.log.Debug().Str("event", env.Event).Msg("unhandled event")
		}
	}
}

func (c *Client) pingLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.closed:
			return
		case <-ticker.C:
			c.mu.Lock()
			if c.conn != conn {
				c.mu.Unlock()
				return
			}
			err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeWait))
			c.mu.Unlock()
			if err != nil {
				c.log.Warn().Err(err).Msg("ping error")
				return
			}
		}
	}
}

// dropped marks conn dead and re-dials until success or Close.
func (c *Client) dropped(conn *websocket.Conn) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
		c.connected.Store(false)
	}
	c.mu.Unlock()
	conn.Close()

	backoff := firstReconnect
	for {
		select {
		case <-c.closed:
			return
		case <-time.After(backoff):
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := c.Connect(ctx)
		cancel()
		if err == nil {
			return
		}
		c.log.Warn().Err(err).Dur("backoff", backoff).Msg("reconnect failed")
		if backoff *= 2; backoff > maxReconnect {
			backoff = maxReconnect
		}
	}
}
