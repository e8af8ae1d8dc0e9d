package pushchannel

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	sonic "github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/riskibarqy/matchday-sync/internal/platform/logging"
	"github.com/riskibarqy/matchday-sync/internal/usecase"
)

const (
	defaultReconnectMin = 500 * time.Millisecond
	defaultReconnectMax = 30 * time.Second
	defaultPingInterval = 25 * time.Second
	writeWait           = 5 * time.Second
	maxFrameBytes       = 1 << 20
)

type Config struct {
	URL          string
	Token        string
	ReconnectMin time.Duration
	ReconnectMax time.Duration
	PingInterval time.Duration
	Dialer       *websocket.Dialer
	Logger       *logging.Logger
}

// Client keeps one websocket connection to the push server open and routes
// named event frames to registered handlers. Handlers run on the read
// goroutine, one frame at a time, in arrival order.
type Client struct {
	url          string
	token        string
	reconnectMin time.Duration
	reconnectMax time.Duration
	pingInterval time.Duration
	dialer       *websocket.Dialer
	logger       *logging.Logger

	mu       sync.RWMutex
	handlers map[string][]handlerEntry
	connects []connectEntry
	nextID   uint64

	connected atomic.Bool
}

type handlerEntry struct {
	id uint64
	fn func([]byte)
}

type connectEntry struct {
	id uint64
	fn func()
}

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

var _ usecase.PushChannel = (*Client)(nil)

func New(cfg Config) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	dialer := cfg.Dialer
	if dialer == nil {
		dialer = &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		}
	}

	reconnectMin := cfg.ReconnectMin
	if reconnectMin <= 0 {
		reconnectMin = defaultReconnectMin
	}
	reconnectMax := cfg.ReconnectMax
	if reconnectMax < reconnectMin {
		reconnectMax = maxDuration(defaultReconnectMax, reconnectMin)
	}
	pingInterval := cfg.PingInterval
	if pingInterval <= 0 {
		pingInterval = defaultPingInterval
	}

	return &Client{
		url:          strings.TrimSpace(cfg.URL),
		token:        strings.TrimSpace(cfg.Token),
		reconnectMin: reconnectMin,
		reconnectMax: reconnectMax,
		pingInterval: pingInterval,
		dialer:       dialer,
		logger:       logger.Named("pushchannel"),
		handlers:     make(map[string][]handlerEntry),
	}
}

// Subscribe registers handler for event. The returned func removes it and is
// safe to call more than once.
func (c *Client) Subscribe(event string, handler func(data []byte)) func() {
	if handler == nil {
		return func() {}
	}

	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.handlers[event] = append(c.handlers[event], handlerEntry{id: id, fn: handler})
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			entries := c.handlers[event]
			for i, entry := range entries {
				if entry.id == id {
					c.handlers[event] = append(entries[:i:i], entries[i+1:]...)
					break
				}
			}
			if len(c.handlers[event]) == 0 {
				delete(c.handlers, event)
			}
		})
	}
}

// OnConnect registers fn to run after every successful (re)connect.
func (c *Client) OnConnect(fn func()) func() {
	if fn == nil {
		return func() {}
	}

	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.connects = append(c.connects, connectEntry{id: id, fn: fn})
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			for i, entry := range c.connects {
				if entry.id == id {
					c.connects = append(c.connects[:i:i], c.connects[i+1:]...)
					return
				}
			}
		})
	}
}

func (c *Client) Connected() bool {
	return c.connected.Load()
}

// Run connects and reconnects with exponential backoff until ctx is done.
func (c *Client) Run(ctx context.Context) error {
	if c.url == "" {
		return crerr.New("push channel url is required")
	}

	backoff := c.reconnectMin
	for {
		connected, err := c.session(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if connected {
			backoff = c.reconnectMin
		}
		c.logger.WarnContext(ctx, "push channel disconnected", "error", err, "retry_in", backoff.String())

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
		backoff = minDuration(backoff*2, c.reconnectMax)
	}
}

func (c *Client) session(ctx context.Context) (bool, error) {
	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}

	conn, resp, err := c.dialer.DialContext(ctx, c.url, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return false, crerr.Wrap(err, "dial push channel")
	}
	defer conn.Close()

	logger := c.logger.With("connection_id", uuid.NewString())
	conn.SetReadLimit(maxFrameBytes)
	_ = conn.SetReadDeadline(time.Now().Add(2 * c.pingInterval))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(2 * c.pingInterval))
	})

	c.connected.Store(true)
	defer c.connected.Store(false)
	logger.InfoContext(ctx, "push channel connected", "url", c.url)
	c.fireConnect()

	stop := make(chan struct{})
	defer close(stop)
	go c.keepAlive(ctx, conn, stop)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return true, nil
			}
			return true, crerr.Wrap(err, "read push frame")
		}
		c.dispatch(logger, data)
	}
}

// keepAlive pings the server and closes the connection once ctx is done.
// WriteControl may run concurrently with the reader.
func (c *Client) keepAlive(ctx context.Context, conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			_ = conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait),
			)
			_ = conn.Close()
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				_ = conn.Close()
				return
			}
		}
	}
}

func (c *Client) dispatch(logger *logging.Logger, data []byte) {
	var msg frame
	if err := sonic.Unmarshal(data, &msg); err != nil {
		logger.Warn("drop malformed push frame", "error", err)
		return
	}
	if msg.Event == "" {
		logger.Warn("drop push frame without event name")
		return
	}

	c.mu.RLock()
	entries := append([]handlerEntry(nil), c.handlers[msg.Event]...)
	c.mu.RUnlock()

	for _, entry := range entries {
		c.invoke(logger, msg.Event, entry.fn, msg.Data)
	}
}

func (c *Client) invoke(logger *logging.Logger, event string, fn func([]byte), data []byte) {
	defer func() {
		if recovered := recover(); recovered != nil {
			logger.Error("push handler panicked", "event", event, "panic", recovered)
		}
	}()
	fn(data)
}

func (c *Client) fireConnect() {
	c.mu.RLock()
	entries := append([]connectEntry(nil), c.connects...)
	c.mu.RUnlock()

	for _, entry := range entries {
		entry.fn()
	}
}

func minDuration(left, right time.Duration) time.Duration {
	if left < right {
		return left
	}
	return right
}

func maxDuration(left, right time.Duration) time.Duration {
	if left > right {
		return left
	}
	return right
}
