// Package rtclient is a Go client for the /ws realtime endpoint. Pushed events are a
// latency optimisation only: callers also register a poll function that refetches state.
package rtclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	defaultMaxAttempts = 5
	defaultBackoff     = 2 * time.Second
)

var (
	// ErrUnauthorized is returned when the server rejects the handshake token. It is not retried.
	ErrUnauthorized = errors.New("rtclient: unauthorized")
	// ErrGaveUp is returned after MaxAttempts consecutive failed dials.
	ErrGaveUp = errors.New("rtclient: gave up reconnecting")
)

// Event is one pushed message.
type Event struct {
	Name string          `json:"event"`
	Data json.RawMessage `json:"data,omitempty"`
}

// HandlerFunc handles one event. Handlers run on the read goroutine and must not block.
type HandlerFunc func(Event)

// Options configures a Client.
type Options struct {
	// URL is the ws:// or wss:// address of the realtime endpoint.
	URL   string
	Token string
	// MaxAttempts bounds consecutive failed dials. A successful connection resets the count.
	MaxAttempts int
	// Backoff is the fixed wait between dials.
	Backoff time.Duration
	// Poll refetches state. It runs every PollInterval and after every lost connection.
	Poll         func(ctx context.Context) error
	PollInterval time.Duration
	Dialer       *websocket.Dialer
	Logger       *zap.Logger
}

// Client keeps one WebSocket connection alive and dispatches events by name.
type Client struct {
	opts      Options
	logger    *zap.Logger
	mu        sync.RWMutex
	handlers  map[string][]HandlerFunc
	connected atomic.Bool
	pollMu    sync.Mutex
}

// New creates a client. Nothing is dialled until Run.
func New(opts Options) *Client {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.Backoff <= 0 {
		opts.Backoff = defaultBackoff
	}
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{opts: opts, logger: logger, handlers: make(map[string][]HandlerFunc)}
}

// On registers fn for event. "*" receives every event.
func (c *Client) On(event string, fn HandlerFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[event] = append(c.handlers[event], fn)
}

// Connected reports whether a connection is currently open.
func (c *Client) Connected() bool {
	return c.connected.Load()
}

// Run connects and reconnects until ctx is done, the token is rejected, or
// MaxAttempts consecutive dials fail.
func (c *Client) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if c.opts.Poll != nil && c.opts.PollInterval > 0 {
		go c.pollLoop(ctx)
	}

	failures := 0
	for {
		conn, err := c.dial(ctx)
		switch {
		case err == nil:
			failures = 0
			c.connected.Store(true)
			c.logger.Info("realtime connected", zap.String("url", c.opts.URL))
			err = c.read(ctx, conn)
			c.connected.Store(false)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Warn("realtime connection lost", zap.Error(err))
			c.poll(ctx)
		case errors.Is(err, ErrUnauthorized):
			return err
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			failures++
			c.logger.Warn("realtime dial failed", zap.Int("attempt", failures), zap.Error(err))
			if failures >= c.opts.MaxAttempts {
				return fmt.Errorf("%w after %d attempts: %v", ErrGaveUp, failures, err)
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.opts.Backoff):
		}
	}
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	u, err := url.Parse(c.opts.URL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	if c.opts.Token != "" {
		q := u.Query()
		q.Set("token", c.opts.Token)
		u.RawQuery = q.Encode()
	}
	conn, resp, err := c.opts.Dialer.DialContext(ctx, u.String(), nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	return conn, nil
}

func (c *Client) read(ctx context.Context, conn *websocket.Conn) error {
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()
	defer conn.Close()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var ev Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			c.logger.Debug("dropping malformed event", zap.Error(err))
			continue
		}
		c.dispatch(ev)
	}
}

func (c *Client) dispatch(ev Event) {
	c.mu.RLock()
	fns := append(append([]HandlerFunc(nil), c.handlers[ev.Name]...), c.handlers["*"]...)
	c.mu.RUnlock()
	for _, fn := range fns {
		fn(ev)
	}
}

func (c *Client) pollLoop(ctx context.Context) {
	t := time.NewTicker(c.opts.PollInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			c.poll(ctx)
		}
	}
}

// poll is serialised so a slow refetch never overlaps the next one.
func (c *Client) poll(ctx context.Context) {
	if c.opts.Poll == nil {
		return
	}
	c.pollMu.Lock()
	defer c.pollMu.Unlock()
	if err := c.opts.Poll(ctx); err != nil && ctx.Err() == nil {
		c.logger.Warn("poll failed", zap.Error(err))
	}
}
