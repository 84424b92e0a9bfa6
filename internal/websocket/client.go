// Package websocket subscribes to the server's Socket.IO event stream and
// hands each pushed "events" payload to a callback.
package websocket

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bhandras/msgsync/pkg/logger"
	"github.com/golang-jwt/jwt/v5"
	socket "github.com/zishang520/socket.io/clients/socket/v3"
	"github.com/zishang520/socket.io/v3/pkg/types"
)

const (
	// EventEvents carries an ordered batch of server events.
	EventEvents = "events"

	defaultPath = "/socket.io"

	// minRefreshInterval bounds how often auth failures may trigger a token
	// refresh.
	minRefreshInterval = 30 * time.Second
)

var (
	// ErrTokenExpired is returned when the bearer token's exp claim has
	// passed and no refresher is configured.
	ErrTokenExpired = errors.New("token expired")

	// ErrNotConnected is returned by operations that need a socket.
	ErrNotConnected = errors.New("not connected")
)

// Handlers are invoked from Socket.IO goroutines.
type Handlers struct {
	OnEvents       func(payload any)
	OnConnected    func()
	OnDisconnected func(reason string)
}

// Option configures a Client.
type Option func(*Client)

// WithPath overrides the Socket.IO path.
func WithPath(path string) Option {
	return func(c *Client) { c.path = path }
}

// WithTokenRefresher installs a callback used to obtain a fresh token when
// the current one has expired or the server rejects it.
func WithTokenRefresher(fn func() (string, error)) Option {
	return func(c *Client) { c.refresher = fn }
}

// WithClock overrides the time source used for token checks.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// Client is a Socket.IO subscription to the event stream.
type Client struct {
	serverURL string
	path      string
	handlers  Handlers
	refresher func() (string, error)
	now       func() time.Time

	mu            sync.RWMutex
	token         string
	socket        *socket.Socket
	connected     bool
	lastRefreshAt time.Time

	// reconnectFn is replaced in tests.
	reconnectFn func() error
}

// NewClient returns a client that is not yet connected.
func NewClient(serverURL, token string, handlers Handlers, opts ...Option) *Client {
	c := &Client{
		serverURL: serverURL,
		path:      defaultPath,
		handlers:  handlers,
		token:     token,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.reconnectFn = c.reconnect
	return c
}

// CheckToken reports ErrTokenExpired if token is a JWT whose exp claim is
// before now. Opaque tokens are accepted; the server remains the authority.
func CheckToken(token string, now time.Time) error {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil
	}
	if exp.Before(now) {
		return fmt.Errorf("%w at %s", ErrTokenExpired, exp.UTC().Format(time.RFC3339))
	}
	return nil
}

// Connect dials the server. The connection completes asynchronously and is
// reported through Handlers.OnConnected.
func (c *Client) Connect() error {
	token, err := c.validToken()
	if err != nil {
		return err
	}

	opts := socket.DefaultOptions()
	opts.SetPath(c.path)
	opts.SetTransports(types.NewSet(socket.Polling, socket.WebSocket))
	opts.SetAuth(map[string]any{"token": token})

	logger.Debugf("websocket: connecting to %s (path: %s)", c.serverURL, c.path)
	sock, err := socket.Connect(c.serverURL, opts)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	c.mu.Lock()
	c.socket = sock
	c.mu.Unlock()

	sock.On(types.EventName("connect"), func(args ...any) {
		c.setConnected(true)
		logger.Infof("websocket: connected, id %s", sock.Id())
		if c.handlers.OnConnected != nil {
			c.handlers.OnConnected()
		}
	})

	sock.On(types.EventName("disconnect"), func(args ...any) {
		c.setConnected(false)
		reason := firstString(args)
		logger.Infof("websocket: disconnected: %s", reason)
		if c.handlers.OnDisconnected != nil {
			c.handlers.OnDisconnected(reason)
		}
	})

	sock.On(types.EventName("connect_error"), func(args ...any) {
		if len(args) > 0 {
			logger.Warnf("websocket: connection error: %v", args[0])
		}
		c.maybeRefreshToken(args)
	})

	sock.On(types.EventName(EventEvents), c.dispatchEvents)
	return nil
}

// validToken returns the current token, refreshing it first if it has
// expired and a refresher is configured.
func (c *Client) validToken() (string, error) {
	c.mu.RLock()
	token := c.token
	c.mu.RUnlock()

	err := CheckToken(token, c.now())
	if err == nil {
		return token, nil
	}
	if c.refresher == nil {
		return "", err
	}

	fresh, rerr := c.refresher()
	if rerr != nil {
		return "", fmt.Errorf("refresh token: %w", rerr)
	}
	if err := CheckToken(fresh, c.now()); err != nil {
		return "", err
	}
	c.mu.Lock()
	c.token = fresh
	c.lastRefreshAt = c.now()
	c.mu.Unlock()
	return fresh, nil
}

func (c *Client) dispatchEvents(args ...any) {
	if len(args) == 0 {
		return
	}
	logger.Tracef("websocket: received %s", EventEvents)
	if c.handlers.OnEvents != nil {
		c.handlers.OnEvents(args[0])
	}
}

// maybeRefreshToken refreshes the token and reconnects when a connection
// error looks like an auth rejection.
func (c *Client) maybeRefreshToken(args []any) {
	if c.refresher == nil || !isAuthError(args) {
		return
	}

	c.mu.Lock()
	if c.now().Sub(c.lastRefreshAt) < minRefreshInterval {
		c.mu.Unlock()
		return
	}
	c.lastRefreshAt = c.now()
	c.mu.Unlock()

	go func() {
		token, err := c.refresher()
		if err != nil {
			logger.Warnf("websocket: token refresh failed: %v", err)
			return
		}
		c.mu.Lock()
		c.token = token
		c.mu.Unlock()

		if err := c.reconnectFn(); err != nil {
			logger.Warnf("websocket: reconnect failed: %v", err)
		}
	}()
}

func (c *Client) reconnect() error {
	c.disconnect()
	return c.Connect()
}

func isAuthError(args []any) bool {
	for _, a := range args {
		var s string
		switch v := a.(type) {
		case string:
			s = v
		case error:
			s = v.Error()
		case map[string]any:
			s = fmt.Sprint(v["message"])
		default:
			continue
		}
		s = strings.ToLower(s)
		if strings.Contains(s, "401") || strings.Contains(s, "unauthorized") ||
			strings.Contains(s, "invalid token") {
			return true
		}
	}
	return false
}

func firstString(args []any) string {
	if len(args) > 0 {
		if s, ok := args[0].(string); ok {
			return s
		}
	}
	return ""
}

func (c *Client) setConnected(v bool) {
	c.mu.Lock()
	c.connected = v
	c.mu.Unlock()
}

// IsConnected returns whether the client is connected.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	sock := c.socket
	connected := c.connected
	c.mu.RUnlock()

	if connected {
		return true
	}
	return sock != nil && sock.Connected()
}

// WaitForConnect waits for the socket to report connected or times out.
func (c *Client) WaitForConnect(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if c.IsConnected() {
			return true
		}
		time.Sleep(50 * time.Millisecond)
	}
	return c.IsConnected()
}

func (c *Client) disconnect() {
	c.mu.Lock()
	sock := c.socket
	c.socket = nil
	c.connected = false
	c.mu.Unlock()

	if sock != nil {
		sock.Disconnect()
	}
}

// Close closes the Socket.IO connection.
func (c *Client) Close() error {
	c.disconnect()
	return nil
}
