// package channel implements the per-session push channel over a WebSocket
package channel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/biy/internal/models"
	"github.com/desertthunder/biy/internal/shared"
	"github.com/gorilla/websocket"
)

const (
	defaultHandshakeTimeout = 10 * time.Second
	closeGrace              = time.Second
)

// State is the connection state of a [Channel].
type State int

const (
	Connecting State = iota
	Open
	Closed
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	case Closed:
		return "closed"
	default:
		return ""
	}
}

// EventHandler receives decoded push events in transport order.
type EventHandler func(models.Event)

// CloseHandler receives the error that severed the channel, or nil for a normal closure.
type CloseHandler func(error)

type eventSub struct{ fn EventHandler }
type closeSub struct{ fn CloseHandler }

// Option configures a [Channel].
type Option func(*Channel)

// WithHandshakeTimeout bounds the WebSocket opening handshake.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(c *Channel) {
		if d > 0 {
			c.dialer.HandshakeTimeout = d
		}
	}
}

// WithLogger sets the channel logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Channel) { c.logger = l }
}

// Channel is a single-use push connection: connecting → open → closed. Closing is terminal.
//
// At most one event handler and one close handler are active. Registering a handler replaces the previous one.
type Channel struct {
	url    string
	dialer websocket.Dialer
	logger *log.Logger

	mu       sync.Mutex
	state    State
	conn     *websocket.Conn
	dialing  bool
	closing  bool
	onEvent  *eventSub
	onClose  *closeSub
	done     chan struct{}
	loopDone chan struct{}

	writeMu sync.Mutex
}

// New creates a channel for url in the connecting state. Nothing is dialed until [Channel.Open].
func New(url string, opts ...Option) *Channel {
	c := &Channel{
		url:    url,
		dialer: websocket.Dialer{HandshakeTimeout: defaultHandshakeTimeout},
		logger: log.Default(),
		state:  Connecting,
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// URL joins a push base URL, route prefix and session ID.
func URL(base, path, sessionID string) string {
	return base + path + "/" + sessionID
}

// Open dials the push endpoint and starts the read loop.
//
// Failure moves the channel to closed and returns an error wrapping [shared.ErrTransportUnavailable].
func (c *Channel) Open(ctx context.Context) error {
	c.mu.Lock()
	if c.state != Connecting || c.dialing || c.closing {
		c.mu.Unlock()
		return fmt.Errorf("%w: channel already used", shared.ErrChannelClosed)
	}
	c.dialing = true
	c.mu.Unlock()

	c.logger.Debug("dialing push channel", "url", c.url)
	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		c.finish(err)
		return fmt.Errorf("%w: %w", shared.ErrTransportUnavailable, err)
	}

	c.mu.Lock()
	if c.closing || c.state == Closed {
		c.mu.Unlock()
		conn.Close()
		return fmt.Errorf("%w: closed while connecting", shared.ErrChannelClosed)
	}
	c.conn = conn
	c.state = Open
	c.loopDone = make(chan struct{})
	c.mu.Unlock()

	c.logger.Info("push channel open", "url", c.url)
	go c.readLoop(conn)
	return nil
}

// OnEvent replaces the active event handler. The returned function removes it if it is still active.
func (c *Channel) OnEvent(fn EventHandler) (unsubscribe func()) {
	sub := &eventSub{fn: fn}

	c.mu.Lock()
	c.onEvent = sub
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.onEvent == sub {
			c.onEvent = nil
		}
	}
}

// OnClose replaces the active close handler. The returned function removes it if it is still active.
func (c *Channel) OnClose(fn CloseHandler) (unsubscribe func()) {
	sub := &closeSub{fn: fn}

	c.mu.Lock()
	c.onClose = sub
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.onClose == sub {
			c.onClose = nil
		}
	}
}

// State returns the current connection state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Done is closed once the channel reaches the closed state.
func (c *Channel) Done() <-chan struct{} {
	return c.done
}

// Close sends a normal closure frame, closes the socket and waits for the read loop to exit. It is idempotent.
func (c *Channel) Close() error {
	c.mu.Lock()
	if c.closing || c.state == Closed {
		c.mu.Unlock()
		return nil
	}
	c.closing = true
	conn := c.conn
	loopDone := c.loopDone
	c.mu.Unlock()

	if conn == nil {
		c.finish(nil)
		return nil
	}

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	c.writeMu.Lock()
	err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGrace))
	c.writeMu.Unlock()
	if err != nil {
		c.logger.Debug("failed to send close frame", "error", err)
	}

	select {
	case <-loopDone:
	case <-time.After(closeGrace):
		c.logger.Debug("close handshake timed out")
	}

	closeErr := conn.Close()
	<-loopDone

	if closeErr != nil && !errors.Is(closeErr, websocket.ErrCloseSent) {
		c.logger.Debug("socket close", "error", closeErr)
	}
	return nil
}

func (c *Channel) readLoop(conn *websocket.Conn) {
	defer close(c.loopDone)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.finish(err)
			return
		}

		event, err := models.DecodeEvent(data)
		if err != nil {
			c.logger.Debug("dropping frame", "error", err, "bytes", len(data))
			continue
		}

		c.mu.Lock()
		sub := c.onEvent
		c.mu.Unlock()

		if sub != nil {
			sub.fn(event)
		}
	}
}

// finish moves the channel to closed exactly once and notifies the close handler.
func (c *Channel) finish(cause error) {
	c.mu.Lock()
	if c.state == Closed {
		c.mu.Unlock()
		return
	}
	if c.closing || websocket.IsCloseError(cause, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		cause = nil
	}
	c.state = Closed
	close(c.done)
	sub := c.onClose
	c.mu.Unlock()

	if cause != nil {
		c.logger.Warn("push channel closed", "error", cause)
	} else {
		c.logger.Info("push channel closed")
	}

	if sub != nil {
		sub.fn(cause)
	}
}
