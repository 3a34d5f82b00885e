package transport

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// StreamState tracks the lifecycle of a streaming channel. A closed
// channel is terminal; callers wanting a new conversation create a new
// channel rather than reconnecting.
type StreamState int

const (
	StreamConnecting StreamState = iota
	StreamOpen
	StreamClosed
)

func (s StreamState) String() string {
	switch s {
	case StreamConnecting:
		return "connecting"
	case StreamOpen:
		return "open"
	case StreamClosed:
		return "closed"
	}
	return "unknown"
}

// StreamOptions tunes the websocket connection.
type StreamOptions struct {
	HandshakeTimeout time.Duration
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	PingInterval     time.Duration
}

// DefaultStreamOptions mirrors the timeouts used against the assistant
// service in production.
func DefaultStreamOptions() StreamOptions {
	return StreamOptions{
		HandshakeTimeout: 30 * time.Second,
		ReadTimeout:      60 * time.Second,
		WriteTimeout:     30 * time.Second,
		PingInterval:     30 * time.Second,
	}
}

// StreamChannel is the persistent text-frame transport. Inbound frames are
// delivered to the reply handler one at a time, in receipt order.
type StreamChannel struct {
	url  string
	opts StreamOptions

	mu      sync.Mutex
	state   StreamState
	conn    *websocket.Conn
	handler ReplyHandler
	onClose func(error)
	cancel  context.CancelFunc
}

// NewStreamChannel creates a channel in the connecting state. Open must be
// called before the first send.
func NewStreamChannel(url string, opts StreamOptions) *StreamChannel {
	return &StreamChannel{url: url, opts: opts, state: StreamConnecting}
}

// SetReplyHandler registers the handler for inbound text frames. Must be
// set before Open.
func (c *StreamChannel) SetReplyHandler(h ReplyHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = h
}

// SetCloseHandler registers a lifecycle callback fired once when the
// channel leaves the open state. The error is nil on an explicit Close.
func (c *StreamChannel) SetCloseHandler(h func(error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onClose = h
}

// State returns the current lifecycle state.
func (c *StreamChannel) State() StreamState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Open performs the websocket handshake and starts the read and ping
// loops. A failed handshake moves the channel straight to closed.
func (c *StreamChannel) Open(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StreamConnecting {
		c.mu.Unlock()
		return &TransportError{Op: "open", Cause: errChannelNotConnecting}
	}
	c.mu.Unlock()

	dialer := &websocket.Dialer{HandshakeTimeout: c.opts.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		c.markClosed(nil)
		return &TransportError{Op: "open", Cause: err}
	}

	conn.SetReadDeadline(time.Now().Add(c.opts.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(c.opts.ReadTimeout))
		return nil
	})

	loopCtx, cancel := context.WithCancel(context.Background())

	c.mu.Lock()
	c.conn = conn
	c.cancel = cancel
	c.state = StreamOpen
	c.mu.Unlock()

	go c.readLoop(conn)
	go c.pingLoop(loopCtx, conn)

	log.Printf("[stream] channel open url=%s", c.url)
	return nil
}

// Send writes one trimmed text frame. Outside the open state the frame is
// dropped with a log line rather than an error; callers guard with State.
// The returned reply is always nil: streaming replies arrive through the
// handler.
func (c *StreamChannel) Send(_ context.Context, turn Turn) (*Reply, error) {
	text := strings.TrimSpace(turn.Text)
	if text == "" {
		return nil, nil
	}

	c.mu.Lock()
	conn := c.conn
	state := c.state
	c.mu.Unlock()

	if state != StreamOpen {
		log.Printf("[stream] dropping frame, channel %s", state)
		return nil, nil
	}

	conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
		c.markClosed(err)
		return nil, &TransportError{Op: "send", Cause: err}
	}
	return nil, nil
}

// Close terminates the channel. Idempotent; the close handler fires once.
func (c *StreamChannel) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn != nil {
		deadline := time.Now().Add(c.opts.WriteTimeout)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	}
	c.markClosed(nil)
	return nil
}

func (c *StreamChannel) readLoop(conn *websocket.Conn) {
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("[stream] read error: %v", err)
			}
			c.markClosed(err)
			return
		}
		conn.SetReadDeadline(time.Now().Add(c.opts.ReadTimeout))

		if msgType != websocket.TextMessage {
			continue
		}

		c.mu.Lock()
		handler := c.handler
		c.mu.Unlock()
		if handler != nil {
			handler(Reply{Text: string(data)})
		}
	}
}

func (c *StreamChannel) pingLoop(ctx context.Context, conn *websocket.Conn) {
	if c.opts.PingInterval <= 0 {
		return
	}
	ticker := time.NewTicker(c.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.markClosed(err)
				return
			}
		}
	}
}

// markClosed transitions to the terminal closed state exactly once.
func (c *StreamChannel) markClosed(cause error) {
	c.mu.Lock()
	if c.state == StreamClosed {
		c.mu.Unlock()
		return
	}
	c.state = StreamClosed
	conn := c.conn
	cancel := c.cancel
	onClose := c.onClose
	c.conn = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		conn.Close()
	}
	if onClose != nil {
		onClose(cause)
	}
}
