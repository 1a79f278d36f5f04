// Package client provides the client-side counterpart of the messaging
// server: a connector that maintains one persistent WebSocket connection,
// reconnects with bounded exponential backoff, and transparently rejoins its
// active room after a reconnect.
package client

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"

	"github.com/coregx/teamchat"
	"github.com/coregx/teamchat/model"
	"github.com/coregx/teamchat/retry"
	"github.com/coregx/teamchat/wire"
)

// State is the connector's connection state.
type State int32

// Connector lifecycle. Errored is terminal and only reached when a bounded
// backoff strategy is exhausted; the default strategy retries forever.
const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateErrored
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateErrored:
		return "error"
	default:
		return "unknown"
	}
}

const streamBufferSize = 256

// ErrNotConnected is returned by Publish and JoinRoom before a connection is
// established. Publishing never queues silently; the caller decides how to
// surface "not connected".
var ErrNotConnected = errors.New("not connected")

// Connector maintains exactly one WebSocket connection to a messaging
// server. On an unexpected disconnect it reconnects with exponential backoff
// and re-issues the join for its active room, so the consumer of the message
// stream only observes a brief delivery gap followed by a fresh history
// replay. An explicit Close never triggers reconnection.
//
// Thread safety: safe for concurrent use.
type Connector struct {
	url        string
	senderID   string
	senderName string
	backoff    retry.Strategy
	logger     teamchat.Logger
	dialer     *websocket.Dialer
	onError    func(wire.ErrorPayload)

	state atomic.Int32

	mu     sync.Mutex
	conn   *websocket.Conn
	room   string             // last-known room, rejoined after reconnect
	stream chan model.Message // current message stream

	writeMu sync.Mutex

	closeOnce sync.Once
	done      chan struct{}
}

// Option is a function that configures a Connector.
type Option func(*Connector) error

// WithSender sets the sender identity attached to every publish. The values
// come from the authentication layer of the embedding application.
func WithSender(senderID, senderName string) Option {
	return func(c *Connector) error {
		if senderID == "" || senderName == "" {
			return errors.New("sender ID and name cannot be empty")
		}
		c.senderID = senderID
		c.senderName = senderName
		return nil
	}
}

// WithLogger sets the logger instance for the connector.
func WithLogger(logger teamchat.Logger) Option {
	return func(c *Connector) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		c.logger = logger
		return nil
	}
}

// WithBackoff sets a custom reconnection backoff strategy.
// Default: retry.DefaultStrategy().
func WithBackoff(strategy retry.Strategy) Option {
	return func(c *Connector) error {
		c.backoff = strategy
		return nil
	}
}

// WithErrorHandler sets a callback invoked for every error event the server
// sends to this connection, e.g. a rejected publish. Default: log only.
func WithErrorHandler(fn func(wire.ErrorPayload)) Option {
	return func(c *Connector) error {
		if fn == nil {
			return errors.New("error handler cannot be nil")
		}
		c.onError = fn
		return nil
	}
}

// NewConnector creates a connector for the given WebSocket URL
// (e.g. "ws://localhost:8080/ws").
func NewConnector(url string, opts ...Option) (*Connector, error) {
	if url == "" {
		return nil, errors.New("url cannot be empty")
	}

	c := &Connector{
		url:     url,
		backoff: retry.DefaultStrategy(),
		logger:  &teamchat.NoopLogger{},
		dialer:  &websocket.Dialer{HandshakeTimeout: 5 * time.Second},
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, errors.Wrap(err, "failed to apply connector option")
		}
	}
	return c, nil
}

// State returns the current connection state.
func (c *Connector) State() State {
	return State(c.state.Load())
}

// Connect establishes the initial connection. It returns an error if the
// dial fails; automatic reconnection only applies to connections that drop
// after having been established.
func (c *Connector) Connect(ctx context.Context) error {
	c.state.Store(int32(StateConnecting))

	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		c.state.Store(int32(StateDisconnected))
		return errors.Wrap(err, "failed to connect")
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	c.state.Store(int32(StateConnected))
	c.logger.Debugf("connected to %s", c.url)

	go c.readLoop(conn)
	return nil
}

// JoinRoom joins a team room and returns the message stream for it: first
// the history replay, then live messages. A session holds one room at a
// time, so joining a new room replaces the previous stream (which is
// closed). After an automatic reconnect the same channel carries the fresh
// history replay; the consumer does not need to know a reconnect happened.
func (c *Connector) JoinRoom(roomID string) (<-chan model.Message, error) {
	if roomID == "" {
		return nil, errors.New("room ID cannot be empty")
	}
	if c.State() != StateConnected {
		return nil, ErrNotConnected
	}

	c.mu.Lock()
	if c.stream != nil && c.room != roomID {
		close(c.stream)
		c.stream = nil
	}
	if c.stream == nil {
		c.stream = make(chan model.Message, streamBufferSize)
	}
	c.room = roomID
	stream := c.stream
	c.mu.Unlock()

	if err := c.sendJoin(roomID); err != nil {
		return nil, err
	}
	return stream, nil
}

// Publish sends a message to a room. It fails fast when no connection is
// established instead of queueing; delivery is at-most-once from the
// client's perspective. Server-side rejections (validation, not joined,
// storage) arrive asynchronously via the error handler.
func (c *Connector) Publish(roomID, body string) error {
	if c.State() != StateConnected {
		return ErrNotConnected
	}

	payload := wire.PublishPayload{
		RoomID:     roomID,
		SenderID:   c.senderID,
		SenderName: c.senderName,
		Body:       body,
	}
	if err := payload.Validate(); err != nil {
		return errors.Wrap(err, "invalid publish")
	}
	return c.send(wire.MessageTypePublish, payload)
}

// Close disconnects permanently. No reconnection is attempted afterwards and
// the message stream is closed.
func (c *Connector) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)

		// State and conn transition under the same lock that a completing
		// reconnect dial installs them under, so a dial racing this close
		// either observes done and discards its connection, or installs it
		// here where we tear it down.
		c.mu.Lock()
		c.state.Store(int32(StateDisconnected))
		conn := c.conn
		c.conn = nil
		if c.stream != nil {
			close(c.stream)
			c.stream = nil
		}
		c.mu.Unlock()

		if conn != nil {
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "closing"),
				time.Now().Add(time.Second))
			_ = conn.Close()
		}
	})
	return nil
}

func (c *Connector) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *Connector) sendJoin(roomID string) error {
	payload := wire.JoinPayload{RoomID: roomID}
	if err := payload.Validate(); err != nil {
		return errors.Wrap(err, "invalid join")
	}
	return c.send(wire.MessageTypeJoin, payload)
}

func (c *Connector) send(t wire.MessageType, payload interface{}) error {
	env, err := wire.Encode(t, payload)
	if err != nil {
		return errors.Wrap(err, "error encoding frame")
	}
	data, err := jsoniter.Marshal(env)
	if err != nil {
		return errors.Wrap(err, "error marshaling frame")
	}

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return errors.Wrap(err, "websocket write error")
	}
	return nil
}

func (c *Connector) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if c.closed() {
				return
			}
			c.logger.Warnf("connection lost: %v", err)
			_ = conn.Close()
			go c.reconnectLoop()
			return
		}

		msg, err := wire.Decode(data)
		if err != nil {
			c.logger.Infof("malformed frame received: %v", err)
			continue
		}
		c.handleFrame(msg)
	}
}

func (c *Connector) handleFrame(msg wire.Message) {
	switch msg.Type {
	case wire.MessageTypeHistory:
		var payload wire.HistoryPayload
		if err := wire.DecodePayload(msg, &payload); err != nil {
			c.logger.Infof("malformed history payload: %v", err)
			return
		}
		for _, m := range payload.Messages {
			c.deliver(m)
		}
	case wire.MessageTypeMessage:
		var m model.Message
		if err := wire.DecodePayload(msg, &m); err != nil {
			c.logger.Infof("malformed message payload: %v", err)
			return
		}
		c.deliver(m)
	case wire.MessageTypeError:
		var payload wire.ErrorPayload
		if err := wire.DecodePayload(msg, &payload); err != nil {
			c.logger.Infof("malformed error payload: %v", err)
			return
		}
		c.logger.Warnf("server error: %s: %s", payload.Kind, payload.Detail)
		if c.onError != nil {
			c.onError(payload)
		}
	default:
		c.logger.Infof("unknown frame type %q received", msg.Type)
	}
}

// deliver hands one message to the current stream. The send happens under
// c.mu because JoinRoom and Close close the stream under that lock from other
// goroutines; sending after a snapshot would race the close. The send is
// non-blocking, so holding the lock across it is safe.
func (c *Connector) deliver(m model.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stream == nil {
		return
	}
	select {
	case c.stream <- m:
	default:
		c.logger.Warnf("message stream full, dropping message %d", m.ID)
	}
}

// reconnectLoop dials with exponential backoff until the connection comes
// back or the connector is closed, then rejoins the last-known room so the
// stream resumes with a fresh history replay.
func (c *Connector) reconnectLoop() {
	c.mu.Lock()
	if c.closed() {
		c.mu.Unlock()
		return
	}
	c.state.Store(int32(StateConnecting))
	c.mu.Unlock()

	for attempt := 0; ; attempt++ {
		if c.closed() {
			return
		}
		if c.backoff.Exhausted(attempt) {
			c.logger.Errorf("giving up reconnecting to %s after %d attempts", c.url, attempt)
			c.state.Store(int32(StateErrored))
			return
		}

		delay := c.backoff.Delay(attempt)
		select {
		case <-c.done:
			return
		case <-time.After(delay):
		}

		ctx, cancel := context.WithTimeout(context.Background(), c.dialer.HandshakeTimeout)
		conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
		cancel()
		if err != nil {
			c.logger.Debugf("reconnect attempt %d failed: %v", attempt+1, err)
			continue
		}

		c.mu.Lock()
		if c.closed() {
			// Closed while the dial was in flight. The connection must not
			// be resurrected; discard it.
			c.mu.Unlock()
			_ = conn.Close()
			return
		}
		c.conn = conn
		room := c.room
		c.state.Store(int32(StateConnected))
		c.mu.Unlock()
		c.logger.Infof("reconnected to %s", c.url)

		go c.readLoop(conn)

		if room != "" {
			if err := c.sendJoin(room); err != nil {
				c.logger.Warnf("rejoin of room %s failed: %v", room, err)
			}
		}
		return
	}
}
