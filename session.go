package teamchat

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"

	"github.com/coregx/teamchat/model"
	"github.com/coregx/teamchat/wire"
)

// SessionState is the liveness state of a connection session.
type SessionState int32

// Session lifecycle: Connecting is the transient pre-handshake state, Open is
// the only state accepting join/publish, Closed is terminal.
const (
	SessionConnecting SessionState = iota
	SessionOpen
	SessionClosed
)

// String returns the state name.
func (s SessionState) String() string {
	switch s {
	case SessionConnecting:
		return "connecting"
	case SessionOpen:
		return "open"
	case SessionClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Identity is the authenticated sender identity attached to a session by the
// authentication collaborator in front of this core. A zero Identity means the
// session trusts the sender fields of each publish payload, which is only
// appropriate behind a boundary that already validated them.
type Identity struct {
	UserID string
	Name   string
}

const sessionSendBufferSize = 100

// Session wraps one server-side transport connection. It owns the read and
// write loops for that connection and routes join/publish requests to the
// room registry and message store.
//
// All exported methods are safe to call concurrently with each other and with
// an in-flight close: an operation racing a close either completes with its
// result discarded or observes the closed state and aborts. A closed session
// never resurrects its room membership.
type Session struct {
	id       string
	identity Identity
	server   *Server

	state atomic.Int32

	conn              *websocket.Conn
	readLoopDone      chan struct{}
	writeLoopDone     chan struct{}
	outgoing          chan *websocket.PreparedMessage
	close             chan struct{}
	beginClosingOnce  sync.Once
	finishClosingOnce sync.Once
}

func newSession(server *Server, identity Identity) *Session {
	s := &Session{
		id:       uuid.NewString(),
		identity: identity,
		server:   server,
	}
	s.state.Store(int32(SessionConnecting))
	return s
}

// SessionID returns the opaque connection identifier.
func (s *Session) SessionID() string {
	return s.id
}

// State returns the session's current liveness state.
func (s *Session) State() SessionState {
	return SessionState(s.state.Load())
}

// serve takes ownership of the given connection and begins reading and
// writing to it. The successful handshake moves the session to Open.
func (s *Session) serve(conn *websocket.Conn) {
	s.conn = conn
	s.readLoopDone = make(chan struct{})
	s.writeLoopDone = make(chan struct{})
	s.outgoing = make(chan *websocket.PreparedMessage, sessionSendBufferSize)
	s.close = make(chan struct{})
	if !s.state.CompareAndSwap(int32(SessionConnecting), int32(SessionOpen)) {
		// Closed before the handshake completed; the loops never start.
		_ = conn.Close()
		return
	}
	go s.readLoop()
	go s.writeLoop()
}

// Close tears the session down: the transport is closed, both loops drained,
// and every room membership released. Safe to call multiple times and
// concurrently with in-flight requests.
func (s *Session) Close(reason string) {
	if reason != "" && s.State() != SessionClosed {
		s.server.logger.Debugf("closing session %s: %s", s.id, reason)
	}
	if s.state.CompareAndSwap(int32(SessionConnecting), int32(SessionClosed)) {
		// Never served; there are no loops to drain and no membership to
		// release. serve observes the failed swap and closes the transport.
		s.server.removeSession(s)
		return
	}
	s.beginClosing()
	s.finishClosing()
}

func (s *Session) beginClosing() {
	s.beginClosingOnce.Do(func() {
		s.state.Store(int32(SessionClosed))
		close(s.close)
	})
}

func (s *Session) finishClosing() {
	<-s.readLoopDone
	<-s.writeLoopDone
	s.finishClosingOnce.Do(func() {
		s.server.registry.LeaveAll(s)
		s.server.removeSession(s)
	})
}

func (s *Session) readLoop() {
	defer close(s.readLoopDone)
	defer s.beginClosing()

	idle := s.server.idleTimeout
	_ = s.conn.SetReadDeadline(time.Now().Add(idle))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(idle))
	})

	for {
		_, p, err := s.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure, websocket.CloseGoingAway) {
				select {
				case <-s.close:
				default:
					s.server.logger.Errorf("session %s: %v", s.id, errors.Wrap(err, "websocket read error"))
				}
			}
			return
		}
		_ = s.conn.SetReadDeadline(time.Now().Add(idle))

		s.handleFrame(p)
	}
}

func (s *Session) handleFrame(data []byte) {
	msg, err := wire.Decode(data)
	if err != nil {
		s.server.logger.Infof("session %s: malformed frame received: %v", s.id, err)
		s.sendError(NewError(ErrCodeValidation, "malformed frame"))
		return
	}

	switch msg.Type {
	case wire.MessageTypeJoin:
		var payload wire.JoinPayload
		if err := wire.DecodePayload(msg, &payload); err != nil {
			s.sendError(NewErrorWithCause(ErrCodeValidation, "malformed join payload", err))
			return
		}
		if err := s.handleJoin(payload); err != nil {
			s.sendError(err)
		}
	case wire.MessageTypePublish:
		var payload wire.PublishPayload
		if err := wire.DecodePayload(msg, &payload); err != nil {
			s.sendError(NewErrorWithCause(ErrCodeValidation, "malformed publish payload", err))
			return
		}
		if err := s.handlePublish(payload); err != nil {
			s.sendError(err)
		}
	default:
		s.server.logger.Infof("session %s: unknown frame type %q", s.id, msg.Type)
	}
}

// handleJoin joins the session to a room and replays the room history to this
// session only. A failed history fetch fails the join; the client retries.
func (s *Session) handleJoin(payload wire.JoinPayload) error {
	if err := payload.Validate(); err != nil {
		return NewErrorWithCause(ErrCodeValidation, "invalid join payload", err)
	}
	if s.State() != SessionOpen {
		s.server.logger.Warnf("session %s: join for room %s on %s session dropped", s.id, payload.RoomID, s.State())
		return nil
	}

	ctx := context.Background()
	history, err := s.server.registry.JoinWithReplay(ctx, payload.RoomID, s, func(ctx context.Context) ([]model.Message, error) {
		return s.server.store.History(ctx, payload.RoomID, s.server.historyLimit)
	})
	if err != nil {
		s.server.logger.Errorf("session %s: history replay for room %s failed: %v", s.id, payload.RoomID, err)
		return NewErrorWithCause(ErrCodeStorage, "could not load room history", err)
	}

	env, err := wire.Encode(wire.MessageTypeHistory, wire.HistoryPayload{
		RoomID:   payload.RoomID,
		Messages: history,
	})
	if err != nil {
		return NewErrorWithCause(ErrCodeStorage, "could not encode room history", err)
	}
	return s.send(env)
}

// handlePublish validates the payload, appends it to the store, and lets the
// registry broadcast the persisted message to the session's current room.
func (s *Session) handlePublish(payload wire.PublishPayload) error {
	// The auth collaborator's identity, when present, overrides whatever the
	// client claims about itself.
	if s.identity.UserID != "" {
		payload.SenderID = s.identity.UserID
		payload.SenderName = s.identity.Name
	}

	if err := payload.Validate(); err != nil {
		return NewErrorWithCause(ErrCodeValidation, "invalid publish payload", err)
	}
	if s.State() != SessionOpen {
		s.server.logger.Warnf("session %s: publish on %s session dropped", s.id, s.State())
		return nil
	}

	roomID, joined := s.server.registry.Room(s)
	if !joined {
		return ErrNotJoined
	}
	if roomID != payload.RoomID {
		return NewError(ErrCodeNotJoined, "session has not joined room "+payload.RoomID)
	}

	ctx := context.Background()
	msg, err := s.server.registry.Publish(ctx, roomID, func(ctx context.Context) (model.Message, error) {
		return s.server.store.Append(ctx, roomID, payload.SenderID, payload.SenderName, payload.Body)
	})
	if err != nil {
		if IsValidation(err) {
			return err
		}
		return NewErrorWithCause(ErrCodeStorage, "could not persist message", err)
	}

	s.server.logger.Debugf("session %s published message %d to room %s", s.id, msg.ID, roomID)
	return nil
}

// Deliver enqueues one persisted message for this session's client. Invoked
// by the registry on broadcast. Never blocks: a session whose send buffer is
// full drops the message and relies on history replay after reconnect.
func (s *Session) Deliver(msg model.Message) {
	if s.State() != SessionOpen {
		s.server.logger.Debugf("session %s: delivery of message %d dropped: %v", s.id, msg.ID, ErrSessionClosed)
		return
	}

	env, err := wire.Encode(wire.MessageTypeMessage, msg)
	if err != nil {
		s.server.logger.Errorf("session %s: %v", s.id, errors.Wrap(err, "error encoding message event"))
		return
	}
	if err := s.send(env); err != nil {
		s.server.logger.Warnf("session %s: delivery of message %d dropped: %v", s.id, msg.ID, err)
	}
}

// sendError reports a per-request failure to this session's client only.
// Errors on a session whose transport is gone are logged and dropped; there
// is no client left to notify.
func (s *Session) sendError(err error) {
	payload := wire.ErrorPayload{Kind: ErrCodeValidation, Detail: err.Error()}
	var tcErr *Error
	if errors.As(err, &tcErr) {
		payload.Kind = tcErr.Code
		payload.Detail = tcErr.Message
	}

	env, encErr := wire.Encode(wire.MessageTypeError, payload)
	if encErr != nil {
		s.server.logger.Errorf("session %s: %v", s.id, errors.Wrap(encErr, "error encoding error event"))
		return
	}
	if sendErr := s.send(env); sendErr != nil {
		s.server.logger.Debugf("session %s: error event dropped: %v", s.id, sendErr)
	}
}

func (s *Session) send(env wire.Message) error {
	data, err := jsoniter.Marshal(env)
	if err != nil {
		return errors.Wrap(err, "error marshaling frame")
	}
	prepared, err := websocket.NewPreparedMessage(websocket.TextMessage, data)
	if err != nil {
		return errors.Wrap(err, "error preparing frame")
	}

	if s.State() != SessionOpen {
		return ErrSessionClosed
	}
	select {
	case s.outgoing <- prepared:
		return nil
	case <-s.close:
		return ErrSessionClosed
	default:
		return errors.New("send buffer full")
	}
}

func (s *Session) writeLoop() {
	defer s.finishClosing()
	defer close(s.writeLoopDone)

	defer s.conn.Close()

	pingTicker := time.NewTicker(s.server.pingInterval)
	defer pingTicker.Stop()

	for {
		var msg *websocket.PreparedMessage
		select {
		case outgoing, ok := <-s.outgoing:
			if !ok {
				return
			}
			msg = outgoing
		case <-pingTicker.C:
			msg = pingPreparedMessage
		case <-s.close:
			return
		}

		_ = s.conn.SetWriteDeadline(time.Now().Add(s.server.writeTimeout))

		if err := s.conn.WritePreparedMessage(msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure, websocket.CloseGoingAway) && err != websocket.ErrCloseSent {
				s.server.logger.Errorf("session %s: %v", s.id, errors.Wrap(err, "websocket write error"))
			}
			return
		}
	}
}

var pingPreparedMessage *websocket.PreparedMessage

func init() {
	prepared, err := websocket.NewPreparedMessage(websocket.PingMessage, nil)
	if err != nil {
		panic(errors.Wrap(err, "error preparing ping message"))
	}
	pingPreparedMessage = prepared
}
