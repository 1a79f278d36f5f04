package teamchat

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// IdentityFunc resolves the authenticated sender identity for an incoming
// connection. It is supplied by the authentication collaborator in front of
// this core; an error rejects the handshake before any session exists.
type IdentityFunc func(r *http.Request) (Identity, error)

// Server accepts transport connections, allocates one Session per connection,
// and wires each session to the room registry and message store.
//
// Connection admission is declarative: a configured origin allow-list is
// checked once in the accept path instead of per call site.
//
// Thread safety: safe for concurrent use.
type Server struct {
	store    MessageStore
	registry *RoomRegistry
	logger   Logger

	identityFn     IdentityFunc
	allowedOrigins map[string]struct{}
	historyLimit   int
	idleTimeout    time.Duration
	pingInterval   time.Duration
	writeTimeout   time.Duration

	sessionsMu sync.Mutex
	sessions   map[*Session]struct{}
	closed     bool
}

// NewServer creates a messaging server with the provided options.
//
// Required options:
//   - WithStore: message persistence
//   - WithServerLogger: logger instance
//
// Optional options:
//   - WithAllowedOrigins: handshake origin allow-list (default: same host only)
//   - WithIdentityFunc: authenticated identity resolution
//   - WithHistoryLimit: replay page size (default: 50)
//   - WithIdleTimeout: idle session cutoff (default: 60s)
//
// Example:
//
//	server, err := teamchat.NewServer(
//	    teamchat.WithStore(store),
//	    teamchat.WithServerLogger(logger),
//	    teamchat.WithAllowedOrigins("https://app.example.com"),
//	)
func NewServer(opts ...ServerOption) (*Server, error) {
	s := &Server{
		historyLimit: DefaultHistoryLimit,
		idleTimeout:  DefaultIdleTimeout,
		writeTimeout: defaultWriteTimeout,
		sessions:     make(map[*Session]struct{}),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, NewErrorWithCause(ErrCodeConfiguration, "failed to apply server option", err)
		}
	}

	// Validate required dependencies
	if s.store == nil {
		return nil, NewError(ErrCodeConfiguration, "MessageStore is required (use WithStore)")
	}
	if s.logger == nil {
		return nil, NewError(ErrCodeConfiguration, "Logger is required (use WithServerLogger)")
	}

	// Ping often enough that a healthy client always answers within the idle
	// window.
	s.pingInterval = s.idleTimeout / 2
	s.registry = NewRoomRegistry(s.logger)

	return s, nil
}

// Registry exposes the server's room registry.
func (s *Server) Registry() *RoomRegistry {
	return s.registry
}

// checkOrigin implements the allow-list admission policy. Only installed when
// origins are configured; otherwise the gorilla default applies, which admits
// same-host requests only.
func (s *Server) checkOrigin(r *http.Request) bool {
	if _, ok := s.allowedOrigins["*"]; ok {
		return true
	}
	_, ok := s.allowedOrigins[r.Header.Get("Origin")]
	return ok
}

// ServeWS upgrades an incoming request to a WebSocket connection and serves
// it as a messaging session. This method hijacks connections; to gracefully
// close them, use Close.
func (s *Server) ServeWS(w http.ResponseWriter, r *http.Request) {
	if !websocket.IsWebSocketUpgrade(r) {
		http.Error(w, "not a websocket upgrade", http.StatusBadRequest)
		return
	}

	s.sessionsMu.Lock()
	closed := s.closed
	s.sessionsMu.Unlock()
	if closed {
		http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
		return
	}

	var identity Identity
	if s.identityFn != nil {
		resolved, err := s.identityFn(r)
		if err != nil {
			s.logger.Warnf("connection rejected: %v", err)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		identity = resolved
	}

	upgrader := websocket.Upgrader{
		EnableCompression: true,
	}
	if len(s.allowedOrigins) > 0 {
		upgrader.CheckOrigin = s.checkOrigin
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied to the client.
		s.logger.Infof("websocket handshake failed: %v", err)
		return
	}

	session := newSession(s, identity)

	s.sessionsMu.Lock()
	if s.closed {
		// Close ran between the admission check and registration; this
		// session must not outlive it.
		s.sessionsMu.Unlock()
		_ = conn.Close()
		return
	}
	s.sessions[session] = struct{}{}
	s.sessionsMu.Unlock()

	s.logger.Debugf("session %s connected", session.SessionID())
	session.serve(conn)
}

func (s *Server) removeSession(session *Session) {
	s.sessionsMu.Lock()
	delete(s.sessions, session)
	s.sessionsMu.Unlock()
	s.logger.Debugf("session %s disconnected", session.SessionID())
}

// SessionCount returns the number of live sessions.
func (s *Server) SessionCount() int {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	return len(s.sessions)
}

// Close closes every open session and releases its room memberships, and
// stops admitting new connections. Call this before closing the message store
// so no session is left dangling mid-delivery.
func (s *Server) Close() error {
	s.sessionsMu.Lock()
	s.closed = true
	sessions := make([]*Session, 0, len(s.sessions))
	for session := range s.sessions {
		sessions = append(sessions, session)
	}
	s.sessionsMu.Unlock()

	for _, session := range sessions {
		session.Close("server shutting down")
	}
	return nil
}
