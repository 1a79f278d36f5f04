package teamchat

import (
	"fmt"
	"time"
)

// Defaults for server tunables.
const (
	// DefaultHistoryLimit caps the history replay page delivered on join.
	// This bounds replay cost, not room size; older messages stay in the
	// store.
	DefaultHistoryLimit = 50

	// DefaultIdleTimeout is the window without inbound traffic after which a
	// session is forcibly closed. The only time-based transition on the
	// server.
	DefaultIdleTimeout = 60 * time.Second

	defaultWriteTimeout = 5 * time.Second
)

// ServerOption is a function that configures a Server.
// Used with the Options Pattern for flexible service construction.
//
// Example:
//
//	server, err := teamchat.NewServer(
//	    teamchat.WithStore(store),
//	    teamchat.WithServerLogger(logger),
//	    teamchat.WithHistoryLimit(100), // optional
//	)
type ServerOption func(*Server) error

// WithStore sets the message store used for append and history replay.
//
// This is a required option for NewServer.
func WithStore(store MessageStore) ServerOption {
	return func(s *Server) error {
		if store == nil {
			return fmt.Errorf("store cannot be nil")
		}
		s.store = store
		return nil
	}
}

// WithServerLogger sets the logger instance for the server.
// Logger is required and must not be nil.
//
// This is a required option for NewServer.
func WithServerLogger(logger Logger) ServerOption {
	return func(s *Server) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		s.logger = logger
		return nil
	}
}

// WithAllowedOrigins sets the handshake origin allow-list. "*" admits any
// origin. Without this option only same-host requests are admitted.
func WithAllowedOrigins(origins ...string) ServerOption {
	return func(s *Server) error {
		if len(origins) == 0 {
			return fmt.Errorf("at least one origin is required")
		}
		s.allowedOrigins = make(map[string]struct{}, len(origins))
		for _, origin := range origins {
			if origin == "" {
				return fmt.Errorf("origin cannot be empty")
			}
			s.allowedOrigins[origin] = struct{}{}
		}
		return nil
	}
}

// WithIdentityFunc sets the authenticated identity resolver invoked during
// the handshake. When set, the resolved identity overrides the sender fields
// of every publish from that connection.
func WithIdentityFunc(fn IdentityFunc) ServerOption {
	return func(s *Server) error {
		if fn == nil {
			return fmt.Errorf("identity func cannot be nil")
		}
		s.identityFn = fn
		return nil
	}
}

// WithHistoryLimit sets the number of most recent messages replayed to a
// joining session. Must be > 0.
func WithHistoryLimit(limit int) ServerOption {
	return func(s *Server) error {
		if limit <= 0 {
			return fmt.Errorf("history limit must be > 0, got %d", limit)
		}
		s.historyLimit = limit
		return nil
	}
}

// WithIdleTimeout sets the idle session cutoff. Sessions with no inbound
// traffic or pong within this window are forcibly closed. Must be > 0.
func WithIdleTimeout(timeout time.Duration) ServerOption {
	return func(s *Server) error {
		if timeout <= 0 {
			return fmt.Errorf("idle timeout must be > 0, got %v", timeout)
		}
		s.idleTimeout = timeout
		return nil
	}
}
