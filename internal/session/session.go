// internal/session/session.go
package session

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/unoserve/unoserve/internal/protocol"
)

// ErrAlreadyLoggedIn is returned when a username already has a live session.
// At most one session per username exists at any time.
var ErrAlreadyLoggedIn = errors.New("user is already logged in")

// Conn is the sending half of a client connection. A Session holds one for
// replies and broadcasts only; the connection's lifecycle belongs to the
// server's per-connection handler.
type Conn interface {
	Send(msg protocol.Message) error
	Close() error
}

// Session is an authenticated connection. Created on login, destroyed on
// logout or disconnect.
type Session struct {
	ID       uuid.UUID
	Username string
	Conn     Conn
}

// Registry tracks live sessions. All operations are atomic under a single
// registry-wide lock; the expected scale keeps hold times trivial.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	logger   *logrus.Logger
}

// NewRegistry returns an empty registry. A nil logger falls back to the
// logrus standard logger.
func NewRegistry(logger *logrus.Logger) *Registry {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Registry{
		sessions: make(map[string]*Session),
		logger:   logger,
	}
}

// Register creates and stores a session for username. Fails with
// ErrAlreadyLoggedIn when the username already has one.
func (r *Registry) Register(username string, conn Conn) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sessions[username]; exists {
		return nil, ErrAlreadyLoggedIn
	}
	s := &Session{ID: uuid.New(), Username: username, Conn: conn}
	r.sessions[username] = s
	r.logger.WithField("user", username).Info("session registered")
	return s, nil
}

// FindByName returns the session for username, or nil.
func (r *Registry) FindByName(username string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[username]
}

// Remove deletes s from the registry. Removing an already-removed or
// superseded session is a no-op.
func (r *Registry) Remove(s *Session) {
	if s == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.sessions[s.Username]; ok && cur.ID == s.ID {
		delete(r.sessions, s.Username)
		r.logger.WithField("user", s.Username).Info("session removed")
	}
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
