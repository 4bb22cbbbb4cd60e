// internal/server/server.go
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/unoserve/unoserve/internal/models"
	"github.com/unoserve/unoserve/internal/room"
	"github.com/unoserve/unoserve/internal/session"
)

// AccountStore is the persistence collaborator: account creation, credential
// checks and win/loss bookkeeping. The database package provides the real
// implementation; a nil store means persistence is unavailable and the
// affected requests fail with ERROR without crashing the server.
type AccountStore interface {
	CreateAccount(ctx context.Context, username, password string) error
	Authenticate(ctx context.Context, username, password string) (*models.User, error)
	GetAccount(ctx context.Context, username string) (*models.User, error)
	RecordResult(ctx context.Context, username string, won bool) error
}

// Server accepts TCP connections and runs one handler goroutine per client.
type Server struct {
	Logger   *logrus.Logger
	Sessions *session.Registry
	Rooms    *room.Store
	Accounts AccountStore
}

// New wires a server. accounts and historian may be nil.
func New(logger *logrus.Logger, accounts AccountStore, historian room.ActionLogger) *Server {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	var recorder room.ResultRecorder
	if accounts != nil {
		recorder = accounts
	}
	return &Server{
		Logger:   logger,
		Sessions: session.NewRegistry(logger),
		Rooms:    room.NewStore(logger, recorder, historian),
		Accounts: accounts,
	}
}

// Listen binds a TCP listener on host, starting at port and walking upward
// until a free one is found or maxAttempts ports were tried.
func Listen(host string, port, maxAttempts int, logger *logrus.Logger) (net.Listener, error) {
	var lastErr error
	for i := 0; i < maxAttempts; i++ {
		addr := net.JoinHostPort(host, strconv.Itoa(port+i))
		l, err := net.Listen("tcp", addr)
		if err == nil {
			return l, nil
		}
		lastErr = err
		if logger != nil {
			logger.WithError(err).WithField("addr", addr).Warn("bind failed, trying next port")
		}
	}
	return nil, fmt.Errorf("no free port in %d attempts from %d: %w", maxAttempts, port, lastErr)
}

// Serve accepts connections until the listener is closed.
func (s *Server) Serve(l net.Listener) error {
	s.Logger.WithField("addr", l.Addr().String()).Info("listening")
	for {
		nc, err := l.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		s.Logger.WithField("remote", nc.RemoteAddr().String()).Info("connection established")
		go s.handleConn(nc)
	}
}
