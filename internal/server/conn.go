// internal/server/conn.go
package server

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/unoserve/unoserve/internal/auth"
	"github.com/unoserve/unoserve/internal/protocol"
	"github.com/unoserve/unoserve/internal/session"
)

// requestTimeout bounds a single persistence call made on behalf of a
// client request.
const requestTimeout = 5 * time.Second

// clientConn is the per-connection state. The read loop is the only
// goroutine touching sess; Send is called concurrently by room broadcasts
// and is serialized by writeMu so frames never interleave.
type clientConn struct {
	srv *Server
	nc  net.Conn
	log *logrus.Entry

	writeMu sync.Mutex
	once    sync.Once

	sess *session.Session
}

// Send encodes one frame to the peer. Implements session.Conn.
func (c *clientConn) Send(msg protocol.Message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return protocol.Encode(c.nc, msg)
}

// Close shuts the socket, which unblocks the read loop and routes the
// connection through teardown. Implements session.Conn.
func (c *clientConn) Close() error {
	return c.nc.Close()
}

// handleConn runs the per-connection loop: decode a frame, dispatch it,
// send exactly one direct reply. Any framing or I/O failure tears the
// connection down; teardown runs exactly once on every exit path.
func (s *Server) handleConn(nc net.Conn) {
	c := &clientConn{
		srv: s,
		nc:  nc,
		log: s.Logger.WithField("remote", nc.RemoteAddr().String()),
	}
	defer c.teardown()

	for {
		msg, err := protocol.Decode(nc)
		if err != nil {
			c.log.WithError(err).Info("connection closing")
			return
		}
		if err := c.dispatch(msg); err != nil {
			c.log.WithError(err).Warn("reply send failed")
			return
		}
	}
}

// teardown is the single cleanup routine: the session leaves the registry
// and any room it occupies runs its disconnect path (owner departure closes
// the room for everyone).
func (c *clientConn) teardown() {
	c.once.Do(func() {
		if c.sess != nil {
			c.srv.Rooms.HandleDisconnect(c.sess)
			c.srv.Sessions.Remove(c.sess)
			c.log.WithField("user", c.sess.Username).Info("session cleaned up")
		}
		c.nc.Close()
		c.log.Info("connection closed")
	})
}

// dispatch routes one decoded request. The returned error is a send failure
// only; request-level failures become ERROR replies and keep the
// connection alive.
func (c *clientConn) dispatch(msg protocol.Message) error {
	switch m := msg.(type) {
	case *protocol.RegisterRequest:
		return c.handleRegister(m)
	case *protocol.LoginRequest:
		return c.handleLogin(m)
	case *protocol.WhoamiRequest:
		return c.handleWhoami()
	case *protocol.LogoutRequest:
		return c.handleLogout()
	case *protocol.RoomCreationRequest:
		return c.handleRoomCreation(m)
	case *protocol.RoomConnectionRequest:
		return c.handleRoomConnection(m)
	case *protocol.CardDropRequest:
		return c.handleCardDrop(m)
	case *protocol.DrawCardRequest:
		return c.handleDrawCard()
	default:
		// Well-formed but not a request (a client echoing OK or an
		// update). Reject without dropping the connection.
		return c.sendError("unexpected message type")
	}
}

func (c *clientConn) sendOK(ok protocol.OK) error {
	return c.Send(&ok)
}

func (c *clientConn) sendError(reason string) error {
	return c.Send(&protocol.Error{Message: reason})
}

func (c *clientConn) handleRegister(m *protocol.RegisterRequest) error {
	if c.srv.Accounts == nil {
		c.log.Warn("register rejected, persistence unavailable")
		return c.sendError("persistence unavailable")
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	if err := c.srv.Accounts.CreateAccount(ctx, m.Username, m.Password); err != nil {
		c.log.WithError(err).WithField("user", m.Username).Warn("register failed")
		return c.sendError(err.Error())
	}
	c.log.WithField("user", m.Username).Info("user registered")
	return c.sendOK(protocol.OK{})
}

func (c *clientConn) handleLogin(m *protocol.LoginRequest) error {
	if c.sess != nil {
		return c.sendError("already logged in")
	}
	if c.srv.Accounts == nil {
		c.log.Warn("login rejected, persistence unavailable")
		return c.sendError("persistence unavailable")
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	user, err := c.srv.Accounts.Authenticate(ctx, m.Username, m.Password)
	if err != nil {
		c.log.WithError(err).WithField("user", m.Username).Warn("login failed")
		return c.sendError("invalid credentials")
	}

	sess, err := c.srv.Sessions.Register(user.Username, c)
	if err != nil {
		c.log.WithField("user", m.Username).Warn("login rejected, session exists")
		return c.sendError(err.Error())
	}
	c.sess = sess

	token, err := auth.CreateToken(user.Username)
	if err != nil {
		// The session is still valid; the token is an optional extra.
		c.log.WithError(err).Warn("token creation failed")
	}
	c.log.WithField("user", user.Username).Info("user logged in")
	return c.sendOK(protocol.OK{Token: token})
}

func (c *clientConn) handleWhoami() error {
	if c.sess == nil {
		return c.sendError("not logged in")
	}
	if c.srv.Accounts == nil {
		return c.sendError("persistence unavailable")
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	user, err := c.srv.Accounts.GetAccount(ctx, c.sess.Username)
	if err != nil {
		c.log.WithError(err).Warn("whoami lookup failed")
		return c.sendError("account lookup failed")
	}
	return c.sendOK(protocol.OK{
		Username: user.Username,
		Wins:     &user.Wins,
		Losses:   &user.Losses,
	})
}

func (c *clientConn) handleLogout() error {
	if c.sess == nil {
		return c.sendError("not logged in")
	}
	// Leaving the registry also vacates any room, exactly as a disconnect
	// would; otherwise an owned room would outlive its owner's session.
	c.srv.Rooms.HandleDisconnect(c.sess)
	c.srv.Sessions.Remove(c.sess)
	c.log.WithField("user", c.sess.Username).Info("user logged out")
	c.sess = nil
	return c.sendOK(protocol.OK{})
}

func (c *clientConn) handleRoomCreation(m *protocol.RoomCreationRequest) error {
	if c.sess == nil {
		return c.sendError("not logged in")
	}
	r, err := c.srv.Rooms.Create(c.sess, m.PlayerCount)
	if err != nil {
		c.log.WithError(err).WithField("user", c.sess.Username).Warn("room creation failed")
		return c.sendError(err.Error())
	}
	id := r.ID
	return c.sendOK(protocol.OK{RoomID: &id})
}

func (c *clientConn) handleRoomConnection(m *protocol.RoomConnectionRequest) error {
	if c.sess == nil {
		return c.sendError("not logged in")
	}
	if _, err := c.srv.Rooms.Join(m.RoomID, c.sess); err != nil {
		c.log.WithError(err).WithFields(logrus.Fields{
			"user": c.sess.Username, "room": m.RoomID,
		}).Warn("room join failed")
		return c.sendError(err.Error())
	}
	return c.sendOK(protocol.OK{})
}

func (c *clientConn) handleCardDrop(m *protocol.CardDropRequest) error {
	if c.sess == nil {
		return c.sendError("not logged in")
	}
	if err := c.srv.Rooms.Play(c.sess, m.CardIndex, m.Color); err != nil {
		return c.sendError(err.Error())
	}
	return c.sendOK(protocol.OK{})
}

func (c *clientConn) handleDrawCard() error {
	if c.sess == nil {
		return c.sendError("not logged in")
	}
	if err := c.srv.Rooms.Draw(c.sess); err != nil {
		return c.sendError(err.Error())
	}
	return c.sendOK(protocol.OK{})
}
