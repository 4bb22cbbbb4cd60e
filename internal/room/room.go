// internal/room/room.go
package room

import (
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/unoserve/unoserve/internal/game"
	"github.com/unoserve/unoserve/internal/models"
	"github.com/unoserve/unoserve/internal/protocol"
	"github.com/unoserve/unoserve/internal/session"
)

var (
	ErrNotFound           = errors.New("room not found")
	ErrRoomFull           = errors.New("room is full")
	ErrAlreadyJoined      = errors.New("user already in the room")
	ErrDuplicateRoom      = errors.New("user already owns an active room")
	ErrInvalidPlayerCount = errors.New("player count must be between 2 and 10")
	ErrNotInRoom          = errors.New("user is not in an active room")
	ErrGameNotStarted     = errors.New("game has not started yet")
)

// member binds a session to its seat. The seat is assigned at join time and
// never renumbered, even when earlier members leave the membership sequence.
type member struct {
	sess *session.Session
	seat int
}

// Room groups sessions around one game instance. Membership changes and game
// moves are serialized under the room lock; turn order already serializes
// game writers, but joins and leaves race against moves without it.
//
// Lock ordering: a Store lock may be held while acquiring a room lock,
// never the reverse.
type Room struct {
	ID         int64
	Owner      *session.Session
	MaxPlayers int

	mu      sync.Mutex
	members []member
	game    *game.Game
	dealt   bool
	closed  bool

	logger *logrus.Logger
}

func newRoom(id int64, owner *session.Session, maxPlayers int, logger *logrus.Logger) *Room {
	return &Room{
		ID:         id,
		Owner:      owner,
		MaxPlayers: maxPlayers,
		members:    []member{{sess: owner, seat: 0}},
		game:       game.New(maxPlayers),
		logger:     logger,
	}
}

// PlayerCount returns the current number of members.
func (r *Room) PlayerCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

// Members returns a snapshot of the member sessions in seating order.
func (r *Room) Members() []*session.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*session.Session, len(r.members))
	for i, m := range r.members {
		out[i] = m.sess
	}
	return out
}

// join seats sess at the next free seat. When the join fills the room the
// game is dealt and every member receives its GAME_START_UPDATE. Returns
// whether the game started.
func (r *Room) join(sess *session.Session) (started bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return false, ErrNotFound
	}
	if len(r.members) >= r.MaxPlayers {
		return false, ErrRoomFull
	}
	for _, m := range r.members {
		if m.sess.Username == sess.Username {
			return false, ErrAlreadyJoined
		}
	}

	seat := len(r.members)
	r.members = append(r.members, member{sess: sess, seat: seat})

	r.broadcastLocked(&protocol.RoomJoinUpdate{
		Username:           sess.Username,
		MaxPlayerCount:     r.MaxPlayers,
		CurrentPlayerCount: len(r.members),
	})

	if len(r.members) < r.MaxPlayers {
		return false, nil
	}

	// Room is full: deal and announce the game to every seat.
	if err := r.game.Deal(); err != nil {
		r.logger.WithError(err).WithField("room", r.ID).Error("deal failed")
		return false, err
	}
	r.dealt = true
	r.eachMemberLocked(func(m member) protocol.Message {
		return &protocol.GameStartUpdate{
			Hand:        r.game.Hand(m.seat),
			Turn:        r.game.CurrentPlayerIndex,
			ID:          m.seat,
			CurrentCard: r.game.CurrentCard,
		}
	})
	return true, nil
}

// play routes a CARD_DROP to the engine and broadcasts the outcome. Returns
// the winning seat (or -1) so the store can settle results and retire the
// room.
func (r *Room) play(sess *session.Session, cardIndex int, color models.Color) (winner int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	seat, ok := r.seatOfLocked(sess)
	if !ok {
		return -1, ErrNotInRoom
	}
	if !r.dealt {
		return -1, ErrGameNotStarted
	}
	if err := r.game.Play(seat, cardIndex, color); err != nil {
		return -1, err
	}
	r.broadcastOutcomeLocked()
	return r.game.Winner, nil
}

// draw routes a DRAW_CARD to the engine and broadcasts the outcome.
func (r *Room) draw(sess *session.Session) (winner int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	seat, ok := r.seatOfLocked(sess)
	if !ok {
		return -1, ErrNotInRoom
	}
	if !r.dealt {
		return -1, ErrGameNotStarted
	}
	if err := r.game.Draw(seat); err != nil {
		return -1, err
	}
	r.broadcastOutcomeLocked()
	return r.game.Winner, nil
}

// broadcastOutcomeLocked sends either the per-member in-progress update or,
// when the game just ended, the single end-of-game broadcast. Assumes lock
// is held.
func (r *Room) broadcastOutcomeLocked() {
	if r.game.Winner >= 0 {
		r.closed = true
		r.broadcastLocked(&protocol.GameEndUpdate{Winner: r.game.Winner})
		return
	}
	r.eachMemberLocked(func(m member) protocol.Message {
		return &protocol.GameUpdate{
			Hand:        r.game.Hand(m.seat),
			Turn:        r.game.CurrentPlayerIndex,
			CurrentCard: r.game.CurrentCard,
		}
	})
}

// close broadcasts ROOM_CLOSE_UPDATE to every member other than the
// departing owner and marks the room terminal. Assumes the caller removes
// the room from its registry.
func (r *Room) close(departing *session.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true

	for _, m := range r.members {
		if departing != nil && m.sess.ID == departing.ID {
			continue
		}
		if err := m.sess.Conn.Send(&protocol.RoomCloseUpdate{}); err != nil {
			// Best effort: a failed close notification tears down that
			// member's own connection, never the rest of the loop.
			r.logger.WithError(err).WithFields(logrus.Fields{
				"room": r.ID, "user": m.sess.Username,
			}).Warn("room close notification failed")
			m.sess.Conn.Close()
		}
	}
}

// removeMember drops sess from the membership sequence. Seats of remaining
// members are deliberately left untouched, as is the engine's turn order.
func (r *Room) removeMember(sess *session.Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, m := range r.members {
		if m.sess.ID == sess.ID {
			r.members = append(r.members[:i], r.members[i+1:]...)
			return true
		}
	}
	return false
}

// hasMember reports whether sess currently occupies a seat.
func (r *Room) hasMember(sess *session.Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.seatOfLocked(sess)
	return ok
}

// memberSnapshot copies the current membership with seats.
func (r *Room) memberSnapshot() []member {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]member, len(r.members))
	copy(out, r.members)
	return out
}

func (r *Room) seatOfLocked(sess *session.Session) (int, bool) {
	for _, m := range r.members {
		if m.sess.ID == sess.ID {
			return m.seat, true
		}
	}
	return 0, false
}

// broadcastLocked sends msg to every member. Send failures close the failed
// member's connection after the loop; delivery to the others is never
// aborted. Assumes lock is held.
func (r *Room) broadcastLocked(msg protocol.Message) {
	r.eachMemberLocked(func(member) protocol.Message { return msg })
}

// eachMemberLocked sends build(m) to each member m, applying the same
// failure policy as broadcastLocked. Assumes lock is held.
func (r *Room) eachMemberLocked(build func(member) protocol.Message) {
	var failed []member
	for _, m := range r.members {
		if err := m.sess.Conn.Send(build(m)); err != nil {
			r.logger.WithError(err).WithFields(logrus.Fields{
				"room": r.ID, "user": m.sess.Username,
			}).Warn("broadcast send failed")
			failed = append(failed, m)
		}
	}
	for _, m := range failed {
		// Closing the connection routes the member through its own
		// disconnect cleanup, exactly as if the peer had hung up.
		m.sess.Conn.Close()
	}
}
