// internal/room/store.go
package room

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/unoserve/unoserve/internal/models"
	"github.com/unoserve/unoserve/internal/session"
)

// ResultRecorder persists a finished game's outcome for one user. The
// database store implements it; tests substitute a fake.
type ResultRecorder interface {
	RecordResult(ctx context.Context, username string, won bool) error
}

// ActionLogger receives game-action records for the historian queue.
// Implementations must not block the caller.
type ActionLogger interface {
	LogAction(roomID int64, username, action string, payload map[string]interface{})
}

// Store manages active rooms. The store lock guards only registry lookups
// and inserts; room mutation and network sends happen under the individual
// room's lock.
type Store struct {
	mu     sync.Mutex
	rooms  map[int64]*Room
	nextID int64

	logger    *logrus.Logger
	recorder  ResultRecorder
	historian ActionLogger
}

// NewStore builds an empty store. recorder and historian may be nil, which
// disables result persistence and action logging respectively.
func NewStore(logger *logrus.Logger, recorder ResultRecorder, historian ActionLogger) *Store {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Store{
		rooms:     make(map[int64]*Room),
		logger:    logger,
		recorder:  recorder,
		historian: historian,
	}
}

// Create opens a room owned by owner, seating it at seat 0. Fails with
// ErrDuplicateRoom when the owner already has an active room. Room IDs are
// a monotonic counter, unique for the process lifetime.
func (s *Store) Create(owner *session.Session, maxPlayers int) (*Room, error) {
	if maxPlayers < 2 || maxPlayers > 10 {
		return nil, ErrInvalidPlayerCount
	}

	s.mu.Lock()
	for _, r := range s.rooms {
		if r.Owner.Username == owner.Username {
			s.mu.Unlock()
			return nil, ErrDuplicateRoom
		}
	}
	id := s.nextID
	s.nextID++
	r := newRoom(id, owner, maxPlayers, s.logger)
	s.rooms[id] = r
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{"room": id, "owner": owner.Username}).Info("room created")
	s.logAction(id, owner.Username, "room_create", map[string]interface{}{"max_players": maxPlayers})
	return r, nil
}

// Join seats sess in the identified room, broadcasting the join and, when
// the room fills, dealing and announcing the game.
func (s *Store) Join(roomID int64, sess *session.Session) (*Room, error) {
	s.mu.Lock()
	r, ok := s.rooms[roomID]
	s.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}

	started, err := r.join(sess)
	if err != nil {
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{"room": roomID, "user": sess.Username}).Info("user joined room")
	s.logAction(roomID, sess.Username, "room_join", nil)
	if started {
		s.logger.WithField("room", roomID).Info("room full, game started")
		s.logAction(roomID, "", "game_start", map[string]interface{}{"players": r.MaxPlayers})
	}
	return r, nil
}

// Get returns the room with the given ID, or nil.
func (s *Store) Get(roomID int64) *Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rooms[roomID]
}

// FindBySession returns the room sess is currently seated in, or nil.
func (s *Store) FindBySession(sess *session.Session) *Room {
	s.mu.Lock()
	snapshot := make([]*Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		snapshot = append(snapshot, r)
	}
	s.mu.Unlock()

	for _, r := range snapshot {
		if r.hasMember(sess) {
			return r
		}
	}
	return nil
}

// Play applies a CARD_DROP from sess in whatever room it occupies. A win
// retires the room and settles win/loss counters.
func (s *Store) Play(sess *session.Session, cardIndex int, color models.Color) error {
	r := s.FindBySession(sess)
	if r == nil {
		return ErrNotInRoom
	}
	winner, err := r.play(sess, cardIndex, color)
	if err != nil {
		return err
	}
	s.logAction(r.ID, sess.Username, "card_play", map[string]interface{}{"card_index": cardIndex})
	if winner >= 0 {
		s.finishGame(r, winner)
	}
	return nil
}

// Draw applies a DRAW_CARD from sess in whatever room it occupies.
func (s *Store) Draw(sess *session.Session) error {
	r := s.FindBySession(sess)
	if r == nil {
		return ErrNotInRoom
	}
	winner, err := r.draw(sess)
	if err != nil {
		return err
	}
	s.logAction(r.ID, sess.Username, "card_draw", nil)
	if winner >= 0 {
		s.finishGame(r, winner)
	}
	return nil
}

// HandleDisconnect runs the cleanup path for a departing session: rooms it
// owns are closed and removed, rooms it merely occupies lose the member.
func (s *Store) HandleDisconnect(sess *session.Session) {
	if sess == nil {
		return
	}

	s.mu.Lock()
	var owned, joined []*Room
	for id, r := range s.rooms {
		if r.Owner.ID == sess.ID {
			owned = append(owned, r)
			delete(s.rooms, id)
		} else if r.hasMember(sess) {
			joined = append(joined, r)
		}
	}
	s.mu.Unlock()

	for _, r := range owned {
		s.logger.WithFields(logrus.Fields{"room": r.ID, "owner": sess.Username}).Info("owner left, closing room")
		r.close(sess)
		s.logAction(r.ID, sess.Username, "room_close", nil)
	}
	for _, r := range joined {
		if r.removeMember(sess) {
			s.logger.WithFields(logrus.Fields{"room": r.ID, "user": sess.Username}).Info("member left room")
			s.logAction(r.ID, sess.Username, "room_leave", nil)
		}
	}
}

// Len reports the number of active rooms.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rooms)
}

// finishGame removes a played-out room from the registry and records each
// member's result. Only games ending in a play-to-empty-hand are counted;
// abandoned rooms settle nothing.
func (s *Store) finishGame(r *Room, winner int) {
	s.mu.Lock()
	delete(s.rooms, r.ID)
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{"room": r.ID, "winner": winner}).Info("game finished")
	s.logAction(r.ID, "", "game_end", map[string]interface{}{"winner": winner})

	if s.recorder == nil {
		return
	}
	members := r.memberSnapshot()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		for _, m := range members {
			if err := s.recorder.RecordResult(ctx, m.sess.Username, m.seat == winner); err != nil {
				s.logger.WithError(err).WithField("user", m.sess.Username).Warn("failed to record game result")
			}
		}
	}()
}

func (s *Store) logAction(roomID int64, username, action string, payload map[string]interface{}) {
	if s.historian != nil {
		s.historian.LogAction(roomID, username, action, payload)
	}
}
