// internal/room/room_test.go
package room

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unoserve/unoserve/internal/game"
	"github.com/unoserve/unoserve/internal/models"
	"github.com/unoserve/unoserve/internal/protocol"
	"github.com/unoserve/unoserve/internal/session"
)

// fakeConn records everything sent to it.
type fakeConn struct {
	mu       sync.Mutex
	msgs     []protocol.Message
	closed   bool
	failSend bool
}

func (c *fakeConn) Send(msg protocol.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failSend {
		return errors.New("peer gone")
	}
	c.msgs = append(c.msgs, msg)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) sent() []protocol.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]protocol.Message, len(c.msgs))
	copy(out, c.msgs)
	return out
}

func (c *fakeConn) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = nil
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) msgOfType(kind protocol.MessageType) protocol.Message {
	for _, m := range c.sent() {
		if m.Kind() == kind {
			return m
		}
	}
	return nil
}

type result struct {
	username string
	won      bool
}

// fakeRecorder collects RecordResult calls on a channel so tests can wait for
// the store's async settlement.
type fakeRecorder struct {
	results chan result
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{results: make(chan result, 16)}
}

func (f *fakeRecorder) RecordResult(_ context.Context, username string, won bool) error {
	f.results <- result{username, won}
	return nil
}

func (f *fakeRecorder) wait(t *testing.T, n int) map[string]bool {
	t.Helper()
	out := map[string]bool{}
	for i := 0; i < n; i++ {
		select {
		case r := <-f.results:
			out[r.username] = r.won
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for result %d of %d", i+1, n)
		}
	}
	return out
}

type actionRecord struct {
	roomID   int64
	username string
	action   string
}

type fakeHistorian struct {
	mu      sync.Mutex
	actions []actionRecord
}

func (f *fakeHistorian) LogAction(roomID int64, username, action string, _ map[string]interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actions = append(f.actions, actionRecord{roomID, username, action})
}

func (f *fakeHistorian) names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.actions))
	for i, a := range f.actions {
		out[i] = a.action
	}
	return out
}

func newSession(name string) (*session.Session, *fakeConn) {
	conn := &fakeConn{}
	return &session.Session{ID: uuid.New(), Username: name, Conn: conn}, conn
}

// fullRoom creates a room of the given capacity and fills every seat.
// Sessions and conns are returned in seat order; conns are reset so tests
// start from a clean transcript after the game start burst.
func fullRoom(t *testing.T, s *Store, capacity int) (*Room, []*session.Session, []*fakeConn) {
	t.Helper()
	names := []string{"alice", "bob", "carol", "dave"}[:capacity]

	sessions := make([]*session.Session, capacity)
	conns := make([]*fakeConn, capacity)
	sessions[0], conns[0] = newSession(names[0])
	r, err := s.Create(sessions[0], capacity)
	require.NoError(t, err)
	for i := 1; i < capacity; i++ {
		sessions[i], conns[i] = newSession(names[i])
		_, err := s.Join(r.ID, sessions[i])
		require.NoError(t, err)
	}
	for _, c := range conns {
		c.reset()
	}
	return r, sessions, conns
}

func TestCreateValidation(t *testing.T) {
	s := NewStore(nil, nil, nil)
	alice, _ := newSession("alice")

	_, err := s.Create(alice, 1)
	assert.ErrorIs(t, err, ErrInvalidPlayerCount)
	_, err = s.Create(alice, 11)
	assert.ErrorIs(t, err, ErrInvalidPlayerCount)

	r, err := s.Create(alice, 4)
	require.NoError(t, err)
	assert.Equal(t, 1, r.PlayerCount(), "owner takes seat 0 on creation")

	_, err = s.Create(alice, 2)
	assert.ErrorIs(t, err, ErrDuplicateRoom)
	assert.Equal(t, 1, s.Len())
}

func TestRoomIDsAreUnique(t *testing.T) {
	s := NewStore(nil, nil, nil)
	alice, _ := newSession("alice")
	bob, _ := newSession("bob")

	r1, err := s.Create(alice, 2)
	require.NoError(t, err)
	r2, err := s.Create(bob, 2)
	require.NoError(t, err)
	assert.NotEqual(t, r1.ID, r2.ID)
}

func TestJoinStartsGameWhenFull(t *testing.T) {
	s := NewStore(nil, nil, nil)
	alice, aliceConn := newSession("alice")
	bob, bobConn := newSession("bob")

	r, err := s.Create(alice, 2)
	require.NoError(t, err)

	_, err = s.Join(r.ID, bob)
	require.NoError(t, err)

	// Both members saw bob's join with the updated head count.
	for _, conn := range []*fakeConn{aliceConn, bobConn} {
		join := conn.msgOfType(protocol.TypeRoomJoinUpdate)
		require.NotNil(t, join)
		assert.Equal(t, &protocol.RoomJoinUpdate{
			Username: "bob", MaxPlayerCount: 2, CurrentPlayerCount: 2,
		}, join)
	}

	aliceStart, _ := aliceConn.msgOfType(protocol.TypeGameStartUpdate).(*protocol.GameStartUpdate)
	bobStart, _ := bobConn.msgOfType(protocol.TypeGameStartUpdate).(*protocol.GameStartUpdate)
	require.NotNil(t, aliceStart)
	require.NotNil(t, bobStart)

	assert.Equal(t, 0, aliceStart.ID)
	assert.Equal(t, 1, bobStart.ID)
	assert.Len(t, aliceStart.Hand, game.HandSize)
	assert.Len(t, bobStart.Hand, game.HandSize)
	assert.Equal(t, 0, aliceStart.Turn, "seat 0 acts first")
	assert.Equal(t, aliceStart.CurrentCard, bobStart.CurrentCard)
	assert.False(t, aliceStart.CurrentCard.IsWild())
	assert.NotEqual(t, aliceStart.Hand, bobStart.Hand, "each seat sees only its own hand")
}

func TestJoinFailures(t *testing.T) {
	s := NewStore(nil, nil, nil)
	alice, _ := newSession("alice")
	bob, _ := newSession("bob")

	r, err := s.Create(alice, 2)
	require.NoError(t, err)

	_, err = s.Join(999, bob)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.Join(r.ID, alice)
	assert.ErrorIs(t, err, ErrAlreadyJoined)

	_, err = s.Join(r.ID, bob)
	require.NoError(t, err)

	carol, _ := newSession("carol")
	_, err = s.Join(r.ID, carol)
	assert.ErrorIs(t, err, ErrRoomFull)
	assert.Equal(t, 2, r.PlayerCount(), "capacity is never exceeded")
}

func TestPlayBroadcastsUpdate(t *testing.T) {
	s := NewStore(nil, nil, nil)
	r, sessions, conns := fullRoom(t, s, 2)

	// Pin the table to a known position.
	g := r.game
	g.CurrentCard = models.Card{Color: models.ColorRed, Kind: "5"}
	g.DiscardPile = []models.Card{g.CurrentCard}
	g.CurrentPlayerIndex = 0
	g.Players[0].Hand = []models.Card{{Color: models.ColorBlue, Kind: "5"}, {Color: models.ColorGreen, Kind: "2"}}
	g.Players[1].Hand = []models.Card{{Color: models.ColorYellow, Kind: "3"}, {Color: models.ColorRed, Kind: "8"}}

	require.NoError(t, s.Play(sessions[0], 0, ""))

	for seat, conn := range conns {
		update, _ := conn.msgOfType(protocol.TypeGameUpdate).(*protocol.GameUpdate)
		require.NotNil(t, update, "seat %d", seat)
		assert.Equal(t, models.Card{Color: models.ColorBlue, Kind: "5"}, update.CurrentCard)
		assert.Equal(t, 1, update.Turn)
		assert.Equal(t, g.Hand(seat), update.Hand)
	}
}

func TestPlayRejections(t *testing.T) {
	s := NewStore(nil, nil, nil)
	_, sessions, conns := fullRoom(t, s, 2)

	err := s.Play(sessions[1], 0, "")
	assert.ErrorIs(t, err, game.ErrNotYourTurn)
	for _, conn := range conns {
		assert.Empty(t, conn.sent(), "a rejected move broadcasts nothing")
	}

	stranger, _ := newSession("mallory")
	assert.ErrorIs(t, s.Play(stranger, 0, ""), ErrNotInRoom)
	assert.ErrorIs(t, s.Draw(stranger), ErrNotInRoom)
}

func TestPlayBeforeGameStarts(t *testing.T) {
	s := NewStore(nil, nil, nil)
	alice, _ := newSession("alice")
	_, err := s.Create(alice, 2)
	require.NoError(t, err)

	assert.ErrorIs(t, s.Play(alice, 0, ""), ErrGameNotStarted)
	assert.ErrorIs(t, s.Draw(alice), ErrGameNotStarted)
}

func TestWinRetiresRoomAndSettlesResults(t *testing.T) {
	recorder := newFakeRecorder()
	s := NewStore(nil, recorder, nil)
	r, sessions, conns := fullRoom(t, s, 2)

	g := r.game
	g.CurrentCard = models.Card{Color: models.ColorRed, Kind: "5"}
	g.CurrentPlayerIndex = 0
	g.Players[0].Hand = []models.Card{{Color: models.ColorRed, Kind: "9"}}

	require.NoError(t, s.Play(sessions[0], 0, ""))

	for seat, conn := range conns {
		end, _ := conn.msgOfType(protocol.TypeGameEndUpdate).(*protocol.GameEndUpdate)
		require.NotNil(t, end, "seat %d", seat)
		assert.Equal(t, 0, end.Winner)
		assert.Nil(t, conn.msgOfType(protocol.TypeGameUpdate), "no in-progress update for the final move")
	}

	assert.Nil(t, s.Get(r.ID), "finished room is gone")
	assert.Nil(t, s.FindBySession(sessions[0]))
	assert.Zero(t, s.Len())

	results := recorder.wait(t, 2)
	assert.Equal(t, map[string]bool{"alice": true, "bob": false}, results)
}

func TestDrawBroadcastsUpdate(t *testing.T) {
	s := NewStore(nil, nil, nil)
	_, sessions, conns := fullRoom(t, s, 2)

	require.NoError(t, s.Draw(sessions[0]))

	for seat, conn := range conns {
		update, _ := conn.msgOfType(protocol.TypeGameUpdate).(*protocol.GameUpdate)
		require.NotNil(t, update, "seat %d", seat)
		assert.Equal(t, 1, update.Turn)
	}
}

func TestOwnerDisconnectClosesRoom(t *testing.T) {
	s := NewStore(nil, nil, nil)
	r, sessions, conns := fullRoom(t, s, 2)

	s.HandleDisconnect(sessions[0])

	assert.Nil(t, conns[0].msgOfType(protocol.TypeRoomCloseUpdate), "the departing owner gets nothing")
	require.NotNil(t, conns[1].msgOfType(protocol.TypeRoomCloseUpdate))

	assert.Nil(t, s.Get(r.ID))
	assert.Nil(t, s.FindBySession(sessions[1]))
	assert.Zero(t, s.Len())
}

func TestMemberDisconnectKeepsRemainingSeats(t *testing.T) {
	s := NewStore(nil, nil, nil)
	r, sessions, _ := fullRoom(t, s, 3)

	s.HandleDisconnect(sessions[1])

	require.NotNil(t, s.Get(r.ID), "the room outlives a non-owner departure")
	assert.Equal(t, 2, r.PlayerCount())

	seats := map[string]int{}
	for _, m := range r.memberSnapshot() {
		seats[m.sess.Username] = m.seat
	}
	assert.Equal(t, map[string]int{"alice": 0, "carol": 2}, seats, "seats are never renumbered")
}

func TestBroadcastFailureClosesOnlyThatConn(t *testing.T) {
	s := NewStore(nil, nil, nil)
	_, sessions, conns := fullRoom(t, s, 3)

	conns[1].failSend = true
	require.NoError(t, s.Draw(sessions[0]))

	assert.True(t, conns[1].isClosed(), "the unreachable member's connection is torn down")
	assert.False(t, conns[0].isClosed())
	assert.False(t, conns[2].isClosed())
	assert.NotNil(t, conns[2].msgOfType(protocol.TypeGameUpdate), "delivery to the others continues")
}

func TestRoomCloseSendFailureClosesConn(t *testing.T) {
	s := NewStore(nil, nil, nil)
	_, sessions, conns := fullRoom(t, s, 2)

	conns[1].failSend = true
	s.HandleDisconnect(sessions[0])

	assert.True(t, conns[1].isClosed())
}

func TestHistorianReceivesActions(t *testing.T) {
	historian := &fakeHistorian{}
	s := NewStore(nil, nil, historian)
	_, sessions, _ := fullRoom(t, s, 2)

	require.NoError(t, s.Draw(sessions[0]))
	s.HandleDisconnect(sessions[0])

	assert.Equal(t, []string{
		"room_create", "room_join", "game_start", "card_draw", "room_close",
	}, historian.names())
}
