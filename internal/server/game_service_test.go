package server

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/cardroom/internal/game"
	"github.com/lox/cardroom/internal/ledger"
	"github.com/lox/cardroom/internal/store"
)

// fakeHub records everything the service broadcasts.
type fakeHub struct {
	mu        sync.Mutex
	broadcast map[string][]*Message
	unicast   map[string][]*Message
}

func newFakeHub() *fakeHub {
	return &fakeHub{
		broadcast: make(map[string][]*Message),
		unicast:   make(map[string][]*Message),
	}
}

func (h *fakeHub) BroadcastToRoom(roomID string, msg *Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.broadcast[roomID] = append(h.broadcast[roomID], msg)
}

func (h *fakeHub) SendToUser(userID string, msg *Message) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unicast[userID] = append(h.unicast[userID], msg)
	return nil
}

func (h *fakeHub) roomMessageTypes(roomID string) []MessageType {
	h.mu.Lock()
	defer h.mu.Unlock()
	var types []MessageType
	for _, msg := range h.broadcast[roomID] {
		types = append(types, msg.Type)
	}
	return types
}

func (h *fakeHub) hasRoomMessage(roomID string, typ MessageType) bool {
	for _, got := range h.roomMessageTypes(roomID) {
		if got == typ {
			return true
		}
	}
	return false
}

func newTestService(t *testing.T) (*GameService, *fakeHub, *ledger.Memory, *store.Memory) {
	t.Helper()
	cfg := &Config{
		Server: ServerSettings{StartingBalance: 100_000},
		Rooms: []RoomConfig{
			{ID: "room1", Variant: "holdem", MinBet: 50},
			{ID: "stud1", Variant: "stud", MinBet: 1000, BettingStructure: "1-2-3-3"},
		},
	}
	cfg.applyDefaults()

	hub := newFakeHub()
	lgr := ledger.NewMemory()
	st := store.NewMemory()
	logger := log.NewWithOptions(io.Discard, log.Options{Level: log.ErrorLevel})
	service := NewGameService(cfg, hub, lgr, st, logger, quartz.NewReal())
	t.Cleanup(service.Close)
	return service, hub, lgr, st
}

func TestJoinRoomDebitsBuyIn(t *testing.T) {
	service, hub, lgr, st := newTestService(t)
	ctx := context.Background()

	joined, err := service.JoinRoom(ctx, "room1", "alice", 5000)
	require.NoError(t, err)
	assert.Equal(t, 0, joined.Seat)
	assert.Equal(t, 5000, joined.Stack)
	assert.Equal(t, "holdem", joined.Variant)

	// First sight grants the starting balance, then the buy-in comes
	// off it.
	assert.Equal(t, 95_000, lgr.Balance("alice"))
	assert.True(t, hub.hasRoomMessage("room1", MessageTypePlayerJoined))

	// The membership change is mirrored to the store.
	require.Eventually(t, func() bool {
		snapshot, err := st.GetRoom(ctx, "room1")
		return err == nil && len(snapshot.Players) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestJoinRoomRejectsOverBuyIn(t *testing.T) {
	service, _, _, _ := newTestService(t)

	_, err := service.JoinRoom(context.Background(), "room1", "alice", 200_000)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "buy-in failed")
}

func TestJoinRoomUnknownRoom(t *testing.T) {
	service, _, _, _ := newTestService(t)
	_, err := service.JoinRoom(context.Background(), "nope", "alice", 0)
	require.Error(t, err)
}

func TestJoinRoomRejoinKeepsSeat(t *testing.T) {
	service, _, lgr, _ := newTestService(t)
	ctx := context.Background()

	first, err := service.JoinRoom(ctx, "room1", "alice", 5000)
	require.NoError(t, err)
	balanceAfterJoin := lgr.Balance("alice")

	again, err := service.JoinRoom(ctx, "room1", "alice", 5000)
	require.NoError(t, err)
	assert.Equal(t, first.Seat, again.Seat)
	assert.Equal(t, balanceAfterJoin, lgr.Balance("alice"), "rejoin never debits")
}

func TestStartGamePlaysAHand(t *testing.T) {
	service, hub, lgr, _ := newTestService(t)
	ctx := context.Background()

	_, err := service.JoinRoom(ctx, "room1", "alice", 5000)
	require.NoError(t, err)
	_, err = service.JoinRoom(ctx, "room1", "bob", 5000)
	require.NoError(t, err)

	require.NoError(t, service.StartGame("room1", "alice"))
	assert.True(t, hub.hasRoomMessage("room1", "round-started"))

	// A second start while the hand runs must lose the race.
	require.ErrorIs(t, service.StartGame("room1", "alice"), ErrGameInProgress)

	session, ok := service.Registry().Get("room1")
	require.True(t, ok)
	view := session.PublicView()
	folder := view.Players[indexOfSeat(view.Players, view.CurrentTurn)].UserID

	require.NoError(t, service.HandleAction("room1", folder, "fold", 0))
	assert.True(t, hub.hasRoomMessage("room1", "game-ended"))

	// The settlement lands in the ledger off the game loop.
	require.Eventually(t, func() bool {
		return len(lgr.Settlements()) == 1
	}, time.Second, 10*time.Millisecond)
}

func indexOfSeat(players []game.PublicPlayer, seat int) int {
	for i, p := range players {
		if p.Seat == seat {
			return i
		}
	}
	return -1
}

func TestStartGameNeedsEnoughPlayers(t *testing.T) {
	service, _, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := service.JoinRoom(ctx, "room1", "alice", 5000)
	require.NoError(t, err)

	err = service.StartGame("room1", "alice")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least 2 players")

	require.Error(t, service.StartGame("room1", "mallory"), "only seated players can start")
}

func TestLeaveRoomCashesOut(t *testing.T) {
	service, hub, lgr, _ := newTestService(t)
	ctx := context.Background()

	_, err := service.JoinRoom(ctx, "room1", "alice", 5000)
	require.NoError(t, err)
	require.Equal(t, 95_000, lgr.Balance("alice"))

	require.NoError(t, service.LeaveRoom(ctx, "room1", "alice"))
	assert.Equal(t, 100_000, lgr.Balance("alice"))
	assert.True(t, hub.hasRoomMessage("room1", MessageTypePlayerLeft))

	require.Error(t, service.LeaveRoom(ctx, "room1", "alice"), "cannot leave twice")
}

func TestLeaveRoomMidHandFoldsAndCashesOut(t *testing.T) {
	service, hub, lgr, _ := newTestService(t)
	ctx := context.Background()

	_, err := service.JoinRoom(ctx, "room1", "alice", 5000)
	require.NoError(t, err)
	_, err = service.JoinRoom(ctx, "room1", "bob", 5000)
	require.NoError(t, err)
	require.NoError(t, service.StartGame("room1", "alice"))

	session, ok := service.Registry().Get("room1")
	require.True(t, ok)
	view := session.PublicView()
	leaver := view.Players[indexOfSeat(view.Players, view.CurrentTurn)].UserID

	require.NoError(t, service.LeaveRoom(ctx, "room1", leaver))

	// The fold ends the heads-up hand.
	assert.True(t, hub.hasRoomMessage("room1", "game-ended"))

	// The leaver walks away with their stack minus what the blinds
	// committed to the pot.
	assert.Less(t, lgr.Balance(leaver), 100_000)
	assert.Greater(t, lgr.Balance(leaver), 90_000)
}

func TestChatRelaysToRoom(t *testing.T) {
	service, hub, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := service.JoinRoom(ctx, "room1", "alice", 0)
	require.NoError(t, err)

	require.NoError(t, service.Chat("room1", "alice", "gl all"))
	assert.True(t, hub.hasRoomMessage("room1", MessageTypeChatRelay))

	require.Error(t, service.Chat("room1", "stranger", "hi"), "spectators cannot chat")
	require.Error(t, service.Chat("room1", "alice", ""))
}

func TestDealerRotatesBetweenHands(t *testing.T) {
	service, _, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := service.JoinRoom(ctx, "room1", "alice", 5000)
	require.NoError(t, err)
	_, err = service.JoinRoom(ctx, "room1", "bob", 5000)
	require.NoError(t, err)

	playHand := func() int {
		require.NoError(t, service.StartGame("room1", "alice"))
		session, ok := service.Registry().Get("room1")
		require.True(t, ok)
		view := session.PublicView()
		dealer := view.DealerSeat
		actor := view.Players[indexOfSeat(view.Players, view.CurrentTurn)].UserID
		require.NoError(t, service.HandleAction("room1", actor, "fold", 0))
		return dealer
	}

	first := playHand()
	second := playHand()
	assert.NotEqual(t, first, second, "button moves to the other seat heads up")
}
