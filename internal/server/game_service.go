package server

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/lox/cardroom/internal/game"
	"github.com/lox/cardroom/internal/ledger"
	"github.com/lox/cardroom/internal/store"
)

// Broadcaster fans messages out to connected clients. The WebSocket
// server implements it; tests substitute a recorder.
type Broadcaster interface {
	BroadcastToRoom(roomID string, msg *Message)
	SendToUser(userID string, msg *Message) error
}

// member is one seated user in a room.
type member struct {
	userID string
	seat   int
	stack  int
}

// room is the durable table: members keep their seats and stacks
// across hands, while sessions come and go per hand.
type room struct {
	cfg RoomConfig

	mu         sync.Mutex
	members    map[string]*member
	lastDealer int
}

func (r *room) snapshotSeats() []store.SeatSnapshot {
	seats := make([]store.SeatSnapshot, 0, len(r.members))
	for _, m := range r.members {
		seats = append(seats, store.SeatSnapshot{UserID: m.userID, Seat: m.seat, Stack: m.stack})
	}
	sort.Slice(seats, func(i, j int) bool { return seats[i].Seat < seats[j].Seat })
	return seats
}

// GameService routes client commands into rooms and sessions, and
// forwards session events back out through the hub. It is the
// game.Sink for every session it creates.
type GameService struct {
	logger   *log.Logger
	clock    quartz.Clock
	hub      Broadcaster
	registry *SessionRegistry
	ledger   ledger.Ledger
	store    store.RoomStore

	// startingBalance is granted to a user on first sight. Accounts are
	// provisioned externally in production; standalone runs need funded
	// players to be playable at all.
	startingBalance int

	mu    sync.Mutex
	rooms map[string]*room
	seen  map[string]bool
}

// NewGameService builds the service with one room per configured table.
func NewGameService(cfg *Config, hub Broadcaster, lgr ledger.Ledger, st store.RoomStore, logger *log.Logger, clock quartz.Clock) *GameService {
	rooms := make(map[string]*room, len(cfg.Rooms))
	for _, rc := range cfg.Rooms {
		rooms[rc.ID] = &room{
			cfg:        rc,
			members:    make(map[string]*member),
			lastDealer: -1,
		}
	}
	return &GameService{
		logger:          logger.WithPrefix("service"),
		clock:           clock,
		hub:             hub,
		registry:        NewSessionRegistry(),
		ledger:          lgr,
		store:           st,
		startingBalance: cfg.Server.StartingBalance,
		rooms:           rooms,
		seen:            make(map[string]bool),
	}
}

// Registry exposes the session registry, mainly for tests.
func (s *GameService) Registry() *SessionRegistry {
	return s.registry
}

// Close shuts down every session.
func (s *GameService) Close() {
	s.registry.Close()
}

func (s *GameService) roomByID(roomID string) (*room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[roomID]
	if !ok {
		return nil, fmt.Errorf("room %s not found", roomID)
	}
	return r, nil
}

// JoinRoom seats a user, debiting the buy-in from their ledger
// balance. Joining a room you are already seated in re-sends the
// current projection, which is how clients rejoin after a disconnect.
func (s *GameService) JoinRoom(ctx context.Context, roomID, userID string, buyIn int) (*RoomJoinedData, error) {
	r, err := s.roomByID(roomID)
	if err != nil {
		return nil, err
	}

	// The room lock is never held across calls into a session: the
	// sink path locks session then room, so doing the reverse here
	// would invite a deadlock.
	r.mu.Lock()
	if m, ok := r.members[userID]; ok {
		seat, stack := m.seat, m.stack
		r.mu.Unlock()
		return &RoomJoinedData{
			RoomID:  roomID,
			Seat:    seat,
			Stack:   stack,
			Variant: r.cfg.Variant,
			View:    s.viewFor(roomID, userID),
		}, nil
	}

	if len(r.members) >= r.cfg.MaxPlayers {
		r.mu.Unlock()
		return nil, fmt.Errorf("room %s is full", roomID)
	}
	r.mu.Unlock()

	if buyIn <= 0 {
		buyIn = r.cfg.BuyIn
	}

	s.grantStartingBalance(ctx, userID)
	if err := s.ledger.Debit(ctx, userID, buyIn); err != nil {
		return nil, fmt.Errorf("buy-in failed: %w", err)
	}

	r.mu.Lock()
	if len(r.members) >= r.cfg.MaxPlayers {
		// Lost the last seat to a concurrent join; undo the buy-in.
		r.mu.Unlock()
		if err := s.ledger.Credit(ctx, userID, buyIn); err != nil {
			s.logger.Error("buy-in refund failed", "user", userID, "amount", buyIn, "err", err)
		}
		return nil, fmt.Errorf("room %s is full", roomID)
	}
	m := &member{userID: userID, seat: r.freeSeat(), stack: buyIn}
	r.members[userID] = m
	s.writeSnapshotLocked(r, "waiting")
	r.mu.Unlock()

	s.logger.Info("player joined", "room", roomID, "user", userID, "seat", m.seat, "buy_in", buyIn)

	if msg, err := NewMessage(MessageTypePlayerJoined, PlayerJoinedData{
		RoomID: roomID,
		UserID: userID,
		Seat:   m.seat,
		Stack:  m.stack,
	}); err == nil {
		s.hub.BroadcastToRoom(roomID, msg)
	}

	return &RoomJoinedData{
		RoomID:  roomID,
		Seat:    m.seat,
		Stack:   m.stack,
		Variant: r.cfg.Variant,
		View:    s.viewFor(roomID, userID),
	}, nil
}

func (s *GameService) grantStartingBalance(ctx context.Context, userID string) {
	s.mu.Lock()
	first := !s.seen[userID]
	s.seen[userID] = true
	s.mu.Unlock()

	if first && s.startingBalance > 0 {
		if err := s.ledger.Credit(ctx, userID, s.startingBalance); err != nil {
			s.logger.Error("starting balance grant failed", "user", userID, "err", err)
		}
	}
}

// freeSeat returns the lowest unoccupied seat. Caller holds r.mu.
func (r *room) freeSeat() int {
	taken := make(map[int]bool, len(r.members))
	for _, m := range r.members {
		taken[m.seat] = true
	}
	for seat := 0; ; seat++ {
		if !taken[seat] {
			return seat
		}
	}
}

// LeaveRoom removes a user from a room, folding their seat first if a
// hand is running, and cashes their stack back to the ledger.
func (s *GameService) LeaveRoom(ctx context.Context, roomID, userID string) error {
	r, err := s.roomByID(roomID)
	if err != nil {
		return err
	}

	r.mu.Lock()
	m, ok := r.members[userID]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("not seated in room %s", roomID)
	}

	stack := m.stack
	if session, ok := s.registry.Get(roomID); ok && !session.Replaceable() {
		// Best effort: a fold out of turn is rejected and the turn
		// timer folds the seat instead.
		if err := session.Apply(userID, game.Fold, 0); err != nil {
			s.logger.Debug("leave fold rejected", "room", roomID, "user", userID, "err", err)
		}
		view := session.ViewFor(userID)
		for _, p := range view.Players {
			if p.UserID == userID {
				stack = p.Stack
			}
		}
	}

	r.mu.Lock()
	delete(r.members, userID)
	seats := r.snapshotSeats()
	r.mu.Unlock()

	if stack > 0 {
		if err := s.ledger.Credit(ctx, userID, stack); err != nil {
			s.logger.Error("cash-out failed", "room", roomID, "user", userID, "amount", stack, "err", err)
		}
	}

	s.logger.Info("player left", "room", roomID, "user", userID, "cash_out", stack)

	if msg, err := NewMessage(MessageTypePlayerLeft, PlayerLeftData{
		RoomID: roomID,
		UserID: userID,
		Seat:   m.seat,
	}); err == nil {
		s.hub.BroadcastToRoom(roomID, msg)
	}
	s.saveSnapshot(store.RoomSnapshot{
		RoomID:    roomID,
		Variant:   r.cfg.Variant,
		Status:    "waiting",
		Players:   seats,
		UpdatedAt: time.Now(),
	})
	return nil
}

// StartGame deals a new hand in the room through the registry's atomic
// create.
func (s *GameService) StartGame(roomID, userID string) error {
	r, err := s.roomByID(roomID)
	if err != nil {
		return err
	}

	r.mu.Lock()
	if _, ok := r.members[userID]; !ok {
		r.mu.Unlock()
		return fmt.Errorf("not seated in room %s", roomID)
	}
	if len(r.members) < r.cfg.MinPlayers {
		r.mu.Unlock()
		return fmt.Errorf("need at least %d players, have %d", r.cfg.MinPlayers, len(r.members))
	}

	seats := make([]game.Seat, 0, len(r.members))
	for _, m := range r.members {
		seats = append(seats, game.Seat{UserID: m.userID, Seat: m.seat, Stack: m.stack})
	}
	sort.Slice(seats, func(i, j int) bool { return seats[i].Seat < seats[j].Seat })
	dealer := r.nextDealer(seats)
	r.mu.Unlock()

	session, err := s.registry.Create(roomID, func() (*game.Session, error) {
		return game.NewSession(game.Config{
			RoomID:             roomID,
			Variant:            r.cfg.Variant,
			MinBet:             r.cfg.MinBet,
			RakePercent:        r.cfg.RakePercent,
			JackpotPercent:     r.cfg.JackpotPercent,
			BettingStructure:   r.cfg.BettingStructure,
			MaxRaiseMultiplier: r.cfg.MaxRaiseMultiplier,
			TurnTimeout:        time.Duration(r.cfg.TurnTimeoutSecs) * time.Second,
			ResetDelay:         time.Duration(r.cfg.ResetDelaySecs) * time.Second,
			DealerSeat:         dealer,
		}, seats, s.logger, s.clock, s, s.ledger)
	})
	if err != nil {
		return err
	}

	if err := session.Start(); err != nil {
		s.registry.Destroy(roomID)
		return err
	}
	return nil
}

// nextDealer rotates the button to the next occupied seat. Caller
// holds r.mu.
func (r *room) nextDealer(seats []game.Seat) int {
	if r.lastDealer < 0 {
		return -1 // first hand, the session picks at random
	}
	for _, seat := range seats {
		if seat.Seat > r.lastDealer {
			return seat.Seat
		}
	}
	return seats[0].Seat
}

// HandleAction applies a player's betting action to the room's running
// session.
func (s *GameService) HandleAction(roomID, userID, actionName string, amount int) error {
	action, ok := game.ParseAction(actionName)
	if !ok {
		return fmt.Errorf("unknown action %q", actionName)
	}
	session, found := s.registry.Get(roomID)
	if !found {
		return fmt.Errorf("no game in progress in room %s", roomID)
	}
	return session.Apply(userID, action, amount)
}

// Chat relays a chat line to the room.
func (s *GameService) Chat(roomID, userID, text string) error {
	r, err := s.roomByID(roomID)
	if err != nil {
		return err
	}
	r.mu.Lock()
	_, seated := r.members[userID]
	r.mu.Unlock()
	if !seated {
		return fmt.Errorf("not seated in room %s", roomID)
	}
	if text == "" {
		return fmt.Errorf("empty chat message")
	}

	msg, err := NewMessage(MessageTypeChatRelay, ChatRelayData{
		RoomID: roomID,
		UserID: userID,
		Text:   text,
		SentAt: time.Now(),
	})
	if err != nil {
		return err
	}
	s.hub.BroadcastToRoom(roomID, msg)
	return nil
}

// viewFor returns the live projection for a user, or an empty waiting
// view when no session exists.
func (s *GameService) viewFor(roomID, userID string) game.PrivateState {
	if session, ok := s.registry.Get(roomID); ok {
		return session.ViewFor(userID)
	}
	return game.PrivateState{}
}

// --- game.Sink ---

// Broadcast forwards a session event to the whole room. State updates
// also refresh the room's seat bookkeeping and the store mirror; this
// runs under the session lock, so it must never call back into the
// session.
func (s *GameService) Broadcast(roomID string, event game.Event) {
	msg, err := eventMessage(event)
	if err != nil {
		s.logger.Error("failed to encode event", "room", roomID, "type", event.EventType(), "err", err)
		return
	}
	s.hub.BroadcastToRoom(roomID, msg)

	if update, ok := event.(game.StateUpdate); ok && update.View.MyUserID == "" {
		s.absorbState(roomID, update.View.PublicState)
	}
}

// Unicast forwards a session event to one user.
func (s *GameService) Unicast(roomID, userID string, event game.Event) {
	msg, err := eventMessage(event)
	if err != nil {
		s.logger.Error("failed to encode event", "room", roomID, "type", event.EventType(), "err", err)
		return
	}
	if err := s.hub.SendToUser(userID, msg); err != nil {
		s.logger.Debug("unicast dropped", "room", roomID, "user", userID, "err", err)
	}
}

// absorbState folds a public projection back into the room's member
// stacks and dealer, and mirrors it to the store.
func (s *GameService) absorbState(roomID string, view game.PublicState) {
	s.mu.Lock()
	r, ok := s.rooms[roomID]
	s.mu.Unlock()
	if !ok {
		return
	}

	r.mu.Lock()
	for _, p := range view.Players {
		if m, ok := r.members[p.UserID]; ok {
			m.stack = p.Stack
		}
	}
	if view.DealerSeat >= 0 {
		r.lastDealer = view.DealerSeat
	}
	seats := r.snapshotSeats()
	r.mu.Unlock()

	s.saveSnapshot(store.RoomSnapshot{
		RoomID:     roomID,
		Variant:    view.Variant,
		Status:     view.State,
		DealerSeat: view.DealerSeat,
		Pot:        view.Pot,
		Round:      view.Round,
		Players:    seats,
		UpdatedAt:  time.Now(),
	})
}

// writeSnapshotLocked mirrors the room's membership. Caller holds r.mu.
func (s *GameService) writeSnapshotLocked(r *room, status string) {
	s.saveSnapshot(store.RoomSnapshot{
		RoomID:    r.cfg.ID,
		Variant:   r.cfg.Variant,
		Status:    status,
		Players:   r.snapshotSeats(),
		UpdatedAt: time.Now(),
	})
}

// saveSnapshot writes the mirror without blocking play. A lost write
// is logged and superseded by the next one.
func (s *GameService) saveSnapshot(snapshot store.RoomSnapshot) {
	if s.store == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.store.SaveRoom(ctx, snapshot); err != nil {
			cerr := &game.ConcurrencyError{RoomID: snapshot.RoomID, Err: err}
			s.logger.Error("room snapshot write failed", "err", cerr)
		}
	}()
}
