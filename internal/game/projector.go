package game

import "github.com/lox/cardroom/internal/deck"

// PublicPlayer is what any room member may see about a seat. Hole
// cards never appear here; only the count and the face-up cards do.
type PublicPlayer struct {
	UserID    string      `json:"user_id"`
	Seat      int         `json:"seat"`
	Stack     int         `json:"stack"`
	Bet       int         `json:"bet"`
	TotalBet  int         `json:"total_bet"`
	Action    Action      `json:"action"`
	Folded    bool        `json:"folded"`
	AllIn     bool        `json:"all_in"`
	CardCount int         `json:"card_count"`
	Visible   []deck.Card `json:"visible_cards,omitempty"`
}

// PublicState is the spectator view of a room.
type PublicState struct {
	RoomID      string         `json:"room_id"`
	Variant     string         `json:"variant"`
	State       string         `json:"state"`
	Players     []PublicPlayer `json:"players"`
	Board       []deck.Card    `json:"board,omitempty"`
	Pot         int            `json:"pot"`
	CurrentBet  int            `json:"current_bet"`
	CurrentTurn int            `json:"current_turn"`
	Round       int            `json:"round"`
	RoundName   string         `json:"round_name"`
	DealerSeat  int            `json:"dealer_seat"`
	MinWager    int            `json:"min_wager"`
	MaxWager    int            `json:"max_wager"`
	TimeoutSecs int            `json:"timeout_secs"`
}

// PrivateState is a per-recipient projection: the public state plus
// the recipient's own hole cards.
type PrivateState struct {
	PublicState
	MyUserID string      `json:"my_user_id,omitempty"`
	MyCards  []deck.Card `json:"my_cards,omitempty"`
}

// PublicView projects the state visible to spectators.
func (s *Session) PublicView() PublicState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.publicViewLocked()
}

func (s *Session) publicViewLocked() PublicState {
	players := make([]PublicPlayer, 0, len(s.players))
	for _, p := range s.players {
		players = append(players, PublicPlayer{
			UserID:    p.UserID,
			Seat:      p.Seat,
			Stack:     p.Stack,
			Bet:       p.Bet,
			TotalBet:  p.TotalBet,
			Action:    p.LastAction,
			Folded:    p.Folded,
			AllIn:     p.AllIn,
			CardCount: len(p.Cards),
			Visible:   p.Visible,
		})
	}
	min, max := 0, 0
	if s.state == StateBetting {
		min, max = s.rules.wagerBounds(s)
	}
	return PublicState{
		RoomID:      s.cfg.RoomID,
		Variant:     s.cfg.Variant,
		State:       s.state.String(),
		Players:     players,
		Board:       s.board,
		Pot:         s.pot,
		CurrentBet:  s.currentBet,
		CurrentTurn: s.currentTurn,
		Round:       s.round,
		RoundName:   s.rules.roundName(s.round),
		DealerSeat:  s.dealerSeat,
		MinWager:    min,
		MaxWager:    max,
		TimeoutSecs: int(s.cfg.TurnTimeout.Seconds()),
	}
}

// ViewFor projects the state for one recipient, adding their own hole
// cards. An unknown recipient gets the public projection unchanged.
func (s *Session) ViewFor(userID string) PrivateState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewForLocked(userID)
}

func (s *Session) viewForLocked(userID string) PrivateState {
	view := PrivateState{PublicState: s.publicViewLocked()}
	p := s.playerByUser(userID)
	if p == nil {
		return view
	}
	view.MyUserID = userID
	view.MyCards = p.Cards
	return view
}

// broadcastState fans a fresh projection out to every seat, plus the
// public view for spectators. Caller holds the lock.
func (s *Session) broadcastState() {
	for _, p := range s.players {
		s.sink.Unicast(s.cfg.RoomID, p.UserID, StateUpdate{View: s.viewForLocked(p.UserID)})
	}
	s.sink.Broadcast(s.cfg.RoomID, StateUpdate{View: PrivateState{PublicState: s.publicViewLocked()}})
}
