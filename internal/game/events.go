package game

import "github.com/lox/cardroom/internal/deck"

// Event is a game occurrence fanned out to room subscribers. The server
// wraps events in its wire envelope keyed by EventType.
type Event interface {
	EventType() string
}

// Sink receives events from a session. Broadcast goes to everyone in
// the room; Unicast targets one user. Implementations must not call
// back into the session.
type Sink interface {
	Broadcast(roomID string, event Event)
	Unicast(roomID, userID string, event Event)
}

// RoundStarted announces a new betting round after its cards are dealt.
type RoundStarted struct {
	Round      int    `json:"round"`
	RoundName  string `json:"round_name"`
	CardsDealt int    `json:"cards_dealt"`
	Visible    int    `json:"visible_cards"`
	FirstToAct int    `json:"first_to_act"`
	MinWager   int    `json:"min_wager"`
	MaxWager   int    `json:"max_wager"`
}

func (RoundStarted) EventType() string { return "round-started" }

// ActionApplied reports an accepted player action.
type ActionApplied struct {
	UserID     string `json:"user_id"`
	Seat       int    `json:"seat"`
	Action     Action `json:"action"`
	Amount     int    `json:"amount"`
	Pot        int    `json:"pot"`
	CurrentBet int    `json:"current_bet"`
	NextToAct  int    `json:"next_to_act"`
}

func (ActionApplied) EventType() string { return "action-applied" }

// RoundEnded closes a betting round before the next one is dealt. The
// board carries the community cards for holdem; Visible carries each
// seat's face-up cards for stud.
type RoundEnded struct {
	Round     int                 `json:"round"`
	RoundName string              `json:"round_name"`
	Pot       int                 `json:"pot"`
	Board     []deck.Card         `json:"board,omitempty"`
	Visible   map[int][]deck.Card `json:"visible_cards,omitempty"`
}

func (RoundEnded) EventType() string { return "round-ended" }

// PlayerTimeout reports a seat folded by the turn timer.
type PlayerTimeout struct {
	UserID string `json:"user_id"`
	Seat   int    `json:"seat"`
}

func (PlayerTimeout) EventType() string { return "player-timeout" }

// SettledPlayer is one seat's outcome in a finished hand. Hole cards
// are revealed here and nowhere else.
type SettledPlayer struct {
	UserID   string      `json:"user_id"`
	Seat     int         `json:"seat"`
	Cards    []deck.Card `json:"cards"`
	HandName string      `json:"hand_name,omitempty"`
	Folded   bool        `json:"folded"`
	Winner   bool        `json:"winner"`
	Payout   int         `json:"payout"`
}

// GameEnded reports settlement of a hand, by showdown or by everyone
// else folding.
type GameEnded struct {
	SettlementID string          `json:"settlement_id"`
	Reason       string          `json:"reason"` // "showdown" or "fold"
	Winners      []int           `json:"winners"`
	WinAmount    int             `json:"win_amount"`
	Pot          int             `json:"pot"`
	Rake         int             `json:"rake"`
	Jackpot      int             `json:"jackpot"`
	Players      []SettledPlayer `json:"players"`
	Board        []deck.Card     `json:"board,omitempty"`
}

func (GameEnded) EventType() string { return "game-ended" }

// StateUpdate carries a per-recipient projection of the room.
type StateUpdate struct {
	View PrivateState `json:"view"`
}

func (StateUpdate) EventType() string { return "state-update" }

// RoomReset announces the room returning to waiting after the
// post-settlement delay.
type RoomReset struct {
	RoomID string `json:"room_id"`
}

func (RoomReset) EventType() string { return "room-reset" }
