package game

import "github.com/lox/cardroom/internal/deck"

// Player represents a seated player in a hand.
type Player struct {
	UserID  string
	Seat    int
	Stack   int
	Cards   []deck.Card
	Visible []deck.Card // face-up subset of Cards, stud only
	Folded  bool
	AllIn   bool

	Bet        int    // current bet in this round
	TotalBet   int    // total bet in the hand
	LastAction Action // most recent action this round, or waiting
}

// CanAct returns true if the player can still take actions.
func (p *Player) CanAct() bool {
	return !p.Folded && !p.AllIn
}

// Active returns true if the player is still contesting the pot.
func (p *Player) Active() bool {
	return !p.Folded
}
