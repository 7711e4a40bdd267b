package game

import "fmt"

// ValidationError rejects a player command without mutating any state.
// The code is stable for clients; the message is for humans.
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func validationErrorf(code, format string, args ...any) *ValidationError {
	return &ValidationError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Validation error codes.
const (
	CodeNotYourTurn     = "not_your_turn"
	CodeNotBetting      = "not_betting"
	CodePlayerNotInGame = "player_not_in_game"
	CodeInvalidAction   = "invalid_action"
	CodeInsufficient    = "insufficient_coins"
	CodeBetOutOfBounds  = "bet_out_of_bounds"
	CodeGameInProgress  = "game_in_progress"
	CodeNotEnoughSeats  = "not_enough_players"
)

// ConcurrencyError reports a lost write on the room state mirror. The
// mirror is advisory, so callers log it and move on; the next snapshot
// write supersedes the lost one.
type ConcurrencyError struct {
	RoomID string
	Err    error
}

func (e *ConcurrencyError) Error() string {
	return fmt.Sprintf("room %s: state mirror write lost: %v", e.RoomID, e.Err)
}

func (e *ConcurrencyError) Unwrap() error { return e.Err }

// InvariantViolation reports internal bookkeeping that no longer adds
// up, such as the pot diverging from the sum of the players' bets.
// These indicate bugs, never bad input.
type InvariantViolation struct {
	RoomID string
	Detail string
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("room %s: invariant violated: %s", e.RoomID, e.Detail)
}
