package game

// Action is a betting action a player can take on their turn.
type Action string

const (
	Fold  Action = "fold"
	Check Action = "check"
	Call  Action = "call"
	Raise Action = "raise"
	AllIn Action = "all-in"
)

// ParseAction maps a wire string to an Action.
func ParseAction(s string) (Action, bool) {
	switch Action(s) {
	case Fold, Check, Call, Raise, AllIn:
		return Action(s), true
	case "bet":
		// Clients may say "bet" when opening; it is the same move.
		return Raise, true
	default:
		return "", false
	}
}

// waiting marks a player who has not acted this round. It shares the
// LastAction field with real actions but is never a valid input.
const waiting Action = "waiting"
