package game

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/lox/cardroom/internal/evaluator"
)

// variantRules is the strategy a session uses for everything that
// differs between holdem and stud: forced bets, the deal schedule,
// turn order and wager bounds.
type variantRules interface {
	name() string
	roundCount() int
	roundName(round int) string
	// postForcedBets takes blinds or antes before the opening deal.
	postForcedBets(s *Session)
	// dealRound deals the cards for the given round (1-based) and
	// reports how many total and visible cards each player holds.
	dealRound(s *Session, round int) (total, visible int, err error)
	// firstActor picks the seat that opens the given round.
	firstActor(s *Session, round int) int
	// wagerBounds returns the inclusive bounds for a raise this round.
	wagerBounds(s *Session) (min, max int)
	// validateWager checks a raise amount beyond the common bounds.
	validateWager(s *Session, p *Player, amount int) error
	// roundComplete reports whether the current betting round is done.
	roundComplete(s *Session) bool
}

func rulesForVariant(cfg Config) (variantRules, evaluator.Evaluator, error) {
	switch cfg.Variant {
	case VariantHoldem:
		return &holdemRules{
			smallBlind: cfg.MinBet,
			bigBlind:   cfg.MinBet * 2,
		}, evaluator.HoldemEvaluator{}, nil
	case VariantStud:
		structure, err := parseBettingStructure(cfg.BettingStructure, cfg.MinBet)
		if err != nil {
			return nil, nil, err
		}
		if cfg.MaxRaiseMultiplier > 0 {
			structure.maxFactor = cfg.MaxRaiseMultiplier
		}
		return &studRules{structure: structure}, evaluator.StudEvaluator{}, nil
	default:
		return nil, nil, fmt.Errorf("unknown variant %q", cfg.Variant)
	}
}

// holdemRules implements community-card poker: two hole cards, blinds,
// and four streets with a progressively dealt board.
type holdemRules struct {
	smallBlind int
	bigBlind   int
}

func (r *holdemRules) name() string    { return VariantHoldem }
func (r *holdemRules) roundCount() int { return 4 }

func (r *holdemRules) roundName(round int) string {
	switch round {
	case 1:
		return "pre-flop"
	case 2:
		return "flop"
	case 3:
		return "turn"
	case 4:
		return "river"
	default:
		return fmt.Sprintf("round-%d", round)
	}
}

func (r *holdemRules) postForcedBets(s *Session) {
	sbSeat := s.nextSeat(s.dealerSeat)
	bbSeat := s.nextSeat(sbSeat)
	s.post(s.playerBySeat(sbSeat), r.smallBlind)
	s.post(s.playerBySeat(bbSeat), r.bigBlind)
	s.currentBet = r.bigBlind
}

func (r *holdemRules) dealRound(s *Session, round int) (int, int, error) {
	switch round {
	case 1:
		for _, p := range s.players {
			cards, err := s.deck.DrawN(2)
			if err != nil {
				return 0, 0, err
			}
			p.Cards = cards
		}
		return 2, 0, nil
	case 2:
		cards, err := s.deck.DrawN(3)
		if err != nil {
			return 0, 0, err
		}
		s.board = append(s.board, cards...)
	case 3, 4:
		card, err := s.deck.Draw()
		if err != nil {
			return 0, 0, err
		}
		s.board = append(s.board, card)
	}
	// Hole cards stay at two; the board is the visible count.
	return 2, len(s.board), nil
}

func (r *holdemRules) firstActor(s *Session, round int) int {
	if round == 1 {
		// Under the gun: the seat after the big blind.
		bbSeat := s.nextSeat(s.nextSeat(s.dealerSeat))
		return s.nextActingSeat(bbSeat)
	}
	return s.nextActingSeat(s.dealerSeat)
}

func (r *holdemRules) wagerBounds(s *Session) (int, int) {
	min := s.currentBet * 2
	if min < r.bigBlind {
		min = r.bigBlind
	}
	return min, 0 // no upper bound short of the stack
}

func (r *holdemRules) validateWager(s *Session, p *Player, amount int) error {
	min, _ := r.wagerBounds(s)
	if amount < min {
		return validationErrorf(CodeBetOutOfBounds, "raise must be at least %d", min)
	}
	return nil
}

func (r *holdemRules) roundComplete(s *Session) bool {
	for _, p := range s.players {
		if !p.Active() {
			continue
		}
		if p.AllIn {
			continue
		}
		if p.LastAction == waiting || p.Bet != s.currentBet {
			return false
		}
	}
	return true
}

// studBetting is the per-round wager schedule for a stud table, parsed
// from a structure string like "1-2-3-3": the parts, scaled by the
// table unit, give the ante and the round bets once four or more cards
// are out. Rounds one to three bet at the ante level.
type studBetting struct {
	ante      int
	roundBets [5]int // indexed by round-1
	unit      int
	maxFactor int
}

func parseBettingStructure(structure string, unit int) (studBetting, error) {
	if structure == "" {
		structure = "1-2-3-3"
	}
	if unit <= 0 {
		unit = 1000
	}
	parts := strings.Split(structure, "-")
	if len(parts) < 2 || len(parts) > 4 {
		return studBetting{}, fmt.Errorf("invalid betting structure %q", structure)
	}
	scaled := make([]int, len(parts))
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n <= 0 {
			return studBetting{}, fmt.Errorf("invalid betting structure %q", structure)
		}
		scaled[i] = n * unit
	}
	b := studBetting{ante: scaled[0], unit: unit, maxFactor: 3}
	// Rounds 1-3 bet at the ante level; later rounds step up, the last
	// part carrying through to the end.
	b.roundBets[0] = b.ante
	for i := 1; i < 5; i++ {
		idx := i
		if idx >= len(scaled) {
			idx = len(scaled) - 1
		}
		b.roundBets[i] = scaled[idx]
	}
	return b, nil
}

// studRules implements progressive-reveal stud: antes, five rounds from
// three to seven cards with a growing face-up set, and the best visible
// hand opening each round after the first.
type studRules struct {
	structure studBetting
}

func (r *studRules) name() string    { return VariantStud }
func (r *studRules) roundCount() int { return 5 }

func (r *studRules) roundName(round int) string {
	return fmt.Sprintf("round-%d", round)
}

func (r *studRules) postForcedBets(s *Session) {
	for _, p := range s.players {
		s.post(p, r.structure.ante)
	}
	s.currentBet = r.structure.ante
}

// studDeals is the stud deal schedule: total cards held and how many of
// them are face up after each round's deal.
var studDeals = [5]struct{ total, visible int }{
	{3, 0},
	{4, 2},
	{5, 3},
	{6, 4},
	{7, 5},
}

func (r *studRules) dealRound(s *Session, round int) (int, int, error) {
	schedule := studDeals[round-1]
	hidden := schedule.total - schedule.visible
	for _, p := range s.players {
		if p.Folded {
			continue
		}
		for len(p.Cards) < schedule.total {
			card, err := s.deck.Draw()
			if err != nil {
				return 0, 0, err
			}
			p.Cards = append(p.Cards, card)
			if len(p.Cards) > hidden {
				p.Visible = append(p.Visible, card)
			}
		}
	}
	return schedule.total, schedule.visible, nil
}

func (r *studRules) firstActor(s *Session, round int) int {
	if round == 1 {
		return s.nextActingSeat(s.dealerSeat)
	}
	// Best visible hand opens. Suit strength tiebreaks make the choice
	// unambiguous.
	eval := evaluator.StudEvaluator{}
	bestSeat := -1
	var best evaluator.RankedHand
	for _, p := range s.players {
		if !p.Active() {
			continue
		}
		hand := eval.EvaluateVisible(p.Visible)
		if bestSeat == -1 || eval.CompareVisible(hand, best) > 0 {
			bestSeat = p.Seat
			best = hand
		}
	}
	return bestSeat
}

func (r *studRules) wagerBounds(s *Session) (int, int) {
	roundBet := r.structure.roundBets[s.round-1]
	return r.structure.unit, roundBet * r.structure.maxFactor
}

func (r *studRules) validateWager(s *Session, p *Player, amount int) error {
	min, max := r.wagerBounds(s)
	if amount < min || amount > max {
		return validationErrorf(CodeBetOutOfBounds, "bet must be between %d and %d", min, max)
	}
	return nil
}

func (r *studRules) roundComplete(s *Session) bool {
	active := 0
	for _, p := range s.players {
		if p.Active() {
			active++
		}
	}
	if s.actionCount < active {
		return false
	}
	for _, p := range s.players {
		if !p.Active() {
			continue
		}
		if p.LastAction == waiting {
			return false
		}
		if p.Bet != s.currentBet && !p.AllIn {
			return false
		}
	}
	if s.lastRaiser >= 0 {
		raiser := s.playerBySeat(s.lastRaiser)
		if raiser != nil && raiser.Active() && raiser.LastAction == waiting {
			return false
		}
	}
	return true
}
