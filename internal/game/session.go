package game

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/google/uuid"

	"github.com/lox/cardroom/internal/deck"
	"github.com/lox/cardroom/internal/evaluator"
	"github.com/lox/cardroom/internal/ledger"
	"github.com/lox/cardroom/internal/randutil"
)

// Supported variants.
const (
	VariantHoldem = "holdem"
	VariantStud   = "stud"
)

// State is the lifecycle phase of a session. Dealing, RoundComplete,
// Showdown and Settling are transient: they are passed through inside
// a single locked call and observable only in events.
type State int

const (
	StateWaiting State = iota
	StateDealing
	StateBetting
	StateRoundComplete
	StateShowdown
	StateSettling
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateWaiting:
		return "waiting"
	case StateDealing:
		return "dealing"
	case StateBetting:
		return "betting"
	case StateRoundComplete:
		return "round-complete"
	case StateShowdown:
		return "showdown"
	case StateSettling:
		return "settling"
	case StateFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// Config describes one table's game parameters.
type Config struct {
	RoomID           string
	Variant          string
	MinBet           int
	RakePercent      int
	JackpotPercent   int
	BettingStructure string // stud only, e.g. "1-2-3-3"
	// MaxRaiseMultiplier caps a stud wager at this multiple of the
	// round bet. Zero means the default of 3.
	MaxRaiseMultiplier int
	TurnTimeout        time.Duration
	ResetDelay         time.Duration
	DealerSeat         int   // -1 picks at random
	Seed               int64 // 0 draws from the OS entropy source
}

func (c *Config) applyDefaults() {
	if c.MinBet <= 0 {
		c.MinBet = 1000
	}
	if c.RakePercent == 0 {
		c.RakePercent = 5
	}
	if c.JackpotPercent == 0 {
		c.JackpotPercent = 2
	}
	if c.TurnTimeout <= 0 {
		if c.Variant == VariantStud {
			c.TurnTimeout = 45 * time.Second
		} else {
			c.TurnTimeout = 30 * time.Second
		}
	}
	if c.ResetDelay <= 0 {
		c.ResetDelay = 3 * time.Second
	}
}

// Seat is a player joining a hand.
type Seat struct {
	UserID string
	Seat   int
	Stack  int
}

// Session runs one hand of a card game for a room. All public methods
// lock the session mutex; that mutex is the room's mutation queue, so
// actions, timer expiries and the settlement reset are applied one at
// a time in arrival order.
type Session struct {
	mu     sync.Mutex
	cfg    Config
	logger *log.Logger
	clock  quartz.Clock
	sink   Sink
	ledger ledger.Ledger

	rules variantRules
	eval  evaluator.Evaluator

	state       State
	deck        *deck.Deck
	players     []*Player // sorted by seat
	board       []deck.Card
	pot         int
	currentBet  int
	round       int
	dealerSeat  int
	currentTurn int
	lastRaiser  int
	actionCount int

	// turnEpoch increments every time the turn moves. A timer expiry
	// carrying a stale epoch is a no-op, which makes the race between
	// a timeout and a just-applied action harmless.
	turnEpoch  uint64
	turnTimer  *quartz.Timer
	resetTimer *quartz.Timer

	startedAt  time.Time
	settled    bool
	closed     bool
	presetDeck *deck.Deck
}

// NewSession creates a session in the waiting state.
func NewSession(cfg Config, seats []Seat, logger *log.Logger, clock quartz.Clock, sink Sink, lgr ledger.Ledger) (*Session, error) {
	cfg.applyDefaults()
	if len(seats) < 2 {
		return nil, validationErrorf(CodeNotEnoughSeats, "need at least 2 players, got %d", len(seats))
	}
	rules, eval, err := rulesForVariant(cfg)
	if err != nil {
		return nil, err
	}

	players := make([]*Player, 0, len(seats))
	seen := make(map[int]bool)
	for _, seat := range seats {
		if seat.Stack <= 0 {
			return nil, validationErrorf(CodeInsufficient, "player %s has no stack", seat.UserID)
		}
		if seen[seat.Seat] {
			return nil, fmt.Errorf("duplicate seat %d", seat.Seat)
		}
		seen[seat.Seat] = true
		players = append(players, &Player{
			UserID:     seat.UserID,
			Seat:       seat.Seat,
			Stack:      seat.Stack,
			LastAction: waiting,
		})
	}
	sort.Slice(players, func(i, j int) bool { return players[i].Seat < players[j].Seat })

	return &Session{
		cfg:         cfg,
		logger:      logger.With("room", cfg.RoomID, "variant", cfg.Variant),
		clock:       clock,
		sink:        sink,
		ledger:      lgr,
		rules:       rules,
		eval:        eval,
		state:       StateWaiting,
		players:     players,
		dealerSeat:  cfg.DealerSeat,
		currentTurn: -1,
		lastRaiser:  -1,
	}, nil
}

// Start deals the opening round and begins betting.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("session closed")
	}
	if s.state != StateWaiting {
		return validationErrorf(CodeGameInProgress, "game already started")
	}
	s.startedAt = s.clock.Now()

	seed := s.cfg.Seed
	if seed == 0 {
		seed = randutil.NewSeed()
	}
	rng := randutil.New(seed)
	if s.presetDeck != nil {
		s.deck = s.presetDeck
	} else {
		s.deck = deck.New(rng)
	}

	if s.dealerSeat < 0 {
		s.dealerSeat = s.players[rng.IntN(len(s.players))].Seat
	}

	s.rules.postForcedBets(s)

	s.state = StateDealing
	s.round = 1
	total, visible, err := s.rules.dealRound(s, 1)
	if err != nil {
		return err
	}

	s.state = StateBetting
	s.currentTurn = s.rules.firstActor(s, 1)
	s.armTurnTimer()

	min, max := s.rules.wagerBounds(s)
	s.logger.Info("hand started",
		"dealer", s.dealerSeat, "first_to_act", s.currentTurn, "players", len(s.players))
	s.sink.Broadcast(s.cfg.RoomID, RoundStarted{
		Round:      s.round,
		RoundName:  s.rules.roundName(s.round),
		CardsDealt: total,
		Visible:    visible,
		FirstToAct: s.currentTurn,
		MinWager:   min,
		MaxWager:   max,
	})

	if s.currentTurn < 0 {
		// The forced bets put everyone all in, so nobody can open the
		// betting. Run the remaining rounds out to showdown.
		s.nextRound()
		return s.checkInvariants()
	}

	s.broadcastState()
	return s.checkInvariants()
}

// Apply validates and applies a player action. Validation failures
// return a *ValidationError and leave the session untouched.
func (s *Session) Apply(userID string, action Action, amount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateBetting {
		return validationErrorf(CodeNotBetting, "no betting in progress")
	}
	p := s.playerByUser(userID)
	if p == nil {
		return validationErrorf(CodePlayerNotInGame, "player not in game")
	}
	if p.Seat != s.currentTurn {
		return validationErrorf(CodeNotYourTurn, "not your turn")
	}
	return s.applyTurn(p, action, amount)
}

// applyTurn applies an action for the player holding the turn. Caller
// holds the lock and has validated turn ownership.
func (s *Session) applyTurn(p *Player, action Action, amount int) error {
	switch action {
	case Fold:
		p.Folded = true

	case Check:
		if p.Bet != s.currentBet {
			return validationErrorf(CodeInvalidAction, "cannot check, must call %d", s.currentBet-p.Bet)
		}

	case Call:
		deficit := s.currentBet - p.Bet
		if deficit <= 0 {
			return validationErrorf(CodeInvalidAction, "nothing to call")
		}
		if p.Stack < deficit {
			return validationErrorf(CodeInsufficient, "need %d to call", deficit)
		}
		p.Stack -= deficit
		p.Bet = s.currentBet
		p.TotalBet += deficit
		s.pot += deficit

	case Raise:
		if amount <= s.currentBet {
			return validationErrorf(CodeBetOutOfBounds, "raise must exceed the current bet of %d", s.currentBet)
		}
		if err := s.rules.validateWager(s, p, amount); err != nil {
			return err
		}
		delta := amount - p.Bet
		if p.Stack < delta {
			return validationErrorf(CodeInsufficient, "need %d to raise to %d", delta, amount)
		}
		p.Stack -= delta
		p.Bet = amount
		p.TotalBet += delta
		s.pot += delta
		s.currentBet = amount
		s.lastRaiser = p.Seat
		if p.Stack == 0 {
			p.AllIn = true
		}

	case AllIn:
		delta := p.Stack
		if delta == 0 {
			return validationErrorf(CodeInvalidAction, "already all in")
		}
		p.Stack = 0
		p.Bet += delta
		p.TotalBet += delta
		s.pot += delta
		p.AllIn = true
		if p.Bet > s.currentBet {
			s.currentBet = p.Bet
			s.lastRaiser = p.Seat
		}

	default:
		return validationErrorf(CodeInvalidAction, "unknown action %q", action)
	}

	p.LastAction = action
	s.actionCount++
	s.stopTurnTimer()

	if err := s.checkInvariants(); err != nil {
		s.logger.Error("invariant check failed after action", "err", err)
	}

	// NextToAct is -1 when this action closed the round or the hand;
	// a new round announces its own opener in round-started.
	next := -1
	if len(s.activePlayers()) > 1 && !s.rules.roundComplete(s) {
		next = s.nextActingSeat(s.currentTurn)
	}
	s.sink.Broadcast(s.cfg.RoomID, ActionApplied{
		UserID:     p.UserID,
		Seat:       p.Seat,
		Action:     action,
		Amount:     amount,
		Pot:        s.pot,
		CurrentBet: s.currentBet,
		NextToAct:  next,
	})

	s.advance()
	return nil
}

// advance moves the hand forward after an accepted action: settle a
// fold-win, close a completed round, or pass the turn.
func (s *Session) advance() {
	active := s.activePlayers()
	if len(active) == 1 {
		s.settle("fold", active)
		return
	}

	if s.rules.roundComplete(s) {
		s.nextRound()
		return
	}

	s.currentTurn = s.nextActingSeat(s.currentTurn)
	if s.currentTurn < 0 {
		s.nextRound()
		return
	}
	s.armTurnTimer()
	s.broadcastState()
}

// nextRound closes the current betting round and opens the next, or
// goes to showdown after the last one. Rounds where fewer than two
// players can still act are dealt and skipped.
func (s *Session) nextRound() {
	for {
		s.state = StateRoundComplete
		s.sink.Broadcast(s.cfg.RoomID, RoundEnded{
			Round:     s.round,
			RoundName: s.rules.roundName(s.round),
			Pot:       s.pot,
			Board:     s.board,
			Visible:   s.visibleBySeat(),
		})

		for _, p := range s.players {
			p.Bet = 0
			p.LastAction = waiting
		}
		s.currentBet = 0
		s.lastRaiser = -1
		s.actionCount = 0

		if s.round >= s.rules.roundCount() {
			s.settle("showdown", s.activePlayers())
			return
		}

		s.round++
		s.state = StateDealing
		total, visible, err := s.rules.dealRound(s, s.round)
		if err != nil {
			// A 52-card deck covers every legal table size, so this
			// only fires on a corrupted session.
			s.logger.Error("deal failed", "round", s.round, "err", err)
			s.settle("showdown", s.activePlayers())
			return
		}

		canAct := 0
		for _, p := range s.players {
			if p.CanAct() {
				canAct++
			}
		}
		if canAct < 2 {
			// Everyone is all in; run out the remaining rounds.
			continue
		}

		s.state = StateBetting
		s.currentTurn = s.rules.firstActor(s, s.round)
		s.armTurnTimer()

		min, max := s.rules.wagerBounds(s)
		s.sink.Broadcast(s.cfg.RoomID, RoundStarted{
			Round:      s.round,
			RoundName:  s.rules.roundName(s.round),
			CardsDealt: total,
			Visible:    visible,
			FirstToAct: s.currentTurn,
			MinWager:   min,
			MaxWager:   max,
		})
		s.broadcastState()
		return
	}
}

// settle ends the hand: picks winners, takes the rake, credits stacks,
// hands the record to the ledger and schedules the reset to waiting.
func (s *Session) settle(reason string, active []*Player) {
	if reason == "showdown" {
		s.state = StateShowdown
	}
	s.state = StateSettling
	s.stopTurnTimer()

	type showdownHand struct {
		player *Player
		hand   evaluator.RankedHand
	}

	var winners []*Player
	hands := make(map[int]evaluator.RankedHand)
	if reason == "fold" || len(active) == 1 {
		winners = active
	} else {
		var ranked []showdownHand
		for _, p := range active {
			cards := p.Cards
			if s.cfg.Variant == VariantHoldem {
				cards = append(append([]deck.Card{}, p.Cards...), s.board...)
			}
			hand, err := s.eval.Evaluate(cards)
			if err != nil {
				s.logger.Error("hand evaluation failed", "seat", p.Seat, "err", err)
				continue
			}
			hands[p.Seat] = hand
			ranked = append(ranked, showdownHand{player: p, hand: hand})
		}
		sort.Slice(ranked, func(i, j int) bool {
			return s.eval.Compare(ranked[i].hand, ranked[j].hand) > 0
		})
		if len(ranked) == 0 {
			// Nothing evaluated, which only happens on a corrupted
			// session. Split among whoever is still in.
			winners = active
		} else {
			winners = []*Player{ranked[0].player}
			for _, sh := range ranked[1:] {
				if s.eval.Compare(sh.hand, ranked[0].hand) == 0 {
					winners = append(winners, sh.player)
				} else {
					break
				}
			}
		}
	}

	rake, jackpot, share := settleAmounts(s.pot, s.cfg.RakePercent, s.cfg.JackpotPercent, len(winners))

	winnerSeats := make(map[int]bool, len(winners))
	for _, w := range winners {
		w.Stack += share
		winnerSeats[w.Seat] = true
	}

	settlementID := uuid.NewString()
	record := ledger.Settlement{
		ID:        settlementID,
		RoomID:    s.cfg.RoomID,
		Variant:   s.cfg.Variant,
		Pot:       s.pot,
		Rake:      rake,
		Jackpot:   jackpot,
		StartedAt: s.startedAt,
		EndedAt:   s.clock.Now(),
	}
	winDesc := fmt.Sprintf("%s win by fold", s.cfg.Variant)
	if h, ok := hands[winners[0].Seat]; ok {
		winDesc = fmt.Sprintf("%s win: %s", s.cfg.Variant, h.Name)
	}
	for _, w := range winners {
		record.Entries = append(record.Entries, ledger.Entry{
			UserID:      w.UserID,
			Type:        ledger.EntryGameWin,
			Amount:      share,
			Description: winDesc,
		})
	}
	record.Entries = append(record.Entries,
		ledger.Entry{Type: ledger.EntryRake, Amount: rake},
		ledger.Entry{Type: ledger.EntryJackpot, Amount: jackpot},
	)

	settled := make([]SettledPlayer, 0, len(s.players))
	for _, p := range s.players {
		sp := SettledPlayer{
			UserID: p.UserID,
			Seat:   p.Seat,
			Cards:  p.Cards,
			Folded: p.Folded,
			Winner: winnerSeats[p.Seat],
		}
		if h, ok := hands[p.Seat]; ok {
			sp.HandName = h.Name
		}
		if sp.Winner {
			sp.Payout = share
		}
		settled = append(settled, sp)
	}

	winnerList := make([]int, 0, len(winners))
	for _, w := range winners {
		winnerList = append(winnerList, w.Seat)
	}

	s.state = StateFinished
	s.settled = true
	s.currentTurn = -1

	s.logger.Info("hand settled",
		"reason", reason, "pot", s.pot, "rake", rake, "winners", winnerList, "share", share)

	s.sink.Broadcast(s.cfg.RoomID, GameEnded{
		SettlementID: settlementID,
		Reason:       reason,
		Winners:      winnerList,
		WinAmount:    share,
		Pot:          s.pot,
		Rake:         rake,
		Jackpot:      jackpot,
		Players:      settled,
		Board:        s.board,
	})
	s.broadcastState()

	// Ledger delivery must not hold the session lock or block play.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.ledger.RecordSettlement(ctx, record); err != nil {
			s.logger.Error("settlement record failed", "settlement", settlementID, "err", err)
		}
	}()

	s.resetTimer = s.clock.AfterFunc(s.cfg.ResetDelay, s.resetToWaiting)
}

// settleAmounts splits a pot: the rake comes off the top, the jackpot
// contribution is recorded but not deducted, and each winner gets the
// floor of an equal share of the net pot. The floor remainder is not
// distributed.
func settleAmounts(pot, rakePercent, jackpotPercent, winners int) (rake, jackpot, share int) {
	rake = pot * rakePercent / 100
	jackpot = pot * jackpotPercent / 100
	share = (pot - rake) / winners
	return rake, jackpot, share
}

// SetDeck replaces the deck used for the next Start. Deterministic
// replays and tests only; a nil deck restores the seeded shuffle.
func (s *Session) SetDeck(d *deck.Deck) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.presetDeck = d
}

// resetToWaiting returns the room to the waiting state once the
// post-settlement display delay passes.
func (s *Session) resetToWaiting() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.state != StateFinished {
		return
	}
	s.state = StateWaiting
	s.sink.Broadcast(s.cfg.RoomID, RoomReset{RoomID: s.cfg.RoomID})
}

// --- turn timer ---

func (s *Session) armTurnTimer() {
	s.stopTurnTimer()
	if s.currentTurn < 0 {
		return
	}
	s.turnEpoch++
	epoch := s.turnEpoch
	seat := s.currentTurn
	s.turnTimer = s.clock.AfterFunc(s.cfg.TurnTimeout, func() {
		s.expireTurn(seat, epoch)
	})
}

func (s *Session) stopTurnTimer() {
	if s.turnTimer != nil {
		s.turnTimer.Stop()
		s.turnTimer = nil
	}
}

// expireTurn is the timer callback. The epoch check makes it a no-op
// when an action for the same turn won the race.
func (s *Session) expireTurn(seat int, epoch uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.state != StateBetting {
		return
	}
	if s.currentTurn != seat || s.turnEpoch != epoch {
		return
	}
	p := s.playerBySeat(seat)
	if p == nil {
		return
	}

	s.logger.Info("turn timer expired, folding", "seat", seat, "user", p.UserID)
	s.sink.Broadcast(s.cfg.RoomID, PlayerTimeout{UserID: p.UserID, Seat: seat})
	if err := s.applyTurn(p, Fold, 0); err != nil {
		s.logger.Error("timeout fold rejected", "seat", seat, "err", err)
	}
}

// --- accessors ---

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Replaceable reports whether the registry may discard this session in
// favor of a new one: the hand is settled or the session is closed.
func (s *Session) Replaceable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed || s.settled
}

// Close stops all timers. The session cannot be used afterwards.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.stopTurnTimer()
	if s.resetTimer != nil {
		s.resetTimer.Stop()
		s.resetTimer = nil
	}
}

// --- helpers (caller holds the lock) ---

func (s *Session) playerByUser(userID string) *Player {
	for _, p := range s.players {
		if p.UserID == userID {
			return p
		}
	}
	return nil
}

func (s *Session) playerBySeat(seat int) *Player {
	for _, p := range s.players {
		if p.Seat == seat {
			return p
		}
	}
	return nil
}

func indexOf(players []*Player, seat int) int {
	for i, p := range players {
		if p.Seat == seat {
			return i
		}
	}
	return -1
}

// nextSeat returns the seat after the given one in seat order,
// wrapping around the table.
func (s *Session) nextSeat(seat int) int {
	idx := indexOf(s.players, seat)
	return s.players[(idx+1)%len(s.players)].Seat
}

// nextActingSeat returns the first seat after the given one whose
// player can still act, or -1 if nobody can.
func (s *Session) nextActingSeat(seat int) int {
	next := s.nextSeat(seat)
	for i := 0; i < len(s.players); i++ {
		if p := s.playerBySeat(next); p != nil && p.CanAct() {
			return next
		}
		next = s.nextSeat(next)
	}
	return -1
}

// visibleBySeat collects each seat's face-up cards, or nil when none
// are showing.
func (s *Session) visibleBySeat() map[int][]deck.Card {
	out := make(map[int][]deck.Card)
	for _, p := range s.players {
		if len(p.Visible) > 0 {
			out[p.Seat] = p.Visible
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func (s *Session) activePlayers() []*Player {
	var out []*Player
	for _, p := range s.players {
		if p.Active() {
			out = append(out, p)
		}
	}
	return out
}

// post takes a forced bet, capped at the player's stack.
func (s *Session) post(p *Player, amount int) {
	if amount > p.Stack {
		amount = p.Stack
	}
	p.Stack -= amount
	p.Bet += amount
	p.TotalBet += amount
	s.pot += amount
	if p.Stack == 0 {
		p.AllIn = true
	}
}

// checkInvariants verifies the pot equals the sum of all bets.
func (s *Session) checkInvariants() error {
	total := 0
	for _, p := range s.players {
		total += p.TotalBet
	}
	if total != s.pot {
		return &InvariantViolation{
			RoomID: s.cfg.RoomID,
			Detail: fmt.Sprintf("pot %d != sum of bets %d", s.pot, total),
		}
	}
	return nil
}
