// Package ledger records the money movements of settled hands.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Entry types.
const (
	EntryGameWin = "game-win"
	EntryBuyIn   = "buy-in"
	EntryCashOut = "cash-out"
	EntryRake    = "rake"
	EntryJackpot = "jackpot"
)

// Entry is one account movement within a settlement.
type Entry struct {
	UserID        string `json:"user_id,omitempty"`
	Type          string `json:"type"`
	Amount        int    `json:"amount"`
	BalanceBefore int    `json:"balance_before"`
	BalanceAfter  int    `json:"balance_after"`
	Description   string `json:"description,omitempty"`
}

// Settlement is the financial outcome of one hand. The ID is a UUID
// and the idempotency key: recording the same settlement twice must
// apply it once.
type Settlement struct {
	ID        string    `json:"id"`
	RoomID    string    `json:"room_id"`
	Variant   string    `json:"variant"`
	Pot       int       `json:"pot"`
	Rake      int       `json:"rake"`
	Jackpot   int       `json:"jackpot"`
	Entries   []Entry   `json:"entries"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
}

// ErrInsufficientFunds is returned by Debit when the account cannot
// cover the amount.
var ErrInsufficientFunds = errors.New("insufficient funds")

// Ledger is the money collaborator of the game engine. All methods are
// safe for concurrent use.
type Ledger interface {
	// Debit removes funds from a user's balance.
	Debit(ctx context.Context, userID string, amount int) error
	// Credit adds funds to a user's balance.
	Credit(ctx context.Context, userID string, amount int) error
	// RecordSettlement applies a hand's entries, idempotent on the
	// settlement ID.
	RecordSettlement(ctx context.Context, s Settlement) error
}

// Memory is an in-process Ledger for tests and single-node tables.
type Memory struct {
	mu       sync.Mutex
	balances map[string]int
	applied  map[string]bool
	history  []Settlement
}

// NewMemory creates an empty in-memory ledger.
func NewMemory() *Memory {
	return &Memory{
		balances: make(map[string]int),
		applied:  make(map[string]bool),
	}
}

// Debit removes funds, failing if the balance cannot cover the amount.
func (m *Memory) Debit(_ context.Context, userID string, amount int) error {
	if amount < 0 {
		return fmt.Errorf("debit amount must be positive, got %d", amount)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.balances[userID] < amount {
		return fmt.Errorf("debit %d from %s: %w", amount, userID, ErrInsufficientFunds)
	}
	m.balances[userID] -= amount
	return nil
}

// Credit adds funds to a balance, creating the account if needed.
func (m *Memory) Credit(_ context.Context, userID string, amount int) error {
	if amount < 0 {
		return fmt.Errorf("credit amount must be positive, got %d", amount)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[userID] += amount
	return nil
}

// RecordSettlement applies the settlement's entries once, stamping the
// balance on either side of each account movement.
func (m *Memory) RecordSettlement(_ context.Context, s Settlement) error {
	if s.ID == "" {
		return errors.New("settlement has no id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.applied[s.ID] {
		return nil
	}
	entries := make([]Entry, len(s.Entries))
	copy(entries, s.Entries)
	for i := range entries {
		e := &entries[i]
		if e.UserID == "" {
			continue // house entries have no account
		}
		e.BalanceBefore = m.balances[e.UserID]
		m.balances[e.UserID] += e.Amount
		e.BalanceAfter = m.balances[e.UserID]
	}
	s.Entries = entries
	m.applied[s.ID] = true
	m.history = append(m.history, s)
	return nil
}

// Balance returns a user's current balance.
func (m *Memory) Balance(userID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[userID]
}

// Settlements returns the applied settlements in order.
func (m *Memory) Settlements() []Settlement {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Settlement, len(m.history))
	copy(out, m.history)
	return out
}
