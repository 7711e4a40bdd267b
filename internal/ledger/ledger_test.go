package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryDebitCredit(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.Credit(ctx, "alice", 1000))
	assert.Equal(t, 1000, m.Balance("alice"))

	require.NoError(t, m.Debit(ctx, "alice", 400))
	assert.Equal(t, 600, m.Balance("alice"))

	err := m.Debit(ctx, "alice", 601)
	require.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Equal(t, 600, m.Balance("alice"), "a failed debit changes nothing")

	require.ErrorIs(t, m.Debit(ctx, "nobody", 1), ErrInsufficientFunds)
	require.Error(t, m.Credit(ctx, "alice", -5))
	require.Error(t, m.Debit(ctx, "alice", -5))
}

func TestMemoryRecordSettlementIdempotent(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Credit(ctx, "alice", 1000))

	s := Settlement{
		ID:      "settle-1",
		RoomID:  "room1",
		Variant: "holdem",
		Pot:     150,
		Rake:    7,
		Jackpot: 3,
		Entries: []Entry{
			{UserID: "alice", Type: EntryGameWin, Amount: 143},
			{Type: EntryRake, Amount: 7},
			{Type: EntryJackpot, Amount: 3},
		},
	}

	require.NoError(t, m.RecordSettlement(ctx, s))
	assert.Equal(t, 1143, m.Balance("alice"))

	// The applied record carries the balance on either side of the win.
	win := m.Settlements()[0].Entries[0]
	assert.Equal(t, 1000, win.BalanceBefore)
	assert.Equal(t, 1143, win.BalanceAfter)

	// Replaying the same settlement must not pay twice.
	require.NoError(t, m.RecordSettlement(ctx, s))
	assert.Equal(t, 1143, m.Balance("alice"))
	assert.Len(t, m.Settlements(), 1)

	require.Error(t, m.RecordSettlement(ctx, Settlement{}), "a settlement needs an id")
}

func TestMemoryHouseEntriesHaveNoAccount(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.RecordSettlement(ctx, Settlement{
		ID: "settle-2",
		Entries: []Entry{
			{Type: EntryRake, Amount: 50},
			{Type: EntryJackpot, Amount: 20},
		},
	}))

	// Rake and jackpot are recorded on the settlement, not on any
	// player balance.
	assert.Equal(t, 0, m.Balance(""))
	require.Len(t, m.Settlements(), 1)
	assert.Equal(t, 50, m.Settlements()[0].Entries[0].Amount)
}
