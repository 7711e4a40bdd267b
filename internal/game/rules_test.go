package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBettingStructure(t *testing.T) {
	tests := []struct {
		name      string
		structure string
		unit      int
		wantErr   bool
		ante      int
		roundBets [5]int
	}{
		{
			name:      "default structure and unit",
			structure: "",
			unit:      0,
			ante:      1000,
			roundBets: [5]int{1000, 2000, 3000, 3000, 3000},
		},
		{
			name:      "explicit 1-2-3-3",
			structure: "1-2-3-3",
			unit:      500,
			ante:      500,
			roundBets: [5]int{500, 1000, 1500, 1500, 1500},
		},
		{
			name:      "short structure carries the last part through",
			structure: "1-2",
			unit:      1000,
			ante:      1000,
			roundBets: [5]int{1000, 2000, 2000, 2000, 2000},
		},
		{
			name:      "steep structure",
			structure: "2-4-8",
			unit:      100,
			ante:      200,
			roundBets: [5]int{200, 400, 800, 800, 800},
		},
		{name: "single part", structure: "1", wantErr: true},
		{name: "too many parts", structure: "1-2-3-4-5", wantErr: true},
		{name: "non-numeric", structure: "1-x-3", wantErr: true},
		{name: "zero part", structure: "1-0-3", wantErr: true},
		{name: "negative part", structure: "1--2", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := parseBettingStructure(tt.structure, tt.unit)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.ante, b.ante)
			assert.Equal(t, tt.roundBets, b.roundBets)
			assert.Equal(t, 3, b.maxFactor)
		})
	}
}

func TestHoldemRoundNames(t *testing.T) {
	r := &holdemRules{smallBlind: 50, bigBlind: 100}
	assert.Equal(t, "pre-flop", r.roundName(1))
	assert.Equal(t, "flop", r.roundName(2))
	assert.Equal(t, "turn", r.roundName(3))
	assert.Equal(t, "river", r.roundName(4))
	assert.Equal(t, 4, r.roundCount())
}

func TestStudDealSchedule(t *testing.T) {
	// Three cards down, then one more per round up to seven, with the
	// face-up count growing alongside.
	wantTotals := []int{3, 4, 5, 6, 7}
	for i, schedule := range studDeals {
		assert.Equal(t, wantTotals[i], schedule.total)
	}
	assert.Equal(t, 0, studDeals[0].visible)
	assert.Equal(t, 5, studDeals[4].visible)
}

func TestParseAction(t *testing.T) {
	for _, valid := range []string{"fold", "check", "call", "raise", "all-in"} {
		action, ok := ParseAction(valid)
		require.True(t, ok, valid)
		assert.Equal(t, Action(valid), action)
	}

	action, ok := ParseAction("bet")
	require.True(t, ok)
	assert.Equal(t, Raise, action)

	_, ok = ParseAction("waiting")
	assert.False(t, ok, "the internal sentinel is not a player action")
	_, ok = ParseAction("shove")
	assert.False(t, ok)
}
