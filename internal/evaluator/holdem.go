package evaluator

import (
	"fmt"

	"github.com/lox/cardroom/internal/deck"
)

// HoldemEvaluator ranks community-card poker hands: the best five cards
// out of two hole cards plus the board. Ties are broken by the rank
// values of the winning five cards in descending order; suits never
// break holdem ties, so exact ties split the pot.
type HoldemEvaluator struct{}

// Evaluate picks the best five-card hand from 5 to 7 cards.
func (HoldemEvaluator) Evaluate(cards []deck.Card) (RankedHand, error) {
	if len(cards) < 5 {
		return RankedHand{}, fmt.Errorf("holdem evaluation needs at least 5 cards, got %d", len(cards))
	}
	var best RankedHand
	for _, combo := range combinations(cards, 5) {
		hand := evaluateFive(combo)
		if best.Category == NoCards || (HoldemEvaluator{}).Compare(hand, best) > 0 {
			best = hand
		}
	}
	return best, nil
}

// Compare orders two holdem hands by category, then by descending rank
// values of the five cards.
func (HoldemEvaluator) Compare(a, b RankedHand) int {
	if a.Category != b.Category {
		return int(a.Category) - int(b.Category)
	}
	return compareCards(a.Cards, b.Cards, false)
}

func evaluateFive(cards []deck.Card) RankedHand {
	sorted := sortDesc(cards, false)
	flush := isFlush(cards)
	straight := isStraight(sorted)
	groups := rankGroups(cards)

	category := HighCard
	switch {
	case flush && straight && sorted[0].Rank == deck.Ace && sorted[1].Rank == deck.King:
		category = RoyalFlush
	case flush && straight:
		category = StraightFlush
	case len(groups[0]) == 4:
		category = Quads
	case len(groups[0]) == 3 && len(groups[1]) == 2:
		category = FullHouse
	case flush:
		category = Flush
	case straight:
		category = Straight
	case len(groups[0]) == 3:
		category = Trips
	case len(groups[0]) == 2 && len(groups[1]) == 2:
		category = TwoPair
	case len(groups[0]) == 2:
		category = Pair
	}

	return RankedHand{
		Category: category,
		Name:     category.String(),
		Cards:    tiebreakOrder(sorted, groups, straight),
	}
}

// combinations returns every k-card subset in deterministic order.
func combinations(cards []deck.Card, k int) [][]deck.Card {
	if k == 1 {
		out := make([][]deck.Card, len(cards))
		for i, c := range cards {
			out[i] = []deck.Card{c}
		}
		return out
	}
	var out [][]deck.Card
	for i := 0; i <= len(cards)-k; i++ {
		for _, tail := range combinations(cards[i+1:], k-1) {
			combo := make([]deck.Card, 0, k)
			combo = append(combo, cards[i])
			combo = append(combo, tail...)
			out = append(out, combo)
		}
	}
	return out
}
