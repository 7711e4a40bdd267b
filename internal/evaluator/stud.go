package evaluator

import (
	"fmt"

	"github.com/lox/cardroom/internal/deck"
)

// StudEvaluator ranks progressive-reveal stud hands. Unlike holdem
// there is no best-five selection: the full card set is evaluated as
// dealt, so a flush needs every card in one suit. Suit strength
// (♠ > ♣ > ♦ > ♥) breaks equal ranks, which totally orders showdowns.
//
// Two hands outside the poker ladder: Liêng, a straight flush of
// exactly three cards, ranks above two pair and below trips; Sảnh Rồng,
// a straight flush of five or more cards headed A-K, beats everything.
// A longer straight flush not headed A-K only counts as a flush.
type StudEvaluator struct{}

// Evaluate ranks a complete stud hand of 3 to 7 cards.
func (StudEvaluator) Evaluate(cards []deck.Card) (RankedHand, error) {
	if len(cards) < 3 {
		return RankedHand{}, fmt.Errorf("stud evaluation needs at least 3 cards, got %d", len(cards))
	}
	sorted := sortDesc(cards, true)
	flush := isFlush(cards)
	straight := isStraight(sorted)
	groups := rankGroups(cards)

	category := HighCard
	switch {
	case flush && straight && len(cards) == 3:
		category = Lieng
	case flush && straight && len(cards) >= 5 &&
		sorted[0].Rank == deck.Ace && sorted[1].Rank == deck.King:
		category = DragonStraight
	case len(groups[0]) == 4:
		category = Quads
	case len(groups[0]) == 3 && len(groups) > 1 && len(groups[1]) >= 2:
		category = FullHouse
	case flush:
		category = Flush
	case straight:
		category = Straight
	case len(groups[0]) == 3:
		category = Trips
	case len(groups[0]) == 2 && len(groups) > 1 && len(groups[1]) == 2:
		category = TwoPair
	case len(groups[0]) == 2:
		category = Pair
	}

	return RankedHand{
		Category: category,
		Name:     category.String(),
		Cards:    tiebreakOrder(sorted, groups, straight),
	}, nil
}

// Compare orders two stud hands by category, then card by card on
// (rank, suit strength). Distinct hands never tie.
func (StudEvaluator) Compare(a, b RankedHand) int {
	if a.Category != b.Category {
		return int(a.Category) - int(b.Category)
	}
	return compareCards(a.Cards, b.Cards, true)
}

// EvaluateVisible ranks a player's face-up cards to decide who acts
// first in rounds after the opening one. Only paired categories and
// high card are possible from 2 to 5 visible cards.
func (StudEvaluator) EvaluateVisible(cards []deck.Card) RankedHand {
	if len(cards) == 0 {
		return RankedHand{Category: NoCards, Name: NoCards.String()}
	}
	sorted := sortDesc(cards, true)
	groups := rankGroups(cards)

	var category Category
	var primary []deck.Card
	switch {
	case len(groups[0]) == 4:
		category = Quads
		primary = groups[0]
	case len(groups[0]) == 3:
		category = Trips
		primary = groups[0]
	case len(groups[0]) == 2 && len(groups) > 1 && len(groups[1]) == 2:
		category = TwoPair
		primary = append(append([]deck.Card{}, groups[0]...), groups[1]...)
	case len(groups[0]) == 2:
		category = Pair
		primary = groups[0]
	default:
		category = HighCard
		primary = sorted[:1]
	}

	return RankedHand{
		Category: category,
		Name:     category.String(),
		Cards:    sorted,
		Primary:  primary,
	}
}

// CompareVisible orders visible partial hands: category, then the
// category-making cards, then all cards, with suit strength breaking
// equal ranks throughout.
func (StudEvaluator) CompareVisible(a, b RankedHand) int {
	if a.Category != b.Category {
		return int(a.Category) - int(b.Category)
	}
	if d := compareCards(a.Primary, b.Primary, true); d != 0 {
		return d
	}
	return compareCards(a.Cards, b.Cards, true)
}
