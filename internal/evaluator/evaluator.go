// Package evaluator ranks card hands for the supported game variants.
//
// Both variants share one Category ladder. Holdem never produces Lieng or
// DragonStraight and stud never produces StraightFlush or RoyalFlush, so
// ordinal comparison within a variant is always valid.
package evaluator

import (
	"github.com/lox/cardroom/internal/deck"
)

// Category is a hand category. Higher beats lower within a variant.
type Category int

const (
	NoCards Category = iota
	HighCard
	Pair
	TwoPair
	Lieng // three-card straight flush, stud only
	Trips
	Straight
	Flush
	FullHouse
	Quads
	StraightFlush
	DragonStraight // stud: straight flush of 5+ cards headed A-K
	RoyalFlush
)

// String returns the display name of a category.
func (c Category) String() string {
	switch c {
	case HighCard:
		return "High Card"
	case Pair:
		return "Pair"
	case TwoPair:
		return "Two Pair"
	case Lieng:
		return "Liêng"
	case Trips:
		return "Three of a Kind"
	case Straight:
		return "Straight"
	case Flush:
		return "Flush"
	case FullHouse:
		return "Full House"
	case Quads:
		return "Four of a Kind"
	case StraightFlush:
		return "Straight Flush"
	case DragonStraight:
		return "Sảnh Rồng"
	case RoyalFlush:
		return "Royal Flush"
	default:
		return "No Cards"
	}
}

// RankedHand is the result of evaluating a set of cards.
type RankedHand struct {
	Category Category
	Name     string
	// Cards holds the evaluated cards in tiebreak order (descending).
	Cards []deck.Card
	// Primary holds the cards that made the category. Stud visible-hand
	// ordering compares these before falling back to Cards.
	Primary []deck.Card
}

// Evaluator ranks complete hands for one variant.
type Evaluator interface {
	// Evaluate ranks the given cards at showdown.
	Evaluate(cards []deck.Card) (RankedHand, error)
	// Compare orders two ranked hands: negative if a loses to b,
	// positive if a beats b, zero on an exact tie.
	Compare(a, b RankedHand) int
}

// ForVariant returns the evaluator for a variant name.
func ForVariant(variant string) (Evaluator, bool) {
	switch variant {
	case "holdem":
		return HoldemEvaluator{}, true
	case "stud":
		return StudEvaluator{}, true
	default:
		return nil, false
	}
}

// sortDesc returns the cards sorted descending by rank value. When
// bySuit is set, equal ranks are ordered by suit strength.
func sortDesc(cards []deck.Card, bySuit bool) []deck.Card {
	out := make([]deck.Card, len(cards))
	copy(out, cards)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0; j-- {
			a, b := out[j-1], out[j]
			swap := a.Value() < b.Value()
			if bySuit && a.Value() == b.Value() {
				swap = a.Suit.Strength() < b.Suit.Strength()
			}
			if !swap {
				break
			}
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

func isFlush(cards []deck.Card) bool {
	for _, c := range cards[1:] {
		if c.Suit != cards[0].Suit {
			return false
		}
	}
	return true
}

// isStraight reports whether descending-sorted cards are consecutive.
// The ace may play low (A-2-3 wheels).
func isStraight(sorted []deck.Card) bool {
	if len(sorted) < 3 {
		return false
	}
	values := make([]int, len(sorted))
	for i, c := range sorted {
		values[i] = c.Value()
	}
	if consecutive(values) {
		return true
	}
	if values[0] != int(deck.Ace) {
		return false
	}
	low := append(values[1:len(values):len(values)], 1)
	return consecutive(low)
}

func consecutive(values []int) bool {
	for i := 0; i < len(values)-1; i++ {
		if values[i]-values[i+1] != 1 {
			return false
		}
	}
	return true
}

// rankGroups groups cards by rank, ordered by group size, then rank,
// then strongest suit within the group.
func rankGroups(cards []deck.Card) [][]deck.Card {
	byRank := make(map[deck.Rank][]deck.Card)
	for _, c := range cards {
		byRank[c.Rank] = append(byRank[c.Rank], c)
	}
	groups := make([][]deck.Card, 0, len(byRank))
	for _, g := range byRank {
		groups = append(groups, sortDesc(g, true))
	}
	for i := 1; i < len(groups); i++ {
		for j := i; j > 0; j-- {
			a, b := groups[j-1], groups[j]
			swap := len(a) < len(b)
			if len(a) == len(b) {
				if a[0].Value() != b[0].Value() {
					swap = a[0].Value() < b[0].Value()
				} else {
					swap = a[0].Suit.Strength() < b[0].Suit.Strength()
				}
			}
			if !swap {
				break
			}
			groups[j-1], groups[j] = groups[j], groups[j-1]
		}
	}
	return groups
}

// tiebreakOrder arranges cards for pairwise comparison: grouped hands
// compare group-major (the trips of a full house before its pair, a
// pair before its kickers), and a wheel straight plays the ace low.
func tiebreakOrder(sorted []deck.Card, groups [][]deck.Card, straight bool) []deck.Card {
	if straight {
		if sorted[0].Rank == deck.Ace && sorted[1].Rank != deck.King {
			// Wheel: the ace ranks below the rest.
			out := make([]deck.Card, 0, len(sorted))
			out = append(out, sorted[1:]...)
			return append(out, sorted[0])
		}
		return sorted
	}
	out := make([]deck.Card, 0, len(sorted))
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

// compareCards compares tiebreak card lists pairwise over their common
// length. Suits only count when bySuit is set.
func compareCards(a, b []deck.Card, bySuit bool) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if d := a[i].Value() - b[i].Value(); d != 0 {
			return d
		}
		if bySuit {
			if d := a[i].Suit.Strength() - b[i].Suit.Strength(); d != 0 {
				return d
			}
		}
	}
	return 0
}
