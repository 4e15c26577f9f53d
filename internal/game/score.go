package game

import "github.com/bjtj/bjtj/internal/deck"

// Score is the best blackjack evaluation of a set of cards.
type Score struct {
	Total     int
	Soft      bool
	Blackjack bool
	Bust      bool
}

// ScoreCards computes the best total for the given cards. Aces start at 11
// and are demoted to 1 one at a time while the total exceeds 21. fromSplit
// suppresses blackjack: a two-card 21 on a split hand scores as a plain 21
// unless the house rule says otherwise.
func ScoreCards(cards []deck.Card, fromSplit bool, rules Rules) Score {
	total := 0
	softAces := 0
	for _, c := range cards {
		total += c.Points()
		if c.IsAce() {
			softAces++
		}
	}

	for total > 21 && softAces > 0 {
		total -= 10
		softAces--
	}

	blackjack := len(cards) == 2 && total == 21
	if fromSplit && !rules.SplitBlackjack {
		blackjack = false
	}

	return Score{
		Total:     total,
		Soft:      softAces > 0,
		Blackjack: blackjack,
		Bust:      total > 21,
	}
}

// Score evaluates the hand under the given rules.
func (h Hand) Score(rules Rules) Score {
	return ScoreCards(h.Cards, h.FromSplit, rules)
}

// Score evaluates the dealer hand. The dealer is never a split hand.
func (d DealerHand) Score(rules Rules) Score {
	return ScoreCards(d.Cards, false, rules)
}
