package game

import "github.com/bjtj/bjtj/internal/deck"

// dealerPlay draws cards into the dealer hand until the stand threshold.
// The dealer hits below 17 and, when StandOnSoft17 is off, also hits a soft
// 17. Deterministic given the shoe order and the rules.
func dealerPlay(dealer *DealerHand, shoe *deck.Shoe, rules Rules) error {
	for {
		score := dealer.Score(rules)
		if score.Bust {
			return nil
		}
		if score.Total > 17 {
			return nil
		}
		if score.Total == 17 && (rules.StandOnSoft17 || !score.Soft) {
			return nil
		}

		card, err := shoe.Draw()
		if err != nil {
			return err
		}
		dealer.Cards = append(dealer.Cards, card)
	}
}
