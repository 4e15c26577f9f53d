package game

// settleHand returns the chips credited back to the balance for one resolved
// hand. Bets were debited when placed, so a loss credits nothing, a push
// credits the bet, a win credits twice the bet, and a blackjack credits the
// bet plus the configured profit ratio.
func settleHand(hand Hand, dealer DealerHand, rules Rules) int {
	score := hand.Score(rules)
	dealerScore := dealer.Score(rules)

	switch {
	case score.Bust:
		return 0
	case score.Blackjack && dealerScore.Blackjack:
		return hand.Bet
	case score.Blackjack:
		return hand.Bet + rules.blackjackProfit(hand.Bet)
	case dealerScore.Blackjack:
		// Dealer blackjack beats any non-blackjack hand, even a 21.
		return 0
	case dealerScore.Bust:
		return 2 * hand.Bet
	case score.Total > dealerScore.Total:
		return 2 * hand.Bet
	case score.Total == dealerScore.Total:
		return hand.Bet
	default:
		return 0
	}
}
