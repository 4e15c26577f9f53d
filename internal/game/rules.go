package game

import "fmt"

// Rules holds the house rules for a table. The zero value is not usable;
// start from DefaultRules.
type Rules struct {
	// Decks is the number of 52-card decks in a fresh shoe.
	Decks int

	// StandOnSoft17 makes the dealer stand on soft 17 instead of hitting it.
	StandOnSoft17 bool

	// SplitBlackjack scores a two-card 21 on a split hand as blackjack.
	// Off by convention: split 21s pay as normal 21s.
	SplitBlackjack bool

	// DoubleAfterSplit permits DOUBLE as the first action on a split hand.
	DoubleAfterSplit bool

	// BlackjackNum/BlackjackDen express the blackjack profit ratio (3:2).
	BlackjackNum int
	BlackjackDen int

	// MaxHands caps the number of hands a split can produce.
	MaxHands int

	// StartingChips seeds a new account at autograph time.
	StartingChips int

	// DefaultBet is staked when DEAL carries no explicit bet.
	DefaultBet int
}

// DefaultRules returns the standard table rules.
func DefaultRules() Rules {
	return Rules{
		Decks:            2,
		StandOnSoft17:    true,
		SplitBlackjack:   false,
		DoubleAfterSplit: true,
		BlackjackNum:     3,
		BlackjackDen:     2,
		MaxHands:         2,
		StartingChips:    100,
		DefaultBet:       10,
	}
}

// Validate checks the rules for internal consistency.
func (r Rules) Validate() error {
	if r.Decks < 1 || r.Decks > 8 {
		return fmt.Errorf("decks must be between 1 and 8, got %d", r.Decks)
	}
	if r.BlackjackNum < 1 || r.BlackjackDen < 1 {
		return fmt.Errorf("blackjack payout ratio must be positive, got %d:%d", r.BlackjackNum, r.BlackjackDen)
	}
	if r.MaxHands < 1 {
		return fmt.Errorf("max hands must be at least 1, got %d", r.MaxHands)
	}
	if r.StartingChips < 0 {
		return fmt.Errorf("starting chips must not be negative, got %d", r.StartingChips)
	}
	if r.DefaultBet < 1 {
		return fmt.Errorf("default bet must be positive, got %d", r.DefaultBet)
	}
	return nil
}

// blackjackProfit returns the profit on a winning blackjack bet.
func (r Rules) blackjackProfit(bet int) int {
	return bet * r.BlackjackNum / r.BlackjackDen
}
