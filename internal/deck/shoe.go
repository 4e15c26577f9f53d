package deck

import (
	"errors"
	rand "math/rand/v2"
)

// ErrShoeExhausted indicates a draw from an empty shoe. A correctly sized
// shoe never runs out within a single round, so this is a configuration
// fault rather than a normal game outcome.
var ErrShoeExhausted = errors.New("deck: shoe exhausted")

// Shoe is the ordered sequence of cards available to deal for one round.
// It is owned exclusively by that round and replaced wholesale at the next
// deal; nothing is ever put back.
type Shoe struct {
	Cards []Card `json:"cards"`
}

// NewShoe builds a shuffled shoe of the given number of 52-card decks.
// The rng must be seeded unpredictably; see randutil.NewUnpredictable.
func NewShoe(decks int, rng *rand.Rand) *Shoe {
	if decks < 1 {
		decks = 1
	}

	cards := make([]Card, 0, decks*52)
	for d := 0; d < decks; d++ {
		for suit := Spades; suit <= Clubs; suit++ {
			for rank := Two; rank <= Ace; rank++ {
				cards = append(cards, NewCard(rank, suit))
			}
		}
	}

	// Fisher-Yates
	for i := len(cards) - 1; i > 0; i-- {
		j := rng.IntN(i + 1)
		cards[i], cards[j] = cards[j], cards[i]
	}

	return &Shoe{Cards: cards}
}

// NewStackedShoe builds a shoe with the given cards on top, in draw order.
// Test helper for deterministic deals.
func NewStackedShoe(cards ...Card) *Shoe {
	stacked := make([]Card, len(cards))
	copy(stacked, cards)
	return &Shoe{Cards: stacked}
}

// Draw removes and returns the next card from the shoe.
func (s *Shoe) Draw() (Card, error) {
	if len(s.Cards) == 0 {
		return Card{}, ErrShoeExhausted
	}
	card := s.Cards[0]
	s.Cards = s.Cards[1:]
	return card, nil
}

// Remaining returns the number of cards left in the shoe.
func (s *Shoe) Remaining() int {
	return len(s.Cards)
}

// Clone returns a deep copy of the shoe.
func (s *Shoe) Clone() *Shoe {
	if s == nil {
		return nil
	}
	cards := make([]Card, len(s.Cards))
	copy(cards, s.Cards)
	return &Shoe{Cards: cards}
}
