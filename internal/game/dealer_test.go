package game

import (
	"testing"

	"github.com/bjtj/bjtj/internal/deck"
)

func TestDealerStandsOnHard17(t *testing.T) {
	t.Parallel()

	dealer := DealerHand{Cards: cards(deck.Ten, deck.Seven)}
	shoe := deck.NewStackedShoe(cards(deck.Five)...)

	if err := dealerPlay(&dealer, shoe, DefaultRules()); err != nil {
		t.Fatalf("dealerPlay: %v", err)
	}
	if len(dealer.Cards) != 2 {
		t.Errorf("dealer should stand on hard 17, drew to %d cards", len(dealer.Cards))
	}
}

func TestDealerDrawsTo17(t *testing.T) {
	t.Parallel()

	dealer := DealerHand{Cards: cards(deck.Two, deck.Three)}
	shoe := deck.NewStackedShoe(cards(deck.Five, deck.Four, deck.Nine, deck.King)...)

	if err := dealerPlay(&dealer, shoe, DefaultRules()); err != nil {
		t.Fatalf("dealerPlay: %v", err)
	}

	// 5 -> 10, 4 -> 14, 9 -> 23: stops on bust, never touches the king.
	score := dealer.Score(DefaultRules())
	if !score.Bust {
		t.Errorf("dealer should have busted, total %d", score.Total)
	}
	if len(dealer.Cards) != 5 {
		t.Errorf("dealer should hold 5 cards, got %d", len(dealer.Cards))
	}
	if shoe.Remaining() != 1 {
		t.Errorf("dealer must stop drawing on bust, %d cards left in shoe", shoe.Remaining())
	}
}

func TestDealerSoft17(t *testing.T) {
	t.Parallel()

	rules := DefaultRules()

	// Stand on soft 17: A+6 stays at two cards.
	stand := DealerHand{Cards: cards(deck.Ace, deck.Six)}
	shoe := deck.NewStackedShoe(cards(deck.Two)...)
	rules.StandOnSoft17 = true
	if err := dealerPlay(&stand, shoe, rules); err != nil {
		t.Fatalf("dealerPlay: %v", err)
	}
	if len(stand.Cards) != 2 {
		t.Errorf("dealer should stand on soft 17, drew to %d cards", len(stand.Cards))
	}

	// Hit soft 17: A+6 draws, then A+6+2 is a hard 19 and stands.
	hit := DealerHand{Cards: cards(deck.Ace, deck.Six)}
	shoe = deck.NewStackedShoe(cards(deck.Two, deck.Nine)...)
	rules.StandOnSoft17 = false
	if err := dealerPlay(&hit, shoe, rules); err != nil {
		t.Fatalf("dealerPlay: %v", err)
	}
	if len(hit.Cards) != 3 {
		t.Errorf("dealer should hit soft 17 once, drew to %d cards", len(hit.Cards))
	}
	if total := hit.Score(rules).Total; total != 19 {
		t.Errorf("dealer should finish on 19, got %d", total)
	}
}

func TestDealerDeterministicGivenShoe(t *testing.T) {
	t.Parallel()

	run := func() DealerHand {
		dealer := DealerHand{Cards: cards(deck.Two, deck.Ten)}
		shoe := deck.NewStackedShoe(cards(deck.Four, deck.Three, deck.Eight)...)
		if err := dealerPlay(&dealer, shoe, DefaultRules()); err != nil {
			t.Fatalf("dealerPlay: %v", err)
		}
		return dealer
	}

	a, b := run(), run()
	if len(a.Cards) != len(b.Cards) {
		t.Fatalf("dealer play must be deterministic: %d vs %d cards", len(a.Cards), len(b.Cards))
	}
	for i := range a.Cards {
		if a.Cards[i] != b.Cards[i] {
			t.Errorf("card %d differs: %s vs %s", i, a.Cards[i], b.Cards[i])
		}
	}
}
