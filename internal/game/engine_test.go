package game

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/bjtj/bjtj/internal/deck"
)

func testLogger() *log.Logger {
	return log.New(io.Discard)
}

// stackedEngine returns an engine whose next shoe deals the given cards in
// order: player, dealer, player, dealer, then hits.
func stackedEngine(t *testing.T, rules Rules, stack ...deck.Card) *Engine {
	t.Helper()
	return NewEngine(rules, testLogger(), WithShoeFunc(func() *deck.Shoe {
		return deck.NewStackedShoe(stack...)
	}))
}

func newTestState(chips int) *GameState {
	gs := NewGameState("0xabc", DefaultRules())
	gs.Account.Chips = chips
	return gs
}

func TestDealOpeningBlackjack(t *testing.T) {
	t.Parallel()

	// Shoe top order player, dealer, player, dealer: [10♣ 9♦ A♠ 6♥].
	engine := stackedEngine(t, DefaultRules(),
		deck.NewCard(deck.Ten, deck.Clubs),
		deck.NewCard(deck.Nine, deck.Diamonds),
		deck.NewCard(deck.Ace, deck.Spades),
		deck.NewCard(deck.Six, deck.Hearts),
	)

	next, view, err := engine.Apply("p1", newTestState(100), ActionDeal, ActionArgs{Bet: 10})
	if err != nil {
		t.Fatalf("DEAL: %v", err)
	}

	if next.Phase != PhaseSettled {
		t.Fatalf("opening blackjack should settle immediately, phase %s", next.Phase)
	}
	if next.Hands[0].Status != HandBlackjack {
		t.Errorf("hand status = %s, want blackjack", next.Hands[0].Status)
	}
	if next.Account.Chips != 115 {
		t.Errorf("blackjack on bet 10 from 100 should leave 115 chips, got %d", next.Account.Chips)
	}
	if !next.Dealer.Revealed {
		t.Error("hole card must be revealed at settlement")
	}
	if len(next.Dealer.Cards) != 2 {
		t.Errorf("dealer must not draw against a blackjack, has %d cards", len(next.Dealer.Cards))
	}
	if view.DealerHand == nil {
		t.Error("view should include the revealed dealer hand")
	}
}

func TestDealDebitsBetAndHidesHoleCard(t *testing.T) {
	t.Parallel()

	engine := stackedEngine(t, DefaultRules(),
		deck.NewCard(deck.Ten, deck.Clubs),
		deck.NewCard(deck.Nine, deck.Diamonds),
		deck.NewCard(deck.Six, deck.Spades),
		deck.NewCard(deck.Six, deck.Hearts),
		deck.NewCard(deck.Two, deck.Clubs),
	)

	next, view, err := engine.Apply("p1", newTestState(100), ActionDeal, ActionArgs{Bet: 10})
	if err != nil {
		t.Fatalf("DEAL: %v", err)
	}

	if next.Phase != PhasePlayerTurn {
		t.Fatalf("phase = %s, want player_turn", next.Phase)
	}
	if next.Account.Chips != 90 {
		t.Errorf("chips = %d, want 90 after debiting the bet", next.Account.Chips)
	}
	if view.DealerUpcard != "9♦" {
		t.Errorf("upcard = %q, want 9♦", view.DealerUpcard)
	}
	if view.DealerHand != nil {
		t.Error("dealer hand must stay hidden during the player turn")
	}

	raw, err := json.Marshal(view)
	if err != nil {
		t.Fatalf("marshal view: %v", err)
	}
	if bytes.Contains(raw, []byte("6♥")) {
		t.Error("serialized view leaks the hole card")
	}
	if bytes.Contains(raw, []byte("shoe")) {
		t.Error("serialized view leaks the shoe")
	}
}

func TestDealRejectsOversizedBet(t *testing.T) {
	t.Parallel()

	engine := stackedEngine(t, DefaultRules())
	prev := newTestState(5)

	_, _, err := engine.Apply("p1", prev, ActionDeal, ActionArgs{Bet: 10})
	if !errors.Is(err, ErrInsufficientChips) {
		t.Fatalf("err = %v, want ErrInsufficientChips", err)
	}
	if prev.Account.Chips != 5 {
		t.Errorf("failed action must not mutate state, chips = %d", prev.Account.Chips)
	}
}

func TestHitBustAutoAdvances(t *testing.T) {
	t.Parallel()

	engine := stackedEngine(t, DefaultRules(),
		deck.NewCard(deck.Ten, deck.Clubs),
		deck.NewCard(deck.Nine, deck.Diamonds),
		deck.NewCard(deck.Six, deck.Spades),
		deck.NewCard(deck.Six, deck.Hearts),
		deck.NewCard(deck.Seven, deck.Clubs), // hit: 10+6+7 = 23
	)

	state, _, err := engine.Apply("p1", newTestState(100), ActionDeal, ActionArgs{Bet: 10})
	if err != nil {
		t.Fatalf("DEAL: %v", err)
	}

	next, _, err := engine.Apply("p1", state, ActionHit, ActionArgs{})
	if err != nil {
		t.Fatalf("HIT: %v", err)
	}

	if next.Hands[0].Status != HandBusted {
		t.Errorf("status = %s, want busted", next.Hands[0].Status)
	}
	if len(next.Hands[0].Cards) != 3 {
		t.Errorf("busted hand drew %d cards, want exactly 3", len(next.Hands[0].Cards))
	}
	if next.Phase != PhaseSettled {
		t.Errorf("lone busted hand should settle the round, phase %s", next.Phase)
	}
	if len(next.Dealer.Cards) != 2 {
		t.Errorf("dealer must not draw when every hand busted, has %d cards", len(next.Dealer.Cards))
	}
	if !next.Dealer.Revealed {
		t.Error("hole card is still revealed for transparency")
	}
	if next.Account.Chips != 90 {
		t.Errorf("busted bet stays lost, chips = %d, want 90", next.Account.Chips)
	}
}

func TestHitAt21DoesNotAutoStand(t *testing.T) {
	t.Parallel()

	engine := stackedEngine(t, DefaultRules(),
		deck.NewCard(deck.Ten, deck.Clubs),
		deck.NewCard(deck.Nine, deck.Diamonds),
		deck.NewCard(deck.Six, deck.Spades),
		deck.NewCard(deck.Six, deck.Hearts),
		deck.NewCard(deck.Five, deck.Clubs), // hit: 21
	)

	state, _, err := engine.Apply("p1", newTestState(100), ActionDeal, ActionArgs{Bet: 10})
	if err != nil {
		t.Fatalf("DEAL: %v", err)
	}
	next, _, err := engine.Apply("p1", state, ActionHit, ActionArgs{})
	if err != nil {
		t.Fatalf("HIT: %v", err)
	}

	if next.Phase != PhasePlayerTurn {
		t.Errorf("reaching 21 keeps the turn with the player, phase %s", next.Phase)
	}
	if next.Hands[0].Status != HandActive {
		t.Errorf("status = %s, want active", next.Hands[0].Status)
	}
}

func TestStandRunsDealerAndSettles(t *testing.T) {
	t.Parallel()

	engine := stackedEngine(t, DefaultRules(),
		deck.NewCard(deck.Ten, deck.Clubs),
		deck.NewCard(deck.Nine, deck.Diamonds),
		deck.NewCard(deck.Eight, deck.Spades),
		deck.NewCard(deck.Six, deck.Hearts),
		deck.NewCard(deck.Two, deck.Clubs), // dealer: 9+6+2 = 17
	)

	state, _, err := engine.Apply("p1", newTestState(100), ActionDeal, ActionArgs{Bet: 10})
	if err != nil {
		t.Fatalf("DEAL: %v", err)
	}
	next, view, err := engine.Apply("p1", state, ActionStand, ActionArgs{})
	if err != nil {
		t.Fatalf("STAND: %v", err)
	}

	if next.Phase != PhaseSettled {
		t.Fatalf("phase = %s, want settled", next.Phase)
	}
	// Player 18 beats dealer 17: bet back plus even money.
	if next.Account.Chips != 110 {
		t.Errorf("chips = %d, want 110", next.Account.Chips)
	}
	if view.DealerHand == nil || view.DealerHand.Total != 17 {
		t.Errorf("revealed dealer hand should total 17, got %+v", view.DealerHand)
	}
}

func TestDoubleDrawsExactlyOneCard(t *testing.T) {
	t.Parallel()

	engine := stackedEngine(t, DefaultRules(),
		deck.NewCard(deck.Five, deck.Clubs),
		deck.NewCard(deck.Nine, deck.Diamonds),
		deck.NewCard(deck.Six, deck.Spades),
		deck.NewCard(deck.Eight, deck.Hearts),
		deck.NewCard(deck.Ten, deck.Clubs), // double: 5+6+10 = 21
	)

	state, _, err := engine.Apply("p1", newTestState(100), ActionDeal, ActionArgs{Bet: 10})
	if err != nil {
		t.Fatalf("DEAL: %v", err)
	}
	next, _, err := engine.Apply("p1", state, ActionDouble, ActionArgs{})
	if err != nil {
		t.Fatalf("DOUBLE: %v", err)
	}

	if next.Hands[0].Bet != 20 {
		t.Errorf("bet = %d, want 20 after doubling", next.Hands[0].Bet)
	}
	if len(next.Hands[0].Cards) != 3 {
		t.Errorf("doubled hand has %d cards, want exactly 3", len(next.Hands[0].Cards))
	}
	if next.Hands[0].Status != HandDoubled {
		t.Errorf("status = %s, want doubled", next.Hands[0].Status)
	}
	if next.Phase != PhaseSettled {
		t.Errorf("double auto-advances, phase %s", next.Phase)
	}
	// Player 21 vs dealer 17: 100 - 10 - 10 + 40 = 120.
	if next.Account.Chips != 120 {
		t.Errorf("chips = %d, want 120", next.Account.Chips)
	}
}

func TestDoubleRequiresTwoCardsAndChips(t *testing.T) {
	t.Parallel()

	engine := stackedEngine(t, DefaultRules(),
		deck.NewCard(deck.Two, deck.Clubs),
		deck.NewCard(deck.Nine, deck.Diamonds),
		deck.NewCard(deck.Three, deck.Spades),
		deck.NewCard(deck.Eight, deck.Hearts),
		deck.NewCard(deck.Four, deck.Clubs),
		deck.NewCard(deck.Five, deck.Clubs),
	)

	state, _, err := engine.Apply("p1", newTestState(15), ActionDeal, ActionArgs{Bet: 10})
	if err != nil {
		t.Fatalf("DEAL: %v", err)
	}

	// Only 5 chips left: cannot match the bet.
	if _, _, err := engine.Apply("p1", state, ActionDouble, ActionArgs{}); !errors.Is(err, ErrInsufficientChips) {
		t.Fatalf("err = %v, want ErrInsufficientChips", err)
	}

	// After a hit the hand has three cards; double is no longer legal.
	state.Account.Chips = 100
	state, _, err = engine.Apply("p1", state, ActionHit, ActionArgs{})
	if err != nil {
		t.Fatalf("HIT: %v", err)
	}
	if _, _, err := engine.Apply("p1", state, ActionDouble, ActionArgs{}); !errors.Is(err, ErrInvalidAction) {
		t.Fatalf("err = %v, want ErrInvalidAction", err)
	}
}

func TestSplitPair(t *testing.T) {
	t.Parallel()

	engine := stackedEngine(t, DefaultRules(),
		deck.NewCard(deck.Eight, deck.Clubs),
		deck.NewCard(deck.Nine, deck.Diamonds),
		deck.NewCard(deck.Eight, deck.Spades),
		deck.NewCard(deck.Six, deck.Hearts),
		deck.NewCard(deck.Two, deck.Clubs),   // first split hand's draw
		deck.NewCard(deck.Three, deck.Clubs), // second split hand's draw
	)

	state, _, err := engine.Apply("p1", newTestState(100), ActionDeal, ActionArgs{Bet: 10})
	if err != nil {
		t.Fatalf("DEAL: %v", err)
	}
	next, _, err := engine.Apply("p1", state, ActionSplit, ActionArgs{})
	if err != nil {
		t.Fatalf("SPLIT: %v", err)
	}

	if len(next.Hands) != 2 {
		t.Fatalf("hands = %d, want 2", len(next.Hands))
	}
	if next.Account.Chips != 80 {
		t.Errorf("chips = %d, want 80 after posting the matching bet", next.Account.Chips)
	}
	if next.ActiveHand != 0 {
		t.Errorf("active hand = %d, want 0", next.ActiveHand)
	}
	for i, h := range next.Hands {
		if len(h.Cards) != 2 {
			t.Errorf("hand %d has %d cards, want 2", i, len(h.Cards))
		}
		if h.Cards[0].Rank != deck.Eight {
			t.Errorf("hand %d should lead with an eight, got %s", i, h.Cards[0])
		}
		if h.Bet != 10 {
			t.Errorf("hand %d bet = %d, want 10", i, h.Bet)
		}
		if !h.FromSplit {
			t.Errorf("hand %d should be marked as a split hand", i)
		}
	}
}

func TestSplitRejectsNonPair(t *testing.T) {
	t.Parallel()

	engine := stackedEngine(t, DefaultRules(),
		deck.NewCard(deck.Eight, deck.Clubs),
		deck.NewCard(deck.Nine, deck.Diamonds),
		deck.NewCard(deck.Nine, deck.Spades),
		deck.NewCard(deck.Six, deck.Hearts),
	)

	state, _, err := engine.Apply("p1", newTestState(100), ActionDeal, ActionArgs{Bet: 10})
	if err != nil {
		t.Fatalf("DEAL: %v", err)
	}
	if _, _, err := engine.Apply("p1", state, ActionSplit, ActionArgs{}); !errors.Is(err, ErrInvalidAction) {
		t.Fatalf("splitting 8,9 should fail with ErrInvalidAction, got %v", err)
	}
}

func TestSplitHandsPlayInOrder(t *testing.T) {
	t.Parallel()

	engine := stackedEngine(t, DefaultRules(),
		deck.NewCard(deck.Eight, deck.Clubs),
		deck.NewCard(deck.Nine, deck.Diamonds),
		deck.NewCard(deck.Eight, deck.Spades),
		deck.NewCard(deck.Six, deck.Hearts),
		deck.NewCard(deck.Two, deck.Clubs),    // hand 0 draw: 8+2
		deck.NewCard(deck.Three, deck.Clubs),  // hand 1 draw: 8+3
		deck.NewCard(deck.King, deck.Clubs),   // hand 0 hit: 20
		deck.NewCard(deck.Queen, deck.Clubs),  // hand 1 hit: 21
		deck.NewCard(deck.Two, deck.Diamonds), // dealer: 9+6+2 = 17
	)

	state, _, err := engine.Apply("p1", newTestState(100), ActionDeal, ActionArgs{Bet: 10})
	if err != nil {
		t.Fatalf("DEAL: %v", err)
	}
	state, _, err = engine.Apply("p1", state, ActionSplit, ActionArgs{})
	if err != nil {
		t.Fatalf("SPLIT: %v", err)
	}

	state, _, err = engine.Apply("p1", state, ActionHit, ActionArgs{})
	if err != nil {
		t.Fatalf("HIT hand 0: %v", err)
	}
	state, _, err = engine.Apply("p1", state, ActionStand, ActionArgs{})
	if err != nil {
		t.Fatalf("STAND hand 0: %v", err)
	}
	if state.ActiveHand != 1 {
		t.Fatalf("active hand = %d, want 1 after first hand stood", state.ActiveHand)
	}

	state, _, err = engine.Apply("p1", state, ActionHit, ActionArgs{})
	if err != nil {
		t.Fatalf("HIT hand 1: %v", err)
	}
	state, _, err = engine.Apply("p1", state, ActionStand, ActionArgs{})
	if err != nil {
		t.Fatalf("STAND hand 1: %v", err)
	}

	if state.Phase != PhaseSettled {
		t.Fatalf("phase = %s, want settled", state.Phase)
	}
	// Both hands beat dealer 17: 100 - 20 + 40 = 120.
	if state.Account.Chips != 120 {
		t.Errorf("chips = %d, want 120", state.Account.Chips)
	}
}

func TestSyncIsIdempotent(t *testing.T) {
	t.Parallel()

	engine := stackedEngine(t, DefaultRules(),
		deck.NewCard(deck.Ten, deck.Clubs),
		deck.NewCard(deck.Nine, deck.Diamonds),
		deck.NewCard(deck.Six, deck.Spades),
		deck.NewCard(deck.Six, deck.Hearts),
	)

	state, _, err := engine.Apply("p1", newTestState(100), ActionDeal, ActionArgs{Bet: 10})
	if err != nil {
		t.Fatalf("DEAL: %v", err)
	}

	_, first, err := engine.Apply("p1", state, ActionSync, ActionArgs{})
	if err != nil {
		t.Fatalf("SYNC: %v", err)
	}
	_, second, err := engine.Apply("p1", state, ActionSync, ActionArgs{})
	if err != nil {
		t.Fatalf("SYNC: %v", err)
	}

	a, err := json.Marshal(first)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	b, err := json.Marshal(second)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Errorf("consecutive SYNCs differ:\n%s\n%s", a, b)
	}
}

func TestInvalidActionsByPhase(t *testing.T) {
	t.Parallel()

	engine := stackedEngine(t, DefaultRules(),
		deck.NewCard(deck.Ten, deck.Clubs),
		deck.NewCard(deck.Nine, deck.Diamonds),
		deck.NewCard(deck.Six, deck.Spades),
		deck.NewCard(deck.Six, deck.Hearts),
	)

	fresh := newTestState(100)
	for _, act := range []Action{ActionHit, ActionStand, ActionDouble, ActionSplit} {
		if _, _, err := engine.Apply("p1", fresh, act, ActionArgs{}); !errors.Is(err, ErrInvalidAction) {
			t.Errorf("%s before DEAL: err = %v, want ErrInvalidAction", act, err)
		}
	}

	inRound, _, err := engine.Apply("p1", fresh, ActionDeal, ActionArgs{Bet: 10})
	if err != nil {
		t.Fatalf("DEAL: %v", err)
	}
	if _, _, err := engine.Apply("p1", inRound, ActionDeal, ActionArgs{Bet: 10}); !errors.Is(err, ErrInvalidAction) {
		t.Errorf("DEAL mid-round: err = %v, want ErrInvalidAction", err)
	}
}

func TestMalformedStateRejected(t *testing.T) {
	t.Parallel()

	engine := stackedEngine(t, DefaultRules())

	corrupt := newTestState(100)
	corrupt.Account.Chips = -1
	if _, _, err := engine.Apply("p1", corrupt, ActionSync, ActionArgs{}); !errors.Is(err, ErrMalformedState) {
		t.Errorf("negative balance: err = %v, want ErrMalformedState", err)
	}

	corrupt = newTestState(100)
	corrupt.Phase = PhasePlayerTurn
	if _, _, err := engine.Apply("p1", corrupt, ActionHit, ActionArgs{}); !errors.Is(err, ErrMalformedState) {
		t.Errorf("player turn without hands: err = %v, want ErrMalformedState", err)
	}
}

func TestShoeExhaustedSurfaces(t *testing.T) {
	t.Parallel()

	// Three cards cannot cover the opening deal.
	engine := stackedEngine(t, DefaultRules(),
		deck.NewCard(deck.Ten, deck.Clubs),
		deck.NewCard(deck.Nine, deck.Diamonds),
		deck.NewCard(deck.Six, deck.Spades),
	)

	prev := newTestState(100)
	_, _, err := engine.Apply("p1", prev, ActionDeal, ActionArgs{Bet: 10})
	if !errors.Is(err, deck.ErrShoeExhausted) {
		t.Fatalf("err = %v, want ErrShoeExhausted", err)
	}
	if prev.Phase != PhaseAwaitingBet || prev.Account.Chips != 100 {
		t.Error("failed deal must leave the previous state untouched")
	}
}

// TestChipConservation drives a full round and checks the ledger identity:
// balanceBefore - debits + credits == balanceAfter.
func TestChipConservation(t *testing.T) {
	t.Parallel()

	engine := stackedEngine(t, DefaultRules(),
		deck.NewCard(deck.Eight, deck.Clubs),
		deck.NewCard(deck.Nine, deck.Diamonds),
		deck.NewCard(deck.Eight, deck.Spades),
		deck.NewCard(deck.Six, deck.Hearts),
		deck.NewCard(deck.Two, deck.Clubs),
		deck.NewCard(deck.Three, deck.Clubs),
		deck.NewCard(deck.King, deck.Clubs),
		deck.NewCard(deck.Queen, deck.Clubs),
		deck.NewCard(deck.Two, deck.Diamonds),
	)

	bus := NewEventBus()
	rec := &recordingSubscriber{}
	bus.Subscribe(rec)
	engine.bus = bus

	state := newTestState(100)
	before := state.Account.Chips

	var err error
	for _, act := range []Action{ActionDeal, ActionSplit, ActionHit, ActionStand, ActionHit, ActionStand} {
		state, _, err = engine.Apply("p1", state, act, ActionArgs{Bet: 10})
		if err != nil {
			t.Fatalf("%s: %v", act, err)
		}
	}

	debits := totalBets(state.Hands)
	credited := rec.settled.Credited
	if before-debits+credited != state.Account.Chips {
		t.Errorf("conservation broken: %d - %d + %d != %d", before, debits, credited, state.Account.Chips)
	}
	if rec.started == 0 {
		t.Error("round started event was never published")
	}
}

// TestValidateChipConservationBounds checks the post-settlement guard: the
// credit must stay within what the staked bets can pay.
func TestValidateChipConservationBounds(t *testing.T) {
	t.Parallel()

	rules := DefaultRules()
	hands := []Hand{{Bet: 10, Status: HandStood}}

	tests := []struct {
		name     string
		credited int
		wantErr  bool
	}{
		{"loss pays nothing", 0, false},
		{"push returns the bet", 10, false},
		{"win pays double", 20, false},
		{"blackjack pays three to two", 25, false},
		{"negative credit", -1, true},
		{"over maximum payout", 26, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateChipConservation(hands, tt.credited, rules)
			if tt.wantErr && err == nil {
				t.Errorf("credited %d: expected an error", tt.credited)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("credited %d: unexpected error %v", tt.credited, err)
			}
		})
	}
}

type recordingSubscriber struct {
	started int
	settled RoundSettledEvent
}

func (r *recordingSubscriber) OnEvent(event GameEvent) {
	switch e := event.(type) {
	case RoundStartedEvent:
		r.started++
	case RoundSettledEvent:
		r.settled = e
	}
}
