package game

import (
	"fmt"

	"github.com/bjtj/bjtj/internal/deck"
)

// Phase is the lifecycle stage of a round.
type Phase int

const (
	PhaseAwaitingBet Phase = iota
	PhasePlayerTurn
	PhaseDealerTurn
	PhaseSettled
)

// String returns the wire name of the phase
func (p Phase) String() string {
	switch p {
	case PhaseAwaitingBet:
		return "awaiting_bet"
	case PhasePlayerTurn:
		return "player_turn"
	case PhaseDealerTurn:
		return "dealer_turn"
	case PhaseSettled:
		return "settled"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// HandStatus is the resolution state of a single hand.
type HandStatus int

const (
	HandActive HandStatus = iota
	HandStood
	HandBusted
	HandBlackjack
	HandDoubled
	// HandSurrendered is reserved; no current action produces it.
	HandSurrendered
)

// String returns the wire name of the status
func (s HandStatus) String() string {
	switch s {
	case HandActive:
		return "active"
	case HandStood:
		return "stood"
	case HandBusted:
		return "busted"
	case HandBlackjack:
		return "blackjack"
	case HandDoubled:
		return "doubled"
	case HandSurrendered:
		return "surrendered"
	default:
		return fmt.Sprintf("HandStatus(%d)", int(s))
	}
}

// Hand is an ordered sequence of cards backing one bet.
type Hand struct {
	Cards  []deck.Card `json:"cards"`
	Bet    int         `json:"bet"`
	Status HandStatus  `json:"status"`
	// FromSplit marks hands created by SPLIT; they cannot score blackjack
	// under the default rules.
	FromSplit bool `json:"fromSplit,omitempty"`
}

// Clone returns a deep copy of the hand.
func (h Hand) Clone() Hand {
	cards := make([]deck.Card, len(h.Cards))
	copy(cards, h.Cards)
	h.Cards = cards
	return h
}

// resolved reports whether the hand needs no further player action.
func (h Hand) resolved() bool {
	return h.Status != HandActive
}

// DealerHand is the dealer's cards plus hole-card visibility.
type DealerHand struct {
	Cards []deck.Card `json:"cards"`
	// Revealed is false while the hole card (second card) is hidden.
	Revealed bool `json:"revealed"`
}

// Clone returns a deep copy of the dealer hand.
func (d DealerHand) Clone() DealerHand {
	cards := make([]deck.Card, len(d.Cards))
	copy(cards, d.Cards)
	d.Cards = cards
	return d
}

// Upcard returns the dealer's visible first card.
func (d DealerHand) Upcard() (deck.Card, bool) {
	if len(d.Cards) == 0 {
		return deck.Card{}, false
	}
	return d.Cards[0], true
}

// Account is the chip ledger that persists across rounds.
type Account struct {
	Chips int `json:"chips"`
	// AuthRef is the opaque identity bound at autograph time.
	AuthRef string `json:"authRef"`
	// Message is the last user-facing note, e.g. a pending cash-out tx hash.
	Message string `json:"message"`
}

// GameState is the canonical, server-only state for one player. It is never
// sent across the service boundary; clients only ever see a PublicView.
type GameState struct {
	Phase      Phase      `json:"phase"`
	ActiveHand int        `json:"activeHand"`
	Shoe       *deck.Shoe `json:"shoe"`
	Hands      []Hand     `json:"hands"`
	Dealer     DealerHand `json:"dealer"`
	Account    Account    `json:"account"`
}

// NewGameState creates the initial state for a freshly autographed player.
func NewGameState(authRef string, rules Rules) *GameState {
	return &GameState{
		Phase: PhaseAwaitingBet,
		Account: Account{
			Chips:   rules.StartingChips,
			AuthRef: authRef,
			Message: "Thanks for the autograph!",
		},
	}
}

// Clone returns a deep copy of the state. The engine applies every action to
// a clone so a failed action leaves the caller's state untouched.
func (gs *GameState) Clone() *GameState {
	next := &GameState{
		Phase:      gs.Phase,
		ActiveHand: gs.ActiveHand,
		Shoe:       gs.Shoe.Clone(),
		Dealer:     gs.Dealer.Clone(),
		Account:    gs.Account,
	}
	if gs.Hands != nil {
		next.Hands = make([]Hand, len(gs.Hands))
		for i, h := range gs.Hands {
			next.Hands[i] = h.Clone()
		}
	}
	return next
}

// Validate checks the invariants every persisted state must satisfy.
// A violation means the stored record is corrupt, not that the player made
// an illegal move.
func (gs *GameState) Validate() error {
	if gs.Account.Chips < 0 {
		return fmt.Errorf("%w: negative chip balance %d", ErrMalformedState, gs.Account.Chips)
	}

	switch gs.Phase {
	case PhaseAwaitingBet, PhasePlayerTurn, PhaseDealerTurn, PhaseSettled:
	default:
		return fmt.Errorf("%w: unknown phase %d", ErrMalformedState, int(gs.Phase))
	}

	for i, h := range gs.Hands {
		if h.Bet < 0 {
			return fmt.Errorf("%w: hand %d has negative bet %d", ErrMalformedState, i, h.Bet)
		}
	}

	if gs.Phase == PhasePlayerTurn {
		if len(gs.Hands) == 0 {
			return fmt.Errorf("%w: player turn with no hands", ErrMalformedState)
		}
		if gs.ActiveHand < 0 || gs.ActiveHand >= len(gs.Hands) {
			return fmt.Errorf("%w: active hand index %d out of range", ErrMalformedState, gs.ActiveHand)
		}
		if gs.Hands[gs.ActiveHand].Status != HandActive {
			return fmt.Errorf("%w: active hand %d is %s", ErrMalformedState, gs.ActiveHand, gs.Hands[gs.ActiveHand].Status)
		}
		if gs.Shoe == nil {
			return fmt.Errorf("%w: player turn with no shoe", ErrMalformedState)
		}
		if gs.Dealer.Revealed {
			return fmt.Errorf("%w: hole card revealed during player turn", ErrMalformedState)
		}
	}

	return nil
}
