package game

import (
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/bjtj/bjtj/internal/deck"
	"github.com/bjtj/bjtj/internal/randutil"
)

// Engine is the blackjack state machine. It is a pure function of
// (GameState, Action): every action is applied to a deep copy, so a failed
// action never leaves a partially mutated state behind, and the engine
// retains nothing between invocations.
type Engine struct {
	rules   Rules
	newShoe func() *deck.Shoe
	bus     EventBus
	logger  *log.Logger
}

// EngineOption customises an Engine.
type EngineOption func(*Engine)

// WithShoeFunc overrides how fresh shoes are built. Tests use this to stack
// known cards.
func WithShoeFunc(fn func() *deck.Shoe) EngineOption {
	return func(e *Engine) {
		e.newShoe = fn
	}
}

// WithEventBus attaches an event bus for round observability.
func WithEventBus(bus EventBus) EngineOption {
	return func(e *Engine) {
		e.bus = bus
	}
}

// NewEngine creates an engine for the given table rules.
func NewEngine(rules Rules, logger *log.Logger, opts ...EngineOption) *Engine {
	e := &Engine{
		rules:  rules,
		logger: logger.WithPrefix("engine"),
		newShoe: func() *deck.Shoe {
			return deck.NewShoe(rules.Decks, randutil.NewUnpredictable())
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Rules returns the table rules the engine plays under.
func (e *Engine) Rules() Rules {
	return e.rules
}

// Project returns the public view of a state without applying any action.
func (e *Engine) Project(gs *GameState) *PublicView {
	return Project(gs, e.rules)
}

// Apply validates the action against the current phase, applies it, and
// returns the next state plus its public projection. The input state is
// never mutated. Any action that is illegal in the current phase fails with
// ErrInvalidAction. Events are published immediately; callers that persist
// the state should use Stage and publish after the save lands.
func (e *Engine) Apply(playerID string, gs *GameState, act Action, args ActionArgs) (*GameState, *PublicView, error) {
	next, view, events, err := e.Stage(playerID, gs, act, args)
	if err != nil {
		return nil, nil, err
	}
	e.PublishEvents(events)
	return next, view, nil
}

// Stage applies the action like Apply but hands the resulting events back to
// the caller instead of publishing them, so subscribers only ever see state
// that was durably saved.
func (e *Engine) Stage(playerID string, gs *GameState, act Action, args ActionArgs) (*GameState, *PublicView, []GameEvent, error) {
	if err := gs.Validate(); err != nil {
		return nil, nil, nil, err
	}

	if act == ActionSync {
		// Zero mutation; always safe to repeat.
		next := gs.Clone()
		return next, Project(next, e.rules), nil, nil
	}

	next := gs.Clone()
	prevPhase := gs.Phase

	var err error
	switch act {
	case ActionDeal:
		err = e.applyDeal(next, args)
	case ActionHit:
		err = e.applyHit(next)
	case ActionStand:
		err = e.applyStand(next)
	case ActionDouble:
		err = e.applyDouble(next)
	case ActionSplit:
		err = e.applySplit(next)
	default:
		err = fmt.Errorf("%w: %s", ErrInvalidAction, act)
	}
	if err != nil {
		return nil, nil, nil, err
	}

	view := Project(next, e.rules)

	e.logger.Debug("Applied action",
		"player", playerID,
		"action", act,
		"phase", next.Phase,
		"chips", next.Account.Chips)

	var events []GameEvent
	if act == ActionDeal {
		events = append(events, NewRoundStartedEvent(playerID, totalBets(next.Hands)))
	}
	events = append(events, NewActionAppliedEvent(playerID, act, view))
	if prevPhase != PhaseSettled && next.Phase == PhaseSettled {
		credited := next.Account.Chips - gs.Account.Chips
		if act == ActionDeal {
			credited = next.Account.Chips + totalBets(next.Hands) - gs.Account.Chips
		}
		events = append(events, NewRoundSettledEvent(playerID, credited, next.Account.Chips))
	}

	return next, view, events, nil
}

// PublishEvents pushes staged events to the bus in order.
func (e *Engine) PublishEvents(events []GameEvent) {
	if e.bus == nil {
		return
	}
	for _, event := range events {
		e.bus.Publish(event)
	}
}

// applyDeal starts a new round: debit the bet, build a fresh shoe, deal two
// cards each. A natural blackjack skips the player turn entirely.
func (e *Engine) applyDeal(gs *GameState, args ActionArgs) error {
	if gs.Phase != PhaseAwaitingBet && gs.Phase != PhaseSettled {
		return fmt.Errorf("%w: DEAL during %s", ErrInvalidAction, gs.Phase)
	}

	bet := args.Bet
	if bet == 0 {
		bet = e.rules.DefaultBet
	}
	if bet < 0 {
		return fmt.Errorf("%w: negative bet %d", ErrInvalidAction, bet)
	}
	if bet > gs.Account.Chips {
		return fmt.Errorf("%w: bet %d exceeds balance %d", ErrInsufficientChips, bet, gs.Account.Chips)
	}

	gs.Account.Chips -= bet
	gs.Shoe = e.newShoe()
	gs.Dealer = DealerHand{}
	gs.Hands = []Hand{{Bet: bet, Status: HandActive}}
	gs.ActiveHand = 0
	gs.Account.Message = "Good luck!"

	// Deal order: player, dealer, player, dealer.
	for i := 0; i < 2; i++ {
		card, err := gs.Shoe.Draw()
		if err != nil {
			return err
		}
		gs.Hands[0].Cards = append(gs.Hands[0].Cards, card)

		card, err = gs.Shoe.Draw()
		if err != nil {
			return err
		}
		gs.Dealer.Cards = append(gs.Dealer.Cards, card)
	}

	gs.Phase = PhasePlayerTurn

	if gs.Hands[0].Score(e.rules).Blackjack {
		gs.Hands[0].Status = HandBlackjack
		return e.advance(gs)
	}
	return nil
}

// applyHit draws one card into the active hand.
func (e *Engine) applyHit(gs *GameState) error {
	if gs.Phase != PhasePlayerTurn {
		return fmt.Errorf("%w: HIT during %s", ErrInvalidAction, gs.Phase)
	}

	hand := &gs.Hands[gs.ActiveHand]
	card, err := gs.Shoe.Draw()
	if err != nil {
		return err
	}
	hand.Cards = append(hand.Cards, card)

	if hand.Score(e.rules).Bust {
		hand.Status = HandBusted
		return e.advance(gs)
	}
	return nil
}

// applyStand marks the active hand stood and moves on.
func (e *Engine) applyStand(gs *GameState) error {
	if gs.Phase != PhasePlayerTurn {
		return fmt.Errorf("%w: STAND during %s", ErrInvalidAction, gs.Phase)
	}

	gs.Hands[gs.ActiveHand].Status = HandStood
	return e.advance(gs)
}

// applyDouble doubles the bet on a two-card hand, draws exactly one card,
// and resolves the hand regardless of the result.
func (e *Engine) applyDouble(gs *GameState) error {
	if gs.Phase != PhasePlayerTurn {
		return fmt.Errorf("%w: DOUBLE during %s", ErrInvalidAction, gs.Phase)
	}

	hand := &gs.Hands[gs.ActiveHand]
	if len(hand.Cards) != 2 {
		return fmt.Errorf("%w: DOUBLE on a %d-card hand", ErrInvalidAction, len(hand.Cards))
	}
	if hand.FromSplit && !e.rules.DoubleAfterSplit {
		return fmt.Errorf("%w: DOUBLE after split is disabled", ErrInvalidAction)
	}
	if hand.Bet > gs.Account.Chips {
		return fmt.Errorf("%w: doubling needs %d more chips, have %d", ErrInsufficientChips, hand.Bet, gs.Account.Chips)
	}

	gs.Account.Chips -= hand.Bet
	hand.Bet *= 2

	card, err := gs.Shoe.Draw()
	if err != nil {
		return err
	}
	hand.Cards = append(hand.Cards, card)
	hand.Status = HandDoubled
	return e.advance(gs)
}

// applySplit breaks a two-card pair into two hands, posting a matching bet
// and drawing one card into each.
func (e *Engine) applySplit(gs *GameState) error {
	if gs.Phase != PhasePlayerTurn {
		return fmt.Errorf("%w: SPLIT during %s", ErrInvalidAction, gs.Phase)
	}

	hand := gs.Hands[gs.ActiveHand]
	if len(gs.Hands) >= e.rules.MaxHands {
		return fmt.Errorf("%w: already at %d hands", ErrInvalidAction, len(gs.Hands))
	}
	if len(hand.Cards) != 2 || hand.Cards[0].Rank != hand.Cards[1].Rank {
		return fmt.Errorf("%w: SPLIT requires a two-card pair", ErrInvalidAction)
	}
	if hand.Bet > gs.Account.Chips {
		return fmt.Errorf("%w: splitting needs %d more chips, have %d", ErrInsufficientChips, hand.Bet, gs.Account.Chips)
	}

	gs.Account.Chips -= hand.Bet

	first := Hand{Cards: []deck.Card{hand.Cards[0]}, Bet: hand.Bet, Status: HandActive, FromSplit: true}
	second := Hand{Cards: []deck.Card{hand.Cards[1]}, Bet: hand.Bet, Status: HandActive, FromSplit: true}

	for _, h := range []*Hand{&first, &second} {
		card, err := gs.Shoe.Draw()
		if err != nil {
			return err
		}
		h.Cards = append(h.Cards, card)
	}

	hands := make([]Hand, 0, len(gs.Hands)+1)
	hands = append(hands, gs.Hands[:gs.ActiveHand]...)
	hands = append(hands, first, second)
	hands = append(hands, gs.Hands[gs.ActiveHand+1:]...)
	gs.Hands = hands
	// Active index stays on the first of the two new hands.
	return nil
}

// advance moves play to the next unresolved hand, or into settlement when
// none remain.
func (e *Engine) advance(gs *GameState) error {
	for i, h := range gs.Hands {
		if h.Status == HandActive {
			gs.ActiveHand = i
			return nil
		}
	}
	return e.settle(gs)
}

// settle reveals the hole card, plays the dealer if any hand still needs a
// comparison, credits each hand's payout, and closes the round.
func (e *Engine) settle(gs *GameState) error {
	gs.Phase = PhaseDealerTurn
	gs.Dealer.Revealed = true

	// The dealer draws only when some hand needs its total compared:
	// busted hands have already lost and blackjacks pay off the two-card
	// dealer hand. The hole card is revealed regardless.
	if anyLiveHand(gs.Hands, e.rules) {
		if err := dealerPlay(&gs.Dealer, gs.Shoe, e.rules); err != nil {
			return err
		}
	}

	credited := 0
	for _, h := range gs.Hands {
		credited += settleHand(h, gs.Dealer, e.rules)
	}

	// Validate chip conservation after settlement
	if err := validateChipConservation(gs.Hands, credited, e.rules); err != nil {
		e.logger.Error("Chip conservation violation detected!", "error", err)
		return fmt.Errorf("chip conservation violation: %w", err)
	}

	gs.Account.Chips += credited
	gs.Account.Message = settleMessage(gs.Hands, credited, e.rules)
	gs.Phase = PhaseSettled
	return nil
}

// validateChipConservation ensures the settlement credit stays inside the
// payout table's bounds. This is a critical invariant - chips should never
// be created or destroyed beyond what the staked bets can pay.
func validateChipConservation(hands []Hand, credited int, rules Rules) error {
	maxPayout := 0
	for _, h := range hands {
		payout := 2 * h.Bet
		if bj := h.Bet + rules.blackjackProfit(h.Bet); bj > payout {
			payout = bj
		}
		maxPayout += payout
	}

	if credited < 0 || credited > maxPayout {
		return fmt.Errorf("credited %d chips against %d staked, at most %d payable",
			credited, totalBets(hands), maxPayout)
	}
	return nil
}

// anyLiveHand reports whether any hand goes to comparison against the
// dealer's total.
func anyLiveHand(hands []Hand, rules Rules) bool {
	for _, h := range hands {
		score := h.Score(rules)
		if !score.Bust && !score.Blackjack {
			return true
		}
	}
	return false
}

func totalBets(hands []Hand) int {
	total := 0
	for _, h := range hands {
		total += h.Bet
	}
	return total
}

// settleMessage summarises the round outcome for the client.
func settleMessage(hands []Hand, credited int, rules Rules) string {
	net := credited - totalBets(hands)
	switch {
	case net > 0:
		for _, h := range hands {
			if h.Score(rules).Blackjack {
				return fmt.Sprintf("Blackjack! You won %d chips", net)
			}
		}
		return fmt.Sprintf("You won %d chips", net)
	case net == 0:
		return "Push, bet returned"
	default:
		return fmt.Sprintf("Dealer wins, you lost %d chips", -net)
	}
}
