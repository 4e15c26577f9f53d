// Package game implements the core blackjack round logic.
//
// The main type is Engine, a pure state machine that turns a persisted
// GameState plus an Action into a new GameState and its client-safe
// PublicView. Every action is applied to a deep copy of the input state, so
// failed actions never partially mutate anything and the caller can persist
// the returned state exactly once per request.
//
// # Basic Usage
//
//	engine := game.NewEngine(game.DefaultRules(), logger)
//	state := game.NewGameState(playerID, engine.Rules())
//	next, view, err := engine.Apply(playerID, state, game.ActionDeal, game.ActionArgs{Bet: 10})
//
// # Deterministic Testing
//
// Shoes are normally shuffled from a crypto-strength seed. Tests stack the
// shoe instead:
//
//	engine := game.NewEngine(rules, logger, game.WithShoeFunc(func() *deck.Shoe {
//	    return deck.NewStackedShoe(tenOfClubs, nineOfDiamonds, aceOfSpades, sixOfHearts)
//	}))
//
// # Architecture
//
// Engine delegates to small pure pieces: ScoreCards (hand evaluation with
// ace demotion), dealerPlay (the stand-on-17 drawing rule), settleHand (the
// per-hand payout table) and Project (the public projection that hides the
// hole card and the shoe).
package game
