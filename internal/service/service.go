// Package service orchestrates the blackjack engine against persistence,
// authentication and settlement. The engine itself is pure; everything that
// can block, fail transiently, or race lives here.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/bjtj/bjtj/internal/auth"
	"github.com/bjtj/bjtj/internal/game"
	"github.com/bjtj/bjtj/internal/settle"
	"github.com/bjtj/bjtj/internal/store"
)

// ErrSettlementFailure wraps gateway failures surfaced to the caller. The
// chip balance is guaranteed untouched when this is returned.
var ErrSettlementFailure = errors.New("service: settlement failure")

// saveAttempts bounds optimistic-concurrency retries per request.
const saveAttempts = 3

const (
	msgNoChips     = "Hey you don't have any chips"
	msgDealerBroke = "Oh no, the dealer's broke.. Try again later"
)

// Service exposes the engine's action entry point with a consistent
// load-apply-save contract: every request loads fresh canonical state,
// applies exactly one action, and persists exactly once.
type Service struct {
	engine  *game.Engine
	store   store.Store
	auth    auth.Verifier
	gateway settle.Gateway
	logger  *log.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewService wires the engine to its collaborators.
func NewService(engine *game.Engine, st store.Store, verifier auth.Verifier, gateway settle.Gateway, logger *log.Logger) *Service {
	return &Service{
		engine:  engine,
		store:   st,
		auth:    verifier,
		gateway: gateway,
		logger:  logger.WithPrefix("service"),
		locks:   make(map[string]*sync.Mutex),
	}
}

// playerLock serializes load-apply-save per player so two concurrent
// requests cannot both apply against the same pre-action state.
func (s *Service) playerLock(playerID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[playerID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[playerID] = lock
	}
	return lock
}

// Autograph verifies the signed agreement and creates the player's account
// with the configured starting chips. Re-autographing an existing player is
// harmless and returns the current view.
func (s *Service) Autograph(ctx context.Context, playerID, autograph string) (*game.PublicView, error) {
	if err := s.auth.Verify(ctx, playerID, autograph); err != nil {
		return nil, err
	}

	lock := s.playerLock(playerID)
	lock.Lock()
	defer lock.Unlock()

	state := game.NewGameState(playerID, s.engine.Rules())
	err := s.store.Create(ctx, playerID, state)
	switch {
	case err == nil:
		s.logger.Info("New autograph received", "player", shortID(playerID), "chips", state.Account.Chips)
		return s.engine.Project(state), nil
	case errors.Is(err, store.ErrAlreadyExists):
		existing, _, err := s.store.Load(ctx, playerID)
		if err != nil {
			return nil, err
		}
		return s.engine.Project(existing), nil
	default:
		return nil, err
	}
}

// Apply runs one action through the engine against freshly loaded state. A
// stale save is retried with a reload so the caller never observes a
// half-applied request.
func (s *Service) Apply(ctx context.Context, playerID string, act game.Action, args game.ActionArgs) (*game.PublicView, error) {
	lock := s.playerLock(playerID)
	lock.Lock()
	defer lock.Unlock()

	var lastErr error
	for attempt := 0; attempt < saveAttempts; attempt++ {
		state, version, err := s.store.Load(ctx, playerID)
		if err != nil {
			return nil, err
		}

		// Events stay staged until the save lands, so subscribers never
		// see a view that was not persisted.
		next, view, events, err := s.engine.Stage(playerID, state, act, args)
		if err != nil {
			return nil, err
		}

		// SYNC never mutates; skip the write and return the projection.
		if act == game.ActionSync {
			return view, nil
		}

		if err := s.store.Save(ctx, playerID, next, version); err != nil {
			if errors.Is(err, store.ErrConflict) {
				lastErr = err
				continue
			}
			return nil, err
		}
		s.engine.PublishEvents(events)
		return view, nil
	}
	return nil, lastErr
}

// Cashout converts the player's chips via the settlement gateway. The debit
// follows confirm-then-debit: chips leave the balance only after a receipt
// confirms the transfer, so a failed gateway call can never strand chips.
func (s *Service) Cashout(ctx context.Context, playerID string) (*game.PublicView, error) {
	lock := s.playerLock(playerID)
	lock.Lock()
	defer lock.Unlock()

	state, version, err := s.store.Load(ctx, playerID)
	if err != nil {
		return nil, err
	}

	if state.Account.Chips == 0 {
		s.logger.Info("Cashout with empty balance", "player", shortID(playerID))
		view := s.engine.Project(state)
		view.Message = msgNoChips
		return view, nil
	}

	receipt, err := s.gateway.RequestCashout(ctx, playerID, state.Account.Chips)
	if err != nil {
		// Balance untouched; the caller may retry the gateway call.
		return nil, fmt.Errorf("%w: %v", ErrSettlementFailure, err)
	}

	if receipt.CashedChips == 0 {
		s.logger.Warn("Dealer's broke, cashout returned no chips", "player", shortID(playerID))
		view := s.engine.Project(state)
		view.Message = msgDealerBroke
		return view, nil
	}

	state.Account.Chips -= receipt.CashedChips
	state.Account.Message = fmt.Sprintf("Cashed out %d chips, tx: %s", receipt.CashedChips, receipt.TxHash)

	if err := s.store.Save(ctx, playerID, state, version); err != nil {
		// The transfer is already confirmed; losing the debit here would
		// mint chips. Surface loudly instead of swallowing.
		s.logger.Error("Failed to persist confirmed cashout", "player", shortID(playerID), "error", err, "tx", receipt.TxHash)
		return nil, err
	}

	s.logger.Info("Cashed out",
		"player", shortID(playerID),
		"chips", receipt.CashedChips,
		"tx", receipt.TxHash)
	return s.engine.Project(state), nil
}

// shortID trims a player address for logs.
func shortID(playerID string) string {
	if len(playerID) > 10 {
		return playerID[:10]
	}
	return playerID
}
