package game

import "errors"

var (
	// ErrInvalidAction indicates the action is not legal in the current phase.
	ErrInvalidAction = errors.New("game: invalid action")

	// ErrInsufficientChips indicates a bet, double or split exceeds the balance.
	ErrInsufficientChips = errors.New("game: insufficient chips")

	// ErrMalformedState indicates a persisted state failed invariant validation.
	// Fatal for the request; never silently repaired.
	ErrMalformedState = errors.New("game: malformed state")
)
