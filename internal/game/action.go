package game

import (
	"fmt"
	"strings"
)

// Action is a player move applied to a round. Dispatch is by typed constant
// so a new action is a compile-time case, not a runtime string lookup.
type Action int

const (
	ActionDeal Action = iota
	ActionHit
	ActionStand
	ActionDouble
	ActionSplit
	ActionSync
)

// String returns the wire name of the action
func (a Action) String() string {
	switch a {
	case ActionDeal:
		return "DEAL"
	case ActionHit:
		return "HIT"
	case ActionStand:
		return "STAND"
	case ActionDouble:
		return "DOUBLE"
	case ActionSplit:
		return "SPLIT"
	case ActionSync:
		return "SYNC"
	default:
		return fmt.Sprintf("Action(%d)", int(a))
	}
}

// ParseAction maps a wire name to an Action.
func ParseAction(name string) (Action, error) {
	switch strings.ToUpper(name) {
	case "DEAL":
		return ActionDeal, nil
	case "HIT":
		return ActionHit, nil
	case "STAND":
		return ActionStand, nil
	case "DOUBLE":
		return ActionDouble, nil
	case "SPLIT":
		return ActionSplit, nil
	case "SYNC":
		return ActionSync, nil
	default:
		return 0, fmt.Errorf("%w: unknown action %q", ErrInvalidAction, name)
	}
}

// ActionArgs carries the optional parameters of an action.
type ActionArgs struct {
	// Bet is the chip amount staked by DEAL. Zero means the configured
	// default bet.
	Bet int
}
