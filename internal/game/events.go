package game

import (
	"sync"
	"time"
)

// EventType represents a game event type with type safety
type EventType string

const (
	EventTypeRoundStarted  EventType = "round_started"
	EventTypeActionApplied EventType = "action_applied"
	EventTypeRoundSettled  EventType = "round_settled"
)

// String returns the string representation of the event type
func (et EventType) String() string {
	return string(et)
}

// GameEvent represents any event that occurs during a round
type GameEvent interface {
	EventType() EventType
	Timestamp() time.Time
}

// RoundStartedEvent is published when DEAL opens a new round.
type RoundStartedEvent struct {
	PlayerID  string
	Bet       int
	timestamp time.Time
}

func (e RoundStartedEvent) EventType() EventType { return EventTypeRoundStarted }
func (e RoundStartedEvent) Timestamp() time.Time { return e.timestamp }

// NewRoundStartedEvent creates a new round started event
func NewRoundStartedEvent(playerID string, bet int) RoundStartedEvent {
	return RoundStartedEvent{PlayerID: playerID, Bet: bet, timestamp: time.Now()}
}

// ActionAppliedEvent is published after every successfully applied action.
// It carries the public projection, never the canonical state.
type ActionAppliedEvent struct {
	PlayerID  string
	Action    Action
	View      *PublicView
	timestamp time.Time
}

func (e ActionAppliedEvent) EventType() EventType { return EventTypeActionApplied }
func (e ActionAppliedEvent) Timestamp() time.Time { return e.timestamp }

// NewActionAppliedEvent creates a new action applied event
func NewActionAppliedEvent(playerID string, action Action, view *PublicView) ActionAppliedEvent {
	return ActionAppliedEvent{PlayerID: playerID, Action: action, View: view, timestamp: time.Now()}
}

// RoundSettledEvent is published when a round reaches settlement.
type RoundSettledEvent struct {
	PlayerID  string
	Credited  int
	Chips     int
	timestamp time.Time
}

func (e RoundSettledEvent) EventType() EventType { return EventTypeRoundSettled }
func (e RoundSettledEvent) Timestamp() time.Time { return e.timestamp }

// NewRoundSettledEvent creates a new round settled event
func NewRoundSettledEvent(playerID string, credited, chips int) RoundSettledEvent {
	return RoundSettledEvent{PlayerID: playerID, Credited: credited, Chips: chips, timestamp: time.Now()}
}

// EventSubscriber receives game events
type EventSubscriber interface {
	OnEvent(event GameEvent)
}

// EventBus distributes game events to subscribers
type EventBus interface {
	Publish(event GameEvent)
	Subscribe(subscriber EventSubscriber)
}

// SimpleEventBus is a synchronous in-process event bus
type SimpleEventBus struct {
	mu          sync.RWMutex
	subscribers []EventSubscriber
}

// NewEventBus creates a new event bus
func NewEventBus() *SimpleEventBus {
	return &SimpleEventBus{}
}

// Publish delivers the event to all subscribers in order
func (b *SimpleEventBus) Publish(event GameEvent) {
	b.mu.RLock()
	subs := b.subscribers
	b.mu.RUnlock()

	for _, sub := range subs {
		sub.OnEvent(event)
	}
}

// Subscribe registers a subscriber for all future events
func (b *SimpleEventBus) Subscribe(subscriber EventSubscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = append(b.subscribers, subscriber)
}
