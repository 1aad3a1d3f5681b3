package services

import (
	"sync"
	"time"
)

type EventKind string

const (
	EventXP          EventKind = "xp"
	EventStreak      EventKind = "streak"
	EventAchievement EventKind = "achievement"
	EventLeague      EventKind = "league"
)

// Event tells interested readers that a user's state changed. Readers re-query
// for the authoritative values; Data is a hint.
type Event struct {
	Kind   EventKind              `json:"kind"`
	UserID string                 `json:"user_id"`
	At     time.Time              `json:"at"`
	Data   map[string]interface{} `json:"data,omitempty"`
}

// EventBus is an in-process fan-out keyed by user. A nil *EventBus is valid and drops everything.
type EventBus struct {
	mu   sync.RWMutex
	next int
	subs map[string]map[int]chan Event
}

func NewEventBus() *EventBus {
	return &EventBus{subs: make(map[string]map[int]chan Event)}
}

// Subscribe returns a channel of the user's events and a cancel func that
// must be called to release it.
func (b *EventBus) Subscribe(userID string, buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 16
	}
	ch := make(chan Event, buffer)
	if b == nil {
		return ch, func() {}
	}

	b.mu.Lock()
	b.next++
	id := b.next
	if b.subs[userID] == nil {
		b.subs[userID] = make(map[int]chan Event)
	}
	b.subs[userID][id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs[userID], id)
			if len(b.subs[userID]) == 0 {
				delete(b.subs, userID)
			}
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Publish never blocks; a full subscriber misses the event.
func (b *EventBus) Publish(e Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs[e.UserID] {
		select {
		case ch <- e:
		default:
		}
	}
}

// Subscribers is the number of open subscriptions for a user.
func (b *EventBus) Subscribers(userID string) int {
	if b == nil {
		return 0
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[userID])
}
