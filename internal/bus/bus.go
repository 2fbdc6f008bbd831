package bus

import (
	"strings"
	"sync"
)

// Bus is an in-process publish/subscribe event bus. Subscribers filter by
// room and by kind prefix; an empty filter matches everything.
type Bus struct {
	mu   sync.RWMutex
	subs map[int]*subscription
	next int
}

type subscription struct {
	room string
	kind string
	ch   chan Event
}

// New creates a new event bus.
func New() *Bus {
	return &Bus{
		subs: make(map[int]*subscription),
	}
}

// Publish delivers evt to every matching subscriber. Delivery never blocks:
// a subscriber with a full buffer misses the event.
func (b *Bus) Publish(evt Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		if !sub.matches(evt) {
			continue
		}
		select {
		case sub.ch <- evt:
		default:
		}
	}
}

// Subscribe returns a channel receiving events whose Kind starts with kind.
// Returns the channel and an unsubscribe function.
func (b *Bus) Subscribe(kind string, bufSize int) (<-chan Event, func()) {
	return b.SubscribeRoom("", kind, bufSize)
}

// SubscribeRoom is Subscribe restricted to a single room.
func (b *Bus) SubscribeRoom(room, kind string, bufSize int) (<-chan Event, func()) {
	ch := make(chan Event, bufSize)
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = &subscription{room: room, kind: kind, ch: ch}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}

// Subscribers returns the number of active subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (s *subscription) matches(evt Event) bool {
	if s.room != "" && s.room != evt.Room {
		return false
	}
	return strings.HasPrefix(evt.Kind, s.kind)
}
