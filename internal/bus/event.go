package bus

import "time"

// Event is a state change pushed to connected observers.
// Room scopes the event: a ticket room ("ticket:<id>") or a global room ("contacts").
type Event struct {
	ID        string
	Room      string
	Kind      string
	Action    string
	Timestamp time.Time
	Payload   any
}
