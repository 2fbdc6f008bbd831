// Package notify pushes domain change notifications to observers. A
// notification targets either one ticket's room or a global room.
package notify

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/matheus3301/wppdesk/internal/bus"
	"go.uber.org/zap"
)

// Notification kinds.
const (
	KindMessage = "appMessage"
	KindTicket  = "ticket"
	KindContact = "contact"
)

// Notification actions.
const (
	ActionCreate = "create"
	ActionUpdate = "update"
)

// RoomContacts is the global room for contact notifications.
const RoomContacts = "contacts"

// TicketRoom names the room of observers subscribed to one ticket.
func TicketRoom(ticketID int64) string {
	return "ticket:" + strconv.FormatInt(ticketID, 10)
}

// Notification is a single change pushed to a room.
type Notification struct {
	ID        string    `json:"id"`
	Room      string    `json:"room"`
	Kind      string    `json:"kind"`
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// Emitter delivers notifications. Implementations must be safe for
// concurrent use.
type Emitter interface {
	Emit(ctx context.Context, n Notification) error
}

// stamp fills the id and timestamp when the caller left them empty.
func stamp(n Notification) Notification {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now()
	}
	return n
}

// BusEmitter publishes notifications on the in-process event bus.
type BusEmitter struct {
	bus *bus.Bus
}

// NewBus returns an Emitter backed by b.
func NewBus(b *bus.Bus) *BusEmitter {
	return &BusEmitter{bus: b}
}

// Emit publishes n on the bus. It never fails.
func (e *BusEmitter) Emit(_ context.Context, n Notification) error {
	n = stamp(n)
	e.bus.Publish(bus.Event{
		ID:        n.ID,
		Room:      n.Room,
		Kind:      n.Kind,
		Action:    n.Action,
		Timestamp: n.Timestamp,
		Payload:   n.Payload,
	})
	return nil
}

// Fanout delivers every notification to all sinks. A failing sink does not
// stop delivery to the rest.
type Fanout struct {
	sinks []Emitter
	log   *zap.Logger
}

// NewFanout combines sinks. Nil sinks are skipped.
func NewFanout(log *zap.Logger, sinks ...Emitter) *Fanout {
	f := &Fanout{log: log}
	for _, s := range sinks {
		if s != nil {
			f.sinks = append(f.sinks, s)
		}
	}
	return f
}

// Emit sends n to each sink and joins their errors.
func (f *Fanout) Emit(ctx context.Context, n Notification) error {
	n = stamp(n)
	var errs []error
	for _, s := range f.sinks {
		if err := s.Emit(ctx, n); err != nil {
			f.log.Warn("notification sink failed",
				zap.String("room", n.Room),
				zap.String("kind", n.Kind),
				zap.String("action", n.Action),
				zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
