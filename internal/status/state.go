// Package status holds the provider session's connection state. The daemon
// owns one Machine; provider events drive it and observers read it.
package status

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/matheus3301/wppdesk/internal/bus"
)

// State represents a session runtime state.
type State string

const (
	Booting      State = "BOOTING"
	AuthRequired State = "AUTH_REQUIRED"
	Connecting   State = "CONNECTING"
	Syncing      State = "SYNCING"
	Ready        State = "READY"
	Reconnecting State = "RECONNECTING"
	Degraded     State = "DEGRADED"
	Error        State = "ERROR"
)

// Room and kind of the bus events published on every transition.
const (
	Room      = "session"
	EventKind = "session.status"
)

var validTransitions = map[State][]State{
	Booting:      {AuthRequired, Connecting, Error},
	AuthRequired: {Connecting, Error},
	Connecting:   {Syncing, AuthRequired, Reconnecting, Error},
	Syncing:      {Ready, Reconnecting, Degraded, AuthRequired, Error},
	Ready:        {Reconnecting, Degraded, AuthRequired, Error},
	Reconnecting: {Connecting, Degraded, AuthRequired, Error},
	Degraded:     {Connecting, Reconnecting, Ready, AuthRequired, Error},
	Error:        {Booting},
}

// Change is the payload of a status event.
type Change struct {
	From   State
	To     State
	Reason string
}

// Snapshot is a point-in-time view of the machine.
type Snapshot struct {
	State  State
	Since  time.Time
	Reason string
}

// Machine tracks and enforces session state transitions.
type Machine struct {
	mu     sync.RWMutex
	state  State
	since  time.Time
	reason string
	bus    *bus.Bus
}

// NewMachine creates a machine in Booting. b may be nil.
func NewMachine(b *bus.Bus) *Machine {
	return &Machine{
		state: Booting,
		since: time.Now(),
		bus:   b,
	}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Snapshot returns the current state with when and why it was entered.
func (m *Machine) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Snapshot{State: m.state, Since: m.since, Reason: m.reason}
}

// Serving reports whether the session can exchange messages.
func (m *Machine) Serving() bool {
	s := m.Current()
	return s == Ready || s == Degraded
}

// Transition moves to a new state. It fails if the move is not allowed.
func (m *Machine) Transition(to State) error {
	return m.TransitionWithReason(to, "")
}

// TransitionWithReason is Transition recording why the state changed.
func (m *Machine) TransitionWithReason(to State, reason string) error {
	m.mu.Lock()
	from := m.state
	if !slices.Contains(validTransitions[from], to) {
		m.mu.Unlock()
		return fmt.Errorf("invalid transition from %s to %s", from, to)
	}
	m.state = to
	m.since = time.Now()
	m.reason = reason
	since := m.since
	m.mu.Unlock()

	if m.bus != nil {
		m.bus.Publish(bus.Event{
			Room:      Room,
			Kind:      EventKind,
			Action:    "update",
			Timestamp: since,
			Payload:   Change{From: from, To: to, Reason: reason},
		})
	}
	return nil
}

// Degrade marks a serving session as degraded. Other states are left alone.
func (m *Machine) Degrade(reason string) bool {
	if m.Current() != Ready {
		return false
	}
	return m.TransitionWithReason(Degraded, reason) == nil
}

// Restore returns a degraded session to Ready.
func (m *Machine) Restore() bool {
	if m.Current() != Degraded {
		return false
	}
	return m.TransitionWithReason(Ready, "") == nil
}
