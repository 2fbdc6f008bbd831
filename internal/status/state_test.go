package status

import (
	"testing"
	"time"

	"github.com/matheus3301/wppdesk/internal/bus"
)

func TestInitialState(t *testing.T) {
	m := NewMachine(nil)
	if m.Current() != Booting {
		t.Errorf("initial state = %s, want BOOTING", m.Current())
	}
	if m.Serving() {
		t.Error("booting session should not be serving")
	}
}

func TestValidTransitions(t *testing.T) {
	tests := []struct {
		from State
		to   State
	}{
		{Booting, AuthRequired},
		{Booting, Connecting},
		{AuthRequired, Connecting},
		{Connecting, Syncing},
		{Syncing, Ready},
		{Ready, Reconnecting},
		{Ready, Degraded},
		{Degraded, Ready},
		{Reconnecting, Connecting},
		{Reconnecting, AuthRequired},
		{Error, Booting},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			m := NewMachine(nil)
			walkTo(t, m, tt.from)
			if err := m.Transition(tt.to); err != nil {
				t.Errorf("Transition(%s -> %s) error = %v", tt.from, tt.to, err)
			}
			if m.Current() != tt.to {
				t.Errorf("state = %s, want %s", m.Current(), tt.to)
			}
		})
	}
}

func TestInvalidTransitionKeepsState(t *testing.T) {
	m := NewMachine(nil)
	_ = m.Transition(AuthRequired)

	// The pairing flow must pass through CONNECTING before SYNCING.
	if err := m.Transition(Syncing); err == nil {
		t.Fatal("Transition(AUTH_REQUIRED -> SYNCING) should fail")
	}
	if m.Current() != AuthRequired {
		t.Errorf("state = %s, want AUTH_REQUIRED", m.Current())
	}
}

func TestTransitionEmitsEvent(t *testing.T) {
	b := bus.New()
	ch, unsub := b.SubscribeRoom(Room, EventKind, 10)
	defer unsub()

	m := NewMachine(b)
	if err := m.TransitionWithReason(AuthRequired, "no device"); err != nil {
		t.Fatal(err)
	}

	select {
	case evt := <-ch:
		change, ok := evt.Payload.(Change)
		if !ok {
			t.Fatalf("payload type = %T, want Change", evt.Payload)
		}
		if change.From != Booting || change.To != AuthRequired || change.Reason != "no device" {
			t.Errorf("change = %+v", change)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for status event")
	}

	snap := m.Snapshot()
	if snap.State != AuthRequired || snap.Reason != "no device" || snap.Since.IsZero() {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestDegradeAndRestore(t *testing.T) {
	m := NewMachine(nil)
	if m.Degrade("keepalive timeout") {
		t.Error("Degrade from BOOTING should be ignored")
	}

	walkTo(t, m, Ready)
	if !m.Degrade("keepalive timeout") {
		t.Fatal("Degrade from READY should apply")
	}
	if !m.Serving() {
		t.Error("degraded session still serves")
	}
	if got := m.Snapshot().Reason; got != "keepalive timeout" {
		t.Errorf("reason = %q", got)
	}
	if m.Degrade("again") {
		t.Error("Degrade while degraded should be ignored")
	}
	if !m.Restore() {
		t.Fatal("Restore from DEGRADED should apply")
	}
	if m.Current() != Ready {
		t.Errorf("state = %s, want READY", m.Current())
	}
	if m.Restore() {
		t.Error("Restore from READY should be ignored")
	}
}

func TestReconnectCycle(t *testing.T) {
	m := NewMachine(nil)
	walkTo(t, m, Ready)

	for _, s := range []State{Reconnecting, Connecting, Syncing, Ready} {
		if err := m.Transition(s); err != nil {
			t.Fatalf("Transition to %s: %v (current: %s)", s, err, m.Current())
		}
	}
	if m.Current() != Ready {
		t.Errorf("final state = %s, want READY", m.Current())
	}
}

// walkTo is a helper that transitions the machine to a target state.
func walkTo(t *testing.T, m *Machine, target State) {
	t.Helper()
	paths := map[State][]State{
		Booting:      {},
		AuthRequired: {AuthRequired},
		Connecting:   {AuthRequired, Connecting},
		Syncing:      {Connecting, Syncing},
		Ready:        {Connecting, Syncing, Ready},
		Reconnecting: {Connecting, Syncing, Ready, Reconnecting},
		Degraded:     {Connecting, Syncing, Degraded},
		Error:        {Error},
	}
	for _, s := range paths[target] {
		if err := m.Transition(s); err != nil {
			t.Fatalf("walkTo(%s): %v", target, err)
		}
	}
}
