// Package status tracks the WhatsApp connection lifecycle of a daemon.
package status

import (
	"context"
	"fmt"

	"github.com/matheus3301/wamcp/internal/bus"
	"github.com/qmuntal/stateless"
)

// State represents a daemon runtime state.
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

// Serving reports whether queries and commands can be answered in s.
// Syncing counts: the store is readable while history is still arriving.
func (s State) Serving() bool {
	return s == Ready || s == Syncing
}

// transitions lists the states reachable from each state. A transition is
// fired with its destination as the trigger.
var transitions = map[State][]State{
	Booting:      {AuthRequired, Connecting, Error},
	AuthRequired: {Connecting, Error},
	Connecting:   {Syncing, AuthRequired, Reconnecting, Error},
	Syncing:      {Ready, Reconnecting, Degraded, AuthRequired, Error},
	Ready:        {Reconnecting, Degraded, AuthRequired, Error},
	Reconnecting: {Connecting, Degraded, AuthRequired, Error},
	Degraded:     {Connecting, Reconnecting, Ready, Error},
	Error:        {Booting},
}

// Machine enforces daemon runtime state transitions and announces each one
// on the bus as a StatusChange.
type Machine struct {
	sm *stateless.StateMachine
}

// NewMachine creates a new state machine starting in Booting state.
func NewMachine(b *bus.Bus) *Machine {
	sm := stateless.NewStateMachine(Booting)
	for from, targets := range transitions {
		cfg := sm.Configure(from)
		for _, to := range targets {
			cfg.Permit(to, to)
		}
	}
	if b != nil {
		sm.OnTransitioned(func(_ context.Context, t stateless.Transition) {
			b.Emit(bus.KindStatusChanged, StatusChange{
				From: t.Source.(State),
				To:   t.Destination.(State),
			})
		})
	}
	return &Machine{sm: sm}
}

// Current returns the current state.
func (m *Machine) Current() State {
	return m.sm.MustState().(State)
}

// Transition attempts to move to a new state. Returns error if transition is invalid.
func (m *Machine) Transition(to State) error {
	from := m.Current()
	if ok, _ := m.sm.CanFire(to); !ok {
		return fmt.Errorf("invalid transition from %s to %s", from, to)
	}
	if err := m.sm.Fire(to); err != nil {
		return fmt.Errorf("transition from %s to %s: %w", from, to, err)
	}
	return nil
}

// Can reports whether the machine may move to state right now.
func (m *Machine) Can(to State) bool {
	ok, _ := m.sm.CanFire(to)
	return ok
}

// StatusChange is the payload for status change events.
type StatusChange struct {
	From State
	To   State
}
