package runner

import "fmt"

// State is a step of the per-test state machine:
//
//	pending → resolving → executing → {passed|failed|error} → torn-down
//
// A skipped test goes pending → skipped → torn-down; a resolution failure
// goes resolving → error. Once a test reaches passed, failed, error or
// skipped only torn-down may follow.
type State string

const (
	StatePending   State = "pending"
	StateResolving State = "resolving"
	StateExecuting State = "executing"
	StatePassed    State = "passed"
	StateFailed    State = "failed"
	StateError     State = "error"
	StateSkipped   State = "skipped"
	StateTornDown  State = "torn-down"
)

var transitions = map[State][]State{
	StatePending:   {StateResolving, StateSkipped},
	StateResolving: {StateExecuting, StateError},
	StateExecuting: {StatePassed, StateFailed, StateError},
	StatePassed:    {StateTornDown},
	StateFailed:    {StateTornDown},
	StateError:     {StateTornDown},
	StateSkipped:   {StateTornDown},
}

// Machine tracks the state of one test attempt.
type Machine struct {
	state   State
	history []State
}

func newMachine() *Machine {
	return &Machine{state: StatePending, history: []State{StatePending}}
}

// State returns the current state.
func (m *Machine) State() State {
	return m.state
}

// History returns every state visited, in order.
func (m *Machine) History() []State {
	out := make([]State, len(m.history))
	copy(out, m.history)
	return out
}

// advance moves to next, rejecting transitions the machine does not allow.
func (m *Machine) advance(next State) error {
	for _, allowed := range transitions[m.state] {
		if allowed == next {
			m.state = next
			m.history = append(m.history, next)
			return nil
		}
	}
	return fmt.Errorf("invalid test state transition %s → %s", m.state, next)
}

// must is advance for transitions the runner guarantees.
func (m *Machine) must(next State) {
	if err := m.advance(next); err != nil {
		panic(err)
	}
}
