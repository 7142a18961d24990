package playback

import "sync"

// Machine holds the current State and notifies observers once per distinct
// (Status, Live) pair, in commit order.
type Machine struct {
	// commit serializes state changes together with their notifications.
	commit sync.Mutex

	mu        sync.RWMutex
	state     State
	observers []func(State)
}

func NewMachine() *Machine {
	return &Machine{state: State{Status: Idle}}
}

// Subscribe registers fn. Observers run synchronously on the committing
// goroutine and may read the machine, but must not change it.
func (m *Machine) Subscribe(fn func(State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, fn)
}

func (m *Machine) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

func (m *Machine) Live() bool {
	return m.State().Live
}

// Apply reduces ev into the current state and commits the result.
func (m *Machine) Apply(ev Event) State {
	return m.update(func(s State) State { return Reduce(s, ev) })
}

// Transition sets the state for user driven changes such as connecting or
// pausing.
func (m *Machine) Transition(status Status, live bool) State {
	return m.update(func(State) State {
		return State{Status: status, Live: live, Connecting: status == Connecting}
	})
}

// Fail moves to the error state.
func (m *Machine) Fail() State {
	return m.Transition(Error, false)
}

func (m *Machine) update(fn func(State) State) State {
	m.commit.Lock()
	defer m.commit.Unlock()

	m.mu.Lock()
	prev := m.state
	next := fn(prev)
	m.state = next
	observers := m.observers
	m.mu.Unlock()

	if !next.Same(prev) {
		for _, fn := range observers {
			fn(next)
		}
	}
	return next
}
