package states

import (
	"github.com/spaghettifunk/gantry/engine/core"
)

// StateID identifies one application state. The engine never inspects the
// value beyond equality; it is only a map key.
type StateID string

// StateNone means "no state configured".
const StateNone StateID = ""

// EnterHook runs when its state becomes the current state, including when
// the state is re-entered from itself.
type EnterHook func(state StateID)

// ScheduleFn is one tick operation of a state's schedule.
type ScheduleFn func(deltaTime float64)

// Machine drives the application states. Transitions requested with SetNext
// are applied at the beginning of the following Update, so a tick always
// runs against a stable current state.
type Machine struct {
	current StateID
	next    StateID
	hasNext bool

	enterHooks map[StateID][]EnterHook
	schedules  map[StateID][]ScheduleFn

	bus *core.EventBus
}

func NewMachine(bus *core.EventBus) *Machine {
	return &Machine{
		current:    StateNone,
		enterHooks: make(map[StateID][]EnterHook),
		schedules:  make(map[StateID][]ScheduleFn),
		bus:        bus,
	}
}

func (m *Machine) Current() StateID {
	return m.current
}

// OnEnter registers a hook fired whenever the given state is entered.
func (m *Machine) OnEnter(state StateID, hook EnterHook) {
	m.enterHooks[state] = append(m.enterHooks[state], hook)
}

// AddSchedule appends tick operations to the given state's schedule. The
// operations run in registration order on every Update while the state is
// current.
func (m *Machine) AddSchedule(state StateID, ops ...ScheduleFn) {
	m.schedules[state] = append(m.schedules[state], ops...)
}

// SetNext queues a transition to be applied on the next Update. The last
// request within a tick wins. Requesting the current state again is a valid
// re-entry and fires the enter hooks anew.
func (m *Machine) SetNext(state StateID) {
	m.next = state
	m.hasNext = true
}

// Start enters the initial state immediately.
func (m *Machine) Start(initial StateID) {
	m.enter(initial)
}

// Update applies a pending transition, then runs the current state's
// schedule once.
func (m *Machine) Update(deltaTime float64) {
	if m.hasNext {
		next := m.next
		m.hasNext = false
		m.enter(next)
	}
	for _, op := range m.schedules[m.current] {
		op(deltaTime)
	}
}

func (m *Machine) enter(state StateID) {
	m.current = state
	core.LogDebug("state machine - entering state '%s'", state)
	if m.bus != nil {
		m.bus.Fire(core.EventCodeStateChanged, m, core.EventContext{State: string(state)})
	}
	for _, hook := range m.enterHooks[state] {
		hook(state)
	}
}
