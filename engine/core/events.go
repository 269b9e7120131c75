package core

import (
	"github.com/spaghettifunk/gantry/engine/containers"
)

// System internal event codes. Application should use codes beyond 255.
type SystemEventCode int

const (
	// Shuts the application down on the next frame.
	EventCodeApplicationQuit SystemEventCode = 0x01

	// The application state machine entered a new state.
	/* Context usage:
	 * state := ctx.State
	 */
	EventCodeStateChanged SystemEventCode = 0x02

	// Per-tick loading progress for one collection or dynamic file.
	/* Context usage:
	 * done, total := ctx.Done, ctx.Total
	 */
	EventCodeLoadingProgress SystemEventCode = 0x03

	// A collection or dynamic file failed to load.
	EventCodeLoadingFailed SystemEventCode = 0x04

	MaxEventCode SystemEventCode = 0xFF
)

// EventContext carries the payload of a fired event. Which fields are
// meaningful depends on the event code.
type EventContext struct {
	// Owning application state, if any.
	State string
	// Collection type or dynamic file identity.
	Name string
	// Progress counters for EventCodeLoadingProgress.
	Done  int
	Total int
}

// Should return true if handled.
type FnOnEvent func(code SystemEventCode, sender interface{}, listener interface{}, data EventContext) bool

type registeredEvent struct {
	listener interface{}
	callback FnOnEvent
}

type queuedEvent struct {
	code    SystemEventCode
	sender  interface{}
	context EventContext
}

const maxQueuedEvents = 1024

// EventBus is the engine-wide publish/subscribe hub. Events fired with
// FireDeferred are held in a ring queue until the application drains them
// once per update tick; Fire dispatches immediately.
type EventBus struct {
	registered map[SystemEventCode][]*registeredEvent
	pending    *containers.RingQueue[queuedEvent]
}

func NewEventBus() *EventBus {
	return &EventBus{
		registered: make(map[SystemEventCode][]*registeredEvent),
		pending:    containers.NewRingQueue[queuedEvent](maxQueuedEvents),
	}
}

// Register to listen for when events are sent with the provided code. Events
// with duplicate listener combos will not be registered again and will cause
// this to return false.
func (eb *EventBus) Register(code SystemEventCode, listener interface{}, onEvent FnOnEvent) bool {
	for _, e := range eb.registered[code] {
		if e.listener == listener {
			LogWarn("event bus - listener already registered for code %d", code)
			return false
		}
	}
	eb.registered[code] = append(eb.registered[code], &registeredEvent{
		listener: listener,
		callback: onEvent,
	})
	return true
}

// Unregister from listening for when events are sent with the provided code.
// If no matching registration is found, this function returns false.
func (eb *EventBus) Unregister(code SystemEventCode, listener interface{}) bool {
	events := eb.registered[code]
	for i, e := range events {
		if e.listener == listener {
			eb.registered[code] = append(events[:i], events[i+1:]...)
			return true
		}
	}
	return false
}

// Fire dispatches an event to listeners of the given code. If an event
// handler returns true, the event is considered handled and is not passed on
// to any more listeners.
func (eb *EventBus) Fire(code SystemEventCode, sender interface{}, context EventContext) bool {
	for _, e := range eb.registered[code] {
		if e.callback(code, sender, e.listener, context) {
			// Message has been handled, do not send to other listeners.
			return true
		}
	}
	return false
}

// FireDeferred queues an event for dispatch on the next Drain. Events fired
// once the queue is full are dropped with a warning.
func (eb *EventBus) FireDeferred(code SystemEventCode, sender interface{}, context EventContext) {
	if err := eb.pending.Enqueue(queuedEvent{code: code, sender: sender, context: context}); err != nil {
		LogWarn("event bus - dropping event %d: %s", code, err.Error())
	}
}

// Drain dispatches all queued events in FIFO order. Called once per
// application update tick.
func (eb *EventBus) Drain() {
	for !eb.pending.IsEmpty() {
		qe, err := eb.pending.Dequeue()
		if err != nil {
			return
		}
		eb.Fire(qe.code, qe.sender, qe.context)
	}
}
