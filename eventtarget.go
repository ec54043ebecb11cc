package asyncore

import (
	"sync"
)

// Built-in event names, see [Scheduler.On].
const (
	// EventStdinLine is fired by [Stdin] once per line read, with the line
	// (without its terminator) as the sole argument.
	EventStdinLine = "stdin_line"

	// EventWorkerExited is fired once a [Worker] process has exited and its
	// pipes are drained, with the *Worker and the exit error (possibly nil)
	// as arguments.
	EventWorkerExited = "worker_exited"
)

// EventListenerFunc is a callback registered via [EventTarget.AddEventListener].
type EventListenerFunc func(event *Event)

// ListenerID identifies a listener for removal. Function values cannot be
// compared, so every registration gets a fresh id.
type ListenerID uint64

type listenerEntry struct {
	listener EventListenerFunc
	id       ListenerID
	once     bool
}

// EventTarget is a named event bus with synchronous, ordered dispatch.
//
// It is safe for concurrent registration, though listeners are always invoked
// on the goroutine calling DispatchEvent, which for a [Scheduler] is the loop.
type EventTarget struct {
	listeners      map[string][]listenerEntry
	nextListenerID ListenerID
	mu             sync.RWMutex
}

// Event is the value passed to listeners.
type Event struct {
	Target *EventTarget
	Type   string
	Args   []any
}

// Arg returns the i-th argument, or nil if there are fewer arguments.
func (e *Event) Arg(i int) any {
	if e == nil || i < 0 || i >= len(e.Args) {
		return nil
	}
	return e.Args[i]
}

// NewEventTarget returns an EventTarget with no listeners.
func NewEventTarget() *EventTarget {
	return &EventTarget{
		listeners:      make(map[string][]listenerEntry),
		nextListenerID: 1,
	}
}

// AddEventListener registers listener for eventType. A nil listener is
// ignored, and reported with the zero ListenerID.
func (et *EventTarget) AddEventListener(eventType string, listener EventListenerFunc) ListenerID {
	return et.addListener(eventType, listener, false)
}

// AddEventListenerOnce is like AddEventListener, but the listener is removed
// after its first invocation.
func (et *EventTarget) AddEventListenerOnce(eventType string, listener EventListenerFunc) ListenerID {
	return et.addListener(eventType, listener, true)
}

func (et *EventTarget) addListener(eventType string, listener EventListenerFunc, once bool) ListenerID {
	if listener == nil {
		return 0
	}

	et.mu.Lock()
	defer et.mu.Unlock()

	id := et.nextListenerID
	et.nextListenerID++

	et.listeners[eventType] = append(et.listeners[eventType], listenerEntry{
		listener: listener,
		id:       id,
		once:     once,
	})
	return id
}

// RemoveEventListenerByID removes a listener, reporting whether it existed.
func (et *EventTarget) RemoveEventListenerByID(eventType string, id ListenerID) bool {
	et.mu.Lock()
	defer et.mu.Unlock()
	return et.removeLocked(eventType, id)
}

func (et *EventTarget) removeLocked(eventType string, id ListenerID) bool {
	entries := et.listeners[eventType]
	for i, entry := range entries {
		if entry.id == id {
			// copy, so snapshots taken by an in-flight dispatch are unaffected
			next := make([]listenerEntry, 0, len(entries)-1)
			next = append(next, entries[:i]...)
			next = append(next, entries[i+1:]...)
			if len(next) == 0 {
				delete(et.listeners, eventType)
			} else {
				et.listeners[eventType] = next
			}
			return true
		}
	}
	return false
}

// DispatchEvent calls every listener of event.Type in registration order.
// Listeners added during dispatch are not called until the next dispatch.
// Panics propagate to the caller.
func (et *EventTarget) DispatchEvent(event *Event) {
	if event == nil {
		return
	}
	event.Target = et

	et.mu.RLock()
	entries := et.listeners[event.Type]
	et.mu.RUnlock()

	for _, entry := range entries {
		if entry.once {
			et.mu.Lock()
			removed := et.removeLocked(event.Type, entry.id)
			et.mu.Unlock()
			if !removed {
				continue
			}
		}
		entry.listener(event)
	}
}

// ListenerCount returns the number of listeners for eventType.
func (et *EventTarget) ListenerCount(eventType string) int {
	et.mu.RLock()
	defer et.mu.RUnlock()
	return len(et.listeners[eventType])
}
