// Discrete-event primitives for the virtual clock
package timing

import (
	"sync/atomic"
	"time"

	"github.com/rs/xid"
)

// VTime is a point in virtual time, expressed as an offset from the
// start of the simulation. It is advanced only by the Engine and is
// unrelated to wall-clock time.
type VTime time.Duration

// Add returns the virtual time d after t.
func (t VTime) Add(d time.Duration) VTime {
	return t + VTime(d)
}

// Seconds returns the virtual time as a floating-point number of seconds.
func (t VTime) Seconds() float64 {
	return time.Duration(t).Seconds()
}

func (t VTime) String() string {
	return time.Duration(t).String()
}

// An Event is something that happens at a known virtual time. Events are
// created by the component that will handle them and registered with the
// Engine via Schedule.
type Event interface {
	// Time returns the virtual time at which the event is due.
	Time() VTime

	// Handler returns the handler that processes the event.
	Handler() Handler

	// Cancelled reports whether the event was cancelled while pending.
	// Cancelled events are silently dropped by the Engine.
	Cancelled() bool
}

// A Handler processes events. A handler runs on the engine loop and must
// not block; long-running work is handed off through Engine.Go.
type Handler interface {
	Handle(e Event) error
}

// EventBase provides the common fields and behavior for events. Concrete
// event types embed a *EventBase and add their own payload.
type EventBase struct {
	ID        string
	time      VTime
	handler   Handler
	cancelled atomic.Bool
}

// NewEventBase creates an EventBase due at t, handled by handler.
func NewEventBase(t VTime, handler Handler) *EventBase {
	return &EventBase{
		ID:      xid.New().String(),
		time:    t,
		handler: handler,
	}
}

// Time returns the virtual time the event is due.
func (e *EventBase) Time() VTime {
	return e.time
}

// Handler returns the handler that processes the event.
func (e *EventBase) Handler() Handler {
	return e.handler
}

// Cancel marks a pending event so the engine drops it instead of firing
// it. Cancelling an already-fired or already-cancelled event is a no-op.
func (e *EventBase) Cancel() {
	e.cancelled.Store(true)
}

// Cancelled reports whether Cancel was called.
func (e *EventBase) Cancelled() bool {
	return e.cancelled.Load()
}
