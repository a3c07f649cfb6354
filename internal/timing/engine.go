package timing

import (
	"container/heap"
	"sync"
	"sync/atomic"
)

// Engine is a serial discrete-event engine. The engine loop is the only
// goroutine that advances virtual time and fires events; slow real-world
// work (such as network I/O) is dispatched through Go so it never blocks
// the loop. Workers hand results back by scheduling follow-up events,
// never by touching engine state directly.
//
// Each worker carries a lower bound on the virtual time of any event it
// may still schedule. The loop never fires an event beyond the smallest
// in-flight bound, so events keep firing in nondecreasing virtual-time
// order even though workers run on real goroutines.
type Engine struct {
	queue *EventQueue

	// wake is signalled whenever the queue grows or a worker finishes,
	// so an idle loop re-examines its state.
	wake     chan struct{}
	inflight atomic.Int64

	flightMu sync.Mutex
	flights  flightHeap

	nowMu sync.RWMutex
	now   VTime

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewEngine creates an Engine with virtual time zero.
func NewEngine() *Engine {
	return &Engine{
		queue:  NewEventQueue(),
		wake:   make(chan struct{}, 1),
		stopCh: make(chan struct{}),
	}
}

// Schedule registers an event to fire in the future. It is safe to call
// from any goroutine. An event whose time already passed is not an error;
// it fires as soon as possible without moving the clock backward.
func (e *Engine) Schedule(evt Event) {
	e.queue.Push(evt)
	e.notify()
}

// Go runs fn on its own goroutine and tracks it as in-flight work.
// notBefore is fn's promise: any event it schedules is due at notBefore
// or later. The loop holds back events past that bound until fn returns,
// and does not terminate for an empty queue while work is in flight.
func (e *Engine) Go(notBefore VTime, fn func()) {
	tok := &flightToken{bound: notBefore}
	e.flightMu.Lock()
	heap.Push(&e.flights, tok)
	e.flightMu.Unlock()

	e.inflight.Add(1)
	go func() {
		defer func() {
			tok.done.Store(true)
			e.inflight.Add(-1)
			e.notify()
		}()
		fn()
	}()
}

// Run fires events in nondecreasing virtual-time order until the queue is
// drained and no work is in flight, the clock reaches horizon, or the
// engine is shut down. A horizon of zero means no limit. Events due at or
// after the horizon are not fired.
func (e *Engine) Run(horizon VTime) error {
	for {
		select {
		case <-e.stopCh:
			return nil
		default:
		}

		next := e.queue.Peek()
		if next == nil {
			if e.inflight.Load() == 0 {
				if e.queue.Len() == 0 {
					return nil
				}
				continue
			}
			select {
			case <-e.wake:
			case <-e.stopCh:
				return nil
			}
			continue
		}

		// An in-flight worker may still schedule an event earlier than
		// the queue head; wait until the head is provably next.
		if bound, ok := e.minInflightBound(); ok && next.Time() > bound {
			select {
			case <-e.wake:
			case <-e.stopCh:
				return nil
			}
			continue
		}

		evt := e.queue.Pop()
		if evt == nil || evt.Cancelled() {
			continue
		}

		if horizon > 0 && evt.Time() >= horizon {
			e.setNow(horizon)
			return nil
		}

		if evt.Time() > e.CurrentTime() {
			e.setNow(evt.Time())
		}

		if handler := evt.Handler(); handler != nil {
			if err := handler.Handle(evt); err != nil {
				return err
			}
		}
	}
}

// Drain blocks until all in-flight workers started via Go have finished.
// It is meant to be called after Run returns, by the same goroutine.
func (e *Engine) Drain() {
	for e.inflight.Load() > 0 {
		<-e.wake
	}
}

// Shutdown stops the engine loop and discards all pending events.
// Idempotent and safe to call from any goroutine.
func (e *Engine) Shutdown() {
	e.stopOnce.Do(func() {
		close(e.stopCh)
	})
	e.queue.Clear()
}

// CurrentTime returns the virtual time of the most recently fired event.
func (e *Engine) CurrentTime() VTime {
	e.nowMu.RLock()
	defer e.nowMu.RUnlock()
	return e.now
}

// Pending returns the number of not-yet-fired events.
func (e *Engine) Pending() int {
	return e.queue.Len()
}

// minInflightBound returns the smallest bound among in-flight workers.
// Finished tokens are discarded lazily.
func (e *Engine) minInflightBound() (VTime, bool) {
	e.flightMu.Lock()
	defer e.flightMu.Unlock()
	for len(e.flights) > 0 && e.flights[0].done.Load() {
		heap.Pop(&e.flights)
	}
	if len(e.flights) == 0 {
		return 0, false
	}
	return e.flights[0].bound, true
}

func (e *Engine) setNow(t VTime) {
	e.nowMu.Lock()
	e.now = t
	e.nowMu.Unlock()
}

func (e *Engine) notify() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

type flightToken struct {
	bound VTime
	done  atomic.Bool
}

type flightHeap []*flightToken

func (h flightHeap) Len() int           { return len(h) }
func (h flightHeap) Less(i, j int) bool { return h[i].bound < h[j].bound }
func (h flightHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *flightHeap) Push(x any) {
	*h = append(*h, x.(*flightToken))
}

func (h *flightHeap) Pop() any {
	old := *h
	n := len(old)
	tok := old[n-1]
	*h = old[:n-1]
	return tok
}
