package timing

import (
	"container/heap"
	"sync"
)

// EventQueue is a priority queue of events ordered by virtual time. Events
// scheduled for the same virtual time are returned in arrival order.
type EventQueue struct {
	mu     sync.Mutex
	events eventHeap
	seq    uint64
}

// NewEventQueue creates an empty EventQueue.
func NewEventQueue() *EventQueue {
	q := &EventQueue{}
	heap.Init(&q.events)
	return q
}

// Push adds an event to the queue.
func (q *EventQueue) Push(evt Event) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.seq++
	heap.Push(&q.events, queuedEvent{Event: evt, seq: q.seq})
}

// Peek returns the next due event without removing it, or nil if the
// queue is empty.
func (q *EventQueue) Peek() Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.events) == 0 {
		return nil
	}
	return q.events[0].Event
}

// Pop removes and returns the next due event, or nil if the queue is empty.
func (q *EventQueue) Pop() Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.events) == 0 {
		return nil
	}
	return heap.Pop(&q.events).(queuedEvent).Event
}

// Len returns the number of queued events.
func (q *EventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Clear drops all queued events.
func (q *EventQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.events = q.events[:0]
}

type queuedEvent struct {
	Event
	seq uint64
}

type eventHeap []queuedEvent

func (h eventHeap) Len() int {
	return len(h)
}

func (h eventHeap) Less(i, j int) bool {
	if h[i].Time() != h[j].Time() {
		return h[i].Time() < h[j].Time()
	}
	return h[i].seq < h[j].seq
}

func (h eventHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
}

func (h *eventHeap) Push(x any) {
	*h = append(*h, x.(queuedEvent))
}

func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	evt := old[n-1]
	*h = old[:n-1]
	return evt
}
