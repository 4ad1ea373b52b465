package pipeline

import (
	"sync"

	"valuation-pipeline/internal/domain"
)

// EventQueue is the in-memory FIFO of bar updates awaiting processing. It
// decouples feed arrival rate from worker processing rate; when the governor
// denies a worker, events simply stay queued until a later bar triggers
// another acquisition attempt.
type EventQueue struct {
	mu     sync.Mutex
	events []domain.BarUpdate
}

// NewEventQueue creates an empty queue.
func NewEventQueue() *EventQueue {
	return &EventQueue{}
}

// Push appends an event.
func (q *EventQueue) Push(e domain.BarUpdate) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.events = append(q.events, e)
}

// Pop removes and returns the oldest event. The second return is false when
// the queue is empty.
func (q *EventQueue) Pop() (domain.BarUpdate, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return domain.BarUpdate{}, false
	}
	e := q.events[0]
	q.events = q.events[1:]
	return e, true
}

// Len reports the number of queued events.
func (q *EventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}
