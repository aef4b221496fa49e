package tracking

import "sync"

const (
	// DefaultQueueCapacity bounds the pending queue when no capacity is configured.
	DefaultQueueCapacity = 1000
	// MaxBatchSize is the most events the collector accepts in one request.
	// Larger queues are delivered in several requests.
	MaxBatchSize = 1000
)

// Queue is the ordered pending-event buffer. Appends go to the back, a flush
// takes everything with Swap, and a failed flush puts its batch back in front
// with Prepend. Past capacity the oldest events are dropped.
type Queue struct {
	mu       sync.Mutex
	events   []EnrichedEvent
	capacity int
}

func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &Queue{capacity: capacity}
}

// Append adds e and returns how many old events were dropped to make room.
func (q *Queue) Append(e EnrichedEvent) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.events = append(q.events, e)
	return q.trimLocked()
}

// Swap removes and returns the whole queue in one step.
func (q *Queue) Swap() []EnrichedEvent {
	q.mu.Lock()
	defer q.mu.Unlock()
	batch := q.events
	q.events = nil
	return batch
}

// Prepend puts batch back ahead of anything queued since it was swapped out,
// returning how many events were dropped to respect the capacity.
func (q *Queue) Prepend(batch []EnrichedEvent) int {
	if len(batch) == 0 {
		return 0
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	merged := make([]EnrichedEvent, 0, len(batch)+len(q.events))
	merged = append(merged, batch...)
	merged = append(merged, q.events...)
	q.events = merged
	return q.trimLocked()
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Snapshot returns a copy of the queued events.
func (q *Queue) Snapshot() []EnrichedEvent {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]EnrichedEvent, len(q.events))
	copy(out, q.events)
	return out
}

func (q *Queue) trimLocked() int {
	over := len(q.events) - q.capacity
	if over <= 0 {
		return 0
	}
	q.events = append([]EnrichedEvent(nil), q.events[over:]...)
	return over
}

// chunks splits events into consecutive slices of at most size events.
func chunks(events []EnrichedEvent, size int) [][]EnrichedEvent {
	var out [][]EnrichedEvent
	for len(events) > size {
		out = append(out, events[:size:size])
		events = events[size:]
	}
	if len(events) > 0 {
		out = append(out, events)
	}
	return out
}
