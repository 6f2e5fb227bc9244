package buffered

import (
	"sync"

	audit "cinelog/pkg/platform/audit"
)

const defaultCapacity = 4096

// ring is a bounded FIFO of pending events. When full, the oldest event is
// overwritten and counted as dropped.
type ring struct {
	mu      sync.Mutex
	slots   []audit.Event
	start   int
	size    int
	dropped int64
}

func newRing(capacity int) *ring {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &ring{slots: make([]audit.Event, capacity)}
}

// push appends an event and reports whether an older event was evicted.
func (r *ring) push(event audit.Event) (evicted bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	capacity := len(r.slots)
	if r.size == capacity {
		r.start = (r.start + 1) % capacity
		r.size--
		r.dropped++
		evicted = true
	}
	r.slots[(r.start+r.size)%capacity] = event
	r.size++
	return evicted
}

// take removes up to n events in arrival order.
func (r *ring) take(n int) []audit.Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.size == 0 || n <= 0 {
		return nil
	}
	n = min(n, r.size)

	out := make([]audit.Event, n)
	capacity := len(r.slots)
	for i := range n {
		idx := (r.start + i) % capacity
		out[i] = r.slots[idx]
		r.slots[idx] = audit.Event{}
	}
	r.start = (r.start + n) % capacity
	r.size -= n
	return out
}

func (r *ring) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size
}

func (r *ring) droppedCount() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}
