// FILE: logtrace/src/internal/dedupe/ring.go
package dedupe

// RingBuffer is a fixed-capacity set of fingerprints with FIFO eviction.
// Not safe for concurrent use.
type RingBuffer struct {
	slots []uint64
	next  int
	seen  map[uint64]struct{}
}

// New creates a ring holding at most capacity fingerprints.
// A capacity of zero or less disables deduplication.
func New(capacity int) *RingBuffer {
	if capacity < 0 {
		capacity = 0
	}
	return &RingBuffer{
		slots: make([]uint64, 0, capacity),
		seen:  make(map[uint64]struct{}, capacity),
	}
}

// ContainsOrInsert returns true if fp is already present. Otherwise fp is
// inserted, evicting the oldest entry when the ring is full, and false is returned.
func (r *RingBuffer) ContainsOrInsert(fp uint64) bool {
	capacity := cap(r.slots)
	if capacity == 0 {
		return false
	}

	if _, ok := r.seen[fp]; ok {
		return true
	}

	if len(r.slots) < capacity {
		r.slots = append(r.slots, fp)
		r.seen[fp] = struct{}{}
		return false
	}

	delete(r.seen, r.slots[r.next])
	r.slots[r.next] = fp
	r.seen[fp] = struct{}{}
	r.next = (r.next + 1) % capacity
	return false
}

// Contains reports membership without inserting.
func (r *RingBuffer) Contains(fp uint64) bool {
	_, ok := r.seen[fp]
	return ok
}

// Len returns the number of fingerprints held.
func (r *RingBuffer) Len() int {
	return len(r.seen)
}

// Cap returns the configured capacity.
func (r *RingBuffer) Cap() int {
	return cap(r.slots)
}
