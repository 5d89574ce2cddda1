package data

// A fixed capacity circular store of the most recent build times.
// Not safe for concurrent use; the tracker serializes access.
type Ring struct {
	slots []Sample
	// Next slot to write
	idx int
	// Number of slots ever written, saturating at capacity
	total int
}

func NewRing(capacity int) (*Ring, error) {
	if capacity <= 0 {
		return nil, NewDataError(nil, "ring capacity must be at least 1, found %d", capacity)
	}
	return &Ring{slots: make([]Sample, capacity)}, nil
}

// Add stores a sample at the cursor and advances it. Invalid samples are
// rejected without touching the ring.
func (r *Ring) Add(s Sample) error {
	if s.IsEmpty() || !s.Valid() {
		return NewDataError(ErrInvalidSample, "circuit build time %s is out of range", s)
	}

	r.slots[r.idx] = s
	r.idx = (r.idx + 1) % len(r.slots)
	if r.total < len(r.slots) {
		r.total++
	}

	return nil
}

func (r *Ring) Capacity() int {
	return len(r.slots)
}

// Total is the number of valid slots
func (r *Ring) Total() int {
	return r.total
}

// Index is the write cursor
func (r *Ring) Index() int {
	return r.idx
}

// Reset empties every slot
func (r *Ring) Reset() {
	clear(r.slots)
	r.idx = 0
	r.total = 0
}

// Max returns the largest measured build time, or 0 when there is none
func (r *Ring) Max() uint32 {
	var max uint32
	for _, s := range r.slots {
		if ms, ok := s.Millis(); ok && ms > max {
			max = ms
		}
	}
	return max
}

// AbandonedCount counts abandoned samples
func (r *Ring) AbandonedCount() int {
	n := 0
	for _, s := range r.slots {
		if s.IsAbandoned() {
			n++
		}
	}
	return n
}

// Each visits every non-empty slot in storage order
func (r *Ring) Each(fn func(Sample)) {
	for _, s := range r.slots {
		if !s.IsEmpty() {
			fn(s)
		}
	}
}

// Samples copies out every non-empty slot
func (r *Ring) Samples() []Sample {
	out := make([]Sample, 0, r.total)
	r.Each(func(s Sample) {
		out = append(out, s)
	})
	return out
}
