// Fixed-size message history, used as the payload of spam tracker slots.
package ringhist

import (
	"time"
)

// One observed message: when it was seen, and a fingerprint of its content.
type Record struct {
	At          time.Time
	Fingerprint uint32
}

// Circular buffer of the most recent records. Writing past capacity overwrites the oldest record.
//
// The zero value has no capacity; use New or Over.
type Ring struct {
	buf []Record
	// next write position
	head  int
	count int
}

// Allocates a ring holding up to size records.
func New(size int) Ring {
	return Over(make([]Record, size))
}

// Returns an empty ring backed by the caller's storage. The ring's capacity is len(buf).
func Over(buf []Record) Ring {
	return Ring{buf: buf}
}

func (r *Ring) Push(rec Record) {
	if len(r.buf) == 0 {
		return
	}
	r.buf[r.head] = rec
	r.head = (r.head + 1) % len(r.buf)
	if r.count < len(r.buf) {
		r.count++
	}
}

func (r *Ring) Len() int {
	return r.count
}

func (r *Ring) Cap() int {
	return len(r.buf)
}

// Calls fn for every record, oldest first.
func (r *Ring) Each(fn func(rec Record)) {
	start := r.head - r.count
	if start < 0 {
		start += len(r.buf)
	}
	for i := 0; i < r.count; i++ {
		fn(r.buf[(start+i)%len(r.buf)])
	}
}

// Copy of the contents, oldest first.
func (r *Ring) Records() []Record {
	out := make([]Record, 0, r.count)
	r.Each(func(rec Record) {
		out = append(out, rec)
	})
	return out
}

// Drops all records, keeping the backing storage.
func (r *Ring) Reset() {
	r.head = 0
	r.count = 0
}
