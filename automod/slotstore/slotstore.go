// Fixed-capacity keyed storage for the in-memory trackers.
//
// A Store is an arena of slots addressed by integer handles, indexed by a chained hash table with a prime number of buckets, and a free list of unused slots. Memory is allocated once at construction; when the arena is full, inserting a new key evicts the least recently used slot.
//
// Stores are not safe for concurrent use. Callers (the trackers) hold their own lock.
package slotstore

import (
	"fmt"
)

// Composite identifier of a tracked entry, usually a pair of snowflake IDs (eg, user and guild).
type Key struct {
	A uint64
	B uint64
}

func (k Key) String() string {
	return fmt.Sprintf("%d/%d", k.A, k.B)
}

// Index of a slot in the arena. Handles are only valid until the next mutating call on the store.
type Handle int32

const NoHandle Handle = -1

// maximum bucket load factor; buckets are sized so that capacity/buckets stays below this
const maxLoadFactor = 0.7

type slot[T any] struct {
	key   Key
	inUse bool
	// next slot in the bucket chain when in use, or next free slot when not
	next Handle
	// recency list links (in-use slots only)
	newer Handle
	older Handle
	val   T
}

type Store[T any] struct {
	slots    []slot[T]
	buckets  []Handle
	freeHead Handle
	live     int

	// most and least recently used in-use slots
	mru Handle
	lru Handle

	// Called with the key and payload of a slot just before it is reclaimed by eviction. Not called for Remove or Reset.
	OnEvict func(k Key, v *T)
}

// Creates a store holding at most capacity entries. Panics if capacity is not positive.
func New[T any](capacity int) *Store[T] {
	if capacity <= 0 {
		panic(fmt.Sprintf("slotstore: invalid capacity %d", capacity))
	}
	s := &Store[T]{
		slots:   make([]slot[T], capacity),
		buckets: make([]Handle, BucketCount(capacity)),
	}
	s.Reset()
	return s
}

// Returns the number of hash buckets used for the given capacity: the smallest prime which keeps the load factor under 0.7.
func BucketCount(capacity int) int {
	n := int(float64(capacity)/maxLoadFactor) + 1
	for !isPrime(n) {
		n++
	}
	return n
}

func isPrime(n int) bool {
	if n < 2 {
		return false
	}
	if n%2 == 0 {
		return n == 2
	}
	for i := 3; i*i <= n; i += 2 {
		if n%i == 0 {
			return false
		}
	}
	return true
}

// mixes the two identifiers multiplicatively. sequential snowflakes differ mostly in low bits, so the high half is folded back in before reduction.
func hashKey(k Key) uint64 {
	h := k.A ^ (k.B * 0x9E3779B97F4A7C15)
	h ^= h >> 32
	return h
}

func (s *Store[T]) bucket(k Key) int {
	return int(hashKey(k) % uint64(len(s.buckets)))
}

// Number of live entries.
func (s *Store[T]) Len() int {
	return s.live
}

// Maximum number of live entries.
func (s *Store[T]) Cap() int {
	return len(s.slots)
}

// Empties the store: every slot goes back on the free list and every bucket is cleared.
func (s *Store[T]) Reset() {
	var zero T
	for i := range s.slots {
		s.slots[i] = slot[T]{
			next:  Handle(i + 1),
			newer: NoHandle,
			older: NoHandle,
			val:   zero,
		}
	}
	s.slots[len(s.slots)-1].next = NoHandle
	for i := range s.buckets {
		s.buckets[i] = NoHandle
	}
	s.freeHead = 0
	s.live = 0
	s.mru = NoHandle
	s.lru = NoHandle
}

func (s *Store[T]) lookup(k Key) Handle {
	for h := s.buckets[s.bucket(k)]; h != NoHandle; h = s.slots[h].next {
		sl := &s.slots[h]
		if sl.inUse && sl.key == k {
			return h
		}
	}
	return NoHandle
}

// Looks up an entry, marking it as recently used.
func (s *Store[T]) Find(k Key) (Handle, bool) {
	h := s.lookup(k)
	if h == NoHandle {
		return NoHandle, false
	}
	s.touch(h)
	return h, true
}

// Looks up an entry without changing its recency.
func (s *Store[T]) Peek(k Key) (Handle, bool) {
	h := s.lookup(k)
	return h, h != NoHandle
}

// Returns the existing entry for the key, or creates one with a zero payload. When the store is full, the least recently used entry is evicted to make room.
func (s *Store[T]) InsertOrGet(k Key) (h Handle, created bool) {
	if h, ok := s.Find(k); ok {
		return h, false
	}

	if s.freeHead != NoHandle {
		h = s.freeHead
		s.freeHead = s.slots[h].next
	} else {
		h = s.evict()
	}

	var zero T
	b := s.bucket(k)
	sl := &s.slots[h]
	sl.key = k
	sl.inUse = true
	sl.val = zero
	sl.next = s.buckets[b]
	s.buckets[b] = h
	s.pushFront(h)
	s.live++
	return h, true
}

// Deletes the entry for the key. Returns false if there was no such entry.
func (s *Store[T]) Remove(k Key) bool {
	b := s.bucket(k)
	prev := NoHandle
	for h := s.buckets[b]; h != NoHandle; h = s.slots[h].next {
		sl := &s.slots[h]
		if !sl.inUse || sl.key != k {
			prev = h
			continue
		}
		if prev == NoHandle {
			s.buckets[b] = sl.next
		} else {
			s.slots[prev].next = sl.next
		}
		s.unlinkRecency(h)

		var zero T
		sl.inUse = false
		sl.key = Key{}
		sl.val = zero
		sl.next = s.freeHead
		s.freeHead = h
		s.live--
		return true
	}
	return false
}

// reclaims the least recently used slot; only called when the free list is empty
func (s *Store[T]) evict() Handle {
	h := s.lru
	if h == NoHandle {
		// unreachable unless capacity is zero, which New rejects
		panic("slotstore: evict on empty store")
	}
	sl := &s.slots[h]
	s.unlinkChain(h)
	s.unlinkRecency(h)
	if s.OnEvict != nil {
		s.OnEvict(sl.key, &sl.val)
	}
	sl.inUse = false
	s.live--
	return h
}

func (s *Store[T]) unlinkChain(h Handle) {
	b := s.bucket(s.slots[h].key)
	if s.buckets[b] == h {
		s.buckets[b] = s.slots[h].next
		return
	}
	for cur := s.buckets[b]; cur != NoHandle; cur = s.slots[cur].next {
		if s.slots[cur].next == h {
			s.slots[cur].next = s.slots[h].next
			return
		}
	}
}

func (s *Store[T]) pushFront(h Handle) {
	sl := &s.slots[h]
	sl.newer = NoHandle
	sl.older = s.mru
	if s.mru != NoHandle {
		s.slots[s.mru].newer = h
	}
	s.mru = h
	if s.lru == NoHandle {
		s.lru = h
	}
}

func (s *Store[T]) unlinkRecency(h Handle) {
	sl := &s.slots[h]
	if sl.newer != NoHandle {
		s.slots[sl.newer].older = sl.older
	} else {
		s.mru = sl.older
	}
	if sl.older != NoHandle {
		s.slots[sl.older].newer = sl.newer
	} else {
		s.lru = sl.newer
	}
	sl.newer = NoHandle
	sl.older = NoHandle
}

func (s *Store[T]) touch(h Handle) {
	if s.mru == h {
		return
	}
	s.unlinkRecency(h)
	s.pushFront(h)
}

// Payload of an in-use slot. The pointer is valid until the next mutating call on the store.
func (s *Store[T]) Value(h Handle) *T {
	return &s.slots[h].val
}

func (s *Store[T]) Key(h Handle) Key {
	return s.slots[h].key
}

// Calls fn for every live entry, most recently used first, until fn returns false. fn must not mutate the store.
func (s *Store[T]) Range(fn func(k Key, v *T) bool) {
	for h := s.mru; h != NoHandle; h = s.slots[h].older {
		if !fn(s.slots[h].key, &s.slots[h].val) {
			return
		}
	}
}
