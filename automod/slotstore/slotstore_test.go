package slotstore

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// walks the free list and every bucket chain, checking the arena invariants
func checkInvariants[T any](s *Store[T]) error {
	free := 0
	seen := make(map[Handle]bool)
	for h := s.freeHead; h != NoHandle; h = s.slots[h].next {
		if s.slots[h].inUse {
			return fmt.Errorf("slot %d on free list is in use", h)
		}
		if seen[h] {
			return fmt.Errorf("free list cycle at slot %d", h)
		}
		seen[h] = true
		free++
	}
	if s.live+free != len(s.slots) {
		return fmt.Errorf("live (%d) + free (%d) != capacity (%d)", s.live, free, len(s.slots))
	}

	keys := make(map[Key]bool)
	chained := 0
	for b, head := range s.buckets {
		for h := head; h != NoHandle; h = s.slots[h].next {
			sl := s.slots[h]
			if !sl.inUse {
				return fmt.Errorf("slot %d in bucket %d is not in use", h, b)
			}
			if seen[h] {
				return fmt.Errorf("slot %d reachable twice", h)
			}
			if s.bucket(sl.key) != b {
				return fmt.Errorf("slot %d chained in wrong bucket", h)
			}
			if keys[sl.key] {
				return fmt.Errorf("duplicate key %s", sl.key)
			}
			seen[h] = true
			keys[sl.key] = true
			chained++
		}
	}
	if chained != s.live {
		return fmt.Errorf("chained slots (%d) != live count (%d)", chained, s.live)
	}

	recent := 0
	for h := s.mru; h != NoHandle; h = s.slots[h].older {
		recent++
		if recent > s.live {
			return fmt.Errorf("recency list longer than live count")
		}
	}
	if recent != s.live {
		return fmt.Errorf("recency list (%d) != live count (%d)", recent, s.live)
	}
	return nil
}

func TestBucketCount(t *testing.T) {
	assert := assert.New(t)

	for _, c := range []int{1, 10, 256, 1024, 5000} {
		b := BucketCount(c)
		assert.True(isPrime(b), "bucket count %d should be prime", b)
		assert.Less(float64(c)/float64(b), maxLoadFactor)
	}
}

func TestStoreBasics(t *testing.T) {
	assert := assert.New(t)

	s := New[int](4)
	k1 := Key{A: 1, B: 100}
	k2 := Key{A: 2, B: 100}

	_, ok := s.Find(k1)
	assert.False(ok)

	h, created := s.InsertOrGet(k1)
	assert.True(created)
	*s.Value(h) = 42

	h2, created := s.InsertOrGet(k1)
	assert.False(created)
	assert.Equal(h, h2)
	assert.Equal(42, *s.Value(h2))
	assert.Equal(k1, s.Key(h2))

	_, created = s.InsertOrGet(k2)
	assert.True(created)
	assert.Equal(2, s.Len())
	assert.Equal(4, s.Cap())

	assert.True(s.Remove(k1))
	assert.False(s.Remove(k1))
	_, ok = s.Find(k1)
	assert.False(ok)
	assert.Equal(1, s.Len())
	assert.NoError(checkInvariants(s))

	// re-inserting a removed key starts from a zero payload
	h, created = s.InsertOrGet(k1)
	assert.True(created)
	assert.Equal(0, *s.Value(h))

	s.Reset()
	assert.Equal(0, s.Len())
	_, ok = s.Find(k2)
	assert.False(ok)
	assert.NoError(checkInvariants(s))
}

func TestStoreEvictsLeastRecentlyUsed(t *testing.T) {
	assert := assert.New(t)

	s := New[string](3)
	var evicted []Key
	s.OnEvict = func(k Key, v *string) {
		evicted = append(evicted, k)
	}

	for i := uint64(1); i <= 3; i++ {
		h, _ := s.InsertOrGet(Key{A: i, B: 7})
		*s.Value(h) = fmt.Sprintf("v%d", i)
	}
	// touch the oldest entry so the second one becomes least recently used
	_, ok := s.Find(Key{A: 1, B: 7})
	assert.True(ok)

	h, created := s.InsertOrGet(Key{A: 4, B: 7})
	assert.True(created)
	assert.Equal("", *s.Value(h))
	assert.Equal([]Key{{A: 2, B: 7}}, evicted)
	assert.Equal(3, s.Len())

	_, ok = s.Peek(Key{A: 2, B: 7})
	assert.False(ok)
	for _, a := range []uint64{1, 3, 4} {
		_, ok = s.Peek(Key{A: a, B: 7})
		assert.True(ok, "key %d should still be tracked", a)
	}
	assert.NoError(checkInvariants(s))
}

func TestStoreFullLoadEviction(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	const capacity = 64
	s := New[int](capacity)
	for i := 0; i < capacity; i++ {
		s.InsertOrGet(Key{A: uint64(1000 + i), B: 1})
	}
	require.Equal(capacity, s.Len())

	s.InsertOrGet(Key{A: 5000, B: 1})
	assert.Equal(capacity, s.Len())

	missing := 0
	for i := 0; i < capacity; i++ {
		if _, ok := s.Peek(Key{A: uint64(1000 + i), B: 1}); !ok {
			missing++
		}
	}
	assert.Equal(1, missing)
	_, ok := s.Peek(Key{A: 5000, B: 1})
	assert.True(ok)
	assert.NoError(checkInvariants(s))
}

func TestStoreRandomOperations(t *testing.T) {
	require := require.New(t)

	s := New[uint64](32)
	model := make(map[Key]bool)
	rng := rand.New(rand.NewSource(1))

	for i := 0; i < 5000; i++ {
		k := Key{A: uint64(rng.Intn(80)), B: uint64(rng.Intn(3))}
		switch rng.Intn(3) {
		case 0, 1:
			full := s.Len() == s.Cap()
			_, created := s.InsertOrGet(k)
			if created && full {
				// exactly one other key was lost
				lost := 0
				for mk := range model {
					if _, ok := s.Peek(mk); !ok {
						delete(model, mk)
						lost++
					}
				}
				require.Equal(1, lost)
			}
			model[k] = true
		case 2:
			require.Equal(model[k], s.Remove(k))
			delete(model, k)
		}
		require.Equal(len(model), s.Len())
		require.NoError(checkInvariants(s))
	}
}

func TestStoreRange(t *testing.T) {
	assert := assert.New(t)

	s := New[int](8)
	for i := 1; i <= 5; i++ {
		h, _ := s.InsertOrGet(Key{A: uint64(i)})
		*s.Value(h) = i
	}

	sum := 0
	s.Range(func(k Key, v *int) bool {
		sum += *v
		return true
	})
	assert.Equal(15, sum)

	var first []uint64
	s.Range(func(k Key, v *int) bool {
		first = append(first, k.A)
		return len(first) < 2
	})
	assert.Equal([]uint64{5, 4}, first)
}

func TestHashSpreadsSequentialIDs(t *testing.T) {
	assert := assert.New(t)

	s := New[int](256)
	counts := make(map[int]int)
	base := uint64(1100000000000000000)
	for i := uint64(0); i < 256; i++ {
		counts[s.bucket(Key{A: base + i, B: 900000000000000000})]++
	}
	longest := 0
	for _, c := range counts {
		if c > longest {
			longest = c
		}
	}
	assert.LessOrEqual(longest, 6)
}
