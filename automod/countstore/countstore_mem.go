package countstore

import (
	"context"
	"sync"
)

type MemCountStore struct {
	mu     sync.Mutex
	Counts map[string]int
}

func NewMemCountStore() *MemCountStore {
	return &MemCountStore{
		Counts: make(map[string]int),
	}
}

func (s *MemCountStore) GetCount(ctx context.Context, name, val string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Counts[counterKey(name, val)], nil
}

func (s *MemCountStore) Increment(ctx context.Context, name, val string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := counterKey(name, val)
	s.Counts[k]++
	return s.Counts[k], nil
}

func (s *MemCountStore) Reset(ctx context.Context, name, val string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.Counts, counterKey(name, val))
	return nil
}
