package memory

import (
	"context"
	"sync"

	"github.com/code-payments/flipchat-entitlements/keyvalue"
)

type InMemoryStore struct {
	mu    sync.RWMutex
	bools map[string]bool
	ints  map[string]int64
}

func NewInMemory() keyvalue.Store {
	return &InMemoryStore{
		bools: map[string]bool{},
		ints:  map[string]int64{},
	}
}

func (s *InMemoryStore) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.bools = make(map[string]bool)
	s.ints = make(map[string]int64)
}

func (s *InMemoryStore) GetBool(_ context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.bools[key]
	if !ok {
		return false, keyvalue.ErrNotFound
	}
	return v, nil
}

func (s *InMemoryStore) SetBool(_ context.Context, key string, value bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.bools[key] = value
	return nil
}

func (s *InMemoryStore) GetInt(_ context.Context, key string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.ints[key]
	if !ok {
		return 0, keyvalue.ErrNotFound
	}
	return v, nil
}

func (s *InMemoryStore) SetInt(_ context.Context, key string, value int64) error {
	if value < 0 {
		return keyvalue.ErrInvalidValue
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.ints[key] = value
	return nil
}
