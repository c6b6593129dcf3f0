package tests

import (
	"context"
	"errors"
	"sync"

	"github.com/code-payments/flipchat-entitlements/keyvalue"
)

var errStorageUnavailable = errors.New("storage unavailable")

// failures selects which keyvalue operations a failingStore rejects.
type failures struct {
	getBool bool
	setBool bool
	getInt  bool
	setInt  bool
}

// failingStore wraps a keyvalue.Store and fails the selected operations with
// errStorageUnavailable.
type failingStore struct {
	keyvalue.Store

	mu       sync.Mutex
	failures failures
}

func newFailingStore(kv keyvalue.Store, f failures) *failingStore {
	return &failingStore{Store: kv, failures: f}
}

func (s *failingStore) setFailures(f failures) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = f
}

func (s *failingStore) current() failures {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failures
}

func (s *failingStore) GetBool(ctx context.Context, key string) (bool, error) {
	if s.current().getBool {
		return false, errStorageUnavailable
	}
	return s.Store.GetBool(ctx, key)
}

func (s *failingStore) SetBool(ctx context.Context, key string, value bool) error {
	if s.current().setBool {
		return errStorageUnavailable
	}
	return s.Store.SetBool(ctx, key, value)
}

func (s *failingStore) GetInt(ctx context.Context, key string) (int64, error) {
	if s.current().getInt {
		return 0, errStorageUnavailable
	}
	return s.Store.GetInt(ctx, key)
}

func (s *failingStore) SetInt(ctx context.Context, key string, value int64) error {
	if s.current().setInt {
		return errStorageUnavailable
	}
	return s.Store.SetInt(ctx, key, value)
}
