package memory

import (
	"testing"

	"github.com/code-payments/flipchat-entitlements/keyvalue/tests"
)

func TestKeyValue_MemoryStore(t *testing.T) {
	testStore := NewInMemory()
	teardown := func() {
		testStore.(*InMemoryStore).reset()
	}
	tests.RunStoreTests(t, testStore, teardown)
}
