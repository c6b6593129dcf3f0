package memory

import (
	"testing"

	iaptests "github.com/code-payments/flipchat-entitlements/iap/tests"
)

func TestIAP_MemoryManager(t *testing.T) {
	kv := NewInMemory()
	teardown := func() {
		kv.(*InMemoryStore).reset()
	}
	iaptests.RunManagerTests(t, kv, teardown)
}
