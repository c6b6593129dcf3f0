package sqlite

import (
	"testing"

	"github.com/stretchr/testify/require"

	iaptests "github.com/code-payments/flipchat-entitlements/iap/tests"
)

func TestIAP_SqliteManager(t *testing.T) {
	kv, err := NewInSqlite(t.TempDir())
	require.NoError(t, err)
	defer kv.Close()

	teardown := func() {
		kv.reset()
	}
	iaptests.RunManagerTests(t, kv, teardown)
}
