package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/code-payments/flipchat-entitlements/keyvalue/tests"
)

func TestKeyValue_SqliteStore(t *testing.T) {
	testStore, err := NewInSqlite(t.TempDir())
	require.NoError(t, err)
	defer testStore.Close()

	teardown := func() {
		testStore.reset()
	}
	tests.RunStoreTests(t, testStore, teardown)
}

func TestKeyValue_SqliteSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	first, err := NewInSqlite(dir)
	require.NoError(t, err)
	require.NoError(t, first.SetBool(ctx, "gold100", true))
	require.NoError(t, first.SetInt(ctx, "extra_life", 6))
	require.NoError(t, first.Close())

	second, err := NewInSqlite(dir)
	require.NoError(t, err)
	defer second.Close()

	purchased, err := second.GetBool(ctx, "gold100")
	require.NoError(t, err)
	require.True(t, purchased)

	balance, err := second.GetInt(ctx, "extra_life")
	require.NoError(t, err)
	require.EqualValues(t, 6, balance)
}

func TestKeyValue_SqliteRequiresDir(t *testing.T) {
	_, err := NewInSqlite("   ")
	require.Error(t, err)
}
