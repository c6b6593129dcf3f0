package tests

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/code-payments/flipchat-entitlements/keyvalue"
)

func RunStoreTests(t *testing.T, s keyvalue.Store, teardown func()) {
	for _, tf := range []func(t *testing.T, s keyvalue.Store){
		testKeyValueStore_Bool,
		testKeyValueStore_Int,
		testKeyValueStore_SeparateNamespaces,
		testKeyValueStore_Defaults,
	} {
		tf(t, s)
		teardown()
	}
}

func testKeyValueStore_Bool(t *testing.T, s keyvalue.Store) {
	ctx := context.Background()

	_, err := s.GetBool(ctx, "gold100")
	require.ErrorIs(t, err, keyvalue.ErrNotFound)

	require.NoError(t, s.SetBool(ctx, "gold100", true))

	actual, err := s.GetBool(ctx, "gold100")
	require.NoError(t, err)
	require.True(t, actual)

	require.NoError(t, s.SetBool(ctx, "gold100", false))

	actual, err = s.GetBool(ctx, "gold100")
	require.NoError(t, err)
	require.False(t, actual)

	_, err = s.GetBool(ctx, "silver50")
	require.ErrorIs(t, err, keyvalue.ErrNotFound)
}

func testKeyValueStore_Int(t *testing.T, s keyvalue.Store) {
	ctx := context.Background()

	_, err := s.GetInt(ctx, "extra_life")
	require.ErrorIs(t, err, keyvalue.ErrNotFound)

	require.NoError(t, s.SetInt(ctx, "extra_life", 3))

	actual, err := s.GetInt(ctx, "extra_life")
	require.NoError(t, err)
	require.EqualValues(t, 3, actual)

	require.NoError(t, s.SetInt(ctx, "extra_life", 0))

	actual, err = s.GetInt(ctx, "extra_life")
	require.NoError(t, err)
	require.EqualValues(t, 0, actual)

	require.ErrorIs(t, s.SetInt(ctx, "extra_life", -1), keyvalue.ErrInvalidValue)

	actual, err = s.GetInt(ctx, "extra_life")
	require.NoError(t, err)
	require.EqualValues(t, 0, actual)
}

func testKeyValueStore_SeparateNamespaces(t *testing.T, s keyvalue.Store) {
	ctx := context.Background()

	require.NoError(t, s.SetBool(ctx, "shared", true))
	require.NoError(t, s.SetInt(ctx, "shared", 7))

	b, err := s.GetBool(ctx, "shared")
	require.NoError(t, err)
	require.True(t, b)

	i, err := s.GetInt(ctx, "shared")
	require.NoError(t, err)
	require.EqualValues(t, 7, i)
}

func testKeyValueStore_Defaults(t *testing.T, s keyvalue.Store) {
	ctx := context.Background()

	b, err := keyvalue.BoolOrDefault(ctx, s, "missing", false)
	require.NoError(t, err)
	require.False(t, b)

	i, err := keyvalue.IntOrDefault(ctx, s, "missing", 0)
	require.NoError(t, err)
	require.EqualValues(t, 0, i)

	require.NoError(t, s.SetInt(ctx, "present", 5))
	i, err = keyvalue.IntOrDefault(ctx, s, "present", 0)
	require.NoError(t, err)
	require.EqualValues(t, 5, i)
}
