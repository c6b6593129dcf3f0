package memory

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/flipchat-entitlements/iap"
)

var (
	testGold = &iap.Product{ID: "gold100", Price: decimal.RequireFromString("0.99"), Kind: iap.ProductKindNonConsumable}
	testLife = &iap.Product{ID: "extra_life", Price: decimal.RequireFromString("1.99"), Kind: iap.ProductKindConsumable}
)

func TestStore_FetchProducts(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory(testGold, testLife)

	products, err := s.FetchProducts(ctx, []string{"extra_life", "missing"})
	require.NoError(t, err)
	require.Len(t, products, 1)
	require.Equal(t, "extra_life", products[0].ID)

	s.SetFetchError(ErrStoreUnavailable)
	_, err = s.FetchProducts(ctx, []string{"gold100"})
	require.ErrorIs(t, err, ErrStoreUnavailable)

	require.Equal(t, 2, s.FetchCount())
}

func TestStore_Purchase(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory(testGold)

	s.SetNextPurchaseOutcomes(iap.PurchaseOutcomePending)
	result, err := s.Purchase(ctx, testGold)
	require.NoError(t, err)
	require.Equal(t, iap.PurchaseOutcomePending, result.Outcome)
	require.Nil(t, result.Verification)

	result, err = s.Purchase(ctx, testGold)
	require.NoError(t, err)
	require.Equal(t, iap.PurchaseOutcomeSuccess, result.Outcome)
	require.True(t, result.Verification.Verified)
	require.Equal(t, "gold100", result.Verification.Transaction.ProductID())

	s.SetForgePurchases(true)
	result, err = s.Purchase(ctx, testGold)
	require.NoError(t, err)
	require.False(t, result.Verification.Verified)
	require.NotEmpty(t, result.Verification.Reason)

	latest, err := s.LatestTransaction(ctx, "gold100")
	require.NoError(t, err)
	require.False(t, latest.Verified)

	_, err = s.LatestTransaction(ctx, "extra_life")
	require.ErrorIs(t, err, iap.ErrNotFound)
}

func TestStore_TransactionUpdates(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := NewInMemory(testGold, testLife)
	updates := s.TransactionUpdates(ctx)
	require.Equal(t, 1, s.SubscriberCount())

	tx := s.EmitTransaction("gold100", true)
	update := <-updates
	require.True(t, update.Verified)
	require.Equal(t, tx.ID(), update.Transaction.ID())

	s.RecordTransaction("extra_life", true)
	require.NoError(t, s.RestoreCompletedTransactions(ctx))

	// Consumables are not restored.
	update = <-updates
	require.Equal(t, "gold100", update.Transaction.ProductID())

	s.EndUpdates()
	_, ok := <-updates
	require.False(t, ok)

	_, ok = <-s.TransactionUpdates(ctx)
	require.False(t, ok)
}

func TestTransaction_Finish(t *testing.T) {
	s := NewInMemory(testGold)
	tx := s.RecordTransaction("gold100", true)

	require.False(t, tx.IsFinished())
	require.NoError(t, tx.Finish(context.Background()))
	require.NoError(t, tx.Finish(context.Background()))
	require.True(t, tx.IsFinished())
	require.Equal(t, 2, tx.FinishCount())
}
