package tests

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/code-payments/flipchat-entitlements/event"
	"github.com/code-payments/flipchat-entitlements/iap"
	"github.com/code-payments/flipchat-entitlements/iap/memory"
	"github.com/code-payments/flipchat-entitlements/keyvalue"
)

const (
	waitFor = 2 * time.Second
	tick    = 10 * time.Millisecond
)

var (
	gold100 = &iap.Product{
		ID:           "gold100",
		DisplayName:  "100 Gold",
		Description:  "Unlocks the gold tier",
		Price:        decimal.RequireFromString("0.99"),
		CurrencyCode: "USD",
		Kind:         iap.ProductKindNonConsumable,
	}
	extraLife = &iap.Product{
		ID:           "extra_life",
		DisplayName:  "Extra Life",
		Description:  "One more try",
		Price:        decimal.RequireFromString("1.99"),
		CurrencyCode: "USD",
		Kind:         iap.ProductKindConsumable,
	}
	premium = &iap.Product{
		ID:           "premium",
		DisplayName:  "Premium",
		Description:  "Monthly subscription",
		Price:        decimal.RequireFromString("4.99"),
		CurrencyCode: "USD",
		Kind:         iap.ProductKindAutoRenewable,
	}

	allProductIDs = []string{gold100.ID, extraLife.ID, premium.ID}
)

// RunManagerTests runs the iap.Manager behaviour suite against kv, using a
// simulated store for every test.
func RunManagerTests(t *testing.T, kv keyvalue.Store, teardown func()) {
	for _, tf := range []func(t *testing.T, kv keyvalue.Store){
		testManager_UnmanagedPurchaseIgnored,
		testManager_AddPurchaseIdempotent,
		testManager_DecrementFloorsAtZero,
		testManager_PurchasesSurviveRestart,
		testManager_UnverifiedTransactionsIgnored,
		testManager_ListenerReconcilesVerifiedUpdate,
		testManager_ConsumableGrants,
		testManager_CloseStopsReconciliation,
		testManager_PurchaseNotCompleted,
		testManager_RefreshProducts,
		testManager_RefreshProductsIfStale,
		testManager_IsPurchasedFallback,
		testManager_LatestTransactionCache,
		testManager_RestorePurchases,
		testManager_UpdatesEndTriggersRefresh,
		testManager_Notifications,
		testManager_ConcurrentCredits,
		testManager_AddConsumableIgnoresNonPositive,
		testManager_NonPositiveGrantFallsBackToDefault,
		testManager_PurchaseNotPersisted,
		testManager_UnreadablePurchaseFlag,
		testManager_UnreadableBalance,
		testManager_RefreshOutlivesCallerContext,
	} {
		tf(t, kv)
		teardown()
	}
}

type recorder struct {
	mu      sync.Mutex
	changes []iap.Change
}

func (r *recorder) Notify(change iap.Change) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, change)
}

func (r *recorder) count(kind iap.ChangeKind, productID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int
	for _, c := range r.changes {
		if c.Kind == kind && c.ProductID == productID {
			n++
		}
	}
	return n
}

func newManager(t *testing.T, kv keyvalue.Store, store iap.StoreService, cfg iap.Config, notifier iap.Notifier) *iap.Manager {
	log := zap.Must(zap.NewDevelopment())
	if cfg.ProductIDs == nil {
		cfg.ProductIDs = allProductIDs
	}
	return iap.NewManager(log, cfg, store, kv, notifier, nil)
}

func waitForListener(t *testing.T, store *memory.Store) {
	require.Eventually(t, func() bool {
		return store.SubscriberCount() == 1
	}, waitFor, tick)
}

func waitForCatalog(t *testing.T, m *iap.Manager, size int) {
	require.Eventually(t, func() bool {
		return len(m.Products()) == size
	}, waitFor, tick)
}

func testManager_UnmanagedPurchaseIgnored(t *testing.T, kv keyvalue.Store) {
	ctx := context.Background()

	m := newManager(t, kv, memory.NewInMemory(gold100), iap.Config{ProductIDs: []string{gold100.ID}}, nil)
	defer m.Close()

	m.AddPurchase(ctx, "unknown")
	require.Empty(t, m.PurchasedProducts())

	_, err := kv.GetBool(ctx, "unknown")
	require.ErrorIs(t, err, keyvalue.ErrNotFound)
}

func testManager_AddPurchaseIdempotent(t *testing.T, kv keyvalue.Store) {
	ctx := context.Background()

	m := newManager(t, kv, memory.NewInMemory(gold100), iap.Config{}, nil)
	defer m.Close()

	m.AddPurchase(ctx, gold100.ID)
	m.AddPurchase(ctx, gold100.ID)

	require.Equal(t, []string{gold100.ID}, m.PurchasedProducts())

	owned, err := kv.GetBool(ctx, gold100.ID)
	require.NoError(t, err)
	require.True(t, owned)
}

func testManager_DecrementFloorsAtZero(t *testing.T, kv keyvalue.Store) {
	ctx := context.Background()

	m := newManager(t, kv, memory.NewInMemory(extraLife), iap.Config{}, nil)
	defer m.Close()

	for i := 0; i < 5; i++ {
		m.DecrementConsumable(ctx, extraLife.ID)
		require.EqualValues(t, 0, m.ConsumableAmountFor(ctx, extraLife.ID))
	}

	// Nothing to take away, so nothing is written.
	_, err := kv.GetInt(ctx, extraLife.ID)
	require.ErrorIs(t, err, keyvalue.ErrNotFound)

	m.AddConsumable(ctx, extraLife.ID, 1)
	m.DecrementConsumable(ctx, extraLife.ID)
	m.DecrementConsumable(ctx, extraLife.ID)

	balance, err := kv.GetInt(ctx, extraLife.ID)
	require.NoError(t, err)
	require.EqualValues(t, 0, balance)
}

func testManager_PurchasesSurviveRestart(t *testing.T, kv keyvalue.Store) {
	ctx := context.Background()

	first := newManager(t, kv, memory.NewInMemory(gold100, premium), iap.Config{}, nil)
	first.AddPurchase(ctx, gold100.ID)
	first.Close()

	// A store that has never seen the purchase, so only local state can answer.
	second := newManager(t, kv, memory.NewInMemory(gold100, premium), iap.Config{}, nil)
	defer second.Close()

	require.Equal(t, []string{gold100.ID}, second.PurchasedProducts())
	require.True(t, second.IsPurchased(ctx, gold100.ID))
	require.False(t, second.IsPurchased(ctx, premium.ID))
}

func testManager_UnverifiedTransactionsIgnored(t *testing.T, kv keyvalue.Store) {
	ctx := context.Background()

	store := memory.NewInMemory(gold100, extraLife, premium)
	m := newManager(t, kv, store, iap.Config{}, nil)
	defer m.Close()
	waitForListener(t, store)

	t.Run("TransactionUpdates", func(t *testing.T) {
		forged := store.EmitTransaction(gold100.ID, false)
		marker := store.EmitTransaction(premium.ID, true)

		// Updates are handled in order, so the forged one was seen first.
		require.Eventually(t, marker.IsFinished, waitFor, tick)

		require.False(t, forged.IsFinished())
		require.NotContains(t, m.PurchasedProducts(), gold100.ID)
		require.False(t, m.IsPurchased(ctx, gold100.ID))

		_, err := kv.GetBool(ctx, gold100.ID)
		require.ErrorIs(t, err, keyvalue.ErrNotFound)
	})

	t.Run("Purchase", func(t *testing.T) {
		store.SetForgePurchases(true)
		defer store.SetForgePurchases(false)

		require.False(t, m.Purchase(ctx, extraLife))
		require.False(t, m.Purchase(ctx, gold100))

		require.EqualValues(t, 0, m.ConsumableAmountFor(ctx, extraLife.ID))
		require.NotContains(t, m.PurchasedProducts(), gold100.ID)

		txs := store.Transactions()
		require.GreaterOrEqual(t, len(txs), 2)
		for _, tx := range txs[len(txs)-2:] {
			require.False(t, tx.IsFinished())
		}
	})
}

func testManager_ListenerReconcilesVerifiedUpdate(t *testing.T, kv keyvalue.Store) {
	ctx := context.Background()

	store := memory.NewInMemory(gold100)
	m := newManager(t, kv, store, iap.Config{ProductIDs: []string{gold100.ID}}, nil)
	defer m.Close()
	waitForListener(t, store)

	require.False(t, m.IsPurchased(ctx, gold100.ID))

	tx := store.EmitTransaction(gold100.ID, true)
	require.Eventually(t, tx.IsFinished, waitFor, tick)

	require.Equal(t, []string{gold100.ID}, m.PurchasedProducts())
	require.True(t, m.IsPurchased(ctx, gold100.ID))
	require.Equal(t, 1, tx.FinishCount())

	owned, err := kv.GetBool(ctx, gold100.ID)
	require.NoError(t, err)
	require.True(t, owned)

	// Redelivery of the same product leaves state unchanged.
	again := store.EmitTransaction(gold100.ID, true)
	require.Eventually(t, again.IsFinished, waitFor, tick)
	require.Equal(t, []string{gold100.ID}, m.PurchasedProducts())
}

func testManager_ConsumableGrants(t *testing.T, kv keyvalue.Store) {
	ctx := context.Background()

	t.Run("DefaultGrant", func(t *testing.T) {
		store := memory.NewInMemory(extraLife)
		m := newManager(t, kv, store, iap.Config{}, nil)
		defer m.Close()

		require.True(t, m.Purchase(ctx, extraLife))
		require.True(t, m.Purchase(ctx, extraLife))
		require.EqualValues(t, 6, m.ConsumableAmountFor(ctx, extraLife.ID))

		for i := 0; i < 3; i++ {
			m.DecrementConsumable(ctx, extraLife.ID)
		}
		require.EqualValues(t, 3, m.ConsumableAmountFor(ctx, extraLife.ID))

		require.NotContains(t, m.PurchasedProducts(), extraLife.ID)
		for _, tx := range store.Transactions() {
			require.Equal(t, 1, tx.FinishCount())
		}

		m.DecrementConsumable(ctx, extraLife.ID)
		m.DecrementConsumable(ctx, extraLife.ID)
		m.DecrementConsumable(ctx, extraLife.ID)
		require.EqualValues(t, 0, m.ConsumableAmountFor(ctx, extraLife.ID))
	})

	t.Run("ConfiguredGrant", func(t *testing.T) {
		m := newManager(t, kv, memory.NewInMemory(extraLife), iap.Config{
			ConsumableGrants: map[string]int64{extraLife.ID: 5},
		}, nil)
		defer m.Close()

		require.True(t, m.Purchase(ctx, extraLife))
		require.EqualValues(t, 5, m.ConsumableAmountFor(ctx, extraLife.ID))
	})

	t.Run("NonConsumable", func(t *testing.T) {
		store := memory.NewInMemory(gold100)
		m := newManager(t, kv, store, iap.Config{}, nil)
		defer m.Close()

		require.True(t, m.Purchase(ctx, gold100))
		require.Contains(t, m.PurchasedProducts(), gold100.ID)

		txs := store.Transactions()
		require.Len(t, txs, 1)
		require.True(t, txs[0].IsFinished())
	})
}

func testManager_CloseStopsReconciliation(t *testing.T, kv keyvalue.Store) {
	ctx := context.Background()

	store := memory.NewInMemory(gold100)
	m := newManager(t, kv, store, iap.Config{}, nil)
	waitForListener(t, store)

	m.Close()
	m.Close()

	tx := store.EmitTransaction(gold100.ID, true)

	require.False(t, tx.IsFinished())
	require.Empty(t, m.PurchasedProducts())
	require.False(t, m.IsPurchased(ctx, gold100.ID))

	_, err := kv.GetBool(ctx, gold100.ID)
	require.ErrorIs(t, err, keyvalue.ErrNotFound)
}

func testManager_PurchaseNotCompleted(t *testing.T, kv keyvalue.Store) {
	ctx := context.Background()

	store := memory.NewInMemory(gold100, extraLife)
	m := newManager(t, kv, store, iap.Config{}, nil)
	defer m.Close()

	store.SetNextPurchaseOutcomes(iap.PurchaseOutcomeUserCancelled, iap.PurchaseOutcomePending)
	require.False(t, m.Purchase(ctx, gold100))
	require.False(t, m.Purchase(ctx, extraLife))

	store.SetPurchaseError(memory.ErrStoreUnavailable)
	require.False(t, m.Purchase(ctx, gold100))
	store.SetPurchaseError(nil)

	require.False(t, m.Purchase(ctx, nil))

	require.Empty(t, store.Transactions())
	require.Empty(t, m.PurchasedProducts())
	require.EqualValues(t, 0, m.ConsumableAmountFor(ctx, extraLife.ID))
}

func testManager_RefreshProducts(t *testing.T, kv keyvalue.Store) {
	ctx := context.Background()

	store := memory.NewInMemory(gold100, extraLife, premium)
	m := newManager(t, kv, store, iap.Config{}, nil)
	defer m.Close()

	waitForCatalog(t, m, 3)

	products := m.Products()
	require.Equal(t, gold100.ID, products[0].ID)
	require.True(t, gold100.Price.Equal(products[0].Price))

	// Mutating the returned catalog doesn't leak into the manager.
	products[0].DisplayName = "changed"
	require.Equal(t, gold100.DisplayName, m.Products()[0].DisplayName)

	store.SetFetchError(memory.ErrStoreUnavailable)
	m.RefreshProducts(ctx)
	require.Len(t, m.Products(), 3)

	store.SetFetchError(nil)
	store.SetCatalog(premium)
	m.RefreshProducts(ctx)

	products = m.Products()
	require.Len(t, products, 1)
	require.Equal(t, premium.ID, products[0].ID)
}

func testManager_RefreshProductsIfStale(t *testing.T, kv keyvalue.Store) {
	ctx := context.Background()

	t.Run("Fresh", func(t *testing.T) {
		store := memory.NewInMemory(gold100)
		m := newManager(t, kv, store, iap.Config{CatalogMaxAge: time.Hour}, nil)
		defer m.Close()

		waitForCatalog(t, m, 1)
		count := store.FetchCount()

		m.RefreshProductsIfStale(ctx)
		require.Equal(t, count, store.FetchCount())
	})

	t.Run("Stale", func(t *testing.T) {
		store := memory.NewInMemory(gold100)
		m := newManager(t, kv, store, iap.Config{CatalogMaxAge: time.Nanosecond}, nil)
		defer m.Close()

		waitForCatalog(t, m, 1)
		count := store.FetchCount()

		time.Sleep(time.Millisecond)
		m.RefreshProductsIfStale(ctx)
		require.Equal(t, count+1, store.FetchCount())
	})
}

func testManager_IsPurchasedFallback(t *testing.T, kv keyvalue.Store) {
	ctx := context.Background()

	store := memory.NewInMemory(gold100, premium)
	store.RecordTransaction(premium.ID, true)
	store.RecordTransaction(gold100.ID, false)

	m := newManager(t, kv, store, iap.Config{}, nil)
	defer m.Close()

	require.Empty(t, m.PurchasedProducts())
	require.True(t, m.IsPurchased(ctx, premium.ID))
	require.False(t, m.IsPurchased(ctx, gold100.ID))
	require.False(t, m.IsPurchased(ctx, extraLife.ID))

	// The fallback answers queries without reconciling.
	require.Empty(t, m.PurchasedProducts())
}

func testManager_LatestTransactionCache(t *testing.T, kv keyvalue.Store) {
	ctx := context.Background()

	store := memory.NewInMemory(gold100, premium)
	m := newManager(t, kv, store, iap.Config{LatestTransactionTTL: time.Minute}, nil)
	defer m.Close()

	require.False(t, m.IsPurchased(ctx, premium.ID))

	store.RecordTransaction(premium.ID, true)
	require.False(t, m.IsPurchased(ctx, premium.ID))

	m.AddPurchase(ctx, premium.ID)
	require.True(t, m.IsPurchased(ctx, premium.ID))

	uncachedStore := memory.NewInMemory(gold100)
	uncached := newManager(t, kv, uncachedStore, iap.Config{ProductIDs: []string{gold100.ID}}, nil)
	defer uncached.Close()

	require.False(t, uncached.IsPurchased(ctx, gold100.ID))

	uncachedStore.RecordTransaction(gold100.ID, true)
	require.True(t, uncached.IsPurchased(ctx, gold100.ID))
}

func testManager_RestorePurchases(t *testing.T, kv keyvalue.Store) {
	ctx := context.Background()

	store := memory.NewInMemory(gold100, extraLife, premium)
	restored := store.RecordTransaction(gold100.ID, true)
	consumed := store.RecordTransaction(extraLife.ID, true)

	m := newManager(t, kv, store, iap.Config{}, nil)
	defer m.Close()
	waitForListener(t, store)

	require.Empty(t, m.PurchasedProducts())

	m.RestorePurchases(ctx)
	require.Eventually(t, restored.IsFinished, waitFor, tick)

	require.Equal(t, []string{gold100.ID}, m.PurchasedProducts())
	require.False(t, consumed.IsFinished())

	store.SetRestoreError(memory.ErrStoreUnavailable)
	m.RestorePurchases(ctx)
	require.Equal(t, []string{gold100.ID}, m.PurchasedProducts())
}

func testManager_UpdatesEndTriggersRefresh(t *testing.T, kv keyvalue.Store) {
	store := memory.NewInMemory(gold100, premium)
	m := newManager(t, kv, store, iap.Config{}, nil)
	defer m.Close()

	waitForCatalog(t, m, 2)
	waitForListener(t, store)
	require.Equal(t, 1, store.FetchCount())

	store.EndUpdates()

	require.Eventually(t, func() bool {
		return store.FetchCount() == 2
	}, waitFor, tick)
}

func testManager_Notifications(t *testing.T, kv keyvalue.Store) {
	ctx := context.Background()

	t.Run("Recorder", func(t *testing.T) {
		rec := &recorder{}
		m := newManager(t, kv, memory.NewInMemory(gold100, extraLife), iap.Config{}, rec)
		defer m.Close()

		require.Eventually(t, func() bool {
			return rec.count(iap.ChangeKindCatalog, "") == 1
		}, waitFor, tick)

		m.AddPurchase(ctx, gold100.ID)
		require.Equal(t, 1, rec.count(iap.ChangeKindPurchases, gold100.ID))

		m.AddPurchase(ctx, "unknown")
		require.Equal(t, 0, rec.count(iap.ChangeKindPurchases, "unknown"))

		m.AddConsumable(ctx, extraLife.ID, 1)
		m.DecrementConsumable(ctx, extraLife.ID)
		require.Equal(t, 2, rec.count(iap.ChangeKindConsumables, extraLife.ID))

		// Already at zero.
		m.DecrementConsumable(ctx, extraLife.ID)
		require.Equal(t, 2, rec.count(iap.ChangeKindConsumables, extraLife.ID))

		m.RefreshProducts(ctx)
		require.Equal(t, 2, rec.count(iap.ChangeKindCatalog, ""))
	})

	t.Run("Bus", func(t *testing.T) {
		rec := &recorder{}
		bus := event.NewBus[iap.Change]()
		bus.AddHandler(event.HandlerFunc[iap.Change](rec.Notify))

		m := newManager(t, kv, memory.NewInMemory(gold100), iap.Config{}, bus)
		defer m.Close()

		m.AddPurchase(ctx, gold100.ID)
		require.Eventually(t, func() bool {
			return rec.count(iap.ChangeKindPurchases, gold100.ID) == 1
		}, waitFor, tick)
	})

	t.Run("Func", func(t *testing.T) {
		var mu sync.Mutex
		var kinds []iap.ChangeKind
		notifier := iap.NotifierFunc(func(change iap.Change) {
			mu.Lock()
			defer mu.Unlock()
			kinds = append(kinds, change.Kind)
		})

		m := newManager(t, kv, memory.NewInMemory(extraLife), iap.Config{}, notifier)
		defer m.Close()

		require.Eventually(t, func() bool {
			mu.Lock()
			defer mu.Unlock()
			return len(kinds) == 1
		}, waitFor, tick)

		require.True(t, m.Purchase(ctx, extraLife))

		mu.Lock()
		defer mu.Unlock()
		require.Equal(t, []iap.ChangeKind{iap.ChangeKindCatalog, iap.ChangeKindConsumables}, kinds)
	})
}

func testManager_ConcurrentCredits(t *testing.T, kv keyvalue.Store) {
	ctx := context.Background()

	m := newManager(t, kv, memory.NewInMemory(extraLife), iap.Config{}, nil)
	defer m.Close()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.AddConsumable(ctx, extraLife.ID, 1)
		}()
	}
	wg.Wait()

	require.EqualValues(t, 20, m.ConsumableAmountFor(ctx, extraLife.ID))
}

func testManager_AddConsumableIgnoresNonPositive(t *testing.T, kv keyvalue.Store) {
	ctx := context.Background()

	m := newManager(t, kv, memory.NewInMemory(extraLife), iap.Config{}, nil)
	defer m.Close()

	m.AddConsumable(ctx, extraLife.ID, -5)
	m.AddConsumable(ctx, extraLife.ID, 0)
	require.EqualValues(t, 0, m.ConsumableAmountFor(ctx, extraLife.ID))

	m.AddConsumable(ctx, extraLife.ID, 4)
	require.EqualValues(t, 4, m.ConsumableAmountFor(ctx, extraLife.ID))
}

func testManager_NonPositiveGrantFallsBackToDefault(t *testing.T, kv keyvalue.Store) {
	ctx := context.Background()

	store := memory.NewInMemory(extraLife)
	m := newManager(t, kv, store, iap.Config{
		ConsumableGrants: map[string]int64{extraLife.ID: 0},
	}, nil)
	defer m.Close()

	require.True(t, m.Purchase(ctx, extraLife))
	require.EqualValues(t, iap.DefaultConsumableGrant, m.ConsumableAmountFor(ctx, extraLife.ID))

	txs := store.Transactions()
	require.Len(t, txs, 1)
	require.True(t, txs[0].IsFinished())
}

func testManager_PurchaseNotPersisted(t *testing.T, kv keyvalue.Store) {
	ctx := context.Background()

	store := memory.NewInMemory(gold100, extraLife)
	failing := newFailingStore(kv, failures{setBool: true, setInt: true})
	m := newManager(t, failing, store, iap.Config{}, nil)
	defer m.Close()

	require.False(t, m.Purchase(ctx, gold100))
	require.False(t, m.Purchase(ctx, extraLife))

	// Left unfinished so the store redelivers them.
	txs := store.Transactions()
	require.Len(t, txs, 2)
	for _, tx := range txs {
		require.False(t, tx.IsFinished())
	}

	require.Empty(t, m.PurchasedProducts())
	require.EqualValues(t, 0, m.ConsumableAmountFor(ctx, extraLife.ID))

	_, err := kv.GetBool(ctx, gold100.ID)
	require.ErrorIs(t, err, keyvalue.ErrNotFound)
	_, err = kv.GetInt(ctx, extraLife.ID)
	require.ErrorIs(t, err, keyvalue.ErrNotFound)
}

func testManager_UnreadablePurchaseFlag(t *testing.T, kv keyvalue.Store) {
	ctx := context.Background()

	require.NoError(t, kv.SetBool(ctx, gold100.ID, true))

	failing := newFailingStore(kv, failures{getBool: true})
	m := newManager(t, failing, memory.NewInMemory(gold100), iap.Config{}, nil)
	defer m.Close()

	require.Empty(t, m.PurchasedProducts())
	require.False(t, m.IsPurchased(ctx, gold100.ID))

	// The flag itself is untouched.
	owned, err := kv.GetBool(ctx, gold100.ID)
	require.NoError(t, err)
	require.True(t, owned)
}

func testManager_UnreadableBalance(t *testing.T, kv keyvalue.Store) {
	ctx := context.Background()

	require.NoError(t, kv.SetInt(ctx, extraLife.ID, 4))

	rec := &recorder{}
	failing := newFailingStore(kv, failures{getInt: true})
	m := newManager(t, failing, memory.NewInMemory(extraLife), iap.Config{}, rec)
	defer m.Close()

	require.EqualValues(t, 0, m.ConsumableAmountFor(ctx, extraLife.ID))

	m.DecrementConsumable(ctx, extraLife.ID)
	m.AddConsumable(ctx, extraLife.ID, 2)
	require.Equal(t, 0, rec.count(iap.ChangeKindConsumables, extraLife.ID))

	balance, err := kv.GetInt(ctx, extraLife.ID)
	require.NoError(t, err)
	require.EqualValues(t, 4, balance)

	failing.setFailures(failures{})
	require.EqualValues(t, 4, m.ConsumableAmountFor(ctx, extraLife.ID))
}

func testManager_RefreshOutlivesCallerContext(t *testing.T, kv keyvalue.Store) {
	store := memory.NewInMemory(gold100, premium)
	m := newManager(t, kv, store, iap.Config{}, nil)
	defer m.Close()

	waitForCatalog(t, m, 2)
	store.SetCatalog(premium)

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	m.RefreshProducts(cancelled)

	// The fetch is shared, so one impatient caller doesn't abort it.
	require.Eventually(t, func() bool {
		products := m.Products()
		return len(products) == 1 && products[0].ID == premium.ID
	}, waitFor, tick)
}
