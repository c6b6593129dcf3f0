package iap

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/ReneKroon/ttlcache"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/code-payments/flipchat-entitlements/keyvalue"
)

const refreshKey = "products"

// Manager tracks which products the user owns and their consumable balances,
// reconciling local state against the store's transaction stream.
//
// All entitlement state is owned by a single actor goroutine. Public methods
// marshal their reads and writes onto it, so read-modify-write sequences on
// the same key never interleave. Failures are logged and absorbed; no method
// returns an error.
type Manager struct {
	log      *zap.Logger
	cfg      Config
	ids      map[string]struct{}
	idList   []string
	store    StoreService
	kv       keyvalue.Store
	notifier Notifier
	metrics  *Metrics

	latest  *ttlcache.Cache
	refresh singleflight.Group

	ops       chan func()
	closed    chan struct{}
	actorDone chan struct{}
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once

	// Owned by the actor goroutine.
	purchased   map[string]struct{}
	products    []*Product
	refreshedAt time.Time
}

// NewManager starts a manager for cfg.ProductIDs. Previously persisted
// purchases are loaded before any other operation is served, the transaction
// listener is started and an initial catalog refresh is kicked off. None of
// this blocks the caller.
func NewManager(
	log *zap.Logger,
	cfg Config,
	store StoreService,
	kv keyvalue.Store,
	notifier Notifier,
	metrics *Metrics,
) *Manager {
	ids, idList := cfg.productIDSet()

	ctx, cancel := context.WithCancel(context.Background())

	m := &Manager{
		log:       log,
		cfg:       cfg,
		ids:       ids,
		idList:    idList,
		store:     store,
		kv:        kv,
		notifier:  notifier,
		metrics:   metrics,
		ops:       make(chan func()),
		closed:    make(chan struct{}),
		actorDone: make(chan struct{}),
		ctx:       ctx,
		cancel:    cancel,
		purchased: make(map[string]struct{}),
	}

	if cfg.LatestTransactionTTL > 0 {
		m.latest = ttlcache.NewCache()
		m.latest.SetTTL(cfg.LatestTransactionTTL)
	}

	go m.run()

	// The load is the first operation the actor sees.
	m.ops <- func() { m.loadPurchased(ctx) }

	m.wg.Add(2)
	go func() {
		defer m.wg.Done()
		m.listen(ctx)
	}()
	go func() {
		defer m.wg.Done()
		m.RefreshProducts(ctx)
	}()

	return m
}

// Close stops the transaction listener, waits for in-flight background work
// and stops the actor. Operations issued afterwards return their defaults.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		m.cancel()
		m.wg.Wait()

		close(m.closed)
		<-m.actorDone

		if m.latest != nil {
			m.latest.Close()
		}
	})
}

func (m *Manager) run() {
	defer close(m.actorDone)

	for {
		select {
		case op := <-m.ops:
			op()
		case <-m.closed:
			return
		}
	}
}

// do runs fn on the actor and waits for it. Once accepted, fn always runs to
// completion regardless of ctx.
func (m *Manager) do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	op := func() {
		defer close(done)
		fn()
	}

	select {
	case m.ops <- op:
	case <-m.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	<-done
	return nil
}

func (m *Manager) loadPurchased(ctx context.Context) {
	for _, id := range m.idList {
		owned, err := keyvalue.BoolOrDefault(ctx, m.kv, id, false)
		if err != nil {
			m.log.Warn("Failed to load purchase flag", zap.String("product_id", id), zap.Error(err))
			continue
		}
		if owned {
			m.purchased[id] = struct{}{}
		}
	}

	m.log.Debug("Loaded purchases", zap.Int("count", len(m.purchased)))
}

func (m *Manager) notify(change Change) {
	if m.notifier == nil {
		return
	}
	m.notifier.Notify(change)
}

func (m *Manager) listen(ctx context.Context) {
	updates := m.store.TransactionUpdates(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if ctx.Err() != nil {
				return
			}

			if !ok {
				m.log.Info("Transaction updates ended, refreshing products")
				m.RefreshProducts(ctx)
				return
			}

			// Once picked up, an update is reconciled and finished in full.
			m.handleTransactionUpdate(context.WithoutCancel(ctx), update)
		}
	}
}

func (m *Manager) handleTransactionUpdate(ctx context.Context, update *VerificationResult) {
	if update == nil || update.Transaction == nil {
		return
	}

	tx := update.Transaction
	log := m.log.With(
		zap.String("product_id", tx.ProductID()),
		zap.String("transaction_id", tx.ID()),
	)

	m.metrics.recordTransactionUpdate(update.Verified)

	if !update.Verified {
		// Left unfinished so it can be reviewed.
		log.Warn("Ignoring unverified transaction update",
			zap.String("reason", update.Reason),
			zap.String("signed_data", tx.SignedData()),
		)
		return
	}

	log.Debug("Got a verified transaction update")

	if err := m.recordPurchase(ctx, tx.ProductID()); err != nil {
		log.Warn("Failed to record purchase, leaving transaction unfinished", zap.Error(err))
		return
	}

	if err := tx.Finish(ctx); err != nil {
		log.Warn("Failed to finish transaction", zap.Error(err))
	}
}

// Products returns the product catalog from the last successful refresh.
func (m *Manager) Products() []*Product {
	var products []*Product
	err := m.do(context.Background(), func() {
		products = make([]*Product, len(m.products))
		for i, p := range m.products {
			products[i] = p.Clone()
		}
	})
	if err != nil {
		return nil
	}
	return products
}

// PurchasedProducts returns the sorted identifiers currently owned.
func (m *Manager) PurchasedProducts() []string {
	var ids []string
	err := m.do(context.Background(), func() {
		ids = make([]string, 0, len(m.purchased))
		for id := range m.purchased {
			ids = append(ids, id)
		}
	})
	if err != nil {
		return nil
	}

	sort.Strings(ids)
	return ids
}

// RefreshProducts fetches the catalog from the store and replaces the cached
// one. On failure the previous catalog is kept. Concurrent calls share a
// single fetch, which runs for the manager's lifetime rather than the first
// caller's ctx; ctx only bounds how long this call waits for it.
func (m *Manager) RefreshProducts(ctx context.Context) {
	result := m.refresh.DoChan(refreshKey, func() (interface{}, error) {
		err := m.refreshProducts(m.ctx)
		m.metrics.recordCatalogRefresh(err)
		return nil, err
	})

	select {
	case <-result:
	case <-ctx.Done():
	}
}

func (m *Manager) refreshProducts(ctx context.Context) error {
	products, err := m.store.FetchProducts(ctx, m.idList)
	if err != nil {
		m.log.Warn("Failed to fetch products", zap.Error(err))
		return err
	}

	cloned := make([]*Product, 0, len(products))
	for _, p := range products {
		if p == nil {
			continue
		}
		cloned = append(cloned, p.Clone())
	}

	err = m.do(ctx, func() {
		m.products = cloned
		m.refreshedAt = time.Now()
	})
	if err != nil {
		m.log.Debug("Dropped refreshed products", zap.Error(err))
		return err
	}

	m.log.Debug("Refreshed products", zap.Int("count", len(cloned)))
	m.notify(Change{Kind: ChangeKindCatalog})
	return nil
}

// RefreshProductsIfStale refreshes the catalog when it was never fetched or
// is older than the configured maximum age.
func (m *Manager) RefreshProductsIfStale(ctx context.Context) {
	var refreshedAt time.Time
	if err := m.do(ctx, func() { refreshedAt = m.refreshedAt }); err != nil {
		return
	}

	if !refreshedAt.IsZero() && time.Since(refreshedAt) < m.cfg.catalogMaxAge() {
		return
	}
	m.RefreshProducts(ctx)
}

// Purchase buys product and credits it once the store reports a verified
// transaction. It returns false when the user cancels, the payment is
// pending, verification fails or anything goes wrong along the way.
func (m *Manager) Purchase(ctx context.Context, product *Product) bool {
	if product == nil {
		return false
	}

	log := m.log.With(
		zap.String("product_id", product.ID),
		zap.Stringer("kind", product.Kind),
	)

	result, err := m.store.Purchase(ctx, product)
	if err != nil {
		log.Warn("Failed to purchase product", zap.Error(err))
		m.metrics.recordPurchase(outcomeError)
		return false
	}

	switch result.Outcome {
	case PurchaseOutcomeSuccess:
	case PurchaseOutcomeUserCancelled, PurchaseOutcomePending:
		log.Debug("Purchase not completed", zap.Stringer("outcome", result.Outcome))
		m.metrics.recordPurchase(result.Outcome.String())
		return false
	default:
		log.Warn("Unexpected purchase outcome", zap.Stringer("outcome", result.Outcome))
		m.metrics.recordPurchase(result.Outcome.String())
		return false
	}

	verification := result.Verification
	if verification == nil || verification.Transaction == nil {
		log.Warn("Purchase succeeded without a transaction")
		m.metrics.recordPurchase(outcomeError)
		return false
	}

	tx := verification.Transaction
	log = log.With(zap.String("transaction_id", tx.ID()))

	if !verification.Verified {
		log.Warn("Purchase failed verification",
			zap.String("reason", verification.Reason),
			zap.String("signed_data", tx.SignedData()),
		)
		m.metrics.recordPurchase(outcomeUnverified)
		return false
	}

	if product.Kind == ProductKindConsumable {
		err = m.creditConsumable(ctx, product.ID, m.cfg.GrantFor(product.ID))
	} else {
		err = m.recordPurchase(ctx, product.ID)
	}
	if err != nil {
		log.Warn("Failed to record purchase, leaving transaction unfinished", zap.Error(err))
		m.metrics.recordPurchase(outcomeUnrecorded)
		return false
	}

	if err := tx.Finish(ctx); err != nil {
		log.Warn("Failed to finish transaction", zap.Error(err))
	}

	m.metrics.recordPurchase(result.Outcome.String())
	return true
}

// AddPurchase marks productID as owned. Identifiers outside the managed set
// are ignored.
func (m *Manager) AddPurchase(ctx context.Context, productID string) {
	if err := m.recordPurchase(ctx, productID); err != nil {
		m.log.Warn("Failed to add purchase", zap.String("product_id", productID), zap.Error(err))
	}
}

func (m *Manager) recordPurchase(ctx context.Context, productID string) error {
	if _, ok := m.ids[productID]; !ok {
		m.log.Debug("Ignoring purchase of unmanaged product", zap.String("product_id", productID))
		return nil
	}

	var err error
	doErr := m.do(ctx, func() {
		// Persist first, the in-memory set never runs ahead of storage.
		if err = m.kv.SetBool(ctx, productID, true); err != nil {
			return
		}
		m.purchased[productID] = struct{}{}
	})
	if doErr != nil {
		return doErr
	} else if err != nil {
		return err
	}

	if m.latest != nil {
		m.latest.Remove(productID)
	}
	m.notify(Change{Kind: ChangeKindPurchases, ProductID: productID})
	return nil
}

// IsPurchased reports whether productID is owned, asking the store for its
// latest transaction when it isn't known locally.
func (m *Manager) IsPurchased(ctx context.Context, productID string) bool {
	var owned bool
	if err := m.do(ctx, func() { _, owned = m.purchased[productID] }); err != nil {
		return false
	}
	if owned {
		return true
	}

	if m.latest != nil {
		if cached, ok := m.latest.Get(productID); ok {
			return cached.(bool)
		}
	}

	log := m.log.With(zap.String("product_id", productID))

	verified := false
	latest, err := m.store.LatestTransaction(ctx, productID)
	switch {
	case errors.Is(err, ErrNotFound):
	case err != nil:
		log.Warn("Failed to get latest transaction", zap.Error(err))
		return false
	case latest != nil:
		verified = latest.Verified
	}

	if m.latest != nil {
		m.latest.Set(productID, verified)
	}
	return verified
}

// RestorePurchases asks the store to redeliver completed transactions. They
// arrive through the transaction listener and are reconciled there.
func (m *Manager) RestorePurchases(ctx context.Context) {
	if err := m.store.RestoreCompletedTransactions(ctx); err != nil {
		m.log.Warn("Failed to restore purchases", zap.Error(err))
	}
}

// ConsumableAmountFor returns the balance for productID, or 0 when none is
// stored or it can't be read.
func (m *Manager) ConsumableAmountFor(ctx context.Context, productID string) int64 {
	var amount int64
	var err error
	if doErr := m.do(ctx, func() {
		amount, err = keyvalue.IntOrDefault(ctx, m.kv, productID, 0)
	}); doErr != nil {
		return 0
	}
	if err != nil {
		m.log.Warn("Failed to read consumable balance", zap.String("product_id", productID), zap.Error(err))
		return 0
	}
	return amount
}

// AddConsumable credits amount to the balance for productID. Non-positive
// amounts are ignored.
func (m *Manager) AddConsumable(ctx context.Context, productID string, amount int64) {
	if err := m.creditConsumable(ctx, productID, amount); err != nil {
		m.log.Warn("Failed to add consumable",
			zap.String("product_id", productID),
			zap.Int64("amount", amount),
			zap.Error(err),
		)
	}
}

func (m *Manager) creditConsumable(ctx context.Context, productID string, amount int64) error {
	if amount <= 0 {
		m.log.Debug("Ignoring non-positive consumable credit",
			zap.String("product_id", productID),
			zap.Int64("amount", amount),
		)
		return nil
	}

	return m.updateConsumable(ctx, productID, func(current int64) int64 {
		return current + amount
	})
}

// DecrementConsumable removes one unit from the balance for productID. At
// zero it does nothing.
func (m *Manager) DecrementConsumable(ctx context.Context, productID string) {
	err := m.updateConsumable(ctx, productID, func(current int64) int64 {
		if current > 0 {
			return current - 1
		}
		return 0
	})
	if err != nil {
		m.log.Warn("Failed to decrement consumable", zap.String("product_id", productID), zap.Error(err))
	}
}

// updateConsumable applies update to the stored balance. An update that
// leaves the balance unchanged writes nothing and notifies no one.
func (m *Manager) updateConsumable(ctx context.Context, productID string, update func(int64) int64) error {
	var err error
	var changed bool
	doErr := m.do(ctx, func() {
		var current int64
		current, err = keyvalue.IntOrDefault(ctx, m.kv, productID, 0)
		if err != nil {
			// Writing over an unreadable balance could wipe it.
			return
		}
		next := update(current)
		if next == current {
			return
		}
		err = m.kv.SetInt(ctx, productID, next)
		changed = err == nil
	})
	if doErr != nil {
		return doErr
	} else if err != nil {
		return err
	}

	if !changed {
		return nil
	}

	m.notify(Change{Kind: ChangeKindConsumables, ProductID: productID})
	return nil
}
