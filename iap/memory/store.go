package memory

import (
	"context"
	"crypto/ed25519"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/code-payments/flipchat-entitlements/iap"
)

const updatesBufferSize = 64

// ErrStoreUnavailable simulates a store outage.
var ErrStoreUnavailable = errors.New("store unavailable")

type subscriber struct {
	ch       chan *iap.VerificationResult
	done     chan struct{}
	doneOnce sync.Once
}

// Store simulates a platform store. Transactions are signed with an ed25519
// key and verified with a MemoryVerifier, so tests can produce unverified
// transactions by signing with a foreign key.
type Store struct {
	verifier iap.Verifier
	signer   ed25519.PrivateKey
	forger   ed25519.PrivateKey

	mu             sync.Mutex
	catalog        []*iap.Product
	nextOutcomes   []iap.PurchaseOutcome
	purchaseErr    error
	fetchErr       error
	restoreErr     error
	forgePurchases bool
	fetchCount     int
	latest         map[string]*Transaction
	transactions   []*Transaction

	subsMu sync.RWMutex
	subs   map[*subscriber]struct{}
	ended  bool
}

var _ iap.StoreService = (*Store)(nil)

// NewInMemory creates a simulated store selling products.
func NewInMemory(products ...*iap.Product) *Store {
	pub, priv, err := GenerateKeyPair()
	if err != nil {
		panic(err)
	}
	_, forger, err := GenerateKeyPair()
	if err != nil {
		panic(err)
	}

	s := &Store{
		verifier: NewMemoryVerifier(pub),
		signer:   priv,
		forger:   forger,
		latest:   make(map[string]*Transaction),
		subs:     make(map[*subscriber]struct{}),
	}
	for _, p := range products {
		s.catalog = append(s.catalog, p.Clone())
	}
	return s
}

func (s *Store) FetchProducts(_ context.Context, ids []string) ([]*iap.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.fetchCount++
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}

	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}

	var products []*iap.Product
	for _, p := range s.catalog {
		if _, ok := wanted[p.ID]; ok {
			products = append(products, p.Clone())
		}
	}
	return products, nil
}

func (s *Store) Purchase(ctx context.Context, product *iap.Product) (*iap.PurchaseResult, error) {
	s.mu.Lock()
	if s.purchaseErr != nil {
		err := s.purchaseErr
		s.mu.Unlock()
		return nil, err
	}

	outcome := iap.PurchaseOutcomeSuccess
	if len(s.nextOutcomes) > 0 {
		outcome = s.nextOutcomes[0]
		s.nextOutcomes = s.nextOutcomes[1:]
	}
	if outcome != iap.PurchaseOutcomeSuccess {
		s.mu.Unlock()
		return &iap.PurchaseResult{Outcome: outcome}, nil
	}

	tx := s.newTransactionLocked(product.ID, !s.forgePurchases)
	s.mu.Unlock()

	verification, err := s.verify(ctx, tx)
	if err != nil {
		return nil, err
	}
	return &iap.PurchaseResult{
		Outcome:      iap.PurchaseOutcomeSuccess,
		Verification: verification,
	}, nil
}

func (s *Store) TransactionUpdates(ctx context.Context) <-chan *iap.VerificationResult {
	sub := &subscriber{
		ch:   make(chan *iap.VerificationResult, updatesBufferSize),
		done: make(chan struct{}),
	}

	s.subsMu.Lock()
	if s.ended {
		close(sub.ch)
		s.subsMu.Unlock()
		return sub.ch
	}
	s.subs[sub] = struct{}{}
	s.subsMu.Unlock()

	go func() {
		<-ctx.Done()
		sub.doneOnce.Do(func() { close(sub.done) })

		s.subsMu.Lock()
		delete(s.subs, sub)
		s.subsMu.Unlock()
	}()

	return sub.ch
}

func (s *Store) LatestTransaction(ctx context.Context, productID string) (*iap.VerificationResult, error) {
	s.mu.Lock()
	tx, ok := s.latest[productID]
	s.mu.Unlock()

	if !ok {
		return nil, iap.ErrNotFound
	}
	return s.verify(ctx, tx)
}

// RestoreCompletedTransactions redelivers the latest transaction of every
// non-consumable product through TransactionUpdates.
func (s *Store) RestoreCompletedTransactions(ctx context.Context) error {
	s.mu.Lock()
	if s.restoreErr != nil {
		err := s.restoreErr
		s.mu.Unlock()
		return err
	}

	var restored []*Transaction
	for _, tx := range s.transactions {
		if s.latest[tx.productID] != tx {
			continue
		}
		if p := s.productLocked(tx.productID); p != nil && p.Kind == iap.ProductKindConsumable {
			continue
		}
		restored = append(restored, tx)
	}
	s.mu.Unlock()

	for _, tx := range restored {
		verification, err := s.verify(ctx, tx)
		if err != nil {
			return err
		}
		s.broadcast(verification)
	}
	return nil
}

// EmitTransaction records a transaction completed outside of Purchase, such as
// a renewal or a purchase on another device, and delivers it to
// TransactionUpdates subscribers. Unverified transactions are signed with a
// foreign key.
func (s *Store) EmitTransaction(productID string, verified bool) *Transaction {
	tx := s.RecordTransaction(productID, verified)

	verification, err := s.verify(context.Background(), tx)
	if err != nil {
		panic(err)
	}
	s.broadcast(verification)
	return tx
}

// RecordTransaction records a transaction without delivering it, as if the
// update had not reached this device yet. It still becomes the product's
// latest transaction.
func (s *Store) RecordTransaction(productID string, verified bool) *Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.newTransactionLocked(productID, verified)
}

// SubscriberCount is the number of live TransactionUpdates sequences.
func (s *Store) SubscriberCount() int {
	s.subsMu.RLock()
	defer s.subsMu.RUnlock()
	return len(s.subs)
}

// EndUpdates terminates every TransactionUpdates sequence.
func (s *Store) EndUpdates() {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()

	if s.ended {
		return
	}
	s.ended = true

	for sub := range s.subs {
		close(sub.ch)
		delete(s.subs, sub)
	}
}

// SetNextPurchaseOutcomes queues the outcomes of upcoming Purchase calls.
// Purchases succeed once the queue is drained.
func (s *Store) SetNextPurchaseOutcomes(outcomes ...iap.PurchaseOutcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextOutcomes = append(s.nextOutcomes, outcomes...)
}

// SetForgePurchases makes successful purchases produce unverified
// transactions.
func (s *Store) SetForgePurchases(forge bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forgePurchases = forge
}

func (s *Store) SetPurchaseError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purchaseErr = err
}

func (s *Store) SetFetchError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetchErr = err
}

func (s *Store) SetRestoreError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.restoreErr = err
}

func (s *Store) SetCatalog(products ...*iap.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.catalog = nil
	for _, p := range products {
		s.catalog = append(s.catalog, p.Clone())
	}
}

func (s *Store) FetchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetchCount
}

// Transactions returns every transaction issued so far, oldest first.
func (s *Store) Transactions() []*Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Transaction(nil), s.transactions...)
}

func (s *Store) newTransactionLocked(productID string, signed bool) *Transaction {
	id := uuid.New().String()

	signer := s.signer
	if !signed {
		signer = s.forger
	}

	tx := &Transaction{
		id:          id,
		productID:   productID,
		purchasedAt: time.Now(),
		signedData:  Sign(signer, id+":"+productID),
	}
	s.transactions = append(s.transactions, tx)
	s.latest[productID] = tx
	return tx
}

func (s *Store) productLocked(productID string) *iap.Product {
	for _, p := range s.catalog {
		if p.ID == productID {
			return p
		}
	}
	return nil
}

func (s *Store) verify(ctx context.Context, tx *Transaction) (*iap.VerificationResult, error) {
	verified, err := s.verifier.Verify(ctx, tx.signedData)
	if err != nil {
		return nil, err
	}

	result := &iap.VerificationResult{
		Transaction: tx,
		Verified:    verified,
	}
	if !verified {
		result.Reason = "signature mismatch"
	}
	return result, nil
}

func (s *Store) broadcast(update *iap.VerificationResult) {
	s.subsMu.RLock()
	defer s.subsMu.RUnlock()

	for sub := range s.subs {
		select {
		case sub.ch <- update:
		case <-sub.done:
		}
	}
}
