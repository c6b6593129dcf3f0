package iap

import (
	"context"
)

// StoreService is the platform store: it owns the product catalog, executes
// payments and reports transactions.
type StoreService interface {
	// FetchProducts returns the descriptors for the requested identifiers.
	// Unknown identifiers are omitted.
	FetchProducts(ctx context.Context, ids []string) ([]*Product, error)

	// Purchase starts a payment for product and waits for its outcome.
	Purchase(ctx context.Context, product *Product) (*PurchaseResult, error)

	// TransactionUpdates streams transactions that complete outside of a
	// Purchase call, such as renewals and restores. The channel is closed when
	// the sequence ends; it stops delivering once ctx is done.
	TransactionUpdates(ctx context.Context) <-chan *VerificationResult

	// LatestTransaction returns the most recent transaction for productID, or
	// ErrNotFound.
	LatestTransaction(ctx context.Context, productID string) (*VerificationResult, error)

	// RestoreCompletedTransactions asks the store to redeliver previously
	// completed transactions through TransactionUpdates.
	RestoreCompletedTransactions(ctx context.Context) error
}
