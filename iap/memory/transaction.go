package memory

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/code-payments/flipchat-entitlements/iap"
)

type Transaction struct {
	id          string
	productID   string
	purchasedAt time.Time
	signedData  string

	finishCount atomic.Int32
}

var _ iap.Transaction = (*Transaction)(nil)

func (t *Transaction) ID() string             { return t.id }
func (t *Transaction) ProductID() string      { return t.productID }
func (t *Transaction) PurchasedAt() time.Time { return t.purchasedAt }
func (t *Transaction) SignedData() string     { return t.signedData }

func (t *Transaction) Finish(_ context.Context) error {
	t.finishCount.Add(1)
	return nil
}

func (t *Transaction) IsFinished() bool {
	return t.finishCount.Load() > 0
}

// FinishCount is how many times Finish was called.
func (t *Transaction) FinishCount() int {
	return int(t.finishCount.Load())
}
