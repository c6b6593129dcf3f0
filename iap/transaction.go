package iap

import (
	"context"
	"time"
)

// Transaction is a single purchase or renewal event issued by the store.
type Transaction interface {
	ID() string
	ProductID() string
	PurchasedAt() time.Time

	// SignedData is the store's signed representation of the transaction,
	// kept for auditing transactions that fail verification.
	SignedData() string

	// Finish acknowledges the transaction so the store stops redelivering it.
	// Calling it more than once is harmless.
	Finish(ctx context.Context) error
}

// VerificationResult pairs a transaction with the store's verdict on its
// authenticity.
type VerificationResult struct {
	Transaction Transaction
	Verified    bool

	// Reason explains a failed verification, if the store provides one.
	Reason string
}

type PurchaseOutcome uint8

const (
	PurchaseOutcomeUnknown PurchaseOutcome = iota
	PurchaseOutcomeSuccess
	PurchaseOutcomeUserCancelled
	PurchaseOutcomePending
)

func (o PurchaseOutcome) String() string {
	switch o {
	case PurchaseOutcomeSuccess:
		return "success"
	case PurchaseOutcomeUserCancelled:
		return "user_cancelled"
	case PurchaseOutcomePending:
		return "pending"
	default:
		return "unknown"
	}
}

// PurchaseResult is returned by StoreService.Purchase. Verification is only
// set for PurchaseOutcomeSuccess.
type PurchaseResult struct {
	Outcome      PurchaseOutcome
	Verification *VerificationResult
}
