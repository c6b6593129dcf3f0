package iap

import "context"

type Verifier interface {

	// Verify takes the signed representation of a transaction and determines
	// whether it was issued by the store.
	Verify(ctx context.Context, signedData string) (bool, error)
}
