package iap

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	kvmemory "github.com/code-payments/flipchat-entitlements/keyvalue/memory"
)

// catalogStore serves a fixed catalog and never reports transactions.
type catalogStore struct {
	StoreService

	products []*Product
}

func (s *catalogStore) FetchProducts(_ context.Context, _ []string) ([]*Product, error) {
	return s.products, nil
}

func (s *catalogStore) TransactionUpdates(_ context.Context) <-chan *VerificationResult {
	return make(chan *VerificationResult)
}

func TestManager_CatalogRefreshCountedOnceInstalled(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)

	store := &catalogStore{products: []*Product{{ID: "gold100", Kind: ProductKindNonConsumable}}}
	m := NewManager(zap.NewNop(), Config{ProductIDs: []string{"gold100"}}, store, kvmemory.NewInMemory(), nil, metrics)

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(metrics.catalogRefreshes.WithLabelValues(resultSuccess)) == 1
	}, time.Second, 10*time.Millisecond)

	m.Close()

	// The fetch still succeeds but the catalog can no longer be installed.
	m.RefreshProducts(context.Background())

	require.Equal(t, 1.0, testutil.ToFloat64(metrics.catalogRefreshes.WithLabelValues(resultSuccess)))
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.catalogRefreshes.WithLabelValues(resultFailure)))
}
