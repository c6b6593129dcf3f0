package iap

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.recordPurchase(PurchaseOutcomeSuccess.String())
	m.recordPurchase(PurchaseOutcomeSuccess.String())
	m.recordPurchase(outcomeUnverified)
	m.recordTransactionUpdate(true)
	m.recordTransactionUpdate(false)
	m.recordCatalogRefresh(nil)
	m.recordCatalogRefresh(errors.New("boom"))

	require.Equal(t, 2.0, testutil.ToFloat64(m.purchases.WithLabelValues("success")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.purchases.WithLabelValues(outcomeUnverified)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.transactionUpdates.WithLabelValues(verificationVerified)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.transactionUpdates.WithLabelValues(verificationUnverified)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.catalogRefreshes.WithLabelValues(resultFailure)))
}

func TestMetrics_Nil(t *testing.T) {
	var m *Metrics
	m.recordPurchase(outcomeError)
	m.recordTransactionUpdate(true)
	m.recordCatalogRefresh(nil)
}
