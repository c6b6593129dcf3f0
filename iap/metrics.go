package iap

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	resultSuccess = "success"
	resultFailure = "failure"

	outcomeError      = "error"
	outcomeUnverified = "unverified"
	outcomeUnrecorded = "unrecorded"

	verificationVerified   = "verified"
	verificationUnverified = "unverified"
)

// Metrics counts manager activity. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	purchases          *prometheus.CounterVec
	transactionUpdates *prometheus.CounterVec
	catalogRefreshes   *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		purchases: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "flipchat",
				Subsystem: "iap",
				Name:      "purchases_total",
				Help:      "Total purchase attempts by outcome",
			},
			[]string{"outcome"},
		),
		transactionUpdates: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "flipchat",
				Subsystem: "iap",
				Name:      "transaction_updates_total",
				Help:      "Total transaction updates received by verification result",
			},
			[]string{"verification"},
		),
		catalogRefreshes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "flipchat",
				Subsystem: "iap",
				Name:      "catalog_refreshes_total",
				Help:      "Total product catalog refreshes by result",
			},
			[]string{"result"},
		),
	}

	if reg != nil {
		reg.MustRegister(m.purchases, m.transactionUpdates, m.catalogRefreshes)
	}
	return m
}

func (m *Metrics) recordPurchase(outcome string) {
	if m == nil {
		return
	}
	m.purchases.WithLabelValues(outcome).Inc()
}

func (m *Metrics) recordTransactionUpdate(verified bool) {
	if m == nil {
		return
	}
	label := verificationUnverified
	if verified {
		label = verificationVerified
	}
	m.transactionUpdates.WithLabelValues(label).Inc()
}

func (m *Metrics) recordCatalogRefresh(err error) {
	if m == nil {
		return
	}
	label := resultSuccess
	if err != nil {
		label = resultFailure
	}
	m.catalogRefreshes.WithLabelValues(label).Inc()
}
