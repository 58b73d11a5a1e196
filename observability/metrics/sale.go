package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// SaleMetrics bundles the settlement engine counters exported by saled.
type SaleMetrics struct {
	purchases     *prometheus.CounterVec
	rejections    *prometheus.CounterVec
	tokensSold    prometheus.Counter
	refundsIssued prometheus.Counter
	finalizations *prometheus.CounterVec
}

var (
	saleOnce     sync.Once
	saleRegistry *SaleMetrics
)

// Sale returns the process-wide sale metric bundle, registering it on first
// use.
func Sale() *SaleMetrics {
	saleOnce.Do(func() {
		saleRegistry = &SaleMetrics{
			purchases: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "sale_purchases_total",
				Help: "Count of settled purchases by payment currency.",
			}, []string{"currency"}),
			rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "sale_purchase_rejections_total",
				Help: "Count of rejected purchase attempts by reason.",
			}, []string{"reason"}),
			tokensSold: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "sale_tokens_sold_total",
				Help: "Cumulative issued-asset units credited to buyers.",
			}),
			refundsIssued: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "sale_refunds_issued_total",
				Help: "Count of escrow refund withdrawals after a failed sale.",
			}),
			finalizations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "sale_finalizations_total",
				Help: "Count of finalizations by outcome.",
			}, []string{"outcome"}),
		}
		prometheus.MustRegister(
			saleRegistry.purchases,
			saleRegistry.rejections,
			saleRegistry.tokensSold,
			saleRegistry.refundsIssued,
			saleRegistry.finalizations,
		)
	})
	return saleRegistry
}

// ObservePurchase records one settled payment leg.
func (m *SaleMetrics) ObservePurchase(currency string) {
	if m == nil {
		return
	}
	m.purchases.WithLabelValues(currency).Inc()
}

// ObserveTokensSold accumulates issued units granted by a purchase.
func (m *SaleMetrics) ObserveTokensSold(tokens float64) {
	if m == nil {
		return
	}
	m.tokensSold.Add(tokens)
}

// ObserveRejection records a rejected purchase attempt.
func (m *SaleMetrics) ObserveRejection(reason string) {
	if m == nil {
		return
	}
	m.rejections.WithLabelValues(reason).Inc()
}

// ObserveRefund records an escrow refund withdrawal.
func (m *SaleMetrics) ObserveRefund() {
	if m == nil {
		return
	}
	m.refundsIssued.Inc()
}

// ObserveFinalization records a terminal sale outcome.
func (m *SaleMetrics) ObserveFinalization(outcome string) {
	if m == nil {
		return
	}
	m.finalizations.WithLabelValues(outcome).Inc()
}
