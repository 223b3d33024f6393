// Package metrics holds Prometheus metrics for cart operations.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds Prometheus metrics for the cart service.
//
// Metrics:
//   - menucart_operations_total{op,result} - cart mutations by outcome
//   - menucart_storage_failures_total{op} - swallowed storage failures
//   - menucart_checkouts_total{result} - completed and rejected checkouts
//   - menucart_checkout_amount - histogram of checkout totals
//   - menucart_cart_items - item count after the last commit
type Metrics struct {
	OperationsTotal      *prometheus.CounterVec
	StorageFailuresTotal *prometheus.CounterVec
	CheckoutsTotal       *prometheus.CounterVec
	CheckoutAmount       prometheus.Histogram
	CartItems            prometheus.Gauge
}

// New returns the process-wide metrics registered on the default registry.
//
// Registration happens once; later calls return the same instance so repeated
// construction does not panic with duplicate collectors.
func New() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = NewWithRegisterer(prometheus.DefaultRegisterer)
	})
	return globalMetrics
}

// NewWithRegisterer registers a fresh set of metrics on reg.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		OperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "menucart_operations_total",
				Help: "Total cart operations by operation and result",
			},
			[]string{"op", "result"}, // result: "committed", "noop", "write_failed", "invalid"
		),
		StorageFailuresTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "menucart_storage_failures_total",
				Help: "Storage failures that were logged and swallowed",
			},
			[]string{"op"},
		),
		CheckoutsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "menucart_checkouts_total",
				Help: "Checkouts by result",
			},
			[]string{"result"}, // "completed" or "empty"
		),
		CheckoutAmount: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "menucart_checkout_amount",
				Help:    "Checkout totals in currency units",
				Buckets: []float64{10, 25, 50, 100, 200, 500},
			},
		),
		CartItems: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "menucart_cart_items",
				Help: "Total item quantity in the cart after the last commit",
			},
		),
	}
}

// Operation records a cart operation outcome. Safe on a nil receiver.
func (m *Metrics) Operation(op, result string) {
	if m == nil {
		return
	}
	m.OperationsTotal.WithLabelValues(op, result).Inc()
}

// StorageFailure implements storage.FailureRecorder. Safe on a nil receiver.
func (m *Metrics) StorageFailure(op string) {
	if m == nil {
		return
	}
	m.StorageFailuresTotal.WithLabelValues(op).Inc()
}

// Checkout records a checkout attempt. Safe on a nil receiver.
func (m *Metrics) Checkout(result string, amount float64) {
	if m == nil {
		return
	}
	m.CheckoutsTotal.WithLabelValues(result).Inc()
	if result == "completed" {
		m.CheckoutAmount.Observe(amount)
	}
}

// Items sets the cart item gauge. Safe on a nil receiver.
func (m *Metrics) Items(n int) {
	if m == nil {
		return
	}
	m.CartItems.Set(float64(n))
}
