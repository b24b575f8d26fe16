package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// CartMutationsTotal counts cart mutations by operation and outcome.
	CartMutationsTotal *prometheus.CounterVec
	// CheckoutAttemptsTotal counts checkout attempts by result.
	CheckoutAttemptsTotal *prometheus.CounterVec
	// CheckoutDuration records checkout latency in milliseconds.
	CheckoutDuration *prometheus.HistogramVec
	// CombinationResolveTotal counts configurator resolutions by result.
	CombinationResolveTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		CartMutationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_mutations_total",
			Help:      "Count of cart mutations by operation and outcome.",
		}, []string{"op", "outcome"})
		CheckoutAttemptsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_attempts_total",
			Help:      "Count of checkout attempts by result.",
		}, []string{"result"})
		CheckoutDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "checkout_duration_ms",
			Help:      "Checkout latency in milliseconds.",
			Buckets:   []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		}, []string{"result"})
		CombinationResolveTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "combination_resolve_total",
			Help:      "Count of combination resolutions by result.",
		}, []string{"result"})

		mustRegisterCollector(reg, CartMutationsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CartMutationsTotal = v
			}
		})
		mustRegisterCollector(reg, CheckoutAttemptsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CheckoutAttemptsTotal = v
			}
		})
		mustRegisterCollector(reg, CheckoutDuration, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.HistogramVec); ok {
				CheckoutDuration = v
			}
		})
		mustRegisterCollector(reg, CombinationResolveTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CombinationResolveTotal = v
			}
		})
	})
}

// RecordCartMutation increments the cart mutation counter when metrics are registered.
func RecordCartMutation(op, outcome string) {
	if CartMutationsTotal == nil {
		return
	}
	CartMutationsTotal.WithLabelValues(op, outcome).Inc()
}

// RecordCheckout records a checkout attempt and its latency.
func RecordCheckout(result string, millis float64) {
	if CheckoutAttemptsTotal != nil {
		CheckoutAttemptsTotal.WithLabelValues(result).Inc()
	}
	if CheckoutDuration != nil {
		CheckoutDuration.WithLabelValues(result).Observe(millis)
	}
}

// RecordResolve increments the combination resolution counter.
func RecordResolve(result string) {
	if CombinationResolveTotal == nil {
		return
	}
	CombinationResolveTotal.WithLabelValues(result).Inc()
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}
