package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// ReceiptsCreatedTotal counts successfully created receipts by payment kind.
	ReceiptsCreatedTotal *prometheus.CounterVec
	// ReceiptRendersTotal counts plain-text render outcomes.
	ReceiptRendersTotal *prometheus.CounterVec
	// ReceiptRenderCacheTotal counts render cache lookups by result.
	ReceiptRenderCacheTotal *prometheus.CounterVec
	// LoginsTotal counts login attempts by outcome.
	LoginsTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		ReceiptsCreatedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "receipts_created_total",
			Help:      "Count of created receipts by payment kind.",
		}, []string{"payment_kind"})
		ReceiptRendersTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "receipt_renders_total",
			Help:      "Count of receipt text render outcomes.",
		}, []string{"result"})
		ReceiptRenderCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "receipt_render_cache_total",
			Help:      "Count of render cache lookups by result.",
		}, []string{"result"})
		LoginsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logins_total",
			Help:      "Count of login attempts by outcome.",
		}, []string{"result"})

		for _, c := range []**prometheus.CounterVec{&ReceiptsCreatedTotal, &ReceiptRendersTotal, &ReceiptRenderCacheTotal, &LoginsTotal} {
			mustRegisterCounterVec(reg, c)
		}
	})
}

func mustRegisterCounterVec(reg prometheus.Registerer, counter **prometheus.CounterVec) {
	if err := reg.Register(*counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				*counter = existing
				return
			}
		}
		panic(err)
	}
}
