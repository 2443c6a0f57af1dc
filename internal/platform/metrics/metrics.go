package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments for the ledger service.
type Metrics struct {
	InstitutionsRegistered prometheus.Counter
	DegreesRegistered      prometheus.Counter
	Verifications          *prometheus.CounterVec
	LifecycleEvents        *prometheus.CounterVec
	TxDuration             *prometheus.HistogramVec
}

// New creates and registers all metrics on the given registerer. Pass a fresh
// prometheus.NewRegistry() in tests to avoid duplicate registration.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		InstitutionsRegistered: factory.NewCounter(prometheus.CounterOpts{
			Name: "veryphy_institutions_registered_total",
			Help: "Total number of institutions registered on the ledger",
		}),
		DegreesRegistered: factory.NewCounter(prometheus.CounterOpts{
			Name: "veryphy_degrees_registered_total",
			Help: "Total number of degrees registered on the ledger",
		}),
		Verifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "veryphy_verifications_total",
			Help: "Verification attempts recorded, by result",
		}, []string{"result"}),
		LifecycleEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "veryphy_lifecycle_events_total",
			Help: "Revocations and blacklistings appended",
		}, []string{"kind"}),
		TxDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "veryphy_ledger_tx_duration_seconds",
			Help:    "Latency of ledger transactions, by operation",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
	}
}
