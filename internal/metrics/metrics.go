package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	storeMutations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dienstplan",
			Name:      "store_mutations_total",
			Help:      "Count of schedule store mutations by operation.",
		},
		[]string{"operation"},
	)

	exportsFinished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dienstplan",
			Name:      "exports_total",
			Help:      "Count of export runs by target and outcome.",
		},
		[]string{"target", "outcome"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dienstplan",
			Name:      "http_requests_total",
			Help:      "Count of API requests by endpoint.",
		},
		[]string{"endpoint"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(storeMutations, exportsFinished, httpRequests)
	})
}

func IncStoreMutation(operation string) {
	storeMutations.WithLabelValues(operation).Inc()
}

func IncExport(target, outcome string) {
	exportsFinished.WithLabelValues(target, outcome).Inc()
}

func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}
