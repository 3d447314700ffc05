// Package metrics exposes Prometheus instrumentation for classification
// and graph mutations.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"nodeclass/internal/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	resolutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nodeclass_resolutions_total",
		Help: "Classification resolutions by result",
	}, []string{"result"})

	resolutionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "nodeclass_resolution_duration_seconds",
		Help:    "Time spent resolving one node classification",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
	})

	cyclesTolerated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nodeclass_resolution_cycles_total",
		Help: "Inclusion cycles met and skipped during resolution",
	})

	mutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nodeclass_mutations_total",
		Help: "Graph mutations by operation and result",
	}, []string{"operation", "result"})
)

// ObserveResolution records one resolution and its outcome
func ObserveResolution(d time.Duration, err error) {
	resolutionDuration.Observe(d.Seconds())
	resolutionsTotal.WithLabelValues(Result(err)).Inc()
}

// CycleTolerated records a cycle skipped during resolution
func CycleTolerated() {
	cyclesTolerated.Inc()
}

// ObserveMutation records the outcome of a mutating operation
func ObserveMutation(operation string, err error) {
	mutationsTotal.WithLabelValues(operation, Result(err)).Inc()
}

// Result maps an error to a low-cardinality label value
func Result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrConflict):
		return "conflict"
	case errors.Is(err, domain.ErrCycleDetected):
		return "cycle"
	case errors.Is(err, domain.ErrForbidden):
		return "forbidden"
	case errors.Is(err, domain.ErrTimeout):
		return "timeout"
	case errors.Is(err, domain.ErrInvalid):
		return "invalid"
	}
	return "error"
}

// Handler serves the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}
