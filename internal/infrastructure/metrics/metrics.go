// Package metrics exposes Prometheus metrics for engine runs and HTTP requests.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sheetbridge/internal/core/apperror"
	"sheetbridge/internal/domain/validation"
)

// Run outcomes.
const (
	OutcomeClean    = "clean"
	OutcomeFindings = "findings"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

var (
	namespace = "sheetbridge"

	runsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "runs_total",
			Help:      "Validation and enrichment runs by operation and outcome",
		},
		[]string{"op", "outcome"},
	)

	runDuration = promauto.NewSummaryVec(
		prometheus.SummaryOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "run_duration_seconds",
			Help:      "Time taken by a validation or enrichment run",
			Objectives: map[float64]float64{
				0.5:  0.01,
				0.9:  0.01,
				0.99: 0.01,
			},
		},
		[]string{"op"},
	)

	findingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "findings_total",
			Help:      "Duplicate ids and unresolved references found",
		},
		[]string{"category"},
	)

	httpRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		},
		[]string{"method", "route"},
	)
)

// Recorder implements validation.Observer.
type Recorder struct{}

var _ validation.Observer = Recorder{}

// ObserveRun records one engine run.
func (Recorder) ObserveRun(op string, report *validation.Report, err error, elapsed time.Duration) {
	runsTotal.WithLabelValues(op, Outcome(report, err)).Inc()
	runDuration.WithLabelValues(op).Observe(elapsed.Seconds())
	if report == nil {
		return
	}
	dups := 0
	for _, ids := range report.DuplicateIDs {
		dups += len(ids)
	}
	missing := 0
	for _, refs := range report.MissingFK {
		for _, r := range refs {
			missing += len(r.MissingValues)
		}
	}
	findingsTotal.WithLabelValues(string(validation.CategoryDuplicateIDs)).Add(float64(dups))
	findingsTotal.WithLabelValues(string(validation.CategoryMissingFK)).Add(float64(missing))
}

// Outcome classifies a run for the runs_total label.
func Outcome(report *validation.Report, err error) string {
	switch {
	case err == nil && (report == nil || report.Clean()):
		return OutcomeClean
	case err == nil:
		return OutcomeFindings
	case apperror.HasCode(err, apperror.CodeDuplicateIDs), apperror.HasCode(err, apperror.CodeMissingReferences):
		return OutcomeRejected
	default:
		return OutcomeError
	}
}

// ObserveHTTP records one HTTP request.
func ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
