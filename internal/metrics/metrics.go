// Package metrics holds the Prometheus collectors of the scoring service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Submissions by outcome: the apperr kind, or "scored".
	submissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "examscore_submissions_total",
			Help: "Total number of exam submissions by outcome",
		},
		[]string{"outcome"},
	)

	percentage = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "examscore_submission_percentage",
			Help:    "Percentage score of scored submissions",
			Buckets: prometheus.LinearBuckets(10, 10, 10),
		},
	)

	statsRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "examscore_statistics_requests_total",
			Help: "Total number of statistics computations by outcome",
		},
		[]string{"outcome"},
	)

	loginAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "examscore_login_attempts_total",
			Help: "Total number of sign-in attempts",
		},
		[]string{"status"}, // success/failure
	)
)

// OutcomeScored labels a submission that produced a result.
const OutcomeScored = "scored"

// ObserveSubmission counts one submission. pct is recorded only for scored ones.
func ObserveSubmission(outcome string, pct float64) {
	submissions.WithLabelValues(outcome).Inc()
	if outcome == OutcomeScored {
		percentage.Observe(pct)
	}
}

// ObserveStatistics counts one statistics computation.
func ObserveStatistics(outcome string) {
	statsRequests.WithLabelValues(outcome).Inc()
}

// ObserveLogin counts one sign-in attempt.
func ObserveLogin(success bool) {
	status := "failure"
	if success {
		status = "success"
	}
	loginAttempts.WithLabelValues(status).Inc()
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
