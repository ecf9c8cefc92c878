package harvest

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	iterationsTotal     *prometheus.CounterVec
	postsIngestedTotal  prometheus.Counter
	postsDiscardedTotal prometheus.Counter
	admittedTotal       prometheus.Counter
	rejectedTotal       *prometheus.CounterVec
	coverageDatesTotal  prometheus.Counter
	fetchDuration       *prometheus.HistogramVec

	metricsOnce sync.Once
)

// InitMetrics initializes the Prometheus collectors.
// It is safe to call this function multiple times.
func InitMetrics() {
	metricsOnce.Do(func() {
		iterationsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_iterations_total",
				Help: "Crawl loop iterations, labeled by loop and outcome.",
			},
			[]string{"loop", "outcome"},
		)

		postsIngestedTotal = promauto.NewCounter(prometheus.CounterOpts{
			Name: "harvester_posts_ingested_total",
			Help: "Posts that survived normalization and were persisted.",
		})

		postsDiscardedTotal = promauto.NewCounter(prometheus.CounterOpts{
			Name: "harvester_posts_discarded_total",
			Help: "Posts discarded by normalization or the topical gate.",
		})

		admittedTotal = promauto.NewCounter(prometheus.CounterOpts{
			Name: "harvester_accounts_admitted_total",
			Help: "Candidates admitted into the tracked population.",
		})

		rejectedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_candidates_rejected_total",
				Help: "Candidates rejected during ingestion, labeled by reason.",
			},
			[]string{"reason"},
		)

		coverageDatesTotal = promauto.NewCounter(prometheus.CounterOpts{
			Name: "harvester_coverage_dates_total",
			Help: "Calendar dates appended to the coverage store.",
		})

		fetchDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "harvester_fetch_duration_seconds",
				Help:    "Upstream fetch latency, labeled by kind.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"kind"},
		)
	})
}

// ObserveIteration records one loop iteration outcome.
func ObserveIteration(loop, outcome string) {
	if iterationsTotal == nil {
		return
	}
	iterationsTotal.WithLabelValues(loop, outcome).Inc()
}

// ObservePostsIngested adds to the persisted-post counter.
func ObservePostsIngested(n int) {
	if postsIngestedTotal == nil || n <= 0 {
		return
	}
	postsIngestedTotal.Add(float64(n))
}

// ObservePostsDiscarded adds to the discarded-post counter.
func ObservePostsDiscarded(n int) {
	if postsDiscardedTotal == nil || n <= 0 {
		return
	}
	postsDiscardedTotal.Add(float64(n))
}

// ObserveAdmitted counts an admitted candidate.
func ObserveAdmitted() {
	if admittedTotal == nil {
		return
	}
	admittedTotal.Inc()
}

// ObserveRejected counts a rejected candidate by reason.
func ObserveRejected(reason string) {
	if rejectedTotal == nil {
		return
	}
	rejectedTotal.WithLabelValues(reason).Inc()
}

// ObserveCoverageAppend counts a coverage date append.
func ObserveCoverageAppend() {
	if coverageDatesTotal == nil {
		return
	}
	coverageDatesTotal.Inc()
}

// ObserveFetchDuration records one upstream fetch latency in seconds.
func ObserveFetchDuration(kind string, seconds float64) {
	if fetchDuration == nil {
		return
	}
	fetchDuration.WithLabelValues(kind).Observe(seconds)
}
