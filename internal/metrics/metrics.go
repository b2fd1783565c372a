// Package metrics exposes Prometheus collectors for the snapshot bot.
package metrics

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

// DefaultJob is the Pushgateway job name used when none is configured.
const DefaultJob = "snapshotbot"

var (
	submissionsTotal          *prometheus.CounterVec
	archiveResolutionsTotal   *prometheus.CounterVec
	ledgerSweepsTotal         *prometheus.CounterVec
	cycleDurationSeconds      prometheus.Histogram
	cycleFailuresTotal        prometheus.Counter
	rateLimitDelaysSeconds    *prometheus.HistogramVec
	lastSuccessfulCycleSecond prometheus.Gauge

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		submissionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "snapshotbot_submissions_total",
				Help: "Submissions seen by the pipeline, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		archiveResolutionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "snapshotbot_archive_resolutions_total",
				Help: "Archive link resolutions, labeled by result.",
			},
			[]string{"result"},
		)

		ledgerSweepsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "snapshotbot_ledger_sweeps_total",
				Help: "Ledger expiry sweeps, labeled by result.",
			},
			[]string{"result"},
		)

		cycleDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "snapshotbot_cycle_duration_seconds",
				Help:    "Histogram of poll cycle durations.",
				Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
			},
		)

		cycleFailuresTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "snapshotbot_cycle_failures_total",
				Help: "Poll cycles that ended with an error or panic.",
			},
		)

		rateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "snapshotbot_rate_limit_delays_seconds",
				Help:    "Histogram of rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"host"},
		)

		lastSuccessfulCycleSecond = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "snapshotbot_last_successful_cycle_timestamp_seconds",
				Help: "Unix time of the last poll cycle that completed without error.",
			},
		)
	})
}

// SanitizeHost extracts a lowercase hostname from a URL.
// It returns "unknown" if the URL is invalid.
func SanitizeHost(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// ObserveSubmission increments the submission counter for the given outcome.
func ObserveSubmission(outcome string) {
	Init()
	submissionsTotal.WithLabelValues(outcome).Inc()
}

// ObserveResolution records an archive resolution result ("ok" or "failed").
func ObserveResolution(ok bool) {
	Init()
	result := "ok"
	if !ok {
		result = "failed"
	}
	archiveResolutionsTotal.WithLabelValues(result).Inc()
}

// ObserveSweep records a ledger maintenance attempt.
func ObserveSweep(err error) {
	Init()
	result := "ok"
	if err != nil {
		result = "failed"
	}
	ledgerSweepsTotal.WithLabelValues(result).Inc()
}

// ObserveCycle records the duration and result of one poll cycle.
func ObserveCycle(duration time.Duration, err error) {
	Init()
	cycleDurationSeconds.Observe(duration.Seconds())
	if err != nil {
		cycleFailuresTotal.Inc()
		return
	}
	lastSuccessfulCycleSecond.SetToCurrentTime()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(host string, duration time.Duration) {
	Init()
	rateLimitDelaysSeconds.WithLabelValues(host).Observe(duration.Seconds())
}

// Pusher sends the default registry to a Prometheus Pushgateway.
type Pusher struct {
	pusher *push.Pusher
}

// NewPusher returns nil when gatewayURL is empty, which disables pushing.
func NewPusher(gatewayURL, job string) *Pusher {
	if gatewayURL == "" {
		return nil
	}
	if job == "" {
		job = DefaultJob
	}
	Init()
	return &Pusher{
		pusher: push.New(gatewayURL, job).Gatherer(prometheus.DefaultGatherer),
	}
}

// Push replaces the job's metrics on the gateway. A nil Pusher is a no-op.
func (p *Pusher) Push(ctx context.Context) error {
	if p == nil {
		return nil
	}
	if err := p.pusher.PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}
