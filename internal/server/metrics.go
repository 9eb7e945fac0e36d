package server

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mintrunner/internal/mint"
	"mintrunner/internal/progress"
)

var (
	_ mint.Observer      = (*Metrics)(nil)
	_ mint.BatchObserver = (*Metrics)(nil)
)

// Metrics exports the running batch to Prometheus.
type Metrics struct {
	registry        *prometheus.Registry
	attemptsTotal   *prometheus.CounterVec
	attemptDuration prometheus.Histogram
	sessionAttempts *prometheus.GaugeVec
	mintRate        prometheus.Gauge
	stopsTotal      *prometheus.CounterVec
	now             func() time.Time
}

func NewMetrics() *Metrics {
	attempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mintrunner_mint_attempts_total",
		Help: "Mint attempts by outcome and failure category",
	}, []string{"outcome", "category"})

	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "mintrunner_mint_attempt_duration_seconds",
		Help:    "Submit plus confirmation time of a mint attempt",
		Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
	})

	session := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "mintrunner_session_attempts",
		Help: "Attempt counters of the current batch",
	}, []string{"state"})

	rate := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "mintrunner_mint_rate_per_second",
		Help: "Successful mints per second since the batch started",
	})

	stops := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mintrunner_batch_stops_total",
		Help: "Batches that ended before the requested count",
	}, []string{"reason"})

	r := prometheus.NewRegistry()
	r.MustRegister(attempts, duration, session, rate, stops)

	return &Metrics{
		registry:        r,
		attemptsTotal:   attempts,
		attemptDuration: duration,
		sessionAttempts: session,
		mintRate:        rate,
		stopsTotal:      stops,
		now:             time.Now,
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) AttemptRecorded(a mint.Attempt, s mint.Session) {
	m.attemptsTotal.WithLabelValues(a.Outcome.String(), a.Category.String()).Inc()
	m.attemptDuration.Observe(a.Duration.Seconds())
	m.setSession(s)
}

// BatchFinished counts early stops once per batch, including interrupts between attempts.
func (m *Metrics) BatchFinished(s mint.Session) {
	m.setSession(s)
	if s.StoppedEarly {
		m.stopsTotal.WithLabelValues(s.StopReason).Inc()
	}
}

func (m *Metrics) setSession(s mint.Session) {
	m.sessionAttempts.WithLabelValues("requested").Set(float64(s.Requested))
	m.sessionAttempts.WithLabelValues("successful").Set(float64(s.Successful))
	m.sessionAttempts.WithLabelValues("failed").Set(float64(s.Failed))
	m.mintRate.Set(progress.Compute(s, m.now()).RatePerSecond)
}
