package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Candidate metrics
	candidatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zipcrack_candidates_total",
			Help: "Candidate passwords tested, by result",
		},
		[]string{"result"}, // "rejected" or "accepted"
	)

	// Attack metrics
	attacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zipcrack_attacks_total",
			Help: "Entry attacks finished, by outcome",
		},
		[]string{"outcome"}, // "found", "exhausted", "error"
	)

	tierDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "zipcrack_tier_duration_seconds",
			Help:    "Time spent searching one password length",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 12), // 1ms to ~70min
		},
		[]string{"length"},
	)

	// Worker metrics
	activeWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "zipcrack_active_workers",
			Help: "Number of search workers currently scanning a range",
		},
	)
)

// Collector provides convenience methods for recording metrics.
// A nil *Collector is valid and records nothing.
type Collector struct {
	logger *slog.Logger
}

// NewCollector creates a new metrics collector
func NewCollector(logger *slog.Logger) *Collector {
	return &Collector{
		logger: logger,
	}
}

// AddRejected counts n rejected candidates
func (c *Collector) AddRejected(n uint64) {
	if c == nil || n == 0 {
		return
	}
	candidatesTotal.WithLabelValues("rejected").Add(float64(n))
}

// IncAccepted counts one accepted candidate
func (c *Collector) IncAccepted() {
	if c == nil {
		return
	}
	candidatesTotal.WithLabelValues("accepted").Inc()
}

// RecordAttack records the outcome of one entry attack
func (c *Collector) RecordAttack(outcome string) {
	if c == nil {
		return
	}
	attacksTotal.WithLabelValues(outcome).Inc()
}

// RecordTier records how long one length tier took
func (c *Collector) RecordTier(length string, duration time.Duration) {
	if c == nil {
		return
	}
	tierDuration.WithLabelValues(length).Observe(duration.Seconds())
}

// WorkerStarted increments the active worker gauge
func (c *Collector) WorkerStarted() {
	if c == nil {
		return
	}
	activeWorkers.Inc()
}

// WorkerStopped decrements the active worker gauge
func (c *Collector) WorkerStopped() {
	if c == nil {
		return
	}
	activeWorkers.Dec()
}

// Serve exposes /metrics on addr until ctx is cancelled
func (c *Collector) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	c.logger.Info("Serving metrics", "addr", addr, "path", "/metrics")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
