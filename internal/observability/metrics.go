// Package observability provides Prometheus metrics for tracking runs.
package observability

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Metrics holds the Prometheus collectors for resolution and balance fetching.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Resolver metrics
	Resolutions    *prometheus.CounterVec
	SearchSteps    prometheus.Counter
	SearchDuration prometheus.Histogram

	// Balance source metrics
	BalanceFetches     *prometheus.CounterVec
	BalanceFetchErrors *prometheus.CounterVec

	// Output metrics
	RecordsProduced *prometheus.CounterVec
}

// NewMetrics registers all collectors on reg. A nil reg uses a fresh registry.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "ibctrace"
	}
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)

	return &Metrics{
		Resolutions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resolver",
			Name:      "resolutions_total",
			Help:      "Denominations resolved, by outcome",
		}, []string{"outcome"}),
		SearchSteps: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resolver",
			Name:      "search_steps_total",
			Help:      "Hop extensions evaluated by the provenance search",
		}),
		SearchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "resolver",
			Name:      "search_duration_seconds",
			Help:      "Wall time of a single provenance search",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}),
		BalanceFetches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "balances",
			Name:      "fetches_total",
			Help:      "Balance queries issued, by chain",
		}, []string{"chain"}),
		BalanceFetchErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "balances",
			Name:      "fetch_errors_total",
			Help:      "Balance queries that failed after retries, by chain",
		}, []string{"chain"}),
		RecordsProduced: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "aggregate",
			Name:      "records_total",
			Help:      "Balance records produced, by logical denom name",
		}, []string{"name"}),
	}
}

// ObserveResolution records one resolver call.
func (m *Metrics) ObserveResolution(outcome string, steps int64, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Resolutions.WithLabelValues(outcome).Inc()
	m.SearchSteps.Add(float64(steps))
	m.SearchDuration.Observe(elapsed.Seconds())
}

// ObserveFetch records a balance query and whether it ultimately failed.
func (m *Metrics) ObserveFetch(chain string, err error) {
	if m == nil {
		return
	}
	m.BalanceFetches.WithLabelValues(chain).Inc()
	if err != nil {
		m.BalanceFetchErrors.WithLabelValues(chain).Inc()
	}
}

// ObserveRecord records one produced balance record.
func (m *Metrics) ObserveRecord(name string) {
	if m == nil {
		return
	}
	m.RecordsProduced.WithLabelValues(name).Inc()
}

// Serve exposes gatherer on addr under /metrics until ctx is done.
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	go func() {
		logger.Info("metrics listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server stopped", zap.Error(err))
		}
	}()
}
