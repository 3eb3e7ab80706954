// Package metrics exposes pipeline counters to Prometheus.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Event outcomes.
const (
	OutcomeFiled    = "filed"
	OutcomeAbsorbed = "absorbed"
	OutcomeReplayed = "replayed"
	OutcomeSkipped  = "skipped"
	OutcomeFailed   = "failed"
	OutcomeRetried  = "retried"
)

// Metrics holds the collectors of one pipeline. Each instance owns its
// registry so tests and concurrent runs do not share counters.
type Metrics struct {
	registry *prometheus.Registry

	events   *prometheus.CounterVec
	corps    *prometheus.CounterVec
	warnings *prometheus.CounterVec
	duration prometheus.Histogram
	notifies *prometheus.CounterVec
}

// New registers the pipeline collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "colinmig_events_total",
			Help: "Ledger events processed, by outcome",
		}, []string{"outcome"}),
		corps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "colinmig_corps_total",
			Help: "Corporations finished, by final watermark status",
		}, []string{"status"}),
		warnings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "colinmig_warnings_total",
			Help: "Data integrity warnings raised while rebuilding filings",
		}, []string{"kind"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "colinmig_event_seconds",
			Help:    "Time to rebuild and file one ledger event",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
		notifies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "colinmig_notifications_total",
			Help: "Post-commit notifications, by result",
		}, []string{"result"}),
	}
	m.registry.MustRegister(m.events, m.corps, m.warnings, m.duration, m.notifies)
	return m
}

// Event counts one event outcome.
func (m *Metrics) Event(outcome string) {
	m.events.WithLabelValues(outcome).Inc()
}

// Corp counts one finished corporation.
func (m *Metrics) Corp(status string) {
	m.corps.WithLabelValues(status).Inc()
}

// Warning counts one data integrity warning.
func (m *Metrics) Warning(kind string) {
	m.warnings.WithLabelValues(kind).Inc()
}

// ObserveEvent records the processing time of one event.
func (m *Metrics) ObserveEvent(d time.Duration) {
	m.duration.Observe(d.Seconds())
}

// Notification counts one notification attempt.
func (m *Metrics) Notification(ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	m.notifies.WithLabelValues(result).Inc()
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("serving metrics", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
