// Package metrics exposes runtime health as Prometheus collectors.
//
// Every method is safe on a nil *Metrics, so components can be built
// without metrics in tests.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const namespace = "hotswap"

// Reload outcomes.
const (
	OutcomeSuccess       = "success"
	OutcomeDebounced     = "debounced"
	OutcomeLoadFailed    = "load_failed"
	OutcomeRestoreFailed = "restore_failed"
	OutcomeAborted       = "aborted"
)

// Degrade reasons.
const (
	DegradeSchemaMismatch  = "schema_mismatch"
	DegradeSnapshotLost    = "snapshot_lost"
	DegradeRestoreRejected = "restore_rejected"
)

// Metrics holds the runtime collectors.
type Metrics struct {
	reloads        *prometheus.CounterVec
	faults         *prometheus.CounterVec
	degrades       *prometheus.CounterVec
	reloadDuration prometheus.Histogram
	snapshotBytes  prometheus.Gauge
	paused         prometheus.Gauge
	ticks          prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		reloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reloads_total",
			Help:      "Hot reload attempts by outcome",
		}, []string{"outcome"}),
		faults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "module_faults_total",
			Help:      "Non-success results returned by module entry points",
		}, []string{"op"}),
		degrades: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "degrades_total",
			Help:      "Reloads that continued without the previous state",
		}, []string{"reason"}),
		reloadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reload_duration_seconds",
			Help:      "Wall time of completed hot reloads",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
		snapshotBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "snapshot_bytes",
			Help:      "Size of the most recent state snapshot",
		}),
		paused: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "runtime_paused",
			Help:      "1 while the runtime is paused after a module fault",
		}),
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Simulation steps run by the module",
		}),
	}

	for _, c := range []prometheus.Collector{
		m.reloads, m.faults, m.degrades, m.reloadDuration, m.snapshotBytes, m.paused, m.ticks,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Reload counts a reload attempt.
func (m *Metrics) Reload(outcome string) {
	if m == nil {
		return
	}
	m.reloads.WithLabelValues(outcome).Inc()
}

// ReloadDuration records a completed reload.
func (m *Metrics) ReloadDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.reloadDuration.Observe(d.Seconds())
}

// Fault counts a non-success result from op.
func (m *Metrics) Fault(op string) {
	if m == nil {
		return
	}
	m.faults.WithLabelValues(op).Inc()
}

// Degrade counts a reload that lost state.
func (m *Metrics) Degrade(reason string) {
	if m == nil {
		return
	}
	m.degrades.WithLabelValues(reason).Inc()
}

// SnapshotBytes records the size of the latest snapshot.
func (m *Metrics) SnapshotBytes(n int) {
	if m == nil {
		return
	}
	m.snapshotBytes.Set(float64(n))
}

// Paused reflects the runtime state.
func (m *Metrics) Paused(paused bool) {
	if m == nil {
		return
	}
	if paused {
		m.paused.Set(1)
	} else {
		m.paused.Set(0)
	}
}

// Tick counts one simulation step.
func (m *Metrics) Tick() {
	if m == nil {
		return
	}
	m.ticks.Inc()
}

// Serve exposes gatherer on addr under /metrics until ctx is done.
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer, log *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("metrics server listening", zap.String("addr", addr))
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
