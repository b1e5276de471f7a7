// Package metrics exposes transfer counters in the Prometheus format.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bugmaschine/epfetch/pkg/download"
	"github.com/bugmaschine/epfetch/pkg/probe"
)

// Metrics contains the collectors for one process
type Metrics struct {
	registry *prometheus.Registry

	Outcomes        *prometheus.CounterVec
	BytesWritten    prometheus.Counter
	ExistenceChecks *prometheus.CounterVec
	InFlight        prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "epfetch_job_outcomes_total",
			Help: "Terminal job outcomes by status",
		}, []string{"status"}),
		BytesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "epfetch_bytes_written_total",
			Help: "Bytes written to destination files",
		}),
		ExistenceChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "epfetch_existence_checks_total",
			Help: "Existence checks issued while discovering episode ranges",
		}, []string{"result"}),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "epfetch_jobs_in_flight",
			Help: "Jobs currently transferring",
		}),
	}
	m.registry.MustRegister(m.Outcomes, m.BytesWritten, m.ExistenceChecks, m.InFlight)
	return m
}

func (m *Metrics) ObserveOutcome(o download.Outcome) {
	m.Outcomes.WithLabelValues(o.Status.String()).Inc()
	m.BytesWritten.Add(float64(o.Bytes))
}

// InstrumentTask tracks in-flight jobs around task.Run.
func (m *Metrics) InstrumentTask(task download.Task) download.Task {
	run := task.Run
	task.Run = func(ctx context.Context) (download.Outcome, error) {
		m.InFlight.Inc()
		defer m.InFlight.Dec()
		return run(ctx)
	}
	return task
}

// InstrumentChecker counts every existence check made through c.
func (m *Metrics) InstrumentChecker(c probe.Checker) probe.Checker {
	return probe.CheckerFunc(func(ctx context.Context, url string) bool {
		ok := c.Exists(ctx, url)
		result := "absent"
		if ok {
			result = "present"
		}
		m.ExistenceChecks.WithLabelValues(result).Inc()
		return ok
	})
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("Serving metrics", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
