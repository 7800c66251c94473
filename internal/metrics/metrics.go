// Package metrics exports pipeline step counts and durations to Prometheus.
// A *Metrics is a pipeline.Observer; the collectors live on a private
// registry served by Handler.
package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wdm0006/nimbus/pkg/pipeline"
)

const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

type Metrics struct {
	reg *prometheus.Registry

	stepCounter  *prometheus.CounterVec // nimbus_step_total
	stepDuration *prometheus.SummaryVec // nimbus_step_duration_seconds
	rowsDropped  *prometheus.CounterVec // nimbus_rows_dropped_total
	runCounter   *prometheus.CounterVec // nimbus_runs_total
}

func New() (*Metrics, error) {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		reg: reg,
		stepCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nimbus_step_total",
				Help: "Pipeline step executions, partitioned by operation and status.",
			},
			[]string{"operation", "status"},
		),
		stepDuration: prometheus.NewSummaryVec(
			prometheus.SummaryOpts{
				Name:       "nimbus_step_duration_seconds",
				Help:       "Duration of pipeline steps in seconds.",
				Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
			},
			[]string{"operation", "status"},
		),
		rowsDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nimbus_rows_dropped_total",
				Help: "Rows removed by successful pipeline steps.",
			},
			[]string{"operation"},
		),
		runCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nimbus_runs_total",
				Help: "Pipeline runs by mode (run, trace) and status.",
			},
			[]string{"mode", "status"},
		),
	}
	for name, c := range map[string]prometheus.Collector{
		"step counter": m.stepCounter,
		"step summary": m.stepDuration,
		"rows dropped": m.rowsDropped,
		"run counter":  m.runCounter,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("metrics: register %s: %w", name, err)
		}
	}
	return m, nil
}

// ObserveStep implements pipeline.Observer.
func (m *Metrics) ObserveStep(o pipeline.Outcome) {
	status := StatusSuccess
	if o.Err != nil {
		status = StatusFailure
	}
	m.stepCounter.WithLabelValues(o.Operation, status).Inc()
	m.stepDuration.WithLabelValues(o.Operation, status).Observe(o.Duration.Seconds())
	if o.Err == nil && o.RowsAfter < o.RowsBefore {
		m.rowsDropped.WithLabelValues(o.Operation).Add(float64(o.RowsBefore - o.RowsAfter))
	}
}

// RecordRun counts one pipeline run; failed is true when a trace aborted.
func (m *Metrics) RecordRun(mode string, failed bool) {
	status := StatusSuccess
	if failed {
		status = StatusFailure
	}
	m.runCounter.WithLabelValues(mode, status).Inc()
}

func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}
