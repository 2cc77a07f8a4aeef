// Package metrics holds the prometheus collectors of the app.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "invoicer"

const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultBusy    = "busy"
)

// Exports instruments the export pipeline.
type Exports struct {
	Total        *prometheus.CounterVec   // by result
	StageSeconds *prometheus.HistogramVec // by stage
}

func NewExports(reg prometheus.Registerer) *Exports {
	m := &Exports{
		Total: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exports_total",
			Help:      "Export attempts by result.",
		}, []string{"result"}),
		StageSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "export_stage_seconds",
			Help:      "Time spent in each export stage.",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"stage"}),
	}
	if reg != nil {
		reg.MustRegister(m.Total, m.StageSeconds)
	}
	return m
}

// Done counts one finished export. Nil-safe.
func (m *Exports) Done(result string) {
	if m == nil {
		return
	}
	m.Total.WithLabelValues(result).Inc()
}

// ObserveStage records a stage duration in seconds. Nil-safe.
func (m *Exports) ObserveStage(stage string, seconds float64) {
	if m == nil {
		return
	}
	m.StageSeconds.WithLabelValues(stage).Observe(seconds)
}

// NewRegistry is a per-app registry with the Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}
