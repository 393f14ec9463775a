package checkin

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics tracks check-in outcomes in a private registry.
type Metrics struct {
	registry *prometheus.Registry
	files    *prometheus.CounterVec
	runs     prometheus.Counter
	lastRun  prometheus.Gauge
	duration prometheus.Gauge
}

// NewMetrics creates and registers the check-in collectors.
func NewMetrics() (*Metrics, error) {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		files: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mediashelf_checkin_files_total",
				Help: "Inbox files processed, by terminal state.",
			},
			[]string{"state"},
		),
		runs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mediashelf_checkin_runs_total",
			Help: "Completed check-in runs.",
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mediashelf_checkin_last_run_timestamp_seconds",
			Help: "Unix time the last check-in run finished.",
		}),
		duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mediashelf_checkin_last_run_duration_seconds",
			Help: "Wall time of the last check-in run.",
		}),
	}
	for _, c := range []prometheus.Collector{m.files, m.runs, m.lastRun, m.duration} {
		if err := m.registry.Register(c); err != nil {
			return nil, fmt.Errorf("register checkin metrics: %w", err)
		}
	}
	return m, nil
}

// Registry exposes the collectors for HTTP scraping.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Observe records a finished run.
func (m *Metrics) Observe(s Summary) {
	if m == nil {
		return
	}
	for _, res := range s.Results {
		m.files.WithLabelValues(res.State.String()).Inc()
	}
	m.runs.Inc()
	m.lastRun.Set(float64(s.FinishedAt.Unix()))
	m.duration.Set(s.FinishedAt.Sub(s.StartedAt).Seconds())
}

// WriteTextfile writes the registry in the node_exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
