// Package metric exposes Prometheus counters for config loads and lookups.
package metric

import (
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/davidthor/smartcfg/pkg/config"
	"github.com/davidthor/smartcfg/pkg/errors"
)

const namespace = "smartcfg"

// Metrics holds the collectors. It satisfies store.UsageTracker.
type Metrics struct {
	registry *prometheus.Registry

	KeyAccesses        *prometheus.CounterVec
	Loads              *prometheus.CounterVec
	LanguageSelections *prometheus.CounterVec
	Diagnostics        *prometheus.CounterVec
	Entries            prometheus.Gauge
}

// New creates the collectors and registers them, together with the Go
// runtime collectors, on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		KeyAccesses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "store",
				Name:      "key_accesses_total",
				Help:      "Successful lookups by key",
			},
			[]string{"key"},
		),

		Loads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "service",
				Name:      "loads_total",
				Help:      "Document loads by source and outcome",
			},
			[]string{"source", "outcome"},
		),

		LanguageSelections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "store",
				Name:      "language_selections_total",
				Help:      "Language selections by language",
			},
			[]string{"language"},
		),

		Diagnostics: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "document",
				Name:      "diagnostics_total",
				Help:      "Parse and load diagnostics by code and severity; error diagnostics are dropped entries",
			},
			[]string{"code", "severity"},
		),

		Entries: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "store",
				Name:      "entries",
				Help:      "Entries in the active document for this platform",
			},
		),
	}

	m.registry.MustRegister(
		m.KeyAccesses,
		m.Loads,
		m.LanguageSelections,
		m.Diagnostics,
		m.Entries,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// KeyAccessed counts one successful lookup.
func (m *Metrics) KeyAccessed(key string) {
	m.KeyAccesses.WithLabelValues(key).Inc()
}

// LoadCompleted counts a load attempt from source. The outcome label is
// "success", the lowercased error code, or "failure".
func (m *Metrics) LoadCompleted(source string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
		if code := errors.CodeOf(err); code != "" {
			outcome = strings.ToLower(string(code))
		}
	}
	m.Loads.WithLabelValues(source, outcome).Inc()
}

// LanguageSelected counts a language selection.
func (m *Metrics) LanguageSelected(lang config.Language) {
	m.LanguageSelections.WithLabelValues(string(lang)).Inc()
}

// ObserveDiagnostics counts each diagnostic by code and severity.
func (m *Metrics) ObserveDiagnostics(diags []config.Diagnostic) {
	for _, d := range diags {
		m.Diagnostics.WithLabelValues(string(d.Code), string(d.Severity)).Inc()
	}
}

// SetEntries records the number of entries visible to the store.
func (m *Metrics) SetEntries(n int) {
	m.Entries.Set(float64(n))
}
