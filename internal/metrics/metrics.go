// Package metrics holds the prometheus collectors for the SONA services.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups collectors on a private registry so several containers can
// coexist in one process (tests build many).
type Metrics struct {
	Registry *prometheus.Registry

	ContentRecorded    prometheus.Counter
	DuplicatesDetected prometheus.Counter
	GenerationEvents   *prometheus.CounterVec
	GenerationDuration prometheus.Histogram
	TemplateVersions   *prometheus.CounterVec
	SandboxSessions    prometheus.Gauge
	SandboxGenerations prometheus.Counter
	SettingsUpdates    prometheus.Counter
	ImportedItems      *prometheus.CounterVec
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		ContentRecorded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sona",
			Name:      "content_recorded_total",
			Help:      "Unique content fingerprints recorded.",
		}),
		DuplicatesDetected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sona",
			Name:      "duplicates_detected_total",
			Help:      "Content rejected or skipped because its hash was already known.",
		}),
		GenerationEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sona",
			Name:      "generation_events_total",
			Help:      "Generation attempts by outcome.",
		}, []string{"outcome"}),
		GenerationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "sona",
			Name:      "generation_duration_seconds",
			Help:      "Duration of generation attempts as reported by the caller.",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
		}),
		TemplateVersions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sona",
			Name:      "template_versions_total",
			Help:      "Template versions created by kind (save, rollback, import).",
		}, []string{"kind"}),
		SandboxSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "sona",
			Name:      "sandbox_sessions",
			Help:      "Live sandbox sessions.",
		}),
		SandboxGenerations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sona",
			Name:      "sandbox_generations_total",
			Help:      "Content items generated inside sandbox sessions.",
		}),
		SettingsUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sona",
			Name:      "settings_updates_total",
			Help:      "Successful settings mutations.",
		}),
		ImportedItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sona",
			Name:      "imported_items_total",
			Help:      "Items merged by imports, by section.",
		}, []string{"section"}),
	}
	m.Registry.MustRegister(
		m.ContentRecorded,
		m.DuplicatesDetected,
		m.GenerationEvents,
		m.GenerationDuration,
		m.TemplateVersions,
		m.SandboxSessions,
		m.SandboxGenerations,
		m.SettingsUpdates,
		m.ImportedItems,
	)
	return m
}
