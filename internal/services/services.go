package services

import (
	"context"

	"gorm.io/gorm"

	"sona/internal/logging"
	"sona/internal/metrics"
	"sona/internal/repositories"
)

// Options tunes the container. Zero values pick defaults.
type Options struct {
	CacheSize   int
	LogCapacity int
	Generator   ContentGenerator
	Metrics     *metrics.Metrics
	Log         *logging.Logger
}

// SonaServices aggregates the SONA services over one persistence gateway.
type SonaServices struct {
	Gateway      *repositories.Gateway
	Metrics      *metrics.Metrics
	Logs         *GenerationLogger
	Tracker      *ContentTracker
	Versions     *VersionManager
	Settings     *SettingsManager
	Sandbox      *SandboxManager
	ExportImport *ExportImportManager
	Analytics    *AnalyticsService
}

// NewServices constructs the service container using repositories backed by db.
func NewServices(db *gorm.DB, opts Options) *SonaServices {
	return NewServicesWithGateway(repositories.NewGateway(db), opts)
}

// NewServicesWithGateway wires the services over an existing gateway, which
// lets tests substitute individual repositories.
func NewServicesWithGateway(gw *repositories.Gateway, opts Options) *SonaServices {
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}
	if opts.Log == nil {
		opts.Log = logging.NewNop()
	}
	logs := NewGenerationLogger(opts.LogCapacity)
	settings := NewSettingsManager(gw.Settings, opts.Metrics, opts.Log)
	versions := NewVersionManager(gw.TemplateVersions, opts.Metrics, opts.Log)

	return &SonaServices{
		Gateway: gw,
		Metrics: opts.Metrics,
		Logs:    logs,
		Tracker: NewContentTracker(gw.ContentHashes, gw.GenerationLogs, gw.GenerationStats, TrackerOptions{
			CacheSize: opts.CacheSize,
			Logger:    logs,
			Metrics:   opts.Metrics,
			Log:       opts.Log,
		}),
		Versions:     versions,
		Settings:     settings,
		Sandbox:      NewSandboxManager(settings, opts.Generator, gw.Sandboxes, opts.Metrics, opts.Log),
		ExportImport: NewExportImportManager(gw.Knowledge, versions, settings, opts.Metrics, opts.Log),
		Analytics:    NewAnalyticsService(gw.GenerationLogs, gw.GenerationStats),
	}
}

// Reset drops every in-memory cache and settings listener and closes all
// sandbox sessions. Persisted content, logs, versions and settings are kept.
func (s *SonaServices) Reset(ctx context.Context) error {
	s.Tracker.ClearCache()
	s.Logs.Clear()
	s.Settings.invalidate()
	s.Settings.listeners.Clear()
	return s.Sandbox.ClearAll(ctx)
}
