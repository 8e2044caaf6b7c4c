package database

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"sona/internal/logging"
	"sona/internal/models"
)

// Config holds DB configuration
type Config struct {
	Driver   string
	Path     string
	DSN      string
	LogLevel logger.LogLevel
	Log      *logging.Logger
}

// ParseLogLevel maps a config string onto a gorm log level.
func ParseLogLevel(level string) logger.LogLevel {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}

// Init opens the configured database and runs migrations
func Init(cfg Config) (*gorm.DB, error) {
	if cfg.LogLevel == 0 {
		cfg.LogLevel = logger.Warn
	}
	if cfg.Log == nil {
		cfg.Log = logging.NewNop()
	}

	gormLogger := logger.New(
		cfg.Log.With("component", "gorm").Writer(),
		logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  cfg.LogLevel,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	var dialector gorm.Dialector
	switch cfg.Driver {
	case "", "sqlite":
		dialector = sqlite.Open(sqliteDSN(cfg.Path))
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormLogger,
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Driver, err)
	}

	if cfg.Driver == "" || cfg.Driver == "sqlite" {
		// Configure connection pool for SQLite to prevent "database is locked" errors
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("get sql db: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

func sqliteDSN(path string) string {
	// a private in-memory database lives as long as the single pooled connection
	if path == "" || path == ":memory:" {
		return ":memory:"
	}
	if strings.HasPrefix(path, "file:") {
		return path
	}
	return fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=ON", path)
}

// Migrate runs all automigrations. Keep the model list in one place.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.ContentHash{},
		&models.GenerationLog{},
		&models.GenerationStat{},
		&models.TemplateVersion{},
		&models.SettingRow{},
		&models.SandboxRow{},
		&models.KnowledgeSection{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
