// Package config loads SONA configuration from YAML, .env files and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the complete SONA configuration
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
	Tracker  TrackerConfig  `yaml:"tracker"`
	LLM      LLMConfig      `yaml:"llm"`
}

// DatabaseConfig selects the row store.
type DatabaseConfig struct {
	// Driver is "sqlite" or "postgres"
	Driver string `yaml:"driver"`
	// Path is the sqlite file path
	Path string `yaml:"path"`
	// DSN is the postgres connection string
	DSN string `yaml:"dsn"`
	// LogLevel is one of silent, error, warn, info
	LogLevel string `yaml:"log_level"`
}

// LogConfig configures the structured logger and the in-memory operational log.
type LogConfig struct {
	Mode     string `yaml:"mode"`
	Capacity int    `yaml:"capacity"`
}

// TrackerConfig configures content deduplication.
type TrackerConfig struct {
	CacheSize           int     `yaml:"cache_size"`
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	RecentWindow        int     `yaml:"recent_window"`
}

// LLMConfig configures the sandbox content generator.
type LLMConfig struct {
	Model   string `yaml:"model"`
	APIKey  string `yaml:"-"`
	BaseURL string `yaml:"base_url"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:   "sqlite",
			Path:     "sona.db",
			LogLevel: "warn",
		},
		Log: LogConfig{
			Mode:     "dev",
			Capacity: 1000,
		},
		Tracker: TrackerConfig{
			CacheSize:           1000,
			SimilarityThreshold: 0.5,
			RecentWindow:        100,
		},
		LLM: LLMConfig{
			Model: "gpt-5-mini",
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return errors.New("database.path is required for sqlite")
		}
	case "postgres":
		if c.Database.DSN == "" {
			return errors.New("database.dsn is required for postgres")
		}
	default:
		return fmt.Errorf("database.driver must be sqlite or postgres, got %q", c.Database.Driver)
	}
	if c.Log.Capacity <= 0 {
		return errors.New("log.capacity must be positive")
	}
	if c.Tracker.CacheSize <= 0 {
		return errors.New("tracker.cache_size must be positive")
	}
	if c.Tracker.SimilarityThreshold <= 0 || c.Tracker.SimilarityThreshold > 1 {
		return errors.New("tracker.similarity_threshold must be in (0, 1]")
	}
	return nil
}

// Load reads an optional .env next to the config, the YAML file at path (if it
// exists) over the defaults, and finally the environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	envPath := ".env"
	if path != "" {
		envPath = filepath.Join(filepath.Dir(path), ".env")
	}
	if err := godotenv.Load(envPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", envPath, err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveToFile writes the configuration as YAML.
func (c *Config) SaveToFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Database.Driver = envString("SONA_DB_DRIVER", c.Database.Driver)
	c.Database.Path = envString("SONA_DB_PATH", c.Database.Path)
	c.Database.DSN = envString("SONA_DB_DSN", c.Database.DSN)
	c.Log.Mode = envString("SONA_LOG_MODE", c.Log.Mode)
	c.Log.Capacity = envInt("SONA_LOG_CAPACITY", c.Log.Capacity)
	c.Tracker.CacheSize = envInt("SONA_CACHE_SIZE", c.Tracker.CacheSize)
	c.LLM.Model = envString("SONA_LLM_MODEL", c.LLM.Model)
	c.LLM.BaseURL = envString("SONA_LLM_BASE_URL", c.LLM.BaseURL)
	c.LLM.APIKey = envString("OPENAI_API_KEY", c.LLM.APIKey)
}

func envString(name, def string) string {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		return v
	}
	return def
}

func envInt(name string, def int) int {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}
