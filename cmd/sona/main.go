// Package main provides the sona binary: a command line front end for the
// generation governance services (dedup tracking, template versions,
// settings, sandbox sessions, export/import and analytics).
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"sona/internal/config"
	"sona/internal/database"
	"sona/internal/llm/generator"
	"sona/internal/logging"
	"sona/internal/services"
)

const Version = "0.1.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app is everything a subcommand needs, opened once per invocation.
type app struct {
	cfg *config.Config
	log *logging.Logger
	db  *gorm.DB
	svc *services.SonaServices
}

func (a *app) close() {
	if a.db != nil {
		if sqlDB, err := a.db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	if a.log != nil {
		a.log.Sync()
	}
}

// openApp loads configuration, connects to the store and wires the services.
// The LLM generator is only built when withGenerator is set, so commands that
// never generate do not need an API key.
func openApp(ctx context.Context, configPath string, withGenerator bool) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	log, err := logging.New(cfg.Log.Mode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	a := &app{cfg: cfg, log: log}

	db, err := database.Init(database.Config{
		Driver:   cfg.Database.Driver,
		Path:     cfg.Database.Path,
		DSN:      cfg.Database.DSN,
		LogLevel: database.ParseLogLevel(cfg.Database.LogLevel),
		Log:      log,
	})
	if err != nil {
		a.close()
		return nil, fmt.Errorf("init database: %w", err)
	}
	a.db = db

	opts := services.Options{
		CacheSize:   cfg.Tracker.CacheSize,
		LogCapacity: cfg.Log.Capacity,
		Log:         log,
	}
	if withGenerator {
		gen, err := generator.NewOpenAI(ctx, cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.BaseURL, log)
		if err != nil {
			a.close()
			return nil, err
		}
		opts.Generator = gen
	}
	a.svc = services.NewServices(db, opts)
	return a, nil
}

func rootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "sona",
		Short:         "Generation governance for the article pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "sona.yaml", "Config file path (YAML)")

	// run opens the app for a subcommand and always releases it.
	run := func(withGenerator bool, fn func(cmd *cobra.Command, a *app, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), configPath, withGenerator)
			if err != nil {
				return err
			}
			defer a.close()
			return fn(cmd, a, args)
		}
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "sona version %s\n", Version)
			},
		},
		statsCmd(run),
		checkCmd(run),
		recentCmd(run),
		settingsCmd(run),
		templatesCmd(run),
		exportCmd(run),
		importCmd(run),
		logsCmd(run),
		analyticsCmd(run),
		sandboxCmd(run),
	)
	return cmd
}

type runner func(withGenerator bool, fn func(cmd *cobra.Command, a *app, args []string) error) func(*cobra.Command, []string) error

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
