package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"sona/internal/models"
	"sona/internal/services"
)

func statsCmd(run runner) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show content tracker statistics",
		Args:  cobra.NoArgs,
		RunE: run(false, func(cmd *cobra.Command, a *app, _ []string) error {
			st, err := a.svc.Tracker.Stats(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), st)
		}),
	}
}

func checkCmd(run runner) *cobra.Command {
	return &cobra.Command{
		Use:   "check <file>",
		Short: "Check an article against known content",
		Args:  cobra.ExactArgs(1),
		RunE: run(false, func(cmd *cobra.Command, a *app, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			check, err := a.svc.Tracker.CheckDuplicate(cmd.Context(), string(data))
			if err != nil {
				return err
			}
			unique, err := a.svc.Tracker.IsUniqueEnough(cmd.Context(), string(data), a.cfg.Tracker.SimilarityThreshold)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), struct {
				services.DuplicateCheck
				UniqueEnough bool `json:"uniqueEnough"`
			}{check, unique})
		}),
	}
}

func recentCmd(run runner) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "recent",
		Short: "List the most recently tracked content fingerprints",
		Args:  cobra.NoArgs,
		RunE: run(false, func(cmd *cobra.Command, a *app, _ []string) error {
			if limit <= 0 {
				limit = a.cfg.Tracker.RecentWindow
			}
			rows, err := a.svc.Gateway.ContentHashes.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), rows)
		}),
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "Number of entries (defaults to tracker.recent_window)")
	return cmd
}

func settingsCmd(run runner) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Read and change production settings",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "get",
			Short: "Print the effective settings",
			Args:  cobra.NoArgs,
			RunE: run(false, func(cmd *cobra.Command, a *app, _ []string) error {
				s, err := a.svc.Settings.Get(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), s)
			}),
		},
		&cobra.Command{
			Use:   "set <key> <json-value>",
			Short: "Change one setting",
			Example: `  sona settings set maxRetries 5
  sona settings set articleLength '"long"'`,
			Args: cobra.ExactArgs(2),
			RunE: run(false, func(cmd *cobra.Command, a *app, args []string) error {
				var value any
				if err := json.Unmarshal([]byte(args[1]), &value); err != nil {
					return fmt.Errorf("value must be JSON: %w", err)
				}
				s, err := a.svc.Settings.UpdateSetting(cmd.Context(), args[0], value)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), s)
			}),
		},
		&cobra.Command{
			Use:   "export",
			Short: "Print the settings as JSON",
			Args:  cobra.NoArgs,
			RunE: run(false, func(cmd *cobra.Command, a *app, _ []string) error {
				text, err := a.svc.Settings.Export(cmd.Context())
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), text)
				return err
			}),
		},
		&cobra.Command{
			Use:   "import <file>",
			Short: "Replace the settings with a JSON document",
			Args:  cobra.ExactArgs(1),
			RunE: run(false, func(cmd *cobra.Command, a *app, args []string) error {
				data, err := os.ReadFile(args[0])
				if err != nil {
					return err
				}
				s, err := a.svc.Settings.Import(cmd.Context(), string(data))
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), s)
			}),
		},
		&cobra.Command{
			Use:   "reset",
			Short: "Restore default settings",
			Args:  cobra.NoArgs,
			RunE: run(false, func(cmd *cobra.Command, a *app, _ []string) error {
				s, err := a.svc.Settings.Reset(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), s)
			}),
		},
	)
	return cmd
}

func templatesCmd(run runner) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "templates",
		Short: "Manage versioned templates",
	}

	var opts services.SaveVersionOptions
	var templateType string
	save := &cobra.Command{
		Use:   "save <template-id> <file>",
		Short: "Save a file as the next version of a template",
		Args:  cobra.ExactArgs(2),
		RunE: run(false, func(cmd *cobra.Command, a *app, args []string) error {
			data, err := os.ReadFile(args[1])
			if err != nil {
				return err
			}
			v, err := a.svc.Versions.SaveVersion(cmd.Context(), args[0], templateType, string(data), opts)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), v)
		}),
	}
	save.Flags().StringVar(&templateType, "type", "paragraph", "Template type")
	save.Flags().StringVar(&opts.Category, "category", "", "Template category")
	save.Flags().StringVarP(&opts.ChangeDescription, "message", "m", "", "Change description")
	save.Flags().StringVar(&opts.CreatedBy, "author", "cli", "Author recorded on the version")

	versions := &cobra.Command{
		Use:   "versions [template-id]",
		Short: "List versions of a template, or all template ids",
		Args:  cobra.MaximumNArgs(1),
		RunE: run(false, func(cmd *cobra.Command, a *app, args []string) error {
			if len(args) == 0 {
				ids, err := a.svc.Versions.ListTemplateIDs(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), ids)
			}
			vs, err := a.svc.Versions.GetVersions(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), vs)
		}),
	}

	rollback := &cobra.Command{
		Use:   "rollback <template-id> <version>",
		Short: "Append a copy of an earlier version",
		Args:  cobra.ExactArgs(2),
		RunE: run(false, func(cmd *cobra.Command, a *app, args []string) error {
			n, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("version must be a number: %w", err)
			}
			v, err := a.svc.Versions.Rollback(cmd.Context(), args[0], n)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), v)
		}),
	}

	diff := &cobra.Command{
		Use:   "diff <template-id> <from> <to>",
		Short: "Compare two versions line by line",
		Args:  cobra.ExactArgs(3),
		RunE: run(false, func(cmd *cobra.Command, a *app, args []string) error {
			from, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("from must be a number: %w", err)
			}
			to, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("to must be a number: %w", err)
			}
			d, err := a.svc.Versions.Compare(cmd.Context(), args[0], from, to)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), d)
		}),
	}

	archive := &cobra.Command{
		Use:   "archive <template-id>",
		Short: "Hide every version of a template",
		Args:  cobra.ExactArgs(1),
		RunE: run(false, func(cmd *cobra.Command, a *app, args []string) error {
			n, err := a.svc.Versions.Archive(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "archived %d versions\n", n)
			return err
		}),
	}

	restore := &cobra.Command{
		Use:   "restore <template-id>",
		Short: "Unarchive every version of a template",
		Args:  cobra.ExactArgs(1),
		RunE: run(false, func(cmd *cobra.Command, a *app, args []string) error {
			n, err := a.svc.Versions.Restore(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "restored %d versions\n", n)
			return err
		}),
	}

	cmd.AddCommand(save, versions, rollback, diff, archive, restore)
	return cmd
}

func exportCmd(run runner) *cobra.Command {
	var out string
	var skip struct{ knowledge, templates, synonyms, phrases, settings bool }
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a portable export document",
		Args:  cobra.NoArgs,
		RunE: run(false, func(cmd *cobra.Command, a *app, _ []string) error {
			opts := services.ExportOptions{
				IncludeKnowledge: !skip.knowledge,
				IncludeTemplates: !skip.templates,
				IncludeSynonyms:  !skip.synonyms,
				IncludePhrases:   !skip.phrases,
				IncludeSettings:  !skip.settings,
			}
			data, err := a.svc.ExportImport.ExportJSON(cmd.Context(), opts)
			if err != nil {
				return err
			}
			if out == "" || out == "-" {
				_, err = cmd.OutOrStdout().Write(append(data, '\n'))
				return err
			}
			if err := os.WriteFile(out, data, 0644); err != nil {
				return fmt.Errorf("write export: %w", err)
			}
			a.log.Info("export written", "path", out, "bytes", len(data))
			return nil
		}),
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file (default stdout)")
	cmd.Flags().BoolVar(&skip.knowledge, "no-knowledge", false, "Leave out the knowledge base")
	cmd.Flags().BoolVar(&skip.templates, "no-templates", false, "Leave out templates")
	cmd.Flags().BoolVar(&skip.synonyms, "no-synonyms", false, "Leave out synonyms")
	cmd.Flags().BoolVar(&skip.phrases, "no-phrases", false, "Leave out phrases")
	cmd.Flags().BoolVar(&skip.settings, "no-settings", false, "Leave out settings")
	return cmd
}

func importCmd(run runner) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Merge an export document into the store",
		Args:  cobra.ExactArgs(1),
		RunE: run(false, func(cmd *cobra.Command, a *app, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			res := a.svc.ExportImport.ImportJSON(cmd.Context(), data)
			if err := printJSON(cmd.OutOrStdout(), res); err != nil {
				return err
			}
			if !res.Success {
				return errors.New("import finished with errors")
			}
			return nil
		}),
	}
}

func logsCmd(run runner) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Export persisted generation logs",
	}
	var days int
	var lang string
	csvCmd := &cobra.Command{
		Use:   "csv",
		Short: "Write generation logs as CSV",
		Args:  cobra.NoArgs,
		RunE: run(false, func(cmd *cobra.Command, a *app, _ []string) error {
			var since time.Time
			if days > 0 {
				since = time.Now().UTC().AddDate(0, 0, -days)
			}
			return a.svc.Analytics.ExportLogsCSV(cmd.Context(), cmd.OutOrStdout(), since, lang)
		}),
	}
	csvCmd.Flags().IntVar(&days, "days", 0, "Only logs from the last N days (0 for all)")
	csvCmd.Flags().StringVar(&lang, "lang", "en", "Header language (BCP 47 tag)")
	cmd.AddCommand(csvCmd)
	return cmd
}

func analyticsCmd(run runner) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "analytics",
		Short: "Summarize generation activity",
		Args:  cobra.NoArgs,
		RunE: run(false, func(cmd *cobra.Command, a *app, _ []string) error {
			sum, err := a.svc.Analytics.Summary(cmd.Context(), days)
			if err != nil {
				return err
			}
			dist, err := a.svc.Analytics.QualityDistribution(cmd.Context(), days)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), struct {
				*services.AnalyticsSummary
				Quality []services.QualityBucket `json:"quality"`
			}{sum, dist})
		}),
	}
	cmd.Flags().IntVar(&days, "days", 7, "Window size in days")
	return cmd
}

func sandboxCmd(run runner) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sandbox",
		Short: "Experiment with settings without touching production",
	}
	var req models.GenerationRequest
	var overrides []string
	try := &cobra.Command{
		Use:   "try <topic>",
		Short: "Generate one article in a throwaway session",
		Args:  cobra.ExactArgs(1),
		RunE: run(true, func(cmd *cobra.Command, a *app, args []string) error {
			ctx := cmd.Context()
			patch, err := parseOverrides(overrides)
			if err != nil {
				return err
			}
			session, err := a.svc.Sandbox.Create(ctx, patch)
			if err != nil {
				return err
			}
			defer a.svc.Sandbox.Destroy(ctx, session.ID)

			req.Topic = args[0]
			item, err := a.svc.Sandbox.Generate(ctx, session.ID, req)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), struct {
				Session string                 `json:"session"`
				Content *models.SandboxContent `json:"content"`
				Stats   *services.SessionStats `json:"stats"`
			}{session.ID, item, a.svc.Sandbox.Stats(session.ID)})
		}),
	}
	try.Flags().StringVar(&req.Category, "category", "", "Article category")
	try.Flags().StringSliceVar(&req.Keywords, "keyword", nil, "Keyword to include (repeatable)")
	try.Flags().StringVar(&req.Template, "template", "", "Template id to use")
	try.Flags().StringArrayVar(&overrides, "set", nil, "Session setting override as key=<json> (repeatable)")
	cmd.AddCommand(try)
	return cmd
}

func parseOverrides(pairs []string) (services.SettingsPatch, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	patch := services.SettingsPatch{}
	for _, p := range pairs {
		key, raw, ok := strings.Cut(p, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("override %q must be key=value", p)
		}
		var value any
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			// bare words are treated as strings
			value = raw
		}
		patch[key] = value
	}
	return patch, nil
}
