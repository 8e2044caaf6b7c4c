package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"sona/internal/jsonvalue"
	"sona/internal/logging"
	"sona/internal/metrics"
	"sona/internal/models"
	"sona/internal/repositories"
)

// Export section names, in the order they appear in metadata.contents.
const (
	SectionKnowledge = "knowledge"
	SectionTemplates = "templates"
	SectionSynonyms  = "synonyms"
	SectionPhrases   = "phrases"
	SectionSettings  = "settings"
)

type ExportOptions struct {
	IncludeKnowledge bool
	IncludeTemplates bool
	IncludeSynonyms  bool
	IncludePhrases   bool
	IncludeSettings  bool
}

// AllSections selects every export section.
func AllSections() ExportOptions {
	return ExportOptions{true, true, true, true, true}
}

type ValidationReport struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

type ImportCounts struct {
	Knowledge int `json:"knowledge"`
	Templates int `json:"templates"`
	Synonyms  int `json:"synonyms"`
	Phrases   int `json:"phrases"`
	Settings  int `json:"settings"`
}

// ImportResult reports what an import applied. Success is false when the
// payload was rejected or any section failed; sections that did apply stay
// applied.
type ImportResult struct {
	Success  bool         `json:"success"`
	Imported ImportCounts `json:"imported"`
	Errors   []string     `json:"errors"`
	Warnings []string     `json:"warnings"`
}

// ExportImportManager moves the whole configuration and knowledge snapshot in
// and out as one JSON document.
type ExportImportManager struct {
	knowledge repositories.KnowledgeRepository
	versions  *VersionManager
	settings  *SettingsManager
	metrics   *metrics.Metrics
	log       *logging.Logger
	now       func() time.Time
}

func NewExportImportManager(knowledge repositories.KnowledgeRepository, versions *VersionManager, settings *SettingsManager, m *metrics.Metrics, log *logging.Logger) *ExportImportManager {
	if m == nil {
		m = metrics.New()
	}
	if log == nil {
		log = logging.NewNop()
	}
	return &ExportImportManager{
		knowledge: knowledge,
		versions:  versions,
		settings:  settings,
		metrics:   m,
		log:       log.With("service", "ExportImportManager"),
		now:       time.Now,
	}
}

// Export gathers the selected sections concurrently. Metadata is always set.
func (e *ExportImportManager) Export(ctx context.Context, opts ExportOptions) (*models.ExportData, error) {
	out := &models.ExportData{
		Metadata: models.ExportMetadata{
			Version:    models.ExportSchemaVersion,
			ExportedAt: e.now().UTC(),
			Contents:   []string{},
		},
	}

	g, gctx := errgroup.WithContext(ctx)
	if opts.IncludeKnowledge {
		g.Go(func() error {
			raw, err := e.section(gctx, repositories.SectionKnowledge)
			out.Knowledge = raw
			return err
		})
	}
	if opts.IncludeTemplates {
		g.Go(func() error {
			templates, err := e.exportTemplates(gctx)
			out.Templates = templates
			return err
		})
	}
	if opts.IncludeSynonyms {
		g.Go(func() error {
			synonyms, err := e.synonyms(gctx)
			out.Synonyms = synonyms
			return err
		})
	}
	if opts.IncludePhrases {
		g.Go(func() error {
			raw, err := e.section(gctx, repositories.SectionPhrases)
			out.Phrases = raw
			return err
		})
	}
	if opts.IncludeSettings {
		g.Go(func() error {
			s, err := e.settings.Get(gctx)
			if err != nil {
				return err
			}
			out.Settings = &s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("service: export: %w", err)
	}

	for _, sec := range []struct {
		name string
		on   bool
	}{
		{SectionKnowledge, opts.IncludeKnowledge},
		{SectionTemplates, opts.IncludeTemplates},
		{SectionSynonyms, opts.IncludeSynonyms},
		{SectionPhrases, opts.IncludePhrases},
		{SectionSettings, opts.IncludeSettings},
	} {
		if sec.on {
			out.Metadata.Contents = append(out.Metadata.Contents, sec.name)
		}
	}
	return out, nil
}

// ExportJSON renders Export as indented JSON.
func (e *ExportImportManager) ExportJSON(ctx context.Context, opts ExportOptions) ([]byte, error) {
	data, err := e.Export(ctx, opts)
	if err != nil {
		return nil, err
	}
	buf, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("service: export: %w", err)
	}
	return buf, nil
}

// EstimateSize is the byte length of the export that opts would produce.
func (e *ExportImportManager) EstimateSize(ctx context.Context, opts ExportOptions) (int, error) {
	buf, err := e.ExportJSON(ctx, opts)
	if err != nil {
		return 0, err
	}
	return len(buf), nil
}

// section returns a stored free-form section, or {} when nothing is stored.
func (e *ExportImportManager) section(ctx context.Context, name string) (json.RawMessage, error) {
	row, err := e.knowledge.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	if row == nil || row.Data == "" {
		return json.RawMessage("{}"), nil
	}
	return json.RawMessage(row.Data), nil
}

func (e *ExportImportManager) synonyms(ctx context.Context) (map[string][]string, error) {
	raw, err := e.section(ctx, repositories.SectionSynonyms)
	if err != nil {
		return nil, err
	}
	out := map[string][]string{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decoding stored synonyms: %w", err)
	}
	return out, nil
}

func (e *ExportImportManager) exportTemplates(ctx context.Context) (map[string]models.ExportedTemplate, error) {
	ids, err := e.versions.ListTemplateIDs(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]models.ExportedTemplate, len(ids))
	for _, id := range ids {
		tv, err := e.versions.GetLatestVersion(ctx, id)
		if err != nil {
			return nil, err
		}
		if tv == nil {
			continue
		}
		out[id] = models.ExportedTemplate{
			Type:      tv.Type,
			Category:  tv.Category,
			Content:   tv.Content,
			Variables: append([]string{}, tv.Variables...),
			Version:   tv.Version,
		}
	}
	return out, nil
}

// Validate checks the shape of an export document.
func (e *ExportImportManager) Validate(v jsonvalue.Value) ValidationReport {
	var errs, warns []string
	if !v.IsObject() {
		errs = append(errs, fmt.Sprintf("export data must be an object, got %s", v.Kind()))
		return report(errs, warns)
	}

	meta, ok := v.Get("metadata")
	switch {
	case !ok || meta.IsNull():
		errs = append(errs, "missing metadata")
	case !meta.IsObject():
		errs = append(errs, "metadata must be an object")
	default:
		if ver, ok := meta.Get("version"); !ok || ver.IsNull() {
			warns = append(warns, "metadata.version is missing")
		} else if s, _ := ver.Raw().(string); s != "" && s != models.ExportSchemaVersion {
			warns = append(warns, fmt.Sprintf("metadata.version %q differs from %q", s, models.ExportSchemaVersion))
		}
	}

	if syn, ok := v.Get(SectionSynonyms); ok && !syn.IsNull() {
		if !syn.IsObject() {
			errs = append(errs, "synonyms must be an object")
		} else {
			for _, key := range syn.Keys() {
				val, _ := syn.Get(key)
				if !val.IsArray() {
					errs = append(errs, fmt.Sprintf("synonyms.%s must be an array", key))
				}
			}
		}
	}
	if s, ok := v.Get(SectionSettings); ok && !s.IsNull() && !s.IsObject() {
		errs = append(errs, "settings must be an object")
	}
	if t, ok := v.Get(SectionTemplates); ok && !t.IsNull() {
		if !t.IsObject() {
			errs = append(errs, "templates must be an object")
		} else {
			for _, id := range t.Keys() {
				tmpl, _ := t.Get(id)
				content, _ := tmpl.Get("content")
				if _, isString := content.Raw().(string); !tmpl.IsObject() || !isString {
					errs = append(errs, fmt.Sprintf("templates.%s must be an object with string content", id))
				}
			}
		}
	}
	return report(errs, warns)
}

func report(errs, warns []string) ValidationReport {
	if errs == nil {
		errs = []string{}
	}
	if warns == nil {
		warns = []string{}
	}
	return ValidationReport{Valid: len(errs) == 0, Errors: errs, Warnings: warns}
}

// ImportJSON parses, validates and merges an export document.
func (e *ExportImportManager) ImportJSON(ctx context.Context, data []byte) ImportResult {
	v, err := jsonvalue.Parse(data)
	if err != nil {
		return ImportResult{
			Errors:   []string{fmt.Sprintf("invalid JSON: %v", err)},
			Warnings: []string{},
		}
	}
	return e.importValue(ctx, v)
}

// Import merges an already decoded export.
func (e *ExportImportManager) Import(ctx context.Context, data *models.ExportData) ImportResult {
	if data == nil {
		return ImportResult{Errors: []string{"export data must be an object, got null"}, Warnings: []string{}}
	}
	v, err := jsonvalue.FromGo(data)
	if err != nil {
		return ImportResult{Errors: []string{fmt.Sprintf("encoding export data: %v", err)}, Warnings: []string{}}
	}
	return e.importValue(ctx, v)
}

func (e *ExportImportManager) importValue(ctx context.Context, v jsonvalue.Value) ImportResult {
	rep := e.Validate(v)
	res := ImportResult{Errors: rep.Errors, Warnings: rep.Warnings}
	if !rep.Valid {
		return res
	}
	fail := func(section string, err error) {
		res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", section, err))
	}

	if sec, ok := v.Get(SectionKnowledge); ok && !sec.IsNull() {
		if n, err := e.mergeSection(ctx, repositories.SectionKnowledge, sec); err != nil {
			fail(SectionKnowledge, err)
		} else {
			res.Imported.Knowledge = n
		}
	}
	if sec, ok := v.Get(SectionPhrases); ok && !sec.IsNull() {
		if n, err := e.mergeSection(ctx, repositories.SectionPhrases, sec); err != nil {
			fail(SectionPhrases, err)
		} else {
			res.Imported.Phrases = n
		}
	}
	if sec, ok := v.Get(SectionSynonyms); ok && !sec.IsNull() {
		if n, err := e.importSynonyms(ctx, sec); err != nil {
			fail(SectionSynonyms, err)
		} else {
			res.Imported.Synonyms = n
		}
	}
	if sec, ok := v.Get(SectionTemplates); ok && !sec.IsNull() {
		n, errs := e.importTemplates(ctx, sec)
		res.Imported.Templates = n
		res.Errors = append(res.Errors, errs...)
	}
	if sec, ok := v.Get(SectionSettings); ok && !sec.IsNull() {
		var patch SettingsPatch
		err := sec.Decode(&patch)
		if err == nil {
			_, err = e.settings.UpdateSettings(ctx, patch)
		}
		var verr *ValidationError
		switch {
		case errors.As(err, &verr):
			for _, msg := range verr.Errors {
				res.Errors = append(res.Errors, "settings: "+msg)
			}
		case err != nil:
			fail(SectionSettings, err)
		default:
			res.Imported.Settings = len(patch)
		}
	}

	res.Success = len(res.Errors) == 0
	for section, n := range map[string]int{
		SectionKnowledge: res.Imported.Knowledge,
		SectionPhrases:   res.Imported.Phrases,
		SectionSynonyms:  res.Imported.Synonyms,
		SectionTemplates: res.Imported.Templates,
		SectionSettings:  res.Imported.Settings,
	} {
		if n > 0 {
			e.metrics.ImportedItems.WithLabelValues(section).Add(float64(n))
		}
	}
	e.log.Info("import finished", "success", res.Success, "imported", res.Imported, "errors", len(res.Errors))
	return res
}

// mergeSection deep-merges incoming into the stored section and returns the
// number of top-level entries imported.
func (e *ExportImportManager) mergeSection(ctx context.Context, name string, incoming jsonvalue.Value) (int, error) {
	raw, err := e.section(ctx, name)
	if err != nil {
		return 0, err
	}
	stored, err := jsonvalue.Parse(raw)
	if err != nil {
		return 0, fmt.Errorf("decoding stored %s: %w", name, err)
	}
	merged := DeepMerge(stored, incoming)
	data, err := merged.MarshalJSON()
	if err != nil {
		return 0, err
	}
	if err := e.knowledge.Save(ctx, name, string(data)); err != nil {
		return 0, err
	}
	if incoming.IsObject() || incoming.IsArray() {
		return incoming.Len(), nil
	}
	return 1, nil
}

func (e *ExportImportManager) importSynonyms(ctx context.Context, incoming jsonvalue.Value) (int, error) {
	var add map[string][]string
	if err := incoming.Decode(&add); err != nil {
		return 0, fmt.Errorf("synonym values must be arrays of strings: %w", err)
	}
	existing, err := e.synonyms(ctx)
	if err != nil {
		return 0, err
	}
	data, err := json.Marshal(MergeSynonyms(existing, add))
	if err != nil {
		return 0, err
	}
	if err := e.knowledge.Save(ctx, repositories.SectionSynonyms, string(data)); err != nil {
		return 0, err
	}
	return len(add), nil
}

// importTemplates saves a new version for every template whose content
// differs from its latest active version.
func (e *ExportImportManager) importTemplates(ctx context.Context, incoming jsonvalue.Value) (int, []string) {
	var templates map[string]models.ExportedTemplate
	if err := incoming.Decode(&templates); err != nil {
		return 0, []string{fmt.Sprintf("templates: %v", err)}
	}
	ids := make([]string, 0, len(templates))
	for id := range templates {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var errs []string
	saved := 0
	for _, id := range ids {
		t := templates[id]
		latest, err := e.versions.GetLatestVersion(ctx, id)
		if err != nil {
			errs = append(errs, fmt.Sprintf("templates.%s: %v", id, err))
			continue
		}
		if latest != nil && latest.Content == t.Content {
			continue
		}
		kind := t.Type
		if kind == "" && latest != nil {
			kind = latest.Type
		}
		if kind == "" {
			kind = "template"
		}
		_, err = e.versions.SaveVersion(ctx, id, kind, t.Content, SaveVersionOptions{
			Category:          t.Category,
			ChangeDescription: "Imported",
			CreatedBy:         "import",
			Variables:         t.Variables,
		})
		if err != nil {
			errs = append(errs, fmt.Sprintf("templates.%s: %v", id, err))
			continue
		}
		saved++
	}
	return saved, errs
}

// DeepMerge merges source into target: objects key by key, arrays as an
// order-preserving set union, anything else replaced by source.
func DeepMerge(target, source jsonvalue.Value) jsonvalue.Value {
	return jsonvalue.Merge(target, source)
}

// MergeSynonyms unions the word lists per key, keeping first-seen order.
func MergeSynonyms(existing, incoming map[string][]string) map[string][]string {
	out := make(map[string][]string, len(existing)+len(incoming))
	for k, words := range existing {
		out[k] = dedupe(words)
	}
	for k, words := range incoming {
		out[k] = dedupe(append(append([]string{}, out[k]...), words...))
	}
	return out
}
