package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"sona/internal/events"
	"sona/internal/jsonvalue"
	"sona/internal/logging"
	"sona/internal/metrics"
	"sona/internal/models"
	"sona/internal/repositories"
)

// SettingsPatch is a partial settings update keyed by JSON field name. Values
// are JSON-shaped: numbers may be any Go numeric type.
type SettingsPatch map[string]any

// FieldChange is the old and new value of one setting.
type FieldChange struct {
	Old any `json:"old"`
	New any `json:"new"`
}

var (
	articleLengths  = []string{"short", "medium", "long"}
	diversityLevels = []string{"low", "medium", "high"}

	// settingFields lists every settings key in declaration order.
	settingFields = []string{
		"articleLength", "wordCountTargets", "keywordDensity",
		"minKeywordOccurrences", "maxKeywordOccurrences", "minQualityScore",
		"maxRetries", "diversityLevel", "templateRotation",
		"excludedTemplates", "preferredTemplates",
		"enableUniquenessCheck", "enableQualityCheck", "enableSynonymReplacement",
		"enablePhraseVariation", "enableAnalytics",
	}

	featureFields = map[string]string{
		"uniquenessCheck":    "enableUniquenessCheck",
		"qualityCheck":       "enableQualityCheck",
		"synonymReplacement": "enableSynonymReplacement",
		"phraseVariation":    "enablePhraseVariation",
		"analytics":          "enableAnalytics",
	}
)

// DefaultSettings returns the built-in settings.
func DefaultSettings() models.SONASettings {
	return models.SONASettings{
		ArticleLength: "medium",
		WordCountTargets: models.WordCountTargets{
			Short:  models.WordRange{Min: 300, Max: 600},
			Medium: models.WordRange{Min: 800, Max: 1200},
			Long:   models.WordRange{Min: 1500, Max: 2500},
		},
		KeywordDensity:           2,
		MinKeywordOccurrences:    2,
		MaxKeywordOccurrences:    8,
		MinQualityScore:          70,
		MaxRetries:               3,
		DiversityLevel:           "medium",
		TemplateRotation:         true,
		ExcludedTemplates:        []string{},
		PreferredTemplates:       []string{},
		EnableUniquenessCheck:    true,
		EnableQualityCheck:       true,
		EnableSynonymReplacement: true,
		EnablePhraseVariation:    true,
		EnableAnalytics:          true,
	}
}

// SettingsManager owns the production settings. Reads are served from a
// cache loaded on first use; every mutation writes through the repository
// before the cache changes.
type SettingsManager struct {
	repo      repositories.SettingRepository
	listeners *events.Dispatcher
	metrics   *metrics.Metrics
	log       *logging.Logger

	mu      sync.RWMutex
	current *models.SONASettings
}

func NewSettingsManager(repo repositories.SettingRepository, m *metrics.Metrics, log *logging.Logger) *SettingsManager {
	if m == nil {
		m = metrics.New()
	}
	if log == nil {
		log = logging.NewNop()
	}
	return &SettingsManager{
		repo:      repo,
		listeners: events.NewDispatcher(),
		metrics:   m,
		log:       log.With("service", "SettingsManager"),
	}
}

func (m *SettingsManager) Defaults() models.SONASettings { return DefaultSettings() }

func (m *SettingsManager) Get(ctx context.Context) (models.SONASettings, error) {
	m.mu.RLock()
	if m.current != nil {
		out := m.current.Clone()
		m.mu.RUnlock()
		return out, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	cur, err := m.loadLocked(ctx)
	if err != nil {
		return models.SONASettings{}, err
	}
	return cur.Clone(), nil
}

// loadLocked fills the cache from storage. Callers hold m.mu for writing.
func (m *SettingsManager) loadLocked(ctx context.Context) (models.SONASettings, error) {
	if m.current != nil {
		return *m.current, nil
	}
	rows, err := m.repo.List(ctx)
	if err != nil {
		return models.SONASettings{}, fmt.Errorf("service: load settings: %w", err)
	}
	patch := SettingsPatch{}
	for _, row := range rows {
		if !isSettingField(row.Key) {
			m.log.Warn("ignoring unknown stored setting", "key", row.Key)
			continue
		}
		var v any
		if err := json.Unmarshal([]byte(row.Value), &v); err != nil {
			m.log.Warn("ignoring unreadable stored setting", "key", row.Key, "error", err)
			continue
		}
		if errs := ValidateField(row.Key, v); len(errs) > 0 {
			m.log.Warn("ignoring invalid stored setting", "key", row.Key, "errors", errs)
			continue
		}
		patch[row.Key] = v
	}
	cur, err := applyPatch(DefaultSettings(), patch)
	if err != nil {
		return models.SONASettings{}, fmt.Errorf("service: load settings: %w", err)
	}
	m.current = &cur
	return cur, nil
}

// ValidateSettings checks each present field, then the keyword occurrence
// bounds using the current value for whichever side is absent.
func (m *SettingsManager) ValidateSettings(partial SettingsPatch) ValidationResult {
	m.mu.RLock()
	base := DefaultSettings()
	if m.current != nil {
		base = m.current.Clone()
	}
	m.mu.RUnlock()
	return validatePatch(partial, base)
}

func validatePatch(partial SettingsPatch, base models.SONASettings) ValidationResult {
	var errs []string
	for _, key := range sortedKeys(partial) {
		errs = append(errs, ValidateField(key, partial[key])...)
	}

	// the cross-field rule runs whenever both bounds are individually valid,
	// so its error joins any per-field errors
	lo, hi := float64(base.MinKeywordOccurrences), float64(base.MaxKeywordOccurrences)
	boundsValid := true
	if v, ok := partial["minKeywordOccurrences"]; ok {
		lo = patchNumber(v)
		boundsValid = len(ValidateField("minKeywordOccurrences", v)) == 0
	}
	if v, ok := partial["maxKeywordOccurrences"]; ok {
		hi = patchNumber(v)
		boundsValid = boundsValid && len(ValidateField("maxKeywordOccurrences", v)) == 0
	}
	if boundsValid && lo > hi {
		errs = append(errs, fmt.Sprintf("minKeywordOccurrences (%v) must not exceed maxKeywordOccurrences (%v)", lo, hi))
	}
	return newValidationResult(errs)
}

// ValidateField checks one value against the rule for name.
func ValidateField(name string, value any) []string {
	v, err := toGeneric(value)
	if err != nil {
		return []string{fmt.Sprintf("%s: unsupported value: %v", name, err)}
	}
	switch name {
	case "articleLength":
		return oneOf(name, v, articleLengths)
	case "diversityLevel":
		return oneOf(name, v, diversityLevels)
	case "wordCountTargets":
		return validateWordTargets(v)
	case "keywordDensity":
		return numberIn(name, v, 1, 5, false)
	case "minQualityScore":
		return numberIn(name, v, 0, 100, false)
	case "maxRetries":
		return numberIn(name, v, 1, 10, true)
	case "minKeywordOccurrences", "maxKeywordOccurrences":
		return numberIn(name, v, 0, math.Inf(1), true)
	case "excludedTemplates", "preferredTemplates":
		arr, ok := v.([]any)
		if !ok {
			return []string{fmt.Sprintf("%s must be an array of strings", name)}
		}
		for i, e := range arr {
			if _, ok := e.(string); !ok {
				return []string{fmt.Sprintf("%s[%d] must be a string", name, i)}
			}
		}
		return nil
	case "templateRotation", "enableUniquenessCheck", "enableQualityCheck",
		"enableSynonymReplacement", "enablePhraseVariation", "enableAnalytics":
		if _, ok := v.(bool); !ok {
			return []string{fmt.Sprintf("%s must be a boolean", name)}
		}
		return nil
	default:
		return []string{fmt.Sprintf("unknown setting: %s", name)}
	}
}

func oneOf(name string, v any, allowed []string) []string {
	s, ok := v.(string)
	if ok {
		for _, a := range allowed {
			if s == a {
				return nil
			}
		}
	}
	return []string{fmt.Sprintf("%s must be one of %s", name, strings.Join(allowed, ", "))}
}

func numberIn(name string, v any, lo, hi float64, integer bool) []string {
	f, ok := toFloat(v)
	if !ok {
		return []string{fmt.Sprintf("%s must be a number", name)}
	}
	if integer && f != math.Trunc(f) {
		return []string{fmt.Sprintf("%s must be an integer", name)}
	}
	if f < lo || f > hi {
		if math.IsInf(hi, 1) {
			return []string{fmt.Sprintf("%s must be at least %v", name, lo)}
		}
		return []string{fmt.Sprintf("%s must be between %v and %v", name, lo, hi)}
	}
	return nil
}

func validateWordTargets(v any) []string {
	obj, ok := v.(map[string]any)
	if !ok {
		return []string{"wordCountTargets must be an object"}
	}
	var errs []string
	for key := range obj {
		if key != "short" && key != "medium" && key != "long" {
			errs = append(errs, fmt.Sprintf("wordCountTargets.%s is not a known length", key))
		}
	}
	for _, length := range articleLengths {
		raw, ok := obj[length]
		if !ok {
			errs = append(errs, fmt.Sprintf("wordCountTargets.%s is required", length))
			continue
		}
		r, ok := raw.(map[string]any)
		if !ok {
			errs = append(errs, fmt.Sprintf("wordCountTargets.%s must be an object with min and max", length))
			continue
		}
		lo, okLo := toFloat(r["min"])
		hi, okHi := toFloat(r["max"])
		switch {
		case !okLo || !okHi || lo != math.Trunc(lo) || hi != math.Trunc(hi):
			errs = append(errs, fmt.Sprintf("wordCountTargets.%s min and max must be integers", length))
		case lo <= 0:
			errs = append(errs, fmt.Sprintf("wordCountTargets.%s.min must be positive", length))
		case lo > hi:
			errs = append(errs, fmt.Sprintf("wordCountTargets.%s.min must not exceed max", length))
		}
	}
	sort.Strings(errs)
	return errs
}

// UpdateSetting changes a single field.
func (m *SettingsManager) UpdateSetting(ctx context.Context, name string, value any) (models.SONASettings, error) {
	return m.UpdateSettings(ctx, SettingsPatch{name: value})
}

// UpdateSettings validates partial as a whole and persists only its keys.
// Nothing is written when any field is invalid.
func (m *SettingsManager) UpdateSettings(ctx context.Context, partial SettingsPatch) (models.SONASettings, error) {
	m.mu.Lock()
	old, err := m.loadLocked(ctx)
	if err != nil {
		m.mu.Unlock()
		return models.SONASettings{}, err
	}
	if res := validatePatch(partial, old); !res.Valid {
		m.mu.Unlock()
		return models.SONASettings{}, &ValidationError{Errors: res.Errors}
	}
	if len(partial) == 0 {
		m.mu.Unlock()
		return old.Clone(), nil
	}
	updated, err := applyPatch(old, partial)
	if err != nil {
		m.mu.Unlock()
		return models.SONASettings{}, fmt.Errorf("service: update settings: %w", err)
	}
	rows, err := settingRows(updated, sortedKeys(partial))
	if err == nil {
		err = m.repo.Upsert(ctx, rows)
	}
	if err != nil {
		m.mu.Unlock()
		return models.SONASettings{}, fmt.Errorf("service: update settings: %w", err)
	}
	m.current = &updated
	m.mu.Unlock()

	m.notify("update", old, updated)
	return updated.Clone(), nil
}

// Export renders the current settings as indented JSON.
func (m *SettingsManager) Export(ctx context.Context) (string, error) {
	cur, err := m.Get(ctx)
	if err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(cur, "", "  ")
	if err != nil {
		return "", fmt.Errorf("service: export settings: %w", err)
	}
	return string(data), nil
}

// Import replaces the settings wholesale; fields missing from text revert
// to their defaults.
func (m *SettingsManager) Import(ctx context.Context, text string) (models.SONASettings, error) {
	var patch SettingsPatch
	if err := json.Unmarshal([]byte(text), &patch); err != nil || patch == nil {
		if err == nil {
			err = errors.New("settings must be a JSON object")
		}
		return models.SONASettings{}, fmt.Errorf("%w: %v", ErrSettingsParse, err)
	}
	return m.replace(ctx, "import", patch)
}

// Reset restores the defaults.
func (m *SettingsManager) Reset(ctx context.Context) (models.SONASettings, error) {
	return m.replace(ctx, "reset", SettingsPatch{})
}

func (m *SettingsManager) replace(ctx context.Context, source string, patch SettingsPatch) (models.SONASettings, error) {
	defaults := DefaultSettings()
	if res := validatePatch(patch, defaults); !res.Valid {
		return models.SONASettings{}, &ValidationError{Errors: res.Errors}
	}
	updated, err := applyPatch(defaults, patch)
	if err != nil {
		return models.SONASettings{}, fmt.Errorf("service: %s settings: %w", source, err)
	}
	rows, err := settingRows(updated, sortedKeys(patch))
	if err != nil {
		return models.SONASettings{}, fmt.Errorf("service: %s settings: %w", source, err)
	}

	m.mu.Lock()
	old, err := m.loadLocked(ctx)
	if err == nil {
		err = m.repo.Replace(ctx, rows)
	}
	if err != nil {
		m.mu.Unlock()
		return models.SONASettings{}, fmt.Errorf("service: %s settings: %w", source, err)
	}
	m.current = &updated
	m.mu.Unlock()

	m.notify(source, old, updated)
	return updated.Clone(), nil
}

func (m *SettingsManager) notify(source string, old, updated models.SONASettings) {
	changed := changedFields(old, updated)
	m.metrics.SettingsUpdates.Inc()
	m.log.Info("settings changed", "source", source, "fields", changed)
	m.listeners.Emit(events.NewSettingsChanged(source, old, updated, changed))
}

// OnChange registers l for every successful mutation. The returned func
// unsubscribes and is safe to call more than once.
func (m *SettingsManager) OnChange(l events.Listener) func() {
	return m.listeners.Subscribe(l)
}

// Diff reports the fields in partial whose value differs from the current one.
// Unknown fields are ignored.
func (m *SettingsManager) Diff(ctx context.Context, partial SettingsPatch) (map[string]FieldChange, error) {
	cur, err := m.Get(ctx)
	if err != nil {
		return nil, err
	}
	curMap, err := settingsMap(cur)
	if err != nil {
		return nil, fmt.Errorf("service: diff settings: %w", err)
	}
	out := map[string]FieldChange{}
	for key, raw := range partial {
		if !isSettingField(key) {
			continue
		}
		next, err := toGeneric(raw)
		if err != nil {
			continue
		}
		if !sameJSON(curMap[key], next) {
			out[key] = FieldChange{Old: curMap[key], New: next}
		}
	}
	return out, nil
}

// IsFeatureEnabled reads a toggle by its feature name, e.g. "qualityCheck".
func (m *SettingsManager) IsFeatureEnabled(ctx context.Context, feature string) (bool, error) {
	field, ok := featureFields[feature]
	if !ok {
		return false, fmt.Errorf("service: unknown feature %q", feature)
	}
	cur, err := m.Get(ctx)
	if err != nil {
		return false, err
	}
	switch field {
	case "enableUniquenessCheck":
		return cur.EnableUniquenessCheck, nil
	case "enableQualityCheck":
		return cur.EnableQualityCheck, nil
	case "enableSynonymReplacement":
		return cur.EnableSynonymReplacement, nil
	case "enablePhraseVariation":
		return cur.EnablePhraseVariation, nil
	default:
		return cur.EnableAnalytics, nil
	}
}

// invalidate drops the cache so the next read reloads from storage.
func (m *SettingsManager) invalidate() {
	m.mu.Lock()
	m.current = nil
	m.mu.Unlock()
}

func applyPatch(base models.SONASettings, patch SettingsPatch) (models.SONASettings, error) {
	if len(patch) == 0 {
		return base.Clone(), nil
	}
	fields, err := settingsMap(base)
	if err != nil {
		return models.SONASettings{}, err
	}
	for k, v := range patch {
		g, err := toGeneric(v)
		if err != nil {
			return models.SONASettings{}, err
		}
		fields[k] = g
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return models.SONASettings{}, err
	}
	var out models.SONASettings
	if err := json.Unmarshal(data, &out); err != nil {
		return models.SONASettings{}, err
	}
	return out.Clone(), nil
}

func settingRows(s models.SONASettings, keys []string) ([]models.SettingRow, error) {
	fields, err := settingsMap(s)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	rows := make([]models.SettingRow, 0, len(keys))
	for _, k := range keys {
		data, err := json.Marshal(fields[k])
		if err != nil {
			return nil, err
		}
		rows = append(rows, models.SettingRow{Key: k, Value: string(data), UpdatedAt: now})
	}
	return rows, nil
}

func changedFields(old, updated models.SONASettings) []string {
	a, errA := settingsMap(old)
	b, errB := settingsMap(updated)
	if errA != nil || errB != nil {
		return nil
	}
	var changed []string
	for _, key := range settingFields {
		if !sameJSON(a[key], b[key]) {
			changed = append(changed, key)
		}
	}
	return changed
}

func settingsMap(s models.SONASettings) (map[string]any, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// toGeneric converts v into the shape encoding/json decodes into any.
func toGeneric(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func patchNumber(v any) float64 {
	g, err := toGeneric(v)
	if err != nil {
		return 0
	}
	f, _ := toFloat(g)
	return f
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func sameJSON(a, b any) bool {
	va, errA := jsonvalue.FromGo(a)
	vb, errB := jsonvalue.FromGo(b)
	if errA != nil || errB != nil {
		return false
	}
	return jsonvalue.Equal(va, vb)
}

func isSettingField(name string) bool {
	for _, f := range settingFields {
		if f == name {
			return true
		}
	}
	return false
}

func sortedKeys(p SettingsPatch) []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
