package services

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sergi/go-diff/diffmatchpatch"

	"sona/internal/logging"
	"sona/internal/metrics"
	"sona/internal/models"
	"sona/internal/repositories"
)

// MaxTemplateLength is the largest accepted template, in runes.
const MaxTemplateLength = 50000

var (
	placeholderPattern = regexp.MustCompile(`\{\{\s*([^{}]*?)\s*\}\}`)
	identifierPattern  = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.]*$`)
	slugPattern        = regexp.MustCompile(`[^a-z0-9]+`)
)

type SaveVersionOptions struct {
	Category          string
	ChangeDescription string
	CreatedBy         string
	// Variables overrides the placeholders extracted from the content.
	Variables []string
}

// LineChange is a line that changed in place between two versions. Line is
// 1-based in the newer version.
type LineChange struct {
	Line int    `json:"line"`
	Old  string `json:"old"`
	New  string `json:"new"`
}

type VersionDiff struct {
	TemplateID string       `json:"templateId"`
	From       int          `json:"from"`
	To         int          `json:"to"`
	Added      []string     `json:"added"`
	Removed    []string     `json:"removed"`
	Modified   []LineChange `json:"modified"`
	Summary    string       `json:"summary"`
}

// VersionManager keeps an append-only history per template id.
type VersionManager struct {
	repo    repositories.TemplateVersionRepository
	metrics *metrics.Metrics
	log     *logging.Logger
	dmp     *diffmatchpatch.DiffMatchPatch

	mu sync.Mutex
}

func NewVersionManager(repo repositories.TemplateVersionRepository, m *metrics.Metrics, log *logging.Logger) *VersionManager {
	if m == nil {
		m = metrics.New()
	}
	if log == nil {
		log = logging.NewNop()
	}
	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = 0
	return &VersionManager{
		repo:    repo,
		metrics: m,
		log:     log.With("service", "VersionManager"),
		dmp:     dmp,
	}
}

func (m *VersionManager) SaveVersion(ctx context.Context, templateID, templateType, content string, opts SaveVersionOptions) (*models.TemplateVersion, error) {
	if strings.TrimSpace(templateID) == "" {
		return nil, &ValidationError{Errors: []string{"template id is required"}}
	}
	if res := ValidateContent(content); !res.Valid {
		return nil, &ValidationError{Errors: res.Errors}
	}
	vars := opts.Variables
	if vars == nil {
		vars = ExtractVariables(content)
	}
	tv := &models.TemplateVersion{
		TemplateID:        templateID,
		Type:              templateType,
		Category:          opts.Category,
		Content:           content,
		Variables:         append([]string{}, vars...),
		ChangeDescription: opts.ChangeDescription,
		CreatedBy:         opts.CreatedBy,
	}

	m.mu.Lock()
	err := m.repo.CreateNext(ctx, tv)
	m.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("service: save version: %w", err)
	}
	m.metrics.TemplateVersions.WithLabelValues("save").Inc()
	m.log.Info("template version saved", "template", templateID, "version", tv.Version)
	return tv, nil
}

// GetVersions returns active versions, newest first.
func (m *VersionManager) GetVersions(ctx context.Context, templateID string) ([]models.TemplateVersion, error) {
	list, err := m.repo.List(ctx, templateID, false)
	if err != nil {
		return nil, fmt.Errorf("service: get versions: %w", err)
	}
	return list, nil
}

// GetVersion returns nil when the version does not exist.
func (m *VersionManager) GetVersion(ctx context.Context, templateID string, version int) (*models.TemplateVersion, error) {
	tv, err := m.repo.Get(ctx, templateID, version)
	if err != nil {
		return nil, fmt.Errorf("service: get version: %w", err)
	}
	return tv, nil
}

// GetLatestVersion returns the highest active version, or nil.
func (m *VersionManager) GetLatestVersion(ctx context.Context, templateID string) (*models.TemplateVersion, error) {
	tv, err := m.repo.Latest(ctx, templateID)
	if err != nil {
		return nil, fmt.Errorf("service: get latest version: %w", err)
	}
	return tv, nil
}

func (m *VersionManager) ListTemplateIDs(ctx context.Context) ([]string, error) {
	ids, err := m.repo.TemplateIDs(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("service: list template ids: %w", err)
	}
	return ids, nil
}

// Rollback appends a new version whose content is a verbatim copy of version.
func (m *VersionManager) Rollback(ctx context.Context, templateID string, version int) (*models.TemplateVersion, error) {
	src, err := m.GetVersion(ctx, templateID, version)
	if err != nil {
		return nil, err
	}
	if src == nil {
		return nil, fmt.Errorf("service: rollback %s to %d: %w", templateID, version, ErrVersionNotFound)
	}
	tv := &models.TemplateVersion{
		TemplateID:        templateID,
		Type:              src.Type,
		Category:          src.Category,
		Content:           src.Content,
		Variables:         append([]string{}, src.Variables...),
		ChangeDescription: fmt.Sprintf("Rollback to version %d", version),
		CreatedBy:         src.CreatedBy,
	}
	m.mu.Lock()
	err = m.repo.CreateNext(ctx, tv)
	m.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("service: rollback: %w", err)
	}
	m.metrics.TemplateVersions.WithLabelValues("rollback").Inc()
	m.log.Info("template rolled back", "template", templateID, "from", version, "version", tv.Version)
	return tv, nil
}

// Compare diffs two versions line by line. A run of deleted lines directly
// followed by inserted lines is reported as modifications, pairwise.
func (m *VersionManager) Compare(ctx context.Context, templateID string, v1, v2 int) (*VersionDiff, error) {
	a, err := m.GetVersion(ctx, templateID, v1)
	if err != nil {
		return nil, err
	}
	b, err := m.GetVersion(ctx, templateID, v2)
	if err != nil {
		return nil, err
	}
	if a == nil || b == nil {
		return nil, fmt.Errorf("service: compare %s %d..%d: %w", templateID, v1, v2, ErrVersionNotFound)
	}
	d := m.diffLines(a.Content, b.Content)
	d.TemplateID, d.From, d.To = templateID, v1, v2
	return d, nil
}

func (m *VersionManager) diffLines(oldText, newText string) *VersionDiff {
	ca, cb, lines := m.dmp.DiffLinesToChars(withTrailingNewline(oldText), withTrailingNewline(newText))
	diffs := m.dmp.DiffCharsToLines(m.dmp.DiffMain(ca, cb, false), lines)

	out := &VersionDiff{Added: []string{}, Removed: []string{}, Modified: []LineChange{}}
	var removed, added []string
	line := 1 // next line number in the new text

	for i := 0; i < len(diffs); i++ {
		switch diffs[i].Type {
		case diffmatchpatch.DiffEqual:
			line += len(splitLines(diffs[i].Text))
			continue
		case diffmatchpatch.DiffInsert:
			ins := splitLines(diffs[i].Text)
			added = append(added, ins...)
			line += len(ins)
			continue
		}

		del := splitLines(diffs[i].Text)
		var ins []string
		if i+1 < len(diffs) && diffs[i+1].Type == diffmatchpatch.DiffInsert {
			ins = splitLines(diffs[i+1].Text)
			i++
		}
		paired := min(len(del), len(ins))
		for j := 0; j < paired; j++ {
			out.Modified = append(out.Modified, LineChange{Line: line + j, Old: del[j], New: ins[j]})
		}
		removed = append(removed, del[paired:]...)
		added = append(added, ins[paired:]...)
		line += len(ins)
	}

	out.Added = dedupe(added)
	out.Removed = dedupe(removed)
	out.Summary = diffSummary(len(out.Added), len(out.Removed), len(out.Modified))
	return out
}

func withTrailingNewline(s string) string {
	if s == "" || strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}

func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(text, "\n"), "\n")
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func diffSummary(added, removed, modified int) string {
	if added == 0 && removed == 0 && modified == 0 {
		return "No changes"
	}
	var parts []string
	if added > 0 {
		parts = append(parts, fmt.Sprintf("%d added", added))
	}
	if removed > 0 {
		parts = append(parts, fmt.Sprintf("%d removed", removed))
	}
	if modified > 0 {
		parts = append(parts, fmt.Sprintf("%d modified", modified))
	}
	return strings.Join(parts, ", ")
}

// Archive hides every version of templateID. It returns the number of rows
// touched; 0 means the template is unknown.
func (m *VersionManager) Archive(ctx context.Context, templateID string) (int64, error) {
	n, err := m.repo.SetArchived(ctx, templateID, true)
	if err != nil {
		return 0, fmt.Errorf("service: archive: %w", err)
	}
	if n > 0 {
		m.metrics.TemplateVersions.WithLabelValues("archive").Inc()
	}
	return n, nil
}

func (m *VersionManager) Restore(ctx context.Context, templateID string) (int64, error) {
	n, err := m.repo.SetArchived(ctx, templateID, false)
	if err != nil {
		return 0, fmt.Errorf("service: restore: %w", err)
	}
	if n > 0 {
		m.metrics.TemplateVersions.WithLabelValues("restore").Inc()
	}
	return n, nil
}

// ValidateContent checks emptiness, length and placeholder syntax.
func ValidateContent(text string) ValidationResult {
	var errs []string
	if strings.TrimSpace(text) == "" {
		return newValidationResult([]string{"content must not be empty"})
	}
	if n := utf8.RuneCountInString(text); n > MaxTemplateLength {
		errs = append(errs, fmt.Sprintf("content is %d characters, maximum is %d", n, MaxTemplateLength))
	}
	errs = append(errs, placeholderErrors(text)...)
	return newValidationResult(errs)
}

func placeholderErrors(text string) []string {
	var errs []string
	depth := 0
	for i := 0; i < len(text)-1; i++ {
		switch text[i : i+2] {
		case "{{":
			if depth > 0 {
				errs = append(errs, fmt.Sprintf("nested placeholder at offset %d", i))
			}
			depth++
			i++
		case "}}":
			if depth == 0 {
				errs = append(errs, fmt.Sprintf("unmatched '}}' at offset %d", i))
			} else {
				depth--
			}
			i++
		}
	}
	if depth > 0 {
		errs = append(errs, "unclosed placeholder '{{'")
	}
	for _, match := range placeholderPattern.FindAllStringSubmatch(text, -1) {
		name := match[1]
		if name == "" {
			errs = append(errs, "empty placeholder name")
			continue
		}
		if !identifierPattern.MatchString(name) {
			errs = append(errs, fmt.Sprintf("invalid placeholder name %q", name))
		}
	}
	return errs
}

// ExtractVariables lists distinct valid placeholder names in order of first use.
func ExtractVariables(text string) []string {
	var names []string
	for _, match := range placeholderPattern.FindAllStringSubmatch(text, -1) {
		if identifierPattern.MatchString(match[1]) {
			names = append(names, match[1])
		}
	}
	return dedupe(names)
}

// GenerateTemplateID builds "{type}_{category}[_{index}]_{suffix}". index < 0
// omits the index part.
func GenerateTemplateID(templateType, category string, index int) string {
	kind := slug(templateType)
	if kind == "" {
		kind = "template"
	}
	parts := []string{kind}
	if c := slug(category); c != "" {
		parts = append(parts, c)
	}
	if index >= 0 {
		parts = append(parts, strconv.Itoa(index))
	}
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	parts = append(parts, suffix)
	return strings.Join(parts, "_")
}

func slug(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII {
			return '-'
		}
		return r
	}, s)
	s = slugPattern.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}
