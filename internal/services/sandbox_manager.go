package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"sona/internal/logging"
	"sona/internal/metrics"
	"sona/internal/models"
	"sona/internal/repositories"
)

const (
	sandboxIDPrefix = "sbx_"
	// qualityMargin is the score gap at which one side is recommended.
	qualityMargin = 5.0

	RecommendUseSandbox     = "use_sandbox"
	RecommendKeepProduction = "keep_production"
	RecommendEquivalent     = "equivalent"
)

// ContentGenerator produces one article for a request under the given settings.
type ContentGenerator interface {
	Generate(ctx context.Context, req models.GenerationRequest, settings models.SONASettings) (*models.GeneratedContent, error)
}

// FieldDifference is one compared field. Delta is sandbox minus production
// for numeric fields.
type FieldDifference struct {
	Field      string  `json:"field"`
	Sandbox    any     `json:"sandbox"`
	Production any     `json:"production"`
	Delta      float64 `json:"delta,omitempty"`
}

type Comparison struct {
	SessionID      string            `json:"sessionId"`
	ContentID      string            `json:"contentId"`
	Differences    []FieldDifference `json:"differences"`
	Recommendation string            `json:"recommendation"`
	Message        string            `json:"message"`
}

type PromotionResult struct {
	Success  bool                 `json:"success"`
	Settings *models.SONASettings `json:"settings,omitempty"`
	Errors   []string             `json:"errors,omitempty"`
}

type SessionStats struct {
	ContentCount    int     `json:"contentCount"`
	AvgQualityScore float64 `json:"avgQualityScore"`
	TotalWordCount  int     `json:"totalWordCount"`
}

// sandboxSlot holds one live session. gen serializes Generate calls on the
// session; mu guards session and closed, and is held across every write of
// the session's row so a Destroy never races a Save.
type sandboxSlot struct {
	gen     sync.Mutex
	mu      sync.Mutex
	session models.SandboxSession
	closed  bool
}

// SandboxManager keeps trial sessions in an arena of slots. Session state is
// reachable only through its id.
type SandboxManager struct {
	settings  *SettingsManager
	generator ContentGenerator
	repo      repositories.SandboxRepository
	metrics   *metrics.Metrics
	log       *logging.Logger
	now       func() time.Time

	mu    sync.Mutex
	slots []*sandboxSlot
	free  []int
	index map[string]int
}

func NewSandboxManager(settings *SettingsManager, generator ContentGenerator, repo repositories.SandboxRepository, m *metrics.Metrics, log *logging.Logger) *SandboxManager {
	if m == nil {
		m = metrics.New()
	}
	if log == nil {
		log = logging.NewNop()
	}
	return &SandboxManager{
		settings:  settings,
		generator: generator,
		repo:      repo,
		metrics:   m,
		log:       log.With("service", "SandboxManager"),
		now:       time.Now,
		index:     map[string]int{},
	}
}

// Create opens a session whose settings are the defaults overlaid with override.
func (m *SandboxManager) Create(ctx context.Context, override SettingsPatch) (*models.SandboxSession, error) {
	defaults := m.settings.Defaults()
	if res := validatePatch(override, defaults); !res.Valid {
		return nil, &ValidationError{Errors: res.Errors}
	}
	settings, err := applyPatch(defaults, override)
	if err != nil {
		return nil, fmt.Errorf("service: create sandbox: %w", err)
	}
	session := models.SandboxSession{
		ID:        sandboxIDPrefix + uuid.NewString(),
		Active:    true,
		Settings:  settings,
		Content:   []models.SandboxContent{},
		CreatedAt: m.now(),
	}
	if err := m.repo.Save(ctx, sandboxRow(session)); err != nil {
		return nil, fmt.Errorf("service: create sandbox: %w", err)
	}

	m.mu.Lock()
	slot := &sandboxSlot{session: session}
	if n := len(m.free); n > 0 {
		i := m.free[n-1]
		m.free = m.free[:n-1]
		m.slots[i] = slot
		m.index[session.ID] = i
	} else {
		m.slots = append(m.slots, slot)
		m.index[session.ID] = len(m.slots) - 1
	}
	count := len(m.index)
	m.mu.Unlock()

	m.metrics.SandboxSessions.Set(float64(count))
	m.log.Info("sandbox created", "id", session.ID)
	return copySession(session), nil
}

func (m *SandboxManager) lookup(id string) *sandboxSlot {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.index[id]
	if !ok {
		return nil
	}
	return m.slots[i]
}

// Get returns a copy of the session, or nil.
func (m *SandboxManager) Get(id string) *models.SandboxSession {
	slot := m.lookup(id)
	if slot == nil {
		return nil
	}
	slot.mu.Lock()
	defer slot.mu.Unlock()
	if slot.closed {
		return nil
	}
	return copySession(slot.session)
}

// Destroy closes the session and frees its slot. It reports whether the
// session existed.
func (m *SandboxManager) Destroy(ctx context.Context, id string) bool {
	m.mu.Lock()
	i, ok := m.index[id]
	if !ok {
		m.mu.Unlock()
		return false
	}
	slot := m.slots[i]
	delete(m.index, id)
	m.slots[i] = nil
	m.free = append(m.free, i)
	count := len(m.index)
	m.mu.Unlock()

	slot.mu.Lock()
	slot.closed = true
	slot.session.Active = false
	slot.session.Content = nil
	if err := m.repo.Delete(ctx, id); err != nil {
		m.log.Warn("deleting sandbox row failed", "id", id, "error", err)
	}
	slot.mu.Unlock()

	m.metrics.SandboxSessions.Set(float64(count))
	m.log.Info("sandbox destroyed", "id", id)
	return true
}

func (m *SandboxManager) IsValid(id string) bool {
	slot := m.lookup(id)
	if slot == nil {
		return false
	}
	slot.mu.Lock()
	defer slot.mu.Unlock()
	return !slot.closed && slot.session.Active
}

// ListActive returns the ids of open sessions, oldest first.
func (m *SandboxManager) ListActive() []string {
	m.mu.Lock()
	slots := make([]*sandboxSlot, 0, len(m.index))
	for _, i := range m.index {
		slots = append(slots, m.slots[i])
	}
	m.mu.Unlock()

	type entry struct {
		id      string
		created time.Time
	}
	var list []entry
	for _, slot := range slots {
		slot.mu.Lock()
		if !slot.closed && slot.session.Active {
			list = append(list, entry{slot.session.ID, slot.session.CreatedAt})
		}
		slot.mu.Unlock()
	}
	sort.Slice(list, func(i, j int) bool {
		if !list[i].created.Equal(list[j].created) {
			return list[i].created.Before(list[j].created)
		}
		return list[i].id < list[j].id
	})
	ids := make([]string, len(list))
	for i, e := range list {
		ids[i] = e.id
	}
	return ids
}

func (m *SandboxManager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.index)
}

// Generate runs the generator with the session's settings and appends the
// result to that session only. Unknown or inactive sessions yield nil, nil.
func (m *SandboxManager) Generate(ctx context.Context, id string, req models.GenerationRequest) (*models.SandboxContent, error) {
	slot := m.lookup(id)
	if slot == nil {
		return nil, nil
	}
	slot.gen.Lock()
	defer slot.gen.Unlock()

	slot.mu.Lock()
	if slot.closed || !slot.session.Active {
		slot.mu.Unlock()
		return nil, nil
	}
	settings := slot.session.Settings.Clone()
	slot.mu.Unlock()

	if m.generator == nil {
		return nil, errors.New("service: sandbox generate: no content generator configured")
	}
	start := m.now()
	generated, err := m.generator.Generate(ctx, req, settings)
	if err != nil {
		return nil, fmt.Errorf("service: sandbox generate: %w", err)
	}
	if generated == nil {
		return nil, errors.New("service: sandbox generate: generator returned no content")
	}

	item := models.SandboxContent{
		ID:                uuid.NewString(),
		GenerationRequest: req,
		GeneratedContent:  *generated,
		CreatedAt:         m.now(),
	}
	item.Keywords = append([]string{}, req.Keywords...)
	item.Templates = append([]string{}, generated.Templates...)

	slot.mu.Lock()
	if slot.closed {
		slot.mu.Unlock()
		return nil, nil
	}
	slot.session.Content = append(slot.session.Content, item)
	if err := m.repo.Save(ctx, sandboxRow(slot.session)); err != nil {
		m.log.Warn("updating sandbox row failed", "id", id, "error", err)
	}
	slot.mu.Unlock()

	m.metrics.SandboxGenerations.Inc()
	m.log.Debug("sandbox content generated", "id", id, "content", item.ID, "elapsed", m.now().Sub(start))
	out := copyContent(item)
	return &out, nil
}

// GetContent returns a copy of the session's content, or nil for unknown ids.
func (m *SandboxManager) GetContent(id string) []models.SandboxContent {
	slot := m.lookup(id)
	if slot == nil {
		return nil
	}
	slot.mu.Lock()
	defer slot.mu.Unlock()
	if slot.closed {
		return nil
	}
	out := make([]models.SandboxContent, len(slot.session.Content))
	for i, c := range slot.session.Content {
		out[i] = copyContent(c)
	}
	return out
}

func (m *SandboxManager) ClearContent(id string) bool {
	slot := m.lookup(id)
	if slot == nil {
		return false
	}
	slot.mu.Lock()
	defer slot.mu.Unlock()
	if slot.closed {
		return false
	}
	slot.session.Content = []models.SandboxContent{}
	return true
}

// CompareWithProduction sets one sandbox item against production output.
// It returns nil when the session or content id is unknown.
func (m *SandboxManager) CompareWithProduction(sessionID, contentID string, production models.GeneratedContent) *Comparison {
	var item *models.SandboxContent
	for _, c := range m.GetContent(sessionID) {
		if c.ID == contentID {
			c := c
			item = &c
			break
		}
	}
	if item == nil {
		return nil
	}

	cmp := &Comparison{SessionID: sessionID, ContentID: contentID}
	numeric := func(field string, sandbox, prod float64) {
		if sandbox != prod {
			cmp.Differences = append(cmp.Differences, FieldDifference{Field: field, Sandbox: sandbox, Production: prod, Delta: sandbox - prod})
		}
	}
	numeric("wordCount", float64(item.WordCount), float64(production.WordCount))
	numeric("qualityScore", item.QualityScore, production.QualityScore)
	if item.Title != production.Title {
		cmp.Differences = append(cmp.Differences, FieldDifference{Field: "title", Sandbox: item.Title, Production: production.Title})
	}
	numeric("length", float64(utf8.RuneCountInString(item.Content)), float64(utf8.RuneCountInString(production.Content)))
	numeric("keywordCount", float64(item.KeywordCount), float64(production.KeywordCount))
	if cmp.Differences == nil {
		cmp.Differences = []FieldDifference{}
	}

	delta := item.QualityScore - production.QualityScore
	switch {
	case delta >= qualityMargin:
		cmp.Recommendation = RecommendUseSandbox
		cmp.Message = fmt.Sprintf("Sandbox content scores %.1f points higher; consider promoting these settings.", delta)
	case delta <= -qualityMargin:
		cmp.Recommendation = RecommendKeepProduction
		cmp.Message = fmt.Sprintf("Production content scores %.1f points higher; keep the current settings.", -delta)
	default:
		cmp.Recommendation = RecommendEquivalent
		cmp.Message = "Quality is comparable; no change recommended."
	}
	return cmp
}

// UpdateSettings patches the session's settings. It returns false for
// unknown sessions and invalid patches.
func (m *SandboxManager) UpdateSettings(ctx context.Context, id string, partial SettingsPatch) (bool, error) {
	slot := m.lookup(id)
	if slot == nil {
		return false, nil
	}
	slot.mu.Lock()
	if slot.closed {
		slot.mu.Unlock()
		return false, nil
	}
	if res := validatePatch(partial, slot.session.Settings); !res.Valid {
		slot.mu.Unlock()
		return false, nil
	}
	updated, err := applyPatch(slot.session.Settings, partial)
	if err != nil {
		slot.mu.Unlock()
		return false, fmt.Errorf("service: sandbox settings: %w", err)
	}
	slot.session.Settings = updated
	err = m.repo.Save(ctx, sandboxRow(slot.session))
	slot.mu.Unlock()
	if err != nil {
		return true, fmt.Errorf("service: sandbox settings: %w", err)
	}
	return true, nil
}

// PromoteToProduction applies the session's settings to production and
// closes the session.
func (m *SandboxManager) PromoteToProduction(ctx context.Context, id string) PromotionResult {
	session := m.Get(id)
	if session == nil {
		return PromotionResult{Errors: []string{"Session not found"}}
	}
	patch, err := settingsMap(session.Settings)
	if err != nil {
		return PromotionResult{Errors: []string{err.Error()}}
	}
	applied, err := m.settings.UpdateSettings(ctx, patch)
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			return PromotionResult{Errors: verr.Errors}
		}
		return PromotionResult{Errors: []string{err.Error()}}
	}
	m.Destroy(ctx, id)
	m.log.Info("sandbox promoted", "id", id)
	return PromotionResult{Success: true, Settings: &applied}
}

// Stats returns nil for unknown sessions and zeros for empty ones.
func (m *SandboxManager) Stats(id string) *SessionStats {
	slot := m.lookup(id)
	if slot == nil {
		return nil
	}
	slot.mu.Lock()
	defer slot.mu.Unlock()
	if slot.closed {
		return nil
	}
	st := &SessionStats{ContentCount: len(slot.session.Content)}
	var quality float64
	for _, c := range slot.session.Content {
		quality += c.QualityScore
		st.TotalWordCount += c.WordCount
	}
	if st.ContentCount > 0 {
		st.AvgQualityScore = quality / float64(st.ContentCount)
	}
	return st
}

// ClearAll closes every session and removes their rows.
func (m *SandboxManager) ClearAll(ctx context.Context) error {
	m.mu.Lock()
	slots := m.slots
	m.slots = nil
	m.free = nil
	m.index = map[string]int{}
	m.mu.Unlock()

	for _, slot := range slots {
		if slot == nil {
			continue
		}
		slot.mu.Lock()
		slot.closed = true
		slot.session.Content = nil
		slot.mu.Unlock()
	}
	m.metrics.SandboxSessions.Set(0)
	if err := m.repo.DeleteAll(ctx); err != nil {
		return fmt.Errorf("service: clear sandboxes: %w", err)
	}
	return nil
}

func sandboxRow(s models.SandboxSession) *models.SandboxRow {
	return &models.SandboxRow{
		ID:           s.ID,
		Active:       s.Active,
		Settings:     datatypes.NewJSONType(s.Settings.Clone()),
		ContentCount: len(s.Content),
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    time.Now(),
	}
}

func copySession(s models.SandboxSession) *models.SandboxSession {
	out := s
	out.Settings = s.Settings.Clone()
	out.Content = make([]models.SandboxContent, len(s.Content))
	for i, c := range s.Content {
		out.Content[i] = copyContent(c)
	}
	return &out
}

func copyContent(c models.SandboxContent) models.SandboxContent {
	out := c
	out.Keywords = append([]string(nil), c.Keywords...)
	out.Templates = append([]string(nil), c.Templates...)
	return out
}
