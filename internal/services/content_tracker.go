package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"

	"sona/internal/cache"
	"sona/internal/logging"
	"sona/internal/metrics"
	"sona/internal/models"
	"sona/internal/repositories"
	"sona/internal/textutil"
)

const (
	// DefaultHashCacheSize bounds the in-memory set of known fingerprints.
	DefaultHashCacheSize = 1000
	// DefaultSimilarityThreshold is the similarity at which content stops
	// counting as unique enough.
	DefaultSimilarityThreshold = 0.5

	statsWindowDays = 30
	topTemplates    = 10
	dateLayout      = "2006-01-02"
)

// DuplicateCheck reports whether content is already known. IsDuplicate is
// decided by hash equality only; MaxSimilarity is advisory.
type DuplicateCheck struct {
	IsDuplicate   bool    `json:"isDuplicate"`
	Hash          string  `json:"hash"`
	Source        string  `json:"source,omitempty"`
	MaxSimilarity float64 `json:"maxSimilarity"`
	SimilarTo     string  `json:"similarTo,omitempty"`
}

// RecordResult is the outcome of Record.
type RecordResult struct {
	Tracked     bool   `json:"tracked"`
	Hash        string `json:"hash"`
	IsDuplicate bool   `json:"isDuplicate"`
}

// TemplateUsage counts how often a template was used.
type TemplateUsage struct {
	Template string `json:"template"`
	Count    int    `json:"count"`
}

// TrackerStats combines all-time totals with the trailing 30-day window.
type TrackerStats struct {
	UniqueContents    int64           `json:"uniqueContents"`
	TotalGenerated    int64           `json:"totalGenerated"`
	SuccessCount      int64           `json:"successCount"`
	FailCount         int64           `json:"failCount"`
	AvgQualityScore   float64         `json:"avgQualityScore"`
	TodayCount        int             `json:"todayCount"`
	AvgQuality30d     float64         `json:"avgQuality30d"`
	CategoryBreakdown map[string]int  `json:"categoryBreakdown"`
	TopTemplates      []TemplateUsage `json:"topTemplates"`
	CachedHashes      int             `json:"cachedHashes"`
}

type trackedContent struct {
	hash   string
	topic  string
	tokens textutil.TokenSet
}

// TrackerOptions configures a ContentTracker. Zero values pick defaults.
type TrackerOptions struct {
	CacheSize int
	Logger    *GenerationLogger
	Metrics   *metrics.Metrics
	Log       *logging.Logger
	Now       func() time.Time
}

// ContentTracker fingerprints generated articles and keeps generation telemetry.
type ContentTracker struct {
	hashes  repositories.ContentHashRepository
	logs    repositories.GenerationLogRepository
	stats   repositories.GenerationStatRepository
	cache   *cache.FIFO[string, trackedContent]
	genLog  *GenerationLogger
	metrics *metrics.Metrics
	log     *logging.Logger
	now     func() time.Time
}

func NewContentTracker(
	hashes repositories.ContentHashRepository,
	logs repositories.GenerationLogRepository,
	stats repositories.GenerationStatRepository,
	opts TrackerOptions,
) *ContentTracker {
	if opts.CacheSize <= 0 {
		opts.CacheSize = DefaultHashCacheSize
	}
	if opts.Log == nil {
		opts.Log = logging.NewNop()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &ContentTracker{
		hashes:  hashes,
		logs:    logs,
		stats:   stats,
		cache:   cache.NewFIFO[string, trackedContent](opts.CacheSize),
		genLog:  opts.Logger,
		metrics: opts.Metrics,
		log:     opts.Log.With("service", "ContentTracker"),
		now:     opts.Now,
	}
}

// Hash returns the fingerprint of content.
func (t *ContentTracker) Hash(content string) string {
	return textutil.Hash(content)
}

// Similarity is the Jaccard similarity of the normalized token sets, in [0,1].
// Two empty texts score 1.
func (t *ContentTracker) Similarity(a, b string) float64 {
	return textutil.Similarity(a, b)
}

// known reports whether hash was seen, consulting the cache before the store.
func (t *ContentTracker) known(ctx context.Context, hash string) (bool, string, error) {
	if t.cache.Contains(hash) {
		return true, "cache", nil
	}
	exists, err := t.hashes.Exists(ctx, hash)
	if err != nil {
		return false, "", err
	}
	if exists {
		t.cache.Put(hash, trackedContent{hash: hash})
		return true, "store", nil
	}
	return false, "", nil
}

// CheckDuplicate looks content up by fingerprint. Content with nothing left
// after normalization has no fingerprint and is never a duplicate.
func (t *ContentTracker) CheckDuplicate(ctx context.Context, content string) (DuplicateCheck, error) {
	hash, ok := textutil.Fingerprint(content)
	if !ok {
		return DuplicateCheck{}, nil
	}
	dup, source, err := t.known(ctx, hash)
	if err != nil {
		return DuplicateCheck{}, fmt.Errorf("service: check duplicate: %w", err)
	}
	check := DuplicateCheck{IsDuplicate: dup, Hash: hash, Source: source}
	if dup {
		check.MaxSimilarity = 1
		return check, nil
	}
	check.MaxSimilarity, check.SimilarTo = t.closest(textutil.Tokens(content))
	return check, nil
}

// closest scans cached content that still has its tokens.
func (t *ContentTracker) closest(tokens textutil.TokenSet) (float64, string) {
	best, bestHash := 0.0, ""
	for _, c := range t.cache.Values() {
		if c.tokens == nil {
			continue
		}
		if s := textutil.Jaccard(tokens, c.tokens); s > best {
			best, bestHash = s, c.hash
		}
	}
	return best, bestHash
}

// Record persists the fingerprint of content unless it is already known.
// Content without a fingerprint is neither tracked nor a duplicate.
func (t *ContentTracker) Record(ctx context.Context, content string, meta models.ContentMetadata) (RecordResult, error) {
	hash, ok := textutil.Fingerprint(content)
	if !ok {
		t.log.Debug("content has no fingerprint, not recorded", "topic", meta.Topic)
		return RecordResult{}, nil
	}
	dup, _, err := t.known(ctx, hash)
	if err != nil {
		return RecordResult{}, fmt.Errorf("service: record content: %w", err)
	}
	if dup {
		t.metrics.DuplicatesDetected.Inc()
		return RecordResult{Tracked: false, Hash: hash, IsDuplicate: true}, nil
	}

	words := meta.WordCount
	if words == 0 {
		words = textutil.WordCount(content)
	}
	row := &models.ContentHash{
		Hash:         hash,
		Topic:        meta.Topic,
		Category:     meta.Category,
		WordCount:    words,
		QualityScore: meta.QualityScore,
		Templates:    append([]string{}, meta.Templates...),
		CreatedAt:    t.now().UTC(),
	}
	if err := t.hashes.Save(ctx, row); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			// lost a race with a concurrent Record of the same content
			t.cache.Put(hash, trackedContent{hash: hash})
			t.metrics.DuplicatesDetected.Inc()
			return RecordResult{Tracked: false, Hash: hash, IsDuplicate: true}, nil
		}
		return RecordResult{}, fmt.Errorf("service: record content: %w", err)
	}

	t.cache.Put(hash, trackedContent{hash: hash, topic: meta.Topic, tokens: textutil.Tokens(content)})
	t.metrics.ContentRecorded.Inc()
	t.log.Debug("content recorded", "hash", hash[:12], "topic", meta.Topic, "words", words)
	return RecordResult{Tracked: true, Hash: hash, IsDuplicate: false}, nil
}

// RecordGenerationEvent appends a log row and folds the attempt into today's
// stat row. retries is recorded as given; nothing is re-executed here.
func (t *ContentTracker) RecordGenerationEvent(ctx context.Context, meta models.ContentMetadata, duration time.Duration, success bool, retries int, errMsg string) error {
	now := t.now().UTC()
	row := &models.GenerationLog{
		Topic:        meta.Topic,
		Category:     meta.Category,
		DurationMs:   duration.Milliseconds(),
		QualityScore: meta.QualityScore,
		WordCount:    meta.WordCount,
		Success:      success,
		Retries:      retries,
		Error:        errMsg,
		Templates:    append([]string{}, meta.Templates...),
		CreatedAt:    now,
	}
	if err := t.logs.Create(ctx, row); err != nil {
		return fmt.Errorf("service: record generation event: %w", err)
	}

	_, err := t.stats.Apply(ctx, now.Format(dateLayout), func(stat *models.GenerationStat) {
		foldEvent(stat, row)
	})
	if err != nil {
		return fmt.Errorf("service: record generation event: %w", err)
	}

	if t.genLog != nil {
		t.genLog.Record(logEntryFromRow(*row))
	}
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	t.metrics.GenerationEvents.WithLabelValues(outcome).Inc()
	t.metrics.GenerationDuration.Observe(duration.Seconds())
	if !success {
		t.log.Warn("generation failed", "topic", meta.Topic, "retries", retries, "error", errMsg)
	}
	return nil
}

// foldEvent applies one attempt to a daily rollup. Duration is averaged over
// all attempts; quality and word count over successful ones.
func foldEvent(stat *models.GenerationStat, row *models.GenerationLog) {
	stat.TotalGenerated++
	stat.TotalRetries += row.Retries
	n := float64(stat.TotalGenerated)
	stat.AvgDurationMs += (float64(row.DurationMs) - stat.AvgDurationMs) / n

	if row.Success {
		stat.SuccessCount++
		s := float64(stat.SuccessCount)
		stat.AvgQualityScore += (row.QualityScore - stat.AvgQualityScore) / s
		stat.AvgWordCount += (float64(row.WordCount) - stat.AvgWordCount) / s
	} else {
		stat.FailCount++
	}

	categories := copyCounts(stat.CategoryBreakdown.Data())
	if row.Category != "" {
		categories[row.Category]++
	}
	stat.CategoryBreakdown = datatypes.NewJSONType(categories)

	templates := copyCounts(stat.TemplateUsage.Data())
	for _, name := range row.Templates {
		if name != "" {
			templates[name]++
		}
	}
	stat.TemplateUsage = datatypes.NewJSONType(templates)
}

func (t *ContentTracker) Stats(ctx context.Context) (TrackerStats, error) {
	now := t.now().UTC()
	today := now.Format(dateLayout)
	from := now.AddDate(0, 0, -(statsWindowDays - 1)).Format(dateLayout)

	var (
		unique int64
		totals *models.GenerationTotals
		window []models.GenerationStat
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		unique, err = t.hashes.Count(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		totals, err = t.logs.Totals(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		window, err = t.stats.ListSince(gctx, from)
		return err
	})
	if err := g.Wait(); err != nil {
		return TrackerStats{}, fmt.Errorf("service: tracker stats: %w", err)
	}

	out := TrackerStats{
		UniqueContents:    unique,
		TotalGenerated:    totals.TotalGenerated,
		SuccessCount:      totals.SuccessCount,
		FailCount:         totals.FailCount,
		AvgQualityScore:   totals.AvgQualityScore,
		CategoryBreakdown: map[string]int{},
		CachedHashes:      t.cache.Len(),
	}

	var qualitySum float64
	var successes int
	templates := map[string]int{}
	for _, day := range window {
		if day.Date == today {
			out.TodayCount = day.TotalGenerated
		}
		qualitySum += day.AvgQualityScore * float64(day.SuccessCount)
		successes += day.SuccessCount
		for k, v := range day.CategoryBreakdown.Data() {
			out.CategoryBreakdown[k] += v
		}
		for k, v := range day.TemplateUsage.Data() {
			templates[k] += v
		}
	}
	if successes > 0 {
		out.AvgQuality30d = qualitySum / float64(successes)
	}
	out.TopTemplates = rankCounts(templates, topTemplates)
	return out, nil
}

// IsUniqueEnough is the gate used by the generation pipeline: duplicates fail,
// and so does content whose similarity to recently recorded content reaches
// threshold. threshold <= 0 uses DefaultSimilarityThreshold. Content without
// a fingerprint is never unique enough.
func (t *ContentTracker) IsUniqueEnough(ctx context.Context, content string, threshold float64) (bool, error) {
	if threshold <= 0 {
		threshold = DefaultSimilarityThreshold
	}
	if _, ok := textutil.Fingerprint(content); !ok {
		return false, nil
	}
	check, err := t.CheckDuplicate(ctx, content)
	if err != nil {
		return false, err
	}
	if check.IsDuplicate {
		return false, nil
	}
	return check.MaxSimilarity < threshold, nil
}

// ClearCache forgets cached fingerprints; persisted hashes are untouched.
func (t *ContentTracker) ClearCache() {
	t.cache.Clear()
}

func (t *ContentTracker) CacheLen() int { return t.cache.Len() }

func copyCounts(in map[string]int) map[string]int {
	out := make(map[string]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// rankCounts sorts by count descending then name, keeping at most limit.
func rankCounts(counts map[string]int, limit int) []TemplateUsage {
	out := make([]TemplateUsage, 0, len(counts))
	for k, v := range counts {
		out = append(out, TemplateUsage{Template: k, Count: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Template < out[j].Template
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
