package unit_tests

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"sona/internal/models"
	"sona/internal/repositories"
	"sona/internal/services"
	"sona/internal/tests/mocks"
)

var fixedNow = time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)

func newTracker(hashes *mocks.ContentHashRepositoryMock, logs *mocks.GenerationLogRepositoryMock, stats *mocks.GenerationStatRepositoryMock, cacheSize int) *services.ContentTracker {
	return services.NewContentTracker(hashes, logs, stats, services.TrackerOptions{
		CacheSize: cacheSize,
		Logger:    services.NewGenerationLogger(10),
		Now:       func() time.Time { return fixedNow },
	})
}

func TestContentTracker_Record_SecondCallHitsCache(t *testing.T) {
	saves := 0
	hashes := &mocks.ContentHashRepositoryMock{
		SaveFunc: func(ctx context.Context, h *models.ContentHash) error {
			saves++
			assert.Equal(t, "topic", h.Topic)
			assert.Equal(t, 3, h.WordCount)
			return nil
		},
	}
	lookups := 0
	hashes.ExistsFunc = func(ctx context.Context, hash string) (bool, error) {
		lookups++
		return false, nil
	}
	tracker := newTracker(hashes, &mocks.GenerationLogRepositoryMock{}, &mocks.GenerationStatRepositoryMock{}, 10)
	ctx := context.Background()

	res, err := tracker.Record(ctx, "one two three", models.ContentMetadata{Topic: "topic"})
	require.NoError(t, err)
	assert.True(t, res.Tracked)
	assert.False(t, res.IsDuplicate)

	res, err = tracker.Record(ctx, "ONE   two three", models.ContentMetadata{Topic: "topic"})
	require.NoError(t, err)
	assert.False(t, res.Tracked)
	assert.True(t, res.IsDuplicate)
	assert.Equal(t, 1, saves)
	assert.Equal(t, 1, lookups, "cached hashes must not reach the store")
}

func TestContentTracker_CheckDuplicate_FallsBackToStore(t *testing.T) {
	hashes := &mocks.ContentHashRepositoryMock{
		ExistsFunc: func(ctx context.Context, hash string) (bool, error) { return true, nil },
	}
	tracker := newTracker(hashes, &mocks.GenerationLogRepositoryMock{}, &mocks.GenerationStatRepositoryMock{}, 10)

	check, err := tracker.CheckDuplicate(context.Background(), "persisted earlier")
	require.NoError(t, err)
	assert.True(t, check.IsDuplicate)
	assert.Equal(t, "store", check.Source)
	assert.Equal(t, 1, tracker.CacheLen())
}

func TestContentTracker_Record_StoreErrorPropagates(t *testing.T) {
	boom := errors.New("disk full")
	hashes := &mocks.ContentHashRepositoryMock{
		SaveFunc: func(ctx context.Context, h *models.ContentHash) error { return boom },
	}
	tracker := newTracker(hashes, &mocks.GenerationLogRepositoryMock{}, &mocks.GenerationStatRepositoryMock{}, 10)

	_, err := tracker.Record(context.Background(), "text", models.ContentMetadata{})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, tracker.CacheLen())
}

func TestContentTracker_Record_ConcurrentInsertIsDuplicate(t *testing.T) {
	hashes := &mocks.ContentHashRepositoryMock{
		SaveFunc: func(ctx context.Context, h *models.ContentHash) error { return repositories.ErrDuplicate },
	}
	tracker := newTracker(hashes, &mocks.GenerationLogRepositoryMock{}, &mocks.GenerationStatRepositoryMock{}, 10)

	res, err := tracker.Record(context.Background(), "raced", models.ContentMetadata{})
	require.NoError(t, err)
	assert.True(t, res.IsDuplicate)
	assert.False(t, res.Tracked)
}

func TestContentTracker_CacheEvictsOldest(t *testing.T) {
	existsCalls := 0
	hashes := &mocks.ContentHashRepositoryMock{
		ExistsFunc: func(ctx context.Context, hash string) (bool, error) {
			existsCalls++
			return false, nil
		},
	}
	tracker := newTracker(hashes, &mocks.GenerationLogRepositoryMock{}, &mocks.GenerationStatRepositoryMock{}, 2)
	ctx := context.Background()
	for _, text := range []string{"alpha", "beta", "gamma"} {
		_, err := tracker.Record(ctx, text, models.ContentMetadata{})
		require.NoError(t, err)
	}
	assert.Equal(t, 2, tracker.CacheLen())

	existsCalls = 0
	_, err := tracker.CheckDuplicate(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, 1, existsCalls, "evicted hash must be looked up in the store")
}

func TestContentTracker_RecordGenerationEvent_FoldsIntoDailyStat(t *testing.T) {
	var created *models.GenerationLog
	logs := &mocks.GenerationLogRepositoryMock{
		CreateFunc: func(ctx context.Context, l *models.GenerationLog) error {
			created = l
			return nil
		},
	}
	stored := &models.GenerationStat{
		Date:              "2026-03-14",
		TotalGenerated:    1,
		SuccessCount:      1,
		AvgDurationMs:     1000,
		AvgQualityScore:   80,
		AvgWordCount:      500,
		CategoryBreakdown: datatypes.NewJSONType(map[string]int{"tech": 1}),
		TemplateUsage:     datatypes.NewJSONType(map[string]int{"intro": 1}),
	}
	stats := &mocks.GenerationStatRepositoryMock{
		ApplyFunc: func(ctx context.Context, date string, mutate func(*models.GenerationStat)) (*models.GenerationStat, error) {
			assert.Equal(t, "2026-03-14", date)
			mutate(stored)
			return stored, nil
		},
	}
	tracker := newTracker(&mocks.ContentHashRepositoryMock{}, logs, stats, 10)
	meta := models.ContentMetadata{Topic: "go", Category: "tech", WordCount: 700, QualityScore: 90, Templates: []string{"intro", "outro"}}

	require.NoError(t, tracker.RecordGenerationEvent(context.Background(), meta, 3*time.Second, true, 2, ""))

	require.NotNil(t, created)
	assert.Equal(t, int64(3000), created.DurationMs)
	assert.Equal(t, 2, created.Retries)
	assert.Equal(t, 2, stored.TotalGenerated)
	assert.Equal(t, 2, stored.SuccessCount)
	assert.Equal(t, 2, stored.TotalRetries)
	assert.InDelta(t, 2000, stored.AvgDurationMs, 0.001)
	assert.InDelta(t, 85, stored.AvgQualityScore, 0.001)
	assert.InDelta(t, 600, stored.AvgWordCount, 0.001)
	assert.Equal(t, map[string]int{"tech": 2}, stored.CategoryBreakdown.Data())
	assert.Equal(t, map[string]int{"intro": 2, "outro": 1}, stored.TemplateUsage.Data())
}

func TestContentTracker_RecordGenerationEvent_FailureKeepsQualityAverage(t *testing.T) {
	stored := &models.GenerationStat{Date: "2026-03-14", TotalGenerated: 1, SuccessCount: 1, AvgQualityScore: 80, AvgDurationMs: 100}
	stats := &mocks.GenerationStatRepositoryMock{
		ApplyFunc: func(ctx context.Context, date string, mutate func(*models.GenerationStat)) (*models.GenerationStat, error) {
			mutate(stored)
			return stored, nil
		},
	}
	tracker := newTracker(&mocks.ContentHashRepositoryMock{}, &mocks.GenerationLogRepositoryMock{}, stats, 10)

	err := tracker.RecordGenerationEvent(context.Background(), models.ContentMetadata{Topic: "x"}, 300*time.Millisecond, false, 3, "timeout")
	require.NoError(t, err)
	assert.Equal(t, 1, stored.FailCount)
	assert.InDelta(t, 80, stored.AvgQualityScore, 0.001)
	assert.InDelta(t, 200, stored.AvgDurationMs, 0.001)
}

func TestContentTracker_RecordGenerationEvent_LogErrorStopsRollup(t *testing.T) {
	applied := false
	logs := &mocks.GenerationLogRepositoryMock{
		CreateFunc: func(ctx context.Context, l *models.GenerationLog) error { return assert.AnError },
	}
	stats := &mocks.GenerationStatRepositoryMock{
		ApplyFunc: func(ctx context.Context, date string, mutate func(*models.GenerationStat)) (*models.GenerationStat, error) {
			applied = true
			return nil, nil
		},
	}
	tracker := newTracker(&mocks.ContentHashRepositoryMock{}, logs, stats, 10)

	err := tracker.RecordGenerationEvent(context.Background(), models.ContentMetadata{}, time.Second, true, 0, "")
	assert.ErrorIs(t, err, assert.AnError)
	assert.False(t, applied)
}

func TestContentTracker_Stats_AggregatesWindow(t *testing.T) {
	hashes := &mocks.ContentHashRepositoryMock{
		CountFunc: func(ctx context.Context) (int64, error) { return 42, nil },
	}
	logs := &mocks.GenerationLogRepositoryMock{
		TotalsFunc: func(ctx context.Context) (*models.GenerationTotals, error) {
			return &models.GenerationTotals{TotalGenerated: 50, SuccessCount: 45, FailCount: 5, AvgQualityScore: 77}, nil
		},
	}
	stats := &mocks.GenerationStatRepositoryMock{
		ListSinceFunc: func(ctx context.Context, fromDate string) ([]models.GenerationStat, error) {
			assert.Equal(t, "2026-02-13", fromDate)
			return []models.GenerationStat{
				{
					Date: "2026-03-13", TotalGenerated: 4, SuccessCount: 3, AvgQualityScore: 70,
					CategoryBreakdown: datatypes.NewJSONType(map[string]int{"tech": 4}),
					TemplateUsage:     datatypes.NewJSONType(map[string]int{"b": 2, "a": 2}),
				},
				{
					Date: "2026-03-14", TotalGenerated: 2, SuccessCount: 1, AvgQualityScore: 90,
					CategoryBreakdown: datatypes.NewJSONType(map[string]int{"tech": 1, "news": 1}),
					TemplateUsage:     datatypes.NewJSONType(map[string]int{"c": 5}),
				},
			}, nil
		},
	}
	tracker := newTracker(hashes, logs, stats, 10)

	st, err := tracker.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42), st.UniqueContents)
	assert.Equal(t, int64(50), st.TotalGenerated)
	assert.Equal(t, 2, st.TodayCount)
	assert.InDelta(t, 75, st.AvgQuality30d, 0.001)
	assert.Equal(t, map[string]int{"tech": 5, "news": 1}, st.CategoryBreakdown)
	assert.Equal(t, []services.TemplateUsage{{Template: "c", Count: 5}, {Template: "a", Count: 2}, {Template: "b", Count: 2}}, st.TopTemplates)
}

func TestContentTracker_Stats_PropagatesError(t *testing.T) {
	hashes := &mocks.ContentHashRepositoryMock{
		CountFunc: func(ctx context.Context) (int64, error) { return 0, assert.AnError },
	}
	tracker := newTracker(hashes, &mocks.GenerationLogRepositoryMock{}, &mocks.GenerationStatRepositoryMock{}, 10)
	_, err := tracker.Stats(context.Background())
	assert.ErrorIs(t, err, assert.AnError)
}
