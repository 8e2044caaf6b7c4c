package services

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sona/internal/models"
)

func seedEvents(t *testing.T, s *SonaServices) time.Time {
	t.Helper()
	ctx := ctxT(t)
	base := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	clock := base
	s.Tracker.now = func() time.Time { return clock }
	s.Analytics.now = func() time.Time { return base }

	events := []struct {
		at      time.Time
		meta    models.ContentMetadata
		success bool
		errMsg  string
	}{
		{base.AddDate(0, 0, -10), models.ContentMetadata{Topic: "old", Category: "news", QualityScore: 60}, true, ""},
		{base.AddDate(0, 0, -2), models.ContentMetadata{Topic: "n", Category: "news", QualityScore: 40, Templates: []string{"t1"}}, true, ""},
		{base, models.ContentMetadata{Topic: "a", Category: "tech", QualityScore: 75, Templates: []string{"t1", "t2"}}, true, ""},
		{base.Add(time.Minute), models.ContentMetadata{Topic: "b", Category: "tech", QualityScore: 90}, true, ""},
		{base.Add(2 * time.Minute), models.ContentMetadata{Topic: "c", Category: "tech"}, false, "timeout"},
	}
	for _, e := range events {
		clock = e.at
		require.NoError(t, s.Tracker.RecordGenerationEvent(ctx, e.meta, time.Second, e.success, 0, e.errMsg))
	}
	return base
}

func TestAnalytics_Summary(t *testing.T) {
	s, _ := newTestServices(t)
	seedEvents(t, s)

	sum, err := s.Analytics.Summary(ctxT(t), 7)
	require.NoError(t, err)
	assert.Equal(t, 7, sum.Days)
	assert.Equal(t, 4, sum.Total)
	assert.Equal(t, 3, sum.Success)
	assert.Equal(t, 1, sum.Fail)
	assert.InDelta(t, 75, sum.SuccessRate, 0.001)
	assert.InDelta(t, 1000, sum.AvgDurationMs, 0.001)
	assert.InDelta(t, 205.0/3, sum.AvgQualityScore, 0.001)
	assert.Equal(t, []CountEntry{{Name: "tech", Count: 3}, {Name: "news", Count: 1}}, sum.TopCategories)
	assert.Equal(t, []CountEntry{{Name: "t1", Count: 2}, {Name: "t2", Count: 1}}, sum.TopTemplates)
	assert.Equal(t, []CountEntry{{Name: "timeout", Count: 1}}, sum.TopErrors)

	require.Len(t, sum.Trend, 7)
	assert.Equal(t, "2026-03-08", sum.Trend[0].Date)
	assert.Equal(t, "2026-03-14", sum.Trend[6].Date)
	assert.Equal(t, 1, sum.Trend[4].Total)
	assert.Equal(t, 3, sum.Trend[6].Total)
}

func TestAnalytics_DailyTrendFillsGaps(t *testing.T) {
	s, _ := newTestServices(t)
	seedEvents(t, s)

	trend, err := s.Analytics.DailyTrend(ctxT(t), 3)
	require.NoError(t, err)
	totals := make([]int, len(trend))
	for i, p := range trend {
		totals[i] = p.Total
	}
	assert.Equal(t, []int{1, 0, 3}, totals)
	assert.InDelta(t, 82.5, trend[2].AvgQualityScore, 0.001)

	trend, err = s.Analytics.DailyTrend(ctxT(t), 0)
	require.NoError(t, err)
	assert.Len(t, trend, 7)
}

func TestAnalytics_QualityDistribution(t *testing.T) {
	s, _ := newTestServices(t)
	seedEvents(t, s)

	buckets, err := s.Analytics.QualityDistribution(ctxT(t), 7)
	require.NoError(t, err)
	counts := map[string]int{}
	for _, b := range buckets {
		counts[b.Label] = b.Count
	}
	assert.Equal(t, map[string]int{"poor": 1, "fair": 0, "good": 1, "excellent": 1}, counts)
}

func TestAnalytics_ExportLogsCSV(t *testing.T) {
	s, _ := newTestServices(t)
	seedEvents(t, s)

	var buf bytes.Buffer
	require.NoError(t, s.Analytics.ExportLogsCSV(ctxT(t), &buf, time.Time{}, "ru-RU"))
	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 6)
	assert.Equal(t, "Тема", records[0][1])
	assert.Equal(t, "old", records[1][1])
	assert.Equal(t, "c", records[5][1])
	assert.Equal(t, "нет", records[5][6])
	assert.Equal(t, "timeout", records[5][8])

	buf.Reset()
	require.NoError(t, s.Analytics.ExportLogsCSV(ctxT(t), &buf, time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC), "en"))
	records, err = csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, "Topic", records[0][1])
	assert.Equal(t, "yes", records[1][6])
}
