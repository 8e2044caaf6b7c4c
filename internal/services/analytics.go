package services

import (
	"context"
	"fmt"
	"io"
	"time"

	"golang.org/x/sync/errgroup"

	"sona/internal/models"
	"sona/internal/repositories"
)

const defaultAnalyticsDays = 7

// DailyPoint is one day of the generation trend.
type DailyPoint struct {
	Date            string  `json:"date"`
	Total           int     `json:"total"`
	Success         int     `json:"success"`
	Fail            int     `json:"fail"`
	AvgQualityScore float64 `json:"avgQualityScore"`
	AvgDurationMs   float64 `json:"avgDurationMs"`
}

type CountEntry struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type AnalyticsSummary struct {
	Days            int          `json:"days"`
	Total           int          `json:"total"`
	Success         int          `json:"success"`
	Fail            int          `json:"fail"`
	SuccessRate     float64      `json:"successRate"`
	AvgDurationMs   float64      `json:"avgDurationMs"`
	AvgQualityScore float64      `json:"avgQualityScore"`
	TotalRetries    int          `json:"totalRetries"`
	TopCategories   []CountEntry `json:"topCategories"`
	TopTemplates    []CountEntry `json:"topTemplates"`
	TopErrors       []CountEntry `json:"topErrors"`
	Trend           []DailyPoint `json:"trend"`
}

// QualityBucket counts successful generations whose score falls in [Min, Max].
type QualityBucket struct {
	Label string  `json:"label"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Count int     `json:"count"`
}

// AnalyticsService reports on persisted generation history.
type AnalyticsService struct {
	logs  repositories.GenerationLogRepository
	stats repositories.GenerationStatRepository
	now   func() time.Time
}

func NewAnalyticsService(logs repositories.GenerationLogRepository, stats repositories.GenerationStatRepository) *AnalyticsService {
	return &AnalyticsService{logs: logs, stats: stats, now: time.Now}
}

func (a *AnalyticsService) window(days int) (int, time.Time, string) {
	if days <= 0 {
		days = defaultAnalyticsDays
	}
	today := a.now().UTC().Truncate(24 * time.Hour)
	from := today.AddDate(0, 0, -(days - 1))
	return days, from, from.Format(dateLayout)
}

// DailyTrend returns one point per day for the last days days, oldest first.
// Days without activity are zero.
func (a *AnalyticsService) DailyTrend(ctx context.Context, days int) ([]DailyPoint, error) {
	days, from, fromDate := a.window(days)
	rows, err := a.stats.ListSince(ctx, fromDate)
	if err != nil {
		return nil, fmt.Errorf("service: daily trend: %w", err)
	}
	return fillTrend(rows, from, days), nil
}

func fillTrend(rows []models.GenerationStat, from time.Time, days int) []DailyPoint {
	byDate := make(map[string]models.GenerationStat, len(rows))
	for _, r := range rows {
		byDate[r.Date] = r
	}
	out := make([]DailyPoint, days)
	for i := range out {
		date := from.AddDate(0, 0, i).Format(dateLayout)
		p := DailyPoint{Date: date}
		if r, ok := byDate[date]; ok {
			p.Total = r.TotalGenerated
			p.Success = r.SuccessCount
			p.Fail = r.FailCount
			p.AvgQualityScore = r.AvgQualityScore
			p.AvgDurationMs = r.AvgDurationMs
		}
		out[i] = p
	}
	return out
}

func (a *AnalyticsService) Summary(ctx context.Context, days int) (*AnalyticsSummary, error) {
	days, from, fromDate := a.window(days)

	var (
		logs []models.GenerationLog
		rows []models.GenerationStat
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		logs, err = a.logs.ListSince(gctx, from, 0)
		return err
	})
	g.Go(func() error {
		var err error
		rows, err = a.stats.ListSince(gctx, fromDate)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("service: analytics summary: %w", err)
	}

	entries := make([]LogEntry, len(logs))
	categories, templates, failures := map[string]int{}, map[string]int{}, map[string]int{}
	for i, l := range logs {
		entries[i] = logEntryFromRow(l)
		if l.Category != "" {
			categories[l.Category]++
		}
		for _, t := range l.Templates {
			templates[t]++
		}
		if !l.Success && l.Error != "" {
			failures[l.Error]++
		}
	}
	s := summarize(entries)
	return &AnalyticsSummary{
		Days:            days,
		Total:           s.Total,
		Success:         s.Successful,
		Fail:            s.Failed,
		SuccessRate:     s.SuccessRate,
		AvgDurationMs:   s.AvgDurationMs,
		AvgQualityScore: s.AvgQuality,
		TotalRetries:    s.TotalRetries,
		TopCategories:   topCounts(categories),
		TopTemplates:    topCounts(templates),
		TopErrors:       topCounts(failures),
		Trend:           fillTrend(rows, from, days),
	}, nil
}

func topCounts(m map[string]int) []CountEntry {
	ranked := rankCounts(m, topTemplates)
	out := make([]CountEntry, len(ranked))
	for i, r := range ranked {
		out[i] = CountEntry{Name: r.Template, Count: r.Count}
	}
	return out
}

// QualityDistribution buckets the quality scores of successful generations.
func (a *AnalyticsService) QualityDistribution(ctx context.Context, days int) ([]QualityBucket, error) {
	_, from, _ := a.window(days)
	logs, err := a.logs.ListSince(ctx, from, 0)
	if err != nil {
		return nil, fmt.Errorf("service: quality distribution: %w", err)
	}
	buckets := []QualityBucket{
		{Label: "poor", Min: 0, Max: 49},
		{Label: "fair", Min: 50, Max: 69},
		{Label: "good", Min: 70, Max: 84},
		{Label: "excellent", Min: 85, Max: 100},
	}
	for _, l := range logs {
		if !l.Success {
			continue
		}
		switch q := l.QualityScore; {
		case q < 50:
			buckets[0].Count++
		case q < 70:
			buckets[1].Count++
		case q < 85:
			buckets[2].Count++
		default:
			buckets[3].Count++
		}
	}
	return buckets, nil
}

// ExportLogsCSV writes persisted logs created at or after since, oldest
// first. A zero since exports everything.
func (a *AnalyticsService) ExportLogsCSV(ctx context.Context, w io.Writer, since time.Time, lang string) error {
	logs, err := a.logs.ListSince(ctx, since, 0)
	if err != nil {
		return fmt.Errorf("service: export logs: %w", err)
	}
	entries := make([]LogEntry, len(logs))
	for i, l := range logs {
		entries[len(logs)-1-i] = logEntryFromRow(l)
	}
	return writeLogCSV(w, entries, lang)
}
