package services

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/language"

	"sona/internal/cache"
	"sona/internal/models"
)

// DefaultLogCapacity bounds the in-memory operational log.
const DefaultLogCapacity = 1000

// LogEntry is one generation attempt kept in memory.
type LogEntry struct {
	ID           string    `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	Topic        string    `json:"topic"`
	Category     string    `json:"category"`
	DurationMs   int64     `json:"durationMs"`
	QualityScore float64   `json:"qualityScore"`
	WordCount    int       `json:"wordCount"`
	Success      bool      `json:"success"`
	Retries      int       `json:"retries"`
	Error        string    `json:"error,omitempty"`
	Templates    []string  `json:"templates,omitempty"`
}

func logEntryFromRow(row models.GenerationLog) LogEntry {
	var id string
	if row.ID != 0 {
		id = strconv.FormatUint(uint64(row.ID), 10)
	}
	return LogEntry{
		ID:           id,
		Timestamp:    row.CreatedAt,
		Topic:        row.Topic,
		Category:     row.Category,
		DurationMs:   row.DurationMs,
		QualityScore: row.QualityScore,
		WordCount:    row.WordCount,
		Success:      row.Success,
		Retries:      row.Retries,
		Error:        row.Error,
		Templates:    []string(row.Templates),
	}
}

// LogFilter narrows Entries. Zero fields match everything.
type LogFilter struct {
	Category string
	Success  *bool
	Since    time.Time
	Limit    int
}

// LogSummary aggregates the entries currently held.
type LogSummary struct {
	Total         int     `json:"total"`
	Successful    int     `json:"successful"`
	Failed        int     `json:"failed"`
	SuccessRate   float64 `json:"successRate"`
	AvgDurationMs float64 `json:"avgDurationMs"`
	AvgQuality    float64 `json:"avgQuality"`
	TotalRetries  int     `json:"totalRetries"`
}

// GenerationLogger is the bounded in-memory operational log. When full, the
// oldest entry is evicted by the write that overflows it.
type GenerationLogger struct {
	entries *cache.FIFO[string, LogEntry]
}

func NewGenerationLogger(capacity int) *GenerationLogger {
	if capacity <= 0 {
		capacity = DefaultLogCapacity
	}
	return &GenerationLogger{entries: cache.NewFIFO[string, LogEntry](capacity)}
}

// Record stores entry, assigning an id and timestamp when missing.
func (l *GenerationLogger) Record(entry LogEntry) LogEntry {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	entry.Templates = append([]string(nil), entry.Templates...)
	l.entries.Put(entry.ID, entry)
	return entry
}

// Entries returns matching entries, newest first.
func (l *GenerationLogger) Entries(filter LogFilter) []LogEntry {
	all := l.entries.NewestValues(0)
	out := make([]LogEntry, 0, len(all))
	for _, e := range all {
		if filter.Category != "" && e.Category != filter.Category {
			continue
		}
		if filter.Success != nil && e.Success != *filter.Success {
			continue
		}
		if !filter.Since.IsZero() && e.Timestamp.Before(filter.Since) {
			continue
		}
		out = append(out, e)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out
}

func (l *GenerationLogger) Len() int      { return l.entries.Len() }
func (l *GenerationLogger) Capacity() int { return l.entries.Capacity() }
func (l *GenerationLogger) Clear()        { l.entries.Clear() }

func (l *GenerationLogger) Summary() LogSummary {
	return summarize(l.entries.Values())
}

func summarize(entries []LogEntry) LogSummary {
	var s LogSummary
	var durationSum, qualitySum float64
	for _, e := range entries {
		s.Total++
		s.TotalRetries += e.Retries
		durationSum += float64(e.DurationMs)
		if e.Success {
			s.Successful++
			qualitySum += e.QualityScore
		} else {
			s.Failed++
		}
	}
	if s.Total > 0 {
		s.SuccessRate = float64(s.Successful) / float64(s.Total) * 100
		s.AvgDurationMs = durationSum / float64(s.Total)
	}
	if s.Successful > 0 {
		s.AvgQuality = qualitySum / float64(s.Successful)
	}
	return s
}

// ExportJSON writes all entries, oldest first, as an indented JSON array.
func (l *GenerationLogger) ExportJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(l.entries.Values())
}

// ExportCSV writes all entries, oldest first, with a header in the language
// closest to lang.
func (l *GenerationLogger) ExportCSV(w io.Writer, lang string) error {
	return writeLogCSV(w, l.entries.Values(), lang)
}

var (
	csvLanguages = []language.Tag{language.English, language.Russian, language.Arabic}
	csvMatcher   = language.NewMatcher(csvLanguages)
	csvHeaders   = [][]string{
		{"Timestamp", "Topic", "Category", "Duration (ms)", "Quality", "Words", "Success", "Retries", "Error"},
		{"Время", "Тема", "Категория", "Длительность (мс)", "Качество", "Слова", "Успех", "Повторы", "Ошибка"},
		{"الوقت", "الموضوع", "الفئة", "المدة (مللي ثانية)", "الجودة", "الكلمات", "النجاح", "المحاولات", "الخطأ"},
	}
	csvBooleans = [][2]string{{"no", "yes"}, {"нет", "да"}, {"لا", "نعم"}}
)

func csvLocale(lang string) int {
	tag, err := language.Parse(lang)
	if err != nil {
		return 0
	}
	_, idx, conf := csvMatcher.Match(tag)
	if conf == language.No {
		return 0
	}
	return idx
}

func writeLogCSV(w io.Writer, entries []LogEntry, lang string) error {
	idx := csvLocale(lang)
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeaders[idx]); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}
	for _, e := range entries {
		success := csvBooleans[idx][0]
		if e.Success {
			success = csvBooleans[idx][1]
		}
		record := []string{
			e.Timestamp.UTC().Format(time.RFC3339),
			e.Topic,
			e.Category,
			strconv.FormatInt(e.DurationMs, 10),
			strconv.FormatFloat(e.QualityScore, 'f', 1, 64),
			strconv.Itoa(e.WordCount),
			success,
			strconv.Itoa(e.Retries),
			e.Error,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("writing csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
