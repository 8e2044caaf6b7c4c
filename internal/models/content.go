package models

import (
	"time"

	"gorm.io/datatypes"
)

// ContentHash is the fingerprint of one successfully generated article.
type ContentHash struct {
	ID           uint                        `gorm:"primaryKey" json:"id"`
	Hash         string                      `gorm:"size:64;not null;uniqueIndex" json:"hash"`
	Topic        string                      `gorm:"size:255" json:"topic"`
	Category     string                      `gorm:"size:120;index" json:"category"`
	WordCount    int                         `json:"wordCount"`
	QualityScore float64                     `json:"qualityScore"`
	Templates    datatypes.JSONSlice[string] `gorm:"type:text" json:"templates"`
	CreatedAt    time.Time                   `gorm:"index" json:"createdAt"`
}

// GenerationLog records one generation attempt, successful or not.
type GenerationLog struct {
	ID           uint                        `gorm:"primaryKey" json:"id"`
	Topic        string                      `gorm:"size:255" json:"topic"`
	Category     string                      `gorm:"size:120;index" json:"category"`
	DurationMs   int64                       `json:"durationMs"`
	QualityScore float64                     `json:"qualityScore"`
	WordCount    int                         `json:"wordCount"`
	Success      bool                        `gorm:"index" json:"success"`
	Retries      int                         `json:"retries"`
	Error        string                      `gorm:"type:text" json:"error,omitempty"`
	Templates    datatypes.JSONSlice[string] `gorm:"type:text" json:"templates,omitempty"`
	CreatedAt    time.Time                   `gorm:"index" json:"createdAt"`
}

// GenerationStat is the daily rollup of generation events. Date is YYYY-MM-DD.
type GenerationStat struct {
	ID                uint                               `gorm:"primaryKey" json:"id"`
	Date              string                             `gorm:"size:10;not null;uniqueIndex" json:"date"`
	TotalGenerated    int                                `json:"totalGenerated"`
	SuccessCount      int                                `json:"successCount"`
	FailCount         int                                `json:"failCount"`
	TotalRetries      int                                `json:"totalRetries"`
	AvgDurationMs     float64                            `json:"avgDurationMs"`
	AvgQualityScore   float64                            `json:"avgQualityScore"`
	AvgWordCount      float64                            `json:"avgWordCount"`
	CategoryBreakdown datatypes.JSONType[map[string]int] `gorm:"type:text" json:"categoryBreakdown"`
	TemplateUsage     datatypes.JSONType[map[string]int] `gorm:"type:text" json:"templateUsage"`
	CreatedAt         time.Time                          `json:"createdAt"`
	UpdatedAt         time.Time                          `json:"updatedAt"`
}

// GenerationTotals are all-time aggregates over the generation log.
type GenerationTotals struct {
	TotalGenerated  int64   `json:"totalGenerated"`
	SuccessCount    int64   `json:"successCount"`
	FailCount       int64   `json:"failCount"`
	AvgQualityScore float64 `json:"avgQualityScore"`
	AvgDurationMs   float64 `json:"avgDurationMs"`
}

// ContentMetadata describes generated content handed to the tracker by the
// external generation pipeline.
type ContentMetadata struct {
	Topic        string   `json:"topic"`
	Category     string   `json:"category"`
	WordCount    int      `json:"wordCount"`
	QualityScore float64  `json:"qualityScore"`
	Templates    []string `json:"templates"`
}
