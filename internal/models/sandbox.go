package models

import (
	"time"

	"gorm.io/datatypes"
)

// GenerationRequest asks the external generator for one article.
type GenerationRequest struct {
	Topic    string   `json:"topic"`
	Category string   `json:"category"`
	Keywords []string `json:"keywords,omitempty"`
	Template string   `json:"template,omitempty"`
}

// GeneratedContent is what the external generator returns.
type GeneratedContent struct {
	Title        string   `json:"title"`
	Content      string   `json:"content"`
	WordCount    int      `json:"wordCount"`
	QualityScore float64  `json:"qualityScore"`
	KeywordCount int      `json:"keywordCount"`
	Templates    []string `json:"templates,omitempty"`
}

// SandboxContent is one generated item owned by a sandbox session.
type SandboxContent struct {
	ID string `json:"id"`
	GenerationRequest
	GeneratedContent
	CreatedAt time.Time `json:"createdAt"`
}

// SandboxSession is an isolated trial context.
type SandboxSession struct {
	ID        string           `json:"id"`
	Active    bool             `json:"active"`
	Settings  SONASettings     `json:"settings"`
	Content   []SandboxContent `json:"content"`
	CreatedAt time.Time        `json:"createdAt"`
}

// SandboxRow is the persisted shadow of a session.
type SandboxRow struct {
	ID           string                           `gorm:"primaryKey;size:64"`
	Active       bool                             `gorm:"not null;index"`
	Settings     datatypes.JSONType[SONASettings] `gorm:"type:text"`
	ContentCount int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (SandboxRow) TableName() string { return "sandbox_sessions" }
