package models

import (
	"encoding/json"
	"time"
)

// ExportSchemaVersion is written to every export's metadata.
const ExportSchemaVersion = "1.0"

// ExportMetadata describes an export payload.
type ExportMetadata struct {
	Version    string    `json:"version"`
	ExportedAt time.Time `json:"exportedAt"`
	Contents   []string  `json:"contents"`
}

// ExportedTemplate is the latest active version of one template.
type ExportedTemplate struct {
	Type      string   `json:"type"`
	Category  string   `json:"category,omitempty"`
	Content   string   `json:"content"`
	Variables []string `json:"variables,omitempty"`
	Version   int      `json:"version,omitempty"`
}

// ExportData is the portable snapshot. Knowledge and phrases are free-form JSON.
type ExportData struct {
	Metadata  ExportMetadata              `json:"metadata"`
	Knowledge json.RawMessage             `json:"knowledge,omitempty"`
	Templates map[string]ExportedTemplate `json:"templates,omitempty"`
	Synonyms  map[string][]string         `json:"synonyms,omitempty"`
	Phrases   json.RawMessage             `json:"phrases,omitempty"`
	Settings  *SONASettings               `json:"settings,omitempty"`
}

// KnowledgeSection stores one free-form section (knowledge, synonyms, phrases).
type KnowledgeSection struct {
	Name      string `gorm:"primaryKey;size:64"`
	Data      string `gorm:"type:text;not null"`
	UpdatedAt time.Time
}

func (KnowledgeSection) TableName() string { return "knowledge_sections" }
