package models

import "time"

// WordRange is a min/max word target for one article length.
type WordRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// WordCountTargets holds the word range for each article length.
type WordCountTargets struct {
	Short  WordRange `json:"short"`
	Medium WordRange `json:"medium"`
	Long   WordRange `json:"long"`
}

// For returns the range configured for length, falling back to Medium.
func (t WordCountTargets) For(length string) WordRange {
	switch length {
	case "short":
		return t.Short
	case "long":
		return t.Long
	default:
		return t.Medium
	}
}

// SONASettings is the tunable generation configuration. The JSON names are the
// stable field names used by partial updates, export and import.
type SONASettings struct {
	ArticleLength            string           `json:"articleLength"`
	WordCountTargets         WordCountTargets `json:"wordCountTargets"`
	KeywordDensity           float64          `json:"keywordDensity"`
	MinKeywordOccurrences    int              `json:"minKeywordOccurrences"`
	MaxKeywordOccurrences    int              `json:"maxKeywordOccurrences"`
	MinQualityScore          float64          `json:"minQualityScore"`
	MaxRetries               int              `json:"maxRetries"`
	DiversityLevel           string           `json:"diversityLevel"`
	TemplateRotation         bool             `json:"templateRotation"`
	ExcludedTemplates        []string         `json:"excludedTemplates"`
	PreferredTemplates       []string         `json:"preferredTemplates"`
	EnableUniquenessCheck    bool             `json:"enableUniquenessCheck"`
	EnableQualityCheck       bool             `json:"enableQualityCheck"`
	EnableSynonymReplacement bool             `json:"enableSynonymReplacement"`
	EnablePhraseVariation    bool             `json:"enablePhraseVariation"`
	EnableAnalytics          bool             `json:"enableAnalytics"`
}

// Clone returns a copy that shares no slices with s.
func (s SONASettings) Clone() SONASettings {
	out := s
	out.ExcludedTemplates = append([]string{}, s.ExcludedTemplates...)
	out.PreferredTemplates = append([]string{}, s.PreferredTemplates...)
	return out
}

// SettingRow persists one settings field as JSON text.
type SettingRow struct {
	Key       string `gorm:"primaryKey;size:64"`
	Value     string `gorm:"type:text;not null"`
	UpdatedAt time.Time
}

func (SettingRow) TableName() string { return "sona_settings" }
