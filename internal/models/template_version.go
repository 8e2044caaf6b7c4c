package models

import (
	"time"

	"gorm.io/datatypes"
)

// TemplateVersion is an immutable snapshot of a template. Only Archived ever
// changes after insert.
type TemplateVersion struct {
	ID                uint                        `gorm:"primaryKey" json:"id"`
	TemplateID        string                      `gorm:"size:255;not null;uniqueIndex:ux_template_version,priority:1" json:"templateId"`
	Version           int                         `gorm:"not null;uniqueIndex:ux_template_version,priority:2" json:"version"`
	Type              string                      `gorm:"size:80;not null" json:"type"`
	Category          string                      `gorm:"size:120" json:"category"`
	Content           string                      `gorm:"type:text;not null" json:"content"`
	Variables         datatypes.JSONSlice[string] `gorm:"type:text" json:"variables"`
	ChangeDescription string                      `gorm:"size:512" json:"changeDescription"`
	CreatedBy         string                      `gorm:"size:120" json:"createdBy"`
	Archived          bool                        `gorm:"not null;default:false;index" json:"archived"`
	CreatedAt         time.Time                   `json:"createdAt"`
}
