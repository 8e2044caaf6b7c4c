package events

import (
	"time"

	"github.com/google/uuid"

	"sona/internal/models"
)

const SettingsChangedEvent = "events:settings:changed"

// SettingsChanged is delivered to listeners after every successful settings mutation.
type SettingsChanged struct {
	ID        string              `json:"id"`
	Name      string              `json:"name"`
	Old       models.SONASettings `json:"old"`
	New       models.SONASettings `json:"new"`
	Changed   []string            `json:"changed"`
	Source    string              `json:"source"`
	Timestamp time.Time           `json:"timestamp"`
}

// NewSettingsChanged stamps a change event with an id and time.
func NewSettingsChanged(source string, old, updated models.SONASettings, changed []string) SettingsChanged {
	return SettingsChanged{
		ID:        uuid.NewString(),
		Name:      SettingsChangedEvent,
		Old:       old.Clone(),
		New:       updated.Clone(),
		Changed:   append([]string{}, changed...),
		Source:    source,
		Timestamp: time.Now(),
	}
}
