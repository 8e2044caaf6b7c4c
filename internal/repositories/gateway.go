package repositories

import "gorm.io/gorm"

// Gateway aggregates every repository the SONA services persist through.
type Gateway struct {
	ContentHashes    ContentHashRepository
	GenerationLogs   GenerationLogRepository
	GenerationStats  GenerationStatRepository
	TemplateVersions TemplateVersionRepository
	Settings         SettingRepository
	Sandboxes        SandboxRepository
	Knowledge        KnowledgeRepository
}

// NewGateway builds gorm-backed repositories over db.
func NewGateway(db *gorm.DB) *Gateway {
	return &Gateway{
		ContentHashes:    NewContentHashRepository(db),
		GenerationLogs:   NewGenerationLogRepository(db),
		GenerationStats:  NewGenerationStatRepository(db),
		TemplateVersions: NewTemplateVersionRepository(db),
		Settings:         NewSettingRepository(db),
		Sandboxes:        NewSandboxRepository(db),
		Knowledge:        NewKnowledgeRepository(db),
	}
}
