package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"sona/internal/models"
)

// Section names stored in the knowledge table.
const (
	SectionKnowledge = "knowledge"
	SectionSynonyms  = "synonyms"
	SectionPhrases   = "phrases"
)

type KnowledgeRepository interface {
	Get(ctx context.Context, name string) (*models.KnowledgeSection, error)
	Save(ctx context.Context, name, data string) error
}

type knowledgeRepository struct {
	db *gorm.DB
}

func NewKnowledgeRepository(db *gorm.DB) KnowledgeRepository {
	return &knowledgeRepository{db: db}
}

func (r *knowledgeRepository) Get(ctx context.Context, name string) (*models.KnowledgeSection, error) {
	var section models.KnowledgeSection
	if err := r.db.WithContext(ctx).Where("name = ?", name).Take(&section).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting %s section: %w", name, err)
	}
	return &section, nil
}

func (r *knowledgeRepository) Save(ctx context.Context, name, data string) error {
	section := models.KnowledgeSection{Name: name, Data: data, UpdatedAt: time.Now()}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
	}).Create(&section).Error
	if err != nil {
		return fmt.Errorf("saving %s section: %w", name, err)
	}
	return nil
}
