package repositories

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"sona/internal/models"
)

type SandboxRepository interface {
	Save(ctx context.Context, row *models.SandboxRow) error
	Get(ctx context.Context, id string) (*models.SandboxRow, error)
	ListActive(ctx context.Context) ([]models.SandboxRow, error)
	Delete(ctx context.Context, id string) error
	DeleteAll(ctx context.Context) error
}

type sandboxRepository struct {
	db *gorm.DB
}

func NewSandboxRepository(db *gorm.DB) SandboxRepository {
	return &sandboxRepository{db: db}
}

func (r *sandboxRepository) Save(ctx context.Context, row *models.SandboxRow) error {
	if row == nil || row.ID == "" {
		return fmt.Errorf("sandbox id is required")
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"active", "settings", "content_count", "updated_at"}),
	}).Create(row).Error
	if err != nil {
		return fmt.Errorf("saving sandbox %s: %w", row.ID, err)
	}
	return nil
}

func (r *sandboxRepository) Get(ctx context.Context, id string) (*models.SandboxRow, error) {
	var row models.SandboxRow
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting sandbox %s: %w", id, err)
	}
	return &row, nil
}

func (r *sandboxRepository) ListActive(ctx context.Context) ([]models.SandboxRow, error) {
	var rows []models.SandboxRow
	if err := r.db.WithContext(ctx).Where("active = ?", true).Order("created_at").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing sandboxes: %w", err)
	}
	return rows, nil
}

func (r *sandboxRepository) Delete(ctx context.Context, id string) error {
	if err := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.SandboxRow{}).Error; err != nil {
		return fmt.Errorf("deleting sandbox %s: %w", id, err)
	}
	return nil
}

func (r *sandboxRepository) DeleteAll(ctx context.Context) error {
	if err := r.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.SandboxRow{}).Error; err != nil {
		return fmt.Errorf("deleting sandboxes: %w", err)
	}
	return nil
}
