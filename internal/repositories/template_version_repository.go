package repositories

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"sona/internal/models"
)

type TemplateVersionRepository interface {
	// CreateNext assigns version = count(all versions of the template)+1 and
	// inserts the row in the same transaction.
	CreateNext(ctx context.Context, version *models.TemplateVersion) error
	List(ctx context.Context, templateID string, includeArchived bool) ([]models.TemplateVersion, error)
	Get(ctx context.Context, templateID string, version int) (*models.TemplateVersion, error)
	Latest(ctx context.Context, templateID string) (*models.TemplateVersion, error)
	Count(ctx context.Context, templateID string) (int64, error)
	SetArchived(ctx context.Context, templateID string, archived bool) (int64, error)
	TemplateIDs(ctx context.Context, includeArchived bool) ([]string, error)
}

type templateVersionRepository struct {
	db *gorm.DB
}

func NewTemplateVersionRepository(db *gorm.DB) TemplateVersionRepository {
	return &templateVersionRepository{db: db}
}

func (r *templateVersionRepository) CreateNext(ctx context.Context, version *models.TemplateVersion) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.TemplateVersion{}).Where("template_id = ?", version.TemplateID).Count(&count).Error; err != nil {
			return err
		}
		version.Version = int(count) + 1
		return tx.Create(version).Error
	})
	if err != nil {
		return fmt.Errorf("creating version of template %s: %w", version.TemplateID, err)
	}
	return nil
}

// List returns versions newest first.
func (r *templateVersionRepository) List(ctx context.Context, templateID string, includeArchived bool) ([]models.TemplateVersion, error) {
	var list []models.TemplateVersion
	q := r.db.WithContext(ctx).Where("template_id = ?", templateID)
	if !includeArchived {
		q = q.Where("archived = ?", false)
	}
	if err := q.Order("version DESC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("listing versions of template %s: %w", templateID, err)
	}
	return list, nil
}

func (r *templateVersionRepository) Get(ctx context.Context, templateID string, version int) (*models.TemplateVersion, error) {
	var tv models.TemplateVersion
	if err := r.db.WithContext(ctx).Where("template_id = ? AND version = ?", templateID, version).Take(&tv).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting template %s version %d: %w", templateID, version, err)
	}
	return &tv, nil
}

// Latest returns the highest active version.
func (r *templateVersionRepository) Latest(ctx context.Context, templateID string) (*models.TemplateVersion, error) {
	var tv models.TemplateVersion
	err := r.db.WithContext(ctx).
		Where("template_id = ? AND archived = ?", templateID, false).
		Order("version DESC").
		Take(&tv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting latest version of template %s: %w", templateID, err)
	}
	return &tv, nil
}

func (r *templateVersionRepository) Count(ctx context.Context, templateID string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.TemplateVersion{}).Where("template_id = ?", templateID).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("counting versions of template %s: %w", templateID, err)
	}
	return count, nil
}

func (r *templateVersionRepository) SetArchived(ctx context.Context, templateID string, archived bool) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.TemplateVersion{}).
		Where("template_id = ?", templateID).
		Update("archived", archived)
	if res.Error != nil {
		return 0, fmt.Errorf("setting archived=%t on template %s: %w", archived, templateID, res.Error)
	}
	return res.RowsAffected, nil
}

func (r *templateVersionRepository) TemplateIDs(ctx context.Context, includeArchived bool) ([]string, error) {
	var ids []string
	q := r.db.WithContext(ctx).Model(&models.TemplateVersion{})
	if !includeArchived {
		q = q.Where("archived = ?", false)
	}
	if err := q.Distinct("template_id").Order("template_id").Pluck("template_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("listing template ids: %w", err)
	}
	return ids, nil
}
