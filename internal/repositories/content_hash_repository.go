package repositories

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"sona/internal/models"
)

type ContentHashRepository interface {
	Save(ctx context.Context, hash *models.ContentHash) error
	Exists(ctx context.Context, hash string) (bool, error)
	Recent(ctx context.Context, limit int) ([]models.ContentHash, error)
	Count(ctx context.Context) (int64, error)
}

type contentHashRepository struct {
	db *gorm.DB
}

func NewContentHashRepository(db *gorm.DB) ContentHashRepository {
	return &contentHashRepository{db: db}
}

func (r *contentHashRepository) Save(ctx context.Context, hash *models.ContentHash) error {
	if hash == nil || hash.Hash == "" {
		return fmt.Errorf("content hash is required")
	}
	if err := r.db.WithContext(ctx).Create(hash).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicate
		}
		return fmt.Errorf("saving content hash %s: %w", hash.Hash, err)
	}
	return nil
}

func (r *contentHashRepository) Exists(ctx context.Context, hash string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.ContentHash{}).Where("hash = ?", hash).Count(&count).Error; err != nil {
		return false, fmt.Errorf("looking up content hash: %w", err)
	}
	return count > 0, nil
}

func (r *contentHashRepository) Recent(ctx context.Context, limit int) ([]models.ContentHash, error) {
	var list []models.ContentHash
	q := r.db.WithContext(ctx).Order("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&list).Error; err != nil {
		return nil, fmt.Errorf("listing recent content hashes: %w", err)
	}
	return list, nil
}

func (r *contentHashRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.ContentHash{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("counting content hashes: %w", err)
	}
	return count, nil
}
