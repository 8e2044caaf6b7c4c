package repositories

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"sona/internal/models"
)

type GenerationStatRepository interface {
	GetByDate(ctx context.Context, date string) (*models.GenerationStat, error)
	ListSince(ctx context.Context, fromDate string) ([]models.GenerationStat, error)
	// Apply loads (or starts) the row for date, lets mutate change it and saves
	// it, all inside one transaction.
	Apply(ctx context.Context, date string, mutate func(stat *models.GenerationStat)) (*models.GenerationStat, error)
}

type generationStatRepository struct {
	db *gorm.DB
}

func NewGenerationStatRepository(db *gorm.DB) GenerationStatRepository {
	return &generationStatRepository{db: db}
}

func (r *generationStatRepository) GetByDate(ctx context.Context, date string) (*models.GenerationStat, error) {
	var stat models.GenerationStat
	if err := r.db.WithContext(ctx).Where("date = ?", date).Take(&stat).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting generation stat %s: %w", date, err)
	}
	return &stat, nil
}

// ListSince returns rows with date >= fromDate, oldest first.
func (r *generationStatRepository) ListSince(ctx context.Context, fromDate string) ([]models.GenerationStat, error) {
	var list []models.GenerationStat
	if err := r.db.WithContext(ctx).Where("date >= ?", fromDate).Order("date ASC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("listing generation stats since %s: %w", fromDate, err)
	}
	return list, nil
}

func (r *generationStatRepository) Apply(ctx context.Context, date string, mutate func(stat *models.GenerationStat)) (*models.GenerationStat, error) {
	var result models.GenerationStat
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var stat models.GenerationStat
		err := tx.Where("date = ?", date).Take(&stat).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			stat = models.GenerationStat{Date: date}
		case err != nil:
			return err
		}
		mutate(&stat)
		if err := tx.Save(&stat).Error; err != nil {
			return err
		}
		result = stat
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("upserting generation stat %s: %w", date, err)
	}
	return &result, nil
}
