package repositories

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"sona/internal/models"
)

type GenerationLogRepository interface {
	Create(ctx context.Context, log *models.GenerationLog) error
	ListSince(ctx context.Context, since time.Time, limit int) ([]models.GenerationLog, error)
	Totals(ctx context.Context) (*models.GenerationTotals, error)
}

type generationLogRepository struct {
	db *gorm.DB
}

func NewGenerationLogRepository(db *gorm.DB) GenerationLogRepository {
	return &generationLogRepository{db: db}
}

func (r *generationLogRepository) Create(ctx context.Context, log *models.GenerationLog) error {
	if err := r.db.WithContext(ctx).Create(log).Error; err != nil {
		return fmt.Errorf("creating generation log: %w", err)
	}
	return nil
}

// ListSince returns logs created at or after since, newest first. A zero since
// lists everything; limit <= 0 means no limit.
func (r *generationLogRepository) ListSince(ctx context.Context, since time.Time, limit int) ([]models.GenerationLog, error) {
	var list []models.GenerationLog
	q := r.db.WithContext(ctx).Order("created_at DESC, id DESC")
	if !since.IsZero() {
		q = q.Where("created_at >= ?", since)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&list).Error; err != nil {
		return nil, fmt.Errorf("listing generation logs: %w", err)
	}
	return list, nil
}

func (r *generationLogRepository) Totals(ctx context.Context) (*models.GenerationTotals, error) {
	var totals models.GenerationTotals
	err := r.db.WithContext(ctx).
		Model(&models.GenerationLog{}).
		Select(`COUNT(*) AS total_generated,
			COALESCE(SUM(CASE WHEN success THEN 1 ELSE 0 END), 0) AS success_count,
			COALESCE(SUM(CASE WHEN success THEN 0 ELSE 1 END), 0) AS fail_count,
			COALESCE(AVG(CASE WHEN success THEN quality_score END), 0) AS avg_quality_score,
			COALESCE(AVG(duration_ms), 0) AS avg_duration_ms`).
		Scan(&totals).Error
	if err != nil {
		return nil, fmt.Errorf("aggregating generation logs: %w", err)
	}
	return &totals, nil
}
