package mocks

import (
	"context"

	"sona/internal/models"
)

type GenerationStatRepositoryMock struct {
	GetByDateFunc func(ctx context.Context, date string) (*models.GenerationStat, error)
	ListSinceFunc func(ctx context.Context, fromDate string) ([]models.GenerationStat, error)
	ApplyFunc     func(ctx context.Context, date string, mutate func(stat *models.GenerationStat)) (*models.GenerationStat, error)
}

func (m *GenerationStatRepositoryMock) GetByDate(ctx context.Context, date string) (*models.GenerationStat, error) {
	if m.GetByDateFunc != nil {
		return m.GetByDateFunc(ctx, date)
	}
	return nil, nil
}

func (m *GenerationStatRepositoryMock) ListSince(ctx context.Context, fromDate string) ([]models.GenerationStat, error) {
	if m.ListSinceFunc != nil {
		return m.ListSinceFunc(ctx, fromDate)
	}
	return nil, nil
}

// Apply runs mutate on a fresh row when ApplyFunc is unset.
func (m *GenerationStatRepositoryMock) Apply(ctx context.Context, date string, mutate func(stat *models.GenerationStat)) (*models.GenerationStat, error) {
	if m.ApplyFunc != nil {
		return m.ApplyFunc(ctx, date, mutate)
	}
	stat := &models.GenerationStat{Date: date}
	mutate(stat)
	return stat, nil
}
