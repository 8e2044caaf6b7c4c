package mocks

import (
	"context"
	"time"

	"sona/internal/models"
)

type GenerationLogRepositoryMock struct {
	CreateFunc    func(ctx context.Context, log *models.GenerationLog) error
	ListSinceFunc func(ctx context.Context, since time.Time, limit int) ([]models.GenerationLog, error)
	TotalsFunc    func(ctx context.Context) (*models.GenerationTotals, error)
}

func (m *GenerationLogRepositoryMock) Create(ctx context.Context, log *models.GenerationLog) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, log)
	}
	return nil
}

func (m *GenerationLogRepositoryMock) ListSince(ctx context.Context, since time.Time, limit int) ([]models.GenerationLog, error) {
	if m.ListSinceFunc != nil {
		return m.ListSinceFunc(ctx, since, limit)
	}
	return nil, nil
}

func (m *GenerationLogRepositoryMock) Totals(ctx context.Context) (*models.GenerationTotals, error) {
	if m.TotalsFunc != nil {
		return m.TotalsFunc(ctx)
	}
	return &models.GenerationTotals{}, nil
}
