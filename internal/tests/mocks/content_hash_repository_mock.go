package mocks

import (
	"context"

	"sona/internal/models"
)

type ContentHashRepositoryMock struct {
	SaveFunc   func(ctx context.Context, hash *models.ContentHash) error
	ExistsFunc func(ctx context.Context, hash string) (bool, error)
	RecentFunc func(ctx context.Context, limit int) ([]models.ContentHash, error)
	CountFunc  func(ctx context.Context) (int64, error)
}

func (m *ContentHashRepositoryMock) Save(ctx context.Context, hash *models.ContentHash) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, hash)
	}
	return nil
}

func (m *ContentHashRepositoryMock) Exists(ctx context.Context, hash string) (bool, error) {
	if m.ExistsFunc != nil {
		return m.ExistsFunc(ctx, hash)
	}
	return false, nil
}

func (m *ContentHashRepositoryMock) Recent(ctx context.Context, limit int) ([]models.ContentHash, error) {
	if m.RecentFunc != nil {
		return m.RecentFunc(ctx, limit)
	}
	return nil, nil
}

func (m *ContentHashRepositoryMock) Count(ctx context.Context) (int64, error) {
	if m.CountFunc != nil {
		return m.CountFunc(ctx)
	}
	return 0, nil
}
