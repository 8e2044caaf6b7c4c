package mocks

import (
	"context"

	"sona/internal/models"
)

type SandboxRepositoryMock struct {
	SaveFunc       func(ctx context.Context, row *models.SandboxRow) error
	GetFunc        func(ctx context.Context, id string) (*models.SandboxRow, error)
	ListActiveFunc func(ctx context.Context) ([]models.SandboxRow, error)
	DeleteFunc     func(ctx context.Context, id string) error
	DeleteAllFunc  func(ctx context.Context) error
}

func (m *SandboxRepositoryMock) Save(ctx context.Context, row *models.SandboxRow) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, row)
	}
	return nil
}

func (m *SandboxRepositoryMock) Get(ctx context.Context, id string) (*models.SandboxRow, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, id)
	}
	return nil, nil
}

func (m *SandboxRepositoryMock) ListActive(ctx context.Context) ([]models.SandboxRow, error) {
	if m.ListActiveFunc != nil {
		return m.ListActiveFunc(ctx)
	}
	return nil, nil
}

func (m *SandboxRepositoryMock) Delete(ctx context.Context, id string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return nil
}

func (m *SandboxRepositoryMock) DeleteAll(ctx context.Context) error {
	if m.DeleteAllFunc != nil {
		return m.DeleteAllFunc(ctx)
	}
	return nil
}
