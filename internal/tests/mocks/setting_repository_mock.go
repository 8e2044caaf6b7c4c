package mocks

import (
	"context"

	"sona/internal/models"
)

type SettingRepositoryMock struct {
	ListFunc    func(ctx context.Context) ([]models.SettingRow, error)
	UpsertFunc  func(ctx context.Context, rows []models.SettingRow) error
	ReplaceFunc func(ctx context.Context, rows []models.SettingRow) error
}

func (m *SettingRepositoryMock) List(ctx context.Context) ([]models.SettingRow, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx)
	}
	return nil, nil
}

func (m *SettingRepositoryMock) Upsert(ctx context.Context, rows []models.SettingRow) error {
	if m.UpsertFunc != nil {
		return m.UpsertFunc(ctx, rows)
	}
	return nil
}

func (m *SettingRepositoryMock) Replace(ctx context.Context, rows []models.SettingRow) error {
	if m.ReplaceFunc != nil {
		return m.ReplaceFunc(ctx, rows)
	}
	return nil
}
