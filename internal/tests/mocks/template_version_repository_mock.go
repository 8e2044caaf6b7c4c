package mocks

import (
	"context"

	"sona/internal/models"
)

type TemplateVersionRepositoryMock struct {
	CreateNextFunc  func(ctx context.Context, version *models.TemplateVersion) error
	ListFunc        func(ctx context.Context, templateID string, includeArchived bool) ([]models.TemplateVersion, error)
	GetFunc         func(ctx context.Context, templateID string, version int) (*models.TemplateVersion, error)
	LatestFunc      func(ctx context.Context, templateID string) (*models.TemplateVersion, error)
	CountFunc       func(ctx context.Context, templateID string) (int64, error)
	SetArchivedFunc func(ctx context.Context, templateID string, archived bool) (int64, error)
	TemplateIDsFunc func(ctx context.Context, includeArchived bool) ([]string, error)
}

func (m *TemplateVersionRepositoryMock) CreateNext(ctx context.Context, version *models.TemplateVersion) error {
	if m.CreateNextFunc != nil {
		return m.CreateNextFunc(ctx, version)
	}
	version.Version = 1
	return nil
}

func (m *TemplateVersionRepositoryMock) List(ctx context.Context, templateID string, includeArchived bool) ([]models.TemplateVersion, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, templateID, includeArchived)
	}
	return nil, nil
}

func (m *TemplateVersionRepositoryMock) Get(ctx context.Context, templateID string, version int) (*models.TemplateVersion, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, templateID, version)
	}
	return nil, nil
}

func (m *TemplateVersionRepositoryMock) Latest(ctx context.Context, templateID string) (*models.TemplateVersion, error) {
	if m.LatestFunc != nil {
		return m.LatestFunc(ctx, templateID)
	}
	return nil, nil
}

func (m *TemplateVersionRepositoryMock) Count(ctx context.Context, templateID string) (int64, error) {
	if m.CountFunc != nil {
		return m.CountFunc(ctx, templateID)
	}
	return 0, nil
}

func (m *TemplateVersionRepositoryMock) SetArchived(ctx context.Context, templateID string, archived bool) (int64, error) {
	if m.SetArchivedFunc != nil {
		return m.SetArchivedFunc(ctx, templateID, archived)
	}
	return 0, nil
}

func (m *TemplateVersionRepositoryMock) TemplateIDs(ctx context.Context, includeArchived bool) ([]string, error) {
	if m.TemplateIDsFunc != nil {
		return m.TemplateIDsFunc(ctx, includeArchived)
	}
	return nil, nil
}
