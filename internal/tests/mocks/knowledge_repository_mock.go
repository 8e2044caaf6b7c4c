package mocks

import (
	"context"

	"sona/internal/models"
)

type KnowledgeRepositoryMock struct {
	GetFunc  func(ctx context.Context, name string) (*models.KnowledgeSection, error)
	SaveFunc func(ctx context.Context, name, data string) error
}

func (m *KnowledgeRepositoryMock) Get(ctx context.Context, name string) (*models.KnowledgeSection, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, name)
	}
	return nil, nil
}

func (m *KnowledgeRepositoryMock) Save(ctx context.Context, name, data string) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, name, data)
	}
	return nil
}
