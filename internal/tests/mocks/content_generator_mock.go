package mocks

import (
	"context"
	"sync/atomic"

	"sona/internal/models"
)

// ContentGeneratorMock returns a fixed article unless GenerateFunc is set.
type ContentGeneratorMock struct {
	GenerateFunc func(ctx context.Context, req models.GenerationRequest, settings models.SONASettings) (*models.GeneratedContent, error)
	calls        atomic.Int64
}

func (m *ContentGeneratorMock) Generate(ctx context.Context, req models.GenerationRequest, settings models.SONASettings) (*models.GeneratedContent, error) {
	m.calls.Add(1)
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, req, settings)
	}
	return &models.GeneratedContent{
		Title:        req.Topic,
		Content:      "Generated article about " + req.Topic,
		WordCount:    4,
		QualityScore: 80,
		KeywordCount: len(req.Keywords),
	}, nil
}

func (m *ContentGeneratorMock) Calls() int64 { return m.calls.Load() }
