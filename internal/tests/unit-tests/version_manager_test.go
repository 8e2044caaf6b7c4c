package unit_tests

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sona/internal/models"
	"sona/internal/services"
	"sona/internal/tests/mocks"
)

func TestVersionManager_SaveVersion_InvalidContentNeverReachesStore(t *testing.T) {
	repo := &mocks.TemplateVersionRepositoryMock{
		CreateNextFunc: func(ctx context.Context, v *models.TemplateVersion) error {
			t.Fatal("CreateNext must not be called for invalid content")
			return nil
		},
	}
	vm := services.NewVersionManager(repo, nil, nil)

	_, err := vm.SaveVersion(context.Background(), "intro", "paragraph", "Hello {{ name", services.SaveVersionOptions{})
	var verr *services.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.NotEmpty(t, verr.Errors)
}

func TestVersionManager_SaveVersion_ExtractsVariables(t *testing.T) {
	var saved *models.TemplateVersion
	repo := &mocks.TemplateVersionRepositoryMock{
		CreateNextFunc: func(ctx context.Context, v *models.TemplateVersion) error {
			v.Version = 7
			saved = v
			return nil
		},
	}
	vm := services.NewVersionManager(repo, nil, nil)

	tv, err := vm.SaveVersion(context.Background(), "intro", "paragraph", "Hi {{name}}, about {{topic}} and {{name}}", services.SaveVersionOptions{Category: "tech", CreatedBy: "ops"})
	require.NoError(t, err)
	assert.Equal(t, 7, tv.Version)
	assert.Equal(t, []string{"name", "topic"}, []string(saved.Variables))
	assert.Equal(t, "tech", saved.Category)
	assert.Equal(t, "ops", saved.CreatedBy)
}

func TestVersionManager_SaveVersion_StoreErrorPropagates(t *testing.T) {
	repo := &mocks.TemplateVersionRepositoryMock{
		CreateNextFunc: func(ctx context.Context, v *models.TemplateVersion) error { return assert.AnError },
	}
	vm := services.NewVersionManager(repo, nil, nil)
	_, err := vm.SaveVersion(context.Background(), "intro", "paragraph", "body", services.SaveVersionOptions{})
	assert.ErrorIs(t, err, assert.AnError)
}

func TestVersionManager_Rollback_MissingVersion(t *testing.T) {
	vm := services.NewVersionManager(&mocks.TemplateVersionRepositoryMock{}, nil, nil)
	_, err := vm.Rollback(context.Background(), "intro", 3)
	assert.ErrorIs(t, err, services.ErrVersionNotFound)
}

func TestVersionManager_Rollback_CopiesContentVerbatim(t *testing.T) {
	src := &models.TemplateVersion{TemplateID: "intro", Version: 1, Type: "paragraph", Category: "tech", Content: "Original {{x}}", Variables: []string{"x"}}
	var created *models.TemplateVersion
	repo := &mocks.TemplateVersionRepositoryMock{
		GetFunc: func(ctx context.Context, id string, v int) (*models.TemplateVersion, error) {
			if v == 1 {
				return src, nil
			}
			return nil, nil
		},
		CreateNextFunc: func(ctx context.Context, v *models.TemplateVersion) error {
			v.Version = 4
			created = v
			return nil
		},
	}
	vm := services.NewVersionManager(repo, nil, nil)

	tv, err := vm.Rollback(context.Background(), "intro", 1)
	require.NoError(t, err)
	assert.Equal(t, 4, tv.Version)
	assert.Equal(t, src.Content, created.Content)
	assert.Equal(t, "Rollback to version 1", created.ChangeDescription)
	assert.Equal(t, "paragraph", created.Type)
}

func TestVersionManager_Compare_MissingEitherSide(t *testing.T) {
	repo := &mocks.TemplateVersionRepositoryMock{
		GetFunc: func(ctx context.Context, id string, v int) (*models.TemplateVersion, error) {
			if v == 1 {
				return &models.TemplateVersion{Content: "a"}, nil
			}
			return nil, nil
		},
	}
	vm := services.NewVersionManager(repo, nil, nil)
	_, err := vm.Compare(context.Background(), "intro", 1, 2)
	assert.ErrorIs(t, err, services.ErrVersionNotFound)
	_, err = vm.Compare(context.Background(), "intro", 2, 1)
	assert.ErrorIs(t, err, services.ErrVersionNotFound)
}

func TestVersionManager_Archive_ReportsAffectedRows(t *testing.T) {
	var archivedFlag bool
	repo := &mocks.TemplateVersionRepositoryMock{
		SetArchivedFunc: func(ctx context.Context, id string, archived bool) (int64, error) {
			archivedFlag = archived
			if id == "intro" {
				return 3, nil
			}
			return 0, nil
		},
	}
	vm := services.NewVersionManager(repo, nil, nil)

	n, err := vm.Archive(context.Background(), "intro")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.True(t, archivedFlag)

	n, err = vm.Restore(context.Background(), "unknown")
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.False(t, archivedFlag)
}
