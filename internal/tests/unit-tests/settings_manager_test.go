package unit_tests

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sona/internal/events"
	"sona/internal/models"
	"sona/internal/services"
	"sona/internal/tests/mocks"
)

func TestSettingsManager_Get_OverlaysStoredRows(t *testing.T) {
	repo := &mocks.SettingRepositoryMock{
		ListFunc: func(ctx context.Context) ([]models.SettingRow, error) {
			return []models.SettingRow{
				{Key: "maxRetries", Value: "5"},
				{Key: "diversityLevel", Value: `"high"`},
				{Key: "keywordDensity", Value: "99"},    // out of range, ignored
				{Key: "retiredSetting", Value: "true"},  // unknown, ignored
				{Key: "articleLength", Value: "{oops"},  // unreadable, ignored
			}, nil
		},
	}
	sm := services.NewSettingsManager(repo, nil, nil)

	got, err := sm.Get(context.Background())
	require.NoError(t, err)
	want := services.DefaultSettings()
	want.MaxRetries = 5
	want.DiversityLevel = "high"
	assert.Equal(t, want, got)
}

func TestSettingsManager_Get_CachesAfterFirstLoad(t *testing.T) {
	calls := 0
	repo := &mocks.SettingRepositoryMock{
		ListFunc: func(ctx context.Context) ([]models.SettingRow, error) {
			calls++
			return nil, nil
		},
	}
	sm := services.NewSettingsManager(repo, nil, nil)
	for i := 0; i < 3; i++ {
		_, err := sm.Get(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, 1, calls)
}

func TestSettingsManager_UpdateSettings_PersistsOnlyGivenKeys(t *testing.T) {
	var written []models.SettingRow
	repo := &mocks.SettingRepositoryMock{
		UpsertFunc: func(ctx context.Context, rows []models.SettingRow) error {
			written = rows
			return nil
		},
	}
	sm := services.NewSettingsManager(repo, nil, nil)

	got, err := sm.UpdateSettings(context.Background(), services.SettingsPatch{"maxRetries": 4, "templateRotation": false})
	require.NoError(t, err)
	assert.Equal(t, 4, got.MaxRetries)
	assert.False(t, got.TemplateRotation)

	require.Len(t, written, 2)
	assert.Equal(t, models.SettingRow{Key: "maxRetries", Value: "4"}, models.SettingRow{Key: written[0].Key, Value: written[0].Value})
	assert.Equal(t, models.SettingRow{Key: "templateRotation", Value: "false"}, models.SettingRow{Key: written[1].Key, Value: written[1].Value})
}

func TestSettingsManager_UpdateSettings_StoreErrorLeavesCache(t *testing.T) {
	repo := &mocks.SettingRepositoryMock{
		UpsertFunc: func(ctx context.Context, rows []models.SettingRow) error { return assert.AnError },
	}
	sm := services.NewSettingsManager(repo, nil, nil)
	notified := false
	sm.OnChange(func(events.SettingsChanged) { notified = true })

	_, err := sm.UpdateSetting(context.Background(), "maxRetries", 9)
	assert.ErrorIs(t, err, assert.AnError)

	got, err := sm.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, got.MaxRetries)
	assert.False(t, notified)
}

func TestSettingsManager_UpdateSettings_RejectsWholesale(t *testing.T) {
	repo := &mocks.SettingRepositoryMock{
		UpsertFunc: func(ctx context.Context, rows []models.SettingRow) error {
			t.Fatal("nothing may be written when validation fails")
			return nil
		},
	}
	sm := services.NewSettingsManager(repo, nil, nil)

	_, err := sm.UpdateSettings(context.Background(), services.SettingsPatch{"maxRetries": 4, "minQualityScore": 150})
	var verr *services.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Len(t, verr.Errors, 1)
}

func TestSettingsManager_Import_ReplacesWholesale(t *testing.T) {
	var replaced []models.SettingRow
	repo := &mocks.SettingRepositoryMock{
		ListFunc: func(ctx context.Context) ([]models.SettingRow, error) {
			return []models.SettingRow{{Key: "maxRetries", Value: "7"}}, nil
		},
		ReplaceFunc: func(ctx context.Context, rows []models.SettingRow) error {
			replaced = rows
			return nil
		},
	}
	sm := services.NewSettingsManager(repo, nil, nil)

	got, err := sm.Import(context.Background(), `{"articleLength":"long"}`)
	require.NoError(t, err)
	assert.Equal(t, "long", got.ArticleLength)
	assert.Equal(t, 3, got.MaxRetries, "fields missing from the import revert to defaults")
	require.Len(t, replaced, 1)
	assert.Equal(t, "articleLength", replaced[0].Key)
}

func TestSettingsManager_Import_ParseError(t *testing.T) {
	sm := services.NewSettingsManager(&mocks.SettingRepositoryMock{}, nil, nil)
	for _, text := range []string{"not json", "[1,2]", "null"} {
		_, err := sm.Import(context.Background(), text)
		assert.ErrorIs(t, err, services.ErrSettingsParse, text)
	}
}
