package unit_tests

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sona/internal/models"
	"sona/internal/services"
	"sona/internal/tests/mocks"
)

func newExportImport(knowledge *mocks.KnowledgeRepositoryMock, versions *mocks.TemplateVersionRepositoryMock) *services.ExportImportManager {
	vm := services.NewVersionManager(versions, nil, nil)
	sm := services.NewSettingsManager(&mocks.SettingRepositoryMock{}, nil, nil)
	return services.NewExportImportManager(knowledge, vm, sm, nil, nil)
}

func TestExportImport_Export_PropagatesStoreError(t *testing.T) {
	knowledge := &mocks.KnowledgeRepositoryMock{
		GetFunc: func(ctx context.Context, name string) (*models.KnowledgeSection, error) { return nil, assert.AnError },
	}
	e := newExportImport(knowledge, &mocks.TemplateVersionRepositoryMock{})

	_, err := e.Export(context.Background(), services.AllSections())
	assert.ErrorIs(t, err, assert.AnError)

	data, err := e.Export(context.Background(), services.ExportOptions{IncludeSettings: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"settings"}, data.Metadata.Contents)
}

func TestExportImport_ImportJSON_DeepMergesKnowledge(t *testing.T) {
	saved := map[string]string{}
	knowledge := &mocks.KnowledgeRepositoryMock{
		GetFunc: func(ctx context.Context, name string) (*models.KnowledgeSection, error) {
			if name == "knowledge" {
				return &models.KnowledgeSection{Name: name, Data: `{"a":{"x":1},"list":[1,2]}`}, nil
			}
			return nil, nil
		},
		SaveFunc: func(ctx context.Context, name, data string) error {
			saved[name] = data
			return nil
		},
	}
	e := newExportImport(knowledge, &mocks.TemplateVersionRepositoryMock{})

	res := e.ImportJSON(context.Background(), []byte(`{
		"metadata": {"version": "1.0"},
		"knowledge": {"a": {"y": 2}, "list": [2, 3], "b": true}
	}`))
	require.True(t, res.Success, res.Errors)
	assert.Equal(t, 3, res.Imported.Knowledge)
	assert.JSONEq(t, `{"a":{"x":1,"y":2},"list":[1,2,3],"b":true}`, saved["knowledge"])
}

func TestExportImport_ImportJSON_UnionsSynonyms(t *testing.T) {
	saved := ""
	knowledge := &mocks.KnowledgeRepositoryMock{
		GetFunc: func(ctx context.Context, name string) (*models.KnowledgeSection, error) {
			if name == "synonyms" {
				return &models.KnowledgeSection{Name: name, Data: `{"big":["large"]}`}, nil
			}
			return nil, nil
		},
		SaveFunc: func(ctx context.Context, name, data string) error {
			if name == "synonyms" {
				saved = data
			}
			return nil
		},
	}
	e := newExportImport(knowledge, &mocks.TemplateVersionRepositoryMock{})

	res := e.ImportJSON(context.Background(), []byte(`{
		"metadata": {"version": "1.0"},
		"synonyms": {"big": ["huge", "large"], "small": ["tiny"]}
	}`))
	require.True(t, res.Success, res.Errors)
	assert.Equal(t, 2, res.Imported.Synonyms)

	var got map[string][]string
	require.NoError(t, json.Unmarshal([]byte(saved), &got))
	assert.Equal(t, map[string][]string{"big": {"large", "huge"}, "small": {"tiny"}}, got)
}

func TestExportImport_ImportJSON_PartialFailureKeepsAppliedSections(t *testing.T) {
	knowledge := &mocks.KnowledgeRepositoryMock{
		SaveFunc: func(ctx context.Context, name, data string) error {
			if name == "phrases" {
				return assert.AnError
			}
			return nil
		},
	}
	e := newExportImport(knowledge, &mocks.TemplateVersionRepositoryMock{})

	res := e.ImportJSON(context.Background(), []byte(`{
		"metadata": {"version": "1.0"},
		"knowledge": {"k": 1},
		"phrases": {"p": ["x"]}
	}`))
	assert.False(t, res.Success)
	assert.Equal(t, 1, res.Imported.Knowledge)
	assert.Zero(t, res.Imported.Phrases)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "phrases:")
}

func TestExportImport_ImportJSON_SkipsUnchangedTemplates(t *testing.T) {
	var created []string
	versions := &mocks.TemplateVersionRepositoryMock{
		LatestFunc: func(ctx context.Context, id string) (*models.TemplateVersion, error) {
			if id == "same" {
				return &models.TemplateVersion{TemplateID: id, Version: 2, Type: "intro", Content: "unchanged"}, nil
			}
			return nil, nil
		},
		CreateNextFunc: func(ctx context.Context, v *models.TemplateVersion) error {
			created = append(created, v.TemplateID)
			assert.Equal(t, "Imported", v.ChangeDescription)
			assert.Equal(t, "import", v.CreatedBy)
			v.Version = 1
			return nil
		},
	}
	e := newExportImport(&mocks.KnowledgeRepositoryMock{}, versions)

	res := e.ImportJSON(context.Background(), []byte(`{
		"metadata": {"version": "1.0"},
		"templates": {
			"same": {"type": "intro", "content": "unchanged"},
			"fresh": {"type": "outro", "content": "Bye {{name}}"},
			"broken": {"type": "outro", "content": "Bye {{name"}
		}
	}`))
	assert.False(t, res.Success)
	assert.Equal(t, 1, res.Imported.Templates)
	assert.Equal(t, []string{"fresh"}, created)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "templates.broken")
}

func TestExportImport_ImportJSON_SettingsErrorsArePrefixed(t *testing.T) {
	e := newExportImport(&mocks.KnowledgeRepositoryMock{}, &mocks.TemplateVersionRepositoryMock{})

	res := e.ImportJSON(context.Background(), []byte(`{
		"metadata": {"version": "1.0"},
		"settings": {"maxRetries": 0}
	}`))
	assert.False(t, res.Success)
	require.NotEmpty(t, res.Errors)
	assert.Contains(t, res.Errors[0], "settings: maxRetries")
	assert.Zero(t, res.Imported.Settings)
}

func TestExportImport_Validate_Shapes(t *testing.T) {
	e := newExportImport(&mocks.KnowledgeRepositoryMock{}, &mocks.TemplateVersionRepositoryMock{})

	cases := []struct {
		name     string
		doc      string
		valid    bool
		warnings int
	}{
		{"minimal", `{"metadata":{"version":"1.0"}}`, true, 0},
		{"no version", `{"metadata":{}}`, true, 1},
		{"other version", `{"metadata":{"version":"2.0"}}`, true, 1},
		{"no metadata", `{"knowledge":{}}`, false, 0},
		{"not an object", `[1,2]`, false, 0},
		{"synonym not array", `{"metadata":{"version":"1.0"},"synonyms":{"a":"b"}}`, false, 0},
		{"settings not object", `{"metadata":{"version":"1.0"},"settings":[]}`, false, 0},
		{"template without content", `{"metadata":{"version":"1.0"},"templates":{"t":{"type":"x"}}}`, false, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := e.ImportJSON(context.Background(), []byte(tc.doc))
			if tc.valid {
				assert.True(t, res.Success, res.Errors)
			} else {
				assert.False(t, res.Success)
				assert.NotEmpty(t, res.Errors)
			}
			assert.Len(t, res.Warnings, tc.warnings)
		})
	}
}
