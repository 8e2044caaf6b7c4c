package services

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionManager_RollbackAppendsNewVersion(t *testing.T) {
	s, _ := newTestServices(t)
	ctx := ctxT(t)
	vm := s.Versions

	original := "Original content that we want to restore"
	_, err := vm.SaveVersion(ctx, "greeting", "paragraph", original, SaveVersionOptions{ChangeDescription: "first"})
	require.NoError(t, err)
	_, err = vm.SaveVersion(ctx, "greeting", "paragraph", "Second draft", SaveVersionOptions{})
	require.NoError(t, err)
	_, err = vm.SaveVersion(ctx, "greeting", "paragraph", "Third draft with {{name}}", SaveVersionOptions{})
	require.NoError(t, err)

	tv, err := vm.Rollback(ctx, "greeting", 1)
	require.NoError(t, err)
	assert.Equal(t, 4, tv.Version)
	assert.Equal(t, original, tv.Content)
	assert.Equal(t, "Rollback to version 1", tv.ChangeDescription)
	assert.Equal(t, 3.0, testutil.ToFloat64(s.Metrics.TemplateVersions.WithLabelValues("save")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.Metrics.TemplateVersions.WithLabelValues("rollback")))

	latest, err := vm.GetLatestVersion(ctx, "greeting")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, 4, latest.Version)
	assert.Equal(t, original, latest.Content)

	versions, err := vm.GetVersions(ctx, "greeting")
	require.NoError(t, err)
	got := make([]int, len(versions))
	for i, v := range versions {
		got[i] = v.Version
	}
	assert.Equal(t, []int{4, 3, 2, 1}, got)

	// history is untouched
	v1, err := vm.GetVersion(ctx, "greeting", 1)
	require.NoError(t, err)
	assert.Equal(t, "first", v1.ChangeDescription)
}

func TestVersionManager_NumbersAreDenseUnderConcurrency(t *testing.T) {
	s, _ := newTestServices(t)
	ctx := ctxT(t)

	const n = 8
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			_, err := s.Versions.SaveVersion(ctx, "busy", "paragraph", "text", SaveVersionOptions{})
			errs <- err
		}()
	}
	for i := 0; i < n; i++ {
		require.NoError(t, <-errs)
	}

	versions, err := s.Versions.GetVersions(ctx, "busy")
	require.NoError(t, err)
	require.Len(t, versions, n)
	for i, v := range versions {
		assert.Equal(t, n-i, v.Version)
	}
}

func TestVersionManager_CompareSelfIsEmpty(t *testing.T) {
	s, _ := newTestServices(t)
	ctx := ctxT(t)
	_, err := s.Versions.SaveVersion(ctx, "t", "paragraph", "line one\nline two", SaveVersionOptions{})
	require.NoError(t, err)

	d, err := s.Versions.Compare(ctx, "t", 1, 1)
	require.NoError(t, err)
	assert.Empty(t, d.Added)
	assert.Empty(t, d.Removed)
	assert.Empty(t, d.Modified)
	assert.Equal(t, "No changes", d.Summary)
}

func TestVersionManager_CompareReportsLineChanges(t *testing.T) {
	s, _ := newTestServices(t)
	ctx := ctxT(t)
	_, err := s.Versions.SaveVersion(ctx, "t", "paragraph", "keep\nold wording\ndrop me", SaveVersionOptions{})
	require.NoError(t, err)
	_, err = s.Versions.SaveVersion(ctx, "t", "paragraph", "keep\nnew wording\ndrop me\nappended", SaveVersionOptions{})
	require.NoError(t, err)

	d, err := s.Versions.Compare(ctx, "t", 1, 2)
	require.NoError(t, err)
	want := &VersionDiff{
		TemplateID: "t",
		From:       1,
		To:         2,
		Added:      []string{"appended"},
		Removed:    []string{},
		Modified:   []LineChange{{Line: 2, Old: "old wording", New: "new wording"}},
		Summary:    "1 added, 1 modified",
	}
	if diff := cmp.Diff(want, d); diff != "" {
		t.Errorf("Compare mismatch (-want +got):\n%s", diff)
	}

	_, err = s.Versions.Compare(ctx, "t", 1, 9)
	assert.ErrorIs(t, err, ErrVersionNotFound)
}

func TestVersionManager_ArchiveHidesAndRestoreShows(t *testing.T) {
	s, _ := newTestServices(t)
	ctx := ctxT(t)
	_, err := s.Versions.SaveVersion(ctx, "a", "paragraph", "x", SaveVersionOptions{})
	require.NoError(t, err)
	_, err = s.Versions.SaveVersion(ctx, "b", "paragraph", "y", SaveVersionOptions{})
	require.NoError(t, err)

	n, err := s.Versions.Archive(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	ids, err := s.Versions.ListTemplateIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids)
	versions, err := s.Versions.GetVersions(ctx, "a")
	require.NoError(t, err)
	assert.Empty(t, versions)

	n, err = s.Versions.Restore(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	ids, err = s.Versions.ListTemplateIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)

	n, err = s.Versions.Archive(ctx, "missing")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestValidateContent(t *testing.T) {
	cases := []struct {
		name  string
		text  string
		valid bool
	}{
		{"plain", "Hello world", true},
		{"placeholders", "Hi {{name}}, see {{ topic.title }}", true},
		{"empty", "   ", false},
		{"unclosed", "Hi {{name", false},
		{"unmatched close", "Hi name}}", false},
		{"nested", "{{a {{b}} }}", false},
		{"empty name", "Hi {{ }}", false},
		{"bad name", "Hi {{1abc}}", false},
		{"too long", strings.Repeat("a", MaxTemplateLength+1), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := ValidateContent(tc.text)
			assert.Equal(t, tc.valid, res.Valid, res.Errors)
			if !tc.valid {
				assert.NotEmpty(t, res.Errors)
			}
		})
	}
}

func TestVersionManager_SaveVersionRejectsInvalid(t *testing.T) {
	s, _ := newTestServices(t)
	ctx := ctxT(t)

	_, err := s.Versions.SaveVersion(ctx, "", "paragraph", "ok", SaveVersionOptions{})
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))

	_, err = s.Versions.SaveVersion(ctx, "t", "paragraph", "{{broken", SaveVersionOptions{})
	require.True(t, errors.As(err, &verr))

	ids, err := s.Versions.ListTemplateIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestExtractVariables(t *testing.T) {
	assert.Equal(t, []string{"name", "topic.title"}, ExtractVariables("{{name}} {{ topic.title }} {{name}}"))
	assert.Empty(t, ExtractVariables("no placeholders"))
}

func TestGenerateTemplateID(t *testing.T) {
	id := GenerateTemplateID("Intro Paragraph", "Tech & Science", 3)
	assert.Regexp(t, `^intro-paragraph_tech-science_3_[0-9a-f]{8}$`, id)

	assert.Regexp(t, `^template_[0-9a-f]{8}$`, GenerateTemplateID("", "", -1))
	assert.NotEqual(t, GenerateTemplateID("a", "b", 1), GenerateTemplateID("a", "b", 1))
}
