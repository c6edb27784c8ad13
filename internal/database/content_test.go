package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/tutoragent/internal/content"
)

func TestSaveAndLoadLanguage(t *testing.T) {
	s := openMemory(t)
	ctx := t.Context()
	want := sampleLanguage()
	want.Metadata = map[string]any{"source": "fixture"}
	require.NoError(t, s.SaveLanguage(ctx, want))

	got, err := s.Language(ctx, want.ID)
	require.NoError(t, err)
	assert.Equal(t, "python", got.Key)
	assert.Equal(t, "Python", got.Name)
	assert.Equal(t, "#3776ab", got.Color)
	assert.Equal(t, want.LearningPath, got.LearningPath)
	assert.Equal(t, want.CommunityLinks, got.CommunityLinks)
	assert.Equal(t, map[string]any{"source": "fixture"}, got.Metadata)
	assert.True(t, got.IsActive)
	assert.True(t, want.CreatedAt.Equal(got.CreatedAt))

	require.Len(t, got.Topics, 2)
	assert.Equal(t, "Variables", got.Topics[0].Title)
	assert.Equal(t, "Loops", got.Topics[1].Title)
	assert.Equal(t, []string{"basics"}, got.Topics[0].Tags)
	assert.Empty(t, got.Topics[1].Tags)
	assert.NotNil(t, got.Topics[1].Tags, "empty JSON lists decode to empty slices")

	require.Len(t, got.Topics[0].Examples, 1)
	ex := got.Topics[0].Examples[0]
	assert.Equal(t, "x = 42", ex.Code)
	assert.Equal(t, content.DifficultyBeginner, ex.Difficulty)
	assert.Nil(t, ex.ExecutionTimeMS)

	require.Len(t, got.Topics[0].Exercises, 1)
	x := got.Topics[0].Exercises[0]
	assert.Equal(t, []string{"a, b = b, a"}, x.Hints)
	require.Len(t, x.TestCases, 1)
	assert.Equal(t, "test_1", x.TestCases[0].ID)
	assert.Equal(t, "2 1", x.TestCases[0].ExpectedOutput)
	assert.Equal(t, 5, x.MaxAttempts)
}

func TestSaveLanguageReplacesChildren(t *testing.T) {
	s := openMemory(t)
	ctx := t.Context()
	lang := sampleLanguage()
	require.NoError(t, s.SaveLanguage(ctx, lang))

	lang.Description = "Updated"
	lang.Topics = lang.Topics[:1]
	lang.Topics[0].Exercises = nil
	require.NoError(t, s.SaveLanguage(ctx, lang))

	got, err := s.Language(ctx, lang.ID)
	require.NoError(t, err)
	assert.Equal(t, "Updated", got.Description)
	require.Len(t, got.Topics, 1)
	assert.Empty(t, got.Topics[0].Exercises)
	assert.Len(t, got.Topics[0].Examples, 1)
}

func TestLanguagesListsActiveByName(t *testing.T) {
	s := openMemory(t)
	ctx := t.Context()
	require.NoError(t, s.SaveLanguage(ctx, sampleLanguage()))

	goLang := content.NewLanguage("go", "Go")
	goLang.ID = content.StableID("go")
	require.NoError(t, s.SaveLanguage(ctx, goLang))

	cobol := content.NewLanguage("cobol", "COBOL")
	cobol.ID = content.StableID("cobol")
	cobol.IsActive = false
	require.NoError(t, s.SaveLanguage(ctx, cobol))

	langs, err := s.Languages(ctx)
	require.NoError(t, err)
	require.Len(t, langs, 2)
	assert.Equal(t, "Go", langs[0].Name)
	assert.Equal(t, "Python", langs[1].Name)
	assert.Empty(t, langs[0].Topics)
}

func TestLanguageNotFound(t *testing.T) {
	s := openMemory(t)
	_, err := s.Language(t.Context(), "missing")
	assert.ErrorIs(t, err, ErrLanguageNotFound)
}
