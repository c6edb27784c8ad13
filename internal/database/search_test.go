package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/tutoragent/internal/content"
	"git.home.luguber.info/inful/tutoragent/internal/progress"
)

func TestSearchContent(t *testing.T) {
	s := openMemory(t)
	ctx := t.Context()
	lang := sampleLanguage()
	require.NoError(t, s.SaveLanguage(ctx, lang))

	hits, err := s.SearchContent(ctx, "LOOP", "")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "topic", hits[0].Type)
	assert.Equal(t, "Loops", hits[0].Title)
	assert.Equal(t, "Python", hits[0].LanguageName)
	assert.Nil(t, hits[0].CompletionPercentage)

	hits, err = s.SearchContent(ctx, "python", "")
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "language", hits[0].Type)

	hits, err = s.SearchContent(ctx, "swap", "")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "exercise", hits[0].Type)

	hits, err = s.SearchContent(ctx, "x = 42", "")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "example", hits[0].Type)
}

func TestSearchContentTreatsWildcardsLiterally(t *testing.T) {
	s := openMemory(t)
	require.NoError(t, s.SaveLanguage(t.Context(), sampleLanguage()))
	for _, q := range []string{"%", "_", "  "} {
		hits, err := s.SearchContent(t.Context(), q, "")
		require.NoError(t, err)
		assert.Empty(t, hits, q)
	}
}

func TestSearchContentSkipsInactiveAndUnpublished(t *testing.T) {
	s := openMemory(t)
	ctx := t.Context()
	lang := sampleLanguage()
	lang.Topics[1].IsPublished = false
	require.NoError(t, s.SaveLanguage(ctx, lang))

	hidden := content.NewLanguage("loopy", "Loopy")
	hidden.ID = content.StableID("loopy")
	hidden.IsActive = false
	require.NoError(t, s.SaveLanguage(ctx, hidden))

	hits, err := s.SearchContent(ctx, "loop", "")
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSearchContentAttachesUserProgress(t *testing.T) {
	s := openMemory(t)
	ctx := t.Context()
	lang := sampleLanguage()
	require.NoError(t, s.SaveLanguage(ctx, lang))

	p := progress.NewUserProgress("u1", lang.ID, lang.Topics[1].ID)
	p.Status, p.CompletionPercentage = progress.StatusInProgress, 50
	require.NoError(t, s.SaveUserProgress(ctx, p))

	hits, err := s.SearchContent(ctx, "loop", "u1")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.NotNil(t, hits[0].CompletionPercentage)
	assert.InDelta(t, 50.0, *hits[0].CompletionPercentage, 0.001)
	assert.Equal(t, "in_progress", hits[0].Status)

	hits, err = s.SearchContent(ctx, "loop", "u2")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Nil(t, hits[0].CompletionPercentage)
}
