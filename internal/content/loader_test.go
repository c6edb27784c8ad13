package content

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLanguageKeys(t *testing.T) {
	l := NewLoader(fixtureContent(t))
	keys, err := l.LanguageKeys()
	require.NoError(t, err)
	assert.Equal(t, []string{"go", "python"}, keys)

	empty := NewLoader(t.TempDir())
	keys, err = empty.LanguageKeys()
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestLoadLanguageWithMetadata(t *testing.T) {
	l := NewLoader(fixtureContent(t))
	lang, err := l.LoadLanguage(t.Context(), "python")
	require.NoError(t, err)

	assert.Equal(t, "python", lang.Key)
	assert.Equal(t, "Python", lang.Name)
	assert.Equal(t, "A friendly language", lang.Description)
	assert.Equal(t, "#3776ab", lang.Color)
	assert.Equal(t, "default.png", lang.Icon)
	assert.Equal(t, 40, lang.EstimatedHours)
	assert.Equal(t, StableID("python"), lang.ID)

	require.Len(t, lang.Topics, 3)
	titles := []string{lang.Topics[0].Title, lang.Topics[1].Title, lang.Topics[2].Title}
	assert.Equal(t, []string{"Variables", "Loops", "Functions"}, titles)
	assert.Equal(t, 2, lang.Topics[2].OrderIndex)
}

func TestLoadTopicSections(t *testing.T) {
	l := NewLoader(fixtureContent(t))
	lang, err := l.LoadLanguage(t.Context(), "python")
	require.NoError(t, err)
	topic := lang.Topics[0]

	assert.Equal(t, StableID("python", "variables"), topic.ID)
	assert.Equal(t, DifficultyBeginner, topic.Difficulty)
	assert.Equal(t, []string{"basics", "names"}, topic.Tags)
	assert.Equal(t, "Variables hold values. Use assignment to bind a name.", topic.Content)
	assert.Equal(t, "languages/python/variables.md", topic.SourcePath)
	assert.NotEmpty(t, topic.Fingerprint)
	require.Len(t, topic.AdditionalResources, 1)

	require.Len(t, topic.Examples, 1)
	ex := topic.Examples[0]
	assert.Equal(t, "Assigning a number", ex.Title)
	assert.Equal(t, "x = 42\nprint(x)", ex.Code)
	assert.Equal(t, "42", ex.ExpectedOutput)
	assert.Equal(t, "python", ex.Language)
	assert.Equal(t, "Binds the name x to 42.", ex.Explanation)

	require.Len(t, topic.Exercises, 1)
	x := topic.Exercises[0]
	assert.Equal(t, "Swap two variables", x.Title)
	assert.Equal(t, "Swap the values of a and b.", x.Description)
	assert.Equal(t, "Use tuple unpacking.", x.Instructions)
	assert.Equal(t, []string{"a, b = b, a"}, x.Hints)
	assert.Equal(t, "a, b = 1, 2", x.StarterCode)
	assert.Equal(t, "a, b = b, a", x.Solution)
	assert.Equal(t, 10, x.Points)
}

func TestLoadLanguageDefaults(t *testing.T) {
	l := NewLoader(fixtureContent(t))
	lang, err := l.LoadLanguage(t.Context(), "go")
	require.NoError(t, err)

	assert.Equal(t, "Go", lang.Name)
	assert.Equal(t, "Learn Go programming language", lang.Description)
	assert.Equal(t, DifficultyMedium, lang.Difficulty)
	require.Len(t, lang.Topics, 1)
	assert.Equal(t, "Goroutines", lang.Topics[0].Title)
	assert.Equal(t, "Goroutines run functions concurrently. Loops can spawn them.", lang.Topics[0].Description)
}

func TestBrokenMetadataFallsBackToDefaults(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"languages/rust/metadata.json": "{not json",
		"languages/rust/ownership.md":  "Ownership rules.\n",
	})
	lang, err := NewLoader(root).LoadLanguage(t.Context(), "rust")
	require.NoError(t, err)
	assert.Equal(t, "Rust", lang.Name)
	assert.Len(t, lang.Topics, 1)
}

func TestInvalidTopicsAreSkipped(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"languages/c/empty.md":    "---\ntitle: Empty\ndescription: nothing\n---\n",
		"languages/c/unclosed.md": "---\ntitle: Broken\n",
		"languages/c/pointers.md": "Pointers hold addresses.\n",
	})
	lang, err := NewLoader(root).LoadLanguage(t.Context(), "c")
	require.NoError(t, err)
	require.Len(t, lang.Topics, 1)
	assert.Equal(t, "Pointers", lang.Topics[0].Title)
}

func TestLoadLanguageMissing(t *testing.T) {
	_, err := NewLoader(t.TempDir()).LoadLanguage(t.Context(), "nope")
	require.Error(t, err)
}

func TestHumanizeName(t *testing.T) {
	assert.Equal(t, "Error Handling", HumanizeName("02_error-handling"))
	assert.Equal(t, "Csharp", HumanizeName("csharp"))
}
