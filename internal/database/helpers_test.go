package database

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/tutoragent/internal/content"
)

func openMemory(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.Context(), MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// fixedClock pins the store's notion of now and returns a setter.
func fixedClock(s *Store, start time.Time) func(time.Time) {
	now := start
	s.now = func() time.Time { return now }
	return func(t time.Time) { now = t }
}

func sampleLanguage() content.Language {
	l := content.NewLanguage("python", "Python")
	l.ID = content.StableID("python")
	l.Color = "#3776ab"
	l.LearningPath = []string{"Variables", "Loops"}
	l.CommunityLinks = []content.Resource{{Title: "Forum", URL: "https://discuss.python.org"}}

	vars := content.NewTopic("Variables", "Storing values", "Variables hold values.")
	vars.ID = content.StableID("python", "variables")
	vars.Tags = []string{"basics"}
	vars.Examples = []content.Example{{
		ID:          content.StableID("python", "variables", "example", "0"),
		Title:       "Assigning a number",
		Code:        "x = 42",
		Explanation: "Binds x",
		Language:    "python",
		Difficulty:  content.DifficultyBeginner,
	}}
	swap := content.NewExercise("Swap two variables", "Swap a and b")
	swap.ID = content.StableID("python", "variables", "exercise", "0")
	swap.Hints = []string{"a, b = b, a"}
	swap.AddTestCase("1 2", "2 1", "")
	vars.Exercises = []content.Exercise{swap}

	loops := content.NewTopic("Loops", "Repeating work", "Use for loops to repeat.")
	loops.ID = content.StableID("python", "loops")
	loops.OrderIndex = 1

	l.Topics = []content.Topic{vars, loops}
	return l
}
