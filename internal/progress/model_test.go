package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserProgressValidate(t *testing.T) {
	p := NewUserProgress(" learner ", "lang", "topic")
	p.Status = "IN_PROGRESS"
	require.NoError(t, p.Validate())
	assert.Equal(t, "learner", p.UserID)
	assert.Equal(t, StatusInProgress, p.Status)

	p.CompletionPercentage = 120
	assert.Error(t, p.Validate())

	p.CompletionPercentage = 50
	p.Attempts = -1
	assert.Error(t, p.Validate())

	p.Attempts = 0
	p.Status = "finished"
	assert.Error(t, p.Validate())

	empty := NewUserProgress("", "lang", "topic")
	assert.Error(t, empty.Validate())
}

func TestUserProgressCompletionHelpers(t *testing.T) {
	p := NewUserProgress("u", "l", "t")

	p.MarkExampleCompleted("ex1")
	p.MarkExampleCompleted("ex1")
	assert.Equal(t, []string{"ex1"}, p.CompletedExamples)

	p.MarkExerciseCompleted("x1", 80)
	p.MarkExerciseCompleted("x2", 100)
	p.MarkExerciseCompleted("x1", 60)
	assert.Equal(t, []string{"x1", "x2"}, p.CompletedExercises)
	assert.InDelta(t, 80.0, p.AverageExerciseScore(), 0.001)

	p.AddTimeSpent(15)
	p.AddTimeSpent(5)
	assert.Equal(t, 20, p.TimeSpentMinutes)
}
