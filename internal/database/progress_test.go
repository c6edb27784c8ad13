package database

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/tutoragent/internal/progress"
)

func TestUserProgressRoundTripAndFilters(t *testing.T) {
	s := openMemory(t)
	ctx := t.Context()
	lang := sampleLanguage()
	require.NoError(t, s.SaveLanguage(ctx, lang))
	vars, loops := lang.Topics[0], lang.Topics[1]

	older := progress.NewUserProgress("u1", lang.ID, vars.ID)
	older.Status = progress.StatusCompleted
	older.CompletionPercentage = 100
	older.MarkExerciseCompleted(vars.Exercises[0].ID, 80)
	older.LastAccessed = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.SaveUserProgress(ctx, older))

	newer := progress.NewUserProgress("u1", lang.ID, loops.ID)
	newer.Status = progress.StatusInProgress
	newer.CompletionPercentage = 40
	newer.LastAccessed = time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.SaveUserProgress(ctx, newer))

	other := progress.NewUserProgress("u2", lang.ID, loops.ID)
	require.NoError(t, s.SaveUserProgress(ctx, other))

	all, err := s.UserProgress(ctx, "u1", "", "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, newer.ID, all[0].ID, "most recent first")
	assert.Equal(t, map[string]float64{vars.Exercises[0].ID: 80}, all[1].ExerciseScores)
	assert.Equal(t, []string{vars.Exercises[0].ID}, all[1].CompletedExercises)
	assert.Equal(t, progress.StatusCompleted, all[1].Status)

	byTopic, err := s.UserProgress(ctx, "u1", lang.ID, vars.ID)
	require.NoError(t, err)
	require.Len(t, byTopic, 1)
	assert.Equal(t, older.ID, byTopic[0].ID)

	newer.CompletionPercentage = 60
	require.NoError(t, s.SaveUserProgress(ctx, newer))
	byTopic, err = s.UserProgress(ctx, "u1", "", loops.ID)
	require.NoError(t, err)
	require.Len(t, byTopic, 1)
	assert.InDelta(t, 60.0, byTopic[0].CompletionPercentage, 0.001)
}

func TestSaveUserProgressValidates(t *testing.T) {
	s := openMemory(t)
	p := progress.NewUserProgress("u1", "lang", "topic")
	p.CompletionPercentage = 120
	require.Error(t, s.SaveUserProgress(t.Context(), p))

	p = progress.NewUserProgress(" ", "lang", "topic")
	require.Error(t, s.SaveUserProgress(t.Context(), p))
}

func TestSessions(t *testing.T) {
	s := openMemory(t)
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	setNow := fixedClock(s, start)

	id, err := s.StartSession(t.Context(), "u1", "practice")
	require.NoError(t, err)

	setNow(start.Add(45*time.Minute + 30*time.Second))
	sess, err := s.EndSession(t.Context(), id, SessionSummary{LanguagesAccessed: []string{"python"}, TopicsCompleted: 2})
	require.NoError(t, err)
	assert.Equal(t, 45, sess.DurationMinutes)
	assert.Equal(t, "u1", sess.UserID)
	assert.Equal(t, "practice", sess.SessionType)
	assert.True(t, start.Equal(sess.StartTime))

	_, err = s.EndSession(t.Context(), "nope", SessionSummary{})
	require.ErrorIs(t, err, ErrSessionNotFound)

	_, err = s.StartSession(t.Context(), "", "practice")
	require.Error(t, err)
}

func TestLearningStatistics(t *testing.T) {
	s := openMemory(t)
	ctx := t.Context()
	fixedClock(s, time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))

	require.NoError(t, s.RecordLearningDay(ctx, "u1", DailyStat{Date: "2026-01-01", TotalTimeMinutes: 999, StreakDays: 9}))
	require.NoError(t, s.RecordLearningDay(ctx, "u1", DailyStat{Date: "2026-03-09", TotalTimeMinutes: 30, TopicsCompleted: 1, StreakDays: 2}))
	require.NoError(t, s.RecordLearningDay(ctx, "u1", DailyStat{TotalTimeMinutes: 5, StreakDays: 1}))
	// Same day again replaces the row.
	require.NoError(t, s.RecordLearningDay(ctx, "u1", DailyStat{
		Date: "2026-03-10", TotalTimeMinutes: 20, TopicsCompleted: 2, ExercisesCompleted: 1,
		LanguagesPracticed: []string{"python"}, StreakDays: 3,
	}))
	require.NoError(t, s.RecordLearningDay(ctx, "u2", DailyStat{Date: "2026-03-10", TotalTimeMinutes: 60}))
	require.Error(t, s.RecordLearningDay(ctx, "u1", DailyStat{Date: "10/03/2026"}))

	lang := sampleLanguage()
	require.NoError(t, s.SaveLanguage(ctx, lang))
	done := progress.NewUserProgress("u1", lang.ID, lang.Topics[0].ID)
	done.Status, done.CompletionPercentage = progress.StatusCompleted, 100
	require.NoError(t, s.SaveUserProgress(ctx, done))
	half := progress.NewUserProgress("u1", lang.ID, lang.Topics[1].ID)
	half.Status, half.CompletionPercentage = progress.StatusInProgress, 50
	require.NoError(t, s.SaveUserProgress(ctx, half))

	stats, err := s.LearningStatistics(ctx, "u1", 30)
	require.NoError(t, err)
	require.Len(t, stats.Daily, 2)
	assert.Equal(t, "2026-03-10", stats.Daily[0].Date)
	assert.Equal(t, []string{"python"}, stats.Daily[0].LanguagesPracticed)
	assert.Equal(t, StatsSummary{
		TotalTimeMinutes:        50,
		TotalTopicsCompleted:    3,
		TotalExercisesCompleted: 1,
		CurrentStreakDays:       3,
		AvgCompletionPercentage: 75,
		TotalProgressItems:      2,
		CompletedItems:          1,
	}, stats.Summary)

	empty, err := s.LearningStatistics(ctx, "nobody", 0)
	require.NoError(t, err)
	assert.Empty(t, empty.Daily)
	assert.Equal(t, StatsSummary{}, empty.Summary)
}
