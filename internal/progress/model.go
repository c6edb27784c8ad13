package progress

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	ferrors "git.home.luguber.info/inful/tutoragent/internal/foundation/errors"
	"git.home.luguber.info/inful/tutoragent/internal/foundation/normalization"
)

// Status is the lifecycle state of a progress record.
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusSkipped    Status = "skipped"
	StatusReview     Status = "review"
)

var statuses = normalization.New("progress status", map[string]Status{
	string(StatusNotStarted): StatusNotStarted,
	string(StatusInProgress): StatusInProgress,
	string(StatusCompleted):  StatusCompleted,
	string(StatusSkipped):    StatusSkipped,
	string(StatusReview):     StatusReview,
}, StatusNotStarted)

// ParseStatus validates s; empty means not started.
func ParseStatus(s string) (Status, error) { return statuses.Parse(s) }

// UserProgress is a learner's record for one topic (or exercise) of a language.
type UserProgress struct {
	ID                   string             `json:"id"`
	UserID               string             `json:"user_id"`
	LanguageID           string             `json:"language_id"`
	TopicID              string             `json:"topic_id"`
	ExerciseID           string             `json:"exercise_id,omitempty"`
	Status               Status             `json:"status"`
	CompletionPercentage float64            `json:"completion_percentage"`
	TimeSpentMinutes     int                `json:"time_spent_minutes"`
	Attempts             int                `json:"attempts"`
	LastAccessed         time.Time          `json:"last_accessed"`
	CompletedExamples    []string           `json:"completed_examples"`
	CompletedExercises   []string           `json:"completed_exercises"`
	ExerciseScores       map[string]float64 `json:"exercise_scores"`
	Notes                string             `json:"notes"`
	Bookmarked           bool               `json:"bookmarked"`
	Metadata             map[string]any     `json:"metadata,omitempty"`
	CreatedAt            time.Time          `json:"created_at"`
	UpdatedAt            time.Time          `json:"updated_at"`
}

// NewUserProgress returns a not-started record with a fresh ID.
func NewUserProgress(userID, languageID, topicID string) *UserProgress {
	now := time.Now().UTC()
	return &UserProgress{
		ID:             uuid.NewString(),
		UserID:         userID,
		LanguageID:     languageID,
		TopicID:        topicID,
		Status:         StatusNotStarted,
		LastAccessed:   now,
		ExerciseScores: map[string]float64{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Validate normalizes identifiers and checks ranges.
func (p *UserProgress) Validate() error {
	for field, v := range map[string]*string{"user id": &p.UserID, "language id": &p.LanguageID, "topic id": &p.TopicID} {
		*v = strings.TrimSpace(*v)
		if *v == "" {
			return ferrors.ValidationError(field + " cannot be empty").Build()
		}
	}
	st, err := ParseStatus(string(p.Status))
	if err != nil {
		return err
	}
	p.Status = st
	switch {
	case p.CompletionPercentage < 0 || p.CompletionPercentage > 100:
		return ferrors.ValidationError("completion percentage must be between 0 and 100").Build()
	case p.TimeSpentMinutes < 0:
		return ferrors.ValidationError("time spent cannot be negative").Build()
	case p.Attempts < 0:
		return ferrors.ValidationError("attempts cannot be negative").Build()
	}
	return nil
}

func (p *UserProgress) touch() {
	now := time.Now().UTC()
	p.LastAccessed, p.UpdatedAt = now, now
}

// MarkExampleCompleted records an example once.
func (p *UserProgress) MarkExampleCompleted(exampleID string) {
	if slices.Contains(p.CompletedExamples, exampleID) {
		return
	}
	p.CompletedExamples = append(p.CompletedExamples, exampleID)
	p.touch()
}

// MarkExerciseCompleted records an exercise once and sets (or overwrites) its score.
func (p *UserProgress) MarkExerciseCompleted(exerciseID string, score float64) {
	if !slices.Contains(p.CompletedExercises, exerciseID) {
		p.CompletedExercises = append(p.CompletedExercises, exerciseID)
	}
	if p.ExerciseScores == nil {
		p.ExerciseScores = map[string]float64{}
	}
	p.ExerciseScores[exerciseID] = score
	p.touch()
}

// AverageExerciseScore is the mean score, 0 without scores.
func (p *UserProgress) AverageExerciseScore() float64 {
	if len(p.ExerciseScores) == 0 {
		return 0
	}
	var sum float64
	for _, s := range p.ExerciseScores {
		sum += s
	}
	return sum / float64(len(p.ExerciseScores))
}

// AddTimeSpent adds study minutes.
func (p *UserProgress) AddTimeSpent(minutes int) {
	p.TimeSpentMinutes += minutes
	p.touch()
}
