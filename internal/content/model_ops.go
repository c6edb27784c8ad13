package content

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
)

var controlKeywords = regexp.MustCompile(`(?i)\b(if|for|while|try|class|def)\b`)

func nonBlankLines(s string) int {
	n := 0
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) != "" {
			n++
		}
	}
	return n
}

// ComplexityScore is the number of non-blank code lines plus the number of
// control-flow keywords.
func (e Example) ComplexityScore() int {
	if e.Code == "" {
		return 0
	}
	return nonBlankLines(e.Code) + len(controlKeywords.FindAllStringIndex(e.Code, -1))
}

// ReadingTimeSeconds estimates reading time at 200 words per minute, counting
// each code line as three words. The result is never below 30 seconds.
func (e Example) ReadingTimeSeconds() int {
	words := len(strings.Fields(e.Explanation)) + 3*nonBlankLines(e.Code)
	return max(30, int(float64(words)/200*60))
}

// DifficultyMultiplier returns the points multiplier for the exercise difficulty.
func (x Exercise) DifficultyMultiplier() float64 { return x.Difficulty.Multiplier() }

// MaxPoints is the difficulty-scaled points value.
func (x Exercise) MaxPoints() int {
	return int(float64(x.Points) * x.DifficultyMultiplier())
}

// AddTestCase appends an auto-grading case with weight 1.
func (x *Exercise) AddTestCase(input, expected any, description string) {
	x.TestCases = append(x.TestCases, TestCase{
		ID:             fmt.Sprintf("test_%d", len(x.TestCases)+1),
		Input:          input,
		ExpectedOutput: expected,
		Description:    description,
		Weight:         1.0,
	})
	x.UpdatedAt = time.Now().UTC()
}

// TotalEstimatedMinutes adds example reading time and exercise time to the topic duration.
func (t Topic) TotalEstimatedMinutes() int {
	total := t.EstimatedDurationMinutes
	for _, ex := range t.Examples {
		total += ex.ReadingTimeSeconds() / 60
	}
	for _, x := range t.Exercises {
		total += x.EstimatedTimeMinutes
	}
	return total
}

// TopicStats summarizes a topic.
type TopicStats struct {
	WordCount               int `json:"word_count"`
	Examples                int `json:"examples_count"`
	Exercises               int `json:"exercises_count"`
	TotalEstimatedMinutes   int `json:"total_estimated_minutes"`
	LearningObjectivesCount int `json:"learning_objectives_count"`
	PrerequisitesCount      int `json:"prerequisites_count"`
}

func (t Topic) Stats() TopicStats {
	return TopicStats{
		WordCount:               len(strings.Fields(t.Content)),
		Examples:                len(t.Examples),
		Exercises:               len(t.Exercises),
		TotalEstimatedMinutes:   t.TotalEstimatedMinutes(),
		LearningObjectivesCount: len(t.LearningObjectives),
		PrerequisitesCount:      len(t.Prerequisites),
	}
}

// Match is one hit of an in-model search.
type Match struct {
	Kind       string `json:"type"`
	Content    string `json:"content"`
	Relevance  int    `json:"relevance"`
	TopicID    string `json:"topic_id,omitempty"`
	TopicTitle string `json:"topic_title,omitempty"`
}

func containsFold(haystack, lowerNeedle string) bool {
	return strings.Contains(strings.ToLower(haystack), lowerNeedle)
}

// SearchContent finds q inside the topic and its examples and exercises.
func (t Topic) SearchContent(q string) []Match {
	q = strings.ToLower(q)
	var out []Match
	if containsFold(t.Title, q) {
		out = append(out, Match{Kind: "title", Content: t.Title, Relevance: 10})
	}
	if containsFold(t.Description, q) {
		out = append(out, Match{Kind: "description", Content: t.Description, Relevance: 8})
	}
	if containsFold(t.Content, q) {
		out = append(out, Match{Kind: "content", Content: t.Content, Relevance: 5})
	}
	for _, ex := range t.Examples {
		if containsFold(ex.Title, q) || containsFold(ex.Explanation, q) || containsFold(ex.Code, q) {
			out = append(out, Match{Kind: "example", Content: ex.Title, Relevance: 6})
		}
	}
	for _, x := range t.Exercises {
		if containsFold(x.Title, q) || containsFold(x.Description, q) {
			out = append(out, Match{Kind: "exercise", Content: x.Title, Relevance: 6})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Relevance > out[j].Relevance })
	return out
}

// TopicByTitle finds a topic by case-insensitive title.
func (l Language) TopicByTitle(title string) (Topic, bool) {
	for _, t := range l.Topics {
		if strings.EqualFold(t.Title, title) {
			return t, true
		}
	}
	return Topic{}, false
}

func (l Language) TopicsByDifficulty(d Difficulty) []Topic {
	var out []Topic
	for _, t := range l.Topics {
		if t.Difficulty == d {
			out = append(out, t)
		}
	}
	return out
}

// LanguageStats summarizes a language course.
type LanguageStats struct {
	TotalTopics              int                `json:"total_topics"`
	TotalExamples            int                `json:"total_examples"`
	TotalExercises           int                `json:"total_exercises"`
	TotalEstimatedMinutes    int                `json:"total_estimated_minutes"`
	DifficultyDistribution   map[Difficulty]int `json:"difficulty_distribution,omitempty"`
	AverageExamplesPerTopic  float64            `json:"average_examples_per_topic"`
	AverageExercisesPerTopic float64            `json:"average_exercises_per_topic"`
}

func (l Language) Stats() LanguageStats {
	if len(l.Topics) == 0 {
		return LanguageStats{}
	}
	st := LanguageStats{
		TotalTopics:            len(l.Topics),
		DifficultyDistribution: make(map[Difficulty]int, len(Difficulties)),
	}
	for _, d := range Difficulties {
		st.DifficultyDistribution[d] = 0
	}
	for _, t := range l.Topics {
		st.TotalExamples += len(t.Examples)
		st.TotalExercises += len(t.Exercises)
		st.TotalEstimatedMinutes += t.TotalEstimatedMinutes()
		st.DifficultyDistribution[t.Difficulty]++
	}
	st.AverageExamplesPerTopic = float64(st.TotalExamples) / float64(len(l.Topics))
	st.AverageExercisesPerTopic = float64(st.TotalExercises) / float64(len(l.Topics))
	return st
}

// ReorderTopics puts the topics with the given IDs first, in that order,
// keeps the remaining topics after them and rewrites every OrderIndex.
func (l *Language) ReorderTopics(ids []string) {
	byID := make(map[string]Topic, len(l.Topics))
	for _, t := range l.Topics {
		byID[t.ID] = t
	}
	listed := make(map[string]bool, len(ids))
	reordered := make([]Topic, 0, len(l.Topics))
	for _, id := range ids {
		if t, ok := byID[id]; ok && !listed[id] {
			listed[id] = true
			reordered = append(reordered, t)
		}
	}
	for _, t := range l.Topics {
		if !listed[t.ID] {
			reordered = append(reordered, t)
		}
	}
	for i := range reordered {
		reordered[i].OrderIndex = i
	}
	l.Topics = reordered
	l.UpdatedAt = time.Now().UTC()
}

// Search finds q in the language name, description and every topic.
func (l Language) Search(q string) []Match {
	lq := strings.ToLower(q)
	var out []Match
	if containsFold(l.Name, lq) {
		out = append(out, Match{Kind: "language", Content: l.Name, Relevance: 15})
	}
	if containsFold(l.Description, lq) {
		out = append(out, Match{Kind: "language_description", Content: l.Description, Relevance: 12})
	}
	for _, t := range l.Topics {
		for _, m := range t.SearchContent(q) {
			m.TopicID, m.TopicTitle = t.ID, t.Title
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Relevance > out[j].Relevance })
	return out
}
