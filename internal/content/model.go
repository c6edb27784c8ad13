package content

import (
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"time"

	ferrors "git.home.luguber.info/inful/tutoragent/internal/foundation/errors"
	"git.home.luguber.info/inful/tutoragent/internal/foundation/normalization"
)

// Difficulty grades lessons and exercises.
type Difficulty string

const (
	DifficultyBeginner Difficulty = "Beginner"
	DifficultyEasy     Difficulty = "Easy"
	DifficultyMedium   Difficulty = "Medium"
	DifficultyHard     Difficulty = "Hard"
	DifficultyAdvanced Difficulty = "Advanced"
	DifficultyExpert   Difficulty = "Expert"
)

// Difficulties lists all levels from easiest to hardest.
var Difficulties = []Difficulty{
	DifficultyBeginner, DifficultyEasy, DifficultyMedium,
	DifficultyHard, DifficultyAdvanced, DifficultyExpert,
}

var difficultyMultipliers = map[Difficulty]float64{
	DifficultyBeginner: 0.8,
	DifficultyEasy:     1.0,
	DifficultyMedium:   1.2,
	DifficultyHard:     1.5,
	DifficultyAdvanced: 2.0,
	DifficultyExpert:   2.5,
}

var difficultyNames = func() *normalization.Normalizer[Difficulty] {
	m := make(map[string]Difficulty, len(Difficulties))
	for _, d := range Difficulties {
		m[string(d)] = d
	}
	return normalization.New("difficulty level", m, DifficultyMedium)
}()

// ParseDifficulty matches s case-insensitively. An empty string yields Medium.
func ParseDifficulty(s string) (Difficulty, error) { return difficultyNames.Parse(s) }

// Multiplier returns the points multiplier; unknown levels count as 1.
func (d Difficulty) Multiplier() float64 {
	if m, ok := difficultyMultipliers[d]; ok {
		return m
	}
	return 1.0
}

// Resource is an external reading link attached to a topic or language.
type Resource struct {
	Title string `json:"title" yaml:"title"`
	URL   string `json:"url" yaml:"url"`
}

// TestCase is one auto-grading case of an exercise.
type TestCase struct {
	ID             string  `json:"id"`
	Input          any     `json:"input"`
	ExpectedOutput any     `json:"expected_output"`
	Description    string  `json:"description,omitempty"`
	Weight         float64 `json:"weight"`
}

// Example is a worked code sample inside a topic.
type Example struct {
	ID              string         `json:"id"`
	Title           string         `json:"title"`
	Code            string         `json:"code"`
	Explanation     string         `json:"explanation"`
	Language        string         `json:"language"`
	Difficulty      Difficulty     `json:"difficulty"`
	Tags            []string       `json:"tags"`
	ExpectedOutput  string         `json:"expected_output,omitempty"`
	ExecutionTimeMS *int           `json:"execution_time_ms,omitempty"`
	MemoryUsageKB   *int           `json:"memory_usage_kb,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// Exercise is a graded practice task inside a topic.
type Exercise struct {
	ID                   string         `json:"id"`
	Title                string         `json:"title"`
	Description          string         `json:"description"`
	Instructions         string         `json:"instructions"`
	StarterCode          string         `json:"starter_code"`
	Solution             string         `json:"solution"`
	Difficulty           Difficulty     `json:"difficulty"`
	EstimatedTimeMinutes int            `json:"estimated_time_minutes"`
	Tags                 []string       `json:"tags"`
	Hints                []string       `json:"hints"`
	TestCases            []TestCase     `json:"test_cases"`
	MaxAttempts          int            `json:"max_attempts"`
	Points               int            `json:"points"`
	Language             string         `json:"language"`
	Metadata             map[string]any `json:"metadata,omitempty"`
	CreatedAt            time.Time      `json:"created_at"`
	UpdatedAt            time.Time      `json:"updated_at"`
}

// Topic is one lesson of a language.
type Topic struct {
	ID                       string         `json:"id"`
	Title                    string         `json:"title"`
	Description              string         `json:"description"`
	Content                  string         `json:"content"`
	LearningObjectives       []string       `json:"learning_objectives"`
	Prerequisites            []string       `json:"prerequisites"`
	Examples                 []Example      `json:"examples"`
	Exercises                []Exercise     `json:"exercises"`
	Difficulty               Difficulty     `json:"difficulty"`
	EstimatedDurationMinutes int            `json:"estimated_duration_minutes"`
	Tags                     []string       `json:"tags"`
	OrderIndex               int            `json:"order_index"`
	IsPublished              bool           `json:"is_published"`
	BestPractices            []string       `json:"best_practices"`
	CommonMistakes           []string       `json:"common_mistakes"`
	AdditionalResources      []Resource     `json:"additional_resources"`
	Fingerprint              string         `json:"fingerprint,omitempty"`
	SourcePath               string         `json:"source_path,omitempty"`
	Metadata                 map[string]any `json:"metadata,omitempty"`
	CreatedAt                time.Time      `json:"created_at"`
	UpdatedAt                time.Time      `json:"updated_at"`
}

// Language is a programming language course: metadata plus ordered topics.
type Language struct {
	ID              string         `json:"id"`
	Key             string         `json:"key"`
	Name            string         `json:"name"`
	Description     string         `json:"description"`
	Icon            string         `json:"icon"`
	Color           string         `json:"color"`
	Version         string         `json:"version"`
	Topics          []Topic        `json:"topics"`
	LearningPath    []string       `json:"learning_path"`
	Difficulty      Difficulty     `json:"difficulty"`
	EstimatedHours  int            `json:"estimated_hours"`
	PopularityScore float64        `json:"popularity_score"`
	IsActive        bool           `json:"is_active"`
	OfficialDocsURL string         `json:"official_docs_url,omitempty"`
	CommunityLinks  []Resource     `json:"community_links"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// NewExercise returns an exercise with the standard defaults applied.
func NewExercise(title, description string) Exercise {
	now := time.Now().UTC()
	return Exercise{
		Title:                title,
		Description:          description,
		Difficulty:           DifficultyMedium,
		EstimatedTimeMinutes: 15,
		MaxAttempts:          5,
		Points:               10,
		Language:             "python",
		CreatedAt:            now,
		UpdatedAt:            now,
	}
}

// NewTopic returns a published topic with the standard defaults applied.
func NewTopic(title, description, body string) Topic {
	now := time.Now().UTC()
	return Topic{
		Title:                    title,
		Description:              description,
		Content:                  body,
		Difficulty:               DifficultyMedium,
		EstimatedDurationMinutes: 30,
		IsPublished:              true,
		CreatedAt:                now,
		UpdatedAt:                now,
	}
}

// NewLanguage returns an active language whose presentation fields carry the defaults.
func NewLanguage(key, name string) Language {
	now := time.Now().UTC()
	return Language{
		Key:            key,
		Name:           name,
		Description:    fmt.Sprintf("Learn %s programming language", name),
		Icon:           "default.png",
		Color:          "#3498db",
		Version:        "1.0.0",
		Difficulty:     DifficultyMedium,
		EstimatedHours: 10,
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

var (
	colorPattern   = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)
	versionPattern = regexp.MustCompile(`^\d+\.\d+\.\d+$`)
	hostPattern    = regexp.MustCompile(`(?i)^((?:[a-z0-9](?:[a-z0-9-]{0,61}[a-z0-9])?\.)+[a-z]{2,63}\.?|localhost|\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3})$`)

	suspiciousCode = []*regexp.Regexp{
		regexp.MustCompile(`(?i)import\s+os`),
		regexp.MustCompile(`(?i)import\s+subprocess`),
		regexp.MustCompile(`(?i)exec\s*\(`),
		regexp.MustCompile(`(?i)eval\s*\(`),
		regexp.MustCompile(`(?i)__import__`),
		regexp.MustCompile(`(?i)open\s*\([^)]*["'][^"']*["'][^)]*["']w`),
	}
)

func invalid(msg string, kv ...any) error {
	b := ferrors.ValidationError(msg)
	for i := 0; i+1 < len(kv); i += 2 {
		b = b.WithContext(fmt.Sprint(kv[i]), kv[i+1])
	}
	return b.Build()
}

func requireText(value *string, field string) error {
	*value = strings.TrimSpace(*value)
	if *value == "" {
		return invalid(field+" cannot be empty", "field", field)
	}
	return nil
}

// ValidateURL accepts absolute http(s) URLs with a plausible host.
func ValidateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || !hostPattern.MatchString(u.Hostname()) {
		return invalid("invalid URL format", "url", raw)
	}
	return nil
}

// checkCode trims code and logs a warning for patterns that touch the host system.
func checkCode(code *string, owner string) error {
	if err := requireText(code, owner+" code"); err != nil {
		return err
	}
	for _, re := range suspiciousCode {
		if re.MatchString(*code) {
			slog.Warn("Potentially dangerous code pattern detected", "pattern", re.String(), "owner", owner)
		}
	}
	return nil
}

func normalizeTags(tags []string) []string {
	out := tags[:0]
	for _, tag := range tags {
		if tag = strings.ToLower(strings.TrimSpace(tag)); tag != "" {
			out = append(out, tag)
		}
	}
	return out
}

func normalizeDifficulty(d *Difficulty) error {
	parsed, err := ParseDifficulty(string(*d))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Validate normalizes e in place and reports the first invalid field.
func (e *Example) Validate() error {
	if err := requireText(&e.Title, "example title"); err != nil {
		return err
	}
	if err := checkCode(&e.Code, "example"); err != nil {
		return err
	}
	if err := requireText(&e.Explanation, "example explanation"); err != nil {
		return err
	}
	e.Language = strings.ToLower(strings.TrimSpace(e.Language))
	if e.Language == "" {
		return invalid("language cannot be empty", "example", e.Title)
	}
	e.Tags = normalizeTags(e.Tags)
	return normalizeDifficulty(&e.Difficulty)
}

// Validate normalizes x in place and reports the first invalid field.
func (x *Exercise) Validate() error {
	if err := requireText(&x.Title, "exercise title"); err != nil {
		return err
	}
	if err := requireText(&x.Description, "exercise description"); err != nil {
		return err
	}
	switch {
	case x.EstimatedTimeMinutes < 1:
		return invalid("estimated time must be at least 1 minute", "exercise", x.Title)
	case x.Points < 0:
		return invalid("points cannot be negative", "exercise", x.Title)
	case x.MaxAttempts < 1:
		return invalid("max attempts must be at least 1", "exercise", x.Title)
	}
	x.Language = strings.ToLower(strings.TrimSpace(x.Language))
	if x.Language == "" {
		return invalid("language cannot be empty", "exercise", x.Title)
	}
	x.Tags = normalizeTags(x.Tags)
	return normalizeDifficulty(&x.Difficulty)
}

// Validate normalizes t and all nested examples and exercises.
func (t *Topic) Validate() error {
	if err := requireText(&t.Title, "topic title"); err != nil {
		return err
	}
	if err := requireText(&t.Description, "topic description"); err != nil {
		return err
	}
	if err := requireText(&t.Content, "topic content"); err != nil {
		return err
	}
	if t.EstimatedDurationMinutes < 1 {
		return invalid("estimated duration must be at least 1 minute", "topic", t.Title)
	}
	if err := normalizeDifficulty(&t.Difficulty); err != nil {
		return err
	}
	for _, r := range t.AdditionalResources {
		if err := ValidateURL(r.URL); err != nil {
			return err
		}
	}
	t.Tags = normalizeTags(t.Tags)
	for i := range t.Examples {
		if err := t.Examples[i].Validate(); err != nil {
			return err
		}
	}
	for i := range t.Exercises {
		if err := t.Exercises[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks language level fields. Topics are validated when loaded.
func (l *Language) Validate() error {
	if err := requireText(&l.Name, "language name"); err != nil {
		return err
	}
	if err := requireText(&l.Description, "language description"); err != nil {
		return err
	}
	if !colorPattern.MatchString(l.Color) {
		return invalid("color must be a valid hex color code", "color", l.Color)
	}
	if !versionPattern.MatchString(l.Version) {
		return invalid("version must be in format X.Y.Z", "version", l.Version)
	}
	if l.EstimatedHours < 1 {
		return invalid("estimated hours must be at least 1", "language", l.Name)
	}
	if l.PopularityScore < 0 || l.PopularityScore > 100 {
		return invalid("popularity score must be between 0 and 100", "language", l.Name)
	}
	if l.OfficialDocsURL != "" {
		if err := ValidateURL(l.OfficialDocsURL); err != nil {
			return err
		}
	}
	for _, link := range l.CommunityLinks {
		if err := ValidateURL(link.URL); err != nil {
			return err
		}
	}
	return normalizeDifficulty(&l.Difficulty)
}
