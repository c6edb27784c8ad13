package content

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	ferrors "git.home.luguber.info/inful/tutoragent/internal/foundation/errors"
	"git.home.luguber.info/inful/tutoragent/internal/frontmatter"
	"git.home.luguber.info/inful/tutoragent/internal/logfields"
	"git.home.luguber.info/inful/tutoragent/internal/markdown"
)

// LanguagesDir is the directory under the content root holding one directory per language.
const LanguagesDir = "languages"

var (
	metadataFiles = []string{"metadata.yaml", "metadata.yml", "metadata.json"}
	orderPrefix   = regexp.MustCompile(`^\d+[-_.\s]+`)
	idNamespace   = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://tutoragent.local/content"))
	titleCaser    = cases.Title(language.English)
)

// StableID derives a name-based UUID so repeated loads of the same file get
// the same identity.
func StableID(parts ...string) string {
	return uuid.NewSHA1(idNamespace, []byte(strings.Join(parts, "/"))).String()
}

// HumanizeName turns a file or directory name into a display title.
func HumanizeName(name string) string {
	name = orderPrefix.ReplaceAllString(name, "")
	name = strings.NewReplacer("_", " ", "-", " ").Replace(name)
	return titleCaser.String(strings.TrimSpace(name))
}

// Loader reads lesson content from a directory tree.
type Loader struct {
	root string
}

func NewLoader(root string) *Loader { return &Loader{root: root} }

// Root returns the content root directory.
func (l *Loader) Root() string { return l.root }

// LanguagesPath returns the directory scanned for languages.
func (l *Loader) LanguagesPath() string { return filepath.Join(l.root, LanguagesDir) }

// LanguageKeys lists language directories in name order. A missing languages
// directory yields no keys.
func (l *Loader) LanguageKeys() ([]string, error) {
	entries, err := os.ReadDir(l.LanguagesPath())
	if os.IsNotExist(err) {
		slog.Warn("Languages directory not found", logfields.Path(l.LanguagesPath()))
		return nil, nil
	}
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryFileSystem, "read languages directory").
			WithContext("path", l.LanguagesPath()).Build()
	}
	var keys []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), "_") && !strings.HasPrefix(e.Name(), ".") {
			keys = append(keys, e.Name())
		}
	}
	sort.Strings(keys)
	return keys, nil
}

type languageMetadata struct {
	Name            string         `yaml:"name"`
	Description     string         `yaml:"description"`
	Icon            string         `yaml:"icon"`
	Color           string         `yaml:"color"`
	Version         string         `yaml:"version"`
	LearningPath    []string       `yaml:"learning_path"`
	Difficulty      string         `yaml:"difficulty"`
	EstimatedHours  int            `yaml:"estimated_hours"`
	PopularityScore float64        `yaml:"popularity_score"`
	IsActive        *bool          `yaml:"is_active"`
	OfficialDocsURL string         `yaml:"official_docs_url"`
	CommunityLinks  []Resource     `yaml:"community_links"`
	Metadata        map[string]any `yaml:"metadata"`
}

// LoadLanguage reads one language directory: metadata merged over defaults
// plus every topic file. Topics that fail to parse are logged and skipped.
func (l *Loader) LoadLanguage(ctx context.Context, key string) (Language, error) {
	dir := filepath.Join(l.LanguagesPath(), key)
	info, err := os.Stat(dir)
	if err != nil {
		return Language{}, ferrors.WrapError(err, ferrors.CategoryNotFound, "language directory not found").
			WithContext("language", key).Build()
	}

	lang := NewLanguage(key, HumanizeName(key))
	lang.ID = StableID(key)
	lang.CreatedAt, lang.UpdatedAt = info.ModTime().UTC(), info.ModTime().UTC()
	l.applyMetadata(dir, &lang)

	if err := lang.Validate(); err != nil {
		return Language{}, ferrors.WrapError(err, ferrors.CategoryContent, "invalid language metadata").
			WithContext("language", key).Build()
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return Language{}, ferrors.WrapError(err, ferrors.CategoryFileSystem, "read language directory").
			WithContext("language", key).Build()
	}
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return Language{}, err
		}
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, "_") || !strings.EqualFold(filepath.Ext(name), ".md") {
			continue
		}
		topic, err := l.LoadTopic(filepath.Join(dir, name), key)
		if err != nil {
			slog.Warn("Skipping topic", logfields.Language(key), logfields.Path(name), logfields.Error(err))
			continue
		}
		lang.Topics = append(lang.Topics, topic)
	}

	sort.SliceStable(lang.Topics, func(i, j int) bool {
		a, b := lang.Topics[i], lang.Topics[j]
		if a.OrderIndex != b.OrderIndex {
			return a.OrderIndex < b.OrderIndex
		}
		return a.Title < b.Title
	})
	for i := range lang.Topics {
		lang.Topics[i].OrderIndex = i
	}
	return lang, nil
}

func (l *Loader) applyMetadata(dir string, lang *Language) {
	for _, name := range metadataFiles {
		path := filepath.Join(dir, name)
		raw, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			slog.Warn("Cannot read language metadata", logfields.Path(path), logfields.Error(err))
			return
		}

		meta := languageMetadata{
			Name:           lang.Name,
			Icon:           lang.Icon,
			Color:          lang.Color,
			Version:        lang.Version,
			Difficulty:     string(lang.Difficulty),
			EstimatedHours: lang.EstimatedHours,
		}
		// JSON is valid YAML, so one decoder covers every metadata format.
		if err := yaml.Unmarshal(raw, &meta); err != nil {
			slog.Warn("Invalid language metadata, using defaults", logfields.Path(path), logfields.Error(err))
			return
		}

		lang.Name = meta.Name
		if meta.Description != "" {
			lang.Description = meta.Description
		}
		lang.Icon, lang.Color, lang.Version = meta.Icon, meta.Color, meta.Version
		lang.Difficulty = Difficulty(meta.Difficulty)
		lang.LearningPath = meta.LearningPath
		lang.EstimatedHours = meta.EstimatedHours
		lang.PopularityScore = meta.PopularityScore
		lang.OfficialDocsURL = meta.OfficialDocsURL
		lang.CommunityLinks = meta.CommunityLinks
		lang.Metadata = meta.Metadata
		if meta.IsActive != nil {
			lang.IsActive = *meta.IsActive
		}
		return
	}
}

type topicFrontmatter struct {
	UID                      string         `yaml:"uid"`
	Title                    string         `yaml:"title"`
	Description              string         `yaml:"description"`
	Difficulty               string         `yaml:"difficulty"`
	EstimatedDurationMinutes int            `yaml:"estimated_duration_minutes"`
	Order                    int            `yaml:"order"`
	Tags                     []string       `yaml:"tags"`
	LearningObjectives       []string       `yaml:"learning_objectives"`
	Prerequisites            []string       `yaml:"prerequisites"`
	BestPractices            []string       `yaml:"best_practices"`
	CommonMistakes           []string       `yaml:"common_mistakes"`
	Resources                []Resource     `yaml:"resources"`
	Published                *bool          `yaml:"published"`
	Metadata                 map[string]any `yaml:"metadata"`
}

// LoadTopic parses one Markdown lesson file.
func (l *Loader) LoadTopic(path, langKey string) (Topic, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Topic{}, ferrors.WrapError(err, ferrors.CategoryFileSystem, "read topic file").
			WithContext("path", path).Build()
	}
	info, err := os.Stat(path)
	if err != nil {
		return Topic{}, ferrors.WrapError(err, ferrors.CategoryFileSystem, "stat topic file").
			WithContext("path", path).Build()
	}
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	topic, err := ParseTopic(raw, langKey, stem)
	if err != nil {
		return Topic{}, err
	}
	rel, _ := filepath.Rel(l.root, path)
	topic.SourcePath = filepath.ToSlash(rel)
	topic.CreatedAt, topic.UpdatedAt = info.ModTime().UTC(), info.ModTime().UTC()
	return topic, nil
}

// ParseTopic builds a Topic from a lesson document. stem is the file name
// without extension and seeds the default title and the stable IDs.
func ParseTopic(raw []byte, langKey, stem string) (Topic, error) {
	fmRaw, body, _, err := frontmatter.Split(raw)
	if err != nil {
		return Topic{}, ferrors.WrapError(err, ferrors.CategoryContent, "split frontmatter").Build()
	}
	fm := topicFrontmatter{}
	if err := frontmatter.Decode(fmRaw, &fm); err != nil {
		return Topic{}, ferrors.WrapError(err, ferrors.CategoryContent, "parse frontmatter").Build()
	}

	topic := NewTopic(fm.Title, fm.Description, "")
	if topic.Title == "" {
		topic.Title = HumanizeName(stem)
	}
	topic.ID = fm.UID
	if topic.ID == "" {
		topic.ID = StableID(langKey, stem)
	}
	topic.Difficulty = Difficulty(fm.Difficulty)
	if fm.EstimatedDurationMinutes != 0 {
		topic.EstimatedDurationMinutes = fm.EstimatedDurationMinutes
	}
	topic.OrderIndex = fm.Order
	topic.Tags = fm.Tags
	topic.LearningObjectives = fm.LearningObjectives
	topic.Prerequisites = fm.Prerequisites
	topic.BestPractices = fm.BestPractices
	topic.CommonMistakes = fm.CommonMistakes
	topic.AdditionalResources = fm.Resources
	topic.Metadata = fm.Metadata
	if fm.Published != nil {
		topic.IsPublished = *fm.Published
	}
	topic.Fingerprint = frontmatter.Fingerprint(fmRaw, body)

	var bodyParts []string
	for _, sec := range markdown.Sections(body) {
		switch sec.Kind {
		case markdown.SectionBody:
			bodyParts = append(bodyParts, sec.Markdown)
		case markdown.SectionExample:
			ex := buildExample(sec, langKey, topic.Difficulty)
			ex.ID = StableID(langKey, stem, "example", fmt.Sprint(len(topic.Examples)))
			if err := ex.Validate(); err != nil {
				slog.Warn("Skipping example", logfields.Language(langKey), logfields.Topic(topic.Title), logfields.Error(err))
				continue
			}
			topic.Examples = append(topic.Examples, ex)
		case markdown.SectionExercise:
			x := buildExercise(sec, langKey, topic.Difficulty)
			x.ID = StableID(langKey, stem, "exercise", fmt.Sprint(len(topic.Exercises)))
			if err := x.Validate(); err != nil {
				slog.Warn("Skipping exercise", logfields.Language(langKey), logfields.Topic(topic.Title), logfields.Error(err))
				continue
			}
			topic.Exercises = append(topic.Exercises, x)
		}
	}
	topic.Content = strings.Join(bodyParts, "\n\n")

	if topic.Description == "" {
		topic.Description = firstParagraph(topic.Content)
	}
	if err := topic.Validate(); err != nil {
		return Topic{}, err
	}
	return topic, nil
}

func firstParagraph(md string) string {
	blocks := markdown.ParseBlocks([]byte(md))
	if len(blocks.Paragraphs) == 0 {
		return ""
	}
	plain, err := markdown.PlainText([]byte(blocks.Paragraphs[0]))
	if err != nil {
		return ""
	}
	const maxLen = 200
	if r := []rune(plain); len(r) > maxLen {
		return string(r[:maxLen-3]) + "..."
	}
	return plain
}

func buildExample(sec markdown.Section, langKey string, d Difficulty) Example {
	blocks := markdown.ParseBlocks([]byte(sec.Markdown))
	now := time.Now().UTC()
	ex := Example{
		Title:       sec.Title,
		Explanation: strings.Join(blocks.Paragraphs, "\n\n"),
		Language:    langKey,
		Difficulty:  d,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for _, cb := range blocks.Code {
		switch {
		case cb.Info == "output":
			ex.ExpectedOutput = cb.Code
		case ex.Code == "":
			ex.Code = cb.Code
			if cb.Info != "" {
				ex.Language = cb.Info
			}
		}
	}
	return ex
}

func buildExercise(sec markdown.Section, langKey string, d Difficulty) Exercise {
	blocks := markdown.ParseBlocks([]byte(sec.Markdown))
	x := NewExercise(sec.Title, "")
	x.Language = langKey
	x.Difficulty = d
	if len(blocks.Paragraphs) > 0 {
		x.Description = blocks.Paragraphs[0]
		x.Instructions = strings.Join(blocks.Paragraphs[1:], "\n\n")
	}
	for _, q := range blocks.Quotes {
		if hint, ok := cutPrefixFold(q, "hint:"); ok {
			x.Hints = append(x.Hints, strings.TrimSpace(hint))
		}
	}
	for _, cb := range blocks.Code {
		switch {
		case cb.Info == "solution":
			x.Solution = cb.Code
		case cb.Info == "output":
			x.AddTestCase(nil, cb.Code, "expected program output")
		case x.StarterCode == "":
			x.StarterCode = cb.Code
		}
	}
	return x
}

func cutPrefixFold(s, prefix string) (string, bool) {
	if len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix) {
		return s[len(prefix):], true
	}
	return s, false
}
