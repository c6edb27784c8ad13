package content

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// SearchResult is one topic hit of Manager.Search.
type SearchResult struct {
	Language     string     `json:"language"`
	LanguageName string     `json:"language_name"`
	TopicID      string     `json:"topic_id"`
	Topic        string     `json:"topic"`
	Description  string     `json:"description"`
	Difficulty   Difficulty `json:"difficulty"`
	Relevance    int        `json:"relevance"`
}

// Topic scoring weights for Manager.Search.
const (
	scoreTitle       = 10
	scoreDescription = 5
	scoreContent     = 3
	scorePerExample  = 2
	scorePerExercise = 2
)

// ScoreTopic applies the fixed topic scoring table to a lower-cased query.
func ScoreTopic(t Topic, lowerQuery string) int {
	score := 0
	if containsFold(t.Title, lowerQuery) {
		score += scoreTitle
	}
	if containsFold(t.Description, lowerQuery) {
		score += scoreDescription
	}
	if containsFold(t.Content, lowerQuery) {
		score += scoreContent
	}
	for _, ex := range t.Examples {
		if containsFold(ex.Title, lowerQuery) || containsFold(ex.Code, lowerQuery) || containsFold(ex.Explanation, lowerQuery) {
			score += scorePerExample
		}
	}
	for _, x := range t.Exercises {
		if containsFold(x.Title, lowerQuery) || containsFold(x.Description, lowerQuery) {
			score += scorePerExercise
		}
	}
	return score
}

// Search scans every topic linearly. A blank query returns nothing. When
// language names a loaded language key only that language is searched,
// otherwise all languages are. Results are ordered by relevance, ties keep
// course order, and at most the configured maximum is returned.
func (m *Manager) Search(ctx context.Context, query, language string) (results []SearchResult, err error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil, nil
	}
	defer m.monitor.Track("search")(&err)

	langs, err := m.Languages(ctx)
	if err != nil {
		return nil, err
	}
	if language != "" {
		for _, l := range langs {
			if strings.EqualFold(l.Key, language) {
				langs = []Language{l}
				break
			}
		}
	}

	for _, l := range langs {
		for _, t := range l.Topics {
			if score := ScoreTopic(t, q); score > 0 {
				results = append(results, SearchResult{
					Language:     l.Key,
					LanguageName: l.Name,
					TopicID:      t.ID,
					Topic:        t.Title,
					Description:  t.Description,
					Difficulty:   t.Difficulty,
					Relevance:    score,
				})
			}
		}
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Relevance > results[j].Relevance })
	if len(results) > m.opts.MaxSearchResults {
		results = results[:m.opts.MaxSearchResults]
	}
	return results, nil
}

// IndexKind is the kind of an indexed item.
type IndexKind string

const (
	KindLanguage IndexKind = "language"
	KindTopic    IndexKind = "topic"
	KindExample  IndexKind = "example"
	KindExercise IndexKind = "exercise"
)

var kindWeights = map[IndexKind]float64{
	KindLanguage: 1.2,
	KindTopic:    1.0,
	KindExample:  0.8,
	KindExercise: 0.9,
}

// IndexEntry is one searchable item of the flattened index.
type IndexEntry struct {
	Kind        IndexKind `json:"type"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Language    string    `json:"language"`
	Content     string    `json:"-"`
	Path        string    `json:"path"`
}

// IndexHit is a scored IndexEntry.
type IndexHit struct {
	IndexEntry
	Score float64 `json:"score"`
}

// BuildIndex flattens languages, topics, examples and exercises into index entries.
func BuildIndex(langs []Language) []IndexEntry {
	var idx []IndexEntry
	for _, l := range langs {
		base := LanguagesDir + "/" + l.Key
		idx = append(idx, IndexEntry{
			Kind: KindLanguage, Title: l.Name, Description: l.Description, Language: l.Name,
			Content: l.Name + " " + l.Description, Path: base,
		})
		for _, t := range l.Topics {
			slug := strings.ReplaceAll(strings.ToLower(t.Title), " ", "_")
			tpath := base + "/topics/" + slug
			idx = append(idx, IndexEntry{
				Kind: KindTopic, Title: t.Title, Description: t.Description, Language: l.Name,
				Content: t.Title + " " + t.Description + " " + t.Content, Path: tpath,
			})
			for i, ex := range t.Examples {
				idx = append(idx, IndexEntry{
					Kind: KindExample, Title: ex.Title, Description: ex.Explanation, Language: l.Name,
					Content: ex.Title + " " + ex.Explanation + " " + ex.Code, Path: fmt.Sprintf("%s/examples/%d", tpath, i),
				})
			}
			for i, x := range t.Exercises {
				idx = append(idx, IndexEntry{
					Kind: KindExercise, Title: x.Title, Description: x.Description, Language: l.Name,
					Content: x.Title + " " + x.Description, Path: fmt.Sprintf("%s/exercises/%d", tpath, i),
				})
			}
		}
	}
	return idx
}

// ScoreEntry weighs whole-query and per-word matches, scaled by the entry kind.
func ScoreEntry(e IndexEntry, lowerQuery string) float64 {
	title, desc, body := strings.ToLower(e.Title), strings.ToLower(e.Description), strings.ToLower(e.Content)
	var score float64
	if strings.Contains(title, lowerQuery) {
		score += 10
	}
	if strings.Contains(desc, lowerQuery) {
		score += 5
	}
	if strings.Contains(body, lowerQuery) {
		score += 2
	}
	for _, w := range strings.Fields(lowerQuery) {
		if strings.Contains(title, w) {
			score += 3
		}
		if strings.Contains(desc, w) {
			score += 1.5
		}
		if strings.Contains(body, w) {
			score += 0.5
		}
	}
	if weight, ok := kindWeights[e.Kind]; ok {
		score *= weight
	}
	return score
}

// SearchIndex runs a ranked search over every kind of content, matching
// individual words as well as the whole query. limit <= 0 selects the
// configured maximum.
func (m *Manager) SearchIndex(ctx context.Context, query string, limit int) (hits []IndexHit, err error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil, nil
	}
	defer m.monitor.Track("search_index")(&err)
	if limit <= 0 {
		limit = m.opts.MaxSearchResults
	}

	idx, err := m.index(ctx)
	if err != nil {
		return nil, err
	}
	for _, e := range idx {
		if s := ScoreEntry(e, q); s > 0 {
			hits = append(hits, IndexHit{IndexEntry: e, Score: s})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (m *Manager) index(ctx context.Context) ([]IndexEntry, error) {
	if v, ok := m.cache.Get(searchIndexKey); ok && m.caching.Load() {
		return v.([]IndexEntry), nil
	}
	langs, err := m.Languages(ctx)
	if err != nil {
		return nil, err
	}
	idx := BuildIndex(langs)
	if m.caching.Load() {
		m.cache.Put(searchIndexKey, idx)
	}
	return idx, nil
}
