package server

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"git.home.luguber.info/inful/tutoragent/internal/content"
	ferrors "git.home.luguber.info/inful/tutoragent/internal/foundation/errors"
	"git.home.luguber.info/inful/tutoragent/internal/markdown"
)

const maxBodyBytes = 1 << 20

// languageSummary is the list view of a language.
type languageSummary struct {
	Key            string             `json:"key"`
	Name           string             `json:"name"`
	Description    string             `json:"description"`
	Icon           string             `json:"icon"`
	Color          string             `json:"color"`
	Difficulty     content.Difficulty `json:"difficulty"`
	EstimatedHours int                `json:"estimated_hours"`
	Topics         int                `json:"topics"`
}

// topicView is a topic plus its rendered body when HTML was requested.
type topicView struct {
	content.Topic
	HTML string `json:"html,omitempty"`
}

func pathParam(r *http.Request, name string) string {
	raw := chi.URLParam(r, name)
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	langs, err := s.opts.Content.Languages(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, map[string]any{"status": "healthy", "languages": len(langs)})
}

func (s *Server) handleLanguages(w http.ResponseWriter, r *http.Request) {
	langs, err := s.opts.Content.Languages(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make([]languageSummary, 0, len(langs))
	for _, l := range langs {
		out = append(out, languageSummary{
			Key:            l.Key,
			Name:           l.Name,
			Description:    l.Description,
			Icon:           l.Icon,
			Color:          l.Color,
			Difficulty:     l.Difficulty,
			EstimatedHours: l.EstimatedHours,
			Topics:         len(l.Topics),
		})
	}
	s.respond(w, http.StatusOK, out)
}

func (s *Server) handleLanguage(w http.ResponseWriter, r *http.Request) {
	lang, err := s.opts.Content.Language(r.Context(), pathParam(r, "lang"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, lang)
}

func (s *Server) handleTopic(w http.ResponseWriter, r *http.Request) {
	topic, err := s.opts.Content.Topic(r.Context(), pathParam(r, "lang"), pathParam(r, "topic"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	view := topicView{Topic: topic}
	if strings.EqualFold(r.URL.Query().Get("format"), "html") {
		html, err := markdown.RenderHTML([]byte(topic.Content))
		if err != nil {
			s.fail(w, r, ferrors.WrapError(err, ferrors.CategoryContent, "render topic").Build())
			return
		}
		view.HTML = html
	}
	s.respond(w, http.StatusOK, view)
}

func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	limit, err := intQuery(r, "limit")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	recs, err := s.opts.Content.Recommendations(r.Context(), pathParam(r, "lang"), limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if recs == nil {
		recs = []content.Recommendation{}
	}
	s.respond(w, http.StatusOK, recs)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	results, err := s.opts.Content.Search(r.Context(), q.Get("q"), q.Get("language"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if results == nil {
		results = []content.SearchResult{}
	}
	s.respond(w, http.StatusOK, results)
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	if lang := r.URL.Query().Get("language"); lang != "" {
		st, err := s.opts.Content.ProgressStats(r.Context(), lang)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		s.respond(w, http.StatusOK, st)
		return
	}
	s.respond(w, http.StatusOK, s.opts.Content.Progress().Snapshot())
}

type progressRequest struct {
	Percent *int `json:"percent"`
}

func (s *Server) handleUpdateProgress(w http.ResponseWriter, r *http.Request) {
	var req progressRequest
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.Percent == nil {
		s.fail(w, r, ferrors.ValidationError("percent is required").Build())
		return
	}
	u, err := s.opts.Content.UpdateTopicProgress(r.Context(), pathParam(r, "lang"), pathParam(r, "topic"), *req.Percent)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, u)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.opts.Content.Statistics(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, st)
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	if s.opts.Settings == nil {
		s.fail(w, r, ferrors.NotFoundError("settings are not available").Build())
		return
	}
	if r.URL.Query().Get("view") == "summary" {
		s.respond(w, http.StatusOK, s.opts.Settings.Summary())
		return
	}
	s.respond(w, http.StatusOK, s.opts.Settings.Settings())
}

type settingRequest struct {
	Value json.RawMessage `json:"value"`
}

func (s *Server) handleUpdateSetting(w http.ResponseWriter, r *http.Request) {
	if s.opts.Settings == nil {
		s.fail(w, r, ferrors.NotFoundError("settings are not available").Build())
		return
	}
	var req settingRequest
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if len(req.Value) == 0 {
		s.fail(w, r, ferrors.ValidationError("value is required").Build())
		return
	}
	var value any
	if err := json.Unmarshal(req.Value, &value); err != nil {
		s.fail(w, r, ferrors.WrapError(err, ferrors.CategoryValidation, "invalid value").Build())
		return
	}
	path := pathParam(r, "path")
	if err := s.opts.Settings.Set(path, value); err != nil {
		s.fail(w, r, err)
		return
	}
	current, err := s.opts.Settings.Get(path)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, map[string]any{"path": path, "value": current})
}

func decodeBody(r *http.Request, out any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryValidation, "invalid request body").Build()
	}
	return nil
}

func intQuery(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, ferrors.ValidationError("query parameter must be a non-negative integer").
			WithContext("parameter", name).Build()
	}
	return n, nil
}
