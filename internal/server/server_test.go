package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/tutoragent/internal/content"
	"git.home.luguber.info/inful/tutoragent/internal/metrics"
	"git.home.luguber.info/inful/tutoragent/internal/progress"
	"git.home.luguber.info/inful/tutoragent/internal/settings"
)

var lessonFiles = map[string]string{
	"languages/python/metadata.yaml": "name: Python\ndescription: A friendly language\n",
	"languages/python/basics.md":     "---\ntitle: Basics\ndescription: First steps\norder: 1\n---\nPrint with **print**.\n",
	"languages/python/control.md":    "---\ntitle: Control Flow\ndescription: Branching with if\norder: 2\nprerequisites: [Basics]\n---\nUse if and else.\n",
	"languages/go/intro.md":          "---\ntitle: Intro\n---\nGo has goroutines.\n",
}

type fixture struct {
	srv      *Server
	settings *settings.Manager
	reg      *prometheus.Registry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	for rel, body := range lessonFiles {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	}

	reg := prometheus.NewRegistry()
	opts := content.DefaultOptions(root)
	opts.Recorder = metrics.NewPrometheusRecorder(reg)
	opts.Progress = progress.NewInMemory()
	cm := content.NewManager(opts)
	t.Cleanup(func() { _ = cm.Close() })

	sm := settings.NewManager(t.TempDir())
	require.NoError(t, sm.Load())

	srv := New(Options{Content: cm, Settings: sm, Metrics: metrics.HTTPHandler(reg)})
	return &fixture{srv: srv, settings: sm, reg: reg}
}

func (f *fixture) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealthAndLanguages(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), decode[map[string]any](t, rec)["languages"])

	rec = f.do(t, http.MethodGet, "/api/languages", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	langs := decode[[]languageSummary](t, rec)
	require.Len(t, langs, 2)
	assert.Equal(t, "go", langs[0].Key)
	assert.Equal(t, "Python", langs[1].Name)
	assert.Equal(t, 2, langs[1].Topics)

	rec = f.do(t, http.MethodGet, "/api/languages/PYTHON", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "python", decode[content.Language](t, rec).Key)

	rec = f.do(t, http.MethodGet, "/api/languages/cobol", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decode[map[string]any](t, rec)["code"])
}

func TestTopicRendering(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/languages/python/topics/Control%20Flow", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	view := decode[map[string]any](t, rec)
	assert.Equal(t, "Control Flow", view["title"])
	assert.NotContains(t, view, "html")

	rec = f.do(t, http.MethodGet, "/api/languages/python/topics/basics?format=html", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, decode[map[string]any](t, rec)["html"], "<strong>print</strong>")

	rec = f.do(t, http.MethodGet, "/api/languages/python/topics/Generators", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSearch(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/search?q=if", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	results := decode[[]content.SearchResult](t, rec)
	require.NotEmpty(t, results)
	assert.Equal(t, "Control Flow", results[0].Topic)

	rec = f.do(t, http.MethodGet, "/api/search?q=", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestProgressFlow(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPut, "/api/progress/python/Basics", map[string]int{"percent": 100})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	u := decode[progress.Update](t, rec)
	assert.True(t, u.NewlyCompleted)

	rec = f.do(t, http.MethodGet, "/api/progress?language=python", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	st := decode[content.ProgressStats](t, rec)
	assert.Equal(t, 1, st.CompletedTopics)
	assert.InDelta(t, 50.0, st.CompletionPercentage, 0.001)

	rec = f.do(t, http.MethodGet, "/api/progress", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, decode[map[string]any](t, rec), "python")

	rec = f.do(t, http.MethodGet, "/api/languages/python/recommendations", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	recs := decode[[]content.Recommendation](t, rec)
	require.Len(t, recs, 1)
	assert.Equal(t, "Control Flow", recs[0].Title)

	rec = f.do(t, http.MethodPut, "/api/progress/python/Basics", map[string]int{"percent": 120})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = f.do(t, http.MethodPut, "/api/progress/python/Basics", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = f.do(t, http.MethodPut, "/api/progress/python/Basics", map[string]any{"pct": 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = f.do(t, http.MethodGet, "/api/languages/python/recommendations?limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[content.Statistics](t, rec)
	assert.Equal(t, 2, stats.TotalLanguages)
	assert.Equal(t, 1, stats.TotalTopicsCompleted)
}

func TestSettingsRoutes(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/settings", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, settings.Defaults().Editor, decode[settings.Settings](t, rec).Editor)

	rec = f.do(t, http.MethodPut, "/api/settings/ui.theme", map[string]any{"value": "dark"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, settings.ThemeDark, f.settings.Settings().UI.Theme)

	rec = f.do(t, http.MethodPut, "/api/settings/editor.font_size", map[string]any{"value": 100})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPut, "/api/settings/editor.nope", map[string]any{"value": 1})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/settings?view=summary", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "dark", decode[map[string]map[string]any](t, rec)["ui"]["theme"])
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodGet, "/api/languages", nil)

	rec := f.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "tutoragent_operation_duration_seconds")
}

func TestUnknownRoute(t *testing.T) {
	rec := newFixture(t).do(t, http.MethodGet, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServeStopsWithContext(t *testing.T) {
	f := newFixture(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- f.srv.Serve(ctx, ln) }()

	var resp *http.Response
	require.Eventually(t, func() bool {
		resp, err = http.Get("http://" + ln.Addr().String() + "/healthz")
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
