// Package server exposes the tutor content, progress and settings over a
// JSON HTTP API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"git.home.luguber.info/inful/tutoragent/internal/content"
	ferrors "git.home.luguber.info/inful/tutoragent/internal/foundation/errors"
	"git.home.luguber.info/inful/tutoragent/internal/logfields"
	"git.home.luguber.info/inful/tutoragent/internal/settings"
)

const (
	requestTimeout  = 30 * time.Second
	defaultShutdown = 10 * time.Second
)

// Options wires the server to its collaborators. Settings and Metrics are
// optional; their routes answer 404 when unset.
type Options struct {
	Addr            string
	Content         *content.Manager
	Settings        *settings.Manager
	Metrics         http.Handler
	MetricsPath     string
	ShutdownTimeout time.Duration
}

// Server is the HTTP API.
type Server struct {
	opts   Options
	errs   *ferrors.HTTPErrorAdapter
	router *chi.Mux
	server *http.Server
}

// New builds the router. Call Run to serve.
func New(opts Options) *Server {
	if opts.MetricsPath == "" {
		opts.MetricsPath = "/metrics"
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = defaultShutdown
	}
	s := &Server{
		opts:   opts,
		errs:   ferrors.NewHTTPErrorAdapter(slog.Default()),
		router: chi.NewRouter(),
	}
	s.setupRoutes()
	s.server = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      requestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler returns the root handler, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(requestTimeout))

	s.router.Get("/healthz", s.handleHealth)
	if s.opts.Metrics != nil {
		s.router.Method(http.MethodGet, s.opts.MetricsPath, s.opts.Metrics)
	}

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/languages", s.handleLanguages)
		r.Get("/languages/{lang}", s.handleLanguage)
		r.Get("/languages/{lang}/topics/{topic}", s.handleTopic)
		r.Get("/languages/{lang}/recommendations", s.handleRecommendations)
		r.Get("/search", s.handleSearch)
		r.Get("/progress", s.handleProgress)
		r.Put("/progress/{lang}/{topic}", s.handleUpdateProgress)
		r.Get("/stats", s.handleStats)
		r.Get("/settings", s.handleSettings)
		r.Put("/settings/{path}", s.handleUpdateSetting)
	})
	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.fail(w, r, ferrors.NotFoundError("no such route").WithContext("path", r.URL.Path).Build())
	})
}

// Run serves until ctx ends, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryNetwork, "listen").WithContext("addr", s.opts.Addr).Build()
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP API listening", "addr", ln.Addr().String())
		errCh <- s.server.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return ferrors.WrapError(err, ferrors.CategoryNetwork, "serve http").Build()
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()
	slog.Info("Shutting down HTTP API")
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryNetwork, "shutdown http").Build()
	}
	<-errCh
	return nil
}

func (s *Server) respond(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Warn("Failed to encode response", logfields.Error(err))
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	s.errs.WriteErrorResponse(w, r, err)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		slog.Debug("HTTP request",
			"method", r.Method,
			logfields.Path(r.URL.Path),
			"status", ww.Status(),
			"request_id", middleware.GetReqID(r.Context()),
			logfields.Duration(time.Since(start)))
	})
}
