// Package api exposes the HTTP trigger surface for the gazette service.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/alnheet/SaGovLaws/internal/config"
	"github.com/alnheet/SaGovLaws/internal/gazette"
)

// Runner executes crawl runs. The orchestrator implements it.
type Runner interface {
	Run(ctx context.Context, mode gazette.Mode) (gazette.RunResult, error)
	RunSource(ctx context.Context, key string, mode gazette.Mode) (gazette.RunResult, error)
	RunArchive(ctx context.Context, mode gazette.Mode) (gazette.RunResult, error)
	RunArchiveSource(ctx context.Context, key string, mode gazette.Mode) (gazette.RunResult, error)
}

// SourceCatalog reads the source list for the catalog endpoint. The source
// store implements it.
type SourceCatalog interface {
	EnabledSources(ctx context.Context) ([]gazette.Source, error)
}

// Server wires HTTP handlers to the orchestrator.
type Server struct {
	router  chi.Router
	runner  Runner
	catalog SourceCatalog
	logger  *zap.Logger
	cfg     config.Config
}

// scrapeTimeout bounds a synchronous crawl triggered over HTTP. Crawls
// are paced by the inter-page delay, so whole-run requests take minutes.
const scrapeTimeout = 15 * time.Minute

// NewServer constructs a Server with middleware and routes.
func NewServer(runner Runner, catalog SourceCatalog, cfg config.Config, logger *zap.Logger) *Server {
	s := &Server{
		runner:  runner,
		catalog: catalog,
		logger:  logger,
		cfg:     cfg,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(timeoutMiddleware(scrapeTimeout))
	if cfg.Auth.Enabled {
		r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
	}

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/sources", s.listSources)
		r.Route("/scrape", func(r chi.Router) {
			r.Post("/full", s.scrapeAll(gazette.ModeFull))
			r.Post("/incremental", s.scrapeAll(gazette.ModeIncremental))
			r.Post("/source/{source_key}", s.scrapeSource)
		})
		r.Route("/archive", func(r chi.Router) {
			r.Post("/full", s.archiveAll)
			r.Post("/source/{source_key}", s.archiveSource)
		})
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if _, err := s.catalog.EnabledSources(r.Context()); err != nil {
		s.writeError(w, http.StatusServiceUnavailable, "source store unavailable")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) listSources(w http.ResponseWriter, r *http.Request) {
	sources, err := s.catalog.EnabledSources(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"sources": sources})
}

func (s *Server) scrapeAll(mode gazette.Mode) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := s.runner.Run(r.Context(), mode)
		s.writeRunResult(w, result, err)
	}
}

func (s *Server) scrapeSource(w http.ResponseWriter, r *http.Request) {
	mode, err := gazette.ParseMode(r.URL.Query().Get("mode"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	key := chi.URLParam(r, "source_key")
	result, err := s.runner.RunSource(r.Context(), key, mode)
	s.writeRunResult(w, result, err)
}

func (s *Server) archiveAll(w http.ResponseWriter, r *http.Request) {
	result, err := s.runner.RunArchive(r.Context(), gazette.ModeFull)
	s.writeRunResult(w, result, err)
}

func (s *Server) archiveSource(w http.ResponseWriter, r *http.Request) {
	mode, err := gazette.ParseMode(r.URL.Query().Get("mode"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	key := chi.URLParam(r, "source_key")
	result, err := s.runner.RunArchiveSource(r.Context(), key, mode)
	s.writeRunResult(w, result, err)
}

type runResponse struct {
	Success    bool                   `json:"success"`
	Mode       gazette.Mode           `json:"mode"`
	StartedAt  time.Time              `json:"started_at"`
	DurationMs int64                  `json:"duration_ms"`
	Results    []gazette.SourceResult `json:"results"`
}

func (s *Server) writeRunResult(w http.ResponseWriter, result gazette.RunResult, err error) {
	if err != nil {
		if errors.Is(err, gazette.ErrSourceNotFound) {
			s.writeError(w, http.StatusNotFound, "source not found")
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, runResponse{
		Success:    true,
		Mode:       result.Mode,
		StartedAt:  result.StartedAt,
		DurationMs: result.Duration.Milliseconds(),
		Results:    result.Sources,
	})
}
