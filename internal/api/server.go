package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MikeSquared-Agency/lumen/internal/metrics"
	"github.com/MikeSquared-Agency/lumen/internal/processor"
	"github.com/MikeSquared-Agency/lumen/internal/store"
)

// RunLister reads run history. *store.Store satisfies it.
type RunLister interface {
	RecentRuns(ctx context.Context, limit int) ([]store.Run, error)
}

type Options struct {
	Port           int
	APIToken       string
	UploadDir      string
	MaxUploadBytes int64
	RequestTimeout time.Duration
}

type Server struct {
	router  *chi.Mux
	http    *http.Server
	opts    Options
	proc    *processor.Processor
	runs    RunLister
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewServer builds the router. runs and m may be nil; the matching routes are
// then not mounted.
func NewServer(opts Options, proc *processor.Processor, runs RunLister, m *metrics.Metrics, logger *slog.Logger) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 50 << 20
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 10 * time.Minute
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	if m != nil {
		router.Use(metricsMiddleware(m))
	}

	s := &Server{
		router:  router,
		opts:    opts,
		proc:    proc,
		runs:    runs,
		metrics: m,
		logger:  logger,
	}

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	router.Get("/health", s.health)
	if m != nil {
		router.Method(http.MethodGet, "/metrics", m.Handler())
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(BearerAuthMiddleware(opts.APIToken))
		r.Get("/lumen/status", s.status)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(opts.RequestTimeout))
			r.Post("/summarize", s.summarize)
			r.Post("/transcribe", s.transcribe)
			r.Post("/generate", s.generate)
			r.Post("/style-transfer", s.styleTransfer)
		})
		r.Get("/outputs/{name}", s.output)

		if runs != nil {
			r.Get("/runs", s.listRuns)
		}
	})

	return s
}

func (s *Server) Start() error {
	s.logger.Info("API server starting", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"agent":       "lumen",
		"status":      "ok",
		"enabled":     s.proc.Enabled(),
		"run_history": s.runs != nil,
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
