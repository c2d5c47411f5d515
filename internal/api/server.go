package api

import (
	"log/slog"
	"net/http"

	"github.com/dgallion1/slidegen/internal/completion"
	"github.com/dgallion1/slidegen/internal/config"
	"github.com/dgallion1/slidegen/internal/generation"
	"github.com/dgallion1/slidegen/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server is the HTTP API server for slidegen.
type Server struct {
	router      chi.Router
	completion  *completion.Client
	generations *generation.Registry
	metrics     *metrics.Metrics
	log         *slog.Logger
	cfg         config.Config
}

// NewServer creates and configures the HTTP server.
func NewServer(client *completion.Client, reg *generation.Registry, m *metrics.Metrics, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		completion:  client,
		generations: reg,
		metrics:     m,
		log:         log,
		cfg:         cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", s.metrics.Handler())

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.APIKey, s.log))

		r.Post("/api/slides/generate", s.handleGenerate)
		r.Post("/api/slides/parse", s.handleParse)
		r.Get("/api/slides/schema", s.handleSchema)

		r.Get("/api/generations/{generationID}", s.handleGetGeneration)
		r.Delete("/api/generations/{generationID}", s.handleCancelGeneration)

		r.Get("/api/stats/llm", s.handleLLMStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
