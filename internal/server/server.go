package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"

	"github.com/ziadkadry99/auto-migrate/internal/detect"
	"github.com/ziadkadry99/auto-migrate/internal/orchestrator"
	"github.com/ziadkadry99/auto-migrate/internal/store"
)

// Config holds server configuration.
type Config struct {
	Port          int
	AllowAll      bool          // allow all CORS origins (dev mode)
	WatchInterval time.Duration // how often watchers get a job snapshot
}

// Translator runs translations for the API.
type Translator interface {
	Translate(ctx context.Context, req orchestrator.Request) (*orchestrator.Result, error)
}

// Deps are the services the API is built on.
type Deps struct {
	Jobs       *store.JobStore
	Chunks     store.ChunkStore
	Translator Translator
	Detector   *detect.Detector
}

// Server is the HTTP front end for ingestion jobs and translation.
type Server struct {
	cfg        Config
	deps       Deps
	router     chi.Router
	upgrader   websocket.Upgrader
	httpServer *http.Server
}

// New creates a new server with all dependencies.
func New(cfg Config, deps Deps) *Server {
	if cfg.WatchInterval <= 0 {
		cfg.WatchInterval = time.Second
	}
	if deps.Detector == nil {
		deps.Detector = detect.New()
	}
	s := &Server{cfg: cfg, deps: deps}
	if cfg.AllowAll {
		s.upgrader.CheckOrigin = func(r *http.Request) bool { return true }
	}
	s.router = s.buildRouter()
	return s
}

// buildRouter creates and configures the chi router with all routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS
	corsOpts := cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	if s.cfg.AllowAll {
		// Browsers reject credentialed requests to a wildcard origin.
		corsOpts.AllowedOrigins = []string{"*"}
		corsOpts.AllowCredentials = false
	}
	r.Use(cors.Handler(corsOpts))

	// Health check
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Group(func(r chi.Router) {
		// Translation retries can take minutes.
		r.Use(middleware.Timeout(5 * time.Minute))
		r.Get("/api/jobs", s.handleListJobs)
		r.Post("/api/jobs", s.handleCreateJob)
		r.Get("/api/jobs/{id}", s.handleGetJob)
		r.Delete("/api/jobs/{id}", s.handleDeleteJob)
		r.Post("/api/translate", s.handleTranslate)
		r.Post("/api/detect", s.handleDetect)
	})

	// Long-lived; no request timeout.
	r.Get("/api/jobs/{id}/watch", s.handleWatchJob)

	return r
}

// Router returns the chi router for registering additional routes.
func (s *Server) Router() chi.Router { return s.router }

// Start begins listening on the configured port.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("automigrate server listening on %s", addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
