// Package api serves the REST and server-sent-events interface for submitting
// runs and reviewing their file changes.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hochfrequenz/agentic-coder/internal/domain"
	"github.com/hochfrequenz/agentic-coder/internal/worker"
)

const shutdownTimeout = 5 * time.Second

// Store interface for database operations
type Store interface {
	CreateRun(ctx context.Context, projectPath, prompt string, models domain.ModelSelection) (*domain.Run, error)
	ListRuns(ctx context.Context, limit int) ([]*domain.Run, error)
	GetRun(ctx context.Context, id int64) (*domain.Run, error)
	ListLogs(ctx context.Context, runID int64) ([]domain.LogEntry, error)
	ListChanges(ctx context.Context, runID int64) ([]domain.FileChange, error)
	SetChangeAccepted(ctx context.Context, id int64, accepted bool) error
}

// ModelLister reports the models available on the model server
type ModelLister interface {
	ListModels(ctx context.Context) ([]string, error)
}

// Server is the HTTP API server
type Server struct {
	store         Store
	models        ModelLister
	workspaceRoot string
	addr          string
	router        chi.Router
	sseHub        *SSEHub
}

// NewServer creates a new API server. Submitted projects must live under workspaceRoot.
func NewServer(store Store, models ModelLister, workspaceRoot, addr string) *Server {
	s := &Server{
		store:         store,
		models:        models,
		workspaceRoot: workspaceRoot,
		addr:          addr,
		router:        chi.NewRouter(),
		sseHub:        NewSSEHub(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(corsMiddleware)

	s.router.Get("/health", s.healthHandler())
	s.router.Get("/models", s.modelsHandler())
	s.router.Get("/projects", s.projectsHandler())
	s.router.Route("/runs", func(r chi.Router) {
		r.Get("/", s.listRunsHandler())
		r.Post("/", s.createRunHandler())
		r.Get("/{id}", s.getRunHandler())
	})
	s.router.Post("/changes/{id}/accept", s.acceptChangeHandler())
	s.router.Get("/events", s.sseHandler())
	s.router.Handle("/metrics", promhttp.Handler())
}

// Handler returns the routed HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go s.sseHub.Run(ctx)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutting down http server", "error", err)
		}
	}()

	slog.Info("api listening", "addr", s.addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Broadcast sends an event to all SSE clients
func (s *Server) Broadcast(event SSEEvent) {
	s.sseHub.Broadcast(event)
}

// ProjectsChanged tells clients that projects appeared in or vanished from the workspace
func (s *Server) ProjectsChanged(names []string) {
	s.Broadcast(SSEEvent{
		Type: "projects_changed",
		Data: ProjectsEvent{Changed: names},
	})
}

// LogCallback forwards run log lines to SSE clients
func (s *Server) LogCallback() worker.LogCallback {
	return func(runID int64, kind domain.LogKind, message string) {
		s.Broadcast(SSEEvent{
			Type: "log",
			Data: LogEvent{RunID: runID, Kind: string(kind), Message: message},
		})
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
