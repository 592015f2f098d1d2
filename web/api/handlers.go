package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hochfrequenz/agentic-coder/internal/domain"
	"github.com/hochfrequenz/agentic-coder/internal/sandbox"
)

const listRunsLimit = 100

// RunResponse is the API response for a run
type RunResponse struct {
	ID          int64  `json:"id"`
	ProjectPath string `json:"project_path"`
	Prompt      string `json:"prompt"`
	Plan        string `json:"plan,omitempty"`
	Status      string `json:"status"`
	ClaimedBy   string `json:"claimed_by,omitempty"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// LogResponse is the API response for a run log line
type LogResponse struct {
	ID        int64  `json:"id"`
	Kind      string `json:"kind"`
	Message   string `json:"message"`
	CreatedAt string `json:"created_at"`
}

// ChangeResponse is the API response for a file change
type ChangeResponse struct {
	ID       int64  `json:"id"`
	FilePath string `json:"file_path"`
	Diff     string `json:"diff"`
	Accepted bool   `json:"accepted"`
}

// RunDetailResponse bundles a run with its log and changes
type RunDetailResponse struct {
	Run     RunResponse      `json:"run"`
	Logs    []LogResponse    `json:"logs"`
	Changes []ChangeResponse `json:"changes"`
}

// CreateRunRequest is the body of POST /runs
type CreateRunRequest struct {
	ProjectPath string `json:"project_path"`
	Prompt      string `json:"prompt"`
	FastModel   string `json:"fast_model,omitempty"`
	DeepModel   string `json:"deep_model,omitempty"`
}

// AcceptChangeRequest is the body of POST /changes/{id}/accept
type AcceptChangeRequest struct {
	Accepted *bool `json:"accepted"`
}

func runToResponse(r *domain.Run) RunResponse {
	return RunResponse{
		ID:          r.ID,
		ProjectPath: r.ProjectPath,
		Prompt:      r.Prompt,
		Plan:        r.Plan,
		Status:      string(r.Status),
		ClaimedBy:   r.ClaimedBy,
		CreatedAt:   r.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   r.UpdatedAt.Format(time.RFC3339),
	}
}

func (s *Server) healthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]bool{"ok": true})
	}
}

func (s *Server) modelsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.models == nil {
			writeError(w, http.StatusServiceUnavailable, "model server not configured")
			return
		}
		names, err := s.models.ListModels(r.Context())
		if err != nil {
			writeError(w, http.StatusBadGateway, err.Error())
			return
		}
		if names == nil {
			names = []string{}
		}
		writeJSON(w, map[string][]string{"models": names})
	}
}

func (s *Server) projectsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries, err := os.ReadDir(s.workspaceRoot)
		if err != nil && !os.IsNotExist(err) {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		projects := []string{}
		for _, e := range entries {
			if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
				projects = append(projects, filepath.Join(s.workspaceRoot, e.Name()))
			}
		}
		sort.Strings(projects)
		writeJSON(w, map[string][]string{"projects": projects})
	}
}

func (s *Server) createRunHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateRunRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if strings.TrimSpace(req.ProjectPath) == "" || strings.TrimSpace(req.Prompt) == "" {
			writeError(w, http.StatusBadRequest, "project_path and prompt are required")
			return
		}

		projectPath := req.ProjectPath
		if !filepath.IsAbs(projectPath) {
			projectPath = filepath.Join(s.workspaceRoot, projectPath)
		}
		projectPath = filepath.Clean(projectPath)
		inside, err := sandbox.Within(s.workspaceRoot, projectPath)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if !inside {
			writeError(w, http.StatusBadRequest, "project path must be inside the workspace")
			return
		}

		run, err := s.store.CreateRun(r.Context(), projectPath, req.Prompt, domain.ModelSelection{
			FastModel: req.FastModel,
			DeepModel: req.DeepModel,
		})
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		s.Broadcast(SSEEvent{Type: "run_created", Data: runToResponse(run)})
		writeJSON(w, map[string]interface{}{"id": run.ID, "status": string(run.Status)})
	}
}

func (s *Server) listRunsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		runs, err := s.store.ListRuns(r.Context(), listRunsLimit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		responses := make([]RunResponse, len(runs))
		for i, run := range runs {
			responses[i] = runToResponse(run)
		}
		writeJSON(w, map[string][]RunResponse{"runs": responses})
	}
}

func (s *Server) getRunHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}

		run, err := s.store.GetRun(r.Context(), id)
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		logs, err := s.store.ListLogs(r.Context(), id)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		changes, err := s.store.ListChanges(r.Context(), id)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		resp := RunDetailResponse{
			Run:     runToResponse(run),
			Logs:    make([]LogResponse, len(logs)),
			Changes: make([]ChangeResponse, len(changes)),
		}
		for i, l := range logs {
			resp.Logs[i] = LogResponse{
				ID:        l.ID,
				Kind:      string(l.Kind),
				Message:   l.Message,
				CreatedAt: l.CreatedAt.Format(time.RFC3339),
			}
		}
		for i, c := range changes {
			resp.Changes[i] = ChangeResponse{ID: c.ID, FilePath: c.FilePath, Diff: c.Diff, Accepted: c.Accepted}
		}
		writeJSON(w, resp)
	}
}

func (s *Server) acceptChangeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}

		var req AcceptChangeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Accepted == nil {
			writeError(w, http.StatusBadRequest, "body must be {\"accepted\": bool}")
			return
		}

		err := s.store.SetChangeAccepted(r.Context(), id, *req.Accepted)
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "change not found")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		s.Broadcast(SSEEvent{Type: "change_reviewed", Data: map[string]interface{}{"id": id, "accepted": *req.Accepted}})
		writeJSON(w, map[string]bool{"ok": true})
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}
