package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// NoDiff is recorded instead of a diff when a write left the content unchanged
const NoDiff = "(no diff)"

// Run represents one task-execution attempt against one project
type Run struct {
	ID          int64
	ProjectPath string
	Prompt      string
	Plan        string // serialized ModelSelection
	Status      RunStatus
	ClaimedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Models decodes the run's model selection payload
func (r *Run) Models() (ModelSelection, error) {
	return ParseModelSelection(r.Plan)
}

// ModelSelection is the model choice submitted with a run
type ModelSelection struct {
	FastModel string `json:"fast_model,omitempty"`
	DeepModel string `json:"deep_model,omitempty"`
}

// ParseModelSelection decodes a plan payload. An empty payload selects nothing.
func ParseModelSelection(plan string) (ModelSelection, error) {
	var m ModelSelection
	if strings.TrimSpace(plan) == "" {
		return m, nil
	}
	if err := json.Unmarshal([]byte(plan), &m); err != nil {
		return m, fmt.Errorf("invalid model selection: %w", err)
	}
	return m, nil
}

// Encode serializes the selection for storage
func (m ModelSelection) Encode() string {
	data, _ := json.Marshal(m) // two string fields cannot fail
	return string(data)
}

// Fast returns the fast model, or fallback when unset
func (m ModelSelection) Fast(fallback string) string {
	if m.FastModel != "" {
		return m.FastModel
	}
	return fallback
}

// Deep returns the deep model, falling back to the fast model and then to fallback
func (m ModelSelection) Deep(fallback string) string {
	if m.DeepModel != "" {
		return m.DeepModel
	}
	return m.Fast(fallback)
}

// LogEntry is one line of a run's audit trail
type LogEntry struct {
	ID        int64
	RunID     int64
	Kind      LogKind
	Message   string
	CreatedAt time.Time
}

// FileChange records one applied edit and its diff
type FileChange struct {
	ID       int64
	RunID    int64
	FilePath string
	Diff     string
	Accepted bool
}
