package domain

import "errors"

// ErrNotFound is returned by stores when a run or file change does not exist
var ErrNotFound = errors.New("not found")

// RunStatus represents the lifecycle state of a run
type RunStatus string

const (
	RunQueued         RunStatus = "queued"
	RunRunning        RunStatus = "running"
	RunCompleted      RunStatus = "completed"
	RunAwaitingReview RunStatus = "awaiting_review"
	RunFailed         RunStatus = "failed"
)

// IsTerminal returns true for states a run never leaves
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunCompleted, RunAwaitingReview, RunFailed:
		return true
	}
	return false
}

// LogKind tags a run log entry
type LogKind string

const (
	LogSystem   LogKind = "system"
	LogPlan     LogKind = "plan"
	LogTool     LogKind = "tool"
	LogAgent    LogKind = "agent"
	LogSecurity LogKind = "security"
	LogError    LogKind = "error"
)

// Valid reports whether k is one of the known log kinds
func (k LogKind) Valid() bool {
	switch k {
	case LogSystem, LogPlan, LogTool, LogAgent, LogSecurity, LogError:
		return true
	}
	return false
}
