// Package tui is a terminal dashboard for watching runs and reviewing their file changes.
package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/hochfrequenz/agentic-coder/internal/domain"
)

const (
	DefaultRefreshInterval = 2 * time.Second
	DefaultRunLimit        = 50
)

// Tabs
const (
	TabRuns = iota
	TabDetail
	tabCount
)

// Source is the run history and review access the dashboard needs
type Source interface {
	ListRuns(ctx context.Context, limit int) ([]*domain.Run, error)
	ListLogs(ctx context.Context, runID int64) ([]domain.LogEntry, error)
	ListChanges(ctx context.Context, runID int64) ([]domain.FileChange, error)
	SetChangeAccepted(ctx context.Context, id int64, accepted bool) error
}

// Model is the TUI application model
type Model struct {
	source  Source
	refresh time.Duration
	limit   int

	// Data
	runs    []*domain.Run
	logs    []domain.LogEntry
	changes []domain.FileChange
	err     error

	// UI state
	width          int
	height         int
	activeTab      int
	selectedRow    int
	selectedChange int
	detailRun      int64

	lastRefresh time.Time
}

// ModelConfig holds initial settings for the TUI model
type ModelConfig struct {
	Source          Source
	RefreshInterval time.Duration
	Limit           int
}

// NewModel creates a new TUI model
func NewModel(cfg ModelConfig) Model {
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = DefaultRefreshInterval
	}
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultRunLimit
	}
	return Model{
		source:  cfg.Source,
		refresh: cfg.RefreshInterval,
		limit:   cfg.Limit,
	}
}

// Init loads the run list and starts the refresh ticker
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.loadRuns(), tickCmd(m.refresh))
}

// TickMsg triggers a refresh
type TickMsg time.Time

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// RunsLoadedMsg carries a fresh run list
type RunsLoadedMsg struct {
	Runs []*domain.Run
	Err  error
}

// DetailLoadedMsg carries the logs and changes of one run
type DetailLoadedMsg struct {
	RunID   int64
	Logs    []domain.LogEntry
	Changes []domain.FileChange
	Err     error
}

// ReviewedMsg reports the outcome of accepting or rejecting a change
type ReviewedMsg struct {
	ChangeID int64
	Accepted bool
	Err      error
}

func (m Model) loadRuns() tea.Cmd {
	source, limit := m.source, m.limit
	return func() tea.Msg {
		runs, err := source.ListRuns(context.Background(), limit)
		return RunsLoadedMsg{Runs: runs, Err: err}
	}
}

func (m Model) loadDetail(runID int64) tea.Cmd {
	source := m.source
	return func() tea.Msg {
		ctx := context.Background()
		logs, err := source.ListLogs(ctx, runID)
		if err != nil {
			return DetailLoadedMsg{RunID: runID, Err: err}
		}
		changes, err := source.ListChanges(ctx, runID)
		return DetailLoadedMsg{RunID: runID, Logs: logs, Changes: changes, Err: err}
	}
}

func (m Model) review(changeID int64, accepted bool) tea.Cmd {
	source := m.source
	return func() tea.Msg {
		err := source.SetChangeAccepted(context.Background(), changeID, accepted)
		return ReviewedMsg{ChangeID: changeID, Accepted: accepted, Err: err}
	}
}

// selectedRun returns the run under the cursor on the runs tab
func (m Model) selectedRun() *domain.Run {
	if m.selectedRow < 0 || m.selectedRow >= len(m.runs) {
		return nil
	}
	return m.runs[m.selectedRow]
}

// detail returns the run shown on the detail tab, if it is still listed
func (m Model) detail() *domain.Run {
	for _, r := range m.runs {
		if r.ID == m.detailRun {
			return r
		}
	}
	return nil
}
