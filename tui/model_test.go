package tui

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/hochfrequenz/agentic-coder/internal/domain"
)

// mockSource implements Source for testing
type mockSource struct {
	runs     []*domain.Run
	logs     map[int64][]domain.LogEntry
	changes  map[int64][]domain.FileChange
	listErr  error
	reviewed map[int64]bool
}

func newMockSource() *mockSource {
	return &mockSource{
		runs: []*domain.Run{
			{ID: 2, ProjectPath: "/ws/demo", Prompt: "add a docstring", Status: domain.RunAwaitingReview},
			{ID: 1, ProjectPath: "/ws/other", Prompt: "explain", Status: domain.RunCompleted},
		},
		logs: map[int64][]domain.LogEntry{
			2: {
				{ID: 1, RunID: 2, Kind: domain.LogTool, Message: "write_file a.py"},
				{ID: 2, RunID: 2, Kind: domain.LogSecurity, Message: "blocked path ../x"},
			},
		},
		changes: map[int64][]domain.FileChange{
			2: {{ID: 7, RunID: 2, FilePath: "a.py", Diff: "--- a/a.py\n+++ b/a.py\n@@ -1 +1,2 @@\n+\"\"\"doc\"\"\"\n print(1)"}},
		},
		reviewed: make(map[int64]bool),
	}
}

func (s *mockSource) ListRuns(ctx context.Context, limit int) ([]*domain.Run, error) {
	return s.runs, s.listErr
}

func (s *mockSource) ListLogs(ctx context.Context, runID int64) ([]domain.LogEntry, error) {
	return s.logs[runID], nil
}

func (s *mockSource) ListChanges(ctx context.Context, runID int64) ([]domain.FileChange, error) {
	return s.changes[runID], nil
}

func (s *mockSource) SetChangeAccepted(ctx context.Context, id int64, accepted bool) error {
	s.reviewed[id] = accepted
	for _, cs := range s.changes {
		for i := range cs {
			if cs[i].ID == id {
				cs[i].Accepted = accepted
				return nil
			}
		}
	}
	return domain.ErrNotFound
}

func press(m Model, key string) (Model, tea.Cmd) {
	var msg tea.KeyMsg
	switch key {
	case "tab":
		msg = tea.KeyMsg{Type: tea.KeyTab}
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		msg = tea.KeyMsg{Type: tea.KeyEsc}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
	}
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func send(m Model, msg tea.Msg) (Model, tea.Cmd) {
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

// loaded returns a sized model with the source's runs already loaded
func loaded(t *testing.T, source *mockSource) Model {
	t.Helper()
	m := NewModel(ModelConfig{Source: source})
	m, _ = send(m, tea.WindowSizeMsg{Width: 120, Height: 40})
	m, _ = send(m, m.loadRuns()())
	return m
}

func TestNewModel_Defaults(t *testing.T) {
	m := NewModel(ModelConfig{Source: newMockSource()})

	if m.refresh != DefaultRefreshInterval {
		t.Errorf("refresh = %v, want %v", m.refresh, DefaultRefreshInterval)
	}
	if m.limit != DefaultRunLimit {
		t.Errorf("limit = %d, want %d", m.limit, DefaultRunLimit)
	}
	if m.activeTab != TabRuns {
		t.Errorf("activeTab = %d, want runs", m.activeTab)
	}
}

func TestModel_LoadsRuns(t *testing.T) {
	m := loaded(t, newMockSource())

	if len(m.runs) != 2 {
		t.Fatalf("runs = %d, want 2", len(m.runs))
	}
	if m.lastRefresh.IsZero() {
		t.Error("lastRefresh should be set after a load")
	}

	view := m.View()
	for _, want := range []string{"Awaiting review: 1", "add a docstring", "awaiting_review", "/ws/other"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestModel_Navigation(t *testing.T) {
	m := loaded(t, newMockSource())

	m, _ = press(m, "j")
	if m.selectedRow != 1 {
		t.Errorf("after j: selectedRow = %d, want 1", m.selectedRow)
	}
	m, _ = press(m, "j")
	if m.selectedRow != 1 {
		t.Errorf("cursor should stop at the last run, got %d", m.selectedRow)
	}
	m, _ = press(m, "k")
	m, _ = press(m, "k")
	if m.selectedRow != 0 {
		t.Errorf("cursor should stop at the first run, got %d", m.selectedRow)
	}
}

func TestModel_OpenDetailAndAccept(t *testing.T) {
	source := newMockSource()
	m := loaded(t, source)

	m, cmd := press(m, "enter")
	if m.activeTab != TabDetail || m.detailRun != 2 {
		t.Fatalf("activeTab = %d detailRun = %d, want detail of run 2", m.activeTab, m.detailRun)
	}
	if cmd == nil {
		t.Fatal("opening a run should load its detail")
	}
	m, _ = send(m, cmd())

	view := m.View()
	for _, want := range []string{"RUN 2", "write_file a.py", "blocked path ../x", "CHANGES (1)", "a.py", `+"""doc"""`} {
		if !strings.Contains(view, want) {
			t.Errorf("detail view missing %q", want)
		}
	}

	m, cmd = press(m, "a")
	if cmd == nil {
		t.Fatal("a should review the selected change")
	}
	msg := cmd()
	if r, ok := msg.(ReviewedMsg); !ok || r.ChangeID != 7 || !r.Accepted || r.Err != nil {
		t.Fatalf("review msg = %#v", msg)
	}
	if !source.reviewed[7] {
		t.Error("change 7 should be accepted in the source")
	}

	m, cmd = send(m, msg)
	m, _ = send(m, cmd())
	if !m.changes[0].Accepted {
		t.Error("detail should reload the accepted change")
	}

	m, _ = press(m, "x")
	m, _ = press(m, "esc")
	if m.activeTab != TabRuns {
		t.Errorf("esc should return to runs, got tab %d", m.activeTab)
	}
}

func TestModel_RejectChange(t *testing.T) {
	source := newMockSource()
	source.changes[2][0].Accepted = true
	m := loaded(t, source)

	m, cmd := press(m, "enter")
	m, _ = send(m, cmd())
	_, cmd = press(m, "x")
	if r := cmd().(ReviewedMsg); r.Accepted {
		t.Error("x should reject the change")
	}
	if source.reviewed[7] {
		t.Error("change 7 should be rejected in the source")
	}
}

func TestModel_TabWithoutRunsStaysOnRuns(t *testing.T) {
	source := newMockSource()
	source.runs = nil
	m := loaded(t, source)

	m, cmd := press(m, "tab")
	if m.activeTab != TabRuns || cmd != nil {
		t.Errorf("tab with no runs: activeTab = %d cmd = %v", m.activeTab, cmd)
	}
	if !strings.Contains(m.View(), "No runs yet") {
		t.Error("empty view should say there are no runs")
	}
}

func TestModel_StaleDetailIgnored(t *testing.T) {
	m := loaded(t, newMockSource())
	m, _ = press(m, "enter")

	m, _ = send(m, DetailLoadedMsg{RunID: 99, Logs: []domain.LogEntry{{Message: "other"}}})
	if len(m.logs) != 0 {
		t.Errorf("logs for another run should be ignored, got %v", m.logs)
	}
}

func TestModel_ShowsLoadError(t *testing.T) {
	source := newMockSource()
	source.listErr = errors.New("database is locked")
	m := NewModel(ModelConfig{Source: source})
	m, _ = send(m, tea.WindowSizeMsg{Width: 100, Height: 30})
	m, _ = send(m, m.loadRuns()())

	if !strings.Contains(m.View(), "Error: database is locked") {
		t.Error("view should show the load error")
	}
}

func TestModel_Quit(t *testing.T) {
	m := loaded(t, newMockSource())

	_, cmd := press(m, "q")
	if cmd == nil {
		t.Fatal("q should return a command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q should quit")
	}
}

func TestModel_LoadingBeforeResize(t *testing.T) {
	m := NewModel(ModelConfig{Source: newMockSource()})
	if m.View() != "Loading..." {
		t.Errorf("View() = %q, want Loading...", m.View())
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"a longer prompt", 8, "a lon..."},
		{"two\nlines", 20, "two lines"},
		{"abc", 2, "ab"},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.n); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}
