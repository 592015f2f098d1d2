package observer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hochfrequenz/agentic-coder/internal/domain"
	"github.com/hochfrequenz/agentic-coder/internal/runstore"
)

// mockStore implements Store for testing
type mockStore struct {
	runs     []*domain.Run
	listErr  error
	statuses map[int64]domain.RunStatus
	logs     map[int64][]string
}

func newMockStore(runs ...*domain.Run) *mockStore {
	return &mockStore{
		runs:     runs,
		statuses: make(map[int64]domain.RunStatus),
		logs:     make(map[int64][]string),
	}
}

func (m *mockStore) ListRunsByStatus(ctx context.Context, status domain.RunStatus) ([]*domain.Run, error) {
	var out []*domain.Run
	for _, r := range m.runs {
		if r.Status == status {
			out = append(out, r)
		}
	}
	return out, m.listErr
}

func (m *mockStore) SetStatus(ctx context.Context, runID int64, status domain.RunStatus) error {
	m.statuses[runID] = status
	return nil
}

func (m *mockStore) AppendLog(ctx context.Context, runID int64, kind domain.LogKind, message string) error {
	m.logs[runID] = append(m.logs[runID], message)
	return nil
}

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestObserver(store Store) *Observer {
	obs := New(store, 5*time.Minute)
	obs.now = func() time.Time { return now }
	return obs
}

func TestObserver_IsStuck(t *testing.T) {
	obs := newTestObserver(newMockStore())

	tests := []struct {
		name string
		run  *domain.Run
		want bool
	}{
		{"running for 10 minutes", &domain.Run{Status: domain.RunRunning, UpdatedAt: now.Add(-10 * time.Minute)}, true},
		{"running for 2 minutes", &domain.Run{Status: domain.RunRunning, UpdatedAt: now.Add(-2 * time.Minute)}, false},
		{"queued for an hour", &domain.Run{Status: domain.RunQueued, UpdatedAt: now.Add(-time.Hour)}, false},
		{"no timestamp", &domain.Run{Status: domain.RunRunning}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := obs.IsStuck(tt.run); got != tt.want {
				t.Errorf("IsStuck = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestObserver_Sweep(t *testing.T) {
	store := newMockStore(
		&domain.Run{ID: 1, Status: domain.RunRunning, ClaimedBy: "worker-a", UpdatedAt: now.Add(-time.Hour)},
		&domain.Run{ID: 2, Status: domain.RunRunning, ClaimedBy: "worker-b", UpdatedAt: now.Add(-time.Minute)},
		&domain.Run{ID: 3, Status: domain.RunCompleted, UpdatedAt: now.Add(-time.Hour)},
	)
	obs := newTestObserver(store)

	failed, err := obs.Sweep(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(failed, []int64{1}) {
		t.Errorf("failed = %v, want [1]", failed)
	}
	if store.statuses[1] != domain.RunFailed {
		t.Errorf("run 1 status = %q, want failed", store.statuses[1])
	}
	if _, touched := store.statuses[2]; touched {
		t.Error("run 2 is still making progress")
	}
	if len(store.logs[1]) != 1 || !strings.Contains(store.logs[1][0], "abandoned by worker-a") {
		t.Errorf("logs = %v, want abandonment message", store.logs[1])
	}
}

func TestObserver_SweepSparesRunsWithRecentLogs(t *testing.T) {
	store, err := runstore.New(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	ctx := context.Background()

	created, _ := store.CreateRun(ctx, "/p", "task", domain.ModelSelection{})
	if _, err := store.ClaimNextQueued(ctx, "worker-a"); err != nil {
		t.Fatal(err)
	}

	obs := New(store, 100*time.Millisecond)
	time.Sleep(250 * time.Millisecond)
	if err := store.AppendLog(ctx, created.ID, domain.LogAgent, "still generating"); err != nil {
		t.Fatal(err)
	}

	failed, err := obs.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if len(failed) != 0 {
		t.Fatalf("failed = %v, want none after recent log activity", failed)
	}

	time.Sleep(250 * time.Millisecond)
	failed, err = obs.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if !reflect.DeepEqual(failed, []int64{created.ID}) {
		t.Errorf("failed = %v, want [%d]", failed, created.ID)
	}
}

func TestObserver_SweepListError(t *testing.T) {
	store := newMockStore()
	store.listErr = errors.New("database is locked")

	if _, err := newTestObserver(store).Sweep(context.Background()); err == nil {
		t.Error("expected list error")
	}
}

func TestObserver_RunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- newTestObserver(newMockStore()).Run(ctx, time.Hour) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
}

func TestProjectWatcher_ReportsNewProjects(t *testing.T) {
	root := t.TempDir()

	var mu sync.Mutex
	var got []string
	changed := make(chan struct{}, 4)
	pw, err := NewProjectWatcher(root, func(names []string) {
		mu.Lock()
		got = append(got, names...)
		mu.Unlock()
		changed <- struct{}{}
	})
	if err != nil {
		t.Fatal(err)
	}
	pw.SetDebounce(20 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pw.Start(ctx)

	for _, name := range []string{"alpha", "beta", ".hidden"} {
		if err := os.Mkdir(filepath.Join(root, name), 0755); err != nil {
			t.Fatal(err)
		}
	}

	seen := func(name string) bool {
		mu.Lock()
		defer mu.Unlock()
		for _, n := range got {
			if n == name {
				return true
			}
		}
		return false
	}

	deadline := time.After(5 * time.Second)
	for !seen("alpha") || !seen("beta") {
		select {
		case <-changed:
		case <-deadline:
			t.Fatal("alpha and beta were not both reported")
		}
	}
	if seen(".hidden") {
		t.Error("hidden directories should be ignored")
	}
}
