// Package observer watches over runs and the workspace: it fails runs whose
// worker stopped making progress and reports project directories coming and going.
package observer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hochfrequenz/agentic-coder/internal/domain"
)

const (
	// DefaultStuckThreshold is how long a run may stay running without an update
	DefaultStuckThreshold = 30 * time.Minute
	DefaultSweepInterval  = time.Minute
)

// Store is the run access the observer needs
type Store interface {
	ListRunsByStatus(ctx context.Context, status domain.RunStatus) ([]*domain.Run, error)
	SetStatus(ctx context.Context, runID int64, status domain.RunStatus) error
	AppendLog(ctx context.Context, runID int64, kind domain.LogKind, message string) error
}

// Observer fails runs abandoned by their worker
type Observer struct {
	store          Store
	stuckThreshold time.Duration
	now            func() time.Time
}

// New creates a new Observer
func New(store Store, stuckThreshold time.Duration) *Observer {
	if stuckThreshold <= 0 {
		stuckThreshold = DefaultStuckThreshold
	}
	return &Observer{
		store:          store,
		stuckThreshold: stuckThreshold,
		now:            time.Now,
	}
}

// IsStuck returns true if a run appears to be abandoned
func (o *Observer) IsStuck(run *domain.Run) bool {
	if run.Status != domain.RunRunning {
		return false
	}
	if run.UpdatedAt.IsZero() {
		return false
	}
	return o.now().Sub(run.UpdatedAt) > o.stuckThreshold
}

// Sweep marks every stuck run failed and returns their ids
func (o *Observer) Sweep(ctx context.Context) ([]int64, error) {
	runs, err := o.store.ListRunsByStatus(ctx, domain.RunRunning)
	if err != nil {
		return nil, fmt.Errorf("listing running runs: %w", err)
	}

	var failed []int64
	for _, run := range runs {
		if !o.IsStuck(run) {
			continue
		}
		if err := o.store.SetStatus(ctx, run.ID, domain.RunFailed); err != nil {
			slog.Warn("failing stuck run", "run", run.ID, "error", err)
			continue
		}
		msg := fmt.Sprintf("run abandoned by %s: no progress since %s",
			run.ClaimedBy, run.UpdatedAt.UTC().Format(time.RFC3339))
		if err := o.store.AppendLog(ctx, run.ID, domain.LogError, msg); err != nil {
			slog.Warn("logging stuck run", "run", run.ID, "error", err)
		}
		slog.Info("failed stuck run", "run", run.ID, "worker", run.ClaimedBy)
		failed = append(failed, run.ID)
	}
	return failed, nil
}

// Run sweeps every interval until ctx is cancelled
func (o *Observer) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := o.Sweep(ctx); err != nil && ctx.Err() == nil {
			slog.Error("sweeping stuck runs", "error", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
