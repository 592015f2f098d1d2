// Package runstore persists runs, their logs and their file changes in SQLite.
package runstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hochfrequenz/agentic-coder/internal/domain"
	_ "modernc.org/sqlite"
)

// ErrFinished is returned when a status change is attempted on a terminal run
var ErrFinished = errors.New("run already finished")

// Store provides SQLite-backed run persistence
type Store struct {
	db *sql.DB
}

// New opens the database at dbPath and applies the schema
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	// A single connection serializes writers and keeps :memory: databases shared.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateRun enqueues a run and writes its first log line
func (s *Store) CreateRun(ctx context.Context, projectPath, prompt string, models domain.ModelSelection) (*domain.Run, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO runs (project_path, prompt, plan, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, projectPath, prompt, models.Encode(), string(domain.RunQueued), now, now)
	if err != nil {
		return nil, fmt.Errorf("inserting run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO run_logs (run_id, kind, message, created_at) VALUES (?, ?, ?, ?)
	`, id, string(domain.LogSystem), "Run queued", now); err != nil {
		return nil, fmt.Errorf("logging run creation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return &domain.Run{
		ID:          id,
		ProjectPath: projectPath,
		Prompt:      prompt,
		Plan:        models.Encode(),
		Status:      domain.RunQueued,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// ClaimNextQueued moves the oldest queued run to running and returns it.
// It returns nil when the queue is empty.
func (s *Store) ClaimNextQueued(ctx context.Context, workerID string) (*domain.Run, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `
		SELECT `+runColumns+` FROM runs
		WHERE status = ?
		ORDER BY id ASC
		LIMIT 1
	`, string(domain.RunQueued))
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx, `
		UPDATE runs SET status = ?, claimed_by = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`, string(domain.RunRunning), workerID, now, run.ID, string(domain.RunQueued))
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		// Claimed by someone else between select and update.
		return nil, nil
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	run.Status = domain.RunRunning
	run.ClaimedBy = workerID
	run.UpdatedAt = now
	return run, nil
}

// AppendLog adds a line to a run's audit trail and marks an unfinished run as
// updated, so the log doubles as the progress signal for stuck-run detection
func (s *Store) AppendLog(ctx context.Context, runID int64, kind domain.LogKind, message string) error {
	if !kind.Valid() {
		return fmt.Errorf("invalid log kind %q", kind)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO run_logs (run_id, kind, message, created_at) VALUES (?, ?, ?, ?)
	`, runID, string(kind), message, now); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE runs SET updated_at = ?
		WHERE id = ? AND status NOT IN (?, ?, ?)
	`, now, runID,
		string(domain.RunCompleted), string(domain.RunAwaitingReview), string(domain.RunFailed)); err != nil {
		return err
	}
	return tx.Commit()
}

// SetStatus updates a run's status. Terminal runs are never changed.
func (s *Store) SetStatus(ctx context.Context, runID int64, status domain.RunStatus) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET status = ?, updated_at = ?
		WHERE id = ? AND status NOT IN (?, ?, ?)
	`, string(status), time.Now().UTC(), runID,
		string(domain.RunCompleted), string(domain.RunAwaitingReview), string(domain.RunFailed))
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}

	run, err := s.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	return fmt.Errorf("run %d is %s: %w", runID, run.Status, ErrFinished)
}

// RecordFileChange stores the diff of an applied edit and returns its id
func (s *Store) RecordFileChange(ctx context.Context, runID int64, filePath, diff string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO file_changes (run_id, file_path, diff, accepted) VALUES (?, ?, ?, FALSE)
	`, runID, filePath, diff)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetRun retrieves a run by id
func (s *Store) GetRun(ctx context.Context, id int64) (*domain.Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %d: %w", id, domain.ErrNotFound)
	}
	return run, err
}

// ListRuns returns the most recent runs, newest first. A non-positive limit
// returns all runs.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*domain.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY id DESC`
	var args []interface{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	return s.queryRuns(ctx, query, args...)
}

// ListRunsByStatus returns all runs with the given status, oldest first
func (s *Store) ListRunsByStatus(ctx context.Context, status domain.RunStatus) ([]*domain.Run, error) {
	return s.queryRuns(ctx, `SELECT `+runColumns+` FROM runs WHERE status = ? ORDER BY id ASC`, string(status))
}

func (s *Store) queryRuns(ctx context.Context, query string, args ...interface{}) ([]*domain.Run, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*domain.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// ListLogs returns a run's log in insertion order
func (s *Store) ListLogs(ctx context.Context, runID int64) ([]domain.LogEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, kind, message, created_at FROM run_logs
		WHERE run_id = ? ORDER BY id ASC
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []domain.LogEntry
	for rows.Next() {
		var e domain.LogEntry
		var kind string
		if err := rows.Scan(&e.ID, &e.RunID, &kind, &e.Message, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Kind = domain.LogKind(kind)
		logs = append(logs, e)
	}
	return logs, rows.Err()
}

// ListChanges returns a run's file changes in the order they were applied
func (s *Store) ListChanges(ctx context.Context, runID int64) ([]domain.FileChange, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, file_path, diff, accepted FROM file_changes
		WHERE run_id = ? ORDER BY id ASC
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var changes []domain.FileChange
	for rows.Next() {
		var c domain.FileChange
		if err := rows.Scan(&c.ID, &c.RunID, &c.FilePath, &c.Diff, &c.Accepted); err != nil {
			return nil, err
		}
		changes = append(changes, c)
	}
	return changes, rows.Err()
}

// SetChangeAccepted records the reviewer's decision on a file change
func (s *Store) SetChangeAccepted(ctx context.Context, id int64, accepted bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE file_changes SET accepted = ? WHERE id = ?`, accepted, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("file change %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

const runColumns = `id, project_path, prompt, plan, status, claimed_by, created_at, updated_at`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row scanner) (*domain.Run, error) {
	var run domain.Run
	var status string
	var plan, claimedBy sql.NullString

	err := row.Scan(&run.ID, &run.ProjectPath, &run.Prompt, &plan, &status, &claimedBy, &run.CreatedAt, &run.UpdatedAt)
	if err != nil {
		return nil, err
	}

	run.Status = domain.RunStatus(status)
	run.Plan = plan.String
	run.ClaimedBy = claimedBy.String
	return &run, nil
}
