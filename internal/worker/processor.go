// Package worker claims queued runs and carries each one through context
// gathering, model generation and sandboxed edit application.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hochfrequenz/agentic-coder/internal/contextpack"
	"github.com/hochfrequenz/agentic-coder/internal/domain"
	"github.com/hochfrequenz/agentic-coder/internal/notify"
	"github.com/hochfrequenz/agentic-coder/internal/prompt"
	"github.com/hochfrequenz/agentic-coder/internal/response"
	"github.com/hochfrequenz/agentic-coder/internal/sandbox"
)

const (
	DefaultModel        = "qwen2.5-coder:7b"
	DefaultPollInterval = 2 * time.Second
	DefaultModelTimeout = 180 * time.Second

	planMessage = "1) Inspect files+content 2) reason about task 3) propose edits 4) suggest validation"
)

// Queue hands out queued runs
type Queue interface {
	ClaimNextQueued(ctx context.Context, workerID string) (*domain.Run, error)
}

// Journal records what happens during a run
type Journal interface {
	AppendLog(ctx context.Context, runID int64, kind domain.LogKind, message string) error
	SetStatus(ctx context.Context, runID int64, status domain.RunStatus) error
	RecordFileChange(ctx context.Context, runID int64, filePath, diff string) (int64, error)
}

// Store is the persistence the processor needs
type Store interface {
	Queue
	Journal
}

// Model generates a completion for a prompt
type Model interface {
	Generate(ctx context.Context, model, prompt string) (string, error)
}

// LogCallback is called after each run log line is stored
type LogCallback func(runID int64, kind domain.LogKind, message string)

// Config holds processor settings. Zero values fall back to the defaults.
type Config struct {
	DefaultModel string
	PollInterval time.Duration
	ModelTimeout time.Duration
	Context      contextpack.Builder
	Sandbox      sandbox.Config
}

// Processor runs queued runs one at a time
type Processor struct {
	store  Store
	model  Model
	config Config
	id     string

	// OnLog, when set, observes every log line written for a run
	OnLog LogCallback
	// Notifier, when set, is told about every run that leaves running
	Notifier notify.Notifier
}

// New creates a Processor with a fresh worker id
func New(store Store, model Model, config Config) *Processor {
	if config.DefaultModel == "" {
		config.DefaultModel = DefaultModel
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPollInterval
	}
	if config.ModelTimeout <= 0 {
		config.ModelTimeout = DefaultModelTimeout
	}
	return &Processor{
		store:  store,
		model:  model,
		config: config,
		id:     "worker-" + uuid.NewString(),
	}
}

// ID returns the worker id recorded on claimed runs
func (p *Processor) ID() string {
	return p.id
}

// Run polls for queued runs until ctx is cancelled. It sleeps for the poll
// interval only when the queue was empty or the claim failed.
func (p *Processor) Run(ctx context.Context) error {
	slog.Info("worker started", "id", p.id, "poll_interval", p.config.PollInterval)
	for {
		if ctx.Err() != nil {
			return nil
		}

		processed, err := p.ProcessNext(ctx)
		if err != nil {
			slog.Error("claiming run", "error", err)
		}
		if processed {
			continue
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(p.config.PollInterval):
		}
	}
}

// ProcessNext claims the oldest queued run and processes it. It reports
// false when there was nothing to claim. Run failures are recorded on the
// run and do not surface as errors.
func (p *Processor) ProcessNext(ctx context.Context) (bool, error) {
	run, err := p.store.ClaimNextQueued(ctx, p.id)
	if err != nil {
		return false, fmt.Errorf("claiming run: %w", err)
	}
	if run == nil {
		return false, nil
	}

	slog.Info("processing run", "run", run.ID, "project", run.ProjectPath)
	if err := p.Process(ctx, run); err != nil {
		p.fail(ctx, run, err)
	}
	return true, nil
}

// Process carries a claimed run to awaiting_review or completed
func (p *Processor) Process(ctx context.Context, run *domain.Run) error {
	j := &runJournal{ctx: ctx, store: p.store, runID: run.ID, onLog: p.OnLog}

	models, err := run.Models()
	if err != nil {
		return err
	}

	j.log(domain.LogPlan, planMessage)

	bundle, err := p.config.Context.Build(run.ProjectPath)
	if err != nil {
		return fmt.Errorf("building context: %w", err)
	}
	j.log(domain.LogTool, fmt.Sprintf("loaded %d files into model context", len(bundle.Files)))

	raw, err := p.generate(ctx, models.Deep(p.config.DefaultModel), prompt.Compose(run.Prompt, bundle.Text, bundle.Files))
	if err != nil {
		return err
	}
	j.log(domain.LogAgent, "analysis generated")

	parsed := response.Parse(raw)
	for _, d := range parsed.Dropped {
		j.log(domain.LogAgent, "ignored malformed output: "+d)
	}

	sb, err := sandbox.New(run.ProjectPath, p.config.Sandbox, j.log)
	if err != nil {
		return err
	}

	applied := 0
	for _, edit := range parsed.Edits {
		rel, err := sb.Relative(edit.Path)
		if errors.Is(err, sandbox.ErrContainment) {
			recordEdit("blocked")
			continue
		}
		if err != nil {
			return err
		}

		res, err := sb.Write(rel, edit.Content)
		if err != nil {
			return err
		}
		if _, err := p.store.RecordFileChange(ctx, run.ID, rel, res.Output); err != nil {
			return fmt.Errorf("recording change to %s: %w", rel, err)
		}
		recordEdit("applied")
		applied++
	}

	for _, cmd := range parsed.ValidationCommands {
		j.log(domain.LogTool, "validation suggested: "+cmd)
	}

	if answer := strings.TrimSpace(parsed.Answer); answer != "" {
		j.log(domain.LogAgent, "answer: "+answer)
	}

	if j.err != nil {
		return j.err
	}

	status := domain.RunCompleted
	message := "Run complete; no file changes proposed"
	if applied > 0 {
		status = domain.RunAwaitingReview
		message = "Run complete; awaiting file-level acceptance"
	}
	if err := p.store.SetStatus(ctx, run.ID, status); err != nil {
		return fmt.Errorf("setting status: %w", err)
	}
	recordRun(string(status))
	j.log(domain.LogSystem, message)
	p.notify(run, status, message)
	return j.err
}

func (p *Processor) generate(ctx context.Context, model, text string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.config.ModelTimeout)
	defer cancel()

	start := time.Now()
	raw, err := p.model.Generate(ctx, model, text)
	observeModel(time.Since(start))
	if err != nil {
		return "", fmt.Errorf("generating with %s: %w", model, err)
	}
	return raw, nil
}

// fail marks a run failed and logs the cause. It runs even when ctx has been
// cancelled so shutdown does not leave runs stuck in running.
func (p *Processor) fail(ctx context.Context, run *domain.Run, cause error) {
	ctx = context.WithoutCancel(ctx)
	runID := run.ID
	slog.Error("run failed", "run", runID, "error", cause)

	if err := p.store.SetStatus(ctx, runID, domain.RunFailed); err != nil {
		slog.Error("marking run failed", "run", runID, "error", err)
	} else {
		recordRun(string(domain.RunFailed))
		p.notify(run, domain.RunFailed, cause.Error())
	}
	if err := p.store.AppendLog(ctx, runID, domain.LogError, cause.Error()); err != nil {
		slog.Error("logging run failure", "run", runID, "error", err)
		return
	}
	if p.OnLog != nil {
		p.OnLog(runID, domain.LogError, cause.Error())
	}
}

func (p *Processor) notify(run *domain.Run, status domain.RunStatus, message string) {
	if p.Notifier == nil {
		return
	}
	err := p.Notifier.Send(notify.Notification{
		RunID:   run.ID,
		Project: run.ProjectPath,
		Status:  status,
		Message: message,
	})
	if err != nil {
		slog.Warn("sending notification", "run", run.ID, "error", err)
	}
}

// runJournal appends log lines for one run and keeps the first store error
type runJournal struct {
	ctx   context.Context
	store Journal
	runID int64
	onLog LogCallback
	err   error
}

func (j *runJournal) log(kind domain.LogKind, message string) {
	if err := j.store.AppendLog(j.ctx, j.runID, kind, message); err != nil {
		if j.err == nil {
			j.err = fmt.Errorf("appending log: %w", err)
		}
		return
	}
	if j.onLog != nil {
		j.onLog(j.runID, kind, message)
	}
}
