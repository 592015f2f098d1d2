package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"text/tabwriter"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/hochfrequenz/agentic-coder/internal/config"
	"github.com/hochfrequenz/agentic-coder/internal/domain"
	"github.com/hochfrequenz/agentic-coder/internal/observer"
	"github.com/hochfrequenz/agentic-coder/internal/ollama"
	"github.com/hochfrequenz/agentic-coder/internal/runstore"
	"github.com/hochfrequenz/agentic-coder/internal/sandbox"
	"github.com/hochfrequenz/agentic-coder/internal/worker"
	"github.com/hochfrequenz/agentic-coder/tui"
	"github.com/hochfrequenz/agentic-coder/web/api"
)

var (
	servePort       int
	serveWithWorker bool
	submitFastModel string
	submitDeepModel string
	runsLimit       int
	showOutput      string
	acceptReject    bool
	dashboardLimit  int
)

func init() {
	// worker command
	workerCmd := &cobra.Command{
		Use:   "worker",
		Short: "Process queued runs until interrupted",
		RunE:  runWorker,
	}
	rootCmd.AddCommand(workerCmd)

	// serve command
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the REST API",
		RunE:  runServe,
	}
	serveCmd.Flags().IntVar(&servePort, "port", 0, "port to listen on (overrides config)")
	serveCmd.Flags().BoolVar(&serveWithWorker, "with-worker", true, "also process runs in this process")
	rootCmd.AddCommand(serveCmd)

	// submit command
	submitCmd := &cobra.Command{
		Use:   "submit PROJECT PROMPT",
		Short: "Queue a run for a project in the workspace",
		Args:  cobra.ExactArgs(2),
		RunE:  runSubmit,
	}
	submitCmd.Flags().StringVar(&submitFastModel, "fast-model", "", "fast model name")
	submitCmd.Flags().StringVar(&submitDeepModel, "deep-model", "", "deep model name (defaults to the fast model)")
	rootCmd.AddCommand(submitCmd)

	// runs command
	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent runs",
		RunE:  runRuns,
	}
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "maximum number of runs to list")
	rootCmd.AddCommand(runsCmd)

	// show command
	showCmd := &cobra.Command{
		Use:   "show RUN",
		Short: "Show a run with its log and proposed changes",
		Args:  cobra.ExactArgs(1),
		RunE:  runShow,
	}
	showCmd.Flags().StringVarP(&showOutput, "output", "o", "text", "output format: text or yaml")
	rootCmd.AddCommand(showCmd)

	// accept command
	acceptCmd := &cobra.Command{
		Use:   "accept CHANGE",
		Short: "Accept (or with --reject, reject) a proposed file change",
		Args:  cobra.ExactArgs(1),
		RunE:  runAccept,
	}
	acceptCmd.Flags().BoolVar(&acceptReject, "reject", false, "mark the change as not accepted")
	rootCmd.AddCommand(acceptCmd)

	// models command
	modelsCmd := &cobra.Command{
		Use:   "models",
		Short: "List models available on the model server",
		RunE:  runModels,
	}
	rootCmd.AddCommand(modelsCmd)

	// dashboard command
	dashboardCmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Watch runs and review changes in an interactive terminal UI",
		RunE:  runDashboard,
	}
	dashboardCmd.Flags().IntVar(&dashboardLimit, "limit", tui.DefaultRunLimit, "maximum number of runs to show")
	rootCmd.AddCommand(dashboardCmd)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadWithLocalFallback(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func openStore(cfg *config.Config) (*runstore.Store, error) {
	if dir := filepath.Dir(cfg.General.DatabasePath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}
	return runstore.New(cfg.General.DatabasePath)
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func newModelClient(cfg *config.Config) *ollama.Client {
	return ollama.NewClient(cfg.Ollama.BaseURL, &http.Client{Timeout: cfg.ModelTimeout()})
}

func newProcessor(cfg *config.Config, store *runstore.Store) *worker.Processor {
	model := newModelClient(cfg)
	p := worker.New(store, model, cfg.WorkerSettings())
	p.Notifier = cfg.Notifier()
	return p
}

func runWorker(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return newProcessor(cfg, store).Run(ctx)
	})
	g.Go(func() error {
		return observer.New(store, cfg.StuckThreshold()).Run(ctx, observer.DefaultSweepInterval)
	})
	return g.Wait()
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := os.MkdirAll(cfg.General.WorkspaceRoot, 0755); err != nil {
		return fmt.Errorf("creating workspace root: %w", err)
	}

	port := servePort
	if port == 0 {
		port = cfg.Web.Port
	}
	addr := fmt.Sprintf("%s:%d", cfg.Web.Host, port)
	server := api.NewServer(store, newModelClient(cfg), cfg.General.WorkspaceRoot, addr)

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start(ctx)
	})
	if serveWithWorker {
		processor := newProcessor(cfg, store)
		processor.OnLog = server.LogCallback()
		g.Go(func() error {
			return processor.Run(ctx)
		})
		g.Go(func() error {
			return observer.New(store, cfg.StuckThreshold()).Run(ctx, observer.DefaultSweepInterval)
		})
	}

	watcher, err := observer.NewProjectWatcher(cfg.General.WorkspaceRoot, server.ProjectsChanged)
	if err != nil {
		slog.Warn("workspace changes will not be pushed", "error", err)
	} else {
		watcher.Start(ctx)
	}

	fmt.Printf("Serving API at http://%s\n", addr)
	return g.Wait()
}

func runSubmit(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	project := args[0]
	if !filepath.IsAbs(project) {
		project = filepath.Join(cfg.General.WorkspaceRoot, project)
	}
	project = filepath.Clean(project)
	inside, err := sandbox.Within(cfg.General.WorkspaceRoot, project)
	if err != nil {
		return err
	}
	if !inside {
		return fmt.Errorf("project %s is outside the workspace %s", project, cfg.General.WorkspaceRoot)
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	run, err := store.CreateRun(cmd.Context(), project, args[1], domain.ModelSelection{
		FastModel: submitFastModel,
		DeepModel: submitDeepModel,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Queued run %d for %s\n", run.ID, project)
	return nil
}

func runRuns(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.ListRuns(cmd.Context(), runsLimit)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tPROJECT\tPROMPT")
	for _, r := range runs {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", r.ID, r.Status, r.ProjectPath, truncate(r.Prompt, 60))
	}
	return w.Flush()
}

func runShow(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid run id %q", args[0])
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()
	run, err := store.GetRun(ctx, id)
	if err != nil {
		return err
	}
	logs, err := store.ListLogs(ctx, id)
	if err != nil {
		return err
	}
	changes, err := store.ListChanges(ctx, id)
	if err != nil {
		return err
	}

	switch showOutput {
	case "yaml":
		return writeRunYAML(os.Stdout, run, logs, changes)
	case "text":
		return writeRunText(os.Stdout, run, logs, changes)
	default:
		return fmt.Errorf("unknown output format %q", showOutput)
	}
}

func runAccept(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid change id %q", args[0])
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.SetChangeAccepted(cmd.Context(), id, !acceptReject); err != nil {
		return err
	}

	verdict := "accepted"
	if acceptReject {
		verdict = "rejected"
	}
	fmt.Printf("Change %d %s\n", id, verdict)
	return nil
}

func runModels(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	names, err := newModelClient(cfg).ListModels(cmd.Context())
	if err != nil {
		return err
	}
	for _, name := range names {
		marker := " "
		if name == cfg.Ollama.DefaultModel {
			marker = "*"
		}
		fmt.Printf("%s %s\n", marker, name)
	}
	return nil
}

func runDashboard(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	model := tui.NewModel(tui.ModelConfig{
		Source: store,
		Limit:  dashboardLimit,
	})
	_, err = tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(cmd.Context())).Run()
	return err
}
