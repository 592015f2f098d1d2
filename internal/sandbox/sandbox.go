// Package sandbox exposes file, search and shell tools confined to one project root.
// Every path is canonicalized and checked against the root before any I/O, and
// shell commands must match the configured allowlist.
package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/hochfrequenz/agentic-coder/internal/domain"
)

// DefaultShellAllowlist mirrors the validation commands models usually suggest
var DefaultShellAllowlist = []string{
	"pytest",
	"python -m pytest",
	"npm test",
	"npm run test",
	"ruff check",
	"black --check",
	"go test",
	"cargo test",
}

const (
	DefaultCommandTimeout = 120 * time.Second
	DefaultSearchTool     = "rg"
)

var (
	// ErrContainment is returned when a path resolves outside the sandbox root
	ErrContainment = errors.New("path escapes project root")
	// ErrNotAllowlisted is returned when a shell command is refused by policy
	ErrNotAllowlisted = errors.New("command not allowlisted")
	// ErrGitRefused is returned when a git invocation is refused by policy
	ErrGitRefused = errors.New("git invocation not permitted")
)

// ContainmentError records the offending path of a containment violation
type ContainmentError struct {
	Path string
}

func (e *ContainmentError) Error() string {
	return fmt.Sprintf("%s: %s", ErrContainment, e.Path)
}

func (e *ContainmentError) Unwrap() error { return ErrContainment }

// Config controls command execution inside the sandbox
type Config struct {
	ShellAllowlist []string
	CommandTimeout time.Duration
	NetworkEnabled bool
	SearchTool     string
}

// DefaultConfig returns the configuration used when none is given
func DefaultConfig() Config {
	return Config{
		ShellAllowlist: append([]string(nil), DefaultShellAllowlist...),
		CommandTimeout: DefaultCommandTimeout,
		SearchTool:     DefaultSearchTool,
	}
}

// LogFunc receives one audit line per tool invocation
type LogFunc func(kind domain.LogKind, message string)

// Result is the outcome of a tool invocation
type Result struct {
	OK     bool
	Output string
}

// Sandbox runs tools against a single project root
type Sandbox struct {
	root      string
	config    Config
	allowlist Allowlist
	log       LogFunc
}

// New creates a Sandbox for root. The root must exist.
func New(root string, config Config, log LogFunc) (*Sandbox, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving project root: %w", err)
	}
	canonical, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("resolving project root: %w", err)
	}
	if config.CommandTimeout <= 0 {
		config.CommandTimeout = DefaultCommandTimeout
	}
	if config.SearchTool == "" {
		config.SearchTool = DefaultSearchTool
	}
	if log == nil {
		log = func(domain.LogKind, string) {}
	}
	return &Sandbox{
		root:      canonical,
		config:    config,
		allowlist: NewAllowlist(config.ShellAllowlist),
		log:       log,
	}, nil
}

// Root returns the canonical project root
func (s *Sandbox) Root() string {
	return s.root
}

// Resolve maps path to a canonical absolute path under the root
func (s *Sandbox) Resolve(path string) (string, error) {
	full, err := resolveWithin(s.root, path)
	if errors.Is(err, ErrContainment) {
		s.log(domain.LogSecurity, "blocked path "+path)
	}
	return full, err
}

// Relative resolves path and returns it relative to the root, slash-separated
func (s *Sandbox) Relative(path string) (string, error) {
	full, err := s.Resolve(path)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(s.root, full)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

// Within reports whether path resolves inside root.
// Relative paths are taken relative to root.
func Within(root, path string) (bool, error) {
	canonicalRoot, err := canonicalize(root)
	if err != nil {
		return false, err
	}
	_, err = resolveWithin(canonicalRoot, path)
	if errors.Is(err, ErrContainment) {
		return false, nil
	}
	return err == nil, err
}

func resolveWithin(root, path string) (string, error) {
	target := path
	if !filepath.IsAbs(target) {
		target = filepath.Join(root, target)
	}
	canonical, err := canonicalize(target)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", path, err)
	}
	rel, err := filepath.Rel(root, canonical)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return "", &ContainmentError{Path: path}
	}
	return canonical, nil
}

// canonicalize cleans p and evaluates symlinks of its deepest existing ancestor
func canonicalize(p string) (string, error) {
	p, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	existing := p
	var rest []string
	for {
		resolved, err := filepath.EvalSymlinks(existing)
		if err == nil {
			return filepath.Join(append([]string{resolved}, rest...)...), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
		parent := filepath.Dir(existing)
		if parent == existing {
			return p, nil
		}
		rest = append([]string{filepath.Base(existing)}, rest...)
		existing = parent
	}
}

// List returns the sorted entry names of a directory
func (s *Sandbox) List(dir string) (Result, error) {
	full, err := s.Resolve(dir)
	if err != nil {
		return Result{Output: err.Error()}, err
	}
	entries, err := os.ReadDir(full)
	if err != nil {
		return Result{Output: err.Error()}, fmt.Errorf("list_dir %s: %w", dir, err)
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	s.log(domain.LogTool, "list_dir "+dir)
	return Result{OK: true, Output: strings.Join(names, "\n")}, nil
}

// Read returns the content of a file, dropping invalid UTF-8
func (s *Sandbox) Read(path string) (Result, error) {
	full, err := s.Resolve(path)
	if err != nil {
		return Result{Output: err.Error()}, err
	}
	s.log(domain.LogTool, "read_file "+path)
	data, err := os.ReadFile(full)
	if err != nil {
		return Result{Output: err.Error()}, fmt.Errorf("read_file %s: %w", path, err)
	}
	return Result{OK: true, Output: strings.ToValidUTF8(string(data), "")}, nil
}

// Write replaces a file's content and returns the unified diff against the
// previous content, or domain.NoDiff when nothing changed
func (s *Sandbox) Write(path, content string) (Result, error) {
	full, err := s.Resolve(path)
	if err != nil {
		return Result{Output: err.Error()}, err
	}

	before := ""
	data, err := os.ReadFile(full)
	switch {
	case err == nil:
		before = strings.ToValidUTF8(string(data), "")
	case !errors.Is(err, fs.ErrNotExist):
		return Result{Output: err.Error()}, fmt.Errorf("write_file %s: %w", path, err)
	}

	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return Result{Output: err.Error()}, fmt.Errorf("write_file %s: %w", path, err)
	}
	if err := os.WriteFile(full, []byte(content), 0644); err != nil {
		return Result{Output: err.Error()}, fmt.Errorf("write_file %s: %w", path, err)
	}

	diff, err := UnifiedDiff(path, before, content)
	if err != nil {
		return Result{Output: err.Error()}, fmt.Errorf("diffing %s: %w", path, err)
	}
	s.log(domain.LogTool, "write_file "+path)
	return Result{OK: true, Output: diff}, nil
}

// Search runs the line-oriented search tool over the root. Exit code 1 means
// no matches and still counts as success.
func (s *Sandbox) Search(ctx context.Context, pattern string) (Result, error) {
	s.log(domain.LogTool, "search "+pattern)
	code, output, err := s.run(ctx, os.Environ(), s.config.SearchTool, "-n", "-e", pattern, s.root)
	if err != nil {
		return Result{Output: output}, err
	}
	return Result{OK: code == 0 || code == 1, Output: output}, nil
}

// Shell runs an allowlisted command through sh in the project root
func (s *Sandbox) Shell(ctx context.Context, command string) (Result, error) {
	if !s.allowlist.Allows(command) {
		s.log(domain.LogSecurity, "shell refused "+command)
		return Result{Output: "Command not allowlisted: " + command}, fmt.Errorf("%w: %s", ErrNotAllowlisted, command)
	}

	s.log(domain.LogTool, "shell "+command)
	code, output, err := s.run(ctx, s.commandEnv(), "sh", "-c", command)
	if err != nil {
		return Result{Output: output}, err
	}
	return Result{OK: code == 0, Output: output}, nil
}

// Git runs a read-only git subcommand in the project root. Arguments follow
// shell quoting rules and are vetted by ParseGit.
func (s *Sandbox) Git(ctx context.Context, args string) (Result, error) {
	parsed, err := ParseGit(args, s.Resolve)
	if err != nil {
		s.log(domain.LogSecurity, "git refused "+args)
		return Result{Output: err.Error()}, err
	}

	s.log(domain.LogTool, "git "+args)
	argv := append([]string{parsed.Subcommand}, parsed.Args...)
	code, output, err := s.run(ctx, gitEnv(s.root, s.commandEnv()), "git", argv...)
	if err != nil {
		return Result{Output: output}, err
	}
	return Result{OK: code == 0, Output: output}, nil
}

// run executes name in the root with the command timeout and returns the exit
// code and stdout followed by stderr. Timeouts and start failures are errors.
func (s *Sandbox) run(ctx context.Context, env []string, name string, args ...string) (int, string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.CommandTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = env
	cmd.Dir = s.root
	cmd.WaitDelay = time.Second
	setProcessGroup(cmd)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	output := stdout.String() + stderr.String()

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return -1, output, fmt.Errorf("%s timed out after %v: %w", name, s.config.CommandTimeout, ctx.Err())
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), output, nil
		}
		return -1, output, fmt.Errorf("running %s: %w", name, err)
	}
	return 0, output, nil
}

// commandEnv returns the process environment, with proxying disabled when
// networking is off
func (s *Sandbox) commandEnv() []string {
	env := os.Environ()
	if s.config.NetworkEnabled {
		return env
	}
	out := make([]string, 0, len(env)+2)
	for _, kv := range env {
		name, _, _ := strings.Cut(kv, "=")
		switch strings.ToUpper(name) {
		case "NO_PROXY", "HTTP_PROXY", "HTTPS_PROXY", "ALL_PROXY":
			continue
		}
		out = append(out, kv)
	}
	return append(out, "NO_PROXY=*", "no_proxy=*")
}
