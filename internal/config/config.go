package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/hochfrequenz/agentic-coder/internal/contextpack"
	"github.com/hochfrequenz/agentic-coder/internal/observer"
	"github.com/hochfrequenz/agentic-coder/internal/sandbox"
	"github.com/hochfrequenz/agentic-coder/internal/worker"
)

// LocalConfigName is the project-local config file searched for upwards from the working directory
const LocalConfigName = ".agentic-coder.toml"

// Config holds all application configuration
type Config struct {
	General GeneralConfig `toml:"general"`
	Ollama  OllamaConfig  `toml:"ollama"`
	Context ContextConfig `toml:"context"`
	Sandbox SandboxConfig `toml:"sandbox"`
	Worker  WorkerConfig  `toml:"worker"`
	Web     WebConfig     `toml:"web"`

	Notifications NotificationsConfig `toml:"notifications"`
}

// GeneralConfig holds general settings
type GeneralConfig struct {
	DatabasePath  string `toml:"database_path"`
	WorkspaceRoot string `toml:"workspace_root"`
}

// OllamaConfig holds model server settings
type OllamaConfig struct {
	BaseURL        string `toml:"base_url"`
	DefaultModel   string `toml:"default_model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// ContextConfig bounds the repository snapshot sent to the model
type ContextConfig struct {
	MaxFiles        int `toml:"max_files"`
	MaxCharsPerFile int `toml:"max_chars_per_file"`
}

// SandboxConfig holds tool execution settings
type SandboxConfig struct {
	ShellAllowlist        []string `toml:"shell_allowlist"`
	CommandTimeoutSeconds int      `toml:"command_timeout_seconds"`
	NetworkEnabled        bool     `toml:"network_enabled"`
	SearchTool            string   `toml:"search_tool"`
}

// WorkerConfig holds queue polling settings
type WorkerConfig struct {
	PollIntervalSeconds int `toml:"poll_interval_seconds"`
	StuckAfterMinutes   int `toml:"stuck_after_minutes"`
}

// NotificationsConfig holds run outcome notification settings
type NotificationsConfig struct {
	Desktop    bool   `toml:"desktop"`
	WebhookURL string `toml:"webhook_url"`
}

// WebConfig holds REST server settings
type WebConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

// Default returns a Config with sensible defaults
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		General: GeneralConfig{
			DatabasePath:  filepath.Join(home, ".agentic-coder", "app.db"),
			WorkspaceRoot: filepath.Join(home, "workspace"),
		},
		Ollama: OllamaConfig{
			BaseURL:        "http://localhost:11434",
			DefaultModel:   worker.DefaultModel,
			TimeoutSeconds: int(worker.DefaultModelTimeout.Seconds()),
		},
		Context: ContextConfig{
			MaxFiles:        contextpack.DefaultMaxFiles,
			MaxCharsPerFile: contextpack.DefaultMaxCharsPerFile,
		},
		Sandbox: SandboxConfig{
			ShellAllowlist:        append([]string(nil), sandbox.DefaultShellAllowlist...),
			CommandTimeoutSeconds: int(sandbox.DefaultCommandTimeout.Seconds()),
			SearchTool:            sandbox.DefaultSearchTool,
		},
		Worker: WorkerConfig{
			PollIntervalSeconds: int(worker.DefaultPollInterval.Seconds()),
			StuckAfterMinutes:   int(observer.DefaultStuckThreshold.Minutes()),
		},
		Web: WebConfig{
			Port: 8000,
			Host: "127.0.0.1",
		},
	}
}

// Load reads configuration from a TOML file, falling back to defaults
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	// A configured allowlist replaces the default one instead of merging into it.
	defaults := cfg.Sandbox.ShellAllowlist
	cfg.Sandbox.ShellAllowlist = nil
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if cfg.Sandbox.ShellAllowlist == nil {
		cfg.Sandbox.ShellAllowlist = defaults
	}

	// Expand paths
	cfg.General.DatabasePath = ExpandPath(cfg.General.DatabasePath)
	cfg.General.WorkspaceRoot = ExpandPath(cfg.General.WorkspaceRoot)

	return cfg, nil
}

// LoadWithLocalFallback loads path when given, otherwise the nearest
// project-local config, otherwise the user config
func LoadWithLocalFallback(path string) (*Config, error) {
	if path != "" {
		return Load(path)
	}
	if local := FindLocalConfig(); local != "" {
		return Load(local)
	}
	return Load(DefaultConfigPath())
}

// FindLocalConfig searches the working directory and its parents for
// LocalConfigName and returns its path, or "" if none exists
func FindLocalConfig() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		candidate := filepath.Join(dir, LocalConfigName)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// ApplyEnv overrides settings from the environment variables the
// container deployment uses. Malformed numbers are reported, not ignored.
func (c *Config) ApplyEnv() error {
	if v, ok := os.LookupEnv("OLLAMA_BASE_URL"); ok && v != "" {
		c.Ollama.BaseURL = v
	}
	if v, ok := os.LookupEnv("DB_PATH"); ok && v != "" {
		c.General.DatabasePath = ExpandPath(v)
	}
	if v, ok := os.LookupEnv("WORKSPACE_ROOT"); ok && v != "" {
		c.General.WorkspaceRoot = ExpandPath(v)
	}
	if v, ok := os.LookupEnv("SHELL_ALLOWLIST"); ok {
		c.Sandbox.ShellAllowlist = sandbox.ParseAllowlist(v)
	}
	if v, ok := os.LookupEnv("NOTIFY_WEBHOOK_URL"); ok {
		c.Notifications.WebhookURL = v
	}
	if v, ok := os.LookupEnv("NETWORK_ENABLED"); ok {
		c.Sandbox.NetworkEnabled = strings.EqualFold(strings.TrimSpace(v), "true")
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{"COMMAND_TIMEOUT_S", &c.Sandbox.CommandTimeoutSeconds},
		{"MAX_CONTEXT_FILES", &c.Context.MaxFiles},
		{"MAX_CONTEXT_CHARS_PER_FILE", &c.Context.MaxCharsPerFile},
	}
	for _, e := range ints {
		v, ok := os.LookupEnv(e.name)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", e.name, err)
		}
		*e.dst = n
	}
	return nil
}

// ExpandPath expands ~ to the user's home directory
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

// DefaultConfigPath returns the default config file location
func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "agentic-coder", "config.toml")
}
