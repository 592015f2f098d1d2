package config

import (
	"time"

	"github.com/hochfrequenz/agentic-coder/internal/contextpack"
	"github.com/hochfrequenz/agentic-coder/internal/notify"
	"github.com/hochfrequenz/agentic-coder/internal/sandbox"
	"github.com/hochfrequenz/agentic-coder/internal/worker"
)

// SandboxSettings converts the [sandbox] section for sandbox.New
func (c *Config) SandboxSettings() sandbox.Config {
	return sandbox.Config{
		ShellAllowlist: append([]string(nil), c.Sandbox.ShellAllowlist...),
		CommandTimeout: seconds(c.Sandbox.CommandTimeoutSeconds),
		NetworkEnabled: c.Sandbox.NetworkEnabled,
		SearchTool:     c.Sandbox.SearchTool,
	}
}

// WorkerSettings converts the model, context, sandbox and worker sections for worker.New
func (c *Config) WorkerSettings() worker.Config {
	return worker.Config{
		DefaultModel: c.Ollama.DefaultModel,
		PollInterval: seconds(c.Worker.PollIntervalSeconds),
		ModelTimeout: seconds(c.Ollama.TimeoutSeconds),
		Context:      contextpack.NewBuilder(c.Context.MaxFiles, c.Context.MaxCharsPerFile),
		Sandbox:      c.SandboxSettings(),
	}
}

// Notifier builds the notifiers enabled in [notifications], or nil if none are
func (c *Config) Notifier() notify.Notifier {
	var notifiers []notify.Notifier
	if c.Notifications.Desktop {
		notifiers = append(notifiers, notify.NewDesktopNotifier(true))
	}
	if c.Notifications.WebhookURL != "" {
		notifiers = append(notifiers, notify.NewWebhookNotifier(c.Notifications.WebhookURL))
	}
	if len(notifiers) == 0 {
		return nil
	}
	return notify.NewMultiNotifier(notifiers...)
}

// StuckThreshold is how long a running run may go without an update before it
// is failed. It never drops below the model timeout plus a minute, since a run
// logs nothing while it waits for the model.
func (c *Config) StuckThreshold() time.Duration {
	threshold := time.Duration(c.Worker.StuckAfterMinutes) * time.Minute
	return max(threshold, c.ModelTimeout()+time.Minute)
}

// ModelTimeout is the HTTP timeout for the model client
func (c *Config) ModelTimeout() time.Duration {
	return seconds(c.Ollama.TimeoutSeconds)
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
