package notify

import (
	"os/exec"
	"runtime"
	"strconv"

	"github.com/hochfrequenz/agentic-coder/internal/domain"
)

// DesktopNotifier shows a desktop notification on macOS and Linux
type DesktopNotifier struct {
	enabled bool
}

// NewDesktopNotifier creates a new desktop notifier
func NewDesktopNotifier(enabled bool) *DesktopNotifier {
	return &DesktopNotifier{enabled: enabled}
}

// Send shows n. Unsupported platforms are ignored.
func (d *DesktopNotifier) Send(n Notification) error {
	if !d.enabled {
		return nil
	}

	switch runtime.GOOS {
	case "darwin":
		script := "display notification " + strconv.Quote(n.Message) + " with title " + strconv.Quote(n.Title())
		return exec.Command("osascript", "-e", script).Run()
	case "linux":
		return exec.Command("notify-send", "--icon", IconForStatus(n), n.Title(), n.Message).Run()
	default:
		return nil
	}
}

// IconForStatus returns a freedesktop icon name for the run outcome
func IconForStatus(n Notification) string {
	switch n.Status {
	case domain.RunCompleted:
		return "dialog-positive"
	case domain.RunAwaitingReview:
		return "dialog-information"
	case domain.RunFailed:
		return "dialog-error"
	default:
		return "dialog-warning"
	}
}
