// Package notify tells the user when a run reaches a terminal or review state.
package notify

import (
	"fmt"

	"github.com/hochfrequenz/agentic-coder/internal/domain"
)

// Notification describes a finished run
type Notification struct {
	RunID   int64
	Project string
	Status  domain.RunStatus
	Message string
}

// Title is the one-line summary shown by every notifier
func (n Notification) Title() string {
	return fmt.Sprintf("Run %d %s", n.RunID, n.Status)
}

// Notifier is the interface for sending notifications
type Notifier interface {
	Send(n Notification) error
}

// MultiNotifier sends to multiple notifiers
type MultiNotifier struct {
	notifiers []Notifier
}

// NewMultiNotifier creates a notifier that sends to all provided notifiers
func NewMultiNotifier(notifiers ...Notifier) *MultiNotifier {
	return &MultiNotifier{notifiers: notifiers}
}

// Send sends the notification to all notifiers and returns the last error
func (m *MultiNotifier) Send(n Notification) error {
	var lastErr error
	for _, notifier := range m.notifiers {
		if err := notifier.Send(n); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// NoopNotifier does nothing
type NoopNotifier struct{}

func (NoopNotifier) Send(Notification) error { return nil }
