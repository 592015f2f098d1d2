package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hochfrequenz/agentic-coder/internal/domain"
)

// WebhookNotifier posts a Slack-compatible JSON payload to a URL
type WebhookNotifier struct {
	url    string
	client *http.Client
}

// WebhookMessage is the posted payload. Text and Attachments follow the Slack
// incoming webhook format; the run fields are for other consumers.
type WebhookMessage struct {
	Text        string              `json:"text"`
	Attachments []WebhookAttachment `json:"attachments,omitempty"`
	RunID       int64               `json:"run_id"`
	Project     string              `json:"project"`
	Status      string              `json:"status"`
}

// WebhookAttachment is a Slack message attachment
type WebhookAttachment struct {
	Color  string `json:"color"`
	Title  string `json:"title"`
	Text   string `json:"text"`
	Footer string `json:"footer,omitempty"`
}

// NewWebhookNotifier creates a notifier posting to url. An empty url disables it.
func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		url: url,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// StatusColor returns the attachment color for a run status
func StatusColor(n Notification) string {
	switch n.Status {
	case domain.RunCompleted:
		return "good"
	case domain.RunAwaitingReview:
		return "warning"
	case domain.RunFailed:
		return "danger"
	default:
		return "#439FE0"
	}
}

// Send posts n to the webhook
func (w *WebhookNotifier) Send(n Notification) error {
	if w.url == "" {
		return nil
	}

	msg := WebhookMessage{
		Text: n.Title(),
		Attachments: []WebhookAttachment{
			{
				Color:  StatusColor(n),
				Title:  n.Project,
				Text:   n.Message,
				Footer: "agentic-coder",
			},
		},
		RunID:   n.RunID,
		Project: n.Project,
		Status:  string(n.Status),
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	resp, err := w.client.Post(w.url, "application/json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("posting notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook returned %d", resp.StatusCode)
	}
	return nil
}
