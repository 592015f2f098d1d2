package notify

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hochfrequenz/agentic-coder/internal/domain"
)

func TestWebhookNotifier_Send(t *testing.T) {
	var got WebhookMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decoding payload: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	err := NewWebhookNotifier(server.URL).Send(Notification{
		RunID:   7,
		Project: "/ws/demo",
		Status:  domain.RunAwaitingReview,
		Message: "Run complete; awaiting file-level acceptance",
	})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if got.Text != "Run 7 awaiting_review" {
		t.Errorf("Text = %q", got.Text)
	}
	if got.RunID != 7 || got.Status != "awaiting_review" || got.Project != "/ws/demo" {
		t.Errorf("run fields = %+v", got)
	}
	if len(got.Attachments) != 1 || got.Attachments[0].Color != "warning" {
		t.Errorf("Attachments = %+v", got.Attachments)
	}
}

func TestWebhookNotifier_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	if err := NewWebhookNotifier(server.URL).Send(Notification{RunID: 1}); err == nil {
		t.Error("expected error for 500 response")
	}
}

func TestWebhookNotifier_Disabled(t *testing.T) {
	if err := NewWebhookNotifier("").Send(Notification{RunID: 1}); err != nil {
		t.Errorf("disabled notifier returned %v", err)
	}
}

func TestStatusColor(t *testing.T) {
	tests := []struct {
		status domain.RunStatus
		want   string
	}{
		{domain.RunCompleted, "good"},
		{domain.RunAwaitingReview, "warning"},
		{domain.RunFailed, "danger"},
		{domain.RunRunning, "#439FE0"},
	}

	for _, tt := range tests {
		got := StatusColor(Notification{Status: tt.status})
		if got != tt.want {
			t.Errorf("StatusColor(%s) = %s, want %s", tt.status, got, tt.want)
		}
	}
}

func TestMultiNotifier(t *testing.T) {
	var called []string

	mock1 := &mockNotifier{name: "mock1", calls: &called}
	mock2 := &mockNotifier{name: "mock2", calls: &called, err: errors.New("boom")}

	err := NewMultiNotifier(mock1, mock2, NoopNotifier{}).Send(Notification{RunID: 1})

	if len(called) != 2 {
		t.Errorf("Expected 2 calls, got %d", len(called))
	}
	if err == nil {
		t.Error("expected the failing notifier's error")
	}
}

func TestDesktopNotifier_Disabled(t *testing.T) {
	if err := NewDesktopNotifier(false).Send(Notification{RunID: 1}); err != nil {
		t.Errorf("disabled notifier returned %v", err)
	}
}

type mockNotifier struct {
	name  string
	calls *[]string
	err   error
}

func (m *mockNotifier) Send(n Notification) error {
	*m.calls = append(*m.calls, m.name)
	return m.err
}
