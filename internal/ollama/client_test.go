package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"
)

func TestNewClient_normalizesBaseURL(t *testing.T) {
	t.Parallel()
	c := NewClient("http://localhost:11434/", nil)
	if c.baseURL != "http://localhost:11434" {
		t.Errorf("baseURL = %q, want no trailing slash", c.baseURL)
	}
	if c.httpClient.Timeout != DefaultTimeout {
		t.Errorf("Timeout = %v, want %v", c.httpClient.Timeout, DefaultTimeout)
	}
}

func TestClient_Generate(t *testing.T) {
	t.Parallel()

	var got generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/generate" {
			t.Errorf("request = %s %s, want POST /api/generate", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"model":"m","response":"{\"answer\":\"hi\"}","done":true}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, srv.Client())
	text, err := client.Generate(context.Background(), "qwen2.5-coder:7b", "explain")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if text != `{"answer":"hi"}` {
		t.Errorf("response = %q", text)
	}
	want := generateRequest{Model: "qwen2.5-coder:7b", Prompt: "explain", Stream: false}
	if got != want {
		t.Errorf("request body = %+v, want %+v", got, want)
	}
}

func TestClient_Generate_errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name            string
		status          int
		body            string
		wantUnreachable bool
	}{
		{name: "500", status: http.StatusInternalServerError, body: "boom", wantUnreachable: true},
		{name: "404_model_missing", status: http.StatusNotFound, body: `{"error":"model not found"}`, wantUnreachable: true},
		{name: "200_invalid_json", status: http.StatusOK, body: `{`, wantUnreachable: false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewClient(srv.URL, srv.Client()).Generate(context.Background(), "m", "p")
			if err == nil {
				t.Fatal("Generate: want error, got nil")
			}
			if errors.Is(err, ErrUnreachable) != tt.wantUnreachable {
				t.Errorf("errors.Is(err, ErrUnreachable) = %v, want %v (%v)", !tt.wantUnreachable, tt.wantUnreachable, err)
			}
		})
	}
}

func TestClient_Generate_deadline(t *testing.T) {
	t.Parallel()
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := NewClient(srv.URL, srv.Client()).Generate(ctx, "m", "p")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want context.DeadlineExceeded", err)
	}
	if !errors.Is(err, ErrUnreachable) {
		t.Errorf("err = %v, want ErrUnreachable", err)
	}
}

func TestClient_ListModels(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			t.Errorf("path = %q, want /api/tags", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"models":[{"name":"qwen2.5-coder:7b"},{"name":"llama3:8b"}]}`))
	}))
	defer srv.Close()

	names, err := NewClient(srv.URL, srv.Client()).ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels: %v", err)
	}
	if want := []string{"qwen2.5-coder:7b", "llama3:8b"}; !reflect.DeepEqual(names, want) {
		t.Errorf("names = %v, want %v", names, want)
	}
}

func TestClient_ListModels_connectionRefused(t *testing.T) {
	t.Parallel()
	// Bind and release a port so nothing is listening.
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := listener.Addr().String()
	if err := listener.Close(); err != nil {
		t.Fatalf("close listener: %v", err)
	}
	_, err = NewClient("http://"+addr, nil).ListModels(context.Background())
	if !errors.Is(err, ErrUnreachable) {
		t.Errorf("error should wrap ErrUnreachable: %v", err)
	}
}
