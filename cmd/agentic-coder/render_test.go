package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hochfrequenz/agentic-coder/internal/domain"
)

func sampleRun() (*domain.Run, []domain.LogEntry, []domain.FileChange) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	run := &domain.Run{
		ID:          3,
		ProjectPath: "/workspace/demo",
		Prompt:      "add a docstring",
		Plan:        domain.ModelSelection{FastModel: "qwen2.5-coder:7b"}.Encode(),
		Status:      domain.RunAwaitingReview,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	logs := []domain.LogEntry{
		{ID: 1, RunID: 3, Kind: domain.LogSystem, Message: "Run queued", CreatedAt: now},
		{ID: 2, RunID: 3, Kind: domain.LogTool, Message: "write_file a.py", CreatedAt: now},
	}
	changes := []domain.FileChange{
		{ID: 9, RunID: 3, FilePath: "a.py", Diff: "--- a/a.py\n+++ b/a.py\n@@ -1 +1,2 @@\n+\"\"\"doc\"\"\"\n print(1)"},
	}
	return run, logs, changes
}

func TestWriteRunText(t *testing.T) {
	run, logs, changes := sampleRun()
	var buf bytes.Buffer

	if err := writeRunText(&buf, run, logs, changes); err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	for _, want := range []string{
		"Run 3 [awaiting_review]",
		"Project: /workspace/demo",
		"write_file a.py",
		"#9 a.py (pending)",
		`+"""doc"""`,
		" print(1)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestWriteRunYAML(t *testing.T) {
	run, logs, changes := sampleRun()
	var buf bytes.Buffer

	if err := writeRunYAML(&buf, run, logs, changes); err != nil {
		t.Fatal(err)
	}

	var doc runDocument
	if err := yaml.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("output is not valid yaml: %v\n%s", err, buf.String())
	}
	if doc.Status != "awaiting_review" || doc.Models.Fast != "qwen2.5-coder:7b" {
		t.Errorf("doc = %+v", doc)
	}
	if len(doc.Logs) != 2 || doc.Logs[1].Message != "write_file a.py" {
		t.Errorf("Logs = %+v", doc.Logs)
	}
	if len(doc.Changes) != 1 || doc.Changes[0].Diff != changes[0].Diff {
		t.Errorf("Changes = %+v", doc.Changes)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"line one\nline two", 40, "line one line two"},
		{"abcdefghij", 8, "abcde..."},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.max); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}
