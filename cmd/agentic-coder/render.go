package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"github.com/hochfrequenz/agentic-coder/internal/domain"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	addStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	delStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	hunkStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	kindStyles  = map[domain.LogKind]lipgloss.Style{
		domain.LogSecurity: lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
		domain.LogError:    lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
	}
)

// runDocument is the yaml shape of `show --output yaml`
type runDocument struct {
	ID          int64            `yaml:"id"`
	ProjectPath string           `yaml:"project_path"`
	Prompt      string           `yaml:"prompt"`
	Status      string           `yaml:"status"`
	Models      modelsDocument   `yaml:"models,omitempty"`
	CreatedAt   time.Time        `yaml:"created_at"`
	UpdatedAt   time.Time        `yaml:"updated_at"`
	Logs        []logDocument    `yaml:"logs"`
	Changes     []changeDocument `yaml:"changes"`
}

type modelsDocument struct {
	Fast string `yaml:"fast,omitempty"`
	Deep string `yaml:"deep,omitempty"`
}

type logDocument struct {
	Kind    string `yaml:"kind"`
	Message string `yaml:"message"`
}

type changeDocument struct {
	ID       int64  `yaml:"id"`
	File     string `yaml:"file"`
	Accepted bool   `yaml:"accepted"`
	Diff     string `yaml:"diff"`
}

func writeRunYAML(w io.Writer, run *domain.Run, logs []domain.LogEntry, changes []domain.FileChange) error {
	models, _ := run.Models()
	doc := runDocument{
		ID:          run.ID,
		ProjectPath: run.ProjectPath,
		Prompt:      run.Prompt,
		Status:      string(run.Status),
		Models:      modelsDocument{Fast: models.FastModel, Deep: models.DeepModel},
		CreatedAt:   run.CreatedAt,
		UpdatedAt:   run.UpdatedAt,
		Logs:        make([]logDocument, len(logs)),
		Changes:     make([]changeDocument, len(changes)),
	}
	for i, l := range logs {
		doc.Logs[i] = logDocument{Kind: string(l.Kind), Message: l.Message}
	}
	for i, c := range changes {
		doc.Changes[i] = changeDocument{ID: c.ID, File: c.FilePath, Accepted: c.Accepted, Diff: c.Diff}
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}

func writeRunText(w io.Writer, run *domain.Run, logs []domain.LogEntry, changes []domain.FileChange) error {
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("Run %d [%s]", run.ID, run.Status)))
	fmt.Fprintf(w, "Project: %s\n", run.ProjectPath)
	fmt.Fprintf(w, "Prompt:  %s\n", run.Prompt)

	fmt.Fprintln(w)
	fmt.Fprintln(w, headerStyle.Render("Log"))
	for _, l := range logs {
		line := fmt.Sprintf("%-8s %s", l.Kind, l.Message)
		if style, ok := kindStyles[l.Kind]; ok {
			line = style.Render(line)
		}
		fmt.Fprintf(w, "  %s %s\n", l.CreatedAt.Local().Format("15:04:05"), line)
	}

	if len(changes) == 0 {
		return nil
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, headerStyle.Render("Changes"))
	for _, c := range changes {
		state := "pending"
		if c.Accepted {
			state = "accepted"
		}
		fmt.Fprintf(w, "#%d %s (%s)\n", c.ID, c.FilePath, state)
		fmt.Fprintln(w, colorDiff(c.Diff))
	}
	return nil
}

// colorDiff styles added, removed and hunk lines of a unified diff
func colorDiff(diff string) string {
	lines := strings.Split(diff, "\n")
	for i, line := range lines {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
			lines[i] = headerStyle.Render(line)
		case strings.HasPrefix(line, "+"):
			lines[i] = addStyle.Render(line)
		case strings.HasPrefix(line, "-"):
			lines[i] = delStyle.Render(line)
		case strings.HasPrefix(line, "@@"):
			lines[i] = hunkStyle.Render(line)
		}
	}
	return strings.Join(lines, "\n")
}

func truncate(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
