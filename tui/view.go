package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/hochfrequenz/agentic-coder/internal/domain"
)

var (
	headerStyle = lipgloss.NewStyle().
		Background(lipgloss.Color("236")).
		Foreground(lipgloss.Color("255")).
		Padding(0, 1)

	sectionStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	sectionTitleStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("39"))

	tabActiveStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("205")).
		Underline(true)

	tabInactiveStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("244"))

	selectedStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("205"))

	dimmedStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("240"))

	errorStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("196"))

	statusBarStyle = lipgloss.NewStyle().
		Background(lipgloss.Color("236")).
		Foreground(lipgloss.Color("255"))

	addStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	delStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	hunkStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))

	statusStyles = map[domain.RunStatus]lipgloss.Style{
		domain.RunQueued:         lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
		domain.RunRunning:        lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		domain.RunAwaitingReview: lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
		domain.RunCompleted:      lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		domain.RunFailed:         lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	}

	logKindStyles = map[domain.LogKind]lipgloss.Style{
		domain.LogSecurity: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		domain.LogError:    errorStyle,
		domain.LogSystem:   dimmedStyle,
	}
)

// View renders the TUI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	var b strings.Builder

	b.WriteString(headerStyle.Width(m.width).Render(m.headerLine()))
	b.WriteString("\n")
	b.WriteString(m.renderTabs())
	b.WriteString("\n")

	switch m.activeTab {
	case TabRuns:
		b.WriteString(sectionStyle.Width(m.width - 2).Render(m.renderRuns()))
	case TabDetail:
		b.WriteString(sectionStyle.Width(m.width - 2).Render(m.renderDetail()))
	}
	b.WriteString("\n")

	if m.err != nil {
		b.WriteString(errorStyle.Render("Error: " + m.err.Error()))
		b.WriteString("\n")
	}

	b.WriteString(m.renderStatusBar())
	return b.String()
}

func (m Model) headerLine() string {
	counts := make(map[domain.RunStatus]int)
	for _, r := range m.runs {
		counts[r.Status]++
	}
	return fmt.Sprintf(" Agentic Coder │ Queued: %d │ Running: %d │ Awaiting review: %d │ Failed: %d ",
		counts[domain.RunQueued], counts[domain.RunRunning], counts[domain.RunAwaitingReview], counts[domain.RunFailed])
}

func (m Model) renderTabs() string {
	names := []string{"Runs", "Detail"}
	var parts []string
	for i, name := range names {
		if i == m.activeTab {
			parts = append(parts, tabActiveStyle.Render(name))
		} else {
			parts = append(parts, tabInactiveStyle.Render(name))
		}
	}
	return " " + strings.Join(parts, "  ")
}

func (m Model) renderRuns() string {
	var b strings.Builder
	b.WriteString(sectionTitleStyle.Render(fmt.Sprintf("RUNS (%d)", len(m.runs))))
	b.WriteString("\n")

	if len(m.runs) == 0 {
		b.WriteString(dimmedStyle.Render("No runs yet. Submit one with `agentic-coder submit`."))
		return b.String()
	}

	for i, r := range m.runs {
		line := fmt.Sprintf("%-5d %-16s %-28s %s",
			r.ID,
			statusStyle(r.Status).Render(string(r.Status)),
			truncate(r.ProjectPath, 28),
			truncate(r.Prompt, max(m.width-60, 10)))
		if i == m.selectedRow {
			line = selectedStyle.Render("> ") + line
		} else {
			line = "  " + line
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m Model) renderDetail() string {
	run := m.detail()
	if run == nil {
		return dimmedStyle.Render("Select a run and press enter.")
	}

	var b strings.Builder
	b.WriteString(sectionTitleStyle.Render(fmt.Sprintf("RUN %d", run.ID)))
	b.WriteString("  ")
	b.WriteString(statusStyle(run.Status).Render(string(run.Status)))
	b.WriteString("\n")
	b.WriteString(dimmedStyle.Render(run.ProjectPath))
	b.WriteString("\n")
	b.WriteString(run.Prompt)
	b.WriteString("\n\n")

	b.WriteString(sectionTitleStyle.Render("LOG"))
	b.WriteString("\n")
	for _, l := range tail(m.logs, m.logLines()) {
		kind := fmt.Sprintf("[%s]", l.Kind)
		if style, ok := logKindStyles[l.Kind]; ok {
			kind = style.Render(kind)
		}
		fmt.Fprintf(&b, "%s %s\n", kind, l.Message)
	}

	b.WriteString("\n")
	b.WriteString(sectionTitleStyle.Render(fmt.Sprintf("CHANGES (%d)", len(m.changes))))
	b.WriteString("\n")
	if len(m.changes) == 0 {
		b.WriteString(dimmedStyle.Render("No file changes."))
		return b.String()
	}
	for i, c := range m.changes {
		mark := "[ ]"
		if c.Accepted {
			mark = addStyle.Render("[✓]")
		}
		cursor := "  "
		if i == m.selectedChange {
			cursor = selectedStyle.Render("> ")
		}
		fmt.Fprintf(&b, "%s%s %d %s\n", cursor, mark, c.ID, c.FilePath)
	}

	b.WriteString("\n")
	b.WriteString(colorDiff(m.changes[m.selectedChange].Diff))
	return b.String()
}

func (m Model) renderStatusBar() string {
	help := "q quit │ r refresh │ j/k move │ tab switch │ enter open"
	if m.activeTab == TabDetail {
		help = "q quit │ r refresh │ j/k change │ a accept │ x reject │ esc back"
	}
	if !m.lastRefresh.IsZero() {
		help += " │ updated " + m.lastRefresh.Format("15:04:05")
	}
	return statusBarStyle.Width(m.width).Render(" " + help)
}

// logLines is how many log lines fit beside the header, prompt and changes
func (m Model) logLines() int {
	n := m.height - 20 - len(m.changes)
	if n < 5 {
		n = 5
	}
	return n
}

func statusStyle(s domain.RunStatus) lipgloss.Style {
	if style, ok := statusStyles[s]; ok {
		return style
	}
	return dimmedStyle
}

func colorDiff(diff string) string {
	lines := strings.Split(diff, "\n")
	for i, line := range lines {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
			lines[i] = dimmedStyle.Render(line)
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

func tail(logs []domain.LogEntry, n int) []domain.LogEntry {
	if len(logs) <= n {
		return logs
	}
	return logs[len(logs)-n:]
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}
