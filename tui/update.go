package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case TickMsg:
		return m, tea.Batch(m.reload(), tickCmd(m.refresh))

	case RunsLoadedMsg:
		m.err = msg.Err
		if msg.Err == nil {
			m.runs = msg.Runs
			m.lastRefresh = time.Now()
			m.selectedRow = clamp(m.selectedRow, len(m.runs))
		}

	case DetailLoadedMsg:
		if msg.RunID != m.detailRun {
			return m, nil
		}
		m.err = msg.Err
		if msg.Err == nil {
			m.logs = msg.Logs
			m.changes = msg.Changes
			m.selectedChange = clamp(m.selectedChange, len(m.changes))
		}

	case ReviewedMsg:
		m.err = msg.Err
		return m, m.loadDetail(m.detailRun)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "r":
		return m, m.reload()
	case "j", "down":
		if m.activeTab == TabRuns {
			m.selectedRow = clamp(m.selectedRow+1, len(m.runs))
		} else {
			m.selectedChange = clamp(m.selectedChange+1, len(m.changes))
		}
	case "k", "up":
		if m.activeTab == TabRuns {
			m.selectedRow = clamp(m.selectedRow-1, len(m.runs))
		} else {
			m.selectedChange = clamp(m.selectedChange-1, len(m.changes))
		}
	case "tab":
		m.activeTab = (m.activeTab + 1) % tabCount
		if m.activeTab == TabDetail {
			return m.openSelected()
		}
	case "enter":
		if m.activeTab == TabRuns {
			return m.openSelected()
		}
	case "esc":
		m.activeTab = TabRuns
	case "a", "x":
		if m.activeTab == TabDetail && len(m.changes) > 0 {
			change := m.changes[m.selectedChange]
			return m, m.review(change.ID, msg.String() == "a")
		}
	}
	return m, nil
}

// openSelected switches to the detail tab for the run under the cursor
func (m Model) openSelected() (tea.Model, tea.Cmd) {
	run := m.selectedRun()
	if run == nil {
		m.activeTab = TabRuns
		return m, nil
	}
	m.activeTab = TabDetail
	if run.ID != m.detailRun {
		m.detailRun = run.ID
		m.logs = nil
		m.changes = nil
		m.selectedChange = 0
	}
	return m, m.loadDetail(run.ID)
}

func (m Model) reload() tea.Cmd {
	if m.activeTab == TabDetail && m.detailRun != 0 {
		return tea.Batch(m.loadRuns(), m.loadDetail(m.detailRun))
	}
	return m.loadRuns()
}

// clamp keeps a cursor inside [0, n)
func clamp(i, n int) int {
	if i >= n {
		i = n - 1
	}
	if i < 0 {
		i = 0
	}
	return i
}
