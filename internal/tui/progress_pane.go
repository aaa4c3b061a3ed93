package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vikasvdk5/WestBay/internal/events"
	"github.com/vikasvdk5/WestBay/internal/runstate"
)

// ProgressPaneModel shows the run's status and required-role completion.
type ProgressPaneModel struct {
	sessionID string
	status    runstate.Status
	required  int
	completed int
	progress  float64
	failures  int

	finished   bool
	reportPath string
	elapsed    time.Duration

	width   int
	height  int
	focused bool
}

// NewProgressPaneModel creates the pane for sessionID.
func NewProgressPaneModel(sessionID string) ProgressPaneModel {
	return ProgressPaneModel{sessionID: sessionID, status: runstate.StatusInitialized}
}

// Update handles messages for the progress pane.
func (m ProgressPaneModel) Update(msg tea.Msg) (ProgressPaneModel, tea.Cmd) {
	switch msg := msg.(type) {
	case events.WorkflowProgressEvent:
		m.status = msg.Status
		m.required = msg.Required
		m.completed = msg.Completed
		m.progress = msg.Progress

	case events.NodeFailedEvent:
		m.failures++

	case events.WorkflowFinishedEvent:
		m.finished = true
		m.status = msg.Status
		m.reportPath = msg.ReportPath
		m.elapsed = msg.Duration
		if msg.Status == runstate.StatusCompleted {
			m.progress = 1
		}
	}
	return m, nil
}

// View renders the progress pane.
func (m ProgressPaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	var b strings.Builder

	title := StyleTitle.Render("Run Progress")
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", lipgloss.Width(title)))
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "Session:   %s\n", m.sessionID)
	fmt.Fprintf(&b, "Status:    %s\n", m.statusStyle().Render(string(m.status)))
	fmt.Fprintf(&b, "Roles:     %d/%d complete\n", m.completed, m.required)
	fmt.Fprintf(&b, "Errors:    %s\n", StyleStatusFailed.Render(fmt.Sprintf("%d", m.failures)))
	if m.finished {
		fmt.Fprintf(&b, "Elapsed:   %v\n", m.elapsed.Round(time.Second))
		if m.reportPath != "" {
			fmt.Fprintf(&b, "Report:    %s\n", m.reportPath)
		}
	}
	b.WriteString("\n")

	barWidth := max(min(m.width-12, 40), 0)
	done := int(m.progress * float64(barWidth))
	bar := StyleStatusComplete.Render(strings.Repeat("=", done)) +
		StyleStatusPending.Render(strings.Repeat(".", barWidth-done))
	fmt.Fprintf(&b, "[%s] %3.0f%%\n", bar, m.progress*100)

	return borderFor(m.focused).
		Width(m.width - 2).
		Height(m.height - 2).
		Render(b.String())
}

func (m ProgressPaneModel) statusStyle() lipgloss.Style {
	switch m.status {
	case runstate.StatusCompleted:
		return StyleStatusComplete
	case runstate.StatusError:
		return StyleStatusFailed
	case runstate.StatusContentDegraded, runstate.StatusAPIResearchSkipped:
		return StyleStatusDegraded
	default:
		return StyleStatusRunning
	}
}

// Finished reports whether the run reached a terminal status.
func (m ProgressPaneModel) Finished() bool { return m.finished }

// Status returns the last observed run status.
func (m ProgressPaneModel) Status() runstate.Status { return m.status }

// SetSize updates the pane dimensions.
func (m *ProgressPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// SetFocused updates the focus state.
func (m *ProgressPaneModel) SetFocused(focused bool) {
	m.focused = focused
}
