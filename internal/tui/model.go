// Package tui renders a live view of one report run from the event bus.
package tui

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vikasvdk5/WestBay/internal/events"
	"github.com/vikasvdk5/WestBay/internal/runstate"
)

// PaneID identifies which pane is focused.
type PaneID int

const (
	PaneNodes PaneID = iota
	PaneProgress
	paneCount
)

// busClosedMsg is delivered once the subscription channel is closed.
type busClosedMsg struct{}

// Model is the root Bubble Tea model for the TUI.
type Model struct {
	nodePane     NodePaneModel
	progressPane ProgressPaneModel
	focusedPane  PaneID
	eventSub     <-chan events.Event
	width        int
	height       int
	quitting     bool

	// QuitOnFinish exits the program as soon as the run finishes.
	QuitOnFinish bool
}

// New creates a model watching sessionID on bus. Subscribe before starting
// the run so no event is missed.
func New(bus *events.EventBus, sessionID string) Model {
	return NewFromChannel(bus.SubscribeSession(sessionID, 256), sessionID)
}

// NewFromChannel creates a model reading from an existing subscription.
func NewFromChannel(sub <-chan events.Event, sessionID string) Model {
	m := Model{
		nodePane:     NewNodePaneModel(),
		progressPane: NewProgressPaneModel(sessionID),
		focusedPane:  PaneNodes,
		eventSub:     sub,
	}
	m.updateFocusStates()
	return m
}

// Init initializes the model and returns the initial command.
func (m Model) Init() tea.Cmd {
	return waitForEvent(m.eventSub)
}

// waitForEvent returns a command that waits for the next event from the event bus.
func waitForEvent(sub <-chan events.Event) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-sub
		if !ok {
			return busClosedMsg{}
		}
		return event
	}
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, keys.Next):
			m.focusedPane = (m.focusedPane + 1) % paneCount
			m.updateFocusStates()
		case key.Matches(msg, keys.Prev):
			m.focusedPane = (m.focusedPane + paneCount - 1) % paneCount
			m.updateFocusStates()
		case key.Matches(msg, keys.Nodes):
			m.focusedPane = PaneNodes
			m.updateFocusStates()
		case key.Matches(msg, keys.Run):
			m.focusedPane = PaneProgress
			m.updateFocusStates()
		default:
			if m.focusedPane == PaneNodes {
				var cmd tea.Cmd
				m.nodePane, cmd = m.nodePane.Update(msg)
				cmds = append(cmds, cmd)
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.computeLayout()

	case events.NodeStartedEvent, events.NodeCompletedEvent:
		m.nodePane, _ = m.nodePane.Update(msg)
		cmds = append(cmds, waitForEvent(m.eventSub))

	case events.NodeFailedEvent:
		m.nodePane, _ = m.nodePane.Update(msg)
		m.progressPane, _ = m.progressPane.Update(msg)
		cmds = append(cmds, waitForEvent(m.eventSub))

	case events.WorkflowProgressEvent:
		m.progressPane, _ = m.progressPane.Update(msg)
		cmds = append(cmds, waitForEvent(m.eventSub))

	case events.WorkflowFinishedEvent:
		m.progressPane, _ = m.progressPane.Update(msg)
		if m.QuitOnFinish {
			return m, tea.Quit
		}
		cmds = append(cmds, waitForEvent(m.eventSub))

	case busClosedMsg:
		// Nothing more will arrive; keep the last frame until the user quits.
	}

	return m, tea.Batch(cmds...)
}

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return "Detached.\n"
	}
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	content := lipgloss.JoinHorizontal(lipgloss.Top, m.nodePane.View(), m.progressPane.View())
	return lipgloss.JoinVertical(lipgloss.Left, content, HelpView(m.progressPane.Finished()))
}

// Finished reports whether the watched run reached a terminal status.
func (m Model) Finished() bool { return m.progressPane.Finished() }

// Status returns the last observed run status.
func (m Model) Status() runstate.Status { return m.progressPane.Status() }

// computeLayout gives the node pane 60% of the width.
func (m *Model) computeLayout() {
	leftWidth := (m.width * 60) / 100
	availableHeight := m.height - 1

	m.nodePane.SetSize(leftWidth, availableHeight)
	m.progressPane.SetSize(m.width-leftWidth, availableHeight)
	m.updateFocusStates()
}

func (m *Model) updateFocusStates() {
	m.nodePane.SetFocused(m.focusedPane == PaneNodes)
	m.progressPane.SetFocused(m.focusedPane == PaneProgress)
}
