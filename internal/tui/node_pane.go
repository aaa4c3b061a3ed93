package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vikasvdk5/WestBay/internal/events"
	"github.com/vikasvdk5/WestBay/internal/runstate"
)

// Node states shown in the list.
const (
	NodeRunning   = "running"
	NodeCompleted = "completed"
	NodeDegraded  = "degraded"
	NodeFailed    = "failed"
)

// NodeState tracks one graph node of the watched run.
type NodeState struct {
	Name      string
	Role      runstate.Role
	Step      int
	Status    string
	Log       []string
	StartTime time.Time
	Duration  time.Duration
}

// NodePaneModel lists the nodes of the run next to a scrollable log of the
// selected node.
type NodePaneModel struct {
	nodes       map[string]*NodeState
	order       []string
	selectedIdx int
	viewport    viewport.Model
	width       int
	height      int
	focused     bool
}

const nodeListWidth = 28

// NewNodePaneModel creates an empty node pane.
func NewNodePaneModel() NodePaneModel {
	return NodePaneModel{
		nodes:    make(map[string]*NodeState),
		viewport: viewport.New(0, 0),
	}
}

// Update handles messages for the node pane.
func (m NodePaneModel) Update(msg tea.Msg) (NodePaneModel, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if !m.focused {
			break
		}
		switch {
		case key.Matches(msg, keys.Down):
			if m.selectedIdx < len(m.order)-1 {
				m.selectedIdx++
				m.refresh()
			}
		case key.Matches(msg, keys.Up):
			if m.selectedIdx > 0 {
				m.selectedIdx--
				m.refresh()
			}
		default:
			m.viewport, cmd = m.viewport.Update(msg)
		}

	case events.NodeStartedEvent:
		n, ok := m.nodes[msg.Node]
		if !ok {
			n = &NodeState{Name: msg.Node, Role: msg.Role, Step: msg.Step}
			m.nodes[msg.Node] = n
			m.order = append(m.order, msg.Node)
		}
		n.Status = NodeRunning
		n.StartTime = msg.Timestamp
		n.Log = append(n.Log, fmt.Sprintf("[%s] started (step %d)", msg.Timestamp.Format(time.TimeOnly), msg.Step))
		// Follow the newest node unless the user moved the selection.
		if m.selectedIdx == len(m.order)-2 || len(m.order) == 1 {
			m.selectedIdx = len(m.order) - 1
		}
		m.refresh()

	case events.NodeCompletedEvent:
		n := m.node(msg.Node, msg.Role)
		n.Status = NodeCompleted
		if msg.Degraded {
			n.Status = NodeDegraded
		}
		n.Duration = msg.Duration
		line := fmt.Sprintf("[%s] %s in %v, status %s",
			msg.Timestamp.Format(time.TimeOnly), n.Status, msg.Duration.Round(time.Millisecond), msg.Status)
		n.Log = append(n.Log, line)
		m.refresh()

	case events.NodeFailedEvent:
		n := m.node(msg.Node, msg.Role)
		n.Status = NodeFailed
		n.Duration = msg.Duration
		n.Log = append(n.Log, fmt.Sprintf("[%s] failed (%s): %v",
			msg.Timestamp.Format(time.TimeOnly), msg.Kind, msg.Err))
		m.refresh()
	}

	return m, cmd
}

// node returns the state of name, creating it when a completion arrives for
// a node whose start was missed.
func (m *NodePaneModel) node(name string, role runstate.Role) *NodeState {
	if n, ok := m.nodes[name]; ok {
		return n
	}
	n := &NodeState{Name: name, Role: role}
	m.nodes[name] = n
	m.order = append(m.order, name)
	return n
}

// View renders the node pane.
func (m NodePaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	content := lipgloss.JoinHorizontal(
		lipgloss.Top,
		m.renderList(),
		lipgloss.NewStyle().
			Width(max(m.width-nodeListWidth-4, 10)).
			Height(m.height-2).
			Render(m.viewport.View()),
	)

	return borderFor(m.focused).
		Width(m.width - 2).
		Height(m.height - 2).
		Render(content)
}

func (m NodePaneModel) renderList() string {
	var b strings.Builder

	title := StyleTitle.Render("Nodes")
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", min(nodeListWidth, lipgloss.Width(title))))
	b.WriteString("\n\n")

	if len(m.order) == 0 {
		b.WriteString(StyleStatusPending.Render("Waiting..."))
	}
	for i, name := range m.order {
		n := m.nodes[name]
		label := name
		if len(label) > nodeListWidth-4 {
			label = label[:nodeListWidth-7] + "..."
		}
		line := fmt.Sprintf("%s %s", StatusIcon(n.Status), label)
		if i == m.selectedIdx {
			line = StyleSelected.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	return lipgloss.NewStyle().
		Width(nodeListWidth).
		Height(m.height - 2).
		Render(b.String())
}

// StatusIcon returns a styled status indicator.
func StatusIcon(status string) string {
	switch status {
	case NodeRunning:
		return StyleStatusRunning.Render("●")
	case NodeCompleted:
		return StyleStatusComplete.Render("✓")
	case NodeDegraded:
		return StyleStatusDegraded.Render("~")
	case NodeFailed:
		return StyleStatusFailed.Render("✗")
	default:
		return StyleStatusPending.Render("○")
	}
}

// Selected returns the selected node, or nil before any node started.
func (m NodePaneModel) Selected() *NodeState {
	if m.selectedIdx >= 0 && m.selectedIdx < len(m.order) {
		return m.nodes[m.order[m.selectedIdx]]
	}
	return nil
}

// Nodes returns the node names in start order.
func (m NodePaneModel) Nodes() []string { return m.order }

func (m *NodePaneModel) refresh() {
	n := m.Selected()
	if n == nil {
		m.viewport.SetContent("Waiting for nodes...")
		return
	}
	header := fmt.Sprintf("%s (role %s)\n\n", n.Name, n.Role)
	m.viewport.SetContent(header + strings.Join(n.Log, "\n"))
	m.viewport.GotoBottom()
}

// SetSize updates the pane dimensions.
func (m *NodePaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.viewport.Width = max(w-nodeListWidth-4, 10)
	m.viewport.Height = max(h-4, 5)
}

// SetFocused updates the focus state.
func (m *NodePaneModel) SetFocused(focused bool) {
	m.focused = focused
}
