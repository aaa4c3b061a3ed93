package tui

import (
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
)

// keyMap holds the bindings of the progress view.
type keyMap struct {
	Quit  key.Binding
	Next  key.Binding
	Prev  key.Binding
	Nodes key.Binding
	Run   key.Binding
	Up    key.Binding
	Down  key.Binding
}

var keys = keyMap{
	Quit:  key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	Next:  key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "cycle focus")),
	Prev:  key.NewBinding(key.WithKeys("shift+tab")),
	Nodes: key.NewBinding(key.WithKeys("1"), key.WithHelp("1/2", "jump to pane")),
	Run:   key.NewBinding(key.WithKeys("2")),
	Up:    key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("j/k", "select node")),
	Down:  key.NewBinding(key.WithKeys("j", "down")),
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Next, k.Nodes, k.Up, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp(), {k.Prev, k.Run, k.Down}}
}

// HelpView returns the one-line help bar.
func HelpView(finished bool) string {
	h := help.New()
	line := h.View(keys)
	if finished {
		return StyleHelp.Render("run finished • ") + line
	}
	return line
}
