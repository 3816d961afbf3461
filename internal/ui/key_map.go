package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
//
// The editor consumes printable keys, so every binding uses a modifier or a key the editor ignores.
type keyMap struct {
	submit   key.Binding
	open     key.Binding
	history  key.Binding
	clear    key.Binding
	scrollUp key.Binding
	scrollDn key.Binding
	back     key.Binding
	quit     key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		submit:   key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("ctrl+s", "submit")),
		open:     key.NewBinding(key.WithKeys("ctrl+o"), key.WithHelp("ctrl+o", "open file")),
		history:  key.NewBinding(key.WithKeys("ctrl+r"), key.WithHelp("ctrl+r", "history")),
		clear:    key.NewBinding(key.WithKeys("ctrl+l"), key.WithHelp("ctrl+l", "clear")),
		scrollUp: key.NewBinding(key.WithKeys("pgup"), key.WithHelp("pgup", "scroll output")),
		scrollDn: key.NewBinding(key.WithKeys("pgdown"), key.WithHelp("pgdn", "scroll output")),
		back:     key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		quit:     key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.submit, k.open, k.history, k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.submit, k.open, k.history},
		{k.clear, k.scrollUp, k.scrollDn},
		{k.back, k.quit},
	}
}
