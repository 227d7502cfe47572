package dashboard

import "github.com/charmbracelet/bubbles/key"

// keyMap implements help.KeyMap. Refresh is disabled on the live
// dashboard, which has nothing to trigger.
type keyMap struct {
	Refresh key.Binding
	Dismiss key.Binding
	Clear   key.Binding
	Help    key.Binding
	Quit    key.Binding
}

// newKeyMap binds the unmodified r key; ctrl+r and alt+r do not match.
func newKeyMap(refresh bool) keyMap {
	k := keyMap{
		Refresh: key.NewBinding(
			key.WithKeys("r", "R"),
			key.WithHelp("r", "refresh"),
		),
		Dismiss: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "dismiss oldest"),
		),
		Clear: key.NewBinding(
			key.WithKeys("X"),
			key.WithHelp("X", "clear all"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
	k.Refresh.SetEnabled(refresh)
	return k
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Refresh, k.Dismiss, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Refresh, k.Dismiss, k.Clear},
		{k.Help, k.Quit},
	}
}
