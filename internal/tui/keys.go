package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Toggle    key.Binding
	Up        key.Binding
	Down      key.Binding
	Collapse  key.Binding
	Refresh   key.Binding
	Mirror    key.Binding
	Server    key.Binding
	Port      key.Binding
	NextTab   key.Binding
	CameraTab key.Binding
	LogsTab   key.Binding
	ServerTab key.Binding
	Quit      key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Toggle: key.NewBinding(
			key.WithKeys("enter", " ", "space"),
			key.WithHelp("enter", "pick camera"),
		),
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		Collapse: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "close list"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh list"),
		),
		Mirror: key.NewBinding(
			key.WithKeys("m"),
			key.WithHelp("m", "mirror"),
		),
		Server: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "start/stop server"),
		),
		Port: key.NewBinding(
			key.WithKeys("p"),
			key.WithHelp("p", "server port"),
		),
		NextTab: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab/1-3", "switch view"),
		),
		CameraTab: key.NewBinding(key.WithKeys("1")),
		LogsTab:   key.NewBinding(key.WithKeys("2")),
		ServerTab: key.NewBinding(key.WithKeys("3")),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Toggle, k.Refresh, k.Mirror, k.NextTab, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Toggle, k.Up, k.Down, k.Collapse},
		{k.Refresh, k.Mirror, k.Server, k.Port},
		{k.NextTab, k.Quit},
	}
}
