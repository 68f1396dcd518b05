package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Day    key.Binding
	Week   key.Binding
	Month  key.Binding
	Prev   key.Binding
	Next   key.Binding
	Today  key.Binding
	Add    key.Binding
	Toggle key.Binding
	Delete key.Binding
	Theme  key.Binding
	Reload key.Binding
	Quit   key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Day:    key.NewBinding(key.WithKeys("d", "1"), key.WithHelp("d", "day")),
		Week:   key.NewBinding(key.WithKeys("w", "2"), key.WithHelp("w", "week")),
		Month:  key.NewBinding(key.WithKeys("m", "3"), key.WithHelp("m", "month")),
		Prev:   key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←", "prev")),
		Next:   key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→", "next")),
		Today:  key.NewBinding(key.WithKeys("g"), key.WithHelp("g", "today")),
		Add:    key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add")),
		Toggle: key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "toggle")),
		Delete: key.NewBinding(key.WithKeys("x", "delete"), key.WithHelp("x", "delete")),
		Theme:  key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "theme")),
		Reload: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
		Quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Day, k.Week, k.Month, k.Add, k.Toggle, k.Delete, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Day, k.Week, k.Month},
		{k.Prev, k.Next, k.Today},
		{k.Add, k.Toggle, k.Delete},
		{k.Theme, k.Reload, k.Quit},
	}
}
