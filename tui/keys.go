package main

import "github.com/charmbracelet/bubbles/key"

// keyMap holds the grid key bindings.
type keyMap struct {
	Left, Right, Up, Down key.Binding
	Next, Prev            key.Binding
	NextPage, PrevPage    key.Binding

	Edit, Toggle, Delete key.Binding
	Add, Clone           key.Binding
	Sort, Filter, Reload key.Binding
	Save, Export         key.Binding

	Confirm, Commit, Cancel key.Binding
	Yes, No                 key.Binding
	Quit                    key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Left:  key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "left")),
		Right: key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "right")),
		Up:    key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:  key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Next:  key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next cell")),
		Prev:  key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "prev cell")),

		NextPage: key.NewBinding(key.WithKeys("pgdown", "]"), key.WithHelp("]", "next page")),
		PrevPage: key.NewBinding(key.WithKeys("pgup", "["), key.WithHelp("[", "prev page")),

		Edit:   key.NewBinding(key.WithKeys("enter", "e"), key.WithHelp("enter", "edit")),
		Toggle: key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "toggle")),
		Delete: key.NewBinding(key.WithKeys("d", "delete"), key.WithHelp("d", "delete row")),
		Add:    key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add")),
		Clone:  key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "clone")),
		Sort:   key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "sort")),
		Filter: key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "filter")),
		Reload: key.NewBinding(key.WithKeys("r", "ctrl+r"), key.WithHelp("r", "reload")),
		Save:   key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("ctrl+s", "snapshot")),
		Export: key.NewBinding(key.WithKeys("X"), key.WithHelp("X", "export")),

		Confirm: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "confirm")),
		// multi-line editors keep enter for newlines
		Commit: key.NewBinding(key.WithKeys("ctrl+s", "alt+enter"), key.WithHelp("ctrl+s", "save")),
		Cancel: key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),

		Yes: key.NewBinding(key.WithKeys("y", "enter"), key.WithHelp("y", "yes")),
		No:  key.NewBinding(key.WithKeys("n", "esc"), key.WithHelp("n", "no")),

		Quit: key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}
