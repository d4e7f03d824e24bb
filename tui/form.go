package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-runewidth"

	"github.com/twschum/mix-mind/grid"
)

// rowForm collects a new ingredient, one input per editable column.
type rowForm struct {
	title  string
	cols   []grid.Column
	inputs []textinput.Model
	focus  int
	err    string
}

func newRowForm(title string, cols []grid.Column, values map[string]string) (rowForm, tea.Cmd) {
	f := rowForm{title: title}
	label := 0
	for _, c := range cols {
		if c.Editable {
			f.cols = append(f.cols, c)
			label = max(label, runewidth.StringWidth(c.Name))
		}
	}
	f.inputs = make([]textinput.Model, len(f.cols))
	for i, c := range f.cols {
		in := textinput.New()
		in.Prompt = runewidth.FillRight(c.Name, label) + "  "
		in.Placeholder = placeholder(c.Editor)
		in.SetValue(values[c.Key])
		in.CursorEnd()
		f.inputs[i] = in
	}
	cmd := f.setFocus(0)
	return f, cmd
}

func placeholder(ed grid.Editor) string {
	switch e := ed.(type) {
	case grid.ListEditor:
		vals := make([]string, len(e.Options))
		for i, o := range e.Options {
			vals[i] = o.Value
		}
		return strings.Join(vals, "/")
	case grid.ToggleEditor:
		return e.On + "/" + e.Off
	case grid.DateEditor:
		if e.Layout != "" {
			return e.Layout
		}
		return grid.DefaultDateLayout
	}
	return ""
}

func (f *rowForm) setFocus(i int) tea.Cmd {
	if len(f.inputs) == 0 {
		return nil
	}
	f.inputs[f.focus].Blur()
	f.focus = (i + len(f.inputs)) % len(f.inputs)
	return f.inputs[f.focus].Focus()
}

func (f *rowForm) last() bool { return f.focus == len(f.inputs)-1 }

func (f rowForm) values() map[string]string {
	out := make(map[string]string, len(f.cols))
	for i, c := range f.cols {
		out[c.Key] = f.inputs[i].Value()
	}
	return out
}

func (f rowForm) update(msg tea.Msg) (rowForm, tea.Cmd) {
	if len(f.inputs) == 0 {
		return f, nil
	}
	var cmd tea.Cmd
	f.inputs[f.focus], cmd = f.inputs[f.focus].Update(msg)
	f.err = ""
	return f, cmd
}

func (f rowForm) view() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(f.title) + "\n\n")
	for _, in := range f.inputs {
		b.WriteString(in.View() + "\n")
	}
	if f.err != "" {
		b.WriteString("\n" + errorStyle.Render(f.err) + "\n")
	}
	return boxStyle.Render(strings.TrimRight(b.String(), "\n"))
}

func formTitle(c *grid.Controller, handle string) string {
	if handle == "" {
		return "Add ingredient"
	}
	r, _ := c.Row(handle)
	return fmt.Sprintf("Add ingredient (copy of %s)", grid.ValueString(r.Get("Bottle")))
}
