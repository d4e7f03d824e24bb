package main

import (
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/twschum/mix-mind/grid"
)

// cellEditor is the widget for one affordance.
type cellEditor struct {
	aff   grid.Affordance
	input textinput.Model
	area  textarea.Model
	// choice is the highlighted option, -1 while the cell holds a value
	// that is not among the options
	choice int
}

func newCellEditor(aff grid.Affordance, width int) (cellEditor, tea.Cmd) {
	e := cellEditor{aff: aff, choice: aff.Selected}
	switch aff.Kind {
	case grid.KindSelect:
		return e, nil
	case grid.KindTextArea:
		e.area = textarea.New()
		e.area.ShowLineNumbers = false
		e.area.CharLimit = 0
		e.area.SetWidth(max(width, 40))
		e.area.SetHeight(4)
		e.area.SetValue(aff.Text())
		cmd := e.area.Focus()
		return e, cmd
	case grid.KindToggle:
		return e, nil
	}
	e.input = textinput.New()
	e.input.Prompt = ""
	e.input.SetValue(aff.Text())
	e.input.CursorEnd()
	if aff.Kind == grid.KindDate {
		e.input.Placeholder = aff.Layout
	}
	cmd := e.input.Focus()
	return e, cmd
}

func (e cellEditor) value() string {
	switch e.aff.Kind {
	case grid.KindSelect:
		if e.choice >= 0 && e.choice < len(e.aff.Options) {
			return e.aff.Options[e.choice].Value
		}
		return e.aff.Text()
	case grid.KindTextArea:
		return e.area.Value()
	case grid.KindToggle:
		return e.aff.Value
	}
	return e.input.Value()
}

func (e cellEditor) update(msg tea.KeyMsg) (cellEditor, tea.Cmd) {
	var cmd tea.Cmd
	switch e.aff.Kind {
	case grid.KindSelect:
		switch msg.String() {
		case "up", "k":
			if e.choice > 0 {
				e.choice--
			}
		case "down", "j":
			if e.choice < len(e.aff.Options)-1 {
				e.choice++
			}
		case "home":
			e.choice = min(0, len(e.aff.Options)-1)
		case "end":
			e.choice = len(e.aff.Options) - 1
		}
	case grid.KindTextArea:
		e.area, cmd = e.area.Update(msg)
	case grid.KindDate:
		switch msg.String() {
		case "up", "+":
			e.input.SetValue(stepDate(e.input.Value(), e.aff.Layout, 1))
			e.input.CursorEnd()
		case "down", "-":
			e.input.SetValue(stepDate(e.input.Value(), e.aff.Layout, -1))
			e.input.CursorEnd()
		default:
			e.input, cmd = e.input.Update(msg)
		}
	case grid.KindToggle:
	default:
		e.input, cmd = e.input.Update(msg)
	}
	return e, cmd
}

// stepDate moves a date by days. An empty or unparseable value starts from
// today.
func stepDate(s, layout string, days int) string {
	t, err := time.Parse(layout, strings.TrimSpace(s))
	if err != nil {
		now := time.Now()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).Format(layout)
	}
	return t.AddDate(0, 0, days).Format(layout)
}

// inline is the editor as drawn inside its cell.
func (e cellEditor) inline() string {
	switch e.aff.Kind {
	case grid.KindSelect:
		return e.value() + " ▾"
	case grid.KindTextArea:
		first, _, _ := strings.Cut(e.area.Value(), "\n")
		return first + " …"
	case grid.KindToggle:
		return grid.FormatCell(e.aff.Value == e.aff.On, grid.FormatBool)
	}
	return e.input.View()
}

// panel is drawn below the table for editors that need more room than a
// cell. It is empty for single-line editors.
func (e cellEditor) panel() string {
	switch e.aff.Kind {
	case grid.KindSelect:
		var b strings.Builder
		if e.choice < 0 {
			b.WriteString(dimStyle.Render("  current: "+e.aff.Text()) + "\n")
		}
		for i, o := range e.aff.Options {
			line := "  " + o.Display
			if i == e.choice {
				line = cursorStyle.Render("> " + o.Display)
			}
			b.WriteString(line + "\n")
		}
		return b.String()
	case grid.KindTextArea:
		return e.area.View() + "\n"
	}
	return ""
}
