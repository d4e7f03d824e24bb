package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/twschum/mix-mind/grid"
)

// styles
var (
	titleStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	headerStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("8"))
	cursorStyle     = lipgloss.NewStyle().Background(lipgloss.Color("4")).Foreground(lipgloss.Color("15"))
	dimStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	errorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	committingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Italic(true)
	invalidStyle    = lipgloss.NewStyle().Background(lipgloss.Color("1")).Foreground(lipgloss.Color("15"))

	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	alertStyle = boxStyle.BorderForeground(lipgloss.Color("9"))
)

const maxColWidth = 30

func (m model) View() string {
	if m.width == 0 {
		return "loading..."
	}
	var b strings.Builder

	b.WriteString(titleStyle.Render(" Bar stock"))
	b.WriteString(dimStyle.Render("  " + m.source))
	b.WriteString("\n")

	if m.err != nil {
		b.WriteString(errorStyle.Render(" error: "+m.err.Error()) + "\n")
	}

	b.WriteString(m.viewTable())

	if m.mode == modeEdit {
		b.WriteString(m.ed.panel())
	}
	if m.mode == modeFilter {
		b.WriteString(" " + m.filter.View() + "\n")
	}
	if m.mode == modeAdd {
		b.WriteString(m.form.view() + "\n")
	}

	b.WriteString(m.viewStatus())
	b.WriteString("\n")
	b.WriteString(" " + m.help.ShortHelpView(m.bindings()))

	if p, ok := m.grid.Prompt(); ok {
		b.WriteString("\n")
		b.WriteString(boxStyle.Render(promptText(p)))
	}
	if n, ok := m.grid.Notice(); ok {
		b.WriteString("\n")
		b.WriteString(alertStyle.Render(n.Text + "\n\n" + dimStyle.Render("enter to dismiss")))
	}
	return b.String()
}

func promptText(p grid.DeletePrompt) string {
	switch {
	case p.Busy:
		return p.Text + "\n\ndeleting..."
	case p.Done:
		return p.Text + "\n\n" + dimStyle.Render("enter to close")
	}
	return p.Text + "\n\n" + dimStyle.Render("y delete  n keep")
}

func (m model) viewTable() string {
	var b strings.Builder
	cols := m.grid.Columns()
	if len(cols) == 0 {
		b.WriteString(dimStyle.Render(" (no columns)\n"))
		return b.String()
	}

	w := m.window()
	widths := m.computeColWidths(w.Handles)
	visStart, visEnd := visibleCols(widths, m.width-2, m.scrollX, m.cx)

	// header
	for ci := visStart; ci < visEnd; ci++ {
		name := cols[ci].Name
		if m.gv.SortKey == cols[ci].Key {
			if m.gv.Desc {
				name += " ↓"
			} else {
				name += " ↑"
			}
		}
		cell := " " + runewidth.FillRight(runewidth.Truncate(name, widths[ci], "."), widths[ci]) + " "
		b.WriteString(headerStyle.Render(cell))
		if ci < visEnd-1 {
			b.WriteString(dimStyle.Render("│"))
		}
	}
	b.WriteString("\n")

	// separator
	for ci := visStart; ci < visEnd; ci++ {
		b.WriteString(dimStyle.Render(strings.Repeat("─", widths[ci]+2)))
		if ci < visEnd-1 {
			b.WriteString(dimStyle.Render("┼"))
		}
	}
	b.WriteString("\n")

	if len(w.Handles) == 0 {
		if m.grid.Loading() {
			b.WriteString(dimStyle.Render(" loading rows...\n"))
		} else {
			b.WriteString(dimStyle.Render(" no rows\n"))
		}
	}

	sess, editing := m.grid.Session()
	for ri, h := range w.Handles {
		for ci := visStart; ci < visEnd; ci++ {
			c := cols[ci]
			ref := grid.CellRef{Row: h, Col: c.Key}

			var display string
			if m.mode == modeEdit && editing && sess.Ref == ref {
				display = runewidth.FillRight(runewidth.Truncate(m.ed.inline(), widths[ci], "…"), widths[ci])
			} else {
				display = grid.AlignCell(grid.FormatCell(m.grid.Display(ref), c.Format), c.Format, widths[ci])
			}
			cell := " " + display + " "

			switch {
			case editing && sess.Ref == ref && sess.Invalid:
				b.WriteString(invalidStyle.Render(cell))
			case ri == m.cy && ci == m.cx:
				b.WriteString(cursorStyle.Render(cell))
			case m.grid.State(ref) == grid.Committing:
				b.WriteString(committingStyle.Render(cell))
			default:
				b.WriteString(cell)
			}
			if ci < visEnd-1 {
				b.WriteString(dimStyle.Render("│"))
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (m model) viewStatus() string {
	var parts []string
	if m.grid.Loading() || m.grid.Pending() > 0 {
		parts = append(parts, m.spinner.View())
	}
	modeStr := "NORMAL"
	switch m.mode {
	case modeEdit:
		modeStr = "EDIT"
		if s, ok := m.grid.Session(); ok && s.Invalid {
			modeStr = "EDIT (invalid)"
		}
	case modeFilter:
		modeStr = "FILTER"
	case modeAdd:
		modeStr = "ADD"
	}
	parts = append(parts, modeStr)

	w := m.window()
	pages := w.Pages
	if pages < 1 {
		pages = 1
	}
	parts = append(parts, fmt.Sprintf("page %d/%d", w.Page+1, pages), fmt.Sprintf("%d rows", w.Total))
	if m.gv.Filter != "" {
		parts = append(parts, fmt.Sprintf("filter %q", m.gv.Filter))
	}
	if n := m.grid.Pending(); n > 0 {
		parts = append(parts, fmt.Sprintf("%d saving", n))
	}
	if m.status != "" {
		parts = append(parts, m.status)
	}
	return statusStyle.Render(" " + strings.Join(parts, "  "))
}

// bindings lists the keys that apply in the current mode, for the help line.
func (m model) bindings() []key.Binding {
	k := m.keys
	switch m.mode {
	case modeEdit:
		if m.ed.aff.Kind == grid.KindTextArea {
			return []key.Binding{k.Commit, k.Cancel, k.Next}
		}
		return []key.Binding{k.Confirm, k.Cancel, k.Next}
	case modeAdd:
		next, save := k.Next, k.Commit
		next.SetHelp("tab", "next field")
		save.SetHelp("ctrl+s", "add")
		return []key.Binding{next, save, k.Cancel}
	case modeFilter:
		keep, drop := k.Confirm, k.Cancel
		keep.SetHelp("enter", "keep")
		drop.SetHelp("esc", "clear")
		return []key.Binding{keep, drop}
	}
	return []key.Binding{
		k.Edit, k.Toggle, k.Add, k.Clone, k.Delete, k.Sort, k.Filter,
		k.NextPage, k.PrevPage, k.Reload, k.Save, k.Export, k.Quit,
	}
}

// computeColWidths sizes columns to their names and the visible rows.
func (m model) computeColWidths(handles []string) []int {
	cols := m.grid.Columns()
	widths := make([]int, len(cols))
	for i, c := range cols {
		widths[i] = runewidth.StringWidth(c.Name) + 2 // room for the sort arrow
		if widths[i] < 4 {
			widths[i] = 4
		}
	}
	for _, h := range handles {
		for i, c := range cols {
			s := grid.FormatCell(m.grid.Display(grid.CellRef{Row: h, Col: c.Key}), c.Format)
			if sw := runewidth.StringWidth(s); sw > widths[i] {
				widths[i] = sw
			}
		}
	}
	for i := range widths {
		if widths[i] > maxColWidth {
			widths[i] = maxColWidth
		}
	}
	return widths
}

// visibleCols returns the column span [start, end) that fits in avail cells,
// starting at scroll and always including cursor.
func visibleCols(widths []int, avail, scroll, cursor int) (int, int) {
	start := scroll
	if start >= len(widths) {
		start = 0
	}
	end, used := start, 0
	for ; end < len(widths); end++ {
		w := widths[end] + 3 // padding + separator
		if end > start && used+w > avail {
			break
		}
		used += w
	}
	if cursor < start {
		start = cursor
	}
	if cursor >= end {
		// walk left from the cursor until the span is full
		end, start, used = cursor+1, cursor, widths[cursor]+3
		for start > 0 && used+widths[start-1]+3 <= avail {
			start--
			used += widths[start] + 3
		}
	}
	return start, end
}

// printGrid renders every row once, for output that is not a terminal.
func printGrid(c *grid.Controller, v grid.View) string {
	cols := c.Columns()
	v.Page, v.PageSize = 0, len(c.Rows())+1
	w := c.Window(v)

	widths := make([]int, len(cols))
	for i, col := range cols {
		widths[i] = runewidth.StringWidth(col.Name)
	}
	for _, h := range w.Handles {
		for i, col := range cols {
			s := grid.FormatCell(c.Display(grid.CellRef{Row: h, Col: col.Key}), col.Format)
			if sw := runewidth.StringWidth(s); sw > widths[i] {
				widths[i] = min(sw, maxColWidth)
			}
		}
	}

	var b strings.Builder
	line := make([]string, len(cols))
	for i, col := range cols {
		line[i] = runewidth.FillRight(runewidth.Truncate(col.Name, widths[i], "."), widths[i])
	}
	b.WriteString(strings.TrimRight(strings.Join(line, "  "), " ") + "\n")
	for _, h := range w.Handles {
		for i, col := range cols {
			s := grid.FormatCell(c.Display(grid.CellRef{Row: h, Col: col.Key}), col.Format)
			line[i] = grid.AlignCell(s, col.Format, widths[i])
		}
		b.WriteString(strings.TrimRight(strings.Join(line, "  "), " ") + "\n")
	}
	return b.String()
}

// cellMarkup returns the HTML editor control for one cell, addressed by its
// 1-based row number under v.
func cellMarkup(c *grid.Controller, v grid.View, row int, col string) (string, error) {
	v.Page, v.PageSize = 0, len(c.Rows())+1
	w := c.Window(v)
	if row < 1 || row > len(w.Handles) {
		return "", fmt.Errorf("row %d out of range 1-%d", row, len(w.Handles))
	}
	aff, ok := c.BeginEdit(grid.CellRef{Row: w.Handles[row-1], Col: col})
	if !ok {
		return "", fmt.Errorf("%q is not an editable column", col)
	}
	c.Cancel()
	return grid.Markup(aff, grid.DefaultMarkupStyle), nil
}
