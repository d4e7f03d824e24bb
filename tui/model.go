package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/golang/glog"

	"github.com/twschum/mix-mind/grid"
	"github.com/twschum/mix-mind/internal/export"
	"github.com/twschum/mix-mind/internal/snapshot"
)

type mode int

const (
	modeNormal mode = iota
	modeEdit
	modeFilter
	modeAdd
)

type savedMsg struct {
	path string
	err  error
}

type exportedMsg struct {
	path string
	err  error
}

type model struct {
	grid    *grid.Controller
	keys    keyMap
	source  string
	dataDir string
	width   int
	height  int
	err     error
	status  string

	gv       grid.View
	pageSize int
	cx, cy   int // column index, row index within the current page
	scrollX  int

	mode    mode
	ed      cellEditor
	form    rowForm
	filter  textinput.Model
	spinner spinner.Model
	help    help.Model
}

func newModel(c *grid.Controller, source, dataDir string, sortKey string, pageSize int) model {
	f := textinput.New()
	f.Prompt = "/"
	f.Placeholder = "filter"
	if pageSize <= 0 {
		pageSize = grid.DefaultPageSize
	}
	return model{
		grid:     c,
		keys:     defaultKeyMap(),
		source:   source,
		dataDir:  dataDir,
		gv:       grid.View{SortKey: sortKey, PageSize: pageSize},
		pageSize: pageSize,
		filter:   f,
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot)),
		help:     help.New(),
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.grid.Load(), m.spinner.Tick)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width - 1
		m.gv.PageSize = m.fitPageSize()
		m.clampCursor()
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case grid.LoadedMsg, grid.UpdatedMsg, grid.DeletedMsg, grid.CreatedMsg:
		cmd := m.grid.Update(msg)
		switch msg := msg.(type) {
		case grid.LoadedMsg:
			m.status = fmt.Sprintf("loaded %d rows from %s", len(m.grid.Rows()), m.source)
		case grid.CreatedMsg:
			if msg.Err == nil {
				m.status = "added " + msg.Key.String()
			}
		}
		m.syncMode()
		m.clampCursor()
		return m, cmd
	case savedMsg:
		m.err = msg.err
		if msg.err == nil {
			m.status = "snapshot saved to " + msg.path
		}
		return m, nil
	case exportedMsg:
		m.err = msg.err
		if msg.err == nil {
			m.status = "exported to " + msg.path
		}
		return m, nil
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if _, ok := m.grid.Notice(); ok {
			// alerts block until acknowledged
			if key.Matches(msg, m.keys.Confirm, m.keys.Cancel, m.keys.Toggle) {
				m.grid.DismissNotice()
			}
			return m, nil
		}
		if _, ok := m.grid.Prompt(); ok {
			return m.updatePrompt(msg)
		}
		switch m.mode {
		case modeEdit:
			return m.updateEdit(msg)
		case modeFilter:
			return m.updateFilter(msg)
		case modeAdd:
			return m.updateForm(msg)
		}
		return m.updateTable(msg)
	}
	return m, nil
}

// fitPageSize shrinks the page to the rows the terminal can show.
func (m model) fitPageSize() int {
	avail := m.height - 8 // title, header, separator, status, help, panel margin
	if avail < 1 {
		avail = 1
	}
	if avail < m.pageSize {
		return avail
	}
	return m.pageSize
}

func (m model) window() grid.Window { return m.grid.Window(m.gv) }

func (m model) currentRef() (grid.CellRef, bool) {
	w := m.window()
	cols := m.grid.Columns()
	if m.cy < 0 || m.cy >= len(w.Handles) || m.cx < 0 || m.cx >= len(cols) {
		return grid.CellRef{}, false
	}
	return grid.CellRef{Row: w.Handles[m.cy], Col: cols[m.cx].Key}, true
}

func (m *model) clampCursor() {
	w := m.window()
	m.gv.Page = w.Page
	if m.cy >= len(w.Handles) {
		m.cy = len(w.Handles) - 1
	}
	if m.cy < 0 {
		m.cy = 0
	}
	if n := len(m.grid.Columns()); m.cx >= n {
		m.cx = n - 1
	}
	if m.cx < 0 {
		m.cx = 0
	}
}

// syncMode leaves edit mode once the controller has closed the session.
func (m *model) syncMode() {
	if m.mode != modeEdit {
		return
	}
	if _, ok := m.grid.Session(); !ok {
		m.mode = modeNormal
	}
}

// --- Table (normal) ---

func (m model) updateTable(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	ncols := len(m.grid.Columns())
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Left):
		if m.cx > 0 {
			m.cx--
		}
	case key.Matches(msg, m.keys.Right):
		if m.cx < ncols-1 {
			m.cx++
		}
	case key.Matches(msg, m.keys.Up):
		if m.cy > 0 {
			m.cy--
		} else if m.gv.Page > 0 {
			m.gv.Page--
			m.cy = m.gv.PageSize - 1
		}
	case key.Matches(msg, m.keys.Down):
		w := m.window()
		if m.cy < len(w.Handles)-1 {
			m.cy++
		} else if w.Page < w.Pages-1 {
			m.gv.Page++
			m.cy = 0
		}
	case key.Matches(msg, m.keys.Next):
		m.moveNext()
	case key.Matches(msg, m.keys.Prev):
		m.movePrev()
	case key.Matches(msg, m.keys.NextPage):
		m.gv.Page++
	case key.Matches(msg, m.keys.PrevPage):
		if m.gv.Page > 0 {
			m.gv.Page--
		}
	case key.Matches(msg, m.keys.Sort):
		col := m.grid.Columns()[m.cx].Key
		if m.gv.SortKey == col {
			m.gv.Desc = !m.gv.Desc
		} else {
			m.gv.SortKey, m.gv.Desc = col, false
		}
	case key.Matches(msg, m.keys.Filter):
		m.mode = modeFilter
		m.filter.SetValue(m.gv.Filter)
		m.filter.CursorEnd()
		cmd := m.filter.Focus()
		return m, cmd
	case key.Matches(msg, m.keys.Reload):
		return m, m.grid.Load()
	case key.Matches(msg, m.keys.Save):
		return m, m.saveSnapshot()
	case key.Matches(msg, m.keys.Export):
		return m, m.exportRows()
	case key.Matches(msg, m.keys.Add):
		return m.openForm("")
	case key.Matches(msg, m.keys.Clone):
		if ref, ok := m.currentRef(); ok {
			return m.openForm(ref.Row)
		}
	case key.Matches(msg, m.keys.Delete):
		if ref, ok := m.currentRef(); ok {
			if _, ok := m.grid.DeleteRow(ref.Row); !ok {
				m.status = "row is busy"
			}
		}
	case key.Matches(msg, m.keys.Toggle):
		return m.beginEdit(true)
	case key.Matches(msg, m.keys.Edit):
		return m.beginEdit(false)
	}
	m.clampCursor()
	return m, nil
}

func (m *model) moveNext() {
	m.cx++
	if m.cx >= len(m.grid.Columns()) {
		m.cx = 0
		if m.cy < len(m.window().Handles)-1 {
			m.cy++
		}
	}
}

func (m *model) movePrev() {
	m.cx--
	if m.cx < 0 {
		m.cx = len(m.grid.Columns()) - 1
		if m.cy > 0 {
			m.cy--
		}
	}
}

func (m model) beginEdit(toggleOnly bool) (tea.Model, tea.Cmd) {
	ref, ok := m.currentRef()
	if !ok {
		return m, nil
	}
	col, _ := m.grid.Column(ref.Col)
	if toggleOnly {
		if _, ok := col.Editor.(grid.ToggleEditor); !ok {
			return m, nil
		}
	}
	aff, ok := m.grid.BeginEdit(ref)
	if !ok {
		if !col.Editable {
			m.status = col.Name + " is not editable"
		}
		return m, nil
	}
	m.status = ""
	if aff.Kind == grid.KindToggle {
		return m, m.grid.Trigger(grid.TriggerChange, aff.Toggled())
	}
	var cmd tea.Cmd
	m.ed, cmd = newCellEditor(aff, m.width-4)
	m.mode = modeEdit
	return m, cmd
}

// --- Edit mode ---

func (m model) updateEdit(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if _, ok := m.grid.Session(); !ok {
		m.mode = modeNormal
		return m, nil
	}
	aff := m.ed.aff
	switch {
	case key.Matches(msg, m.keys.Cancel):
		m.grid.Cancel()
		m.mode = modeNormal
		return m, nil
	case key.Matches(msg, m.keys.Next), key.Matches(msg, m.keys.Prev):
		cmd, left := m.leave()
		if !left {
			return m, cmd
		}
		if key.Matches(msg, m.keys.Next) {
			m.moveNext()
		} else {
			m.movePrev()
		}
		m.clampCursor()
		return m, cmd
	case key.Matches(msg, m.keys.Commit):
		return m.confirm()
	case key.Matches(msg, m.keys.Confirm) && aff.Kind != grid.KindTextArea:
		return m.confirm()
	case key.Matches(msg, m.keys.Toggle) && aff.Kind == grid.KindToggle:
		cmd := m.grid.Trigger(grid.TriggerChange, aff.Toggled())
		m.syncMode()
		return m, cmd
	}
	var cmd tea.Cmd
	m.ed, cmd = m.ed.update(msg)
	m.grid.Input(m.ed.value())
	return m, cmd
}

// confirm fires the trigger the terminal's enter key stands for: the
// selection for lists, the enter key where it commits, the confirm control
// otherwise.
func (m model) confirm() (tea.Model, tea.Cmd) {
	aff := m.ed.aff
	if aff.Kind == grid.KindSelect && m.ed.choice < 0 {
		// nothing picked yet
		m.grid.Cancel()
		m.mode = modeNormal
		return m, nil
	}
	t := grid.TriggerConfirm
	switch {
	case aff.Kind == grid.KindSelect && aff.Commit.Has(grid.TriggerChange):
		t = grid.TriggerChange
	case aff.Commit.Has(grid.TriggerEnter):
		t = grid.TriggerEnter
	}
	cmd := m.grid.Trigger(t, m.ed.value())
	m.syncMode()
	return m, cmd
}

// leave moves focus off the open editor. Editors that commit on blur do so;
// the rest are cancelled. It reports false when a rejected value keeps the
// editor open.
func (m *model) leave() (tea.Cmd, bool) {
	if !m.ed.aff.Commit.Has(grid.TriggerBlur) {
		m.grid.Cancel()
		m.mode = modeNormal
		return nil, true
	}
	cmd := m.grid.Trigger(grid.TriggerBlur, m.ed.value())
	if s, ok := m.grid.Session(); ok && s.Invalid {
		return cmd, false
	}
	m.mode = modeNormal
	return cmd, true
}

// --- Add form ---

// openForm starts a new row, prefilled from the row with the given handle
// when there is one.
func (m model) openForm(handle string) (tea.Model, tea.Cmd) {
	var values map[string]string
	if handle != "" {
		values, _ = m.grid.CloneValues(handle)
	}
	var cmd tea.Cmd
	m.form, cmd = newRowForm(formTitle(m.grid, handle), m.grid.Columns(), values)
	m.mode = modeAdd
	m.status = ""
	return m, cmd
}

func (m model) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Cancel):
		m.mode = modeNormal
		return m, nil
	case key.Matches(msg, m.keys.Next):
		cmd := m.form.setFocus(m.form.focus + 1)
		return m, cmd
	case key.Matches(msg, m.keys.Prev):
		cmd := m.form.setFocus(m.form.focus - 1)
		return m, cmd
	case key.Matches(msg, m.keys.Commit),
		key.Matches(msg, m.keys.Confirm) && m.form.last():
		cmd, err := m.grid.AddRow(m.form.values())
		if err != nil {
			m.form.err = err.Error()
			return m, nil
		}
		m.mode = modeNormal
		m.status = "adding..."
		return m, cmd
	case key.Matches(msg, m.keys.Confirm):
		cmd := m.form.setFocus(m.form.focus + 1)
		return m, cmd
	}
	var cmd tea.Cmd
	m.form, cmd = m.form.update(msg)
	return m, cmd
}

// --- Filter ---

func (m model) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Cancel):
		m.filter.Blur()
		m.filter.SetValue("")
		m.gv.Filter = ""
		m.mode = modeNormal
		m.clampCursor()
		return m, nil
	case key.Matches(msg, m.keys.Confirm):
		m.filter.Blur()
		m.mode = modeNormal
		return m, nil
	}
	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	m.gv.Filter = m.filter.Value()
	m.gv.Page, m.cy = 0, 0
	m.clampCursor()
	return m, cmd
}

// --- Delete prompt ---

func (m model) updatePrompt(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	p, _ := m.grid.Prompt()
	if p.Busy {
		return m, nil
	}
	var cmd tea.Cmd
	switch {
	case p.Done && key.Matches(msg, m.keys.Yes, m.keys.No):
		cmd = m.grid.ResolveDelete(true)
	case key.Matches(msg, m.keys.Yes):
		cmd = m.grid.ResolveDelete(true)
	case key.Matches(msg, m.keys.No):
		cmd = m.grid.ResolveDelete(false)
	}
	m.clampCursor()
	return m, cmd
}

// --- Snapshot and export ---

func (m model) snapshotDir() string { return filepath.Join(m.dataDir, "ingredients") }

func (m model) saveSnapshot() tea.Cmd {
	dir := m.snapshotDir()
	cols, rows := snapshotColumns(m.grid), rowValues(m.grid.Rows())
	return func() tea.Msg {
		err := snapshot.Write(dir, cols, rows)
		if err != nil {
			glog.Errorf("snapshot: %v", err)
		}
		return savedMsg{path: dir, err: err}
	}
}

func (m model) exportRows() tea.Cmd {
	path := filepath.Join(m.dataDir, "ingredients-"+time.Now().Format("20060102-150405")+".xlsx")
	cols, rows := m.grid.Columns(), rowsInView(m.grid, m.gv)
	return func() tea.Msg {
		err := export.File(path, cols, rows)
		return exportedMsg{path: path, err: err}
	}
}

// snapshotColumns adds the row identifier to the grid columns so offline
// edits can address rows the way the server does.
func snapshotColumns(c *grid.Controller) []grid.Column {
	cols := c.Columns()
	if _, ok := c.Column(c.IDField()); ok {
		return cols
	}
	return append([]grid.Column{{Key: c.IDField(), Name: c.IDField()}}, cols...)
}

func rowValues(rows []*grid.Row) []map[string]any {
	out := make([]map[string]any, len(rows))
	for i, r := range rows {
		out[i] = r.Values
	}
	return out
}
