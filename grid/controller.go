package grid

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/golang/glog"
	"github.com/oklog/ulid/v2"
)

// Session is the state of one cell edit, from BeginEdit until the edit is
// cancelled or its commit resolves.
type Session struct {
	Ref        CellRef
	Original   any
	Pending    string
	Affordance Affordance
	State      State
	// Invalid marks a rejected commit; the session stays open.
	Invalid   bool
	RequestID string

	origText string
}

// Controller drives the edit lifecycle of every cell in one grid.
//
// At most one session is Editing at a time. Sessions that are Committing are
// tracked per cell, so commits on different cells may be in flight together;
// a Committing cell cannot be reopened until its result arrives.
type Controller struct {
	cfg    Config
	colIdx map[string]int
	store  Store

	loadSeq int
	loading bool

	rows     []*Row
	byHandle map[string]*Row

	active   *Session
	inflight map[CellRef]*Session
	deleting map[string]string // row handle -> request id
	creating map[string]bool   // request ids
	removed  map[string]bool

	prompt *DeletePrompt
	notice *Notice

	now func() time.Time
}

func New(cfg Config, store Store) *Controller {
	cfg = cfg.withDefaults()
	c := &Controller{
		cfg:    cfg,
		colIdx: make(map[string]int, len(cfg.Columns)),
		store:  store,
		now:    time.Now,
	}
	for i, col := range cfg.Columns {
		c.colIdx[col.Key] = i
	}
	c.reset()
	return c
}

func (c *Controller) reset() {
	c.rows = nil
	c.byHandle = make(map[string]*Row)
	c.active = nil
	c.inflight = make(map[CellRef]*Session)
	c.deleting = make(map[string]string)
	c.creating = make(map[string]bool)
	c.removed = make(map[string]bool)
	c.prompt = nil
}

func newID() string { return ulid.Make().String() }

// --- queries ---

func (c *Controller) Columns() []Column { return append([]Column(nil), c.cfg.Columns...) }

func (c *Controller) Column(key string) (Column, bool) {
	i, ok := c.colIdx[key]
	if !ok {
		return Column{}, false
	}
	return c.cfg.Columns[i], true
}

// IDField returns the configured row identifier field.
func (c *Controller) IDField() string { return c.cfg.IDField }

func (c *Controller) Rows() []*Row { return append([]*Row(nil), c.rows...) }

func (c *Controller) Row(handle string) (*Row, bool) {
	r, ok := c.byHandle[handle]
	return r, ok
}

// Session returns a copy of the open editing session, if any.
func (c *Controller) Session() (Session, bool) {
	if c.active == nil {
		return Session{}, false
	}
	return *c.active, true
}

// Pending is the number of store requests in flight.
func (c *Controller) Pending() int { return len(c.inflight) + len(c.deleting) + len(c.creating) }

func (c *Controller) Loading() bool { return c.loading }

func (c *Controller) Notice() (Notice, bool) {
	if c.notice == nil {
		return Notice{}, false
	}
	return *c.notice, true
}

func (c *Controller) DismissNotice() { c.notice = nil }

func (c *Controller) Prompt() (DeletePrompt, bool) {
	if c.prompt == nil {
		return DeletePrompt{}, false
	}
	return *c.prompt, true
}

func (c *Controller) State(ref CellRef) State {
	switch {
	case c.removed[ref.Row]:
		return Removed
	case c.active != nil && c.active.Ref == ref:
		return Editing
	}
	if _, ok := c.inflight[ref]; ok {
		return Committing
	}
	return Idle
}

// Display returns the value a cell shows: the pending value while a session
// is open on it, the committed value otherwise.
func (c *Controller) Display(ref CellRef) any {
	if c.active != nil && c.active.Ref == ref {
		return c.active.Pending
	}
	if s, ok := c.inflight[ref]; ok {
		return s.Pending
	}
	return c.byHandle[ref.Row].Get(ref.Col)
}

// --- loading ---

// SetRows replaces the grid contents. Every row gets a fresh handle and all
// sessions, prompts and in-flight bookkeeping are dropped; results that
// arrive later for the old rows are discarded.
func (c *Controller) SetRows(rows []map[string]any) {
	c.reset()
	c.rows = make([]*Row, 0, len(rows))
	for _, v := range rows {
		r := &Row{Handle: newID(), Values: copyValues(v)}
		c.rows = append(c.rows, r)
		c.byHandle[r.Handle] = r
	}
}

// Load fetches all rows from the store.
func (c *Controller) Load() tea.Cmd {
	c.loadSeq++
	c.loading = true
	seq, store, timeout := c.loadSeq, c.store, c.cfg.Timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		rows, err := store.Rows(ctx)
		return LoadedMsg{Epoch: seq, Rows: rows, Err: err}
	}
}

// Update applies store results. Other messages are ignored.
func (c *Controller) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case LoadedMsg:
		c.applyLoaded(msg)
	case UpdatedMsg:
		c.applyUpdated(msg)
	case DeletedMsg:
		c.applyDeleted(msg)
	case CreatedMsg:
		c.applyCreated(msg)
	}
	return nil
}

func (c *Controller) applyLoaded(msg LoadedMsg) {
	if msg.Epoch != c.loadSeq {
		glog.V(1).Infof("grid: dropping superseded load %d", msg.Epoch)
		return
	}
	c.loading = false
	if msg.Err != nil {
		glog.Errorf("grid: load: %v", msg.Err)
		c.alert("Error: " + errText(msg.Err))
		return
	}
	c.SetRows(msg.Rows)
	glog.V(1).Infof("grid: loaded %d rows", len(c.rows))
}

// --- editing ---

// BeginEdit opens an editor on ref and returns its affordance. It does
// nothing and returns false when the column is not editable, the row is
// unknown or being deleted, or the cell is already editing or committing.
// An editor open on another cell is cancelled first.
func (c *Controller) BeginEdit(ref CellRef) (Affordance, bool) {
	col, ok := c.Column(ref.Col)
	if !ok || !col.Editable {
		return Affordance{}, false
	}
	row, ok := c.byHandle[ref.Row]
	if !ok {
		return Affordance{}, false
	}
	if _, busy := c.deleting[ref.Row]; busy {
		return Affordance{}, false
	}
	if c.active != nil && c.active.Ref == ref {
		return Affordance{}, false
	}
	if _, busy := c.inflight[ref]; busy {
		return Affordance{}, false
	}
	if c.active != nil {
		c.Cancel()
	}

	orig := row.Values[col.Key]
	aff := affordanceFor(col.Editor, c.cfg.Confirmation, orig)
	c.active = &Session{
		Ref:        ref,
		Original:   orig,
		Pending:    aff.Text(),
		Affordance: aff,
		State:      Editing,
		origText:   aff.Text(),
	}
	return aff, true
}

// Input records the in-progress value of the open editor.
func (c *Controller) Input(value string) {
	if c.active == nil {
		return
	}
	c.active.Pending = value
	c.active.Invalid = false
}

// Trigger commits the open editor if t is one of its commit triggers.
func (c *Controller) Trigger(t Trigger, value string) tea.Cmd {
	if c.active == nil || !c.active.Affordance.Commit.Has(t) {
		return nil
	}
	return c.Commit(value)
}

// Cancel closes the open editor and restores the original value.
func (c *Controller) Cancel() {
	if c.active == nil {
		return
	}
	glog.V(2).Infof("grid: cancel %s", c.active.Ref)
	c.active = nil
}

// Commit validates value for the open editor and, if it differs from the
// original, dispatches it to the store.
func (c *Controller) Commit(value string) tea.Cmd {
	s := c.active
	if s == nil {
		return nil
	}
	col, _ := c.Column(s.Ref.Col)
	row, ok := c.byHandle[s.Ref.Row]
	if !ok {
		c.active = nil
		return nil
	}

	s.Pending = value
	trimmed := strings.TrimSpace(value)
	out := Outcome{Op: "update", Field: col.Key, Old: s.origText, New: trimmed}

	if trimmed == "" && c.cfg.NotNull && !col.Nullable {
		s.Invalid = true
		out.Kind, out.Message = OutcomeRejected, "value required"
		c.emit(out)
		return nil
	}
	if d, ok := col.Editor.(DateEditor); ok && trimmed != "" {
		layout := d.Layout
		if layout == "" {
			layout = DefaultDateLayout
		}
		if _, err := time.Parse(layout, trimmed); err != nil {
			s.Invalid = true
			out.Kind, out.Message = OutcomeRejected, "expected a date like "+layout
			c.emit(out)
			return nil
		}
	}
	if trimmed == s.origText {
		c.active = nil
		out.Kind = OutcomeUnchanged
		c.emit(out)
		return nil
	}

	key, err := c.keyFor(row, col.Key, s.Original)
	if err != nil {
		c.active = nil
		c.alert("Error: " + err.Error())
		out.Kind, out.Message = OutcomeFailed, err.Error()
		c.emit(out)
		return nil
	}

	s.State = Committing
	s.Pending = trimmed
	s.RequestID = newID()
	c.active = nil
	c.inflight[s.Ref] = s

	req := UpdateRequest{Key: key, Field: col.Key, Value: trimmed}
	glog.V(2).Infof("grid: update %s [%s] %s=%q", s.RequestID, key, col.Key, trimmed)
	return c.dispatchUpdate(s.RequestID, s.Ref, req)
}

func (c *Controller) dispatchUpdate(id string, ref CellRef, req UpdateRequest) tea.Cmd {
	store, timeout := c.store, c.cfg.Timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		row, err := store.Update(ctx, req)
		return UpdatedMsg{RequestID: id, Ref: ref, Key: req.Key, Row: row, Err: err}
	}
}

func (c *Controller) applyUpdated(msg UpdatedMsg) {
	out := Outcome{Op: "update", RequestID: msg.RequestID, Key: msg.Key, Field: msg.Ref.Col}

	s, ok := c.inflight[msg.Ref]
	if !ok || s.RequestID != msg.RequestID {
		glog.Infof("grid: discarding update %s for %s: no longer pending", msg.RequestID, msg.Ref)
		out.Kind = OutcomeDiscarded
		c.emit(out)
		return
	}
	delete(c.inflight, msg.Ref)
	out.Old, out.New = s.origText, s.Pending

	if msg.Err != nil {
		if errors.Is(msg.Err, ErrMalformed) {
			glog.Warningf("grid: update %s: %v", msg.RequestID, msg.Err)
			out.Kind, out.Message = OutcomeMalformed, msg.Err.Error()
			c.emit(out)
			return
		}
		text := errText(msg.Err)
		glog.V(1).Infof("grid: update %s failed: %s", msg.RequestID, text)
		c.alert("Error: " + text)
		out.Kind, out.Message = OutcomeFailed, text
		c.emit(out)
		return
	}

	row, ok := c.byHandle[msg.Ref.Row]
	if !ok || (msg.Key.ByID && !sameValue(row.Values[c.cfg.IDField], msg.Key.Fields[0].Value)) {
		glog.Infof("grid: discarding update %s for %s: row is gone", msg.RequestID, msg.Ref)
		out.Kind = OutcomeDiscarded
		c.emit(out)
		return
	}
	if !c.identifies(msg.Row, msg.Key) {
		glog.Warningf("grid: update %s: response does not identify row [%s]", msg.RequestID, msg.Key)
		out.Kind, out.Message = OutcomeMalformed, "response missing identifying fields"
		c.emit(out)
		return
	}

	row.Values = copyValues(msg.Row)
	out.Kind = OutcomeCommitted
	out.New = ValueString(row.Values[msg.Ref.Col])
	c.emit(out)
}

// --- deletion ---

// DeleteRow opens the confirmation prompt for removing a row. Rows with an
// open or committing edit cannot be deleted.
func (c *Controller) DeleteRow(handle string) (DeletePrompt, bool) {
	row, ok := c.byHandle[handle]
	if !ok || c.rowBusy(handle) {
		return DeletePrompt{}, false
	}
	if c.prompt != nil && c.prompt.Busy {
		return DeletePrompt{}, false
	}
	c.prompt = &DeletePrompt{
		Handle: handle,
		Text:   fmt.Sprintf("Are you sure you want to remove %s from the database?", c.label(row)),
	}
	return *c.prompt, true
}

// ResolveDelete answers the open prompt. Declining, or answering a prompt
// that already shows its result, closes it.
func (c *Controller) ResolveDelete(confirmed bool) tea.Cmd {
	p := c.prompt
	if p == nil || p.Busy {
		return nil
	}
	if !confirmed || p.Done {
		c.prompt = nil
		return nil
	}

	row, ok := c.byHandle[p.Handle]
	if !ok {
		p.Done, p.Text = true, "Error: row no longer exists"
		return nil
	}
	if c.rowBusy(p.Handle) {
		p.Done, p.Text = true, "Error: row has an edit in progress"
		return nil
	}
	key, err := c.keyFor(row, "", nil)
	if err != nil {
		p.Done, p.Text = true, "Error: "+err.Error()
		c.emit(Outcome{Kind: OutcomeDeleteFailed, Op: "delete", Message: err.Error()})
		return nil
	}

	p.Busy = true
	p.Text = fmt.Sprintf("Removing %s...", c.label(row))
	p.RequestID = newID()
	c.deleting[p.Handle] = p.RequestID

	glog.V(2).Infof("grid: delete %s [%s]", p.RequestID, key)
	id, handle := p.RequestID, p.Handle
	store, timeout := c.store, c.cfg.Timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		data, err := store.Delete(ctx, key)
		return DeletedMsg{RequestID: id, Handle: handle, Key: key, Data: data, Err: err}
	}
}

func (c *Controller) applyDeleted(msg DeletedMsg) {
	out := Outcome{Op: "delete", RequestID: msg.RequestID, Key: msg.Key}

	if c.deleting[msg.Handle] != msg.RequestID {
		glog.Infof("grid: discarding delete %s: no longer pending", msg.RequestID)
		out.Kind = OutcomeDiscarded
		c.emit(out)
		return
	}
	delete(c.deleting, msg.Handle)

	p := c.prompt
	if p != nil && p.RequestID != msg.RequestID {
		p = nil
	}
	show := func(text string) {
		if p != nil {
			p.Busy, p.Done, p.Text = false, true, text
		}
	}

	if msg.Err != nil {
		if errors.Is(msg.Err, ErrMalformed) {
			glog.Warningf("grid: delete %s: %v", msg.RequestID, msg.Err)
			out.Kind = OutcomeMalformed
		} else {
			out.Kind = OutcomeDeleteFailed
		}
		out.Message = errText(msg.Err)
		show("Error: " + out.Message)
		c.emit(out)
		return
	}

	row, ok := c.byHandle[msg.Handle]
	if !ok {
		glog.Infof("grid: discarding delete %s: row is gone", msg.RequestID)
		show("Row is no longer in the table.")
		out.Kind = OutcomeDiscarded
		c.emit(out)
		return
	}
	if !c.identifies(msg.Data, msg.Key) {
		glog.Warningf("grid: delete %s: response does not identify row [%s]", msg.RequestID, msg.Key)
		show("Error: response missing identifying fields")
		out.Kind, out.Message = OutcomeMalformed, "response missing identifying fields"
		c.emit(out)
		return
	}

	label := c.label(row)
	c.removeRow(msg.Handle)
	show(fmt.Sprintf("Successfully removed %s.", label))
	out.Kind = OutcomeDeleted
	c.emit(out)
}

func (c *Controller) removeRow(handle string) {
	for i, r := range c.rows {
		if r.Handle == handle {
			c.rows = append(c.rows[:i], c.rows[i+1:]...)
			break
		}
	}
	delete(c.byHandle, handle)
	c.removed[handle] = true
}

// --- helpers ---

func (c *Controller) rowBusy(handle string) bool {
	if c.active != nil && c.active.Ref.Row == handle {
		return true
	}
	if _, ok := c.deleting[handle]; ok {
		return true
	}
	for ref := range c.inflight {
		if ref.Row == handle {
			return true
		}
	}
	return false
}

// keyFor addresses row by identifier, or by natural key when none is
// assigned. If the edited field is part of the natural key its pre-edit
// value is used, since that is what the store knows the row by.
func (c *Controller) keyFor(row *Row, field string, original any) (Key, error) {
	if id, ok := row.Values[c.cfg.IDField]; ok && !isEmpty(id) {
		return Key{ByID: true, Fields: []KeyField{{Name: c.cfg.IDField, Value: id}}}, nil
	}
	fields := make([]KeyField, 0, len(c.cfg.NaturalKey))
	for _, name := range c.cfg.NaturalKey {
		v := row.Values[name]
		if name == field {
			v = original
		}
		if isEmpty(v) {
			return Key{}, ErrNoKey
		}
		fields = append(fields, KeyField{Name: name, Value: v})
	}
	return Key{Fields: fields}, nil
}

// identifies reports whether a store response carries the fields that
// address the row the request was made for.
func (c *Controller) identifies(data map[string]any, key Key) bool {
	if len(data) == 0 {
		return false
	}
	if key.ByID {
		v, ok := data[c.cfg.IDField]
		return ok && sameValue(v, key.Fields[0].Value)
	}
	for _, name := range c.cfg.NaturalKey {
		if isEmpty(data[name]) {
			return false
		}
	}
	return true
}

func (c *Controller) label(row *Row) string {
	var parts []string
	for _, f := range c.cfg.LabelFields {
		if s := ValueString(row.Get(f)); s != "" {
			parts = append(parts, s)
		}
	}
	switch len(parts) {
	case 0:
		return "this row"
	case 1:
		return parts[0]
	}
	return fmt.Sprintf("%s (%s)", parts[0], strings.Join(parts[1:], ", "))
}

func (c *Controller) alert(text string) {
	c.notice = &Notice{Text: text}
}

func (c *Controller) emit(o Outcome) {
	if c.cfg.OnOutcome == nil {
		return
	}
	o.At = c.now()
	c.cfg.OnOutcome(o)
}

func errText(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "request timed out"
	}
	return err.Error()
}
