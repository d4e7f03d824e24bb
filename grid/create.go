package grid

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/golang/glog"
)

// PrepareRow checks a new row against the columns and returns the values to
// send to the store along with the natural key the row will be known by.
// Empty values, the identifier and columns that are not editable are left
// out; the store fills them in.
func (c *Controller) PrepareRow(values map[string]string) (map[string]any, Key, error) {
	out := make(map[string]any, len(values))
	for name, v := range values {
		col, ok := c.Column(name)
		if !ok {
			return nil, Key{}, fmt.Errorf("unknown column %q", name)
		}
		v = strings.TrimSpace(v)
		if v == "" || name == c.cfg.IDField || !col.Editable {
			continue
		}
		checked, err := checkValue(col, v)
		if err != nil {
			return nil, Key{}, fmt.Errorf("%s: %w", col.Name, err)
		}
		out[name] = checked
	}
	key := Key{Fields: make([]KeyField, 0, len(c.cfg.NaturalKey))}
	for _, name := range c.cfg.NaturalKey {
		v, ok := out[name]
		if !ok {
			return nil, Key{}, fmt.Errorf("%s is required", name)
		}
		key.Fields = append(key.Fields, KeyField{Name: name, Value: v})
	}
	return out, key, nil
}

// checkValue validates v for col's editor. Toggle values are normalized to
// the switch's on or off value.
func checkValue(col Column, v string) (string, error) {
	switch e := col.Editor.(type) {
	case ListEditor:
		if !slices.ContainsFunc(e.Options, func(o Option) bool { return o.Value == v }) {
			return "", fmt.Errorf("%q is not one of the choices", v)
		}
	case ToggleEditor:
		a := affordanceFor(e, false, v)
		if v == a.On {
			return a.On, nil
		}
		return a.Value, nil
	case DateEditor:
		layout := e.Layout
		if layout == "" {
			layout = DefaultDateLayout
		}
		if _, err := time.Parse(layout, v); err != nil {
			return "", errors.New("expected a date like " + layout)
		}
	}
	return v, nil
}

// AddRow sends a new row to the store. Nothing is dispatched when the values
// do not pass PrepareRow. The row joins the grid once the store confirms it.
func (c *Controller) AddRow(values map[string]string) (tea.Cmd, error) {
	data, key, err := c.PrepareRow(values)
	if err != nil {
		c.emit(Outcome{Kind: OutcomeRejected, Op: "create", Message: err.Error()})
		return nil, err
	}
	id := newID()
	c.creating[id] = true

	glog.V(2).Infof("grid: create %s [%s]", id, key)
	store, timeout := c.store, c.cfg.Timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		row, err := store.Create(ctx, data)
		return CreatedMsg{RequestID: id, Key: key, Row: row, Err: err}
	}, nil
}

// CloneValues returns the editable values of a row, for starting a new row
// from a copy of it. The identifier is not copied.
func (c *Controller) CloneValues(handle string) (map[string]string, bool) {
	row, ok := c.byHandle[handle]
	if !ok {
		return nil, false
	}
	out := make(map[string]string)
	for _, col := range c.cfg.Columns {
		if !col.Editable || col.Key == c.cfg.IDField {
			continue
		}
		if s := ValueString(row.Values[col.Key]); s != "" {
			out[col.Key] = s
		}
	}
	return out, true
}

func (c *Controller) applyCreated(msg CreatedMsg) {
	out := Outcome{Op: "create", RequestID: msg.RequestID, Key: msg.Key}

	if !c.creating[msg.RequestID] {
		glog.Infof("grid: discarding create %s: no longer pending", msg.RequestID)
		out.Kind = OutcomeDiscarded
		c.emit(out)
		return
	}
	delete(c.creating, msg.RequestID)

	if msg.Err != nil {
		if errors.Is(msg.Err, ErrMalformed) {
			glog.Warningf("grid: create %s: %v", msg.RequestID, msg.Err)
			out.Kind, out.Message = OutcomeMalformed, msg.Err.Error()
			c.emit(out)
			return
		}
		text := errText(msg.Err)
		c.alert("Error: " + text)
		out.Kind, out.Message = OutcomeFailed, text
		c.emit(out)
		return
	}
	if !c.identifies(msg.Row, msg.Key) {
		glog.Warningf("grid: create %s: response does not identify row [%s]", msg.RequestID, msg.Key)
		out.Kind, out.Message = OutcomeMalformed, "response missing identifying fields"
		c.emit(out)
		return
	}

	r := &Row{Handle: newID(), Values: copyValues(msg.Row)}
	c.rows = append(c.rows, r)
	c.byHandle[r.Handle] = r
	out.Kind = OutcomeCreated
	out.New = c.label(r)
	c.emit(out)
}
