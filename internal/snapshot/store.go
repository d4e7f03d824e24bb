package snapshot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/automerge/automerge-go"
	"github.com/golang/glog"
	"github.com/oklog/ulid/v2"

	"github.com/twschum/mix-mind/grid"
)

var errNoRow = errors.New("no such ingredient")

// Store serves a snapshot document as a grid.Store, for editing without the
// server. Every change is committed and saved before it is reported.
type Store struct {
	mu      sync.Mutex
	dir     string
	doc     *automerge.Doc
	cols    []Column
	idField string
}

// Open loads the snapshot under dir.
func Open(dir, idField string) (*Store, error) {
	doc, err := Load(dir)
	if err != nil {
		return nil, err
	}
	cols, _, err := ReadTable(doc)
	if err != nil {
		return nil, err
	}
	if idField == "" {
		idField = "iid"
	}
	return &Store{dir: dir, doc: doc, cols: cols, idField: idField}, nil
}

// Write replaces the snapshot under dir with cols and rows.
func Write(dir string, cols []grid.Column, rows []map[string]any) error {
	doc, err := Build(cols, rows)
	if err != nil {
		return err
	}
	return Save(doc, dir)
}

func (s *Store) Rows(ctx context.Context) ([]map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, rows, err := ReadTable(s.doc)
	return rows, err
}

func (s *Store) Update(ctx context.Context, req grid.UpdateRequest) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	col, ok := s.column(req.Field)
	if !ok {
		return nil, fmt.Errorf("unknown field %q", req.Field)
	}
	idx, err := s.find(req.Key)
	if err != nil {
		return nil, err
	}

	p := s.doc.Path("data", idx, col.Index)
	val := grid.ParseCell(req.Value, col.Format)
	if val == nil {
		err = p.Delete()
	} else {
		err = p.Set(storable(val))
	}
	if err != nil {
		return nil, fmt.Errorf("set %s: %w", req.Field, err)
	}
	if err := s.commit(fmt.Sprintf("update %s %s", req.Key, req.Field)); err != nil {
		return nil, err
	}
	return s.row(idx)
}

func (s *Store) Delete(ctx context.Context, key grid.Key) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, err := s.find(key)
	if err != nil {
		return nil, err
	}
	row, err := s.row(idx)
	if err != nil {
		return nil, err
	}
	if err := s.doc.Path("data").List().Delete(idx); err != nil {
		return nil, err
	}
	if err := s.commit(fmt.Sprintf("delete %s", key)); err != nil {
		return nil, err
	}
	return row, nil
}

// Create appends a row. Fields without a snapshot column are ignored. A row
// without an identifier gets the next integer one, or a ULID when the
// identifier column is not an integer column.
func (s *Store) Create(ctx context.Context, values map[string]any) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.doc.Path("data").List()
	idx := list.Len()
	if err := list.Append(automerge.NewMap()); err != nil {
		return nil, err
	}
	for _, col := range s.cols {
		v, ok := values[col.Field]
		if col.Field == s.idField && (!ok || grid.ValueString(v) == "") {
			v, ok = s.nextID(col), true
		}
		if !ok {
			continue
		}
		val := grid.ParseCell(grid.ValueString(v), col.Format)
		if val == nil {
			continue
		}
		if err := s.doc.Path("data", idx, col.Index).Set(storable(val)); err != nil {
			return nil, fmt.Errorf("set %s: %w", col.Field, err)
		}
	}
	if err := s.commit("create row " + strconv.Itoa(idx)); err != nil {
		return nil, err
	}
	return s.row(idx)
}

func (s *Store) nextID(col Column) any {
	if col.Format != grid.FormatInt {
		return ulid.Make().String()
	}
	var next int64 = 1
	_, rows, _ := ReadTable(s.doc)
	for _, r := range rows {
		if n, err := strconv.ParseInt(grid.ValueString(r[col.Field]), 10, 64); err == nil && n >= next {
			next = n + 1
		}
	}
	return next
}

func (s *Store) commit(msg string) error {
	if _, err := s.doc.Commit(msg); err != nil {
		return err
	}
	if err := Save(s.doc, s.dir); err != nil {
		glog.Errorf("snapshot: save %s: %v", s.dir, err)
		return err
	}
	glog.V(2).Infof("snapshot: %s", msg)
	return nil
}

func (s *Store) column(field string) (Column, bool) {
	for _, c := range s.cols {
		if c.Field == field {
			return c, true
		}
	}
	return Column{}, false
}

// find returns the list index of the row addressed by key.
func (s *Store) find(key grid.Key) (int, error) {
	if len(key.Fields) == 0 {
		return 0, grid.ErrNoKey
	}
	list := s.doc.Path("data").List()
	for i := 1; i < list.Len(); i++ {
		v, err := list.Get(i)
		if err != nil || v.Kind() != automerge.KindMap {
			continue
		}
		row := readRow(v.Map(), s.cols)
		if matches(row, key) {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: %s", errNoRow, key)
}

func (s *Store) row(idx int) (map[string]any, error) {
	v, err := s.doc.Path("data", idx).Get()
	if err != nil {
		return nil, err
	}
	if v.Kind() != automerge.KindMap {
		return nil, fmt.Errorf("row %s is %s", strconv.Itoa(idx), v.Kind())
	}
	return readRow(v.Map(), s.cols), nil
}

func matches(row map[string]any, key grid.Key) bool {
	for _, f := range key.Fields {
		if grid.ValueString(row[f.Name]) != grid.ValueString(f.Value) {
			return false
		}
	}
	return true
}
