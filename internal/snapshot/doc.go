// Package snapshot keeps an automerge copy of the grid on disk.
//
// The document holds a single list under "data". data[0] maps column index
// to the column definition {name, type, key, field}; data[1..] are rows
// keyed by the same column indexes.
package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/automerge/automerge-go"

	"github.com/twschum/mix-mind/grid"
)

var ErrNotFound = errors.New("snapshot not found")

const saveName = "grid-save"

// Column is one column definition read back from a document.
type Column struct {
	Index  string
	Name   string
	Format string
	Field  string
}

// Load reads the snapshot under dir and applies the incremental changes
// saved next to it, in name order. A directory with only incremental changes
// loads from the first of them.
func Load(dir string) (*automerge.Doc, error) {
	var doc *automerge.Doc
	data, err := os.ReadFile(filepath.Join(dir, "snapshot", saveName))
	switch {
	case err == nil:
		if doc, err = automerge.Load(data); err != nil {
			return nil, fmt.Errorf("load snapshot: %w", err)
		}
	case !errors.Is(err, fs.ErrNotExist):
		return nil, err
	}

	incs, err := files(filepath.Join(dir, "incremental"))
	if err != nil {
		return nil, err
	}
	for _, path := range incs {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if doc == nil {
			doc, err = automerge.Load(data)
		} else {
			err = doc.LoadIncremental(data)
		}
		if err != nil {
			return nil, fmt.Errorf("load incremental %s: %w", filepath.Base(path), err)
		}
	}

	if doc == nil {
		return nil, fmt.Errorf("%w in %s", ErrNotFound, dir)
	}
	return doc, nil
}

// Save writes doc as the only snapshot under dir. The file is replaced by
// rename, so a failed save leaves the previous snapshot readable. Anything
// else in the snapshot directory and every incremental change is removed
// afterwards.
func Save(doc *automerge.Doc, dir string) error {
	snapDir := filepath.Join(dir, "snapshot")
	if err := os.MkdirAll(snapDir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(snapDir, "."+saveName+"-*")
	if err != nil {
		return err
	}
	_, err = tmp.Write(doc.Save())
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(tmp.Name(), filepath.Join(snapDir, saveName))
	}
	if err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write snapshot: %w", err)
	}

	stale, err := files(snapDir)
	if err != nil {
		return err
	}
	incDir := filepath.Join(dir, "incremental")
	incs, err := files(incDir)
	if err != nil {
		return err
	}
	for _, path := range append(stale, incs...) {
		if filepath.Base(path) == saveName {
			continue
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	if err := os.Remove(incDir); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// files lists the regular files in dir by name. A missing dir has none.
func files(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	return out, nil
}

// Build creates a document holding cols and rows.
func Build(cols []grid.Column, rows []map[string]any) (*automerge.Doc, error) {
	doc := automerge.New()
	if err := doc.Path("data").Set(automerge.NewList()); err != nil {
		return nil, err
	}
	data := doc.Path("data").List()
	if err := data.Append(automerge.NewMap()); err != nil {
		return nil, err
	}
	for i, c := range cols {
		idx := strconv.Itoa(i)
		if err := doc.Path("data", 0, idx).Set(automerge.NewMap()); err != nil {
			return nil, err
		}
		doc.Path("data", 0, idx, "name").Set(c.Name)
		doc.Path("data", 0, idx, "type").Set(c.Format)
		doc.Path("data", 0, idx, "key").Set(idx)
		doc.Path("data", 0, idx, "field").Set(c.Key)
	}
	for n, row := range rows {
		if err := data.Append(automerge.NewMap()); err != nil {
			return nil, err
		}
		for i, c := range cols {
			v, ok := row[c.Key]
			if !ok || v == nil {
				continue
			}
			if err := doc.Path("data", n+1, strconv.Itoa(i)).Set(storable(v)); err != nil {
				return nil, fmt.Errorf("row %d %s: %w", n, c.Key, err)
			}
		}
	}
	if _, err := doc.Commit("grid snapshot"); err != nil {
		return nil, err
	}
	return doc, nil
}

// ReadTable returns the columns and rows of doc. Rows are keyed by field
// name.
func ReadTable(doc *automerge.Doc) ([]Column, []map[string]any, error) {
	dataVal, err := doc.Path("data").Get()
	if err != nil {
		return nil, nil, err
	}
	if dataVal.Kind() != automerge.KindList {
		return nil, nil, fmt.Errorf("data is %s, expected list", dataVal.Kind())
	}
	list := dataVal.List()
	if list.Len() == 0 {
		return nil, nil, errors.New("data list is empty")
	}
	cols, err := readColumns(list)
	if err != nil {
		return nil, nil, err
	}

	var rows []map[string]any
	for i := 1; i < list.Len(); i++ {
		rowVal, err := list.Get(i)
		if err != nil || rowVal.Kind() != automerge.KindMap {
			continue
		}
		rows = append(rows, readRow(rowVal.Map(), cols))
	}
	return cols, rows, nil
}

func readColumns(list *automerge.List) ([]Column, error) {
	row0Val, err := list.Get(0)
	if err != nil {
		return nil, fmt.Errorf("get column row: %w", err)
	}
	if row0Val.Kind() != automerge.KindMap {
		return nil, fmt.Errorf("column row is %s, expected map", row0Val.Kind())
	}
	row0 := row0Val.Map()
	keys, err := row0.Keys()
	if err != nil {
		return nil, fmt.Errorf("column keys: %w", err)
	}

	var cols []Column
	for _, k := range keys {
		v, err := row0.Get(k)
		if err != nil || v.Kind() != automerge.KindMap {
			continue
		}
		m := v.Map()
		c := Column{
			Index:  k,
			Name:   getStr(m, "name"),
			Format: getStr(m, "type"),
			Field:  getStr(m, "field"),
		}
		if c.Field == "" {
			c.Field = c.Name
		}
		if c.Field == "" {
			c.Field = "col" + k
		}
		cols = append(cols, c)
	}
	sort.Slice(cols, func(i, j int) bool {
		a, _ := strconv.Atoi(cols[i].Index)
		b, _ := strconv.Atoi(cols[j].Index)
		return a < b
	})
	return cols, nil
}

func readRow(m *automerge.Map, cols []Column) map[string]any {
	row := make(map[string]any, len(cols))
	for _, c := range cols {
		v, err := m.Get(c.Index)
		if err != nil {
			row[c.Field] = nil
			continue
		}
		switch v.Kind() {
		case automerge.KindStr:
			row[c.Field] = v.Str()
		case automerge.KindFloat64:
			row[c.Field] = v.Float64()
		case automerge.KindInt64:
			row[c.Field] = v.Int64()
		case automerge.KindUint64:
			row[c.Field] = v.Uint64()
		case automerge.KindBool:
			row[c.Field] = v.Bool()
		case automerge.KindVoid, automerge.KindNull:
			row[c.Field] = nil
		case automerge.KindText:
			s, _ := v.Text().Get()
			row[c.Field] = s
		default:
			row[c.Field] = v.Interface()
		}
	}
	return row
}

func getStr(m *automerge.Map, key string) string {
	v, err := m.Get(key)
	if err != nil {
		return ""
	}
	switch v.Kind() {
	case automerge.KindStr:
		return v.Str()
	case automerge.KindText:
		s, _ := v.Text().Get()
		return s
	case automerge.KindVoid, automerge.KindNull:
		return ""
	default:
		return fmt.Sprintf("%v", v.Interface())
	}
}

// storable converts decoded JSON values into types automerge accepts.
func storable(v any) any {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case int:
		return int64(x)
	case float32:
		return float64(x)
	}
	return v
}
