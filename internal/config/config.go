// Package config reads the grid editor settings file and turns it into an
// immutable grid.Config.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang/glog"

	"github.com/twschum/mix-mind/grid"
)

// Editor kinds as written in the settings file.
const (
	EditorText     = "text"
	EditorList     = "list"
	EditorTextArea = "textarea"
	EditorDate     = "date"
	EditorToggle   = "toggle"
)

// Duration is a time.Duration written as "15s" in JSON.
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		var n float64
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("duration: %s", b)
		}
		// bare numbers are seconds
		*d = Duration(n * float64(time.Second))
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

type Option struct {
	Value   string `json:"value"`
	Display string `json:"display,omitempty"`
}

type Editor struct {
	Type    string   `json:"type"`
	Confirm bool     `json:"confirm,omitempty"`
	Options []Option `json:"options,omitempty"`
	Layout  string   `json:"layout,omitempty"`
	On      string   `json:"on,omitempty"`
	Off     string   `json:"off,omitempty"`
}

type Column struct {
	Key      string  `json:"key"`
	Name     string  `json:"name,omitempty"`
	Format   string  `json:"format,omitempty"`
	Editable bool    `json:"editable,omitempty"`
	Nullable bool    `json:"nullable,omitempty"`
	Editor   *Editor `json:"editor,omitempty"`
}

// File is the on-disk settings document.
type File struct {
	APIURL       string   `json:"api_url,omitempty"`
	LoadPath     string   `json:"load_path,omitempty"`
	IDField      string   `json:"id_field,omitempty"`
	NaturalKey   []string `json:"natural_key,omitempty"`
	NotNull      bool     `json:"not_null"`
	Confirmation bool     `json:"confirmation"`
	Timeout      Duration `json:"timeout,omitempty"`
	Sort         string   `json:"sort,omitempty"`
	PageSize     int      `json:"page_size,omitempty"`
	Columns      []Column `json:"columns"`
}

// Load reads the settings file at path. A missing file yields the defaults,
// which are written to path so they can be edited.
func Load(path string) (*File, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		f := Default()
		if err := Save(path, f); err != nil {
			glog.Warningf("config: failed to write defaults to %s: %v", path, err)
		}
		return f, nil
	}
	if err != nil {
		return nil, err
	}
	f := &File{}
	if err := json.Unmarshal(data, f); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	if len(f.Columns) == 0 {
		f.Columns = Default().Columns
	}
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	glog.V(1).Infof("config: loaded %s", path)
	return f, nil
}

func Save(path string, f *File) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// Validate checks column keys and editor declarations.
func (f *File) Validate() error {
	seen := map[string]bool{}
	for i, col := range f.Columns {
		if col.Key == "" {
			return fmt.Errorf("column %d: missing key", i)
		}
		if seen[col.Key] {
			return fmt.Errorf("column %q: duplicate key", col.Key)
		}
		seen[col.Key] = true
		if col.Editor == nil {
			continue
		}
		switch col.Editor.Type {
		case "", EditorText, EditorTextArea, EditorDate, EditorToggle:
		case EditorList:
			if len(col.Editor.Options) == 0 {
				return fmt.Errorf("column %q: list editor without options", col.Key)
			}
		default:
			return fmt.Errorf("column %q: unknown editor %q", col.Key, col.Editor.Type)
		}
	}
	return nil
}

// Grid builds the controller configuration. The returned value shares no
// slices with f.
func (f *File) Grid() grid.Config {
	cfg := grid.Config{
		IDField:      f.IDField,
		NaturalKey:   append([]string(nil), f.NaturalKey...),
		NotNull:      f.NotNull,
		Confirmation: f.Confirmation,
		Timeout:      time.Duration(f.Timeout),
	}
	for _, c := range f.Columns {
		name := c.Name
		if name == "" {
			name = c.Key
		}
		cfg.Columns = append(cfg.Columns, grid.Column{
			Key:      c.Key,
			Name:     name,
			Format:   c.Format,
			Editor:   c.Editor.grid(),
			Editable: c.Editable,
			Nullable: c.Nullable,
		})
	}
	return cfg
}

func (e *Editor) grid() grid.Editor {
	if e == nil {
		return nil
	}
	switch e.Type {
	case EditorList:
		opts := make([]grid.Option, len(e.Options))
		for i, o := range e.Options {
			d := o.Display
			if d == "" {
				d = o.Value
			}
			opts[i] = grid.Option{Value: o.Value, Display: d}
		}
		return grid.ListEditor{Options: opts, Confirm: e.Confirm}
	case EditorTextArea:
		return grid.TextAreaEditor{}
	case EditorDate:
		return grid.DateEditor{Layout: e.Layout}
	case EditorToggle:
		return grid.ToggleEditor{On: e.On, Off: e.Off}
	default:
		return grid.TextEditor{Confirm: e.Confirm}
	}
}
