package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/twschum/mix-mind/grid"
)

func TestLoadMissingWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mixmind", "grid.json")

	f, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if f.APIURL != DefaultAPIURL {
		t.Fatalf("api url: got %q, want %q", f.APIURL, DefaultAPIURL)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("defaults not written: %v", err)
	}

	again, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(again.Columns) != len(f.Columns) || time.Duration(again.Timeout) != 15*time.Second {
		t.Fatalf("reloaded defaults differ: %+v", again)
	}
}

func TestLoadParsesEditors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grid.json")
	doc := `{
  "not_null": true,
  "confirmation": false,
  "timeout": "250ms",
  "natural_key": ["Bottle"],
  "columns": [
    {"key": "iid"},
    {"key": "Bottle", "editable": true, "editor": {"type": "text", "confirm": true}},
    {"key": "Category", "editable": true, "editor": {"type": "list", "options": [{"value": "Spirit"}, {"value": "Wine", "display": "Vino"}]}},
    {"key": "Notes", "editable": true, "nullable": true, "editor": {"type": "textarea"}},
    {"key": "Opened", "editable": true, "editor": {"type": "date", "layout": "01/02/2006"}},
    {"key": "In_Stock", "editable": true, "editor": {"type": "toggle"}}
  ]
}`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	f, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cfg := f.Grid()

	if cfg.Timeout != 250*time.Millisecond {
		t.Fatalf("timeout: got %v", cfg.Timeout)
	}
	if cfg.Columns[0].Editor != nil || cfg.Columns[0].Name != "iid" {
		t.Fatalf("plain column: got %+v", cfg.Columns[0])
	}
	if ed, ok := cfg.Columns[1].Editor.(grid.TextEditor); !ok || !ed.Confirm {
		t.Fatalf("text editor: got %#v", cfg.Columns[1].Editor)
	}
	list, ok := cfg.Columns[2].Editor.(grid.ListEditor)
	if !ok || len(list.Options) != 2 || list.Options[0].Display != "Spirit" || list.Options[1].Display != "Vino" {
		t.Fatalf("list editor: got %#v", cfg.Columns[2].Editor)
	}
	if _, ok := cfg.Columns[3].Editor.(grid.TextAreaEditor); !ok || !cfg.Columns[3].Nullable {
		t.Fatalf("textarea column: got %+v", cfg.Columns[3])
	}
	if ed, ok := cfg.Columns[4].Editor.(grid.DateEditor); !ok || ed.Layout != "01/02/2006" {
		t.Fatalf("date editor: got %#v", cfg.Columns[4].Editor)
	}
	if _, ok := cfg.Columns[5].Editor.(grid.ToggleEditor); !ok {
		t.Fatalf("toggle editor: got %#v", cfg.Columns[5].Editor)
	}
}

func TestGridDoesNotShareSlices(t *testing.T) {
	f := Default()
	cfg := f.Grid()
	cfg.NaturalKey[0] = "changed"
	if f.NaturalKey[0] != "Bottle" {
		t.Fatalf("natural key shared with file")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		doc  string
		want string
	}{
		{`{"columns": [{"name": "x"}]}`, "missing key"},
		{`{"columns": [{"key": "a"}, {"key": "a"}]}`, "duplicate key"},
		{`{"columns": [{"key": "a", "editor": {"type": "list"}}]}`, "without options"},
		{`{"columns": [{"key": "a", "editor": {"type": "wheel"}}]}`, "unknown editor"},
		{`{"timeout": "soon", "columns": [{"key": "a"}]}`, "invalid duration"},
	}
	for _, tc := range cases {
		path := filepath.Join(t.TempDir(), "grid.json")
		if err := os.WriteFile(path, []byte(tc.doc), 0o644); err != nil {
			t.Fatal(err)
		}
		_, err := Load(path)
		if err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Fatalf("Load(%s): got %v, want error containing %q", tc.doc, err, tc.want)
		}
	}
}

func TestDefaultColumns(t *testing.T) {
	cfg := Default().Grid()
	editable := 0
	for _, c := range cfg.Columns {
		if c.Editable {
			editable++
		}
	}
	if editable != 8 {
		t.Fatalf("editable columns: got %d, want 8", editable)
	}
	last := cfg.Columns[len(cfg.Columns)-1]
	if last.Key != "Cost_per_oz" || last.Editable {
		t.Fatalf("cost per oz: got %+v", last)
	}
}
