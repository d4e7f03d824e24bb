package grid

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrMalformed marks a store response that cannot be trusted, such as a
	// success status without the fields that identify the row.
	ErrMalformed = errors.New("malformed response")
	// ErrNoKey is returned when a row has neither an identifier nor a
	// complete natural key.
	ErrNoKey = errors.New("row has no identifier or natural key")
)

// Store is the external collaborator that owns the authoritative rows.
type Store interface {
	Rows(ctx context.Context) ([]map[string]any, error)
	Update(ctx context.Context, req UpdateRequest) (map[string]any, error)
	Delete(ctx context.Context, key Key) (map[string]any, error)
	// Create adds a row and returns it as the store now has it, including
	// any identifier it assigned.
	Create(ctx context.Context, values map[string]any) (map[string]any, error)
}

// KeyField is one named component of a row key.
type KeyField struct {
	Name  string
	Value any
}

// Key addresses a row toward the store: either the row identifier alone
// (ByID) or the ordered natural-key fields.
type Key struct {
	ByID   bool
	Fields []KeyField
}

// Map returns the key fields as a flat map, the shape sent on the wire.
func (k Key) Map() map[string]any {
	m := make(map[string]any, len(k.Fields))
	for _, f := range k.Fields {
		m[f.Name] = f.Value
	}
	return m
}

func (k Key) String() string {
	parts := make([]string, len(k.Fields))
	for i, f := range k.Fields {
		parts[i] = f.Name + "=" + ValueString(f.Value)
	}
	return strings.Join(parts, ",")
}

// UpdateRequest carries one changed cell toward the store.
type UpdateRequest struct {
	Key   Key
	Field string
	Value string
}

// Row is one grid row. Handle is assigned when the row enters the grid and
// never changes; Values is replaced wholesale by server snapshots.
type Row struct {
	Handle string
	Values map[string]any
}

func (r *Row) Get(field string) any {
	if r == nil {
		return nil
	}
	return r.Values[field]
}

// Column declares one field of the grid.
type Column struct {
	Key      string
	Name     string
	Format   string
	Editor   Editor
	Editable bool
	// Nullable exempts the column from non-null enforcement.
	Nullable bool
}

// CellRef names a cell by row handle and column key.
type CellRef struct {
	Row string
	Col string
}

func (r CellRef) String() string { return fmt.Sprintf("%s/%s", r.Row, r.Col) }

// State is the lifecycle state of a cell.
type State int

const (
	Idle State = iota
	Editing
	Committing
	Removed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Editing:
		return "editing"
	case Committing:
		return "committing"
	case Removed:
		return "removed"
	}
	return "unknown"
}

// Config is the immutable controller configuration. The controller copies
// it on construction.
type Config struct {
	Columns []Column

	// IDField names the row identifier field. Defaults to "iid".
	IDField string
	// NaturalKey lists, in order, the fields that address a row without an
	// identifier. Defaults to Bottle, Type.
	NaturalKey []string
	// LabelFields name the row in delete prompts. Defaults to NaturalKey.
	LabelFields []string

	// NotNull rejects empty commits on columns that are not Nullable.
	NotNull bool
	// Confirmation gives text-like editors explicit confirm/cancel controls.
	Confirmation bool

	// Timeout bounds every store call. Defaults to 15s.
	Timeout time.Duration

	OnOutcome func(Outcome)
}

const defaultTimeout = 15 * time.Second

func (c Config) withDefaults() Config {
	if c.IDField == "" {
		c.IDField = "iid"
	}
	if len(c.NaturalKey) == 0 {
		c.NaturalKey = []string{"Bottle", "Type"}
	}
	if len(c.LabelFields) == 0 {
		c.LabelFields = c.NaturalKey
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	c.Columns = append([]Column(nil), c.Columns...)
	c.NaturalKey = append([]string(nil), c.NaturalKey...)
	c.LabelFields = append([]string(nil), c.LabelFields...)
	return c
}
