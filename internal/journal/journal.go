// Package journal records the outcome of every grid edit in SQLite.
package journal

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang/glog"
	_ "modernc.org/sqlite"

	"github.com/twschum/mix-mind/grid"
)

const schema = `CREATE TABLE IF NOT EXISTS edits (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	at         TEXT NOT NULL,
	op         TEXT NOT NULL,
	row_key    TEXT NOT NULL,
	field      TEXT,
	old_value  TEXT,
	new_value  TEXT,
	outcome    TEXT NOT NULL,
	message    TEXT,
	request_id TEXT
)`

// Entry is one recorded outcome.
type Entry struct {
	ID        int64
	At        time.Time
	Op        string
	RowKey    string
	Field     string
	Old       string
	New       string
	Outcome   string
	Message   string
	RequestID string
}

type Journal struct {
	db *sql.DB
}

// Open creates or opens the journal database at path.
func Open(path string) (*Journal, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: %w", err)
	}
	// one writer; Record is called from the UI loop
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create edits table: %w", err)
	}
	return &Journal{db: db}, nil
}

func (j *Journal) Close() error { return j.db.Close() }

// Record stores o. Unchanged commits are not worth a row and are skipped.
func (j *Journal) Record(o grid.Outcome) error {
	if o.Kind == grid.OutcomeUnchanged {
		return nil
	}
	at := o.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := j.db.Exec(
		`INSERT INTO edits (at, op, row_key, field, old_value, new_value, outcome, message, request_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		at.UTC().Format(time.RFC3339Nano), o.Op, o.Key.String(), o.Field, o.Old, o.New,
		o.Kind.String(), o.Message, o.RequestID,
	)
	if err != nil {
		return fmt.Errorf("insert edit: %w", err)
	}
	return nil
}

// Recorder adapts Record to grid.Config.OnOutcome. Failures are logged.
func (j *Journal) Recorder() func(grid.Outcome) {
	return func(o grid.Outcome) {
		if err := j.Record(o); err != nil {
			glog.Errorf("journal: %v", err)
		}
	}
}

// Recent returns up to limit entries, newest first.
func (j *Journal) Recent(limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := j.db.Query(
		`SELECT id, at, op, row_key, field, old_value, new_value, outcome, message, request_id
		FROM edits ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var at string
		var field, oldV, newV, msg, reqID sql.NullString
		if err := rows.Scan(&e.ID, &at, &e.Op, &e.RowKey, &field, &oldV, &newV, &e.Outcome, &msg, &reqID); err != nil {
			return nil, err
		}
		e.At, _ = time.Parse(time.RFC3339Nano, at)
		e.Field, e.Old, e.New, e.Message, e.RequestID = field.String, oldV.String, newV.String, msg.String, reqID.String
		out = append(out, e)
	}
	return out, rows.Err()
}
