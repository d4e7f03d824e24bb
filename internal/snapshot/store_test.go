package snapshot

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/twschum/mix-mind/grid"
)

func testColumns() []grid.Column {
	return []grid.Column{
		{Key: "iid", Name: "iid", Format: grid.FormatInt},
		{Key: "Bottle", Name: "Bottle", Editable: true},
		{Key: "Type", Name: "Type", Editable: true},
		{Key: "ABV", Name: "ABV", Format: grid.FormatABV, Editable: true},
		{Key: "In_Stock", Name: "In Stock", Format: grid.FormatBool, Editable: true},
	}
}

func testRows() []map[string]any {
	return []map[string]any{
		{"iid": int64(7), "Bottle": "Gin", "Type": "gin", "ABV": 40.0, "In_Stock": true},
		{"Bottle": "Campari", "Type": "bitter", "ABV": 24.0, "In_Stock": false},
	}
}

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "ingredients")
	if err := Write(dir, testColumns(), testRows()); err != nil {
		t.Fatalf("Write: %v", err)
	}
	s, err := Open(dir, "iid")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s, dir
}

func TestWriteAndReadBack(t *testing.T) {
	s, dir := openTestStore(t)

	if _, err := os.Stat(filepath.Join(dir, "snapshot", saveName)); err != nil {
		t.Fatalf("snapshot file: %v", err)
	}
	if len(s.cols) != 5 || s.cols[1].Field != "Bottle" || s.cols[3].Format != grid.FormatABV {
		t.Fatalf("columns: got %+v", s.cols)
	}
	rows, err := s.Rows(context.Background())
	if err != nil {
		t.Fatalf("Rows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows: got %d, want 2", len(rows))
	}
	if rows[0]["iid"] != int64(7) || rows[0]["ABV"] != 40.0 || rows[0]["In_Stock"] != true {
		t.Fatalf("row 0: got %v", rows[0])
	}
	if rows[1]["iid"] != nil {
		t.Fatalf("unassigned row iid: got %v", rows[1]["iid"])
	}
}

func TestUpdateByIDPersists(t *testing.T) {
	s, dir := openTestStore(t)

	key := grid.Key{ByID: true, Fields: []grid.KeyField{{Name: "iid", Value: "7"}}}
	row, err := s.Update(context.Background(), grid.UpdateRequest{Key: key, Field: "ABV", Value: "43"})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if row["ABV"] != 43.0 || row["Bottle"] != "Gin" {
		t.Fatalf("returned row: got %v", row)
	}

	reopened, err := Open(dir, "iid")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	rows, _ := reopened.Rows(context.Background())
	if rows[0]["ABV"] != 43.0 {
		t.Fatalf("persisted ABV: got %v", rows[0]["ABV"])
	}
}

func TestUpdateByNaturalKey(t *testing.T) {
	s, _ := openTestStore(t)

	key := grid.Key{Fields: []grid.KeyField{{Name: "Bottle", Value: "Campari"}, {Name: "Type", Value: "bitter"}}}
	row, err := s.Update(context.Background(), grid.UpdateRequest{Key: key, Field: "Bottle", Value: "Aperol"})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if row["Bottle"] != "Aperol" {
		t.Fatalf("bottle: got %v", row["Bottle"])
	}

	// the old natural key no longer resolves
	_, err = s.Update(context.Background(), grid.UpdateRequest{Key: key, Field: "ABV", Value: "11"})
	if !errors.Is(err, errNoRow) {
		t.Fatalf("stale key: got %v, want %v", err, errNoRow)
	}
}

func TestUpdateClearsEmptyValue(t *testing.T) {
	s, _ := openTestStore(t)

	key := grid.Key{ByID: true, Fields: []grid.KeyField{{Name: "iid", Value: int64(7)}}}
	row, err := s.Update(context.Background(), grid.UpdateRequest{Key: key, Field: "Type", Value: ""})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if row["Type"] != nil {
		t.Fatalf("cleared value: got %v", row["Type"])
	}
}

func TestUpdateUnknownField(t *testing.T) {
	s, _ := openTestStore(t)
	key := grid.Key{ByID: true, Fields: []grid.KeyField{{Name: "iid", Value: "7"}}}
	if _, err := s.Update(context.Background(), grid.UpdateRequest{Key: key, Field: "Proof", Value: "80"}); err == nil {
		t.Fatalf("expected error for unknown field")
	}
}

func TestDeleteRemovesRow(t *testing.T) {
	s, dir := openTestStore(t)

	key := grid.Key{ByID: true, Fields: []grid.KeyField{{Name: "iid", Value: "7"}}}
	data, err := s.Delete(context.Background(), key)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if data["iid"] != int64(7) {
		t.Fatalf("deleted row: got %v", data)
	}

	reopened, err := Open(dir, "iid")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	rows, _ := reopened.Rows(context.Background())
	if len(rows) != 1 || rows[0]["Bottle"] != "Campari" {
		t.Fatalf("rows after delete: got %v", rows)
	}
	if _, err := s.Delete(context.Background(), key); !errors.Is(err, errNoRow) {
		t.Fatalf("second delete: got %v", err)
	}
}

func TestCancelledContext(t *testing.T) {
	s, _ := openTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	key := grid.Key{ByID: true, Fields: []grid.KeyField{{Name: "iid", Value: "7"}}}
	if _, err := s.Update(ctx, grid.UpdateRequest{Key: key, Field: "ABV", Value: "1"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled update: got %v", err)
	}
}

func TestLoadMissing(t *testing.T) {
	if _, err := Load(t.TempDir()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Load empty dir: got %v, want %v", err, ErrNotFound)
	}
}

func TestSaveClearsIncrementals(t *testing.T) {
	s, dir := openTestStore(t)
	inc := filepath.Join(dir, "incremental")
	if err := os.MkdirAll(inc, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(inc, "stale"), s.doc.Save(), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := Save(s.doc, dir); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(inc); !os.IsNotExist(err) {
		t.Fatalf("incremental dir still present: %v", err)
	}
}

func TestCreateAssignsNextID(t *testing.T) {
	s, dir := openTestStore(t)

	row, err := s.Create(context.Background(), map[string]any{"Bottle": "Aperol", "Type": "bitter", "ABV": "11", "Proof": "22"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if row["iid"] != int64(8) || row["ABV"] != 11.0 || row["Bottle"] != "Aperol" {
		t.Fatalf("created row: got %v", row)
	}

	reopened, err := Open(dir, "iid")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	rows, _ := reopened.Rows(context.Background())
	if len(rows) != 3 || rows[2]["Type"] != "bitter" {
		t.Fatalf("rows after create: got %v", rows)
	}
}

func TestCreateKeepsGivenID(t *testing.T) {
	s, _ := openTestStore(t)
	row, err := s.Create(context.Background(), map[string]any{"iid": "40", "Bottle": "Cynar", "Type": "amaro"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if row["iid"] != int64(40) {
		t.Fatalf("iid: got %v", row["iid"])
	}
}

func TestCreateStringIDColumn(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "ingredients")
	cols := []grid.Column{{Key: "iid", Name: "iid"}, {Key: "Bottle", Name: "Bottle"}}
	if err := Write(dir, cols, nil); err != nil {
		t.Fatalf("Write: %v", err)
	}
	s, err := Open(dir, "iid")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	row, err := s.Create(context.Background(), map[string]any{"Bottle": "Gin"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if id, _ := row["iid"].(string); len(id) != 26 {
		t.Fatalf("iid: got %v, want a ULID", row["iid"])
	}
}

func TestLoadSkipsLeftoverTempFile(t *testing.T) {
	s, dir := openTestStore(t)
	tmp := filepath.Join(dir, "snapshot", "."+saveName+"-123")
	if err := os.WriteFile(tmp, []byte("half written"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(dir); err != nil {
		t.Fatalf("Load with leftover temp file: %v", err)
	}
	if err := Save(s.doc, dir); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(tmp); !os.IsNotExist(err) {
		t.Fatalf("leftover temp file still present: %v", err)
	}
}

func TestLoadCorruptIncremental(t *testing.T) {
	_, dir := openTestStore(t)
	inc := filepath.Join(dir, "incremental")
	if err := os.MkdirAll(inc, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(inc, "0001"), []byte("not automerge"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(dir); err == nil {
		t.Fatalf("Load accepted a corrupt incremental change")
	}
}

func TestSaveReportsUnwritableDir(t *testing.T) {
	s, _ := openTestStore(t)
	dir := filepath.Join(t.TempDir(), "ingredients")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	// a file where the snapshot directory belongs
	if err := os.WriteFile(filepath.Join(dir, "snapshot"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := Save(s.doc, dir); err == nil {
		t.Fatalf("Save into a blocked snapshot dir: got nil error")
	}
}
