package main

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"time"

	"github.com/golang/glog"

	"github.com/twschum/mix-mind/grid"
	"github.com/twschum/mix-mind/internal/api"
	"github.com/twschum/mix-mind/internal/config"
	"github.com/twschum/mix-mind/internal/snapshot"
)

const (
	loadTimeout   = 30 * time.Second
	importTimeout = 5 * time.Minute
)

// openStore picks the row source: the HTTP API, or the local snapshot when
// offline. The returned label names the source in the title bar.
func openStore(cfg *config.File, dataDir string, offline bool) (grid.Store, string, error) {
	if offline {
		dir := filepath.Join(dataDir, "ingredients")
		s, err := snapshot.Open(dir, cfg.IDField)
		if err != nil {
			return nil, "", fmt.Errorf("open snapshot %s: %w", dir, err)
		}
		glog.Infof("using offline snapshot %s", dir)
		return s, "offline " + dir, nil
	}
	var opts []api.Option
	if cfg.LoadPath != "" {
		opts = append(opts, api.WithLoadPath(cfg.LoadPath))
	}
	glog.Infof("using api %s", cfg.APIURL)
	return api.New(cfg.APIURL, opts...), cfg.APIURL, nil
}

// loadNow fills the controller synchronously, for the commands that do not
// run the interactive program.
func loadNow(c *grid.Controller, store grid.Store) error {
	ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
	defer cancel()
	rows, err := store.Rows(ctx)
	if err != nil {
		return err
	}
	c.SetRows(rows)
	return nil
}

// importResult counts what importRows did with each record.
type importResult struct {
	Added, Updated, Unchanged, Skipped int
}

// importRows adds records through the grid's row checks. A record naming an
// existing row by natural key updates the fields that differ instead.
// Records that fail the checks are logged and skipped.
func importRows(ctx context.Context, c *grid.Controller, store grid.Store, recs []map[string]string) (importResult, error) {
	var res importResult
	for n, rec := range recs {
		data, key, err := c.PrepareRow(rec)
		if err != nil {
			glog.Warningf("import: record %d: %v", n+1, err)
			res.Skipped++
			continue
		}
		row := findRow(c, key)
		if row == nil {
			if _, err := store.Create(ctx, data); err != nil {
				return res, fmt.Errorf("record %d: %w", n+1, err)
			}
			res.Added++
			continue
		}

		target := key
		if id := row.Get(c.IDField()); grid.ValueString(id) != "" {
			target = grid.Key{ByID: true, Fields: []grid.KeyField{{Name: c.IDField(), Value: id}}}
		}
		changed := false
		for _, col := range c.Columns() {
			v, ok := data[col.Key]
			if !ok || slices.ContainsFunc(key.Fields, func(f grid.KeyField) bool { return f.Name == col.Key }) {
				continue
			}
			s := grid.ValueString(v)
			if grid.FormatCell(row.Get(col.Key), col.Format) == grid.FormatCell(grid.ParseCell(s, col.Format), col.Format) {
				continue
			}
			if _, err := store.Update(ctx, grid.UpdateRequest{Key: target, Field: col.Key, Value: s}); err != nil {
				return res, fmt.Errorf("record %d %s: %w", n+1, col.Key, err)
			}
			changed = true
		}
		if changed {
			res.Updated++
		} else {
			res.Unchanged++
		}
	}
	return res, nil
}

func findRow(c *grid.Controller, key grid.Key) *grid.Row {
	for _, r := range c.Rows() {
		match := true
		for _, f := range key.Fields {
			if grid.ValueString(r.Get(f.Name)) != grid.ValueString(f.Value) {
				match = false
				break
			}
		}
		if match {
			return r
		}
	}
	return nil
}

// rowsInView returns the values of every row under v, in view order.
func rowsInView(c *grid.Controller, v grid.View) []map[string]any {
	v.Page, v.PageSize = 0, len(c.Rows())+1
	w := c.Window(v)
	rows := make([]map[string]any, 0, len(w.Handles))
	for _, h := range w.Handles {
		if r, ok := c.Row(h); ok {
			rows = append(rows, r.Values)
		}
	}
	return rows
}
