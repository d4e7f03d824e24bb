// Package export writes the grid out as CSV or XLSX and reads such files
// back for import.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/twschum/mix-mind/grid"
)

const sheet = "Sheet1"

// CSV writes a header of column names and one record per row. Values are
// written raw, not display formatted.
func CSV(w io.Writer, cols []grid.Column, rows []map[string]any) error {
	cw := csv.NewWriter(w)
	header := make([]string, len(cols))
	for i, c := range cols {
		header[i] = c.Key
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	rec := make([]string, len(cols))
	for _, r := range rows {
		for i, c := range cols {
			rec[i] = grid.ValueString(r[c.Key])
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// XLSX writes the rows to a workbook at path. Numeric columns are stored as
// numbers.
func XLSX(path string, cols []grid.Column, rows []map[string]any) error {
	f := excelize.NewFile()
	defer f.Close()

	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return err
	}
	header := make([]interface{}, len(cols))
	for i, c := range cols {
		header[i] = c.Name
	}
	if err := sw.SetRow("A1", header); err != nil {
		return err
	}
	for n, r := range rows {
		row := make([]interface{}, len(cols))
		for i, c := range cols {
			row[i] = cellValue(r[c.Key], c.Format)
		}
		cell, _ := excelize.CoordinatesToCellName(1, n+2)
		if err := sw.SetRow(cell, row); err != nil {
			return fmt.Errorf("row %d: %w", n, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return err
	}
	return f.SaveAs(path)
}

// File writes to path in the format its extension names.
func File(path string, cols []grid.Column, rows []map[string]any) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return XLSX(path, cols, rows)
	case ".csv", "":
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		if err := CSV(f, cols, rows); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	}
	return fmt.Errorf("unsupported export format %q", filepath.Ext(path))
}

func cellValue(v any, format string) interface{} {
	if v == nil {
		return nil
	}
	if format == grid.FormatBool {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	s := grid.ValueString(v)
	if grid.Numeric(format) {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return f
		}
	}
	return s
}
