package export

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/golang/glog"
	"github.com/xuri/excelize/v2"

	"github.com/twschum/mix-mind/grid"
)

// headerAliases maps older spreadsheet headings to column keys.
var headerAliases = map[string]string{
	"kind":       "Bottle",
	"ingredient": "Type",
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ReadCSV reads records with a header row, as written by CSV or by a
// spreadsheet. Headings are matched to columns by key or name, ignoring case,
// spaces and punctuation, so "Size (mL)" finds Size_mL. Unmatched headings
// are skipped.
func ReadCSV(r io.Reader, cols []grid.Column) ([]map[string]string, error) {
	br := bufio.NewReader(r)
	if b, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(b, utf8BOM) {
		br.Discard(len(utf8BOM))
	}
	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	return mapRecords(records, cols)
}

// ReadXLSX reads the first sheet of the workbook at path the way ReadCSV
// reads a file.
func ReadXLSX(path string, cols []grid.Column) ([]map[string]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	records, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, err
	}
	return mapRecords(records, cols)
}

// Read reads path in the format its extension names.
func Read(path string, cols []grid.Column) ([]map[string]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return ReadXLSX(path, cols)
	case ".csv", "":
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return ReadCSV(f, cols)
	}
	return nil, fmt.Errorf("unsupported import format %q", filepath.Ext(path))
}

func mapRecords(records [][]string, cols []grid.Column) ([]map[string]string, error) {
	if len(records) == 0 {
		return nil, errors.New("no header row")
	}
	byName := make(map[string]string, 2*len(cols))
	for _, c := range cols {
		byName[foldHeader(c.Key)] = c.Key
		if c.Name != "" {
			byName[foldHeader(c.Name)] = c.Key
		}
	}
	keys := make([]string, len(records[0]))
	matched := 0
	for i, h := range records[0] {
		k := byName[foldHeader(h)]
		if k == "" {
			k = headerAliases[foldHeader(h)]
		}
		if k == "" {
			glog.V(1).Infof("import: skipping column %q", h)
			continue
		}
		keys[i] = k
		matched++
	}
	if matched == 0 {
		return nil, fmt.Errorf("no known columns in header %q", strings.Join(records[0], ","))
	}

	out := make([]map[string]string, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := make(map[string]string, matched)
		for i, v := range rec {
			if i < len(keys) && keys[i] != "" {
				row[keys[i]] = v
			}
		}
		out = append(out, row)
	}
	return out, nil
}

func foldHeader(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}
