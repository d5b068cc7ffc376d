package sheet

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Cell is a single spreadsheet cell. Valid is false when the cell was absent
// from the source row, so "no value" stays distinguishable from an actual
// empty string until normalization coerces both.
type Cell struct {
	Value string
	Valid bool
}

// Row maps trimmed column names to cells.
type Row map[string]Cell

// Table is an in-memory spreadsheet: an ordered header plus data rows.
// Column names are trimmed once at load time, case preserved.
type Table struct {
	Columns []string
	Rows    []Row
}

// HasColumn reports whether the table has a column with the given name.
func (t *Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Parse reads an xlsx workbook and returns the named sheet as a Table.
// An empty sheetName selects the first sheet. The first row is the header;
// cells missing from short rows come back as invalid cells.
func Parse(data []byte, sheetName string) (*Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	name := sheetName
	if name == "" {
		name = sheets[0]
	}

	rows, err := f.GetRows(name)
	if err != nil {
		return nil, fmt.Errorf("reading sheet %q (sheets present: %s): %w", name, strings.Join(sheets, ", "), err)
	}
	if len(rows) == 0 {
		return &Table{}, nil
	}

	var columns []string
	// Index into the raw row for each kept column; header cells that trim to
	// empty are dropped.
	var indices []int
	for i, h := range rows[0] {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		columns = append(columns, h)
		indices = append(indices, i)
	}

	table := &Table{Columns: columns}
	for _, raw := range rows[1:] {
		row := make(Row, len(columns))
		for j, col := range columns {
			idx := indices[j]
			if idx < len(raw) {
				row[col] = Cell{Value: raw[idx], Valid: true}
			} else {
				row[col] = Cell{}
			}
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}
