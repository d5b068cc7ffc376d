package sheet

import (
	"testing"

	"github.com/xuri/excelize/v2"
)

// buildWorkbook writes rows into a sheet and returns the xlsx bytes.
func buildWorkbook(t *testing.T, sheetName string, rows ...[]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	if sheetName != "Sheet1" {
		if _, err := f.NewSheet(sheetName); err != nil {
			t.Fatalf("failed to create sheet: %v", err)
		}
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			t.Fatalf("failed to set row: %v", err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("failed to write workbook: %v", err)
	}
	return buf.Bytes()
}

func TestParseTrimsHeader(t *testing.T) {
	data := buildWorkbook(t, "Sheet1",
		[]any{"  Status  ", " Loan Officer"},
		[]any{"Closed", "Jane"},
	)

	table, err := Parse(data, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(table.Columns) != 2 {
		t.Fatalf("expected 2 columns, got %d", len(table.Columns))
	}
	if table.Columns[0] != "Status" || table.Columns[1] != "Loan Officer" {
		t.Errorf("expected trimmed headers, got %v", table.Columns)
	}
	if !table.HasColumn("Status") {
		t.Error("expected HasColumn to find trimmed name")
	}
}

func TestParseRows(t *testing.T) {
	data := buildWorkbook(t, "Sheet1",
		[]any{"Status", "Borrower"},
		[]any{"Closed", "Alice"},
		[]any{"Processing", "Bob"},
	)

	table, err := Parse(data, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(table.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(table.Rows))
	}

	cell := table.Rows[0]["Status"]
	if !cell.Valid || cell.Value != "Closed" {
		t.Errorf("expected valid 'Closed' cell, got %+v", cell)
	}
}

func TestParseShortRowsYieldInvalidCells(t *testing.T) {
	data := buildWorkbook(t, "Sheet1",
		[]any{"Status", "Borrower", "Notes"},
		[]any{"Closed"},
	)

	table, err := Parse(data, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	row := table.Rows[0]
	if !row["Status"].Valid {
		t.Error("expected Status cell to be valid")
	}
	if row["Notes"].Valid {
		t.Error("expected missing trailing cell to be invalid")
	}
}

func TestParseNamedSheet(t *testing.T) {
	data := buildWorkbook(t, "Pipeline",
		[]any{"Status"},
		[]any{"Closed"},
	)

	table, err := Parse(data, "Pipeline")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(table.Rows) != 1 {
		t.Errorf("expected 1 row from named sheet, got %d", len(table.Rows))
	}
}

func TestParseUnknownSheet(t *testing.T) {
	data := buildWorkbook(t, "Sheet1",
		[]any{"Status"},
	)

	_, err := Parse(data, "Nope")
	if err == nil {
		t.Fatal("expected error for unknown sheet")
	}
}

func TestParseSkipsBlankHeaderColumns(t *testing.T) {
	data := buildWorkbook(t, "Sheet1",
		[]any{"Status", "  ", "Borrower"},
		[]any{"Closed", "junk", "Alice"},
	)

	table, err := Parse(data, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(table.Columns) != 2 {
		t.Fatalf("expected blank header column dropped, got %v", table.Columns)
	}
	if table.Rows[0]["Borrower"].Value != "Alice" {
		t.Errorf("expected 'Alice' under Borrower, got %q", table.Rows[0]["Borrower"].Value)
	}
}

func TestParseNotAWorkbook(t *testing.T) {
	_, err := Parse([]byte("definitely not xlsx"), "")
	if err == nil {
		t.Fatal("expected error for non-xlsx input")
	}
}

func TestParseHeaderOnly(t *testing.T) {
	data := buildWorkbook(t, "Sheet1",
		[]any{"Status"},
	)

	table, err := Parse(data, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(table.Rows) != 0 {
		t.Errorf("expected 0 rows, got %d", len(table.Rows))
	}
}
