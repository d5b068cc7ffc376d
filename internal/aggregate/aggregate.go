package aggregate

import (
	"fmt"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/mwillis/loanpulse/internal/sheet"
)

// MatchPolicy controls how the officer filter compares owner values.
type MatchPolicy string

const (
	// MatchExact keeps rows whose owner equals the filter, case-insensitively.
	MatchExact MatchPolicy = "exact"
	// MatchContains keeps rows whose owner contains the filter, case-insensitively.
	MatchContains MatchPolicy = "contains"
)

// Options configures a single aggregation pass.
type Options struct {
	StatusColumn      string
	OwnerColumn       string
	ClosingDateColumn string
	// Officer restricts rows to one owner. Empty means no filtering.
	Officer string
	Match   MatchPolicy
	// FoldCase lowercases status values before counting, collapsing
	// "Closed" and "closed" into one key.
	FoldCase       bool
	FocusStatuses  []string
	IncludeDetails bool
	// Now supplies the clock, so "current year" is testable.
	Now func() time.Time
}

// FocusGroup holds the count and (optionally) the full rows for one
// focus status.
type FocusGroup struct {
	Status string
	Count  int
	Rows   []map[string]string
}

// Result is the outcome of one aggregation pass. It is never mutated after
// Aggregate returns.
type Result struct {
	GeneratedAt time.Time
	Officer     string
	// Columns is the table's header, preserved for detail rendering.
	Columns        []string
	RowCount       int
	CountsByStatus map[string]int
	// ClosedThisYear is nil when the closing-date column is absent,
	// signalling "not computable" rather than zero.
	ClosedThisYear *int
	Focus          []FocusGroup
}

// MissingColumnError reports that the required status column is absent.
type MissingColumnError struct {
	Column  string
	Present []string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("expected column %q not found; columns present: %s",
		e.Column, strings.Join(e.Present, ", "))
}

// Aggregate computes status counts over the table. It fails only when the
// status column is missing; every other anomaly (absent optional column,
// unparsable date, missing cell) degrades to a defined fallback.
func Aggregate(t *sheet.Table, opts Options) (*Result, error) {
	if opts.StatusColumn == "" {
		opts.StatusColumn = "Status"
	}
	if opts.Match == "" {
		opts.Match = MatchExact
	}
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}

	if !t.HasColumn(opts.StatusColumn) {
		return nil, &MissingColumnError{Column: opts.StatusColumn, Present: t.Columns}
	}

	rows := filterByOfficer(t, opts)

	counts := make(map[string]int)
	for _, row := range rows {
		key := normalize(row[opts.StatusColumn])
		if opts.FoldCase {
			key = strings.ToLower(key)
		}
		counts[key]++
	}

	generatedAt := now()
	result := &Result{
		GeneratedAt:    generatedAt,
		Officer:        opts.Officer,
		Columns:        append([]string(nil), t.Columns...),
		RowCount:       len(rows),
		CountsByStatus: counts,
	}

	if opts.ClosingDateColumn != "" && t.HasColumn(opts.ClosingDateColumn) {
		closed := closedInYear(rows, opts, generatedAt.Year())
		result.ClosedThisYear = &closed
	}

	for _, status := range opts.FocusStatuses {
		group := FocusGroup{Status: status, Rows: []map[string]string{}}
		for _, row := range rows {
			if !strings.EqualFold(normalize(row[opts.StatusColumn]), strings.TrimSpace(status)) {
				continue
			}
			group.Count++
			if opts.IncludeDetails {
				group.Rows = append(group.Rows, extractRow(t.Columns, row))
			}
		}
		result.Focus = append(result.Focus, group)
	}

	return result, nil
}

// filterByOfficer applies the identity filter. A missing owner column means
// no filtering: the sheet simply doesn't track ownership, which is not an
// error.
func filterByOfficer(t *sheet.Table, opts Options) []sheet.Row {
	officer := strings.TrimSpace(opts.Officer)
	if officer == "" || opts.OwnerColumn == "" || !t.HasColumn(opts.OwnerColumn) {
		return t.Rows
	}

	target := strings.ToLower(officer)
	var kept []sheet.Row
	for _, row := range t.Rows {
		owner := strings.ToLower(normalize(row[opts.OwnerColumn]))
		switch opts.Match {
		case MatchContains:
			if strings.Contains(owner, target) {
				kept = append(kept, row)
			}
		default:
			if owner == target {
				kept = append(kept, row)
			}
		}
	}
	return kept
}

// closedInYear counts rows whose status is "closed" (case-insensitive) and
// whose closing date parses to the given year. Unparsable dates never count
// and never error.
func closedInYear(rows []sheet.Row, opts Options, year int) int {
	count := 0
	for _, row := range rows {
		if !strings.EqualFold(normalize(row[opts.StatusColumn]), "closed") {
			continue
		}
		cell := row[opts.ClosingDateColumn]
		if !cell.Valid {
			continue
		}
		parsed, err := dateparse.ParseAny(strings.TrimSpace(cell.Value))
		if err != nil {
			continue
		}
		if parsed.Year() == year {
			count++
		}
	}
	return count
}

// normalize coerces a cell to a trimmed string; missing cells become "".
func normalize(c sheet.Cell) string {
	if !c.Valid {
		return ""
	}
	return strings.TrimSpace(c.Value)
}

// extractRow renders a full row for detail output, missing cells as "".
func extractRow(columns []string, row sheet.Row) map[string]string {
	out := make(map[string]string, len(columns))
	for _, col := range columns {
		cell := row[col]
		if cell.Valid {
			out[col] = cell.Value
		} else {
			out[col] = ""
		}
	}
	return out
}
