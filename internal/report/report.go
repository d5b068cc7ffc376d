package report

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/mwillis/loanpulse/internal/aggregate"
)

// Meta describes where a report came from.
type Meta struct {
	GeneratedAt       string  `json:"generated_at"`
	Source            string  `json:"source"` // "box" or a local file path
	BoxFileID         string  `json:"box_file_id,omitempty"`
	BoxUserID         string  `json:"box_user_id,omitempty"`
	LoanOfficerFilter *string `json:"loan_officer_filter"`
	SheetName         *string `json:"sheet_name"`
}

// Document is the published report: a metadata block, a KPI block, and the
// detail tables the dashboard renders.
type Document struct {
	Meta   Meta                           `json:"meta"`
	KPIs   map[string]any                 `json:"kpis"`
	Tables map[string][]map[string]string `json:"tables"`
}

// Build assembles the output document from an aggregation result.
func Build(res *aggregate.Result, meta Meta) *Document {
	if meta.GeneratedAt == "" {
		meta.GeneratedAt = res.GeneratedAt.Format(time.RFC3339)
	}
	if meta.LoanOfficerFilter == nil && res.Officer != "" {
		officer := res.Officer
		meta.LoanOfficerFilter = &officer
	}

	kpis := map[string]any{
		"closed_count_current_year": res.ClosedThisYear,
		"counts_by_status":          res.CountsByStatus,
	}
	tables := make(map[string][]map[string]string, len(res.Focus))
	for _, group := range res.Focus {
		key := snakeCase(group.Status)
		kpis[key+"_count"] = group.Count
		rows := group.Rows
		if rows == nil {
			rows = []map[string]string{}
		}
		tables[key] = rows
	}

	return &Document{Meta: meta, KPIs: kpis, Tables: tables}
}

// WriteJSON writes the document with two-space indentation, the format the
// dashboard frontend consumes.
func WriteJSON(doc *Document, path string) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}

// snakeCase converts a status label to the key used in kpis and tables,
// e.g. "Awaiting CTC" -> "awaiting_ctc".
func snakeCase(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(strings.TrimSpace(s)), "_"))
}

// sortedStatuses returns the counts_by_status keys in deterministic order:
// by count descending, ties alphabetically.
func sortedStatuses(counts map[string]int) []string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	return keys
}
