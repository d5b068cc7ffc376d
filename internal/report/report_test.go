package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mwillis/loanpulse/internal/aggregate"
)

func sampleResult() *aggregate.Result {
	closed := 3
	return &aggregate.Result{
		GeneratedAt: time.Date(2026, 8, 27, 6, 0, 0, 0, time.UTC),
		Officer:     "Jane Smith",
		Columns:     []string{"Status", "Borrower"},
		RowCount:    10,
		CountsByStatus: map[string]int{
			"Closed":              3,
			"Processing":          5,
			"Clearing Conditions": 2,
		},
		ClosedThisYear: &closed,
		Focus: []aggregate.FocusGroup{
			{
				Status: "Clearing Conditions",
				Count:  2,
				Rows: []map[string]string{
					{"Status": "Clearing Conditions", "Borrower": "Alice"},
					{"Status": "Clearing Conditions", "Borrower": "Bob"},
				},
			},
			{Status: "Awaiting CTC", Count: 0, Rows: []map[string]string{}},
		},
	}
}

func TestBuildDocument(t *testing.T) {
	res := sampleResult()
	doc := Build(res, Meta{Source: "box", BoxFileID: "123", BoxUserID: "456"})

	if doc.Meta.GeneratedAt != "2026-08-27T06:00:00Z" {
		t.Errorf("expected RFC3339 timestamp, got %q", doc.Meta.GeneratedAt)
	}
	if doc.Meta.LoanOfficerFilter == nil || *doc.Meta.LoanOfficerFilter != "Jane Smith" {
		t.Error("expected officer filter in meta")
	}

	if doc.KPIs["clearing_conditions_count"] != 2 {
		t.Errorf("expected clearing_conditions_count 2, got %v", doc.KPIs["clearing_conditions_count"])
	}
	if doc.KPIs["awaiting_ctc_count"] != 0 {
		t.Errorf("expected awaiting_ctc_count 0, got %v", doc.KPIs["awaiting_ctc_count"])
	}

	if len(doc.Tables["clearing_conditions"]) != 2 {
		t.Errorf("expected 2 detail rows, got %d", len(doc.Tables["clearing_conditions"]))
	}
	if rows, ok := doc.Tables["awaiting_ctc"]; !ok || rows == nil {
		t.Error("expected empty non-nil table for unmatched focus status")
	}
}

func TestDocumentJSONShape(t *testing.T) {
	doc := Build(sampleResult(), Meta{Source: "box"})
	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("failed to decode report JSON: %v", err)
	}
	for _, key := range []string{"meta", "kpis", "tables"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("expected top-level key %q", key)
		}
	}

	kpis := decoded["kpis"].(map[string]any)
	if kpis["closed_count_current_year"] != float64(3) {
		t.Errorf("expected closed count 3, got %v", kpis["closed_count_current_year"])
	}
}

func TestNullClosedCountSerializes(t *testing.T) {
	res := sampleResult()
	res.ClosedThisYear = nil
	doc := Build(res, Meta{Source: "box"})

	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(string(data), `"closed_count_current_year":null`) {
		t.Errorf("expected null closed count, got %s", data)
	}
}

func TestWriteJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	doc := Build(sampleResult(), Meta{Source: "box"})

	if err := WriteJSON(doc, path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read output: %v", err)
	}
	var decoded Document
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if !strings.HasPrefix(string(data), "{\n  ") {
		t.Error("expected two-space indented output")
	}
}

func TestSnakeCase(t *testing.T) {
	cases := map[string]string{
		"Awaiting CTC":         "awaiting_ctc",
		"Clearing Conditions":  "clearing_conditions",
		"  Closed  ":           "closed",
		"Multi  Space  Status": "multi_space_status",
	}
	for in, want := range cases {
		if got := snakeCase(in); got != want {
			t.Errorf("snakeCase(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestBuildMarkdown(t *testing.T) {
	res := sampleResult()
	mdText := BuildMarkdown(res, Meta{GeneratedAt: "2026-08-27T06:00:00Z"})

	if !strings.Contains(mdText, "# Pipeline Report") {
		t.Error("expected report title")
	}
	if !strings.Contains(mdText, "Jane Smith") {
		t.Error("expected officer in summary line")
	}
	if !strings.Contains(mdText, "| Processing | 5 |") {
		t.Errorf("expected status table row, got:\n%s", mdText)
	}
	if !strings.Contains(mdText, "## Clearing Conditions") {
		t.Error("expected focus section for group with rows")
	}
	if strings.Contains(mdText, "## Awaiting CTC") {
		t.Error("expected no section for empty focus group")
	}
}

func TestRenderHTML(t *testing.T) {
	page, err := RenderHTML(sampleResult(), Meta{GeneratedAt: "2026-08-27T06:00:00Z"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	html := string(page)
	if !strings.Contains(html, "<!DOCTYPE html>") {
		t.Error("expected full HTML page")
	}
	if !strings.Contains(html, "<table>") {
		t.Error("expected rendered markdown table")
	}
	if !strings.Contains(html, "Alice") {
		t.Error("expected detail row content")
	}
}

func TestWriteHTML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.html")
	if err := WriteHTML(sampleResult(), Meta{GeneratedAt: "now"}, path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read page: %v", err)
	}
	if !strings.Contains(string(data), "Pipeline Report") {
		t.Error("expected report content in page")
	}
}
