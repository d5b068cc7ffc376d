package report

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/mwillis/loanpulse/internal/aggregate"
)

// GFM needed for the markdown tables the summary is built from.
var md = goldmark.New(goldmark.WithExtensions(extension.Table))

const htmlShell = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Pipeline Report</title>
<style>
body { font-family: system-ui, sans-serif; max-width: 56rem; margin: 2rem auto; padding: 0 1rem; color: #1f2937; }
table { border-collapse: collapse; width: 100%%; margin: 1rem 0; }
th, td { border: 1px solid #d1d5db; padding: 0.4rem 0.6rem; text-align: left; font-size: 0.9rem; }
th { background: #f3f4f6; }
h1, h2 { color: #111827; }
</style>
</head>
<body>
%s
</body>
</html>
`

// BuildMarkdown renders the aggregation result as the markdown summary behind
// the static dashboard page.
func BuildMarkdown(res *aggregate.Result, meta Meta) string {
	var b strings.Builder

	b.WriteString("# Pipeline Report\n\n")
	fmt.Fprintf(&b, "Generated %s", meta.GeneratedAt)
	if res.Officer != "" {
		fmt.Fprintf(&b, " for %s", res.Officer)
	}
	fmt.Fprintf(&b, " from %d rows.\n\n", res.RowCount)

	b.WriteString("## KPIs\n\n")
	if res.ClosedThisYear != nil {
		fmt.Fprintf(&b, "- Closed (%d): **%d**\n", res.GeneratedAt.Year(), *res.ClosedThisYear)
	}
	for _, group := range res.Focus {
		fmt.Fprintf(&b, "- %s: **%d**\n", group.Status, group.Count)
	}
	b.WriteString("\n## Counts by status\n\n")
	b.WriteString("| Status | Count |\n|---|---|\n")
	for _, status := range sortedStatuses(res.CountsByStatus) {
		label := status
		if label == "" {
			label = "(blank)"
		}
		fmt.Fprintf(&b, "| %s | %d |\n", escapePipes(label), res.CountsByStatus[status])
	}

	for _, group := range res.Focus {
		if len(group.Rows) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n## %s\n\n", group.Status)
		b.WriteString(detailTable(group, res.Columns))
	}

	return b.String()
}

// detailTable renders a focus group's rows as a markdown table in the
// sheet's original column order.
func detailTable(group aggregate.FocusGroup, columns []string) string {
	var b strings.Builder
	b.WriteString("| " + strings.Join(columns, " | ") + " |\n")
	b.WriteString("|" + strings.Repeat("---|", len(columns)) + "\n")
	for _, row := range group.Rows {
		cells := make([]string, len(columns))
		for i, col := range columns {
			cells[i] = escapePipes(row[col])
		}
		b.WriteString("| " + strings.Join(cells, " | ") + " |\n")
	}
	return b.String()
}

// RenderHTML converts the markdown summary into a self-contained HTML page
// suitable for static hosting next to data.json.
func RenderHTML(res *aggregate.Result, meta Meta) ([]byte, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(BuildMarkdown(res, meta)), &buf); err != nil {
		return nil, fmt.Errorf("rendering report page: %w", err)
	}
	return []byte(fmt.Sprintf(htmlShell, buf.String())), nil
}

// WriteHTML renders and writes the dashboard page.
func WriteHTML(res *aggregate.Result, meta Meta, path string) error {
	page, err := RenderHTML(res, meta)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, page, 0o644); err != nil {
		return fmt.Errorf("writing report page: %w", err)
	}
	return nil
}

func escapePipes(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}
