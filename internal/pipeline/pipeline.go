package pipeline

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/mwillis/loanpulse/internal/aggregate"
	"github.com/mwillis/loanpulse/internal/box"
	"github.com/mwillis/loanpulse/internal/config"
	"github.com/mwillis/loanpulse/internal/history"
	"github.com/mwillis/loanpulse/internal/report"
	"github.com/mwillis/loanpulse/internal/sheet"
)

// StepResult holds the result of a single pipeline step.
type StepResult struct {
	Name    string
	Summary string
	Err     error
}

// Result holds the results of a full report run.
type Result struct {
	Steps      []StepResult
	RowCount   int
	OutputPath string
}

// Failed returns the first step error, or nil if every step succeeded.
func (r *Result) Failed() error {
	for _, s := range r.Steps {
		if s.Err != nil {
			return fmt.Errorf("%s: %w", s.Name, s.Err)
		}
	}
	return nil
}

// Pipeline runs the report generation sequence: fetch the workbook, parse it,
// aggregate, publish, and record the run.
type Pipeline struct {
	cfg *config.Config
	db  *history.DB
	// now is the clock injected into aggregation; tests pin it.
	now func() time.Time
}

// New creates a pipeline. The history db may be nil, in which case runs are
// not recorded.
func New(cfg *config.Config, db *history.DB) *Pipeline {
	return &Pipeline{cfg: cfg, db: db, now: time.Now}
}

// Run executes the pipeline. When inputPath is non-empty the workbook is read
// from disk instead of Box. The first failing step aborts the run; recording
// history is best-effort.
func (p *Pipeline) Run(ctx context.Context, inputPath string) *Result {
	r := &Result{OutputPath: p.cfg.Output.JSONPath}

	var data []byte
	if inputPath != "" {
		step := p.runRead(inputPath, &data)
		r.Steps = append(r.Steps, step)
		if step.Err != nil {
			return r
		}
	} else {
		client, step := p.runAuthenticate(ctx)
		r.Steps = append(r.Steps, step)
		if step.Err != nil {
			return r
		}

		step = p.runDownload(ctx, client, &data)
		r.Steps = append(r.Steps, step)
		if step.Err != nil {
			return r
		}
	}

	var table *sheet.Table
	step := p.runParse(data, &table)
	r.Steps = append(r.Steps, step)
	if step.Err != nil {
		return r
	}

	var agg *aggregate.Result
	step = p.runAggregate(table, &agg)
	r.Steps = append(r.Steps, step)
	if step.Err != nil {
		return r
	}
	r.RowCount = agg.RowCount

	step = p.runPublish(agg, inputPath)
	r.Steps = append(r.Steps, step)
	if step.Err != nil {
		return r
	}

	r.Steps = append(r.Steps, p.runRecord(agg, inputPath))
	return r
}

func (p *Pipeline) runAuthenticate(ctx context.Context) (*box.Client, StepResult) {
	log.Println("Step: authenticating to Box...")
	if err := p.cfg.ValidateRemote(); err != nil {
		return nil, StepResult{Name: "Authenticate", Err: err}
	}
	creds, err := config.ParseBoxCredentials(p.cfg.Box.ConfigJSON)
	if err != nil {
		return nil, StepResult{Name: "Authenticate", Err: err}
	}

	client := box.NewClient(creds, p.cfg.Box.UserID)
	user, err := client.CurrentUser(ctx)
	if err != nil {
		return nil, StepResult{Name: "Authenticate", Err: err}
	}
	return client, StepResult{
		Name:    "Authenticate",
		Summary: fmt.Sprintf("Authenticated as %s (%s)", user.Name, user.Login),
	}
}

func (p *Pipeline) runDownload(ctx context.Context, client *box.Client, data *[]byte) StepResult {
	log.Printf("Step: downloading file %s...", p.cfg.Box.FileID)
	bytes, err := client.DownloadFile(ctx, p.cfg.Box.FileID)
	if err != nil {
		return StepResult{Name: "Download", Err: err}
	}
	*data = bytes
	return StepResult{
		Name:    "Download",
		Summary: fmt.Sprintf("Downloaded %d bytes", len(bytes)),
	}
}

func (p *Pipeline) runRead(path string, data *[]byte) StepResult {
	log.Printf("Step: reading %s...", path)
	bytes, err := os.ReadFile(path)
	if err != nil {
		return StepResult{Name: "Read", Err: err}
	}
	*data = bytes
	return StepResult{
		Name:    "Read",
		Summary: fmt.Sprintf("Read %d bytes from %s", len(bytes), path),
	}
}

func (p *Pipeline) runParse(data []byte, table **sheet.Table) StepResult {
	log.Println("Step: parsing workbook...")
	t, err := sheet.Parse(data, p.cfg.Report.Sheet)
	if err != nil {
		return StepResult{Name: "Parse", Err: err}
	}
	*table = t
	return StepResult{
		Name:    "Parse",
		Summary: fmt.Sprintf("Parsed %d rows, %d columns", len(t.Rows), len(t.Columns)),
	}
}

func (p *Pipeline) runAggregate(table *sheet.Table, agg **aggregate.Result) StepResult {
	log.Println("Step: aggregating...")
	res, err := aggregate.Aggregate(table, aggregate.Options{
		StatusColumn:      p.cfg.Report.StatusColumn,
		OwnerColumn:       p.cfg.Report.OwnerColumn,
		ClosingDateColumn: p.cfg.Report.ClosingDateColumn,
		Officer:           p.cfg.Report.Officer,
		Match:             aggregate.MatchPolicy(p.cfg.Report.Match),
		FoldCase:          p.cfg.Report.FoldCase,
		FocusStatuses:     p.cfg.Report.FocusStatuses,
		IncludeDetails:    p.cfg.IncludeDetails(),
		Now:               p.now,
	})
	if err != nil {
		return StepResult{Name: "Aggregate", Err: err}
	}
	*agg = res
	return StepResult{
		Name:    "Aggregate",
		Summary: fmt.Sprintf("Aggregated %d rows into %d statuses", res.RowCount, len(res.CountsByStatus)),
	}
}

func (p *Pipeline) runPublish(agg *aggregate.Result, inputPath string) StepResult {
	log.Printf("Step: writing %s...", p.cfg.Output.JSONPath)
	doc := report.Build(agg, p.buildMeta(agg, inputPath))

	if err := report.WriteJSON(doc, p.cfg.Output.JSONPath); err != nil {
		return StepResult{Name: "Publish", Err: err}
	}
	summary := fmt.Sprintf("Wrote %s", p.cfg.Output.JSONPath)

	if p.cfg.Output.HTMLPath != "" {
		if err := report.WriteHTML(agg, doc.Meta, p.cfg.Output.HTMLPath); err != nil {
			return StepResult{Name: "Publish", Err: err}
		}
		summary += " and " + p.cfg.Output.HTMLPath
	}
	return StepResult{Name: "Publish", Summary: summary}
}

func (p *Pipeline) runRecord(agg *aggregate.Result, inputPath string) StepResult {
	if p.db == nil {
		return StepResult{Name: "Record", Summary: "History disabled"}
	}

	source := "box"
	var fileID *string
	if inputPath != "" {
		source = inputPath
	} else {
		id := p.cfg.Box.FileID
		fileID = &id
	}
	var officer *string
	if agg.Officer != "" {
		o := agg.Officer
		officer = &o
	}

	runID, err := p.db.InsertRun(agg.GeneratedAt, source, fileID, officer,
		agg.RowCount, agg.ClosedThisYear, agg.CountsByStatus)
	if err != nil {
		// History is advisory; a failed insert shouldn't fail the report.
		log.Printf("Failed to record run: %v", err)
		return StepResult{Name: "Record", Summary: "Run not recorded"}
	}
	return StepResult{Name: "Record", Summary: fmt.Sprintf("Recorded run %s", runID)}
}

func (p *Pipeline) buildMeta(agg *aggregate.Result, inputPath string) report.Meta {
	meta := report.Meta{
		GeneratedAt: agg.GeneratedAt.Format(time.RFC3339),
		Source:      "box",
	}
	if inputPath != "" {
		meta.Source = inputPath
	} else {
		meta.BoxFileID = p.cfg.Box.FileID
		meta.BoxUserID = p.cfg.Box.UserID
	}
	if p.cfg.Report.Sheet != "" {
		s := p.cfg.Report.Sheet
		meta.SheetName = &s
	}
	return meta
}
