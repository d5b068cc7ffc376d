package history

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Run is one recorded report generation.
type Run struct {
	ID             int64
	RunID          string
	GeneratedAt    string
	Source         string
	FileID         *string
	Officer        *string
	RowCount       int
	ClosedThisYear *int
	CountsByStatus map[string]int
}

// Stats contains aggregate history statistics.
type Stats struct {
	TotalRuns    int
	FirstRun     string
	LastRun      string
	OfficersSeen int
}

// InsertRun records a completed report run and returns its run ID.
func (db *DB) InsertRun(generatedAt time.Time, source string, fileID, officer *string, rowCount int, closedThisYear *int, counts map[string]int) (string, error) {
	countsJSON, err := json.Marshal(counts)
	if err != nil {
		return "", err
	}

	runID := uuid.NewString()
	_, err = db.conn.Exec(
		`INSERT INTO runs (run_id, generated_at, source, file_id, officer, row_count, closed_this_year, counts_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, generatedAt.Format(time.RFC3339), source, fileID, officer, rowCount, closedThisYear, string(countsJSON),
	)
	if err != nil {
		return "", err
	}
	return runID, nil
}

// GetRecentRuns returns the most recent runs, newest first.
func (db *DB) GetRecentRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(
		`SELECT id, run_id, generated_at, source, file_id, officer, row_count, closed_this_year, counts_json
		FROM runs ORDER BY generated_at DESC, id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRuns(rows)
}

// GetLastRun returns the most recent run, or nil if none exist.
func (db *DB) GetLastRun() (*Run, error) {
	runs, err := db.GetRecentRuns(1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return &runs[0], nil
}

// GetStats returns aggregate statistics over all recorded runs.
func (db *DB) GetStats() (*Stats, error) {
	stats := &Stats{}
	var first, last sql.NullString
	err := db.conn.QueryRow(
		`SELECT COUNT(*), MIN(generated_at), MAX(generated_at),
		COUNT(DISTINCT officer) FROM runs`,
	).Scan(&stats.TotalRuns, &first, &last, &stats.OfficersSeen)
	if err != nil {
		return nil, err
	}
	stats.FirstRun = first.String
	stats.LastRun = last.String
	return stats, nil
}

func scanRuns(rows *sql.Rows) ([]Run, error) {
	var runs []Run
	for rows.Next() {
		var r Run
		var countsJSON sql.NullString
		if err := rows.Scan(&r.ID, &r.RunID, &r.GeneratedAt, &r.Source, &r.FileID,
			&r.Officer, &r.RowCount, &r.ClosedThisYear, &countsJSON); err != nil {
			return nil, err
		}
		if countsJSON.Valid && countsJSON.String != "" {
			if err := json.Unmarshal([]byte(countsJSON.String), &r.CountsByStatus); err != nil {
				return nil, err
			}
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
