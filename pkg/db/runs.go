package db

import (
	"database/sql"
	"fmt"
	"time"
)

// Run represents one batch invocation
type Run struct {
	RunID        int64     `json:"run_id" yaml:"run_id"`
	CreatedAt    time.Time `json:"created_at" yaml:"created_at"`
	Command      string    `json:"command" yaml:"command"`
	InputCount   int       `json:"input_count" yaml:"input_count"`
	SuccessCount int       `json:"success_count" yaml:"success_count"`
	FailedCount  int       `json:"failed_count" yaml:"failed_count"`
	ReportDir    string    `json:"report_dir" yaml:"report_dir"`
}

// RunResult is the outcome recorded for one input of a run.
type RunResult struct {
	Input        string `json:"input" yaml:"input"`
	Outcome      string `json:"outcome" yaml:"outcome"`
	ErrorMessage string `json:"error,omitempty" yaml:"error,omitempty"`
}

// CreateRun records a new run and assigns its report directory.
func (db *DB) CreateRun(command string, inputCount int) (*Run, error) {
	dateStr := time.Now().Format("2006-01-02")

	// Insert with placeholder report_dir, will update after we get the ID
	result, err := db.Exec(`
		INSERT INTO runs (command, input_count, report_dir)
		VALUES (?, ?, ?)
	`, command, inputCount, "temp")
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	runID, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get run ID: %w", err)
	}

	reportDir := fmt.Sprintf("runs/%s-%d", dateStr, runID)
	_, err = db.Exec("UPDATE runs SET report_dir = ? WHERE run_id = ?", reportDir, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to update report_dir: %w", err)
	}

	return db.GetRunByID(runID)
}

// InsertRunResult records the outcome of one input
func (db *DB) InsertRunResult(runID int64, input, outcome, errorMessage string) error {
	var msg interface{}
	if errorMessage != "" {
		msg = errorMessage
	}
	_, err := db.Exec(`
		INSERT OR REPLACE INTO run_results (run_id, input, outcome, error_message)
		VALUES (?, ?, ?, ?)
	`, runID, input, outcome, msg)
	if err != nil {
		return fmt.Errorf("failed to insert run result: %w", err)
	}
	return nil
}

// UpdateRunStats updates the success and failed counts for a run
func (db *DB) UpdateRunStats(runID int64, successCount, failedCount int) error {
	_, err := db.Exec(`
		UPDATE runs
		SET success_count = ?, failed_count = ?
		WHERE run_id = ?
	`, successCount, failedCount, runID)
	if err != nil {
		return fmt.Errorf("failed to update run stats: %w", err)
	}
	return nil
}

// GetRunByID retrieves a run by its ID
func (db *DB) GetRunByID(runID int64) (*Run, error) {
	var run Run
	err := db.QueryRow(`
		SELECT run_id, created_at, command, input_count, success_count, failed_count, report_dir
		FROM runs
		WHERE run_id = ?
	`, runID).Scan(
		&run.RunID,
		&run.CreatedAt,
		&run.Command,
		&run.InputCount,
		&run.SuccessCount,
		&run.FailedCount,
		&run.ReportDir,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %d not found", runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return &run, nil
}

// ListRuns returns the most recent runs, newest first
func (db *DB) ListRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.Query(`
		SELECT run_id, created_at, command, input_count, success_count, failed_count, report_dir
		FROM runs
		ORDER BY created_at DESC, run_id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.RunID, &r.CreatedAt, &r.Command, &r.InputCount, &r.SuccessCount, &r.FailedCount, &r.ReportDir); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRunResults retrieves the per-input outcomes of a run
func (db *DB) GetRunResults(runID int64) ([]RunResult, error) {
	rows, err := db.Query(`
		SELECT input, outcome, COALESCE(error_message, '')
		FROM run_results
		WHERE run_id = ?
		ORDER BY result_id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get run results: %w", err)
	}
	defer rows.Close()

	var results []RunResult
	for rows.Next() {
		var r RunResult
		if err := rows.Scan(&r.Input, &r.Outcome, &r.ErrorMessage); err != nil {
			return nil, fmt.Errorf("failed to scan run result: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
