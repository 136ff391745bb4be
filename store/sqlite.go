package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"gridprobe/analyze"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    task_description TEXT NOT NULL,
    status TEXT DEFAULT 'running',
    config_json TEXT,
    started_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    finished_at DATETIME
);

CREATE TABLE IF NOT EXISTS iterations (
    run_id TEXT NOT NULL REFERENCES runs(id),
    iteration INTEGER NOT NULL,
    inconsistency_score REAL NOT NULL,
    significant INTEGER NOT NULL,
    result_json TEXT NOT NULL,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (run_id, iteration)
);
CREATE INDEX IF NOT EXISTS idx_iterations_run ON iterations(run_id);
`

// NewSQLiteBundle creates a Bundle backed by SQLite at the given path.
func NewSQLiteBundle(dbPath string) (*Bundle, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &Bundle{
		History: &SQLiteHistoryStore{db: db},
		closer:  db.Close,
	}, nil
}

type SQLiteHistoryStore struct {
	db *sql.DB
}

func (s *SQLiteHistoryStore) BeginRun(runID, taskDescription, configJSON string) error {
	_, err := s.db.Exec(
		`INSERT INTO runs (id, task_description, config_json) VALUES (?, ?, ?)`,
		runID, taskDescription, configJSON,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

func (s *SQLiteHistoryStore) AppendIteration(runID string, iteration int, result analyze.ComparisonResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode iteration result: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO iterations (run_id, iteration, inconsistency_score, significant, result_json)
		 VALUES (?, ?, ?, ?, ?)`,
		runID, iteration, result.InconsistencyScore, boolToInt(result.HasSignificantDifferences), string(resultJSON),
	)
	if err != nil {
		return fmt.Errorf("insert iteration: %w", err)
	}
	return nil
}

func (s *SQLiteHistoryStore) CompleteRun(runID, status string) error {
	_, err := s.db.Exec(
		`UPDATE runs SET status = ?, finished_at = CURRENT_TIMESTAMP WHERE id = ?`,
		status, runID,
	)
	if err != nil {
		return fmt.Errorf("update run status: %w", err)
	}
	return nil
}

func (s *SQLiteHistoryStore) GetIterations(runID string) ([]IterationRecord, error) {
	rows, err := s.db.Query(
		`SELECT run_id, iteration, inconsistency_score, significant, result_json, created_at
		 FROM iterations WHERE run_id = ? ORDER BY iteration`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("query iterations: %w", err)
	}
	defer rows.Close()

	var records []IterationRecord
	for rows.Next() {
		var rec IterationRecord
		var significant int
		if err := rows.Scan(&rec.RunID, &rec.Iteration, &rec.InconsistencyScore, &significant, &rec.ResultJSON, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan iteration: %w", err)
		}
		rec.Significant = significant != 0
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *SQLiteHistoryStore) ListRuns() ([]RunInfo, error) {
	rows, err := s.db.Query(
		`SELECT id, task_description, status, started_at, finished_at FROM runs ORDER BY started_at`,
	)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunInfo
	for rows.Next() {
		var run RunInfo
		var finished sql.NullTime
		if err := rows.Scan(&run.ID, &run.TaskDescription, &run.Status, &run.StartedAt, &finished); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if finished.Valid {
			t := finished.Time.In(time.Local)
			run.FinishedAt = &t
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
