// Package store persists comparison run history. The JSON report stays the
// single run artifact; the store is operational tracking so past runs can
// be inspected after the fact.
package store

import (
	"time"

	"gridprobe/analyze"
)

// Bundle holds the history store and owns backend cleanup.
type Bundle struct {
	History HistoryStore
	closer  func() error
}

func (b *Bundle) Close() error {
	if b.closer != nil {
		return b.closer()
	}
	return nil
}

// HistoryStore records runs and their iterations append-only.
type HistoryStore interface {
	BeginRun(runID, taskDescription, configJSON string) error
	AppendIteration(runID string, iteration int, result analyze.ComparisonResult) error
	CompleteRun(runID, status string) error
	GetIterations(runID string) ([]IterationRecord, error)
	ListRuns() ([]RunInfo, error)
}

// RunInfo describes one recorded run.
type RunInfo struct {
	ID              string     `json:"id"`
	TaskDescription string     `json:"taskDescription"`
	Status          string     `json:"status"`
	StartedAt       time.Time  `json:"startedAt"`
	FinishedAt      *time.Time `json:"finishedAt,omitempty"`
}

// IterationRecord is one stored iteration of a run.
type IterationRecord struct {
	RunID              string    `json:"runId"`
	Iteration          int       `json:"iteration"`
	InconsistencyScore float64   `json:"inconsistencyScore"`
	Significant        bool      `json:"significant"`
	ResultJSON         string    `json:"resultJson"`
	CreatedAt          time.Time `json:"createdAt"`
}
