package store

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"gridprobe/analyze"
)

// NewMemoryBundle creates a Bundle backed entirely by in-memory state.
func NewMemoryBundle() *Bundle {
	return &Bundle{
		History: &MemoryHistoryStore{
			runs:       make(map[string]*RunInfo),
			iterations: make(map[string][]IterationRecord),
		},
	}
}

type MemoryHistoryStore struct {
	mu         sync.Mutex
	order      []string
	runs       map[string]*RunInfo
	iterations map[string][]IterationRecord
}

func (s *MemoryHistoryStore) BeginRun(runID, taskDescription, configJSON string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[runID]; ok {
		return fmt.Errorf("run '%s' already exists", runID)
	}
	s.runs[runID] = &RunInfo{
		ID:              runID,
		TaskDescription: taskDescription,
		Status:          "running",
		StartedAt:       time.Now(),
	}
	s.order = append(s.order, runID)
	return nil
}

func (s *MemoryHistoryStore) AppendIteration(runID string, iteration int, result analyze.ComparisonResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[runID]; !ok {
		return fmt.Errorf("run '%s' not found", runID)
	}

	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode iteration result: %w", err)
	}

	s.iterations[runID] = append(s.iterations[runID], IterationRecord{
		RunID:              runID,
		Iteration:          iteration,
		InconsistencyScore: result.InconsistencyScore,
		Significant:        result.HasSignificantDifferences,
		ResultJSON:         string(resultJSON),
		CreatedAt:          time.Now(),
	})
	return nil
}

func (s *MemoryHistoryStore) CompleteRun(runID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.runs[runID]
	if !ok {
		return fmt.Errorf("run '%s' not found", runID)
	}
	run.Status = status
	now := time.Now()
	run.FinishedAt = &now
	return nil
}

func (s *MemoryHistoryStore) GetIterations(runID string) ([]IterationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := make([]IterationRecord, len(s.iterations[runID]))
	copy(records, s.iterations[runID])
	return records, nil
}

func (s *MemoryHistoryStore) ListRuns() ([]RunInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	runs := make([]RunInfo, 0, len(s.order))
	for _, id := range s.order {
		runs = append(runs, *s.runs[id])
	}
	return runs, nil
}
