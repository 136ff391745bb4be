package streamers

import (
	"log"
	"sync"

	"gridprobe/analyze"
	"gridprobe/sandbox"
	"gridprobe/store"
)

// StoringCompareHandler is a CompareHandler decorator that persists run
// history to a HistoryStore, then delegates to an inner handler
// (e.g. CLI or WebSocket).
type StoringCompareHandler struct {
	inner      CompareHandler
	history    store.HistoryStore
	configJSON string

	mu    sync.Mutex
	runID string
}

// NewStoringCompareHandler wraps an existing CompareHandler with history
// persistence. configJSON is stored alongside the run for later replay.
func NewStoringCompareHandler(inner CompareHandler, history store.HistoryStore, configJSON string) *StoringCompareHandler {
	return &StoringCompareHandler{
		inner:      inner,
		history:    history,
		configJSON: configJSON,
	}
}

func (h *StoringCompareHandler) currentRunID() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.runID
}

func (h *StoringCompareHandler) RunStarted(runID string, taskDescription string, parameterNames []string, maxExamples int) {
	h.mu.Lock()
	h.runID = runID
	h.mu.Unlock()

	if err := h.history.BeginRun(runID, taskDescription, h.configJSON); err != nil {
		log.Printf("StoringCompareHandler: begin run: %v", err)
	}
	h.inner.RunStarted(runID, taskDescription, parameterNames, maxExamples)
}

func (h *StoringCompareHandler) RunCompleted(runID string, iterations int, significantFound int) {
	if err := h.history.CompleteRun(runID, "completed"); err != nil {
		log.Printf("StoringCompareHandler: complete run: %v", err)
	}
	h.inner.RunCompleted(runID, iterations, significantFound)
}

func (h *StoringCompareHandler) RunFailed(runID string, err error, completedIterations int) {
	if serr := h.history.CompleteRun(runID, "failed"); serr != nil {
		log.Printf("StoringCompareHandler: complete run: %v", serr)
	}
	h.inner.RunFailed(runID, err, completedIterations)
}

func (h *StoringCompareHandler) IterationStarted(iteration int, maxExamples int) {
	h.inner.IterationStarted(iteration, maxExamples)
}

func (h *StoringCompareHandler) InputGenerated(iteration int, description string, input map[string]any) {
	h.inner.InputGenerated(iteration, description, input)
}

func (h *StoringCompareHandler) InputGenerationFailed(iteration int, err error) {
	h.inner.InputGenerationFailed(iteration, err)
}

func (h *StoringCompareHandler) ExecutionCompleted(iteration int, result sandbox.ExecutionResult) {
	h.inner.ExecutionCompleted(iteration, result)
}

func (h *StoringCompareHandler) ExecutionFailed(iteration int, result sandbox.ExecutionResult) {
	h.inner.ExecutionFailed(iteration, result)
}

func (h *StoringCompareHandler) IterationAnalyzed(iteration int, result analyze.ComparisonResult) {
	if err := h.history.AppendIteration(h.currentRunID(), iteration, result); err != nil {
		log.Printf("StoringCompareHandler: append iteration: %v", err)
	}
	h.inner.IterationAnalyzed(iteration, result)
}

func (h *StoringCompareHandler) SignificantFinding(iteration int, result analyze.ComparisonResult) {
	h.inner.SignificantFinding(iteration, result)
}
