package streamers

import (
	"gridprobe/analyze"
	"gridprobe/sandbox"
)

// CompareHandler defines the interface for handling comparison run events.
// Different implementations can handle terminal output, websocket fan-out,
// history persistence, etc.
type CompareHandler interface {
	// Run lifecycle
	RunStarted(runID string, taskDescription string, parameterNames []string, maxExamples int)
	RunCompleted(runID string, iterations int, significantFound int)
	RunFailed(runID string, err error, completedIterations int)

	// Iteration lifecycle
	IterationStarted(iteration int, maxExamples int)
	InputGenerated(iteration int, description string, input map[string]any)
	InputGenerationFailed(iteration int, err error)

	// Per-combination execution events
	ExecutionCompleted(iteration int, result sandbox.ExecutionResult)
	ExecutionFailed(iteration int, result sandbox.ExecutionResult)

	// Analysis events
	IterationAnalyzed(iteration int, result analyze.ComparisonResult)
	SignificantFinding(iteration int, result analyze.ComparisonResult)
}

// NopCompareHandler discards all events. Useful as a default and in tests.
type NopCompareHandler struct{}

func (NopCompareHandler) RunStarted(string, string, []string, int)         {}
func (NopCompareHandler) RunCompleted(string, int, int)                    {}
func (NopCompareHandler) RunFailed(string, error, int)                     {}
func (NopCompareHandler) IterationStarted(int, int)                        {}
func (NopCompareHandler) InputGenerated(int, string, map[string]any)       {}
func (NopCompareHandler) InputGenerationFailed(int, error)                 {}
func (NopCompareHandler) ExecutionCompleted(int, sandbox.ExecutionResult)  {}
func (NopCompareHandler) ExecutionFailed(int, sandbox.ExecutionResult)     {}
func (NopCompareHandler) IterationAnalyzed(int, analyze.ComparisonResult)  {}
func (NopCompareHandler) SignificantFinding(int, analyze.ComparisonResult) {}
