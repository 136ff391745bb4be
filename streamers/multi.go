package streamers

import (
	"gridprobe/analyze"
	"gridprobe/sandbox"
)

// MultiCompareHandler fans every event out to each handler in order.
type MultiCompareHandler []CompareHandler

func (m MultiCompareHandler) RunStarted(runID string, taskDescription string, parameterNames []string, maxExamples int) {
	for _, h := range m {
		h.RunStarted(runID, taskDescription, parameterNames, maxExamples)
	}
}

func (m MultiCompareHandler) RunCompleted(runID string, iterations int, significantFound int) {
	for _, h := range m {
		h.RunCompleted(runID, iterations, significantFound)
	}
}

func (m MultiCompareHandler) RunFailed(runID string, err error, completedIterations int) {
	for _, h := range m {
		h.RunFailed(runID, err, completedIterations)
	}
}

func (m MultiCompareHandler) IterationStarted(iteration int, maxExamples int) {
	for _, h := range m {
		h.IterationStarted(iteration, maxExamples)
	}
}

func (m MultiCompareHandler) InputGenerated(iteration int, description string, input map[string]any) {
	for _, h := range m {
		h.InputGenerated(iteration, description, input)
	}
}

func (m MultiCompareHandler) InputGenerationFailed(iteration int, err error) {
	for _, h := range m {
		h.InputGenerationFailed(iteration, err)
	}
}

func (m MultiCompareHandler) ExecutionCompleted(iteration int, result sandbox.ExecutionResult) {
	for _, h := range m {
		h.ExecutionCompleted(iteration, result)
	}
}

func (m MultiCompareHandler) ExecutionFailed(iteration int, result sandbox.ExecutionResult) {
	for _, h := range m {
		h.ExecutionFailed(iteration, result)
	}
}

func (m MultiCompareHandler) IterationAnalyzed(iteration int, result analyze.ComparisonResult) {
	for _, h := range m {
		h.IterationAnalyzed(iteration, result)
	}
}

func (m MultiCompareHandler) SignificantFinding(iteration int, result analyze.ComparisonResult) {
	for _, h := range m {
		h.SignificantFinding(iteration, result)
	}
}
