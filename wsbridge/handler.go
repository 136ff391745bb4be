package wsbridge

import (
	"gridprobe/analyze"
	"gridprobe/sandbox"
)

// Event types carried in the Envelope Type field.
const (
	EventRunStarted            = "run_started"
	EventRunCompleted          = "run_completed"
	EventRunFailed             = "run_failed"
	EventIterationStarted      = "iteration_started"
	EventInputGenerated        = "input_generated"
	EventInputGenerationFailed = "input_generation_failed"
	EventExecutionCompleted    = "execution_completed"
	EventExecutionFailed       = "execution_failed"
	EventIterationAnalyzed     = "iteration_analyzed"
	EventSignificantFinding    = "significant_finding"
)

type runStartedData struct {
	RunID           string   `json:"run_id"`
	TaskDescription string   `json:"task_description"`
	ParameterNames  []string `json:"parameter_names"`
	MaxExamples     int      `json:"max_examples"`
}

type runCompletedData struct {
	RunID            string `json:"run_id"`
	Iterations       int    `json:"iterations"`
	SignificantFound int    `json:"significant_found"`
}

type runFailedData struct {
	RunID               string `json:"run_id"`
	Error               string `json:"error"`
	CompletedIterations int    `json:"completed_iterations"`
}

type iterationStartedData struct {
	Iteration   int `json:"iteration"`
	MaxExamples int `json:"max_examples"`
}

type inputGeneratedData struct {
	Iteration   int            `json:"iteration"`
	Description string         `json:"description"`
	Input       map[string]any `json:"input"`
}

type inputGenerationFailedData struct {
	Iteration int    `json:"iteration"`
	Error     string `json:"error"`
}

type executionData struct {
	Iteration int                     `json:"iteration"`
	Result    sandbox.ExecutionResult `json:"result"`
}

type iterationAnalyzedData struct {
	Iteration int                      `json:"iteration"`
	Result    analyze.ComparisonResult `json:"result"`
}

// WSCompareHandler implements streamers.CompareHandler by publishing every
// event through a Broadcaster.
type WSCompareHandler struct {
	broadcaster *Broadcaster
}

// NewWSCompareHandler creates a WebSocket-backed comparison handler.
func NewWSCompareHandler(b *Broadcaster) *WSCompareHandler {
	return &WSCompareHandler{broadcaster: b}
}

func (h *WSCompareHandler) RunStarted(runID string, taskDescription string, parameterNames []string, maxExamples int) {
	h.broadcaster.Publish(EventRunStarted, runStartedData{
		RunID:           runID,
		TaskDescription: taskDescription,
		ParameterNames:  parameterNames,
		MaxExamples:     maxExamples,
	})
}

func (h *WSCompareHandler) RunCompleted(runID string, iterations int, significantFound int) {
	h.broadcaster.Publish(EventRunCompleted, runCompletedData{
		RunID:            runID,
		Iterations:       iterations,
		SignificantFound: significantFound,
	})
}

func (h *WSCompareHandler) RunFailed(runID string, err error, completedIterations int) {
	h.broadcaster.Publish(EventRunFailed, runFailedData{
		RunID:               runID,
		Error:               err.Error(),
		CompletedIterations: completedIterations,
	})
}

func (h *WSCompareHandler) IterationStarted(iteration int, maxExamples int) {
	h.broadcaster.Publish(EventIterationStarted, iterationStartedData{
		Iteration:   iteration,
		MaxExamples: maxExamples,
	})
}

func (h *WSCompareHandler) InputGenerated(iteration int, description string, input map[string]any) {
	h.broadcaster.Publish(EventInputGenerated, inputGeneratedData{
		Iteration:   iteration,
		Description: description,
		Input:       input,
	})
}

func (h *WSCompareHandler) InputGenerationFailed(iteration int, err error) {
	h.broadcaster.Publish(EventInputGenerationFailed, inputGenerationFailedData{
		Iteration: iteration,
		Error:     err.Error(),
	})
}

func (h *WSCompareHandler) ExecutionCompleted(iteration int, result sandbox.ExecutionResult) {
	h.broadcaster.Publish(EventExecutionCompleted, executionData{
		Iteration: iteration,
		Result:    result,
	})
}

func (h *WSCompareHandler) ExecutionFailed(iteration int, result sandbox.ExecutionResult) {
	h.broadcaster.Publish(EventExecutionFailed, executionData{
		Iteration: iteration,
		Result:    result,
	})
}

func (h *WSCompareHandler) IterationAnalyzed(iteration int, result analyze.ComparisonResult) {
	h.broadcaster.Publish(EventIterationAnalyzed, iterationAnalyzedData{
		Iteration: iteration,
		Result:    result,
	})
}

func (h *WSCompareHandler) SignificantFinding(iteration int, result analyze.ComparisonResult) {
	h.broadcaster.Publish(EventSignificantFinding, iterationAnalyzedData{
		Iteration: iteration,
		Result:    result,
	})
}
