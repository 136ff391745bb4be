package compare

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"gridprobe/analyze"
	"gridprobe/config"
	"gridprobe/grid"
	"gridprobe/llm"
	"gridprobe/sandbox"
	"gridprobe/streamers"
)

// WorkflowExecutor runs one synthesized workflow variation.
// *sandbox.Executor is the production implementation.
type WorkflowExecutor interface {
	Execute(ctx context.Context, input map[string]any, params map[string]any) sandbox.ExecutionResult
}

// RunError reports a run that stopped early. The report built from the
// iterations completed before the failure is attached so callers can
// still persist partial results.
type RunError struct {
	Err    error
	Report *Report
}

func (e *RunError) Error() string { return "run: " + e.Err.Error() }
func (e *RunError) Unwrap() error { return e.Err }

// Orchestrator drives the iterate-until-stop comparison loop.
type Orchestrator struct {
	cfg       *config.Config
	generator InputGenerator
	executor  WorkflowExecutor
	analyzer  *analyze.Analyzer
	handler   streamers.CompareHandler
	usage     *llm.UsageTracker
	logger    hclog.Logger
}

// NewOrchestrator wires the run loop. handler may be nil; usage may be nil
// when no token accounting is wanted.
func NewOrchestrator(cfg *config.Config, generator InputGenerator, executor WorkflowExecutor,
	analyzer *analyze.Analyzer, handler streamers.CompareHandler, usage *llm.UsageTracker,
	logger hclog.Logger) *Orchestrator {

	if handler == nil {
		handler = streamers.NopCompareHandler{}
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Orchestrator{
		cfg:       cfg,
		generator: generator,
		executor:  executor,
		analyzer:  analyzer,
		handler:   handler,
		usage:     usage,
		logger:    logger.Named("orchestrator"),
	}
}

// Run executes iterations until the time budget is spent, enough
// significant findings accumulate, or the iteration cap is reached.
// A report is returned on both paths; on failure it is also attached
// to the returned *RunError.
func (o *Orchestrator) Run(ctx context.Context) (*Report, error) {
	combos, err := grid.Expand(o.cfg.Parameters)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	start := time.Now()
	var results []analyze.ComparisonResult

	paramNames := make([]string, 0, len(o.cfg.Parameters))
	for _, p := range o.cfg.Parameters {
		paramNames = append(paramNames, p.Name)
	}

	o.logger.Info("starting comparison run", "run_id", runID, "combinations", len(combos),
		"max_examples", o.cfg.MaxExamples)
	o.handler.RunStarted(runID, o.cfg.TaskDescription, paramNames, o.cfg.MaxExamples)

	fail := func(cause error) (*Report, error) {
		report := o.buildReport(results, start)
		o.logger.Error("run failed", "run_id", runID, "iterations", len(results), "error", cause)
		o.handler.RunFailed(runID, cause, len(results))
		return report, &RunError{Err: cause, Report: report}
	}

	for iteration := 1; iteration <= o.cfg.MaxExamples; iteration++ {
		if o.shouldStop(start, results) {
			break
		}
		if err := ctx.Err(); err != nil {
			return fail(err)
		}

		o.logger.Info("starting iteration", "iteration", iteration, "max", o.cfg.MaxExamples)
		o.handler.IterationStarted(iteration, o.cfg.MaxExamples)

		example, err := o.generator.Generate(ctx, priorInputs(results))
		if err != nil {
			if ctx.Err() != nil {
				return fail(ctx.Err())
			}
			// A failed generation skips the iteration but still consumes
			// its slot in the budget.
			o.logger.Warn("input generation failed", "iteration", iteration, "error", err)
			o.handler.InputGenerationFailed(iteration, err)
			continue
		}
		o.handler.InputGenerated(iteration, example.Description, example.Input)

		executions := make([]sandbox.ExecutionResult, 0, len(combos))
		for _, combo := range combos {
			if err := ctx.Err(); err != nil {
				return fail(err)
			}
			result := o.executor.Execute(ctx, example.Input, combo)
			if result.Success {
				o.handler.ExecutionCompleted(iteration, result)
			} else {
				o.handler.ExecutionFailed(iteration, result)
			}
			executions = append(executions, result)
		}

		comparison := o.analyzer.Analyze(ctx, executions)
		results = append(results, comparison)
		o.handler.IterationAnalyzed(iteration, comparison)
		if comparison.HasSignificantDifferences {
			o.logger.Info("significant differences found", "iteration", iteration,
				"score", comparison.InconsistencyScore)
			o.handler.SignificantFinding(iteration, comparison)
		}
	}

	report := o.buildReport(results, start)
	o.logger.Info("comparison run completed", "run_id", runID,
		"iterations", len(results),
		"significant", report.ExecutionSummary.SignificantDifferencesFound)
	o.handler.RunCompleted(runID, len(results), report.ExecutionSummary.SignificantDifferencesFound)
	return report, nil
}

// shouldStop is checked before each iteration: the run ends once the time
// budget is spent or enough significant findings have accumulated.
func (o *Orchestrator) shouldStop(start time.Time, results []analyze.ComparisonResult) bool {
	if time.Since(start).Seconds() >= float64(o.cfg.TimeoutSeconds) {
		o.logger.Info("stopping due to timeout")
		return true
	}

	significant := 0
	for _, r := range results {
		if r.HasSignificantDifferences {
			significant++
		}
	}
	if significant >= o.cfg.TargetFindings {
		o.logger.Info("stopping after reaching finding target", "significant", significant)
		return true
	}

	return false
}

func (o *Orchestrator) buildReport(results []analyze.ComparisonResult, start time.Time) *Report {
	var usage llm.Usage
	if o.usage != nil {
		usage = o.usage.Total()
	}
	return BuildReport(o.cfg, results, time.Since(start).Seconds(), usage)
}

func priorInputs(results []analyze.ComparisonResult) []map[string]any {
	prior := make([]map[string]any, 0, len(results))
	for _, r := range results {
		prior = append(prior, r.InputExample)
	}
	return prior
}
