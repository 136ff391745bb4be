// Package analyze scores how much the outputs of one grid sweep disagree.
package analyze

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hashicorp/go-hclog"

	"gridprobe/sandbox"
)

// ComparisonResult is the analysis of one iteration: one input example
// executed across every parameter combination.
type ComparisonResult struct {
	InputExample              map[string]any            `json:"input_example"`
	Results                   []sandbox.ExecutionResult `json:"workflow_results"`
	InconsistencyScore        float64                   `json:"inconsistency_score"`
	KeyDifferences            []string                  `json:"key_differences"`
	ConsistencyAreas          []string                  `json:"consistency_areas"`
	Significance              string                    `json:"significance_assessment"`
	DetailedAnalysis          string                    `json:"detailed_analysis"`
	HasSignificantDifferences bool                      `json:"has_significant_differences"`
}

// Analyzer applies the comparison policy. A nil Judge degrades to the
// deterministic fallback; a failing Judge does the same. Analysis never
// fails the run.
type Analyzer struct {
	judge     Judge
	threshold float64
	logger    hclog.Logger
}

func NewAnalyzer(judge Judge, threshold float64, logger hclog.Logger) *Analyzer {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Analyzer{judge: judge, threshold: threshold, logger: logger.Named("analyze")}
}

// Analyze compares the executions for one input example.
//
// Policy, in order: no executions or no successes scores 0.0 with no
// analysis possible; a single success scores 0.0 as insufficient; two or
// more successes go to the judge, whose verdict is repaired before use;
// judge absence or failure falls back to deterministic output comparison.
func (a *Analyzer) Analyze(ctx context.Context, results []sandbox.ExecutionResult) ComparisonResult {
	if len(results) == 0 {
		return ComparisonResult{
			InputExample:     map[string]any{},
			Results:          []sandbox.ExecutionResult{},
			KeyDifferences:   []string{},
			ConsistencyAreas: []string{},
			Significance:     "No results to analyze",
			DetailedAnalysis: "Empty result set",
		}
	}

	input := results[0].Input

	var successful []sandbox.ExecutionResult
	for _, r := range results {
		if r.Success {
			successful = append(successful, r)
		}
	}

	if len(successful) == 0 {
		return ComparisonResult{
			InputExample:     input,
			Results:          results,
			KeyDifferences:   []string{},
			ConsistencyAreas: []string{},
			Significance:     "All executions failed - no factual analysis possible",
			DetailedAnalysis: "No successful results to analyze for factual inconsistencies",
		}
	}

	if len(successful) == 1 {
		return ComparisonResult{
			InputExample:     input,
			Results:          results,
			KeyDifferences:   []string{},
			ConsistencyAreas: []string{"Single result - no comparison possible"},
			Significance:     "Single successful result - no factual inconsistencies possible",
			DetailedAnalysis: "Only one successful result available - factual consistency analysis requires multiple results",
		}
	}

	judgment := a.judgeOrFallback(ctx, input, successful)

	return ComparisonResult{
		InputExample:              input,
		Results:                   results,
		InconsistencyScore:        judgment.InconsistencyScore,
		KeyDifferences:            judgment.FactualInconsistencies,
		ConsistencyAreas:          judgment.ConsistentFacts,
		Significance:              judgment.Significance,
		DetailedAnalysis:          judgment.DetailedAnalysis,
		HasSignificantDifferences: judgment.InconsistencyScore >= a.threshold,
	}
}

func (a *Analyzer) judgeOrFallback(ctx context.Context, input map[string]any, successful []sandbox.ExecutionResult) Judgment {
	if a.judge == nil {
		a.logger.Warn("no judge available, using basic output comparison")
		return fallbackJudgment(successful)
	}

	judgment, err := a.judge.Assess(ctx, input, successful)
	if err != nil {
		a.logger.Error("judge failed, using basic output comparison", "error", err)
		return fallbackJudgment(successful)
	}

	return repairJudgment(judgment)
}

// repairJudgment makes a model verdict safe to use: the score is clamped
// into [0,1] and missing list fields become empty slices. A malformed
// verdict degrades, it never aborts.
func repairJudgment(j Judgment) Judgment {
	if j.InconsistencyScore < 0 {
		j.InconsistencyScore = 0
	}
	if j.InconsistencyScore > 1 {
		j.InconsistencyScore = 1
	}
	if j.FactualInconsistencies == nil {
		j.FactualInconsistencies = []string{}
	}
	if j.ConsistentFacts == nil {
		j.ConsistentFacts = []string{}
	}
	if j.Significance == "" {
		j.Significance = "Not provided"
	}
	if j.DetailedAnalysis == "" {
		j.DetailedAnalysis = "Not provided"
	}
	return j
}

// fallbackJudgment compares canonicalized outputs. Identical outputs score
// 0.0; any divergence scores a fixed 0.5 because textual difference alone
// cannot establish factual contradiction.
func fallbackJudgment(successful []sandbox.ExecutionResult) Judgment {
	seen := make(map[string]bool)
	for _, r := range successful {
		seen[normalizeOutput(r.Output)] = true
	}

	if len(seen) == 1 {
		return Judgment{
			InconsistencyScore:     0.0,
			FactualInconsistencies: []string{},
			ConsistentFacts:        []string{"All results produced identical outputs"},
			Significance:           "No inconsistencies detected (identical outputs)",
			DetailedAnalysis:       "Basic analysis: All results are identical",
		}
	}

	return Judgment{
		InconsistencyScore:     0.5,
		FactualInconsistencies: []string{fmt.Sprintf("Results produced %d different outputs", len(seen))},
		ConsistentFacts:        []string{},
		Significance:           "Cannot determine factual inconsistencies without LLM analysis",
		DetailedAnalysis: fmt.Sprintf("Basic analysis: Found %d different outputs among %d results",
			len(seen), len(successful)),
	}
}

// normalizeOutput canonicalizes an output for equality comparison. JSON
// marshaling sorts map keys, so semantically equal maps compare equal.
func normalizeOutput(output any) string {
	if output == nil {
		return "null"
	}
	if data, err := json.Marshal(output); err == nil {
		return string(data)
	}
	return fmt.Sprintf("%v", output)
}
