package compare

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"gridprobe/analyze"
	"gridprobe/config"
	"gridprobe/llm"
)

// Report is the final output of a comparison run, written as JSON to the
// configured output file.
type Report struct {
	ExecutionSummary        ExecutionSummary  `json:"execution_summary"`
	SignificantFindings     []Finding         `json:"significant_findings"`
	ParameterImpactAnalysis []ParameterImpact `json:"parameter_impact_analysis"`
	MostSignificantFinding  *FindingSummary   `json:"most_significant_finding"`
	Recommendations         []string          `json:"recommendations"`
	LLMUsage                LLMUsage          `json:"llm_usage"`
}

type ExecutionSummary struct {
	TotalRuntimeSeconds         float64        `json:"total_runtime_seconds"`
	TotalIterations             int            `json:"total_iterations"`
	SignificantDifferencesFound int            `json:"significant_differences_found"`
	AverageInconsistencyScore   float64        `json:"average_inconsistency_score"`
	Configuration               map[string]any `json:"configuration"`
}

// Finding records one iteration's input, executions and analysis.
type Finding struct {
	Iteration              int              `json:"iteration"`
	InputExample           map[string]any   `json:"input_example"`
	InconsistencyScore     float64          `json:"inconsistency_score"`
	KeyDifferences         []string         `json:"key_differences"`
	ConsistencyAreas       []string         `json:"consistency_areas"`
	SignificanceAssessment string           `json:"significance_assessment"`
	DetailedAnalysis       string           `json:"detailed_analysis"`
	WorkflowResults        []WorkflowResult `json:"workflow_results"`
}

// WorkflowResult is the reportable view of one sandboxed execution.
type WorkflowResult struct {
	Parameters    map[string]any `json:"parameters"`
	Success       bool           `json:"success"`
	Output        any            `json:"output"`
	ExecutionTime float64        `json:"execution_time"`
	Error         string         `json:"error,omitempty"`
}

// ParameterImpact scores how much varying one parameter changed outputs,
// ordered most impactful first.
type ParameterImpact struct {
	Name               string  `json:"name"`
	AverageImpactScore float64 `json:"average_impact_score"`
	MaxImpactScore     float64 `json:"max_impact_score"`
	OptionsTested      []any   `json:"options_tested"`
	Description        string  `json:"description"`
}

type FindingSummary struct {
	InconsistencyScore float64        `json:"inconsistency_score"`
	InputExample       map[string]any `json:"input_example"`
	Summary            string         `json:"summary"`
}

// LLMUsage reports token consumption and its estimated cost.
type LLMUsage struct {
	Model            string  `json:"model"`
	InputTokens      int     `json:"input_tokens"`
	OutputTokens     int     `json:"output_tokens"`
	EstimatedCostUSD float64 `json:"estimated_cost_usd"`
}

// BuildReport assembles the final report from the iterations completed so
// far. It is also called on the failure path with partial results.
func BuildReport(cfg *config.Config, results []analyze.ComparisonResult, runtimeSeconds float64, usage llm.Usage) *Report {
	significant := 0
	var scoreSum float64
	for _, r := range results {
		scoreSum += r.InconsistencyScore
		if r.HasSignificantDifferences {
			significant++
		}
	}

	avgScore := 0.0
	if len(results) > 0 {
		avgScore = scoreSum / float64(len(results))
	}

	findings := make([]Finding, 0, len(results))
	for i, r := range results {
		workflowResults := make([]WorkflowResult, 0, len(r.Results))
		for _, wr := range r.Results {
			workflowResults = append(workflowResults, WorkflowResult{
				Parameters:    wr.Parameters,
				Success:       wr.Success,
				Output:        wr.Output,
				ExecutionTime: wr.ExecutionTime,
				Error:         wr.Error,
			})
		}
		findings = append(findings, Finding{
			Iteration:              i + 1,
			InputExample:           r.InputExample,
			InconsistencyScore:     r.InconsistencyScore,
			KeyDifferences:         r.KeyDifferences,
			ConsistencyAreas:       r.ConsistencyAreas,
			SignificanceAssessment: r.Significance,
			DetailedAnalysis:       r.DetailedAnalysis,
			WorkflowResults:        workflowResults,
		})
	}

	impacts := analyzeParameterImpact(cfg.Parameters, results)

	var most *FindingSummary
	for _, r := range results {
		if most == nil || r.InconsistencyScore > most.InconsistencyScore {
			most = &FindingSummary{
				InconsistencyScore: r.InconsistencyScore,
				InputExample:       r.InputExample,
				Summary:            r.Significance,
			}
		}
	}

	return &Report{
		ExecutionSummary: ExecutionSummary{
			TotalRuntimeSeconds:         runtimeSeconds,
			TotalIterations:             len(results),
			SignificantDifferencesFound: significant,
			AverageInconsistencyScore:   avgScore,
			Configuration:               cfg.ToJSON(),
		},
		SignificantFindings:     findings,
		ParameterImpactAnalysis: impacts,
		MostSignificantFinding:  most,
		Recommendations:         buildRecommendations(results, impacts),
		LLMUsage: LLMUsage{
			Model:            cfg.LLM.Model,
			InputTokens:      usage.InputTokens,
			OutputTokens:     usage.OutputTokens,
			EstimatedCostUSD: usage.Cost(cfg.LLM.Model),
		},
	}
}

// analyzeParameterImpact scores each parameter by the output diversity
// observed when its value varied. For each iteration where more than one
// value of the parameter was exercised, the impact is the number of unique
// successful outputs over the number of executions.
func analyzeParameterImpact(params []config.ParameterSpec, results []analyze.ComparisonResult) []ParameterImpact {
	impacts := make([]ParameterImpact, 0, len(params))

	for _, param := range params {
		var scores []float64

		for _, result := range results {
			if len(result.Results) == 0 {
				continue
			}

			valueGroups := make(map[string]bool)
			uniqueOutputs := make(map[string]bool)
			for _, wr := range result.Results {
				value := "unknown"
				if v, ok := wr.Parameters[param.Name]; ok {
					value = fmt.Sprintf("%v", v)
				}
				valueGroups[value] = true
				if wr.Success {
					uniqueOutputs[outputKey(wr.Output)] = true
				}
			}

			if len(valueGroups) > 1 {
				scores = append(scores, float64(len(uniqueOutputs))/float64(len(result.Results)))
			}
		}

		impact := ParameterImpact{
			Name:          param.Name,
			OptionsTested: param.Options,
			Description:   param.Description,
		}
		if len(scores) > 0 {
			var sum, max float64
			for _, s := range scores {
				sum += s
				if s > max {
					max = s
				}
			}
			impact.AverageImpactScore = sum / float64(len(scores))
			impact.MaxImpactScore = max
		}
		impacts = append(impacts, impact)
	}

	sort.SliceStable(impacts, func(i, j int) bool {
		return impacts[i].AverageImpactScore > impacts[j].AverageImpactScore
	})
	return impacts
}

func buildRecommendations(results []analyze.ComparisonResult, impacts []ParameterImpact) []string {
	var recs []string

	significant := 0
	for _, r := range results {
		if r.HasSignificantDifferences {
			significant++
		}
	}
	total := len(results)

	switch {
	case significant == 0:
		recs = append(recs,
			"No significant parameter differences detected. "+
				"Consider testing with more diverse input examples or different parameter ranges.")
	case float64(significant)/float64(total) > 0.7:
		recs = append(recs,
			"High variability detected across parameter configurations. "+
				"Consider standardizing parameter choices or documenting expected variations.")
	default:
		recs = append(recs, fmt.Sprintf(
			"Moderate variability detected (%d/%d cases). "+
				"Review significant cases to understand parameter impact.", significant, total))
	}

	var highImpact []string
	for _, impact := range impacts {
		if impact.AverageImpactScore > 0.5 {
			highImpact = append(highImpact, impact.Name)
		}
	}
	if len(highImpact) > 0 {
		recs = append(recs, fmt.Sprintf(
			"Parameters with high impact on results: %s. "+
				"Consider careful selection of these parameters.", strings.Join(highImpact, ", ")))
	}

	return recs
}

// outputKey canonicalizes an output for set membership. JSON marshaling
// sorts map keys, so semantically equal maps collapse to one key.
func outputKey(output any) string {
	if output == nil {
		return "null"
	}
	if data, err := json.Marshal(output); err == nil {
		return string(data)
	}
	return fmt.Sprintf("%v", output)
}
