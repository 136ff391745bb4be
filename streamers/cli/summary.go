package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"

	"gridprobe/compare"
)

// PrintFinalSummary renders the end-of-run summary as markdown on the
// terminal. Falls back to the raw markdown if the renderer cannot be
// constructed.
func PrintFinalSummary(report *compare.Report, outputFile string) {
	md := summaryMarkdown(report, outputFile)

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err == nil {
		if out, rerr := renderer.Render(md); rerr == nil {
			fmt.Println(strings.TrimRight(out, "\n"))
			return
		}
	}
	fmt.Println(md)
}

func summaryMarkdown(report *compare.Report, outputFile string) string {
	var b strings.Builder
	summary := report.ExecutionSummary

	b.WriteString("# Comparison Completed\n\n")
	fmt.Fprintf(&b, "- **Total runtime:** %.1f seconds\n", summary.TotalRuntimeSeconds)
	fmt.Fprintf(&b, "- **Iterations completed:** %d\n", summary.TotalIterations)
	fmt.Fprintf(&b, "- **Significant differences found:** %d\n", summary.SignificantDifferencesFound)
	fmt.Fprintf(&b, "- **Average inconsistency score:** %.3f\n", summary.AverageInconsistencyScore)
	if report.LLMUsage.InputTokens > 0 || report.LLMUsage.OutputTokens > 0 {
		fmt.Fprintf(&b, "- **LLM usage:** %d input / %d output tokens ($%.4f)\n",
			report.LLMUsage.InputTokens, report.LLMUsage.OutputTokens, report.LLMUsage.EstimatedCostUSD)
	}
	fmt.Fprintf(&b, "- **Results saved to:** `%s`\n", outputFile)

	if len(report.Recommendations) > 0 {
		b.WriteString("\n## Recommendations\n\n")
		for _, rec := range report.Recommendations {
			fmt.Fprintf(&b, "- %s\n", rec)
		}
	}

	if report.MostSignificantFinding != nil {
		finding := report.MostSignificantFinding
		b.WriteString("\n## Most Significant Finding\n\n")
		fmt.Fprintf(&b, "**Score %.3f:** %s\n", finding.InconsistencyScore, finding.Summary)
	}

	if len(report.ParameterImpactAnalysis) > 0 {
		b.WriteString("\n## Parameter Impact\n\n")
		for _, impact := range report.ParameterImpactAnalysis {
			fmt.Fprintf(&b, "- `%s`: average %.3f, max %.3f\n",
				impact.Name, impact.AverageImpactScore, impact.MaxImpactScore)
		}
	}

	return b.String()
}
