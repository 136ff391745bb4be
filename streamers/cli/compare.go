package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"gridprobe/analyze"
	"gridprobe/sandbox"
)

// CompareHandler implements streamers.CompareHandler for CLI output
type CompareHandler struct {
	mu      sync.Mutex
	spinner *spinner
	verbose bool

	// results accumulated for the current iteration, reset on IterationStarted
	iterResults []sandbox.ExecutionResult
}

// NewCompareHandler creates a new CLI comparison handler
func NewCompareHandler(verbose bool) *CompareHandler {
	return &CompareHandler{
		spinner: newSpinner(),
		verbose: verbose,
	}
}

func (s *CompareHandler) RunStarted(runID string, taskDescription string, parameterNames []string, maxExamples int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Printf("\n%s%s=== Comparison: %s ===%s\n", ColorBold, ColorCyan, truncate(taskDescription, 70), ColorReset)
	fmt.Printf("%sRun ID: %s%s\n", ColorGray, runID, ColorReset)
	fmt.Printf("%sParameters: %s%s\n", ColorGray, strings.Join(parameterNames, ", "), ColorReset)
	fmt.Printf("%sMax examples: %d%s\n\n", ColorGray, maxExamples, ColorReset)
}

func (s *CompareHandler) RunCompleted(runID string, iterations int, significantFound int) {
	s.spinner.Stop()
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Printf("\n%s%s=== Comparison completed: %d iterations, %d significant findings ===%s\n",
		ColorBold, ColorGreen, iterations, significantFound, ColorReset)
}

func (s *CompareHandler) RunFailed(runID string, err error, completedIterations int) {
	s.spinner.Stop()
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Printf("\n%s%s[Comparison FAILED: %v]%s\n", ColorBold, ColorRed, err, ColorReset)
	fmt.Printf("%sCompleted %d iterations before failure%s\n", ColorGray, completedIterations, ColorReset)
	if completedIterations > 0 {
		fmt.Printf("%sPartial results are included in the report%s\n", ColorGray, ColorReset)
	}
}

func (s *CompareHandler) IterationStarted(iteration int, maxExamples int) {
	s.mu.Lock()
	s.iterResults = s.iterResults[:0]
	fmt.Printf("\n%s%s--- Iteration %d/%d ---%s\n", ColorBold, ColorCyan, iteration, maxExamples, ColorReset)
	s.mu.Unlock()
	s.spinner.Start("", "Generating input example...")
}

func (s *CompareHandler) InputGenerated(iteration int, description string, input map[string]any) {
	s.spinner.Stop()
	s.mu.Lock()
	defer s.mu.Unlock()
	if description != "" {
		fmt.Printf("%sInput: %s%s\n", ColorGray, description, ColorReset)
	}
	fmt.Printf("%s%s%s\n", ColorLightBrown, truncate(compactJSON(input), 120), ColorReset)
}

func (s *CompareHandler) InputGenerationFailed(iteration int, err error) {
	s.spinner.Stop()
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Printf("%sFAILURE: could not generate input example for iteration %d: %v%s\n", ColorRed, iteration, err, ColorReset)
	fmt.Printf("%sContinuing with next iteration...%s\n", ColorGray, ColorReset)
}

func (s *CompareHandler) ExecutionCompleted(iteration int, result sandbox.ExecutionResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.iterResults = append(s.iterResults, result)
	if s.verbose {
		fmt.Printf("  %s✓%s %s → %s\n", ColorGreen, ColorReset,
			compactJSON(result.Parameters), truncate(compactJSON(result.Output), 80))
	}
}

func (s *CompareHandler) ExecutionFailed(iteration int, result sandbox.ExecutionResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.iterResults = append(s.iterResults, result)
	if s.verbose {
		fmt.Printf("  %s✗%s %s → %s\n", ColorRed, ColorReset,
			compactJSON(result.Parameters), truncate(result.Error, 80))
	}
}

func (s *CompareHandler) IterationAnalyzed(iteration int, result analyze.ComparisonResult) {
	s.spinner.Stop()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reportFailures(iteration)
	s.printExecutionSummary(iteration)
	fmt.Printf("%sInconsistency score: %.3f%s\n", ColorGray, result.InconsistencyScore, ColorReset)
}

func (s *CompareHandler) SignificantFinding(iteration int, result analyze.ComparisonResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	divider := strings.Repeat("=", 60)
	fmt.Printf("\n%s%s%s%s\n", ColorBold, ColorYellow, divider, ColorReset)
	fmt.Printf("%s%sSIGNIFICANT DIFFERENCES FOUND - Iteration %d%s\n", ColorBold, ColorYellow, iteration, ColorReset)
	fmt.Printf("%s%s%s%s\n", ColorBold, ColorYellow, divider, ColorReset)

	fmt.Printf("Input Example: %s\n", truncate(compactJSON(result.InputExample), 120))
	fmt.Printf("Inconsistency Score: %.3f\n", result.InconsistencyScore)
	fmt.Printf("Significance: %s\n", result.Significance)

	fmt.Println("\nKey Differences:")
	for _, diff := range result.KeyDifferences {
		fmt.Printf("  • %s\n", diff)
	}

	fmt.Println("\nConsistency Areas:")
	for _, area := range result.ConsistencyAreas {
		fmt.Printf("  • %s\n", area)
	}

	fmt.Println("\nDetailed Analysis:")
	fmt.Printf("  %s\n", result.DetailedAnalysis)

	fmt.Println("\nWorkflow Results Summary:")
	for i, wr := range result.Results {
		status := "✓"
		color := ColorGreen
		if !wr.Success {
			status = "✗"
			color = ColorRed
		}
		fmt.Printf("  %s%s%s Config %d: %s -> %s\n", color, status, ColorReset,
			i+1, compactJSON(wr.Parameters), truncate(compactJSON(wr.Output), 100))
	}
	fmt.Printf("%s%s%s%s\n\n", ColorBold, ColorYellow, divider, ColorReset)
}

// reportFailures details each failed execution in the current iteration.
func (s *CompareHandler) reportFailures(iteration int) {
	var failed []sandbox.ExecutionResult
	for _, r := range s.iterResults {
		if !r.Success {
			failed = append(failed, r)
		}
	}
	if len(failed) == 0 {
		return
	}

	fmt.Printf("\n%sWORKFLOW FAILURES in iteration %d:%s\n", ColorRed, iteration, ColorReset)
	fmt.Printf("%s%d out of %d executions failed%s\n", ColorGray, len(failed), len(s.iterResults), ColorReset)

	for i, r := range failed {
		fmt.Printf("\n%sFailure #%d:%s\n", ColorRed, i+1, ColorReset)
		fmt.Printf("   Parameters: %s\n", compactJSON(r.Parameters))
		fmt.Printf("   Input: %s\n", truncate(compactJSON(r.Input), 120))
		fmt.Printf("   Error: %s\n", r.Error)
		fmt.Printf("   Execution Time: %.3fs\n", r.ExecutionTime)

		if s.verbose && r.GeneratedCode != "" {
			fmt.Println("   Generated Code:")
			lines := strings.Split(r.GeneratedCode, "\n")
			shown := lines
			if len(lines) > 5 {
				shown = lines[:5]
			}
			for _, line := range shown {
				fmt.Printf("      %s\n", line)
			}
			if len(lines) > 5 {
				fmt.Printf("      ... (%d more lines)\n", len(lines)-5)
			}
		}
	}
	fmt.Printf("\n%s%d executions succeeded%s\n", ColorGreen, len(s.iterResults)-len(failed), ColorReset)
}

// printExecutionSummary shows totals, timing and sample outputs for the
// current iteration.
func (s *CompareHandler) printExecutionSummary(iteration int) {
	var successful []sandbox.ExecutionResult
	var totalTime float64
	for _, r := range s.iterResults {
		totalTime += r.ExecutionTime
		if r.Success {
			successful = append(successful, r)
		}
	}

	fmt.Printf("\n%sEXECUTION SUMMARY - Iteration %d:%s\n", ColorCyan, iteration, ColorReset)
	fmt.Printf("   Total Executions: %d\n", len(s.iterResults))
	fmt.Printf("   %sSuccessful: %d%s\n", ColorGreen, len(successful), ColorReset)
	fmt.Printf("   %sFailed: %d%s\n", ColorRed, len(s.iterResults)-len(successful), ColorReset)

	if len(s.iterResults) > 0 {
		fmt.Printf("   Average Execution Time: %.3fs\n", totalTime/float64(len(s.iterResults)))
	}

	if len(successful) > 0 {
		fmt.Println("   Sample Successful Results:")
		for i, r := range successful {
			if i >= 3 {
				break
			}
			fmt.Printf("      %d. %s → %s\n", i+1, compactJSON(r.Parameters), truncate(compactJSON(r.Output), 80))
		}
	}
}

// truncate shortens a string to max length, adding ellipsis if needed
func truncate(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

// compactJSON renders a value as single-line JSON, falling back to %v.
func compactJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

// spinner handles the loading animation
type spinner struct {
	frames  []string
	stop    chan struct{}
	stopped chan struct{}
	mu      sync.Mutex
	running bool
}

func newSpinner() *spinner {
	return &spinner{
		frames:  []string{"◐", "◓", "◑", "◒"},
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

func (s *spinner) Start(prefix string, message string) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stop = make(chan struct{})
	s.stopped = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer close(s.stopped)
		i := 0
		for {
			select {
			case <-s.stop:
				fmt.Print("\r\033[K") // Clear line
				return
			default:
				if prefix != "" {
					fmt.Printf("\r%s %s%s%s %s", prefix, ColorOrange, s.frames[i%len(s.frames)], ColorReset, message)
				} else {
					fmt.Printf("\r%s%s%s %s", ColorGray, s.frames[i%len(s.frames)], ColorReset, message)
				}
				i++
				time.Sleep(80 * time.Millisecond)
			}
		}
	}()
}

func (s *spinner) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	close(s.stop)
	<-s.stopped
}
