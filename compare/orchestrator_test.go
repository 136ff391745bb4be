package compare_test

import (
	"context"
	"errors"
	"fmt"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"gridprobe/analyze"
	"gridprobe/compare"
	"gridprobe/sandbox"
	"gridprobe/streamers"
)

// fakeGenerator yields scripted examples, failing on iterations listed in
// failOn. It records the prior inputs seen per call.
type fakeGenerator struct {
	failOn map[int]bool
	calls  int
	priors [][]map[string]any
}

func (g *fakeGenerator) Generate(_ context.Context, prior []map[string]any) (compare.InputExample, error) {
	g.calls++
	g.priors = append(g.priors, prior)
	if g.failOn[g.calls] {
		return compare.InputExample{}, fmt.Errorf("generation: model returned no examples")
	}
	return compare.InputExample{
		Description: fmt.Sprintf("example %d", g.calls),
		Input:       map[string]any{"question": fmt.Sprintf("q%d", g.calls)},
	}, nil
}

// fakeExecutor succeeds with an output computed from the parameters.
type fakeExecutor struct {
	output func(input, params map[string]any) any
	calls  int
}

func (e *fakeExecutor) Execute(_ context.Context, input, params map[string]any) sandbox.ExecutionResult {
	e.calls++
	return sandbox.ExecutionResult{
		ID:         fmt.Sprintf("exec-%d", e.calls),
		Input:      input,
		Parameters: params,
		Output:     e.output(input, params),
		Success:    true,
	}
}

// recordingHandler notes the order of run events.
type recordingHandler struct {
	streamers.NopCompareHandler
	mu     sync.Mutex
	events []string
}

func (h *recordingHandler) record(event string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, event)
}

func (h *recordingHandler) recorded() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.events...)
}

func (h *recordingHandler) RunStarted(string, string, []string, int) { h.record("run_started") }
func (h *recordingHandler) RunCompleted(string, int, int)            { h.record("run_completed") }
func (h *recordingHandler) RunFailed(string, error, int)             { h.record("run_failed") }
func (h *recordingHandler) IterationStarted(int, int)                { h.record("iteration_started") }
func (h *recordingHandler) InputGenerationFailed(int, error)         { h.record("generation_failed") }
func (h *recordingHandler) IterationAnalyzed(int, analyze.ComparisonResult) {
	h.record("iteration_analyzed")
}
func (h *recordingHandler) SignificantFinding(int, analyze.ComparisonResult) {
	h.record("significant_finding")
}

func countEvents(events []string, name string) int {
	n := 0
	for _, e := range events {
		if e == name {
			n++
		}
	}
	return n
}

var _ = Describe("Orchestrator", func() {
	var (
		ctx      context.Context
		handler  *recordingHandler
		analyzer *analyze.Analyzer
	)

	// identical makes every execution produce the same output; divergent
	// makes the output follow the provider parameter.
	identical := func(_, _ map[string]any) any { return "same" }
	divergent := func(_, params map[string]any) any { return params["provider"] }

	BeforeEach(func() {
		ctx = context.Background()
		handler = &recordingHandler{}
		analyzer = analyze.NewAnalyzer(nil, 0.3, nil)
	})

	It("runs the full iteration budget when nothing stops it", func() {
		cfg := testConfig()
		cfg.MaxExamples = 3
		cfg.TargetFindings = 3
		gen := &fakeGenerator{}
		exec := &fakeExecutor{output: identical}

		orch := compare.NewOrchestrator(cfg, gen, exec, analyzer, handler, nil, nil)
		report, err := orch.Run(ctx)
		Expect(err).NotTo(HaveOccurred())

		Expect(report.ExecutionSummary.TotalIterations).To(Equal(3))
		Expect(report.ExecutionSummary.SignificantDifferencesFound).To(BeZero())
		Expect(gen.calls).To(Equal(3))
		// Two parameter combinations per iteration.
		Expect(exec.calls).To(Equal(6))

		events := handler.recorded()
		Expect(events[0]).To(Equal("run_started"))
		Expect(events[len(events)-1]).To(Equal("run_completed"))
		Expect(countEvents(events, "iteration_started")).To(Equal(3))
		Expect(countEvents(events, "significant_finding")).To(BeZero())
	})

	It("passes prior inputs to the generator", func() {
		cfg := testConfig()
		cfg.MaxExamples = 2
		gen := &fakeGenerator{}

		orch := compare.NewOrchestrator(cfg, gen, &fakeExecutor{output: identical}, analyzer, handler, nil, nil)
		_, err := orch.Run(ctx)
		Expect(err).NotTo(HaveOccurred())

		Expect(gen.priors).To(HaveLen(2))
		Expect(gen.priors[0]).To(BeEmpty())
		Expect(gen.priors[1]).To(Equal([]map[string]any{{"question": "q1"}}))
	})

	It("stops once the finding target is reached", func() {
		cfg := testConfig()
		cfg.MaxExamples = 5
		cfg.TargetFindings = 1
		gen := &fakeGenerator{}

		orch := compare.NewOrchestrator(cfg, gen, &fakeExecutor{output: divergent}, analyzer, handler, nil, nil)
		report, err := orch.Run(ctx)
		Expect(err).NotTo(HaveOccurred())

		Expect(report.ExecutionSummary.TotalIterations).To(Equal(1))
		Expect(report.ExecutionSummary.SignificantDifferencesFound).To(Equal(1))
		Expect(gen.calls).To(Equal(1))
		Expect(countEvents(handler.recorded(), "significant_finding")).To(Equal(1))
	})

	It("stops before the first iteration when the time budget is zero", func() {
		cfg := testConfig()
		cfg.TimeoutSeconds = 0
		gen := &fakeGenerator{}

		orch := compare.NewOrchestrator(cfg, gen, &fakeExecutor{output: identical}, analyzer, handler, nil, nil)
		report, err := orch.Run(ctx)
		Expect(err).NotTo(HaveOccurred())

		Expect(report.ExecutionSummary.TotalIterations).To(BeZero())
		Expect(gen.calls).To(BeZero())
		Expect(handler.recorded()).To(Equal([]string{"run_started", "run_completed"}))
	})

	It("skips an iteration whose generation failed but keeps its budget slot", func() {
		cfg := testConfig()
		cfg.MaxExamples = 2
		gen := &fakeGenerator{failOn: map[int]bool{1: true}}
		exec := &fakeExecutor{output: identical}

		orch := compare.NewOrchestrator(cfg, gen, exec, analyzer, handler, nil, nil)
		report, err := orch.Run(ctx)
		Expect(err).NotTo(HaveOccurred())

		Expect(gen.calls).To(Equal(2))
		Expect(report.ExecutionSummary.TotalIterations).To(Equal(1))

		events := handler.recorded()
		Expect(countEvents(events, "generation_failed")).To(Equal(1))
		Expect(countEvents(events, "iteration_analyzed")).To(Equal(1))
		Expect(events[len(events)-1]).To(Equal("run_completed"))
	})

	It("fails with a partial report when the context is canceled", func() {
		cfg := testConfig()
		canceled, cancel := context.WithCancel(context.Background())
		cancel()

		orch := compare.NewOrchestrator(cfg, &fakeGenerator{}, &fakeExecutor{output: identical}, analyzer, handler, nil, nil)
		report, err := orch.Run(canceled)

		Expect(err).To(MatchError(context.Canceled))
		var runErr *compare.RunError
		Expect(errors.As(err, &runErr)).To(BeTrue())
		Expect(runErr.Report).NotTo(BeNil())
		Expect(report).NotTo(BeNil())
		Expect(report.ExecutionSummary.TotalIterations).To(BeZero())
		Expect(handler.recorded()).To(ContainElement("run_failed"))
	})

	It("rejects a configuration whose grid cannot expand", func() {
		cfg := testConfig()
		cfg.Parameters = nil

		orch := compare.NewOrchestrator(cfg, &fakeGenerator{}, &fakeExecutor{output: identical}, analyzer, handler, nil, nil)
		report, err := orch.Run(ctx)

		Expect(err).To(MatchError(ContainSubstring("no parameters")))
		Expect(report).To(BeNil())
		Expect(handler.recorded()).To(BeEmpty())
	})
})
