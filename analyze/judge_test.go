package analyze_test

import (
	"context"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"gridprobe/analyze"
	"gridprobe/llm"
	"gridprobe/sandbox"
)

// scriptedProvider returns canned responses in order and records requests.
type scriptedProvider struct {
	responses []*llm.ChatResponse
	err       error
	requests  []*llm.ChatRequest
}

func (p *scriptedProvider) Chat(_ context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	p.requests = append(p.requests, req)
	if p.err != nil {
		return nil, p.err
	}
	resp := p.responses[0]
	if len(p.responses) > 1 {
		p.responses = p.responses[1:]
	}
	return resp, nil
}

var _ = Describe("LLMJudge", func() {
	var (
		ctx        context.Context
		executions []sandbox.ExecutionResult
	)

	BeforeEach(func() {
		ctx = context.Background()
		executions = []sandbox.ExecutionResult{
			{Parameters: map[string]any{"p": "a"}, Output: "Paris", Success: true},
			{Parameters: map[string]any{"p": "b"}, Output: "Lyon", Success: true},
		}
	})

	It("parses a well-formed verdict", func() {
		provider := &scriptedProvider{responses: []*llm.ChatResponse{{
			Content: `{"inconsistency_score": 0.8,
				"factual_inconsistencies": ["capitals disagree"],
				"consistent_facts": ["both are French cities"],
				"significance_assessment": "major",
				"detailed_analysis": "the answers contradict"}`,
		}}}
		judge := analyze.NewLLMJudge(provider, "gpt-4", 0.2)

		j, err := judge.Assess(ctx, map[string]any{"question": "capital of France"}, executions)
		Expect(err).NotTo(HaveOccurred())
		Expect(j.InconsistencyScore).To(Equal(0.8))
		Expect(j.FactualInconsistencies).To(Equal([]string{"capitals disagree"}))
		Expect(j.ConsistentFacts).To(Equal([]string{"both are French cities"}))
		Expect(j.Significance).To(Equal("major"))
	})

	It("extracts the JSON object from surrounding prose", func() {
		provider := &scriptedProvider{responses: []*llm.ChatResponse{{
			Content: "Here is my analysis:\n{\"inconsistency_score\": 0.1}\nHope that helps.",
		}}}
		judge := analyze.NewLLMJudge(provider, "gpt-4", 0)

		j, err := judge.Assess(ctx, nil, executions)
		Expect(err).NotTo(HaveOccurred())
		Expect(j.InconsistencyScore).To(Equal(0.1))
	})

	It("accepts a quoted score", func() {
		provider := &scriptedProvider{responses: []*llm.ChatResponse{{
			Content: `{"inconsistency_score": "0.4"}`,
		}}}
		judge := analyze.NewLLMJudge(provider, "gpt-4", 0)

		j, err := judge.Assess(ctx, nil, executions)
		Expect(err).NotTo(HaveOccurred())
		Expect(j.InconsistencyScore).To(Equal(0.4))
	})

	It("treats a non-numeric score as zero", func() {
		provider := &scriptedProvider{responses: []*llm.ChatResponse{{
			Content: `{"inconsistency_score": "severe"}`,
		}}}
		judge := analyze.NewLLMJudge(provider, "gpt-4", 0)

		j, err := judge.Assess(ctx, nil, executions)
		Expect(err).NotTo(HaveOccurred())
		Expect(j.InconsistencyScore).To(BeZero())
	})

	It("errors when the reply carries no JSON object", func() {
		provider := &scriptedProvider{responses: []*llm.ChatResponse{{
			Content: "I cannot analyze these results.",
		}}}
		judge := analyze.NewLLMJudge(provider, "gpt-4", 0)

		_, err := judge.Assess(ctx, nil, executions)
		Expect(err).To(MatchError(ContainSubstring("no JSON object")))
	})

	It("wraps provider failures", func() {
		provider := &scriptedProvider{err: fmt.Errorf("rate limited")}
		judge := analyze.NewLLMJudge(provider, "gpt-4", 0)

		_, err := judge.Assess(ctx, nil, executions)
		Expect(err).To(MatchError(ContainSubstring("judge call")))
	})

	It("raises a zero temperature for stable verdicts", func() {
		provider := &scriptedProvider{responses: []*llm.ChatResponse{{
			Content: `{"inconsistency_score": 0}`,
		}}}
		judge := analyze.NewLLMJudge(provider, "gpt-4", 0)

		_, err := judge.Assess(ctx, nil, executions)
		Expect(err).NotTo(HaveOccurred())
		Expect(provider.requests).To(HaveLen(1))
		Expect(provider.requests[0].Temperature).To(Equal(0.1))
		Expect(provider.requests[0].Model).To(Equal("gpt-4"))
	})

	It("describes each execution to the model", func() {
		provider := &scriptedProvider{responses: []*llm.ChatResponse{{
			Content: `{"inconsistency_score": 0}`,
		}}}
		judge := analyze.NewLLMJudge(provider, "gpt-4", 0.2)

		_, err := judge.Assess(ctx, map[string]any{"question": "capital of France"}, executions)
		Expect(err).NotTo(HaveOccurred())

		prompt := provider.requests[0].Messages[0].Content
		Expect(prompt).To(ContainSubstring("FACTUAL INCONSISTENCIES"))
		Expect(prompt).To(ContainSubstring("capital of France"))
		Expect(prompt).To(ContainSubstring("Paris"))
		Expect(prompt).To(ContainSubstring("Lyon"))
		Expect(prompt).To(ContainSubstring(`"result_id": 1`))
		Expect(prompt).To(ContainSubstring(`"result_id": 2`))
	})
})
