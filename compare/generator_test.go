package compare_test

import (
	"context"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"gridprobe/compare"
	"gridprobe/llm"
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

var _ = Describe("LLMInputGenerator", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	newGenerator := func(provider llm.Provider) *compare.LLMInputGenerator {
		return compare.NewLLMInputGenerator(provider, testConfig(), nil)
	}

	It("returns the top example from a bare JSON array", func() {
		provider := &scriptedProvider{responses: []*llm.ChatResponse{{
			Content: `[{"description": "multi-hop date question", "input": {"question": "when?"}},
				{"description": "second", "input": {"question": "where?"}}]`,
		}}}

		example, err := newGenerator(provider).Generate(ctx, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(example.Description).To(Equal("multi-hop date question"))
		Expect(example.Input).To(Equal(map[string]any{"question": "when?"}))
	})

	It("accepts an examples envelope with surrounding prose", func() {
		provider := &scriptedProvider{responses: []*llm.ChatResponse{{
			Content: "Sure, here you go:\n" +
				"{\"examples\": [{\"description\": \"d\", \"input\": {\"question\": \"q\"}}]}\n" +
				"Let me know if you need more.",
		}}}

		example, err := newGenerator(provider).Generate(ctx, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(example.Description).To(Equal("d"))
	})

	It("fails on an empty response", func() {
		provider := &scriptedProvider{responses: []*llm.ChatResponse{{Content: "  \n"}}}

		_, err := newGenerator(provider).Generate(ctx, nil)
		Expect(err).To(MatchError(ContainSubstring("generation:")))
		Expect(err).To(MatchError(ContainSubstring("empty response")))
	})

	It("fails when the response is not JSON", func() {
		provider := &scriptedProvider{responses: []*llm.ChatResponse{{
			Content: "I could not think of any examples.",
		}}}

		_, err := newGenerator(provider).Generate(ctx, nil)
		Expect(err).To(MatchError(ContainSubstring("not valid JSON")))
	})

	It("fails on an empty examples array", func() {
		provider := &scriptedProvider{responses: []*llm.ChatResponse{{Content: `[]`}}}

		_, err := newGenerator(provider).Generate(ctx, nil)
		Expect(err).To(MatchError(ContainSubstring("no examples")))
	})

	It("wraps provider failures", func() {
		provider := &scriptedProvider{err: fmt.Errorf("quota exceeded")}

		_, err := newGenerator(provider).Generate(ctx, nil)
		Expect(err).To(MatchError(ContainSubstring("generation:")))
		Expect(err).To(MatchError(ContainSubstring("quota exceeded")))
	})

	It("defaults the sampling temperature when unset", func() {
		provider := &scriptedProvider{responses: []*llm.ChatResponse{{
			Content: `[{"description": "d", "input": {"question": "q"}}]`,
		}}}

		_, err := newGenerator(provider).Generate(ctx, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(provider.requests).To(HaveLen(1))
		Expect(provider.requests[0].Temperature).To(Equal(0.7))
		Expect(provider.requests[0].Model).To(Equal("gpt-4o"))
	})

	It("describes the workflow and parameters in the prompt", func() {
		provider := &scriptedProvider{responses: []*llm.ChatResponse{{
			Content: `[{"description": "d", "input": {"question": "q"}}]`,
		}}}
		cfg := testConfig()
		cfg.Preferences.DomainSpecificHints = []string{"history", "finance"}
		cfg.Preferences.CustomInstructions = "prefer numeric answers"
		gen := compare.NewLLMInputGenerator(provider, cfg, nil)

		_, err := gen.Generate(ctx, nil)
		Expect(err).NotTo(HaveOccurred())

		prompt := provider.requests[0].Messages[0].Content
		Expect(prompt).To(ContainSubstring(cfg.TaskDescription))
		Expect(prompt).To(ContainSubstring(cfg.CallExample))
		Expect(prompt).To(ContainSubstring(`"provider"`))
		Expect(prompt).To(ContainSubstring("Domain Hints: history, finance"))
		Expect(prompt).To(ContainSubstring("prefer numeric answers"))
		Expect(prompt).NotTo(ContainSubstring("Here are the existing examples"))
	})

	It("includes prior examples so the model avoids duplicates", func() {
		provider := &scriptedProvider{responses: []*llm.ChatResponse{{
			Content: `[{"description": "d", "input": {"question": "q"}}]`,
		}}}

		_, err := newGenerator(provider).Generate(ctx, []map[string]any{
			{"question": "who won the 1998 world cup?"},
		})
		Expect(err).NotTo(HaveOccurred())

		prompt := provider.requests[0].Messages[0].Content
		Expect(prompt).To(ContainSubstring("avoid duplications"))
		Expect(prompt).To(ContainSubstring("1998 world cup"))
	})
})
