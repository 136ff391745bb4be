package synth_test

import (
	"context"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"gridprobe/synth"
)

var _ = Describe("TemplateSynthesizer", func() {
	var s *synth.TemplateSynthesizer

	BeforeEach(func() {
		s = synth.NewTemplateSynthesizer()
	})

	It("rejects an empty template", func() {
		_, err := s.Synthesize(context.Background(), "   \n", nil, nil)
		Expect(err).To(MatchError(ContainSubstring("empty call template")))
	})

	It("substitutes every placeholder syntax", func() {
		template := strings.Join([]string{
			`a := runWorkflow(question=question)`,
			`b := runWorkflow(question={})`,
			`c := runWorkflow("question")`,
			`d := runWorkflow('question')`,
			`e := runWorkflow({question})`,
			`f := runWorkflow("{question}")`,
			`g := runWorkflow(${question})`,
			`result := runWorkflow(%%question%%)`,
		}, "\n")

		code, err := s.Synthesize(context.Background(), template,
			map[string]any{"question": "what is Go?"}, nil)
		Expect(err).NotTo(HaveOccurred())

		Expect(code).NotTo(ContainSubstring("question=question"))
		Expect(code).NotTo(ContainSubstring("{question}"))
		Expect(code).NotTo(ContainSubstring("%%"))
		Expect(strings.Count(code, `runWorkflow("what is Go?")`)).To(Equal(8))
	})

	It("substitutes parameters before input values", func() {
		code, err := s.Synthesize(context.Background(),
			`result := search("query", provider=provider)`,
			map[string]any{"query": "capital of France"},
			map[string]any{"provider": "tavily"})
		Expect(err).NotTo(HaveOccurred())
		Expect(code).To(ContainSubstring(`search("capital of France", "tavily")`))
	})

	It("prepends a binding for every name so bare identifiers resolve", func() {
		code, err := s.Synthesize(context.Background(),
			"result := runWorkflow(query, provider)",
			map[string]any{"query": "hello"},
			map[string]any{"provider": "exa", "depth": float64(3)})
		Expect(err).NotTo(HaveOccurred())

		Expect(code).To(ContainSubstring(`query := "hello"`))
		Expect(code).To(ContainSubstring(`provider := "exa"`))
		Expect(code).To(ContainSubstring(`depth := 3`))

		// Bindings must appear before the call site.
		Expect(strings.Index(code, `query :=`)).To(BeNumerically("<",
			strings.Index(code, "runWorkflow")))
	})

	It("hoists import statements above the bindings", func() {
		template := "import \"strings\"\nresult := strings.ToUpper(query)"
		code, err := s.Synthesize(context.Background(), template,
			map[string]any{"query": "hi"}, nil)
		Expect(err).NotTo(HaveOccurred())

		importIdx := strings.Index(code, `import "strings"`)
		bindingIdx := strings.Index(code, `query := "hi"`)
		callIdx := strings.Index(code, "strings.ToUpper")
		Expect(importIdx).To(BeNumerically(">=", 0))
		Expect(importIdx).To(BeNumerically("<", bindingIdx))
		Expect(bindingIdx).To(BeNumerically("<", callIdx))
	})

	It("hoists grouped import blocks", func() {
		template := "import (\n\t\"fmt\"\n\t\"strings\"\n)\nresult := fmt.Sprint(strings.TrimSpace(q))"
		code, err := s.Synthesize(context.Background(), template,
			map[string]any{"q": " x "}, nil)
		Expect(err).NotTo(HaveOccurred())

		Expect(strings.Index(code, "import (")).To(BeNumerically("<",
			strings.Index(code, "q := ")))
		Expect(code).To(ContainSubstring("\t\"fmt\""))
	})

	Describe("value rendering", func() {
		render := func(v any) string {
			code, err := s.Synthesize(context.Background(), "result := v", map[string]any{"v": v}, nil)
			Expect(err).NotTo(HaveOccurred())
			line, _, found := strings.Cut(code, "\n")
			Expect(found).To(BeTrue())
			return strings.TrimPrefix(line, "v := ")
		}

		It("quotes strings", func() {
			Expect(render(`say "hi"`)).To(Equal(`"say \"hi\""`))
		})

		It("renders booleans and nil", func() {
			Expect(render(true)).To(Equal("true"))
			Expect(render(nil)).To(Equal("nil"))
		})

		It("renders integral float64 values without a fraction", func() {
			Expect(render(float64(42))).To(Equal("42"))
			Expect(render(2.5)).To(Equal("2.5"))
		})

		It("renders slices as []any literals", func() {
			Expect(render([]any{"a", float64(1)})).To(Equal(`[]any{"a", 1}`))
		})

		It("renders maps with sorted keys", func() {
			Expect(render(map[string]any{"b": float64(2), "a": "x"})).
				To(Equal(`map[string]any{"a": "x", "b": 2}`))
		})
	})
})

var _ = Describe("StripCodeFences", func() {
	It("removes surrounding fences and a language tag", func() {
		in := "```go\nresult := 1\n```"
		Expect(synth.StripCodeFences(in)).To(Equal("result := 1"))
	})

	It("removes a bare fence without a language tag", func() {
		in := "```\nresult := 1\n```"
		Expect(synth.StripCodeFences(in)).To(Equal("result := 1"))
	})

	It("strips a stray golang identifier line", func() {
		in := "golang\nresult := 1"
		Expect(synth.StripCodeFences(in)).To(Equal("result := 1"))
	})

	It("leaves unfenced content untouched", func() {
		Expect(synth.StripCodeFences("result := compute()")).To(Equal("result := compute()"))
	})
})
