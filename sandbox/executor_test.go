package sandbox_test

import (
	"context"
	"fmt"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"gridprobe/config"
	"gridprobe/sandbox"
	"gridprobe/synth"
)

// fixedSynthesizer returns a canned snippet regardless of template or
// bindings, or fails with err when set.
type fixedSynthesizer struct {
	code string
	err  error
}

func (f fixedSynthesizer) Synthesize(context.Context, string, map[string]any, map[string]any) (string, error) {
	return f.code, f.err
}

// scriptedSynthesizer returns a different snippet per call.
type scriptedSynthesizer struct {
	codes []string
	calls int
}

func (s *scriptedSynthesizer) Synthesize(context.Context, string, map[string]any, map[string]any) (string, error) {
	code := s.codes[s.calls]
	if s.calls < len(s.codes)-1 {
		s.calls++
	}
	return code, nil
}

func newExecutor(code string, timeout time.Duration) *sandbox.Executor {
	return sandbox.NewExecutor(fixedSynthesizer{code: code}, "unused", timeout, nil)
}

var _ = Describe("Executor", func() {
	var (
		ctx    context.Context
		input  map[string]any
		params map[string]any
	)

	BeforeEach(func() {
		ctx = context.Background()
		input = map[string]any{"question": "what is Go?"}
		params = map[string]any{"provider": "tavily"}
	})

	It("runs a snippet and captures the result variable", func() {
		exec := newExecutor(`result := 2 + 3`, 5*time.Second)

		res := exec.Execute(ctx, input, params)
		Expect(res.Success).To(BeTrue())
		Expect(res.Error).To(BeEmpty())
		Expect(res.Output).To(Equal(5))
		Expect(res.ID).NotTo(BeEmpty())
		Expect(res.Input).To(Equal(input))
		Expect(res.Parameters).To(Equal(params))
		Expect(res.ExecutionTime).To(BeNumerically(">=", 0))
		Expect(res.GeneratedCode).To(Equal(`result := 2 + 3`))
	})

	It("allows whitelisted imports", func() {
		exec := newExecutor("import \"strings\"\nresult := strings.ToUpper(\"go\")", 5*time.Second)

		res := exec.Execute(ctx, input, params)
		Expect(res.Success).To(BeTrue())
		Expect(res.Output).To(Equal("GO"))
	})

	It("runs snippets that group imports above statements", func() {
		code := "import (\n\t\"sort\"\n\t\"strings\"\n)\nwords := []string{\"b\", \"a\"}\nsort.Strings(words)\nresult := strings.Join(words, \",\")"
		exec := newExecutor(code, 5*time.Second)

		res := exec.Execute(ctx, input, params)
		Expect(res.Success).To(BeTrue())
		Expect(res.Output).To(Equal("a,b"))
	})

	It("hoists helper functions declared after the statements that call them", func() {
		code := "import \"strings\"\nquery := \"go\"\nresult := shout(query)\n\nfunc shout(s string) string {\n\treturn strings.ToUpper(s) + \"!\"\n}"
		exec := newExecutor(code, 5*time.Second)

		res := exec.Execute(ctx, input, params)
		Expect(res.Success).To(BeTrue())
		Expect(res.Output).To(Equal("GO!"))
	})

	It("marks synthesis failures", func() {
		exec := sandbox.NewExecutor(
			fixedSynthesizer{err: fmt.Errorf("template mismatch")},
			"unused", 5*time.Second, nil)

		res := exec.Execute(ctx, input, params)
		Expect(res.Success).To(BeFalse())
		Expect(res.Error).To(HavePrefix("synthesis:"))
		Expect(res.Error).To(ContainSubstring("template mismatch"))
		Expect(res.GeneratedCode).To(BeEmpty())
	})

	It("rejects imports outside the whitelist before running", func() {
		exec := newExecutor("import \"os\"\nresult := os.Getpid()", 5*time.Second)

		res := exec.Execute(ctx, input, params)
		Expect(res.Success).To(BeFalse())
		Expect(res.Error).To(HavePrefix("execution:"))
		Expect(res.Error).To(ContainSubstring(`"os" is not permitted`))
	})

	It("rejects whitelisted-plus-forbidden grouped imports", func() {
		exec := newExecutor("import (\n\t\"strings\"\n\t\"net/http\"\n)\nresult := 1", 5*time.Second)

		res := exec.Execute(ctx, input, params)
		Expect(res.Success).To(BeFalse())
		Expect(res.Error).To(ContainSubstring(`"net/http" is not permitted`))
	})

	It("marks evaluation errors as execution failures", func() {
		exec := newExecutor(`result := undefinedFn()`, 5*time.Second)

		res := exec.Execute(ctx, input, params)
		Expect(res.Success).To(BeFalse())
		Expect(res.Error).To(HavePrefix("execution:"))
		Expect(res.IsTimeout()).To(BeFalse())
	})

	It("fails when the snippet never assigns result", func() {
		exec := newExecutor(`answer := 42`, 5*time.Second)

		res := exec.Execute(ctx, input, params)
		Expect(res.Success).To(BeFalse())
		Expect(res.Error).To(ContainSubstring("no result produced"))
	})

	It("abandons executions that exceed the deadline", func() {
		exec := newExecutor("import \"time\"\nfor {\n\ttime.Sleep(10 * time.Millisecond)\n}\nresult := 1", 100*time.Millisecond)

		res := exec.Execute(ctx, input, params)
		Expect(res.Success).To(BeFalse())
		Expect(res.IsTimeout()).To(BeTrue())
		Expect(res.Error).To(HavePrefix("timeout:"))
		Expect(res.ExecutionTime).To(BeNumerically("<", 2.0))
	})

	It("does not let one execution's deadline leak into the next", func() {
		slow := "import \"time\"\nfor {\n\ttime.Sleep(10 * time.Millisecond)\n}\nresult := 1"
		fast := `result := "ok"`
		exec := sandbox.NewExecutor(&scriptedSynthesizer{codes: []string{slow, fast}},
			"unused", 100*time.Millisecond, nil)

		Expect(exec.Execute(ctx, input, params).IsTimeout()).To(BeTrue())

		res := exec.Execute(ctx, input, params)
		Expect(res.Success).To(BeTrue())
		Expect(res.Output).To(Equal("ok"))
	})

	It("unwraps a response envelope from map outputs", func() {
		exec := newExecutor(`result := map[string]any{"response": "payload", "meta": 7}`, 5*time.Second)

		res := exec.Execute(ctx, input, params)
		Expect(res.Success).To(BeTrue())
		Expect(res.Output).To(Equal("payload"))
	})

	It("executes the sample configuration's call example with its defaults", func() {
		cfg := config.SampleConfig()
		exec := sandbox.NewExecutor(synth.NewTemplateSynthesizer(), cfg.CallExample, 5*time.Second, nil)

		defaults := map[string]any{}
		for _, p := range cfg.Parameters {
			defaults[p.Name] = p.Default
		}

		res := exec.Execute(ctx, map[string]any{"question": "what is Go?"}, defaults)
		Expect(res.Error).To(BeEmpty())
		Expect(res.Success).To(BeTrue())
		Expect(res.Output).To(HaveKeyWithValue("tool", "default"))
		Expect(res.Output).To(HaveKeyWithValue("wait_secs", 30))
	})

	It("leaves maps without a response field intact", func() {
		exec := newExecutor(`result := map[string]any{"answer": "x"}`, 5*time.Second)

		res := exec.Execute(ctx, input, params)
		Expect(res.Success).To(BeTrue())
		Expect(res.Output).To(Equal(map[string]any{"answer": "x"}))
	})
})
