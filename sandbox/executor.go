// Package sandbox executes synthesized workflow code inside a restricted
// Go interpreter.
//
// Interpretation replaces compilation on purpose: there is no build step to
// hang, no binary to crash, and no dependency resolution at execution time.
// Only whitelisted stdlib packages are importable and every execution runs
// under a cancellable deadline.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"gridprobe/synth"
)

// Error kind prefixes carried in ExecutionResult.Error.
const (
	ErrKindSynthesis = "synthesis"
	ErrKindExecution = "execution"
	ErrKindTimeout   = "timeout"
)

// ExecutionResult captures one workflow execution, successful or not.
// Success implies a non-nil Output; failure implies a non-empty Error of
// the form "kind: message".
type ExecutionResult struct {
	ID            string         `json:"id"`
	Input         map[string]any `json:"input_data"`
	Parameters    map[string]any `json:"parameters"`
	Output        any            `json:"output"`
	ExecutionTime float64        `json:"execution_time"`
	GeneratedCode string         `json:"generated_code,omitempty"`
	Error         string         `json:"error,omitempty"`
	Success       bool           `json:"success"`
}

// IsTimeout reports whether the execution failed on the deadline.
func (r ExecutionResult) IsTimeout() bool {
	return strings.HasPrefix(r.Error, ErrKindTimeout+":")
}

// Executor runs synthesized code sequentially. It is not safe for
// concurrent use; the orchestrator never shares one across goroutines.
type Executor struct {
	synthesizer synth.Synthesizer
	template    string
	timeout     time.Duration
	allowed     map[string]bool
	logger      hclog.Logger
}

// defaultAllowedImports is the stdlib whitelist. Filesystem, network,
// subprocess, and unsafe packages stay out.
func defaultAllowedImports() map[string]bool {
	return map[string]bool{
		"bytes":           true,
		"encoding/base64": true,
		"encoding/csv":    true,
		"encoding/json":   true,
		"errors":          true,
		"fmt":             true,
		"math":            true,
		"math/rand":       true,
		"regexp":          true,
		"sort":            true,
		"strconv":         true,
		"strings":         true,
		"time":            true,
		"unicode":         true,
		"unicode/utf8":    true,
	}
}

func NewExecutor(synthesizer synth.Synthesizer, template string, timeout time.Duration, logger hclog.Logger) *Executor {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Executor{
		synthesizer: synthesizer,
		template:    template,
		timeout:     timeout,
		allowed:     defaultAllowedImports(),
		logger:      logger.Named("sandbox"),
	}
}

// Execute synthesizes code for one input and parameter combination and
// runs it. It never panics and never returns later than the deadline plus
// bounded overhead; all failures land in the result's Error field.
func (e *Executor) Execute(ctx context.Context, input map[string]any, params map[string]any) ExecutionResult {
	start := time.Now()
	result := ExecutionResult{
		ID:         uuid.New().String(),
		Input:      input,
		Parameters: params,
	}

	code, err := e.synthesizer.Synthesize(ctx, e.template, input, params)
	if err != nil {
		result.ExecutionTime = time.Since(start).Seconds()
		result.Error = fmt.Sprintf("%s: %v", ErrKindSynthesis, err)
		return result
	}
	result.GeneratedCode = code

	if err := e.validateImports(code); err != nil {
		result.ExecutionTime = time.Since(start).Seconds()
		result.Error = fmt.Sprintf("%s: %v", ErrKindExecution, err)
		return result
	}

	e.logger.Debug("executing synthesized code", "params", fmt.Sprintf("%v", params))

	output, err := e.run(ctx, code)
	result.ExecutionTime = time.Since(start).Seconds()

	if err != nil {
		if errors.Is(err, errDeadline) {
			result.Error = fmt.Sprintf("%s: %v", ErrKindTimeout, err)
		} else {
			result.Error = fmt.Sprintf("%s: %v", ErrKindExecution, err)
		}
		return result
	}

	result.Output = output
	result.Success = true
	return result
}

// run evaluates the code in a fresh interpreter under this executor's
// per-execution deadline. The deadline is disarmed on every exit path, so
// no armed timer survives into the next execution.
func (e *Executor) run(parent context.Context, code string) (any, error) {
	ctx, cancel := context.WithTimeout(parent, e.timeout)
	defer cancel()

	type evalOutcome struct {
		output any
		err    error
	}
	done := make(chan evalOutcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- evalOutcome{err: fmt.Errorf("panic during evaluation: %v", r)}
			}
		}()

		i := interp.New(interp.Options{})
		if err := i.Use(stdlib.Symbols); err != nil {
			done <- evalOutcome{err: fmt.Errorf("load stdlib symbols: %w", err)}
			return
		}

		// yaegi parses a snippet that opens with an import or func
		// declaration in file mode and then rejects the top-level
		// statements that follow. Declarations and the statement body
		// are evaluated separately so each stays in a valid parse mode.
		decls, body := splitSegments(code)
		for _, decl := range decls {
			if _, err := i.Eval(decl); err != nil {
				done <- evalOutcome{err: err}
				return
			}
		}
		if strings.TrimSpace(body) != "" {
			if _, err := i.Eval(body); err != nil {
				done <- evalOutcome{err: err}
				return
			}
		}

		// The synthesized code stores its answer in 'result'.
		v, err := i.Eval("result")
		if err != nil {
			done <- evalOutcome{err: fmt.Errorf("no result produced: workflow did not assign 'result'")}
			return
		}
		if !v.IsValid() || v.Interface() == nil {
			done <- evalOutcome{err: fmt.Errorf("no result produced: 'result' is nil")}
			return
		}

		done <- evalOutcome{output: unwrapResponse(v.Interface())}
	}()

	select {
	case out := <-done:
		return out.output, out.err
	case <-ctx.Done():
		// The interpreter goroutine cannot be preempted; it is abandoned
		// and the orchestrator moves on.
		return nil, fmt.Errorf("execution timed out after %s: %w", e.timeout, errDeadline)
	}
}

var errDeadline = errors.New("deadline exceeded")

// splitSegments partitions script-style code into top-level declarations
// (imports and helper functions) and the remaining statement body.
// Declarations are recognized at column zero only; indented closures and
// block contents stay with the body.
func splitSegments(code string) (decls []string, body string) {
	var bodyLines []string
	lines := strings.Split(code, "\n")

	for idx := 0; idx < len(lines); idx++ {
		line := lines[idx]
		switch {
		case strings.HasPrefix(line, "import ("):
			start := idx
			for idx < len(lines) && !strings.HasPrefix(strings.TrimSpace(lines[idx]), ")") {
				idx++
			}
			if idx == len(lines) {
				idx--
			}
			decls = append(decls, strings.Join(lines[start:idx+1], "\n"))
		case strings.HasPrefix(line, "import "):
			decls = append(decls, line)
		case strings.HasPrefix(line, "func "):
			start := idx
			depth := strings.Count(line, "{") - strings.Count(line, "}")
			for depth > 0 && idx+1 < len(lines) {
				idx++
				depth += strings.Count(lines[idx], "{") - strings.Count(lines[idx], "}")
			}
			decls = append(decls, strings.Join(lines[start:idx+1], "\n"))
		default:
			bodyLines = append(bodyLines, line)
		}
	}
	return decls, strings.Join(bodyLines, "\n")
}

// unwrapResponse lifts a "response" field out of map outputs so judged
// outputs compare on payloads rather than envelopes.
func unwrapResponse(output any) any {
	if m, ok := output.(map[string]any); ok {
		if resp, ok := m["response"]; ok {
			return resp
		}
	}
	return output
}

// validateImports rejects code importing anything off the whitelist.
func (e *Executor) validateImports(code string) error {
	var imports []string
	inBlock := false

	for _, line := range strings.Split(code, "\n") {
		trimmed := strings.TrimSpace(line)

		if inBlock {
			if strings.HasPrefix(trimmed, ")") {
				inBlock = false
				continue
			}
			if path := importPath(trimmed); path != "" {
				imports = append(imports, path)
			}
			continue
		}

		if strings.HasPrefix(trimmed, "import (") {
			inBlock = true
			continue
		}
		if strings.HasPrefix(trimmed, "import ") {
			if path := importPath(strings.TrimPrefix(trimmed, "import ")); path != "" {
				imports = append(imports, path)
			}
		}
	}

	for _, imp := range imports {
		if !e.allowed[imp] {
			return fmt.Errorf("import %q is not permitted in sandboxed code", imp)
		}
	}
	return nil
}

// importPath extracts the quoted path from an import line, tolerating
// aliased imports.
func importPath(line string) string {
	start := strings.Index(line, `"`)
	if start == -1 {
		return ""
	}
	end := strings.Index(line[start+1:], `"`)
	if end == -1 {
		return ""
	}
	return line[start+1 : start+1+end]
}
