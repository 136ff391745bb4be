// Package synth turns a workflow call template into runnable code by
// substituting a concrete input example and one parameter combination.
package synth

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Synthesizer produces executable code from the call template. The
// deterministic template synthesizer is the default; an LLM-backed one can
// be swapped in when substitution alone cannot express the call.
type Synthesizer interface {
	Synthesize(ctx context.Context, template string, input map[string]any, params map[string]any) (string, error)
}

// TemplateSynthesizer rewrites the template by direct placeholder
// substitution and prepends variable bindings so bare identifiers resolve.
type TemplateSynthesizer struct{}

func NewTemplateSynthesizer() *TemplateSynthesizer {
	return &TemplateSynthesizer{}
}

func (s *TemplateSynthesizer) Synthesize(_ context.Context, template string, input map[string]any, params map[string]any) (string, error) {
	if strings.TrimSpace(template) == "" {
		return "", fmt.Errorf("empty call template")
	}

	code := template
	code = substituteAll(code, params)
	code = substituteAll(code, input)

	bindings := buildBindings(input, params)

	return assemble(bindings, code), nil
}

// placeholderPatterns returns every placeholder syntax recognized for a
// name, longest first so compound forms win over their substrings.
func placeholderPatterns(name string) []string {
	patterns := []string{
		name + "=" + name,
		name + "={}",
		`"` + name + `"`,
		"'" + name + "'",
		"{" + name + "}",
		`"{` + name + `}"`,
		"${" + name + "}",
		"%%" + name + "%%",
	}
	sort.Slice(patterns, func(i, j int) bool {
		return len(patterns[i]) > len(patterns[j])
	})
	return patterns
}

func substituteAll(code string, values map[string]any) string {
	// Deterministic order keeps synthesized code stable across runs.
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		replacement := goLiteral(values[name])
		for _, pattern := range placeholderPatterns(name) {
			code = strings.ReplaceAll(code, pattern, replacement)
		}
	}
	return code
}

// buildBindings renders one assignment per name so the template can also
// reference values as bare identifiers.
func buildBindings(input, params map[string]any) []string {
	var bindings []string
	appendSorted := func(values map[string]any) {
		names := make([]string, 0, len(values))
		for name := range values {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			bindings = append(bindings, fmt.Sprintf("%s := %s", name, goLiteral(values[name])))
		}
	}
	appendSorted(input)
	appendSorted(params)
	return bindings
}

// assemble hoists the template's import statements above the bindings so
// the combined source stays well formed.
func assemble(bindings []string, code string) string {
	imports, rest := splitImports(code)

	var b strings.Builder
	if imports != "" {
		b.WriteString(imports)
		b.WriteString("\n")
	}
	for _, binding := range bindings {
		b.WriteString(binding)
		b.WriteString("\n")
	}
	if len(bindings) > 0 {
		b.WriteString("\n")
	}
	b.WriteString(rest)
	return b.String()
}

// splitImports separates leading import declarations (single or grouped)
// from the remainder of the snippet.
func splitImports(code string) (imports string, rest string) {
	lines := strings.Split(code, "\n")
	var importLines, restLines []string
	inBlock := false

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case inBlock:
			importLines = append(importLines, line)
			if strings.HasPrefix(trimmed, ")") {
				inBlock = false
			}
		case strings.HasPrefix(trimmed, "import ("):
			importLines = append(importLines, line)
			inBlock = true
		case strings.HasPrefix(trimmed, "import "):
			importLines = append(importLines, line)
		default:
			restLines = append(restLines, line)
		}
	}

	return strings.Join(importLines, "\n"), strings.Join(restLines, "\n")
}

// goLiteral renders a substitution value as Go source.
func goLiteral(v any) string {
	switch val := v.(type) {
	case nil:
		return "nil"
	case string:
		return strconv.Quote(val)
	case bool:
		return strconv.FormatBool(val)
	case float64:
		// JSON numbers arrive as float64; render integral values plainly.
		if val == float64(int64(val)) {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'g', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case []any:
		parts := make([]string, len(val))
		for i, el := range val {
			parts[i] = goLiteral(el)
		}
		return "[]any{" + strings.Join(parts, ", ") + "}"
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = strconv.Quote(k) + ": " + goLiteral(val[k])
		}
		return "map[string]any{" + strings.Join(parts, ", ") + "}"
	default:
		return fmt.Sprintf("%v", val)
	}
}
