package config

import (
	"encoding/json"
	"fmt"
	"os"
)

const sampleCallExample = `// Workflow call example. The harness substitutes input fields and
// parameter values before each execution, then reads the variable
// named "result".

import (
	"fmt"
	"strings"
)

func runWorkflow(question string, toolOverride string, timeout int) map[string]any {
	answer := fmt.Sprintf("answered %q via %s", strings.TrimSpace(question), toolOverride)
	return map[string]any{
		"answer":    answer,
		"tool":      toolOverride,
		"wait_secs": timeout,
	}
}

result := runWorkflow(question, tool_override, timeout)
`

// SampleConfig returns a fully populated configuration suitable for
// writing as a starting point.
func SampleConfig() *Config {
	cfg := newDefaultConfig()
	cfg.TaskDescription = "Describe what your workflow does here"
	cfg.CallExample = sampleCallExample
	cfg.Parameters = []ParameterSpec{
		{
			Name:        "tool_override",
			Description: "Tool override parameter for the workflow call",
			Options:     []any{"Tavily:Exa", "Google:Bing", "default"},
			Default:     "default",
		},
		{
			Name:        "timeout",
			Description: "Request timeout in seconds",
			Options:     []any{30, 60, 120},
			Default:     30,
		},
	}
	cfg.Preferences = Preferences{
		DiversityFocus:      "high",
		ComplexityLevel:     "medium",
		DomainSpecificHints: []string{"API questions", "search queries", "technical questions"},
		EdgeCases:           true,
		CustomInstructions:  "Generate diverse questions that would benefit from different tool configurations",
	}
	cfg.LLM.APIKey = "YOUR_API_KEY_HERE"
	return cfg
}

// WriteSample writes the sample configuration as JSON to path.
func WriteSample(path string) error {
	cfg := SampleConfig()

	out := cfg.ToJSON()
	out["llm_api_key"] = cfg.LLM.APIKey
	out["storage"] = map[string]any{
		"backend": cfg.Storage.Backend,
		"path":    cfg.Storage.Path,
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
