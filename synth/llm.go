package synth

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"gridprobe/llm"
)

// LLMSynthesizer asks the model to instantiate the call template. Its
// output is treated exactly like template-substituted code: the sandbox
// still applies the import whitelist and the execution deadline.
type LLMSynthesizer struct {
	provider    llm.Provider
	model       string
	temperature float64
	task        string
}

func NewLLMSynthesizer(provider llm.Provider, model string, temperature float64, taskDescription string) *LLMSynthesizer {
	return &LLMSynthesizer{
		provider:    provider,
		model:       model,
		temperature: temperature,
		task:        taskDescription,
	}
}

func (s *LLMSynthesizer) Synthesize(ctx context.Context, template string, input map[string]any, params map[string]any) (string, error) {
	prompt, err := s.buildPrompt(template, input, params)
	if err != nil {
		return "", err
	}

	temp := s.temperature
	if temp == 0 {
		// Low temperature keeps code generation consistent across cells.
		temp = 0.1
	}

	resp, err := s.provider.Chat(ctx, &llm.ChatRequest{
		Model:       s.model,
		Messages:    []llm.Message{llm.NewTextMessage(llm.RoleUser, prompt)},
		Temperature: temp,
	})
	if err != nil {
		return "", fmt.Errorf("code synthesis: %w", err)
	}
	if strings.TrimSpace(resp.Content) == "" {
		return "", fmt.Errorf("code synthesis: empty response")
	}

	return StripCodeFences(resp.Content), nil
}

func (s *LLMSynthesizer) buildPrompt(template string, input map[string]any, params map[string]any) (string, error) {
	inputJSON, err := json.MarshalIndent(input, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode input: %w", err)
	}
	paramsJSON, err := json.MarshalIndent(params, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode parameters: %w", err)
	}

	return fmt.Sprintf(`Task: Generate executable Go code based on the provided call example template.

Workflow Description: %s

Call Example Template:
%s

Input Data: %s
Parameters: %s

Instructions:
1. Take the call example as a template
2. Replace ALL placeholder values with the actual input data and parameters provided
3. Generate complete, executable Go code for a script-style interpreter (no package clause or main function)
4. The code should be ready to run without modification
5. Ensure all variable substitutions are made correctly
6. The final result must be assigned to a variable called 'result'

Return ONLY the executable Go code, no explanations or markdown formatting.`,
		s.task, template, inputJSON, paramsJSON), nil
}

// StripCodeFences removes surrounding markdown code block markers and a
// leading language identifier, if present.
func StripCodeFences(content string) string {
	lines := strings.Split(strings.TrimSpace(content), "\n")

	if len(lines) > 0 && strings.HasPrefix(strings.TrimSpace(lines[0]), "```") {
		lines = lines[1:]
	}
	if len(lines) > 0 && strings.HasPrefix(strings.TrimSpace(lines[len(lines)-1]), "```") {
		lines = lines[:len(lines)-1]
	}
	if len(lines) > 0 {
		switch strings.TrimSpace(lines[0]) {
		case "go", "golang":
			lines = lines[1:]
		}
	}

	return strings.TrimSpace(strings.Join(lines, "\n"))
}
