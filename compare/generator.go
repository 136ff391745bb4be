// Package compare orchestrates a comparison run: generate an input
// example, execute it across every parameter combination, score the
// disagreement, repeat until a budget is exhausted.
package compare

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hashicorp/go-hclog"

	"gridprobe/config"
	"gridprobe/llm"
)

// InputExample is one generated test input with a human-readable
// description of what it probes.
type InputExample struct {
	Description string         `json:"description"`
	Input       map[string]any `json:"input"`
}

// InputGenerator produces the next input example. Prior examples are
// passed so the generator can avoid duplicates.
type InputGenerator interface {
	Generate(ctx context.Context, prior []map[string]any) (InputExample, error)
}

// LLMInputGenerator asks a hosted model for input examples likely to
// expose inconsistencies between parameter configurations.
type LLMInputGenerator struct {
	provider    llm.Provider
	model       string
	temperature float64
	cfg         *config.Config
	logger      hclog.Logger
}

func NewLLMInputGenerator(provider llm.Provider, cfg *config.Config, logger hclog.Logger) *LLMInputGenerator {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	temp := cfg.LLM.Temperature
	if temp == 0 {
		temp = 0.7
	}
	return &LLMInputGenerator{
		provider:    provider,
		model:       cfg.LLM.Model,
		temperature: temp,
		cfg:         cfg,
		logger:      logger.Named("generator"),
	}
}

func (g *LLMInputGenerator) Generate(ctx context.Context, prior []map[string]any) (InputExample, error) {
	prompt, err := g.buildPrompt(prior)
	if err != nil {
		return InputExample{}, fmt.Errorf("generation: %w", err)
	}

	resp, err := g.provider.Chat(ctx, &llm.ChatRequest{
		Model:       g.model,
		Messages:    []llm.Message{llm.NewTextMessage(llm.RoleUser, prompt)},
		MaxTokens:   2048,
		Temperature: g.temperature,
	})
	if err != nil {
		return InputExample{}, fmt.Errorf("generation: %w", err)
	}
	if strings.TrimSpace(resp.Content) == "" {
		return InputExample{}, fmt.Errorf("generation: model returned an empty response")
	}

	examples, err := parseExamples(resp.Content)
	if err != nil {
		return InputExample{}, fmt.Errorf("generation: %w", err)
	}
	if len(examples) == 0 {
		return InputExample{}, fmt.Errorf("generation: model returned no examples")
	}

	// The model is asked to rank by likelihood of exposing differences;
	// take the top one.
	g.logger.Debug("generated input example", "description", examples[0].Description)
	return examples[0], nil
}

func (g *LLMInputGenerator) buildPrompt(prior []map[string]any) (string, error) {
	type paramView struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Options     []any  `json:"options"`
	}
	params := make([]paramView, 0, len(g.cfg.Parameters))
	for _, p := range g.cfg.Parameters {
		params = append(params, paramView{Name: p.Name, Description: p.Description, Options: p.Options})
	}
	paramsJSON, err := json.MarshalIndent(params, "", "  ")
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, `Task: Generate diverse input examples for testing a workflow with different parameter configurations.
Your goal is to generate test examples that have the highest chance of showing inconsistencies among the same workflow that calls different LLM models or toolings (for example, search provided by Tavily or Exa).

Workflow Description: %s

Call Example:
%s

Parameters to test:
%s
`, g.cfg.TaskDescription, g.cfg.CallExample, paramsJSON)

	prefs := g.cfg.Preferences
	if len(prefs.DomainSpecificHints) > 0 {
		fmt.Fprintf(&b, "\nGeneration Preferences:\n- Domain Hints: %s\n", strings.Join(prefs.DomainSpecificHints, ", "))
	}
	if prefs.CustomInstructions != "" {
		fmt.Fprintf(&b, "- Custom Instructions: %s\n", prefs.CustomInstructions)
	}

	if len(prior) > 0 {
		priorJSON, err := json.MarshalIndent(prior, "", "  ")
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "\n\nHere are the existing examples and their comparison results.  Please use them to avoid duplications and also generate examples that can demonstrate new differences:\n%s", priorJSON)
	}

	b.WriteString(`

Requirements:
1. The example should be specific and easy to see the inconsistencies (for example, the answer is a number or a few words), rather than an open question.
2. The example should have enough complexities (which may involve analyzing a document and aggregating results from multiple sources), not straightforward answers that can be easily answered by LLMs or a direct answer from the search engine.
3. Learn from existing examples (especially examples that have shown differences in the past) to increase question complexities.
4. Try generating diverse examples from different domains or areas, given existing examples.
5. Generate 1 diverse input example.  Put the example that is most likely to show the difference at the top.
6. Return examples as a JSON array in the format: {"examples": [{"description": <description>, "input": <input>}, ...]}

Each example should contain the input fields that the workflow expects (e.g., 'question' for Q&A workflows).
`)

	return b.String(), nil
}

// parseExamples extracts the examples array from a model response. The
// array may arrive bare or wrapped in an {"examples": [...]} envelope,
// possibly surrounded by prose.
func parseExamples(content string) ([]InputExample, error) {
	start := strings.Index(content, "[")
	end := strings.LastIndex(content, "]")
	if start != -1 && end > start {
		var examples []InputExample
		if err := json.Unmarshal([]byte(content[start:end+1]), &examples); err == nil {
			return examples, nil
		}
	}

	var envelope struct {
		Examples []InputExample `json:"examples"`
	}
	objStart := strings.Index(content, "{")
	objEnd := strings.LastIndex(content, "}")
	if objStart != -1 && objEnd > objStart {
		if err := json.Unmarshal([]byte(content[objStart:objEnd+1]), &envelope); err == nil {
			return envelope.Examples, nil
		}
	}

	return nil, fmt.Errorf("response is not valid JSON")
}
