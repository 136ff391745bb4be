package analyze

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"gridprobe/llm"
	"gridprobe/sandbox"
)

// Judgment is a verdict on one set of outputs. Fields may arrive missing
// or out of range from a model; the analyzer repairs them before use.
type Judgment struct {
	InconsistencyScore     float64
	FactualInconsistencies []string
	ConsistentFacts        []string
	Significance           string
	DetailedAnalysis       string
}

// Judge assesses factual disagreement between successful outputs.
type Judge interface {
	Assess(ctx context.Context, input map[string]any, successful []sandbox.ExecutionResult) (Judgment, error)
}

// LLMJudge prompts a hosted model to find factual contradictions between
// outputs, ignoring formatting and style.
type LLMJudge struct {
	provider    llm.Provider
	model       string
	temperature float64
}

func NewLLMJudge(provider llm.Provider, model string, temperature float64) *LLMJudge {
	return &LLMJudge{provider: provider, model: model, temperature: temperature}
}

func (j *LLMJudge) Assess(ctx context.Context, input map[string]any, successful []sandbox.ExecutionResult) (Judgment, error) {
	prompt, err := j.buildPrompt(input, successful)
	if err != nil {
		return Judgment{}, err
	}

	temp := j.temperature
	if temp == 0 {
		// Low temperature keeps verdicts stable for equal inputs.
		temp = 0.1
	}

	resp, err := j.provider.Chat(ctx, &llm.ChatRequest{
		Model:       j.model,
		Messages:    []llm.Message{llm.NewTextMessage(llm.RoleUser, prompt)},
		Temperature: temp,
	})
	if err != nil {
		return Judgment{}, fmt.Errorf("judge call: %w", err)
	}

	return parseJudgment(resp.Content)
}

func (j *LLMJudge) buildPrompt(input map[string]any, successful []sandbox.ExecutionResult) (string, error) {
	inputJSON, err := json.MarshalIndent(input, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode input: %w", err)
	}

	type resultView struct {
		ResultID      int            `json:"result_id"`
		Parameters    map[string]any `json:"parameters"`
		Output        any            `json:"output"`
		ExecutionTime float64        `json:"execution_time"`
	}
	views := make([]resultView, len(successful))
	for i, r := range successful {
		views[i] = resultView{
			ResultID:      i + 1,
			Parameters:    r.Parameters,
			Output:        r.Output,
			ExecutionTime: r.ExecutionTime,
		}
	}
	resultsJSON, err := json.MarshalIndent(views, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode results: %w", err)
	}

	return fmt.Sprintf(`Task: Analyze the following workflow results for FACTUAL INCONSISTENCIES ONLY.

Your goal is to identify any factual contradictions, incorrect information, or conflicting claims between the different results. Do NOT analyze differences in formatting, presentation style, or subjective opinions.

Input Query/Example:
%s

Workflow Results to Compare:
%s

Instructions:
1. Focus ONLY on factual inconsistencies - contradictory facts, incorrect information, or conflicting claims
2. Ignore differences in formatting, presentation style, language tone, or subjective opinions
3. Look for cases where the results make contradictory factual claims about the same topic
4. Consider whether results contradict well-established facts or each other
5. Assess the severity of any factual inconsistencies found

Return your analysis as JSON in this exact format:
{
    "inconsistency_score": <float between 0.0 and 1.0, where 0.0 = no factual inconsistencies, 1.0 = major factual contradictions>,
    "factual_inconsistencies": ["<specific factual inconsistency>"],
    "consistent_facts": ["<factual claim that is consistent across results>"],
    "significance_assessment": "<assessment of how significant the factual inconsistencies are>",
    "detailed_analysis": "<detailed explanation of the factual analysis performed>"
}

Important: Only flag as inconsistencies if there are actual factual contradictions. Different ways of presenting the same factual information should NOT be considered inconsistencies.`,
		inputJSON, resultsJSON), nil
}

// rawJudgment decodes the model's JSON leniently: the score may arrive as
// a number or a quoted string.
type rawJudgment struct {
	InconsistencyScore     json.RawMessage `json:"inconsistency_score"`
	FactualInconsistencies []string        `json:"factual_inconsistencies"`
	ConsistentFacts        []string        `json:"consistent_facts"`
	Significance           string          `json:"significance_assessment"`
	DetailedAnalysis       string          `json:"detailed_analysis"`
}

// parseJudgment extracts the JSON object between the first '{' and last
// '}' of the reply and decodes it.
func parseJudgment(content string) (Judgment, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end == -1 || end < start {
		return Judgment{}, fmt.Errorf("no JSON object in judge response")
	}

	var raw rawJudgment
	if err := json.Unmarshal([]byte(content[start:end+1]), &raw); err != nil {
		return Judgment{}, fmt.Errorf("parse judge response: %w", err)
	}

	return Judgment{
		InconsistencyScore:     parseScore(raw.InconsistencyScore),
		FactualInconsistencies: raw.FactualInconsistencies,
		ConsistentFacts:        raw.ConsistentFacts,
		Significance:           raw.Significance,
		DetailedAnalysis:       raw.DetailedAnalysis,
	}, nil
}

// parseScore tolerates numeric, quoted-numeric, and garbage score values.
// Anything non-numeric becomes 0.0.
func parseScore(raw json.RawMessage) float64 {
	if len(raw) == 0 {
		return 0.0
	}

	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return f
		}
	}

	return 0.0
}
