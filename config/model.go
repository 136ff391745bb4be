package config

import (
	"fmt"
	"strings"
)

type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderGemini    Provider = "gemini"
	ProviderAnthropic Provider = "anthropic"
)

// EnvVar returns the environment variable checked for this provider's key.
func (p Provider) EnvVar() string {
	return strings.ToUpper(string(p)) + "_API_KEY"
}

// ParameterSpec declares one workflow parameter and the candidate values
// the grid sweeps over.
type ParameterSpec struct {
	Name        string
	Description string
	Options     []any
	Default     any
}

func (p *ParameterSpec) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return &ValidationError{Field: "parameters", Reason: "parameter name is required"}
	}
	if len(p.Options) == 0 {
		return &ValidationError{
			Field:  fmt.Sprintf("parameters.%s", p.Name),
			Reason: "at least one option is required",
		}
	}
	return nil
}

// Preferences guide input example generation.
type Preferences struct {
	DiversityFocus      string // low, medium, high
	ComplexityLevel     string // simple, medium, complex
	DomainSpecificHints []string
	EdgeCases           bool
	CustomInstructions  string
}
