package llm

import (
	"context"
	"fmt"
)

// Known provider names accepted in configuration.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

// NewProvider builds the provider named in configuration. The returned
// closer is a no-op for providers without connection state.
func NewProvider(ctx context.Context, provider, apiKey string) (Provider, func() error, error) {
	noop := func() error { return nil }

	switch provider {
	case ProviderOpenAI:
		return NewOpenAIProvider(apiKey), noop, nil
	case ProviderAnthropic:
		return NewAnthropicProvider(apiKey), noop, nil
	case ProviderGemini:
		p, err := NewGeminiProvider(ctx, apiKey)
		if err != nil {
			return nil, nil, err
		}
		return p, p.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown provider: %s", provider)
	}
}
