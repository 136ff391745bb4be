package llm

// modelPricing is the cost per 1M tokens in USD.
type modelPricing struct {
	inputPer1M  float64
	outputPer1M float64
}

var pricingTable = map[string]modelPricing{
	// Anthropic
	"claude-sonnet-4-20250514":   {3.00, 15.00},
	"claude-opus-4-20250514":     {15.00, 75.00},
	"claude-3-5-haiku-20241022":  {0.80, 4.00},
	"claude-3-5-sonnet-20241022": {3.00, 15.00},

	// OpenAI
	"gpt-4o":      {2.50, 10.00},
	"gpt-4o-mini": {0.15, 0.60},
	"gpt-4-turbo": {10.00, 30.00},
	"o1":          {15.00, 60.00},
	"o1-mini":     {3.00, 12.00},
	"o3-mini":     {1.10, 4.40},

	// Gemini
	"gemini-2.0-flash":     {0.10, 0.40},
	"gemini-1.5-pro":       {1.25, 5.00},
	"gemini-1.5-flash":     {0.075, 0.30},
	"gemini-2.0-flash-exp": {0, 0},
}

// Cost estimates the USD cost of this usage against the named model.
// Unknown models cost zero.
func (u Usage) Cost(model string) float64 {
	pricing, ok := pricingTable[model]
	if !ok {
		return 0
	}
	return float64(u.InputTokens)/1_000_000*pricing.inputPer1M +
		float64(u.OutputTokens)/1_000_000*pricing.outputPer1M
}

// Add accumulates another usage sample.
func (u Usage) Add(other Usage) Usage {
	return Usage{
		InputTokens:  u.InputTokens + other.InputTokens,
		OutputTokens: u.OutputTokens + other.OutputTokens,
	}
}
