package llm

import "strings"

// price is USD per million tokens.
type price struct {
	input  float64
	output float64
}

// prices covers the models the quality presets pick. Keys are lower case
// base names; dated snapshots and router prefixes resolve to them.
// Local Ollama models are absent and cost nothing.
var prices = map[string]price{
	"claude-haiku-4-5":  {input: 0.80, output: 4.00},
	"claude-sonnet-4-5": {input: 3.00, output: 15.00},
	"claude-opus-4-6":   {input: 15.00, output: 75.00},

	"gpt-4o":       {input: 2.50, output: 10.00},
	"gpt-4o-mini":  {input: 0.15, output: 0.60},
	"gpt-4.1":      {input: 2.00, output: 8.00},
	"gpt-4.1-mini": {input: 0.40, output: 1.60},

	"gemini-2.5-flash": {input: 0.30, output: 2.50},
	"gemini-2.5-pro":   {input: 1.25, output: 10.00},

	"minimax-m2.5": {input: 0.30, output: 1.20},
}

// lookupPrice resolves the model name a provider reports. OpenRouter and
// Gemini prefix names with a vendor path; Anthropic and OpenAI append a
// snapshot date. The longest base name wins, so gpt-4o-mini-2024-07-18 is
// priced as gpt-4o-mini rather than gpt-4o.
func lookupPrice(model string) (price, bool) {
	model = strings.ToLower(strings.TrimSpace(model))
	if i := strings.LastIndex(model, "/"); i >= 0 {
		model = model[i+1:]
	}
	if p, ok := prices[model]; ok {
		return p, true
	}
	best := ""
	for name := range prices {
		if strings.HasPrefix(model, name+"-") && len(name) > len(best) {
			best = name
		}
	}
	if best == "" {
		return price{}, false
	}
	return prices[best], true
}

// EstimateCost returns the cost in USD of one completion, or 0 for models
// without a known price.
func EstimateCost(model string, inputTokens, outputTokens int) float64 {
	p, ok := lookupPrice(model)
	if !ok {
		return 0
	}
	return float64(inputTokens)/1_000_000*p.input + float64(outputTokens)/1_000_000*p.output
}

// EstimateTokens approximates a token count at four characters per token.
// It stands in when a provider does not report usage.
func EstimateTokens(text string) int {
	n := len(text) / 4
	if n == 0 && len(text) > 0 {
		return 1
	}
	return n
}
