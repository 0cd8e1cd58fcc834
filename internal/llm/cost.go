package llm

type modelPrice struct {
	input  float64
	output float64
}

// USD per 1K tokens. Unknown models cost zero rather than erroring so
// that local backends (ollama) report cleanly.
var modelPrices = map[string]modelPrice{
	"gpt-4o":                 {input: 0.005, output: 0.015},
	"gpt-4o-mini":            {input: 0.00015, output: 0.0006},
	"gpt-4-turbo":            {input: 0.01, output: 0.03},
	"gpt-3.5-turbo":          {input: 0.0005, output: 0.0015},
	"text-embedding-3-small": {input: 0.00002},
	"text-embedding-3-large": {input: 0.00013},
	"text-embedding-ada-002": {input: 0.0001},

	"claude-sonnet-4-20250514": {input: 0.003, output: 0.015},
	"claude-opus-4-20250514":   {input: 0.015, output: 0.075},
	"claude-3-haiku-20240307":  {input: 0.00025, output: 0.00125},
}

func CalculateCost(model string, inputTokens, outputTokens int) float64 {
	p, ok := modelPrices[model]
	if !ok {
		return 0
	}
	return float64(inputTokens)/1000*p.input + float64(outputTokens)/1000*p.output
}
