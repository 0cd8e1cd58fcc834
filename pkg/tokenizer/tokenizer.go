package tokenizer

// Estimate returns an approximate token count for text.
// Rough estimate: ~4 chars per token for English, rounded up.
func Estimate(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + 3) / 4
}
