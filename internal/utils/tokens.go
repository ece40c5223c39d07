package utils

// Rough token estimation. 1 token ~= 4 characters is close enough for
// prompt budgeting; nothing here is billed on it.

// CountTokens estimates the number of tokens in the given text.
func CountTokens(text string) int {
	if len(text) == 0 {
		return 0
	}
	tokens := len([]rune(text)) / 4
	if tokens == 0 {
		return 1
	}
	return tokens
}

// TruncateToTokenLimit truncates text to roughly fit within a token limit.
// A non-empty result that was cut ends with a marker line.
func TruncateToTokenLimit(text string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(text)
	charLimit := limit * 4
	if charLimit >= len(runes) {
		return text
	}
	const marker = "\n...(truncated)"
	cut := charLimit - len(marker)
	if cut <= 0 {
		return string(runes[:charLimit])
	}
	return string(runes[:cut]) + marker
}
