package compression

import "strings"

// charsPerToken is the rough chars-per-token ratio used everywhere in the
// pipeline. Good enough for budget enforcement, not for billing.
const charsPerToken = 4

// EstimateTokens approximates the token count of a text.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	tokens := len(text) / charsPerToken
	if tokens < 1 {
		return 1
	}
	return tokens
}

// TrimToTokens truncates text to approximately maxTokens, preferring a
// sentence or word boundary over a mid-word cut.
func TrimToTokens(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return ""
	}
	maxChars := maxTokens * charsPerToken
	if len(text) <= maxChars {
		return text
	}

	truncated := text[:maxChars]
	if idx := strings.LastIndexAny(truncated, ".!?;\n"); idx > maxChars/2 {
		return strings.TrimSpace(truncated[:idx+1])
	}
	if idx := strings.LastIndex(truncated, " "); idx > maxChars/2 {
		return strings.TrimSpace(truncated[:idx])
	}
	return truncated
}
