package usecase

import (
	"regexp"
	"strings"
	"unicode"
)

var wordTokenRe = regexp.MustCompile(`[A-Za-z0-9_]+`)

func tokenizeLower(text string) []string {
	matches := wordTokenRe.FindAllString(text, -1)
	for i, m := range matches {
		matches[i] = strings.ToLower(m)
	}
	return matches
}

// approxTokens estimates token usage without a model tokenizer. The estimate
// is deliberately pessimistic: the larger of chars/4 and the word count.
func approxTokens(text string) int {
	normalized := strings.TrimSpace(text)
	if normalized == "" {
		return 0
	}
	byChars := len(normalized) / 4
	if byChars < 1 {
		byChars = 1
	}
	byWords := len(wordTokenRe.FindAllString(normalized, -1))
	if byWords > byChars {
		return byWords
	}
	return byChars
}

// truncateChars cuts text to at most maxChars characters. Limits count
// runes, never bytes, so multi-byte text is not split mid-rune.
func truncateChars(text string, maxChars int) string {
	if maxChars <= 0 {
		return ""
	}
	if len(text) <= maxChars {
		return text
	}
	runes := []rune(text)
	if len(runes) <= maxChars {
		return text
	}
	return string(runes[:maxChars])
}

// truncateToTokens trims text to roughly maxTokens, cutting at the last word
// boundary and marking the cut with an ellipsis.
func truncateToTokens(text string, maxTokens int) string {
	normalized := strings.TrimSpace(text)
	if normalized == "" || maxTokens <= 0 {
		return ""
	}
	if approxTokens(normalized) <= maxTokens {
		return normalized
	}
	maxChars := maxTokens * 4
	if maxChars < 24 {
		maxChars = 24
	}
	trimmed := strings.TrimSpace(truncateChars(normalized, maxChars))
	if idx := strings.LastIndex(trimmed, " "); idx > 0 {
		trimmed = strings.TrimSpace(trimmed[:idx])
	}
	if trimmed == "" {
		trimmed = strings.TrimSpace(truncateChars(normalized, maxChars))
	}
	return trimmed + "..."
}

// splitStatements cuts text into sentence-like pieces at terminator runs
// followed by whitespace and at newline runs.
func splitStatements(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	var out []string
	runes := []rune(text)
	start := 0

	flush := func(end int) {
		if piece := strings.TrimSpace(string(runes[start:end])); piece != "" {
			out = append(out, piece)
		}
	}

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r == '\n' {
			flush(i)
			for i < len(runes) && (runes[i] == '\n' || runes[i] == '\r') {
				i++
			}
			start = i
			i--
			continue
		}
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		j := i + 1
		for j < len(runes) && (runes[j] == '.' || runes[j] == '!' || runes[j] == '?') {
			j++
		}
		if j >= len(runes) || !unicode.IsSpace(runes[j]) {
			i = j - 1
			continue
		}
		flush(j)
		for j < len(runes) && unicode.IsSpace(runes[j]) && runes[j] != '\n' {
			j++
		}
		start = j
		i = j - 1
	}
	flush(len(runes))
	return out
}

func compactWhitespace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
