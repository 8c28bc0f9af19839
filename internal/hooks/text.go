package hooks

import (
	"regexp"
	"strings"
)

const (
	// PromptLimit caps the captured prompt, in characters.
	PromptLimit = 3000

	// SummaryLimit caps the captured summary, in characters.
	SummaryLimit = 500

	// NoPrompt is recorded when a payload carries no user prompt.
	NoPrompt = "No user prompt captured."

	// NoSummary is recorded when a payload carries no assistant reply.
	NoSummary = "No assistant summary captured."

	// UnknownTurn is the turn id used when a payload carries none.
	UnknownTurn = "unknown-turn"

	defaultTitle    = "Agent Turn Log"
	titleWords      = 8
	ellipsis        = "..."
	fallbackProject = "Project"
)

var (
	whitespace = regexp.MustCompile(`\s+`)
	titleNoise = regexp.MustCompile(`[^A-Za-z0-9\s\-_/]`)
)

// Truncate collapses whitespace runs to single spaces and caps the result
// at limit characters, ending with "..." when anything was cut.
func Truncate(text string, limit int) string {
	text = strings.TrimSpace(whitespace.ReplaceAllString(text, " "))
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	keep := limit - len(ellipsis)
	if keep < 0 {
		keep = 0
	}
	return strings.TrimRight(string(runes[:keep]), " ") + ellipsis
}

// Title derives a note title from the first eight words of text after
// dropping everything but letters, digits, whitespace and -_/.
func Title(text string) string {
	cleaned := titleNoise.ReplaceAllString(text, " ")
	words := strings.Fields(cleaned)
	if len(words) == 0 {
		return defaultTitle
	}
	if len(words) > titleWords {
		words = words[:titleWords]
	}
	return strings.Join(words, " ")
}

// capOr truncates text to limit, substituting sentinel when it is blank.
func capOr(text string, limit int, sentinel string) string {
	if strings.TrimSpace(text) == "" {
		text = sentinel
	}
	return Truncate(text, limit)
}
