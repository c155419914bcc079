package descriptions

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

const (
	charsPerToken = 4
	// sentenceCutFloor: a truncated text is cut back to its last full stop only when
	// that stop lies in the final fifth of the budget.
	sentenceCutFloor = 0.8
	maxStripPasses   = 16
)

var strictPolicy = bluemonday.StrictPolicy()

// Sanitize turns raw model output into plain text that fits maxTokens*4 characters.
// Sanitize(Sanitize(x)) == Sanitize(x).
func Sanitize(text string, maxTokens int) string {
	if text == "" {
		return ""
	}
	text = stripMarkup(text)
	text = strings.Join(strings.Fields(text), " ")
	if maxTokens > 0 {
		text = truncate(text, maxTokens*charsPerToken)
	}
	return strings.TrimSpace(text)
}

// stripMarkup removes tags until none remain, so entity-encoded markup cannot
// resurface as tags on a later pass.
func stripMarkup(text string) string {
	for i := 0; i < maxStripPasses; i++ {
		next := html.UnescapeString(strictPolicy.Sanitize(text))
		if next == text {
			break
		}
		text = next
	}
	return text
}

func truncate(text string, budget int) string {
	runes := []rune(text)
	if len(runes) <= budget {
		return text
	}
	cut := []rune(strings.TrimSpace(string(runes[:budget])))
	lastStop := -1
	for i := len(cut) - 1; i >= 0; i-- {
		if cut[i] == '.' {
			lastStop = i
			break
		}
	}
	if lastStop >= 0 && float64(lastStop) > float64(budget)*sentenceCutFloor {
		cut = cut[:lastStop+1]
	}
	return string(cut)
}
