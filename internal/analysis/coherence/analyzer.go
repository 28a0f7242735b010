// Package coherence flags garbled or off-language provider responses
// so they can be retried instead of shown to the user. The thresholds
// are empirically tuned constants, not contractual values.
package coherence

import (
	"strings"
	"unicode"
)

const (
	// minResponseLength below which a response is always invalid.
	minResponseLength = 10
	// functionWordFloor is the minimum ratio of common function words
	// once a response is long enough for the ratio to mean anything.
	functionWordFloor = 0.08
	ratioMinWords     = 15
	// Suspicious-word thresholds: very long tokens, mid-token case
	// shifts and Cyrillic runs all suggest corrupted output.
	maxWordLength      = 18
	camelWordLength    = 12
	maxSuspiciousWords = 2
)

// functionWords is a closed list of high-frequency French function
// words; their near-absence in a long response means the model drifted
// into another language or into token noise.
var functionWords = map[string]struct{}{}

func init() {
	for _, w := range []string{
		"le", "la", "les", "un", "une", "des", "de", "du", "au", "aux",
		"et", "ou", "mais", "donc", "car", "ni", "or",
		"je", "tu", "il", "elle", "on", "nous", "vous", "ils", "elles",
		"ce", "cette", "ces", "mon", "votre", "son", "ses",
		"que", "qui", "quoi", "dans", "sur", "sous", "avec", "sans",
		"pour", "par", "pas", "ne", "est", "sont", "sera", "être", "avoir",
		"plus", "très", "bien", "aussi", "comme", "si", "en", "à",
	} {
		functionWords[w] = struct{}{}
	}
}

// IsValid accepts the raw provider output, whatever its shape, and
// never panics: anything that is not a usable string is invalid.
func IsValid(response any) bool {
	text, ok := response.(string)
	if !ok {
		return false
	}
	return isValidText(text)
}

func isValidText(text string) bool {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) < minResponseLength {
		return false
	}

	words := strings.Fields(trimmed)

	if len(words) > ratioMinWords {
		common := 0
		for _, w := range words {
			if _, ok := functionWords[normalizeWord(w)]; ok {
				common++
			}
		}
		if float64(common)/float64(len(words)) < functionWordFloor {
			return false
		}
	}

	suspicious := 0
	for _, w := range words {
		if isSuspiciousWord(w) {
			suspicious++
			if suspicious > maxSuspiciousWords {
				return false
			}
		}
	}
	return true
}

func normalizeWord(w string) string {
	return strings.ToLower(strings.Trim(w, ".,;:!?…'\"()[]«»*`"))
}

func isSuspiciousWord(w string) bool {
	runes := []rune(strings.Trim(w, ".,;:!?…'\"()[]«»*`"))
	if len(runes) == 0 {
		return false
	}

	for _, r := range runes {
		if unicode.Is(unicode.Cyrillic, r) {
			return true
		}
	}

	if len(runes) > maxWordLength {
		return true
	}

	if len(runes) > camelWordLength {
		for _, r := range runes[1:] {
			if unicode.IsUpper(r) {
				return true
			}
		}
	}
	return false
}
