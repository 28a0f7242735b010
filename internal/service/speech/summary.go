package speech

import (
	"regexp"
	"strings"
	"unicode"
)

// maxSummaryChars caps the fallback first-sentence summary.
const maxSummaryChars = 200

var (
	audioSpanPattern = regexp.MustCompile(`(?is)\[AUDIO\](.*?)\[/AUDIO\]`)
	markupPattern    = regexp.MustCompile("[*_#`~\\[\\]()>|]")
	sentenceEnd      = regexp.MustCompile(`[.!?…]`)
)

// SpokenSummary derives the short narration text for an assistant
// turn: the dedicated spoken-summary span when present, otherwise the
// first sentence capped at 200 characters. Markdown markers and emoji
// never reach the synthesizer.
func SpokenSummary(text string) string {
	if m := audioSpanPattern.FindStringSubmatch(text); m != nil {
		return cleanForSpeech(m[1])
	}

	plain := cleanForSpeech(audioSpanPattern.ReplaceAllString(text, ""))
	if plain == "" {
		return ""
	}

	if loc := sentenceEnd.FindStringIndex(plain); loc != nil {
		plain = plain[:loc[1]]
	}

	runes := []rune(plain)
	if len(runes) > maxSummaryChars {
		plain = string(runes[:maxSummaryChars])
	}
	return strings.TrimSpace(plain)
}

func cleanForSpeech(text string) string {
	text = markupPattern.ReplaceAllString(text, "")

	var b strings.Builder
	for _, r := range text {
		if unicode.In(r, unicode.So, unicode.Sk) || (r >= 0x1F000 && r <= 0x1FAFF) {
			continue
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(strings.Join(strings.Fields(b.String()), " "))
}
