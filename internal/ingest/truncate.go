package ingest

import (
	"strings"
	"unicode/utf8"
)

// TruncationMarker closes every truncated document.
const TruncationMarker = "\n\n[... document tronqué ...]"

// TruncateText cuts text at the extracted-text byte ceiling, backing up
// to the nearest preceding newline when that newline falls within the
// last 20% of the budget so words are not cut mid-stream without
// discarding excessive content.
func TruncateText(text string) (string, bool) {
	if len(text) <= MaxTextBytes {
		return text, false
	}

	budget := MaxTextBytes - len(TruncationMarker)
	cut := budget
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	head := text[:cut]

	if nl := strings.LastIndexByte(head, '\n'); nl >= budget*4/5 {
		head = head[:nl]
	}

	return head + TruncationMarker, true
}
