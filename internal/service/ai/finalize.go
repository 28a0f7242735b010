package ai

import (
	"regexp"
	"strings"
)

// CompletionMarker is the literal token prefixing the finalized
// document in a provider response. Its presence is the sole signal
// that the interview has concluded.
const CompletionMarker = "===SPECS_FINAL==="

// UseRegeneratePrompt replaces a reflexively echoed completion marker
// while modification mode is active.
const UseRegeneratePrompt = "J'ai bien noté vos précisions. Pour mettre à jour le document, " +
	"utilisez l'action « Régénérer les spécifications »."

// ApologyMessage is appended when every retry produced an invalid
// completion.
const ApologyMessage = "Désolé, je n'ai pas réussi à formuler une réponse correcte. " +
	"Pouvez-vous reformuler ou réessayer ?"

var audioTagPattern = regexp.MustCompile(`(?is)\[AUDIO\].*?\[/AUDIO\]`)

// HasCompletionMarker reports whether a response carries the
// finalization token.
func HasCompletionMarker(text string) bool {
	return strings.Contains(text, CompletionMarker)
}

// CleanFinalSpec turns a marker-bearing response into the stored
// document: the marker and spoken-summary tags are removed and any
// conversational preamble before the first heading is trimmed.
func CleanFinalSpec(text string) string {
	cleaned := strings.ReplaceAll(text, CompletionMarker, "")
	cleaned = audioTagPattern.ReplaceAllString(cleaned, "")

	if idx := firstHeadingIndex(cleaned); idx > 0 {
		cleaned = cleaned[idx:]
	}
	return strings.TrimSpace(cleaned)
}

// ExtractConversationalPreamble keeps only the chat-worthy part of a
// marker-bearing response received while modification mode is active:
// the text before the marker, summary tags stripped. When nothing
// usable remains it falls back to a fixed prompt pointing the user at
// the regenerate action.
func ExtractConversationalPreamble(text string) string {
	preamble := text
	if idx := strings.Index(text, CompletionMarker); idx >= 0 {
		preamble = text[:idx]
	}
	preamble = strings.TrimSpace(audioTagPattern.ReplaceAllString(preamble, ""))
	if preamble == "" {
		return UseRegeneratePrompt
	}
	return preamble
}

// firstHeadingIndex returns the byte offset of the first line starting
// with '#', or -1.
func firstHeadingIndex(text string) int {
	offset := 0
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "#") {
			return offset + strings.Index(line, "#")
		}
		offset += len(line) + 1
	}
	return -1
}
