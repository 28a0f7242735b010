package ai

import (
	"strings"
	"testing"
)

func TestCleanFinalSpec(t *testing.T) {
	raw := "[AUDIO]Voici vos spécifications.[/AUDIO]\n" +
		"Parfait, voici le document :\n\n" +
		CompletionMarker + "\n\n" +
		"# Spécifications produit\n\n## Objectif\nRésoudre le problème X."

	got := CleanFinalSpec(raw)
	if strings.Contains(got, CompletionMarker) {
		t.Fatal("marker must be stripped")
	}
	if strings.Contains(strings.ToLower(got), "[audio]") {
		t.Fatal("spoken-summary tags must be stripped")
	}
	if !strings.HasPrefix(got, "# Spécifications produit") {
		t.Fatalf("preamble before the first heading must be trimmed, got %q", got)
	}
	if !strings.Contains(got, "## Objectif") {
		t.Fatal("document body lost")
	}
}

func TestCleanFinalSpecWithoutHeadingKeepsBody(t *testing.T) {
	raw := CompletionMarker + "\nTexte sans titre."
	if got := CleanFinalSpec(raw); got != "Texte sans titre." {
		t.Fatalf("unexpected result %q", got)
	}
}

func TestHasCompletionMarker(t *testing.T) {
	if !HasCompletionMarker("avant " + CompletionMarker + " après") {
		t.Fatal("marker not detected")
	}
	if HasCompletionMarker("réponse ordinaire") {
		t.Fatal("false positive")
	}
}

func TestExtractConversationalPreamble(t *testing.T) {
	raw := "[AUDIO]Résumé.[/AUDIO]J'ai intégré vos corrections.\n" +
		CompletionMarker + "\n# Document régénéré\ncontenu"
	got := ExtractConversationalPreamble(raw)
	if got != "J'ai intégré vos corrections." {
		t.Fatalf("unexpected preamble %q", got)
	}

	// Marker with no usable preamble falls back to the fixed prompt.
	if got := ExtractConversationalPreamble(CompletionMarker + "\n# Doc"); got != UseRegeneratePrompt {
		t.Fatalf("expected fallback prompt, got %q", got)
	}
}

func TestBuildSystemPrompt(t *testing.T) {
	base := BuildSystemPrompt(false, "")
	if !strings.Contains(base, CompletionMarker) {
		t.Fatal("interview prompt must describe the marker")
	}

	mod := BuildSystemPrompt(true, "# Spec existante")
	if !strings.Contains(mod, "# Spec existante") {
		t.Fatal("modification prompt must embed the current spec")
	}
	if mod == base {
		t.Fatal("modification prompt must differ from the interview prompt")
	}
}
