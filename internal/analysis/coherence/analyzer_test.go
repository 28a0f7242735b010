package coherence

import "testing"

func TestIsValidFrenchResponse(t *testing.T) {
	if !IsValid("Bonjour, je suis là pour vous aider.") {
		t.Fatal("expected a normal French response to be valid")
	}
}

func TestIsValidRejectsOffLanguage(t *testing.T) {
	// Long enough for the ratio check, no French function words.
	lorem := "Lorem ipsum dolor sit amet consectetur adipiscing elit sed eiusmod tempor incididunt labore dolore magna aliqua enim minim veniam quis nostrud"
	if IsValid(lorem) {
		t.Fatal("expected off-language text to be invalid")
	}
}

func TestIsValidRejectsShortStrings(t *testing.T) {
	for _, s := range []string{"", "ok", "oui btw", "123456789"} {
		if IsValid(s) {
			t.Fatalf("expected %q to be invalid (under %d chars)", s, minResponseLength)
		}
	}
}

func TestIsValidNeverPanicsOnNonStrings(t *testing.T) {
	for _, v := range []any{nil, 42, 3.14, []byte("bytes"), struct{}{}, map[string]string{}} {
		if IsValid(v) {
			t.Fatalf("expected non-string input %#v to be invalid", v)
		}
	}
}

func TestIsValidRejectsSuspiciousWords(t *testing.T) {
	cases := []struct {
		name string
		text string
	}{
		{
			"overlong tokens",
			"Voici le résultat aaaaaaaaaaaaaaaaaaaaaaa bbbbbbbbbbbbbbbbbbbbbbb ccccccccccccccccccccccc pour vous",
		},
		{
			"mid-token case shifts",
			"Voici le résumé complet deVotreProjetIci avecUneAutreChose etEncoreUneTroisieme pour vous",
		},
		{
			"cyrillic drift",
			"Voici пример текста здесь pour vous aider",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if IsValid(tc.text) {
				t.Fatalf("expected %q to be invalid", tc.text)
			}
		})
	}
}

func TestIsValidToleratesFewOddWords(t *testing.T) {
	// Up to two suspicious words are tolerated: technical identifiers
	// happen in legitimate answers.
	text := "Le composant OrchestrateurDeSessions est décrit dans la spécification avec son APIPrincipaleXYZ"
	if !IsValid(text) {
		t.Fatalf("expected two suspicious words to be tolerated: %q", text)
	}
}
