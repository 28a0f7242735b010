package render

import (
	"strings"
	"testing"

	"github.com/specforge/specforge/internal/markdown"
)

func TestHTMLBlocks(t *testing.T) {
	input := "# Titre\n\nUn paragraphe.\n\n- a\n- b\n\n---"
	out := HTML(markdown.Parse(input, markdown.DefaultOptions()))

	for _, want := range []string{"<h1>Titre</h1>", "<p>Un paragraphe.</p>", "<ul>", "<li>a</li>", "<hr>"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestHTMLOrderedList(t *testing.T) {
	out := HTML(markdown.Parse("1. un\n2. deux", markdown.DefaultOptions()))
	if !strings.Contains(out, "<ol>") || !strings.Contains(out, "<li>deux</li>") {
		t.Fatalf("expected ordered list markup, got:\n%s", out)
	}
}

func TestHTMLEscapesInjectedMarkup(t *testing.T) {
	// Inline literals come from an LLM response and may carry injected
	// markup; none of it may reach the document live.
	input := "Hello <script>alert(1)</script> **<img src=x onerror=alert(2)>**"
	out := HTML(markdown.Parse(input, markdown.DefaultOptions()))

	if strings.Contains(out, "<script>") {
		t.Fatalf("script tag survived rendering:\n%s", out)
	}
	if strings.Contains(out, "<img") {
		t.Fatalf("img tag survived rendering:\n%s", out)
	}
	if !strings.Contains(out, "&lt;script&gt;") {
		t.Fatalf("expected escaped script literal, got:\n%s", out)
	}
}

func TestHTMLLinkAttributes(t *testing.T) {
	out := HTML(markdown.Parse("voir [doc](https://example.com)", markdown.DefaultOptions()))
	if !strings.Contains(out, `href="https://example.com"`) {
		t.Fatalf("expected href, got:\n%s", out)
	}
	if !strings.Contains(out, `target="_blank"`) || !strings.Contains(out, `rel="noopener noreferrer"`) {
		t.Fatalf("links must open in a new tab with noopener noreferrer, got:\n%s", out)
	}
}

func TestHTMLLinkSchemeFiltered(t *testing.T) {
	out := HTML(markdown.Parse("[x](javascript:alert(1))", markdown.DefaultOptions()))
	if strings.Contains(out, "javascript:") {
		t.Fatalf("javascript scheme survived sanitizing:\n%s", out)
	}
}

func TestHTMLCodeBlock(t *testing.T) {
	out := HTML(markdown.Parse("```go\nif a < b {}\n```", markdown.DefaultOptions()))
	if !strings.Contains(out, `<pre><code class="language-go">`) {
		t.Fatalf("expected code block markup, got:\n%s", out)
	}
	if !strings.Contains(out, "if a &lt; b {}") {
		t.Fatalf("code text must be escaped, got:\n%s", out)
	}
}

func TestHTMLTable(t *testing.T) {
	out := HTML(markdown.Parse("| a | b |\n|---|---|\n| 1 | 2 |", markdown.DefaultOptions()))
	for _, want := range []string{"<table>", "<th>a</th>", "<td>2</td>"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in table markup, got:\n%s", want, out)
		}
	}
}
