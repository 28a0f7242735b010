package render

import (
	"fmt"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/specforge/specforge/internal/markdown"
)

// inlinePolicy is the allow-list applied to every inline fragment
// before it is inserted into block markup. Inline literals originate
// from an LLM response and are attacker-influenceable, so they are
// escaped first and sanitized second; nothing reaches the document
// unescaped.
var inlinePolicy = newInlinePolicy()

func newInlinePolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("a", "strong", "em", "code")
	p.AllowAttrs("href", "target", "rel").OnElements("a")
	p.AllowAttrs("class").OnElements("a", "code")
	p.AllowURLSchemes("http", "https", "mailto")
	return p
}

// HTML renders a parsed document as sanitized display markup.
func HTML(nodes []markdown.BlockNode) string {
	var b strings.Builder
	for _, node := range nodes {
		switch v := node.(type) {
		case markdown.Heading:
			fmt.Fprintf(&b, "<h%d>%s</h%d>\n", v.Level, renderInline(v.Inline), v.Level)
		case markdown.Paragraph:
			fmt.Fprintf(&b, "<p>%s</p>\n", renderInline(v.Inline))
		case markdown.List:
			tag := "ul"
			if v.Ordered {
				tag = "ol"
			}
			fmt.Fprintf(&b, "<%s>\n", tag)
			for _, item := range v.Items {
				fmt.Fprintf(&b, "<li>%s</li>\n", renderInline(item))
			}
			fmt.Fprintf(&b, "</%s>\n", tag)
		case markdown.CodeBlock:
			class := ""
			if v.Language != "" {
				class = fmt.Sprintf(` class="language-%s"`, html.EscapeString(v.Language))
			}
			fmt.Fprintf(&b, "<pre><code%s>%s</code></pre>\n", class, html.EscapeString(v.Text))
		case markdown.Table:
			b.WriteString("<table>\n<thead>\n<tr>\n")
			for _, cell := range v.Header {
				fmt.Fprintf(&b, "<th>%s</th>\n", renderInline(cell))
			}
			b.WriteString("</tr>\n</thead>\n<tbody>\n")
			for _, row := range v.Rows {
				b.WriteString("<tr>\n")
				for _, cell := range row {
					fmt.Fprintf(&b, "<td>%s</td>\n", renderInline(cell))
				}
				b.WriteString("</tr>\n")
			}
			b.WriteString("</tbody>\n</table>\n")
		case markdown.HorizontalRule:
			b.WriteString("<hr>\n")
		case markdown.EmptyLine:
			b.WriteString(`<div class="md-spacer"></div>` + "\n")
		}
	}
	return b.String()
}

// renderInline escapes each inline literal, builds the allowed markup
// and runs the fragment through the sanitizer.
func renderInline(nodes []markdown.InlineNode) string {
	var b strings.Builder
	for _, n := range nodes {
		switch v := n.(type) {
		case markdown.Text:
			b.WriteString(html.EscapeString(v.Content))
		case markdown.Bold:
			fmt.Fprintf(&b, "<strong>%s</strong>", html.EscapeString(v.Content))
		case markdown.Italic:
			fmt.Fprintf(&b, "<em>%s</em>", html.EscapeString(v.Content))
		case markdown.Code:
			fmt.Fprintf(&b, "<code>%s</code>", html.EscapeString(v.Content))
		case markdown.Link:
			fmt.Fprintf(&b, `<a href="%s" target="_blank" rel="noopener noreferrer">%s</a>`,
				html.EscapeString(v.Href), html.EscapeString(v.Content))
		}
	}
	return inlinePolicy.Sanitize(b.String())
}
