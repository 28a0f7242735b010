package markdown

import "strings"

// ParseInline scans a single line of text for inline markup. It is an
// explicit single-pass scanner: at each position it tries, in order, a
// link [text](url), bold **text**, italic *text* and inline code
// `text`. Delimiters do not nest; span content is literal, and the
// longest delimiter at the current position wins (** before *).
// Unterminated markers degrade to literal text.
func ParseInline(s string) []InlineNode {
	var nodes []InlineNode
	var plain strings.Builder

	flush := func() {
		if plain.Len() > 0 {
			nodes = append(nodes, Text{Content: plain.String()})
			plain.Reset()
		}
	}

	i := 0
	for i < len(s) {
		switch s[i] {
		case '[':
			if content, href, width := scanLink(s[i:]); width > 0 {
				flush()
				nodes = append(nodes, Link{Content: content, Href: href})
				i += width
				continue
			}
		case '*':
			if strings.HasPrefix(s[i:], "**") {
				if content, width := scanDelimited(s[i:], "**"); width > 0 {
					flush()
					nodes = append(nodes, Bold{Content: content})
					i += width
					continue
				}
			}
			if content, width := scanDelimited(s[i:], "*"); width > 0 {
				flush()
				nodes = append(nodes, Italic{Content: content})
				i += width
				continue
			}
		case '`':
			if content, width := scanDelimited(s[i:], "`"); width > 0 {
				flush()
				nodes = append(nodes, Code{Content: content})
				i += width
				continue
			}
		}
		plain.WriteByte(s[i])
		i++
	}
	flush()
	return nodes
}

// scanDelimited matches delim+content+delim at the start of s and
// returns the content and total width, or 0 when unterminated or empty.
func scanDelimited(s, delim string) (string, int) {
	inner := s[len(delim):]
	end := strings.Index(inner, delim)
	if end <= 0 {
		return "", 0
	}
	return inner[:end], len(delim)*2 + end
}

// scanLink matches [text](url) at the start of s.
func scanLink(s string) (content, href string, width int) {
	closeBracket := strings.Index(s, "](")
	if closeBracket < 1 {
		return "", "", 0
	}
	rest := s[closeBracket+2:]
	closeParen := strings.IndexByte(rest, ')')
	if closeParen < 0 {
		return "", "", 0
	}
	return s[1:closeBracket], rest[:closeParen], closeBracket + 2 + closeParen + 1
}
