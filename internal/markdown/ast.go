package markdown

// BlockNode is one block of a parsed document. The tree is a flat
// ordered sequence of blocks with one inline level below; nodes are
// value types produced fresh per parse and never mutated by consumers.
type BlockNode interface {
	blockNode()
}

// InlineNode is a span of styled text inside a block.
type InlineNode interface {
	inlineNode()
}

// Heading is a level 1-4 heading.
type Heading struct {
	Level  int
	Inline []InlineNode
}

// Paragraph is a plain text block.
type Paragraph struct {
	Inline []InlineNode
}

// List merges consecutive list items of any marker style.
type List struct {
	Ordered bool
	Items   [][]InlineNode
}

// CodeBlock holds fenced code verbatim.
type CodeBlock struct {
	Language string
	Text     string
}

// Table holds a pipe table; the separator row is consumed at parse time.
type Table struct {
	Header [][]InlineNode
	Rows   [][][]InlineNode
}

// HorizontalRule is a line of three or more hyphens.
type HorizontalRule struct{}

// EmptyLine separates paragraphs; runs of blank lines collapse to one
// when Options.CollapseEmptyLines is set.
type EmptyLine struct{}

func (Heading) blockNode()        {}
func (Paragraph) blockNode()      {}
func (List) blockNode()           {}
func (CodeBlock) blockNode()      {}
func (Table) blockNode()          {}
func (HorizontalRule) blockNode() {}
func (EmptyLine) blockNode()      {}

// Text is a literal run with no further markup.
type Text struct {
	Content string
}

// Bold is **text**.
type Bold struct {
	Content string
}

// Italic is *text*.
type Italic struct {
	Content string
}

// Code is `text`.
type Code struct {
	Content string
}

// Link is [text](href). The link text is literal.
type Link struct {
	Content string
	Href    string
}

func (Text) inlineNode()   {}
func (Bold) inlineNode()   {}
func (Italic) inlineNode() {}
func (Code) inlineNode()   {}
func (Link) inlineNode()   {}

// PlainText flattens inline nodes back to their literal content,
// markup dropped. Used for spoken summaries and tests.
func PlainText(nodes []InlineNode) string {
	var out []byte
	for _, n := range nodes {
		switch v := n.(type) {
		case Text:
			out = append(out, v.Content...)
		case Bold:
			out = append(out, v.Content...)
		case Italic:
			out = append(out, v.Content...)
		case Code:
			out = append(out, v.Content...)
		case Link:
			out = append(out, v.Content...)
		}
	}
	return string(out)
}
