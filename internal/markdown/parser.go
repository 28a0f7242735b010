package markdown

import (
	"regexp"
	"strings"
)

// Options control parsing of assistant-generated markdown.
type Options struct {
	// StripAudioTags removes [AUDIO]...[/AUDIO] spans before parsing.
	// Assistant turns embed a short spoken summary there that must
	// never reach the written view.
	StripAudioTags bool
	// CollapseEmptyLines emits at most one EmptyLine per run of blanks.
	CollapseEmptyLines bool
}

// DefaultOptions matches what both renderers use.
func DefaultOptions() Options {
	return Options{StripAudioTags: true, CollapseEmptyLines: true}
}

var (
	audioTagPattern = regexp.MustCompile(`(?is)\[AUDIO\].*?\[/AUDIO\]`)
	headingPattern  = regexp.MustCompile(`^(#{1,4})\s+(.*)$`)
	orderedPattern  = regexp.MustCompile(`^\s*\d+\.\s+(.*)$`)
	bulletPattern   = regexp.MustCompile(`^\s*[-*]\s+(.*)$`)
	rulePattern     = regexp.MustCompile(`^-{3,}\s*$`)
	tableRowPattern = regexp.MustCompile(`^\s*\|.*\|\s*$`)
	separatorCell   = regexp.MustCompile(`^:?-{3,}:?$`)
)

// Parse converts markdown text into a flat block sequence. It never
// fails: malformed input degrades to paragraphs, empty input yields an
// empty slice.
func Parse(text string, opts Options) []BlockNode {
	if opts.StripAudioTags {
		text = audioTagPattern.ReplaceAllString(text, "")
	}
	if strings.TrimSpace(text) == "" {
		return nil
	}

	p := &parser{opts: opts}
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	for _, line := range lines {
		p.feed(line)
	}
	p.finish()
	return p.nodes
}

type listItem struct {
	text    string
	ordered bool
}

type parser struct {
	opts  Options
	nodes []BlockNode

	inFence    bool
	fenceLang  string
	fenceLines []string

	tableRows []string
	listItems []listItem

	prevBlank bool
}

func (p *parser) feed(line string) {
	if p.inFence {
		if isFenceDelimiter(line) {
			p.flushFence()
			return
		}
		p.fenceLines = append(p.fenceLines, line)
		return
	}

	if isFenceDelimiter(line) {
		p.flushTable()
		p.flushList()
		p.inFence = true
		p.fenceLang = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "```"))
		p.fenceLines = nil
		p.prevBlank = false
		return
	}

	if tableRowPattern.MatchString(line) {
		p.flushList()
		p.tableRows = append(p.tableRows, strings.TrimSpace(line))
		p.prevBlank = false
		return
	}
	p.flushTable()

	if strings.TrimSpace(line) == "" {
		p.flushList()
		if !p.opts.CollapseEmptyLines || !p.prevBlank {
			p.nodes = append(p.nodes, EmptyLine{})
		}
		p.prevBlank = true
		return
	}
	p.prevBlank = false

	if m := headingPattern.FindStringSubmatch(line); m != nil {
		p.flushList()
		p.nodes = append(p.nodes, Heading{Level: len(m[1]), Inline: ParseInline(m[2])})
		return
	}

	if m := bulletPattern.FindStringSubmatch(line); m != nil {
		p.listItems = append(p.listItems, listItem{text: m[1]})
		return
	}
	if m := orderedPattern.FindStringSubmatch(line); m != nil {
		p.listItems = append(p.listItems, listItem{text: m[1], ordered: true})
		return
	}
	p.flushList()

	if rulePattern.MatchString(strings.TrimSpace(line)) {
		p.nodes = append(p.nodes, HorizontalRule{})
		return
	}

	p.nodes = append(p.nodes, Paragraph{Inline: ParseInline(strings.TrimSpace(line))})
}

func (p *parser) finish() {
	if p.inFence {
		// Unterminated fence: keep what was captured.
		p.flushFence()
	}
	p.flushTable()
	p.flushList()
}

func (p *parser) flushFence() {
	p.nodes = append(p.nodes, CodeBlock{
		Language: p.fenceLang,
		Text:     strings.Join(p.fenceLines, "\n"),
	})
	p.inFence = false
	p.fenceLang = ""
	p.fenceLines = nil
}

func (p *parser) flushTable() {
	if len(p.tableRows) == 0 {
		return
	}
	rows := p.tableRows
	p.tableRows = nil

	header := splitTableCells(rows[0])
	data := rows[1:]
	if len(data) > 0 && isSeparatorRow(data[0]) {
		data = data[1:]
	}

	table := Table{Header: parseCells(header)}
	for _, raw := range data {
		table.Rows = append(table.Rows, parseCells(splitTableCells(raw)))
	}
	p.nodes = append(p.nodes, table)
}

func (p *parser) flushList() {
	if len(p.listItems) == 0 {
		return
	}
	items := p.listItems
	p.listItems = nil

	// Mixed marker styles merge into one list; the first item decides
	// ordered vs unordered.
	list := List{Ordered: items[0].ordered}
	for _, it := range items {
		list.Items = append(list.Items, ParseInline(it.text))
	}
	p.nodes = append(p.nodes, list)
}

func isFenceDelimiter(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), "```")
}

func splitTableCells(row string) []string {
	row = strings.TrimSpace(row)
	row = strings.TrimPrefix(row, "|")
	row = strings.TrimSuffix(row, "|")
	parts := strings.Split(row, "|")
	cells := make([]string, len(parts))
	for i, c := range parts {
		cells[i] = strings.TrimSpace(c)
	}
	return cells
}

func isSeparatorRow(row string) bool {
	cells := splitTableCells(row)
	if len(cells) == 0 {
		return false
	}
	for _, c := range cells {
		if !separatorCell.MatchString(c) {
			return false
		}
	}
	return true
}

func parseCells(cells []string) [][]InlineNode {
	out := make([][]InlineNode, len(cells))
	for i, c := range cells {
		out[i] = ParseInline(c)
	}
	return out
}
