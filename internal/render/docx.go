package render

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fumiama/go-docx"

	"github.com/specforge/specforge/internal/markdown"
)

const (
	tableWidthTwips = 9000
	headerShade     = "D9E2F3"
	codeShade       = "F2F2F2"
	monoFont        = "Consolas"
	listIndent      = "    "
)

// headingSizes maps heading level to run size in half-points.
var headingSizes = map[int]string{1: "36", 2: "32", 3: "28", 4: "26"}

// ExportDocx parses markdown with the same parser the HTML view uses
// and writes a .docx document. The preview and the export must derive
// from one parse, never two divergent implementations.
func ExportDocx(w io.Writer, markdownText, title string) error {
	nodes := markdown.Parse(markdownText, markdown.DefaultOptions())
	doc := BuildDocx(nodes, title)
	if _, err := doc.WriteTo(w); err != nil {
		return fmt.Errorf("write docx: %w", err)
	}
	return nil
}

// BuildDocx maps each block node to one or more document constructs,
// prefixed by a fixed title block and a generation timestamp.
func BuildDocx(nodes []markdown.BlockNode, title string) *docx.Docx {
	doc := docx.New().WithDefaultTheme()

	doc.AddParagraph().AddText(title).Size("40").Bold()
	stamp := time.Now().Format("02/01/2006 15:04")
	doc.AddParagraph().AddText("Généré le " + stamp).Size("18").Color("808080")
	doc.AddParagraph()

	for _, node := range nodes {
		appendBlock(doc, node)
	}
	return doc
}

func appendBlock(doc *docx.Docx, node markdown.BlockNode) {
	switch v := node.(type) {
	case markdown.Heading:
		para := doc.AddParagraph()
		size := headingSizes[v.Level]
		for _, n := range v.Inline {
			run := addInlineRun(para, n)
			run.Size(size).Bold()
		}
	case markdown.Paragraph:
		para := doc.AddParagraph()
		for _, n := range v.Inline {
			addInlineRun(para, n)
		}
	case markdown.List:
		for i, item := range v.Items {
			para := doc.AddParagraph()
			prefix := listIndent + "• "
			if v.Ordered {
				prefix = fmt.Sprintf("%s%d. ", listIndent, i+1)
			}
			para.AddText(prefix)
			for _, n := range item {
				addInlineRun(para, n)
			}
		}
	case markdown.CodeBlock:
		for _, line := range strings.Split(v.Text, "\n") {
			doc.AddParagraph().AddText(line).
				Font(monoFont, "", monoFont, "cs").
				Shade("clear", "auto", codeShade)
		}
	case markdown.Table:
		appendTable(doc, v)
	case markdown.HorizontalRule:
		// The library has no paragraph-border API; a thin gray line
		// stands in for the bottom-border-only paragraph.
		doc.AddParagraph().AddText(strings.Repeat("─", 60)).Color("CCCCCC").Size("12")
	case markdown.EmptyLine:
		doc.AddParagraph()
	}
}

func appendTable(doc *docx.Docx, t markdown.Table) {
	cols := len(t.Header)
	if cols == 0 {
		return
	}
	tbl := doc.AddTable(len(t.Rows)+1, cols, tableWidthTwips, nil)

	for c, cell := range t.Header {
		para := tbl.TableRows[0].TableCells[c].AddParagraph()
		for _, n := range cell {
			addInlineRun(para, n).Bold().Shade("clear", "auto", headerShade)
		}
	}
	for r, row := range t.Rows {
		for c, cell := range row {
			if c >= cols {
				break
			}
			para := tbl.TableRows[r+1].TableCells[c].AddParagraph()
			for _, n := range cell {
				addInlineRun(para, n)
			}
		}
	}
}

// addInlineRun maps one inline node to a styled text run. Links
// degrade to plain text runs.
func addInlineRun(para *docx.Paragraph, node markdown.InlineNode) *docx.Run {
	switch v := node.(type) {
	case markdown.Text:
		return para.AddText(v.Content)
	case markdown.Bold:
		return para.AddText(v.Content).Bold()
	case markdown.Italic:
		return para.AddText(v.Content).Italic()
	case markdown.Code:
		return para.AddText(v.Content).
			Font(monoFont, "", monoFont, "cs").
			Shade("clear", "auto", codeShade)
	case markdown.Link:
		return para.AddText(v.Content)
	default:
		return para.AddText("")
	}
}
