package ingest

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/fumiama/go-docx"
)

// ExtractWordText pulls raw text out of a .docx via its structural
// reader and prefixes it with the document marker.
func ExtractWordText(name string, data []byte) (string, error) {
	doc, err := docx.Parse(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("parse docx: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[Document: %s]\n", name)
	for _, item := range doc.Document.Body.Items {
		switch block := item.(type) {
		case *docx.Paragraph:
			b.WriteString(block.String())
			b.WriteByte('\n')
		case *docx.Table:
			b.WriteString(block.String())
			b.WriteByte('\n')
		}
	}
	return strings.TrimRight(b.String(), "\n"), nil
}
