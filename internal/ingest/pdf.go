package ingest

import (
	"bytes"
	"fmt"
	"math"
	"strings"

	"github.com/ledongthuc/pdf"
)

const (
	// lineBreakThreshold is the vertical jump between two positioned
	// text runs that we read as a logical line break; PDFs do not
	// encode line breaks themselves.
	lineBreakThreshold = 2.0
	// minExtractedLen below which the document is probably a scanned
	// image-only PDF.
	minExtractedLen = 40
)

// ExtractPDFText reconstructs plain text from each page's positioned
// text runs.
func ExtractPDFText(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	var b strings.Builder
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		if pageNum > 1 {
			fmt.Fprintf(&b, "\n\n--- Page %d ---\n\n", pageNum)
		}

		lastY := math.NaN()
		for _, run := range page.Content().Text {
			if !math.IsNaN(lastY) && math.Abs(run.Y-lastY) > lineBreakThreshold {
				b.WriteByte('\n')
			}
			b.WriteString(run.S)
			lastY = run.Y
		}
	}

	text := strings.TrimSpace(b.String())
	if len(text) < minExtractedLen {
		text += "\n\n[Ce document semble être un PDF scanné ou composé d'images ; le texte n'a pas pu être extrait.]"
	}
	return text, nil
}
