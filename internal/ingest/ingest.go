package ingest

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/specforge/specforge/internal/model/attachment"
)

const (
	// MaxRawBytes is the hard per-file ceiling; larger files are
	// rejected outright with no confirmation path.
	MaxRawBytes = 5 << 20
	// MaxTextBytes caps extracted text; beyond it the user must
	// confirm truncation.
	MaxTextBytes = 200 << 10
)

// FileKind is the closed set of recognized attachment types; each
// extraction arm is a pure bytes-to-text function.
type FileKind int

const (
	KindUnknown FileKind = iota
	KindImage
	KindPDF
	KindWord
	KindPlainText
)

// DetectKind classifies a file by MIME type, falling back to the
// filename extension.
func DetectKind(name, mime string) FileKind {
	mime = strings.ToLower(strings.TrimSpace(mime))
	ext := strings.ToLower(filepath.Ext(name))

	switch {
	case strings.HasPrefix(mime, "image/"):
		return KindImage
	case mime == "application/pdf" || ext == ".pdf":
		return KindPDF
	case mime == "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		mime == "application/msword", ext == ".docx", ext == ".doc":
		return KindWord
	case strings.HasPrefix(mime, "text/"), ext == ".txt", ext == ".md", ext == ".markdown":
		return KindPlainText
	}
	return KindUnknown
}

// ConfirmationKind tells the UI which dialog to show.
type ConfirmationKind string

const (
	ConfirmTruncate ConfirmationKind = "truncate"
)

// Verdict is the outcome of validating one file before send.
type Verdict struct {
	OK                bool             `json:"ok"`
	Rejection         string           `json:"rejection,omitempty"`
	NeedsConfirmation bool             `json:"needsConfirmation"`
	ConfirmationKind  ConfirmationKind `json:"confirmationKind,omitempty"`
	// ExtractedContent carries eagerly extracted text so it is not
	// re-extracted at materialize time.
	ExtractedContent string `json:"extractedContent,omitempty"`
}

// Pipeline validates and normalizes untrusted user files. Timeouts are
// explicit fields, not package globals.
type Pipeline struct {
	PDFTimeout  time.Duration
	ReadTimeout time.Duration
}

// NewPipeline returns a pipeline with the standard operation timeouts.
func NewPipeline() *Pipeline {
	return &Pipeline{
		PDFTimeout:  60 * time.Second,
		ReadTimeout: 30 * time.Second,
	}
}

// Validate applies the ingestion rules in order: size ceiling, image
// pass-through, eager text extraction with a truncation confirmation
// when oversized, and deferred extraction for anything else.
func (p *Pipeline) Validate(ctx context.Context, name, mime string, data []byte) Verdict {
	if len(data) > MaxRawBytes {
		return Verdict{
			Rejection: fmt.Sprintf("le fichier dépasse la limite de %d Mo, choisissez un fichier plus petit", MaxRawBytes>>20),
		}
	}

	kind := DetectKind(name, mime)
	switch kind {
	case KindImage:
		return Verdict{OK: true}
	case KindPDF, KindWord, KindPlainText:
		text, err := p.extract(ctx, kind, name, data)
		if err != nil {
			// Extraction failure is handled at materialize time by a
			// placeholder attachment; validation still accepts.
			log.Printf("[ingest] eager extraction failed for %s: %v", name, err)
			return Verdict{OK: true}
		}
		if len(text) > MaxTextBytes {
			return Verdict{
				OK:                true,
				NeedsConfirmation: true,
				ConfirmationKind:  ConfirmTruncate,
				ExtractedContent:  text,
			}
		}
		return Verdict{OK: true, ExtractedContent: text}
	}
	return Verdict{OK: true}
}

// Materialize turns a validated file into a ProcessedFile. Extraction
// errors degrade to a placeholder text attachment and never fail the
// send.
func (p *Pipeline) Materialize(ctx context.Context, name, mime string, data []byte, extracted string) (attachment.ProcessedFile, error) {
	kind := DetectKind(name, mime)

	if kind == KindImage {
		return p.materializeImage(name, mime, data)
	}

	text := extracted
	if text == "" {
		var err error
		text, err = p.extract(ctx, kind, name, data)
		if err != nil {
			log.Printf("[ingest] extraction failed for %s: %v", name, err)
			return placeholderFile(name, err), nil
		}
	}

	file := attachment.ProcessedFile{Kind: attachment.KindText, Name: name}
	file.Content, file.WasTruncated = TruncateText(text)
	return file, nil
}

func (p *Pipeline) materializeImage(name, mime string, data []byte) (attachment.ProcessedFile, error) {
	file := attachment.ProcessedFile{Kind: attachment.KindImage, Name: name}

	encoded, resized, err := NormalizeImage(data)
	if err != nil {
		log.Printf("[ingest] image decode failed for %s: %v", name, err)
		return placeholderFile(name, err), nil
	}
	if resized {
		file.Content = "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(encoded)
		file.WasResized = true
		return file, nil
	}

	if mime == "" {
		mime = "image/png"
	}
	file.Content = "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
	return file, nil
}

// extract dispatches over the closed file-kind set.
func (p *Pipeline) extract(ctx context.Context, kind FileKind, name string, data []byte) (string, error) {
	switch kind {
	case KindPDF:
		return runWithTimeout(ctx, p.PDFTimeout, "pdf extraction", func() (string, error) {
			return ExtractPDFText(data)
		})
	case KindWord:
		return runWithTimeout(ctx, p.ReadTimeout, "word extraction", func() (string, error) {
			return ExtractWordText(name, data)
		})
	case KindPlainText, KindUnknown:
		return runWithTimeout(ctx, p.ReadTimeout, "file read", func() (string, error) {
			return fmt.Sprintf("[File: %s]\n%s", name, string(data)), nil
		})
	}
	return "", fmt.Errorf("no extractor for kind %d", kind)
}

func placeholderFile(name string, err error) attachment.ProcessedFile {
	return attachment.ProcessedFile{
		Kind:    attachment.KindText,
		Name:    name,
		Content: fmt.Sprintf("[Fichier: %s — contenu illisible: %v]", name, err),
	}
}

// runWithTimeout rejects with a descriptive error when an extraction
// exceeds its budget. Aborts via ctx surface as ctx.Err so callers can
// tell them apart from genuine failures. Extractor panics on malformed
// input are converted to errors; the goroutine runs outside the HTTP
// handler, so a panic here would otherwise kill the process.
func runWithTimeout(ctx context.Context, d time.Duration, op string, fn func() (string, error)) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type result struct {
		text string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				ch <- result{"", fmt.Errorf("%s panicked: %v", op, p)}
			}
		}()
		text, err := fn()
		ch <- result{text, err}
	}()

	select {
	case r := <-ch:
		return r.text, r.err
	case <-ctx.Done():
		if err := context.Cause(ctx); err != context.DeadlineExceeded {
			return "", err
		}
		return "", fmt.Errorf("%s exceeded the %s limit", op, d)
	}
}
