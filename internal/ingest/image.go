package ingest

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

const (
	// MaxImageDimension bounds the longer side after resizing.
	MaxImageDimension = 1500
	// resizeByteThreshold triggers resizing on byte size alone, so a
	// heavy image is always brought down; dimension checks catch
	// large-canvas low-byte images that would otherwise bypass it.
	resizeByteThreshold = 1 << 20

	jpegQuality = 80
)

// NormalizeImage validates that data decodes as an image and resizes
// it when it is over the byte threshold or over the dimension bound.
// Resized output is always a fixed-quality JPEG regardless of the
// original format. Returns the (possibly re-encoded) bytes and whether
// a resize happened.
func NormalizeImage(data []byte) ([]byte, bool, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, false, fmt.Errorf("decode image config: %w", err)
	}

	needsResize := len(data) > resizeByteThreshold ||
		cfg.Width > MaxImageDimension || cfg.Height > MaxImageDimension
	if !needsResize {
		return data, false, nil
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, false, fmt.Errorf("decode image: %w", err)
	}

	resized := imaging.Fit(img, MaxImageDimension, MaxImageDimension, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return nil, false, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), true, nil
}
