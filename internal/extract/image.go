package extract

import (
	"context"
	"errors"
	"strings"

	"impar/api/internal/content"
)

var ErrOCRUnavailable = errors.New("no OCR engine configured")

// OCR recognises the text in an encoded image.
type OCR interface {
	Recognize(ctx context.Context, image []byte) (string, error)
}

type ImageExtractor struct {
	ocr OCR
}

func NewImageExtractor(ocr OCR) *ImageExtractor {
	return &ImageExtractor{ocr: ocr}
}

// Extract returns a single full-image unit, or nothing when OCR finds no
// text. OCR failures are returned, never swallowed.
func (e *ImageExtractor) Extract(ctx context.Context, source string, data []byte) ([]content.Unit, error) {
	if e.ocr == nil {
		return nil, &ExtractionError{Filename: source, Format: FormatImage, Err: ErrOCRUnavailable}
	}

	text, err := e.ocr.Recognize(ctx, data)
	if err != nil {
		return nil, &ExtractionError{Filename: source, Format: FormatImage, Err: err}
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	return []content.Unit{{
		Text:     text,
		Source:   source,
		Location: content.LocationFullImage,
		Kind:     content.KindImageOCR,
	}}, nil
}
