package extract

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"impar/api/internal/content"
)

// PDFExtractor emits one unit per page that has text.
type PDFExtractor struct{}

func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{}
}

func (e *PDFExtractor) Extract(ctx context.Context, source string, data []byte) (units []content.Unit, err error) {
	// the pdf reader panics on some malformed xref tables
	defer func() {
		if rec := recover(); rec != nil {
			units = nil
			err = &ExtractionError{Filename: source, Format: FormatPDF, Err: fmt.Errorf("malformed pdf: %v", rec)}
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, &ExtractionError{Filename: source, Format: FormatPDF, Err: err}
	}

	for i := 1; i <= reader.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, &ExtractionError{Filename: source, Format: FormatPDF, Err: fmt.Errorf("page %d: %w", i, err)}
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		units = append(units, content.Unit{
			Text:     text,
			Source:   source,
			Location: content.PageLocation(i),
			Kind:     content.KindPDF,
		})
	}
	return units, nil
}
