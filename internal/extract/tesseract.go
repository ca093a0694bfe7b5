//go:build cgo

package extract

import (
	"context"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// TesseractOCR runs the local tesseract engine. A fresh client is used per
// call because gosseract clients are not safe for concurrent use.
type TesseractOCR struct {
	languages []string
}

// NewTesseractOCR accepts tesseract's "por+eng" language notation.
func NewTesseractOCR(languages string) *TesseractOCR {
	var langs []string
	for _, l := range strings.Split(languages, "+") {
		if l = strings.TrimSpace(l); l != "" {
			langs = append(langs, l)
		}
	}
	return &TesseractOCR{languages: langs}
}

func (t *TesseractOCR) Recognize(ctx context.Context, image []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	client := gosseract.NewClient()
	defer client.Close()

	if len(t.languages) > 0 {
		if err := client.SetLanguage(t.languages...); err != nil {
			return "", err
		}
	}
	if err := client.SetImageFromBytes(image); err != nil {
		return "", err
	}
	return client.Text()
}
