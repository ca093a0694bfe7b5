//go:build !cgo

package extract

import "context"

// TesseractOCR needs cgo; without it every call reports ErrOCRUnavailable.
type TesseractOCR struct{}

func NewTesseractOCR(string) *TesseractOCR {
	return &TesseractOCR{}
}

func (t *TesseractOCR) Recognize(context.Context, []byte) (string, error) {
	return "", ErrOCRUnavailable
}
