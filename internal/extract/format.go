package extract

import (
	"path/filepath"
	"strings"
)

// Format is the closed set of input families the pipeline can read.
type Format int

const (
	FormatUnknown Format = iota
	FormatPDF
	FormatCSV
	FormatExcel
	FormatImage
	FormatDocument
)

func (f Format) String() string {
	switch f {
	case FormatPDF:
		return "pdf"
	case FormatCSV:
		return "csv"
	case FormatExcel:
		return "excel"
	case FormatImage:
		return "image"
	case FormatDocument:
		return "document"
	default:
		return "unknown"
	}
}

var extensions = map[string]Format{
	".pdf":      FormatPDF,
	".csv":      FormatCSV,
	".xlsx":     FormatExcel,
	".xls":      FormatExcel,
	".png":      FormatImage,
	".jpg":      FormatImage,
	".jpeg":     FormatImage,
	".tiff":     FormatImage,
	".bmp":      FormatImage,
	".docx":     FormatDocument,
	".pptx":     FormatDocument,
	".html":     FormatDocument,
	".json":     FormatDocument,
	".txt":      FormatDocument,
	".text":     FormatDocument,
	".md":       FormatDocument,
	".markdown": FormatDocument,
}

// DetectFormat maps a filename to its Format by extension, ignoring case.
func DetectFormat(filename string) (Format, bool) {
	f, ok := extensions[extension(filename)]
	return f, ok
}

// SupportedExtensions lists every extension DetectFormat accepts.
func SupportedExtensions() []string {
	exts := make([]string, 0, len(extensions))
	for ext := range extensions {
		exts = append(exts, ext)
	}
	return exts
}

func extension(filename string) string {
	return strings.ToLower(filepath.Ext(filename))
}
