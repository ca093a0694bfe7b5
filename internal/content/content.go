// Package content holds the provenance-tagged values that flow from
// extraction through chunking into the retrieval store.
package content

import (
	"fmt"
	"path/filepath"
	"strings"
)

type Kind string

const (
	KindPDF       Kind = "pdf"
	KindCSV       Kind = "csv"
	KindExcel     Kind = "excel"
	KindImageOCR  Kind = "image_ocr"
	KindWebScrape Kind = "web_scrape"
)

const (
	LocationFullImage    = "full image"
	LocationFullDocument = "full document"
	LocationWebPage      = "web page"
)

// Unit is a piece of extracted text with its origin.
type Unit struct {
	Text     string
	Source   string
	Location string
	Kind     Kind
}

type Metadata struct {
	Source   string `json:"source"`
	Location string `json:"location"`
	Kind     Kind   `json:"type"`
}

type Chunk struct {
	Text     string   `json:"text"`
	Metadata Metadata `json:"metadata"`
}

func (u Unit) Metadata() Metadata {
	return Metadata{Source: u.Source, Location: u.Location, Kind: u.Kind}
}

func PageLocation(n int) string { return fmt.Sprintf("page %d", n) }

func RowLocation(n int) string { return fmt.Sprintf("row %d", n) }

// FileSource normalises an uploaded filename into the identifier used
// for exists and filter lookups.
func FileSource(filename string) string {
	name := strings.ReplaceAll(filename, "\\", "/")
	return strings.ToLower(filepath.Base(name))
}
