package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"impar/api/internal/content"
)

// DocumentExtractor converts a whole office, markup or text file into a
// single unit whose kind is the file extension without the dot.
type DocumentExtractor struct{}

func NewDocumentExtractor() *DocumentExtractor {
	return &DocumentExtractor{}
}

func (e *DocumentExtractor) Extract(_ context.Context, source string, data []byte) ([]content.Unit, error) {
	ext := extension(source)

	var (
		text string
		err  error
	)
	switch ext {
	case ".docx":
		text, err = docxText(data)
	case ".pptx":
		text, err = pptxText(data)
	case ".html":
		text, err = htmlText(data)
	case ".json":
		text, err = jsonText(data)
	default:
		text = plainText(data)
	}
	if err != nil {
		return nil, &ExtractionError{Filename: source, Format: FormatDocument, Err: err}
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	return []content.Unit{{
		Text:     text,
		Source:   source,
		Location: content.LocationFullDocument,
		Kind:     content.Kind(strings.TrimPrefix(ext, ".")),
	}}, nil
}

func plainText(data []byte) string {
	data = trimBOM(data)
	if utf8.Valid(data) {
		return string(data)
	}
	return strings.ToValidUTF8(string(data), "�")
}

func jsonText(data []byte) (string, error) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, trimBOM(data), "", "  "); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func htmlText(data []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	doc.Find("script, style, head, noscript, template").Remove()
	return VisibleText(doc.Selection), nil
}

// VisibleText returns every non-blank text node under sel, trimmed, one per
// line, in document order.
func VisibleText(sel *goquery.Selection) string {
	var lines []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				lines = append(lines, t)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range sel.Nodes {
		walk(n)
	}
	return strings.Join(lines, "\n")
}

func docxText(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		raw, err := readZipFile(f)
		if err != nil {
			return "", err
		}
		return ooxmlText(raw)
	}
	return "", errors.New("word/document.xml not found")
}

func pptxText(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	type slide struct {
		n int
		f *zip.File
	}
	var slides []slide
	for _, f := range zr.File {
		name := strings.TrimPrefix(f.Name, "ppt/slides/slide")
		if name == f.Name || !strings.HasSuffix(name, ".xml") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(name, ".xml"))
		if err != nil {
			continue
		}
		slides = append(slides, slide{n: n, f: f})
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].n < slides[j].n })

	var b strings.Builder
	for _, s := range slides {
		raw, err := readZipFile(s.f)
		if err != nil {
			return "", err
		}
		text, err := ooxmlText(raw)
		if err != nil {
			return "", fmt.Errorf("slide %d: %w", s.n, err)
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "## Slide %d\n", s.n)
		b.WriteString(text)
	}
	return b.String(), nil
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// ooxmlText collects the <t> runs of a WordprocessingML or DrawingML part,
// ending a line at every paragraph.
func ooxmlText(raw []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(raw))

	var (
		b      strings.Builder
		line   strings.Builder
		inText bool
	)
	flush := func() {
		if t := strings.TrimSpace(line.String()); t != "" {
			if b.Len() > 0 {
				b.WriteString("\n")
			}
			b.WriteString(t)
		}
		line.Reset()
	}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				line.WriteString("\t")
			case "br":
				line.WriteString("\n")
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				flush()
			}
		case xml.CharData:
			if inText {
				line.Write(t)
			}
		}
	}
	flush()
	return b.String(), nil
}
