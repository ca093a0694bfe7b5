package extract

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"

	"impar/api/internal/content"
)

// CSVExtractor emits one unit per data row.
type CSVExtractor struct{}

func NewCSVExtractor() *CSVExtractor {
	return &CSVExtractor{}
}

func (e *CSVExtractor) Extract(_ context.Context, source string, data []byte) ([]content.Unit, error) {
	r := csv.NewReader(bytes.NewReader(trimBOM(data)))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, &ExtractionError{Filename: source, Format: FormatCSV, Err: err}
	}
	return rowsToUnits(records, source, content.KindCSV), nil
}

// ExcelExtractor reads the first sheet of an .xlsx or legacy .xls workbook.
type ExcelExtractor struct{}

func NewExcelExtractor() *ExcelExtractor {
	return &ExcelExtractor{}
}

func (e *ExcelExtractor) Extract(_ context.Context, source string, data []byte) ([]content.Unit, error) {
	var (
		records [][]string
		err     error
	)
	if extension(source) == ".xls" {
		records, err = readXLS(data)
	} else {
		records, err = readXLSX(data)
	}
	if err != nil {
		return nil, &ExtractionError{Filename: source, Format: FormatExcel, Err: err}
	}
	return rowsToUnits(records, source, content.KindExcel), nil
}

func readXLSX(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	return f.GetRows(sheets[0])
}

func readXLS(data []byte) (records [][]string, err error) {
	// the xls reader panics on truncated compound documents
	defer func() {
		if rec := recover(); rec != nil {
			records, err = nil, fmt.Errorf("malformed xls: %v", rec)
		}
	}()

	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, err
	}
	sheet := wb.GetSheet(0)
	if sheet == nil {
		return nil, errors.New("workbook has no sheets")
	}

	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := sheet.Row(i)
		if row == nil {
			records = append(records, nil)
			continue
		}
		cells := make([]string, row.LastCol())
		for j := row.FirstCol(); j < row.LastCol(); j++ {
			cells[j] = row.Col(j)
		}
		records = append(records, cells)
	}
	return records, nil
}

// rowsToUnits treats the first record as the header and renders every
// following row as "column: value" lines, skipping empty cells. Row numbers
// count every data row, including the ones dropped for being blank.
func rowsToUnits(records [][]string, source string, kind content.Kind) []content.Unit {
	if len(records) == 0 {
		return nil
	}
	header := columnNames(records[0])

	var units []content.Unit
	for i, row := range records[1:] {
		var parts []string
		for j, cell := range row {
			if cell == "" {
				continue
			}
			parts = append(parts, fmt.Sprintf("%s: %s", columnName(header, j), cell))
		}

		text := strings.Join(parts, "\n")
		if strings.TrimSpace(text) == "" {
			continue
		}
		units = append(units, content.Unit{
			Text:     text,
			Source:   source,
			Location: content.RowLocation(i + 1),
			Kind:     kind,
		})
	}
	return units
}

// columnNames fills blank headers and disambiguates repeated ones.
func columnNames(raw []string) []string {
	seen := make(map[string]int, len(raw))
	names := make([]string, len(raw))
	for i, name := range raw {
		name = strings.TrimSpace(name)
		if name == "" {
			name = fmt.Sprintf("Unnamed: %d", i)
		}
		if n := seen[name]; n > 0 {
			seen[name] = n + 1
			name = fmt.Sprintf("%s.%d", name, n)
		} else {
			seen[name] = 1
		}
		names[i] = name
	}
	return names
}

func columnName(header []string, i int) string {
	if i < len(header) {
		return header[i]
	}
	return fmt.Sprintf("Unnamed: %d", i)
}

func trimBOM(data []byte) []byte {
	return bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
}
