// Package reader loads per-country source tables from disk and presents
// them as ordered column-name → value mappings for the pipeline. CSV and
// XLSX sources are supported; an inline HXL tag row passes through as the
// first mapping for the pipeline to translate.
package reader

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"opresence/pipeline"
)

var _ pipeline.RowReader = (*FileReader)(nil)

// FileReader reads country tables from local files.
type FileReader struct {
	logger *slog.Logger
}

// New creates a file-backed row reader.
func New() *FileReader {
	return &FileReader{logger: slog.Default().With("component", "reader")}
}

// ReadRows reads the configured source table. The format comes from the
// configuration, falling back to the file extension.
func (r *FileReader) ReadRows(cfg *pipeline.CountryConfig) ([]map[string]string, error) {
	format := strings.ToLower(cfg.Format)
	if format == "" {
		format = strings.TrimPrefix(strings.ToLower(filepath.Ext(cfg.Path)), ".")
	}

	var (
		raw [][]string
		err error
	)
	switch format {
	case "csv":
		raw, err = readCSV(cfg.Path)
	case "xlsx":
		raw, err = readXLSX(cfg.Path, cfg.Sheet)
	default:
		return nil, fmt.Errorf("unsupported source format %q for %s", format, cfg.Path)
	}
	if err != nil {
		return nil, err
	}

	rows, err := tabulate(raw, cfg.HeaderRow)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", cfg.Path, err)
	}
	r.logger.Info("Source table read",
		"country", cfg.CountryISO3,
		"path", cfg.Path,
		"format", format,
		"rows", len(rows))
	return rows, nil
}

func readCSV(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening CSV file: %w", err)
	}
	defer file.Close()

	parser := csv.NewReader(file)
	// Country tables are frequently ragged; column presence is checked per
	// cell during tabulation instead.
	parser.FieldsPerRecord = -1
	raw, err := parser.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing CSV file: %w", err)
	}
	return raw, nil
}

func readXLSX(path, sheet string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening Excel file: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	if sheet == "" {
		return nil, fmt.Errorf("no sheets found in Excel file")
	}
	raw, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("reading sheet %q: %w", sheet, err)
	}
	return raw, nil
}

// tabulate converts positional rows to header-keyed mappings. headerRow is
// 1-based; 0 selects the first row. Columns with empty headers and fully
// empty data rows are dropped.
func tabulate(raw [][]string, headerRow int) ([]map[string]string, error) {
	if headerRow < 1 {
		headerRow = 1
	}
	if len(raw) < headerRow {
		return nil, fmt.Errorf("source has no header row (want row %d of %d)", headerRow, len(raw))
	}

	headers := make([]string, len(raw[headerRow-1]))
	named := 0
	for i, header := range raw[headerRow-1] {
		headers[i] = strings.TrimSpace(header)
		if headers[i] != "" {
			named++
		}
	}
	if named == 0 {
		return nil, fmt.Errorf("header row %d is empty", headerRow)
	}

	var rows []map[string]string
	for _, cells := range raw[headerRow:] {
		if isEmptyRow(cells) {
			continue
		}
		row := make(map[string]string, named)
		for i, header := range headers {
			if header == "" {
				continue
			}
			value := ""
			if i < len(cells) {
				value = strings.TrimSpace(cells[i])
			}
			row[header] = value
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func isEmptyRow(cells []string) bool {
	for _, cell := range cells {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
