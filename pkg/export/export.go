// Package export writes fetched Graph records to a spreadsheet or text file.
package export

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

// ErrNoData is returned for an empty record set. Nothing is written.
var ErrNoData = errors.New("no data to save")

type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// SheetName is the single worksheet written to xlsx files.
const SheetName = "Sheet1"

// ParseFormat accepts a format name, case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "."))); f {
	case FormatXLSX, FormatCSV, FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported output format %q (want xlsx, csv or json)", s)
	}
}

// FormatFromPath picks the format from the file extension; files without an
// extension are treated as xlsx.
func FormatFromPath(path string) (Format, error) {
	ext := filepath.Ext(path)
	if ext == "" {
		return FormatXLSX, nil
	}
	return ParseFormat(ext)
}

// Summary describes a completed write.
type Summary struct {
	Path    string
	Format  Format
	Rows    int
	Columns int
	// Truncated counts xlsx cells cut to MaxCellChars. Always 0 for csv
	// and json.
	Truncated int
}

// MaxCellChars is the most characters a spreadsheet cell can hold; longer
// text is cut when written to xlsx.
const MaxCellChars = excelize.TotalCellChars

// Export flattens records and writes them to path.
func Export(path string, records []map[string]any) (Summary, error) {
	if len(records) == 0 {
		return Summary{}, ErrNoData
	}

	format, err := FormatFromPath(path)
	if err != nil {
		return Summary{}, err
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, os.ModePerm); err != nil {
			return Summary{}, fmt.Errorf("create output directory: %w", err)
		}
	}

	table := Flatten(records)
	summary := Summary{Path: path, Format: format, Rows: len(table.Rows), Columns: len(table.Columns)}

	switch format {
	case FormatXLSX:
		summary.Truncated, err = writeXLSX(path, table)
	case FormatCSV:
		err = writeCSV(path, table)
	case FormatJSON:
		err = writeJSON(path, records)
	}
	if err != nil {
		return Summary{}, fmt.Errorf("write %s: %w", path, err)
	}
	return summary, nil
}

func writeXLSX(path string, t Table) (truncated int, err error) {
	f := excelize.NewFile()
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	sw, err := f.NewStreamWriter(SheetName)
	if err != nil {
		return 0, err
	}

	header := make([]any, len(t.Columns))
	for i, c := range t.Columns {
		header[i] = c
	}
	if err := sw.SetRow("A1", header); err != nil {
		return 0, err
	}

	for i, row := range t.Rows {
		truncated += countOversized(row)
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return truncated, err
		}
		if err := sw.SetRow(cell, row); err != nil {
			return truncated, err
		}
	}

	if err := sw.Flush(); err != nil {
		return truncated, err
	}
	return truncated, f.SaveAs(path)
}

// countOversized reports how many string cells excelize will cut.
func countOversized(row []any) int {
	n := 0
	for _, v := range row {
		if s, ok := v.(string); ok && utf8.RuneCountInString(s) > MaxCellChars {
			n++
		}
	}
	return n
}

func writeCSV(path string, t Table) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write(t.Columns); err != nil {
		return err
	}
	for _, row := range t.Rows {
		rec := make([]string, len(row))
		for i, v := range row {
			rec[i] = cellString(v)
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func writeJSON(path string, records []map[string]any) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}
