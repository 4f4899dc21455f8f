// Package tabular reads scenario definition and policy tables from CSV and
// XLSX files.
package tabular

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

var ErrUnsupportedFormat = errors.New("tabular: unsupported table format")

// Table is a header plus its records. Blank records are dropped.
type Table struct {
	Header  []string
	Records [][]string
}

// Column returns the index of name, matched case-insensitively, or -1.
func (t Table) Column(names ...string) int {
	for i, column := range t.Header {
		for _, name := range names {
			if strings.EqualFold(strings.TrimSpace(column), name) {
				return i
			}
		}
	}
	return -1
}

// ReadOption adjusts how a table file is read.
type ReadOption func(*readConfig)

type readConfig struct {
	sheet string
}

// WithSheet selects the workbook sheet read from XLSX files. The first sheet
// is read by default.
func WithSheet(name string) ReadOption {
	return func(cfg *readConfig) {
		cfg.sheet = name
	}
}

// Read loads the table at path. The format follows the file extension.
func Read(path string, opts ...ReadOption) (Table, error) {
	cfg := readConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		file, err := os.Open(path)
		if err != nil {
			return Table{}, fmt.Errorf("tabular: %w", err)
		}
		defer file.Close()
		table, err := ReadCSV(file)
		if err != nil {
			return Table{}, fmt.Errorf("tabular: %s: %w", path, err)
		}
		return table, nil
	case ".xlsx", ".xlsm":
		table, err := readXLSX(path, cfg.sheet)
		if err != nil {
			return Table{}, fmt.Errorf("tabular: %s: %w", path, err)
		}
		return table, nil
	default:
		return Table{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ReadCSV parses CSV from r. Rows may be shorter than the header.
func ReadCSV(r io.Reader) (Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Table{}, err
	}
	reader := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, utf8BOM)))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.Comment = '#'
	rows, err := reader.ReadAll()
	if err != nil {
		return Table{}, err
	}
	return fromRows(rows)
}

func readXLSX(path, sheet string) (Table, error) {
	file, err := excelize.OpenFile(path)
	if err != nil {
		return Table{}, err
	}
	defer file.Close()

	if sheet == "" {
		sheets := file.GetSheetList()
		if len(sheets) == 0 {
			return Table{}, errors.New("workbook has no sheets")
		}
		sheet = sheets[0]
	}
	rows, err := file.GetRows(sheet)
	if err != nil {
		return Table{}, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}
	return fromRows(rows)
}

func fromRows(rows [][]string) (Table, error) {
	var table Table
	for _, row := range rows {
		if blank(row) {
			continue
		}
		if table.Header == nil {
			table.Header = trimAll(row)
			continue
		}
		table.Records = append(table.Records, trimAll(row))
	}
	if table.Header == nil {
		return Table{}, errors.New("table has no header row")
	}
	return table, nil
}

func blank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func trimAll(row []string) []string {
	out := make([]string, len(row))
	for i, cell := range row {
		out[i] = strings.TrimSpace(cell)
	}
	return out
}
