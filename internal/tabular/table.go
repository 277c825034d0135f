package tabular

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnsupportedFormat indicates the uploaded file extension is not handled.
	ErrUnsupportedFormat = errors.New("tabular: unsupported file format")
	// ErrNoRows indicates the file parsed but contained no data rows.
	ErrNoRows = errors.New("tabular: no data rows")
	// ErrNoHeaders indicates the file parsed but the header row was empty.
	ErrNoHeaders = errors.New("tabular: header row empty")
)

// ParseError wraps a lower-level decoding failure with the attempted format.
type ParseError struct {
	Format string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("tabular: parse %s: %v", e.Format, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Row maps a header name to the raw cell value for one data row.
type Row map[string]string

// Table is the normalized result of parsing an uploaded spreadsheet.
// Headers keep the original column order; every row carries a value
// (possibly empty) for every header.
type Table struct {
	Headers   []string `json:"headers"`
	Rows      []Row    `json:"rows"`
	TotalRows int      `json:"total_rows"`
}

// Value returns the cell for (rowIndex, header), or "" when the row or
// column is absent.
func (t Table) Value(rowIndex int, header string) string {
	if rowIndex < 0 || rowIndex >= len(t.Rows) {
		return ""
	}
	return t.Rows[rowIndex][header]
}

// buildTable converts a raw cell grid (first record = headers) into a Table,
// enforcing header uniqueness and the value-per-header invariant.
func buildTable(records [][]string) (Table, error) {
	if len(records) == 0 {
		return Table{}, ErrNoRows
	}
	headers := normalizeHeaders(records[0])
	if len(headers) == 0 {
		return Table{}, ErrNoHeaders
	}
	rows := make([]Row, 0, len(records)-1)
	for _, record := range records[1:] {
		if isBlankRecord(record) {
			continue
		}
		row := make(Row, len(headers))
		for i, header := range headers {
			if i < len(record) {
				row[header] = strings.TrimSpace(record[i])
			} else {
				row[header] = ""
			}
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return Table{}, ErrNoRows
	}
	return Table{Headers: headers, Rows: rows, TotalRows: len(rows)}, nil
}

// normalizeHeaders trims header cells, drops trailing blanks and suffixes
// duplicates so every header is unique.
func normalizeHeaders(raw []string) []string {
	trimmed := make([]string, len(raw))
	last := -1
	for i, cell := range raw {
		trimmed[i] = strings.TrimSpace(cell)
		if trimmed[i] != "" {
			last = i
		}
	}
	if last < 0 {
		return nil
	}
	trimmed = trimmed[:last+1]

	taken := make(map[string]bool, len(trimmed))
	counts := make(map[string]int, len(trimmed))
	headers := make([]string, 0, len(trimmed))
	for i, header := range trimmed {
		if header == "" {
			header = fmt.Sprintf("column_%d", i+1)
		}
		// Suffix duplicates, skipping candidates the sheet already uses
		// as literal headers so the result stays collision free.
		name := header
		for taken[name] {
			counts[header]++
			name = fmt.Sprintf("%s_%d", header, counts[header]+1)
		}
		taken[name] = true
		headers = append(headers, name)
	}
	return headers
}

func isBlankRecord(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
