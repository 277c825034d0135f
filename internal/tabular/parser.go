package tabular

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

// maxXLSCells bounds how many cells the legacy .xls reader materializes.
const maxXLSCells = 100000

// Parse reads an uploaded spreadsheet and returns the normalized table.
// The format is selected from the file extension: .xlsx, .xls and .csv
// are supported. The first worksheet is used for workbook formats.
func Parse(r io.Reader, filename string) (Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Table{}, &ParseError{Format: "upload", Err: err}
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx":
		return parseXLSX(data)
	case ".xls":
		return parseXLS(data)
	case ".csv":
		return parseCSV(data)
	default:
		return Table{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(filename))
	}
}

func parseXLSX(data []byte) (Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return Table{}, &ParseError{Format: "xlsx", Err: err}
	}
	defer func() {
		_ = f.Close()
	}()
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return Table{}, ErrNoRows
	}
	records, err := f.GetRows(sheets[0])
	if err != nil {
		return Table{}, &ParseError{Format: "xlsx", Err: err}
	}
	return buildTable(records)
}

func parseXLS(data []byte) (Table, error) {
	workbook, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return Table{}, &ParseError{Format: "xls", Err: err}
	}
	if workbook.NumSheets() == 0 {
		return Table{}, ErrNoRows
	}
	records := workbook.ReadAllCells(maxXLSCells)
	return buildTable(records)
}

func parseCSV(data []byte) (Table, error) {
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return Table{}, &ParseError{Format: "csv", Err: err}
	}
	return buildTable(records)
}
