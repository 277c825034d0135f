package tabular

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// WriteSample emits a minimal workbook whose header row is exactly the
// supplied column names, followed by one illustrative data row. Teachers
// download this to author their data file with headers that auto-map
// cleanly.
func WriteSample(w io.Writer, headers []string, example []string) error {
	if len(headers) == 0 {
		return fmt.Errorf("tabular: sample requires at least one header")
	}
	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()
	sheet := f.GetSheetName(0)

	headerRow := make([]interface{}, len(headers))
	for i, h := range headers {
		headerRow[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &headerRow); err != nil {
		return fmt.Errorf("tabular: sample header row: %w", err)
	}
	if len(example) > 0 {
		exampleRow := make([]interface{}, len(example))
		for i, v := range example {
			exampleRow[i] = v
		}
		if err := f.SetSheetRow(sheet, "A2", &exampleRow); err != nil {
			return fmt.Errorf("tabular: sample example row: %w", err)
		}
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("tabular: write sample: %w", err)
	}
	return nil
}
