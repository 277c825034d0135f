package tabular

import (
	"strconv"
	"strings"
)

// classifySampleLimit caps the number of rows sampled per column.
const classifySampleLimit = 50

// ColumnInfo describes a single column for mapping heuristics and UI hints.
// The numeric flag is advisory only and never used for validation.
type ColumnInfo struct {
	Name      string `json:"name"`
	IsNumeric bool   `json:"is_numeric"`
}

// ClassifyColumns samples each column's non-empty values and marks it
// numeric when a majority of samples parse as numbers. Coercion failures
// on individual cells are silently treated as non-numeric.
func ClassifyColumns(t Table) []ColumnInfo {
	infos := make([]ColumnInfo, 0, len(t.Headers))
	for _, header := range t.Headers {
		numeric, nonEmpty := 0, 0
		for i, row := range t.Rows {
			if i >= classifySampleLimit {
				break
			}
			value := strings.TrimSpace(row[header])
			if value == "" {
				continue
			}
			nonEmpty++
			if isNumericValue(value) {
				numeric++
			}
		}
		infos = append(infos, ColumnInfo{
			Name:      header,
			IsNumeric: nonEmpty > 0 && numeric*2 > nonEmpty,
		})
	}
	return infos
}

func isNumericValue(value string) bool {
	value = strings.ReplaceAll(value, ",", "")
	value = strings.TrimSuffix(value, "%")
	_, err := strconv.ParseFloat(value, 64)
	return err == nil
}
