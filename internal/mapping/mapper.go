// Package mapping proposes column-to-field assignments for bulk document
// generation. The proposal is a best-effort default the user can override;
// the mapper itself never fails.
package mapping

import (
	"strings"

	"github.com/tawthiq/tawthiq/internal/tabular"
)

// FieldDescriptor is the slice of a template field the mapper needs.
type FieldDescriptor struct {
	ID     string
	Name   string
	Labels []string
}

// ColumnMapping associates one template field with one spreadsheet column.
// Column is empty when the field is unmapped.
type ColumnMapping struct {
	FieldID string `json:"field_id"`
	Column  string `json:"column"`
}

// AutoMap proposes a column for every field. Each field is matched against
// the full header set independently, in strict priority order: exact match,
// fuzzy substring match, alias-dictionary match, otherwise unmapped. The
// result is deterministic for a fixed (fields, headers) pair and two fields
// may map to the same header when the data is genuinely ambiguous.
func AutoMap(fields []FieldDescriptor, headers []string) []ColumnMapping {
	mappings := make([]ColumnMapping, 0, len(fields))
	for _, field := range fields {
		mappings = append(mappings, ColumnMapping{
			FieldID: field.ID,
			Column:  bestHeader(field, headers),
		})
	}
	return mappings
}

// bestHeader runs the priority tiers for a single field; first match wins.
func bestHeader(field FieldDescriptor, headers []string) string {
	if header, ok := matchExact(field, headers); ok {
		return header
	}
	if header, ok := matchFuzzy(field, headers); ok {
		return header
	}
	if header, ok := matchAlias(field, headers); ok {
		return header
	}
	return ""
}

// matchExact finds a header equal to the field's machine name or any of its
// localized labels, case-insensitively.
func matchExact(field FieldDescriptor, headers []string) (string, bool) {
	candidates := append([]string{field.Name}, field.Labels...)
	for _, header := range headers {
		h := fold(header)
		for _, candidate := range candidates {
			if candidate != "" && h == fold(candidate) {
				return header, true
			}
		}
	}
	return "", false
}

// matchFuzzy finds a header that contains, or is contained by, the field's
// machine name or a label.
func matchFuzzy(field FieldDescriptor, headers []string) (string, bool) {
	candidates := append([]string{field.Name}, field.Labels...)
	for _, header := range headers {
		h := fold(header)
		if h == "" {
			continue
		}
		for _, candidate := range candidates {
			c := fold(candidate)
			if c == "" {
				continue
			}
			if strings.Contains(h, c) || strings.Contains(c, h) {
				return header, true
			}
		}
	}
	return "", false
}

// matchAlias consults the curated alias dictionary for the field's machine
// name; containment runs in both directions so stems match inflections.
func matchAlias(field FieldDescriptor, headers []string) (string, bool) {
	aliases := aliasesFor(field.Name)
	if len(aliases) == 0 {
		return "", false
	}
	for _, header := range headers {
		h := fold(header)
		if h == "" {
			continue
		}
		for _, alias := range aliases {
			a := fold(alias)
			if strings.Contains(h, a) || strings.Contains(a, h) {
				return header, true
			}
		}
	}
	return "", false
}

func fold(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// MappedRow resolves one data row through the mappings. Fields without a
// mapping, or whose mapped column is absent from the row, resolve to "".
func MappedRow(mappings []ColumnMapping, row tabular.Row) map[string]string {
	values := make(map[string]string, len(mappings))
	for _, m := range mappings {
		if m.Column == "" {
			values[m.FieldID] = ""
			continue
		}
		values[m.FieldID] = row[m.Column]
	}
	return values
}

// MappedCount reports how many fields have a column assigned.
func MappedCount(mappings []ColumnMapping) int {
	n := 0
	for _, m := range mappings {
		if m.Column != "" {
			n++
		}
	}
	return n
}

// Duplicates lists columns claimed by more than one field so the UI can
// surface the ambiguity. The mapping itself is left as proposed.
func Duplicates(mappings []ColumnMapping) map[string][]string {
	byColumn := make(map[string][]string)
	for _, m := range mappings {
		if m.Column == "" {
			continue
		}
		byColumn[m.Column] = append(byColumn[m.Column], m.FieldID)
	}
	for column, fieldIDs := range byColumn {
		if len(fieldIDs) < 2 {
			delete(byColumn, column)
		}
	}
	return byColumn
}
