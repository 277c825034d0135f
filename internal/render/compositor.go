package render

import "strings"

// Compose builds the surface for one row. Elements are emitted in canvas
// order. An element contributes no overlay at all when it is hidden, when
// it references no known field, or when the field's value is empty. Both
// capture backends must see the same composition, so suppression happens
// here and nowhere else.
func Compose(canvas Canvas, fields []Field, values map[string]string) Surface {
	byID := make(map[string]Field, len(fields))
	for _, field := range fields {
		byID[field.ID] = field
	}

	overlays := make([]Overlay, 0, len(canvas.Elements))
	for _, element := range canvas.Elements {
		if !element.Visible {
			continue
		}
		field, ok := byID[element.FieldID]
		if !ok {
			continue
		}
		value := strings.TrimSpace(values[element.FieldID])
		if value == "" {
			continue
		}
		overlays = append(overlays, Overlay{Element: element, Type: field.Type, Value: value})
	}
	return Surface{Canvas: canvas, Overlays: overlays}
}
