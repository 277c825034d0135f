// Package render composes a template canvas and one row of mapped values
// into a fixed-size visual surface. Composition is pure: the same inputs
// always yield a structurally identical surface.
package render

// FieldType enumerates the kinds of slots a template declares.
type FieldType string

const (
	FieldText      FieldType = "text"
	FieldTextarea  FieldType = "textarea"
	FieldImage     FieldType = "image"
	FieldDate      FieldType = "date"
	FieldSelect    FieldType = "select"
	FieldSignature FieldType = "signature"
)

// Field is a named, typed slot in a template. Labels are keyed by locale.
type Field struct {
	ID       string            `json:"id"`
	Name     string            `json:"name"`
	Labels   map[string]string `json:"labels"`
	Type     FieldType         `json:"type"`
	Required bool              `json:"required"`
}

// LabelList returns the localized labels in a stable order for matching.
func (f Field) LabelList() []string {
	if len(f.Labels) == 0 {
		return nil
	}
	labels := make([]string, 0, len(f.Labels))
	// Arabic first: it is the primary authoring locale.
	if ar, ok := f.Labels["ar"]; ok {
		labels = append(labels, ar)
	}
	for locale, label := range f.Labels {
		if locale == "ar" {
			continue
		}
		labels = append(labels, label)
	}
	return labels
}

// CanvasElement is one positioned overlay. Coordinates and width are
// percentages of the canvas box in [0,100].
type CanvasElement struct {
	ID         string  `json:"id"`
	FieldID    string  `json:"field_id"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Width      float64 `json:"width"`
	FontSize   float64 `json:"font_size"`
	FontFamily string  `json:"font_family"`
	FontWeight string  `json:"font_weight"`
	Color      string  `json:"color"`
	TextAlign  string  `json:"text_align"`
	Rotation   float64 `json:"rotation"`
	Visible    bool    `json:"is_visible"`
}

// Canvas is the background image plus the ordered overlay elements,
// declared at fixed pixel dimensions.
type Canvas struct {
	BackgroundURL string          `json:"background_url"`
	Width         int             `json:"canvas_width"`
	Height        int             `json:"canvas_height"`
	Elements      []CanvasElement `json:"elements"`
}

// Landscape reports whether the canvas is wider than tall.
func (c Canvas) Landscape() bool { return c.Width > c.Height }

// Overlay is one materialized element carrying its resolved value.
type Overlay struct {
	Element CanvasElement
	Type    FieldType
	Value   string
}

// Surface is the composed result handed to a capture backend.
type Surface struct {
	Canvas   Canvas
	Overlays []Overlay
}
