// Package templates exposes the visual template store to the bulk
// generation pipeline. Templates are authored elsewhere; this package only
// reads them.
package templates

import (
	"errors"
	"time"

	"github.com/tawthiq/tawthiq/internal/mapping"
	"github.com/tawthiq/tawthiq/internal/render"
)

var (
	// ErrTemplateNotFound indicates the template id does not exist.
	ErrTemplateNotFound = errors.New("templates: not found")
	// ErrTemplateNotUsable indicates the template lacks a canvas or fields
	// and cannot drive bulk generation.
	ErrTemplateNotUsable = errors.New("templates: not usable for bulk generation")
)

// Template pairs a canvas with its declared fields.
type Template struct {
	ID        int64
	Name      string
	Canvas    render.Canvas
	Fields    []render.Field
	IsActive  bool
	CreatedAt time.Time
}

// Usable reports whether the template can drive bulk generation: it needs
// at least one field and a canvas with real dimensions.
func (t Template) Usable() bool {
	return len(t.Fields) > 0 && t.Canvas.Width > 0 && t.Canvas.Height > 0
}

// FieldDescriptors projects the fields into the shape the auto-mapper
// consumes.
func (t Template) FieldDescriptors() []mapping.FieldDescriptor {
	descriptors := make([]mapping.FieldDescriptor, 0, len(t.Fields))
	for _, field := range t.Fields {
		descriptors = append(descriptors, mapping.FieldDescriptor{
			ID:     field.ID,
			Name:   field.Name,
			Labels: field.LabelList(),
		})
	}
	return descriptors
}

// SampleHeaders returns the column names for the downloadable sample file:
// the localized label when one exists, else the machine name.
func (t Template) SampleHeaders() []string {
	headers := make([]string, 0, len(t.Fields))
	for _, field := range t.Fields {
		if labels := field.LabelList(); len(labels) > 0 && labels[0] != "" {
			headers = append(headers, labels[0])
			continue
		}
		headers = append(headers, field.Name)
	}
	return headers
}

// SampleExample returns one illustrative row matching SampleHeaders.
func (t Template) SampleExample() []string {
	example := make([]string, 0, len(t.Fields))
	for _, field := range t.Fields {
		switch field.Type {
		case render.FieldDate:
			example = append(example, time.Now().Format("2006-01-02"))
		case render.FieldImage, render.FieldSignature:
			example = append(example, "https://example.com/image.png")
		default:
			example = append(example, "...")
		}
	}
	return example
}
