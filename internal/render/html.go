package render

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"sync"

	"github.com/tawthiq/tawthiq/web"
)

// HTMLOptions controls a single materialization. BidiSafe bakes
// capture-safe overrides (explicit direction, bidi-override, contextual
// font features) into overlays whose text carries right-to-left runs; the
// surface itself is never mutated, so repeated materializations stay
// independent.
type HTMLOptions struct {
	Scale    float64
	BidiSafe bool
}

var (
	surfaceTplOnce sync.Once
	surfaceTpl     *template.Template
	surfaceTplErr  error
)

func loadSurfaceTemplate() (*template.Template, error) {
	surfaceTplOnce.Do(func() {
		surfaceTpl, surfaceTplErr = template.ParseFS(web.Templates, "templates/capture/surface.html")
	})
	return surfaceTpl, surfaceTplErr
}

type overlayView struct {
	IsImage bool
	Value   string
	Src     template.URL
	Dir     string
	Style   template.CSS
}

type surfaceView struct {
	PageWidth     int
	PageHeight    int
	CanvasWidth   int
	CanvasHeight  int
	Scale         float64
	BackgroundURL template.URL
	Overlays      []overlayView
}

// HTML materializes the surface as a standalone document sized to
// scale × canvas dimensions, suitable for a browser-based capture backend.
func (s Surface) HTML(opts HTMLOptions) (string, error) {
	tpl, err := loadSurfaceTemplate()
	if err != nil {
		return "", fmt.Errorf("render: parse surface template: %w", err)
	}
	scale := opts.Scale
	if scale <= 0 {
		scale = 1
	}
	view := surfaceView{
		PageWidth:     int(float64(s.Canvas.Width) * scale),
		PageHeight:    int(float64(s.Canvas.Height) * scale),
		CanvasWidth:   s.Canvas.Width,
		CanvasHeight:  s.Canvas.Height,
		Scale:         scale,
		BackgroundURL: template.URL(s.Canvas.BackgroundURL),
		Overlays:      make([]overlayView, 0, len(s.Overlays)),
	}
	for _, overlay := range s.Overlays {
		view.Overlays = append(view.Overlays, buildOverlayView(overlay, opts.BidiSafe))
	}
	buf := &bytes.Buffer{}
	if err := tpl.Execute(buf, view); err != nil {
		return "", fmt.Errorf("render: execute surface template: %w", err)
	}
	return buf.String(), nil
}

func buildOverlayView(overlay Overlay, bidiSafe bool) overlayView {
	el := overlay.Element
	var style strings.Builder
	fmt.Fprintf(&style, "position:absolute;left:%s%%;top:%s%%;width:%s%%;",
		trimFloat(el.X), trimFloat(el.Y), trimFloat(el.Width))

	if overlay.Type == FieldImage || overlay.Type == FieldSignature {
		style.WriteString("height:auto;")
		if el.Rotation != 0 {
			fmt.Fprintf(&style, "transform:rotate(%sdeg);transform-origin:top left;", trimFloat(el.Rotation))
		}
		return overlayView{
			IsImage: true,
			Src:     template.URL(overlay.Value),
			Style:   template.CSS(style.String()),
		}
	}

	if el.FontSize > 0 {
		fmt.Fprintf(&style, "font-size:%spx;", trimFloat(el.FontSize))
	}
	family := el.FontFamily
	if family == "" {
		family = "Tajawal, Arial, sans-serif"
	} else {
		family = fmt.Sprintf("'%s', Arial, sans-serif", family)
	}
	fmt.Fprintf(&style, "font-family:%s;", family)
	if el.FontWeight != "" {
		fmt.Fprintf(&style, "font-weight:%s;", el.FontWeight)
	}
	if el.Color != "" {
		fmt.Fprintf(&style, "color:%s;", el.Color)
	}
	if el.TextAlign != "" {
		fmt.Fprintf(&style, "text-align:%s;", el.TextAlign)
	}
	if el.Rotation != 0 {
		fmt.Fprintf(&style, "transform:rotate(%sdeg);transform-origin:top left;", trimFloat(el.Rotation))
	}
	style.WriteString("white-space:pre-wrap;overflow-wrap:break-word;line-height:1.3;")

	dir := "ltr"
	if bidiSafe && ContainsRTL(overlay.Value) {
		dir = "rtl"
		style.WriteString("direction:rtl;unicode-bidi:bidi-override;")
		style.WriteString("font-feature-settings:'liga' 1,'calt' 1;")
	}
	return overlayView{
		Value: overlay.Value,
		Dir:   dir,
		Style: template.CSS(style.String()),
	}
}

// trimFloat prints a float without trailing zeros so materialized markup
// is byte-stable across runs.
func trimFloat(f float64) string {
	s := fmt.Sprintf("%.4f", f)
	s = strings.TrimRight(s, "0")
	return strings.TrimRight(s, ".")
}
