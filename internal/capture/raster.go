package capture

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"net/http"
	"os"
	"strings"
	"sync"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/math/f64"
	"golang.org/x/image/math/fixed"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/unicode/bidi"

	"github.com/tawthiq/tawthiq/internal/render"
)

// Raster composites surfaces into an off-screen bitmap without a browser.
// It is broadly compatible but performs no contextual Arabic glyph
// joining, which is why it serves as the fallback backend, never the
// default.
type Raster struct {
	fonts      *FontLibrary
	httpClient *http.Client

	fetchGroup singleflight.Group
	cacheMu    sync.Mutex
	cache      map[string]image.Image
}

// imageCacheLimit caps how many decoded images stay resident. A batch
// reuses the same background for every row, so even a small cache removes
// almost all repeat fetches.
const imageCacheLimit = 32

// NewRaster constructs the bitmap backend.
func NewRaster(fonts *FontLibrary, client *http.Client) *Raster {
	if fonts == nil {
		fonts, _ = LoadFonts("")
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Raster{fonts: fonts, httpClient: client, cache: make(map[string]image.Image)}
}

// Name identifies the backend in logs and errors.
func (r *Raster) Name() string { return "raster" }

// Capture draws the surface into a bitmap at scale × canvas dimensions
// and encodes it in the requested format.
func (r *Raster) Capture(ctx context.Context, surface render.Surface, opts Options) (Image, error) {
	opts = opts.Normalized()
	width := int(float64(surface.Canvas.Width) * opts.Scale)
	height := int(float64(surface.Canvas.Height) * opts.Scale)
	if width <= 0 || height <= 0 {
		return Image{}, fmt.Errorf("capture: invalid canvas dimensions %dx%d", width, height)
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)

	if surface.Canvas.BackgroundURL != "" {
		bg, err := r.fetchImage(ctx, surface.Canvas.BackgroundURL)
		if err != nil {
			return Image{}, fmt.Errorf("capture: background image: %w", err)
		}
		xdraw.BiLinear.Scale(dst, dst.Bounds(), bg, bg.Bounds(), xdraw.Over, nil)
	}

	for _, overlay := range surface.Overlays {
		if err := ctx.Err(); err != nil {
			return Image{}, err
		}
		var err error
		if overlay.Type == render.FieldImage || overlay.Type == render.FieldSignature {
			err = r.drawImageOverlay(ctx, dst, surface.Canvas, overlay, opts.Scale)
		} else {
			err = r.drawTextOverlay(dst, surface.Canvas, overlay, opts.Scale)
		}
		if err != nil {
			return Image{}, fmt.Errorf("capture: overlay %s: %w", overlay.Element.ID, err)
		}
	}

	buf := &bytes.Buffer{}
	switch opts.Format {
	case FormatJPEG:
		err := jpeg.Encode(buf, dst, &jpeg.Options{Quality: 92})
		if err != nil {
			return Image{}, err
		}
	default:
		if err := png.Encode(buf, dst); err != nil {
			return Image{}, err
		}
	}
	return Image{Data: buf.Bytes(), Width: width, Height: height, Format: opts.Format}, nil
}

// overlayBox resolves an element's percentage geometry to pixels.
func overlayBox(canvas render.Canvas, el render.CanvasElement, scale float64) (x, y, w int) {
	cw := float64(canvas.Width) * scale
	ch := float64(canvas.Height) * scale
	x = int(el.X / 100 * cw)
	y = int(el.Y / 100 * ch)
	w = int(el.Width / 100 * cw)
	if w < 1 {
		w = 1
	}
	return x, y, w
}

func (r *Raster) drawImageOverlay(ctx context.Context, dst *image.RGBA, canvas render.Canvas, overlay render.Overlay, scale float64) error {
	src, err := r.fetchImage(ctx, overlay.Value)
	if err != nil {
		return err
	}
	boxX, boxY, boxW := overlayBox(canvas, overlay.Element, scale)
	srcW := src.Bounds().Dx()
	srcH := src.Bounds().Dy()
	if srcW == 0 || srcH == 0 {
		return fmt.Errorf("empty image")
	}
	boxH := int(float64(boxW) * float64(srcH) / float64(srcW))
	if boxH < 1 {
		boxH = 1
	}
	tmp := image.NewRGBA(image.Rect(0, 0, boxW, boxH))
	xdraw.BiLinear.Scale(tmp, tmp.Bounds(), src, src.Bounds(), xdraw.Over, nil)
	composite(dst, tmp, boxX, boxY, overlay.Element.Rotation)
	return nil
}

func (r *Raster) drawTextOverlay(dst *image.RGBA, canvas render.Canvas, overlay render.Overlay, scale float64) error {
	el := overlay.Element
	boxX, boxY, boxW := overlayBox(canvas, el, scale)

	fontPx := el.FontSize * scale
	if fontPx <= 0 {
		fontPx = 16 * scale
	}
	face := r.fonts.Face(el.FontFamily, fontPx)
	lineHeight := int(math.Ceil(fontPx * 1.3))
	ascent := face.Metrics().Ascent.Ceil()

	lines := wrapText(face, overlay.Value, boxW)
	tmp := image.NewRGBA(image.Rect(0, 0, boxW, lineHeight*len(lines)+1))

	rtl := render.ContainsRTL(overlay.Value)
	align := el.TextAlign
	if align == "" {
		if rtl {
			align = "right"
		} else {
			align = "left"
		}
	}
	col := parseHexColor(el.Color)

	for i, line := range lines {
		display := line
		if rtl {
			display = visualOrder(line)
		}
		lineWidth := font.MeasureString(face, display).Ceil()
		var dotX int
		switch align {
		case "center":
			dotX = (boxW - lineWidth) / 2
		case "right":
			dotX = boxW - lineWidth
		default:
			dotX = 0
		}
		if dotX < 0 {
			dotX = 0
		}
		drawer := &font.Drawer{
			Dst:  tmp,
			Src:  image.NewUniform(col),
			Face: face,
			Dot:  fixed.P(dotX, i*lineHeight+ascent),
		}
		drawer.DrawString(display)
	}

	composite(dst, tmp, boxX, boxY, el.Rotation)
	return nil
}

// composite places src onto dst at (x, y), applying the element rotation
// around the overlay's top-left corner when one is declared.
func composite(dst *image.RGBA, src image.Image, x, y int, rotationDeg float64) {
	if rotationDeg == 0 {
		b := src.Bounds()
		draw.Draw(dst, image.Rect(x, y, x+b.Dx(), y+b.Dy()), src, b.Min, draw.Over)
		return
	}
	theta := rotationDeg * math.Pi / 180
	cos, sin := math.Cos(theta), math.Sin(theta)
	m := f64.Aff3{
		cos, -sin, float64(x),
		sin, cos, float64(y),
	}
	xdraw.BiLinear.Transform(dst, m, src, src.Bounds(), xdraw.Over, nil)
}

// wrapText breaks value into lines that fit boxW pixels. Explicit newlines
// are honored; words wider than the box are hard-broken by rune.
func wrapText(face font.Face, value string, boxW int) []string {
	var lines []string
	for _, paragraph := range strings.Split(value, "\n") {
		words := strings.Fields(paragraph)
		if len(words) == 0 {
			lines = append(lines, "")
			continue
		}
		current := ""
		for _, word := range words {
			candidate := word
			if current != "" {
				candidate = current + " " + word
			}
			if font.MeasureString(face, candidate).Ceil() <= boxW {
				current = candidate
				continue
			}
			if current != "" {
				lines = append(lines, current)
			}
			if font.MeasureString(face, word).Ceil() <= boxW {
				current = word
				continue
			}
			current = ""
			runes := []rune(word)
			start := 0
			for start < len(runes) {
				end := start + 1
				for end < len(runes) && font.MeasureString(face, string(runes[start:end+1])).Ceil() <= boxW {
					end++
				}
				if end >= len(runes) {
					current = string(runes[start:])
					break
				}
				lines = append(lines, string(runes[start:end]))
				start = end
			}
		}
		lines = append(lines, current)
	}
	if len(lines) == 0 {
		lines = []string{""}
	}
	return lines
}

// visualOrder reorders a logical-order string into visual order using the
// Unicode bidi algorithm, reversing right-to-left runs. Contextual glyph
// joining is not performed.
func visualOrder(s string) string {
	var p bidi.Paragraph
	p.SetString(s)
	ordering, err := p.Order()
	if err != nil {
		return s
	}
	var b strings.Builder
	for i := 0; i < ordering.NumRuns(); i++ {
		run := ordering.Run(i)
		text := run.String()
		if run.Direction() == bidi.RightToLeft {
			text = reverseRunes(text)
		}
		b.WriteString(text)
	}
	return b.String()
}

func reverseRunes(s string) string {
	runes := []rune(s)
	for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
		runes[i], runes[j] = runes[j], runes[i]
	}
	return string(runes)
}

func parseHexColor(s string) color.Color {
	s = strings.TrimSpace(strings.TrimPrefix(s, "#"))
	var r, g, b uint8
	switch len(s) {
	case 3:
		if _, err := fmt.Sscanf(s, "%1x%1x%1x", &r, &g, &b); err != nil {
			return color.Black
		}
		return color.RGBA{R: r * 17, G: g * 17, B: b * 17, A: 255}
	case 6:
		if _, err := fmt.Sscanf(s, "%02x%02x%02x", &r, &g, &b); err != nil {
			return color.Black
		}
		return color.RGBA{R: r, G: g, B: b, A: 255}
	default:
		return color.Black
	}
}

// fetchImage loads an image from an http(s) URL or a local path. Fetches
// for the same ref are deduplicated and cached, so a batch fetches its
// background once rather than once per row.
func (r *Raster) fetchImage(ctx context.Context, ref string) (image.Image, error) {
	r.cacheMu.Lock()
	cached, ok := r.cache[ref]
	r.cacheMu.Unlock()
	if ok {
		return cached, nil
	}

	resultChan := r.fetchGroup.DoChan(ref, func() (any, error) {
		img, err := r.loadImage(ctx, ref)
		if err != nil {
			return nil, err
		}
		r.cacheMu.Lock()
		if len(r.cache) < imageCacheLimit {
			r.cache[ref] = img
		}
		r.cacheMu.Unlock()
		return img, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-resultChan:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(image.Image), nil
	}
}

func (r *Raster) loadImage(ctx context.Context, ref string) (image.Image, error) {
	var reader io.ReadCloser
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
		if err != nil {
			return nil, err
		}
		resp, err := r.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 400 {
			_ = resp.Body.Close()
			return nil, fmt.Errorf("fetch %s: status %d", ref, resp.StatusCode)
		}
		reader = resp.Body
	} else {
		f, err := os.Open(ref)
		if err != nil {
			return nil, err
		}
		reader = f
	}
	defer func() {
		_ = reader.Close()
	}()
	img, _, err := image.Decode(reader)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", ref, err)
	}
	return img, nil
}
