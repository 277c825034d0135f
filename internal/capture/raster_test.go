package capture

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/image/font"

	"github.com/tawthiq/tawthiq/internal/render"
)

func blankImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 220, B: 240, A: 255})
		}
	}
	return img
}

func newTestRaster(t *testing.T) *Raster {
	t.Helper()
	fonts, err := LoadFonts("")
	require.NoError(t, err)
	return NewRaster(fonts, http.DefaultClient)
}

func TestRasterCaptureDimensions(t *testing.T) {
	raster := newTestRaster(t)
	surface := render.Compose(
		render.Canvas{Width: 120, Height: 80, Elements: []render.CanvasElement{
			{ID: "e1", FieldID: "f1", X: 10, Y: 10, Width: 60, FontSize: 12, Color: "#336699", Visible: true},
		}},
		[]render.Field{{ID: "f1", Name: "student_name", Type: render.FieldText}},
		map[string]string{"f1": "Ahmed"},
	)
	img, err := raster.Capture(context.Background(), surface, Options{Scale: 2, Format: FormatPNG})
	require.NoError(t, err)
	require.Equal(t, 240, img.Width)
	require.Equal(t, 160, img.Height)

	decoded, err := png.Decode(bytes.NewReader(img.Data))
	require.NoError(t, err)
	require.Equal(t, 240, decoded.Bounds().Dx())
	require.Equal(t, 160, decoded.Bounds().Dy())
}

func TestRasterCaptureJPEG(t *testing.T) {
	raster := newTestRaster(t)
	img, err := raster.Capture(context.Background(), testSurface(), Options{Scale: 1, Format: FormatJPEG})
	require.NoError(t, err)
	require.Equal(t, FormatJPEG, img.Format)
	_, format, err := image.Decode(bytes.NewReader(img.Data))
	require.NoError(t, err)
	require.Equal(t, "jpeg", format)
}

func TestRasterCaptureWithBackground(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, png.Encode(w, blankImage(60, 40)))
	}))
	defer srv.Close()

	fonts, err := LoadFonts("")
	require.NoError(t, err)
	raster := NewRaster(fonts, srv.Client())
	surface := render.Surface{Canvas: render.Canvas{BackgroundURL: srv.URL + "/bg.png", Width: 60, Height: 40}}
	img, err := raster.Capture(context.Background(), surface, Options{Scale: 1})
	require.NoError(t, err)

	decoded, err := png.Decode(bytes.NewReader(img.Data))
	require.NoError(t, err)
	r0, g0, b0, _ := decoded.At(5, 5).RGBA()
	require.Equal(t, uint32(200), r0>>8)
	require.Equal(t, uint32(220), g0>>8)
	require.Equal(t, uint32(240), b0>>8)
}

func TestRasterCaptureBackgroundFetchFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	fonts, err := LoadFonts("")
	require.NoError(t, err)
	raster := NewRaster(fonts, srv.Client())
	surface := render.Surface{Canvas: render.Canvas{BackgroundURL: srv.URL + "/missing.png", Width: 10, Height: 10}}
	_, err = raster.Capture(context.Background(), surface, Options{Scale: 1})
	require.Error(t, err)
}

func TestWrapTextRespectsWidth(t *testing.T) {
	fonts, err := LoadFonts("")
	require.NoError(t, err)
	face := fonts.Face("", 13)

	lines := wrapText(face, "one two three four five six", 60)
	require.Greater(t, len(lines), 1)
	for _, line := range lines {
		require.LessOrEqual(t, font.MeasureString(face, line).Ceil(), 60)
	}
}

func TestWrapTextHonorsNewlines(t *testing.T) {
	fonts, err := LoadFonts("")
	require.NoError(t, err)
	face := fonts.Face("", 13)
	lines := wrapText(face, "a\nb", 500)
	require.Equal(t, []string{"a", "b"}, lines)
}

func TestWrapTextHardBreaksLongWord(t *testing.T) {
	fonts, err := LoadFonts("")
	require.NoError(t, err)
	face := fonts.Face("", 13)
	lines := wrapText(face, "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", 40)
	require.Greater(t, len(lines), 1)
}

func TestVisualOrderReversesRTLRuns(t *testing.T) {
	// Escapes keep the expectation readable regardless of how the editor
	// renders bidi text: alef beh jeem dal reversed is dal jeem beh alef.
	require.Equal(t, "دجبا", visualOrder("ابجد"))
}

func TestVisualOrderLeavesLatinAlone(t *testing.T) {
	require.Equal(t, "Ahmed 95", visualOrder("Ahmed 95"))
}

func TestParseHexColor(t *testing.T) {
	require.Equal(t, color.RGBA{R: 0x33, G: 0x66, B: 0x99, A: 255}, parseHexColor("#336699"))
	require.Equal(t, color.RGBA{R: 0xFF, G: 0x00, B: 0x00, A: 255}, parseHexColor("#f00"))
	require.Equal(t, color.Black, parseHexColor(""))
	require.Equal(t, color.Black, parseHexColor("#zzzzzz"))
}

func TestFontLibraryFallbackFace(t *testing.T) {
	fonts, err := LoadFonts("")
	require.NoError(t, err)
	face := fonts.Face("Tajawal", 24)
	require.NotNil(t, face, "empty library still serves the builtin face")
	require.Empty(t, fonts.Families())
}

func TestFontLibraryMissingDir(t *testing.T) {
	fonts, err := LoadFonts("/nonexistent/fonts")
	require.NoError(t, err)
	require.NotNil(t, fonts.Face("anything", 12))
}
