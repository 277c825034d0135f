package capture

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tawthiq/tawthiq/internal/render"
)

const (
	// fontWaitExpr asks the browser to hold the screenshot until declared
	// fonts finished loading.
	fontWaitExpr = "document.fonts.status === 'loaded'"
	// fontWaitDelay is the bounded fallback when font readiness signaling
	// never fires.
	fontWaitDelay = 500 * time.Millisecond

	chromiumRequestTimeout = 30 * time.Second
	chromiumMinImageBytes  = 128
)

// Chromium captures surfaces through the Gotenberg screenshot API. The
// page is materialized with bidi-safe overrides so complex-script text
// keeps its shaping; this is the primary backend.
type Chromium struct {
	endpoint   string
	httpClient *http.Client
}

// NewChromium constructs the browser-based backend.
func NewChromium(endpoint string, client *http.Client) (*Chromium, error) {
	endpoint = strings.TrimRight(strings.TrimSpace(endpoint), "/")
	if endpoint == "" {
		return nil, fmt.Errorf("capture: chromium endpoint required")
	}
	if client == nil {
		client = &http.Client{Timeout: chromiumRequestTimeout}
	}
	return &Chromium{endpoint: endpoint, httpClient: client}, nil
}

// Name identifies the backend in logs and errors.
func (c *Chromium) Name() string { return "chromium" }

// Ping checks whether the remote rendering service is reachable.
func (c *Chromium) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("capture: chromium health returned status %d", resp.StatusCode)
	}
	return nil
}

// Capture renders the surface in a live browser and screenshots it at
// scale × canvas dimensions.
func (c *Chromium) Capture(ctx context.Context, surface render.Surface, opts Options) (Image, error) {
	opts = opts.Normalized()
	html, err := surface.HTML(render.HTMLOptions{Scale: opts.Scale, BidiSafe: true})
	if err != nil {
		return Image{}, err
	}
	width := int(float64(surface.Canvas.Width) * opts.Scale)
	height := int(float64(surface.Canvas.Height) * opts.Scale)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("files", "index.html")
	if err != nil {
		return Image{}, err
	}
	if _, err := io.WriteString(part, html); err != nil {
		return Image{}, err
	}
	fields := map[string]string{
		"width":             strconv.Itoa(width),
		"height":            strconv.Itoa(height),
		"clip":              "true",
		"format":            string(opts.Format),
		"waitDelay":         fontWaitDelay.String(),
		"waitForExpression": fontWaitExpr,
	}
	if opts.Format == FormatJPEG {
		fields["quality"] = "92"
	}
	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			return Image{}, err
		}
	}
	if err := writer.Close(); err != nil {
		return Image{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/forms/chromium/screenshot/html", body)
	if err != nil {
		return Image{}, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Image{}, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 400 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Image{}, fmt.Errorf("capture: chromium returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Image{}, err
	}
	if len(data) < chromiumMinImageBytes {
		return Image{}, fmt.Errorf("capture: chromium returned %d bytes, below minimum", len(data))
	}
	return Image{Data: data, Width: width, Height: height, Format: opts.Format}, nil
}
