// Package capture converts composed surfaces into raster image bytes.
// Two interchangeable backends exist: a browser-based one with faithful
// Arabic shaping, and an off-screen bitmap compositor used as a fallback.
package capture

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tawthiq/tawthiq/internal/render"
)

// Format selects the raster output encoding.
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
)

// Ext returns the filename extension for the format.
func (f Format) Ext() string {
	if f == FormatJPEG {
		return "jpeg"
	}
	return "png"
}

// ContentType returns the MIME type for the format.
func (f Format) ContentType() string {
	if f == FormatJPEG {
		return "image/jpeg"
	}
	return "image/png"
}

// DefaultScale is the quality multiplier applied when the caller does not
// specify one.
const DefaultScale = 2.0

// Options parameterize a single capture.
type Options struct {
	Scale  float64
	Format Format
}

// Normalized fills in defaults.
func (o Options) Normalized() Options {
	if o.Scale <= 0 {
		o.Scale = DefaultScale
	}
	if o.Format == "" {
		o.Format = FormatPNG
	}
	return o
}

// Image is the captured raster output.
type Image struct {
	Data   []byte
	Width  int
	Height int
	Format Format
}

// Capturer is a single rendering backend.
type Capturer interface {
	Name() string
	Capture(ctx context.Context, surface render.Surface, opts Options) (Image, error)
}

// Error reports that every backend failed, carrying the last cause.
type Error struct {
	Backend string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("capture: backend %s failed: %v", e.Backend, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Chain tries each backend in order and fails only after the last one
// fails. The primary backend always goes first; order is meaningful.
type Chain struct {
	capturers []Capturer
	logger    *slog.Logger
}

// NewChain constructs a Chain from the ordered backend list.
func NewChain(logger *slog.Logger, capturers ...Capturer) (*Chain, error) {
	if len(capturers) == 0 {
		return nil, fmt.Errorf("capture: chain requires at least one backend")
	}
	return &Chain{capturers: capturers, logger: logger}, nil
}

// Name identifies the chain as a backend.
func (c *Chain) Name() string { return "chain" }

// Capture runs the fallback protocol.
func (c *Chain) Capture(ctx context.Context, surface render.Surface, opts Options) (Image, error) {
	opts = opts.Normalized()
	var lastErr *Error
	for _, capturer := range c.capturers {
		img, err := capturer.Capture(ctx, surface, opts)
		if err == nil {
			return img, nil
		}
		if ctx.Err() != nil {
			return Image{}, ctx.Err()
		}
		lastErr = &Error{Backend: capturer.Name(), Err: err}
		if c.logger != nil {
			c.logger.Warn("capture backend failed, trying next",
				slog.String("backend", capturer.Name()), slog.Any("error", err))
		}
	}
	return Image{}, lastErr
}
