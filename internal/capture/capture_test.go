package capture

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tawthiq/tawthiq/internal/render"
)

type stubCapturer struct {
	name  string
	err   error
	calls int
}

func (s *stubCapturer) Name() string { return s.name }

func (s *stubCapturer) Capture(ctx context.Context, surface render.Surface, opts Options) (Image, error) {
	s.calls++
	if s.err != nil {
		return Image{}, s.err
	}
	return Image{Data: []byte{1}, Width: 10, Height: 10, Format: opts.Format}, nil
}

func testSurface() render.Surface {
	return render.Surface{Canvas: render.Canvas{Width: 100, Height: 50}}
}

func TestChainPrimarySucceeds(t *testing.T) {
	primary := &stubCapturer{name: "primary"}
	secondary := &stubCapturer{name: "secondary"}
	chain, err := NewChain(slog.Default(), primary, secondary)
	require.NoError(t, err)

	_, err = chain.Capture(context.Background(), testSurface(), Options{})
	require.NoError(t, err)
	require.Equal(t, 1, primary.calls)
	require.Equal(t, 0, secondary.calls, "secondary must not run when primary succeeds")
}

func TestChainFallsBackToSecondary(t *testing.T) {
	primary := &stubCapturer{name: "primary", err: errors.New("browser down")}
	secondary := &stubCapturer{name: "secondary"}
	chain, err := NewChain(slog.Default(), primary, secondary)
	require.NoError(t, err)

	img, err := chain.Capture(context.Background(), testSurface(), Options{})
	require.NoError(t, err)
	require.NotEmpty(t, img.Data)
	require.Equal(t, 1, primary.calls)
	require.Equal(t, 1, secondary.calls)
}

func TestChainAllBackendsFail(t *testing.T) {
	cause := errors.New("no canvas context")
	primary := &stubCapturer{name: "primary", err: errors.New("browser down")}
	secondary := &stubCapturer{name: "secondary", err: cause}
	chain, err := NewChain(slog.Default(), primary, secondary)
	require.NoError(t, err)

	_, err = chain.Capture(context.Background(), testSurface(), Options{})
	var capErr *Error
	require.True(t, errors.As(err, &capErr))
	require.Equal(t, "secondary", capErr.Backend)
	require.ErrorIs(t, err, cause)
}

func TestChainRequiresBackends(t *testing.T) {
	_, err := NewChain(slog.Default())
	require.Error(t, err)
}

func TestOptionsNormalized(t *testing.T) {
	opts := Options{}.Normalized()
	require.Equal(t, DefaultScale, opts.Scale)
	require.Equal(t, FormatPNG, opts.Format)

	opts = Options{Scale: 3, Format: FormatJPEG}.Normalized()
	require.Equal(t, 3.0, opts.Scale)
	require.Equal(t, FormatJPEG, opts.Format)
}

func TestFormatHelpers(t *testing.T) {
	require.Equal(t, "png", FormatPNG.Ext())
	require.Equal(t, "jpeg", FormatJPEG.Ext())
	require.Equal(t, "image/png", FormatPNG.ContentType())
	require.Equal(t, "image/jpeg", FormatJPEG.ContentType())
}
