package bulk

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tawthiq/tawthiq/internal/capture"
	"github.com/tawthiq/tawthiq/internal/mapping"
	"github.com/tawthiq/tawthiq/internal/render"
	"github.com/tawthiq/tawthiq/internal/tabular"
	"github.com/tawthiq/tawthiq/internal/templates"
)

// testPNG returns a real encoded PNG so the PDF assembler can decode it.
func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 3))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	img.Set(0, 0, color.RGBA{R: 0xff, A: 0xff})
	buf := &bytes.Buffer{}
	require.NoError(t, png.Encode(buf, img))
	return buf.Bytes()
}

type stubCapturer struct {
	data     []byte
	calls    int
	failCall int
	err      error
}

func (s *stubCapturer) Name() string { return "stub" }

func (s *stubCapturer) Capture(ctx context.Context, surface render.Surface, opts capture.Options) (capture.Image, error) {
	s.calls++
	if s.failCall > 0 && s.calls == s.failCall {
		if s.err != nil {
			return capture.Image{}, s.err
		}
		return capture.Image{}, errors.New("capture failed")
	}
	format := capture.FormatPNG
	if opts.Format == capture.FormatJPEG {
		format = capture.FormatJPEG
	}
	return capture.Image{Data: s.data, Width: 4, Height: 3, Format: format}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func batchTemplate() templates.Template {
	return templates.Template{
		ID:   1,
		Name: "شهادة شكر",
		Canvas: render.Canvas{
			Width:  1120,
			Height: 790,
			Elements: []render.CanvasElement{
				{ID: "e1", FieldID: "f1", X: 10, Y: 40, Width: 80, FontSize: 28, Visible: true},
				{ID: "e2", FieldID: "f2", X: 10, Y: 60, Width: 30, FontSize: 18, Visible: true},
			},
		},
		Fields: []render.Field{
			{ID: "f1", Name: "student_name", Type: render.FieldText},
			{ID: "f2", Name: "grade", Type: render.FieldText},
		},
	}
}

func batchRequest(t *testing.T, format Format) Request {
	t.Helper()
	return Request{
		Template: batchTemplate(),
		Table: tabular.Table{
			Headers: []string{"name", "grade"},
			Rows: []tabular.Row{
				{"name": "Ahmed", "grade": "95"},
				{"name": "Sara", "grade": "88"},
			},
			TotalRows: 2,
		},
		Mappings: []mapping.ColumnMapping{
			{FieldID: "f1", Column: "name"},
			{FieldID: "f2", Column: "grade"},
		},
		Format: format,
	}
}

func newTestOrchestrator(capturer capture.Capturer) *Orchestrator {
	o := NewOrchestrator(capturer, testLogger())
	o.WithSettle(0)
	return o
}

func TestRunArchiveEntriesMatchInputOrder(t *testing.T) {
	capturer := &stubCapturer{data: testPNG(t)}
	o := newTestOrchestrator(capturer)

	artifact, err := o.Run(context.Background(), batchRequest(t, FormatArchivePNG))
	require.NoError(t, err)
	require.Equal(t, 2, capturer.calls)
	require.Equal(t, "application/zip", artifact.ContentType)
	require.Equal(t, "شهادة_شكر_bulk_2.zip", artifact.Filename)

	reader, err := zip.NewReader(bytes.NewReader(artifact.Data), int64(len(artifact.Data)))
	require.NoError(t, err)
	require.Len(t, reader.File, 2)
	require.Equal(t, "001_Ahmed.png", reader.File[0].Name)
	require.Equal(t, "002_Sara.png", reader.File[1].Name)
}

func TestRunArchiveJPEGExtension(t *testing.T) {
	capturer := &stubCapturer{data: testPNG(t)}
	o := newTestOrchestrator(capturer)

	artifact, err := o.Run(context.Background(), batchRequest(t, FormatArchiveJPEG))
	require.NoError(t, err)

	reader, err := zip.NewReader(bytes.NewReader(artifact.Data), int64(len(artifact.Data)))
	require.NoError(t, err)
	require.Equal(t, "001_Ahmed.jpeg", reader.File[0].Name)
}

func TestRunPagedDocument(t *testing.T) {
	capturer := &stubCapturer{data: testPNG(t)}
	o := newTestOrchestrator(capturer)

	artifact, err := o.Run(context.Background(), batchRequest(t, FormatPagedDocument))
	require.NoError(t, err)
	require.Equal(t, 2, capturer.calls)
	require.Equal(t, "application/pdf", artifact.ContentType)
	require.Equal(t, "شهادة_شكر_bulk_2.pdf", artifact.Filename)
	require.True(t, bytes.HasPrefix(artifact.Data, []byte("%PDF")))
}

func TestRunIdentifierFallsBackToIndex(t *testing.T) {
	capturer := &stubCapturer{data: testPNG(t)}
	o := newTestOrchestrator(capturer)

	req := batchRequest(t, FormatArchivePNG)
	req.Table.Rows[1]["name"] = "  "

	artifact, err := o.Run(context.Background(), req)
	require.NoError(t, err)

	reader, err := zip.NewReader(bytes.NewReader(artifact.Data), int64(len(artifact.Data)))
	require.NoError(t, err)
	require.Equal(t, "002_item_2.png", reader.File[1].Name)
}

func TestRunRejectsNothingMapped(t *testing.T) {
	capturer := &stubCapturer{data: testPNG(t)}
	o := newTestOrchestrator(capturer)

	req := batchRequest(t, FormatArchivePNG)
	req.Mappings = []mapping.ColumnMapping{{FieldID: "f1", Column: ""}}

	_, err := o.Run(context.Background(), req)
	require.ErrorIs(t, err, ErrNothingMapped)
	require.Zero(t, capturer.calls)
}

func TestRunRejectsUnknownFormat(t *testing.T) {
	capturer := &stubCapturer{data: testPNG(t)}
	o := newTestOrchestrator(capturer)

	req := batchRequest(t, Format("docx"))
	_, err := o.Run(context.Background(), req)
	require.ErrorIs(t, err, ErrUnknownFormat)
	require.Zero(t, capturer.calls)
}

func TestRunReportsProgressPerRow(t *testing.T) {
	capturer := &stubCapturer{data: testPNG(t)}
	o := newTestOrchestrator(capturer)

	var seen []Progress
	req := batchRequest(t, FormatArchivePNG)
	req.Progress = func(current, total int) {
		seen = append(seen, Progress{Current: current, Total: total})
	}

	_, err := o.Run(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, []Progress{{1, 2}, {2, 2}}, seen)
}

func TestRunAbortsOnCaptureFailure(t *testing.T) {
	capturer := &stubCapturer{data: testPNG(t), failCall: 2}
	o := newTestOrchestrator(capturer)

	_, err := o.Run(context.Background(), batchRequest(t, FormatArchivePNG))

	var batchErr *BatchError
	require.ErrorAs(t, err, &batchErr)
	require.Equal(t, 1, batchErr.Row)
	require.Equal(t, 1, batchErr.Completed)
}

func TestRunHonorsCancellation(t *testing.T) {
	capturer := &stubCapturer{data: testPNG(t)}
	o := newTestOrchestrator(capturer)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := o.Run(ctx, batchRequest(t, FormatArchivePNG))
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, capturer.calls)
}

func TestRenderTargetSerializesAcquisition(t *testing.T) {
	target := NewRenderTarget()

	release, err := target.Acquire(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = target.Acquire(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	release()
	release() // idempotent

	second, err := target.Acquire(context.Background())
	require.NoError(t, err)
	second()
}
