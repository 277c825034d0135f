package bulk

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/tawthiq/tawthiq/internal/capture"
	"github.com/tawthiq/tawthiq/internal/mapping"
	"github.com/tawthiq/tawthiq/internal/render"
	"github.com/tawthiq/tawthiq/internal/tabular"
	"github.com/tawthiq/tawthiq/internal/templates"
)

// defaultSettle is the pause between attaching a surface to the render
// target and capturing it, letting layout and image decoding stabilize.
const defaultSettle = 100 * time.Millisecond

// ProgressFunc receives (current, total) after every completed row.
type ProgressFunc func(current, total int)

// Request carries everything one batch run needs. Rendering each row is a
// pure function of (template, mappings, row), so a Request fully
// determines the output.
type Request struct {
	Template templates.Template
	Table    tabular.Table
	Mappings []mapping.ColumnMapping
	Format   Format
	Scale    float64
	Progress ProgressFunc
}

// Orchestrator drives the sequential render → capture → assemble loop.
type Orchestrator struct {
	capturer capture.Capturer
	target   *RenderTarget
	settle   time.Duration
	logger   *slog.Logger
}

// NewOrchestrator constructs an Orchestrator around a capture backend.
func NewOrchestrator(capturer capture.Capturer, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		capturer: capturer,
		target:   NewRenderTarget(),
		settle:   defaultSettle,
		logger:   logger,
	}
}

// WithSettle overrides the settling delay, mainly for tests.
func (o *Orchestrator) WithSettle(d time.Duration) {
	if d >= 0 {
		o.settle = d
	}
}

// Run executes one full batch. Rows are processed strictly in input
// order with exactly one capture in flight; output page or archive entry
// N always corresponds to input row N. A row failure aborts the batch
// with no partial output; cancellation is honored between rows.
func (o *Orchestrator) Run(ctx context.Context, req Request) (Artifact, error) {
	if !req.Format.Valid() {
		return Artifact{}, ErrUnknownFormat
	}
	if mapping.MappedCount(req.Mappings) == 0 {
		return Artifact{}, ErrNothingMapped
	}

	asm, err := newAssembler(req.Format, req.Template.Canvas)
	if err != nil {
		return Artifact{}, err
	}
	opts := capture.Options{Scale: req.Scale, Format: req.Format.CaptureFormat()}
	identifierField := identifierFieldID(req.Template, req.Mappings)
	total := req.Table.TotalRows

	for i := 0; i < total; i++ {
		if err := ctx.Err(); err != nil {
			return Artifact{}, err
		}
		values := mapping.MappedRow(req.Mappings, req.Table.Rows[i])
		surface := render.Compose(req.Template.Canvas, req.Template.Fields, values)

		img, err := o.captureRow(ctx, surface, opts)
		if err != nil {
			return Artifact{}, &BatchError{Row: i, Completed: i, Err: err}
		}
		identifier := rowIdentifier(values, identifierField, i)
		if err := asm.Append(i, identifier, img); err != nil {
			return Artifact{}, &BatchError{Row: i, Completed: i, Err: err}
		}
		if req.Progress != nil {
			req.Progress(i+1, total)
		}
	}

	data, err := asm.Finalize()
	if err != nil {
		return Artifact{}, &ExportError{Err: err}
	}
	return Artifact{
		Filename:    Filename(req.Template.Name, total, req.Format),
		ContentType: asm.ContentType(),
		Data:        data,
	}, nil
}

// captureRow holds the render target for exactly the duration of one
// settle-plus-capture, releasing it on every path.
func (o *Orchestrator) captureRow(ctx context.Context, surface render.Surface, opts capture.Options) (capture.Image, error) {
	release, err := o.target.Acquire(ctx)
	if err != nil {
		return capture.Image{}, err
	}
	defer release()

	if o.settle > 0 {
		timer := time.NewTimer(o.settle)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return capture.Image{}, ctx.Err()
		}
	}
	return o.capturer.Capture(ctx, surface, opts)
}

// identifierFieldID picks the mapped field whose machine name looks like a
// personal name, used to label archive entries.
func identifierFieldID(tpl templates.Template, mappings []mapping.ColumnMapping) string {
	mapped := make(map[string]bool, len(mappings))
	for _, m := range mappings {
		if m.Column != "" {
			mapped[m.FieldID] = true
		}
	}
	for _, field := range tpl.Fields {
		if mapped[field.ID] && strings.Contains(strings.ToLower(field.Name), "name") {
			return field.ID
		}
	}
	return ""
}

// rowIdentifier builds the human part of an archive entry name.
func rowIdentifier(values map[string]string, fieldID string, index int) string {
	if fieldID != "" {
		if v := strings.TrimSpace(values[fieldID]); v != "" {
			return v
		}
	}
	return "item_" + strconv.Itoa(index+1)
}
