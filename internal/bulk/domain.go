// Package bulk drives the batch document generation pipeline: one render
// and capture per data row, assembled into a single downloadable artifact.
package bulk

import (
	"errors"
	"fmt"
	"time"

	"github.com/tawthiq/tawthiq/internal/capture"
	"github.com/tawthiq/tawthiq/internal/mapping"
	"github.com/tawthiq/tawthiq/internal/templates"
)

// Format selects the batch output artifact.
type Format string

const (
	// FormatPagedDocument produces one multi-page PDF, a page per row.
	FormatPagedDocument Format = "paged_document"
	// FormatArchivePNG produces a ZIP of per-row PNG images.
	FormatArchivePNG Format = "archive_png"
	// FormatArchiveJPEG produces a ZIP of per-row JPEG images.
	FormatArchiveJPEG Format = "archive_jpeg"
)

// Valid reports whether the format is one of the supported outputs.
func (f Format) Valid() bool {
	switch f {
	case FormatPagedDocument, FormatArchivePNG, FormatArchiveJPEG:
		return true
	}
	return false
}

// CaptureFormat returns the raster encoding used for per-row captures.
func (f Format) CaptureFormat() capture.Format {
	if f == FormatArchiveJPEG {
		return capture.FormatJPEG
	}
	return capture.FormatPNG
}

var (
	// ErrNothingMapped rejects a batch before any rendering work when no
	// column mapping is set.
	ErrNothingMapped = errors.New("bulk: map at least one column before generating")
	// ErrUnknownFormat rejects an unsupported output format.
	ErrUnknownFormat = errors.New("bulk: unknown output format")
	// ErrJobNotFound indicates no job exists for the id.
	ErrJobNotFound = errors.New("bulk: job not found")
	// ErrJobNotReady indicates a download was requested before the job
	// finished.
	ErrJobNotReady = errors.New("bulk: job not ready")
	// ErrInvalidStatus indicates a status transition was not allowed.
	ErrInvalidStatus = errors.New("bulk: invalid status transition")
)

// ExportError marks a failure during final artifact assembly, after all
// rows were captured successfully.
type ExportError struct {
	Err error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("bulk: export failed: %v", e.Err)
}

func (e *ExportError) Unwrap() error { return e.Err }

// BatchError reports a mid-batch failure together with how many rows had
// already been captured. No partial output is produced.
type BatchError struct {
	Row       int
	Completed int
	Err       error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("bulk: row %d failed after %d completed: %v", e.Row+1, e.Completed, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }

// Artifact is the single downloadable output of a batch run.
type Artifact struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Status tracks the lifecycle of a queued generation job.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusReady      Status = "ready"
	StatusFailed     Status = "failed"
)

// Job is one queued bulk generation request.
type Job struct {
	ID           string
	TemplateID   int64
	TemplateName string
	TableToken   string
	Mappings     []mapping.ColumnMapping
	Format       Format
	Scale        float64
	TotalRows    int
	Status       Status
	FilePath     string
	FileSize     int64
	Error        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Filename builds the artifact filename from the template name and row
// count, following the download naming convention.
func Filename(templateName string, rows int, format Format) string {
	name := templates.SanitizeName(templateName)
	if name == "" {
		name = "document"
	}
	base := fmt.Sprintf("%s_bulk_%d", name, rows)
	if format == FormatPagedDocument {
		return base + ".pdf"
	}
	return base + ".zip"
}
