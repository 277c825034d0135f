package bulk

import (
	"archive/zip"
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"

	"github.com/tawthiq/tawthiq/internal/capture"
	"github.com/tawthiq/tawthiq/internal/render"
	"github.com/tawthiq/tawthiq/internal/templates"
)

// assembler accumulates captured rows into a single output document.
type assembler interface {
	Append(index int, identifier string, img capture.Image) error
	Finalize() ([]byte, error)
	ContentType() string
}

func newAssembler(format Format, canvas render.Canvas) (assembler, error) {
	switch format {
	case FormatPagedDocument:
		return newPDFAssembler(canvas), nil
	case FormatArchivePNG:
		return newZIPAssembler("png"), nil
	case FormatArchiveJPEG:
		return newZIPAssembler("jpeg"), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// cssPxToPt converts CSS pixels (96dpi) to PDF points (72dpi).
const cssPxToPt = 72.0 / 96.0

// pdfAssembler produces one multi-page PDF sized to the canvas, one
// full-bleed image per page.
type pdfAssembler struct {
	doc    *gofpdf.Fpdf
	pageW  float64
	pageH  float64
	pages  int
	images int
}

func newPDFAssembler(canvas render.Canvas) *pdfAssembler {
	pageW := float64(canvas.Width) * cssPxToPt
	pageH := float64(canvas.Height) * cssPxToPt

	orientation := "P"
	if canvas.Landscape() {
		orientation = "L"
	}
	// gofpdf expects the custom size in portrait orientation and flips it
	// itself when the orientation is landscape.
	portraitW, portraitH := pageW, pageH
	if portraitW > portraitH {
		portraitW, portraitH = portraitH, portraitW
	}
	doc := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: orientation,
		UnitStr:        "pt",
		Size:           gofpdf.SizeType{Wd: portraitW, Ht: portraitH},
	})
	doc.SetMargins(0, 0, 0)
	doc.SetAutoPageBreak(false, 0)
	return &pdfAssembler{doc: doc, pageW: pageW, pageH: pageH}
}

func (a *pdfAssembler) Append(index int, identifier string, img capture.Image) error {
	imageType := "PNG"
	if img.Format == capture.FormatJPEG {
		imageType = "JPEG"
	}
	name := fmt.Sprintf("row_%03d", index+1)
	opts := gofpdf.ImageOptions{ImageType: imageType}
	a.doc.RegisterImageOptionsReader(name, opts, bytes.NewReader(img.Data))
	a.doc.AddPage()
	a.doc.ImageOptions(name, 0, 0, a.pageW, a.pageH, false, opts, 0, "")
	if err := a.doc.Error(); err != nil {
		return err
	}
	a.pages++
	a.images++
	return nil
}

func (a *pdfAssembler) Finalize() ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := a.doc.Output(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (a *pdfAssembler) ContentType() string { return "application/pdf" }

// Pages reports how many pages were appended.
func (a *pdfAssembler) Pages() int { return a.pages }

// zipAssembler produces a compressed archive with one image entry per row,
// named NNN_<identifier>.<ext> with a zero-padded 3-digit sequence.
type zipAssembler struct {
	buf     *bytes.Buffer
	writer  *zip.Writer
	ext     string
	entries []string
}

func newZIPAssembler(ext string) *zipAssembler {
	buf := &bytes.Buffer{}
	return &zipAssembler{buf: buf, writer: zip.NewWriter(buf), ext: ext}
}

func (a *zipAssembler) Append(index int, identifier string, img capture.Image) error {
	name := fmt.Sprintf("%03d_%s.%s", index+1, templates.SanitizeName(identifier), a.ext)
	entry, err := a.writer.Create(name)
	if err != nil {
		return err
	}
	if _, err := entry.Write(img.Data); err != nil {
		return err
	}
	a.entries = append(a.entries, name)
	return nil
}

func (a *zipAssembler) Finalize() ([]byte, error) {
	if err := a.writer.Close(); err != nil {
		return nil, err
	}
	return a.buf.Bytes(), nil
}

func (a *zipAssembler) ContentType() string { return "application/zip" }

// Entries lists the archive entry names appended so far.
func (a *zipAssembler) Entries() []string {
	return append([]string(nil), a.entries...)
}
