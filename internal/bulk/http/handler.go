// Package bulkhttp wires the bulk generation pipeline to HTTP transport.
package bulkhttp

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/tawthiq/tawthiq/internal/bulk"
	"github.com/tawthiq/tawthiq/internal/mapping"
	"github.com/tawthiq/tawthiq/internal/platform/httpx"
	"github.com/tawthiq/tawthiq/internal/tabular"
	"github.com/tawthiq/tawthiq/internal/templates"
)

// maxUploadBytes bounds spreadsheet uploads.
const maxUploadBytes = 16 << 20

// Handler exposes the bulk generation endpoints.
type Handler struct {
	logger    *slog.Logger
	templates *templates.Service
	service   *bulk.Service
	tables    *bulk.TableStore
	progress  *bulk.ProgressStore
	validator *validator.Validate
}

// NewHandler constructs a Handler value.
func NewHandler(logger *slog.Logger, tplService *templates.Service, service *bulk.Service, tables *bulk.TableStore, progress *bulk.ProgressStore) *Handler {
	return &Handler{
		logger:    logger,
		templates: tplService,
		service:   service,
		tables:    tables,
		progress:  progress,
		validator: validator.New(),
	}
}

// MountRoutes registers HTTP routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/bulk", func(r chi.Router) {
		r.Get("/templates", h.listTemplates)
		r.Post("/parse", h.parse)
		r.Get("/sample/{templateID}", h.sample)
		r.Post("/generate", h.generate)
		r.Get("/jobs/{id}", h.jobStatus)
		r.Get("/jobs/{id}/download", h.download)
	})
}

type templateView struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Fields int    `json:"fields"`
	Width  int    `json:"canvas_width"`
	Height int    `json:"canvas_height"`
}

func (h *Handler) listTemplates(w http.ResponseWriter, r *http.Request) {
	usable, err := h.templates.ListUsable(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	views := make([]templateView, 0, len(usable))
	for _, tpl := range usable {
		views = append(views, templateView{
			ID:     tpl.ID,
			Name:   tpl.Name,
			Fields: len(tpl.Fields),
			Width:  tpl.Canvas.Width,
			Height: tpl.Canvas.Height,
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"templates": views})
}

type parseResponse struct {
	Token      string                  `json:"token"`
	Headers    []string                `json:"headers"`
	Columns    []tabular.ColumnInfo    `json:"columns"`
	TotalRows  int                     `json:"total_rows"`
	Mappings   []mapping.ColumnMapping `json:"mappings"`
	Duplicates map[string][]string     `json:"duplicates,omitempty"`
}

// parse accepts the uploaded spreadsheet, stores the normalized table and
// returns it together with the auto-mapping proposal for the chosen
// template.
func (h *Handler) parse(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Upload", "multipart form expected")
		return
	}
	templateID, err := strconv.ParseInt(r.FormValue("template_id"), 10, 64)
	if err != nil || templateID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Template", "template_id must be a positive integer")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Upload", "file field required")
		return
	}
	defer func() {
		_ = file.Close()
	}()

	table, err := tabular.Parse(file, header.Filename)
	if err != nil {
		h.respondError(w, err)
		return
	}
	tpl, err := h.templates.Get(r.Context(), templateID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	token, err := h.tables.Put(r.Context(), table)
	if err != nil {
		h.respondError(w, err)
		return
	}
	mappings := mapping.AutoMap(tpl.FieldDescriptors(), table.Headers)
	httpx.JSON(w, http.StatusOK, parseResponse{
		Token:      token,
		Headers:    table.Headers,
		Columns:    tabular.ClassifyColumns(table),
		TotalRows:  table.TotalRows,
		Mappings:   mappings,
		Duplicates: mapping.Duplicates(mappings),
	})
}

func (h *Handler) sample(w http.ResponseWriter, r *http.Request) {
	templateID, err := strconv.ParseInt(chi.URLParam(r, "templateID"), 10, 64)
	if err != nil || templateID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Template", "template id must be a positive integer")
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	// Write through a buffer first so failures surface as a problem
	// response rather than a broken download.
	buffered := &bufferedResponse{}
	filename, err := h.templates.WriteSample(r.Context(), templateID, buffered)
	if err != nil {
		w.Header().Del("Content-Type")
		h.respondError(w, err)
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	_, _ = w.Write(buffered.data)
}

type bufferedResponse struct {
	data []byte
}

func (b *bufferedResponse) Write(p []byte) (int, error) {
	b.data = append(b.data, p...)
	return len(p), nil
}

type generateRequest struct {
	TemplateID int64          `json:"template_id" validate:"required,gt=0"`
	TableToken string         `json:"table_token" validate:"required,uuid4"`
	Mappings   []mappingEntry `json:"mappings" validate:"required,min=1,dive"`
	Format     string         `json:"format" validate:"required,oneof=paged_document archive_png archive_jpeg"`
	Scale      float64        `json:"scale" validate:"omitempty,gt=0,lte=4"`
}

type mappingEntry struct {
	FieldID string `json:"field_id" validate:"required"`
	Column  string `json:"column"`
}

func (h *Handler) generate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	mappings := make([]mapping.ColumnMapping, 0, len(req.Mappings))
	for _, entry := range req.Mappings {
		mappings = append(mappings, mapping.ColumnMapping{FieldID: entry.FieldID, Column: entry.Column})
	}
	job, err := h.service.Create(r.Context(), bulk.CreateRequest{
		TemplateID: req.TemplateID,
		TableToken: req.TableToken,
		Mappings:   mappings,
		Format:     bulk.Format(req.Format),
		Scale:      req.Scale,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusAccepted, map[string]any{
		"job_id":     job.ID,
		"total_rows": job.TotalRows,
		"status":     job.Status,
	})
}

type jobStatusResponse struct {
	ID       string        `json:"id"`
	Status   bulk.Status   `json:"status"`
	Progress bulk.Progress `json:"progress"`
	Error    string        `json:"error,omitempty"`
}

func (h *Handler) jobStatus(w http.ResponseWriter, r *http.Request) {
	job, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	progress, err := h.progress.Get(r.Context(), job.ID)
	if err != nil {
		h.logger.Warn("read progress", slog.String("job_id", job.ID), slog.Any("error", err))
		progress = bulk.Progress{}
	}
	if progress.Total == 0 {
		progress.Total = job.TotalRows
	}
	httpx.JSON(w, http.StatusOK, jobStatusResponse{
		ID:       job.ID,
		Status:   job.Status,
		Progress: progress,
		Error:    job.Error,
	})
}

func (h *Handler) download(w http.ResponseWriter, r *http.Request) {
	job, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	if job.Status != bulk.StatusReady || job.FilePath == "" {
		h.respondError(w, bulk.ErrJobNotReady)
		return
	}
	f, err := os.Open(job.FilePath)
	if err != nil {
		h.logger.Error("open artifact", slog.String("job_id", job.ID), slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	defer func() {
		_ = f.Close()
	}()
	contentType := "application/zip"
	if job.Format == bulk.FormatPagedDocument {
		contentType = "application/pdf"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+bulk.Filename(job.TemplateName, job.TotalRows, job.Format)+`"`)
	_, _ = io.Copy(w, f)
}

// respondError maps domain errors onto problem responses.
func (h *Handler) respondError(w http.ResponseWriter, err error) {
	var parseErr *tabular.ParseError
	switch {
	case errors.Is(err, bulk.ErrNothingMapped):
		httpx.Problem(w, http.StatusBadRequest, "Mapping Incomplete", err.Error())
	case errors.Is(err, bulk.ErrUnknownFormat):
		httpx.Problem(w, http.StatusBadRequest, "Unknown Format", err.Error())
	case errors.Is(err, bulk.ErrTableExpired):
		httpx.Problem(w, http.StatusGone, "Table Expired", err.Error())
	case errors.Is(err, bulk.ErrJobNotFound), errors.Is(err, templates.ErrTemplateNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, bulk.ErrJobNotReady):
		httpx.Problem(w, http.StatusConflict, "Not Ready", err.Error())
	case errors.Is(err, templates.ErrTemplateNotUsable):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Template Not Usable", err.Error())
	case errors.Is(err, tabular.ErrUnsupportedFormat),
		errors.Is(err, tabular.ErrNoRows),
		errors.Is(err, tabular.ErrNoHeaders),
		errors.As(err, &parseErr):
		httpx.Problem(w, http.StatusBadRequest, "Parse Failed", err.Error())
	default:
		h.logger.Error("bulk handler", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
