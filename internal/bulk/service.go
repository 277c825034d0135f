package bulk

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/tawthiq/tawthiq/internal/mapping"
	"github.com/tawthiq/tawthiq/internal/tabular"
	"github.com/tawthiq/tawthiq/internal/templates"
)

// JobStore abstracts job persistence for the service and tests.
type JobStore interface {
	Insert(ctx context.Context, job Job) error
	Get(ctx context.Context, id string) (Job, error)
	MarkInProgress(ctx context.Context, id string) error
	MarkReady(ctx context.Context, id, filePath string, fileSize int64) error
	MarkFailed(ctx context.Context, id, message string) error
}

// TemplateProvider loads usable templates.
type TemplateProvider interface {
	Get(ctx context.Context, id int64) (templates.Template, error)
}

// TableProvider resolves parse tokens to tables.
type TableProvider interface {
	Get(ctx context.Context, token string) (tabular.Table, error)
}

// Enqueuer hands accepted jobs to the background queue.
type Enqueuer interface {
	EnqueueBulkGenerate(ctx context.Context, jobID string) error
}

// CreateRequest describes one generation request after HTTP validation.
type CreateRequest struct {
	TemplateID int64
	TableToken string
	Mappings   []mapping.ColumnMapping
	Format     Format
	Scale      float64
}

// Service validates generation requests, persists jobs and enqueues them.
type Service struct {
	store     JobStore
	templates TemplateProvider
	tables    TableProvider
	queue     Enqueuer
}

// NewService constructs a Service instance.
func NewService(store JobStore, templates TemplateProvider, tables TableProvider, queue Enqueuer) *Service {
	return &Service{store: store, templates: templates, tables: tables, queue: queue}
}

// Create accepts a generation request. The cheap preconditions run here,
// before any rendering work is queued: the format must be known, at least
// one column must be mapped, the template must be usable and the uploaded
// table must still be addressable.
func (s *Service) Create(ctx context.Context, req CreateRequest) (Job, error) {
	if !req.Format.Valid() {
		return Job{}, ErrUnknownFormat
	}
	if mapping.MappedCount(req.Mappings) == 0 {
		return Job{}, ErrNothingMapped
	}
	tpl, err := s.templates.Get(ctx, req.TemplateID)
	if err != nil {
		return Job{}, err
	}
	table, err := s.tables.Get(ctx, req.TableToken)
	if err != nil {
		return Job{}, err
	}

	job := Job{
		ID:           uuid.NewString(),
		TemplateID:   tpl.ID,
		TemplateName: tpl.Name,
		TableToken:   req.TableToken,
		Mappings:     req.Mappings,
		Format:       req.Format,
		Scale:        req.Scale,
		TotalRows:    table.TotalRows,
		Status:       StatusPending,
	}
	if err := s.store.Insert(ctx, job); err != nil {
		return Job{}, err
	}
	if err := s.queue.EnqueueBulkGenerate(ctx, job.ID); err != nil {
		_ = s.store.MarkFailed(ctx, job.ID, "enqueue failed")
		return Job{}, fmt.Errorf("bulk: enqueue job: %w", err)
	}
	return job, nil
}

// Get loads a job by id.
func (s *Service) Get(ctx context.Context, id string) (Job, error) {
	return s.store.Get(ctx, id)
}

// MarkInProgress transitions a job to in_progress.
func (s *Service) MarkInProgress(ctx context.Context, id string) error {
	return s.store.MarkInProgress(ctx, id)
}

// MarkReady records the finished artifact location.
func (s *Service) MarkReady(ctx context.Context, id, filePath string, fileSize int64) error {
	return s.store.MarkReady(ctx, id, filePath, fileSize)
}

// MarkFailed records a terminal failure.
func (s *Service) MarkFailed(ctx context.Context, id, message string) error {
	return s.store.MarkFailed(ctx, id, message)
}
