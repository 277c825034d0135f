package bulk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/tawthiq/tawthiq/internal/jobs"
	"github.com/tawthiq/tawthiq/jobs"
)

// JobConfig wires dependencies required by the worker job.
type JobConfig struct {
	Service      *Service
	Templates    TemplateProvider
	Tables       TableProvider
	Orchestrator *Orchestrator
	Sink         OutputSink
	Progress     *ProgressStore
	Metrics      *jobmetrics.Metrics
	Logger       *slog.Logger
}

// JobRunner processes bulk generation requests coming from the queue.
type JobRunner struct {
	service      *Service
	templates    TemplateProvider
	tables       TableProvider
	orchestrator *Orchestrator
	sink         OutputSink
	progress     *ProgressStore
	metrics      *jobmetrics.Metrics
	logger       *slog.Logger
}

// NewJobRunner constructs a JobRunner.
func NewJobRunner(cfg JobConfig) *JobRunner {
	return &JobRunner{
		service:      cfg.Service,
		templates:    cfg.Templates,
		tables:       cfg.Tables,
		orchestrator: cfg.Orchestrator,
		sink:         cfg.Sink,
		progress:     cfg.Progress,
		metrics:      cfg.Metrics,
		logger:       cfg.Logger,
	}
}

// Handle fulfils the asynq.HandlerFunc contract.
func (j *JobRunner) Handle(ctx context.Context, task *asynq.Task) error {
	if j == nil || j.service == nil || j.orchestrator == nil || j.sink == nil {
		return fmt.Errorf("bulk job not configured")
	}
	tracker := j.metrics.Track("bulk_generate")
	return tracker.End(j.handle(ctx, task))
}

func (j *JobRunner) handle(ctx context.Context, task *asynq.Task) error {
	var payload jobs.BulkGeneratePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.JobID == "" {
		return asynq.SkipRetry
	}
	job, err := j.service.Get(ctx, payload.JobID)
	if err != nil {
		if errors.Is(err, ErrJobNotFound) {
			return asynq.SkipRetry
		}
		return err
	}
	if job.Status == StatusReady {
		return nil
	}
	if err := j.service.MarkInProgress(ctx, job.ID); err != nil {
		if errors.Is(err, ErrInvalidStatus) {
			current, loadErr := j.service.Get(ctx, job.ID)
			if loadErr == nil && (current.Status == StatusInProgress || current.Status == StatusReady) {
				return nil
			}
		}
		return err
	}

	tpl, err := j.templates.Get(ctx, job.TemplateID)
	if err != nil {
		return j.fail(ctx, job.ID, err)
	}
	table, err := j.tables.Get(ctx, job.TableToken)
	if err != nil {
		return j.fail(ctx, job.ID, err)
	}

	artifact, err := j.orchestrator.Run(ctx, Request{
		Template: tpl,
		Table:    table,
		Mappings: job.Mappings,
		Format:   job.Format,
		Scale:    job.Scale,
		Progress: func(current, total int) {
			if j.progress == nil {
				return
			}
			if err := j.progress.Publish(ctx, job.ID, current, total); err != nil && j.logger != nil {
				j.logger.Warn("publish progress", slog.String("job_id", job.ID), slog.Any("error", err))
			}
		},
	})
	if err != nil {
		return j.fail(ctx, job.ID, err)
	}

	path, err := j.sink.Save(ctx, job.ID, artifact)
	if err != nil {
		return j.fail(ctx, job.ID, err)
	}
	if err := j.service.MarkReady(ctx, job.ID, path, int64(len(artifact.Data))); err != nil {
		return err
	}
	j.metrics.AddRows(string(job.Format), job.TotalRows)
	if j.logger != nil {
		j.logger.Info("bulk generation ready",
			slog.String("job_id", job.ID),
			slog.String("file", path),
			slog.Int("rows", job.TotalRows))
	}
	return nil
}

func (j *JobRunner) fail(ctx context.Context, jobID string, cause error) error {
	_ = j.service.MarkFailed(ctx, jobID, cause.Error())
	return cause
}
