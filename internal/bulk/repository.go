package bulk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tawthiq/tawthiq/internal/mapping"
)

// uniqueViolation is the PostgreSQL error code for duplicate keys.
const uniqueViolation = "23505"

// ErrJobExists indicates an insert collided with an existing job id.
var ErrJobExists = errors.New("bulk: job already exists")

// Repository persists generation jobs in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository instance.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert stores a new pending job.
func (r *Repository) Insert(ctx context.Context, job Job) error {
	mappings, err := json.Marshal(job.Mappings)
	if err != nil {
		return fmt.Errorf("bulk: encode mappings: %w", err)
	}
	const insert = `
		INSERT INTO bulk_jobs (id, template_id, template_name, table_token, mappings, format, scale, total_rows, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())`
	_, err = r.pool.Exec(ctx, insert,
		job.ID, job.TemplateID, job.TemplateName, job.TableToken,
		mappings, string(job.Format), job.Scale, job.TotalRows, string(StatusPending))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrJobExists
		}
		return fmt.Errorf("bulk: insert job: %w", err)
	}
	return nil
}

// Get loads a job by id.
func (r *Repository) Get(ctx context.Context, id string) (Job, error) {
	const query = `
		SELECT id, template_id, template_name, table_token, mappings, format, scale, total_rows,
		       status, COALESCE(file_path, ''), COALESCE(file_size, 0), COALESCE(error, ''),
		       created_at, updated_at
		FROM bulk_jobs WHERE id = $1`
	var (
		job          Job
		mappingsJSON []byte
		format       string
		status       string
	)
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&job.ID, &job.TemplateID, &job.TemplateName, &job.TableToken,
		&mappingsJSON, &format, &job.Scale, &job.TotalRows,
		&status, &job.FilePath, &job.FileSize, &job.Error,
		&job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Job{}, ErrJobNotFound
		}
		return Job{}, fmt.Errorf("bulk: get job %s: %w", id, err)
	}
	job.Format = Format(format)
	job.Status = Status(status)
	if len(mappingsJSON) > 0 {
		var mappings []mapping.ColumnMapping
		if err := json.Unmarshal(mappingsJSON, &mappings); err != nil {
			return Job{}, fmt.Errorf("bulk: decode mappings: %w", err)
		}
		job.Mappings = mappings
	}
	return job, nil
}

// MarkInProgress transitions pending → in_progress.
func (r *Repository) MarkInProgress(ctx context.Context, id string) error {
	return r.transition(ctx, id, StatusInProgress, string(StatusPending))
}

// MarkReady records the finished artifact.
func (r *Repository) MarkReady(ctx context.Context, id, filePath string, fileSize int64) error {
	const update = `
		UPDATE bulk_jobs SET status = $2, file_path = $3, file_size = $4, error = NULL, updated_at = NOW()
		WHERE id = $1 AND status = $5`
	tag, err := r.pool.Exec(ctx, update, id, string(StatusReady), filePath, fileSize, string(StatusInProgress))
	if err != nil {
		return fmt.Errorf("bulk: mark ready: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalidStatus
	}
	return nil
}

// MarkFailed records a terminal failure message.
func (r *Repository) MarkFailed(ctx context.Context, id, message string) error {
	const update = `
		UPDATE bulk_jobs SET status = $2, error = $3, updated_at = NOW()
		WHERE id = $1 AND status <> $4`
	tag, err := r.pool.Exec(ctx, update, id, string(StatusFailed), message, string(StatusReady))
	if err != nil {
		return fmt.Errorf("bulk: mark failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalidStatus
	}
	return nil
}

func (r *Repository) transition(ctx context.Context, id string, to Status, fromStatuses ...string) error {
	const update = `
		UPDATE bulk_jobs SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = ANY($3)`
	tag, err := r.pool.Exec(ctx, update, id, string(to), fromStatuses)
	if err != nil {
		return fmt.Errorf("bulk: transition to %s: %w", to, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalidStatus
	}
	return nil
}
