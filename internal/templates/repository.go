package templates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tawthiq/tawthiq/internal/render"
)

// Repository reads templates from PostgreSQL. Canvas elements and fields
// live as JSON documents, mirroring the document-store the authoring tool
// writes into.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository instance.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const templateColumns = `id, name, background_url, canvas_width, canvas_height, elements, fields, is_active, created_at`

// Get loads one template by id.
func (r *Repository) Get(ctx context.Context, id int64) (Template, error) {
	query := fmt.Sprintf(`SELECT %s FROM templates WHERE id = $1`, templateColumns)
	tpl, err := scanTemplate(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Template{}, ErrTemplateNotFound
		}
		return Template{}, fmt.Errorf("templates: get %d: %w", id, err)
	}
	return tpl, nil
}

// List returns all active templates ordered by creation time.
func (r *Repository) List(ctx context.Context) ([]Template, error) {
	query := fmt.Sprintf(`SELECT %s FROM templates WHERE is_active ORDER BY created_at DESC`, templateColumns)
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("templates: list: %w", err)
	}
	defer rows.Close()

	var out []Template
	for rows.Next() {
		tpl, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("templates: list scan: %w", err)
		}
		out = append(out, tpl)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTemplate(row rowScanner) (Template, error) {
	var (
		tpl          Template
		elementsJSON []byte
		fieldsJSON   []byte
	)
	if err := row.Scan(
		&tpl.ID,
		&tpl.Name,
		&tpl.Canvas.BackgroundURL,
		&tpl.Canvas.Width,
		&tpl.Canvas.Height,
		&elementsJSON,
		&fieldsJSON,
		&tpl.IsActive,
		&tpl.CreatedAt,
	); err != nil {
		return Template{}, err
	}
	if len(elementsJSON) > 0 {
		if err := json.Unmarshal(elementsJSON, &tpl.Canvas.Elements); err != nil {
			return Template{}, fmt.Errorf("decode elements: %w", err)
		}
	}
	if len(fieldsJSON) > 0 {
		var fields []render.Field
		if err := json.Unmarshal(fieldsJSON, &fields); err != nil {
			return Template{}, fmt.Errorf("decode fields: %w", err)
		}
		tpl.Fields = fields
	}
	return tpl, nil
}
