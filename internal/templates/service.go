package templates

import (
	"context"
	"fmt"
	"io"

	"github.com/tawthiq/tawthiq/internal/tabular"
)

// Store abstracts the template repository for the service and tests.
type Store interface {
	Get(ctx context.Context, id int64) (Template, error)
	List(ctx context.Context) ([]Template, error)
}

// Service applies the usability policy on top of the raw store.
type Service struct {
	store Store
}

// NewService constructs a Service instance.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Get returns a template ready for bulk generation. Templates without a
// canvas or without fields are rejected rather than surfaced downstream.
func (s *Service) Get(ctx context.Context, id int64) (Template, error) {
	tpl, err := s.store.Get(ctx, id)
	if err != nil {
		return Template{}, err
	}
	if !tpl.Usable() {
		return Template{}, fmt.Errorf("%w: template %d", ErrTemplateNotUsable, id)
	}
	return tpl, nil
}

// ListUsable returns the templates offered in the bulk generation picker.
func (s *Service) ListUsable(ctx context.Context) ([]Template, error) {
	all, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	usable := make([]Template, 0, len(all))
	for _, tpl := range all {
		if tpl.Usable() {
			usable = append(usable, tpl)
		}
	}
	return usable, nil
}

// WriteSample streams the downloadable sample workbook for a template and
// returns the suggested filename.
func (s *Service) WriteSample(ctx context.Context, id int64, w io.Writer) (string, error) {
	tpl, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if err := tabular.WriteSample(w, tpl.SampleHeaders(), tpl.SampleExample()); err != nil {
		return "", err
	}
	name := SanitizeName(tpl.Name)
	if name == "" {
		name = "template"
	}
	return fmt.Sprintf("%s_sample.xlsx", name), nil
}

// SanitizeName replaces characters unsafe in filenames and archive entry
// names with underscores. Callers supply their own fallback for an empty
// result.
func SanitizeName(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', '\n', '\r', '\t', ' ':
			out = append(out, '_')
		default:
			out = append(out, r)
		}
	}
	return string(out)
}
