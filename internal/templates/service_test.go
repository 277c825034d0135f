package templates

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tawthiq/tawthiq/internal/render"
	"github.com/tawthiq/tawthiq/internal/tabular"
)

type stubStore struct {
	templates map[int64]Template
}

func (s *stubStore) Get(ctx context.Context, id int64) (Template, error) {
	tpl, ok := s.templates[id]
	if !ok {
		return Template{}, ErrTemplateNotFound
	}
	return tpl, nil
}

func (s *stubStore) List(ctx context.Context) ([]Template, error) {
	out := make([]Template, 0, len(s.templates))
	for _, tpl := range s.templates {
		out = append(out, tpl)
	}
	return out, nil
}

func usableTemplate() Template {
	return Template{
		ID:   1,
		Name: "شهادة شكر",
		Canvas: render.Canvas{
			BackgroundURL: "https://cdn.example/bg.png",
			Width:         1120,
			Height:        790,
		},
		Fields: []render.Field{
			{ID: "f1", Name: "student_name", Labels: map[string]string{"ar": "اسم الطالب"}, Type: render.FieldText},
			{ID: "f2", Name: "date", Type: render.FieldDate},
		},
		IsActive: true,
	}
}

func TestServiceGetRejectsUnusable(t *testing.T) {
	noFields := usableTemplate()
	noFields.ID = 2
	noFields.Fields = nil

	noCanvas := usableTemplate()
	noCanvas.ID = 3
	noCanvas.Canvas = render.Canvas{}

	svc := NewService(&stubStore{templates: map[int64]Template{
		1: usableTemplate(),
		2: noFields,
		3: noCanvas,
	}})

	_, err := svc.Get(context.Background(), 1)
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), 2)
	require.ErrorIs(t, err, ErrTemplateNotUsable)

	_, err = svc.Get(context.Background(), 3)
	require.ErrorIs(t, err, ErrTemplateNotUsable)

	_, err = svc.Get(context.Background(), 99)
	require.ErrorIs(t, err, ErrTemplateNotFound)
}

func TestServiceListUsableFilters(t *testing.T) {
	noFields := usableTemplate()
	noFields.ID = 2
	noFields.Fields = nil

	svc := NewService(&stubStore{templates: map[int64]Template{
		1: usableTemplate(),
		2: noFields,
	}})
	usable, err := svc.ListUsable(context.Background())
	require.NoError(t, err)
	require.Len(t, usable, 1)
	require.Equal(t, int64(1), usable[0].ID)
}

func TestWriteSampleUsesFieldLabels(t *testing.T) {
	svc := NewService(&stubStore{templates: map[int64]Template{1: usableTemplate()}})
	buf := &bytes.Buffer{}
	filename, err := svc.WriteSample(context.Background(), 1, buf)
	require.NoError(t, err)
	require.Equal(t, "شهادة_شكر_sample.xlsx", filename)

	table, err := tabular.Parse(buf, filename)
	require.NoError(t, err)
	require.Equal(t, []string{"اسم الطالب", "date"}, table.Headers)
}

func TestSanitizeName(t *testing.T) {
	require.Equal(t, "Ahmed_Ali", SanitizeName("Ahmed/Ali"))
	require.Equal(t, "شهادة_شكر", SanitizeName("شهادة شكر"))
	require.Equal(t, "a_b_c", SanitizeName(`a\b:c`))
	require.Equal(t, "", SanitizeName(""))
}

func TestFieldDescriptorsCarryLabels(t *testing.T) {
	descriptors := usableTemplate().FieldDescriptors()
	require.Len(t, descriptors, 2)
	require.Equal(t, "student_name", descriptors[0].Name)
	require.Equal(t, []string{"اسم الطالب"}, descriptors[0].Labels)
}
