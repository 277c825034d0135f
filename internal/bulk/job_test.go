package bulk

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/tawthiq/tawthiq/internal/tabular"
	"github.com/tawthiq/tawthiq/jobs"
)

type jobFixture struct {
	runner   *JobRunner
	store    *memoryJobStore
	capturer *stubCapturer
	progress *ProgressStore
}

func newJobFixture(t *testing.T) *jobFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
	})

	store := newMemoryJobStore()
	capturer := &stubCapturer{data: testPNG(t)}
	orchestrator := NewOrchestrator(capturer, testLogger())
	orchestrator.WithSettle(0)
	sink, err := NewFileSink(t.TempDir())
	require.NoError(t, err)
	progress := NewProgressStore(client)

	tpls := &stubTemplates{tpl: batchTemplate()}
	tables := &stubTables{table: tabular.Table{
		Headers: []string{"name", "grade"},
		Rows: []tabular.Row{
			{"name": "Ahmed", "grade": "95"},
			{"name": "Sara", "grade": "88"},
		},
		TotalRows: 2,
	}}
	service := NewService(store, tpls, tables, &recordingQueue{})

	runner := NewJobRunner(JobConfig{
		Service:      service,
		Templates:    tpls,
		Tables:       tables,
		Orchestrator: orchestrator,
		Sink:         sink,
		Progress:     progress,
		Logger:       testLogger(),
	})
	return &jobFixture{runner: runner, store: store, capturer: capturer, progress: progress}
}

func (f *jobFixture) seedJob(id string, status Status) {
	job := Job{
		ID:           id,
		TemplateID:   1,
		TemplateName: "شهادة شكر",
		TableToken:   "token",
		Mappings:     validCreateRequest().Mappings,
		Format:       FormatArchivePNG,
		Scale:        2,
		TotalRows:    2,
		Status:       status,
	}
	f.store.jobs[id] = job
}

func bulkTask(t *testing.T, jobID string) *asynq.Task {
	t.Helper()
	task, err := jobs.NewBulkGenerateTask(jobs.BulkGeneratePayload{JobID: jobID})
	require.NoError(t, err)
	return task
}

func TestJobRunnerCompletesJob(t *testing.T) {
	f := newJobFixture(t)
	f.seedJob("job-1", StatusPending)

	require.NoError(t, f.runner.Handle(context.Background(), bulkTask(t, "job-1")))

	job := f.store.jobs["job-1"]
	require.Equal(t, StatusReady, job.Status)
	require.NotEmpty(t, job.FilePath)
	require.Positive(t, job.FileSize)

	data, err := os.ReadFile(job.FilePath)
	require.NoError(t, err)
	require.Equal(t, job.FileSize, int64(len(data)))
	require.Equal(t, 2, f.capturer.calls)

	progress, err := f.progress.Get(context.Background(), "job-1")
	require.NoError(t, err)
	require.Equal(t, Progress{Current: 2, Total: 2}, progress)
}

func TestJobRunnerSkipsUnknownJob(t *testing.T) {
	f := newJobFixture(t)

	err := f.runner.Handle(context.Background(), bulkTask(t, "missing"))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestJobRunnerSkipsMalformedPayload(t *testing.T) {
	f := newJobFixture(t)

	err := f.runner.Handle(context.Background(), asynq.NewTask(jobs.TaskTypeBulkGenerate, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestJobRunnerIgnoresFinishedJob(t *testing.T) {
	f := newJobFixture(t)
	f.seedJob("job-1", StatusReady)

	require.NoError(t, f.runner.Handle(context.Background(), bulkTask(t, "job-1")))
	require.Zero(t, f.capturer.calls)
}

func TestJobRunnerMarksFailureOnCaptureError(t *testing.T) {
	f := newJobFixture(t)
	f.seedJob("job-1", StatusPending)
	f.capturer.failCall = 1
	f.capturer.err = errors.New("backend unavailable")

	err := f.runner.Handle(context.Background(), bulkTask(t, "job-1"))
	require.Error(t, err)

	job := f.store.jobs["job-1"]
	require.Equal(t, StatusFailed, job.Status)
	require.Contains(t, job.Error, "backend unavailable")
}

func TestFileSinkWritesArtifact(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewFileSink(dir)
	require.NoError(t, err)

	path, err := sink.Save(context.Background(), "job-9", Artifact{
		Filename:    "out_bulk_2.zip",
		ContentType: "application/zip",
		Data:        []byte("zip"),
	})
	require.NoError(t, err)
	require.Contains(t, path, "job-9")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "zip", string(data))
}
