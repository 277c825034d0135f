package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeBulkGenerate is the task type for bulk document generation.
	TaskTypeBulkGenerate = "bulk:generate"
)

// BulkGeneratePayload identifies the persisted job the worker should run.
type BulkGeneratePayload struct {
	JobID string `json:"job_id"`
}

// NewBulkGenerateTask constructs an Asynq task for a generation job.
func NewBulkGenerateTask(payload BulkGeneratePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeBulkGenerate, data), nil
}
