package bulk

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// progressTTL keeps finished progress entries around long enough for the
// UI to read the final state.
const progressTTL = 2 * time.Hour

// Progress is the (current, total) pair the UI renders as a percentage.
type Progress struct {
	Current int `json:"current"`
	Total   int `json:"total"`
}

// ProgressStore publishes per-job progress to Redis so the HTTP layer can
// serve live percentages while the worker churns through rows.
type ProgressStore struct {
	client *redis.Client
}

// NewProgressStore constructs a ProgressStore instance.
func NewProgressStore(client *redis.Client) *ProgressStore {
	return &ProgressStore{client: client}
}

func progressKey(jobID string) string {
	return "tawthiq:bulk:progress:" + jobID
}

// Publish records the latest (current, total) for a job.
func (s *ProgressStore) Publish(ctx context.Context, jobID string, current, total int) error {
	key := progressKey(jobID)
	if err := s.client.HSet(ctx, key, "current", current, "total", total).Err(); err != nil {
		return fmt.Errorf("bulk: publish progress: %w", err)
	}
	return s.client.Expire(ctx, key, progressTTL).Err()
}

// Get reads the last published progress; a job with no entry yet reports
// zero progress.
func (s *ProgressStore) Get(ctx context.Context, jobID string) (Progress, error) {
	values, err := s.client.HGetAll(ctx, progressKey(jobID)).Result()
	if err != nil {
		return Progress{}, fmt.Errorf("bulk: read progress: %w", err)
	}
	var p Progress
	if v := values["current"]; v != "" {
		if p.Current, err = strconv.Atoi(v); err != nil {
			return Progress{}, fmt.Errorf("bulk: decode progress current: %w", err)
		}
	}
	if v := values["total"]; v != "" {
		if p.Total, err = strconv.Atoi(v); err != nil {
			return Progress{}, fmt.Errorf("bulk: decode progress total: %w", err)
		}
	}
	return p, nil
}

// Clear removes a job's progress entry.
func (s *ProgressStore) Clear(ctx context.Context, jobID string) error {
	return s.client.Del(ctx, progressKey(jobID)).Err()
}
