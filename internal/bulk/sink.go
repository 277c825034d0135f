package bulk

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// OutputSink persists a finished artifact. The pipeline itself has no
// environment side effects; saving is the caller's concern.
type OutputSink interface {
	Save(ctx context.Context, jobID string, artifact Artifact) (string, error)
}

// FileSink writes artifacts under a storage directory, one subdirectory
// per job.
type FileSink struct {
	dir string
}

// NewFileSink constructs a FileSink rooted at dir.
func NewFileSink(dir string) (*FileSink, error) {
	if dir == "" {
		return nil, fmt.Errorf("bulk: storage dir required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("bulk: create storage dir: %w", err)
	}
	return &FileSink{dir: dir}, nil
}

// Save writes the artifact and returns its absolute path.
func (s *FileSink) Save(ctx context.Context, jobID string, artifact Artifact) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	jobDir := filepath.Join(s.dir, jobID)
	if err := os.MkdirAll(jobDir, 0o755); err != nil {
		return "", fmt.Errorf("bulk: create job dir: %w", err)
	}
	path := filepath.Join(jobDir, artifact.Filename)
	if err := os.WriteFile(path, artifact.Data, 0o644); err != nil {
		return "", fmt.Errorf("bulk: write artifact: %w", err)
	}
	return path, nil
}
