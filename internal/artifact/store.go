package artifact

import (
	"context"
	"fmt"
)

// Store is durable blob storage for finished papers, addressed by job id.
// The artifact is written once, after the final stage succeeds and before
// the job is marked completed.
type Store interface {
	// Put stores the formatted paper for a job and returns its URL.
	Put(ctx context.Context, jobID string, content []byte) (string, error)

	// Get returns the stored paper for a job.
	Get(ctx context.Context, jobID string) ([]byte, error)

	// Exists reports whether an artifact is stored for a job.
	Exists(ctx context.Context, jobID string) (bool, error)
}

// Key returns the storage key for a job's paper.
func Key(jobID string) string {
	return fmt.Sprintf("papers/%s/paper.json", jobID)
}
