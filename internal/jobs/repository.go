package jobs

import (
	"context"
	"time"
)

// Repository is the durable store of job records. Update is a
// compare-and-swap: it applies only when the stored version equals
// expectedVersion and the job is not terminal, and it increments the version
// on success. A lost race returns ErrConflict.
type Repository interface {
	Create(ctx context.Context, job *Job) error
	Get(ctx context.Context, jobID string) (*Job, error)
	Update(ctx context.Context, jobID string, expectedVersion int64, upd Update) (*Job, error)
}

// Filter selects jobs for listing.
type Filter struct {
	UserID   string
	Status   string
	PageSize int
	Cursor   *Cursor
}

// Cursor is an opaque pagination position over (created_at, job_id)
// descending.
type Cursor struct {
	CreatedAt time.Time
	JobID     string
}

// Lister is the listing surface consumed by the API service, separate from
// Repository because the worker never lists.
type Lister interface {
	List(ctx context.Context, filter Filter) ([]Job, error)
}
