package jobs

import "errors"

var (
	// ErrNotFound is returned when a job id is unknown to the repository.
	ErrNotFound = errors.New("job not found")

	// ErrConflict is returned when a conditional write lost a version race,
	// or when an update targets a terminal job. It means another run owns
	// the job; the caller should abort, not retry.
	ErrConflict = errors.New("job version conflict")
)
