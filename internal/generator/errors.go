package generator

import "errors"

// ErrorKind classifies a stage invocation failure.
type ErrorKind string

const (
	// KindTransient failures are safe to retry: rate limits, upstream 5xx,
	// network errors, timeouts, and unparseable model output.
	KindTransient ErrorKind = "transient"

	// KindFatal failures mean the input is unprocessable; retrying the same
	// call will not help.
	KindFatal ErrorKind = "fatal"
)

// StageError is a classified failure from a stage invocation.
type StageError struct {
	Kind  ErrorKind
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return "stage " + e.Stage + " (" + string(e.Kind) + "): " + e.Err.Error()
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Transient wraps err as a retryable stage failure.
func Transient(stage string, err error) error {
	return &StageError{Kind: KindTransient, Stage: stage, Err: err}
}

// Fatal wraps err as a non-retryable stage failure.
func Fatal(stage string, err error) error {
	return &StageError{Kind: KindFatal, Stage: stage, Err: err}
}

// IsTransient reports whether err is a transient stage failure.
func IsTransient(err error) bool {
	var se *StageError
	return errors.As(err, &se) && se.Kind == KindTransient
}

// IsStageError reports whether err carries a stage failure classification at
// all; anything else is an infrastructure-level error.
func IsStageError(err error) bool {
	var se *StageError
	return errors.As(err, &se)
}
