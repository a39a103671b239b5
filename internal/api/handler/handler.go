package handler

import (
	"context"
	"log/slog"

	"github.com/papergen/papergen-be/internal/artifact"
	"github.com/papergen/papergen-be/internal/jobs"
)

// Store is the persistence surface the API needs: create and read, never
// the worker's conditional writes.
type Store interface {
	Create(ctx context.Context, job *jobs.Job) error
	Get(ctx context.Context, jobID string) (*jobs.Job, error)
	List(ctx context.Context, filter jobs.Filter) ([]jobs.Job, error)
}

// Publisher enqueues a generation message after the job record is persisted.
type Publisher interface {
	PublishWithRetry(ctx context.Context, body []byte, contentType string) error
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger    *slog.Logger
	Store     Store
	Publisher Publisher
	Artifacts artifact.Store
}

// PaperHandler handles paper generation HTTP requests
type PaperHandler struct {
	logger    *slog.Logger
	store     Store
	publisher Publisher
	artifacts artifact.Store
}

// NewPaperHandler creates a new PaperHandler instance
func NewPaperHandler(deps *Dependencies) *PaperHandler {
	return &PaperHandler{
		logger:    deps.Logger,
		store:     deps.Store,
		publisher: deps.Publisher,
		artifacts: deps.Artifacts,
	}
}
