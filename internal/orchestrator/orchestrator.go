package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/papergen/papergen-be/internal/artifact"
	"github.com/papergen/papergen-be/internal/generator"
	"github.com/papergen/papergen-be/internal/jobs"
	"github.com/papergen/papergen-be/internal/paper"
)

// Orchestrator drives a job through the pipeline: it claims the job with a
// version-checked write, runs stages from the first one missing a persisted
// result, and lands the job on a terminal status. Run is idempotent and safe
// under concurrent invocation for the same job id.
type Orchestrator struct {
	repo      jobs.Repository
	invoker   generator.Invoker
	artifacts artifact.Store
	retry     RetryPolicy
	logger    *slog.Logger
}

// New creates an Orchestrator. All collaborators are explicit; there is no
// ambient state.
func New(repo jobs.Repository, invoker generator.Invoker, artifacts artifact.Store, retry RetryPolicy, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		repo:      repo,
		invoker:   invoker,
		artifacts: artifacts,
		retry:     retry,
		logger:    logger,
	}
}

// Run processes one job to a terminal state.
//
// Returns nil when the job reached (or had already reached) a terminal
// status, jobs.ErrConflict when another run owns the job, jobs.ErrNotFound
// for an unknown id, and any other error for infrastructure failures the
// caller should redeliver.
func (o *Orchestrator) Run(ctx context.Context, jobID string) error {
	job, err := o.repo.Get(ctx, jobID)
	if err != nil {
		return err
	}

	if job.Status.Terminal() {
		o.logger.Debug("Job already terminal, nothing to do",
			slog.String("job_id", jobID),
			slog.String("status", string(job.Status)),
		)
		return nil
	}

	// Claim the job. The version check makes this a single-flight gate: of
	// any concurrent runs, exactly one lands this write. A job stuck in
	// processing after a crash is re-claimed the same way on redelivery.
	processing := jobs.StatusProcessing
	job, err = o.repo.Update(ctx, jobID, job.Version, jobs.Update{Status: &processing})
	if err != nil {
		if errors.Is(err, jobs.ErrConflict) {
			o.logger.Info("Job claimed by another run, skipping",
				slog.String("job_id", jobID),
			)
		}
		return err
	}

	o.logger.Info("Job claimed",
		slog.String("job_id", jobID),
		slog.String("topic", job.Request.Topic),
		slog.Int("stages_done", len(job.StageResults)),
	)

	for _, st := range pipeline() {
		if _, done := job.StageResults[st.name]; done {
			continue
		}

		job, err = o.runStage(ctx, job, st)
		if err != nil {
			return err
		}
		if job.Status.Terminal() {
			// Stage failure already persisted.
			return nil
		}
	}

	return o.complete(ctx, job)
}

// runStage executes one stage under the retry policy and persists its
// result. The returned job carries the fresh version for the next write.
func (o *Orchestrator) runStage(ctx context.Context, job *jobs.Job, st stageDescriptor) (*jobs.Job, error) {
	input, err := st.buildInput(job)
	if err != nil {
		return nil, fmt.Errorf("failed to build input for stage %s: %w", st.name, err)
	}

	o.logger.Info("Running stage",
		slog.String("job_id", job.JobID),
		slog.String("stage", st.name),
	)

	var outcome *stageOutcome
	err = o.retry.Do(ctx, o.logger, st.name, func(attemptCtx context.Context) error {
		output, invokeErr := o.invoker.Invoke(attemptCtx, st.name, input)
		if invokeErr != nil {
			return invokeErr
		}
		result, finErr := st.finalize(job, output)
		if finErr != nil {
			return finErr
		}
		outcome = result
		return nil
	})
	if err != nil {
		if generator.IsStageError(err) {
			return o.failJob(ctx, job, st.name, err)
		}
		// Context cancellation or infrastructure failure: not attributed to
		// the job, redelivery retries it.
		return nil, err
	}

	upd := jobs.Update{
		StageResult: &jobs.StageResult{Stage: st.name, Payload: outcome.payload},
	}
	if outcome.questionsCount != nil {
		upd.QuestionsCount = outcome.questionsCount
		upd.DifficultyDistribution = outcome.distribution
	}

	updated, err := o.repo.Update(ctx, job.JobID, job.Version, upd)
	if err != nil {
		// A conflict here means another owner progressed the job past us;
		// abort this run and let theirs finish.
		return nil, err
	}

	o.logger.Info("Stage completed",
		slog.String("job_id", job.JobID),
		slog.String("stage", st.name),
	)

	return updated, nil
}

// failJob records the classified stage failure and moves the job to failed.
func (o *Orchestrator) failJob(ctx context.Context, job *jobs.Job, stage string, stageErr error) (*jobs.Job, error) {
	kind := jobs.FailureFatal
	if generator.IsTransient(stageErr) {
		kind = jobs.FailureTransient
	}

	failed := jobs.StatusFailed
	updated, err := o.repo.Update(ctx, job.JobID, job.Version, jobs.Update{
		Status: &failed,
		Error: &jobs.JobError{
			Kind:    kind,
			Stage:   stage,
			Message: stageErr.Error(),
		},
	})
	if err != nil {
		return nil, err
	}

	o.logger.Warn("Job failed",
		slog.String("job_id", job.JobID),
		slog.String("stage", stage),
		slog.String("kind", string(kind)),
		slog.String("error", stageErr.Error()),
	)

	return updated, nil
}

// paperArtifact is the document written to the artifact store.
type paperArtifact struct {
	PaperID                string               `json:"paper_id"`
	Topic                  string               `json:"topic"`
	GeneratedAt            time.Time            `json:"generated_at"`
	DurationMinutes        int                  `json:"duration_minutes"`
	DifficultyDistribution map[string]int       `json:"difficulty_distribution"`
	Paper                  paper.FormattedPaper `json:"paper"`
}

// complete writes the artifact, then flips the job to completed. The order
// matters: a client observing completed must always find the artifact.
func (o *Orchestrator) complete(ctx context.Context, job *jobs.Job) error {
	formatted, err := formattedResult(job)
	if err != nil {
		return err
	}

	content, err := json.Marshal(paperArtifact{
		PaperID:                job.JobID,
		Topic:                  job.Request.Topic,
		GeneratedAt:            time.Now().UTC(),
		DurationMinutes:        formatted.DurationMinutes,
		DifficultyDistribution: job.DifficultyDistribution,
		Paper:                  *formatted,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal artifact: %w", err)
	}

	url, err := o.artifacts.Put(ctx, job.JobID, content)
	if err != nil {
		return fmt.Errorf("failed to store artifact: %w", err)
	}

	completed := jobs.StatusCompleted
	if _, err := o.repo.Update(ctx, job.JobID, job.Version, jobs.Update{
		Status:      &completed,
		ArtifactURL: &url,
	}); err != nil {
		return err
	}

	o.logger.Info("Job completed",
		slog.String("job_id", job.JobID),
		slog.String("artifact_url", url),
		slog.Int("questions", job.QuestionsCount),
	)

	return nil
}
