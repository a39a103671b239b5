package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
)

// PostgresRepository persists job records in the papers table. Every write
// goes through a single conditional UPDATE so concurrent writers resolve
// through version checks rather than locks.
type PostgresRepository struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewPostgresRepository creates a PostgresRepository.
func NewPostgresRepository(db *sqlx.DB, logger *slog.Logger) *PostgresRepository {
	return &PostgresRepository{
		db:     db,
		logger: logger,
	}
}

// paperRow mirrors the papers table.
type paperRow struct {
	JobID                  string          `db:"job_id"`
	UserID                 string          `db:"user_id"`
	Request                []byte          `db:"request"`
	Status                 string          `db:"status"`
	StageResults           []byte          `db:"stage_results"`
	Error                  []byte          `db:"error"`
	ArtifactURL            sql.NullString  `db:"artifact_url"`
	QuestionsCount         sql.NullInt64   `db:"questions_count"`
	DifficultyDistribution []byte          `db:"difficulty_distribution"`
	Version                int64           `db:"version"`
	CreatedAt              time.Time       `db:"created_at"`
	UpdatedAt              time.Time       `db:"updated_at"`
}

const paperColumns = `
	job_id, user_id, request, status, stage_results, error,
	artifact_url, questions_count, difficulty_distribution,
	version, created_at, updated_at
`

func (r *paperRow) toJob() (*Job, error) {
	job := &Job{
		JobID:     r.JobID,
		UserID:    r.UserID,
		Status:    Status(r.Status),
		Version:   r.Version,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}

	if err := json.Unmarshal(r.Request, &job.Request); err != nil {
		return nil, fmt.Errorf("failed to decode request snapshot: %w", err)
	}
	if len(r.StageResults) > 0 {
		if err := json.Unmarshal(r.StageResults, &job.StageResults); err != nil {
			return nil, fmt.Errorf("failed to decode stage results: %w", err)
		}
	}
	if job.StageResults == nil {
		job.StageResults = map[string]json.RawMessage{}
	}
	if len(r.Error) > 0 {
		var jobErr JobError
		if err := json.Unmarshal(r.Error, &jobErr); err != nil {
			return nil, fmt.Errorf("failed to decode job error: %w", err)
		}
		job.Error = &jobErr
	}
	if r.ArtifactURL.Valid {
		job.ArtifactURL = r.ArtifactURL.String
	}
	if r.QuestionsCount.Valid {
		job.QuestionsCount = int(r.QuestionsCount.Int64)
	}
	if len(r.DifficultyDistribution) > 0 {
		if err := json.Unmarshal(r.DifficultyDistribution, &job.DifficultyDistribution); err != nil {
			return nil, fmt.Errorf("failed to decode difficulty distribution: %w", err)
		}
	}

	return job, nil
}

// Create inserts a new job record. The caller assigns the id; version starts
// at 1.
func (s *PostgresRepository) Create(ctx context.Context, job *Job) error {
	requestJSON, err := json.Marshal(job.Request)
	if err != nil {
		return fmt.Errorf("failed to marshal request snapshot: %w", err)
	}

	query := `
		INSERT INTO papers (
			job_id, user_id, request, status, stage_results,
			version, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, '{}'::jsonb,
			1, $5, $6
		)
	`

	_, err = s.db.ExecContext(ctx, query,
		job.JobID,
		job.UserID,
		requestJSON,
		string(job.Status),
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}

	s.logger.Info("Job created",
		slog.String("job_id", job.JobID),
		slog.String("user_id", job.UserID),
		slog.String("topic", job.Request.Topic),
	)

	return nil
}

// Get loads a job by id.
func (s *PostgresRepository) Get(ctx context.Context, jobID string) (*Job, error) {
	query := `SELECT ` + paperColumns + ` FROM papers WHERE job_id = $1`

	var row paperRow
	err := s.db.GetContext(ctx, &row, query, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return row.toJob()
}

// Update applies a conditional mutation. The UPDATE carries both the version
// check and the non-terminal guard, so a stale writer and a write against a
// completed or failed job both land on zero rows.
func (s *PostgresRepository) Update(ctx context.Context, jobID string, expectedVersion int64, upd Update) (*Job, error) {
	query := `UPDATE papers SET version = version + 1, updated_at = NOW()`
	args := []interface{}{}
	argIdx := 1

	if upd.Status != nil {
		query += fmt.Sprintf(", status = $%d", argIdx)
		args = append(args, string(*upd.Status))
		argIdx++
	}

	if upd.StageResult != nil {
		query += fmt.Sprintf(", stage_results = jsonb_set(stage_results, ARRAY[$%d], $%d::jsonb)", argIdx, argIdx+1)
		args = append(args, upd.StageResult.Stage, []byte(upd.StageResult.Payload))
		argIdx += 2
	}

	if upd.Error != nil {
		errJSON, err := json.Marshal(upd.Error)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal job error: %w", err)
		}
		query += fmt.Sprintf(", error = $%d", argIdx)
		args = append(args, errJSON)
		argIdx++
	}

	if upd.ArtifactURL != nil {
		query += fmt.Sprintf(", artifact_url = $%d", argIdx)
		args = append(args, *upd.ArtifactURL)
		argIdx++
	}

	if upd.QuestionsCount != nil {
		query += fmt.Sprintf(", questions_count = $%d", argIdx)
		args = append(args, *upd.QuestionsCount)
		argIdx++
	}

	if upd.DifficultyDistribution != nil {
		distJSON, err := json.Marshal(upd.DifficultyDistribution)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal difficulty distribution: %w", err)
		}
		query += fmt.Sprintf(", difficulty_distribution = $%d", argIdx)
		args = append(args, distJSON)
		argIdx++
	}

	query += fmt.Sprintf(`
		WHERE job_id = $%d
		  AND version = $%d
		  AND status NOT IN ($%d, $%d)
		RETURNING `+paperColumns, argIdx, argIdx+1, argIdx+2, argIdx+3)
	args = append(args, jobID, expectedVersion, string(StatusCompleted), string(StatusFailed))

	var row paperRow
	err := s.db.GetContext(ctx, &row, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, s.classifyMissedUpdate(ctx, jobID)
		}
		return nil, fmt.Errorf("failed to update job: %w", err)
	}

	return row.toJob()
}

// classifyMissedUpdate distinguishes a lost version race from an unknown id.
func (s *PostgresRepository) classifyMissedUpdate(ctx context.Context, jobID string) error {
	var exists bool
	err := s.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM papers WHERE job_id = $1)`, jobID)
	if err != nil {
		return fmt.Errorf("failed to classify update miss: %w", err)
	}
	if !exists {
		return ErrNotFound
	}

	s.logger.Warn("Job update lost version race",
		slog.String("job_id", jobID),
	)
	return ErrConflict
}

// List returns jobs matching the filter, newest first. One extra row beyond
// PageSize is returned when more results exist, as the cursor pagination
// probe.
func (s *PostgresRepository) List(ctx context.Context, filter Filter) ([]Job, error) {
	query := `SELECT ` + paperColumns + ` FROM papers WHERE 1=1`
	args := []interface{}{}
	argIdx := 1

	if filter.UserID != "" {
		query += fmt.Sprintf(" AND user_id = $%d", argIdx)
		args = append(args, filter.UserID)
		argIdx++
	}

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, filter.Status)
		argIdx++
	}

	if filter.Cursor != nil {
		query += fmt.Sprintf(" AND (created_at, job_id) < ($%d, $%d)", argIdx, argIdx+1)
		args = append(args, filter.Cursor.CreatedAt, filter.Cursor.JobID)
		argIdx += 2
	}

	query += " ORDER BY created_at DESC, job_id DESC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, filter.PageSize+1)

	var rows []paperRow
	err := s.db.SelectContext(ctx, &rows, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	out := make([]Job, 0, len(rows))
	for i := range rows {
		job, err := rows[i].toJob()
		if err != nil {
			return nil, err
		}
		out = append(out, *job)
	}

	return out, nil
}
