package jobs

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryRepository is an in-process Repository with the same conditional
// write semantics as the Postgres implementation. It backs tests and
// single-process deployments that do not warrant a database.
type MemoryRepository struct {
	mu   sync.Mutex
	jobs map[string]*Job
	now  func() time.Time
}

// NewMemoryRepository creates an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		jobs: make(map[string]*Job),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Create stores a new job record.
func (m *MemoryRepository) Create(_ context.Context, job *Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.jobs[job.JobID]; exists {
		return fmt.Errorf("job %s already exists", job.JobID)
	}
	m.jobs[job.JobID] = job.Clone()
	return nil
}

// Get returns a copy of the job, so callers never alias stored state.
func (m *MemoryRepository) Get(_ context.Context, jobID string) (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[jobID]
	if !ok {
		return nil, ErrNotFound
	}
	return job.Clone(), nil
}

// Update applies a conditional mutation under the same rules as Postgres:
// version must match, terminal jobs reject every write.
func (m *MemoryRepository) Update(_ context.Context, jobID string, expectedVersion int64, upd Update) (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.jobs[jobID]
	if !ok {
		return nil, ErrNotFound
	}
	if stored.Status.Terminal() || stored.Version != expectedVersion {
		return nil, ErrConflict
	}

	job := stored.Clone()
	if upd.Status != nil {
		job.Status = *upd.Status
	}
	if upd.StageResult != nil {
		job.StageResults[upd.StageResult.Stage] = append([]byte(nil), upd.StageResult.Payload...)
	}
	if upd.Error != nil {
		e := *upd.Error
		job.Error = &e
	}
	if upd.ArtifactURL != nil {
		job.ArtifactURL = *upd.ArtifactURL
	}
	if upd.QuestionsCount != nil {
		job.QuestionsCount = *upd.QuestionsCount
	}
	if upd.DifficultyDistribution != nil {
		dist := make(map[string]int, len(upd.DifficultyDistribution))
		for k, v := range upd.DifficultyDistribution {
			dist[k] = v
		}
		job.DifficultyDistribution = dist
	}
	job.Version++
	job.UpdatedAt = m.now()

	m.jobs[jobID] = job
	return job.Clone(), nil
}

// List returns jobs matching the filter, newest first, with the same
// one-extra-row pagination probe as the Postgres implementation.
func (m *MemoryRepository) List(_ context.Context, filter Filter) ([]Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Job
	for _, job := range m.jobs {
		if filter.UserID != "" && job.UserID != filter.UserID {
			continue
		}
		if filter.Status != "" && string(job.Status) != filter.Status {
			continue
		}
		if filter.Cursor != nil {
			if !job.CreatedAt.Before(filter.Cursor.CreatedAt) &&
				!(job.CreatedAt.Equal(filter.Cursor.CreatedAt) && job.JobID < filter.Cursor.JobID) {
				continue
			}
		}
		out = append(out, *job.Clone())
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].JobID > out[j].JobID
	})

	if filter.PageSize > 0 && len(out) > filter.PageSize+1 {
		out = out[:filter.PageSize+1]
	}

	return out, nil
}
