package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/papergen/papergen-be/internal/paper"
)

func testRequest() paper.GenerationRequest {
	req := paper.GenerationRequest{Topic: "Graph Traversal"}
	req.ApplyDefaults()
	return req
}

func TestMemoryRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	job := NewJob("11111111-1111-1111-1111-111111111111", "user-1", testRequest())
	require.NoError(t, repo.Create(ctx, job))

	got, err := repo.Get(ctx, job.JobID)
	require.NoError(t, err)
	assert.Equal(t, StatusQueued, got.Status)
	assert.Equal(t, int64(1), got.Version)
	assert.Equal(t, "Graph Traversal", got.Request.Topic)

	t.Run("duplicate create fails", func(t *testing.T) {
		require.Error(t, repo.Create(ctx, job))
	})

	t.Run("unknown job returns ErrNotFound", func(t *testing.T) {
		_, err := repo.Get(ctx, "22222222-2222-2222-2222-222222222222")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("get returns a copy", func(t *testing.T) {
		got.Request.Topic = "mutated"
		again, err := repo.Get(ctx, job.JobID)
		require.NoError(t, err)
		assert.Equal(t, "Graph Traversal", again.Request.Topic)
	})
}

func TestMemoryRepository_UpdateVersioning(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	job := NewJob("11111111-1111-1111-1111-111111111111", "user-1", testRequest())
	require.NoError(t, repo.Create(ctx, job))

	processing := StatusProcessing
	updated, err := repo.Update(ctx, job.JobID, 1, Update{Status: &processing})
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, updated.Status)
	assert.Equal(t, int64(2), updated.Version)

	t.Run("stale version conflicts", func(t *testing.T) {
		_, err := repo.Update(ctx, job.JobID, 1, Update{Status: &processing})
		assert.ErrorIs(t, err, ErrConflict)
	})

	t.Run("unknown job not found", func(t *testing.T) {
		_, err := repo.Update(ctx, "33333333-3333-3333-3333-333333333333", 1, Update{Status: &processing})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("stage result and counters persist", func(t *testing.T) {
		count := 5
		updated, err := repo.Update(ctx, job.JobID, 2, Update{
			StageResult:            &StageResult{Stage: paper.StageTopicAnalysis, Payload: []byte(`{"subtopics":["a"]}`)},
			QuestionsCount:         &count,
			DifficultyDistribution: map[string]int{"easy": 2, "medium": 2, "hard": 1},
		})
		require.NoError(t, err)
		assert.Equal(t, int64(3), updated.Version)
		assert.JSONEq(t, `{"subtopics":["a"]}`, string(updated.StageResults[paper.StageTopicAnalysis]))
		assert.Equal(t, 5, updated.QuestionsCount)
		assert.Equal(t, map[string]int{"easy": 2, "medium": 2, "hard": 1}, updated.DifficultyDistribution)
	})
}

func TestMemoryRepository_TerminalImmutability(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	job := NewJob("11111111-1111-1111-1111-111111111111", "user-1", testRequest())
	require.NoError(t, repo.Create(ctx, job))

	failed := StatusFailed
	updated, err := repo.Update(ctx, job.JobID, 1, Update{
		Status: &failed,
		Error:  &JobError{Kind: FailureFatal, Stage: paper.StageQuestionDrafting, Message: "bad prompt"},
	})
	require.NoError(t, err)
	require.Equal(t, StatusFailed, updated.Status)

	// Even a correctly versioned write is rejected once terminal.
	processing := StatusProcessing
	_, err = repo.Update(ctx, job.JobID, updated.Version, Update{Status: &processing})
	assert.ErrorIs(t, err, ErrConflict)

	got, err := repo.Get(ctx, job.JobID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
	require.NotNil(t, got.Error)
	assert.Equal(t, FailureFatal, got.Error.Kind)
}

func TestMemoryRepository_List(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ids := []string{
		"00000000-0000-0000-0000-000000000001",
		"00000000-0000-0000-0000-000000000002",
		"00000000-0000-0000-0000-000000000003",
	}
	for i, id := range ids {
		job := NewJob(id, "user-1", testRequest())
		job.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, repo.Create(ctx, job))
	}
	other := NewJob("00000000-0000-0000-0000-000000000009", "user-2", testRequest())
	other.CreatedAt = base.Add(time.Hour)
	require.NoError(t, repo.Create(ctx, other))

	t.Run("newest first with user filter", func(t *testing.T) {
		out, err := repo.List(ctx, Filter{UserID: "user-1", PageSize: 10})
		require.NoError(t, err)
		require.Len(t, out, 3)
		assert.Equal(t, ids[2], out[0].JobID)
		assert.Equal(t, ids[0], out[2].JobID)
	})

	t.Run("pagination probe returns one extra row", func(t *testing.T) {
		out, err := repo.List(ctx, Filter{UserID: "user-1", PageSize: 2})
		require.NoError(t, err)
		assert.Len(t, out, 3)
	})

	t.Run("cursor resumes after last row", func(t *testing.T) {
		out, err := repo.List(ctx, Filter{
			UserID:   "user-1",
			PageSize: 10,
			Cursor:   &Cursor{CreatedAt: base.Add(2 * time.Minute), JobID: ids[2]},
		})
		require.NoError(t, err)
		require.Len(t, out, 2)
		assert.Equal(t, ids[1], out[0].JobID)
		assert.Equal(t, ids[0], out[1].JobID)
	})

	t.Run("status filter", func(t *testing.T) {
		out, err := repo.List(ctx, Filter{Status: string(StatusQueued), PageSize: 10})
		require.NoError(t, err)
		assert.Len(t, out, 4)
	})
}
