package generator

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/papergen/papergen-be/internal/paper"
)

func TestNewInvoker(t *testing.T) {
	logger := slog.Default()

	tests := []struct {
		provider string
		wantName string
		wantErr  bool
	}{
		{provider: "openai", wantName: "openai"},
		{provider: "anthropic", wantName: "anthropic"},
		{provider: "mock", wantName: "mock"},
		{provider: "llamacpp", wantErr: true},
		{provider: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			inv, err := NewInvoker(&Config{Provider: tt.provider, Model: "m", APIKey: "k"}, logger)

			if tt.wantErr {
				require.Error(t, err)
				assert.Nil(t, inv)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, inv.Name())
		})
	}
}

func TestMockInvoker_StageOutputs(t *testing.T) {
	ctx := context.Background()
	inv := NewMockInvoker()

	analysisInput, _ := json.Marshal(paper.TopicAnalysisInput{
		Topic:        "Graph Traversal",
		NumQuestions: 5,
	})
	out, err := inv.Invoke(ctx, paper.StageTopicAnalysis, analysisInput)
	require.NoError(t, err)

	var analysis paper.TopicAnalysis
	require.NoError(t, json.Unmarshal(out, &analysis))
	assert.NotEmpty(t, analysis.Subtopics)
	assert.InDelta(t, 1.0, analysis.DifficultySpread[paper.DifficultyEasy]+
		analysis.DifficultySpread[paper.DifficultyMedium]+
		analysis.DifficultySpread[paper.DifficultyHard], 0.001)

	draftInput, _ := json.Marshal(paper.DraftInput{
		Topic:         "Graph Traversal",
		Subtopics:     analysis.Subtopics,
		NumQuestions:  5,
		QuestionTypes: []string{paper.QuestionTypeMultipleChoice},
	})
	out, err = inv.Invoke(ctx, paper.StageQuestionDrafting, draftInput)
	require.NoError(t, err)

	var draft paper.DraftSet
	require.NoError(t, json.Unmarshal(out, &draft))
	require.Len(t, draft.Questions, 5)
	for _, q := range draft.Questions {
		assert.NotEmpty(t, q.Text)
		assert.Equal(t, paper.QuestionTypeMultipleChoice, q.Type)
		assert.NotEmpty(t, q.CorrectAnswer)
	}

	t.Run("unknown stage is fatal", func(t *testing.T) {
		_, err := inv.Invoke(ctx, "grading", []byte(`{}`))
		require.Error(t, err)
		assert.True(t, IsStageError(err))
		assert.False(t, IsTransient(err))
	})
}

func TestFailingInvoker(t *testing.T) {
	wantErr := Transient(paper.StageTopicAnalysis, assert.AnError)
	inv := NewFailingInvoker(wantErr)

	_, err := inv.Invoke(context.Background(), paper.StageTopicAnalysis, []byte(`{}`))
	assert.ErrorIs(t, err, wantErr)
}
