package generator

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{
			name:  "bare object",
			input: `{"subtopics":["a","b"]}`,
			want:  `{"subtopics":["a","b"]}`,
		},
		{
			name:  "bare array",
			input: `[1,2,3]`,
			want:  `[1,2,3]`,
		},
		{
			name:  "object with surrounding prose",
			input: "Here is the result:\n{\"questions\":[]}\nLet me know if you need anything else.",
			want:  `{"questions":[]}`,
		},
		{
			name:  "markdown code fence",
			input: "```json\n{\"title\":\"Quiz\"}\n```",
			want:  `{"title":"Quiz"}`,
		},
		{
			name:  "array in fence",
			input: "```\n[{\"question_text\":\"q\"}]\n```",
			want:  `[{"question_text":"q"}]`,
		},
		{
			name:  "leading whitespace",
			input: "   \n\t{\"a\":1}",
			want:  `{"a":1}`,
		},
		{
			name:    "no json at all",
			input:   "I could not generate anything useful.",
			wantErr: true,
		},
		{
			name:    "unbalanced braces",
			input:   `{"a": [1, 2`,
			wantErr: true,
		},
		{
			name:    "empty input",
			input:   "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSON(tt.input)

			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(got))
		})
	}
}

func TestStageErrorClassification(t *testing.T) {
	base := fmt.Errorf("rate limited")

	transient := Transient("topic_analysis", base)
	fatal := Fatal("question_drafting", fmt.Errorf("bad input"))

	assert.True(t, IsStageError(transient))
	assert.True(t, IsStageError(fatal))
	assert.True(t, IsTransient(transient))
	assert.False(t, IsTransient(fatal))

	t.Run("plain errors carry no classification", func(t *testing.T) {
		plain := errors.New("connection refused")
		assert.False(t, IsStageError(plain))
		assert.False(t, IsTransient(plain))
	})

	t.Run("wrapped stage errors are still detected", func(t *testing.T) {
		wrapped := fmt.Errorf("invoking model: %w", transient)
		assert.True(t, IsStageError(wrapped))
		assert.True(t, IsTransient(wrapped))
	})

	t.Run("unwrap reaches the cause", func(t *testing.T) {
		assert.ErrorIs(t, transient, base)
	})

	t.Run("message names stage and kind", func(t *testing.T) {
		assert.Contains(t, transient.Error(), "topic_analysis")
		assert.Contains(t, transient.Error(), "transient")
	})
}

func TestClassifyHTTP(t *testing.T) {
	tests := []struct {
		status        int
		wantTransient bool
	}{
		{429, true},
		{500, true},
		{502, true},
		{503, true},
		{400, false},
		{401, false},
		{403, false},
		{404, false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status_%d", tt.status), func(t *testing.T) {
			err := classifyHTTP("topic_analysis", tt.status, "body")
			require.Error(t, err)
			assert.True(t, IsStageError(err))
			assert.Equal(t, tt.wantTransient, IsTransient(err))
		})
	}
}
