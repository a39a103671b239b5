package generator

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/papergen/papergen-be/internal/paper"
)

// MockInvoker satisfies Invoker without calling any external service. The
// default behavior produces deterministic, well-formed payloads for every
// stage, which makes it usable both in tests and as the "mock" provider for
// local development.
type MockInvoker struct {
	InvokeFunc func(ctx context.Context, stage string, input json.RawMessage) (json.RawMessage, error)
}

func (m *MockInvoker) Name() string { return "mock" }

func (m *MockInvoker) Invoke(ctx context.Context, stage string, input json.RawMessage) (json.RawMessage, error) {
	if m.InvokeFunc != nil {
		return m.InvokeFunc(ctx, stage, input)
	}
	return mockStageOutput(stage, input)
}

// NewMockInvoker returns a MockInvoker with the default deterministic
// behavior.
func NewMockInvoker() *MockInvoker {
	return &MockInvoker{}
}

// NewFailingInvoker returns a MockInvoker whose every call fails with err.
func NewFailingInvoker(err error) *MockInvoker {
	return &MockInvoker{
		InvokeFunc: func(_ context.Context, _ string, _ json.RawMessage) (json.RawMessage, error) {
			return nil, err
		},
	}
}

func mockStageOutput(stage string, input json.RawMessage) (json.RawMessage, error) {
	switch stage {
	case paper.StageTopicAnalysis:
		var in paper.TopicAnalysisInput
		if err := json.Unmarshal(input, &in); err != nil {
			return nil, Fatal(stage, err)
		}
		out := paper.TopicAnalysis{
			Subtopics: []string{
				in.Topic + " fundamentals",
				in.Topic + " in practice",
				"Advanced " + in.Topic,
			},
			KeyConcepts: []string{in.Topic + " core concepts"},
			FocusAreas:  []string{in.Topic},
			DifficultySpread: map[string]float64{
				paper.DifficultyEasy:   0.3,
				paper.DifficultyMedium: 0.5,
				paper.DifficultyHard:   0.2,
			},
		}
		return json.Marshal(out)

	case paper.StageQuestionDrafting:
		var in paper.DraftInput
		if err := json.Unmarshal(input, &in); err != nil {
			return nil, Fatal(stage, err)
		}
		qType := paper.QuestionTypeMultipleChoice
		if len(in.QuestionTypes) > 0 {
			qType = in.QuestionTypes[0]
		}
		questions := make([]paper.Question, in.NumQuestions)
		for i := range questions {
			subtopic := in.Topic
			if len(in.Subtopics) > 0 {
				subtopic = in.Subtopics[i%len(in.Subtopics)]
			}
			questions[i] = paper.Question{
				Text:          fmt.Sprintf("Question %d about %s?", i+1, subtopic),
				Type:          qType,
				Options:       []string{"Option A", "Option B", "Option C", "Option D"},
				CorrectAnswer: "Option A",
				Difficulty:    paper.DifficultyMedium,
				Subtopic:      subtopic,
				Explanation:   "Option A is correct.",
			}
		}
		return json.Marshal(paper.DraftSet{Questions: questions})

	case paper.StageDifficultyCalibration:
		var in paper.CalibrationInput
		if err := json.Unmarshal(input, &in); err != nil {
			return nil, Fatal(stage, err)
		}
		return json.Marshal(paper.DraftSet{Questions: in.Questions})

	case paper.StagePaperFormatting:
		var in paper.FormatInput
		if err := json.Unmarshal(input, &in); err != nil {
			return nil, Fatal(stage, err)
		}
		out := paper.FormattedPaper{
			Title:           in.Title,
			Instructions:    fmt.Sprintf("Answer all questions. Time allowed: %d minutes.", in.DurationMinutes),
			DurationMinutes: in.DurationMinutes,
			Questions:       in.Questions,
			TotalMarks:      paper.TotalMarks(in.Questions),
		}
		return json.Marshal(out)

	default:
		return nil, Fatal(stage, fmt.Errorf("unknown stage: %q", stage))
	}
}
