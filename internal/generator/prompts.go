package generator

import (
	"encoding/json"
	"fmt"

	"github.com/papergen/papergen-be/internal/paper"
)

// stagePrompt is the rendered instruction for one stage invocation.
type stagePrompt struct {
	Text      string
	MaxTokens int
}

// buildPrompt renders the instruction for a stage from its input payload.
// The payload is embedded verbatim so the adapter stays payload-generic;
// the expected output shape is spelled out per stage.
func buildPrompt(stage string, input json.RawMessage) (*stagePrompt, error) {
	switch stage {
	case paper.StageTopicAnalysis:
		return &stagePrompt{
			MaxTokens: 1024,
			Text: fmt.Sprintf(`Analyze the following technology topic and provide a structured breakdown.

Input:
%s

Provide the analysis as a JSON object with:
- subtopics: list of 3-5 main subtopics
- key_concepts: list of 5-10 key concepts to cover
- focus_areas: list of specific areas to focus on
- difficulty_spread: suggested fraction of easy/medium/hard questions

Return only valid JSON.`, input),
		}, nil

	case paper.StageQuestionDrafting:
		return &stagePrompt{
			MaxTokens: 4096,
			Text: fmt.Sprintf(`Generate interview questions from the following specification.

Input:
%s

Return a JSON object with a "questions" array; each question has:
- question_text: the question content
- question_type: one of the requested question types
- options: array of options (for multiple choice)
- correct_answer: the correct answer
- difficulty_level: easy, medium or hard
- subtopic: the subtopic this question covers
- explanation: brief explanation of the answer

Generate exactly num_questions questions. Return only valid JSON.`, input),
		}, nil

	case paper.StageDifficultyCalibration:
		return &stagePrompt{
			MaxTokens: 4096,
			Text: fmt.Sprintf(`Calibrate the difficulty levels of these interview questions.

Input:
%s

Reassess each question and assign a calibrated difficulty_level (easy,
medium or hard) so that the realized counts match target_distribution.
Return a JSON object with the "questions" array, same shape as the input
questions, with updated difficulty_level fields. Return only valid JSON.`, input),
		}, nil

	case paper.StagePaperFormatting:
		return &stagePrompt{
			MaxTokens: 4096,
			Text: fmt.Sprintf(`Create a professional formatted question paper.

Input:
%s

Return a JSON object with:
- title: paper title
- instructions: exam instructions for the candidate
- duration_minutes: exam duration
- questions: the question list, ordered for the paper
- total_marks: estimated total marks based on difficulty

Return only valid JSON.`, input),
		}, nil

	default:
		return nil, fmt.Errorf("unknown stage: %q", stage)
	}
}
