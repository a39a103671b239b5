package orchestrator

import (
	"encoding/json"
	"fmt"

	"github.com/papergen/papergen-be/internal/generator"
	"github.com/papergen/papergen-be/internal/jobs"
	"github.com/papergen/papergen-be/internal/paper"
)

// stageDescriptor is one step of the pipeline: how to build the capability
// input from the job's state, and how to validate and shape the capability
// output into the payload that gets persisted.
type stageDescriptor struct {
	name       string
	buildInput func(job *jobs.Job) (json.RawMessage, error)
	finalize   func(job *jobs.Job, output json.RawMessage) (*stageOutcome, error)
}

// stageOutcome is what a finished stage persists: the stage payload plus
// optional summary fields surfaced on the job record.
type stageOutcome struct {
	payload        json.RawMessage
	questionsCount *int
	distribution   map[string]int
}

// pipeline returns the fixed stage sequence. The orchestrator itself is
// stage-count-agnostic; all stage knowledge lives here.
func pipeline() []stageDescriptor {
	return []stageDescriptor{
		{
			name:       paper.StageTopicAnalysis,
			buildInput: buildAnalysisInput,
			finalize:   finalizeAnalysis,
		},
		{
			name:       paper.StageQuestionDrafting,
			buildInput: buildDraftInput,
			finalize:   finalizeDraft,
		},
		{
			name:       paper.StageDifficultyCalibration,
			buildInput: buildCalibrationInput,
			finalize:   finalizeCalibration,
		},
		{
			name:       paper.StagePaperFormatting,
			buildInput: buildFormatInput,
			finalize:   finalizeFormat,
		},
	}
}

func buildAnalysisInput(job *jobs.Job) (json.RawMessage, error) {
	return json.Marshal(paper.TopicAnalysisInput{
		Topic:        job.Request.Topic,
		NumQuestions: job.Request.NumQuestions,
		Preferences:  job.Request.Preferences,
	})
}

func finalizeAnalysis(_ *jobs.Job, output json.RawMessage) (*stageOutcome, error) {
	var analysis paper.TopicAnalysis
	if err := json.Unmarshal(output, &analysis); err != nil {
		return nil, generator.Transient(paper.StageTopicAnalysis, fmt.Errorf("malformed analysis payload: %w", err))
	}
	if len(analysis.Subtopics) == 0 {
		return nil, generator.Transient(paper.StageTopicAnalysis, fmt.Errorf("analysis returned no subtopics"))
	}

	payload, err := json.Marshal(analysis)
	if err != nil {
		return nil, err
	}
	return &stageOutcome{payload: payload}, nil
}

func buildDraftInput(job *jobs.Job) (json.RawMessage, error) {
	analysis, err := analysisResult(job)
	if err != nil {
		return nil, err
	}
	return json.Marshal(paper.DraftInput{
		Topic:           job.Request.Topic,
		Subtopics:       analysis.Subtopics,
		NumQuestions:    job.Request.NumQuestions,
		QuestionTypes:   job.Request.QuestionTypes,
		DifficultyLevel: job.Request.DifficultyLevel,
	})
}

func finalizeDraft(job *jobs.Job, output json.RawMessage) (*stageOutcome, error) {
	questions, err := decodeQuestions(output)
	if err != nil {
		return nil, generator.Transient(paper.StageQuestionDrafting, err)
	}
	if len(questions) > job.Request.NumQuestions {
		questions = questions[:job.Request.NumQuestions]
	}
	if len(questions) < job.Request.NumQuestions {
		return nil, generator.Transient(paper.StageQuestionDrafting,
			fmt.Errorf("drafted %d of %d requested questions", len(questions), job.Request.NumQuestions))
	}

	defaultType := paper.QuestionTypeMultipleChoice
	if len(job.Request.QuestionTypes) > 0 {
		defaultType = job.Request.QuestionTypes[0]
	}
	for i := range questions {
		questions[i].Difficulty = paper.NormalizeDifficulty(questions[i].Difficulty)
		if questions[i].Type == "" {
			questions[i].Type = defaultType
		}
	}

	payload, err := json.Marshal(paper.DraftSet{Questions: questions})
	if err != nil {
		return nil, err
	}
	return &stageOutcome{payload: payload}, nil
}

func buildCalibrationInput(job *jobs.Job) (json.RawMessage, error) {
	draft, err := draftResult(job)
	if err != nil {
		return nil, err
	}
	target, err := targetDistribution(job)
	if err != nil {
		return nil, err
	}
	return json.Marshal(paper.CalibrationInput{
		Questions:          draft.Questions,
		TargetDistribution: target,
		TargetLevel:        job.Request.DifficultyLevel,
	})
}

func finalizeCalibration(job *jobs.Job, output json.RawMessage) (*stageOutcome, error) {
	draft, err := draftResult(job)
	if err != nil {
		return nil, err
	}
	target, err := targetDistribution(job)
	if err != nil {
		return nil, err
	}

	// The model's relabeling is advisory; a bad payload falls back to the
	// drafted questions. Either way the target histogram is enforced
	// locally, so the distribution invariant never depends on the model.
	questions, err := decodeQuestions(output)
	if err != nil || len(questions) != len(draft.Questions) {
		questions = draft.Questions
	}
	questions = paper.EnforceDistribution(questions, target)
	distribution := paper.CountByDifficulty(questions)

	payload, err := json.Marshal(paper.CalibratedSet{
		Questions:    questions,
		Distribution: distribution,
	})
	if err != nil {
		return nil, err
	}

	count := len(questions)
	return &stageOutcome{
		payload:        payload,
		questionsCount: &count,
		distribution:   distribution,
	}, nil
}

func buildFormatInput(job *jobs.Job) (json.RawMessage, error) {
	calibrated, err := calibrationResult(job)
	if err != nil {
		return nil, err
	}
	return json.Marshal(paper.FormatInput{
		Topic:           job.Request.Topic,
		Title:           paperTitle(job),
		DurationMinutes: job.Request.DurationMinutes,
		Questions:       calibrated.Questions,
		Preferences:     job.Request.Preferences,
	})
}

func finalizeFormat(job *jobs.Job, output json.RawMessage) (*stageOutcome, error) {
	calibrated, err := calibrationResult(job)
	if err != nil {
		return nil, err
	}

	var formatted paper.FormattedPaper
	if err := json.Unmarshal(output, &formatted); err != nil {
		return nil, generator.Transient(paper.StagePaperFormatting, fmt.Errorf("malformed paper payload: %w", err))
	}

	// The calibrated set is authoritative for the question list; the model
	// only contributes presentation.
	if len(formatted.Questions) != len(calibrated.Questions) {
		formatted.Questions = calibrated.Questions
	}
	formatted.Questions = paper.SortByDifficulty(formatted.Questions)

	if formatted.Title == "" {
		formatted.Title = paperTitle(job)
	}
	if formatted.Instructions == "" {
		formatted.Instructions = fmt.Sprintf("Answer all questions. Time allowed: %d minutes.", job.Request.DurationMinutes)
	}
	if formatted.DurationMinutes == 0 {
		formatted.DurationMinutes = job.Request.DurationMinutes
	}
	if formatted.TotalMarks == 0 {
		formatted.TotalMarks = paper.TotalMarks(formatted.Questions)
	}

	payload, err := json.Marshal(formatted)
	if err != nil {
		return nil, err
	}
	return &stageOutcome{payload: payload}, nil
}

func paperTitle(job *jobs.Job) string {
	return "Interview Questions: " + job.Request.Topic
}

// targetDistribution prefers the analysis stage's suggested spread, falling
// back to the preset for the requested level, and converts it to exact
// counts by largest remainder.
func targetDistribution(job *jobs.Job) (map[string]int, error) {
	analysis, err := analysisResult(job)
	if err != nil {
		return nil, err
	}
	draft, err := draftResult(job)
	if err != nil {
		return nil, err
	}

	weights := analysis.DifficultySpread
	if !validWeights(weights) {
		weights = paper.TargetWeights(job.Request.DifficultyLevel)
	}
	return paper.TargetCounts(len(draft.Questions), weights), nil
}

func validWeights(weights map[string]float64) bool {
	sum := 0.0
	for _, b := range paper.DifficultyBuckets {
		if w := weights[b]; w > 0 {
			sum += w
		}
	}
	return sum > 0
}

// decodeQuestions accepts either {"questions": [...]} or a bare array.
func decodeQuestions(payload json.RawMessage) ([]paper.Question, error) {
	var set paper.DraftSet
	if err := json.Unmarshal(payload, &set); err == nil && len(set.Questions) > 0 {
		return set.Questions, nil
	}

	var questions []paper.Question
	if err := json.Unmarshal(payload, &questions); err == nil && len(questions) > 0 {
		return questions, nil
	}

	return nil, fmt.Errorf("payload contains no questions")
}

// stage result accessors; a decode failure here means the stored payload is
// corrupt, which is a repository-level problem, not a stage failure.

func analysisResult(job *jobs.Job) (*paper.TopicAnalysis, error) {
	raw, ok := job.StageResults[paper.StageTopicAnalysis]
	if !ok {
		return nil, fmt.Errorf("missing %s result", paper.StageTopicAnalysis)
	}
	var analysis paper.TopicAnalysis
	if err := json.Unmarshal(raw, &analysis); err != nil {
		return nil, fmt.Errorf("corrupt %s result: %w", paper.StageTopicAnalysis, err)
	}
	return &analysis, nil
}

func draftResult(job *jobs.Job) (*paper.DraftSet, error) {
	raw, ok := job.StageResults[paper.StageQuestionDrafting]
	if !ok {
		return nil, fmt.Errorf("missing %s result", paper.StageQuestionDrafting)
	}
	var draft paper.DraftSet
	if err := json.Unmarshal(raw, &draft); err != nil {
		return nil, fmt.Errorf("corrupt %s result: %w", paper.StageQuestionDrafting, err)
	}
	return &draft, nil
}

func calibrationResult(job *jobs.Job) (*paper.CalibratedSet, error) {
	raw, ok := job.StageResults[paper.StageDifficultyCalibration]
	if !ok {
		return nil, fmt.Errorf("missing %s result", paper.StageDifficultyCalibration)
	}
	var calibrated paper.CalibratedSet
	if err := json.Unmarshal(raw, &calibrated); err != nil {
		return nil, fmt.Errorf("corrupt %s result: %w", paper.StageDifficultyCalibration, err)
	}
	return &calibrated, nil
}

func formattedResult(job *jobs.Job) (*paper.FormattedPaper, error) {
	raw, ok := job.StageResults[paper.StagePaperFormatting]
	if !ok {
		return nil, fmt.Errorf("missing %s result", paper.StagePaperFormatting)
	}
	var formatted paper.FormattedPaper
	if err := json.Unmarshal(raw, &formatted); err != nil {
		return nil, fmt.Errorf("corrupt %s result: %w", paper.StagePaperFormatting, err)
	}
	return &formatted, nil
}
