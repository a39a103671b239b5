package paper

import "fmt"

// Difficulty levels used across the pipeline. "mixed" is only valid as a
// requested target level, never as a per-question label.
const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
	DifficultyMixed  = "mixed"
)

// Question types
const (
	QuestionTypeMultipleChoice = "multiple_choice"
	QuestionTypeShortAnswer    = "short_answer"
	QuestionTypeCoding         = "coding"
)

// Request bounds and defaults
const (
	MinQuestions    = 1
	MaxQuestions    = 100
	MinDurationMins = 15
	MaxDurationMins = 180

	DefaultQuestions    = 10
	DefaultDurationMins = 60
)

// GenerationRequest is the immutable snapshot of generation parameters
// captured when a paper is submitted. Jobs only ever read this snapshot,
// never a live copy of the submitter's settings.
type GenerationRequest struct {
	Topic           string   `json:"topic"`
	NumQuestions    int      `json:"num_questions"`
	DifficultyLevel string   `json:"difficulty_level"`
	QuestionTypes   []string `json:"question_types"`
	DurationMinutes int      `json:"duration_minutes"`
	Preferences     string   `json:"preferences,omitempty"`
}

// ApplyDefaults fills zero-valued optional fields.
func (r *GenerationRequest) ApplyDefaults() {
	if r.NumQuestions == 0 {
		r.NumQuestions = DefaultQuestions
	}
	if r.DifficultyLevel == "" {
		r.DifficultyLevel = DifficultyMixed
	}
	if len(r.QuestionTypes) == 0 {
		r.QuestionTypes = []string{QuestionTypeMultipleChoice}
	}
	if r.DurationMinutes == 0 {
		r.DurationMinutes = DefaultDurationMins
	}
}

// Validate checks the request against the allowed bounds.
func (r *GenerationRequest) Validate() error {
	if r.Topic == "" {
		return fmt.Errorf("topic is required")
	}
	if r.NumQuestions < MinQuestions || r.NumQuestions > MaxQuestions {
		return fmt.Errorf("num_questions must be between %d and %d", MinQuestions, MaxQuestions)
	}
	switch r.DifficultyLevel {
	case DifficultyEasy, DifficultyMedium, DifficultyHard, DifficultyMixed:
	default:
		return fmt.Errorf("invalid difficulty_level: %q", r.DifficultyLevel)
	}
	if len(r.QuestionTypes) == 0 {
		return fmt.Errorf("at least one question type is required")
	}
	for _, qt := range r.QuestionTypes {
		switch qt {
		case QuestionTypeMultipleChoice, QuestionTypeShortAnswer, QuestionTypeCoding:
		default:
			return fmt.Errorf("invalid question type: %q", qt)
		}
	}
	if r.DurationMinutes < MinDurationMins || r.DurationMinutes > MaxDurationMins {
		return fmt.Errorf("duration_minutes must be between %d and %d", MinDurationMins, MaxDurationMins)
	}
	return nil
}

// TopicAnalysis is the output of the topic analysis stage.
type TopicAnalysis struct {
	Subtopics        []string           `json:"subtopics"`
	KeyConcepts      []string           `json:"key_concepts,omitempty"`
	FocusAreas       []string           `json:"focus_areas,omitempty"`
	DifficultySpread map[string]float64 `json:"difficulty_spread,omitempty"`
}

// Question is a single question item flowing through drafting, calibration
// and formatting.
type Question struct {
	Text          string   `json:"question_text"`
	Type          string   `json:"question_type,omitempty"`
	Options       []string `json:"options,omitempty"`
	CorrectAnswer string   `json:"correct_answer,omitempty"`
	Difficulty    string   `json:"difficulty_level"`
	Subtopic      string   `json:"subtopic,omitempty"`
	Explanation   string   `json:"explanation,omitempty"`
}

// DraftSet is the output of the question drafting stage.
type DraftSet struct {
	Questions []Question `json:"questions"`
}

// CalibratedSet is the output of the difficulty calibration stage: the
// question list whose difficulty histogram matches the target exactly.
type CalibratedSet struct {
	Questions    []Question     `json:"questions"`
	Distribution map[string]int `json:"difficulty_distribution"`
}

// FormattedPaper is the output of the formatting stage and the payload
// stored as the job artifact.
type FormattedPaper struct {
	Title           string     `json:"title"`
	Instructions    string     `json:"instructions"`
	DurationMinutes int        `json:"duration_minutes"`
	Questions       []Question `json:"questions"`
	TotalMarks      int        `json:"total_marks"`
}

// MarksFor returns the mark weight for a difficulty label.
func MarksFor(difficulty string) int {
	switch difficulty {
	case DifficultyEasy:
		return 1
	case DifficultyMedium:
		return 2
	case DifficultyHard:
		return 3
	default:
		return 2
	}
}

// TotalMarks sums mark weights over a question list.
func TotalMarks(questions []Question) int {
	total := 0
	for _, q := range questions {
		total += MarksFor(q.Difficulty)
	}
	return total
}
