package paper

// Stage names, in pipeline order.
const (
	StageTopicAnalysis         = "topic_analysis"
	StageQuestionDrafting      = "question_drafting"
	StageDifficultyCalibration = "difficulty_calibration"
	StagePaperFormatting       = "paper_formatting"
)

// StageOrder is the fixed execution order of the pipeline.
var StageOrder = []string{
	StageTopicAnalysis,
	StageQuestionDrafting,
	StageDifficultyCalibration,
	StagePaperFormatting,
}

// TopicAnalysisInput is the payload sent to the topic analysis stage.
type TopicAnalysisInput struct {
	Topic        string `json:"topic"`
	NumQuestions int    `json:"num_questions"`
	Preferences  string `json:"preferences,omitempty"`
}

// DraftInput is the payload sent to the question drafting stage.
type DraftInput struct {
	Topic           string   `json:"topic"`
	Subtopics       []string `json:"subtopics"`
	NumQuestions    int      `json:"num_questions"`
	QuestionTypes   []string `json:"question_types"`
	DifficultyLevel string   `json:"difficulty_level"`
}

// CalibrationInput is the payload sent to the difficulty calibration stage.
type CalibrationInput struct {
	Questions          []Question     `json:"questions"`
	TargetDistribution map[string]int `json:"target_distribution"`
	TargetLevel        string         `json:"target_level"`
}

// FormatInput is the payload sent to the paper formatting stage.
type FormatInput struct {
	Topic           string     `json:"topic"`
	Title           string     `json:"title"`
	DurationMinutes int        `json:"duration_minutes"`
	Questions       []Question `json:"questions"`
	Preferences     string     `json:"preferences,omitempty"`
}
