package dto

import "encoding/json"

type CreatePaperRequest struct {
	UserID          string   `json:"user_id" binding:"required"`
	Topic           string   `json:"topic" binding:"required"`
	NumQuestions    int      `json:"num_questions"`
	DifficultyLevel string   `json:"difficulty_level"`
	QuestionTypes   []string `json:"question_types"`
	DurationMinutes int      `json:"duration_minutes"`
	Preferences     string   `json:"preferences"`
}

type CreatePaperResponse struct {
	JobID     string `json:"job_id"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

type PaperStatusResponse struct {
	JobID                  string          `json:"job_id"`
	UserID                 string          `json:"user_id"`
	Topic                  string          `json:"topic"`
	Status                 string          `json:"status"`
	StagesCompleted        []string        `json:"stages_completed"`
	Error                  *PaperErrorDTO  `json:"error,omitempty"`
	QuestionsCount         int             `json:"questions_count,omitempty"`
	DifficultyDistribution map[string]int  `json:"difficulty_distribution,omitempty"`
	CreatedAt              string          `json:"created_at"`
	UpdatedAt              string          `json:"updated_at"`
}

type PaperErrorDTO struct {
	Kind    string `json:"kind"`
	Stage   string `json:"stage"`
	Message string `json:"message"`
}

type PaperResultResponse struct {
	JobID       string          `json:"job_id"`
	Status      string          `json:"status"`
	ArtifactURL string          `json:"artifact_url"`
	Paper       json.RawMessage `json:"paper"`
}

type ListPapersRequest struct {
	UserID   string `form:"user_id"`
	Status   string `form:"status"`
	PageSize int    `form:"page_size"`
	Cursor   string `form:"cursor"`
}

type ListPapersResponse struct {
	Papers     []PaperSummaryDTO `json:"papers"`
	NextCursor string            `json:"next_cursor,omitempty"`
}

type PaperSummaryDTO struct {
	JobID          string `json:"job_id"`
	UserID         string `json:"user_id"`
	Topic          string `json:"topic"`
	Status         string `json:"status"`
	QuestionsCount int    `json:"questions_count,omitempty"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
}
