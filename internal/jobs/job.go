package jobs

import (
	"encoding/json"
	"time"

	"github.com/papergen/papergen-be/internal/paper"
)

// Status is the lifecycle state of a paper generation job.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further transitions may leave this status.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// FailureKind classifies why a job failed.
type FailureKind string

const (
	FailureTransient FailureKind = "transient"
	FailureFatal     FailureKind = "fatal"
)

// JobError records the failure that terminated a job: which stage exhausted
// retries (or failed fatally) and why.
type JobError struct {
	Kind    FailureKind `json:"kind"`
	Stage   string      `json:"stage"`
	Message string      `json:"message"`
}

// Job is the unit of work and the sole source of truth for client-visible
// progress. Version increments on every persisted write; all mutations are
// compare-and-swap on it.
type Job struct {
	JobID                  string
	UserID                 string
	Request                paper.GenerationRequest
	Status                 Status
	StageResults           map[string]json.RawMessage
	Error                  *JobError
	ArtifactURL            string
	QuestionsCount         int
	DifficultyDistribution map[string]int
	Version                int64
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// Clone returns a deep copy of the job.
func (j *Job) Clone() *Job {
	out := *j
	if j.StageResults != nil {
		out.StageResults = make(map[string]json.RawMessage, len(j.StageResults))
		for k, v := range j.StageResults {
			out.StageResults[k] = append(json.RawMessage(nil), v...)
		}
	}
	if j.Error != nil {
		e := *j.Error
		out.Error = &e
	}
	if j.DifficultyDistribution != nil {
		out.DifficultyDistribution = make(map[string]int, len(j.DifficultyDistribution))
		for k, v := range j.DifficultyDistribution {
			out.DifficultyDistribution[k] = v
		}
	}
	if j.Request.QuestionTypes != nil {
		out.Request.QuestionTypes = append([]string(nil), j.Request.QuestionTypes...)
	}
	return &out
}

// NewJob builds a queued job record with a fresh snapshot of the request.
func NewJob(jobID, userID string, request paper.GenerationRequest) *Job {
	now := time.Now().UTC()
	return &Job{
		JobID:        jobID,
		UserID:       userID,
		Request:      request,
		Status:       StatusQueued,
		StageResults: map[string]json.RawMessage{},
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// StageResult sets one stage's output payload in the stage results map.
type StageResult struct {
	Stage   string
	Payload json.RawMessage
}

// Update describes a conditional mutation of a job record. Nil fields are
// left untouched.
type Update struct {
	Status                 *Status
	StageResult            *StageResult
	Error                  *JobError
	ArtifactURL            *string
	QuestionsCount         *int
	DifficultyDistribution map[string]int
}
