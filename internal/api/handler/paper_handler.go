package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/papergen/papergen-be/internal/api/dto"
	"github.com/papergen/papergen-be/internal/jobs"
	"github.com/papergen/papergen-be/internal/paper"
)

// GeneratePaper handles POST /api/v1/papers
// Accepts a generation request, persists the job and enqueues it.
func (h *PaperHandler) GeneratePaper(c *gin.Context) {
	h.logger.Info("GeneratePaper called",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
	)

	var req dto.CreatePaperRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	genReq := paper.GenerationRequest{
		Topic:           req.Topic,
		NumQuestions:    req.NumQuestions,
		DifficultyLevel: req.DifficultyLevel,
		QuestionTypes:   req.QuestionTypes,
		DurationMinutes: req.DurationMinutes,
		Preferences:     req.Preferences,
	}
	genReq.ApplyDefaults()
	if err := genReq.Validate(); err != nil {
		h.logger.Error("Invalid generation request", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
		})
		return
	}

	job := jobs.NewJob(uuid.New().String(), req.UserID, genReq)

	if err := h.store.Create(c.Request.Context(), job); err != nil {
		h.logger.Error("Failed to create job", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to create job",
		})
		return
	}

	msg, _ := json.Marshal(gin.H{"job_id": job.JobID})
	if err := h.publisher.PublishWithRetry(c.Request.Context(), msg, "application/json"); err != nil {
		// The record exists but the message never made it out; surface the
		// failure so the client can resubmit.
		h.logger.Error("Failed to publish job message",
			slog.String("job_id", job.JobID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to enqueue job",
		})
		return
	}

	h.logger.Info("Paper generation job queued",
		slog.String("job_id", job.JobID),
		slog.String("topic", genReq.Topic),
		slog.Int("num_questions", genReq.NumQuestions),
	)

	c.JSON(http.StatusAccepted, dto.CreatePaperResponse{
		JobID:     job.JobID,
		Status:    string(job.Status),
		CreatedAt: job.CreatedAt.Format(time.RFC3339),
	})
}

// GetPaperStatus handles GET /api/v1/papers/:job_id
// Returns lifecycle status and per-stage progress for a job.
func (h *PaperHandler) GetPaperStatus(c *gin.Context) {
	jobID := c.Param("job_id")

	h.logger.Info("GetPaperStatus called",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
		slog.String("job_id", jobID),
	)

	if _, err := uuid.Parse(jobID); err != nil {
		h.logger.Error("Invalid job_id format", slog.String("job_id", jobID), slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "job_id must be a valid UUID",
		})
		return
	}

	job, err := h.store.Get(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, jobs.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Job not found",
			})
			return
		}
		h.logger.Error("Failed to get job", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get job",
		})
		return
	}

	c.JSON(http.StatusOK, paperStatusDTO(job))
}

// GetPaperResult handles GET /api/v1/papers/:job_id/result
// Returns the formatted paper once the job has completed.
func (h *PaperHandler) GetPaperResult(c *gin.Context) {
	jobID := c.Param("job_id")

	h.logger.Info("GetPaperResult called",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
		slog.String("job_id", jobID),
	)

	if _, err := uuid.Parse(jobID); err != nil {
		h.logger.Error("Invalid job_id format", slog.String("job_id", jobID), slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "job_id must be a valid UUID",
		})
		return
	}

	job, err := h.store.Get(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, jobs.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Job not found",
			})
			return
		}
		h.logger.Error("Failed to get job", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get job",
		})
		return
	}

	switch job.Status {
	case jobs.StatusCompleted:
		// Fall through to serve the artifact.
	case jobs.StatusFailed:
		c.JSON(http.StatusConflict, gin.H{
			"error":  "Job failed",
			"detail": paperErrorDTO(job.Error),
		})
		return
	default:
		c.JSON(http.StatusConflict, gin.H{
			"error":  "Job is not completed yet",
			"status": string(job.Status),
		})
		return
	}

	content, err := h.artifacts.Get(c.Request.Context(), job.JobID)
	if err != nil {
		h.logger.Error("Failed to read paper artifact",
			slog.String("job_id", job.JobID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to read paper artifact",
		})
		return
	}

	c.JSON(http.StatusOK, dto.PaperResultResponse{
		JobID:       job.JobID,
		Status:      string(job.Status),
		ArtifactURL: job.ArtifactURL,
		Paper:       json.RawMessage(content),
	})
}

// ListPapers handles GET /api/v1/papers
// Lists jobs with optional filtering and cursor pagination.
func (h *PaperHandler) ListPapers(c *gin.Context) {
	h.logger.Info("ListPapers called",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
		slog.String("query", c.Request.URL.RawQuery),
	)

	var req dto.ListPapersRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Error("Invalid query parameters", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query parameters",
		})
		return
	}

	if req.PageSize <= 0 {
		req.PageSize = 20
	}

	if req.PageSize > 100 {
		req.PageSize = 100
	}

	cursor, err := DecodePaperCursor(req.Cursor)
	if err != nil {
		h.logger.Error("Invalid cursor", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid cursor",
		})
		return
	}

	filter := jobs.Filter{
		UserID:   req.UserID,
		Status:   req.Status,
		PageSize: req.PageSize,
		Cursor:   cursor,
	}

	records, err := h.store.List(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to list jobs", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list jobs",
		})
		return
	}

	hasMore := len(records) > req.PageSize
	if hasMore {
		records = records[:req.PageSize]
	}

	papers := make([]dto.PaperSummaryDTO, len(records))
	for i, job := range records {
		papers[i] = dto.PaperSummaryDTO{
			JobID:          job.JobID,
			UserID:         job.UserID,
			Topic:          job.Request.Topic,
			Status:         string(job.Status),
			QuestionsCount: job.QuestionsCount,
			CreatedAt:      job.CreatedAt.Format(time.RFC3339),
			UpdatedAt:      job.UpdatedAt.Format(time.RFC3339),
		}
	}

	var nextCursor string
	if hasMore {
		last := records[len(records)-1]
		nextCursor, err = EncodePaperCursor(&jobs.Cursor{
			CreatedAt: last.CreatedAt,
			JobID:     last.JobID,
		})
		if err != nil {
			h.logger.Error("Failed to encode next cursor", slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to encode next cursor",
			})
			return
		}
	}

	c.JSON(http.StatusOK, dto.ListPapersResponse{
		Papers:     papers,
		NextCursor: nextCursor,
	})
}

func paperStatusDTO(job *jobs.Job) dto.PaperStatusResponse {
	stages := make([]string, 0, len(job.StageResults))
	for _, stage := range paper.StageOrder {
		if _, ok := job.StageResults[stage]; ok {
			stages = append(stages, stage)
		}
	}

	return dto.PaperStatusResponse{
		JobID:                  job.JobID,
		UserID:                 job.UserID,
		Topic:                  job.Request.Topic,
		Status:                 string(job.Status),
		StagesCompleted:        stages,
		Error:                  paperErrorDTO(job.Error),
		QuestionsCount:         job.QuestionsCount,
		DifficultyDistribution: job.DifficultyDistribution,
		CreatedAt:              job.CreatedAt.Format(time.RFC3339),
		UpdatedAt:              job.UpdatedAt.Format(time.RFC3339),
	}
}

func paperErrorDTO(jobErr *jobs.JobError) *dto.PaperErrorDTO {
	if jobErr == nil {
		return nil
	}
	return &dto.PaperErrorDTO{
		Kind:    string(jobErr.Kind),
		Stage:   jobErr.Stage,
		Message: jobErr.Message,
	}
}
