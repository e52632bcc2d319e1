package handlers

import (
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"tubegrab/internal/classify"
	"tubegrab/internal/models"
	"tubegrab/internal/results"
	"tubegrab/internal/storage"
)

// JobHandler exposes the submission, status and result APIs.
type JobHandler struct {
	repo        *storage.JobRepository
	store       *results.Store
	maxAttempts int
}

// NewJobHandler creates a new JobHandler.
func NewJobHandler(repo *storage.JobRepository, store *results.Store, maxAttempts int) *JobHandler {
	return &JobHandler{repo: repo, store: store, maxAttempts: maxAttempts}
}

type submitRequest struct {
	OwnerID string `json:"owner_id" form:"owner_id"`
	URL     string `json:"url" form:"url"`
	Type    string `json:"type" form:"type"`
}

// Submit queues an extraction job.
// POST /api/jobs
func (h *JobHandler) Submit(c echo.Context) error {
	ctx := c.Request().Context()

	var req submitRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "failed to parse request"})
	}

	job, err := h.repo.Create(ctx, req.OwnerID, models.DownloadType(req.Type), req.URL, h.maxAttempts)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidInput) {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusAccepted, map[string]interface{}{
		"job_id":     job.ID,
		"status":     job.Status,
		"status_url": fmt.Sprintf("/api/jobs/%s", job.ID),
		"result_url": fmt.Sprintf("/api/jobs/%s/result", job.ID),
	})
}

type statusResponse struct {
	ID           string                  `json:"id"`
	Status       models.JobStatus        `json:"status"`
	DownloadType models.DownloadType     `json:"download_type"`
	AttemptCount int                     `json:"attempt_count"`
	MaxAttempts  int                     `json:"max_attempts"`
	CreatedAt    time.Time               `json:"created_at"`
	CompletedAt  *time.Time              `json:"completed_at,omitempty"`
	ErrorKind    string                  `json:"error_kind,omitempty"`
	ErrorMessage string                  `json:"error_message,omitempty"`
	Hint         string                  `json:"hint,omitempty"`
	Artifacts    []models.ResultArtifact `json:"artifacts,omitempty"`
}

// Get returns the job's latest known state.
// GET /api/jobs/:id
func (h *JobHandler) Get(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	job, err := h.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "job not found"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	resp := statusResponse{
		ID:           job.ID,
		Status:       job.Status,
		DownloadType: job.DownloadType,
		AttemptCount: job.AttemptCount,
		MaxAttempts:  job.MaxAttempts,
		CreatedAt:    job.CreatedAt,
		CompletedAt:  job.CompletedAt,
		ErrorKind:    job.ErrorKind,
		ErrorMessage: job.ErrorMessage,
	}
	if job.Status == models.JobStatusFailed {
		resp.Hint = classify.Kind(job.ErrorKind).Hint()
	}
	if job.Status == models.JobStatusCompleted {
		if artifacts, err := h.store.List(job.ID); err == nil {
			resp.Artifacts = artifacts
		}
	}
	return c.JSON(http.StatusOK, resp)
}

// Result streams an artifact of a completed job. The optional format query
// parameter selects among a job's artifacts; the default is the primary one.
// GET /api/jobs/:id/result
func (h *JobHandler) Result(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")
	format := c.QueryParam("format")

	rc, artifact, err := h.store.Fetch(ctx, id, format)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound), errors.Is(err, results.ErrNotFound):
			return c.JSON(http.StatusNotFound, map[string]string{"error": "no such job or artifact"})
		case errors.Is(err, results.ErrNotReady):
			return c.JSON(http.StatusConflict, map[string]string{"error": "job not yet complete"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	defer rc.Close()

	contentType := mime.TypeByExtension(filepath.Ext(artifact.Name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename=%q`, artifact.Name))
	return c.Stream(http.StatusOK, contentType, rc)
}

// Cancel marks a job cancelled. An extraction already in flight finishes on
// its own but can no longer publish.
// POST /api/jobs/:id/cancel
func (h *JobHandler) Cancel(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	err := h.repo.Cancel(ctx, id)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			return c.JSON(http.StatusNotFound, map[string]string{"error": "job not found"})
		case errors.Is(err, storage.ErrConflict):
			return c.JSON(http.StatusConflict, map[string]string{"error": "job already finished"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": string(models.JobStatusCancelled)})
}

// List returns recent jobs, optionally filtered by status.
// GET /api/jobs
func (h *JobHandler) List(c echo.Context) error {
	ctx := c.Request().Context()
	status := c.QueryParam("status")

	limit := 50
	if l := c.QueryParam("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil {
			limit = parsed
		}
	}

	var jobs []models.Job
	var err error
	if status != "" {
		jobs, err = h.repo.ListByStatus(ctx, models.JobStatus(status), limit)
	} else {
		jobs, err = h.repo.ListRecent(ctx, limit)
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, jobs)
}

// Stats returns job counts per status.
// GET /api/jobs/stats
func (h *JobHandler) Stats(c echo.Context) error {
	ctx := c.Request().Context()

	counts, err := h.repo.CountByStatus(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, counts)
}
