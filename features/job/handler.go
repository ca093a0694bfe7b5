package job

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"

	"impar/api/internal/config"
	"impar/api/internal/respond"
)

const codePublishTimeout = "PUBLISH_TIMEOUT"

// RetryResult reports a failed scrape task that was handed back to the queue.
type RetryResult struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Topic  string `json:"topic"`
}

type Handler struct {
	service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{service: s}
}

// List handles GET /jobs/failed, newest first.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	failed, err := h.service.List(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list failed scrape jobs", "error", err)
		respond.Error(ctx, w, http.StatusInternalServerError, respond.CodeInternal, "Failed to list failed jobs")
		return
	}
	if failed == nil {
		failed = []Job{}
	}
	respond.List(ctx, w, failed, len(failed))
}

// Retry handles POST /jobs/{id}/retry.
func (h *Handler) Retry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	err := h.service.Retry(ctx, id)
	if err != nil {
		h.writeRetryError(ctx, w, id, err)
		return
	}
	respond.Data(ctx, w, http.StatusOK, RetryResult{ID: id, Status: "requeued", Topic: config.TopicIngestScrape})
}

func (h *Handler) writeRetryError(ctx context.Context, w http.ResponseWriter, id string, err error) {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		respond.Error(ctx, w, http.StatusNotFound, respond.CodeNotFound, "No failed job with id "+id)
	case errors.Is(err, ErrPublishTimeout):
		slog.WarnContext(ctx, "retry publish timed out", "id", id)
		respond.Error(ctx, w, http.StatusGatewayTimeout, codePublishTimeout, "The queue did not accept the task in time; the job is kept until the publish completes")
	default:
		slog.ErrorContext(ctx, "failed to retry scrape job", "id", id, "error", err)
		respond.Error(ctx, w, http.StatusInternalServerError, respond.CodeInternal, "Failed to requeue job")
	}
}
