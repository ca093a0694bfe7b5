package stats

import (
	"context"
	"log/slog"
	"net/http"

	"impar/api/internal/respond"
)

type VectorStore interface {
	ListSources(ctx context.Context) ([]string, error)
	CountChunks(ctx context.Context) (int, error)
}

type JobRepo interface {
	Count(ctx context.Context) (int, error)
}

type Handler struct {
	vectorStore VectorStore
	jobRepo     JobRepo
}

func NewHandler(v VectorStore, j JobRepo) *Handler {
	return &Handler{vectorStore: v, jobRepo: j}
}

type StatsResponse struct {
	Sources    int `json:"sources"`
	Chunks     int `json:"chunks"`
	FailedJobs int `json:"failed_jobs"`
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	slog.InfoContext(ctx, "getting stats")

	sources, err := h.vectorStore.ListSources(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list sources", "error", err)
		respond.Error(ctx, w, http.StatusInternalServerError, respond.CodeInternal, "failed to count sources")
		return
	}

	cCount, err := h.vectorStore.CountChunks(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count chunks", "error", err)
		respond.Error(ctx, w, http.StatusInternalServerError, respond.CodeInternal, "failed to count chunks")
		return
	}

	jCount, err := h.jobRepo.Count(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count jobs", "error", err)
		respond.Error(ctx, w, http.StatusInternalServerError, respond.CodeInternal, "failed to count jobs")
		return
	}

	resp := StatsResponse{
		Sources:    len(sources),
		Chunks:     cCount,
		FailedJobs: jCount,
	}

	respond.Data(ctx, w, http.StatusOK, resp)
}
