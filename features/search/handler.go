package search

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"impar/api/internal/content"
	"impar/api/internal/respond"
	"impar/api/internal/store"
)

const maxK = 50

type Retriever interface {
	Search(ctx context.Context, query string, k int, source string) ([]content.Chunk, error)
}

type Handler struct {
	retriever Retriever
}

func NewHandler(r Retriever) *Handler {
	return &Handler{retriever: r}
}

type Result struct {
	Text     string `json:"text"`
	Source   string `json:"source"`
	Location string `json:"location"`
	Type     string `json:"type"`
}

// Search handles GET /search?q=&k=&source=.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	query := q.Get("q")
	if query == "" {
		respond.Error(ctx, w, http.StatusBadRequest, respond.CodeValidation, "q is required")
		return
	}

	k := 0
	if raw := q.Get("k"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxK {
			respond.Error(ctx, w, http.StatusBadRequest, respond.CodeValidation, "k must be an integer between 1 and 50")
			return
		}
		k = n
	}

	chunks, err := h.retriever.Search(ctx, query, k, q.Get("source"))
	if err != nil {
		slog.ErrorContext(ctx, "search failed", "error", err)
		if errors.Is(err, store.ErrPersistence) {
			respond.Error(ctx, w, http.StatusBadGateway, respond.CodeStore, "Failed to query the vector store")
			return
		}
		respond.Error(ctx, w, http.StatusInternalServerError, respond.CodeInternal, "Internal Server Error")
		return
	}

	results := make([]Result, len(chunks))
	for i, c := range chunks {
		results[i] = Result{
			Text:     c.Text,
			Source:   c.Metadata.Source,
			Location: c.Metadata.Location,
			Type:     string(c.Metadata.Kind),
		}
	}

	respond.List(ctx, w, results, len(results))
}
