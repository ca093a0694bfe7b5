package scrape

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"impar/api/internal/respond"
	webscrape "impar/api/internal/scrape"
	"impar/api/internal/store"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type request struct {
	URL string `json:"url"`
}

func (h *Handler) Scrape(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	res, err := h.service.Scrape(r.Context(), req.URL)
	if err != nil {
		h.writeScrapeError(r.Context(), w, err)
		return
	}
	respond.Data(r.Context(), w, http.StatusOK, res)
}

func (h *Handler) Enqueue(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	res, err := h.service.Enqueue(r.Context(), req.URL)
	if err != nil {
		h.writeScrapeError(r.Context(), w, err)
		return
	}
	respond.Data(r.Context(), w, http.StatusAccepted, res)
}

// decode reads an optional {"url": ...} body. An empty body means the
// configured default URL.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (request, bool) {
	var req request
	if r.Body == nil {
		return req, true
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respond.Error(r.Context(), w, http.StatusBadRequest, respond.CodeValidation, err.Error())
		return req, false
	}
	return req, true
}

func (h *Handler) writeScrapeError(ctx context.Context, w http.ResponseWriter, err error) {
	var fetchErr *webscrape.FetchError
	switch {
	case errors.Is(err, webscrape.ErrNoURL):
		respond.Error(ctx, w, http.StatusBadRequest, respond.CodeValidation, "URL is required")
	case errors.As(err, &fetchErr):
		respond.Error(ctx, w, http.StatusBadGateway, "FETCH_FAILED", err.Error())
	case errors.Is(err, webscrape.ErrNoContentExtracted):
		respond.Error(ctx, w, http.StatusUnprocessableEntity, "NO_CONTENT", err.Error())
	case errors.Is(err, store.ErrPersistence):
		slog.ErrorContext(ctx, "failed to store page", "error", err)
		respond.Error(ctx, w, http.StatusBadGateway, respond.CodeStore, "Failed to store page chunks")
	default:
		slog.ErrorContext(ctx, "scrape failed", "error", err)
		respond.Error(ctx, w, http.StatusInternalServerError, respond.CodeInternal, "Internal Server Error")
	}
}
