package ingest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"

	"impar/api/internal/extract"
	"impar/api/internal/respond"
	"impar/api/internal/store"
)

type Handler struct {
	service       *Service
	maxUploadSize int64
}

func NewHandler(service *Service, maxUploadSizeMB int64) *Handler {
	if maxUploadSizeMB <= 0 {
		maxUploadSizeMB = 50
	}
	return &Handler{service: service, maxUploadSize: maxUploadSizeMB << 20}
}

// Upload accepts one or more multipart files under "files" (or "file")
// and ingests them as a single batch.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		respond.Error(r.Context(), w, http.StatusBadRequest, respond.CodeBadRequest, "File too large or malformed form")
		return
	}

	var headers []*multipart.FileHeader
	headers = append(headers, r.MultipartForm.File["files"]...)
	headers = append(headers, r.MultipartForm.File["file"]...)
	if len(headers) == 0 {
		respond.Error(r.Context(), w, http.StatusBadRequest, respond.CodeBadRequest, "At least one file is required")
		return
	}

	files := make([]extract.File, 0, len(headers))
	for _, fh := range headers {
		data, err := readPart(fh)
		if err != nil {
			slog.ErrorContext(r.Context(), "failed to read upload", "filename", fh.Filename, "error", err)
			respond.Error(r.Context(), w, http.StatusBadRequest, respond.CodeBadRequest, "Unable to read file "+fh.Filename)
			return
		}
		files = append(files, extract.File{Name: filepath.Base(fh.Filename), Data: data})
	}

	skipExisting := r.FormValue("skip_existing") == "true"

	res, err := h.service.Ingest(r.Context(), files, skipExisting)
	if err != nil {
		h.writeIngestError(r.Context(), w, err)
		return
	}

	respond.Data(r.Context(), w, http.StatusCreated, res)
}

func (h *Handler) ListSources(w http.ResponseWriter, r *http.Request) {
	sources, err := h.service.ListSources(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to list sources", "error", err)
		respond.Error(r.Context(), w, http.StatusInternalServerError, respond.CodeInternal, "Failed to list sources")
		return
	}
	if sources == nil {
		sources = []string{}
	}

	respond.List(r.Context(), w, sources, len(sources))
}

func (h *Handler) writeIngestError(ctx context.Context, w http.ResponseWriter, err error) {
	var (
		unsupported *extract.UnsupportedFormatError
		extraction  *extract.ExtractionError
	)
	switch {
	case errors.As(err, &unsupported):
		respond.Error(ctx, w, http.StatusUnsupportedMediaType, "UNSUPPORTED_FORMAT", err.Error())
	case errors.As(err, &extraction):
		respond.Error(ctx, w, http.StatusUnprocessableEntity, "EXTRACTION_FAILED", err.Error())
	case errors.Is(err, ErrNoFiles):
		respond.Error(ctx, w, http.StatusBadRequest, respond.CodeBadRequest, err.Error())
	case errors.Is(err, store.ErrPersistence):
		slog.ErrorContext(ctx, "failed to store chunks", "error", err)
		respond.Error(ctx, w, http.StatusBadGateway, respond.CodeStore, "Failed to store document chunks")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		respond.Error(ctx, w, http.StatusServiceUnavailable, "CANCELLED", "Request cancelled")
	default:
		slog.ErrorContext(ctx, "ingestion failed", "error", err)
		respond.Error(ctx, w, http.StatusInternalServerError, respond.CodeInternal, "Internal Server Error")
	}
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
