package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"impar/api/internal/content"
	"impar/api/internal/middleware"
)

const (
	DefaultK = 4

	msgNoResults   = "No relevant information found in the documents."
	msgNoSources   = "no sources available"
	generalContext = "General context"
)

// Store is the slice of store.Store the search path needs.
type Store interface {
	Search(ctx context.Context, query string, k int, source string) ([]content.Chunk, error)
	Exists(ctx context.Context, source string) (bool, error)
	ListSources(ctx context.Context) ([]string, error)
}

type Service struct {
	store  Store
	logger *QueryLogger
}

func NewService(s Store, l *QueryLogger) *Service {
	return &Service{store: s, logger: l}
}

// Search returns the k chunks closest to query, optionally restricted to
// one source. Non-positive k falls back to DefaultK.
func (s *Service) Search(ctx context.Context, query string, k int, source string) ([]content.Chunk, error) {
	if k <= 0 {
		k = DefaultK
	}

	start := time.Now()
	chunks, err := s.store.Search(ctx, query, k, source)
	if err != nil {
		return nil, err
	}

	if s.logger != nil {
		s.logger.Log(QueryLogEntry{
			Query:         query,
			Source:        source,
			K:             k,
			NumResults:    len(chunks),
			Duration:      time.Since(start),
			CorrelationID: middleware.GetCorrelationID(ctx),
		})
	}
	return chunks, nil
}

// SearchDocuments answers a search as plain text for an agent. An unknown
// fileName yields a message naming the sources that do exist; no hits
// yield a fixed message. Neither is an error.
func (s *Service) SearchDocuments(ctx context.Context, query string, k int, fileName string) (string, error) {
	slog.DebugContext(ctx, "search_documents called", "query", truncate(query, 50), "k", k, "file_name", fileName)

	if fileName != "" {
		ok, err := s.store.Exists(ctx, fileName)
		if err != nil {
			return "", err
		}
		if !ok {
			sources, err := s.store.ListSources(ctx)
			if err != nil {
				return "", err
			}
			available := msgNoSources
			if len(sources) > 0 {
				available = strings.Join(sources, ", ")
			}
			slog.WarnContext(ctx, "source not found", "file_name", fileName, "available", available)
			return fmt.Sprintf("Source '%s' was not found in the knowledge base. Check that the name is correct. Available sources: %s", fileName, available), nil
		}
	}

	chunks, err := s.Search(ctx, query, k, fileName)
	if err != nil {
		return "", err
	}
	if len(chunks) == 0 {
		slog.InfoContext(ctx, "no documents found", "query", truncate(query, 50), "file_name", fileName)
		return msgNoResults, nil
	}

	slog.InfoContext(ctx, "documents found", "query", truncate(query, 50), "results", len(chunks))
	return FormatResults(chunks), nil
}

// FormatResults renders chunks as headed blocks separated by blank lines.
func FormatResults(chunks []content.Chunk) string {
	blocks := make([]string, len(chunks))
	for i, c := range chunks {
		location := c.Metadata.Location
		if location == "" {
			location = generalContext
		}
		blocks[i] = fmt.Sprintf("--- Document: %s | Location: %s ---\n%s", c.Metadata.Source, location, c.Text)
	}
	return strings.Join(blocks, "\n\n")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
