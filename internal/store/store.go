// Package store is the retrieval store: it embeds chunks, appends them to a
// named collection and answers similarity, existence and listing queries.
package store

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"impar/api/internal/content"
)

// Embedder turns texts into vectors. Documents and queries may use
// different task types, so they are separate calls.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Record is one stored chunk with its vector.
type Record struct {
	ID       string
	Text     string
	Metadata content.Metadata
	Vector   []float32
}

// Repository is a vector backend bound to one collection. Implementations
// open and close their own session per call.
type Repository interface {
	EnsureCollection(ctx context.Context) error
	Insert(ctx context.Context, records []Record) error
	// Query returns up to k records nearest to vector. An empty source
	// means no filter.
	Query(ctx context.Context, vector []float32, k int, source string) ([]Record, error)
	HasSource(ctx context.Context, source string) (bool, error)
	DistinctSources(ctx context.Context) ([]string, error)
	Count(ctx context.Context) (int, error)
}

type Store struct {
	embedder Embedder
	repo     Repository
	logger   *slog.Logger
}

func New(embedder Embedder, repo Repository, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{embedder: embedder, repo: repo, logger: logger}
}

// Add embeds and appends chunks. It never deduplicates: adding the same
// chunks twice stores them twice.
func (s *Store) Add(ctx context.Context, chunks []content.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return s.fail(ctx, "add", err)
	}
	if len(vectors) != len(chunks) {
		return s.fail(ctx, "add", errors.New("embedder returned a different number of vectors than texts"))
	}

	if err := s.repo.EnsureCollection(ctx); err != nil {
		return s.fail(ctx, "add", err)
	}

	records := make([]Record, len(chunks))
	for i, c := range chunks {
		records[i] = Record{
			ID:       uuid.NewString(),
			Text:     c.Text,
			Metadata: c.Metadata,
			Vector:   vectors[i],
		}
	}

	if err := s.repo.Insert(ctx, records); err != nil {
		return s.fail(ctx, "add", err)
	}

	s.logger.InfoContext(ctx, "chunks added", "count", len(records))
	return nil
}

// Search returns the k chunks most similar to query, restricted to source
// when it is not empty. No match is an empty result, not an error.
func (s *Store) Search(ctx context.Context, query string, k int, source string) ([]content.Chunk, error) {
	if k <= 0 {
		return []content.Chunk{}, nil
	}

	vector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, s.fail(ctx, "search", err)
	}

	records, err := s.repo.Query(ctx, vector, k, source)
	if err != nil {
		return nil, s.fail(ctx, "search", err)
	}

	chunks := make([]content.Chunk, len(records))
	for i, r := range records {
		chunks[i] = content.Chunk{Text: r.Text, Metadata: r.Metadata}
	}

	s.logger.DebugContext(ctx, "search completed", "k", k, "source", source, "results", len(chunks))
	return chunks, nil
}

// Exists reports whether any chunk carries source. A collection that was
// never created holds nothing.
func (s *Store) Exists(ctx context.Context, source string) (bool, error) {
	ok, err := s.repo.HasSource(ctx, source)
	if errors.Is(err, ErrCollectionNotFound) {
		return false, nil
	}
	if err != nil {
		return false, s.fail(ctx, "exists", err)
	}
	return ok, nil
}

// ListSources returns the distinct sources in the collection.
func (s *Store) ListSources(ctx context.Context) ([]string, error) {
	sources, err := s.repo.DistinctSources(ctx)
	if errors.Is(err, ErrCollectionNotFound) {
		return []string{}, nil
	}
	if err != nil {
		return nil, s.fail(ctx, "list_sources", err)
	}
	if sources == nil {
		sources = []string{}
	}
	return sources, nil
}

// CountChunks returns the number of stored chunks.
func (s *Store) CountChunks(ctx context.Context) (int, error) {
	n, err := s.repo.Count(ctx)
	if errors.Is(err, ErrCollectionNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, s.fail(ctx, "count", err)
	}
	return n, nil
}

func (s *Store) fail(ctx context.Context, op string, err error) error {
	s.logger.ErrorContext(ctx, "vector store operation failed", "op", op, "error", err)
	return &PersistenceError{Op: op, Err: err}
}
