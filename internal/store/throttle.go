package store

import (
	"context"

	"golang.org/x/time/rate"
)

// ThrottledEmbedder limits how many requests reach the embedding API.
// Document calls are split into batches of at most batchSize texts, the
// largest request the wrapped provider sends, and each batch waits for
// its own token.
type ThrottledEmbedder struct {
	next      Embedder
	limiter   *rate.Limiter
	batchSize int
}

// NewThrottledEmbedder allows rps requests per second with the given burst.
// A batchSize below one sends every document call as a single request.
func NewThrottledEmbedder(next Embedder, rps float64, burst, batchSize int) *ThrottledEmbedder {
	if burst < 1 {
		burst = 1
	}
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	return &ThrottledEmbedder{next: next, limiter: rate.NewLimiter(limit, burst), batchSize: batchSize}
}

func (t *ThrottledEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	size := t.batchSize
	if size < 1 || size > len(texts) {
		size = len(texts)
	}
	if size == 0 {
		return t.next.EmbedDocuments(ctx, texts)
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += size {
		end := min(start+size, len(texts))
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		batch, err := t.next.EmbedDocuments(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

func (t *ThrottledEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return t.next.EmbedQuery(ctx, text)
}
