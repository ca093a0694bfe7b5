package ingest

import (
	"context"

	"impar/api/internal/content"
	"impar/api/internal/extract"
)

const StatusProcessed = "Processed and vectorized successfully"

// UploadResult is the response to a file batch.
type UploadResult struct {
	Filename        string   `json:"filename"`
	ChunksGenerated int      `json:"chunks_generated"`
	Status          string   `json:"status"`
	Skipped         []string `json:"skipped,omitempty"`
}

type Extractor interface {
	ExtractBatch(ctx context.Context, files []extract.File) ([]content.Unit, error)
}

type Splitter interface {
	SplitUnits(units []content.Unit) []content.Chunk
}

type Store interface {
	Add(ctx context.Context, chunks []content.Chunk) error
	Exists(ctx context.Context, source string) (bool, error)
	ListSources(ctx context.Context) ([]string, error)
}
