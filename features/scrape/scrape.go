package scrape

import (
	"context"

	"impar/api/internal/content"
)

const (
	StatusSuccess = "success"
	StatusQueued  = "queued"

	MsgScraped        = "Scraping completed successfully!"
	MsgAlreadyScraped = "This site has already been scraped."
	MsgQueued         = "Scrape queued."
)

// Result is the response to a scrape request.
type Result struct {
	Status      string `json:"status"`
	Message     string `json:"message"`
	ChunksAdded int    `json:"chunks_added"`
	Source      string `json:"source"`
}

// Task is the NSQ message body for a queued scrape.
type Task struct {
	URL           string `json:"url"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

type Fetcher interface {
	ResolveURL(url string) (string, error)
	Scrape(ctx context.Context, url string) ([]content.Unit, error)
}

type Splitter interface {
	SplitUnits(units []content.Unit) []content.Chunk
}

type Store interface {
	Add(ctx context.Context, chunks []content.Chunk) error
	Exists(ctx context.Context, source string) (bool, error)
}

type EventPublisher interface {
	Publish(topic string, body []byte) error
}
