package scrape

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"impar/api/internal/config"
	"impar/api/internal/middleware"
)

type Service struct {
	fetcher  Fetcher
	splitter Splitter
	store    Store
	pub      EventPublisher
	logger   *slog.Logger
}

func NewService(f Fetcher, sp Splitter, st Store, pub EventPublisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{fetcher: f, splitter: sp, store: st, pub: pub, logger: logger}
}

// Scrape stores the text of one page. A URL that is already stored is
// reported as success without fetching it again.
func (s *Service) Scrape(ctx context.Context, url string) (*Result, error) {
	url, err := s.fetcher.ResolveURL(url)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "scrape request received", "url", url)

	exists, err := s.store.Exists(ctx, url)
	if err != nil {
		return nil, err
	}
	if exists {
		s.logger.InfoContext(ctx, "scrape skipped, already stored", "url", url)
		return &Result{Status: StatusSuccess, Message: MsgAlreadyScraped, Source: url}, nil
	}

	units, err := s.fetcher.Scrape(ctx, url)
	if err != nil {
		return nil, err
	}
	chunks := s.splitter.SplitUnits(units)

	if err := s.store.Add(ctx, chunks); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "scrape completed", "url", url, "chunks", len(chunks))

	return &Result{Status: StatusSuccess, Message: MsgScraped, ChunksAdded: len(chunks), Source: url}, nil
}

// Enqueue publishes a scrape for the worker and returns the resolved URL.
func (s *Service) Enqueue(ctx context.Context, url string) (*Result, error) {
	url, err := s.fetcher.ResolveURL(url)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(Task{URL: url, CorrelationID: middleware.GetCorrelationID(ctx)})
	if err != nil {
		return nil, err
	}
	if err := s.pub.Publish(config.TopicIngestScrape, body); err != nil {
		return nil, fmt.Errorf("publish scrape task: %w", err)
	}

	s.logger.InfoContext(ctx, "scrape queued", "url", url)
	return &Result{Status: StatusQueued, Message: MsgQueued, Source: url}, nil
}
