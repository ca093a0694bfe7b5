package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nsqio/go-nsq"

	"impar/api/features/job"
	"impar/api/features/scrape"
	"impar/api/internal/middleware"
	"impar/api/internal/store"
)

const (
	DefaultMaxAttempts = 3
	taskTimeout        = 5 * time.Minute
)

type Scraper interface {
	Scrape(ctx context.Context, url string) (*scrape.Result, error)
}

type FailureRecorder interface {
	Record(ctx context.Context, j *job.Job) error
}

// ScrapeConsumer runs queued scrape tasks. Store failures are requeued until
// maxAttempts; every other failure is recorded as a failed job and acked.
type ScrapeConsumer struct {
	scraper     Scraper
	failures    FailureRecorder
	maxAttempts uint16
	logger      *slog.Logger
}

func NewScrapeConsumer(s Scraper, f FailureRecorder, maxAttempts uint16, logger *slog.Logger) *ScrapeConsumer {
	if maxAttempts == 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ScrapeConsumer{scraper: s, failures: f, maxAttempts: maxAttempts, logger: logger}
}

func (c *ScrapeConsumer) HandleMessage(m *nsq.Message) error {
	if len(m.Body) == 0 {
		return nil
	}

	var task scrape.Task
	err := json.Unmarshal(m.Body, &task)

	correlationID := task.CorrelationID
	if correlationID == "" {
		correlationID = uuid.New().String()
	}
	ctx := middleware.WithCorrelationID(context.Background(), correlationID)

	if err != nil {
		c.logger.ErrorContext(ctx, "poison pill: invalid json", "error", err)
		return nil
	}
	if task.URL == "" {
		c.logger.ErrorContext(ctx, "missing url, dropping")
		return nil
	}

	taskCtx, cancel := context.WithTimeout(ctx, taskTimeout)
	defer cancel()

	res, err := c.scraper.Scrape(taskCtx, task.URL)
	if err == nil {
		c.logger.InfoContext(ctx, "scrape task done", "url", task.URL, "message", res.Message, "chunks", res.ChunksAdded)
		return nil
	}

	if errors.Is(err, store.ErrPersistence) && m.Attempts < c.maxAttempts {
		c.logger.WarnContext(ctx, "scrape task failed, requeueing", "url", task.URL, "attempt", m.Attempts, "error", err)
		return err
	}

	c.logger.ErrorContext(ctx, "scrape task failed", "url", task.URL, "attempt", m.Attempts, "error", err)
	failed := &job.Job{
		Source:  task.URL,
		Handler: job.HandlerScrapeWorker,
		Payload: json.RawMessage(m.Body),
		Error:   err.Error(),
		Retries: int(m.Attempts),
	}
	if err := c.failures.Record(ctx, failed); err != nil {
		// nothing was persisted, let NSQ deliver it again
		return err
	}
	return nil
}
