package job

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"impar/api/internal/config"
)

var ErrPublishTimeout = errors.New("timeout waiting for NSQ publish")

const defaultPublishTimeout = 5 * time.Second

type EventPublisher interface {
	Publish(topic string, body []byte) error
}

type Service struct {
	repo           Repository
	pub            EventPublisher
	logger         *slog.Logger
	publishTimeout time.Duration
}

func NewService(repo Repository, pub EventPublisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, pub: pub, logger: logger, publishTimeout: defaultPublishTimeout}
}

// Record stores a failed task.
func (s *Service) Record(ctx context.Context, j *Job) error {
	if err := s.repo.Save(ctx, j); err != nil {
		return fmt.Errorf("save failed job: %w", err)
	}
	s.logger.WarnContext(ctx, "task moved to failed jobs", "id", j.ID, "source", j.Source, "handler", j.Handler, "error", j.Error)
	return nil
}

func (s *Service) List(ctx context.Context) ([]Job, error) {
	return s.repo.List(ctx)
}

// Retry republishes the stored payload and removes the job. The job is kept
// when publishing fails. When the publish outlives the timeout or the
// request, the job is removed later if that publish succeeds.
func (s *Service) Retry(ctx context.Context, id string) error {
	j, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() {
		done <- s.pub.Publish(config.TopicIngestScrape, j.Payload)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("publish retry: %w", err)
		}
	case <-time.After(s.publishTimeout):
		go s.settleLatePublish(context.WithoutCancel(ctx), j, done)
		return ErrPublishTimeout
	case <-ctx.Done():
		go s.settleLatePublish(context.WithoutCancel(ctx), j, done)
		return ctx.Err()
	}

	s.logger.InfoContext(ctx, "failed job republished", "id", id, "source", j.Source, "topic", config.TopicIngestScrape)
	return s.repo.Delete(ctx, id)
}

// settleLatePublish waits for an abandoned publish and deletes the job if it
// went through, so a second retry does not enqueue the task twice.
func (s *Service) settleLatePublish(ctx context.Context, j *Job, done <-chan error) {
	if err := <-done; err != nil {
		s.logger.WarnContext(ctx, "late retry publish failed, job kept", "id", j.ID, "error", err)
		return
	}
	if err := s.repo.Delete(ctx, j.ID); err != nil && !errors.Is(err, sql.ErrNoRows) {
		s.logger.ErrorContext(ctx, "failed to delete job after late publish", "id", j.ID, "error", err)
		return
	}
	s.logger.InfoContext(ctx, "failed job republished after timeout", "id", j.ID, "source", j.Source, "topic", config.TopicIngestScrape)
}

func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}
