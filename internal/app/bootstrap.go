package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/nsqio/go-nsq"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"

	"impar/api/internal/adapter/gemini"
	"impar/api/internal/adapter/openai"
	"impar/api/internal/adapter/pgvector"
	"impar/api/internal/adapter/qdrant"
	wvt "impar/api/internal/adapter/weaviate"
	"impar/api/internal/config"
	"impar/api/internal/store"
)

type Dependencies struct {
	DB          *sql.DB
	Repository  store.Repository
	Embedder    store.Embedder
	NSQProducer *nsq.Producer

	closers []func() error
}

// Close releases everything Bootstrap opened, in reverse order.
func (d *Dependencies) Close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type CollectionEnsurer interface {
	EnsureCollection(ctx context.Context) error
}

func Bootstrap(ctx context.Context, cfg *config.Config) (*Dependencies, error) {
	deps := &Dependencies{}
	retryDelay := time.Duration(cfg.BootstrapRetryDelaySeconds) * time.Second

	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	deps.DB = db
	deps.closers = append(deps.closers, db.Close)

	if err := pingWithRetry(ctx, db, cfg.BootstrapRetryAttempts, retryDelay); err != nil {
		_ = deps.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	if err := runMigrations(db, cfg.MigrationPath); err != nil {
		_ = deps.Close()
		return nil, err
	}

	repo, closeRepo, err := newRepository(cfg, db)
	if err != nil {
		_ = deps.Close()
		return nil, err
	}
	deps.Repository = repo
	if closeRepo != nil {
		deps.closers = append(deps.closers, closeRepo)
	}

	if err := EnsureCollectionWithRetry(ctx, repo, cfg.BootstrapRetryAttempts, retryDelay); err != nil {
		_ = deps.Close()
		return nil, fmt.Errorf("%s collection error: %w", cfg.VectorBackend, err)
	}

	embedder, batchSize, closeEmbedder, err := newEmbedder(ctx, cfg)
	if err != nil {
		_ = deps.Close()
		return nil, err
	}
	deps.Embedder = store.NewThrottledEmbedder(embedder, cfg.EmbedRequestsPerSecond, cfg.EmbedBurst, batchSize)
	if closeEmbedder != nil {
		deps.closers = append(deps.closers, closeEmbedder)
	}

	producer, err := nsq.NewProducer(cfg.NSQDHost, nsq.NewConfig())
	if err != nil {
		_ = deps.Close()
		return nil, fmt.Errorf("nsq producer error: %w", err)
	}
	deps.NSQProducer = producer
	deps.closers = append(deps.closers, func() error { producer.Stop(); return nil })

	createTopics(cfg.NSQDHTTP)

	slog.InfoContext(ctx, "dependencies ready", "backend", cfg.VectorBackend, "embedding_provider", cfg.EmbeddingProvider)
	return deps, nil
}

func pingWithRetry(ctx context.Context, db *sql.DB, attempts int, delay time.Duration) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = db.PingContext(ctx); err == nil {
			return nil
		}
		slog.Warn("failed to ping db, retrying...", "attempt", i+1, "max_attempts", attempts)
		if i < attempts-1 {
			time.Sleep(delay)
		}
	}
	if err == nil {
		err = db.PingContext(ctx)
	}
	return err
}

func runMigrations(db *sql.DB, path string) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("migration driver error: %w", err)
	}
	m, err := migrate.NewWithDatabaseInstance(path, "postgres", driver)
	if err != nil {
		return fmt.Errorf("migration instance error: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up error: %w", err)
	}
	slog.Info("migrations applied successfully")
	return nil
}

func newRepository(cfg *config.Config, db *sql.DB) (store.Repository, func() error, error) {
	switch cfg.VectorBackend {
	case config.BackendWeaviate:
		client, err := weaviate.NewClient(weaviate.Config{Host: cfg.WeaviateHost, Scheme: cfg.WeaviateScheme})
		if err != nil {
			return nil, nil, fmt.Errorf("weaviate client error: %w", err)
		}
		return wvt.NewRepository(client, cfg.CollectionName), nil, nil
	case config.BackendQdrant:
		repo, err := qdrant.Dial(cfg.QdrantHost, cfg.QdrantPort, cfg.CollectionName, cfg.EmbeddingDimensions)
		if err != nil {
			return nil, nil, fmt.Errorf("qdrant client error: %w", err)
		}
		return repo, repo.Close, nil
	default:
		return pgvector.NewRepository(db, cfg.CollectionName), nil, nil
	}
}

// newEmbedder returns the configured provider and the number of texts it
// sends per API request.
func newEmbedder(ctx context.Context, cfg *config.Config) (store.Embedder, int, func() error, error) {
	switch cfg.EmbeddingProvider {
	case config.ProviderOpenAI:
		e, err := openai.NewEmbedder(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIEmbeddingModel)
		if err != nil {
			return nil, 0, nil, fmt.Errorf("openai embedder error: %w", err)
		}
		return e, openai.MaxBatch, nil, nil
	default:
		e, err := gemini.NewEmbedder(ctx, cfg.GeminiAPIKey, cfg.GeminiEmbeddingModel)
		if err != nil {
			return nil, 0, nil, fmt.Errorf("gemini embedder error: %w", err)
		}
		return e, gemini.MaxBatch, e.Close, nil
	}
}

// createTopics pre-creates NSQ topics so consumers polling nsqlookupd do
// not fail before the first publish.
func createTopics(nsqdHTTP string) {
	create := func(topic string) {
		u := fmt.Sprintf("http://%s/topic/create?topic=%s", nsqdHTTP, url.QueryEscape(topic))
		resp, err := http.Post(u, "application/json", nil) // #nosec G107 -- URL is built from internal NSQ config, not user input
		if err != nil {
			slog.Warn("failed to create NSQ topic", "topic", topic, "error", err)
			return
		}
		if closeErr := resp.Body.Close(); closeErr != nil {
			slog.Warn("failed to close NSQ topic creation response body", "error", closeErr)
		}
	}

	go func() {
		time.Sleep(2 * time.Second)
		create(config.TopicIngestScrape)
	}()
}

// EnsureCollectionWithRetry keeps calling EnsureCollection until it
// succeeds or attempts run out.
func EnsureCollectionWithRetry(ctx context.Context, c CollectionEnsurer, attempts int, delay time.Duration) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		if err = c.EnsureCollection(ctx); err == nil {
			return nil
		}
		slog.WarnContext(ctx, "failed to ensure collection, retrying...", "attempt", i+1, "error", err)
		if i < attempts-1 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return err
}
