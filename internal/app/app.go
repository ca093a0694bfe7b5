package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/nsqio/go-nsq"

	"impar/api/features/ingest"
	"impar/api/features/job"
	"impar/api/features/mcp"
	"impar/api/features/scrape"
	"impar/api/features/search"
	"impar/api/features/stats"
	"impar/api/internal/config"
	"impar/api/internal/extract"
	"impar/api/internal/middleware"
	"impar/api/internal/retrieval"
	webscrape "impar/api/internal/scrape"
	"impar/api/internal/store"
	"impar/api/internal/text"
	"impar/api/internal/worker"
)

type TaskPublisher interface {
	Publish(topic string, body []byte) error
}

type App struct {
	Handler        http.Handler
	Store          *store.Store
	ScrapeConsumer *worker.ScrapeConsumer

	cfg         *config.Config
	registry    *extract.Registry
	queryLogger *retrieval.QueryLogger
	logger      *slog.Logger
}

func New(
	cfg *config.Config,
	db *sql.DB,
	repo store.Repository,
	embedder store.Embedder,
	taskPub TaskPublisher,
	logger *slog.Logger,
) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	vecStore := store.New(embedder, repo, logger)
	splitter := text.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)

	registry, err := extract.NewRegistry(
		extract.WithOCR(extract.NewTesseractOCR(cfg.OCRLanguages)),
		extract.WithConcurrency(cfg.ExtractConcurrency),
		extract.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("extractor registry: %w", err)
	}

	// Feature: Ingest
	ingestService := ingest.NewService(registry, splitter, vecStore, logger)
	ingestHandler := ingest.NewHandler(ingestService, cfg.MaxUploadSizeMB)

	// Feature: Scrape
	scrapeTimeout := time.Duration(cfg.ScrapeTimeoutSeconds) * time.Second
	if scrapeTimeout <= 0 {
		scrapeTimeout = webscrape.DefaultTimeout
	}
	scraper := webscrape.New(&http.Client{Timeout: scrapeTimeout}, cfg.ScrapeURL, logger)
	scrapeService := scrape.NewService(scraper, splitter, vecStore, taskPub, logger)
	scrapeHandler := scrape.NewHandler(scrapeService)

	// Feature: Job
	jobRepo := job.NewPostgresRepo(db)
	jobService := job.NewService(jobRepo, taskPub, logger)
	jobHandler := job.NewHandler(jobService)

	// Feature: Stats
	statsHandler := stats.NewHandler(vecStore, jobRepo)

	// Feature: Retrieval, Search & MCP
	queryLogger, err := retrieval.NewFileQueryLogger(cfg.QueryLogPath)
	if err != nil {
		logger.Warn("failed to create query logger, falling back to stdout", "error", err)
		queryLogger = retrieval.NewQueryLogger(os.Stdout)
	}
	retrievalService := retrieval.NewService(vecStore, queryLogger)
	searchHandler := search.NewHandler(retrievalService)
	mcpServer := mcp.NewServer(retrievalService, vecStore, logger)

	mux := http.NewServeMux()

	mux.HandleFunc("POST /chat/upload", ingestHandler.Upload)
	mux.HandleFunc("GET /sources", ingestHandler.ListSources)

	mux.HandleFunc("POST /scrape", scrapeHandler.Scrape)
	mux.HandleFunc("POST /scrape/queue", scrapeHandler.Enqueue)

	mux.HandleFunc("GET /search", searchHandler.Search)

	mux.HandleFunc("GET /jobs/failed", jobHandler.List)
	mux.HandleFunc("POST /jobs/{id}/retry", jobHandler.Retry)

	mux.HandleFunc("GET /stats", statsHandler.GetStats)

	mux.Handle("/mcp", mcpServer.Handler())

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// CORS wraps the mux so preflight requests are answered before
	// method-scoped routing.
	handler := middleware.CorrelationID(middleware.CORS(mux))

	return &App{
		Handler:        handler,
		Store:          vecStore,
		ScrapeConsumer: worker.NewScrapeConsumer(scrapeService, jobService, worker.DefaultMaxAttempts, logger),
		cfg:            cfg,
		registry:       registry,
		queryLogger:    queryLogger,
		logger:         logger,
	}, nil
}

// StartScrapeWorker connects the scrape consumer to nsqlookupd.
func (a *App) StartScrapeWorker() (*nsq.Consumer, error) {
	nsqCfg := nsq.NewConfig()
	nsqCfg.MaxAttempts = worker.DefaultMaxAttempts

	consumer, err := nsq.NewConsumer(config.TopicIngestScrape, config.ChannelScrapeWorker, nsqCfg)
	if err != nil {
		return nil, fmt.Errorf("nsq consumer error: %w", err)
	}
	consumer.AddHandler(a.ScrapeConsumer)

	if err := consumer.ConnectToNSQLookupd(a.cfg.NSQLookupd); err != nil {
		consumer.Stop()
		return nil, fmt.Errorf("connect to nsqlookupd: %w", err)
	}
	a.logger.Info("scrape worker connected", "topic", config.TopicIngestScrape, "channel", config.ChannelScrapeWorker)
	return consumer, nil
}

func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.ServerPort),
		Handler:           a.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		a.logger.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("server shutdown failed", "error", err)
		}
	}()

	a.logger.Info("server starting", "port", a.cfg.ServerPort)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close releases the extraction pool and the query log file.
func (a *App) Close() error {
	a.registry.Close()
	return a.queryLogger.Close()
}
