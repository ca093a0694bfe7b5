package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"impar/api/internal/app"
	"impar/api/internal/config"
	"impar/api/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := logger.New(os.Stdout, cfg.LogLevel)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("application error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	deps, err := app.Bootstrap(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := deps.Close(); err != nil {
			logger.Warn("failed to close dependencies", "error", err)
		}
	}()

	application, err := app.New(cfg, deps.DB, deps.Repository, deps.Embedder, deps.NSQProducer, logger)
	if err != nil {
		return err
	}
	defer application.Close()

	if cfg.EnableScrapeWorker {
		consumer, err := application.StartScrapeWorker()
		if err != nil {
			logger.Error("scrape worker disabled", "error", err)
		} else {
			defer func() {
				consumer.Stop()
				<-consumer.StopChan
			}()
		}
	}

	if !cfg.EnableAPI {
		logger.Info("api disabled, running worker only")
		<-ctx.Done()
		return nil
	}
	return application.Run(ctx)
}
