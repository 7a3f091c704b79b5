package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/docuplane/docintel/internal/async"
	"github.com/docuplane/docintel/internal/audit"
	"github.com/docuplane/docintel/internal/common"
	"github.com/docuplane/docintel/internal/core"
	"github.com/docuplane/docintel/internal/export"
	"github.com/docuplane/docintel/internal/extract"
	"github.com/docuplane/docintel/internal/ingest"
	"github.com/docuplane/docintel/internal/ocr"
	repo "github.com/docuplane/docintel/internal/repository"
	"github.com/docuplane/docintel/internal/server"
	"github.com/docuplane/docintel/internal/storage"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, pool, err := repo.Open(ctx, repo.Config{
		DSN:              cfg.Database.DSN,
		MaxConns:         cfg.Database.MaxConns,
		MinConns:         cfg.Database.MinConns,
		MaxConnLifetime:  cfg.Database.MaxConnLifetime,
		MaxConnIdleTime:  cfg.Database.MaxConnIdleTime,
		DialTimeout:      cfg.Database.DialTimeout,
		StatementTimeout: cfg.Database.StatementTimeout,
	}, logger)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer repo.Close(db, pool, logger)

	if err := repo.HealthCheck(ctx, pool, 5*time.Second, logger); err != nil {
		logger.Error("database ping failed", "error", err)
		os.Exit(1)
	}

	store, err := storage.New(cfg.Storage, logger)
	if err != nil {
		logger.Error("failed to build storage", "error", err)
		os.Exit(1)
	}

	provider, err := ocr.NewProvider(ctx, cfg.OCR)
	if err != nil {
		logger.Error("failed to build ocr provider", "error", err)
		os.Exit(1)
	}
	logger.Info("ocr provider ready", "provider", provider.Name())

	jobsRepo := repo.NewDocumentJobRepository(db, logger)
	itemsRepo := repo.NewDocumentItemRepository(db, logger)
	profilesRepo := repo.NewDocumentProfileRepository(db, logger)
	eventsRepo := repo.NewAuditEventRepository(db, logger)

	auditSvc := audit.NewService(eventsRepo, logger)
	engine := extract.NewEngine(logger, extract.DefaultFlagDetectors()...)

	processor := core.NewProcessor(logger, jobsRepo, itemsRepo, profilesRepo,
		store, provider, engine, cfg.Worker.ReviewThreshold)
	queue := async.NewProcessorQueue(processor, logger,
		async.WithWorkers(cfg.Worker.Workers),
		async.WithQueueSize(cfg.Worker.QueueSize),
		async.WithProcessTimeout(cfg.Worker.ProcessTimeout),
		async.WithMaxAttempts(cfg.Worker.MaxAttempts),
	)

	ingestSvc := ingest.NewService(logger, profilesRepo, jobsRepo, store, auditSvc, queue)
	exportSvc := export.NewService(itemsRepo, jobsRepo, logger)

	// Pick up pending jobs stranded by a crash or a failed enqueue.
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			if n, err := ingestSvc.RequeueStalePending(ctx, 5*time.Minute, 100); err != nil {
				logger.Error("stale pending sweep failed", "error", err)
			} else if n > 0 {
				logger.Info("stale pending sweep requeued jobs", "count", n)
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	srv := server.NewServer(cfg.Server.HTTPAddr, logger,
		ingestSvc, exportSvc, auditSvc, jobsRepo, itemsRepo)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run() }()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			logger.Error("http server failed", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", "error", err)
	}
	queue.Shutdown(shutdownCtx)
	logger.Info("stopped")
}
