package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/tawthiq/tawthiq/internal/app"
	"github.com/tawthiq/tawthiq/internal/bulk"
	"github.com/tawthiq/tawthiq/internal/capture"
	jobmetrics "github.com/tawthiq/tawthiq/internal/jobs"
	"github.com/tawthiq/tawthiq/internal/platform/cache"
	"github.com/tawthiq/tawthiq/internal/platform/db"
	"github.com/tawthiq/tawthiq/internal/templates"
	"github.com/tawthiq/tawthiq/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	chromium, err := capture.NewChromium(cfg.GotenbergURL, http.DefaultClient)
	if err != nil {
		logger.Error("init chromium backend", slog.Any("error", err))
		os.Exit(1)
	}
	if err := chromium.Ping(ctx); err != nil {
		logger.Warn("chromium unreachable, captures will fall back", slog.Any("error", err))
	}

	fonts, err := capture.LoadFonts(cfg.FontsDir)
	if err != nil {
		logger.Warn("load fonts", slog.Any("error", err))
	}
	raster := capture.NewRaster(fonts, http.DefaultClient)

	chain, err := capture.NewChain(logger, chromium, raster)
	if err != nil {
		logger.Error("init capture chain", slog.Any("error", err))
		os.Exit(1)
	}

	orchestrator := bulk.NewOrchestrator(chain, logger)
	orchestrator.WithSettle(cfg.CaptureSettle)

	sink, err := bulk.NewFileSink(cfg.StorageDir)
	if err != nil {
		logger.Error("init storage", slog.Any("error", err))
		os.Exit(1)
	}

	templateRepo := templates.NewRepository(pool)
	templateService := templates.NewService(templateRepo)
	jobRepo := bulk.NewRepository(pool)
	tableStore := bulk.NewTableStore(redisClient)
	progressStore := bulk.NewProgressStore(redisClient)
	bulkService := bulk.NewService(jobRepo, templateService, tableStore, nil)

	runner := bulk.NewJobRunner(bulk.JobConfig{
		Service:      bulkService,
		Templates:    templateService,
		Tables:       tableStore,
		Orchestrator: orchestrator,
		Sink:         sink,
		Progress:     progressStore,
		Metrics:      jobmetrics.NewMetrics(nil),
		Logger:       logger,
	})

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskTypeBulkGenerate, Handler: runner.Handle},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("worker starting", slog.String("queue", jobs.QueueDefault))
	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker stopped", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("worker stopped")
}
