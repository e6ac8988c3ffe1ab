package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/groupcart/payproof/internal/batch"
	"github.com/groupcart/payproof/internal/common"
	"github.com/groupcart/payproof/internal/core"
	"github.com/groupcart/payproof/internal/export"
	"github.com/groupcart/payproof/internal/extract"
	"github.com/groupcart/payproof/internal/extract/openai"
	"github.com/groupcart/payproof/internal/repository"
	"github.com/groupcart/payproof/internal/server"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
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

	pool, err := repository.Open(ctx, cfg.Database, logger)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := repository.HealthCheck(ctx, pool, cfg.Database.DialTimeout, logger); err != nil {
		logger.Error("database health check failed", "error", err)
		os.Exit(1)
	}

	proofs := repository.NewProofRepository(pool, logger)
	submissions := repository.NewSubmissionRepository(pool, logger)
	methods := repository.NewMethodRepository(pool, logger)
	ledger := repository.NewLedgerRepository(pool, logger)
	jobs := repository.NewJobRepository(pool, logger)

	client := openai.NewClient(openai.Config{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
	}, logger)
	extractor := extract.NewWithRetry(client, cfg.LLM.MaxRetries, time.Second, logger)

	proc := core.NewProcessor(logger, extractor, proofs, submissions, methods, ledger, cfg.Verify)
	runner := batch.NewRunner(proc, proofs, jobs, logger,
		batch.WithWorkers(cfg.Verify.Workers),
		batch.WithBatchSize(cfg.Verify.BatchSize),
	)
	exportSvc := export.NewService(ledger, logger)

	srv := server.New(proc, runner, exportSvc, pool, logger)
	httpSrv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: srv.Router(),
	}

	go func() {
		logger.Info("http serving", "addr", cfg.Server.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http serve failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", "error", err)
	}
	logger.Info("stopped")
}
