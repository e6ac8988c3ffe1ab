package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/groupcart/payproof/internal/batch"
	"github.com/groupcart/payproof/internal/common"
	"github.com/groupcart/payproof/internal/core"
	"github.com/groupcart/payproof/internal/entity"
	"github.com/groupcart/payproof/internal/extract"
	"github.com/groupcart/payproof/internal/extract/openai"
	"github.com/groupcart/payproof/internal/repository"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		sweep   = flag.String("sweep", "auto-verify", "sweep to run: auto-verify or flag")
		size    = flag.Int("batch-size", 0, "rows to claim this run (0 = config default)")
		workers = flag.Int("workers", 0, "concurrent workers (0 = config default)")
	)
	flag.Parse()

	if *sweep != "auto-verify" && *sweep != "flag" {
		printError("Error: --sweep must be auto-verify or flag\n")
		os.Exit(1)
	}

	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	ctx := context.Background()

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if *size > 0 {
		cfg.Verify.BatchSize = *size
	}
	if *workers > 0 {
		cfg.Verify.Workers = *workers
	}

	pool, err := repository.Open(ctx, cfg.Database, logger)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

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

	var job *entity.BulkVerificationJob
	if *sweep == "auto-verify" {
		job, err = runner.RunAutoVerifySweep(ctx)
	} else {
		job, err = runner.RunFlagSweep(ctx)
	}
	if err != nil {
		logger.Error("sweep failed", "sweep", *sweep, "error", err)
		os.Exit(1)
	}

	fmt.Printf("Sweep complete!\n")
	fmt.Printf("- Kind: %s\n", job.Kind)
	fmt.Printf("- Status: %s\n", job.Status)
	fmt.Printf("- Total: %d\n", job.Total)
	fmt.Printf("- Succeeded: %d\n", job.Succeeded)
	fmt.Printf("- Failed: %d\n", job.Failed)
}
