package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/joseph-ayodele/batch-ocr/internal/common"
	"github.com/joseph-ayodele/batch-ocr/internal/observability/logging"
	"github.com/joseph-ayodele/batch-ocr/internal/ocr"
	"github.com/joseph-ayodele/batch-ocr/internal/pipeline"
	"github.com/joseph-ayodele/batch-ocr/internal/progress"
	repo "github.com/joseph-ayodele/batch-ocr/internal/repository"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg, err := common.ParseFlags("batch-ocr", args, os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		if common.IsCode(err, common.CodeConfig) {
			printError("Error: %v\n", err)
			return 1
		}
		return 2
	}
	if err := cfg.Validate(); err != nil {
		printError("Error: %v\n", err)
		return 1
	}

	logger := logging.NewLogger(cfg.Log.Format, cfg.Log.Level, os.Stderr)
	slog.SetDefault(logger)
	logger.Debug("configuration loaded", "config", cfg.String())

	toolPath, err := ocr.ResolveTool(cfg.Tool, logger)
	if err != nil {
		logger.Error("OCR tool not found", "tool", cfg.Tool, "error", err)
		printError("Error: OCR tool not found: %s\n", cfg.Tool)
		return 1
	}

	// no global cancellation: every image is bounded by its own timeout
	ctx := context.Background()

	opts := []pipeline.Option{pipeline.WithProgress(progress.NewCounter(os.Stdout, logger))}
	if cfg.Ledger.DSN != "" {
		store, err := repo.Open(ctx, repo.Config{
			DSN:         cfg.Ledger.DSN,
			MaxConns:    cfg.Ledger.MaxConns,
			DialTimeout: cfg.Ledger.DialTimeout,
		}, logger)
		if err != nil {
			logger.Warn("run ledger unavailable; continuing without it", "error", err)
		} else {
			defer store.Close()
			opts = append(opts, pipeline.WithLedger(repo.NewRunRepository(store)))
		}
	}

	logger.Info("starting batch",
		"tool", toolPath,
		"input", cfg.InputDir,
		"error_dir", cfg.ErrorDir,
		"output", cfg.OutputFile,
		"threads", cfg.Workers,
		"timeout_s", cfg.TimeoutSeconds,
	)
	summary, err := pipeline.NewProcessor(cfg, toolPath, logger, opts...).Run(ctx)
	if err != nil {
		logger.Error("batch did not complete cleanly", "run_id", summary.RunID, "error", err)
		return 1
	}
	if summary.OutputPath != "" {
		fmt.Printf("Done. %d images, %d failed. Results saved to %s\n", summary.Total, summary.Failed, summary.OutputPath)
	}
	return 0
}
