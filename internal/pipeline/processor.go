package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/batch-ocr/internal/async"
	"github.com/joseph-ayodele/batch-ocr/internal/common"
	"github.com/joseph-ayodele/batch-ocr/internal/entity"
	"github.com/joseph-ayodele/batch-ocr/internal/export"
	"github.com/joseph-ayodele/batch-ocr/internal/ingest"
	"github.com/joseph-ayodele/batch-ocr/internal/observability/metrics"
	"github.com/joseph-ayodele/batch-ocr/internal/ocr"
	"github.com/joseph-ayodele/batch-ocr/internal/repository"
	"github.com/joseph-ayodele/batch-ocr/internal/results"
)

// Summary describes a finished run.
type Summary struct {
	RunID       uuid.UUID
	Stats       ingest.DirStats
	Total       int
	Succeeded   int
	Failed      int
	Quarantined int
	OutputPath  string // empty when nothing was written
	Elapsed     time.Duration
}

// Processor wires discovery, scheduling, aggregation and the optional
// reports for one batch run.
type Processor struct {
	cfg      *common.Config
	toolPath string
	invoker  async.Invoker
	ledger   repository.RunRepository
	progress async.Observer
	logger   *slog.Logger
}

type Option func(*Processor)

// WithInvoker replaces the subprocess invoker.
func WithInvoker(inv async.Invoker) Option {
	return func(p *Processor) { p.invoker = inv }
}

// WithLedger records the run and its outcomes.
func WithLedger(repo repository.RunRepository) Option {
	return func(p *Processor) { p.ledger = repo }
}

// WithProgress attaches a progress observer such as the terminal counter.
func WithProgress(obs async.Observer) Option {
	return func(p *Processor) { p.progress = obs }
}

// NewProcessor expects a validated config and a tool path from ocr.ResolveTool.
func NewProcessor(cfg *common.Config, toolPath string, logger *slog.Logger, opts ...Option) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Processor{cfg: cfg, toolPath: toolPath, logger: logger}
	for _, o := range opts {
		o(p)
	}
	if p.invoker == nil {
		p.invoker = ocr.NewInvoker(ocr.Config{
			Tool:      toolPath,
			Timeout:   cfg.Timeout(),
			Normalize: cfg.Normalize,
		}, logger)
	}
	return p
}

// Run processes every image in the input directory once. Per-image failures
// never abort the run; the returned error reports problems with the run's own
// side effects (output, quarantine, spreadsheet).
func (p *Processor) Run(ctx context.Context) (Summary, error) {
	start := time.Now()
	runID := uuid.New()
	logger := p.logger.With("run_id", runID.String())
	ctx = common.WithLogger(ctx, logger)

	sum := Summary{RunID: runID}

	for _, dir := range []string{p.cfg.InputDir, p.cfg.ErrorDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return sum, common.NewAppError(common.CodeConfig, fmt.Sprintf("create directory %s", dir), err)
		}
	}

	discovered, err := ingest.NewScanner(p.cfg.Extensions, logger).Scan(p.cfg.InputDir)
	if err != nil {
		return sum, common.NewAppError(common.CodeConfig, "scan input directory", err)
	}
	sum.Stats = discovered.Stats
	tasks := discovered.Tasks
	logger.Info("discovery complete",
		"dir", p.cfg.InputDir,
		"scanned", discovered.Stats.Scanned,
		"matched", discovered.Stats.Matched,
		"hidden", discovered.Stats.Hidden,
		"duplicates", discovered.Stats.Duplicates,
	)
	if len(tasks) == 0 {
		logger.Warn("no images found; nothing to do", "dir", p.cfg.InputDir, "extensions", p.cfg.Extensions)
		sum.Elapsed = time.Since(start)
		return sum, nil
	}

	ledger := p.ledger
	if ledger != nil {
		err := ledger.CreateRun(ctx, entity.Run{
			ID:        runID,
			StartedAt: start,
			ToolPath:  p.toolPath,
			InputDir:  p.cfg.InputDir,
			Total:     len(tasks),
		})
		if err != nil {
			logger.Warn("ledger disabled for this run", "error", err)
			ledger = nil
		}
	}

	quarantine, err := results.NewQuarantine(p.cfg.ErrorDir, logger)
	if err != nil {
		return sum, common.NewAppError(common.CodeStorage, "prepare quarantine", err)
	}

	var observers []async.Observer
	if p.progress != nil {
		observers = append(observers, p.progress)
	}
	var batchMetrics *metrics.BatchMetrics
	if p.cfg.MetricsFile != "" {
		batchMetrics = metrics.NewBatchMetrics(p.toolPath)
		observers = append(observers, batchMetrics)
	}

	sched := async.NewScheduler(p.invoker, logger,
		async.WithWorkers(p.cfg.Workers),
		async.WithLaunchRate(p.cfg.LaunchRate),
		async.WithObserver(observers...),
	)
	rs, aggErr := results.NewAggregator(quarantine, logger).Aggregate(ctx, sched.Stream(ctx, tasks))

	if err := results.WriteJSON(p.cfg.OutputFile, rs); err != nil {
		logger.Error("failed to write results", "output", p.cfg.OutputFile, "error", err)
		return sum, errors.Join(err, aggErr)
	}
	sum.OutputPath = p.cfg.OutputFile

	var xlsxErr error
	if p.cfg.XLSXPath != "" {
		if xlsxErr = export.NewService(logger).WriteResultsXLSX(p.cfg.XLSXPath, rs); xlsxErr != nil {
			logger.Error("failed to write xlsx report", "path", p.cfg.XLSXPath, "error", xlsxErr)
		}
	}

	sum.Total = len(rs.Outcomes)
	sum.Failed = rs.Failed()
	sum.Succeeded = sum.Total - sum.Failed
	sum.Quarantined = len(rs.Quarantined)

	if ledger != nil {
		if err := ledger.RecordOutcomes(ctx, runID, rs.Outcomes, rs.Quarantined); err != nil {
			logger.Warn("failed to record outcomes in ledger", "error", err)
		}
		if err := ledger.FinishRun(ctx, runID, time.Now(), sum.Total, sum.Failed); err != nil {
			logger.Warn("failed to finish run in ledger", "error", err)
		}
	}
	if batchMetrics != nil {
		if err := batchMetrics.WriteTextfile(p.cfg.MetricsFile); err != nil {
			logger.Warn("failed to write metrics", "path", p.cfg.MetricsFile, "error", err)
		}
	}

	sum.Elapsed = time.Since(start)
	logger.Info("batch processing complete",
		"total", sum.Total,
		"succeeded", sum.Succeeded,
		"failed", sum.Failed,
		"quarantined", sum.Quarantined,
		"output", sum.OutputPath,
		"elapsed_ms", sum.Elapsed.Milliseconds(),
	)
	return sum, errors.Join(aggErr, xlsxErr)
}
