package ocr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/joseph-ayodele/batch-ocr/constants"
	"github.com/joseph-ayodele/batch-ocr/internal/common"
	"github.com/joseph-ayodele/batch-ocr/internal/entity"
)

type Config struct {
	Tool      string        // absolute path from ResolveTool
	Timeout   time.Duration // hard per-image wall-clock limit, default 10s
	Normalize bool          // collapse whitespace in recognized text
	WaitDelay time.Duration // grace period for pipes after a kill, default 1s
}

// Invoker runs the OCR tool against one image at a time. It is safe for
// concurrent use: it holds only read-only configuration.
type Invoker struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

type Option func(*Invoker)

// WithRunner replaces the os/exec runner (tests).
func WithRunner(r Runner) Option {
	return func(iv *Invoker) {
		if r != nil {
			iv.runner = r
		}
	}
}

func NewInvoker(cfg Config, logger *slog.Logger, opts ...Option) *Invoker {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.WaitDelay <= 0 {
		cfg.WaitDelay = time.Second
	}
	iv := &Invoker{cfg: cfg, runner: execRunner{waitDelay: cfg.WaitDelay}, logger: logger}
	for _, o := range opts {
		o(iv)
	}
	return iv
}

// exitCoder matches *exec.ExitError without tying callers to os/exec.
type exitCoder interface {
	ExitCode() int
}

// Invoke never returns an error: every failure degrades to empty text with
// confidence 0, which is also what marks the outcome as failed.
func (iv *Invoker) Invoke(ctx context.Context, task entity.ImageTask) (out entity.Outcome) {
	start := time.Now()
	name := filepath.Base(task.Path)
	logger := common.LoggerFromContext(ctx, iv.logger).With("image", name)

	out = entity.Outcome{ID: task.ID, Path: task.Path}
	defer func() {
		if r := recover(); r != nil {
			logger.Error("unknown error", "error", r)
			out = degraded(task, constants.StatusError, fmt.Sprint(r))
		}
		out.Duration = time.Since(start)
	}()

	runCtx, cancel := context.WithTimeout(ctx, iv.cfg.Timeout)
	defer cancel()

	stdout, stderr, err := iv.runner.Run(runCtx, iv.cfg.Tool, logger, task.Path)

	var coded exitCoder
	switch {
	case err == nil:
		text, conf, _, perr := ParseOutput(string(stdout))
		if perr != nil {
			logger.Error("unknown error", "error", perr)
			return degraded(task, constants.StatusError, perr.Error())
		}
		if iv.cfg.Normalize {
			text = Normalize(text)
		}
		out.Text = text
		out.Confidence = conf
		out.Failed = entity.IsFailure(conf)
		out.Status = constants.StatusOK
		if out.Failed {
			out.Status = constants.StatusZeroConfidence
		}
		logger.Debug("ocr ok", "confidence", conf, "chars", len(text))
		return out

	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		logger.Error("ocr timeout", "timeout_s", iv.cfg.Timeout.Seconds())
		return degraded(task, constants.StatusTimeout, fmt.Sprintf("timed out after %s", iv.cfg.Timeout))

	case errors.As(err, &coded):
		msg := strings.TrimSpace(string(stderr))
		logger.Error("ocr failed", "exit_code", coded.ExitCode(), "stderr", msg)
		if msg == "" {
			msg = err.Error()
		}
		return degraded(task, constants.StatusExecFailed, msg)

	default:
		logger.Error("unknown error", "error", err)
		return degraded(task, constants.StatusError, err.Error())
	}
}

func degraded(task entity.ImageTask, status constants.OutcomeStatus, msg string) entity.Outcome {
	return entity.Outcome{
		ID:         task.ID,
		Path:       task.Path,
		Confidence: 0,
		Failed:     true,
		Status:     status,
		Err:        msg,
	}
}
