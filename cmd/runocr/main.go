package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joseph-ayodele/batch-ocr/internal/common"
	"github.com/joseph-ayodele/batch-ocr/internal/entity"
	"github.com/joseph-ayodele/batch-ocr/internal/observability/logging"
	"github.com/joseph-ayodele/batch-ocr/internal/ocr"
)

// runocr invokes the OCR tool on a single image and prints the outcome as JSON.
func main() {
	var (
		tool      = flag.String("tool", common.DefaultTool, "path to the OCR CLI tool")
		timeout   = flag.Int("timeout", common.DefaultTimeoutSeconds, "timeout in seconds")
		normalize = flag.Bool("normalize", false, "collapse noisy whitespace in recognized text")
		logLevel  = flag.String("log-level", "info", "log level: debug|info|warn|error")
	)
	flag.Parse()

	logger := logging.NewLogger("json", *logLevel, os.Stderr)
	slog.SetDefault(logger)

	if flag.NArg() != 1 {
		logger.Error("usage", "cmd", "runocr [-tool path] [-timeout s] <image>")
		os.Exit(2)
	}

	toolPath, err := ocr.ResolveTool(*tool, logger)
	if err != nil {
		logger.Error("OCR tool not found", "tool", *tool, "error", err)
		os.Exit(1)
	}

	imgPath, err := filepath.Abs(flag.Arg(0))
	if err != nil {
		logger.Error("invalid image path", "arg", flag.Arg(0), "error", err)
		os.Exit(2)
	}
	task := entity.ImageTask{
		ID:   strings.TrimSuffix(filepath.Base(imgPath), filepath.Ext(imgPath)),
		Path: imgPath,
	}

	inv := ocr.NewInvoker(ocr.Config{
		Tool:      toolPath,
		Timeout:   time.Duration(*timeout) * time.Second,
		Normalize: *normalize,
	}, logger)
	out := inv.Invoke(context.Background(), task)

	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(out); err != nil {
		logger.Error("encode outcome", "error", err)
		os.Exit(1)
	}
	if out.Failed {
		os.Exit(1)
	}
}
