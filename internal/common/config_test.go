package common

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"OCR_INPUT_DIR", "OCR_ERROR_DIR", "OCR_OUTPUT", "OCR_TIMEOUT", "OCR_THREADS", "OCR_TOOL",
		"OCR_EXTENSIONS", "OCR_NORMALIZE", "OCR_LAUNCH_RATE", "OCR_XLSX", "OCR_METRICS_FILE",
		"LEDGER_DSN", "LEDGER_DIAL_TIMEOUT", "LOG_LEVEL", "LOG_FORMAT",
	} {
		t.Setenv(k, "")
	}
}

func TestParseFlagsDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := ParseFlags("batch-ocr", nil, io.Discard)
	if err != nil {
		t.Fatalf("ParseFlags: %v", err)
	}
	if cfg.InputDir != "images" || cfg.ErrorDir != "error_images" || cfg.OutputFile != "ocr_results.json" {
		t.Fatalf("unexpected path defaults: %+v", cfg)
	}
	if cfg.TimeoutSeconds != 10 || cfg.Workers != 6 || cfg.Tool != "AppleOCRTool" {
		t.Fatalf("unexpected defaults: timeout=%d threads=%d tool=%q", cfg.TimeoutSeconds, cfg.Workers, cfg.Tool)
	}
	if len(cfg.Extensions) != 1 || cfg.Extensions[0] != "png" {
		t.Fatalf("expected default extension png, got %v", cfg.Extensions)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestParseFlagsShortAndLongNames(t *testing.T) {
	clearEnv(t)

	cfg, err := ParseFlags("batch-ocr", []string{"-i", "in", "--error", "bad", "-o", "out.json", "-t", "3", "--threads", "2", "-c", "./tool", "-ext", "png,JPG"}, io.Discard)
	if err != nil {
		t.Fatalf("ParseFlags: %v", err)
	}
	if cfg.InputDir != "in" || cfg.ErrorDir != "bad" || cfg.OutputFile != "out.json" {
		t.Fatalf("paths not applied: %+v", cfg)
	}
	if cfg.TimeoutSeconds != 3 || cfg.Workers != 2 || cfg.Tool != "./tool" {
		t.Fatalf("numbers not applied: %+v", cfg)
	}
	if len(cfg.Extensions) != 2 || cfg.Extensions[1] != "JPG" {
		t.Fatalf("extensions not applied: %v", cfg.Extensions)
	}
}

func TestPrecedenceFileEnvFlag(t *testing.T) {
	clearEnv(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "batch.yaml")
	yml := "input_dir: from-file\ntimeout_seconds: 30\nthreads: 3\nlog:\n  format: text\n"
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("OCR_THREADS", "8")

	cfg, err := ParseFlags("batch-ocr", []string{"-config", path, "-t", "5"}, io.Discard)
	if err != nil {
		t.Fatalf("ParseFlags: %v", err)
	}
	if cfg.InputDir != "from-file" {
		t.Fatalf("expected file value for input, got %q", cfg.InputDir)
	}
	if cfg.Workers != 8 {
		t.Fatalf("expected env to override file threads, got %d", cfg.Workers)
	}
	if cfg.TimeoutSeconds != 5 {
		t.Fatalf("expected flag to override file timeout, got %d", cfg.TimeoutSeconds)
	}
	if cfg.Log.Format != "text" {
		t.Fatalf("expected nested yaml key applied, got %q", cfg.Log.Format)
	}
	if cfg.Ledger.MaxConns != 4 {
		t.Fatalf("expected untouched default ledger max conns, got %d", cfg.Ledger.MaxConns)
	}
}

func TestLoadFileMissing(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	if !IsCode(err, CodeConfig) {
		t.Fatalf("expected CONFIG_ERROR, got %v", err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero timeout", func(c *Config) { c.TimeoutSeconds = 0 }},
		{"zero workers", func(c *Config) { c.Workers = 0 }},
		{"empty tool", func(c *Config) { c.Tool = "  " }},
		{"no extensions", func(c *Config) { c.Extensions = nil }},
		{"unknown extension", func(c *Config) { c.Extensions = []string{"pdf"} }},
		{"negative rate", func(c *Config) { c.LaunchRate = -1 }},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("expected ErrValidation in chain, got %v", err)
			}
		})
	}
}

func TestSplitList(t *testing.T) {
	got := SplitList(" png, ,jpg,")
	if len(got) != 2 || got[0] != "png" || got[1] != "jpg" {
		t.Fatalf("unexpected split: %v", got)
	}
}
