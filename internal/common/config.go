package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/joseph-ayodele/batch-ocr/constants"
)

// Config holds all application configuration
type Config struct {
	InputDir       string   `yaml:"input_dir"`
	ErrorDir       string   `yaml:"error_dir"`
	OutputFile     string   `yaml:"output"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
	Workers        int      `yaml:"threads"`
	Tool           string   `yaml:"tool"`
	Extensions     []string `yaml:"extensions"`
	Normalize      bool     `yaml:"normalize"`
	LaunchRate     float64  `yaml:"launch_rate"` // subprocess starts per second, 0 = unlimited

	XLSXPath    string `yaml:"xlsx"`
	MetricsFile string `yaml:"metrics_file"`

	Ledger LedgerConfig `yaml:"ledger"`
	Log    LogConfig    `yaml:"log"`
}

// LedgerConfig holds run-ledger database configuration
type LedgerConfig struct {
	DSN         string        `yaml:"dsn"` // empty disables the ledger
	MaxConns    int32         `yaml:"max_conns"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json | text
}

// Defaults mirror the historical command-line defaults.
const (
	DefaultInputDir       = "images"
	DefaultErrorDir       = "error_images"
	DefaultOutputFile     = "ocr_results.json"
	DefaultTimeoutSeconds = 10
	DefaultWorkers        = 6
	DefaultTool           = "AppleOCRTool"
)

// DefaultConfig returns a Config populated with defaults only.
func DefaultConfig() *Config {
	return &Config{
		InputDir:       DefaultInputDir,
		ErrorDir:       DefaultErrorDir,
		OutputFile:     DefaultOutputFile,
		TimeoutSeconds: DefaultTimeoutSeconds,
		Workers:        DefaultWorkers,
		Tool:           DefaultTool,
		Extensions:     append([]string(nil), constants.DefaultImageExtensions...),
		Ledger: LedgerConfig{
			MaxConns:    4,
			DialTimeout: 3 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadConfig returns defaults overlaid with the optional YAML file and the environment.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.ApplyEnv()
	return cfg, nil
}

// LoadFile overlays keys present in the YAML file at path.
func (c *Config) LoadFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return NewAppError(CodeConfig, "read config file", err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return NewAppError(CodeConfig, "parse config file "+path, err)
	}
	return nil
}

// ApplyEnv overlays configuration from environment variables.
func (c *Config) ApplyEnv() {
	c.InputDir = getEnv("OCR_INPUT_DIR", c.InputDir)
	c.ErrorDir = getEnv("OCR_ERROR_DIR", c.ErrorDir)
	c.OutputFile = getEnv("OCR_OUTPUT", c.OutputFile)
	c.TimeoutSeconds = getEnvAsInt("OCR_TIMEOUT", c.TimeoutSeconds)
	c.Workers = getEnvAsInt("OCR_THREADS", c.Workers)
	c.Tool = getEnv("OCR_TOOL", c.Tool)
	if v := getEnv("OCR_EXTENSIONS", ""); v != "" {
		c.Extensions = SplitList(v)
	}
	c.Normalize = getEnvAsBool("OCR_NORMALIZE", c.Normalize)
	c.LaunchRate = getEnvAsFloat("OCR_LAUNCH_RATE", c.LaunchRate)
	c.XLSXPath = getEnv("OCR_XLSX", c.XLSXPath)
	c.MetricsFile = getEnv("OCR_METRICS_FILE", c.MetricsFile)
	c.Ledger.DSN = getEnv("LEDGER_DSN", c.Ledger.DSN)
	c.Ledger.DialTimeout = getEnvAsDuration("LEDGER_DIAL_TIMEOUT", c.Ledger.DialTimeout)
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)
}

// Timeout is the per-image wall-clock limit.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	v := NewValidator().
		Field("input", c.InputDir, Required).
		Field("error", c.ErrorDir, Required).
		Field("output", c.OutputFile, Required).
		Field("tool", c.Tool, Required).
		Field("timeout", c.TimeoutSeconds, Positive).
		Field("threads", c.Workers, Positive).
		Field("extensions", c.Extensions, Required).
		Field("launch_rate", c.LaunchRate, NonNegative).
		Field("log.level", c.Log.Level, OneOf("debug", "info", "warn", "warning", "error")).
		Field("log.format", c.Log.Format, OneOf("json", "text"))
	for _, ext := range c.Extensions {
		if !constants.IsSupportedExt(ext) {
			v.Field("extensions", ext, func(name string, value interface{}) *ValidationError {
				return &ValidationError{Field: name, Value: value, Message: "unsupported image extension"}
			})
		}
	}
	if err := v.Error(); err != nil {
		return NewAppError(CodeConfig, "invalid configuration", err)
	}
	return nil
}

// SplitList splits a comma separated list, dropping blanks.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// String renders the effective settings for the startup log line.
func (c *Config) String() string {
	return fmt.Sprintf("input=%s error=%s output=%s timeout=%ds threads=%d tool=%s ext=%s",
		c.InputDir, c.ErrorDir, c.OutputFile, c.TimeoutSeconds, c.Workers, c.Tool, strings.Join(c.Extensions, ","))
}
