package common

import (
	"flag"
	"io"
)

// ParseFlags builds the effective configuration for the batch command.
// Precedence: defaults < -config YAML file < environment < flags set on the command line.
func ParseFlags(name string, args []string, output io.Writer) (*Config, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(output)

	def := DefaultConfig()
	var (
		configPath string
		input      string
		errDir     string
		out        string
		timeout    int
		threads    int
		tool       string
		exts       string
		normalize  bool
		rate       float64
		xlsx       string
		metrics    string
		ledger     string
		logLevel   string
		logFormat  string
	)

	fs.StringVar(&configPath, "config", "", "optional YAML config file")
	stringFlag(fs, &input, def.InputDir, "input image folder", "i", "input")
	stringFlag(fs, &errDir, def.ErrorDir, "folder to copy images that failed OCR", "e", "error")
	stringFlag(fs, &out, def.OutputFile, "output JSON file", "o", "output")
	intFlag(fs, &timeout, def.TimeoutSeconds, "timeout in seconds per image", "t", "timeout")
	intFlag(fs, &threads, def.Workers, "number of concurrent OCR processes", "n", "threads")
	stringFlag(fs, &tool, def.Tool, "path to the OCR CLI tool (relative or absolute)", "c", "tool")
	fs.StringVar(&exts, "ext", "png", "comma separated image extensions to scan")
	fs.BoolVar(&normalize, "normalize", false, "collapse noisy whitespace in recognized text")
	fs.Float64Var(&rate, "launch-rate", 0, "max OCR process starts per second (0 = unlimited)")
	fs.StringVar(&xlsx, "xlsx", "", "optional XLSX report path")
	fs.StringVar(&metrics, "metrics-file", "", "optional Prometheus textfile output path")
	fs.StringVar(&ledger, "ledger", "", "optional run ledger DSN (sqlite path or postgres:// URL)")
	fs.StringVar(&logLevel, "log-level", def.Log.Level, "log level: debug|info|warn|error")
	fs.StringVar(&logFormat, "log-format", def.Log.Format, "log format: json|text")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	apply := map[string]func(){
		"i":            func() { cfg.InputDir = input },
		"input":        func() { cfg.InputDir = input },
		"e":            func() { cfg.ErrorDir = errDir },
		"error":        func() { cfg.ErrorDir = errDir },
		"o":            func() { cfg.OutputFile = out },
		"output":       func() { cfg.OutputFile = out },
		"t":            func() { cfg.TimeoutSeconds = timeout },
		"timeout":      func() { cfg.TimeoutSeconds = timeout },
		"n":            func() { cfg.Workers = threads },
		"threads":      func() { cfg.Workers = threads },
		"c":            func() { cfg.Tool = tool },
		"tool":         func() { cfg.Tool = tool },
		"ext":          func() { cfg.Extensions = SplitList(exts) },
		"normalize":    func() { cfg.Normalize = normalize },
		"launch-rate":  func() { cfg.LaunchRate = rate },
		"xlsx":         func() { cfg.XLSXPath = xlsx },
		"metrics-file": func() { cfg.MetricsFile = metrics },
		"ledger":       func() { cfg.Ledger.DSN = ledger },
		"log-level":    func() { cfg.Log.Level = logLevel },
		"log-format":   func() { cfg.Log.Format = logFormat },
	}
	fs.Visit(func(f *flag.Flag) {
		if fn, ok := apply[f.Name]; ok {
			fn()
		}
	})
	return cfg, nil
}

// stringFlag registers the same variable under a short and a long name.
func stringFlag(fs *flag.FlagSet, p *string, value, usage string, names ...string) {
	for _, n := range names {
		fs.StringVar(p, n, value, usage)
	}
}

func intFlag(fs *flag.FlagSet, p *int, value int, usage string, names ...string) {
	for _, n := range names {
		fs.IntVar(p, n, value, usage)
	}
}
