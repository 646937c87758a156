package progress

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/mattn/go-isatty"

	"github.com/joseph-ayodele/batch-ocr/internal/entity"
)

// Counter prints "Processing images: done/total". On a terminal the line is
// redrawn in place; otherwise every update is logged.
type Counter struct {
	mu     sync.Mutex
	w      io.Writer
	tty    bool
	logger *slog.Logger
	last   int
}

// NewCounter writes to w. When w is an *os.File attached to a terminal the
// counter redraws with a carriage return.
func NewCounter(w io.Writer, logger *slog.Logger) *Counter {
	if logger == nil {
		logger = slog.Default()
	}
	tty := false
	if f, ok := w.(*os.File); ok {
		tty = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &Counter{w: w, tty: tty, logger: logger}
}

func (c *Counter) Started(entity.ImageTask) {}

func (c *Counter) Finished(outcome entity.Outcome, done, total int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	// Finished calls race; never move the counter backwards
	if done <= c.last {
		return
	}
	c.last = done

	if !c.tty {
		c.logger.Info("progress", "done", done, "total", total, "id", outcome.ID, "status", outcome.Status)
		return
	}
	_, _ = fmt.Fprintf(c.w, "\rProcessing images: %d/%d", done, total)
	if done == total {
		_, _ = fmt.Fprintln(c.w)
	}
}
