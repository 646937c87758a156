package ocr

import (
	"bytes"
	"context"
	"log/slog"
	"os/exec"
	"path/filepath"
	"time"
)

const (
	maxStdout  = 4 << 20 // recognized text of one image
	stdoutTail = 4 << 10 // always kept so the confidence line survives truncation
	maxStderr  = 8 << 10
)

// Runner lets us stub external commands in tests.
type Runner interface {
	Run(ctx context.Context, name string, logger *slog.Logger, args ...string) (stdout, stderr []byte, err error)
}

// execRunner runs commands with os/exec. The process is killed when ctx is done;
// waitDelay bounds how long Run keeps waiting on pipes held open by grandchildren.
type execRunner struct {
	waitDelay time.Duration
}

func (r execRunner) Run(ctx context.Context, name string, logger *slog.Logger, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.WaitDelay = r.waitDelay
	stdout := &cappedBuffer{max: maxStdout, tailMax: stdoutTail}
	stderr := &cappedBuffer{max: maxStderr}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	start := time.Now()
	err := cmd.Run()
	logger.Debug("tool exited",
		"tool", filepath.Base(name),
		"duration_ms", time.Since(start).Milliseconds(),
		"stdout_bytes", stdout.buf.Len(),
		"stderr_bytes", stderr.buf.Len(),
		"error", err,
	)
	if gap := stdout.dropped - len(stdout.tail); gap > 0 {
		logger.Warn("tool output truncated", "head_bytes", maxStdout, "tail_bytes", len(stdout.tail), "dropped_bytes", gap)
	}
	errOut := stderr.buf.Bytes()
	if stderr.dropped > 0 {
		errOut = append(errOut, "...(truncated)"...)
	}
	return stdout.Bytes(), errOut, err
}

// cappedBuffer keeps the first max bytes plus the last tailMax bytes and
// discards what lies between. Writes always report success so the child never
// blocks on a full pipe.
type cappedBuffer struct {
	buf     bytes.Buffer
	max     int
	tail    []byte
	tailMax int
	dropped int
}

func (c *cappedBuffer) Write(p []byte) (int, error) {
	room := c.max - c.buf.Len()
	switch {
	case room <= 0:
		c.keepTail(p)
	case len(p) > room:
		c.buf.Write(p[:room])
		c.keepTail(p[room:])
	default:
		c.buf.Write(p)
	}
	return len(p), nil
}

func (c *cappedBuffer) keepTail(p []byte) {
	c.dropped += len(p)
	c.tail = append(c.tail, p...)
	if over := len(c.tail) - c.tailMax; over > 0 {
		c.tail = c.tail[:copy(c.tail, c.tail[over:])]
	}
}

// Bytes returns the head followed by the tail. When bytes were discarded in
// between, the tail starts at its first complete line on a line of its own.
func (c *cappedBuffer) Bytes() []byte {
	out := c.buf.Bytes()
	if c.dropped == len(c.tail) {
		return append(out, c.tail...)
	}
	tail := c.tail
	if i := bytes.IndexByte(tail, '\n'); i >= 0 {
		tail = tail[i+1:]
	}
	out = append(out, '\n')
	return append(out, tail...)
}
