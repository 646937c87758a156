package progress

import (
	"bytes"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/joseph-ayodele/batch-ocr/internal/entity"
)

func TestCounterRedrawsOnTerminal(t *testing.T) {
	var buf bytes.Buffer
	c := NewCounter(&buf, nil)
	c.tty = true

	c.Finished(entity.Outcome{ID: "a"}, 1, 2)
	c.Finished(entity.Outcome{ID: "b"}, 2, 2)

	if got, want := buf.String(), "\rProcessing images: 1/2\rProcessing images: 2/2\n"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestCounterLogsWhenNotTerminal(t *testing.T) {
	var out, logs bytes.Buffer
	c := NewCounter(&out, slog.New(slog.NewTextHandler(&logs, nil)))
	c.Finished(entity.Outcome{ID: "a"}, 1, 1)

	if out.Len() != 0 {
		t.Fatalf("nothing should be drawn, got %q", out.String())
	}
	if !strings.Contains(logs.String(), "done=1 total=1") {
		t.Fatalf("expected progress log, got %q", logs.String())
	}
}

func TestCounterNeverGoesBackwards(t *testing.T) {
	var buf bytes.Buffer
	c := NewCounter(&buf, nil)
	c.tty = true
	c.Finished(entity.Outcome{}, 3, 5)
	c.Finished(entity.Outcome{}, 2, 5)
	if strings.Contains(buf.String(), "2/5") {
		t.Fatalf("stale update drawn: %q", buf.String())
	}
}

func TestCounterConcurrent(t *testing.T) {
	var buf bytes.Buffer
	c := NewCounter(&buf, nil)
	c.tty = true

	var wg sync.WaitGroup
	for i := 1; i <= 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Finished(entity.Outcome{}, i, 50)
		}()
	}
	wg.Wait()
	if c.last != 50 {
		t.Fatalf("last = %d, want 50", c.last)
	}
}
