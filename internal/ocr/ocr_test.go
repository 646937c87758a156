package ocr

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/joseph-ayodele/batch-ocr/constants"
	"github.com/joseph-ayodele/batch-ocr/internal/entity"
)

type stubRunner struct {
	stdout string
	stderr string
	err    error
	block  bool
	panics bool
	gotArg []string
}

func (s *stubRunner) Run(ctx context.Context, name string, _ *slog.Logger, args ...string) ([]byte, []byte, error) {
	s.gotArg = append([]string{name}, args...)
	if s.panics {
		panic("boom")
	}
	if s.block {
		<-ctx.Done()
		return nil, nil, ctx.Err()
	}
	return []byte(s.stdout), []byte(s.stderr), s.err
}

type exitErr struct{ code int }

func (e exitErr) Error() string { return "exit status" }
func (e exitErr) ExitCode() int { return e.code }

func task(id string) entity.ImageTask {
	return entity.ImageTask{ID: id, Path: "/images/" + id + ".png"}
}

func TestInvokeClassification(t *testing.T) {
	tests := []struct {
		name       string
		runner     *stubRunner
		wantText   string
		wantConf   float64
		wantStatus constants.OutcomeStatus
	}{
		{"success with sentinel", &stubRunner{stdout: "HELLO\n───Confidence:0.91\n"}, "HELLO", 0.91, constants.StatusOK},
		{"success without sentinel", &stubRunner{stdout: "HELLO\n"}, "HELLO", 1.0, constants.StatusOK},
		{"success empty", &stubRunner{stdout: "\n"}, "", 0, constants.StatusZeroConfidence},
		{"success zero sentinel", &stubRunner{stdout: "faint\n───Confidence:0\n"}, "faint", 0, constants.StatusZeroConfidence},
		{"non-zero exit", &stubRunner{stdout: "partial", stderr: "Failed to load image\n", err: exitErr{code: 1}}, "", 0, constants.StatusExecFailed},
		{"timeout", &stubRunner{block: true}, "", 0, constants.StatusTimeout},
		{"tool vanished", &stubRunner{err: os.ErrNotExist}, "", 0, constants.StatusError},
		{"bad sentinel", &stubRunner{stdout: "x\n───Confidence:zz"}, "", 0, constants.StatusError},
		{"invalid utf-8", &stubRunner{stdout: "caf\xe9\n───Confidence:0.9"}, "", 0, constants.StatusError},
		{"panic", &stubRunner{panics: true}, "", 0, constants.StatusError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			iv := NewInvoker(Config{Tool: "/opt/ocr", Timeout: 50 * time.Millisecond}, nil, WithRunner(tt.runner))
			out := iv.Invoke(context.Background(), task("a"))

			if out.ID != "a" || out.Path != "/images/a.png" {
				t.Fatalf("identity lost: %+v", out)
			}
			if out.Text != tt.wantText || out.Confidence != tt.wantConf {
				t.Fatalf("got text=%q conf=%v, want text=%q conf=%v", out.Text, out.Confidence, tt.wantText, tt.wantConf)
			}
			if out.Status != tt.wantStatus {
				t.Fatalf("status = %s, want %s", out.Status, tt.wantStatus)
			}
			if out.Failed != (out.Confidence == 0) {
				t.Fatalf("failed flag %v disagrees with confidence %v", out.Failed, out.Confidence)
			}
		})
	}
}

func TestInvokePassesImagePathAsSoleArgument(t *testing.T) {
	r := &stubRunner{stdout: "ok"}
	iv := NewInvoker(Config{Tool: "/opt/ocr"}, nil, WithRunner(r))
	iv.Invoke(context.Background(), task("b"))
	if len(r.gotArg) != 2 || r.gotArg[0] != "/opt/ocr" || r.gotArg[1] != "/images/b.png" {
		t.Fatalf("unexpected command line %v", r.gotArg)
	}
}

func TestInvokeNormalize(t *testing.T) {
	r := &stubRunner{stdout: "A\t\tB\n───Confidence:0.7"}
	iv := NewInvoker(Config{Tool: "/opt/ocr", Normalize: true}, nil, WithRunner(r))
	if out := iv.Invoke(context.Background(), task("n")); out.Text != "A B" {
		t.Fatalf("expected normalized text, got %q", out.Text)
	}
}

func TestInvokeErrorCarriesStderr(t *testing.T) {
	r := &stubRunner{stderr: "  OCR error: bad image \n", err: exitErr{code: 3}}
	iv := NewInvoker(Config{Tool: "/opt/ocr"}, nil, WithRunner(r))
	out := iv.Invoke(context.Background(), task("c"))
	if out.Err != "OCR error: bad image" {
		t.Fatalf("expected trimmed stderr in outcome, got %q", out.Err)
	}
}

// writeScript drops an executable shell script used as a fake OCR tool.
func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-ocr")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestInvokeRealProcess(t *testing.T) {
	tool := writeScript(t, `case "$1" in
*ok.png) printf 'HELLO\n───Confidence:0.91\n' ;;
*slow.png) exec sleep 5 ;;
*) echo "cannot read $1" >&2; exit 1 ;;
esac
`)
	iv := NewInvoker(Config{Tool: tool, Timeout: 300 * time.Millisecond}, nil)

	ok := iv.Invoke(context.Background(), entity.ImageTask{ID: "ok", Path: "/x/ok.png"})
	if ok.Text != "HELLO" || ok.Confidence != 0.91 || ok.Failed {
		t.Fatalf("unexpected success outcome %+v", ok)
	}

	bad := iv.Invoke(context.Background(), entity.ImageTask{ID: "bad", Path: "/x/bad.png"})
	if bad.Status != constants.StatusExecFailed || !bad.Failed || bad.Err != "cannot read /x/bad.png" {
		t.Fatalf("unexpected exec failure outcome %+v", bad)
	}

	start := time.Now()
	slow := iv.Invoke(context.Background(), entity.ImageTask{ID: "slow", Path: "/x/slow.png"})
	if slow.Status != constants.StatusTimeout || !slow.Failed || slow.Text != "" {
		t.Fatalf("unexpected timeout outcome %+v", slow)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Fatalf("timeout not enforced, took %s", elapsed)
	}
}

func TestInvokeMissingExecutable(t *testing.T) {
	iv := NewInvoker(Config{Tool: filepath.Join(t.TempDir(), "gone")}, nil)
	out := iv.Invoke(context.Background(), task("d"))
	if out.Status != constants.StatusError || !out.Failed {
		t.Fatalf("expected ERROR outcome, got %+v", out)
	}
}

func TestCappedBuffer(t *testing.T) {
	c := &cappedBuffer{max: 4}
	for _, chunk := range []string{"ab", "cdef", "gh"} {
		n, err := c.Write([]byte(chunk))
		if err != nil || n != len(chunk) {
			t.Fatalf("Write(%q) = %d, %v", chunk, n, err)
		}
	}
	if got := c.buf.String(); got != "abcd" {
		t.Fatalf("kept %q, want abcd", got)
	}
	if c.dropped != 4 {
		t.Fatalf("dropped = %d, want 4", c.dropped)
	}
}

func TestCappedBufferKeepsTail(t *testing.T) {
	c := &cappedBuffer{max: 4, tailMax: 6}
	for _, chunk := range []string{"abcdef", "ghij\nxyz\n", "CONF\n"} {
		c.Write([]byte(chunk))
	}
	// the tail holds "\nCONF\n"; bytes between head and tail were discarded
	if got, want := string(c.Bytes()), "abcd\nCONF\n"; got != want {
		t.Fatalf("Bytes() = %q, want %q", got, want)
	}

	small := &cappedBuffer{max: 4, tailMax: 16}
	small.Write([]byte("abcdefgh"))
	if got := string(small.Bytes()); got != "abcdefgh" {
		t.Fatalf("no gap: Bytes() = %q, want abcdefgh", got)
	}
}

func TestInvokeOversizedOutputKeepsConfidenceLine(t *testing.T) {
	tool := writeScript(t, `head -c `+strconv.Itoa(maxStdout+64<<10)+` /dev/zero | tr '\0' 'a'
printf '\nlast words\n───Confidence:0\n'
`)
	iv := NewInvoker(Config{Tool: tool, Timeout: 20 * time.Second}, nil)
	out := iv.Invoke(context.Background(), entity.ImageTask{ID: "big", Path: "/x/big.png"})

	if out.Confidence != 0 || !out.Failed || out.Status != constants.StatusZeroConfidence {
		t.Fatalf("reported zero confidence lost: status=%s conf=%v failed=%v", out.Status, out.Confidence, out.Failed)
	}
	if !strings.HasSuffix(out.Text, "last words") {
		t.Fatalf("tail of the text missing (%d bytes of text)", len(out.Text))
	}
}
