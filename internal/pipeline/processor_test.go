package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/joseph-ayodele/batch-ocr/internal/common"
	"github.com/joseph-ayodele/batch-ocr/internal/repository"
)

const fakeTool = `#!/bin/sh
case "$(basename "$1")" in
  a.png) printf 'HELLO\n───Confidence:0.91\n' ;;
  b.png) echo "cannot read image" >&2; exit 3 ;;
  c.png) exec sleep 5 ;;
  d.png) printf 'no sentinel here\n' ;;
  *) exit 1 ;;
esac
`

type workspace struct {
	cfg  *common.Config
	tool string
}

func newWorkspace(t *testing.T, images ...string) workspace {
	t.Helper()
	root := t.TempDir()
	tool := filepath.Join(root, "fake-ocr")
	if err := os.WriteFile(tool, []byte(fakeTool), 0o755); err != nil {
		t.Fatal(err)
	}

	cfg := common.DefaultConfig()
	cfg.InputDir = filepath.Join(root, "images")
	cfg.ErrorDir = filepath.Join(root, "error_images")
	cfg.OutputFile = filepath.Join(root, "ocr_results.json")
	cfg.TimeoutSeconds = 1
	cfg.Workers = 2

	if err := os.MkdirAll(cfg.InputDir, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, name := range images {
		if err := os.WriteFile(filepath.Join(cfg.InputDir, name), []byte("img:"+name), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return workspace{cfg: cfg, tool: tool}
}

func readResults(t *testing.T, path string) (map[string]map[string]any, []byte) {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	var doc map[string]map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	return doc, data
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func TestRunSuccessAndFailure(t *testing.T) {
	ws := newWorkspace(t, "b.png", "a.png")
	sum, err := NewProcessor(ws.cfg, ws.tool, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if sum.Total != 2 || sum.Failed != 1 || sum.Succeeded != 1 || sum.Quarantined != 1 {
		t.Fatalf("unexpected summary %+v", sum)
	}

	doc, data := readResults(t, ws.cfg.OutputFile)
	if doc["a"]["text"] != "HELLO" || doc["a"]["confidence"] != 0.91 {
		t.Fatalf("unexpected a: %v", doc["a"])
	}
	if doc["b"]["text"] != "" || doc["b"]["confidence"] != 0.0 {
		t.Fatalf("unexpected b: %v", doc["b"])
	}
	if bytes.Index(data, []byte(`"a"`)) > bytes.Index(data, []byte(`"b"`)) {
		t.Fatalf("a must precede b:\n%s", data)
	}
	if !bytes.Contains(data, []byte(`"confidence": 0.0`)) {
		t.Fatalf("zero confidence should render as 0.0:\n%s", data)
	}

	if !exists(filepath.Join(ws.cfg.ErrorDir, "b.png")) {
		t.Fatal("b.png should be quarantined")
	}
	if exists(filepath.Join(ws.cfg.ErrorDir, "a.png")) {
		t.Fatal("a.png must not be quarantined")
	}
}

func TestRunEmptyInputWritesNothing(t *testing.T) {
	ws := newWorkspace(t)
	sum, err := NewProcessor(ws.cfg, ws.tool, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if sum.Total != 0 || sum.OutputPath != "" {
		t.Fatalf("unexpected summary %+v", sum)
	}
	if exists(ws.cfg.OutputFile) {
		t.Fatal("no output file expected for an empty input directory")
	}
	if !exists(ws.cfg.ErrorDir) {
		t.Fatal("error directory should be created")
	}
}

func TestRunCreatesMissingInputDir(t *testing.T) {
	ws := newWorkspace(t)
	ws.cfg.InputDir = filepath.Join(t.TempDir(), "not", "yet")
	if _, err := NewProcessor(ws.cfg, ws.tool, nil).Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !exists(ws.cfg.InputDir) {
		t.Fatal("input directory should be created")
	}
}

func TestRunTimeoutIsContained(t *testing.T) {
	ws := newWorkspace(t, "a.png", "c.png")
	start := time.Now()
	sum, err := NewProcessor(ws.cfg, ws.tool, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed > 4*time.Second {
		t.Fatalf("timeout not enforced, run took %s", elapsed)
	}
	doc, _ := readResults(t, ws.cfg.OutputFile)
	if doc["c"]["text"] != "" || doc["c"]["confidence"] != 0.0 {
		t.Fatalf("unexpected c: %v", doc["c"])
	}
	if doc["a"]["confidence"] != 0.91 {
		t.Fatalf("sibling affected by timeout: %v", doc["a"])
	}
	if sum.Failed != 1 || !exists(filepath.Join(ws.cfg.ErrorDir, "c.png")) {
		t.Fatalf("c should be failed and quarantined, summary %+v", sum)
	}
}

func TestRunSentinelLessOutput(t *testing.T) {
	ws := newWorkspace(t, "d.png")
	if _, err := NewProcessor(ws.cfg, ws.tool, nil).Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	doc, _ := readResults(t, ws.cfg.OutputFile)
	if doc["d"]["text"] != "no sentinel here" || doc["d"]["confidence"] != 1.0 {
		t.Fatalf("unexpected d: %v", doc["d"])
	}
}

func TestRunIsIdempotent(t *testing.T) {
	ws := newWorkspace(t, "a.png", "b.png", "x.png")
	p := NewProcessor(ws.cfg, ws.tool, nil)

	if _, err := p.Run(context.Background()); err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	_, first := readResults(t, ws.cfg.OutputFile)
	if _, err := p.Run(context.Background()); err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	_, second := readResults(t, ws.cfg.OutputFile)
	if !bytes.Equal(first, second) {
		t.Fatalf("reruns differ:\n%s\n---\n%s", first, second)
	}
	entries, err := os.ReadDir(ws.cfg.ErrorDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected b.png and x.png in quarantine, got %d entries", len(entries))
	}
}

func TestRunWritesReportsAndLedger(t *testing.T) {
	ws := newWorkspace(t, "a.png", "b.png")
	dir := t.TempDir()
	ws.cfg.XLSXPath = filepath.Join(dir, "ocr.xlsx")
	ws.cfg.MetricsFile = filepath.Join(dir, "batch_ocr.prom")

	store, err := repository.Open(context.Background(), repository.Config{DSN: ":memory:"}, nil)
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	defer store.Close()
	runs := repository.NewRunRepository(store)

	sum, err := NewProcessor(ws.cfg, ws.tool, nil, WithLedger(runs)).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	for _, p := range []string{ws.cfg.XLSXPath, ws.cfg.MetricsFile} {
		if !exists(p) {
			t.Fatalf("expected %s to be written", p)
		}
	}

	recent, err := runs.ListRecentRuns(context.Background(), 1)
	if err != nil {
		t.Fatalf("ListRecentRuns() error = %v", err)
	}
	if len(recent) != 1 || recent[0].ID != sum.RunID || recent[0].Total != 2 || recent[0].Failed != 1 || recent[0].FinishedAt == nil {
		t.Fatalf("unexpected ledger rows %+v", recent)
	}
}
