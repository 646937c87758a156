package results

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joseph-ayodele/batch-ocr/internal/common"
)

// Quarantine copies images that failed recognition into an error directory
// for manual review. Copies overwrite earlier ones with the same name.
type Quarantine struct {
	dir    string
	logger *slog.Logger
}

func NewQuarantine(dir string, logger *slog.Logger) (*Quarantine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create quarantine dir: %w", err)
	}
	return &Quarantine{dir: dir, logger: logger}, nil
}

func (q *Quarantine) Dir() string { return q.dir }

// Copy duplicates src into the quarantine directory under its own base name
// and returns the destination path.
func (q *Quarantine) Copy(src string) (string, error) {
	dst := filepath.Join(q.dir, filepath.Base(src))

	inF, err := os.Open(src)
	if err != nil {
		return "", common.WrapError(err, "open source")
	}
	defer func(inF *os.File) {
		if err := inF.Close(); err != nil {
			q.logger.Warn("failed to close quarantine source", "file", inF.Name(), "error", err)
		}
	}(inF)

	outF, err := os.Create(dst)
	if err != nil {
		return "", common.WrapError(err, "create destination")
	}
	if _, err := io.Copy(outF, inF); err != nil {
		_ = outF.Close()
		return "", common.WrapError(err, "copy")
	}
	if err := outF.Close(); err != nil {
		return "", common.WrapError(err, "close destination")
	}
	q.logger.Debug("image quarantined", "src", src, "dst", dst)
	return dst, nil
}
