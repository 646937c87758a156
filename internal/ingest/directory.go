package ingest

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/batch-ocr/constants"
	"github.com/joseph-ayodele/batch-ocr/internal/entity"
)

// Scanner enumerates images directly inside one directory.
type Scanner struct {
	AllowedExts map[string]struct{} // lowercased sans '.'
	SkipHidden  bool
	logger      *slog.Logger
}

func NewScanner(exts []string, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	if len(exts) == 0 {
		exts = constants.DefaultImageExtensions
	}
	allowed := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		if e = constants.NormalizeExt(e); e != "" {
			allowed[e] = struct{}{}
		}
	}
	return &Scanner{AllowedExts: allowed, SkipHidden: true, logger: logger}
}

// Scan lists matching files in root (non-recursive), sorted by file name.
// The identifier of each task is the file name without its extension; when two
// files share an identifier one becomes a task: a file whose extension matches
// the configured one exactly wins, otherwise the first in name order.
func (s *Scanner) Scan(root string) (DiscoveryResult, error) {
	var res DiscoveryResult
	if strings.TrimSpace(root) == "" {
		return res, errors.New("input directory is required")
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return res, fmt.Errorf("read dir: %w", err)
	}
	// ReadDir returns entries sorted by name, which fixes submission order
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return res, fmt.Errorf("abs path: %w", err)
	}

	seen := make(map[string]int) // identifier -> index into res.Tasks
	for _, d := range entries {
		name := d.Name()
		full := filepath.Join(absRoot, name)
		if !s.isRegular(d, full) {
			continue
		}
		res.Stats.Scanned++
		if s.SkipHidden && IsHidden(name) {
			res.Stats.Hidden++
			continue
		}
		ext := filepath.Ext(name)
		if !s.allowed(ext) {
			continue
		}
		res.Stats.Matched++

		id := strings.TrimSuffix(name, ext)
		task := entity.ImageTask{ID: id, Path: full}
		if i, dup := seen[id]; dup {
			res.Stats.Duplicates++
			kept := filepath.Base(res.Tasks[i].Path)
			// a.png wins over a.PNG even though "A" sorts before "a"
			if s.exactExt(ext) && !s.exactExt(filepath.Ext(kept)) {
				res.Tasks[i] = task
				name, kept = kept, name
			}
			s.logger.Warn("skipping image with duplicate identifier", "id", id, "file", name, "kept", kept)
			continue
		}
		seen[id] = len(res.Tasks)
		res.Tasks = append(res.Tasks, task)
	}

	s.logger.Debug("directory scanned",
		"root", absRoot,
		"scanned", res.Stats.Scanned,
		"matched", res.Stats.Matched,
		"hidden", res.Stats.Hidden,
		"duplicates", res.Stats.Duplicates)
	return res, nil
}

func (s *Scanner) allowed(ext string) bool {
	_, ok := s.AllowedExts[constants.NormalizeExt(ext)]
	return ok
}

// exactExt reports whether ext matches a configured extension without case folding.
func (s *Scanner) exactExt(ext string) bool {
	_, ok := s.AllowedExts[strings.TrimPrefix(ext, ".")]
	return ok
}

// isRegular accepts regular files and symlinks that resolve to one.
func (s *Scanner) isRegular(d fs.DirEntry, path string) bool {
	if d.Type().IsRegular() {
		return true
	}
	if d.Type()&fs.ModeSymlink == 0 {
		return false
	}
	st, err := os.Stat(path)
	if err != nil {
		s.logger.Warn("skipping unreadable symlink", "path", path, "error", err)
		return false
	}
	return st.Mode().IsRegular()
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}
