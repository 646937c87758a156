package ocr

import (
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/batch-ocr/internal/common"
)

// ResolveTool turns the configured tool path into an absolute path to an existing,
// executable file. Relative paths are tried against the directory of the running
// binary, then the working directory. A missing execute bit is added rather than
// treated as an error.
func ResolveTool(path string, logger *slog.Logger) (string, error) {
	var dirs []string
	if exe, err := os.Executable(); err == nil {
		dirs = append(dirs, filepath.Dir(exe))
	}
	if wd, err := os.Getwd(); err == nil {
		dirs = append(dirs, wd)
	}
	return resolveTool(path, dirs, logger)
}

func resolveTool(path string, searchDirs []string, logger *slog.Logger) (string, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(path) == "" {
		return "", common.NewAppError(common.CodeToolResolution, "ocr tool path is empty", common.ErrToolNotFound)
	}

	p := path
	if !filepath.IsAbs(p) {
		found := false
		for _, dir := range searchDirs {
			candidate := filepath.Join(dir, p)
			if _, err := os.Stat(candidate); err == nil {
				p = candidate
				found = true
				break
			}
		}
		// bare command names fall back to $PATH
		if !found && !strings.ContainsRune(p, filepath.Separator) {
			if lp, err := exec.LookPath(p); err == nil {
				p = lp
			}
		}
	}

	abs, err := filepath.Abs(p)
	if err != nil {
		return "", common.NewAppError(common.CodeToolResolution, "resolve ocr tool path", err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}

	st, err := os.Stat(abs)
	if err != nil || !st.Mode().IsRegular() {
		logger.Error("OCR tool not found", "path", abs)
		return "", common.NewAppError(common.CodeToolResolution, "ocr tool not found: "+abs, common.ErrToolNotFound)
	}

	mode := st.Mode().Perm()
	if mode&0o100 == 0 {
		logger.Info("adding execute permission", "tool", filepath.Base(abs))
		if err := os.Chmod(abs, mode|0o111); err != nil {
			logger.Error("failed to make ocr tool executable", "path", abs, "error", err)
			return "", common.NewAppError(common.CodeToolResolution, "chmod ocr tool", err)
		}
	}
	return abs, nil
}
