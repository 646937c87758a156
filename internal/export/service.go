package export

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/batch-ocr/internal/common"
	"github.com/joseph-ayodele/batch-ocr/internal/results"
)

const sheetName = "OCR Results"

var headers = []string{
	"Image",
	"Confidence",
	"Status",
	"Quarantined",
	"Text",
}

// Service renders a ResultSet as an XLSX workbook for manual review.
type Service struct {
	maxText int
	logger  *slog.Logger
}

func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	// excelize caps a cell at 32767 characters
	return &Service{maxText: excelize.TotalCellChars, logger: logger}
}

// ResultsXLSX returns the workbook bytes. Rows follow the ResultSet order.
func (s *Service) ResultsXLSX(rs *results.ResultSet) ([]byte, error) {
	start := time.Now()

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			s.logger.Warn("failed to close workbook", "error", err)
		}
	}()

	// the default sheet is renamed rather than adding a second one
	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheetName, cell, h); err != nil {
			return nil, fmt.Errorf("write header: %w", err)
		}
	}

	for i, e := range rs.Entries {
		row := i + 2
		values := []any{
			e.ID,
			e.Confidence,
			e.Status,
			yesNo(e.Quarantined),
			truncate(e.Text, s.maxText),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := f.SetCellValue(sheetName, cell, v); err != nil {
				return nil, fmt.Errorf("write row %d: %w", row, err)
			}
		}
	}

	_ = f.SetColWidth(sheetName, "A", "A", 28)
	_ = f.SetColWidth(sheetName, "B", "D", 14)
	_ = f.SetColWidth(sheetName, "E", "E", 80)
	_ = f.SetPanes(sheetName, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"rows", len(rs.Entries),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

// WriteResultsXLSX writes the workbook to path, creating the parent directory.
func (s *Service) WriteResultsXLSX(path string, rs *results.ResultSet) error {
	data, err := s.ResultsXLSX(rs)
	if err != nil {
		return common.NewAppError(common.CodeOutput, "render xlsx", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return common.NewAppError(common.CodeOutput, "create xlsx dir", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return common.NewAppError(common.CodeOutput, "write xlsx", err)
	}
	return nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
