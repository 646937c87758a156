package results

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joseph-ayodele/batch-ocr/internal/common"
	"github.com/joseph-ayodele/batch-ocr/internal/entity"
)

// Aggregator consumes outcomes, quarantines failures and builds the sorted ResultSet.
type Aggregator struct {
	quarantine *Quarantine
	logger     *slog.Logger
}

func NewAggregator(q *Quarantine, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{quarantine: q, logger: logger}
}

// Aggregate drains outcomes until the channel closes. A quarantine copy that
// fails is logged and reported in the returned error, but the outcome still
// makes it into the ResultSet.
func (a *Aggregator) Aggregate(ctx context.Context, outcomes <-chan entity.Outcome) (*ResultSet, error) {
	rs := &ResultSet{Quarantined: make(map[string]string)}
	var errs []error

	for o := range outcomes {
		rs.Outcomes = append(rs.Outcomes, o)
		entry := entity.ResultEntry{
			ID:         o.ID,
			Text:       o.Text,
			Confidence: RoundConfidence(o.Confidence),
			Status:     string(o.Status),
		}
		if o.Failed {
			dst, err := a.quarantine.Copy(o.Path)
			if err != nil {
				a.logger.Error("failed to quarantine image", "id", o.ID, "path", o.Path, "error", err)
				errs = append(errs, fmt.Errorf("quarantine %s: %w", o.ID, err))
			} else {
				rs.Quarantined[o.ID] = dst
				entry.Quarantined = true
			}
		}
		rs.Entries = append(rs.Entries, entry)
	}
	sortEntries(rs.Entries)

	if err := ctx.Err(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return rs, common.NewAppError(common.CodeStorage, "quarantine incomplete", errors.Join(append([]error{common.ErrStorage}, errs...)...))
	}
	return rs, nil
}

// WriteJSON validates the rendered document and writes it to path through a
// temporary file in the same directory.
func WriteJSON(path string, rs *ResultSet) error {
	data, err := rs.MarshalJSON()
	if err != nil {
		return common.NewAppError(common.CodeOutput, "render results", err)
	}
	if err := ValidateDocument(data); err != nil {
		return common.NewAppError(common.CodeOutput, "validate results", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return common.NewAppError(common.CodeOutput, "create output dir", err)
	}
	tmp, err := os.CreateTemp(dir, ".ocr-results-*.json")
	if err != nil {
		return common.NewAppError(common.CodeOutput, "create temp output", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return common.NewAppError(common.CodeOutput, "write output", err)
	}
	if err := tmp.Close(); err != nil {
		return common.NewAppError(common.CodeOutput, "close output", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return common.NewAppError(common.CodeOutput, "chmod output", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return common.NewAppError(common.CodeOutput, "rename output", err)
	}
	return nil
}
