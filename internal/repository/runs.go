package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/batch-ocr/internal/common"
	"github.com/joseph-ayodele/batch-ocr/internal/entity"
)

// RunRepository records batch runs and their per-image outcomes.
type RunRepository interface {
	CreateRun(ctx context.Context, run entity.Run) error
	RecordOutcomes(ctx context.Context, runID uuid.UUID, outcomes []entity.Outcome, quarantined map[string]string) error
	FinishRun(ctx context.Context, runID uuid.UUID, finishedAt time.Time, total, failed int) error
	ListRecentRuns(ctx context.Context, limit int) ([]entity.Run, error)
}

type runRepo struct {
	store *Store
}

func NewRunRepository(store *Store) RunRepository {
	return &runRepo{store: store}
}

func (r *runRepo) CreateRun(ctx context.Context, run entity.Run) error {
	_, err := r.store.db.ExecContext(ctx, r.store.rebind(`
INSERT INTO ocr_runs (id, started_at, tool_path, input_dir, total, failed)
VALUES (?, ?, ?, ?, ?, ?)
`), run.ID.String(), run.StartedAt.UTC(), run.ToolPath, run.InputDir, run.Total, run.Failed)
	if err != nil {
		r.store.logger.Error("failed to create run", "run_id", run.ID, "error", err)
		return storageErr("create run", err)
	}
	return nil
}

// RecordOutcomes inserts every outcome of a run in one transaction.
func (r *runRepo) RecordOutcomes(ctx context.Context, runID uuid.UUID, outcomes []entity.Outcome, quarantined map[string]string) error {
	tx, err := r.store.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("begin outcomes tx", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, r.store.rebind(`
INSERT INTO ocr_outcomes (run_id, image_id, source_path, text, confidence, status, error_message, duration_ms, quarantined)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`))
	if err != nil {
		return storageErr("prepare outcome insert", err)
	}
	defer stmt.Close()

	for _, o := range outcomes {
		_, q := quarantined[o.ID]
		if _, err := stmt.ExecContext(ctx, runID.String(), o.ID, o.Path, o.Text, o.Confidence, string(o.Status), o.Err, o.Duration.Milliseconds(), q); err != nil {
			r.store.logger.Error("failed to record outcome", "run_id", runID, "id", o.ID, "error", err)
			return storageErr("insert outcome "+o.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return storageErr("commit outcomes", err)
	}
	return nil
}

func (r *runRepo) FinishRun(ctx context.Context, runID uuid.UUID, finishedAt time.Time, total, failed int) error {
	res, err := r.store.db.ExecContext(ctx, r.store.rebind(`
UPDATE ocr_runs SET finished_at = ?, total = ?, failed = ? WHERE id = ?
`), finishedAt.UTC(), total, failed, runID.String())
	if err != nil {
		return storageErr("finish run", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storageErr("finish run rows affected", err)
	}
	if n == 0 {
		return storageErr("finish run", fmt.Errorf("run not found: id=%s", runID))
	}
	return nil
}

func (r *runRepo) ListRecentRuns(ctx context.Context, limit int) ([]entity.Run, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.store.db.QueryContext(ctx, r.store.rebind(`
SELECT id, started_at, finished_at, tool_path, input_dir, total, failed
FROM ocr_runs
ORDER BY started_at DESC
LIMIT ?
`), limit)
	if err != nil {
		return nil, storageErr("list runs", err)
	}
	defer rows.Close()

	out := make([]entity.Run, 0)
	for rows.Next() {
		var (
			run      entity.Run
			id       string
			finished sql.NullTime
		)
		if err := rows.Scan(&id, &run.StartedAt, &finished, &run.ToolPath, &run.InputDir, &run.Total, &run.Failed); err != nil {
			return nil, storageErr("scan run", err)
		}
		if run.ID, err = uuid.Parse(id); err != nil {
			return nil, storageErr("parse run id", err)
		}
		if finished.Valid {
			t := finished.Time
			run.FinishedAt = &t
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate runs", err)
	}
	return out, nil
}

func storageErr(msg string, err error) error {
	return common.NewAppError(common.CodeStorage, msg, fmt.Errorf("%w: %w", common.ErrStorage, err))
}
