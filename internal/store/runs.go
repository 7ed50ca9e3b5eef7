package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/JonMunkholm/creature-etl/internal/core"
)

// Run statuses.
const (
	RunSucceeded = "succeeded"
	RunPartial   = "partial"
	RunFailed    = "failed"
)

// RunRecord is one row of the run history.
type RunRecord struct {
	RunID      string    `db:"run_id" json:"run_id"`
	InputPath  string    `db:"input_path" json:"input_path"`
	StartedAt  time.Time `db:"started_at" json:"started_at"`
	FinishedAt time.Time `db:"finished_at" json:"finished_at"`
	InputRows  int64     `db:"input_rows" json:"input_rows"`
	OutputRows int64     `db:"output_rows" json:"output_rows"`
	Warnings   int64     `db:"warnings" json:"warnings"`
	Sinks      string    `db:"sinks" json:"sinks"`
	Status     string    `db:"status" json:"status"`
	Error      string    `db:"error_message" json:"error,omitempty"`
}

var runColumns = []string{
	"run_id", "input_path", "started_at", "finished_at", "input_rows",
	"output_rows", "warnings", "sinks", "status", "error_message",
}

var operationColumns = []string{
	"run_id", "row_index", "column_name", "original_value", "new_value",
	"operation", "reason", "cleaned_at",
}

// RecordRun stores a finished run and the cleaning operations it performed,
// in one transaction.
func (s *Store) RecordRun(ctx context.Context, run RunRecord, ops []core.ValidationWarning) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("record run %s: %w", run.RunID, err)
	}
	defer tx.Rollback()

	q := s.db.Rebind(fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		runsTable, strings.Join(runColumns, ", "), placeholders(len(runColumns))))
	_, err = tx.ExecContext(ctx, q,
		run.RunID, run.InputPath, run.StartedAt.UTC(), run.FinishedAt.UTC(), run.InputRows,
		run.OutputRows, run.Warnings, run.Sinks, run.Status, run.Error)
	if err != nil {
		return fmt.Errorf("record run %s: %w", run.RunID, err)
	}

	size := maxParams / len(operationColumns)
	if s.batchSize < size {
		size = s.batchSize
	}
	at := run.FinishedAt.UTC()
	for lo := 0; lo < len(ops); lo += size {
		hi := min(lo+size, len(ops))
		rows := make([]string, 0, hi-lo)
		args := make([]any, 0, (hi-lo)*len(operationColumns))
		for _, op := range ops[lo:hi] {
			rows = append(rows, "("+placeholders(len(operationColumns))+")")
			args = append(args, run.RunID, op.Row, op.Field, op.Value, op.NewValue, op.Operation, op.Message, at)
		}
		q := s.db.Rebind(fmt.Sprintf("INSERT INTO %s (%s) VALUES %s",
			operationsTable, strings.Join(operationColumns, ", "), strings.Join(rows, ", ")))
		if _, err := tx.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("record operations for run %s: %w", run.RunID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("record run %s: %w", run.RunID, err)
	}
	s.logger.Debug("run recorded", "run_id", run.RunID, "operations", len(ops))
	return nil
}

// ListRuns returns the most recent runs first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	cols := make([]string, len(runColumns))
	for i, c := range runColumns {
		cols[i] = c
		if s.dialect.name == "snowflake" {
			cols[i] = fmt.Sprintf(`%s AS "%s"`, c, c)
		}
	}
	q := s.db.Rebind(fmt.Sprintf("SELECT %s FROM %s ORDER BY started_at DESC LIMIT ?",
		strings.Join(cols, ", "), runsTable))

	runs := []RunRecord{}
	if err := s.db.SelectContext(ctx, &runs, q, limit); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// CountOperations returns how many cleaning operations were stored for a run.
func (s *Store) CountOperations(ctx context.Context, runID string) (int64, error) {
	var n int64
	q := s.db.Rebind("SELECT COUNT(*) FROM " + operationsTable + " WHERE run_id = ?")
	if err := s.db.GetContext(ctx, &n, q, runID); err != nil {
		return 0, fmt.Errorf("count operations: %w", err)
	}
	return n, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
