package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/JonMunkholm/creature-etl/internal/core"
)

// ReplaceCreatures replaces the whole creature table with recs. Records are
// written to a staging table first; the live table only changes once every
// batch has been inserted, so a failed load leaves the previous contents in
// place.
func (s *Store) ReplaceCreatures(ctx context.Context, recs []core.Creature) (int, error) {
	start := time.Now()
	staging := s.stagingName()

	var err error
	if s.dialect.transactionalDDL {
		err = s.replaceInTx(ctx, staging, recs)
	} else {
		err = s.replaceWithSwap(ctx, staging, recs)
	}
	if err != nil {
		return 0, fmt.Errorf("replace %s: %w", s.table, err)
	}

	s.logger.Info("table replaced",
		"table", s.table,
		"rows", len(recs),
		"duration", time.Since(start))
	return len(recs), nil
}

// replaceInTx loads and swaps inside a single transaction.
func (s *Store) replaceInTx(ctx context.Context, staging string, recs []core.Creature) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, s.dialect.creatureTableDDL(staging, false)); err != nil {
		return fmt.Errorf("create staging table: %w", err)
	}
	if err := s.insertBatches(ctx, tx, staging, recs); err != nil {
		return err
	}
	plan := s.dialect.swapStatements(s.table, staging, true)
	for _, stmt := range append(plan.swap, plan.cleanup...) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("swap tables: %w", err)
		}
	}
	return tx.Commit()
}

// replaceWithSwap is used where DDL commits implicitly. The inserts share a
// transaction; the swap runs after commit and the staging table is dropped on
// any failure.
func (s *Store) replaceWithSwap(ctx context.Context, staging string, recs []core.Creature) (err error) {
	if _, err := s.db.ExecContext(ctx, s.dialect.creatureTableDDL(staging, false)); err != nil {
		return fmt.Errorf("create staging table: %w", err)
	}
	defer func() {
		if err != nil {
			if _, dropErr := s.db.ExecContext(context.WithoutCancel(ctx), "DROP TABLE IF EXISTS "+staging); dropErr != nil {
				s.logger.Warn("failed to drop staging table", "table", staging, "error", dropErr)
			}
		}
	}()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err = s.insertBatches(ctx, tx, staging, recs); err != nil {
		tx.Rollback()
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	exists := s.tableExists(ctx, s.table)
	return s.applySwap(ctx, s.dialect.swapStatements(s.table, staging, exists))
}

// applySwap runs plan outside a transaction. A failed cleanup is only logged:
// the new rows are already live at that point.
func (s *Store) applySwap(ctx context.Context, plan swapPlan) error {
	for _, stmt := range plan.swap {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("swap tables: %w", err)
		}
	}
	for _, stmt := range plan.cleanup {
		if _, err := s.db.ExecContext(context.WithoutCancel(ctx), stmt); err != nil {
			s.logger.Warn("failed to drop replaced table", "statement", stmt, "error", err)
		}
	}
	return nil
}

// insertBatches writes recs to table in multi-row statements. seq follows
// the order of recs.
func (s *Store) insertBatches(ctx context.Context, tx *sqlx.Tx, table string, recs []core.Creature) error {
	now := s.now().UTC()
	size := s.batchRows()

	for lo := 0; lo < len(recs); lo += size {
		hi := min(lo+size, len(recs))
		args := make([]any, 0, (hi-lo)*len(insertColumns))
		for i := lo; i < hi; i++ {
			args = append(args, rowArgs(int64(i+1), &recs[i], now, now)...)
		}
		if _, err := tx.ExecContext(ctx, s.insertSQL(table, hi-lo), args...); err != nil {
			return fmt.Errorf("insert rows %d-%d: %w", lo+1, hi, err)
		}
		s.logger.Debug("batch inserted", "table", table, "from", lo+1, "to", hi)
	}
	return nil
}

// tableExists checks for table with a query that returns no rows.
func (s *Store) tableExists(ctx context.Context, table string) bool {
	rows, err := s.db.QueryContext(ctx, "SELECT 1 FROM "+table+" WHERE 1 = 0")
	if err != nil {
		return false
	}
	rows.Close()
	return true
}

func (s *Store) stagingName() string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return s.table + "_stage_" + suffix
}
