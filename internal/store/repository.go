package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/JonMunkholm/creature-etl/internal/core"
)

// Statistics summarizes the stored records.
type Statistics struct {
	Total         int64   `json:"total"`
	Legendary     int64   `json:"legendary"`
	Variants      int64   `json:"variants"`
	Generations   int64   `json:"generations"`
	PrimaryTypes  int64   `json:"primary_types"`
	AvgTotalPower float64 `json:"avg_total_power"`
}

// BulkError reports why one record of a BulkCreate was rejected.
type BulkError struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
	Err   error  `json:"-"`
}

func (e BulkError) Error() string {
	return fmt.Sprintf("record %d (%s): %v", e.Index, e.Name, e.Err)
}

func (e BulkError) Unwrap() error {
	return e.Err
}

// PowerRange bounds total_power. A nil bound is open.
type PowerRange struct {
	Min *int64
	Max *int64
}

// ----------------------------------------------------------------------------
// Queries
// ----------------------------------------------------------------------------

func (s *Store) selectFrom() string {
	return "SELECT " + s.selectList() + " FROM " + s.table
}

func (s *Store) list(ctx context.Context, where string, limit, offset int, args ...any) ([]core.Creature, error) {
	if limit <= 0 {
		limit = math.MaxInt32
	}
	q := s.selectFrom()
	if where != "" {
		q += " WHERE " + where
	}
	q += " ORDER BY seq LIMIT ? OFFSET ?"
	args = append(args, limit, max(offset, 0))

	recs := []core.Creature{}
	if err := s.db.SelectContext(ctx, &recs, s.db.Rebind(q), args...); err != nil {
		return nil, err
	}
	return recs, nil
}

// List returns records in load order. limit <= 0 means no limit.
func (s *Store) List(ctx context.Context, limit, offset int) ([]core.Creature, error) {
	recs, err := s.list(ctx, "", limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list creatures: %w", err)
	}
	return recs, nil
}

// Count returns the number of stored records.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM "+s.table); err != nil {
		return 0, fmt.Errorf("count creatures: %w", err)
	}
	return n, nil
}

// GetByID returns the first record, in load order, with catalog number id.
// Alternate forms share the id of their base species.
func (s *Store) GetByID(ctx context.Context, id int64) (*core.Creature, error) {
	recs, err := s.list(ctx, "id = ?", 1, 0, id)
	if err != nil {
		return nil, fmt.Errorf("get creature %d: %w", id, err)
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("get creature %d: %w", id, core.ErrCreatureNotFound)
	}
	return &recs[0], nil
}

// GetByName returns the record with the exact name.
func (s *Store) GetByName(ctx context.Context, name string) (*core.Creature, error) {
	recs, err := s.list(ctx, "name = ?", 1, 0, name)
	if err != nil {
		return nil, fmt.Errorf("get creature %q: %w", name, err)
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("get creature %q: %w", name, core.ErrCreatureNotFound)
	}
	return &recs[0], nil
}

// ListByType returns records whose primary or secondary type is typ, ignoring
// case. With secondaryOnly, only the secondary type is matched.
func (s *Store) ListByType(ctx context.Context, typ string, secondaryOnly bool) ([]core.Creature, error) {
	typ = strings.ToLower(strings.TrimSpace(typ))
	var (
		recs []core.Creature
		err  error
	)
	if secondaryOnly {
		recs, err = s.list(ctx, "LOWER(secondary_type) = ?", 0, 0, typ)
	} else {
		recs, err = s.list(ctx, "LOWER(primary_type) = ? OR LOWER(secondary_type) = ?", 0, 0, typ, typ)
	}
	if err != nil {
		return nil, fmt.Errorf("list by type %q: %w", typ, err)
	}
	return recs, nil
}

// ListByGeneration returns records of one generation.
func (s *Store) ListByGeneration(ctx context.Context, gen int64) ([]core.Creature, error) {
	recs, err := s.list(ctx, "generation = ?", 0, 0, gen)
	if err != nil {
		return nil, fmt.Errorf("list generation %d: %w", gen, err)
	}
	return recs, nil
}

// ListLegendary returns legendary records.
func (s *Store) ListLegendary(ctx context.Context, limit int) ([]core.Creature, error) {
	recs, err := s.list(ctx, "is_legendary = ?", limit, 0, true)
	if err != nil {
		return nil, fmt.Errorf("list legendary: %w", err)
	}
	return recs, nil
}

// ListByPowerRange returns records with total_power inside r, inclusive.
// Records without a total are excluded unless both bounds are open.
func (s *Store) ListByPowerRange(ctx context.Context, r PowerRange) ([]core.Creature, error) {
	var (
		conds []string
		args  []any
	)
	if r.Min != nil {
		conds = append(conds, "total_power >= ?")
		args = append(args, *r.Min)
	}
	if r.Max != nil {
		conds = append(conds, "total_power <= ?")
		args = append(args, *r.Max)
	}
	recs, err := s.list(ctx, strings.Join(conds, " AND "), 0, 0, args...)
	if err != nil {
		return nil, fmt.Errorf("list by power: %w", err)
	}
	return recs, nil
}

// Search matches q as a case-insensitive substring of name or either type.
func (s *Store) Search(ctx context.Context, q string, limit int) ([]core.Creature, error) {
	pattern := "%" + strings.ToLower(strings.TrimSpace(q)) + "%"
	recs, err := s.list(ctx,
		"LOWER(name) LIKE ? OR LOWER(primary_type) LIKE ? OR LOWER(secondary_type) LIKE ?",
		limit, 0, pattern, pattern, pattern)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", q, err)
	}
	return recs, nil
}

// Statistics aggregates counts and the average total power.
func (s *Store) Statistics(ctx context.Context) (*Statistics, error) {
	q := fmt.Sprintf(`SELECT
		COUNT(*),
		SUM(CASE WHEN is_legendary THEN 1 ELSE 0 END),
		SUM(CASE WHEN is_variant THEN 1 ELSE 0 END),
		COUNT(DISTINCT generation),
		COUNT(DISTINCT primary_type),
		AVG(total_power)
	FROM %s`, s.table)

	var (
		st        Statistics
		legendary sql.NullInt64
		variants  sql.NullInt64
		avg       sql.NullFloat64
	)
	row := s.db.QueryRowxContext(ctx, q)
	if err := row.Scan(&st.Total, &legendary, &variants, &st.Generations, &st.PrimaryTypes, &avg); err != nil {
		return nil, fmt.Errorf("statistics: %w", err)
	}
	st.Legendary = legendary.Int64
	st.Variants = variants.Int64
	if avg.Valid {
		st.AvgTotalPower = math.Round(avg.Float64*100) / 100
	}
	return &st, nil
}

// ----------------------------------------------------------------------------
// Mutations
// ----------------------------------------------------------------------------

// Create normalizes, validates and stores c at the end of the load order.
func (s *Store) Create(ctx context.Context, c core.Creature) (*core.Creature, error) {
	c.Normalize()
	if err := core.CheckCreature(&c); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("create %q: %w", c.Name, err)
	}
	defer tx.Rollback()

	if err := s.checkName(ctx, tx, c.Name, 0); err != nil {
		return nil, err
	}
	seq, err := s.nextSeq(ctx, tx)
	if err != nil {
		return nil, fmt.Errorf("create %q: %w", c.Name, err)
	}
	now := s.now().UTC()
	if _, err := tx.ExecContext(ctx, s.insertSQL(s.table, 1), rowArgs(seq, &c, now, now)...); err != nil {
		return nil, fmt.Errorf("create %q: %w", c.Name, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("create %q: %w", c.Name, err)
	}

	c.CreatedAt, c.UpdatedAt = &now, &now
	s.logger.Info("creature created", "name", c.Name)
	return &c, nil
}

// Update replaces the record found by GetByID with c. The catalog id and
// creation time are kept; derived fields are recomputed.
func (s *Store) Update(ctx context.Context, id int64, c core.Creature) (*core.Creature, error) {
	c.ID = &id
	c.TypeCombination = ""
	c.Normalize()
	if err := core.CheckCreature(&c); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("update %d: %w", id, err)
	}
	defer tx.Rollback()

	seq, created, err := s.locate(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkName(ctx, tx, c.Name, seq); err != nil {
		return nil, err
	}

	sets := make([]string, 0, len(insertColumns))
	for _, col := range insertColumns[1:] {
		if col == "created_at" {
			continue
		}
		sets = append(sets, col+" = ?")
	}
	now := s.now().UTC()
	vals := rowArgs(seq, &c, nil, now)
	args := append(slices.Clone(vals[1:len(vals)-2]), now, seq)

	q := s.db.Rebind(fmt.Sprintf("UPDATE %s SET %s WHERE seq = ?", s.table, strings.Join(sets, ", ")))
	if _, err := tx.ExecContext(ctx, q, args...); err != nil {
		return nil, fmt.Errorf("update %d: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("update %d: %w", id, err)
	}

	c.CreatedAt, c.UpdatedAt = created, &now
	s.logger.Info("creature updated", "id", id, "name", c.Name)
	return &c, nil
}

// Delete removes the record found by GetByID.
func (s *Store) Delete(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("delete %d: %w", id, err)
	}
	defer tx.Rollback()

	seq, _, err := s.locate(ctx, tx, id)
	if err != nil {
		return err
	}
	q := s.db.Rebind("DELETE FROM " + s.table + " WHERE seq = ?")
	if _, err := tx.ExecContext(ctx, q, seq); err != nil {
		return fmt.Errorf("delete %d: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("delete %d: %w", id, err)
	}

	s.logger.Info("creature deleted", "id", id)
	return nil
}

// BulkCreate stores every valid record of recs in one transaction. Invalid
// records and name collisions are reported per record and skipped; an error
// from the database aborts the whole batch.
func (s *Store) BulkCreate(ctx context.Context, recs []core.Creature) ([]core.Creature, []BulkError, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("bulk create: %w", err)
	}
	defer tx.Rollback()

	seq, err := s.nextSeq(ctx, tx)
	if err != nil {
		return nil, nil, fmt.Errorf("bulk create: %w", err)
	}

	var (
		created []core.Creature
		rejects []BulkError
		seen    = make(map[string]bool, len(recs))
		now     = s.now().UTC()
	)
	for i, c := range recs {
		c.Normalize()
		if err := core.CheckCreature(&c); err != nil {
			rejects = append(rejects, BulkError{Index: i, Name: c.Name, Err: err})
			continue
		}
		if seen[c.Name] {
			rejects = append(rejects, BulkError{Index: i, Name: c.Name, Err: core.ErrDuplicateName})
			continue
		}
		if err := s.checkName(ctx, tx, c.Name, 0); err != nil {
			if !errors.Is(err, core.ErrDuplicateName) {
				return nil, nil, err
			}
			rejects = append(rejects, BulkError{Index: i, Name: c.Name, Err: err})
			continue
		}
		if _, err := tx.ExecContext(ctx, s.insertSQL(s.table, 1), rowArgs(seq, &c, now, now)...); err != nil {
			return nil, nil, fmt.Errorf("bulk create %q: %w", c.Name, err)
		}
		seen[c.Name] = true
		seq++
		c.CreatedAt, c.UpdatedAt = &now, &now
		created = append(created, c)
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("bulk create: %w", err)
	}
	s.logger.Info("bulk create finished", "created", len(created), "rejected", len(rejects))
	return created, rejects, nil
}

// locate returns the seq and creation time of the first record with id.
func (s *Store) locate(ctx context.Context, tx *sqlx.Tx, id int64) (int64, *time.Time, error) {
	var row struct {
		Seq       int64      `db:"seq"`
		CreatedAt *time.Time `db:"created_at"`
	}
	q := "SELECT seq, created_at FROM " + s.table + " WHERE id = ? ORDER BY seq LIMIT 1"
	if s.dialect.name == "snowflake" {
		q = `SELECT seq AS "seq", created_at AS "created_at" FROM ` + s.table + " WHERE id = ? ORDER BY seq LIMIT 1"
	}
	err := tx.GetContext(ctx, &row, tx.Rebind(q), id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil, fmt.Errorf("creature %d: %w", id, core.ErrCreatureNotFound)
	}
	if err != nil {
		return 0, nil, fmt.Errorf("locate %d: %w", id, err)
	}
	return row.Seq, row.CreatedAt, nil
}

// checkName fails with ErrDuplicateName when another record (seq != self)
// already uses name. self is 0 for new records.
func (s *Store) checkName(ctx context.Context, tx *sqlx.Tx, name string, self int64) error {
	var n int64
	q := tx.Rebind("SELECT COUNT(*) FROM " + s.table + " WHERE name = ? AND seq <> ?")
	if err := tx.GetContext(ctx, &n, q, name, self); err != nil {
		return fmt.Errorf("check name %q: %w", name, err)
	}
	if n > 0 {
		return fmt.Errorf("%q: %w", name, core.ErrDuplicateName)
	}
	return nil
}

func (s *Store) nextSeq(ctx context.Context, tx *sqlx.Tx) (int64, error) {
	var seq sql.NullInt64
	if err := tx.GetContext(ctx, &seq, "SELECT MAX(seq) FROM "+s.table); err != nil {
		return 0, err
	}
	return seq.Int64 + 1, nil
}
