package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/JonMunkholm/creature-etl/internal/core"
)

const (
	runsTable       = "etl_runs"
	operationsTable = "cleaning_operations"
)

// insertColumns are written for every stored record, in order.
var insertColumns = append(append([]string{"seq"}, core.CreatureColumns...), "created_at", "updated_at")

// EnsureSchema creates the creature and run history tables if they are
// missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		s.dialect.creatureTableDDL(s.table, true),
		s.dialect.runTableDDL(runsTable),
		s.dialect.operationTableDDL(operationsTable),
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// selectList returns the record columns for SELECT. Snowflake folds unquoted
// names to upper case, so columns are aliased back to their tag names.
func (s *Store) selectList() string {
	cols := append(append([]string{}, core.CreatureColumns...), "created_at", "updated_at")
	if s.dialect.name != "snowflake" {
		return strings.Join(cols, ", ")
	}
	aliased := make([]string, len(cols))
	for i, c := range cols {
		aliased[i] = fmt.Sprintf(`%s AS "%s"`, c, c)
	}
	return strings.Join(aliased, ", ")
}

// insertSQL returns a multi-row INSERT for n records, rebound for the driver.
func (s *Store) insertSQL(table string, n int) string {
	row := "(" + placeholders(len(insertColumns)) + ")"
	rows := make([]string, n)
	for i := range rows {
		rows[i] = row
	}
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s",
		table, strings.Join(insertColumns, ", "), strings.Join(rows, ", "))
	return s.db.Rebind(q)
}

// rowArgs flattens c into insert arguments matching insertColumns.
func rowArgs(seq int64, c *core.Creature, created, updated any) []any {
	return []any{
		seq,
		nullInt(c.ID),
		c.Name,
		c.PrimaryType,
		c.SecondaryType,
		nullInt(c.HP),
		nullInt(c.Attack),
		nullInt(c.Defense),
		nullInt(c.SpecialAttack),
		nullInt(c.SpecialDefense),
		nullInt(c.Speed),
		nullInt(c.TotalPower),
		nullInt(c.Generation),
		c.IsLegendary,
		c.IsVariant,
		c.VariantForm,
		c.TypeCombination,
		nullInt(c.OffensivePower),
		nullInt(c.DefensivePower),
		nullFloat(c.AttackDefenseRatio),
		c.PowerCategory,
		created,
		updated,
	}
}

func nullInt(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullFloat(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

// maxParams bounds the placeholders in one statement. SQLite is the tightest
// of the supported drivers.
const maxParams = 30000

// batchRows returns how many records fit in one insert statement.
func (s *Store) batchRows() int {
	limit := maxParams / len(insertColumns)
	if s.batchSize < limit {
		return s.batchSize
	}
	return limit
}
