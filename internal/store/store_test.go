package store

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/creature-etl/internal/config"
	"github.com/JonMunkholm/creature-etl/internal/core"
)

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sqlx.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	s, err := New(db, "sqlite", "creatures", WithClock(func() time.Time { return testNow }), WithBatchSize(2))
	require.NoError(t, err)
	require.NoError(t, s.EnsureSchema(context.Background()))
	return s
}

func creature(id int64, name, primary, secondary string, total int64, legendary bool) core.Creature {
	c := core.Creature{
		ID:             core.Int64(id),
		Name:           name,
		PrimaryType:    primary,
		SecondaryType:  secondary,
		Attack:         core.Int64(total / 6),
		Defense:        core.Int64(total / 6),
		SpecialAttack:  core.Int64(total / 6),
		SpecialDefense: core.Int64(total / 6),
		TotalPower:     core.Int64(total),
		Generation:     core.Int64(1),
		IsLegendary:    legendary,
	}
	c.Normalize()
	return c
}

func seed(t *testing.T, s *Store) []core.Creature {
	t.Helper()
	recs := []core.Creature{
		creature(1, "Bulbasaur", "Grass", "Poison", 318, false),
		creature(3, "Venusaur", "Grass", "Poison", 525, false),
		creature(3, "VenusaurMega Venusaur", "Grass", "Poison", 625, false),
		creature(6, "Charizard", "Fire", "Flying", 534, false),
		creature(144, "Articuno", "Ice", "Flying", 580, true),
	}
	recs[2].IsVariant = true
	recs[2].VariantForm = "Mega Venusaur"
	recs[4].Generation = core.Int64(2)
	n, err := s.ReplaceCreatures(context.Background(), recs)
	require.NoError(t, err)
	require.Equal(t, len(recs), n)
	return recs
}

func names(recs []core.Creature) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Name
	}
	return out
}

// ----------------------------------------------------------------------------
// Replace Tests
// ----------------------------------------------------------------------------

func TestReplaceCreatures(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seed(t, s)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	all, err := s.List(ctx, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"Bulbasaur", "Venusaur", "VenusaurMega Venusaur", "Charizard", "Articuno"}, names(all))

	got := all[0]
	assert.Equal(t, "Grass/Poison", got.TypeCombination)
	assert.Equal(t, core.PowerLow, got.PowerCategory)
	require.NotNil(t, got.CreatedAt)
	assert.True(t, got.CreatedAt.Equal(testNow), "CreatedAt = %v, want %v", got.CreatedAt, testNow)

	// A second load replaces, never appends.
	_, err = s.ReplaceCreatures(ctx, []core.Creature{creature(25, "Pikachu", "Electric", core.NoSecondaryType, 320, false)})
	require.NoError(t, err)
	n, err = s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestReplaceCreaturesFailureKeepsTable(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seed(t, s)

	dup := creature(25, "Pikachu", "Electric", core.NoSecondaryType, 320, false)
	_, err := s.ReplaceCreatures(ctx, []core.Creature{dup, dup})
	require.Error(t, err)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n, "previous contents must survive a failed load")
}

func TestReplaceCreaturesEmpty(t *testing.T) {
	s := newTestStore(t)
	n, err := s.ReplaceCreatures(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	count, err := s.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

// ----------------------------------------------------------------------------
// Query Tests
// ----------------------------------------------------------------------------

func TestGetByID(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seed(t, s)

	c, err := s.GetByID(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, "Venusaur", c.Name, "first form in load order wins")

	_, err = s.GetByID(ctx, 9999)
	assert.ErrorIs(t, err, core.ErrCreatureNotFound)
}

func TestGetByName(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seed(t, s)

	c, err := s.GetByName(ctx, "Charizard")
	require.NoError(t, err)
	assert.Equal(t, int64(6), *c.ID)

	_, err = s.GetByName(ctx, "charizard")
	assert.ErrorIs(t, err, core.ErrCreatureNotFound)
}

func TestListByType(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seed(t, s)

	tests := []struct {
		name          string
		typ           string
		secondaryOnly bool
		want          []string
	}{
		{"primary or secondary", "flying", false, []string{"Charizard", "Articuno"}},
		{"primary match", "Grass", false, []string{"Bulbasaur", "Venusaur", "VenusaurMega Venusaur"}},
		{"secondary only", "Flying", true, []string{"Charizard", "Articuno"}},
		{"secondary only excludes primary", "Fire", true, []string{}},
		{"unknown", "Dragon", false, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListByType(ctx, tt.typ, tt.secondaryOnly)
			require.NoError(t, err)
			assert.Equal(t, tt.want, names(got))
		})
	}
}

func TestListByGenerationAndLegendary(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seed(t, s)

	gen2, err := s.ListByGeneration(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"Articuno"}, names(gen2))

	leg, err := s.ListLegendary(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"Articuno"}, names(leg))
}

func TestListByPowerRange(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seed(t, s)

	tests := []struct {
		name string
		r    PowerRange
		want []string
	}{
		{"bounded inclusive", PowerRange{Min: core.Int64(525), Max: core.Int64(580)}, []string{"Venusaur", "Charizard", "Articuno"}},
		{"min only", PowerRange{Min: core.Int64(600)}, []string{"VenusaurMega Venusaur"}},
		{"max only", PowerRange{Max: core.Int64(318)}, []string{"Bulbasaur"}},
		{"open", PowerRange{}, []string{"Bulbasaur", "Venusaur", "VenusaurMega Venusaur", "Charizard", "Articuno"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListByPowerRange(ctx, tt.r)
			require.NoError(t, err)
			assert.Equal(t, tt.want, names(got))
		})
	}
}

func TestSearch(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seed(t, s)

	got, err := s.Search(ctx, "SAUR", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"Bulbasaur", "Venusaur", "VenusaurMega Venusaur"}, names(got))

	got, err = s.Search(ctx, "ice", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"Articuno"}, names(got))

	got, err = s.Search(ctx, "saur", 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestListPagination(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seed(t, s)

	page, err := s.List(ctx, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"VenusaurMega Venusaur", "Charizard"}, names(page))
}

func TestStatistics(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	st, err := s.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, Statistics{}, *st)

	seed(t, s)
	st, err = s.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), st.Total)
	assert.Equal(t, int64(1), st.Legendary)
	assert.Equal(t, int64(1), st.Variants)
	assert.Equal(t, int64(2), st.Generations)
	assert.Equal(t, int64(3), st.PrimaryTypes)
	assert.Equal(t, 516.4, st.AvgTotalPower)
}

// ----------------------------------------------------------------------------
// Mutation Tests
// ----------------------------------------------------------------------------

func TestCreate(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seed(t, s)

	c, err := s.Create(ctx, core.Creature{ID: core.Int64(25), Name: " Pikachu ", PrimaryType: "Electric", TotalPower: core.Int64(320)})
	require.NoError(t, err)
	assert.Equal(t, "Pikachu", c.Name)
	assert.Equal(t, core.PowerLow, c.PowerCategory)
	assert.Equal(t, core.NoSecondaryType, c.SecondaryType)

	all, err := s.List(ctx, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "Pikachu", all[len(all)-1].Name, "new records go last")

	_, err = s.Create(ctx, core.Creature{Name: "Pikachu", PrimaryType: "Electric"})
	assert.ErrorIs(t, err, core.ErrDuplicateName)

	_, err = s.Create(ctx, core.Creature{Name: "", PrimaryType: "Electric"})
	assert.ErrorIs(t, err, core.ErrInvalidCreature)
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seed(t, s)

	later := testNow.Add(time.Hour)
	s.now = func() time.Time { return later }

	c, err := s.GetByID(ctx, 6)
	require.NoError(t, err)
	c.TotalPower = core.Int64(634)
	c.SecondaryType = "Dragon"

	updated, err := s.Update(ctx, 6, *c)
	require.NoError(t, err)
	assert.Equal(t, core.PowerVeryHigh, updated.PowerCategory)
	assert.Equal(t, "Fire/Dragon", updated.TypeCombination)
	assert.True(t, updated.CreatedAt.Equal(testNow))
	assert.True(t, updated.UpdatedAt.Equal(later))

	got, err := s.GetByID(ctx, 6)
	require.NoError(t, err)
	assert.Equal(t, "Fire/Dragon", got.TypeCombination)
	assert.Equal(t, int64(634), *got.TotalPower)

	// The id in the body is ignored.
	c.ID = core.Int64(999)
	updated, err = s.Update(ctx, 6, *c)
	require.NoError(t, err)
	assert.Equal(t, int64(6), *updated.ID)

	c.Name = "Bulbasaur"
	_, err = s.Update(ctx, 6, *c)
	assert.ErrorIs(t, err, core.ErrDuplicateName)

	_, err = s.Update(ctx, 9999, *c)
	assert.ErrorIs(t, err, core.ErrCreatureNotFound)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seed(t, s)

	require.NoError(t, s.Delete(ctx, 3))
	c, err := s.GetByID(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, "VenusaurMega Venusaur", c.Name)

	assert.ErrorIs(t, s.Delete(ctx, 9999), core.ErrCreatureNotFound)
}

func TestBulkCreate(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seed(t, s)

	created, rejects, err := s.BulkCreate(ctx, []core.Creature{
		{ID: core.Int64(25), Name: "Pikachu", PrimaryType: "Electric"},
		{ID: core.Int64(26), Name: "", PrimaryType: "Electric"},
		{ID: core.Int64(1), Name: "Bulbasaur", PrimaryType: "Grass"},
		{ID: core.Int64(25), Name: "Pikachu", PrimaryType: "Electric"},
		{ID: core.Int64(26), Name: "Raichu", PrimaryType: "Electric"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Pikachu", "Raichu"}, names(created))
	require.Len(t, rejects, 3)
	assert.Equal(t, 1, rejects[0].Index)
	assert.ErrorIs(t, rejects[0], core.ErrInvalidCreature)
	assert.ErrorIs(t, rejects[1], core.ErrDuplicateName)
	assert.ErrorIs(t, rejects[2], core.ErrDuplicateName)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
}

// ----------------------------------------------------------------------------
// Run History Tests
// ----------------------------------------------------------------------------

func TestRecordRun(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	ops := []core.ValidationWarning{
		{Row: 2, Field: "hp", Value: "-5", NewValue: "0", Operation: core.OpClamped, Message: "negative value clamped to 0"},
		{Row: 3, Field: "attack", Value: "abc", Operation: core.OpCoerced, Message: "not numeric"},
		{Field: "secondary_type", Operation: core.OpFilled, Message: "filled"},
	}
	first := RunRecord{
		RunID: "run-1", InputPath: "data/pokemon.csv",
		StartedAt: testNow, FinishedAt: testNow.Add(time.Second),
		InputRows: 800, OutputRows: 799, Warnings: 3,
		Sinks: "csv,json", Status: RunSucceeded,
	}
	require.NoError(t, s.RecordRun(ctx, first, ops))

	second := first
	second.RunID = "run-2"
	second.StartedAt = testNow.Add(time.Minute)
	second.Status = RunFailed
	second.Error = "boom"
	require.NoError(t, s.RecordRun(ctx, second, nil))

	runs, err := s.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-2", runs[0].RunID)
	assert.Equal(t, "boom", runs[0].Error)
	assert.Equal(t, int64(799), runs[1].OutputRows)

	n, err := s.CountOperations(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

// ----------------------------------------------------------------------------
// Dialect Tests
// ----------------------------------------------------------------------------

func TestSwapStatements(t *testing.T) {
	tests := []struct {
		driver  string
		exists  bool
		swap    []string
		cleanup []string
	}{
		{"pgx", true, []string{"DROP TABLE IF EXISTS creatures", "ALTER TABLE s RENAME TO creatures"}, nil},
		{"mysql", false, []string{"RENAME TABLE s TO creatures"}, nil},
		{"mysql", true, []string{"RENAME TABLE creatures TO s_old, s TO creatures"}, []string{"DROP TABLE s_old"}},
		{"snowflake", true, []string{"ALTER TABLE creatures SWAP WITH s"}, []string{"DROP TABLE s"}},
		{"snowflake", false, []string{"ALTER TABLE s RENAME TO creatures"}, nil},
	}
	for _, tt := range tests {
		d, err := dialectFor(tt.driver)
		require.NoError(t, err)
		plan := d.swapStatements("creatures", "s", tt.exists)
		assert.Equal(t, tt.swap, plan.swap, "%s exists=%v", tt.driver, tt.exists)
		assert.Equal(t, tt.cleanup, plan.cleanup, "%s exists=%v", tt.driver, tt.exists)
	}

	_, err := dialectFor("oracle")
	assert.Error(t, err)
}

func TestApplySwapIgnoresCleanupFailure(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	_, err := s.db.ExecContext(ctx, s.dialect.creatureTableDDL("creatures_next", false))
	require.NoError(t, err)

	// The new table is live once the swap ran; a failed drop must not undo
	// that or report the load as failed.
	err = s.applySwap(ctx, swapPlan{
		swap: []string{
			"ALTER TABLE creatures RENAME TO creatures_prev",
			"ALTER TABLE creatures_next RENAME TO creatures",
		},
		cleanup: []string{"DROP TABLE creatures_missing"},
	})
	require.NoError(t, err)
	assert.True(t, s.tableExists(ctx, "creatures"))
	assert.False(t, s.tableExists(ctx, "creatures_next"))

	err = s.applySwap(ctx, swapPlan{swap: []string{"ALTER TABLE creatures_missing RENAME TO creatures"}})
	assert.Error(t, err)
}

func TestCreatureTableDDL(t *testing.T) {
	d, err := dialectFor("pgx")
	require.NoError(t, err)
	ddl := d.creatureTableDDL("creatures", true)
	assert.True(t, strings.HasPrefix(ddl, "CREATE TABLE IF NOT EXISTS creatures ("))
	assert.Contains(t, ddl, "name VARCHAR(255) NOT NULL UNIQUE")
	assert.Contains(t, ddl, "attack_defense_ratio DOUBLE PRECISION")
	assert.Contains(t, ddl, "created_at TIMESTAMPTZ NOT NULL")
}

func TestBuildDSN(t *testing.T) {
	dsn, err := buildDSN(config.DatabaseConfig{Driver: "mysql", DSN: "user:pw@tcp(localhost:3306)/etl"})
	require.NoError(t, err)
	assert.Contains(t, dsn, "parseTime=true")

	dsn, err = buildDSN(config.DatabaseConfig{Driver: "snowflake", Snowflake: config.SnowflakeConfig{
		Account: "acme", User: "loader", Password: "pw", Database: "ETL", Schema: "PUBLIC", Warehouse: "WH",
	}})
	require.NoError(t, err)
	assert.Contains(t, dsn, "loader")
	assert.Contains(t, dsn, "acme")

	_, err = buildDSN(config.DatabaseConfig{Driver: "pgx"})
	assert.Error(t, err)
}

func TestBatchRows(t *testing.T) {
	s := newTestStore(t)
	assert.Equal(t, 2, s.batchRows())
	s.batchSize = 1_000_000
	assert.Equal(t, maxParams/len(insertColumns), s.batchRows())
}
