package store

import (
	"fmt"
	"strings"
)

// dialect holds the column types and table-swap statements that differ
// between databases.
type dialect struct {
	name      string
	driver    string
	bigint    string
	double    string
	boolean   string
	varchar   string
	text      string
	timestamp string

	// transactionalDDL reports whether CREATE, DROP and RENAME can run inside
	// the load transaction and roll back with it.
	transactionalDDL bool
}

var dialects = map[string]dialect{
	"pgx": {
		name: "postgres", driver: "pgx",
		bigint: "BIGINT", double: "DOUBLE PRECISION", boolean: "BOOLEAN",
		varchar: "VARCHAR(255)", text: "TEXT", timestamp: "TIMESTAMPTZ",
		transactionalDDL: true,
	},
	"mysql": {
		name: "mysql", driver: "mysql",
		bigint: "BIGINT", double: "DOUBLE", boolean: "BOOLEAN",
		varchar: "VARCHAR(255)", text: "TEXT", timestamp: "DATETIME(6)",
	},
	"sqlite": {
		name: "sqlite", driver: "sqlite",
		bigint: "INTEGER", double: "REAL", boolean: "BOOLEAN",
		varchar: "TEXT", text: "TEXT", timestamp: "TIMESTAMP",
		transactionalDDL: true,
	},
	"snowflake": {
		name: "snowflake", driver: "snowflake",
		bigint: "NUMBER(19,0)", double: "FLOAT", boolean: "BOOLEAN",
		varchar: "VARCHAR(255)", text: "VARCHAR", timestamp: "TIMESTAMP_NTZ",
	},
}

func dialectFor(driver string) (dialect, error) {
	d, ok := dialects[driver]
	if !ok {
		return dialect{}, fmt.Errorf("unsupported database driver %q", driver)
	}
	return d, nil
}

// swapPlan replaces a table with a loaded staging table. Once every swap
// statement has run the new rows are live; cleanup only drops the old data.
type swapPlan struct {
	swap    []string
	cleanup []string
}

// swapStatements returns the plan that replaces target with staging once
// staging is fully loaded. exists reports whether target is present.
func (d dialect) swapStatements(target, staging string, exists bool) swapPlan {
	switch d.name {
	case "mysql":
		if !exists {
			return swapPlan{swap: []string{fmt.Sprintf("RENAME TABLE %s TO %s", staging, target)}}
		}
		old := staging + "_old"
		return swapPlan{
			swap:    []string{fmt.Sprintf("RENAME TABLE %s TO %s, %s TO %s", target, old, staging, target)},
			cleanup: []string{fmt.Sprintf("DROP TABLE %s", old)},
		}
	case "snowflake":
		if !exists {
			return swapPlan{swap: []string{fmt.Sprintf("ALTER TABLE %s RENAME TO %s", staging, target)}}
		}
		return swapPlan{
			swap:    []string{fmt.Sprintf("ALTER TABLE %s SWAP WITH %s", target, staging)},
			cleanup: []string{fmt.Sprintf("DROP TABLE %s", staging)},
		}
	default:
		return swapPlan{swap: []string{
			fmt.Sprintf("DROP TABLE IF EXISTS %s", target),
			fmt.Sprintf("ALTER TABLE %s RENAME TO %s", staging, target),
		}}
	}
}

// creatureTableDDL creates a creature table. seq keeps load order and is the
// row key, since catalog ids repeat across forms of the same species.
func (d dialect) creatureTableDDL(table string, ifNotExists bool) string {
	cols := []string{
		"seq " + d.bigint + " NOT NULL",
		"id " + d.bigint,
		"name " + d.varchar + " NOT NULL UNIQUE",
		"primary_type " + d.varchar + " NOT NULL",
		"secondary_type " + d.varchar,
		"hp " + d.bigint,
		"attack " + d.bigint,
		"defense " + d.bigint,
		"special_attack " + d.bigint,
		"special_defense " + d.bigint,
		"speed " + d.bigint,
		"total_power " + d.bigint,
		"generation " + d.bigint,
		"is_legendary " + d.boolean + " NOT NULL",
		"is_variant " + d.boolean + " NOT NULL",
		"variant_form " + d.varchar,
		"type_combination " + d.varchar,
		"offensive_power " + d.bigint,
		"defensive_power " + d.bigint,
		"attack_defense_ratio " + d.double,
		"power_category " + d.varchar,
		"created_at " + d.timestamp + " NOT NULL",
		"updated_at " + d.timestamp + " NOT NULL",
	}
	return createTable(table, ifNotExists, cols)
}

func (d dialect) runTableDDL(table string) string {
	return createTable(table, true, []string{
		"run_id " + d.varchar + " NOT NULL PRIMARY KEY",
		"input_path " + d.text,
		"started_at " + d.timestamp + " NOT NULL",
		"finished_at " + d.timestamp + " NOT NULL",
		"input_rows " + d.bigint,
		"output_rows " + d.bigint,
		"warnings " + d.bigint,
		"sinks " + d.text,
		"status " + d.varchar + " NOT NULL",
		"error_message " + d.text,
	})
}

func (d dialect) operationTableDDL(table string) string {
	return createTable(table, true, []string{
		"run_id " + d.varchar + " NOT NULL",
		"row_index " + d.bigint,
		"column_name " + d.varchar,
		"original_value " + d.text,
		"new_value " + d.text,
		"operation " + d.varchar + " NOT NULL",
		"reason " + d.text,
		"cleaned_at " + d.timestamp + " NOT NULL",
	})
}

func createTable(table string, ifNotExists bool, cols []string) string {
	clause := "CREATE TABLE "
	if ifNotExists {
		clause += "IF NOT EXISTS "
	}
	return clause + table + " (\n\t" + strings.Join(cols, ",\n\t") + "\n)"
}
