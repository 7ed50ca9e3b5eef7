// Package clean turns a raw creature table into validated, enriched records.
//
// Cleaning runs seven ordered passes. The first four work on the string
// table; numeric validation maps each row to a core.Creature field by field,
// and the last two passes work on records. Every pass returns new data and
// leaves its input untouched.
//
//  1. renameColumns     raw headers to canonical names
//  2. fillMissing       sentinel and median imputation
//  3. cleanNames        trimming and variant detection
//  4. standardizeTypes  title-cased types and type_combination
//  5. validateNumeric   coercion, clamping, booleans
//  6. addDerived        Creature.Derive on every record
//  7. removeDuplicates  exact duplicates, then first record per name
//
// Only structural problems fail a Clean call. Row problems are recorded as
// core.ValidationWarning values in the Report.
package clean

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/JonMunkholm/creature-etl/internal/core"
)

// Fill strategies for missing stat values.
const (
	FillMedian = "median"
	FillMean   = "mean"
	FillZero   = "zero"
)

// Policy configures the cleaner.
type Policy struct {
	// ColumnMap maps raw header names to canonical names. Nil means
	// DefaultColumnMap. Identity entries for canonical input columns are
	// always added.
	ColumnMap map[string]string

	FillStrategy          string
	VariantTokens         []string
	SecondaryTypeSentinel string
	VariantFormSentinel   string
}

// DefaultPolicy returns the policy used when nothing is configured.
func DefaultPolicy() Policy {
	return Policy{
		FillStrategy:          FillMedian,
		VariantTokens:         []string{"Mega", "Primal", "Alolan"},
		SecondaryTypeSentinel: core.NoSecondaryType,
		VariantFormSentinel:   core.BaseForm,
	}
}

// withDefaults fills zero-valued fields from DefaultPolicy.
func (p Policy) withDefaults() Policy {
	def := DefaultPolicy()
	if p.ColumnMap == nil {
		p.ColumnMap = DefaultColumnMap
	}
	if p.FillStrategy == "" {
		p.FillStrategy = def.FillStrategy
	}
	if len(p.VariantTokens) == 0 {
		p.VariantTokens = def.VariantTokens
	}
	if p.SecondaryTypeSentinel == "" {
		p.SecondaryTypeSentinel = def.SecondaryTypeSentinel
	}
	if p.VariantFormSentinel == "" {
		p.VariantFormSentinel = def.VariantFormSentinel
	}
	return p
}

// Validate reports an unknown fill strategy.
func (p Policy) Validate() error {
	switch p.FillStrategy {
	case "", FillMedian, FillMean, FillZero:
		return nil
	default:
		return fmt.Errorf("unknown fill strategy %q (want median, mean or zero)", p.FillStrategy)
	}
}

// Result is the output of one Clean call.
type Result struct {
	Records []core.Creature
	Report  Report
	Summary Summary
}

// Cleaner applies a Policy to raw tables. It is safe for concurrent use.
type Cleaner struct {
	policy Policy
	logger *slog.Logger
}

// New creates a Cleaner. A nil logger uses slog.Default().
func New(policy Policy, logger *slog.Logger) *Cleaner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cleaner{
		policy: policy.withDefaults(),
		logger: logger.With("component", "cleaner"),
	}
}

// Policy returns the effective policy, defaults applied.
func (c *Cleaner) Policy() Policy {
	return c.policy
}

// Clean runs every pass over t and returns the cleaned records with a report
// and a summary. The input table is not modified.
func (c *Cleaner) Clean(t core.Table) (*Result, error) {
	if err := c.policy.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	rep := newReport(t.Len())
	p := c.policy

	c.logger.Info("cleaning started", "rows", t.Len(), "columns", len(t.Header))

	renamed, err := renameColumns(t, p, rep)
	if err != nil {
		return nil, fmt.Errorf("rename columns: %w", err)
	}
	c.logger.Info("columns renamed", "columns", renamed.Header, "dropped", rep.DroppedColumns)

	filled := fillMissing(renamed, p, rep)
	c.logger.Info("missing values filled", "filled", rep.Filled)

	named := cleanNames(filled, p)
	typed := standardizeTypes(named, p)

	recs := validateNumeric(typed, rep)
	c.logger.Info("numeric columns validated", "coerced", rep.Coerced, "clamped", rep.Clamped)

	derived := addDerived(recs)

	deduped := removeDuplicates(derived, rep)
	if rep.ExactDuplicates+rep.NameDuplicates > 0 {
		c.logger.Info("duplicates removed",
			"exact", rep.ExactDuplicates,
			"by_name", rep.NameDuplicates,
			"names", rep.DuplicateNames)
	}

	for _, w := range rep.Warnings {
		c.logger.Debug("row corrected",
			"row", w.Row,
			"field", w.Field,
			"operation", w.Operation,
			"value", w.Value,
			"new_value", w.NewValue)
	}

	rep.OutputRows = len(deduped)
	summary := Summarize(deduped)

	c.logger.Info("cleaning completed",
		"input_rows", rep.InputRows,
		"output_rows", rep.OutputRows,
		"warnings", len(rep.Warnings),
		"duration", time.Since(start))

	return &Result{Records: deduped, Report: *rep, Summary: summary}, nil
}
