package load

import (
	"fmt"

	"github.com/JonMunkholm/creature-etl/internal/core"
)

// numericColumns must hold numbers when present.
var numericColumns = []string{core.ColID, core.ColHP, core.ColAttack, core.ColDefense}

// IntegrityResult is the outcome of a pre-load check. Issues make the table
// unloadable; warnings do not.
type IntegrityResult struct {
	IsValid  bool     `json:"is_valid"`
	Issues   []string `json:"issues"`
	Warnings []string `json:"warnings"`
}

// Err returns a *core.IntegrityError when the result is invalid.
func (r IntegrityResult) Err() error {
	if r.IsValid {
		return nil
	}
	return &core.IntegrityError{Issues: r.Issues}
}

// ValidateIntegrity checks t before loading. An empty table or one missing a
// required column is invalid. Nulls in required columns, duplicate ids and
// non-numeric cells in numeric columns are warnings.
func ValidateIntegrity(t core.Table) IntegrityResult {
	res := IntegrityResult{IsValid: true, Issues: []string{}, Warnings: []string{}}

	if t.Len() == 0 {
		res.IsValid = false
		res.Issues = append(res.Issues, "table is empty")
		return res
	}

	for _, col := range core.RequiredColumns {
		if !t.HasColumn(col) {
			res.IsValid = false
			res.Issues = append(res.Issues, fmt.Sprintf("missing required column: %s", col))
			continue
		}
		nulls := 0
		for _, v := range t.Column(col) {
			if core.IsMissing(v) {
				nulls++
			}
		}
		if nulls > 0 {
			res.Warnings = append(res.Warnings, fmt.Sprintf("column %s has %d null values", col, nulls))
		}
	}

	if ids := t.Column(core.ColID); ids != nil {
		seen := make(map[string]int, len(ids))
		for _, v := range ids {
			if core.IsMissing(v) {
				continue
			}
			seen[core.CleanCell(v)]++
		}
		dups := 0
		for _, n := range seen {
			if n > 1 {
				dups += n - 1
			}
		}
		if dups > 0 {
			res.Warnings = append(res.Warnings, fmt.Sprintf("found %d duplicate ids", dups))
		}
	}

	for _, col := range numericColumns {
		values := t.Column(col)
		if values == nil {
			continue
		}
		bad := 0
		for _, v := range values {
			if core.IsMissing(v) {
				continue
			}
			if _, ok := core.ParseFloat(v); !ok {
				bad++
			}
		}
		if bad > 0 {
			res.Warnings = append(res.Warnings, fmt.Sprintf("column %s has %d non-numeric values", col, bad))
		}
	}

	return res
}

// ValidateRecords checks cleaned records the same way.
func ValidateRecords(recs []core.Creature) IntegrityResult {
	return ValidateIntegrity(core.CreaturesToTable(recs))
}
