package clean

import (
	"fmt"
	"strings"

	"github.com/JonMunkholm/creature-etl/internal/core"
)

// DefaultColumnMap maps the headers of the standard creature export to
// canonical column names.
var DefaultColumnMap = map[string]string{
	"#":          core.ColID,
	"Name":       core.ColName,
	"Type 1":     core.ColPrimaryType,
	"Type 2":     core.ColSecondaryType,
	"Total":      core.ColTotalPower,
	"HP":         core.ColHP,
	"Attack":     core.ColAttack,
	"Defense":    core.ColDefense,
	"Sp. Atk":    core.ColSpecialAttack,
	"Sp. Def":    core.ColSpecialDefense,
	"Speed":      core.ColSpeed,
	"Generation": core.ColGeneration,
	"Legendary":  core.ColIsLegendary,
}

// inputColumns are the canonical columns read from input, in output order.
// Derived columns are always recomputed and never read.
var inputColumns = []string{
	core.ColID,
	core.ColName,
	core.ColPrimaryType,
	core.ColSecondaryType,
	core.ColTotalPower,
	core.ColHP,
	core.ColAttack,
	core.ColDefense,
	core.ColSpecialAttack,
	core.ColSpecialDefense,
	core.ColSpeed,
	core.ColGeneration,
	core.ColIsLegendary,
}

// requiredInputColumns must survive renaming.
var requiredInputColumns = []string{core.ColName, core.ColPrimaryType}

// lookupKey normalizes a header for matching.
func lookupKey(h string) string {
	return strings.ToLower(core.CleanCell(h))
}

// buildLookup merges the column map with identity entries.
func buildLookup(m map[string]string) map[string]string {
	lookup := make(map[string]string, len(m)+len(inputColumns))
	for _, c := range inputColumns {
		lookup[c] = c
	}
	for raw, canonical := range m {
		lookup[lookupKey(raw)] = canonical
	}
	return lookup
}

// renameColumns projects t onto inputColumns. Unknown columns are dropped;
// absent optional columns are added empty. The first source column mapped to
// a canonical name wins.
func renameColumns(t core.Table, p Policy, rep *Report) (core.Table, error) {
	lookup := buildLookup(p.ColumnMap)

	source := make(map[string]int, len(inputColumns))
	for i, h := range t.Header {
		canonical, ok := lookup[lookupKey(h)]
		if !ok {
			rep.DroppedColumns = append(rep.DroppedColumns, h)
			continue
		}
		if _, dup := source[canonical]; dup {
			rep.DroppedColumns = append(rep.DroppedColumns, h)
			continue
		}
		source[canonical] = i
	}

	var missing []string
	for _, c := range requiredInputColumns {
		if _, ok := source[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return core.Table{}, fmt.Errorf("%w: %s", core.ErrMissingColumn, strings.Join(missing, ", "))
	}

	out := core.Table{
		Header: append([]string(nil), inputColumns...),
		Rows:   make([][]string, len(t.Rows)),
	}
	for _, c := range inputColumns {
		if _, ok := source[c]; !ok {
			rep.AddedColumns = append(rep.AddedColumns, c)
		}
	}

	for r, row := range t.Rows {
		newRow := make([]string, len(inputColumns))
		for j, c := range inputColumns {
			if pos, ok := source[c]; ok && pos < len(row) {
				newRow[j] = row[pos]
			}
		}
		out.Rows[r] = newRow
	}
	return out, nil
}
