package clean

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/JonMunkholm/creature-etl/internal/core"
)

// ----------------------------------------------------------------------------
// Pass 2: missing values
// ----------------------------------------------------------------------------

// fillMissing replaces a missing secondary type with the sentinel and fills
// missing stat cells per the fill strategy. Statistics are computed over the
// parseable cells of the column; a column without any is left as is unless
// the strategy is zero. Unparseable cells of a filled column get the fill
// value too and are reported as coerced, so no stat is left nil.
func fillMissing(t core.Table, p Policy, rep *Report) core.Table {
	out := t.Clone()
	idx := out.Index()

	if pos, ok := idx[core.ColSecondaryType]; ok {
		for i, row := range out.Rows {
			if core.IsMissing(row[pos]) {
				rep.fill(i+1, core.ColSecondaryType, row[pos], p.SecondaryTypeSentinel)
				row[pos] = p.SecondaryTypeSentinel
			}
		}
	}

	for _, col := range core.StatColumns {
		pos, ok := idx[col]
		if !ok {
			continue
		}

		var values []float64
		var missing, bad []int
		for i, row := range out.Rows {
			if core.IsMissing(row[pos]) {
				missing = append(missing, i)
				continue
			}
			if _, ok := core.ParseInt(row[pos]); !ok {
				bad = append(bad, i)
				continue
			}
			v, _ := core.ParseFloat(row[pos])
			values = append(values, v)
		}
		if len(missing) == 0 && len(bad) == 0 {
			continue
		}

		fill, ok := fillValue(p.FillStrategy, values)
		if !ok {
			continue
		}
		s := strconv.FormatFloat(fill, 'f', -1, 64)
		rep.FillValues[col] = s
		for _, i := range missing {
			rep.fill(i+1, col, out.Rows[i][pos], s)
			out.Rows[i][pos] = s
		}
		for _, i := range bad {
			rep.coerceFill(i+1, col, out.Rows[i][pos], s)
			out.Rows[i][pos] = s
		}
	}

	return out
}

func fillValue(strategy string, values []float64) (float64, bool) {
	switch strategy {
	case FillZero:
		return 0, true
	case FillMean:
		if len(values) == 0 {
			return 0, false
		}
		var sum float64
		for _, v := range values {
			sum += v
		}
		return sum / float64(len(values)), true
	default:
		return median(values)
	}
}

// median returns the middle value, or the mean of the two middle values.
func median(values []float64) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid], true
	}
	return (sorted[mid-1] + sorted[mid]) / 2, true
}

// ----------------------------------------------------------------------------
// Pass 3: names
// ----------------------------------------------------------------------------

// variantPattern matches "<token><whitespace><word>" for any token.
func variantPattern(tokens []string) *regexp.Regexp {
	quoted := make([]string, len(tokens))
	for i, tok := range tokens {
		quoted[i] = regexp.QuoteMeta(tok)
	}
	return regexp.MustCompile(`(?i)(?:` + strings.Join(quoted, "|") + `)\s+\S+`)
}

func isVariant(name string, tokens []string) bool {
	lower := strings.ToLower(name)
	for _, tok := range tokens {
		if strings.Contains(lower, strings.ToLower(tok)) {
			return true
		}
	}
	return false
}

// cleanNames trims names and adds the is_variant and variant_form columns.
func cleanNames(t core.Table, p Policy) core.Table {
	out := t.Clone()
	namePos := out.Index()[core.ColName]
	re := variantPattern(p.VariantTokens)

	out.Header = append(out.Header, core.ColIsVariant, core.ColVariantForm)
	for i, row := range out.Rows {
		name := strings.TrimSpace(row[namePos])
		if core.IsMissing(name) {
			name = ""
		}
		row[namePos] = name

		form := re.FindString(name)
		if form == "" {
			form = p.VariantFormSentinel
		}
		out.Rows[i] = append(row, core.FormatBool(isVariant(name, p.VariantTokens)), form)
	}
	return out
}

// ----------------------------------------------------------------------------
// Pass 4: types
// ----------------------------------------------------------------------------

// standardizeTypes trims and title-cases both types and adds the
// type_combination column.
func standardizeTypes(t core.Table, p Policy) core.Table {
	out := t.Clone()
	idx := out.Index()
	primaryPos := idx[core.ColPrimaryType]
	secondaryPos := idx[core.ColSecondaryType]

	caser := cases.Title(language.Und)
	title := func(s string) string {
		s = strings.TrimSpace(s)
		if core.IsMissing(s) {
			return ""
		}
		return caser.String(s)
	}
	sentinel := title(p.SecondaryTypeSentinel)

	out.Header = append(out.Header, core.ColTypeCombination)
	for i, row := range out.Rows {
		row[primaryPos] = title(row[primaryPos])
		row[secondaryPos] = title(row[secondaryPos])
		out.Rows[i] = append(row, core.TypeCombination(row[primaryPos], row[secondaryPos], sentinel))
	}
	return out
}

// ----------------------------------------------------------------------------
// Pass 5: numeric validation
// ----------------------------------------------------------------------------

// validateNumeric maps each row to a Creature. Unparseable numbers become nil,
// negative stats are clamped to zero, and is_legendary defaults to false.
func validateNumeric(t core.Table, rep *Report) []core.Creature {
	idx := t.Index()
	recs := make([]core.Creature, len(t.Rows))

	for i, row := range t.Rows {
		n := i + 1
		intField := func(col string) *int64 {
			cell := idx.Cell(row, col)
			if core.IsMissing(cell) {
				return nil
			}
			v, ok := core.ParseInt(cell)
			if !ok {
				rep.coerce(n, col, cell)
				return nil
			}
			return &v
		}
		statField := func(col string) *int64 {
			v := intField(col)
			if v != nil && *v < 0 {
				rep.clamp(n, col, *v)
				v = core.Int64(0)
			}
			return v
		}

		c := core.Creature{
			ID:             intField(core.ColID),
			Name:           idx.Cell(row, core.ColName),
			PrimaryType:    idx.Cell(row, core.ColPrimaryType),
			SecondaryType:  idx.Cell(row, core.ColSecondaryType),
			HP:             statField(core.ColHP),
			Attack:         statField(core.ColAttack),
			Defense:        statField(core.ColDefense),
			SpecialAttack:  statField(core.ColSpecialAttack),
			SpecialDefense: statField(core.ColSpecialDefense),
			Speed:          statField(core.ColSpeed),
			TotalPower:     intField(core.ColTotalPower),
			Generation:     intField(core.ColGeneration),
			VariantForm:    idx.Cell(row, core.ColVariantForm),

			TypeCombination: idx.Cell(row, core.ColTypeCombination),
		}
		c.IsVariant, _ = core.ParseBool(idx.Cell(row, core.ColIsVariant))

		if cell := idx.Cell(row, core.ColIsLegendary); !core.IsMissing(cell) {
			v, ok := core.ParseBool(cell)
			if !ok {
				rep.coerce(n, core.ColIsLegendary, cell)
			}
			c.IsLegendary = v
		}

		if c.Generation != nil && *c.Generation < 1 {
			rep.invalid(n, core.ColGeneration, core.FormatInt(c.Generation),
				"generation below 1 kept as is")
		}
		if c.Name == "" {
			rep.invalid(n, core.ColName, "", "name is missing")
		}
		if c.PrimaryType == "" {
			rep.invalid(n, core.ColPrimaryType, "", "primary type is missing")
		}

		recs[i] = c
	}
	return recs
}

// ----------------------------------------------------------------------------
// Pass 6: derived fields
// ----------------------------------------------------------------------------

func addDerived(recs []core.Creature) []core.Creature {
	out := slices.Clone(recs)
	for i := range out {
		out[i].Derive()
	}
	return out
}

// ----------------------------------------------------------------------------
// Pass 7: duplicates
// ----------------------------------------------------------------------------

// removeDuplicates drops records identical to an earlier one, then keeps only
// the first record per name. Both rules look at original order, so a single
// scan gives the same result as applying them one after the other.
func removeDuplicates(recs []core.Creature, rep *Report) []core.Creature {
	out := make([]core.Creature, 0, len(recs))
	seenKeys := make(map[string]struct{}, len(recs))
	seenNames := make(map[string]struct{}, len(recs))
	dupNames := make(map[string]struct{})

	for i := range recs {
		c := recs[i]
		key := c.Key()
		if _, dup := seenKeys[key]; dup {
			rep.ExactDuplicates++
			rep.duplicate(i+1, c.Name, "exact duplicate of an earlier record")
			continue
		}
		seenKeys[key] = struct{}{}

		if _, dup := seenNames[c.Name]; dup {
			rep.NameDuplicates++
			if _, noted := dupNames[c.Name]; !noted {
				dupNames[c.Name] = struct{}{}
				rep.DuplicateNames = append(rep.DuplicateNames, c.Name)
			}
			rep.duplicate(i+1, c.Name, fmt.Sprintf("name %q already used by an earlier record", c.Name))
			continue
		}
		seenNames[c.Name] = struct{}{}

		out = append(out, c)
	}
	return out
}
