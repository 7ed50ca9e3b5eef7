package core

import (
	"strconv"
	"strings"
	"time"
)

// Table is a loosely typed table of string cells.
// Header names are kept exactly as they appear in the source.
type Table struct {
	Header []string
	Rows   [][]string
}

// Len returns the number of data rows.
func (t Table) Len() int {
	return len(t.Rows)
}

// Clone returns a deep copy so the caller can mutate it freely.
func (t Table) Clone() Table {
	out := Table{
		Header: append([]string(nil), t.Header...),
		Rows:   make([][]string, len(t.Rows)),
	}
	for i, row := range t.Rows {
		out.Rows[i] = append([]string(nil), row...)
	}
	return out
}

// Index returns the header index of the table.
func (t Table) Index() HeaderIndex {
	return MakeHeaderIndex(t.Header)
}

// HasColumn reports whether the table has a column with the given name.
func (t Table) HasColumn(name string) bool {
	_, ok := t.Index()[strings.ToLower(name)]
	return ok
}

// Column returns every cell of the named column, or nil if absent.
// Short rows yield an empty cell.
func (t Table) Column(name string) []string {
	pos, ok := t.Index()[strings.ToLower(name)]
	if !ok {
		return nil
	}
	out := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		if pos < len(row) {
			out[i] = row[pos]
		}
	}
	return out
}

// Records returns the rows as header-keyed maps, for display and JSON output.
func (t Table) Records() []map[string]string {
	out := make([]map[string]string, len(t.Rows))
	for i, row := range t.Rows {
		rec := make(map[string]string, len(t.Header))
		for j, h := range t.Header {
			if j < len(row) {
				rec[h] = row[j]
			} else {
				rec[h] = ""
			}
		}
		out[i] = rec
	}
	return out
}

// HeaderIndex maps column names (lowercase) to their position in a row.
type HeaderIndex map[string]int

// Cell returns the cell for the named column, or "" when absent.
func (idx HeaderIndex) Cell(row []string, name string) string {
	pos, ok := idx[strings.ToLower(name)]
	if !ok || pos >= len(row) {
		return ""
	}
	return row[pos]
}

// Column names of a cleaned creature record, in canonical order.
const (
	ColID                 = "id"
	ColName               = "name"
	ColPrimaryType        = "primary_type"
	ColSecondaryType      = "secondary_type"
	ColHP                 = "hp"
	ColAttack             = "attack"
	ColDefense            = "defense"
	ColSpecialAttack      = "special_attack"
	ColSpecialDefense     = "special_defense"
	ColSpeed              = "speed"
	ColTotalPower         = "total_power"
	ColGeneration         = "generation"
	ColIsLegendary        = "is_legendary"
	ColIsVariant          = "is_variant"
	ColVariantForm        = "variant_form"
	ColTypeCombination    = "type_combination"
	ColOffensivePower     = "offensive_power"
	ColDefensivePower     = "defensive_power"
	ColAttackDefenseRatio = "attack_defense_ratio"
	ColPowerCategory      = "power_category"
)

// CreatureColumns lists every column of a cleaned record in output order.
var CreatureColumns = []string{
	ColID, ColName, ColPrimaryType, ColSecondaryType,
	ColHP, ColAttack, ColDefense, ColSpecialAttack, ColSpecialDefense, ColSpeed,
	ColTotalPower, ColGeneration, ColIsLegendary, ColIsVariant, ColVariantForm,
	ColTypeCombination, ColOffensivePower, ColDefensivePower,
	ColAttackDefenseRatio, ColPowerCategory,
}

// StatColumns are the six base stats. They are never negative after cleaning.
var StatColumns = []string{
	ColHP, ColAttack, ColDefense, ColSpecialAttack, ColSpecialDefense, ColSpeed,
}

// RequiredColumns must be present for a table to be loadable.
var RequiredColumns = []string{ColID, ColName, ColPrimaryType}

// Creature is the canonical record produced by the cleaner.
type Creature struct {
	ID             *int64 `json:"id" db:"id"`
	Name           string `json:"name" db:"name"`
	PrimaryType    string `json:"primary_type" db:"primary_type"`
	SecondaryType  string `json:"secondary_type" db:"secondary_type"`
	HP             *int64 `json:"hp" db:"hp"`
	Attack         *int64 `json:"attack" db:"attack"`
	Defense        *int64 `json:"defense" db:"defense"`
	SpecialAttack  *int64 `json:"special_attack" db:"special_attack"`
	SpecialDefense *int64 `json:"special_defense" db:"special_defense"`
	Speed          *int64 `json:"speed" db:"speed"`
	TotalPower     *int64 `json:"total_power" db:"total_power"`
	Generation     *int64 `json:"generation" db:"generation"`
	IsLegendary    bool   `json:"is_legendary" db:"is_legendary"`
	IsVariant      bool   `json:"is_variant" db:"is_variant"`
	VariantForm    string `json:"variant_form" db:"variant_form"`

	TypeCombination    string   `json:"type_combination" db:"type_combination"`
	OffensivePower     *int64   `json:"offensive_power" db:"offensive_power"`
	DefensivePower     *int64   `json:"defensive_power" db:"defensive_power"`
	AttackDefenseRatio *float64 `json:"attack_defense_ratio" db:"attack_defense_ratio"`
	PowerCategory      string   `json:"power_category" db:"power_category"`

	// Set by the relational store only.
	CreatedAt *time.Time `json:"created_at,omitempty" db:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty" db:"updated_at"`
}

// Warning operations recorded by the cleaner.
const (
	OpFilled    = "filled"
	OpCoerced   = "coerced"
	OpClamped   = "clamped"
	OpDuplicate = "duplicate_removed"
	OpInvalid   = "invalid"
)

// ValidationWarning is a per-row or per-field anomaly. It is recorded in a
// running report and never aborts a pass.
type ValidationWarning struct {
	Row       int    `json:"row"` // 1-based data row in the input, 0 if not row-specific
	Field     string `json:"field"`
	Value     string `json:"value,omitempty"`
	NewValue  string `json:"new_value,omitempty"`
	Operation string `json:"operation"`
	Message   string `json:"message"`
}

func (w ValidationWarning) String() string {
	if w.Row > 0 {
		return "row " + strconv.Itoa(w.Row) + ": " + w.Field + ": " + w.Message
	}
	if w.Field != "" {
		return w.Field + ": " + w.Message
	}
	return w.Message
}
