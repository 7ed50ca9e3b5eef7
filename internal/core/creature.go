package core

import (
	"fmt"
	"strings"
)

// Sentinels stored in place of an absent value.
const (
	NoSecondaryType = "None"
	BaseForm        = "Base Form"
)

// Power bands, highest first.
const (
	PowerVeryHigh = "Very High"
	PowerHigh     = "High"
	PowerMedium   = "Medium"
	PowerLow      = "Low"
	PowerVeryLow  = "Very Low"
)

// PowerCategories lists every band, highest first.
var PowerCategories = []string{PowerVeryHigh, PowerHigh, PowerMedium, PowerLow, PowerVeryLow}

var powerBands = []struct {
	min   int64
	label string
}{
	{600, PowerVeryHigh},
	{500, PowerHigh},
	{400, PowerMedium},
	{300, PowerLow},
}

// PowerCategoryFor returns the band a total power falls into.
// Lower bounds are inclusive. A nil total falls into the lowest band.
func PowerCategoryFor(total *int64) string {
	if total == nil {
		return PowerVeryLow
	}
	for _, b := range powerBands {
		if *total >= b.min {
			return b.label
		}
	}
	return PowerVeryLow
}

// TypeCombination joins the two types, or returns the primary type alone when
// the secondary one is empty or equal to sentinel.
func TypeCombination(primary, secondary, sentinel string) string {
	if secondary == "" || secondary == sentinel {
		return primary
	}
	return primary + "/" + secondary
}

// Derive recomputes every derived field from the base stats.
func (c *Creature) Derive() {
	c.OffensivePower = addInts(c.Attack, c.SpecialAttack)
	c.DefensivePower = addInts(c.Defense, c.SpecialDefense)
	c.AttackDefenseRatio = nil
	if c.OffensivePower != nil && c.DefensivePower != nil {
		ratio := float64(*c.OffensivePower) / float64(*c.DefensivePower+1)
		c.AttackDefenseRatio = &ratio
	}
	c.PowerCategory = PowerCategoryFor(c.TotalPower)
	if c.TypeCombination == "" {
		c.TypeCombination = TypeCombination(c.PrimaryType, c.SecondaryType, NoSecondaryType)
	}
}

func addInts(a, b *int64) *int64 {
	if a == nil || b == nil {
		return nil
	}
	sum := *a + *b
	return &sum
}

// Stats returns the six base stats keyed by column name.
func (c *Creature) Stats() map[string]*int64 {
	return map[string]*int64{
		ColHP:             c.HP,
		ColAttack:         c.Attack,
		ColDefense:        c.Defense,
		ColSpecialAttack:  c.SpecialAttack,
		ColSpecialDefense: c.SpecialDefense,
		ColSpeed:          c.Speed,
	}
}

// Validate returns every problem with the record, or nil if there are none.
func (c *Creature) Validate() []string {
	var problems []string
	if strings.TrimSpace(c.Name) == "" {
		problems = append(problems, "name is required")
	}
	if strings.TrimSpace(c.PrimaryType) == "" {
		problems = append(problems, "primary_type is required")
	}
	for _, col := range StatColumns {
		if v := c.Stats()[col]; v != nil && *v < 0 {
			problems = append(problems, fmt.Sprintf("%s must not be negative (got %d)", col, *v))
		}
	}
	if c.Generation != nil && *c.Generation < 1 {
		problems = append(problems, fmt.Sprintf("generation must be at least 1 (got %d)", *c.Generation))
	}
	return problems
}

// Normalize fills the sentinels for empty optional text fields and recomputes
// derived fields. Used for records created outside the cleaner.
func (c *Creature) Normalize() {
	c.Name = strings.TrimSpace(c.Name)
	c.PrimaryType = strings.TrimSpace(c.PrimaryType)
	c.SecondaryType = strings.TrimSpace(c.SecondaryType)
	if c.SecondaryType == "" {
		c.SecondaryType = NoSecondaryType
	}
	if strings.TrimSpace(c.VariantForm) == "" {
		c.VariantForm = BaseForm
	}
	c.TypeCombination = TypeCombination(c.PrimaryType, c.SecondaryType, NoSecondaryType)
	c.Derive()
}

// Values renders the record as strings in CreatureColumns order.
func (c *Creature) Values() []string {
	return []string{
		FormatInt(c.ID),
		c.Name,
		c.PrimaryType,
		c.SecondaryType,
		FormatInt(c.HP),
		FormatInt(c.Attack),
		FormatInt(c.Defense),
		FormatInt(c.SpecialAttack),
		FormatInt(c.SpecialDefense),
		FormatInt(c.Speed),
		FormatInt(c.TotalPower),
		FormatInt(c.Generation),
		FormatBool(c.IsLegendary),
		FormatBool(c.IsVariant),
		c.VariantForm,
		c.TypeCombination,
		FormatInt(c.OffensivePower),
		FormatInt(c.DefensivePower),
		FormatFloat(c.AttackDefenseRatio),
		c.PowerCategory,
	}
}

// Key identifies a record by the full set of its values.
// Two records with the same key are exact duplicates.
func (c *Creature) Key() string {
	return strings.Join(c.Values(), "\x1f")
}

// CreaturesToTable builds a Table with CreatureColumns from records.
func CreaturesToTable(recs []Creature) Table {
	t := Table{
		Header: append([]string(nil), CreatureColumns...),
		Rows:   make([][]string, len(recs)),
	}
	for i := range recs {
		t.Rows[i] = recs[i].Values()
	}
	return t
}
