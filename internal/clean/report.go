package clean

import (
	"fmt"
	"math"
	"slices"

	"github.com/JonMunkholm/creature-etl/internal/core"
)

// Report records what the cleaner changed.
type Report struct {
	InputRows  int `json:"input_rows"`
	OutputRows int `json:"output_rows"`

	DroppedColumns []string `json:"dropped_columns,omitempty"`
	AddedColumns   []string `json:"added_columns,omitempty"`

	Filled     map[string]int    `json:"filled"`
	FillValues map[string]string `json:"fill_values"`
	Coerced    map[string]int    `json:"coerced"`
	Clamped    map[string]int    `json:"clamped"`

	ExactDuplicates int      `json:"exact_duplicates"`
	NameDuplicates  int      `json:"name_duplicates"`
	DuplicateNames  []string `json:"duplicate_names,omitempty"`

	Warnings []core.ValidationWarning `json:"warnings"`
}

func newReport(inputRows int) *Report {
	return &Report{
		InputRows:  inputRows,
		Filled:     make(map[string]int),
		FillValues: make(map[string]string),
		Coerced:    make(map[string]int),
		Clamped:    make(map[string]int),
		Warnings:   []core.ValidationWarning{},
	}
}

// RemovedRows returns the number of rows dropped as duplicates.
func (r *Report) RemovedRows() int {
	return r.ExactDuplicates + r.NameDuplicates
}

func (r *Report) fill(row int, field, old, value string) {
	r.Filled[field]++
	r.Warnings = append(r.Warnings, core.ValidationWarning{
		Row:       row,
		Field:     field,
		Value:     old,
		NewValue:  value,
		Operation: core.OpFilled,
		Message:   fmt.Sprintf("missing value filled with %q", value),
	})
}

// coerceFill records an unparseable stat replaced by the fill value.
func (r *Report) coerceFill(row int, field, old, value string) {
	r.Coerced[field]++
	r.Warnings = append(r.Warnings, core.ValidationWarning{
		Row:       row,
		Field:     field,
		Value:     old,
		NewValue:  value,
		Operation: core.OpCoerced,
		Message:   fmt.Sprintf("not a number, filled with %q", value),
	})
}

func (r *Report) coerce(row int, field, value string) {
	r.Coerced[field]++
	msg := "not a number, set to null"
	if field == core.ColIsLegendary {
		msg = "not a recognized boolean, set to false"
	}
	r.Warnings = append(r.Warnings, core.ValidationWarning{
		Row:       row,
		Field:     field,
		Value:     value,
		Operation: core.OpCoerced,
		Message:   msg,
	})
}

func (r *Report) clamp(row int, field string, value int64) {
	r.Clamped[field]++
	r.Warnings = append(r.Warnings, core.ValidationWarning{
		Row:       row,
		Field:     field,
		Value:     fmt.Sprint(value),
		NewValue:  "0",
		Operation: core.OpClamped,
		Message:   "negative stat clamped to 0",
	})
}

func (r *Report) invalid(row int, field, value, msg string) {
	r.Warnings = append(r.Warnings, core.ValidationWarning{
		Row:       row,
		Field:     field,
		Value:     value,
		Operation: core.OpInvalid,
		Message:   msg,
	})
}

func (r *Report) duplicate(row int, name, msg string) {
	r.Warnings = append(r.Warnings, core.ValidationWarning{
		Row:       row,
		Field:     core.ColName,
		Value:     name,
		Operation: core.OpDuplicate,
		Message:   msg,
	})
}

// PowerStats describes total_power over records where it is known.
type PowerStats struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Min    int64   `json:"min"`
	Max    int64   `json:"max"`
}

// Summary describes a cleaned dataset.
type Summary struct {
	RecordCount    int            `json:"record_count"`
	Columns        []string       `json:"columns"`
	PrimaryTypes   map[string]int `json:"primary_types"`
	LegendaryCount int            `json:"legendary_count"`
	VariantCount   int            `json:"variant_count"`
	Generations    []int64        `json:"generations"`
	Power          PowerStats     `json:"power"`
}

// Summarize computes the Summary of recs.
func Summarize(recs []core.Creature) Summary {
	s := Summary{
		RecordCount:  len(recs),
		Columns:      slices.Clone(core.CreatureColumns),
		PrimaryTypes: make(map[string]int),
		Generations:  []int64{},
	}

	gens := make(map[int64]struct{})
	var totals []float64
	for i := range recs {
		c := &recs[i]
		s.PrimaryTypes[c.PrimaryType]++
		if c.IsLegendary {
			s.LegendaryCount++
		}
		if c.IsVariant {
			s.VariantCount++
		}
		if c.Generation != nil {
			if _, ok := gens[*c.Generation]; !ok {
				gens[*c.Generation] = struct{}{}
				s.Generations = append(s.Generations, *c.Generation)
			}
		}
		if c.TotalPower != nil {
			v := *c.TotalPower
			if len(totals) == 0 || v < s.Power.Min {
				s.Power.Min = v
			}
			if len(totals) == 0 || v > s.Power.Max {
				s.Power.Max = v
			}
			totals = append(totals, float64(v))
		}
	}
	slices.Sort(s.Generations)

	if len(totals) > 0 {
		var sum float64
		for _, v := range totals {
			sum += v
		}
		s.Power.Count = len(totals)
		s.Power.Mean = math.Round(sum/float64(len(totals))*100) / 100
		s.Power.Median, _ = median(totals)
	}
	return s
}
