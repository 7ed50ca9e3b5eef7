package load

import (
	"slices"
	"unsafe"

	"github.com/JonMunkholm/creature-etl/internal/core"
)

// sampleRecords is the number of records in a LoadSummary.
const sampleRecords = 3

// LoadSummary describes the data about to be loaded.
type LoadSummary struct {
	Timestamp      string              `json:"timestamp"`
	RecordCount    int                 `json:"record_count"`
	Columns        []string            `json:"columns"`
	MemoryEstimate int64               `json:"memory_estimate_bytes"`
	SampleRows     []map[string]string `json:"sample_rows"`
}

// Summary describes recs under the loader's timestamp.
func (l *Loader) Summary(recs []core.Creature) LoadSummary {
	n := min(len(recs), sampleRecords)
	return LoadSummary{
		Timestamp:      l.timestamp,
		RecordCount:    len(recs),
		Columns:        slices.Clone(core.CreatureColumns),
		MemoryEstimate: memoryEstimate(recs),
		SampleRows:     core.CreaturesToTable(recs[:n]).Records(),
	}
}

// memoryEstimate approximates the in-memory size of recs: the structs, the
// values their pointers refer to, and string contents.
func memoryEstimate(recs []core.Creature) int64 {
	const word = int64(unsafe.Sizeof(int64(0)))
	total := int64(len(recs)) * int64(unsafe.Sizeof(core.Creature{}))
	for i := range recs {
		c := &recs[i]
		for _, s := range []string{c.Name, c.PrimaryType, c.SecondaryType, c.VariantForm, c.TypeCombination, c.PowerCategory} {
			total += int64(len(s))
		}
		for _, p := range []*int64{c.ID, c.HP, c.Attack, c.Defense, c.SpecialAttack, c.SpecialDefense,
			c.Speed, c.TotalPower, c.Generation, c.OffensivePower, c.DefensivePower} {
			if p != nil {
				total += word
			}
		}
		if c.AttackDefenseRatio != nil {
			total += word
		}
	}
	return total
}
