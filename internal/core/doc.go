// Package core holds the domain model shared by every stage of the creature
// ETL pipeline.
//
// The package has no I/O of its own. It defines the interchange types that
// flow between the stages and the error taxonomy they report with:
//
//   - [Table]: a loosely typed, string-celled table. The extractor produces
//     one, the early cleaning passes transform one, and the loader validates
//     one before persisting.
//   - [Creature]: the canonical record after cleaning. Optional numeric
//     attributes are pointers so that a value that failed coercion stays
//     distinguishable from a real zero.
//   - [ValidationWarning]: a per-row anomaly that was corrected or recorded
//     without aborting a pass.
//
// # Derived Fields
//
// Derived attributes are never trusted from input. [Creature.Derive] recomputes
// them from the base stats:
//
//	offensive_power      = attack + special_attack
//	defensive_power      = defense + special_defense
//	attack_defense_ratio = offensive_power / (defensive_power + 1)
//	power_category       = band of total_power (see [PowerCategoryFor])
//
// # Error Handling
//
// Structural failures are sentinel errors wrapped with context:
//
//   - [ErrNotFound], [ErrParse]: the input could not be read
//   - [ErrIntegrity], [ErrMissingColumn]: a precondition failed before loading
//   - [ErrPersistence]: a sink failed; see [SinkError]
//
// Technical errors are mapped to user-facing messages with [MapError].
package core
