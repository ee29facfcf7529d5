/*
rules.go - Immutable per-run rule snapshot and slab resolution

PURPOSE:
  RuleSet is the in-memory view of all incentive policy valid for one
  calculation pass. It is built once at the start of a run from the raw rule
  and scheme rows and never mutated afterwards, so calculation stays
  deterministic and testable in isolation.

NORMALIZATION:
  Roles and vehicle types are canonicalized exactly once, here. Matching
  later in the run is plain string equality on the canonical keys.

SLAB RESOLUTION:
  Match() implements the tie-break contract: among all bands containing the
  quantity, the one with the greatest min_units (tightest fit) wins. Two
  bands sharing the same min_units is a configuration error; the engine
  deterministically picks the lexicographically smallest rule ID so that
  recalculation never flip-flops.

SEE ALSO:
  - calculator.go: Consumes Match() per (employee, vehicle type)
  - types.go: StructuredRule, AdHocScheme
*/
package engine

import "sort"

// =============================================================================
// RULE SET - Snapshot of policy active for one period
// =============================================================================

type slabKey struct {
	role        string
	vehicleType string
}

// RuleSet holds the structured rules and ad-hoc schemes active for a period.
// Construct with NewRuleSet; the zero value matches nothing.
type RuleSet struct {
	period     Period
	structured map[slabKey][]StructuredRule
	schemes    []AdHocScheme
}

// NewRuleSet filters the inputs down to the period and canonicalizes
// role/vehicle-type casing. Structured rules must have a validity window
// fully covering the period; schemes only need to overlap it.
func NewRuleSet(period Period, rules []StructuredRule, schemes []AdHocScheme) *RuleSet {
	rs := &RuleSet{
		period:     period,
		structured: make(map[slabKey][]StructuredRule),
	}

	for _, r := range rules {
		if !r.ActiveIn(period) {
			continue
		}
		r.Role = Canon(r.Role)
		k := slabKey{role: r.Role, vehicleType: Canon(r.VehicleType)}
		rs.structured[k] = append(rs.structured[k], r)
	}

	// Stable candidate order: most-specific first, then rule ID.
	for k := range rs.structured {
		slabs := rs.structured[k]
		sort.Slice(slabs, func(i, j int) bool {
			if slabs[i].MinUnits != slabs[j].MinUnits {
				return slabs[i].MinUnits > slabs[j].MinUnits
			}
			return slabs[i].ID < slabs[j].ID
		})
	}

	for _, s := range schemes {
		if !s.ActiveIn(period) {
			continue
		}
		roles := make([]string, len(s.Roles))
		for i, role := range s.Roles {
			roles[i] = Canon(role)
		}
		s.Roles = roles
		rs.schemes = append(rs.schemes, s)
	}

	return rs
}

// Period returns the period this snapshot was built for.
func (rs *RuleSet) Period() Period { return rs.period }

// StructuredCount returns the number of active structured rules.
func (rs *RuleSet) StructuredCount() int {
	n := 0
	for _, slabs := range rs.structured {
		n += len(slabs)
	}
	return n
}

// Schemes returns the ad-hoc schemes overlapping the period.
func (rs *RuleSet) Schemes() []AdHocScheme { return rs.schemes }

// Match resolves the single structured rule applying to (role, vehicleType,
// quantity), both already canonical. Returns false if no band contains the
// quantity — a policy gap, not an error.
func (rs *RuleSet) Match(role, vehicleTypeKey string, quantity int) (StructuredRule, bool) {
	slabs := rs.structured[slabKey{role: role, vehicleType: vehicleTypeKey}]
	for _, r := range slabs {
		if r.Contains(quantity) {
			// Candidates are pre-sorted tightest-first, so the first hit
			// is the winner.
			return r, true
		}
	}
	return StructuredRule{}, false
}

// Validate reports ambiguous slab configurations: two rules for the same
// (role, vehicle type) sharing min_units with overlapping bands. Calculation
// does not call this; it is for upload-time policy checks.
func (rs *RuleSet) Validate() []error {
	var errs []error
	for k, slabs := range rs.structured {
		for i := 1; i < len(slabs); i++ {
			if slabs[i].MinUnits == slabs[i-1].MinUnits {
				errs = append(errs, &AmbiguousRuleError{
					Role:        k.role,
					VehicleType: k.vehicleType,
					Quantity:    slabs[i].MinUnits,
					RuleA:       slabs[i-1].ID,
					RuleB:       slabs[i].ID,
				})
			}
		}
	}
	return errs
}
