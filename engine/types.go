/*
Package engine provides the core sales-incentive computation engine.

PURPOSE:
  This package contains the types and algorithms for turning a month of
  sales facts plus a set of incentive policies into per-employee payout
  breakdowns. It has no I/O: callers load the inputs, the engine computes,
  callers persist the outputs.

KEY CONCEPTS IN THIS FILE (types.go):
  - SalesFact: One validated sales row (employee, vehicle, quantity, date)
  - StructuredRule: A slab-based incentive band (role + vehicle type + units)
  - AdHocScheme: A bonus directive parsed from free scheme text
  - EmployeeAggregate: Per-employee unit totals for one calculation run
  - IncentiveBreakdown: The itemized result for one (employee, period)

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal for all monetary amounts
  2. Immutability: Inputs are snapshotted once per run, never mutated
  3. Determinism: Same inputs always produce identical breakdowns
  4. Canonical casing: Roles and vehicle types are normalized at ingestion,
     never re-normalized at comparison time

USAGE:
  result, err := engine.Run(engine.RunInput{
      Period: period,
      Facts:  facts,
      Roster: roster,
      Rules:  rules,
      AdHoc:  engine.NewSchemeBonusPolicy(schemes),
  })

SEE ALSO:
  - rules.go: RuleSet snapshot and slab resolution
  - aggregate.go: Sales aggregation
  - calculator.go: Per-employee calculation
  - assemble.go: Result assembly and run summary
*/
package engine

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EmployeeID string
type RuleID string
type SchemeID string

// =============================================================================
// CANONICAL CASING
// =============================================================================

// Canon returns the canonical matching key for a role or vehicle type:
// upper-cased with runs of whitespace collapsed. Normalization happens once
// at snapshot/aggregate construction; comparisons are then exact.
func Canon(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), " "))
}

// =============================================================================
// SALES FACT - One validated sales row
// =============================================================================

// SalesFact is an immutable, already-validated sales record.
// Quantity is always >= 1 by the time it reaches the engine.
type SalesFact struct {
	EmployeeID   EmployeeID
	Branch       string
	Role         string
	VehicleModel string
	VehicleType  string
	Quantity     int
	SaleDate     Date
}

// Salesperson is a master record for an employee. The roster is authoritative
// for role and branch; employees seen only in sales rows fall back to their
// first observed row.
type Salesperson struct {
	ID     EmployeeID
	Branch string
	Role   string
}

// =============================================================================
// STRUCTURED RULE - Slab-based incentive band
// =============================================================================

// StructuredRule is one slab of a structured incentive policy.
// MaxUnits == nil means the band is unbounded above.
type StructuredRule struct {
	ID           RuleID
	Role         string
	VehicleType  string
	MinUnits     int
	MaxUnits     *int
	BaseAmount   decimal.Decimal
	BonusPerUnit decimal.Decimal
	ValidFrom    Date
	ValidTo      Date
}

// ActiveIn reports whether the rule's validity window fully covers the
// period: valid_from <= period_start AND valid_to >= period_end. A rule
// that expires mid-month never applies to that month.
func (r StructuredRule) ActiveIn(p Period) bool {
	return r.ValidFrom.BeforeOrEqual(p.Start) && r.ValidTo.AfterOrEqual(p.End)
}

// Contains reports whether the employee's aggregated quantity falls inside
// the rule's unit band.
func (r StructuredRule) Contains(quantity int) bool {
	if quantity < r.MinUnits {
		return false
	}
	return r.MaxUnits == nil || *r.MaxUnits >= quantity
}

// Amount computes the payout for a quantity inside the band:
// base + (quantity - min_units) * bonus_per_unit.
func (r StructuredRule) Amount(quantity int) decimal.Decimal {
	extra := quantity - r.MinUnits
	if extra < 0 {
		extra = 0
	}
	return r.BaseAmount.Add(r.BonusPerUnit.Mul(decimal.NewFromInt(int64(extra))))
}

// =============================================================================
// AD-HOC SCHEME - Parsed free-text bonus directive
// =============================================================================

// RoleAll is the wildcard role token: the scheme applies to every role.
const RoleAll = "ALL"

// AdHocScheme is one machine-evaluable record derived from free scheme text.
// Exactly one of three shapes:
//   - fixed bonus:  Amount != nil
//   - variable:     Amount == nil, Variable != "" (e.g. "2x")
//   - note:         Amount == nil, Note == true
//
// Variable and note records appear in breakdowns for documentation but never
// contribute to the numeric total.
type AdHocScheme struct {
	ID        SchemeID
	Name      string
	Condition string
	Roles     []string // canonical role tokens, may contain RoleAll
	Amount    *decimal.Decimal
	Variable  string
	Note      bool
	ValidFrom Date
	ValidTo   Date
}

// EligibleRole reports whether the scheme applies to the given canonical role.
func (s AdHocScheme) EligibleRole(role string) bool {
	for _, r := range s.Roles {
		if r == RoleAll || r == role {
			return true
		}
	}
	return false
}

// ActiveIn reports whether the scheme's validity window overlaps the period.
// Unlike structured rules, a partial overlap is enough: schemes are short
// promotional windows that rarely span a whole month.
func (s AdHocScheme) ActiveIn(p Period) bool {
	return p.Overlaps(s.ValidFrom, s.ValidTo)
}

// =============================================================================
// EMPLOYEE AGGREGATE - Per-run unit totals
// =============================================================================

// VehicleUnits is the summed quantity for one vehicle type.
// Type keeps the display form as first observed; matching uses the
// canonical key computed at aggregation time.
type VehicleUnits struct {
	Type  string
	Key   string
	Units int
}

// EmployeeAggregate is one employee's totals for a calculation run.
// Vehicles is sorted by canonical key so iteration order is deterministic.
type EmployeeAggregate struct {
	EmployeeID EmployeeID
	Role       string // canonical
	Branch     string
	Vehicles   []VehicleUnits
	TotalUnits int
}

func (a *EmployeeAggregate) sortVehicles() {
	sort.Slice(a.Vehicles, func(i, j int) bool {
		return a.Vehicles[i].Key < a.Vehicles[j].Key
	})
}

// =============================================================================
// BREAKDOWN - Itemized result for one (employee, period)
// =============================================================================

// RuleApplication records one structured rule contributing to a breakdown.
type RuleApplication struct {
	RuleID      RuleID
	VehicleType string
	Units       int
	Amount      decimal.Decimal
}

// SchemeApplication records one ad-hoc item in a breakdown. Amount is nil
// for notes and variable-amount lines: those document, they never pay.
type SchemeApplication struct {
	SchemeID  SchemeID
	Condition string
	Amount    *decimal.Decimal
	Variable  string
	Note      bool
}

// Breakdown statuses. Threshold-based: a positive total means the employee
// earned something this period. This is a reporting heuristic, not a
// correctness signal.
const (
	StatusCompleted   = "Completed"
	StatusNoIncentive = "No Incentive"
)

// IncentiveBreakdown is the result record for one (employee, period) key.
// Recalculation replaces the prior record for the same key.
type IncentiveBreakdown struct {
	EmployeeID      EmployeeID
	Period          string // "YYYY-MM"
	Structured      []RuleApplication
	AdHoc           []SchemeApplication
	StructuredTotal decimal.Decimal
	AdHocTotal      decimal.Decimal
	Total           decimal.Decimal
	Status          string
}

// =============================================================================
// DIAGNOSTICS - Per-row / per-block failures carried alongside results
// =============================================================================

// Diagnostic identifies one input element that failed without aborting the
// run. Diagnostics are data for display, never silently dropped.
type Diagnostic struct {
	Source  string // "scheme_block", "sales_row", "rule_row"
	Ref     string // block id, row number, rule id
	Message string
}
