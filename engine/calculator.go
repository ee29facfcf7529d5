/*
calculator.go - Per-employee incentive calculation

PURPOSE:
  For each employee aggregate, resolves the applicable structured rule per
  vehicle type and applies the configured ad-hoc policy, producing one
  IncentiveBreakdown per employee.

INVARIANTS ENFORCED HERE:
  - At most one structured rule per (employee, vehicle type, period):
    RuleSet.Match returns a single winner, and each vehicle type is
    visited exactly once.
  - A missing rule match contributes zero; it is a policy gap, not an error.
  - Ad-hoc items without a numeric amount are recorded in the breakdown but
    never added to the total.

SEE ALSO:
  - rules.go: Slab resolution and tie-break
  - adhoc.go: Ad-hoc policy variants
  - assemble.go: Rounding, status, and run summary
*/
package engine

import "github.com/shopspring/decimal"

// Calculator computes breakdowns from aggregates against a rule snapshot.
// Both fields are immutable for the lifetime of a run.
type Calculator struct {
	Rules *RuleSet
	AdHoc AdHocPolicy
}

// Calculate produces one raw breakdown per aggregate, in input order.
// Totals are exact decimals; rounding happens at assembly.
func (c *Calculator) Calculate(aggregates []EmployeeAggregate, branches BranchTotals) []IncentiveBreakdown {
	period := c.Rules.Period()
	results := make([]IncentiveBreakdown, 0, len(aggregates))

	for _, emp := range aggregates {
		b := IncentiveBreakdown{
			EmployeeID:      emp.EmployeeID,
			Period:          period.Key(),
			StructuredTotal: decimal.Zero,
			AdHocTotal:      decimal.Zero,
		}

		for _, v := range emp.Vehicles {
			rule, ok := c.Rules.Match(emp.Role, v.Key, v.Units)
			if !ok {
				continue
			}
			amount := rule.Amount(v.Units)
			b.Structured = append(b.Structured, RuleApplication{
				RuleID:      rule.ID,
				VehicleType: v.Type,
				Units:       v.Units,
				Amount:      amount,
			})
			b.StructuredTotal = b.StructuredTotal.Add(amount)
		}

		if c.AdHoc != nil {
			apps, total := c.AdHoc.Apply(emp, branches[emp.Branch], period)
			b.AdHoc = apps
			b.AdHocTotal = total
		}

		b.Total = b.StructuredTotal.Add(b.AdHocTotal)
		results = append(results, b)
	}

	return results
}
