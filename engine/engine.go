/*
engine.go - Run orchestration

PURPOSE:
  Wires the pipeline for one calculation pass:

    facts/roster --> Aggregate --> aggregates + branch totals
    rules/schemes -> NewRuleSet -> snapshot
    both ---------> Calculator -> raw breakdowns
    breakdowns ----> Assemble --> RunResult

  Run is synchronous and pure: all inputs arrive up front as immutable
  snapshots, no I/O happens inside, and a rerun with identical inputs
  produces identical records (the run ID aside).

SEE ALSO:
  - aggregate.go, rules.go, calculator.go, assemble.go
*/
package engine

// RunInput carries everything one calculation pass needs.
type RunInput struct {
	Period Period
	Facts  []SalesFact
	Roster []Salesperson
	Rules  []StructuredRule

	// Schemes feed the rule snapshot; they only matter when AdHoc is a
	// scheme-based policy, but keeping them here lets the snapshot stay
	// the single source of period-filtered policy.
	Schemes []AdHocScheme

	// AdHoc selects the active ad-hoc policy variant. Nil disables the
	// ad-hoc portion entirely (structured slabs only).
	AdHoc AdHocPolicy

	// Diagnostics collected upstream (bad scheme blocks, rejected rows)
	// are threaded through to the RunResult untouched.
	Diagnostics []Diagnostic
}

// Run executes one full calculation pass.
//
// Error contract:
//   - ErrNoSalesData: the period has no sales rows; callers report
//     "0 processed", not a failure.
//   - ErrNoActiveRules: no structured rule window touches the period;
//     the whole request is rejected.
func Run(in RunInput) (*RunResult, error) {
	rules := NewRuleSet(in.Period, in.Rules, in.Schemes)
	if rules.StructuredCount() == 0 {
		return nil, ErrNoActiveRules
	}

	aggregates, branches, err := Aggregate(in.Facts, in.Roster, in.Period)
	if err != nil {
		return nil, err
	}

	adhoc := in.AdHoc
	if p, ok := adhoc.(*SchemeBonusPolicy); ok && p != nil {
		// Re-bind the policy to the snapshot's filtered, canonicalized
		// schemes so eligibility checks see canonical roles.
		adhoc = NewSchemeBonusPolicy(rules.Schemes())
	}

	calc := &Calculator{Rules: rules, AdHoc: adhoc}
	breakdowns := calc.Calculate(aggregates, branches)

	return Assemble(in.Period, breakdowns, in.Diagnostics), nil
}
