/*
assemble.go - Result assembly and run summary

PURPOSE:
  Packages raw per-employee breakdowns into the output contract consumed by
  reporting: monetary values rounded to 2 decimals, a threshold-based status
  flag, and run-level summary statistics (record count, total incentive,
  top performer).

STATUS DERIVATION:
  "Completed" when total > 0, otherwise "No Incentive". This is a documented
  reporting heuristic; a zero total is a legitimate outcome, not a failure.

TOP PERFORMER:
  The employee with the maximum total. Ties break by first-seen order, which
  is employee-ID order out of the aggregator, so reruns agree.

SEE ALSO:
  - calculator.go: Produces the raw breakdowns
  - types.go: IncentiveBreakdown, Diagnostic
*/
package engine

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Summary holds run-level statistics for reporting.
type Summary struct {
	RunID          string
	Period         string
	Processed      int
	TotalIncentive decimal.Decimal
	AvgIncentive   decimal.Decimal
	TopPerformer   EmployeeID
}

// RunResult is the full payload of one calculation pass: the records the
// caller persists, the summary it reports, and any per-input diagnostics.
type RunResult struct {
	Summary     Summary
	Results     []IncentiveBreakdown
	Diagnostics []Diagnostic
}

// Assemble finalizes breakdowns (rounding, status) and computes the summary.
// The input slice is modified in place and returned inside the RunResult.
func Assemble(period Period, breakdowns []IncentiveBreakdown, diags []Diagnostic) *RunResult {
	total := decimal.Zero
	var top EmployeeID
	var topAmount decimal.Decimal

	for i := range breakdowns {
		b := &breakdowns[i]
		b.StructuredTotal = b.StructuredTotal.Round(2)
		b.AdHocTotal = b.AdHocTotal.Round(2)
		b.Total = b.Total.Round(2)
		for j := range b.Structured {
			b.Structured[j].Amount = b.Structured[j].Amount.Round(2)
		}
		for j := range b.AdHoc {
			if b.AdHoc[j].Amount != nil {
				rounded := b.AdHoc[j].Amount.Round(2)
				b.AdHoc[j].Amount = &rounded
			}
		}

		if b.Total.IsPositive() {
			b.Status = StatusCompleted
		} else {
			b.Status = StatusNoIncentive
		}

		total = total.Add(b.Total)
		if top == "" || b.Total.GreaterThan(topAmount) {
			top = b.EmployeeID
			topAmount = b.Total
		}
	}

	avg := decimal.Zero
	if len(breakdowns) > 0 {
		avg = total.Div(decimal.NewFromInt(int64(len(breakdowns)))).Round(2)
	}

	return &RunResult{
		Summary: Summary{
			RunID:          uuid.NewString(),
			Period:         period.Key(),
			Processed:      len(breakdowns),
			TotalIncentive: total,
			AvgIncentive:   avg,
			TopPerformer:   top,
		},
		Results:     breakdowns,
		Diagnostics: diags,
	}
}
