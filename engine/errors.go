/*
errors.go - Centralized error types for the incentive engine

PURPOSE:
  All engine error types in one place for consistency and discoverability.
  Outer layers (ingest, api, store) wrap these with their own context.

ERROR CATEGORIES:
  1. Input format errors - Reject the whole request, nothing partial produced
  2. Policy resolution gaps - NOT errors; contributions are simply zero
  3. Per-row / per-block errors - Captured as Diagnostics, run continues

USAGE:
  if errors.Is(err, engine.ErrNoSalesData) {
      // friendly "no data for period" response, not a failure
  }

SEE ALSO:
  - types.go: Diagnostic type for per-row failures
  - api/handlers.go: HTTP status mapping via IsClientError
*/
package engine

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidPeriod is returned for a period string not in YYYY-MM form.
	ErrInvalidPeriod = errors.New("invalid period")

	// ErrNoSalesData is returned when the requested period has no sales rows.
	// Callers surface this as a "no data" condition, not a failure.
	ErrNoSalesData = errors.New("no sales data for period")

	// ErrNoActiveRules is returned when no structured rule's validity window
	// touches the requested period.
	ErrNoActiveRules = errors.New("no active incentive rules for period")

	// ErrNoRoster is returned when salespeople master data is missing
	// entirely and no sales row can supply role/branch either.
	ErrNoRoster = errors.New("salespeople master data missing")

	// ErrResultNotFound is returned when a requested result record
	// does not exist.
	ErrResultNotFound = errors.New("calculation result not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// AmbiguousRuleError reports two equally specific slabs matching the same
// quantity. The engine still resolves deterministically (lowest rule ID
// wins); this error shape exists for validation tooling that wants to
// surface the configuration problem.
type AmbiguousRuleError struct {
	Role        string
	VehicleType string
	Quantity    int
	RuleA       RuleID
	RuleB       RuleID
}

func (e *AmbiguousRuleError) Error() string {
	return fmt.Sprintf("ambiguous rules for %s/%s at %d units: %s and %s share min_units",
		e.Role, e.VehicleType, e.Quantity, e.RuleA, e.RuleB)
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid or missing
// caller input rather than an engine defect.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidPeriod) ||
		errors.Is(err, ErrNoActiveRules) ||
		errors.Is(err, ErrNoRoster)
}

// IsNoData returns true for the empty-period condition, which callers
// report as success with zero processed employees.
func IsNoData(err error) bool {
	return errors.Is(err, ErrNoSalesData)
}
