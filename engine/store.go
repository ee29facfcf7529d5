/*
store.go - Persistence interfaces for engine inputs and outputs

PURPOSE:
  Defines the contract between the engine's callers and the database. The
  engine itself never touches a Store: the caller loads rows, invokes
  Run(), and persists the RunResult.

REPLACE-THEN-INSERT CONTRACT:
  ReplaceResults is the one write with delicate semantics. For a given
  period it must delete the existing result rows and insert the new set as
  a single atomic unit, so a recalculation can never leave a period half
  old, half new. Implementations serialize concurrent writers for the same
  period (the SQLite store uses one DB transaction under a write lock).

IMPLEMENTATIONS:
  - store/sqlite: production SQLite store
  - engine/store: in-memory store for tests and dev

SEE ALSO:
  - engine.go: Run() consumes what these interfaces load
  - api/handlers.go: The calling layer that owns all I/O
*/
package engine

import (
	"context"

	"github.com/shopspring/decimal"
)

// =============================================================================
// INPUT STORES
// =============================================================================

// SalesStore persists sales facts and the salespeople roster.
type SalesStore interface {
	// SaveSalesperson inserts the master record if absent. Existing
	// records win: the first observed role/branch is kept.
	SaveSalesperson(ctx context.Context, sp Salesperson) error

	ListSalespeople(ctx context.Context) ([]Salesperson, error)

	// AppendSalesFacts persists validated sales rows.
	AppendSalesFacts(ctx context.Context, facts []SalesFact) error

	// LoadSalesFacts returns facts with sale_date in [from, to].
	LoadSalesFacts(ctx context.Context, from, to Date) ([]SalesFact, error)
}

// RuleStore persists structured incentive rules.
type RuleStore interface {
	// SaveRules inserts rules, skipping IDs that already exist.
	// Returns (inserted, skipped).
	SaveRules(ctx context.Context, rules []StructuredRule) (int, int, error)

	// LoadRules returns rules whose validity window fully covers the period.
	LoadRules(ctx context.Context, p Period) ([]StructuredRule, error)
}

// SchemeStore persists the raw ad-hoc scheme text. The text is stored
// verbatim; parsing happens per calculation run so parser fixes apply
// retroactively.
type SchemeStore interface {
	SaveSchemeText(ctx context.Context, text string) error
	LoadSchemeText(ctx context.Context) (string, error)
}

// =============================================================================
// OUTPUT STORE
// =============================================================================

// DashboardStats is the reporting roll-up over all stored results.
type DashboardStats struct {
	TotalIncentive   decimal.Decimal
	TotalSalespeople int
	AvgIncentive     decimal.Decimal
	TopPerformer     EmployeeID
}

// ResultStore persists calculation results keyed by (employee_id, period).
type ResultStore interface {
	// ReplaceResults atomically deletes the period's existing rows and
	// inserts the new set. All-or-nothing per calculation pass.
	ReplaceResults(ctx context.Context, period string, results []IncentiveBreakdown) error

	// ListResults returns stored results, paged.
	ListResults(ctx context.Context, limit, offset int) ([]IncentiveBreakdown, error)

	// Stats computes the dashboard roll-up across all results.
	Stats(ctx context.Context) (*DashboardStats, error)
}

// Store bundles all persistence capabilities the API layer needs.
type Store interface {
	SalesStore
	RuleStore
	SchemeStore
	ResultStore
}
