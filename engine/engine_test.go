package engine_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/incentive-engine/engine"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func d(t *testing.T, s string) engine.Date {
	t.Helper()
	date, err := engine.ParseDate(s)
	require.NoError(t, err)
	return date
}

func period(t *testing.T, s string) engine.Period {
	t.Helper()
	p, err := engine.ParsePeriod(s)
	require.NoError(t, err)
	return p
}

func money(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func fact(t *testing.T, emp, branch, role, vtype string, qty int, date string) engine.SalesFact {
	t.Helper()
	return engine.SalesFact{
		EmployeeID:  engine.EmployeeID(emp),
		Branch:      branch,
		Role:        role,
		VehicleType: vtype,
		Quantity:    qty,
		SaleDate:    d(t, date),
	}
}

// rule builds a slab valid for all of 2024.
func rule(t *testing.T, id, role, vtype string, min int, max *int, base, bonus int64) engine.StructuredRule {
	t.Helper()
	return engine.StructuredRule{
		ID:           engine.RuleID(id),
		Role:         role,
		VehicleType:  vtype,
		MinUnits:     min,
		MaxUnits:     max,
		BaseAmount:   money(base),
		BonusPerUnit: money(bonus),
		ValidFrom:    d(t, "2024-01-01"),
		ValidTo:      d(t, "2024-12-31"),
	}
}

func intp(v int) *int { return &v }

// januaryRules is the slab table used across the full-run tests:
// RM/EV bands [5,10] base 3000 +200/unit and [11,∞) base 5000 +300/unit.
func januaryRules(t *testing.T) []engine.StructuredRule {
	t.Helper()
	return []engine.StructuredRule{
		rule(t, "R1", "RM", "EV", 5, intp(10), 3000, 200),
		rule(t, "R2", "RM", "EV", 11, nil, 5000, 300),
	}
}

// =============================================================================
// FULL RUN TESTS
// =============================================================================

func TestRun_SlabWithPerUnitBonus(t *testing.T) {
	// GIVEN: An RM sold 12 EV units; band [11,∞) pays 5000 base + 300/unit
	//        above the band minimum
	// WHEN: Running the calculation for 2024-01
	// THEN: The payout is 5000 + (12-11)*300 = 5300

	result, err := engine.Run(engine.RunInput{
		Period: period(t, "2024-01"),
		Facts: []engine.SalesFact{
			fact(t, "EMP001", "North", "RM", "EV", 12, "2024-01-15"),
		},
		Rules: januaryRules(t),
	})
	require.NoError(t, err)
	require.Len(t, result.Results, 1)

	b := result.Results[0]
	require.Len(t, b.Structured, 1)
	assert.Equal(t, engine.RuleID("R2"), b.Structured[0].RuleID)
	assert.True(t, b.Total.Equal(money(5300)), "got %s", b.Total)
	assert.Equal(t, engine.StatusCompleted, b.Status)
}

func TestRun_OneRulePerVehicleType(t *testing.T) {
	// GIVEN: 12 units split across multiple sale rows of the same vehicle type
	// WHEN: Running the calculation
	// THEN: Exactly one rule fires on the summed quantity; rows are never
	//       paid individually

	result, err := engine.Run(engine.RunInput{
		Period: period(t, "2024-01"),
		Facts: []engine.SalesFact{
			fact(t, "EMP001", "North", "RM", "EV", 7, "2024-01-05"),
			fact(t, "EMP001", "North", "RM", "ev", 5, "2024-01-20"),
		},
		Rules: januaryRules(t),
	})
	require.NoError(t, err)
	require.Len(t, result.Results, 1)

	b := result.Results[0]
	require.Len(t, b.Structured, 1, "casing variants must aggregate into one vehicle type")
	assert.Equal(t, 12, b.Structured[0].Units)
	assert.True(t, b.Total.Equal(money(5300)), "got %s", b.Total)
}

func TestRun_NoActiveRules_Rejected(t *testing.T) {
	// GIVEN: Sales exist but no rule window touches the period
	// WHEN: Running the calculation
	// THEN: The whole run is rejected with ErrNoActiveRules

	_, err := engine.Run(engine.RunInput{
		Period: period(t, "2025-06"),
		Facts: []engine.SalesFact{
			fact(t, "EMP001", "North", "RM", "EV", 12, "2025-06-15"),
		},
		Rules: januaryRules(t), // valid only in 2024
	})
	assert.ErrorIs(t, err, engine.ErrNoActiveRules)
	assert.True(t, engine.IsClientError(err))
}

func TestRun_NoSalesData(t *testing.T) {
	// GIVEN: Active rules but zero sales rows in the period
	// WHEN: Running the calculation
	// THEN: ErrNoSalesData, which callers report as "0 processed"

	_, err := engine.Run(engine.RunInput{
		Period: period(t, "2024-02"),
		Facts: []engine.SalesFact{
			fact(t, "EMP001", "North", "RM", "EV", 12, "2024-01-15"), // outside
		},
		Rules: januaryRules(t),
	})
	assert.ErrorIs(t, err, engine.ErrNoSalesData)
	assert.True(t, engine.IsNoData(err))
	assert.False(t, engine.IsClientError(err))
}

func TestRun_NoMatchingBand_ZeroTotal(t *testing.T) {
	// GIVEN: An employee whose quantity falls below every band
	// WHEN: Running the calculation
	// THEN: A result row still exists with zero total and "No Incentive"

	result, err := engine.Run(engine.RunInput{
		Period: period(t, "2024-01"),
		Facts: []engine.SalesFact{
			fact(t, "EMP002", "South", "RM", "EV", 2, "2024-01-10"),
		},
		Rules: januaryRules(t),
	})
	require.NoError(t, err)
	require.Len(t, result.Results, 1)

	b := result.Results[0]
	assert.Empty(t, b.Structured)
	assert.True(t, b.Total.IsZero())
	assert.Equal(t, engine.StatusNoIncentive, b.Status)
}

func TestRun_RosterOverridesRowRole(t *testing.T) {
	// GIVEN: A sales row carrying a stale "ASM" role but a roster entry
	//        saying the employee is an RM
	// WHEN: Running the calculation
	// THEN: The roster wins and RM rules apply

	result, err := engine.Run(engine.RunInput{
		Period: period(t, "2024-01"),
		Facts: []engine.SalesFact{
			fact(t, "EMP001", "North", "ASM", "EV", 12, "2024-01-15"),
		},
		Roster: []engine.Salesperson{
			{ID: "EMP001", Branch: "North", Role: "RM"},
		},
		Rules: januaryRules(t),
	})
	require.NoError(t, err)
	require.Len(t, result.Results, 1)
	assert.True(t, result.Results[0].Total.Equal(money(5300)),
		"got %s", result.Results[0].Total)
}

func TestRun_SchemePolicy_AddsBonusOnTop(t *testing.T) {
	// GIVEN: A fixed-amount scheme for RMs overlapping the period
	// WHEN: Running with the scheme policy active
	// THEN: The scheme amount is added beside the structured payout

	amount := money(2000)
	schemes := []engine.AdHocScheme{{
		ID:        "1.1",
		Name:      "Festive Push",
		Condition: "Extra bonus on every EV delivery",
		Roles:     []string{"RM"},
		Amount:    &amount,
		ValidFrom: d(t, "2024-01-10"),
		ValidTo:   d(t, "2024-01-31"),
	}}

	result, err := engine.Run(engine.RunInput{
		Period: period(t, "2024-01"),
		Facts: []engine.SalesFact{
			fact(t, "EMP001", "North", "RM", "EV", 12, "2024-01-15"),
		},
		Rules:   januaryRules(t),
		Schemes: schemes,
		AdHoc:   engine.NewSchemeBonusPolicy(schemes),
	})
	require.NoError(t, err)

	b := result.Results[0]
	assert.True(t, b.StructuredTotal.Equal(money(5300)))
	assert.True(t, b.AdHocTotal.Equal(money(2000)))
	assert.True(t, b.Total.Equal(money(7300)), "got %s", b.Total)
}

func TestRun_Deterministic(t *testing.T) {
	// GIVEN: The same input snapshot
	// WHEN: Running the calculation twice
	// THEN: Every result record agrees (run IDs aside)

	in := engine.RunInput{
		Period: period(t, "2024-01"),
		Facts: []engine.SalesFact{
			fact(t, "EMP003", "South", "ASM", "Scooter", 8, "2024-01-03"),
			fact(t, "EMP001", "North", "RM", "EV", 12, "2024-01-15"),
			fact(t, "EMP001", "North", "RM", "Bike", 4, "2024-01-16"),
		},
		Rules: append(januaryRules(t),
			rule(t, "R3", "ASM", "Scooter", 5, intp(20), 1500, 100),
		),
	}

	first, err := engine.Run(in)
	require.NoError(t, err)
	second, err := engine.Run(in)
	require.NoError(t, err)

	require.Equal(t, len(first.Results), len(second.Results))
	for i := range first.Results {
		assert.Equal(t, first.Results[i], second.Results[i])
	}
	assert.NotEqual(t, first.Summary.RunID, second.Summary.RunID)
	assert.True(t, first.Summary.TotalIncentive.Equal(second.Summary.TotalIncentive))
}

func TestRun_SummaryAndTopPerformer(t *testing.T) {
	// GIVEN: Two employees with different totals
	// WHEN: Running the calculation
	// THEN: Summary totals add up and the top performer is the higher earner

	result, err := engine.Run(engine.RunInput{
		Period: period(t, "2024-01"),
		Facts: []engine.SalesFact{
			fact(t, "EMP002", "South", "RM", "EV", 6, "2024-01-04"),  // 3000+200 = 3200
			fact(t, "EMP001", "North", "RM", "EV", 12, "2024-01-15"), // 5300
		},
		Rules: januaryRules(t),
	})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Summary.Processed)
	assert.True(t, result.Summary.TotalIncentive.Equal(money(8500)),
		"got %s", result.Summary.TotalIncentive)
	assert.True(t, result.Summary.AvgIncentive.Equal(money(4250)))
	assert.Equal(t, engine.EmployeeID("EMP001"), result.Summary.TopPerformer)
	assert.Equal(t, "2024-01", result.Summary.Period)
}

func TestRun_DiagnosticsPassThrough(t *testing.T) {
	// GIVEN: Diagnostics collected during ingestion and scheme parsing
	// WHEN: Running the calculation
	// THEN: They ride along to the result untouched

	diags := []engine.Diagnostic{
		{Source: "schemes", Ref: "block 4", Message: "no recognizable content"},
	}
	result, err := engine.Run(engine.RunInput{
		Period: period(t, "2024-01"),
		Facts: []engine.SalesFact{
			fact(t, "EMP001", "North", "RM", "EV", 12, "2024-01-15"),
		},
		Rules:       januaryRules(t),
		Diagnostics: diags,
	})
	require.NoError(t, err)
	assert.Equal(t, diags, result.Diagnostics)
}
