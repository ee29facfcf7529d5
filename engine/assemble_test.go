package engine_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/incentive-engine/engine"
)

// =============================================================================
// RESULT ASSEMBLY TESTS
// =============================================================================

func breakdown(emp string, total decimal.Decimal) engine.IncentiveBreakdown {
	return engine.IncentiveBreakdown{
		EmployeeID:      engine.EmployeeID(emp),
		StructuredTotal: total,
		AdHocTotal:      decimal.Zero,
		Total:           total,
	}
}

func TestAssemble_RoundsToTwoDecimals(t *testing.T) {
	// GIVEN: A breakdown carrying an exact but long decimal
	// WHEN: Assembling
	// THEN: All monetary fields are rounded to 2 places

	raw := decimal.RequireFromString("3333.333333")
	result := engine.Assemble(period(t, "2024-01"),
		[]engine.IncentiveBreakdown{breakdown("E1", raw)}, nil)

	assert.Equal(t, "3333.33", result.Results[0].Total.StringFixed(2))
	assert.Equal(t, "3333.33", result.Summary.TotalIncentive.StringFixed(2))
}

func TestAssemble_StatusThreshold(t *testing.T) {
	// GIVEN: One earner and one zero-total employee
	// WHEN: Assembling
	// THEN: Positive totals are "Completed", zero is "No Incentive"

	result := engine.Assemble(period(t, "2024-01"), []engine.IncentiveBreakdown{
		breakdown("E1", money(100)),
		breakdown("E2", decimal.Zero),
	}, nil)

	assert.Equal(t, engine.StatusCompleted, result.Results[0].Status)
	assert.Equal(t, engine.StatusNoIncentive, result.Results[1].Status)
}

func TestAssemble_TopPerformerTie_FirstSeenWins(t *testing.T) {
	// GIVEN: Two employees with identical totals
	// WHEN: Assembling
	// THEN: The first in input order is the top performer, so reruns agree

	result := engine.Assemble(period(t, "2024-01"), []engine.IncentiveBreakdown{
		breakdown("E1", money(5000)),
		breakdown("E2", money(5000)),
	}, nil)

	assert.Equal(t, engine.EmployeeID("E1"), result.Summary.TopPerformer)
}

func TestAssemble_AverageOverAllProcessed(t *testing.T) {
	// GIVEN: Three employees, one earning nothing
	// WHEN: Assembling
	// THEN: The average divides by all processed employees, not just earners

	result := engine.Assemble(period(t, "2024-01"), []engine.IncentiveBreakdown{
		breakdown("E1", money(3000)),
		breakdown("E2", money(6000)),
		breakdown("E3", decimal.Zero),
	}, nil)

	assert.Equal(t, 3, result.Summary.Processed)
	assert.Equal(t, "3000.00", result.Summary.AvgIncentive.StringFixed(2))
}

func TestAssemble_EmptyInput(t *testing.T) {
	// GIVEN: No breakdowns at all
	// WHEN: Assembling
	// THEN: Zero summary, no division by zero

	result := engine.Assemble(period(t, "2024-01"), nil, nil)
	assert.Equal(t, 0, result.Summary.Processed)
	assert.True(t, result.Summary.TotalIncentive.IsZero())
	assert.True(t, result.Summary.AvgIncentive.IsZero())
	require.NotEmpty(t, result.Summary.RunID)
}
