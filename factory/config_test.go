package factory_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/incentive-engine/engine"
	"github.com/warp/incentive-engine/factory"
)

// =============================================================================
// CONFIG PARSING TESTS
// =============================================================================

func TestParseConfig_Defaults(t *testing.T) {
	// GIVEN: An empty config document
	// WHEN: Parsing
	// THEN: The schemes policy is active with the legacy defaults retained

	cfg, err := factory.ParseConfig([]byte(`{}`))
	require.NoError(t, err)

	assert.Equal(t, factory.PolicySchemes, cfg.PolicyKind)
	assert.Equal(t, engine.DefaultBranchQuota, cfg.BranchQuota)
	assert.Len(t, cfg.Tiers, 3)
	assert.False(t, cfg.DefaultWindow.From.IsZero())
}

func TestParseConfig_BranchAchievementVariant(t *testing.T) {
	// GIVEN: A config selecting the legacy branch-achievement policy
	// WHEN: Parsing and building the policy
	// THEN: The branch policy is constructed with the configured quota

	cfg, err := factory.ParseConfig([]byte(`{
		"adhoc_policy": "branch_achievement",
		"branch_quota": 150
	}`))
	require.NoError(t, err)
	assert.Equal(t, factory.PolicyBranchAchievement, cfg.PolicyKind)
	assert.Equal(t, 150, cfg.BranchQuota)

	p := cfg.BuildPolicy(nil)
	assert.Equal(t, "branch_achievement", p.Name())
}

func TestParseConfig_SchemesPolicyBuildsSchemeBonus(t *testing.T) {
	cfg, err := factory.ParseConfig([]byte(`{"adhoc_policy": "schemes"}`))
	require.NoError(t, err)

	p := cfg.BuildPolicy(nil)
	assert.Equal(t, "schemes", p.Name())
}

func TestParseConfig_UnknownPolicy(t *testing.T) {
	_, err := factory.ParseConfig([]byte(`{"adhoc_policy": "roulette"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "roulette")
}

func TestParseConfig_CustomTiers(t *testing.T) {
	// GIVEN: A custom tier table ordered highest-first
	// WHEN: Parsing
	// THEN: Tiers come through with canonical roles

	cfg, err := factory.ParseConfig([]byte(`{
		"adhoc_policy": "branch_achievement",
		"achievement_tiers": [
			{"min_percent": 120, "bonus": 15000},
			{"min_percent": 90, "role": "rm", "bonus": 6000}
		]
	}`))
	require.NoError(t, err)
	require.Len(t, cfg.Tiers, 2)
	assert.Equal(t, "RM", cfg.Tiers[1].Role)
	assert.True(t, cfg.Tiers[1].Bonus.Equal(decimal.NewFromInt(6000)))
	assert.True(t, cfg.Tiers[0].MinPercent.Equal(decimal.NewFromInt(120)))
}

func TestParseConfig_TiersMustBeOrdered(t *testing.T) {
	// GIVEN: Tiers ordered lowest-first
	// WHEN: Parsing
	// THEN: Rejected; evaluation order is part of the contract

	_, err := factory.ParseConfig([]byte(`{
		"achievement_tiers": [
			{"min_percent": 80, "bonus": 5000},
			{"min_percent": 110, "bonus": 10000}
		]
	}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ordered")
}

func TestParseConfig_DefaultSchemeWindow(t *testing.T) {
	cfg, err := factory.ParseConfig([]byte(`{
		"default_scheme_window": {"from": "2024-01-01", "to": "2024-01-31"}
	}`))
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01", cfg.DefaultWindow.From.String())
	assert.Equal(t, "2024-01-31", cfg.DefaultWindow.To.String())

	_, err = factory.ParseConfig([]byte(`{
		"default_scheme_window": {"from": "2024-02-01", "to": "2024-01-01"}
	}`))
	assert.Error(t, err, "inverted window rejected")
}
