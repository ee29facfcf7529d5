/*
adhoc.go - Ad-hoc bonus policies (strategy selection)

PURPOSE:
  Two divergent ad-hoc bonus mechanisms coexist in this system:

  1. SchemeBonusPolicy: free-text schemes parsed into AdHocScheme records.
     Every eligible scheme applies independently; an employee can collect
     several scheme bonuses in one period.

  2. BranchAchievementPolicy: the legacy flat-bonus variant. Branch units
     against a quota yield an achievement percentage; tiers are mutually
     exclusive, evaluated highest-first, at most one per employee.

  Which policy is active is an explicit configuration choice made by the
  caller (see factory/), never an implicit default.

SEE ALSO:
  - calculator.go: Applies the selected policy per employee
  - scheme/: Parser producing AdHocScheme records
  - factory/: JSON config selecting and parameterizing the policy
*/
package engine

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// POLICY INTERFACE
// =============================================================================

// AdHocPolicy computes the ad-hoc bonus portion of one employee's breakdown.
// branchUnits is the employee's branch total for the period.
// Implementations must be pure: same inputs, same output.
type AdHocPolicy interface {
	// Name identifies the policy variant for logging and summaries.
	Name() string

	// Apply returns the itemized applications and the numeric total.
	// Applications without a numeric amount (notes, variable multipliers)
	// appear in the slice but contribute nothing to the total.
	Apply(emp EmployeeAggregate, branchUnits int, period Period) ([]SchemeApplication, decimal.Decimal)
}

// =============================================================================
// SCHEME BONUS POLICY - Free-text parsed schemes
// =============================================================================

// SchemeBonusPolicy applies every role-eligible, period-overlapping scheme
// independently.
type SchemeBonusPolicy struct {
	schemes []AdHocScheme
}

func NewSchemeBonusPolicy(schemes []AdHocScheme) *SchemeBonusPolicy {
	return &SchemeBonusPolicy{schemes: schemes}
}

func (p *SchemeBonusPolicy) Name() string { return "schemes" }

func (p *SchemeBonusPolicy) Apply(emp EmployeeAggregate, _ int, period Period) ([]SchemeApplication, decimal.Decimal) {
	var apps []SchemeApplication
	total := decimal.Zero

	for _, s := range p.schemes {
		if !s.ActiveIn(period) || !s.EligibleRole(emp.Role) {
			continue
		}

		app := SchemeApplication{
			SchemeID:  s.ID,
			Condition: s.Condition,
			Variable:  s.Variable,
			Note:      s.Note,
		}
		if s.Amount != nil {
			amount := *s.Amount
			app.Amount = &amount
			total = total.Add(amount)
		}
		apps = append(apps, app)
	}

	return apps, total
}

// =============================================================================
// BRANCH ACHIEVEMENT POLICY - Legacy flat tiers
// =============================================================================

// AchievementTier is one flat-bonus tier. Role == "" means any role.
// Tiers are evaluated in order; the first match wins.
type AchievementTier struct {
	MinPercent decimal.Decimal
	Role       string
	Bonus      decimal.Decimal
}

// DefaultBranchQuota is the configured branch unit target the legacy policy
// measures achievement against.
const DefaultBranchQuota = 200

// DefaultAchievementTiers reproduces the legacy tier table:
// >=110% any role +10000, >=95% RM +8000, >=80% ASM +5000.
func DefaultAchievementTiers() []AchievementTier {
	return []AchievementTier{
		{MinPercent: decimal.NewFromInt(110), Role: "", Bonus: decimal.NewFromInt(10000)},
		{MinPercent: decimal.NewFromInt(95), Role: "RM", Bonus: decimal.NewFromInt(8000)},
		{MinPercent: decimal.NewFromInt(80), Role: "ASM", Bonus: decimal.NewFromInt(5000)},
	}
}

// BranchAchievementPolicy awards at most one flat bonus per employee based
// on their branch's achievement against the quota.
type BranchAchievementPolicy struct {
	Quota int
	Tiers []AchievementTier
}

func NewBranchAchievementPolicy(quota int, tiers []AchievementTier) *BranchAchievementPolicy {
	if quota <= 0 {
		quota = DefaultBranchQuota
	}
	if len(tiers) == 0 {
		tiers = DefaultAchievementTiers()
	}
	return &BranchAchievementPolicy{Quota: quota, Tiers: tiers}
}

func (p *BranchAchievementPolicy) Name() string { return "branch_achievement" }

// Achievement returns branch units / quota as a percentage.
func (p *BranchAchievementPolicy) Achievement(branchUnits int) decimal.Decimal {
	return decimal.NewFromInt(int64(branchUnits)).
		Div(decimal.NewFromInt(int64(p.Quota))).
		Mul(decimal.NewFromInt(100))
}

func (p *BranchAchievementPolicy) Apply(emp EmployeeAggregate, branchUnits int, _ Period) ([]SchemeApplication, decimal.Decimal) {
	achievement := p.Achievement(branchUnits)

	for _, tier := range p.Tiers {
		if achievement.LessThan(tier.MinPercent) {
			continue
		}
		if tier.Role != "" && tier.Role != emp.Role {
			continue
		}

		bonus := tier.Bonus
		app := SchemeApplication{
			SchemeID: "branch-achievement",
			Condition: fmt.Sprintf("Branch %s achievement %s%% (tier >=%s%%)",
				emp.Branch, achievement.Round(1), tier.MinPercent),
			Amount: &bonus,
		}
		return []SchemeApplication{app}, bonus
	}

	return nil, decimal.Zero
}
