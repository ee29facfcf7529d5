/*
Package factory provides JSON to calculation-config conversion.

PURPOSE:
  Converts a JSON configuration document into the engine's runtime policy
  selection. Operations teams choose which ad-hoc bonus mechanism is active
  and tune its parameters without code changes.

WHY EXPLICIT SELECTION?
  Two divergent ad-hoc policies exist (free-text schemes vs. legacy branch
  achievement tiers) with no inherent precedence. Defaulting silently to
  one would make payouts depend on an accident of wiring, so the active
  variant is a declared configuration value.

JSON SCHEMA:
  {
    "adhoc_policy": "schemes",            // or "branch_achievement"
    "branch_quota": 200,
    "achievement_tiers": [
      {"min_percent": 110, "role": "",    "bonus": 10000},
      {"min_percent": 95,  "role": "RM",  "bonus": 8000},
      {"min_percent": 80,  "role": "ASM", "bonus": 5000}
    ],
    "default_scheme_window": {
      "from": "2025-09-01",
      "to":   "2025-09-30"
    }
  }

USAGE:
  cfg, err := factory.ParseConfig(jsonBytes)
  policy := cfg.BuildPolicy(parsedSchemes)
  result, err := engine.Run(engine.RunInput{..., AdHoc: policy})

SEE ALSO:
  - engine/adhoc.go: The policy implementations
  - cmd/server/main.go: Loads the config file at startup
*/
package factory

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/warp/incentive-engine/engine"
	"github.com/warp/incentive-engine/scheme"
)

// Policy variant names accepted in "adhoc_policy".
const (
	PolicySchemes           = "schemes"
	PolicyBranchAchievement = "branch_achievement"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// ConfigJSON is the JSON representation of the calculation configuration.
type ConfigJSON struct {
	AdHocPolicy         string      `json:"adhoc_policy"`
	BranchQuota         int         `json:"branch_quota,omitempty"`
	AchievementTiers    []TierJSON  `json:"achievement_tiers,omitempty"`
	DefaultSchemeWindow *WindowJSON `json:"default_scheme_window,omitempty"`
}

// TierJSON is one branch achievement tier. Role "" matches any role.
type TierJSON struct {
	MinPercent float64 `json:"min_percent"`
	Role       string  `json:"role,omitempty"`
	Bonus      float64 `json:"bonus"`
}

// WindowJSON is a date range in "YYYY-MM-DD" form.
type WindowJSON struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// =============================================================================
// RUNTIME CONFIG
// =============================================================================

// Config is the validated runtime configuration.
type Config struct {
	PolicyKind    string
	BranchQuota   int
	Tiers         []engine.AchievementTier
	DefaultWindow scheme.Window
}

// Default returns the configuration used when no config file is supplied:
// free-text schemes active, legacy tier table retained for explicit
// branch_achievement selection, and a default scheme window of the current
// calendar month.
func Default() *Config {
	today := engine.Today()
	start := engine.NewDate(today.Year(), today.Month(), 1)
	return &Config{
		PolicyKind:  PolicySchemes,
		BranchQuota: engine.DefaultBranchQuota,
		Tiers:       engine.DefaultAchievementTiers(),
		DefaultWindow: scheme.Window{
			From: start,
			To:   start.AddMonths(1).AddDays(-1),
		},
	}
}

// ParseConfig validates a JSON configuration document.
func ParseConfig(data []byte) (*Config, error) {
	var j ConfigJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("invalid config JSON: %w", err)
	}

	cfg := Default()

	switch j.AdHocPolicy {
	case "", PolicySchemes:
		cfg.PolicyKind = PolicySchemes
	case PolicyBranchAchievement:
		cfg.PolicyKind = PolicyBranchAchievement
	default:
		return nil, fmt.Errorf("unknown adhoc_policy %q (want %q or %q)",
			j.AdHocPolicy, PolicySchemes, PolicyBranchAchievement)
	}

	if j.BranchQuota < 0 {
		return nil, fmt.Errorf("branch_quota must be positive, got %d", j.BranchQuota)
	}
	if j.BranchQuota > 0 {
		cfg.BranchQuota = j.BranchQuota
	}

	if len(j.AchievementTiers) > 0 {
		tiers := make([]engine.AchievementTier, len(j.AchievementTiers))
		for i, t := range j.AchievementTiers {
			if t.MinPercent <= 0 {
				return nil, fmt.Errorf("achievement_tiers[%d]: min_percent must be positive", i)
			}
			tiers[i] = engine.AchievementTier{
				MinPercent: decimal.NewFromFloat(t.MinPercent),
				Role:       engine.Canon(t.Role),
				Bonus:      decimal.NewFromFloat(t.Bonus),
			}
		}
		// Highest-first evaluation order is part of the tier contract.
		for i := 1; i < len(tiers); i++ {
			if tiers[i].MinPercent.GreaterThan(tiers[i-1].MinPercent) {
				return nil, fmt.Errorf("achievement_tiers must be ordered highest min_percent first")
			}
		}
		cfg.Tiers = tiers
	}

	if j.DefaultSchemeWindow != nil {
		from, err := engine.ParseDate(j.DefaultSchemeWindow.From)
		if err != nil {
			return nil, fmt.Errorf("default_scheme_window.from: %w", err)
		}
		to, err := engine.ParseDate(j.DefaultSchemeWindow.To)
		if err != nil {
			return nil, fmt.Errorf("default_scheme_window.to: %w", err)
		}
		if to.Before(from) {
			return nil, fmt.Errorf("default_scheme_window: to before from")
		}
		cfg.DefaultWindow = scheme.Window{From: from, To: to}
	}

	return cfg, nil
}

// BuildPolicy constructs the active ad-hoc policy for a run. For the
// schemes variant the parsed scheme records are bound in; for the branch
// variant they are ignored.
func (c *Config) BuildPolicy(schemes []engine.AdHocScheme) engine.AdHocPolicy {
	if c.PolicyKind == PolicyBranchAchievement {
		return engine.NewBranchAchievementPolicy(c.BranchQuota, c.Tiers)
	}
	return engine.NewSchemeBonusPolicy(schemes)
}
