// Package store provides an in-memory Store implementation (for testing/dev).
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/warp/incentive-engine/engine"
)

// =============================================================================
// MEMORY STORE - In-memory implementation of engine.Store
// =============================================================================

type Memory struct {
	mu         sync.RWMutex
	roster     map[engine.EmployeeID]engine.Salesperson
	rosterIDs  []engine.EmployeeID
	facts      []engine.SalesFact
	rules      map[engine.RuleID]engine.StructuredRule
	ruleIDs    []engine.RuleID
	schemeText string
	results    map[string][]engine.IncentiveBreakdown // period -> rows
	periods    []string                               // insertion order, for stable listing
}

var _ engine.Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		roster:  make(map[engine.EmployeeID]engine.Salesperson),
		rules:   make(map[engine.RuleID]engine.StructuredRule),
		results: make(map[string][]engine.IncentiveBreakdown),
	}
}

// =============================================================================
// SALES
// =============================================================================

func (m *Memory) SaveSalesperson(_ context.Context, sp engine.Salesperson) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.roster[sp.ID]; exists {
		return nil // first observed record wins
	}
	m.roster[sp.ID] = sp
	m.rosterIDs = append(m.rosterIDs, sp.ID)
	return nil
}

func (m *Memory) ListSalespeople(_ context.Context) ([]engine.Salesperson, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]engine.Salesperson, 0, len(m.rosterIDs))
	for _, id := range m.rosterIDs {
		out = append(out, m.roster[id])
	}
	return out, nil
}

func (m *Memory) AppendSalesFacts(_ context.Context, facts []engine.SalesFact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.facts = append(m.facts, facts...)
	return nil
}

func (m *Memory) LoadSalesFacts(_ context.Context, from, to engine.Date) ([]engine.SalesFact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []engine.SalesFact
	for _, f := range m.facts {
		if f.SaleDate.AfterOrEqual(from) && f.SaleDate.BeforeOrEqual(to) {
			out = append(out, f)
		}
	}
	return out, nil
}

// =============================================================================
// RULES
// =============================================================================

func (m *Memory) SaveRules(_ context.Context, rules []engine.StructuredRule) (int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inserted, skipped := 0, 0
	for _, r := range rules {
		if _, exists := m.rules[r.ID]; exists {
			skipped++
			continue
		}
		m.rules[r.ID] = r
		m.ruleIDs = append(m.ruleIDs, r.ID)
		inserted++
	}
	return inserted, skipped, nil
}

func (m *Memory) LoadRules(_ context.Context, p engine.Period) ([]engine.StructuredRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []engine.StructuredRule
	for _, id := range m.ruleIDs {
		if r := m.rules[id]; r.ActiveIn(p) {
			out = append(out, r)
		}
	}
	return out, nil
}

// =============================================================================
// SCHEMES
// =============================================================================

func (m *Memory) SaveSchemeText(_ context.Context, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schemeText = text
	return nil
}

func (m *Memory) LoadSchemeText(_ context.Context) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.schemeText, nil
}

// =============================================================================
// RESULTS
// =============================================================================

func (m *Memory) ReplaceResults(_ context.Context, period string, results []engine.IncentiveBreakdown) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.results[period]; !exists {
		m.periods = append(m.periods, period)
	}
	rows := make([]engine.IncentiveBreakdown, len(results))
	copy(rows, results)
	m.results[period] = rows
	return nil
}

func (m *Memory) ListResults(_ context.Context, limit, offset int) ([]engine.IncentiveBreakdown, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var all []engine.IncentiveBreakdown
	periods := make([]string, len(m.periods))
	copy(periods, m.periods)
	sort.Strings(periods)
	for _, p := range periods {
		all = append(all, m.results[p]...)
	}

	if offset >= len(all) {
		return []engine.IncentiveBreakdown{}, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (m *Memory) Stats(_ context.Context) (*engine.DashboardStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := &engine.DashboardStats{
		TotalIncentive: decimal.Zero,
		AvgIncentive:   decimal.Zero,
	}
	var topAmount decimal.Decimal

	periods := make([]string, len(m.periods))
	copy(periods, m.periods)
	sort.Strings(periods)
	for _, p := range periods {
		for _, b := range m.results[p] {
			stats.TotalSalespeople++
			stats.TotalIncentive = stats.TotalIncentive.Add(b.Total)
			if stats.TopPerformer == "" || b.Total.GreaterThan(topAmount) {
				stats.TopPerformer = b.EmployeeID
				topAmount = b.Total
			}
		}
	}

	if stats.TotalSalespeople > 0 {
		stats.AvgIncentive = stats.TotalIncentive.
			Div(decimal.NewFromInt(int64(stats.TotalSalespeople))).Round(2)
	}
	return stats, nil
}
