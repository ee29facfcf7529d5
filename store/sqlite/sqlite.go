/*
Package sqlite provides a SQLite-backed implementation of engine.Store.

PURPOSE:
  Persists the four data families of the incentive system: the salespeople
  roster, raw sales records, structured incentive rules, and calculation
  results. In production the same patterns apply to PostgreSQL - only minor
  SQL dialect differences.

REPLACE-THEN-INSERT:
  ReplaceResults implements the engine's one delicate write: for a period,
  DELETE the existing result rows and INSERT the new set inside a single
  database transaction. Two concurrent recalculations of the same period
  serialize on the store's write lock, so a period is never readable half
  old, half new.

AMOUNT STORAGE:
  Monetary values are stored as decimal strings (TEXT), never floats. The
  engine's decimals round-trip exactly.

DATE STORAGE:
  Dates are stored as "YYYY-MM-DD" TEXT, so lexical BETWEEN matches
  chronological order.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/incentives.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper migration
  tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - engine/store.go: Interface definitions
  - engine/store/memory.go: In-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/incentive-engine/engine"
)

// Store implements engine.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ engine.Store = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every pooled connection to ":memory:" gets its own empty database,
	// so pin the pool to a single connection there.
	if strings.Contains(dbPath, ":memory:") {
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	-- Salespeople roster (first observed record wins)
	CREATE TABLE IF NOT EXISTS salespeople (
		id TEXT PRIMARY KEY,
		branch TEXT NOT NULL,
		role TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	-- Raw sales rows, validated at ingestion
	CREATE TABLE IF NOT EXISTS sales_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		employee_id TEXT NOT NULL,
		branch TEXT,
		role TEXT,
		vehicle_model TEXT,
		vehicle_type TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		sale_date TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sales_date
		ON sales_records(sale_date);
	CREATE INDEX IF NOT EXISTS idx_sales_employee
		ON sales_records(employee_id);

	-- Structured incentive rules
	CREATE TABLE IF NOT EXISTS incentive_rules (
		id TEXT PRIMARY KEY,
		role TEXT NOT NULL,
		vehicle_type TEXT NOT NULL,
		min_units INTEGER NOT NULL,
		max_units INTEGER,
		incentive_amount TEXT NOT NULL,
		bonus_per_unit TEXT NOT NULL,
		valid_from TEXT NOT NULL,
		valid_to TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_rules_window
		ON incentive_rules(valid_from, valid_to);

	-- Raw ad-hoc scheme text, re-parsed on every calculation run
	CREATE TABLE IF NOT EXISTS scheme_texts (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		content TEXT NOT NULL,
		uploaded_at TEXT NOT NULL
	);

	-- Calculation results, one row per (employee, period)
	CREATE TABLE IF NOT EXISTS calculation_results (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		period_month TEXT NOT NULL,
		total_incentive TEXT NOT NULL,
		structured_total TEXT NOT NULL,
		adhoc_total TEXT NOT NULL,
		breakdown_json TEXT NOT NULL,
		status TEXT NOT NULL,
		calculated_at TEXT NOT NULL,
		UNIQUE(employee_id, period_month)
	);

	CREATE INDEX IF NOT EXISTS idx_results_period
		ON calculation_results(period_month);
	`
	_, err := s.db.Exec(schema)
	return err
}

func nowISO() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// =============================================================================
// SALES
// =============================================================================

func (s *Store) SaveSalesperson(ctx context.Context, sp engine.Salesperson) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO salespeople (id, branch, role, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		string(sp.ID), sp.Branch, sp.Role, nowISO())
	return err
}

func (s *Store) ListSalespeople(ctx context.Context) ([]engine.Salesperson, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, branch, role FROM salespeople ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []engine.Salesperson
	for rows.Next() {
		var sp engine.Salesperson
		var id string
		if err := rows.Scan(&id, &sp.Branch, &sp.Role); err != nil {
			return nil, err
		}
		sp.ID = engine.EmployeeID(id)
		out = append(out, sp)
	}
	return out, rows.Err()
}

func (s *Store) AppendSalesFacts(ctx context.Context, facts []engine.SalesFact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO sales_records
		(employee_id, branch, role, vehicle_model, vehicle_type, quantity, sale_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := nowISO()
	for _, f := range facts {
		if _, err := stmt.ExecContext(ctx,
			string(f.EmployeeID), f.Branch, f.Role, f.VehicleModel,
			f.VehicleType, f.Quantity, f.SaleDate.String(), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) LoadSalesFacts(ctx context.Context, from, to engine.Date) ([]engine.SalesFact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT employee_id, branch, role, vehicle_model, vehicle_type, quantity, sale_date
		FROM sales_records
		WHERE sale_date BETWEEN ? AND ?
		ORDER BY id`,
		from.String(), to.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []engine.SalesFact
	for rows.Next() {
		var f engine.SalesFact
		var id, saleDate string
		if err := rows.Scan(&id, &f.Branch, &f.Role, &f.VehicleModel,
			&f.VehicleType, &f.Quantity, &saleDate); err != nil {
			return nil, err
		}
		f.EmployeeID = engine.EmployeeID(id)
		if f.SaleDate, err = engine.ParseDate(saleDate); err != nil {
			return nil, fmt.Errorf("corrupt sale_date %q: %w", saleDate, err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// =============================================================================
// RULES
// =============================================================================

// SaveRules inserts rules, skipping IDs already present. Returns the
// inserted and skipped counts.
func (s *Store) SaveRules(ctx context.Context, rules []engine.StructuredRule) (int, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, err
	}
	defer tx.Rollback()

	inserted, skipped := 0, 0
	now := nowISO()
	for _, r := range rules {
		var max any
		if r.MaxUnits != nil {
			max = *r.MaxUnits
		}
		res, err := tx.ExecContext(ctx, `
			INSERT INTO incentive_rules
			(id, role, vehicle_type, min_units, max_units,
			 incentive_amount, bonus_per_unit, valid_from, valid_to, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO NOTHING`,
			string(r.ID), r.Role, r.VehicleType, r.MinUnits, max,
			r.BaseAmount.String(), r.BonusPerUnit.String(),
			r.ValidFrom.String(), r.ValidTo.String(), now)
		if err != nil {
			return 0, 0, err
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		} else {
			skipped++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, err
	}
	return inserted, skipped, nil
}

func (s *Store) LoadRules(ctx context.Context, p engine.Period) ([]engine.StructuredRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, role, vehicle_type, min_units, max_units,
		       incentive_amount, bonus_per_unit, valid_from, valid_to
		FROM incentive_rules
		WHERE valid_from <= ? AND valid_to >= ?
		ORDER BY id`,
		p.Start.String(), p.End.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []engine.StructuredRule
	for rows.Next() {
		var r engine.StructuredRule
		var id, base, bonus, from, to string
		var max sql.NullInt64
		if err := rows.Scan(&id, &r.Role, &r.VehicleType, &r.MinUnits, &max,
			&base, &bonus, &from, &to); err != nil {
			return nil, err
		}
		r.ID = engine.RuleID(id)
		if max.Valid {
			v := int(max.Int64)
			r.MaxUnits = &v
		}
		if r.BaseAmount, err = decimal.NewFromString(base); err != nil {
			return nil, fmt.Errorf("corrupt incentive_amount %q: %w", base, err)
		}
		if r.BonusPerUnit, err = decimal.NewFromString(bonus); err != nil {
			return nil, fmt.Errorf("corrupt bonus_per_unit %q: %w", bonus, err)
		}
		if r.ValidFrom, err = engine.ParseDate(from); err != nil {
			return nil, err
		}
		if r.ValidTo, err = engine.ParseDate(to); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// =============================================================================
// SCHEMES
// =============================================================================

// SaveSchemeText stores the raw scheme document verbatim, replacing any
// previous upload.
func (s *Store) SaveSchemeText(ctx context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scheme_texts (id, content, uploaded_at)
		VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET content = excluded.content, uploaded_at = excluded.uploaded_at`,
		text, nowISO())
	return err
}

// LoadSchemeText returns the stored scheme document, or "" when none has
// been uploaded.
func (s *Store) LoadSchemeText(ctx context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var content string
	err := s.db.QueryRowContext(ctx,
		`SELECT content FROM scheme_texts WHERE id = 1`).Scan(&content)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return content, err
}

// =============================================================================
// RESULTS
// =============================================================================

// breakdownJSON is the stored shape of the itemized applications.
type breakdownJSON struct {
	Structured []ruleAppJSON   `json:"structured"`
	AdHoc      []schemeAppJSON `json:"adhoc"`
}

type ruleAppJSON struct {
	RuleID      string `json:"rule_id"`
	VehicleType string `json:"vehicle_type"`
	Units       int    `json:"units"`
	Amount      string `json:"amount"`
}

type schemeAppJSON struct {
	SchemeID  string  `json:"scheme_id"`
	Condition string  `json:"condition"`
	Amount    *string `json:"amount,omitempty"`
	Variable  string  `json:"variable,omitempty"`
	Note      bool    `json:"note,omitempty"`
}

func encodeBreakdown(b engine.IncentiveBreakdown) (string, error) {
	j := breakdownJSON{
		Structured: make([]ruleAppJSON, len(b.Structured)),
		AdHoc:      make([]schemeAppJSON, len(b.AdHoc)),
	}
	for i, a := range b.Structured {
		j.Structured[i] = ruleAppJSON{
			RuleID:      string(a.RuleID),
			VehicleType: a.VehicleType,
			Units:       a.Units,
			Amount:      a.Amount.String(),
		}
	}
	for i, a := range b.AdHoc {
		app := schemeAppJSON{
			SchemeID:  string(a.SchemeID),
			Condition: a.Condition,
			Variable:  a.Variable,
			Note:      a.Note,
		}
		if a.Amount != nil {
			v := a.Amount.String()
			app.Amount = &v
		}
		j.AdHoc[i] = app
	}
	data, err := json.Marshal(j)
	return string(data), err
}

func decodeBreakdown(data string, b *engine.IncentiveBreakdown) error {
	var j breakdownJSON
	if err := json.Unmarshal([]byte(data), &j); err != nil {
		return err
	}
	for _, a := range j.Structured {
		amount, err := decimal.NewFromString(a.Amount)
		if err != nil {
			return err
		}
		b.Structured = append(b.Structured, engine.RuleApplication{
			RuleID:      engine.RuleID(a.RuleID),
			VehicleType: a.VehicleType,
			Units:       a.Units,
			Amount:      amount,
		})
	}
	for _, a := range j.AdHoc {
		app := engine.SchemeApplication{
			SchemeID:  engine.SchemeID(a.SchemeID),
			Condition: a.Condition,
			Variable:  a.Variable,
			Note:      a.Note,
		}
		if a.Amount != nil {
			amount, err := decimal.NewFromString(*a.Amount)
			if err != nil {
				return err
			}
			app.Amount = &amount
		}
		b.AdHoc = append(b.AdHoc, app)
	}
	return nil
}

// ReplaceResults deletes the period's existing rows and inserts the new set
// in one database transaction.
func (s *Store) ReplaceResults(ctx context.Context, period string, results []engine.IncentiveBreakdown) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM calculation_results WHERE period_month = ?`, period); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO calculation_results
		(id, employee_id, period_month, total_incentive,
		 structured_total, adhoc_total, breakdown_json, status, calculated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := nowISO()
	for _, b := range results {
		breakdown, err := encodeBreakdown(b)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx,
			uuid.NewString(), string(b.EmployeeID), period,
			b.Total.String(), b.StructuredTotal.String(), b.AdHocTotal.String(),
			breakdown, b.Status, now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) ListResults(ctx context.Context, limit, offset int) ([]engine.IncentiveBreakdown, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT employee_id, period_month, total_incentive,
		       structured_total, adhoc_total, breakdown_json, status
		FROM calculation_results
		ORDER BY period_month, employee_id
		LIMIT ? OFFSET ?`,
		limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []engine.IncentiveBreakdown
	for rows.Next() {
		var b engine.IncentiveBreakdown
		var id, total, structured, adhoc, breakdown string
		if err := rows.Scan(&id, &b.Period, &total, &structured, &adhoc,
			&breakdown, &b.Status); err != nil {
			return nil, err
		}
		b.EmployeeID = engine.EmployeeID(id)
		if b.Total, err = decimal.NewFromString(total); err != nil {
			return nil, err
		}
		if b.StructuredTotal, err = decimal.NewFromString(structured); err != nil {
			return nil, err
		}
		if b.AdHocTotal, err = decimal.NewFromString(adhoc); err != nil {
			return nil, err
		}
		if err := decodeBreakdown(breakdown, &b); err != nil {
			return nil, fmt.Errorf("corrupt breakdown_json for %s/%s: %w", id, b.Period, err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// Stats rolls up all stored results into dashboard numbers. Ties for top
// performer go to the row seen first in (period, employee) order.
func (s *Store) Stats(ctx context.Context) (*engine.DashboardStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT employee_id, total_incentive
		FROM calculation_results
		ORDER BY period_month, employee_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := &engine.DashboardStats{
		TotalIncentive: decimal.Zero,
		AvgIncentive:   decimal.Zero,
	}
	var topAmount decimal.Decimal

	for rows.Next() {
		var id, total string
		if err := rows.Scan(&id, &total); err != nil {
			return nil, err
		}
		amount, err := decimal.NewFromString(total)
		if err != nil {
			return nil, fmt.Errorf("corrupt total_incentive %q: %w", total, err)
		}
		stats.TotalSalespeople++
		stats.TotalIncentive = stats.TotalIncentive.Add(amount)
		if stats.TopPerformer == "" || amount.GreaterThan(topAmount) {
			stats.TopPerformer = engine.EmployeeID(id)
			topAmount = amount
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if stats.TotalSalespeople > 0 {
		stats.AvgIncentive = stats.TotalIncentive.
			Div(decimal.NewFromInt(int64(stats.TotalSalespeople))).Round(2)
	}
	return stats, nil
}
