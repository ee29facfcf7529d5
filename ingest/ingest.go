/*
Package ingest reads uploaded CSV files into validated engine types.

PURPOSE:
  The boundary between loosely-typed tabular uploads and the strongly-typed
  engine. Every row either becomes a SalesFact/StructuredRule or a
  row-numbered diagnostic; malformed rows never reach the calculator.

FAILURE SEMANTICS:
  - Missing required columns reject the whole file.
  - An empty file (no data rows) rejects the whole file.
  - A bad row is recorded with its 1-based row number (header is row 1)
    and processing continues.
  - Completely blank rows are skipped and counted, not flagged.

SEE ALSO:
  - engine/types.go: Target types
  - api/handlers.go: Upload endpoints using these readers
*/
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/warp/incentive-engine/engine"
)

// =============================================================================
// ERRORS AND DIAGNOSTICS
// =============================================================================

var (
	// ErrEmptyFile is returned for a file with no data rows.
	ErrEmptyFile = errors.New("uploaded file is empty")
)

// MissingColumnsError rejects a file whose header lacks required columns.
type MissingColumnsError struct {
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	return "invalid CSV structure, missing columns: " + strings.Join(e.Columns, ", ")
}

// RowDiagnostic records one rejected row. Row numbers are 1-based with the
// header as row 1, matching what a spreadsheet shows the uploader.
type RowDiagnostic struct {
	Row     int
	Message string
}

// =============================================================================
// GENERIC ROW READER
// =============================================================================

// table is a parsed CSV: header index plus raw rows.
type table struct {
	index map[string]int
	rows  [][]string
}

func (t *table) get(row []string, column string) string {
	i, ok := t.index[column]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func readTable(r io.Reader, required []string) (*table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1 // ragged rows are handled per-cell
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyFile
		}
		return nil, fmt.Errorf("invalid CSV file format: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.TrimSpace(strings.TrimPrefix(h, "\uFEFF"))] = i
	}

	var missing []string
	for _, col := range required {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingColumnsError{Columns: missing}
	}

	var rows [][]string
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("invalid CSV file format: %w", err)
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil, ErrEmptyFile
	}

	return &table{index: index, rows: rows}, nil
}

func blank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// =============================================================================
// SALES FACTS
// =============================================================================

// Required sales CSV columns, as produced by the dealer management export.
var SalesColumns = []string{
	"Employee_ID", "Branch", "Role", "Vehicle_Model",
	"Quantity", "Sale_Date", "Vehicle_Type",
}

// SalesResult is the outcome of reading a sales CSV.
type SalesResult struct {
	Facts   []engine.SalesFact
	Roster  []engine.Salesperson // first-seen master record per employee
	Skipped int
	Failed  []RowDiagnostic
}

// TotalRows returns the number of data rows in the file.
func (r *SalesResult) TotalRows() int {
	return len(r.Facts) + r.Skipped + len(r.Failed)
}

// ReadSalesCSV parses and validates a sales upload.
func ReadSalesCSV(r io.Reader) (*SalesResult, error) {
	t, err := readTable(r, SalesColumns)
	if err != nil {
		return nil, err
	}

	result := &SalesResult{}
	seen := make(map[engine.EmployeeID]bool)

	for i, row := range t.rows {
		rowNum := i + 2 // 1-based, after the header row
		if blank(row) {
			result.Skipped++
			continue
		}

		fact, err := salesRow(t, row)
		if err != nil {
			result.Failed = append(result.Failed, RowDiagnostic{Row: rowNum, Message: err.Error()})
			continue
		}

		if !seen[fact.EmployeeID] {
			seen[fact.EmployeeID] = true
			result.Roster = append(result.Roster, engine.Salesperson{
				ID:     fact.EmployeeID,
				Branch: fact.Branch,
				Role:   fact.Role,
			})
		}
		result.Facts = append(result.Facts, fact)
	}

	return result, nil
}

func salesRow(t *table, row []string) (engine.SalesFact, error) {
	id := t.get(row, "Employee_ID")
	if id == "" {
		return engine.SalesFact{}, errors.New("Employee_ID is required")
	}

	qtyStr := t.get(row, "Quantity")
	qty, err := strconv.Atoi(qtyStr)
	if err != nil {
		return engine.SalesFact{}, fmt.Errorf("invalid Quantity %q", qtyStr)
	}
	if qty < 1 {
		return engine.SalesFact{}, fmt.Errorf("Quantity must be >= 1, got %d", qty)
	}

	saleDate, err := engine.ParseDate(t.get(row, "Sale_Date"))
	if err != nil {
		return engine.SalesFact{}, fmt.Errorf("invalid Sale_Date: %v", err)
	}

	vehicleType := t.get(row, "Vehicle_Type")
	if vehicleType == "" {
		return engine.SalesFact{}, errors.New("Vehicle_Type is required")
	}

	return engine.SalesFact{
		EmployeeID:   engine.EmployeeID(id),
		Branch:       t.get(row, "Branch"),
		Role:         t.get(row, "Role"),
		VehicleModel: t.get(row, "Vehicle_Model"),
		VehicleType:  vehicleType,
		Quantity:     qty,
		SaleDate:     saleDate,
	}, nil
}

// =============================================================================
// STRUCTURED RULES
// =============================================================================

// Required rule CSV columns.
var RuleColumns = []string{
	"Rule_ID", "Role", "Vehicle_Type", "Min_Units", "Max_Units",
	"Incentive_Amount_INR", "Bonus_Per_Unit_INR", "Valid_From", "Valid_To",
}

// RuleResult is the outcome of reading a rules CSV.
type RuleResult struct {
	Rules   []engine.StructuredRule
	Skipped int
	Failed  []RowDiagnostic
}

func (r *RuleResult) TotalRows() int {
	return len(r.Rules) + r.Skipped + len(r.Failed)
}

// ReadRulesCSV parses and validates a structured-rule upload.
func ReadRulesCSV(r io.Reader) (*RuleResult, error) {
	t, err := readTable(r, RuleColumns)
	if err != nil {
		return nil, err
	}

	result := &RuleResult{}
	for i, row := range t.rows {
		rowNum := i + 2
		if blank(row) {
			result.Skipped++
			continue
		}

		rule, err := ruleRow(t, row)
		if err != nil {
			result.Failed = append(result.Failed, RowDiagnostic{Row: rowNum, Message: err.Error()})
			continue
		}
		result.Rules = append(result.Rules, rule)
	}

	return result, nil
}

func ruleRow(t *table, row []string) (engine.StructuredRule, error) {
	id := t.get(row, "Rule_ID")
	if id == "" {
		return engine.StructuredRule{}, errors.New("Rule_ID is required")
	}

	minUnits, err := strconv.Atoi(t.get(row, "Min_Units"))
	if err != nil {
		return engine.StructuredRule{}, fmt.Errorf("invalid Min_Units %q", t.get(row, "Min_Units"))
	}

	// Blank or "None" means the band is unbounded above.
	var maxUnits *int
	if raw := t.get(row, "Max_Units"); raw != "" && !strings.EqualFold(raw, "none") {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return engine.StructuredRule{}, fmt.Errorf("invalid Max_Units %q", raw)
		}
		if v < minUnits {
			return engine.StructuredRule{}, fmt.Errorf("Max_Units %d below Min_Units %d", v, minUnits)
		}
		maxUnits = &v
	}

	base, err := decimal.NewFromString(t.get(row, "Incentive_Amount_INR"))
	if err != nil {
		return engine.StructuredRule{}, fmt.Errorf("invalid Incentive_Amount_INR %q", t.get(row, "Incentive_Amount_INR"))
	}
	bonus, err := decimal.NewFromString(t.get(row, "Bonus_Per_Unit_INR"))
	if err != nil {
		return engine.StructuredRule{}, fmt.Errorf("invalid Bonus_Per_Unit_INR %q", t.get(row, "Bonus_Per_Unit_INR"))
	}

	validFrom, err := engine.ParseDate(t.get(row, "Valid_From"))
	if err != nil {
		return engine.StructuredRule{}, fmt.Errorf("invalid Valid_From: %v", err)
	}
	validTo, err := engine.ParseDate(t.get(row, "Valid_To"))
	if err != nil {
		return engine.StructuredRule{}, fmt.Errorf("invalid Valid_To: %v", err)
	}
	if validTo.Before(validFrom) {
		return engine.StructuredRule{}, errors.New("Valid_To before Valid_From")
	}

	return engine.StructuredRule{
		ID:           engine.RuleID(id),
		Role:         t.get(row, "Role"),
		VehicleType:  t.get(row, "Vehicle_Type"),
		MinUnits:     minUnits,
		MaxUnits:     maxUnits,
		BaseAmount:   base,
		BonusPerUnit: bonus,
		ValidFrom:    validFrom,
		ValidTo:      validTo,
	}, nil
}
