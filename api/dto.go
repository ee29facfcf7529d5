/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

MONEY:
  All monetary fields are decimal strings ("5300.00"), never floats. The
  engine computes in exact decimals and the API must not reintroduce
  binary-float drift at the boundary.

TYPES:
  Ingestion:
    IngestionResponse, RowErrorDTO

  Schemes:
    SchemeUploadResponse, SchemeDTO, InvalidSchemeDTO

  Calculation:
    RunRequest, RunResponse, ResultDTO, RuleApplicationDTO,
    SchemeApplicationDTO, DiagnosticDTO

  Reporting:
    StatsDTO

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - engine/types.go: The domain types these mirror
*/
package api

import (
	"github.com/warp/incentive-engine/engine"
	"github.com/warp/incentive-engine/scheme"
)

// =============================================================================
// INGESTION TYPES
// =============================================================================

// RowErrorDTO identifies one rejected CSV row. Row numbers are 1-based
// counting the header as row 1, so the first data row is row 2.
type RowErrorDTO struct {
	RowNumber int    `json:"row_number"`
	Error     string `json:"error"`
}

// IngestionResponse summarizes a CSV upload.
type IngestionResponse struct {
	Message        string        `json:"message"`
	TotalRows      int           `json:"total_rows"`
	SuccessfulRows int           `json:"successful_rows"`
	SkippedRows    int           `json:"skipped_rows,omitempty"`
	FailedRows     []RowErrorDTO `json:"failed_rows"`
}

// =============================================================================
// SCHEME TYPES
// =============================================================================

// SchemeDTO represents one parsed ad-hoc scheme record.
type SchemeDTO struct {
	SchemeID  string   `json:"scheme_id"`
	Name      string   `json:"name"`
	Condition string   `json:"condition"`
	Roles     []string `json:"applicable_roles"`
	Amount    *string  `json:"amount,omitempty"`
	Variable  string   `json:"variable,omitempty"`
	Note      bool     `json:"note,omitempty"`
	ValidFrom string   `json:"valid_from"`
	ValidTo   string   `json:"valid_to"`
}

// InvalidSchemeDTO is the per-block diagnostic for a malformed block.
type InvalidSchemeDTO struct {
	BlockID int    `json:"block_id"`
	Error   string `json:"error"`
}

// SchemeUploadResponse is returned after a scheme document upload: the
// parse preview plus the parser version that produced it.
type SchemeUploadResponse struct {
	Message        string             `json:"message"`
	RulesVersion   int                `json:"rules_version"`
	ValidSchemes   []SchemeDTO        `json:"valid_schemes"`
	InvalidSchemes []InvalidSchemeDTO `json:"invalid_schemes"`
}

// =============================================================================
// CALCULATION TYPES
// =============================================================================

// RunRequest triggers a calculation pass for one period.
type RunRequest struct {
	Period string `json:"period"` // "YYYY-MM"
}

// RuleApplicationDTO is one structured slab hit in a breakdown.
type RuleApplicationDTO struct {
	RuleID      string `json:"rule_id"`
	VehicleType string `json:"vehicle_type"`
	Units       int    `json:"units"`
	Amount      string `json:"amount"`
}

// SchemeApplicationDTO is one ad-hoc item in a breakdown.
type SchemeApplicationDTO struct {
	SchemeID  string  `json:"scheme_id"`
	Condition string  `json:"condition"`
	Amount    *string `json:"amount,omitempty"`
	Variable  string  `json:"variable,omitempty"`
	Note      bool    `json:"note,omitempty"`
}

// ResultDTO represents one (employee, period) result.
type ResultDTO struct {
	EmployeeID      string                 `json:"employee_id"`
	Period          string                 `json:"period"`
	Structured      []RuleApplicationDTO   `json:"structured_incentives"`
	AdHoc           []SchemeApplicationDTO `json:"adhoc_incentives"`
	StructuredTotal string                 `json:"structured_total"`
	AdHocTotal      string                 `json:"adhoc_total"`
	TotalIncentive  string                 `json:"total_incentive"`
	Status          string                 `json:"status"`
}

// DiagnosticDTO is one non-fatal input failure carried with a run.
type DiagnosticDTO struct {
	Source  string `json:"source"`
	Ref     string `json:"ref,omitempty"`
	Message string `json:"message"`
}

// RunResponse is the full payload of one calculation pass.
type RunResponse struct {
	Message        string          `json:"message"`
	RunID          string          `json:"run_id,omitempty"`
	Period         string          `json:"period"`
	Processed      int             `json:"records_processed"`
	TotalIncentive string          `json:"total_incentive"`
	AvgIncentive   string          `json:"avg_incentive"`
	TopPerformer   string          `json:"top_performer,omitempty"`
	Results        []ResultDTO     `json:"results"`
	Diagnostics    []DiagnosticDTO `json:"diagnostics,omitempty"`
}

// =============================================================================
// REPORTING TYPES
// =============================================================================

// StatsDTO is the dashboard roll-up over all stored results.
type StatsDTO struct {
	TotalIncentive   string `json:"total_incentive"`
	TotalSalespeople int    `json:"total_salespeople"`
	AvgIncentive     string `json:"avg_incentive"`
	TopPerformer     string `json:"top_performer,omitempty"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERTERS
// =============================================================================

func toSchemeDTO(s engine.AdHocScheme) SchemeDTO {
	dto := SchemeDTO{
		SchemeID:  string(s.ID),
		Name:      s.Name,
		Condition: s.Condition,
		Roles:     s.Roles,
		Variable:  s.Variable,
		Note:      s.Note,
		ValidFrom: s.ValidFrom.String(),
		ValidTo:   s.ValidTo.String(),
	}
	if s.Amount != nil {
		v := s.Amount.String()
		dto.Amount = &v
	}
	return dto
}

func toSchemeDTOs(schemes []engine.AdHocScheme) []SchemeDTO {
	dtos := make([]SchemeDTO, len(schemes))
	for i, s := range schemes {
		dtos[i] = toSchemeDTO(s)
	}
	return dtos
}

func toInvalidSchemeDTOs(invalid []scheme.InvalidScheme) []InvalidSchemeDTO {
	dtos := make([]InvalidSchemeDTO, len(invalid))
	for i, inv := range invalid {
		dtos[i] = InvalidSchemeDTO{BlockID: inv.ID, Error: inv.Err}
	}
	return dtos
}

func toResultDTO(b engine.IncentiveBreakdown) ResultDTO {
	dto := ResultDTO{
		EmployeeID:      string(b.EmployeeID),
		Period:          b.Period,
		Structured:      make([]RuleApplicationDTO, len(b.Structured)),
		AdHoc:           make([]SchemeApplicationDTO, len(b.AdHoc)),
		StructuredTotal: b.StructuredTotal.StringFixed(2),
		AdHocTotal:      b.AdHocTotal.StringFixed(2),
		TotalIncentive:  b.Total.StringFixed(2),
		Status:          b.Status,
	}
	for i, a := range b.Structured {
		dto.Structured[i] = RuleApplicationDTO{
			RuleID:      string(a.RuleID),
			VehicleType: a.VehicleType,
			Units:       a.Units,
			Amount:      a.Amount.StringFixed(2),
		}
	}
	for i, a := range b.AdHoc {
		app := SchemeApplicationDTO{
			SchemeID:  string(a.SchemeID),
			Condition: a.Condition,
			Variable:  a.Variable,
			Note:      a.Note,
		}
		if a.Amount != nil {
			v := a.Amount.StringFixed(2)
			app.Amount = &v
		}
		dto.AdHoc[i] = app
	}
	return dto
}

func toResultDTOs(results []engine.IncentiveBreakdown) []ResultDTO {
	dtos := make([]ResultDTO, len(results))
	for i, b := range results {
		dtos[i] = toResultDTO(b)
	}
	return dtos
}

func toDiagnosticDTOs(diags []engine.Diagnostic) []DiagnosticDTO {
	if len(diags) == 0 {
		return nil
	}
	dtos := make([]DiagnosticDTO, len(diags))
	for i, d := range diags {
		dtos[i] = DiagnosticDTO{Source: d.Source, Ref: d.Ref, Message: d.Message}
	}
	return dtos
}
