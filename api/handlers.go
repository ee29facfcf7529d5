/*
handlers.go - HTTP API handlers for the incentive calculation system

PURPOSE:
  Exposes the incentive engine via REST API. Handles HTTP request/response,
  JSON serialization, file uploads, and delegates to domain logic. This is
  the only layer that touches both the engine and the store: it loads input
  snapshots, invokes the pure calculation, and persists the output.

ENDPOINTS:
  Ingestion:
    POST   /api/ingestion/sales    Upload sales CSV
    POST   /api/ingestion/rules    Upload structured-rules CSV
    POST   /api/ingestion/schemes  Upload ad-hoc scheme document

  Calculation:
    POST   /api/calculator/run     Run one calculation pass for a period

  Reporting:
    GET    /api/results            List stored results (paged)
    GET    /api/results/stats      Dashboard roll-up
    GET    /api/schemes            Parse preview of the stored scheme text

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input
  3. Call domain logic (ingest, scheme parser, engine)
  4. Persist through the store
  5. Serialize response

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid period, missing columns, no active rules
  - 500: Store failures, internal errors
  A period with no sales is NOT an error: the run responds 200 with zero
  records processed. Per-row and per-block failures ride along as
  diagnostics in 2xx payloads, they never abort the request.

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - engine/engine.go: The calculation pass this layer orchestrates
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/warp/incentive-engine/engine"
	"github.com/warp/incentive-engine/factory"
	"github.com/warp/incentive-engine/ingest"
	"github.com/warp/incentive-engine/scheme"
)

// maxUploadBytes caps ingestion payloads (CSV and scheme documents).
const maxUploadBytes = 16 << 20 // 16 MB

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store  engine.Store
	Config *factory.Config
}

// NewHandler creates a new handler with the given store and configuration.
func NewHandler(store engine.Store, cfg *factory.Config) *Handler {
	if cfg == nil {
		cfg = factory.Default()
	}
	return &Handler{Store: store, Config: cfg}
}

// uploadFile extracts the "file" part of a multipart upload, falling back
// to the raw request body for clients that POST the bytes directly.
func uploadFile(w http.ResponseWriter, r *http.Request) (io.ReadCloser, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	if err := r.ParseMultipartForm(maxUploadBytes); err == nil {
		f, _, err := r.FormFile("file")
		if err != nil {
			return nil, errors.New(`multipart upload is missing the "file" field`)
		}
		return f, nil
	}
	return r.Body, nil
}

// =============================================================================
// INGESTION HANDLERS
// =============================================================================

// IngestSales accepts a sales CSV, validates it row by row, and persists
// the valid rows plus first-seen roster records.
// POST /api/ingestion/sales
func (h *Handler) IngestSales(w http.ResponseWriter, r *http.Request) {
	f, err := uploadFile(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid upload", err)
		return
	}
	defer f.Close()

	result, err := ingest.ReadSalesCSV(f)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Could not read sales CSV", err)
		return
	}

	ctx := r.Context()
	for _, sp := range result.Roster {
		if err := h.Store.SaveSalesperson(ctx, sp); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to save salesperson", err)
			return
		}
	}
	if err := h.Store.AppendSalesFacts(ctx, result.Facts); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save sales records", err)
		return
	}

	resp := IngestionResponse{
		TotalRows:      result.TotalRows(),
		SuccessfulRows: len(result.Facts),
		SkippedRows:    result.Skipped,
		FailedRows:     toRowErrors(result.Failed),
	}
	switch {
	case len(result.Facts) == 0 && len(result.Failed) > 0:
		resp.Message = "No valid rows found in upload"
	case len(result.Failed) > 0:
		resp.Message = fmt.Sprintf("Ingested %d sales records with %d failed rows",
			len(result.Facts), len(result.Failed))
	default:
		resp.Message = fmt.Sprintf("Successfully ingested %d sales records", len(result.Facts))
	}

	writeJSON(w, http.StatusOK, resp)
}

// IngestRules accepts a structured-rules CSV. Rule IDs already present are
// skipped, not overwritten.
// POST /api/ingestion/rules
func (h *Handler) IngestRules(w http.ResponseWriter, r *http.Request) {
	f, err := uploadFile(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid upload", err)
		return
	}
	defer f.Close()

	result, err := ingest.ReadRulesCSV(f)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Could not read rules CSV", err)
		return
	}

	inserted, skipped, err := h.Store.SaveRules(r.Context(), result.Rules)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save rules", err)
		return
	}

	resp := IngestionResponse{
		TotalRows:      result.TotalRows(),
		SuccessfulRows: inserted,
		SkippedRows:    result.Skipped + skipped,
		FailedRows:     toRowErrors(result.Failed),
	}
	switch {
	case inserted == 0 && len(result.Failed) > 0:
		resp.Message = "No valid rules found in upload"
	case len(result.Failed) > 0:
		resp.Message = fmt.Sprintf("Ingested %d rules (%d skipped, %d failed rows)",
			inserted, skipped, len(result.Failed))
	default:
		resp.Message = fmt.Sprintf("Successfully ingested %d rules (%d duplicates skipped)",
			inserted, skipped)
	}

	writeJSON(w, http.StatusOK, resp)
}

// IngestSchemes accepts the ad-hoc scheme document as free text. The raw
// text is stored verbatim and re-parsed on every calculation run, so later
// parser improvements apply retroactively. The response is a parse preview.
// POST /api/ingestion/schemes
func (h *Handler) IngestSchemes(w http.ResponseWriter, r *http.Request) {
	f, err := uploadFile(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid upload", err)
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Could not read upload", err)
		return
	}
	if len(data) == 0 {
		writeError(w, http.StatusBadRequest, "Uploaded file is empty", nil)
		return
	}
	text := string(data)

	parsed, err := scheme.Parse(text, h.Config.DefaultWindow)
	if err != nil {
		// Nothing parsable at all: reject rather than store a document
		// that every future run would fail on.
		writeError(w, http.StatusBadRequest, "No parsable schemes in upload", err)
		return
	}

	if err := h.Store.SaveSchemeText(r.Context(), text); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save scheme text", err)
		return
	}

	writeJSON(w, http.StatusOK, SchemeUploadResponse{
		Message: fmt.Sprintf("Parsed %d schemes (%d invalid blocks)",
			len(parsed.Schemes), len(parsed.Invalid)),
		RulesVersion:   scheme.RulesVersion,
		ValidSchemes:   toSchemeDTOs(parsed.Schemes),
		InvalidSchemes: toInvalidSchemeDTOs(parsed.Invalid),
	})
}

// =============================================================================
// CALCULATION HANDLER
// =============================================================================

// RunCalculation executes one full calculation pass for a period and
// persists the results, replacing any previous results for that period.
// POST /api/calculator/run
func (h *Handler) RunCalculation(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	period, err := engine.ParsePeriod(req.Period)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period (use YYYY-MM)", err)
		return
	}

	ctx := r.Context()

	facts, err := h.Store.LoadSalesFacts(ctx, period.Start, period.End)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load sales data", err)
		return
	}
	roster, err := h.Store.ListSalespeople(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load salespeople", err)
		return
	}
	rules, err := h.Store.LoadRules(ctx, period)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load rules", err)
		return
	}

	schemes, diags, err := h.loadSchemes(r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load scheme text", err)
		return
	}

	result, err := engine.Run(engine.RunInput{
		Period:      period,
		Facts:       facts,
		Roster:      roster,
		Rules:       rules,
		Schemes:     schemes,
		AdHoc:       h.Config.BuildPolicy(schemes),
		Diagnostics: diags,
	})
	switch {
	case err == nil:
	case engine.IsNoData(err):
		// A month without sales is an empty result, not a failure.
		writeJSON(w, http.StatusOK, RunResponse{
			Message: fmt.Sprintf("No sales found for period %s; 0 records processed",
				period.Key()),
			Period:         period.Key(),
			TotalIncentive: "0.00",
			AvgIncentive:   "0.00",
			Results:        []ResultDTO{},
			Diagnostics:    toDiagnosticDTOs(diags),
		})
		return
	case engine.IsClientError(err):
		writeError(w, http.StatusBadRequest, "Calculation rejected", err)
		return
	default:
		writeError(w, http.StatusInternalServerError, "Calculation failed", err)
		return
	}

	if err := h.Store.ReplaceResults(ctx, period.Key(), result.Results); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save results", err)
		return
	}

	writeJSON(w, http.StatusOK, RunResponse{
		Message: fmt.Sprintf("Calculated incentives for %d salespeople",
			result.Summary.Processed),
		RunID:          result.Summary.RunID,
		Period:         result.Summary.Period,
		Processed:      result.Summary.Processed,
		TotalIncentive: result.Summary.TotalIncentive.StringFixed(2),
		AvgIncentive:   result.Summary.AvgIncentive.StringFixed(2),
		TopPerformer:   string(result.Summary.TopPerformer),
		Results:        toResultDTOs(result.Results),
		Diagnostics:    toDiagnosticDTOs(result.Diagnostics),
	})
}

// loadSchemes fetches and parses the stored scheme document. Invalid blocks
// and a wholly unparsable document become diagnostics, never errors: the
// structured portion of a run must not be blocked by bad free text.
func (h *Handler) loadSchemes(r *http.Request) ([]engine.AdHocScheme, []engine.Diagnostic, error) {
	if h.Config.PolicyKind != factory.PolicySchemes {
		return nil, nil, nil
	}

	text, err := h.Store.LoadSchemeText(r.Context())
	if err != nil {
		return nil, nil, err
	}
	if text == "" {
		return nil, nil, nil
	}

	parsed, err := scheme.Parse(text, h.Config.DefaultWindow)
	if err != nil {
		return nil, []engine.Diagnostic{{
			Source:  "schemes",
			Message: err.Error(),
		}}, nil
	}

	diags := make([]engine.Diagnostic, 0, len(parsed.Invalid))
	for _, inv := range parsed.Invalid {
		diags = append(diags, engine.Diagnostic{
			Source:  "schemes",
			Ref:     fmt.Sprintf("block %d", inv.ID),
			Message: inv.Err,
		})
	}
	return parsed.Schemes, diags, nil
}

// =============================================================================
// REPORTING HANDLERS
// =============================================================================

// ListResults returns stored results, paged via ?limit= and ?offset=.
// GET /api/results
func (h *Handler) ListResults(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 100)
	offset := queryInt(r, "offset", 0)

	results, err := h.Store.ListResults(r.Context(), limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list results", err)
		return
	}

	writeJSON(w, http.StatusOK, toResultDTOs(results))
}

// GetStats returns the dashboard roll-up across all stored results.
// GET /api/results/stats
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Store.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute stats", err)
		return
	}

	writeJSON(w, http.StatusOK, StatsDTO{
		TotalIncentive:   stats.TotalIncentive.StringFixed(2),
		TotalSalespeople: stats.TotalSalespeople,
		AvgIncentive:     stats.AvgIncentive.StringFixed(2),
		TopPerformer:     string(stats.TopPerformer),
	})
}

// ListSchemes returns the parse preview of the currently stored scheme
// document, using the same parser the calculation run uses.
// GET /api/schemes
func (h *Handler) ListSchemes(w http.ResponseWriter, r *http.Request) {
	text, err := h.Store.LoadSchemeText(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load scheme text", err)
		return
	}

	resp := SchemeUploadResponse{
		Message:        "No scheme document uploaded",
		RulesVersion:   scheme.RulesVersion,
		ValidSchemes:   []SchemeDTO{},
		InvalidSchemes: []InvalidSchemeDTO{},
	}
	if text != "" {
		parsed, err := scheme.Parse(text, h.Config.DefaultWindow)
		if err != nil {
			resp.Message = "Stored scheme document has no parsable blocks"
		} else {
			resp.Message = fmt.Sprintf("%d schemes active", len(parsed.Schemes))
			resp.ValidSchemes = toSchemeDTOs(parsed.Schemes)
			resp.InvalidSchemes = toInvalidSchemeDTOs(parsed.Invalid)
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// HELPERS
// =============================================================================

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func toRowErrors(failed []ingest.RowDiagnostic) []RowErrorDTO {
	dtos := make([]RowErrorDTO, len(failed))
	for i, f := range failed {
		dtos[i] = RowErrorDTO{RowNumber: f.Row, Error: f.Message}
	}
	return dtos
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
