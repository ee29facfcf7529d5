/*
handlers_test.go - End-to-end tests for the HTTP API

Exercises the full pipeline through the router: CSV uploads, scheme
document upload, calculation runs, and reporting, backed by the in-memory
store.
*/
package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/incentive-engine/api"
	"github.com/warp/incentive-engine/engine"
	memstore "github.com/warp/incentive-engine/engine/store"
	"github.com/warp/incentive-engine/factory"
	"github.com/warp/incentive-engine/scheme"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestServer(t *testing.T) (*httptest.Server, *memstore.Memory) {
	t.Helper()

	store := memstore.NewMemory()
	cfg := factory.Default()
	// Pin the scheme fallback window so tests don't depend on the clock.
	cfg.DefaultWindow = scheme.Window{
		From: mustDate(t, "2024-01-01"),
		To:   mustDate(t, "2024-01-31"),
	}

	srv := httptest.NewServer(api.NewRouter(api.NewHandler(store, cfg)))
	t.Cleanup(srv.Close)
	return srv, store
}

func mustDate(t *testing.T, s string) engine.Date {
	t.Helper()
	d, err := engine.ParseDate(s)
	require.NoError(t, err)
	return d
}

// postFile uploads content as a multipart "file" field.
func postFile(t *testing.T, url, filename, content string) *http.Response {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = io.WriteString(part, content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := http.Post(url, mw.FormDataContentType(), &body)
	require.NoError(t, err)
	return resp
}

func postJSON(t *testing.T, url string, payload any) *http.Response {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

const salesCSV = `Employee_ID,Branch,Role,Vehicle_Model,Quantity,Sale_Date,Vehicle_Type
EMP001,North,RM,Nexon EV,7,2024-01-05,EV
EMP001,North,RM,Nexon EV,5,2024-01-20,EV
EMP002,South,ASM,Splendor,4,2024-01-06,Bike
`

const rulesCSV = `Rule_ID,Role,Vehicle_Type,Min_Units,Max_Units,Incentive_Amount_INR,Bonus_Per_Unit_INR,Valid_From,Valid_To
R1,RM,EV,5,10,3000,200,2024-01-01,2024-12-31
R2,RM,EV,11,None,5000,300,2024-01-01,2024-12-31
`

const schemeText = `** SCHEME 1: Festive EV Push
Applicable to: RMs
Valid: 2024-01-01 to 2024-01-31
RMs get ₹2,000 on EV volumes
`

func seedEverything(t *testing.T, srv *httptest.Server) {
	t.Helper()
	resp := postFile(t, srv.URL+"/api/ingestion/sales", "sales.csv", salesCSV)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
	resp = postFile(t, srv.URL+"/api/ingestion/rules", "rules.csv", rulesCSV)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
	resp = postFile(t, srv.URL+"/api/ingestion/schemes", "circular.txt", schemeText)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

// =============================================================================
// INGESTION TESTS
// =============================================================================

func TestIngestSales_ReportsRowFailures(t *testing.T) {
	// GIVEN: A sales CSV with one bad row
	// WHEN: Uploading it
	// THEN: 200 with the good rows counted and the bad row itemized

	srv, _ := newTestServer(t)

	csv := "Employee_ID,Branch,Role,Vehicle_Model,Quantity,Sale_Date,Vehicle_Type\n" +
		"EMP001,North,RM,Nexon EV,2,2024-01-05,EV\n" +
		"EMP002,South,ASM,Splendor,zero,2024-01-06,Bike\n"

	resp := postFile(t, srv.URL+"/api/ingestion/sales", "sales.csv", csv)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[api.IngestionResponse](t, resp)
	assert.Equal(t, 2, body.TotalRows)
	assert.Equal(t, 1, body.SuccessfulRows)
	require.Len(t, body.FailedRows, 1)
	assert.Equal(t, 3, body.FailedRows[0].RowNumber)
}

func TestIngestSales_MissingColumns(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postFile(t, srv.URL+"/api/ingestion/sales", "sales.csv", "Employee_ID,Branch\nE1,North\n")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestIngestRules_DuplicatesSkipped(t *testing.T) {
	// GIVEN: The same rules file uploaded twice
	// WHEN: Uploading the second time
	// THEN: Every rule counts as skipped, none inserted

	srv, _ := newTestServer(t)

	resp := postFile(t, srv.URL+"/api/ingestion/rules", "rules.csv", rulesCSV)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = postFile(t, srv.URL+"/api/ingestion/rules", "rules.csv", rulesCSV)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[api.IngestionResponse](t, resp)
	assert.Equal(t, 0, body.SuccessfulRows)
	assert.Equal(t, 2, body.SkippedRows)
}

func TestIngestSchemes_ParsePreview(t *testing.T) {
	// GIVEN: A parsable scheme document
	// WHEN: Uploading it
	// THEN: 200 with the parsed records and the parser version

	srv, store := newTestServer(t)

	resp := postFile(t, srv.URL+"/api/ingestion/schemes", "circular.txt", schemeText)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[api.SchemeUploadResponse](t, resp)
	assert.Equal(t, scheme.RulesVersion, body.RulesVersion)
	require.Len(t, body.ValidSchemes, 1)
	assert.Equal(t, "1.1", body.ValidSchemes[0].SchemeID)
	assert.Equal(t, []string{"RM"}, body.ValidSchemes[0].Roles)

	// Raw text stored verbatim for later re-parsing.
	stored, err := store.LoadSchemeText(context.Background())
	require.NoError(t, err)
	assert.Equal(t, schemeText, stored)
}

func TestIngestSchemes_NothingParsable(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postFile(t, srv.URL+"/api/ingestion/schemes", "circular.txt", "hello world")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// =============================================================================
// CALCULATION TESTS
// =============================================================================

func TestRunCalculation_FullPipeline(t *testing.T) {
	// GIVEN: Sales, rules, and a scheme document uploaded
	// WHEN: Running January
	// THEN: EMP001's 12 EV units hit the top band (5000 + 300) plus the
	//       2000 scheme bonus; EMP002 has no matching band

	srv, _ := newTestServer(t)
	seedEverything(t, srv)

	resp := postJSON(t, srv.URL+"/api/calculator/run", api.RunRequest{Period: "2024-01"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[api.RunResponse](t, resp)
	assert.Equal(t, 2, body.Processed)
	assert.Equal(t, "7300.00", body.TotalIncentive)
	assert.Equal(t, "EMP001", body.TopPerformer)
	assert.NotEmpty(t, body.RunID)
	require.Len(t, body.Results, 2)

	first := body.Results[0]
	assert.Equal(t, "EMP001", first.EmployeeID)
	assert.Equal(t, "5300.00", first.StructuredTotal)
	assert.Equal(t, "2000.00", first.AdHocTotal)
	assert.Equal(t, "Completed", first.Status)

	second := body.Results[1]
	assert.Equal(t, "EMP002", second.EmployeeID)
	assert.Equal(t, "0.00", second.TotalIncentive)
	assert.Equal(t, "No Incentive", second.Status)
}

func TestRunCalculation_InvalidPeriod(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/calculator/run", api.RunRequest{Period: "January 2024"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRunCalculation_NoActiveRules(t *testing.T) {
	// GIVEN: Sales but no rules covering the period
	// WHEN: Running
	// THEN: 400, the request is rejected outright

	srv, _ := newTestServer(t)
	resp := postFile(t, srv.URL+"/api/ingestion/sales", "sales.csv", salesCSV)
	resp.Body.Close()

	resp = postJSON(t, srv.URL+"/api/calculator/run", api.RunRequest{Period: "2024-01"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRunCalculation_NoSalesIsNotAnError(t *testing.T) {
	// GIVEN: Rules but no sales in the requested month
	// WHEN: Running
	// THEN: 200 with zero processed, not a failure

	srv, _ := newTestServer(t)
	resp := postFile(t, srv.URL+"/api/ingestion/rules", "rules.csv", rulesCSV)
	resp.Body.Close()

	resp = postJSON(t, srv.URL+"/api/calculator/run", api.RunRequest{Period: "2024-03"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[api.RunResponse](t, resp)
	assert.Equal(t, 0, body.Processed)
	assert.Contains(t, body.Message, "No sales found")
	assert.Equal(t, "0.00", body.TotalIncentive)
}

func TestRunCalculation_RerunReplacesResults(t *testing.T) {
	// GIVEN: A completed January run
	// WHEN: Rerunning January
	// THEN: Stored results are replaced, not duplicated

	srv, _ := newTestServer(t)
	seedEverything(t, srv)

	for i := 0; i < 2; i++ {
		resp := postJSON(t, srv.URL+"/api/calculator/run", api.RunRequest{Period: "2024-01"})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()
	}

	resp, err := http.Get(srv.URL + "/api/results")
	require.NoError(t, err)
	results := decode[[]api.ResultDTO](t, resp)
	assert.Len(t, results, 2, "rerun must not duplicate the period's rows")
}

// =============================================================================
// REPORTING TESTS
// =============================================================================

func TestGetStats(t *testing.T) {
	srv, _ := newTestServer(t)
	seedEverything(t, srv)

	resp := postJSON(t, srv.URL+"/api/calculator/run", api.RunRequest{Period: "2024-01"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	statsResp, err := http.Get(srv.URL + "/api/results/stats")
	require.NoError(t, err)
	stats := decode[api.StatsDTO](t, statsResp)

	assert.Equal(t, 2, stats.TotalSalespeople)
	assert.Equal(t, "7300.00", stats.TotalIncentive)
	assert.Equal(t, "3650.00", stats.AvgIncentive)
	assert.Equal(t, "EMP001", stats.TopPerformer)
}

func TestListSchemes_EmptyAndPopulated(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/schemes")
	require.NoError(t, err)
	body := decode[api.SchemeUploadResponse](t, resp)
	assert.Empty(t, body.ValidSchemes)

	upload := postFile(t, srv.URL+"/api/ingestion/schemes", "circular.txt", schemeText)
	upload.Body.Close()

	resp, err = http.Get(srv.URL + "/api/schemes")
	require.NoError(t, err)
	body = decode[api.SchemeUploadResponse](t, resp)
	require.Len(t, body.ValidSchemes, 1)
	assert.Equal(t, "Festive Ev Push", body.ValidSchemes[0].Name)
}

func TestListResults_Paging(t *testing.T) {
	srv, _ := newTestServer(t)
	seedEverything(t, srv)

	resp := postJSON(t, srv.URL+"/api/calculator/run", api.RunRequest{Period: "2024-01"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	pageResp, err := http.Get(srv.URL + "/api/results?limit=1&offset=1")
	require.NoError(t, err)
	page := decode[[]api.ResultDTO](t, pageResp)
	require.Len(t, page, 1)
	assert.Equal(t, "EMP002", page[0].EmployeeID)
}
