package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bachat/settlement-engine/api"
	"github.com/bachat/settlement-engine/ledger"
	"github.com/bachat/settlement-engine/ledger/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	handler := api.NewHandler(store.NewTxMemory())
	srv := httptest.NewServer(api.NewRouter(handler))
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body any, out any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// seedGroup provisions a monthly group with two members over the API and
// returns the group id.
func seedGroup(t *testing.T, srv *httptest.Server) string {
	t.Helper()

	var group api.GroupDTO
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/groups", map[string]any{
		"name":                    "Bachat Gat",
		"frequency":               "MONTHLY",
		"day_of_month":            15,
		"base_contribution":       "500",
		"annual_interest_percent": "12",
		"cash_in_hand":            "1000",
		"cash_in_bank":            "4000",
	}, &group)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	for _, name := range []string{"Asha", "Meena"} {
		var member api.MemberDTO
		resp := doJSON(t, http.MethodPost, srv.URL+"/api/members", map[string]any{"name": name}, &member)
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		resp = doJSON(t, http.MethodPost, srv.URL+"/api/groups/"+group.ID+"/members", map[string]any{
			"member_id": member.ID,
		}, nil)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}
	return group.ID
}

func openPeriod(t *testing.T, srv *httptest.Server, groupID string) api.OpenPeriodResponse {
	t.Helper()

	var opened api.OpenPeriodResponse
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/groups/"+groupID+"/periods", map[string]any{
		"meeting_date":           "2025-03-01",
		"record_sequence_number": 1,
	}, &opened)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return opened
}

// =============================================================================
// GROUP ENDPOINTS
// =============================================================================

func TestAPI_CreateAndGetGroup(t *testing.T) {
	// GIVEN: A running server
	// WHEN: A group is created and fetched back
	// THEN: The round trip preserves the configuration

	srv := newTestServer(t)
	groupID := seedGroup(t, srv)

	var got api.GroupDTO
	resp := doJSON(t, http.MethodGet, srv.URL+"/api/groups/"+groupID, nil, &got)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Bachat Gat", got.Name)
	assert.Equal(t, "MONTHLY", got.Frequency)
	assert.True(t, got.BaseContribution.Equal(dec("500")))
	assert.True(t, got.CashInBank.Equal(dec("4000")))
}

func TestAPI_CreateGroup_RejectsMissingName(t *testing.T) {
	// GIVEN: A create request with no name
	// WHEN: Posting it
	// THEN: 400 with the uniform error body

	srv := newTestServer(t)

	var errResp api.ErrorResponse
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/groups", map[string]any{
		"base_contribution": "500",
	}, &errResp)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.NotEmpty(t, errResp.Error)
}

func TestAPI_GetGroup_UnknownIs404(t *testing.T) {
	// GIVEN: No such group
	// WHEN: Fetching it
	// THEN: 404

	srv := newTestServer(t)

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/groups/nope", nil, nil)

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// =============================================================================
// FINE-RULE ENDPOINTS
// =============================================================================

func TestAPI_PutFineRule_ValidatesTiers(t *testing.T) {
	// GIVEN: A tier-based rule with a coverage gap
	// WHEN: Putting it
	// THEN: 400; a valid rule is accepted and readable back

	srv := newTestServer(t)
	groupID := seedGroup(t, srv)

	resp := doJSON(t, http.MethodPut, srv.URL+"/api/groups/"+groupID+"/fine-rule", map[string]any{
		"enabled": true,
		"type":    "TIER_BASED",
		"tiers": []map[string]any{
			{"start_day": 1, "end_day": 3, "amount": "5"},
			{"start_day": 8, "end_day": 15, "amount": "10"},
		},
	}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, http.MethodPut, srv.URL+"/api/groups/"+groupID+"/fine-rule", map[string]any{
		"enabled":      true,
		"type":         "DAILY_FIXED",
		"daily_amount": "5",
	}, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var rule api.FineRuleDTO
	resp = doJSON(t, http.MethodGet, srv.URL+"/api/groups/"+groupID+"/fine-rule", nil, &rule)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "DAILY_FIXED", rule.Type)
	assert.True(t, rule.DailyAmount.Equal(dec("5")))
}

// =============================================================================
// PERIOD LIFECYCLE OVER HTTP
// =============================================================================

func TestAPI_OpenPeriod(t *testing.T) {
	// GIVEN: A seeded group
	// WHEN: Period 1 opens via the API
	// THEN: 201 with one ledger row per member, due on the 15th

	srv := newTestServer(t)
	groupID := seedGroup(t, srv)

	opened := openPeriod(t, srv, groupID)

	assert.Equal(t, 1, opened.Period.Sequence)
	assert.Equal(t, "2025-03-15", opened.Period.DueDate)
	require.Len(t, opened.Contributions, 2)
	for _, c := range opened.Contributions {
		assert.True(t, c.ContributionDue.Equal(dec("500")))
		assert.Equal(t, "PENDING", c.Status)
	}
}

func TestAPI_RecordPayment_ReportsRequestedVsApplied(t *testing.T) {
	// GIVEN: An open period row owing 500
	// WHEN: 900 is recorded against the contribution bucket
	// THEN: The response shows requested 900, applied 500

	srv := newTestServer(t)
	groupID := seedGroup(t, srv)
	opened := openPeriod(t, srv, groupID)

	var paid api.RecordPaymentResponse
	resp := doJSON(t, http.MethodPatch, srv.URL+"/api/contributions/"+opened.Contributions[0].ID, map[string]any{
		"compulsory_contribution_paid": "900",
		"paid_date":                    "2025-03-10",
	}, &paid)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, paid.Requested.Contribution.Equal(dec("900")))
	assert.True(t, paid.Applied.Contribution.Equal(dec("500")))
	assert.Equal(t, "PAID", string(paid.Contribution.Status))
}

func TestAPI_BulkPayments_SkipsUnknownIDs(t *testing.T) {
	// GIVEN: One real row and one ghost id
	// WHEN: Bulk patching
	// THEN: 200 with updated_count 1 and the ghost in skipped

	srv := newTestServer(t)
	groupID := seedGroup(t, srv)
	opened := openPeriod(t, srv, groupID)

	var bulk api.BulkPaymentResponse
	resp := doJSON(t, http.MethodPatch, srv.URL+"/api/periods/"+opened.Period.ID+"/contributions", map[string]any{
		"updates": []map[string]any{
			{"contribution_id": opened.Contributions[0].ID, "compulsory_contribution_paid": "500"},
			{"contribution_id": "ghost", "compulsory_contribution_paid": "500"},
		},
	}, &bulk)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, bulk.UpdatedCount)
	assert.Equal(t, []string{"ghost"}, bulk.Skipped)
}

func TestAPI_ClosePeriod_OnceThen409(t *testing.T) {
	// GIVEN: An open period with payments carried in the close request
	// WHEN: Closing twice
	// THEN: First close returns the sealed period and its successor;
	//       the second returns 409

	srv := newTestServer(t)
	groupID := seedGroup(t, srv)
	opened := openPeriod(t, srv, groupID)

	payments := make([]map[string]any, 0, len(opened.Contributions))
	for _, c := range opened.Contributions {
		payments = append(payments, map[string]any{
			"contribution_id":              c.ID,
			"compulsory_contribution_paid": "500",
			"paid_date":                    "2025-03-10",
		})
	}

	var closed api.ClosePeriodResponse
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/periods/"+opened.Period.ID+"/close", map[string]any{
		"member_contributions": payments,
	}, &closed)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.NotNil(t, closed.ClosedPeriod.Close)
	assert.True(t, closed.ClosedPeriod.Close.TotalCollection.Equal(dec("1000")))
	assert.Equal(t, 2, closed.NewPeriod.Sequence)
	assert.Len(t, closed.NewContributions, 2)

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/periods/"+opened.Period.ID+"/close", nil, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestAPI_CurrentPeriod(t *testing.T) {
	// GIVEN: An opened period
	// WHEN: Fetching the group's current period
	// THEN: The latest period and its ledger come back

	srv := newTestServer(t)
	groupID := seedGroup(t, srv)
	opened := openPeriod(t, srv, groupID)

	var view api.PeriodViewResponse
	resp := doJSON(t, http.MethodGet, srv.URL+"/api/groups/"+groupID+"/periods/current", nil, &view)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, opened.Period.ID, view.Period.ID)
	assert.Len(t, view.Contributions, 2)
}

// =============================================================================
// LOANS AND SUMMARY
// =============================================================================

func TestAPI_LoanLifecycle(t *testing.T) {
	// GIVEN: A seeded group
	// WHEN: A loan is issued, listed, and repaid
	// THEN: Every step is observable over the API

	srv := newTestServer(t)
	groupID := seedGroup(t, srv)

	var memberships []api.MembershipDTO
	resp := doJSON(t, http.MethodGet, srv.URL+"/api/groups/"+groupID+"/members", nil, &memberships)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, memberships)
	memberID := memberships[0].MemberID

	var loan api.LoanDTO
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/groups/"+groupID+"/loans", map[string]any{
		"member_id": memberID,
		"principal": "10000",
	}, &loan)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, string(ledger.LoanActive), loan.Status)

	var loans []api.LoanDTO
	resp = doJSON(t, http.MethodGet, srv.URL+"/api/groups/"+groupID+"/loans", nil, &loans)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, loans, 1)

	var repaid api.RepayLoanResponse
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/groups/"+groupID+"/loans/repay", map[string]any{
		"member_id": memberID,
		"amount":    "4000",
	}, &repaid)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, repaid.NewBalance.Equal(dec("6000")))

	// Overpayment is a client error.
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/groups/"+groupID+"/loans/repay", map[string]any{
		"member_id": memberID,
		"amount":    "999999",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_Summary(t *testing.T) {
	// GIVEN: A seeded group with a 10,000 loan issued
	// WHEN: Fetching the summary
	// THEN: Standing = 5,000 cash + 10,000 loan assets

	srv := newTestServer(t)
	groupID := seedGroup(t, srv)

	var memberships []api.MembershipDTO
	doJSON(t, http.MethodGet, srv.URL+"/api/groups/"+groupID+"/members", nil, &memberships)
	require.NotEmpty(t, memberships)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/groups/"+groupID+"/loans", map[string]any{
		"member_id": memberships[0].MemberID,
		"principal": "10000",
	}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var summary api.GroupSummaryDTO
	resp = doJSON(t, http.MethodGet, srv.URL+"/api/groups/"+groupID+"/summary", nil, &summary)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 2, summary.MemberCount)
	assert.Equal(t, 1, summary.ActiveLoanCount)
	assert.True(t, summary.TotalStanding.Equal(dec("15000")), "got %s", summary.TotalStanding)
}
