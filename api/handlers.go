/*
handlers.go - HTTP API handlers for the settlement engine

PURPOSE:
  Exposes the periodic settlement engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Groups:
    GET    /api/groups                     List groups
    POST   /api/groups                     Create/update a group
    GET    /api/groups/{id}                Group details
    GET    /api/groups/{id}/summary        Financial overview
    GET    /api/groups/{id}/fine-rule      Active late-fine rule
    PUT    /api/groups/{id}/fine-rule      Replace the active rule
    GET    /api/groups/{id}/members        Memberships
    POST   /api/groups/{id}/members        Add a membership
    GET    /api/groups/{id}/loans          Active loans
    POST   /api/groups/{id}/loans          Issue a loan
    POST   /api/groups/{id}/loans/repay    Explicit loan repayment
    POST   /api/groups/{id}/recompute      Historical standing regeneration

  Members:
    POST   /api/members                    Create a member
    GET    /api/members/{id}               Member details

  Periods:
    POST   /api/groups/{id}/periods        Open a period (idempotent)
    GET    /api/groups/{id}/periods        List periods
    GET    /api/groups/{id}/periods/current  Latest period + ledger
    GET    /api/periods/{id}               One period + ledger
    POST   /api/periods/{id}/close         Atomic close -> next period
    PATCH  /api/periods/{id}/contributions Bulk payment updates
    PATCH  /api/contributions/{id}         Single payment update

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 409: Conflict (already-closed period, duplicate sequence)
  - 500: Internal errors (transactional failures are retryable)

AUTHORIZATION:
  The engine trusts an injected Authorizer for the canEditGroup decision
  and performs no further authorization logic. The principal comes from
  the X-User-ID header; session mechanics live in the auth collaborator.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - period/manager.go: the lifecycle logic these handlers front
*/
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/bachat/settlement-engine/finance"
	"github.com/bachat/settlement-engine/latefine"
	"github.com/bachat/settlement-engine/ledger"
	"github.com/bachat/settlement-engine/period"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Authorizer is the permission contract supplied by the auth collaborator.
// The engine trusts the boolean.
type Authorizer interface {
	CanEditGroup(userID string, groupID ledger.GroupID) bool
}

// AllowAll authorizes everything (dev / single-operator deployments).
type AllowAll struct{}

func (AllowAll) CanEditGroup(string, ledger.GroupID) bool { return true }

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store   ledger.TxStore
	Manager *period.Manager
	Auth    Authorizer
}

// NewHandler creates a new handler over the given store.
func NewHandler(store ledger.TxStore) *Handler {
	return &Handler{
		Store:   store,
		Manager: period.NewManager(store),
		Auth:    AllowAll{},
	}
}

// authorize gates group mutations on the auth collaborator's decision.
func (h *Handler) authorize(r *http.Request, groupID ledger.GroupID) bool {
	return h.Auth.CanEditGroup(r.Header.Get("X-User-ID"), groupID)
}

// =============================================================================
// GROUP HANDLERS
// =============================================================================

// ListGroups returns all groups.
func (h *Handler) ListGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.Store.ListGroups(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list groups", err)
		return
	}

	dtos := make([]GroupDTO, len(groups))
	for i, g := range groups {
		dtos[i] = toGroupDTO(g)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetGroup returns a single group.
func (h *Handler) GetGroup(w http.ResponseWriter, r *http.Request) {
	g, err := h.Store.GetGroup(r.Context(), ledger.GroupID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toGroupDTO(*g))
}

// CreateGroup creates or updates a group.
func (h *Handler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	var req CreateGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required", nil)
		return
	}
	if !req.BaseContribution.IsPositive() {
		writeError(w, http.StatusBadRequest, "base_contribution must be positive", nil)
		return
	}

	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}
	if !h.authorize(r, ledger.GroupID(id)) {
		writeError(w, http.StatusForbidden, "Not allowed to edit group", nil)
		return
	}

	handSplit := ledger.DefaultHandSplit
	if req.HandSplit != nil {
		handSplit = *req.HandSplit
	}

	g := ledger.Group{
		ID:   ledger.GroupID(id),
		Name: req.Name,
		Schedule: finance.Schedule{
			Frequency:   finance.Frequency(req.Frequency),
			DayOfMonth:  req.DayOfMonth,
			DayOfWeek:   time.Weekday(req.DayOfWeek),
			WeekOfMonth: req.WeekOfMonth,
		},
		BaseContribution:      finance.Round2(req.BaseContribution),
		AnnualInterestPercent: req.AnnualInterestPercent,
		CashInHand:            finance.Round2(req.CashInHand),
		CashInBank:            finance.Round2(req.CashInBank),
		HandSplit:             handSplit,
		CreatedAt:             time.Now().UTC(),
	}

	if err := h.Store.SaveGroup(r.Context(), g); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save group", err)
		return
	}
	writeJSON(w, http.StatusCreated, toGroupDTO(g))
}

// GetSummary returns the group's live financial overview.
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.Manager.Summary(r.Context(), ledger.GroupID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dto := GroupSummaryDTO{
		Group:           toGroupDTO(summary.Group),
		MemberCount:     summary.MemberCount,
		ActiveLoanCount: summary.ActiveLoanCount,
		TotalLoanAssets: summary.TotalLoanAssets,
		CashInHand:      summary.CashInHand,
		CashInBank:      summary.CashInBank,
		TotalStanding:   summary.TotalStanding,
		RecentPeriods:   []PeriodDTO{},
	}
	for _, p := range summary.RecentPeriods {
		dto.RecentPeriods = append(dto.RecentPeriods, toPeriodDTO(p))
	}
	writeJSON(w, http.StatusOK, dto)
}

// =============================================================================
// FINE-RULE HANDLERS
// =============================================================================

// GetFineRule returns the group's active late-fine rule.
func (h *Handler) GetFineRule(w http.ResponseWriter, r *http.Request) {
	rule, err := h.Store.ActiveFineRule(r.Context(), ledger.GroupID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if rule == nil {
		writeError(w, http.StatusNotFound, "No active fine rule", nil)
		return
	}
	writeJSON(w, http.StatusOK, toFineRuleDTO(*rule))
}

// PutFineRule replaces the group's active late-fine rule. Tier coverage is
// validated before anything is written.
func (h *Handler) PutFineRule(w http.ResponseWriter, r *http.Request) {
	groupID := ledger.GroupID(chi.URLParam(r, "id"))
	if !h.authorize(r, groupID) {
		writeError(w, http.StatusForbidden, "Not allowed to edit group", nil)
		return
	}

	var req PutFineRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	rule := latefine.Rule{
		ID:              uuid.NewString(),
		GroupID:         string(groupID),
		Enabled:         req.Enabled,
		Type:            latefine.RuleType(req.Type),
		DailyAmount:     req.DailyAmount,
		DailyPercentage: req.DailyPercentage,
		GracePeriodDays: req.GracePeriodDays,
	}
	for _, t := range req.Tiers {
		rule.Tiers = append(rule.Tiers, latefine.Tier{
			ID:           uuid.NewString(),
			StartDay:     t.StartDay,
			EndDay:       t.EndDay,
			Amount:       t.Amount,
			IsPercentage: t.IsPercentage,
		})
	}

	if err := latefine.ValidateRule(rule); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid fine rule", err)
		return
	}
	if err := h.Store.SaveFineRule(r.Context(), rule); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toFineRuleDTO(rule))
}

// =============================================================================
// MEMBER HANDLERS
// =============================================================================

// CreateMember creates a member record.
func (h *Handler) CreateMember(w http.ResponseWriter, r *http.Request) {
	var req CreateMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required", nil)
		return
	}

	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}
	m := ledger.Member{
		ID:        ledger.MemberID(id),
		Name:      req.Name,
		Email:     req.Email,
		Phone:     req.Phone,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.Store.SaveMember(r.Context(), m); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save member", err)
		return
	}
	writeJSON(w, http.StatusCreated, MemberDTO{
		ID:        string(m.ID),
		Name:      m.Name,
		Email:     m.Email,
		Phone:     m.Phone,
		CreatedAt: m.CreatedAt.Format(time.RFC3339),
	})
}

// GetMember returns a single member.
func (h *Handler) GetMember(w http.ResponseWriter, r *http.Request) {
	m, err := h.Store.GetMember(r.Context(), ledger.MemberID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MemberDTO{
		ID:        string(m.ID),
		Name:      m.Name,
		Email:     m.Email,
		Phone:     m.Phone,
		CreatedAt: m.CreatedAt.Format(time.RFC3339),
	})
}

// ListMemberships returns a group's memberships.
func (h *Handler) ListMemberships(w http.ResponseWriter, r *http.Request) {
	memberships, err := h.Store.ListMemberships(r.Context(), ledger.GroupID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]MembershipDTO, len(memberships))
	for i, ms := range memberships {
		dtos[i] = MembershipDTO{
			ID:               ms.ID,
			GroupID:          string(ms.GroupID),
			MemberID:         string(ms.MemberID),
			LegacyLoanAmount: ms.LegacyLoanAmount,
			JoinedAt:         ms.JoinedAt.Format(time.RFC3339),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// AddMembership links a member into a group.
func (h *Handler) AddMembership(w http.ResponseWriter, r *http.Request) {
	groupID := ledger.GroupID(chi.URLParam(r, "id"))
	if !h.authorize(r, groupID) {
		writeError(w, http.StatusForbidden, "Not allowed to edit group", nil)
		return
	}

	var req CreateMembershipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.MemberID == "" {
		writeError(w, http.StatusBadRequest, "member_id is required", nil)
		return
	}

	// The member and the group must both exist.
	if _, err := h.Store.GetGroup(r.Context(), groupID); err != nil {
		writeDomainError(w, err)
		return
	}
	if _, err := h.Store.GetMember(r.Context(), ledger.MemberID(req.MemberID)); err != nil {
		writeDomainError(w, err)
		return
	}

	joinedAt := time.Now().UTC()
	if req.JoinedAt != "" {
		t, err := time.Parse("2006-01-02", req.JoinedAt)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid joined_at format (use YYYY-MM-DD)", err)
			return
		}
		joinedAt = t
	}

	ms := ledger.Membership{
		ID:               uuid.NewString(),
		GroupID:          groupID,
		MemberID:         ledger.MemberID(req.MemberID),
		LegacyLoanAmount: finance.Round2(req.LegacyLoanAmount),
		JoinedAt:         joinedAt,
	}
	if err := h.Store.SaveMembership(r.Context(), ms); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save membership", err)
		return
	}
	writeJSON(w, http.StatusCreated, MembershipDTO{
		ID:               ms.ID,
		GroupID:          string(ms.GroupID),
		MemberID:         string(ms.MemberID),
		LegacyLoanAmount: ms.LegacyLoanAmount,
		JoinedAt:         ms.JoinedAt.Format(time.RFC3339),
	})
}

// =============================================================================
// LOAN HANDLERS
// =============================================================================

// ListLoans returns the group's active loans.
func (h *Handler) ListLoans(w http.ResponseWriter, r *http.Request) {
	loans, err := h.Store.ActiveLoans(r.Context(), ledger.GroupID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := []LoanDTO{}
	for _, memberLoans := range loans {
		for _, l := range memberLoans {
			dtos = append(dtos, toLoanDTO(l))
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateLoan issues a loan to a group member.
func (h *Handler) CreateLoan(w http.ResponseWriter, r *http.Request) {
	groupID := ledger.GroupID(chi.URLParam(r, "id"))
	if !h.authorize(r, groupID) {
		writeError(w, http.StatusForbidden, "Not allowed to edit group", nil)
		return
	}

	var req CreateLoanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.MemberID == "" {
		writeError(w, http.StatusBadRequest, "member_id is required", nil)
		return
	}
	if !req.Principal.IsPositive() {
		writeError(w, http.StatusBadRequest, "principal must be positive", nil)
		return
	}

	issuedAt := time.Now().UTC()
	if req.IssuedAt != "" {
		t, err := time.Parse("2006-01-02", req.IssuedAt)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid issued_at format (use YYYY-MM-DD)", err)
			return
		}
		issuedAt = t
	}

	principal := finance.Round2(req.Principal)
	l := ledger.Loan{
		ID:             uuid.NewString(),
		GroupID:        groupID,
		MemberID:       ledger.MemberID(req.MemberID),
		Principal:      principal,
		CurrentBalance: principal,
		Status:         ledger.LoanActive,
		IssuedAt:       issuedAt,
	}
	if err := h.Store.SaveLoan(r.Context(), l); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save loan", err)
		return
	}
	writeJSON(w, http.StatusCreated, toLoanDTO(l))
}

// RepayLoan records an explicit repayment; overpayment is rejected.
func (h *Handler) RepayLoan(w http.ResponseWriter, r *http.Request) {
	groupID := ledger.GroupID(chi.URLParam(r, "id"))
	if !h.authorize(r, groupID) {
		writeError(w, http.StatusForbidden, "Not allowed to edit group", nil)
		return
	}

	var req RepayLoanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	balance, err := h.Manager.RepayLoan(r.Context(), groupID, ledger.MemberID(req.MemberID), req.Amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, RepayLoanResponse{MemberID: req.MemberID, NewBalance: balance})
}

// =============================================================================
// PERIOD HANDLERS
// =============================================================================

// OpenPeriod opens (or idempotently reopens) a collection period.
func (h *Handler) OpenPeriod(w http.ResponseWriter, r *http.Request) {
	groupID := ledger.GroupID(chi.URLParam(r, "id"))
	if !h.authorize(r, groupID) {
		writeError(w, http.StatusForbidden, "Not allowed to edit group", nil)
		return
	}

	var req OpenPeriodRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	meetingDate, err := time.Parse("2006-01-02", req.MeetingDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid meeting_date format (use YYYY-MM-DD)", err)
		return
	}

	result, err := h.Manager.OpenPeriod(r.Context(), period.OpenRequest{
		GroupID:          groupID,
		Sequence:         req.RecordSequenceNumber,
		MeetingDate:      meetingDate,
		BaseContribution: req.ContributionAmount,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, OpenPeriodResponse{
		Period:        toPeriodDTO(result.Period),
		Contributions: toContributionDTOs(result.Rows),
	})
}

// ListPeriods returns the group's periods, oldest first.
func (h *Handler) ListPeriods(w http.ResponseWriter, r *http.Request) {
	periods, err := h.Store.ListPeriods(r.Context(), ledger.GroupID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]PeriodDTO, len(periods))
	for i, p := range periods {
		dtos[i] = toPeriodDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetCurrentPeriod returns the group's latest period with its ledger.
func (h *Handler) GetCurrentPeriod(w http.ResponseWriter, r *http.Request) {
	view, err := h.Manager.CurrentPeriod(r.Context(), ledger.GroupID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, PeriodViewResponse{
		Period:        toPeriodDTO(view.Period),
		Contributions: toContributionDTOs(view.Rows),
	})
}

// GetPeriod returns one period with its ledger.
func (h *Handler) GetPeriod(w http.ResponseWriter, r *http.Request) {
	view, err := h.Manager.GetPeriod(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, PeriodViewResponse{
		Period:        toPeriodDTO(view.Period),
		Contributions: toContributionDTOs(view.Rows),
	})
}

// ClosePeriod atomically seals a period and opens its successor.
// A second close of the same period returns 409.
func (h *Handler) ClosePeriod(w http.ResponseWriter, r *http.Request) {
	periodID := chi.URLParam(r, "id")

	p, err := h.Store.GetPeriod(r.Context(), periodID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if !h.authorize(r, p.GroupID) {
		writeError(w, http.StatusForbidden, "Not allowed to edit group", nil)
		return
	}

	var req ClosePeriodRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
	}

	closeReq := period.CloseRequest{PeriodID: periodID}
	for _, u := range req.MemberContributions {
		update, err := toPaymentUpdate(u)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid paid_date", err)
			return
		}
		closeReq.Payments = append(closeReq.Payments, update)
	}

	result, err := h.Manager.ClosePeriod(r.Context(), closeReq)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ClosePeriodResponse{
		ClosedPeriod:     toPeriodDTO(result.ClosedPeriod),
		NewPeriod:        toPeriodDTO(result.NewPeriod),
		NewContributions: toContributionDTOs(result.NewRows),
		Skipped:          result.Skipped,
	})
}

// =============================================================================
// PAYMENT HANDLERS
// =============================================================================

// RecordPayment applies one payment to one ledger row.
func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	var dto PaymentUpdateDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	dto.ContributionID = chi.URLParam(r, "id")

	update, err := toPaymentUpdate(dto)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid paid_date", err)
		return
	}

	outcome, err := h.Manager.RecordPayment(r.Context(), update.ContributionID, update.Payment)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, RecordPaymentResponse{
		Contribution: toContributionDTO(outcome.Row),
		Requested:    toBreakdownDTO(outcome.Result.Requested),
		Applied:      toBreakdownDTO(outcome.Result.Applied),
	})
}

// BulkRecordPayments applies many payments independently; entries
// referencing unknown rows are skipped and reported.
func (h *Handler) BulkRecordPayments(w http.ResponseWriter, r *http.Request) {
	var req BulkPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	updates := make([]period.BulkPaymentUpdate, 0, len(req.Updates))
	for _, u := range req.Updates {
		update, err := toPaymentUpdate(u)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid paid_date", err)
			return
		}
		updates = append(updates, update)
	}

	result, err := h.Manager.BulkRecordPayments(r.Context(), updates)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, BulkPaymentResponse{
		UpdatedCount:  result.UpdatedCount,
		Skipped:       result.Skipped,
		Contributions: toContributionDTOs(result.Rows),
	})
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// RecomputeStanding rewrites the group's closed-period aggregates from
// first principles.
func (h *Handler) RecomputeStanding(w http.ResponseWriter, r *http.Request) {
	groupID := ledger.GroupID(chi.URLParam(r, "id"))
	if !h.authorize(r, groupID) {
		writeError(w, http.StatusForbidden, "Not allowed to edit group", nil)
		return
	}

	n, err := h.Manager.RecomputeStanding(r.Context(), groupID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, RecomputeResponse{PeriodsRewritten: n})
}

// =============================================================================
// HELPERS
// =============================================================================

func toBreakdownDTO(b ledger.PaymentBreakdown) BreakdownDTO {
	return BreakdownDTO{
		Contribution:  b.Contribution,
		LoanInterest:  b.LoanInterest,
		LateFine:      b.LateFine,
		LoanPrincipal: b.LoanPrincipal,
	}
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

// writeDomainError maps domain errors onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case ledger.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Not found", err)
	case ledger.IsConflict(err):
		writeError(w, http.StatusConflict, "Conflict", err)
	case ledger.IsClientError(err):
		writeError(w, http.StatusBadRequest, "Invalid request", err)
	case ledger.IsRetryable(err):
		writeError(w, http.StatusInternalServerError, "Transient failure, retry the operation", err)
	default:
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}
