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
  Monetary fields are decimal.Decimal, serialized as quoted decimal
  strings. Clients must not send binary floats for money.

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - period/manager.go: domain results these types project
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/bachat/settlement-engine/latefine"
	"github.com/bachat/settlement-engine/ledger"
	"github.com/bachat/settlement-engine/period"
)

// =============================================================================
// GROUP / MEMBER / LOAN
// =============================================================================

// GroupDTO represents a group in API responses.
type GroupDTO struct {
	ID                    string          `json:"id"`
	Name                  string          `json:"name"`
	Frequency             string          `json:"frequency"`
	DayOfMonth            int             `json:"day_of_month,omitempty"`
	DayOfWeek             int             `json:"day_of_week,omitempty"`
	WeekOfMonth           int             `json:"week_of_month,omitempty"`
	BaseContribution      decimal.Decimal `json:"base_contribution"`
	AnnualInterestPercent decimal.Decimal `json:"annual_interest_percent"`
	CashInHand            decimal.Decimal `json:"cash_in_hand"`
	CashInBank            decimal.Decimal `json:"cash_in_bank"`
	ActiveFineRuleID      string          `json:"active_fine_rule_id,omitempty"`
	CreatedAt             string          `json:"created_at,omitempty"`
}

// CreateGroupRequest is the request to create or update a group.
type CreateGroupRequest struct {
	ID                    string           `json:"id"`
	Name                  string           `json:"name"`
	Frequency             string           `json:"frequency"`
	DayOfMonth            int              `json:"day_of_month"`
	DayOfWeek             int              `json:"day_of_week"`
	WeekOfMonth           int              `json:"week_of_month"`
	BaseContribution      decimal.Decimal  `json:"base_contribution"`
	AnnualInterestPercent decimal.Decimal  `json:"annual_interest_percent"`
	CashInHand            decimal.Decimal  `json:"cash_in_hand"`
	CashInBank            decimal.Decimal  `json:"cash_in_bank"`
	HandSplit             *decimal.Decimal `json:"hand_split,omitempty"`
}

// MemberDTO represents a member in API responses.
type MemberDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

// CreateMemberRequest is the request to create a member.
type CreateMemberRequest struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// CreateMembershipRequest links a member into a group.
type CreateMembershipRequest struct {
	MemberID         string          `json:"member_id"`
	LegacyLoanAmount decimal.Decimal `json:"legacy_loan_amount"`
	JoinedAt         string          `json:"joined_at,omitempty"`
}

// MembershipDTO represents a membership in API responses.
type MembershipDTO struct {
	ID               string          `json:"id"`
	GroupID          string          `json:"group_id"`
	MemberID         string          `json:"member_id"`
	LegacyLoanAmount decimal.Decimal `json:"legacy_loan_amount"`
	JoinedAt         string          `json:"joined_at"`
}

// LoanDTO represents a loan in API responses.
type LoanDTO struct {
	ID             string          `json:"id"`
	GroupID        string          `json:"group_id"`
	MemberID       string          `json:"member_id"`
	Principal      decimal.Decimal `json:"principal"`
	CurrentBalance decimal.Decimal `json:"current_balance"`
	Status         string          `json:"status"`
	IssuedAt       string          `json:"issued_at"`
}

// CreateLoanRequest issues a loan.
type CreateLoanRequest struct {
	MemberID  string          `json:"member_id"`
	Principal decimal.Decimal `json:"principal"`
	IssuedAt  string          `json:"issued_at,omitempty"`
}

// RepayLoanRequest records an explicit loan repayment.
type RepayLoanRequest struct {
	MemberID string          `json:"member_id"`
	Amount   decimal.Decimal `json:"amount"`
}

// RepayLoanResponse reports the post-repayment balance.
type RepayLoanResponse struct {
	MemberID   string          `json:"member_id"`
	NewBalance decimal.Decimal `json:"new_balance"`
}

// =============================================================================
// LATE-FINE RULES
// =============================================================================

// FineTierDTO is one tier of a tier-based rule.
type FineTierDTO struct {
	StartDay     int             `json:"start_day"`
	EndDay       int             `json:"end_day"`
	Amount       decimal.Decimal `json:"amount"`
	IsPercentage bool            `json:"is_percentage"`
}

// FineRuleDTO represents a group's late-fine rule.
type FineRuleDTO struct {
	ID              string          `json:"id"`
	GroupID         string          `json:"group_id"`
	Enabled         bool            `json:"enabled"`
	Type            string          `json:"type"`
	DailyAmount     decimal.Decimal `json:"daily_amount"`
	DailyPercentage decimal.Decimal `json:"daily_percentage"`
	GracePeriodDays int             `json:"grace_period_days"`
	Tiers           []FineTierDTO   `json:"tiers,omitempty"`
}

// PutFineRuleRequest replaces the group's active fine rule.
type PutFineRuleRequest struct {
	Enabled         bool            `json:"enabled"`
	Type            string          `json:"type"`
	DailyAmount     decimal.Decimal `json:"daily_amount"`
	DailyPercentage decimal.Decimal `json:"daily_percentage"`
	GracePeriodDays int             `json:"grace_period_days"`
	Tiers           []FineTierDTO   `json:"tiers"`
}

// =============================================================================
// PERIODS & CONTRIBUTIONS
// =============================================================================

// PeriodCloseDTO carries a closed period's aggregates.
type PeriodCloseDTO struct {
	TotalCollection    decimal.Decimal `json:"total_collection"`
	InterestEarned     decimal.Decimal `json:"interest_earned"`
	LateFinesCollected decimal.Decimal `json:"late_fines_collected"`
	NewContributions   decimal.Decimal `json:"new_contributions"`
	EndingCashInHand   decimal.Decimal `json:"ending_cash_in_hand"`
	EndingCashInBank   decimal.Decimal `json:"ending_cash_in_bank"`
	TotalStanding      decimal.Decimal `json:"total_standing"`
	MembersPresent     int             `json:"members_present"`
	ClosedAt           string          `json:"closed_at"`
}

// PeriodDTO represents a period in API responses. Close is null while the
// period is open.
type PeriodDTO struct {
	ID              string          `json:"id"`
	GroupID         string          `json:"group_id"`
	Sequence        int             `json:"sequence"`
	MeetingDate     string          `json:"meeting_date"`
	DueDate         string          `json:"due_date"`
	StandingAtStart decimal.Decimal `json:"standing_at_start"`
	Touched         bool            `json:"touched"`
	Close           *PeriodCloseDTO `json:"close,omitempty"`
}

// AllocationDTO is an explicit hand/bank split of a payment.
type AllocationDTO struct {
	ToHand decimal.Decimal `json:"to_hand"`
	ToBank decimal.Decimal `json:"to_bank"`
}

// ContributionDTO represents one member's ledger row.
type ContributionDTO struct {
	ID       string `json:"id"`
	PeriodID string `json:"period_id"`
	MemberID string `json:"member_id"`

	ContributionDue decimal.Decimal `json:"contribution_due"`
	LoanInterestDue decimal.Decimal `json:"loan_interest_due"`
	LateFine        decimal.Decimal `json:"late_fine"`
	CarryForward    decimal.Decimal `json:"carry_forward"`
	MinimumDue      decimal.Decimal `json:"minimum_due"`

	ContributionPaid  decimal.Decimal `json:"contribution_paid"`
	LoanInterestPaid  decimal.Decimal `json:"loan_interest_paid"`
	LateFinePaid      decimal.Decimal `json:"late_fine_paid"`
	LoanPrincipalPaid decimal.Decimal `json:"loan_principal_paid"`
	TotalPaid         decimal.Decimal `json:"total_paid"`
	Remaining         decimal.Decimal `json:"remaining"`

	DaysLate    int            `json:"days_late"`
	DueDate     string         `json:"due_date"`
	Status      string         `json:"status"`
	PaidAt      string         `json:"paid_at,omitempty"`
	Allocation  *AllocationDTO `json:"allocation,omitempty"`
	FineWarning string         `json:"fine_warning,omitempty"`
}

// OpenPeriodRequest opens (or idempotently reopens) a period.
type OpenPeriodRequest struct {
	MeetingDate          string          `json:"meeting_date"`
	RecordSequenceNumber int             `json:"record_sequence_number"`
	ContributionAmount   decimal.Decimal `json:"compulsory_contribution_amount"`
}

// OpenPeriodResponse is the created period plus its ledger.
type OpenPeriodResponse struct {
	Period        PeriodDTO         `json:"period"`
	Contributions []ContributionDTO `json:"contributions"`
}

// PaymentUpdateDTO is one payment against one ledger row. Nil monetary
// fields leave the current value untouched.
type PaymentUpdateDTO struct {
	ContributionID    string           `json:"contribution_id"`
	ContributionPaid  *decimal.Decimal `json:"compulsory_contribution_paid,omitempty"`
	LoanInterestPaid  *decimal.Decimal `json:"loan_interest_paid,omitempty"`
	LateFinePaid      *decimal.Decimal `json:"late_fine_paid,omitempty"`
	LoanPrincipalPaid *decimal.Decimal `json:"loan_principal_paid,omitempty"`
	Allocation        *AllocationDTO   `json:"allocation,omitempty"`
	PaidDate          string           `json:"paid_date,omitempty"`
}

// RecordPaymentResponse reports one applied payment with the
// requested-vs-applied breakdown (truncation is observable).
type RecordPaymentResponse struct {
	Contribution ContributionDTO `json:"contribution"`
	Requested    BreakdownDTO    `json:"requested"`
	Applied      BreakdownDTO    `json:"applied"`
}

// BreakdownDTO is a per-category amount set.
type BreakdownDTO struct {
	Contribution  decimal.Decimal `json:"contribution"`
	LoanInterest  decimal.Decimal `json:"loan_interest"`
	LateFine      decimal.Decimal `json:"late_fine"`
	LoanPrincipal decimal.Decimal `json:"loan_principal"`
}

// BulkPaymentRequest applies many payments independently.
type BulkPaymentRequest struct {
	Updates []PaymentUpdateDTO `json:"updates"`
}

// BulkPaymentResponse reports counts; unknown ids are skipped, not failed.
type BulkPaymentResponse struct {
	UpdatedCount  int               `json:"updated_count"`
	Skipped       []string          `json:"skipped"`
	Contributions []ContributionDTO `json:"contributions"`
}

// ClosePeriodRequest seals a period, optionally recording final payments
// as part of the atomic close.
type ClosePeriodRequest struct {
	MemberContributions []PaymentUpdateDTO `json:"member_contributions,omitempty"`
}

// ClosePeriodResponse is the sealed period and its successor.
type ClosePeriodResponse struct {
	ClosedPeriod     PeriodDTO         `json:"closed_period"`
	NewPeriod        PeriodDTO         `json:"new_period"`
	NewContributions []ContributionDTO `json:"new_contributions"`
	Skipped          []string          `json:"skipped,omitempty"`
}

// PeriodViewResponse is a period with its ledger rows.
type PeriodViewResponse struct {
	Period        PeriodDTO         `json:"period"`
	Contributions []ContributionDTO `json:"contributions"`
}

// =============================================================================
// SUMMARY & ADMIN
// =============================================================================

// GroupSummaryDTO is the live financial overview of a group.
type GroupSummaryDTO struct {
	Group           GroupDTO        `json:"group"`
	MemberCount     int             `json:"member_count"`
	ActiveLoanCount int             `json:"active_loan_count"`
	TotalLoanAssets decimal.Decimal `json:"total_loan_assets"`
	CashInHand      decimal.Decimal `json:"cash_in_hand"`
	CashInBank      decimal.Decimal `json:"cash_in_bank"`
	TotalStanding   decimal.Decimal `json:"total_standing"`
	RecentPeriods   []PeriodDTO     `json:"recent_periods"`
}

// RecomputeResponse reports a historical regeneration run.
type RecomputeResponse struct {
	PeriodsRewritten int `json:"periods_rewritten"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// PROJECTIONS
// =============================================================================

func toGroupDTO(g ledger.Group) GroupDTO {
	return GroupDTO{
		ID:                    string(g.ID),
		Name:                  g.Name,
		Frequency:             string(g.Schedule.Frequency),
		DayOfMonth:            g.Schedule.DayOfMonth,
		DayOfWeek:             int(g.Schedule.DayOfWeek),
		WeekOfMonth:           g.Schedule.WeekOfMonth,
		BaseContribution:      g.BaseContribution,
		AnnualInterestPercent: g.AnnualInterestPercent,
		CashInHand:            g.CashInHand,
		CashInBank:            g.CashInBank,
		ActiveFineRuleID:      g.ActiveFineRuleID,
		CreatedAt:             g.CreatedAt.Format(time.RFC3339),
	}
}

func toPeriodDTO(p ledger.PeriodicRecord) PeriodDTO {
	dto := PeriodDTO{
		ID:              p.ID,
		GroupID:         string(p.GroupID),
		Sequence:        p.Sequence,
		MeetingDate:     p.MeetingDate.Format("2006-01-02"),
		DueDate:         p.DueDate.Format("2006-01-02"),
		StandingAtStart: p.StandingAtStart,
		Touched:         p.Touched,
	}
	if p.Close != nil {
		dto.Close = &PeriodCloseDTO{
			TotalCollection:    p.Close.TotalCollection,
			InterestEarned:     p.Close.InterestEarned,
			LateFinesCollected: p.Close.LateFinesCollected,
			NewContributions:   p.Close.NewContributions,
			EndingCashInHand:   p.Close.EndingCashInHand,
			EndingCashInBank:   p.Close.EndingCashInBank,
			TotalStanding:      p.Close.TotalStanding,
			MembersPresent:     p.Close.MembersPresent,
			ClosedAt:           p.Close.ClosedAt.Format(time.RFC3339),
		}
	}
	return dto
}

func toContributionDTO(mc ledger.MemberContribution) ContributionDTO {
	dto := ContributionDTO{
		ID:                mc.ID,
		PeriodID:          mc.PeriodID,
		MemberID:          string(mc.MemberID),
		ContributionDue:   mc.ContributionDue,
		LoanInterestDue:   mc.LoanInterestDue,
		LateFine:          mc.LateFine,
		CarryForward:      mc.CarryForward,
		MinimumDue:        mc.MinimumDue,
		ContributionPaid:  mc.ContributionPaid,
		LoanInterestPaid:  mc.LoanInterestPaid,
		LateFinePaid:      mc.LateFinePaid,
		LoanPrincipalPaid: mc.LoanPrincipalPaid,
		TotalPaid:         mc.TotalPaid,
		Remaining:         mc.Remaining,
		DaysLate:          mc.DaysLate,
		DueDate:           mc.DueDate.Format("2006-01-02"),
		Status:            string(mc.Status),
		FineWarning:       mc.FineWarning,
	}
	if mc.PaidAt != nil {
		dto.PaidAt = mc.PaidAt.Format(time.RFC3339)
	}
	if mc.Allocation != nil {
		dto.Allocation = &AllocationDTO{ToHand: mc.Allocation.ToHand, ToBank: mc.Allocation.ToBank}
	}
	return dto
}

func toContributionDTOs(rows []ledger.MemberContribution) []ContributionDTO {
	dtos := make([]ContributionDTO, len(rows))
	for i, r := range rows {
		dtos[i] = toContributionDTO(r)
	}
	return dtos
}

func toLoanDTO(l ledger.Loan) LoanDTO {
	return LoanDTO{
		ID:             l.ID,
		GroupID:        string(l.GroupID),
		MemberID:       string(l.MemberID),
		Principal:      l.Principal,
		CurrentBalance: l.CurrentBalance,
		Status:         string(l.Status),
		IssuedAt:       l.IssuedAt.Format(time.RFC3339),
	}
}

func toFineRuleDTO(r latefine.Rule) FineRuleDTO {
	dto := FineRuleDTO{
		ID:              r.ID,
		GroupID:         r.GroupID,
		Enabled:         r.Enabled,
		Type:            string(r.Type),
		DailyAmount:     r.DailyAmount,
		DailyPercentage: r.DailyPercentage,
		GracePeriodDays: r.GracePeriodDays,
	}
	for _, t := range r.Tiers {
		dto.Tiers = append(dto.Tiers, FineTierDTO{
			StartDay:     t.StartDay,
			EndDay:       t.EndDay,
			Amount:       t.Amount,
			IsPercentage: t.IsPercentage,
		})
	}
	return dto
}

// toPaymentUpdate converts one DTO into a manager bulk update.
func toPaymentUpdate(u PaymentUpdateDTO) (period.BulkPaymentUpdate, error) {
	req := ledger.PaymentRequest{
		ContributionPaid:  u.ContributionPaid,
		LoanInterestPaid:  u.LoanInterestPaid,
		LateFinePaid:      u.LateFinePaid,
		LoanPrincipalPaid: u.LoanPrincipalPaid,
	}
	if u.Allocation != nil {
		req.Allocation = &ledger.CashAllocation{
			ToHand: u.Allocation.ToHand,
			ToBank: u.Allocation.ToBank,
		}
	}
	if u.PaidDate != "" {
		t, err := time.Parse(time.RFC3339, u.PaidDate)
		if err != nil {
			t, err = time.Parse("2006-01-02", u.PaidDate)
			if err != nil {
				return period.BulkPaymentUpdate{}, err
			}
		}
		req.PaidAt = t
	}
	return period.BulkPaymentUpdate{ContributionID: u.ContributionID, Payment: req}, nil
}
