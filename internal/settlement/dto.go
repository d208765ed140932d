package settlement

import (
	"errors"
	"time"

	"github.com/freightops/settlements/internal/payable"
	"github.com/freightops/settlements/internal/payee"
	"github.com/shopspring/decimal"
)

// GenerateStatementDTO requests one settlement for one payee. Either the
// reference date or an explicit period range may be given; an explicit
// range wins over the payee's plan schedule.
type GenerateStatementDTO struct {
	OrganizationID int64      `json:"organization_id"`
	PayeeID        int64      `json:"payee_id"`
	ReferenceDate  *time.Time `json:"reference_date,omitempty"`
	PeriodStart    *time.Time `json:"period_start,omitempty"`
	PeriodEnd      *time.Time `json:"period_end,omitempty"`
	PayDate        *time.Time `json:"pay_date,omitempty"`
	IncludeHeld    bool       `json:"include_held"`
}

func (dto GenerateStatementDTO) Validate() error {
	if dto.OrganizationID == 0 {
		return errors.New("organization_id is required")
	}
	if dto.PayeeID == 0 {
		return errors.New("payee_id is required")
	}
	if (dto.PeriodStart == nil) != (dto.PeriodEnd == nil) {
		return errors.New("period_start and period_end must be given together")
	}
	if dto.PeriodStart != nil && !dto.PeriodEnd.After(*dto.PeriodStart) {
		return errors.New("period_end must be after period_start")
	}
	return nil
}

// HasExplicitRange reports whether the caller pinned the period window
// instead of letting the plan schedule derive it.
func (dto GenerateStatementDTO) HasExplicitRange() bool {
	return dto.PeriodStart != nil && dto.PeriodEnd != nil
}

// BulkGenerateDTO requests one settlement per payee on a plan, for the
// period containing the reference date.
type BulkGenerateDTO struct {
	OrganizationID int64      `json:"organization_id"`
	PayPlanID      int64      `json:"pay_plan_id"`
	ReferenceDate  *time.Time `json:"reference_date,omitempty"`
	IncludeHeld    bool       `json:"include_held"`
}

func (dto BulkGenerateDTO) Validate() error {
	if dto.OrganizationID == 0 {
		return errors.New("organization_id is required")
	}
	if dto.PayPlanID == 0 {
		return errors.New("pay_plan_id is required")
	}
	return nil
}

// UpdateStatusDTO carries a status transition request. Reason is required
// for VOID; method and reference describe the payment for PAID.
type UpdateStatusDTO struct {
	Status        string  `json:"status"`
	Reason        *string `json:"reason,omitempty"`
	PaymentMethod *string `json:"payment_method,omitempty"`
	PaymentRef    *string `json:"payment_ref,omitempty"`
}

func (dto UpdateStatusDTO) Validate() error {
	if !ValidStatus(dto.Status) {
		return errors.New("unknown status: " + dto.Status)
	}
	if dto.Status == StatusVoid && (dto.Reason == nil || *dto.Reason == "") {
		return errors.New("reason is required when voiding a settlement")
	}
	return nil
}

// ListFilter narrows the settlement list view.
type ListFilter struct {
	OrganizationID int64
	PayeeID        *int64
	Status         *string
	PeriodFrom     *time.Time
	PeriodTo       *time.Time
	Limit          int
	Offset         int
}

// GenerateResult reports one payee's generation outcome: the settlement
// plus what the eligibility pass left out.
type GenerateResult struct {
	Settlement      *Settlement `json:"settlement"`
	EligibleCount   int         `json:"eligible_count"`
	HeldCount       int         `json:"held_count"`
	UnresolvedCount int         `json:"unresolved_count"`
	AlreadyExisted  bool        `json:"already_existed"`
}

// BulkItem is one payee's slot in a bulk run; failures carry the error
// text instead of aborting the batch.
type BulkItem struct {
	PayeeID    int64           `json:"payee_id"`
	Result     *GenerateResult `json:"result,omitempty"`
	Error      string          `json:"error,omitempty"`
	StatusCode string          `json:"status"`
}

const (
	BulkStatusCreated = "CREATED"
	BulkStatusSkipped = "SKIPPED"
	BulkStatusFailed  = "FAILED"
)

// BulkResult summarizes a bulk generation batch.
type BulkResult struct {
	BatchID string     `json:"batch_id"`
	Items   []BulkItem `json:"items"`
	Created int        `json:"created"`
	Skipped int        `json:"skipped"`
	Failed  int        `json:"failed"`
}

// RefreshResult reports what a draft refresh did to the member lines.
type RefreshResult struct {
	Settlement *Settlement `json:"settlement"`
	Removed    int64       `json:"removed"`
	Deleted    int64       `json:"deleted"`
	Added      int         `json:"added"`
	Held       int         `json:"held"`
	Unresolved int         `json:"unresolved"`
}

// ListItem is the settlement list row with the payee name joined in.
type ListItem struct {
	Settlement
	PayeeName   string `json:"payee_name" gorm:"column:payee_name"`
	PayeeType   string `json:"payee_type" gorm:"column:payee_type"`
	PeriodLabel string `json:"period_label" gorm:"-"`
}

// Detail is the full settlement view: the statement, its payee, its
// lines, the payee's held and unresolved pool items shown separately,
// and the audit flags computed on read.
type Detail struct {
	Settlement         *Settlement        `json:"settlement"`
	Payee              *payee.Payee       `json:"payee"`
	Lines              []*payable.Payable `json:"lines"`
	HeldPayables       []*payable.Payable `json:"held_payables"`
	UnresolvedPayables []*payable.Payable `json:"unresolved_payables"`
	Summary            Summary            `json:"summary"`
	Flags              []AuditFlag        `json:"audit_flags"`
	NetTotal           decimal.Decimal    `json:"net_total"`
}
