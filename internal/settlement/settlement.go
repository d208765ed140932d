package settlement

import (
	"time"

	"github.com/freightops/settlements/internal/payable"
	"github.com/shopspring/decimal"
)

// Settlement statuses. Forward-only: DRAFT -> PENDING -> APPROVED -> PAID,
// with VOID reachable from any pre-PAID status. Nothing leaves PAID or VOID.
const (
	StatusDraft    = "DRAFT"
	StatusPending  = "PENDING"
	StatusApproved = "APPROVED"
	StatusPaid     = "PAID"
	StatusVoid     = "VOID"
)

// Settlement is one pay-period statement for one payee. The aggregate
// fields are live while the settlement is in DRAFT and frozen at approval.
type Settlement struct {
	ID             int64  `json:"id" gorm:"primaryKey"`
	OrganizationID int64  `json:"organization_id" gorm:"column:organization_id;not null"`
	PayeeID        int64  `json:"payee_id" gorm:"column:payee_id;not null"`
	PayPlanID      *int64 `json:"pay_plan_id,omitempty" gorm:"column:pay_plan_id"`
	PeriodNumber   *int   `json:"period_number,omitempty" gorm:"column:period_number"`

	// PeriodEnd is stored as the last valid instant of the period, 1ms
	// before the next period's midnight.
	PeriodStart time.Time `json:"period_start" gorm:"column:period_start;not null"`
	PeriodEnd   time.Time `json:"period_end" gorm:"column:period_end;not null"`
	PayDate     time.Time `json:"pay_date" gorm:"column:pay_date"`

	Status          string `json:"status" gorm:"default:DRAFT"`
	StatementNumber string `json:"statement_number" gorm:"column:statement_number;not null"`

	GrossTotal             decimal.Decimal `json:"gross_total" gorm:"column:gross_total;type:numeric(12,2)"`
	TotalMiles             decimal.Decimal `json:"total_miles" gorm:"column:total_miles;type:numeric(12,2)"`
	TotalLoads             int             `json:"total_loads" gorm:"column:total_loads"`
	TotalManualAdjustments decimal.Decimal `json:"total_manual_adjustments" gorm:"column:total_manual_adjustments;type:numeric(12,2)"`

	ApprovedBy *string    `json:"approved_by,omitempty" gorm:"column:approved_by"`
	ApprovedAt *time.Time `json:"approved_at,omitempty" gorm:"column:approved_at"`

	PaymentMethod *string    `json:"payment_method,omitempty" gorm:"column:payment_method"`
	PaymentRef    *string    `json:"payment_ref,omitempty" gorm:"column:payment_ref"`
	PaidAt        *time.Time `json:"paid_at,omitempty" gorm:"column:paid_at"`

	VoidedBy   *string    `json:"voided_by,omitempty" gorm:"column:voided_by"`
	VoidedAt   *time.Time `json:"voided_at,omitempty" gorm:"column:voided_at"`
	VoidReason *string    `json:"void_reason,omitempty" gorm:"column:void_reason"`

	CreatedAt time.Time `json:"created_at" gorm:"column:created_at"`
	UpdatedAt time.Time `json:"updated_at" gorm:"column:updated_at"`
}

func (Settlement) TableName() string {
	return "settlements"
}

// Operation names everything a caller can do to a settlement besides pure
// reads. Legality lives in one table instead of scattered status ifs.
type Operation string

const (
	OpRefresh    Operation = "refresh"
	OpAddLine    Operation = "add_line"
	OpEditLine   Operation = "edit_line"
	OpRemoveLine Operation = "remove_line"
	OpDelete     Operation = "delete"
)

var allowedTransitions = map[string]map[string]bool{
	StatusDraft:    {StatusPending: true, StatusVoid: true},
	StatusPending:  {StatusApproved: true, StatusVoid: true},
	StatusApproved: {StatusPaid: true, StatusVoid: true},
	StatusPaid:     {},
	StatusVoid:     {},
}

var allowedOperations = map[Operation]map[string]bool{
	OpRefresh:    {StatusDraft: true},
	OpAddLine:    {StatusDraft: true},
	OpEditLine:   {StatusDraft: true},
	OpRemoveLine: {StatusDraft: true},
	OpDelete:     {StatusDraft: true, StatusVoid: true},
}

// CanTransition consults the transition table.
func CanTransition(from, to string) bool {
	return allowedTransitions[from][to]
}

// OperationAllowed consults the operation table.
func OperationAllowed(op Operation, status string) bool {
	return allowedOperations[op][status]
}

func ValidStatus(status string) bool {
	_, ok := allowedTransitions[status]
	return ok
}

func (s *Settlement) IsDraft() bool {
	return s.Status == StatusDraft
}

// Summary is the aggregate recomputed on refresh and frozen at approval.
type Summary struct {
	GrossTotal             decimal.Decimal `json:"gross_total"`
	TotalMiles             decimal.Decimal `json:"total_miles"`
	TotalLoads             int             `json:"total_loads"`
	TotalManualAdjustments decimal.Decimal `json:"total_manual_adjustments"`
}

// Summarize totals a settlement's lines: gross across everything, miles
// from SYSTEM quantities, distinct source loads, and the summed amount of
// MANUAL lines.
func Summarize(payables []*payable.Payable) Summary {
	sum := Summary{
		GrossTotal:             decimal.Zero,
		TotalMiles:             decimal.Zero,
		TotalManualAdjustments: decimal.Zero,
	}
	loads := make(map[int64]struct{})
	for _, p := range payables {
		sum.GrossTotal = sum.GrossTotal.Add(p.TotalAmount)
		if p.SourceType == payable.SourceSystem {
			sum.TotalMiles = sum.TotalMiles.Add(p.Quantity)
		} else {
			sum.TotalManualAdjustments = sum.TotalManualAdjustments.Add(p.TotalAmount)
		}
		if p.LoadID != nil {
			loads[*p.LoadID] = struct{}{}
		}
	}
	sum.TotalLoads = len(loads)
	return sum
}

// ApplySummary copies computed totals onto the aggregate fields.
func (s *Settlement) ApplySummary(sum Summary) {
	s.GrossTotal = sum.GrossTotal
	s.TotalMiles = sum.TotalMiles
	s.TotalLoads = sum.TotalLoads
	s.TotalManualAdjustments = sum.TotalManualAdjustments
}

// Freeze stamps approval and locks in the aggregate totals. After this
// the settlement's line items are immutable.
func (s *Settlement) Freeze(sum Summary, approvedBy string, approvedAt time.Time) {
	s.ApplySummary(sum)
	s.Status = StatusApproved
	s.ApprovedBy = &approvedBy
	s.ApprovedAt = &approvedAt
	s.UpdatedAt = approvedAt
}

// MarkPaid stamps the payment audit fields; totals are not recomputed.
func (s *Settlement) MarkPaid(method, ref string, paidAt time.Time) {
	s.Status = StatusPaid
	s.PaymentMethod = &method
	s.PaymentRef = &ref
	s.PaidAt = &paidAt
	s.UpdatedAt = paidAt
}

// MarkVoid stamps the void audit fields. Member payables are not
// unassigned or restored automatically.
func (s *Settlement) MarkVoid(voidedBy, reason string, voidedAt time.Time) {
	s.Status = StatusVoid
	s.VoidedBy = &voidedBy
	s.VoidedAt = &voidedAt
	s.VoidReason = &reason
	s.UpdatedAt = voidedAt
}

// PeriodLabel renders the human period range shown in list views.
func (s *Settlement) PeriodLabel() string {
	return s.PeriodStart.Format("Jan 2, 2006") + " - " + s.PeriodEnd.Format("Jan 2, 2006")
}
