package payable

import (
	"time"

	"github.com/shopspring/decimal"
)

// Source types. SYSTEM payables come out of pay calculation; MANUAL ones
// are operator-entered and always created pre-locked.
const (
	SourceSystem = "SYSTEM"
	SourceManual = "MANUAL"
)

// Payable is one earned or manually-added money line for a payee. It is
// a member of at most one settlement at any time.
type Payable struct {
	ID             int64           `json:"id" gorm:"primaryKey"`
	OrganizationID int64           `json:"organization_id" gorm:"column:organization_id;not null"`
	PayeeID        int64           `json:"payee_id" gorm:"column:payee_id;not null"`
	LoadID         *int64          `json:"load_id,omitempty" gorm:"column:load_id"`
	LegID          *int64          `json:"leg_id,omitempty" gorm:"column:leg_id"`
	Description    string          `json:"description" gorm:"not null"`
	Quantity       decimal.Decimal `json:"quantity" gorm:"type:numeric(12,2)"`
	Rate           decimal.Decimal `json:"rate" gorm:"type:numeric(12,4)"`
	TotalAmount    decimal.Decimal `json:"total_amount" gorm:"column:total_amount;type:numeric(12,2)"`
	SourceType     string          `json:"source_type" gorm:"column:source_type;default:'SYSTEM'"`
	IsLocked       bool            `json:"is_locked" gorm:"column:is_locked;default:false"`
	SettlementID   *int64          `json:"settlement_id,omitempty" gorm:"column:settlement_id"`
	ReceiptRef     *string         `json:"receipt_ref,omitempty" gorm:"column:receipt_ref"`
	ApprovedAt     *time.Time      `json:"approved_at,omitempty" gorm:"column:approved_at"`
	CreatedAt      time.Time       `json:"created_at" gorm:"column:created_at"`
	UpdatedAt      time.Time       `json:"updated_at" gorm:"column:updated_at"`
}

func (Payable) TableName() string {
	return "payables"
}

// IsStandalone reports whether the payable has no source load; standalone
// lines follow the simpler creation-time period rule.
func (p *Payable) IsStandalone() bool {
	return p.LoadID == nil
}

func (p *Payable) IsAssigned() bool {
	return p.SettlementID != nil
}

func (p *Payable) IsManual() bool {
	return p.SourceType == SourceManual
}

// ConvertToManual marks a SYSTEM payable as operator-edited. Manual lines
// are locked so pay recalculation never overwrites the operator's numbers.
func (p *Payable) ConvertToManual() {
	p.SourceType = SourceManual
	p.IsLocked = true
	p.UpdatedAt = time.Now()
}

// RecomputeTotal derives total from quantity and rate unless an explicit
// override amount was given.
func (p *Payable) RecomputeTotal(override *decimal.Decimal) {
	if override != nil {
		p.TotalAmount = *override
		return
	}
	p.TotalAmount = p.Quantity.Mul(p.Rate).Round(2)
}
