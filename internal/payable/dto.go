package payable

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ManualAdjustmentDTO is the request payload for adding a manual line to
// a draft settlement.
type ManualAdjustmentDTO struct {
	Description string           `json:"description"`
	Quantity    decimal.Decimal  `json:"quantity"`
	Rate        decimal.Decimal  `json:"rate"`
	TotalAmount *decimal.Decimal `json:"total_amount,omitempty"`
	ReceiptRef  *string          `json:"receipt_ref,omitempty"`
}

func (dto ManualAdjustmentDTO) Validate() error {
	if dto.Description == "" {
		return errors.New("description is required")
	}
	if len(dto.Description) > 500 {
		return errors.New("description must be less than 500 characters")
	}
	if dto.TotalAmount == nil && dto.Quantity.IsZero() && dto.Rate.IsZero() {
		return errors.New("either total_amount or quantity and rate are required")
	}
	return nil
}

// ToPayable builds the manual line. Manual adjustments are created
// pre-locked so pay recalculation leaves them alone.
func (dto ManualAdjustmentDTO) ToPayable(orgID, payeeID int64, settlementID *int64) *Payable {
	now := time.Now()
	p := &Payable{
		OrganizationID: orgID,
		PayeeID:        payeeID,
		Description:    dto.Description,
		Quantity:       dto.Quantity,
		Rate:           dto.Rate,
		SourceType:     SourceManual,
		IsLocked:       true,
		SettlementID:   settlementID,
		ReceiptRef:     dto.ReceiptRef,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	p.RecomputeTotal(dto.TotalAmount)
	return p
}

// UpdatePayableDTO is an explicit patch for editing a line inside a draft
// settlement; nil fields are left alone. Applying it to a SYSTEM payable
// converts the payable to MANUAL.
type UpdatePayableDTO struct {
	Description *string          `json:"description,omitempty"`
	Quantity    *decimal.Decimal `json:"quantity,omitempty"`
	Rate        *decimal.Decimal `json:"rate,omitempty"`
	TotalAmount *decimal.Decimal `json:"total_amount,omitempty"`
	ReceiptRef  *string          `json:"receipt_ref,omitempty"`
}

func (dto UpdatePayableDTO) Validate() error {
	if dto.Description != nil && *dto.Description == "" {
		return errors.New("description cannot be empty")
	}
	if dto.Description != nil && len(*dto.Description) > 500 {
		return errors.New("description must be less than 500 characters")
	}
	if dto.Description == nil && dto.Quantity == nil && dto.Rate == nil && dto.TotalAmount == nil && dto.ReceiptRef == nil {
		return errors.New("patch contains no fields")
	}
	return nil
}

func (dto UpdatePayableDTO) Apply(p *Payable) {
	if dto.Description != nil {
		p.Description = *dto.Description
	}
	if dto.Quantity != nil {
		p.Quantity = *dto.Quantity
	}
	if dto.Rate != nil {
		p.Rate = *dto.Rate
	}
	if dto.ReceiptRef != nil {
		p.ReceiptRef = dto.ReceiptRef
	}
	if dto.Quantity != nil || dto.Rate != nil || dto.TotalAmount != nil {
		p.RecomputeTotal(dto.TotalAmount)
	}
	p.UpdatedAt = time.Now()
}
