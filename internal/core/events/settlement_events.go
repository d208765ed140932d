package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	EventTypeSettlementGenerated = "settlement.generated"
	EventTypeSettlementApproved  = "settlement.approved"
	EventTypeSettlementVoided    = "settlement.voided"
)

type SettlementGeneratedEvent struct {
	BaseEvent
	SettlementID    int64  `json:"settlement_id"`
	PayeeID         int64  `json:"payee_id"`
	StatementNumber string `json:"statement_number"`
	LineCount       int    `json:"line_count"`
}

func NewSettlementGeneratedEvent(settlementID, payeeID int64, statementNumber string, lineCount int) *SettlementGeneratedEvent {
	return &SettlementGeneratedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeSettlementGenerated,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"settlement_id":    settlementID,
				"payee_id":         payeeID,
				"statement_number": statementNumber,
				"line_count":       lineCount,
			},
		},
		SettlementID:    settlementID,
		PayeeID:         payeeID,
		StatementNumber: statementNumber,
		LineCount:       lineCount,
	}
}

type SettlementApprovedEvent struct {
	BaseEvent
	SettlementID    int64           `json:"settlement_id"`
	PayeeID         int64           `json:"payee_id"`
	StatementNumber string          `json:"statement_number"`
	GrossTotal      decimal.Decimal `json:"gross_total"`
	ApprovedBy      string          `json:"approved_by"`
}

func NewSettlementApprovedEvent(settlementID, payeeID int64, statementNumber string, grossTotal decimal.Decimal, approvedBy string) *SettlementApprovedEvent {
	return &SettlementApprovedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeSettlementApproved,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"settlement_id":    settlementID,
				"payee_id":         payeeID,
				"statement_number": statementNumber,
				"gross_total":      grossTotal.String(),
				"approved_by":      approvedBy,
			},
		},
		SettlementID:    settlementID,
		PayeeID:         payeeID,
		StatementNumber: statementNumber,
		GrossTotal:      grossTotal,
		ApprovedBy:      approvedBy,
	}
}

type SettlementVoidedEvent struct {
	BaseEvent
	SettlementID int64  `json:"settlement_id"`
	PayeeID      int64  `json:"payee_id"`
	Reason       string `json:"reason"`
	VoidedBy     string `json:"voided_by"`
}

func NewSettlementVoidedEvent(settlementID, payeeID int64, reason, voidedBy string) *SettlementVoidedEvent {
	return &SettlementVoidedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeSettlementVoided,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"settlement_id": settlementID,
				"payee_id":      payeeID,
				"reason":        reason,
				"voided_by":     voidedBy,
			},
		},
		SettlementID: settlementID,
		PayeeID:      payeeID,
		Reason:       reason,
		VoidedBy:     voidedBy,
	}
}
