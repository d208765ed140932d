package settlement

import (
	"fmt"

	"github.com/freightops/settlements/internal/freight"
	"github.com/freightops/settlements/internal/payable"
	"github.com/shopspring/decimal"
)

// The audit scan is read-only: it never blocks a transition, it surfaces
// irregularities for a human before money moves.

type FlagLevel string

const (
	FlagLevelInfo    FlagLevel = "INFO"
	FlagLevelWarning FlagLevel = "WARNING"
)

type FlagType string

const (
	FlagMissingPOD      FlagType = "MISSING_POD"
	FlagMileageVariance FlagType = "MILEAGE_VARIANCE"
	FlagMissingReceipt  FlagType = "MISSING_RECEIPT"
)

// Variance thresholds, in percent of the load's effective miles. Above
// warnThreshold the flag is WARNING, above infoThreshold INFO; anything
// smaller is not surfaced.
var (
	varianceInfoThreshold = decimal.NewFromInt(5)
	varianceWarnThreshold = decimal.NewFromInt(10)
)

type AuditFlag struct {
	Type            FlagType         `json:"type"`
	Level           FlagLevel        `json:"level"`
	LoadID          *int64           `json:"load_id,omitempty"`
	PayableID       *int64           `json:"payable_id,omitempty"`
	Message         string           `json:"message"`
	Variance        *decimal.Decimal `json:"variance,omitempty"`
	VariancePercent *decimal.Decimal `json:"variance_percent,omitempty"`
}

// Audit scans a settlement's lines for missing proof-of-delivery, mileage
// variance, and missing receipts. loads maps load ID to its record; lines
// whose load is absent simply produce no load-backed flags.
func Audit(payables []*payable.Payable, loads map[int64]*freight.Load) []AuditFlag {
	var flags []AuditFlag

	flags = append(flags, missingPODFlags(payables, loads)...)
	flags = append(flags, mileageVarianceFlags(payables, loads)...)
	flags = append(flags, missingReceiptFlags(payables)...)

	return flags
}

// missingPODFlags emits one flag per distinct load lacking a confirmed
// signed delivery record.
func missingPODFlags(payables []*payable.Payable, loads map[int64]*freight.Load) []AuditFlag {
	var flags []AuditFlag
	seen := make(map[int64]bool)
	for _, p := range payables {
		if p.LoadID == nil || seen[*p.LoadID] {
			continue
		}
		seen[*p.LoadID] = true
		load := loads[*p.LoadID]
		if load == nil || load.HasSignedPOD {
			continue
		}
		loadID := *p.LoadID
		flags = append(flags, AuditFlag{
			Type:    FlagMissingPOD,
			Level:   FlagLevelWarning,
			LoadID:  &loadID,
			Message: fmt.Sprintf("load %s has no signed proof of delivery", load.ReferenceNumber),
		})
	}
	return flags
}

// mileageVarianceFlags compares a SYSTEM line's quantity (driven miles)
// against the load's effective miles. A load with zero effective miles
// has no defined variance and produces no flag.
func mileageVarianceFlags(payables []*payable.Payable, loads map[int64]*freight.Load) []AuditFlag {
	var flags []AuditFlag
	for _, p := range payables {
		if p.SourceType != payable.SourceSystem || p.LoadID == nil {
			continue
		}
		load := loads[*p.LoadID]
		if load == nil || load.EffectiveMiles.IsZero() {
			continue
		}

		variance := p.Quantity.Sub(load.EffectiveMiles)
		percent := variance.Div(load.EffectiveMiles).Mul(decimal.NewFromInt(100))

		level := classifyVariance(percent)
		if level == "" {
			continue
		}

		payableID := p.ID
		loadID := *p.LoadID
		flags = append(flags, AuditFlag{
			Type:            FlagMileageVariance,
			Level:           level,
			LoadID:          &loadID,
			PayableID:       &payableID,
			Message:         fmt.Sprintf("paid miles %s deviate %s%% from load miles %s", p.Quantity, percent.Round(1), load.EffectiveMiles),
			Variance:        &variance,
			VariancePercent: &percent,
		})
	}
	return flags
}

// classifyVariance returns the flag level for a variance percentage, or
// empty when the variance is within tolerance.
func classifyVariance(percent decimal.Decimal) FlagLevel {
	abs := percent.Abs()
	switch {
	case abs.GreaterThan(varianceWarnThreshold):
		return FlagLevelWarning
	case abs.GreaterThan(varianceInfoThreshold):
		return FlagLevelInfo
	default:
		return ""
	}
}

// missingReceiptFlags reports MANUAL lines paying out money with no
// attached receipt reference.
func missingReceiptFlags(payables []*payable.Payable) []AuditFlag {
	var flags []AuditFlag
	for _, p := range payables {
		if p.SourceType != payable.SourceManual {
			continue
		}
		if !p.TotalAmount.IsPositive() {
			continue
		}
		if p.ReceiptRef != nil && *p.ReceiptRef != "" {
			continue
		}
		payableID := p.ID
		flags = append(flags, AuditFlag{
			Type:      FlagMissingReceipt,
			Level:     FlagLevelWarning,
			PayableID: &payableID,
			Message:   fmt.Sprintf("manual adjustment %q has no receipt attached", p.Description),
		})
	}
	return flags
}

// HasWarnings reports whether any flag is at WARNING level, for list-view
// badges.
func HasWarnings(flags []AuditFlag) bool {
	for _, f := range flags {
		if f.Level == FlagLevelWarning {
			return true
		}
	}
	return false
}
