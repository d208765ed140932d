package payplan

import (
	"errors"
	"fmt"
	"time"

	"github.com/freightops/settlements/internal/payperiod"
)

// CreatePayPlanDTO is the request payload for creating a pay plan.
type CreatePayPlanDTO struct {
	OrganizationID               int64   `json:"organization_id"`
	Name                         string  `json:"name"`
	Frequency                    string  `json:"frequency"`
	AnchorDayOfWeek              *int    `json:"anchor_day_of_week,omitempty"`
	AnchorDayOfMonth             *int    `json:"anchor_day_of_month,omitempty"`
	Timezone                     *string `json:"timezone,omitempty"`
	CutoffTime                   string  `json:"cutoff_time,omitempty"`
	PaymentLagDays               int     `json:"payment_lag_days"`
	PayableTrigger               string  `json:"payable_trigger"`
	IncludeStandaloneAdjustments bool    `json:"include_standalone_adjustments"`
}

func (dto CreatePayPlanDTO) Validate() error {
	if dto.OrganizationID <= 0 {
		return errors.New("organization_id is required")
	}
	if dto.Name == "" {
		return errors.New("name is required")
	}
	if err := validateAnchors(dto.Frequency, dto.AnchorDayOfWeek, dto.AnchorDayOfMonth); err != nil {
		return err
	}
	if dto.Timezone != nil && *dto.Timezone != "" {
		if _, err := time.LoadLocation(*dto.Timezone); err != nil {
			return fmt.Errorf("invalid timezone %q", *dto.Timezone)
		}
	}
	if dto.CutoffTime != "" {
		if _, _, err := ParseCutoff(dto.CutoffTime); err != nil {
			return err
		}
	}
	if dto.PaymentLagDays < 0 {
		return errors.New("payment_lag_days cannot be negative")
	}
	if !ValidTrigger(dto.PayableTrigger) {
		return fmt.Errorf("invalid payable trigger %q", dto.PayableTrigger)
	}
	return nil
}

func (dto CreatePayPlanDTO) ToPlan() *PayPlan {
	now := time.Now()
	cutoff := dto.CutoffTime
	if cutoff == "" {
		cutoff = DefaultCutoffTime
	}
	return &PayPlan{
		OrganizationID:               dto.OrganizationID,
		Name:                         dto.Name,
		Frequency:                    dto.Frequency,
		AnchorDayOfWeek:              dto.AnchorDayOfWeek,
		AnchorDayOfMonth:             dto.AnchorDayOfMonth,
		Timezone:                     dto.Timezone,
		CutoffTime:                   cutoff,
		PaymentLagDays:               dto.PaymentLagDays,
		PayableTrigger:               dto.PayableTrigger,
		IncludeStandaloneAdjustments: dto.IncludeStandaloneAdjustments,
		IsActive:                     true,
		CreatedAt:                    now,
		UpdatedAt:                    now,
	}
}

// UpdatePayPlanDTO is an explicit patch: one pointer field per mutable
// column, nil meaning "leave alone". Edits only affect periods computed
// after the edit; nothing is recomputed retroactively.
type UpdatePayPlanDTO struct {
	Name                         *string `json:"name,omitempty"`
	Frequency                    *string `json:"frequency,omitempty"`
	AnchorDayOfWeek              *int    `json:"anchor_day_of_week,omitempty"`
	AnchorDayOfMonth             *int    `json:"anchor_day_of_month,omitempty"`
	Timezone                     *string `json:"timezone,omitempty"`
	CutoffTime                   *string `json:"cutoff_time,omitempty"`
	PaymentLagDays               *int    `json:"payment_lag_days,omitempty"`
	PayableTrigger               *string `json:"payable_trigger,omitempty"`
	IncludeStandaloneAdjustments *bool   `json:"include_standalone_adjustments,omitempty"`
}

// Validate checks the patch against the plan it would produce, so a patch
// cannot leave a plan with a frequency/anchor combination that could not
// have been created directly.
func (dto UpdatePayPlanDTO) Validate(current *PayPlan) error {
	frequency := current.Frequency
	if dto.Frequency != nil {
		frequency = *dto.Frequency
	}
	anchorDOW := current.AnchorDayOfWeek
	if dto.AnchorDayOfWeek != nil {
		anchorDOW = dto.AnchorDayOfWeek
	}
	anchorDOM := current.AnchorDayOfMonth
	if dto.AnchorDayOfMonth != nil {
		anchorDOM = dto.AnchorDayOfMonth
	}
	if err := validateAnchors(frequency, anchorDOW, anchorDOM); err != nil {
		return err
	}
	if dto.Timezone != nil && *dto.Timezone != "" {
		if _, err := time.LoadLocation(*dto.Timezone); err != nil {
			return fmt.Errorf("invalid timezone %q", *dto.Timezone)
		}
	}
	if dto.CutoffTime != nil {
		if _, _, err := ParseCutoff(*dto.CutoffTime); err != nil {
			return err
		}
	}
	if dto.PaymentLagDays != nil && *dto.PaymentLagDays < 0 {
		return errors.New("payment_lag_days cannot be negative")
	}
	if dto.PayableTrigger != nil && !ValidTrigger(*dto.PayableTrigger) {
		return fmt.Errorf("invalid payable trigger %q", *dto.PayableTrigger)
	}
	return nil
}

func (dto UpdatePayPlanDTO) Apply(plan *PayPlan) {
	if dto.Name != nil {
		plan.Name = *dto.Name
	}
	if dto.Frequency != nil {
		plan.Frequency = *dto.Frequency
	}
	if dto.AnchorDayOfWeek != nil {
		plan.AnchorDayOfWeek = dto.AnchorDayOfWeek
	}
	if dto.AnchorDayOfMonth != nil {
		plan.AnchorDayOfMonth = dto.AnchorDayOfMonth
	}
	if dto.Timezone != nil {
		plan.Timezone = dto.Timezone
	}
	if dto.CutoffTime != nil {
		plan.CutoffTime = *dto.CutoffTime
	}
	if dto.PaymentLagDays != nil {
		plan.PaymentLagDays = *dto.PaymentLagDays
	}
	if dto.PayableTrigger != nil {
		plan.PayableTrigger = *dto.PayableTrigger
	}
	if dto.IncludeStandaloneAdjustments != nil {
		plan.IncludeStandaloneAdjustments = *dto.IncludeStandaloneAdjustments
	}
	plan.UpdatedAt = time.Now()
}

func validateAnchors(frequency string, anchorDOW, anchorDOM *int) error {
	switch payperiod.Frequency(frequency) {
	case payperiod.FrequencyWeekly, payperiod.FrequencyBiweekly:
		if anchorDOW == nil {
			return fmt.Errorf("anchor_day_of_week is required for %s plans", frequency)
		}
		if *anchorDOW < 0 || *anchorDOW > 6 {
			return errors.New("anchor_day_of_week must be 0 (Sunday) through 6 (Saturday)")
		}
	case payperiod.FrequencyMonthly:
		if anchorDOM == nil {
			return errors.New("anchor_day_of_month is required for MONTHLY plans")
		}
		if *anchorDOM < 1 || *anchorDOM > 28 {
			return errors.New("anchor_day_of_month must be between 1 and 28")
		}
	case payperiod.FrequencySemimonthly:
		// fixed halves, no anchor
	default:
		return fmt.Errorf("invalid frequency %q", frequency)
	}
	return nil
}
