package payplan

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/freightops/settlements/internal/payperiod"
)

// Payable trigger policies. The trigger decides which single timestamp
// places a payable into a period.
const (
	TriggerDeliveryDate   = "DELIVERY_DATE"
	TriggerCompletionDate = "COMPLETION_DATE"
	TriggerApprovalDate   = "APPROVAL_DATE"
)

const DefaultCutoffTime = "23:59"

type PayPlan struct {
	ID                           int64     `json:"id" gorm:"primaryKey"`
	OrganizationID               int64     `json:"organization_id" gorm:"column:organization_id;not null"`
	Name                         string    `json:"name" gorm:"not null"`
	Frequency                    string    `json:"frequency" gorm:"not null"`
	AnchorDayOfWeek              *int      `json:"anchor_day_of_week,omitempty" gorm:"column:anchor_day_of_week"`
	AnchorDayOfMonth             *int      `json:"anchor_day_of_month,omitempty" gorm:"column:anchor_day_of_month"`
	Timezone                     *string   `json:"timezone,omitempty" gorm:"column:timezone"`
	CutoffTime                   string    `json:"cutoff_time" gorm:"column:cutoff_time;default:'23:59'"`
	PaymentLagDays               int       `json:"payment_lag_days" gorm:"column:payment_lag_days;default:0"`
	PayableTrigger               string    `json:"payable_trigger" gorm:"column:payable_trigger;default:'DELIVERY_DATE'"`
	IncludeStandaloneAdjustments bool      `json:"include_standalone_adjustments" gorm:"column:include_standalone_adjustments;default:true"`
	IsActive                     bool      `json:"is_active" gorm:"column:is_active;default:true"`
	CreatedAt                    time.Time `json:"created_at" gorm:"column:created_at"`
	UpdatedAt                    time.Time `json:"updated_at" gorm:"column:updated_at"`
}

func (PayPlan) TableName() string {
	return "pay_plans"
}

// ResolveLocation walks the timezone fallback chain: plan, organization
// default, engine default. The engine default is validated at startup so
// the final LoadLocation only fails on bad plan or org data.
func (p *PayPlan) ResolveLocation(orgDefault, engineDefault string) (*time.Location, error) {
	name := engineDefault
	if orgDefault != "" {
		name = orgDefault
	}
	if p.Timezone != nil && *p.Timezone != "" {
		name = *p.Timezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("resolve timezone %q: %w", name, err)
	}
	return loc, nil
}

// Schedule builds the period-calculator input for this plan.
func (p *PayPlan) Schedule(loc *time.Location, cal *payperiod.HolidayCalendar) payperiod.Schedule {
	s := payperiod.Schedule{
		Frequency:      payperiod.Frequency(p.Frequency),
		Location:       loc,
		PaymentLagDays: p.PaymentLagDays,
		Calendar:       cal,
	}
	if p.AnchorDayOfWeek != nil {
		s.AnchorDayOfWeek = time.Weekday(*p.AnchorDayOfWeek)
	}
	if p.AnchorDayOfMonth != nil {
		s.AnchorDayOfMonth = *p.AnchorDayOfMonth
	}
	return s
}

// CutoffClock parses the plan's HH:MM cutoff into clock components.
func (p *PayPlan) CutoffClock() (hour, minute int, err error) {
	return ParseCutoff(p.CutoffTime)
}

func ParseCutoff(cutoff string) (hour, minute int, err error) {
	parts := strings.Split(cutoff, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("cutoff time %q is not HH:MM", cutoff)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("cutoff time %q has invalid hour", cutoff)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("cutoff time %q has invalid minute", cutoff)
	}
	return hour, minute, nil
}

func ValidTrigger(trigger string) bool {
	switch trigger {
	case TriggerDeliveryDate, TriggerCompletionDate, TriggerApprovalDate:
		return true
	}
	return false
}
