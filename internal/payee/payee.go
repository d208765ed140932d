package payee

import (
	"context"
	"time"
)

// Payee types. Drivers and carriers settle through the same engine.
const (
	TypeDriver  = "DRIVER"
	TypeCarrier = "CARRIER"
)

type Payee struct {
	ID             int64     `json:"id" gorm:"primaryKey"`
	OrganizationID int64     `json:"organization_id" gorm:"column:organization_id;not null"`
	PayeeType      string    `json:"payee_type" gorm:"column:payee_type;not null"`
	DisplayName    string    `json:"display_name" gorm:"column:display_name;not null"`
	PayPlanID      *int64    `json:"pay_plan_id,omitempty" gorm:"column:pay_plan_id"`
	IsActive       bool      `json:"is_active" gorm:"column:is_active;default:true"`
	CreatedAt      time.Time `json:"created_at" gorm:"column:created_at"`
}

func (Payee) TableName() string {
	return "payees"
}

type Organization struct {
	ID              int64  `json:"id" gorm:"primaryKey"`
	Name            string `json:"name" gorm:"not null"`
	DefaultTimezone string `json:"default_timezone" gorm:"column:default_timezone"`
}

func (Organization) TableName() string {
	return "organizations"
}

// Reader is the settlement engine's read-only view of payee records.
type Reader interface {
	GetPayee(ctx context.Context, id int64) (*Payee, error)
	ListActiveByPlan(ctx context.Context, planID int64) ([]*Payee, error)
	CountAssignedToPlan(ctx context.Context, planID int64) (int64, error)
	GetOrganization(ctx context.Context, id int64) (*Organization, error)
}
