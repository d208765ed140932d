package freight

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Read models for the dispatch side of the platform. Settlement never
// writes these; it reads them to resolve trigger timestamps, held flags,
// and audit inputs.

const (
	StopTypePickup   = "PICKUP"
	StopTypeDelivery = "DELIVERY"
)

type Load struct {
	ID              int64           `json:"id" gorm:"primaryKey"`
	OrganizationID  int64           `json:"organization_id" gorm:"column:organization_id;not null"`
	ReferenceNumber string          `json:"reference_number" gorm:"column:reference_number"`
	EffectiveMiles  decimal.Decimal `json:"effective_miles" gorm:"column:effective_miles;type:numeric(10,1)"`
	IsHeld          bool            `json:"is_held" gorm:"column:is_held;default:false"`
	HasSignedPOD    bool            `json:"has_signed_pod" gorm:"column:has_signed_pod;default:false"`
	CreatedAt       time.Time       `json:"created_at" gorm:"column:created_at"`
}

func (Load) TableName() string {
	return "loads"
}

type Leg struct {
	ID                int64      `json:"id" gorm:"primaryKey"`
	LoadID            int64      `json:"load_id" gorm:"column:load_id;not null"`
	CompletedAt       *time.Time `json:"completed_at,omitempty" gorm:"column:completed_at"`
	DestinationStopID *int64     `json:"destination_stop_id,omitempty" gorm:"column:destination_stop_id"`
}

func (Leg) TableName() string {
	return "legs"
}

type Stop struct {
	ID             int64      `json:"id" gorm:"primaryKey"`
	LoadID         int64      `json:"load_id" gorm:"column:load_id;not null"`
	StopType       string     `json:"stop_type" gorm:"column:stop_type"`
	Sequence       int        `json:"sequence" gorm:"column:sequence"`
	CheckedOutAt   *time.Time `json:"checked_out_at,omitempty" gorm:"column:checked_out_at"`
	WindowBeginsAt *time.Time `json:"window_begins_at,omitempty" gorm:"column:window_begins_at"`
	WindowEndsAt   *time.Time `json:"window_ends_at,omitempty" gorm:"column:window_ends_at"`
}

func (Stop) TableName() string {
	return "stops"
}

// Snapshot groups everything trigger resolution needs for one payable:
// the load, the payable's leg when it has one, that leg's destination
// stop, and the load's last delivery stop.
type Snapshot struct {
	Load             *Load
	Leg              *Leg
	LegDestination   *Stop
	LastDeliveryStop *Stop
}

// Reader is the settlement engine's read-only view of dispatch data.
type Reader interface {
	GetLoad(ctx context.Context, id int64) (*Load, error)
	GetLoads(ctx context.Context, ids []int64) (map[int64]*Load, error)
	Snapshot(ctx context.Context, loadID int64, legID *int64) (*Snapshot, error)
}
