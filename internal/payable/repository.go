package payable

import (
	"context"
	"time"
)

// Repository defines the data access methods for payables. The settlement
// unit of work hands out a transaction-scoped implementation so that line
// reassignment and settlement writes commit or roll back together.
type Repository interface {
	Create(ctx context.Context, p *Payable) error
	GetByID(ctx context.Context, id int64) (*Payable, error)
	ListUnassignedByPayee(ctx context.Context, payeeID int64) ([]*Payable, error)
	ListBySettlement(ctx context.Context, settlementID int64) ([]*Payable, error)
	Update(ctx context.Context, p *Payable) error
	Delete(ctx context.Context, id int64) error

	// AssignToSettlement points every given payable at the settlement.
	AssignToSettlement(ctx context.Context, ids []int64, settlementID int64) error

	// UnassignLoadLinked returns load-based lines to the unassigned pool.
	UnassignLoadLinked(ctx context.Context, settlementID int64) (int64, error)

	// DeleteStandalone permanently removes standalone adjustments; they
	// are per-statement, not reusable.
	DeleteStandalone(ctx context.Context, settlementID int64) (int64, error)

	// LockAndStampApproved freezes every member line at approval. The
	// approval stamp is what makes APPROVAL_DATE-triggered plans work for
	// the following period.
	LockAndStampApproved(ctx context.Context, settlementID int64, approvedAt time.Time) error
}
