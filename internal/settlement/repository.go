package settlement

import (
	"context"
	"time"

	"github.com/freightops/settlements/internal/payable"
)

// Repository defines the data access methods for settlements.
type Repository interface {
	Create(ctx context.Context, s *Settlement) error
	GetByID(ctx context.Context, id int64) (*Settlement, error)

	// FindByPayeePeriod is the idempotency probe: one live settlement per
	// payee per exact period range. Returns nil when none exists.
	FindByPayeePeriod(ctx context.Context, payeeID int64, periodStart, periodEnd time.Time) (*Settlement, error)

	List(ctx context.Context, filter ListFilter) ([]*ListItem, error)
	Update(ctx context.Context, s *Settlement) error
	Delete(ctx context.Context, id int64) error

	// StatementNumbers returns the org's statement numbers for a year, for
	// sequence allocation.
	StatementNumbers(ctx context.Context, orgID int64, year int) ([]string, error)
}

// Repos bundles the repositories a settlement mutation touches. The unit
// of work hands out a transaction-scoped instance so settlement writes and
// line reassignment commit or roll back together.
type Repos struct {
	Settlements Repository
	Payables    payable.Repository
}

type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(r Repos) error) error
}
