package postgres

import (
	"context"

	payablepg "github.com/freightops/settlements/internal/payable/postgres"
	"github.com/freightops/settlements/internal/settlement"
	"gorm.io/gorm"
)

// GormUnitOfWork runs a settlement mutation inside one database
// transaction, handing the callback repositories bound to that
// transaction. Settlement writes and line reassignment either both land
// or both roll back.
type GormUnitOfWork struct {
	db *gorm.DB
}

func NewGormUnitOfWork(db *gorm.DB) settlement.UnitOfWork {
	return &GormUnitOfWork{db: db}
}

func (u *GormUnitOfWork) WithinTx(ctx context.Context, fn func(r settlement.Repos) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(settlement.Repos{
			Settlements: NewSettlementRepository(tx),
			Payables:    payablepg.NewPayableRepository(tx),
		})
	})
}
