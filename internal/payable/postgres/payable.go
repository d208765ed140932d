package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/freightops/settlements/internal"
	"github.com/freightops/settlements/internal/payable"
	"gorm.io/gorm"
)

// PayableRepository implements the payable.Repository interface using GORM
type PayableRepository struct {
	db *gorm.DB
}

func NewPayableRepository(db *gorm.DB) payable.Repository {
	return &PayableRepository{db: db}
}

func (r *PayableRepository) Create(ctx context.Context, p *payable.Payable) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *PayableRepository) GetByID(ctx context.Context, id int64) (*payable.Payable, error) {
	var p payable.Payable
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrPayableNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *PayableRepository) ListUnassignedByPayee(ctx context.Context, payeeID int64) ([]*payable.Payable, error) {
	var payables []*payable.Payable
	err := r.db.WithContext(ctx).
		Where("payee_id = ? AND settlement_id IS NULL", payeeID).
		Order("created_at ASC").
		Find(&payables).Error
	return payables, err
}

func (r *PayableRepository) ListBySettlement(ctx context.Context, settlementID int64) ([]*payable.Payable, error) {
	var payables []*payable.Payable
	err := r.db.WithContext(ctx).
		Where("settlement_id = ?", settlementID).
		Order("created_at ASC").
		Find(&payables).Error
	return payables, err
}

func (r *PayableRepository) Update(ctx context.Context, p *payable.Payable) error {
	p.UpdatedAt = time.Now()
	return r.db.WithContext(ctx).Save(p).Error
}

func (r *PayableRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Delete(&payable.Payable{}, id).Error
}

func (r *PayableRepository) AssignToSettlement(ctx context.Context, ids []int64, settlementID int64) error {
	if len(ids) == 0 {
		return nil
	}
	res := r.db.WithContext(ctx).Model(&payable.Payable{}).
		Where("id IN ? AND settlement_id IS NULL", ids).
		Updates(map[string]interface{}{
			"settlement_id": settlementID,
			"updated_at":    time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	// a line captured by another settlement in the meantime fails the
	// whole transaction instead of being silently skipped
	if res.RowsAffected != int64(len(ids)) {
		return internal.NewConflictError("payable already assigned to a settlement", internal.ErrCodePayableAlreadyAssigned)
	}
	return nil
}

func (r *PayableRepository) UnassignLoadLinked(ctx context.Context, settlementID int64) (int64, error) {
	res := r.db.WithContext(ctx).Model(&payable.Payable{}).
		Where("settlement_id = ? AND load_id IS NOT NULL", settlementID).
		Updates(map[string]interface{}{
			"settlement_id": nil,
			"updated_at":    time.Now(),
		})
	return res.RowsAffected, res.Error
}

func (r *PayableRepository) DeleteStandalone(ctx context.Context, settlementID int64) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("settlement_id = ? AND load_id IS NULL", settlementID).
		Delete(&payable.Payable{})
	return res.RowsAffected, res.Error
}

func (r *PayableRepository) LockAndStampApproved(ctx context.Context, settlementID int64, approvedAt time.Time) error {
	return r.db.WithContext(ctx).Model(&payable.Payable{}).
		Where("settlement_id = ?", settlementID).
		Updates(map[string]interface{}{
			"is_locked":   true,
			"approved_at": approvedAt,
			"updated_at":  time.Now(),
		}).Error
}
