package postgres

import (
	"context"
	"errors"

	"github.com/freightops/settlements/internal"
	"github.com/freightops/settlements/internal/payee"
	"gorm.io/gorm"
)

type PayeeRepository struct {
	db *gorm.DB
}

func NewPayeeRepository(db *gorm.DB) payee.Reader {
	return &PayeeRepository{db: db}
}

func (r *PayeeRepository) GetPayee(ctx context.Context, id int64) (*payee.Payee, error) {
	var p payee.Payee
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrPayeeNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *PayeeRepository) ListActiveByPlan(ctx context.Context, planID int64) ([]*payee.Payee, error) {
	var payees []*payee.Payee
	err := r.db.WithContext(ctx).
		Where("pay_plan_id = ? AND is_active = ?", planID, true).
		Order("display_name ASC").
		Find(&payees).Error
	return payees, err
}

func (r *PayeeRepository) CountAssignedToPlan(ctx context.Context, planID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&payee.Payee{}).
		Where("pay_plan_id = ?", planID).
		Count(&count).Error
	return count, err
}

func (r *PayeeRepository) GetOrganization(ctx context.Context, id int64) (*payee.Organization, error) {
	var org payee.Organization
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&org).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &org, nil
}
