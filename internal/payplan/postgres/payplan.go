package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/freightops/settlements/internal"
	"github.com/freightops/settlements/internal/payplan"
	"gorm.io/gorm"
)

// PayPlanRepository implements the payplan.Repository interface using GORM
type PayPlanRepository struct {
	db *gorm.DB
}

func NewPayPlanRepository(db *gorm.DB) payplan.Repository {
	return &PayPlanRepository{db: db}
}

func (r *PayPlanRepository) Create(ctx context.Context, plan *payplan.PayPlan) error {
	return r.db.WithContext(ctx).Create(plan).Error
}

func (r *PayPlanRepository) GetByID(ctx context.Context, id int64) (*payplan.PayPlan, error) {
	var plan payplan.PayPlan
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&plan).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrPayPlanNotFound
		}
		return nil, err
	}
	return &plan, nil
}

func (r *PayPlanRepository) ListByOrganization(ctx context.Context, orgID int64) ([]*payplan.PayPlan, error) {
	var plans []*payplan.PayPlan
	err := r.db.WithContext(ctx).
		Where("organization_id = ?", orgID).
		Order("name ASC").
		Find(&plans).Error
	return plans, err
}

func (r *PayPlanRepository) Update(ctx context.Context, plan *payplan.PayPlan) error {
	plan.UpdatedAt = time.Now()
	return r.db.WithContext(ctx).Save(plan).Error
}
