package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/freightops/settlements/internal"
	"github.com/freightops/settlements/internal/settlement"
	"gorm.io/gorm"
)

// SettlementRepository implements the settlement.Repository interface using GORM
type SettlementRepository struct {
	db *gorm.DB
}

func NewSettlementRepository(db *gorm.DB) settlement.Repository {
	return &SettlementRepository{db: db}
}

func (r *SettlementRepository) Create(ctx context.Context, s *settlement.Settlement) error {
	now := time.Now()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *SettlementRepository) GetByID(ctx context.Context, id int64) (*settlement.Settlement, error) {
	var s settlement.Settlement
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrSettlementNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (r *SettlementRepository) FindByPayeePeriod(ctx context.Context, payeeID int64, periodStart, periodEnd time.Time) (*settlement.Settlement, error) {
	var s settlement.Settlement
	err := r.db.WithContext(ctx).
		Where("payee_id = ? AND period_start = ? AND period_end = ? AND status <> ?", payeeID, periodStart, periodEnd, settlement.StatusVoid).
		First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

func (r *SettlementRepository) List(ctx context.Context, filter settlement.ListFilter) ([]*settlement.ListItem, error) {
	query := r.db.WithContext(ctx).
		Table("settlements").
		Select("settlements.*, payees.display_name AS payee_name, payees.payee_type AS payee_type").
		Joins("JOIN payees ON payees.id = settlements.payee_id").
		Where("settlements.organization_id = ?", filter.OrganizationID)

	if filter.PayeeID != nil {
		query = query.Where("settlements.payee_id = ?", *filter.PayeeID)
	}
	if filter.Status != nil {
		query = query.Where("settlements.status = ?", *filter.Status)
	}
	if filter.PeriodFrom != nil {
		query = query.Where("settlements.period_start >= ?", *filter.PeriodFrom)
	}
	if filter.PeriodTo != nil {
		query = query.Where("settlements.period_start <= ?", *filter.PeriodTo)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var items []*settlement.ListItem
	err := query.Order("settlements.period_start DESC, settlements.id DESC").Scan(&items).Error
	return items, err
}

func (r *SettlementRepository) Update(ctx context.Context, s *settlement.Settlement) error {
	s.UpdatedAt = time.Now()
	return r.db.WithContext(ctx).Save(s).Error
}

func (r *SettlementRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Delete(&settlement.Settlement{}, id).Error
}

func (r *SettlementRepository) StatementNumbers(ctx context.Context, orgID int64, year int) ([]string, error) {
	var numbers []string
	err := r.db.WithContext(ctx).
		Model(&settlement.Settlement{}).
		Where("organization_id = ? AND statement_number LIKE ?", orgID, fmt.Sprintf("%%-%d-%%", year)).
		Pluck("statement_number", &numbers).Error
	return numbers, err
}
