package postgres

import (
	"context"
	"errors"

	"github.com/freightops/settlements/internal/freight"
	"gorm.io/gorm"
)

// FreightRepository implements freight.Reader over the platform's load,
// leg, and stop tables. Read-only on purpose.
type FreightRepository struct {
	db *gorm.DB
}

func NewFreightRepository(db *gorm.DB) freight.Reader {
	return &FreightRepository{db: db}
}

func (r *FreightRepository) GetLoad(ctx context.Context, id int64) (*freight.Load, error) {
	var load freight.Load
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&load).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &load, nil
}

func (r *FreightRepository) GetLoads(ctx context.Context, ids []int64) (map[int64]*freight.Load, error) {
	loads := make(map[int64]*freight.Load, len(ids))
	if len(ids) == 0 {
		return loads, nil
	}
	var rows []*freight.Load
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, l := range rows {
		loads[l.ID] = l
	}
	return loads, nil
}

func (r *FreightRepository) Snapshot(ctx context.Context, loadID int64, legID *int64) (*freight.Snapshot, error) {
	load, err := r.GetLoad(ctx, loadID)
	if err != nil {
		return nil, err
	}
	if load == nil {
		return nil, nil
	}
	snap := &freight.Snapshot{Load: load}

	if legID != nil {
		var leg freight.Leg
		err := r.db.WithContext(ctx).Where("id = ? AND load_id = ?", *legID, loadID).First(&leg).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		if err == nil {
			snap.Leg = &leg
			if leg.DestinationStopID != nil {
				var dest freight.Stop
				err := r.db.WithContext(ctx).Where("id = ?", *leg.DestinationStopID).First(&dest).Error
				if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
					return nil, err
				}
				if err == nil {
					snap.LegDestination = &dest
				}
			}
		}
	}

	var last freight.Stop
	err = r.db.WithContext(ctx).
		Where("load_id = ? AND stop_type = ?", loadID, freight.StopTypeDelivery).
		Order("sequence DESC").
		First(&last).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if err == nil {
		snap.LastDeliveryStop = &last
	}

	return snap, nil
}
